package store

import (
	"context"
	"testing"
	"time"

	"github.com/jonboulle/clockwork"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/i474232898/weather-to-mastodon/internal/weather"
)

func TestNoticeBoard_TakeConsumes(t *testing.T) {
	ctx := context.Background()
	b := NewNoticeBoard(NewTransientStore(clockwork.NewFakeClock()), 0)

	require.NoError(t, b.Post(ctx, weather.Notice{Type: weather.NoticeSuccess, Message: "posted"}))

	n, err := b.Take(ctx)
	require.NoError(t, err)
	assert.Equal(t, weather.Notice{Type: weather.NoticeSuccess, Message: "posted"}, n)

	_, err = b.Take(ctx)
	assert.ErrorIs(t, err, ErrNotFound)
}

func TestNoticeBoard_Expires(t *testing.T) {
	ctx := context.Background()
	clk := clockwork.NewFakeClock()
	b := NewNoticeBoard(NewTransientStore(clk), 0)

	require.NoError(t, b.Post(ctx, weather.Notice{Type: weather.NoticeError, Message: "failed"}))
	clk.Advance(45 * time.Second)

	_, err := b.Take(ctx)
	assert.ErrorIs(t, err, ErrNotFound)
}

func TestNoticeBoard_LatestWins(t *testing.T) {
	ctx := context.Background()
	b := NewNoticeBoard(NewTransientStore(nil), time.Minute)

	require.NoError(t, b.Post(ctx, weather.Notice{Type: weather.NoticeError, Message: "first"}))
	require.NoError(t, b.Post(ctx, weather.Notice{Type: weather.NoticeSuccess, Message: "second"}))

	n, err := b.Take(ctx)
	require.NoError(t, err)
	assert.Equal(t, "second", n.Message)
}
