package store

import (
	"context"
	"encoding/json"
	"time"

	"github.com/i474232898/weather-to-mastodon/internal/weather"
)

const (
	noticeKey        = "wtm_admin_notice"
	defaultNoticeTTL = 45 * time.Second
)

// NoticeBoard keeps a single expiring notice that is removed when read.
type NoticeBoard struct {
	store Transient
	ttl   time.Duration
}

var _ weather.NoticeBoard = (*NoticeBoard)(nil)

func NewNoticeBoard(store Transient, ttl time.Duration) *NoticeBoard {
	if ttl <= 0 {
		ttl = defaultNoticeTTL
	}
	return &NoticeBoard{store: store, ttl: ttl}
}

// Post replaces any pending notice.
func (b *NoticeBoard) Post(ctx context.Context, n weather.Notice) error {
	raw, err := json.Marshal(n)
	if err != nil {
		return err
	}
	return b.store.Set(ctx, noticeKey, raw, b.ttl)
}

// Take returns and removes the pending notice, or ErrNotFound.
func (b *NoticeBoard) Take(ctx context.Context) (weather.Notice, error) {
	raw, err := b.store.Get(ctx, noticeKey)
	if err != nil {
		return weather.Notice{}, err
	}
	_ = b.store.Delete(ctx, noticeKey)

	var n weather.Notice
	if err := json.Unmarshal(raw, &n); err != nil {
		return weather.Notice{}, ErrNotFound
	}
	return n, nil
}
