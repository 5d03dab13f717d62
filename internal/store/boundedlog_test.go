package store

import (
	"context"
	"errors"
	"fmt"
	"regexp"
	"sync"
	"testing"
	"time"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/jonboulle/clockwork"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/i474232898/weather-to-mastodon/internal/observability"
	"github.com/i474232898/weather-to-mastodon/internal/weather"
)

// mapKV is an in-memory KV whose writes can be made to fail.
type mapKV struct {
	mu       sync.Mutex
	data     map[string][]byte
	failPut  bool
	failGet  bool
	putCalls int
}

func newMapKV() *mapKV {
	return &mapKV{data: make(map[string][]byte)}
}

func (m *mapKV) Get(_ context.Context, key string) ([]byte, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.failGet {
		return nil, errors.New("primary unavailable")
	}
	v, ok := m.data[key]
	if !ok {
		return nil, ErrNotFound
	}
	return v, nil
}

func (m *mapKV) Put(_ context.Context, key string, value []byte) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.putCalls++
	if m.failPut {
		return errors.New("primary write rejected")
	}
	m.data[key] = value
	return nil
}

func (m *mapKV) Delete(_ context.Context, key string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	delete(m.data, key)
	return nil
}

var base = time.Date(2024, 5, 1, 8, 0, 0, 0, time.UTC)

func debugAt(i int) weather.DebugEntry {
	return weather.DebugEntry{Time: base.Add(time.Duration(i) * time.Minute), Message: fmt.Sprintf("entry %d", i)}
}

func messages(entries []weather.DebugEntry) []string {
	out := make([]string, len(entries))
	for i, e := range entries {
		out[i] = e.Message
	}
	return out
}

func TestBoundedLog_EvictsOldest(t *testing.T) {
	ctx := context.Background()
	l := NewBoundedLog[weather.DebugEntry](DebugLogKey, newMapKV(), NewTransientStore(nil))

	for i := 1; i <= 51; i++ {
		require.NoError(t, l.Append(ctx, debugAt(i)))
	}

	got, err := l.ReadAll(ctx)
	require.NoError(t, err)
	require.Len(t, got, weather.LogCapacity)
	assert.Equal(t, "entry 2", got[0].Message)
	assert.Equal(t, "entry 51", got[len(got)-1].Message)
	for i := 1; i < len(got); i++ {
		assert.True(t, got[i-1].Time.Before(got[i].Time))
	}
}

func TestBoundedLog_EmptyRead(t *testing.T) {
	l := NewBoundedLog[weather.UploadEntry](UploadLogKey, newMapKV(), NewTransientStore(nil))

	got, err := l.ReadAll(context.Background())
	require.NoError(t, err)
	assert.Empty(t, got)
}

func TestBoundedLog_CorruptPrimaryReadsEmpty(t *testing.T) {
	kv := newMapKV()
	kv.data[DebugLogKey] = []byte("not json")
	l := NewBoundedLog[weather.DebugEntry](DebugLogKey, kv, NewTransientStore(nil))

	got, err := l.ReadAll(context.Background())
	require.NoError(t, err)
	assert.Empty(t, got)

	require.NoError(t, l.Append(context.Background(), debugAt(1)))
	got, err = l.ReadAll(context.Background())
	require.NoError(t, err)
	assert.Equal(t, []string{"entry 1"}, messages(got))
}

func TestBoundedLog_FallbackOnWriteFailure(t *testing.T) {
	ctx := context.Background()
	kv := newMapKV()
	metrics := observability.NewMetricsForTesting()
	l := NewBoundedLog[weather.DebugEntry](DebugLogKey, kv, NewTransientStore(nil), WithMetrics(metrics, "debug"))

	require.NoError(t, l.Append(ctx, debugAt(1)))
	kv.failPut = true
	require.NoError(t, l.Append(ctx, debugAt(2)), "fallback absorbs the failure")
	require.NoError(t, l.Append(ctx, debugAt(3)))
	assert.InDelta(t, 2, testutil.ToFloat64(metrics.LogFallbackWrites.WithLabelValues("debug")), 0)

	kv.failPut = false
	got, err := l.ReadAll(ctx)
	require.NoError(t, err)
	assert.Equal(t, []string{"entry 1", "entry 2", "entry 3"}, messages(got))

	// Merged entries were written back and the fallback cleared.
	l2 := NewBoundedLog[weather.DebugEntry](DebugLogKey, kv, NewTransientStore(nil))
	got, err = l2.ReadAll(ctx)
	require.NoError(t, err)
	assert.Len(t, got, 3)

	got, err = l.ReadAll(ctx)
	require.NoError(t, err)
	assert.Len(t, got, 3, "fallback entries are not merged twice")
}

func TestBoundedLog_MergeSortsByTime(t *testing.T) {
	ctx := context.Background()
	kv := newMapKV()
	fb := NewTransientStore(nil)
	l := NewBoundedLog[weather.DebugEntry](DebugLogKey, kv, fb)

	require.NoError(t, l.Append(ctx, debugAt(5)))
	kv.failPut = true
	require.NoError(t, l.Append(ctx, debugAt(3)))
	require.NoError(t, l.Append(ctx, debugAt(7)))
	kv.failPut = false

	got, err := l.ReadAll(ctx)
	require.NoError(t, err)
	assert.Equal(t, []string{"entry 3", "entry 5", "entry 7"}, messages(got))
}

func TestBoundedLog_MergeCapsToCapacity(t *testing.T) {
	ctx := context.Background()
	kv := newMapKV()
	l := NewBoundedLog[weather.DebugEntry](DebugLogKey, kv, NewTransientStore(nil), WithCapacity(5))

	for i := 1; i <= 5; i++ {
		require.NoError(t, l.Append(ctx, debugAt(i)))
	}
	kv.failPut = true
	for i := 6; i <= 8; i++ {
		require.NoError(t, l.Append(ctx, debugAt(i)))
	}
	kv.failPut = false

	got, err := l.ReadAll(ctx)
	require.NoError(t, err)
	assert.Equal(t, []string{"entry 4", "entry 5", "entry 6", "entry 7", "entry 8"}, messages(got))
}

func TestBoundedLog_FallbackExpires(t *testing.T) {
	ctx := context.Background()
	clk := clockwork.NewFakeClock()
	kv := newMapKV()
	l := NewBoundedLog[weather.DebugEntry](DebugLogKey, kv, NewTransientStore(clk), WithFallbackTTL(time.Hour))

	kv.failPut = true
	require.NoError(t, l.Append(ctx, debugAt(1)))
	kv.failPut = false

	clk.Advance(time.Hour)
	got, err := l.ReadAll(ctx)
	require.NoError(t, err)
	assert.Empty(t, got)
}

func TestBoundedLog_PrimaryReadFailure(t *testing.T) {
	ctx := context.Background()
	kv := newMapKV()
	kv.failGet = true
	l := NewBoundedLog[weather.DebugEntry](DebugLogKey, kv, NewTransientStore(nil))

	_, err := l.ReadAll(ctx)
	require.Error(t, err)

	require.NoError(t, l.Append(ctx, debugAt(1)))
	got, err := l.ReadAll(ctx)
	require.NoError(t, err)
	assert.Equal(t, []string{"entry 1"}, messages(got))
}

// failingTransient rejects every write.
type failingTransient struct{ *TransientStore }

func (failingTransient) Set(context.Context, string, []byte, time.Duration) error {
	return errors.New("fallback full")
}

func TestBoundedLog_BothStoresFail(t *testing.T) {
	kv := newMapKV()
	kv.failPut = true
	l := NewBoundedLog[weather.DebugEntry](DebugLogKey, kv, failingTransient{NewTransientStore(nil)})

	err := l.Append(context.Background(), debugAt(1))
	require.Error(t, err)
	assert.Contains(t, err.Error(), "primary write rejected")
	assert.Contains(t, err.Error(), "fallback full")
}

func TestBoundedLog_ClearDropsFallback(t *testing.T) {
	ctx := context.Background()
	kv := newMapKV()
	l := NewBoundedLog[weather.DebugEntry](DebugLogKey, kv, NewTransientStore(nil))

	require.NoError(t, l.Append(ctx, debugAt(1)))
	kv.failPut = true
	require.NoError(t, l.Append(ctx, debugAt(2)))
	kv.failPut = false

	require.NoError(t, l.Clear(ctx))
	got, err := l.ReadAll(ctx)
	require.NoError(t, err)
	assert.Empty(t, got)
}

func TestBoundedLog_ConcurrentAppends(t *testing.T) {
	ctx := context.Background()
	l := NewBoundedLog[weather.DebugEntry](DebugLogKey, newMapKV(), NewTransientStore(nil))

	var wg sync.WaitGroup
	for i := 0; i < 40; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			assert.NoError(t, l.Append(ctx, debugAt(i)))
		}(i)
	}
	wg.Wait()

	got, err := l.ReadAll(ctx)
	require.NoError(t, err)
	assert.Len(t, got, 40)
}

func TestBoundedLog_SQLitePrimary(t *testing.T) {
	ctx := context.Background()
	s := newTestSQLiteStore(t)
	posts := NewBoundedLog[weather.PostEntry](PostLogKey, s, NewTransientStore(nil))

	entry := weather.PostEntry{Time: base, Status: "WX\n#weather", Response: []byte(`{"id":"123"}`)}
	require.NoError(t, posts.Append(ctx, entry))

	got, err := posts.ReadAll(ctx)
	require.NoError(t, err)
	require.Len(t, got, 1)
	assert.Equal(t, "WX\n#weather", got[0].Status)
	assert.JSONEq(t, `{"id":"123"}`, string(got[0].Response))
	assert.True(t, base.Equal(got[0].Time))
}

func TestBoundedLog_SQLiteFailureUsesFallback(t *testing.T) {
	db, mock, err := sqlmock.New()
	require.NoError(t, err)
	defer db.Close()

	mock.ExpectQuery(regexp.QuoteMeta("SELECT value FROM options WHERE name = ?")).
		WithArgs(UploadLogKey).
		WillReturnError(errors.New("database is locked"))

	fb := NewTransientStore(nil)
	metrics := observability.NewMetricsForTesting()
	l := NewBoundedLog[weather.UploadEntry](UploadLogKey, NewSQLiteStore(db, nil), fb, WithMetrics(metrics, "uploads"))

	entry := weather.UploadEntry{Time: base, Status: weather.UploadFailed, Details: "HTTP 503"}
	require.NoError(t, l.Append(context.Background(), entry))
	require.NoError(t, mock.ExpectationsWereMet())

	raw, err := fb.Get(context.Background(), UploadLogKey+"_fallback")
	require.NoError(t, err)
	assert.Contains(t, string(raw), "HTTP 503")
	assert.InDelta(t, 1, testutil.ToFloat64(metrics.LogFallbackWrites.WithLabelValues("uploads")), 0)
}
