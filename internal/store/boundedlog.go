package store

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"sort"
	"sync"
	"time"

	"github.com/i474232898/weather-to-mastodon/internal/observability"
	"github.com/i474232898/weather-to-mastodon/internal/weather"
)

// Keys of the three operational logs in the primary store.
const (
	DebugLogKey  = "wtm_debug_log"
	UploadLogKey = "wtm_upload_log"
	PostLogKey   = "wtm_post_history"
)

const (
	fallbackSuffix     = "_fallback"
	defaultFallbackTTL = time.Hour
)

// KV is the durable store holding each log as one JSON array.
type KV interface {
	Get(ctx context.Context, key string) ([]byte, error)
	Put(ctx context.Context, key string, value []byte) error
	Delete(ctx context.Context, key string) error
}

// Transient is an expiring store used when the KV rejects a write.
type Transient interface {
	Get(ctx context.Context, key string) ([]byte, error)
	Set(ctx context.Context, key string, value []byte, ttl time.Duration) error
	Delete(ctx context.Context, key string) error
}

// Stamped entries carry the time used to order merged logs.
type Stamped interface {
	Stamp() time.Time
}

// LogOption configures a BoundedLog.
type LogOption func(*logConfig)

type logConfig struct {
	capacity    int
	fallbackTTL time.Duration
	metrics     *observability.Metrics
	label       string
}

// WithCapacity overrides the number of retained entries.
func WithCapacity(n int) LogOption {
	return func(c *logConfig) {
		if n > 0 {
			c.capacity = n
		}
	}
}

// WithFallbackTTL sets how long fallback entries survive.
func WithFallbackTTL(ttl time.Duration) LogOption {
	return func(c *logConfig) {
		if ttl > 0 {
			c.fallbackTTL = ttl
		}
	}
}

// WithMetrics counts fallback writes under the given label.
func WithMetrics(m *observability.Metrics, label string) LogOption {
	return func(c *logConfig) {
		c.metrics = m
		c.label = label
	}
}

// BoundedLog keeps the most recent entries of one log, oldest first.
//
// Entries live as a JSON array under key in the primary store. When the
// primary store fails, Append diverts the entry to the transient store
// under key+"_fallback"; the next ReadAll merges those entries back.
// Appends within one process are serialized; separate processes sharing
// the same database can still lose entries to interleaved writes.
type BoundedLog[E Stamped] struct {
	key      string
	primary  KV
	fallback Transient
	cfg      logConfig

	mu sync.Mutex
}

var _ weather.LogStore[weather.DebugEntry] = (*BoundedLog[weather.DebugEntry])(nil)

// NewBoundedLog creates a log stored under key.
func NewBoundedLog[E Stamped](key string, primary KV, fallback Transient, opts ...LogOption) *BoundedLog[E] {
	cfg := logConfig{
		capacity:    weather.LogCapacity,
		fallbackTTL: defaultFallbackTTL,
	}
	for _, opt := range opts {
		opt(&cfg)
	}
	return &BoundedLog[E]{
		key:      key,
		primary:  primary,
		fallback: fallback,
		cfg:      cfg,
	}
}

func (l *BoundedLog[E]) fallbackKey() string {
	return l.key + fallbackSuffix
}

// Append adds entry, evicting the oldest entries beyond capacity. It only
// fails when both the primary and the fallback store reject the write.
func (l *BoundedLog[E]) Append(ctx context.Context, entry E) error {
	l.mu.Lock()
	defer l.mu.Unlock()

	entries, err := l.readPrimary(ctx)
	if err == nil {
		entries = l.trim(append(entries, entry))
		if err = l.writePrimary(ctx, entries); err == nil {
			return nil
		}
	}

	if fbErr := l.appendFallback(ctx, entry); fbErr != nil {
		return fmt.Errorf("append %s: %w", l.key, errors.Join(err, fbErr))
	}
	if l.cfg.metrics != nil {
		l.cfg.metrics.LogFallbackWrites.WithLabelValues(l.cfg.label).Inc()
	}
	return nil
}

// ReadAll returns the retained entries oldest first. Pending fallback
// entries are merged in by timestamp, written back to the primary store
// and, once that succeeds, removed from the fallback store.
func (l *BoundedLog[E]) ReadAll(ctx context.Context) ([]E, error) {
	l.mu.Lock()
	defer l.mu.Unlock()

	primary, err := l.readPrimary(ctx)
	pending := l.readFallback(ctx)

	if err != nil {
		if len(pending) == 0 {
			return nil, fmt.Errorf("read %s: %w", l.key, err)
		}
		return l.merge(nil, pending), nil
	}
	if len(pending) == 0 {
		return primary, nil
	}

	merged := l.merge(primary, pending)
	if err := l.writePrimary(ctx, merged); err == nil {
		_ = l.fallback.Delete(ctx, l.fallbackKey())
	}
	return merged, nil
}

// Clear empties the log in both stores.
func (l *BoundedLog[E]) Clear(ctx context.Context) error {
	l.mu.Lock()
	defer l.mu.Unlock()

	var errs []error
	if err := l.primary.Delete(ctx, l.key); err != nil {
		errs = append(errs, err)
	}
	if err := l.fallback.Delete(ctx, l.fallbackKey()); err != nil {
		errs = append(errs, err)
	}
	if err := errors.Join(errs...); err != nil {
		return fmt.Errorf("clear %s: %w", l.key, err)
	}
	return nil
}

// merge orders the union of both lists by timestamp and keeps the newest
// capacity entries. Ties keep primary entries first.
func (l *BoundedLog[E]) merge(primary, pending []E) []E {
	all := make([]E, 0, len(primary)+len(pending))
	all = append(all, primary...)
	all = append(all, pending...)
	sort.SliceStable(all, func(i, j int) bool {
		return all[i].Stamp().Before(all[j].Stamp())
	})
	return l.trim(all)
}

func (l *BoundedLog[E]) trim(entries []E) []E {
	if over := len(entries) - l.cfg.capacity; over > 0 {
		return entries[over:]
	}
	return entries
}

// readPrimary treats a missing or undecodable value as an empty log.
func (l *BoundedLog[E]) readPrimary(ctx context.Context) ([]E, error) {
	raw, err := l.primary.Get(ctx, l.key)
	if errors.Is(err, ErrNotFound) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	var entries []E
	if err := json.Unmarshal(raw, &entries); err != nil {
		return nil, nil
	}
	return entries, nil
}

func (l *BoundedLog[E]) writePrimary(ctx context.Context, entries []E) error {
	raw, err := json.Marshal(entries)
	if err != nil {
		return err
	}
	return l.primary.Put(ctx, l.key, raw)
}

func (l *BoundedLog[E]) readFallback(ctx context.Context) []E {
	raw, err := l.fallback.Get(ctx, l.fallbackKey())
	if err != nil {
		return nil
	}
	var entries []E
	if err := json.Unmarshal(raw, &entries); err != nil {
		return nil
	}
	return entries
}

func (l *BoundedLog[E]) appendFallback(ctx context.Context, entry E) error {
	entries := l.trim(append(l.readFallback(ctx), entry))
	raw, err := json.Marshal(entries)
	if err != nil {
		return err
	}
	return l.fallback.Set(ctx, l.fallbackKey(), raw, l.cfg.fallbackTTL)
}
