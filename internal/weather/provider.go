package weather

import (
	"context"
	"encoding/json"
)

// SnapshotFetcher retrieves the raw clientraw payload from a URL.
// Failures are reported as *FetchError.
type SnapshotFetcher interface {
	Fetch(ctx context.Context, url string) ([]byte, error)
}

// StatusPublisher posts a status to a Mastodon-compatible instance and
// returns the raw response body. Failures are reported as *PublishError.
type StatusPublisher interface {
	Publish(ctx context.Context, instance, token, status string) (json.RawMessage, error)
}

// SettingsProvider supplies the settings for each run.
type SettingsProvider interface {
	Settings() Settings
}

// StaticSettings is a SettingsProvider that never changes.
type StaticSettings Settings

func (s StaticSettings) Settings() Settings { return Settings(s) }
