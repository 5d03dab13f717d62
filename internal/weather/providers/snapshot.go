package providers

import (
	"context"
	"errors"
	"fmt"
	"net/http"

	"github.com/sony/gobreaker"

	"github.com/i474232898/weather-to-mastodon/internal/weather"
)

// DefaultFetchUserAgent is sent when fetching snapshots.
const DefaultFetchUserAgent = "Mozilla/5.0 (Windows NT 10.0; Win64; x64) AppleWebKit/537.36 (KHTML, like Gecko) Chrome/91.0.4472.124 Safari/537.36"

// SnapshotProvider implements weather.SnapshotFetcher over HTTP.
type SnapshotProvider struct {
	client    *http.Client
	userAgent string
	circuit   *gobreaker.CircuitBreaker
}

func NewSnapshotProvider(client *http.Client, userAgent string) *SnapshotProvider {
	if userAgent == "" {
		userAgent = DefaultFetchUserAgent
	}
	return &SnapshotProvider{
		client:    client,
		userAgent: userAgent,
		circuit:   newCircuitBreaker("snapshot"),
	}
}

// Fetch downloads the snapshot. Success requires a 200 with a non-empty body.
func (p *SnapshotProvider) Fetch(ctx context.Context, url string) ([]byte, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return nil, &weather.FetchError{Cause: err.Error()}
	}
	req.Header.Set("User-Agent", p.userAgent)

	res, err := doRequest(ctx, p.client, p.circuit, req)
	if err != nil {
		if errors.Is(err, errCircuitOpen) {
			return nil, &weather.FetchError{Cause: errCircuitOpen.Error()}
		}
		return nil, &weather.FetchError{Cause: err.Error()}
	}
	if res.StatusCode != http.StatusOK {
		return nil, &weather.FetchError{Cause: fmt.Sprintf("HTTP %d", res.StatusCode)}
	}
	if len(res.Body) == 0 {
		return nil, &weather.FetchError{Cause: "empty response"}
	}
	return res.Body, nil
}
