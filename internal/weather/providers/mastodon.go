package providers

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"regexp"
	"strings"

	"github.com/sony/gobreaker"

	"github.com/i474232898/weather-to-mastodon/internal/weather"
)

// DefaultPublishUserAgent identifies this service to Mastodon instances.
const DefaultPublishUserAgent = "weather-to-mastodon/1.4"

const statusesPath = "/api/v1/statuses"

// MastodonProvider implements weather.StatusPublisher.
type MastodonProvider struct {
	client    *http.Client
	userAgent string
	circuit   *gobreaker.CircuitBreaker
}

func NewMastodonProvider(client *http.Client, userAgent string) *MastodonProvider {
	if userAgent == "" {
		userAgent = DefaultPublishUserAgent
	}
	return &MastodonProvider{
		client:    client,
		userAgent: userAgent,
		circuit:   newCircuitBreaker("mastodon"),
	}
}

type statusRequest struct {
	Status     string `json:"status"`
	Visibility string `json:"visibility"`
}

type apiError struct {
	Error string `json:"error"`
}

// schemePrefix matches a leading "scheme://" or scheme-relative "//".
var schemePrefix = regexp.MustCompile(`^([A-Za-z][A-Za-z0-9+.-]*:)?//`)

// NormalizeInstance strips a leading scheme, forces https and drops trailing slashes.
func NormalizeInstance(instance string) string {
	s := schemePrefix.ReplaceAllString(strings.TrimSpace(instance), "")
	return "https://" + strings.TrimRight(s, "/")
}

// Publish posts a public status. Only a 200 response counts as success.
func (p *MastodonProvider) Publish(ctx context.Context, instance, token, status string) (json.RawMessage, error) {
	payload, err := json.Marshal(statusRequest{Status: status, Visibility: "public"})
	if err != nil {
		return nil, &weather.PublishError{Detail: "API error: " + err.Error()}
	}

	url := NormalizeInstance(instance) + statusesPath
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, url, bytes.NewReader(payload))
	if err != nil {
		return nil, &weather.PublishError{Detail: "API error: " + err.Error()}
	}
	req.Header.Set("Authorization", "Bearer "+token)
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("User-Agent", p.userAgent)

	res, err := doRequest(ctx, p.client, p.circuit, req)
	if err != nil {
		if errors.Is(err, errCircuitOpen) {
			return nil, &weather.PublishError{Detail: "API error: " + errCircuitOpen.Error()}
		}
		return nil, &weather.PublishError{Detail: "API error: " + err.Error()}
	}

	if res.StatusCode != http.StatusOK {
		return nil, &weather.PublishError{StatusCode: res.StatusCode, Detail: errorMessage(res.Body)}
	}
	return asRawJSON(res.Body), nil
}

func errorMessage(body []byte) string {
	var e apiError
	if err := json.Unmarshal(body, &e); err == nil && e.Error != "" {
		return e.Error
	}
	return "unknown error"
}

// asRawJSON keeps valid JSON as is and quotes anything else so the result
// can be embedded in a log entry.
func asRawJSON(body []byte) json.RawMessage {
	if len(body) == 0 {
		return nil
	}
	if json.Valid(body) {
		return json.RawMessage(body)
	}
	quoted, _ := json.Marshal(string(body))
	return json.RawMessage(quoted)
}
