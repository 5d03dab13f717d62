package config

import (
	"fmt"
	"log/slog"
	"os"
	"regexp"
	"strconv"
	"strings"
	"time"

	"github.com/go-playground/validator/v10"

	"github.com/i474232898/weather-to-mastodon/internal/weather"
	"github.com/i474232898/weather-to-mastodon/internal/weather/providers"
)

var validate = validator.New()

// Interval names one of the supported posting cadences.
type Interval string

const (
	IntervalHourly    Interval = "hourly"
	IntervalTwoHourly Interval = "twohourly"
	IntervalSixHourly Interval = "sixhourly"
)

// ParseInterval maps a cadence name to an Interval. Unknown names fall back to hourly.
func ParseInterval(s string) Interval {
	switch Interval(strings.ToLower(strings.TrimSpace(s))) {
	case IntervalTwoHourly:
		return IntervalTwoHourly
	case IntervalSixHourly:
		return IntervalSixHourly
	default:
		return IntervalHourly
	}
}

// Duration returns the period between scheduled runs.
func (i Interval) Duration() time.Duration {
	switch i {
	case IntervalTwoHourly:
		return 2 * time.Hour
	case IntervalSixHourly:
		return 6 * time.Hour
	default:
		return time.Hour
	}
}

type AppConfig struct {
	// Snapshot source and Mastodon target.
	SourceURL        string `validate:"omitempty,url"`
	MastodonInstance string
	MastodonToken    string

	// Status message lines.
	PostTitle    string
	PostLocation string
	PostLinkURL  string `validate:"omitempty,url"`

	PostInterval    Interval
	MaxStatusLength int `validate:"gte=0"`

	HTTPTimeout      time.Duration `validate:"gt=0"`
	FetchUserAgent   string
	PublishUserAgent string

	// Operational log storage.
	LogDBPath      string        `validate:"required"`
	LogFallbackTTL time.Duration `validate:"gt=0"`
	NoticeTTL      time.Duration `validate:"gt=0"`

	AdminToken      string
	Port            string `validate:"required,numeric"`
	LogLevel        slog.Level
	LogFormat       string        `validate:"oneof=text json"`
	ShutdownTimeout time.Duration `validate:"gt=0"`
}

// Load reads configuration from environment with sensible defaults.
func Load() (*AppConfig, error) {
	cfg := &AppConfig{
		SourceURL:        SanitizeURL(os.Getenv("SOURCE_URL")),
		MastodonInstance: strings.TrimSpace(os.Getenv("MASTODON_INSTANCE")),
		MastodonToken:    strings.TrimSpace(os.Getenv("MASTODON_TOKEN")),
		PostTitle:        getenvDefault("POST_TITLE", weather.DefaultTitle),
		PostLocation:     getenvDefault("POST_LOCATION", weather.DefaultLocation),
		PostLinkURL:      SanitizeURL(os.Getenv("POST_LINK_URL")),
		PostInterval:     ParseInterval(getenvDefault("POST_INTERVAL", string(IntervalHourly))),
		MaxStatusLength:  getenvInt("MAX_STATUS_LENGTH", 0),
		FetchUserAgent:   getenvDefault("FETCH_USER_AGENT", providers.DefaultFetchUserAgent),
		PublishUserAgent: getenvDefault("PUBLISH_USER_AGENT", providers.DefaultPublishUserAgent),
		LogDBPath:        getenvDefault("LOG_DB_PATH", "data/weather-to-mastodon.db"),
		AdminToken:       os.Getenv("ADMIN_TOKEN"),
		Port:             getenvDefault("PORT", "8080"),
		LogFormat:        strings.ToLower(getenvDefault("LOG_FORMAT", "text")),
	}

	var err error
	if cfg.HTTPTimeout, err = getenvDuration("HTTP_TIMEOUT", 30*time.Second); err != nil {
		return nil, err
	}
	if cfg.LogFallbackTTL, err = getenvDuration("LOG_FALLBACK_TTL", time.Hour); err != nil {
		return nil, err
	}
	if cfg.NoticeTTL, err = getenvDuration("NOTICE_TTL", 45*time.Second); err != nil {
		return nil, err
	}
	if cfg.ShutdownTimeout, err = getenvDuration("SHUTDOWN_TIMEOUT", 10*time.Second); err != nil {
		return nil, err
	}
	if cfg.LogLevel, err = parseLogLevel(getenvDefault("LOG_LEVEL", "info")); err != nil {
		return nil, err
	}

	if err := validate.Struct(cfg); err != nil {
		return nil, fmt.Errorf("invalid configuration: %w", err)
	}
	return cfg, nil
}

// Settings returns the per-run settings derived from the configuration.
func (c *AppConfig) Settings() weather.Settings {
	return weather.Settings{
		SourceURL: c.SourceURL,
		Instance:  c.MastodonInstance,
		Token:     c.MastodonToken,
		Post: weather.PublishConfig{
			Title:    c.PostTitle,
			Location: c.PostLocation,
			Link:     c.PostLinkURL,
		},
		MaxStatusLength: c.MaxStatusLength,
	}
}

var httpScheme = regexp.MustCompile(`(?i)^https?://`)

// SanitizeURL trims u and prepends https:// when it has no http(s) scheme.
func SanitizeURL(u string) string {
	u = strings.TrimSpace(u)
	if u == "" || httpScheme.MatchString(u) {
		return u
	}
	return "https://" + u
}

func parseLogLevel(s string) (slog.Level, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "debug":
		return slog.LevelDebug, nil
	case "info":
		return slog.LevelInfo, nil
	case "warn", "warning":
		return slog.LevelWarn, nil
	case "error":
		return slog.LevelError, nil
	default:
		return slog.LevelInfo, fmt.Errorf("invalid LOG_LEVEL %q (allowed: debug, info, warn, error)", s)
	}
}

func getenvDefault(key, def string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return def
}

func getenvInt(key string, def int) int {
	if v := os.Getenv(key); v != "" {
		n, err := strconv.Atoi(v)
		if err == nil {
			return n
		}
	}
	return def
}

func getenvDuration(key string, def time.Duration) (time.Duration, error) {
	v := os.Getenv(key)
	if v == "" {
		return def, nil
	}
	d, err := time.ParseDuration(v)
	if err != nil {
		return 0, fmt.Errorf("invalid %s: %w", key, err)
	}
	return d, nil
}
