package httpapi

import (
	"context"
	"crypto/subtle"
	"errors"
	"strconv"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/fiber/v2/middleware/keyauth"

	"github.com/i474232898/weather-to-mastodon/internal/store"
	"github.com/i474232898/weather-to-mastodon/internal/weather"
)

var validate = validator.New()

// Pipeline is the part of weather.Service the admin API drives.
type Pipeline interface {
	RunOnce(ctx context.Context, trigger weather.Trigger) weather.RunResult
	State() weather.RunState
	LastRun() (weather.RunResult, bool)
	Logs() weather.Logs
	Notices() weather.NoticeBoard
}

// Schedule reports the periodic trigger's cadence.
type Schedule interface {
	NextRun() (time.Time, bool)
	Interval() (string, time.Duration)
}

// ErrorHandler renders every error as a JSON body with the matching status code.
func ErrorHandler(c *fiber.Ctx, err error) error {
	code := fiber.StatusInternalServerError
	var e *fiber.Error
	if errors.As(err, &e) {
		code = e.Code
	}
	return c.Status(code).JSON(fiber.Map{
		"error":   true,
		"message": err.Error(),
	})
}

// RegisterRoutes wires the admin handlers into the Fiber app. When
// adminToken is non-empty every /api/v1 route requires it as a bearer token.
func RegisterRoutes(app *fiber.App, pipeline Pipeline, schedule Schedule, adminToken string) {
	v1 := app.Group("/api/v1")
	if adminToken != "" {
		v1.Use(keyauth.New(keyauth.Config{
			Validator: func(_ *fiber.Ctx, key string) (bool, error) {
				if subtle.ConstantTimeCompare([]byte(key), []byte(adminToken)) == 1 {
					return true, nil
				}
				return false, keyauth.ErrMissingOrMalformedAPIKey
			},
		}))
	}

	v1.Get("/status", func(c *fiber.Ctx) error {
		name, period := schedule.Interval()
		resp := statusResponse{
			State:         pipeline.State(),
			Interval:      name,
			PeriodSeconds: int64(period / time.Second),
		}
		if next, ok := schedule.NextRun(); ok {
			resp.NextRun = &next
		}
		if last, ok := pipeline.LastRun(); ok {
			resp.LastRun = &last
		}
		return c.JSON(resp)
	})

	v1.Post("/runs", func(c *fiber.Ctx) error {
		res := pipeline.RunOnce(c.UserContext(), weather.TriggerManual)
		if errors.Is(res.Err(), weather.ErrRunInProgress) {
			return fiber.NewError(fiber.StatusConflict, res.Error)
		}
		return c.JSON(res)
	})

	v1.Get("/logs/:kind", func(c *fiber.Ctx) error {
		var q logsQuery
		if err := q.bind(c); err != nil {
			return fiber.NewError(fiber.StatusBadRequest, err.Error())
		}
		if err := validate.Struct(q); err != nil {
			return fiber.NewError(fiber.StatusBadRequest, err.Error())
		}

		logs := pipeline.Logs()
		var (
			entries any
			err     error
		)
		switch q.Kind {
		case kindDebug:
			entries, err = readLog(c, logs.Debug, q)
		case kindUploads:
			entries, err = readLog(c, logs.Uploads, q)
		case kindPosts:
			entries, err = readLog(c, logs.Posts, q)
		}
		if err != nil {
			return fiber.NewError(fiber.StatusInternalServerError, "failed to read log")
		}

		return c.JSON(fiber.Map{
			"kind":    q.Kind,
			"order":   q.Order,
			"entries": entries,
		})
	})

	v1.Delete("/logs/:kind", func(c *fiber.Ctx) error {
		kind := c.Params("kind")
		if err := validate.Var(kind, "oneof="+kindDebug+" "+kindUploads+" "+kindPosts); err != nil {
			return fiber.NewError(fiber.StatusBadRequest, "unknown log kind")
		}

		logs := pipeline.Logs()
		var err error
		switch kind {
		case kindDebug:
			err = logs.Debug.Clear(c.UserContext())
		case kindUploads:
			err = logs.Uploads.Clear(c.UserContext())
		case kindPosts:
			err = logs.Posts.Clear(c.UserContext())
		}
		if err != nil {
			return fiber.NewError(fiber.StatusInternalServerError, "failed to clear log")
		}
		return c.SendStatus(fiber.StatusNoContent)
	})

	v1.Get("/notice", func(c *fiber.Ctx) error {
		board := pipeline.Notices()
		if board == nil {
			return fiber.NewError(fiber.StatusNotFound, "no pending notice")
		}
		n, err := board.Take(c.UserContext())
		if err != nil {
			if errors.Is(err, store.ErrNotFound) {
				return fiber.NewError(fiber.StatusNotFound, "no pending notice")
			}
			return fiber.NewError(fiber.StatusInternalServerError, "failed to read notice")
		}
		return c.JSON(n)
	})
}

type statusResponse struct {
	State         weather.RunState   `json:"state"`
	Interval      string             `json:"interval"`
	PeriodSeconds int64              `json:"periodSeconds"`
	NextRun       *time.Time         `json:"nextRun,omitempty"`
	LastRun       *weather.RunResult `json:"lastRun,omitempty"`
}

const (
	kindDebug   = "debug"
	kindUploads = "uploads"
	kindPosts   = "posts"
)

// logsQuery holds path and query parameters for the log endpoints.
type logsQuery struct {
	Kind  string `validate:"oneof=debug uploads posts"`
	Limit int    `validate:"gte=0,lte=50"`
	Order string `validate:"oneof=asc desc"`
}

func (q *logsQuery) bind(c *fiber.Ctx) error {
	q.Kind = c.Params("kind")
	q.Order = c.Query("order", "desc")

	if s := c.Query("limit"); s != "" {
		n, err := strconv.Atoi(s)
		if err != nil {
			return errors.New("limit must be an integer")
		}
		q.Limit = n
	}
	return nil
}

// readLog returns the newest q.Limit entries (all when zero) in q.Order.
func readLog[E any](c *fiber.Ctx, l weather.LogStore[E], q logsQuery) ([]E, error) {
	entries, err := l.ReadAll(c.UserContext())
	if err != nil {
		return nil, err
	}
	if q.Limit > 0 && len(entries) > q.Limit {
		entries = entries[len(entries)-q.Limit:]
	}

	out := make([]E, 0, len(entries))
	if q.Order == "desc" {
		for i := len(entries) - 1; i >= 0; i-- {
			out = append(out, entries[i])
		}
		return out, nil
	}
	return append(out, entries...), nil
}
