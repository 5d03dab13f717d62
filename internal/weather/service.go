package weather

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"unicode/utf8"

	"github.com/google/uuid"

	"github.com/i474232898/weather-to-mastodon/internal/observability"
)

const responsePreviewLen = 100

// Deps bundles the collaborators of a Service.
type Deps struct {
	Settings  SettingsProvider
	Fetcher   SnapshotFetcher
	Publisher StatusPublisher
	Logs      Logs
	Notices   NoticeBoard // optional
	Metrics   *observability.Metrics
	Logger    *slog.Logger
}

// Service runs the fetch, parse, format and publish pipeline and records
// every stage into the operational logs.
type Service struct {
	settings  SettingsProvider
	fetcher   SnapshotFetcher
	publisher StatusPublisher
	logs      Logs
	notices   NoticeBoard
	metrics   *observability.Metrics
	logger    *slog.Logger

	// runMu admits one run at a time; contenders are rejected, not queued.
	runMu sync.Mutex

	mu    sync.RWMutex
	state RunState
	last  *RunResult
}

// NewService creates a new Service.
func NewService(d Deps) *Service {
	if d.Metrics == nil {
		d.Metrics = observability.NewMetricsForTesting()
	}
	if d.Logger == nil {
		d.Logger = slog.Default()
	}
	return &Service{
		settings:  d.Settings,
		fetcher:   d.Fetcher,
		publisher: d.Publisher,
		logs:      d.Logs,
		notices:   d.Notices,
		metrics:   d.Metrics,
		logger:    d.Logger,
		state:     StateIdle,
	}
}

// RunOnce executes one pipeline run to completion. It never returns an
// error directly; failures are reported through the RunResult. A call made
// while another run is in flight returns immediately with ErrRunInProgress.
func (s *Service) RunOnce(ctx context.Context, trigger Trigger) RunResult {
	res := RunResult{
		ID:        uuid.NewString(),
		Trigger:   trigger,
		StartedAt: clock.Now().UTC(),
	}

	if !s.runMu.TryLock() {
		res.State = StateFailed
		res.FailedStage = StageNone
		res.err = ErrRunInProgress
		res.Error = ErrRunInProgress.Error()
		res.FinishedAt = res.StartedAt
		s.debug(ctx, fmt.Sprintf("Run skipped (%s): %v", trigger, ErrRunInProgress))
		s.logger.Warn("run skipped", "trigger", trigger, "error", ErrRunInProgress)
		s.metrics.RunsTotal.WithLabelValues(string(trigger), "skipped").Inc()
		return res
	}
	defer s.runMu.Unlock()

	s.metrics.PipelineRunning.Set(1)
	defer s.metrics.PipelineRunning.Set(0)

	s.debug(ctx, fmt.Sprintf("Run started (%s)", trigger))
	s.logger.Info("run started", "run_id", res.ID, "trigger", trigger)

	res = s.run(ctx, s.settings.Settings(), res)
	res.FinishedAt = clock.Now().UTC()

	s.mu.Lock()
	s.state = res.State
	last := res
	s.last = &last
	s.mu.Unlock()

	s.metrics.RunsTotal.WithLabelValues(string(trigger), string(res.State)).Inc()
	s.metrics.RunDuration.Observe(res.FinishedAt.Sub(res.StartedAt).Seconds())
	if res.Succeeded() {
		s.metrics.LastSuccess.Set(float64(res.FinishedAt.Unix()))
		s.logger.Info("run finished", "run_id", res.ID, "state", res.State)
	} else {
		s.metrics.StageFailures.WithLabelValues(res.FailedStage).Inc()
		s.logger.Warn("run failed", "run_id", res.ID, "stage", res.FailedStage, "error", res.Error)
	}

	if trigger == TriggerManual {
		s.postNotice(ctx, res)
	}
	return res
}

func (s *Service) run(ctx context.Context, cfg Settings, res RunResult) RunResult {
	s.setState(StateFetching)
	raw, err := s.fetch(ctx, cfg.SourceURL)
	if err != nil {
		return s.fail(ctx, res, StageFetch, err)
	}

	s.setState(StateParsing)
	reading, err := s.parse(ctx, raw)
	if err != nil {
		return s.fail(ctx, res, StageParse, err)
	}
	res.Reading = &reading

	s.setState(StateFormatting)
	status, err := s.format(ctx, reading, cfg)
	if err != nil {
		return s.fail(ctx, res, StageFormat, err)
	}
	res.Status = status

	s.setState(StatePublishing)
	outcome, err := s.publish(ctx, res.Reading, status, cfg)
	res.Outcome = &outcome
	if err != nil {
		return s.fail(ctx, res, StagePublish, err)
	}

	res.State = StateDone
	s.debug(ctx, "Run completed")
	return res
}

func (s *Service) fail(ctx context.Context, res RunResult, stage string, err error) RunResult {
	res.State = StateFailed
	res.FailedStage = stage
	res.err = err
	res.Error = err.Error()
	s.debug(ctx, fmt.Sprintf("Run failed at %s: %v", stage, err))
	return res
}

func (s *Service) fetch(ctx context.Context, url string) ([]byte, error) {
	if url == "" {
		err := &FetchError{Cause: "source URL is empty"}
		s.upload(ctx, UploadFailed, err.Cause)
		s.debug(ctx, "Snapshot read failed: "+err.Cause)
		return nil, err
	}

	raw, err := s.fetcher.Fetch(ctx, url)
	if err != nil {
		var fe *FetchError
		if !errors.As(err, &fe) {
			fe = &FetchError{Cause: err.Error()}
		}
		s.upload(ctx, UploadFailed, fe.Cause)
		s.debug(ctx, "Snapshot read failed: "+fe.Cause)
		return nil, fe
	}

	preview := raw
	if len(preview) > responsePreviewLen {
		preview = preview[:responsePreviewLen]
	}
	s.debug(ctx, "Snapshot response: "+string(preview))
	return raw, nil
}

func (s *Service) parse(ctx context.Context, raw []byte) (Reading, error) {
	reading, err := ParseSnapshot(raw)
	if err != nil {
		s.upload(ctx, UploadFailed, ErrMalformedRecord.Error())
		s.debug(ctx, "Snapshot read failed: "+err.Error())
		return Reading{}, err
	}

	details := fmt.Sprintf("data parsed: temperature=%v humidity=%d wind_speed=%d wind_direction=%s",
		reading.Temperature, reading.Humidity, reading.WindSpeed, reading.WindDirection)
	s.upload(ctx, UploadSuccess, details)
	s.debug(ctx, "Snapshot read successful: "+details)
	return reading, nil
}

func (s *Service) format(ctx context.Context, r Reading, cfg Settings) (string, error) {
	status := RenderStatus(r, cfg.Post)
	s.debug(ctx, "Formatted status: "+status)

	if cfg.MaxStatusLength > 0 {
		if n := utf8.RuneCountInString(status); n > cfg.MaxStatusLength {
			return "", fmt.Errorf("%w: %d characters, limit %d", ErrStatusTooLong, n, cfg.MaxStatusLength)
		}
	}
	return status, nil
}

// publish checks the publish preconditions in order and, when they hold,
// makes exactly one publish attempt.
func (s *Service) publish(ctx context.Context, r *Reading, status string, cfg Settings) (PublishOutcome, error) {
	var (
		resp json.RawMessage
		err  error
	)
	switch {
	case r == nil:
		err = &PublishError{Detail: "no weather data available"}
	case cfg.Instance == "":
		err = &PublishError{Detail: "instance not configured"}
	case cfg.Token == "":
		err = &PublishError{Detail: "token not configured"}
	default:
		resp, err = s.publisher.Publish(ctx, cfg.Instance, cfg.Token, status)
	}

	if err != nil {
		var pe *PublishError
		if !errors.As(err, &pe) {
			err = &PublishError{Detail: "API error: " + err.Error()}
		}
		s.debug(ctx, "Mastodon post failed: "+err.Error())
		return PublishOutcome{Success: false, Error: err.Error()}, err
	}

	s.debug(ctx, "Mastodon post successful: "+string(resp))
	entry := PostEntry{Time: clock.Now().UTC(), Status: status, Response: resp}
	if err := s.logs.Posts.Append(ctx, entry); err != nil {
		s.logger.Error("post history append failed", "error", err)
	}
	return PublishOutcome{Success: true, Response: resp}, nil
}

func (s *Service) postNotice(ctx context.Context, res RunResult) {
	if s.notices == nil {
		return
	}
	n := Notice{Type: NoticeSuccess, Message: "Weather status posted"}
	if !res.Succeeded() {
		n = Notice{Type: NoticeError, Message: "Posting failed: " + res.Error}
	}
	if err := s.notices.Post(ctx, n); err != nil {
		s.logger.Error("notice post failed", "error", err)
	}
}

func (s *Service) debug(ctx context.Context, msg string) {
	s.logger.Debug(msg)
	if s.logs.Debug == nil {
		return
	}
	if err := s.logs.Debug.Append(ctx, DebugEntry{Time: clock.Now().UTC(), Message: msg}); err != nil {
		s.logger.Error("debug log append failed", "error", err)
	}
}

func (s *Service) upload(ctx context.Context, status UploadStatus, details string) {
	entry := UploadEntry{Time: clock.Now().UTC(), Status: status, Details: details}
	if err := s.logs.Uploads.Append(ctx, entry); err != nil {
		s.logger.Error("upload log append failed", "error", err)
	}
}

func (s *Service) setState(st RunState) {
	s.mu.Lock()
	s.state = st
	s.mu.Unlock()
}

// State returns the current pipeline state.
func (s *Service) State() RunState {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.state
}

// LastRun returns the result of the most recent completed run.
func (s *Service) LastRun() (RunResult, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if s.last == nil {
		return RunResult{}, false
	}
	return *s.last, true
}

// Logs exposes the operational logs for reading and clearing.
func (s *Service) Logs() Logs {
	return s.logs
}

// Notices exposes the notice board; it may be nil.
func (s *Service) Notices() NoticeBoard {
	return s.notices
}

// Debugf appends a formatted line to the debug log.
func (s *Service) Debugf(ctx context.Context, format string, args ...any) {
	s.debug(ctx, fmt.Sprintf(format, args...))
}
