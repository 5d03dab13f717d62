package weather

import (
	"encoding/json"
	"time"
)

const (
	DefaultTitle    = "Weather Update"
	DefaultLocation = "Unknown Location"
)

// Reading is the typed view of one clientraw snapshot.
// Temperature is rounded to one decimal; the other values are whole numbers.
type Reading struct {
	Temperature   float64 `json:"temperatureC"`
	Humidity      int     `json:"humidityPercent"`
	WindSpeed     int     `json:"windSpeedKmh"`
	WindDirection string  `json:"windDirection"`
}

// PublishConfig carries the static lines of a status message.
type PublishConfig struct {
	Title    string `json:"title"`
	Location string `json:"location"`
	Link     string `json:"link,omitempty"`
}

// WithDefaults fills empty title and location with their defaults.
func (c PublishConfig) WithDefaults() PublishConfig {
	if c.Title == "" {
		c.Title = DefaultTitle
	}
	if c.Location == "" {
		c.Location = DefaultLocation
	}
	return c
}

// Settings is the runtime view of everything a pipeline run needs.
type Settings struct {
	SourceURL string
	Instance  string
	Token     string
	Post      PublishConfig

	// MaxStatusLength limits the rendered status in runes; 0 disables the check.
	MaxStatusLength int
}

// PublishOutcome is the result of one publish attempt.
type PublishOutcome struct {
	Success  bool            `json:"success"`
	Error    string          `json:"error,omitempty"`
	Response json.RawMessage `json:"response,omitempty"`
}

// Trigger identifies what started a run.
type Trigger string

const (
	TriggerScheduled Trigger = "scheduled"
	TriggerManual    Trigger = "manual"
)

// RunState is the pipeline state machine position.
type RunState string

const (
	StateIdle       RunState = "idle"
	StateFetching   RunState = "fetching"
	StateParsing    RunState = "parsing"
	StateFormatting RunState = "formatting"
	StatePublishing RunState = "publishing"
	StateDone       RunState = "done"
	StateFailed     RunState = "failed"
)

// Stage names used in logs and metrics.
const (
	StageNone    = "none"
	StageFetch   = "fetch"
	StageParse   = "parse"
	StageFormat  = "format"
	StagePublish = "publish"
)

// RunResult summarizes one invocation of the pipeline.
type RunResult struct {
	ID          string          `json:"id"`
	Trigger     Trigger         `json:"trigger"`
	State       RunState        `json:"state"`
	FailedStage string          `json:"failedStage,omitempty"`
	Error       string          `json:"error,omitempty"`
	Reading     *Reading        `json:"reading,omitempty"`
	Status      string          `json:"status,omitempty"`
	Outcome     *PublishOutcome `json:"outcome,omitempty"`
	StartedAt   time.Time       `json:"startedAt"`
	FinishedAt  time.Time       `json:"finishedAt"`

	err error
}

// Err returns the error that failed the run, if any.
func (r RunResult) Err() error {
	return r.err
}

// Succeeded reports whether every stage completed.
func (r RunResult) Succeeded() bool {
	return r.State == StateDone
}
