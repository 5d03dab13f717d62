package weather

import (
	"context"
	"encoding/json"
	"time"
)

// LogCapacity is the number of entries each operational log retains.
const LogCapacity = 50

// DebugEntry is one line of the free-form trace log.
type DebugEntry struct {
	Time    time.Time `json:"time"`
	Message string    `json:"message"`
}

func (e DebugEntry) Stamp() time.Time { return e.Time }

// UploadStatus is the outcome recorded for a fetch attempt.
type UploadStatus string

const (
	UploadSuccess UploadStatus = "Success"
	UploadFailed  UploadStatus = "Failed"
)

// UploadEntry records one snapshot fetch attempt.
type UploadEntry struct {
	Time    time.Time    `json:"time"`
	Status  UploadStatus `json:"status"`
	Details string       `json:"details"`
}

func (e UploadEntry) Stamp() time.Time { return e.Time }

// PostEntry records one successful publish.
type PostEntry struct {
	Time     time.Time       `json:"time"`
	Status   string          `json:"status"`
	Response json.RawMessage `json:"response,omitempty"`
}

func (e PostEntry) Stamp() time.Time { return e.Time }

// LogStore is a bounded, append-only log of entries ordered oldest first.
type LogStore[E any] interface {
	Append(ctx context.Context, entry E) error
	ReadAll(ctx context.Context) ([]E, error)
	Clear(ctx context.Context) error
}

// Logs groups the three operational logs written by a run.
type Logs struct {
	Debug   LogStore[DebugEntry]
	Uploads LogStore[UploadEntry]
	Posts   LogStore[PostEntry]
}

// NoticeType classifies an advisory notice.
type NoticeType string

const (
	NoticeSuccess NoticeType = "success"
	NoticeError   NoticeType = "error"
)

// Notice is a short-lived message left for the operator after a manual run.
type Notice struct {
	Type    NoticeType `json:"type"`
	Message string     `json:"message"`
}

// NoticeBoard holds at most one pending notice.
type NoticeBoard interface {
	Post(ctx context.Context, n Notice) error
	Take(ctx context.Context) (Notice, error)
}
