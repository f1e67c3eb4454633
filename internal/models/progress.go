package models

import (
	"fmt"
	"time"
)

// DoneMessage is the reserved sentinel that ends a progress stream
const DoneMessage = "done"

// ProgressEvent is one timestamped progress update of a job
type ProgressEvent struct {
	JobID      string    `json:"job_id"`
	Time       time.Time `json:"time"`
	Percentage float64   `json:"percentage"` // 0..1
	Message    string    `json:"message"`
}

// IsDone reports whether the event is the stream sentinel
func (e ProgressEvent) IsDone() bool {
	return e.Message == DoneMessage
}

// Wire formats the event as "<epoch-millis>,<percentage*100 with one decimal>,<message>"
func (e ProgressEvent) Wire() string {
	return fmt.Sprintf("%d,%.1f,%s", e.Time.UnixMilli(), e.Percentage*100, e.Message)
}

// LogLine formats the event as it is stored in SearchJob.Logs
func (e ProgressEvent) LogLine() string {
	return fmt.Sprintf("[%d] %s", e.Time.UnixMilli(), e.Message)
}
