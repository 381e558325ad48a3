// Package siteup holds the shared domain types of the siteup deployment
// pipeline. The pipeline engine lives in pkg/sdk/pipeline, the deployment
// orchestrator in pkg/sdk/site.
package siteup

import "time"

// Outcome is the final result of one deployment run.
// Endpoint is set only on success, Err only on failure.
type Outcome struct {
	Success  bool
	Endpoint string
	Err      error
}

// HistoryRecord is one persisted deployment run.
type HistoryRecord struct {
	ID         int64
	Target     string
	Success    bool
	Endpoint   string
	Failure    string // last reported failure message, empty on success
	Phase      string // deepest phase reached
	StartedAt  time.Time
	FinishedAt time.Time
}

// Duration returns the wall time of the run.
func (r HistoryRecord) Duration() time.Duration {
	return r.FinishedAt.Sub(r.StartedAt)
}
