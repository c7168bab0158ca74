package domain

import "time"

// RunResult summarizes one automation batch.
type RunResult struct {
	Trigger    string    `json:"trigger"`
	StartedAt  time.Time `json:"started_at"`
	FinishedAt time.Time `json:"finished_at"`
	Fetched    int       `json:"fetched"`
	Attempted  int       `json:"attempted"`
	Saved      int       `json:"saved"`
	Duplicates int       `json:"duplicates"`
	Failed     int       `json:"failed"`
	Error      string    `json:"error,omitempty"`
}

// RunStats is the process-local automation state exposed to admins.
type RunStats struct {
	Enabled           bool       `json:"enabled"`
	Running           bool       `json:"running"`
	LastRun           *time.Time `json:"last_run,omitempty"`
	TotalRuns         int64      `json:"total_runs"`
	ArticlesProcessed int64      `json:"articles_processed"`
	LastResult        *RunResult `json:"last_result,omitempty"`
}
