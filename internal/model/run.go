package model

import "time"

// RunStatus represents the state of an ingest run.
type RunStatus string

const (
	RunStatusRunning  RunStatus = "running"
	RunStatusComplete RunStatus = "complete"
	RunStatusFailed   RunStatus = "failed"
)

// Stage names the pipeline step at which a skip happened.
type Stage string

const (
	StageLocate    Stage = "locate"
	StageResolve   Stage = "resolve"
	StageParse     Stage = "parse"
	StageNormalize Stage = "normalize"
	StageWrite     Stage = "write"
)

// SkipEntry records an investor or quarter left out of a run.
type SkipEntry struct {
	InvestorID string `json:"investor_id"`
	Quarter    string `json:"quarter,omitempty"`
	Stage      Stage  `json:"stage"`
	Reason     string `json:"reason"`
}

// Warning flags a written snapshot that failed a plausibility check.
type Warning struct {
	InvestorID string `json:"investor_id"`
	Quarter    string `json:"quarter"`
	Message    string `json:"message"`
}

// RunStats are the counters of one ingest run.
type RunStats struct {
	InvestorsProcessed int `json:"investors_processed"`
	InvestorsSkipped   int `json:"investors_skipped"`
	QuartersWritten    int `json:"quarters_written"`
	QuartersEmpty      int `json:"quarters_empty"`
	QuartersUnchanged  int `json:"quarters_unchanged"`
	QuartersSkipped    int `json:"quarters_skipped"`
	RecordsDropped     int `json:"records_dropped"`
}

// Run is a persisted ingest run log entry.
type Run struct {
	ID          string      `json:"id"`
	Status      RunStatus   `json:"status"`
	Stats       RunStats    `json:"stats"`
	Skips       []SkipEntry `json:"skips,omitempty"`
	Warnings    []Warning   `json:"warnings,omitempty"`
	Error       string      `json:"error,omitempty"`
	StartedAt   time.Time   `json:"started_at"`
	CompletedAt *time.Time  `json:"completed_at,omitempty"`
}
