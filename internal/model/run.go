package model

import "time"

// RunKind distinguishes recorded pipeline stages.
type RunKind string

const (
	RunKindFetch  RunKind = "fetch"
	RunKindMatrix RunKind = "matrix"
)

// RunStatus is the lifecycle state of a recorded run.
type RunStatus string

const (
	RunStatusRunning  RunStatus = "running"
	RunStatusComplete RunStatus = "complete"
	RunStatusFailed   RunStatus = "failed"
)

// Run is one recorded execution of a pipeline stage.
type Run struct {
	ID        string      `json:"id"`
	Kind      RunKind     `json:"kind"`
	Status    RunStatus   `json:"status"`
	Summary   *RunSummary `json:"summary,omitempty"`
	CreatedAt time.Time   `json:"created_at"`
	UpdatedAt time.Time   `json:"updated_at"`
}

// RunSummary holds the headline numbers for a completed run.
type RunSummary struct {
	Requested     int            `json:"requested,omitempty"`
	ClaimsOK      int            `json:"claims_ok,omitempty"`
	ClaimsOKRatio float64        `json:"claims_ok_ratio,omitempty"`
	StatusCounts  map[string]int `json:"status_counts,omitempty"`
	Features      int            `json:"features,omitempty"`
	Documents     int            `json:"documents,omitempty"`
	GatePassed    *bool          `json:"gate_passed,omitempty"`
	OutputPath    string         `json:"output_path,omitempty"`
	Error         string         `json:"error,omitempty"`
}

// RecordOutcome is the per-record fetch result stored alongside a run.
type RecordOutcome struct {
	RunID        string       `json:"run_id"`
	PatentNumber string       `json:"patent_number"`
	Status       ClaimsStatus `json:"status"`
	Backend      string       `json:"backend,omitempty"`
	Attempts     int          `json:"attempts"`
}
