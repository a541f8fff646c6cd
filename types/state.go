package types

import "time"

// LoopState represents the reconciliation loop state machine
type LoopState string

const (
	StateIdle           LoopState = "idle"
	StatePolling        LoopState = "polling"
	StateExtracting     LoopState = "extracting"
	StateAssigning      LoopState = "assigning"
	StateEvaluatingStop LoopState = "evaluating_stop"
	StateTerminated     LoopState = "terminated"
)

// Outcome is the terminal status of a job
type Outcome string

const (
	OutcomeNone    Outcome = ""
	OutcomeSuccess Outcome = "success"
	OutcomeAborted Outcome = "aborted"
)

// LogEntry represents a single log line with timestamp
type LogEntry struct {
	Timestamp time.Time `json:"timestamp"`
	Message   string    `json:"message"`
}

// JobStatus is the JSON response for GET /api/jobs/:id
type JobStatus struct {
	JobID      string        `json:"job_id"`
	HubID      string        `json:"hub_id"`
	Target     int           `json:"target"`
	State      LoopState     `json:"state"`
	Outcome    Outcome       `json:"outcome,omitempty"`
	Error      string        `json:"error,omitempty"`
	Ticks      int           `json:"ticks"`
	CreatedAt  time.Time     `json:"created_at"`
	FinishedAt *time.Time    `json:"finished_at,omitempty"`
	Snapshot   *PoolSnapshot `json:"snapshot,omitempty"`
	Logs       []LogEntry    `json:"logs"`
}

// Terminated reports whether the job has reached a terminal outcome
func (s JobStatus) Terminated() bool {
	return s.Outcome != OutcomeNone
}

// JobRequest starts a reconciliation job for an existing hub
type JobRequest struct {
	HubID      string `json:"hub_id"`
	Target     int    `json:"target,omitempty"`
	IntervalMS int    `json:"interval_ms,omitempty"`
}
