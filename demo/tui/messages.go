package tui

import (
	"time"

	"hubgraph/types"
)

// Messages for the tea program (polling-based)

// StatusUpdateMsg is sent when we receive a job status from the API
type StatusUpdateMsg struct {
	Status *types.JobStatus
	Err    error
}

// TickMsg is sent periodically to trigger polling
type TickMsg struct {
	Time time.Time
}

// JobStartedMsg is sent once the job for the requested hub was created
type JobStartedMsg struct {
	JobID string
	Err   error
}

// JobStoppedMsg is sent when the user stopped the job
type JobStoppedMsg struct {
	Err error
}

// ExpandedMsg carries the follow-up items of a node
type ExpandedMsg struct {
	NodeID string
	Items  []types.Item
	Err    error
}
