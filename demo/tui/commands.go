package tui

import (
	"context"
	"time"

	"hubgraph/types"

	tea "github.com/charmbracelet/bubbletea"
)

const requestTimeout = 5 * time.Second

// expandTimeout is longer since expansion runs model inference upstream
const expandTimeout = time.Minute

// pollStatus creates a command to poll the job status
func pollStatus(client *APIClient, jobID string) tea.Cmd {
	return func() tea.Msg {
		ctx, cancel := context.WithTimeout(context.Background(), requestTimeout)
		defer cancel()
		status, err := client.GetJob(ctx, jobID)
		return StatusUpdateMsg{Status: status, Err: err}
	}
}

// startJob creates a command that starts a job for hubID
func startJob(client *APIClient, hubID string, target int) tea.Cmd {
	return func() tea.Msg {
		ctx, cancel := context.WithTimeout(context.Background(), requestTimeout)
		defer cancel()
		jobID, err := client.StartJob(ctx, types.JobRequest{HubID: hubID, Target: target})
		return JobStartedMsg{JobID: jobID, Err: err}
	}
}

// stopJob creates a command that signals the job's stop token
func stopJob(client *APIClient, jobID string) tea.Cmd {
	return func() tea.Msg {
		ctx, cancel := context.WithTimeout(context.Background(), requestTimeout)
		defer cancel()
		return JobStoppedMsg{Err: client.CancelJob(ctx, jobID)}
	}
}

// expandNode creates a command requesting follow-up items of nodeID
func expandNode(client *APIClient, nodeID string) tea.Cmd {
	return func() tea.Msg {
		ctx, cancel := context.WithTimeout(context.Background(), expandTimeout)
		defer cancel()
		items, err := client.ExpandNode(ctx, nodeID)
		return ExpandedMsg{NodeID: nodeID, Items: items, Err: err}
	}
}

// tickCmd creates a command that ticks every interval for polling
func tickCmd(interval time.Duration) tea.Cmd {
	return tea.Tick(interval, func(t time.Time) tea.Msg {
		return TickMsg{Time: t}
	})
}
