package tui

import (
	"fmt"
	"time"

	"hubgraph/types"

	tea "github.com/charmbracelet/bubbletea"
)

// Model represents the TUI client state (thin client over the hubgraph API)
type Model struct {
	Client       *APIClient
	PollInterval time.Duration

	// Job being watched; when JobID is empty a job is started for HubID
	JobID  string
	HubID  string
	Target int

	// Local UI state (synced from the API)
	Status    *types.JobStatus
	Selected  int
	Expanded  map[string][]types.Item
	Notice    string
	Err       error
	Connected bool
}

// NewModel creates a new TUI model
func NewModel(apiURL, jobID, hubID string, target int) Model {
	return Model{
		Client:       NewAPIClient(apiURL),
		PollInterval: 500 * time.Millisecond,
		JobID:        jobID,
		HubID:        hubID,
		Target:       target,
		Expanded:     make(map[string][]types.Item),
	}
}

// Init implements tea.Model interface
func (m Model) Init() tea.Cmd {
	if m.JobID == "" {
		return startJob(m.Client, m.HubID, m.Target)
	}
	// Start polling immediately
	return tea.Batch(
		pollStatus(m.Client, m.JobID),
		tickCmd(m.PollInterval),
	)
}

// slots returns the slots of the last status, if any
func (m Model) slots() []types.Slot {
	if m.Status == nil || m.Status.Snapshot == nil {
		return nil
	}
	return m.Status.Snapshot.Slots
}

// selectedSlot returns the highlighted slot
func (m Model) selectedSlot() (types.Slot, bool) {
	slots := m.slots()
	if m.Selected < 0 || m.Selected >= len(slots) {
		return types.Slot{}, false
	}
	return slots[m.Selected], true
}

// done reports whether the watched job has terminated
func (m Model) done() bool {
	return m.Status != nil && m.Status.Terminated()
}

// getStateText returns the appropriate state message
func (m Model) getStateText() string {
	if m.JobID == "" {
		return StatusStyle.Render(fmt.Sprintf("⏳ Starting job for hub %s...", m.HubID))
	}
	if !m.Connected {
		return ErrorStyle.Render("❌ Not connected to hubgraph API")
	}
	if m.Status == nil {
		return StatusStyle.Render("⏳ Waiting for status...")
	}

	st := m.Status
	filled, size := 0, st.Target
	if st.Snapshot != nil {
		filled, size = st.Snapshot.Filled, st.Snapshot.Size
	}

	switch st.Outcome {
	case types.OutcomeSuccess:
		return HighlightStyle.Render(fmt.Sprintf("✅ COMPLETE: %d/%d nodes after %d polls", filled, size, st.Ticks))
	case types.OutcomeAborted:
		return ErrorStyle.Render(fmt.Sprintf("⚠️  Stopped early (%d/%d nodes): %s", filled, size, st.Error))
	default:
		return StatusStyle.Render(fmt.Sprintf("🔄 %s: %d/%d nodes, poll #%d", st.State, filled, size, st.Ticks))
	}
}
