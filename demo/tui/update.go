package tui

import (
	"fmt"

	"hubgraph/types"

	tea "github.com/charmbracelet/bubbletea"
)

// Update implements tea.Model interface
func (m Model) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.KeyMsg:
		return m.handleKeyPress(msg)
	case StatusUpdateMsg:
		return m.handleStatusUpdate(msg)
	case TickMsg:
		return m.handleTick()
	case JobStartedMsg:
		return m.handleJobStarted(msg)
	case JobStoppedMsg:
		return m.handleJobStopped(msg)
	case ExpandedMsg:
		return m.handleExpanded(msg)
	}
	return m, nil
}

// handleKeyPress processes keyboard input
func (m Model) handleKeyPress(msg tea.KeyMsg) (tea.Model, tea.Cmd) {
	switch msg.String() {
	case "ctrl+c", "q":
		return m, tea.Quit
	case "left", "h":
		if m.Selected > 0 {
			m.Selected--
		}
	case "right", "l":
		if m.Selected < len(m.slots())-1 {
			m.Selected++
		}
	case "x", "X":
		if m.JobID != "" && !m.done() {
			m.Notice = "Stopping job..."
			return m, stopJob(m.Client, m.JobID)
		}
	case "e", "E":
		slot, ok := m.selectedSlot()
		if !ok || !slot.Filled() || slot.Item == nil {
			m.Notice = "Select a filled node to expand"
			return m, nil
		}
		m.Notice = fmt.Sprintf("Expanding %s...", slot.Item.Title)
		return m, expandNode(m.Client, slot.Item.ID)
	}
	return m, nil
}

// handleStatusUpdate syncs local state from the API
func (m Model) handleStatusUpdate(msg StatusUpdateMsg) (tea.Model, tea.Cmd) {
	if msg.Err != nil {
		m.Connected = false
		m.Err = msg.Err
		return m, nil
	}
	m.Connected = true
	m.Err = nil
	m.Status = msg.Status
	if n := len(m.slots()); m.Selected >= n && n > 0 {
		m.Selected = n - 1
	}
	return m, nil
}

// handleTick polls again until the job has terminated
func (m Model) handleTick() (tea.Model, tea.Cmd) {
	if m.JobID == "" || m.done() {
		return m, nil
	}
	return m, tea.Batch(pollStatus(m.Client, m.JobID), tickCmd(m.PollInterval))
}

func (m Model) handleJobStarted(msg JobStartedMsg) (tea.Model, tea.Cmd) {
	if msg.Err != nil {
		m.Err = msg.Err
		return m, nil
	}
	m.JobID = msg.JobID
	m.Connected = true
	return m, tea.Batch(pollStatus(m.Client, m.JobID), tickCmd(m.PollInterval))
}

func (m Model) handleJobStopped(msg JobStoppedMsg) (tea.Model, tea.Cmd) {
	if msg.Err != nil {
		m.Err = msg.Err
		return m, nil
	}
	m.Notice = "Stop requested, finishing the current poll"
	return m, nil
}

func (m Model) handleExpanded(msg ExpandedMsg) (tea.Model, tea.Cmd) {
	if msg.Err != nil {
		m.Err = msg.Err
		m.Notice = ""
		return m, nil
	}
	expanded := make(map[string][]types.Item, len(m.Expanded)+1)
	for k, v := range m.Expanded {
		expanded[k] = v
	}
	expanded[msg.NodeID] = msg.Items
	m.Expanded = expanded
	m.Notice = fmt.Sprintf("Node expanded into %d follow-ups", len(msg.Items))
	return m, nil
}
