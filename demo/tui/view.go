package tui

import (
	"fmt"
	"strings"

	"hubgraph/types"

	"github.com/charmbracelet/lipgloss"
)

const maxVisibleLogs = 8

// View implements tea.Model interface
func (m Model) View() string {
	var b strings.Builder

	// Title
	b.WriteString(TitleStyle.Render(TextTitle))
	b.WriteString("\n")

	// Current state
	b.WriteString(m.getStateText())
	b.WriteString("\n\n")

	if m.Status != nil {
		b.WriteString(HubStyle.Render("Hub " + m.Status.HubID))
		b.WriteString("\n")
		b.WriteString(m.renderSlots())
		b.WriteString("\n")

		if details := m.renderSelected(); details != "" {
			b.WriteString(BoxStyle.Render(details))
			b.WriteString("\n")
		}

		// Logs
		if logs := m.Status.Logs; len(logs) > 0 {
			b.WriteString(InfoStyle.Render("📝 Recent Activity:"))
			b.WriteString("\n")
			if len(logs) > maxVisibleLogs {
				logs = logs[len(logs)-maxVisibleLogs:]
			}
			for _, entry := range logs {
				line := fmt.Sprintf("   %s %s", entry.Timestamp.Format("15:04:05"), entry.Message)
				b.WriteString(InfoStyle.Render(line))
				b.WriteString("\n")
			}
			b.WriteString("\n")
		}
	}

	if m.Notice != "" {
		b.WriteString(StatusStyle.Render(m.Notice))
		b.WriteString("\n")
	}
	if m.Err != nil {
		b.WriteString(ErrorStyle.Render("Error: " + m.Err.Error()))
		b.WriteString("\n")
	}

	// Help text
	if m.done() {
		b.WriteString(HighlightStyle.Render(TextFooterDone))
	} else {
		b.WriteString(InfoStyle.Render(TextFooterRunning))
	}

	return b.String()
}

// renderSlots draws one box per slot, placeholders until the slot is filled
func (m Model) renderSlots() string {
	slots := m.slots()
	boxes := make([]string, 0, len(slots))
	for i, slot := range slots {
		boxes = append(boxes, m.renderSlot(i, slot))
	}
	return lipgloss.JoinHorizontal(lipgloss.Top, boxes...)
}

func (m Model) renderSlot(i int, slot types.Slot) string {
	if !slot.Filled() || slot.Item == nil {
		style := EmptySlotStyle
		if i == m.Selected {
			style = style.BorderForeground(hubColor)
		}
		return style.Render(slot.ID + "\n" + TextPlaceholder)
	}

	style := FilledSlotStyle
	if i == m.Selected {
		style = SelectedSlotStyle
	}
	title := truncate(slot.Item.Title, slotWidth-2)
	if n := len(m.Expanded[slot.Item.ID]); n > 0 {
		title += fmt.Sprintf(" (+%d)", n)
	}
	return style.Render(slot.ID + "\n" + title)
}

// renderSelected shows the text and follow-ups of the highlighted node
func (m Model) renderSelected() string {
	slot, ok := m.selectedSlot()
	if !ok || !slot.Filled() || slot.Item == nil {
		return ""
	}
	item := slot.Item

	var b strings.Builder
	b.WriteString(HighlightStyle.Render(item.Title))
	b.WriteString("\n\n")
	b.WriteString(truncate(item.Text, 400))
	b.WriteString("\n")

	if len(item.Images) > 0 {
		b.WriteString(InfoStyle.Render(fmt.Sprintf("\n🖼  %d plot(s)", len(item.Images))))
		b.WriteString("\n")
	}
	for _, q := range item.Questions {
		b.WriteString(InfoStyle.Render("  ? " + q.Content))
		b.WriteString("\n")
	}
	for _, child := range m.Expanded[item.ID] {
		b.WriteString(StatusStyle.Render("  ↳ " + child.Title))
		b.WriteString("\n")
	}
	return strings.TrimRight(b.String(), "\n")
}

// truncate shortens s to at most n runes
func truncate(s string, n int) string {
	r := []rune(s)
	if len(r) <= n {
		return s
	}
	if n <= 3 {
		return string(r[:n])
	}
	return string(r[:n-3]) + "..."
}
