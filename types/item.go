package types

import "time"

// Item is a single generated node as reported by the hub nodes endpoint
type Item struct {
	ID           string     `json:"id"`
	Title        string     `json:"title"`
	Text         string     `json:"text"`
	Prompt       string     `json:"prompt,omitempty"`
	ThreadID     string     `json:"thread_id"`
	ParentNodeID *string    `json:"parent_node_id"`
	Images       []Image    `json:"images"`
	Questions    []Question `json:"questions"`
}

// Image references a rendered plot attached to an item
type Image struct {
	ID  string `json:"id"`
	URL string `json:"url"`
}

// Question is a suggested follow-up prompt for an item
type Question struct {
	ID      string `json:"id"`
	Content string `json:"content"`
}

// SessionResponse is returned by the upstream session start endpoint
type SessionResponse struct {
	Session string `json:"session"`
	Hub     string `json:"hub"`
}

// SlotState is the fill state of a placeholder slot
type SlotState string

const (
	SlotEmpty  SlotState = "empty"
	SlotFilled SlotState = "filled"
)

// Slot is a placeholder position reserved for exactly one item
type Slot struct {
	Index    int       `json:"index"`
	ID       string    `json:"id"`
	State    SlotState `json:"state"`
	Item     *Item     `json:"item,omitempty"`
	FilledAt time.Time `json:"filled_at,omitempty"`
}

// Filled reports whether the slot has been bound to an item
func (s Slot) Filled() bool {
	return s.State == SlotFilled
}

// PoolSnapshot is a point-in-time copy of a job's slot pool
type PoolSnapshot struct {
	HubID   string    `json:"hub_id"`
	Cursor  int       `json:"cursor"`
	Size    int       `json:"size"`
	Filled  int       `json:"filled"`
	Dropped int       `json:"dropped"`
	Slots   []Slot    `json:"slots"`
	TakenAt time.Time `json:"taken_at"`
}

// Clone returns a copy of the item that shares no slices with the original
func (i Item) Clone() Item {
	out := i
	if i.ParentNodeID != nil {
		parent := *i.ParentNodeID
		out.ParentNodeID = &parent
	}
	if i.Images != nil {
		out.Images = append([]Image(nil), i.Images...)
	}
	if i.Questions != nil {
		out.Questions = append([]Question(nil), i.Questions...)
	}
	return out
}
