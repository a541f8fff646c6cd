package reconcile

import (
	"fmt"
	"sync"
	"time"

	"hubgraph/types"
)

// SlotID names the i-th placeholder (zero-based) the way the dashboard does: node-1, node-2, ...
func SlotID(i int) string {
	return fmt.Sprintf("node-%d", i+1)
}

// Pool is a fixed-size, ordered set of placeholder slots together with the set of item ids
// already bound to them. Both are guarded by one mutex so that scanning for empty slots,
// pairing, marking filled and recording the id happen as a single step.
type Pool struct {
	mu       sync.RWMutex
	slots    []types.Slot
	consumed map[string]struct{}
	filled   int
	dropped  int

	now func() time.Time
}

// NewPool creates a pool of size empty slots
func NewPool(size int) *Pool {
	if size < 0 {
		size = 0
	}
	slots := make([]types.Slot, size)
	for i := range slots {
		slots[i] = types.Slot{Index: i, ID: SlotID(i), State: types.SlotEmpty}
	}
	return &Pool{
		slots:    slots,
		consumed: make(map[string]struct{}, size),
		now:      time.Now,
	}
}

// Assign binds unconsumed items from delta to empty slots, first empty slot to first
// unconsumed item, and returns how many slots were filled. Unconsumed items left over once
// the pool has no empty slot are dropped and counted; they are not kept for a later call.
func (p *Pool) Assign(delta []types.Item) int {
	if len(delta) == 0 {
		return 0
	}

	p.mu.Lock()
	defer p.mu.Unlock()

	empty := make([]int, 0, len(p.slots)-p.filled)
	for i := range p.slots {
		if !p.slots[i].Filled() {
			empty = append(empty, i)
		}
	}

	filled := 0
	for _, item := range delta {
		if _, seen := p.consumed[item.ID]; seen {
			continue
		}
		if filled == len(empty) {
			p.dropped++
			// record so a repeated delta does not count the same drop twice
			p.consumed[item.ID] = struct{}{}
			continue
		}

		bound := item.Clone()
		slot := &p.slots[empty[filled]]
		slot.State = types.SlotFilled
		slot.Item = &bound
		slot.FilledAt = p.now()
		p.consumed[item.ID] = struct{}{}
		filled++
	}

	p.filled += filled
	return filled
}

// Size returns the number of slots
func (p *Pool) Size() int {
	return len(p.slots)
}

// Filled returns the number of filled slots
func (p *Pool) Filled() int {
	p.mu.RLock()
	defer p.mu.RUnlock()
	return p.filled
}

// Dropped returns how many distinct items arrived while no empty slot was left
func (p *Pool) Dropped() int {
	p.mu.RLock()
	defer p.mu.RUnlock()
	return p.dropped
}

// Consumed reports whether an item id has already been seen by Assign
func (p *Pool) Consumed(id string) bool {
	p.mu.RLock()
	defer p.mu.RUnlock()
	_, ok := p.consumed[id]
	return ok
}

// Slots returns a copy of all slots in creation order
func (p *Pool) Slots() []types.Slot {
	p.mu.RLock()
	defer p.mu.RUnlock()

	out := make([]types.Slot, len(p.slots))
	for i, s := range p.slots {
		out[i] = s
		if s.Item != nil {
			item := s.Item.Clone()
			out[i].Item = &item
		}
	}
	return out
}
