package reconcile

import (
	"sync"
	"time"

	"hubgraph/types"
)

// Session is the reconciliation state of one hub: the slot pool, the consumed ids held by the
// pool, and the positional cursor into the source's cumulative list.
type Session struct {
	hubID  string
	target int
	policy ShrinkPolicy
	pool   *Pool

	mu     sync.Mutex
	cursor int
}

// NewSession creates a session with target empty slots
func NewSession(hubID string, target int, policy ShrinkPolicy) *Session {
	if policy == "" {
		policy = ShrinkAbort
	}
	return &Session{
		hubID:  hubID,
		target: target,
		policy: policy,
		pool:   NewPool(target),
	}
}

// HubID returns the hub this session reconciles
func (s *Session) HubID() string { return s.hubID }

// Target returns the number of items the session waits for
func (s *Session) Target() int { return s.target }

// Pool returns the session's slot pool for read access
func (s *Session) Pool() *Pool { return s.pool }

// Cursor returns the length of the last accepted cumulative snapshot
func (s *Session) Cursor() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.cursor
}

// Apply feeds a cumulative snapshot through delta extraction and slot assignment and
// returns the number of slots filled. Applying the same snapshot again fills nothing.
func (s *Session) Apply(snapshot []types.Item) (int, error) {
	delta, err := s.advance(snapshot)
	if err != nil {
		return 0, err
	}
	return s.pool.Assign(delta), nil
}

// advance extracts the delta and moves the cursor; the cursor is left untouched on error
func (s *Session) advance(snapshot []types.Item) ([]types.Item, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	delta, next, err := ExtractDelta(s.cursor, snapshot, s.policy)
	if err != nil {
		return nil, err
	}
	s.cursor = next
	return delta, nil
}

// Complete reports whether the target count has been reached
func (s *Session) Complete() bool {
	return s.pool.Filled() >= s.target
}

// Snapshot returns a copy of the session's current pool state
func (s *Session) Snapshot() types.PoolSnapshot {
	slots := s.pool.Slots()
	filled := 0
	for _, slot := range slots {
		if slot.Filled() {
			filled++
		}
	}
	return types.PoolSnapshot{
		HubID:   s.hubID,
		Cursor:  s.Cursor(),
		Size:    len(slots),
		Filled:  filled,
		Dropped: s.pool.Dropped(),
		Slots:   slots,
		TakenAt: time.Now(),
	}
}
