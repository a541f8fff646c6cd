package reconcile

import (
	"errors"
	"fmt"
	"strings"

	"hubgraph/types"
)

// ErrSourceShrank is returned when a snapshot is shorter than the cursor under ShrinkAbort
var ErrSourceShrank = fmt.Errorf("%w: cumulative snapshot shrank", types.ErrSourceProtocol)

// ShrinkPolicy decides what happens when the source returns fewer items than already seen
type ShrinkPolicy string

const (
	// ShrinkAbort treats a shorter snapshot as a protocol error and ends the job
	ShrinkAbort ShrinkPolicy = "abort"
	// ShrinkClamp treats a shorter snapshot as carrying no new items and keeps the cursor
	ShrinkClamp ShrinkPolicy = "clamp"
)

// ParseShrinkPolicy maps a config string to a policy; empty means ShrinkAbort
func ParseShrinkPolicy(s string) (ShrinkPolicy, error) {
	switch ShrinkPolicy(strings.ToLower(strings.TrimSpace(s))) {
	case "", ShrinkAbort:
		return ShrinkAbort, nil
	case ShrinkClamp:
		return ShrinkClamp, nil
	default:
		return "", errors.New("unknown shrink policy " + s)
	}
}

// ExtractDelta returns the items appended after position cursor and the advanced cursor.
// The returned slice never aliases snapshot.
func ExtractDelta(cursor int, snapshot []types.Item, policy ShrinkPolicy) ([]types.Item, int, error) {
	if cursor < 0 {
		cursor = 0
	}
	if len(snapshot) < cursor {
		if policy == ShrinkClamp {
			return nil, cursor, nil
		}
		return nil, cursor, fmt.Errorf("%w: have %d items, source now reports %d", ErrSourceShrank, cursor, len(snapshot))
	}
	if len(snapshot) == cursor {
		return nil, cursor, nil
	}

	delta := make([]types.Item, len(snapshot)-cursor)
	copy(delta, snapshot[cursor:])
	return delta, len(snapshot), nil
}
