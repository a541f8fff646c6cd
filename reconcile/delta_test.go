package reconcile

import (
	"testing"

	"hubgraph/types"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestExtractDelta(t *testing.T) {
	cases := []struct {
		name       string
		cursor     int
		snapshot   []types.Item
		wantIDs    []string
		wantCursor int
	}{
		{"first poll", 0, items("A", "B"), []string{"A", "B"}, 2},
		{"appended items", 2, items("A", "B", "C", "D", "E"), []string{"C", "D", "E"}, 5},
		{"nothing new", 3, items("A", "B", "C"), nil, 3},
		{"empty source", 0, nil, nil, 0},
		{"negative cursor treated as zero", -4, items("A"), []string{"A"}, 1},
	}

	for _, c := range cases {
		t.Run(c.name, func(t *testing.T) {
			delta, next, err := ExtractDelta(c.cursor, c.snapshot, ShrinkAbort)
			require.NoError(t, err)
			assert.Equal(t, c.wantCursor, next)

			var got []string
			for _, it := range delta {
				got = append(got, it.ID)
			}
			assert.Equal(t, c.wantIDs, got)
		})
	}
}

func TestExtractDeltaShrinkAbort(t *testing.T) {
	delta, next, err := ExtractDelta(3, items("A", "B"), ShrinkAbort)
	require.Error(t, err)
	assert.ErrorIs(t, err, ErrSourceShrank)
	assert.ErrorIs(t, err, types.ErrSourceProtocol)
	assert.Empty(t, delta)
	assert.Equal(t, 3, next)
}

func TestExtractDeltaShrinkClamp(t *testing.T) {
	delta, next, err := ExtractDelta(3, items("A", "B"), ShrinkClamp)
	require.NoError(t, err)
	assert.Empty(t, delta)
	assert.Equal(t, 3, next, "cursor must not move backwards")
}

func TestExtractDeltaDoesNotAlias(t *testing.T) {
	snapshot := items("A", "B", "C")
	delta, _, err := ExtractDelta(1, snapshot, ShrinkAbort)
	require.NoError(t, err)

	delta[0].Title = "changed"
	assert.Equal(t, "Title B", snapshot[1].Title)
}

func TestParseShrinkPolicy(t *testing.T) {
	p, err := ParseShrinkPolicy("")
	require.NoError(t, err)
	assert.Equal(t, ShrinkAbort, p)

	p, err = ParseShrinkPolicy(" Clamp ")
	require.NoError(t, err)
	assert.Equal(t, ShrinkClamp, p)

	_, err = ParseShrinkPolicy("ignore")
	assert.Error(t, err)
}
