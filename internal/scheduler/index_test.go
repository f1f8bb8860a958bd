package scheduler

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestBuildIndex(t *testing.T) {
	g := NewGrid(DefaultLayout())
	mustPlace(t, g, monday, slot7, newAssignment("CS101", "A101", "F1", "CSE-7A"))
	mustPlace(t, g, tuesday, slot8, newAssignment("CS102", "A101", "F2", "CSE-7A"))

	idx := BuildIndex(g)

	assert.Equal(t, 2, idx.Len())
	assert.True(t, idx.RoomOccupied("A101", monday, slot7))
	assert.True(t, idx.FacultyOccupied("F2", tuesday, slot8))
	assert.False(t, idx.FacultyOccupied("F2", monday, slot7))
	assert.Equal(t, []CellKey{{Day: monday, Slot: slot7}, {Day: tuesday, Slot: slot8}}, idx.RoomCells("A101"))
	assert.Equal(t, "CS101", idx.At(monday, slot7).CourseCode)
	assert.True(t, idx.Consistent(g))
}

func TestIndexUpdateMatchesRebuild(t *testing.T) {
	g := NewGrid(DefaultLayout())
	idx := BuildIndex(g)

	first := newAssignment("CS101", "A101", "F1", "CSE-7A")
	prev, err := g.Set(monday, slot7, first)
	require.NoError(t, err)
	idx.Update(monday, slot7, prev, first)
	assert.True(t, idx.Equal(BuildIndex(g)))

	replacement := newAssignment("CS101", "B201", "F3", "CSE-7A")
	prev, err = g.Set(monday, slot7, replacement)
	require.NoError(t, err)
	idx.Update(monday, slot7, prev, replacement)
	assert.True(t, idx.Equal(BuildIndex(g)))
	assert.False(t, idx.RoomOccupied("A101", monday, slot7))
	assert.Empty(t, idx.FacultyCells("F1"))

	prev, err = g.Clear(monday, slot7)
	require.NoError(t, err)
	idx.Update(monday, slot7, prev, nil)
	assert.Zero(t, idx.Len())
	assert.True(t, idx.Consistent(g))
}

func TestIndexRebuildIsIdempotent(t *testing.T) {
	g := NewGrid(DefaultLayout())
	mustPlace(t, g, monday, slot7, newAssignment("CS101", "A101", "F1", "CSE-7A"))

	assert.True(t, BuildIndex(g).Equal(BuildIndex(g)))
}

func TestIndexDetectsStaleState(t *testing.T) {
	g := NewGrid(DefaultLayout())
	idx := BuildIndex(g)

	mustPlace(t, g, monday, slot7, newAssignment("CS101", "A101", "F1", "CSE-7A"))

	assert.False(t, idx.Consistent(g))
	assert.True(t, BuildIndex(g).Consistent(g))
}
