package engine

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNewGrid(t *testing.T) {
	for _, dims := range [][2]int{{0, 1}, {1, 0}, {-3, 4}} {
		_, err := NewGrid(dims[0], dims[1])
		assert.ErrorIs(t, err, ErrInvalidDimensions)
	}

	g, err := NewGrid(2, 3)
	require.NoError(t, err)
	assert.Equal(t, 2, g.Rows())
	assert.Equal(t, 3, g.Cols())

	open, blocking, unset := g.Counts()
	assert.Equal(t, 0, open)
	assert.Equal(t, 0, blocking)
	assert.Equal(t, 6, unset)
}

func TestGridPlaceAndGet(t *testing.T) {
	g, err := NewGrid(2, 2)
	require.NoError(t, err)

	wall := CellFor(KindBlocking)
	assert.True(t, g.Place(1, 0, &wall))
	assert.False(t, g.Place(2, 0, &wall))
	assert.False(t, g.Place(0, -1, &wall))

	// the grid keeps its own copy
	wall.Blocking = false
	cell, ok := g.Get(1, 0)
	require.True(t, ok)
	assert.True(t, cell.Blocking)

	_, ok = g.Get(0, 0)
	assert.False(t, ok, "unset cell")
	_, ok = g.Get(5, 5)
	assert.False(t, ok, "out of bounds")

	assert.True(t, g.Place(1, 0, nil))
	_, ok = g.Get(1, 0)
	assert.False(t, ok, "cleared cell")
}

func TestGridIsBlocked(t *testing.T) {
	g := mustDecode(t, "3X1\n1E 1O 1E")
	g.Place(0, 2, nil)

	for _, tc := range []struct {
		name    string
		row     int
		col     int
		blocked bool
	}{
		{"open cell", 0, 0, false},
		{"blocking cell", 0, 1, true},
		{"unset cell", 0, 2, false},
		{"above the grid", -1, 0, true},
		{"below the grid", 1, 0, true},
		{"left of the grid", 0, -1, true},
		{"right of the grid", 0, 3, true},
	} {
		t.Run(tc.name, func(t *testing.T) {
			assert.Equal(t, tc.blocked, g.IsBlocked(tc.row, tc.col))
		})
	}
}

func TestGridCloneIsIndependent(t *testing.T) {
	g := mustDecode(t, roomDoc)
	clone := g.Clone()
	require.True(t, g.SameTopology(clone))

	open := CellFor(KindOpen)
	clone.Place(0, 0, &open)

	assert.True(t, g.IsBlocked(0, 0))
	assert.False(t, clone.IsBlocked(0, 0))
	assert.False(t, g.SameTopology(clone))
}

func TestGridSameTopology(t *testing.T) {
	a := mustDecode(t, "2X1\n1E 1O")
	b := NewCodec(WithKind('W', true))
	other, err := b.Decode("2X1\n1E 1W")
	require.NoError(t, err)

	assert.True(t, a.SameTopology(other), "kind letters are ignored")
	assert.False(t, a.SameTopology(nil))
	assert.False(t, a.SameTopology(mustDecode(t, "1X2\n1E 1O")))
}

func TestGridEachAndCounts(t *testing.T) {
	g := mustDecode(t, roomDoc)
	g.Place(0, 0, nil)

	var visited []Position
	g.Each(func(row, col int, cell TileCell, ok bool) {
		visited = append(visited, Position{Row: row, Col: col})
		if row == 0 && col == 0 {
			assert.False(t, ok)
		}
	})
	require.Len(t, visited, 9)
	assert.Equal(t, Position{Row: 0, Col: 1}, visited[1], "row-major order")
	assert.Equal(t, Position{Row: 2, Col: 2}, visited[8])

	open, blocking, unset := g.Counts()
	assert.Equal(t, 1, open)
	assert.Equal(t, 7, blocking)
	assert.Equal(t, 1, unset)
}

func TestKindText(t *testing.T) {
	text, err := KindBlocking.MarshalText()
	require.NoError(t, err)
	assert.Equal(t, "O", string(text))

	var k Kind
	require.NoError(t, k.UnmarshalText([]byte("W")))
	assert.Equal(t, Kind('W'), k)
	assert.Error(t, k.UnmarshalText([]byte("WW")))
}
