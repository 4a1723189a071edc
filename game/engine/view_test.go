package engine

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestRender(t *testing.T) {
	g := mustDecode(t, roomDoc)
	assert.Equal(t, "O O O\nO @ O\nO O O\n", Render(g, &Actor{Row: 1, Col: 1}))
	assert.Equal(t, "O O O\nO E O\nO O O\n", Render(g, nil))
}

func TestLayoutShowsUnsetCells(t *testing.T) {
	g, err := NewGrid(1, 2)
	require.NoError(t, err)
	wall := CellFor(KindBlocking)
	g.Place(0, 1, &wall)
	assert.Equal(t, []string{".O"}, Layout(g))
}

func TestLocalView(t *testing.T) {
	g := mustDecode(t, "2X2\n1E 1O 2E")
	view := LocalView(g, Actor{Row: 0, Col: 0})
	require.Len(t, view, 8)

	// clockwise from north
	assert.Equal(t, SurroundingCell{Row: -1, Col: 0, Kind: "#", Blocking: true}, view[0])
	assert.Equal(t, SurroundingCell{Row: 0, Col: 1, Kind: "O", Blocking: true}, view[2])
	assert.Equal(t, SurroundingCell{Row: 1, Col: 1, Kind: "E", Blocking: false}, view[3])
	assert.Equal(t, SurroundingCell{Row: 1, Col: 0, Kind: "E", Blocking: false}, view[4])

	assert.Equal(t, []string{"###", "#@O", "#EE"}, LocalView3x3(g, Actor{}))
}
