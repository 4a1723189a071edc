package engine

import (
	"errors"
	"fmt"
)

// ErrInvalidDimensions is returned by NewGrid when either side is not positive.
var ErrInvalidDimensions = errors.New("invalid grid dimensions")

// Grid is a fixed-size rows x cols map of optional tiles, stored row-major.
// A nil entry is an unset cell, which counts as walkable.
type Grid struct {
	rows  int
	cols  int
	cells []*TileCell
}

// NewGrid creates an empty grid. Dimensions cannot change afterwards.
func NewGrid(rows, cols int) (*Grid, error) {
	if rows <= 0 || cols <= 0 {
		return nil, fmt.Errorf("%w: %dx%d", ErrInvalidDimensions, rows, cols)
	}
	return &Grid{
		rows:  rows,
		cols:  cols,
		cells: make([]*TileCell, rows*cols),
	}, nil
}

// Rows returns the grid height
func (g *Grid) Rows() int { return g.rows }

// Cols returns the grid width
func (g *Grid) Cols() int { return g.cols }

// InBounds reports whether (row, col) addresses a cell of the grid
func (g *Grid) InBounds(row, col int) bool {
	return row >= 0 && row < g.rows && col >= 0 && col < g.cols
}

// Place overwrites the cell at (row, col); a nil cell clears it.
// Out-of-bounds positions are left alone and reported with false.
func (g *Grid) Place(row, col int, cell *TileCell) bool {
	if !g.InBounds(row, col) {
		return false
	}
	if cell == nil {
		g.cells[row*g.cols+col] = nil
		return true
	}
	c := *cell
	g.cells[row*g.cols+col] = &c
	return true
}

// Get returns the cell at (row, col). The boolean is false both for
// out-of-bounds positions and for unset cells; use InBounds to tell them apart.
func (g *Grid) Get(row, col int) (TileCell, bool) {
	if !g.InBounds(row, col) {
		return TileCell{}, false
	}
	c := g.cells[row*g.cols+col]
	if c == nil {
		return TileCell{}, false
	}
	return *c, true
}

// IsBlocked reports whether an actor may not stand on (row, col).
// Anything outside the grid is blocked; unset cells are open.
func (g *Grid) IsBlocked(row, col int) bool {
	if !g.InBounds(row, col) {
		return true
	}
	c := g.cells[row*g.cols+col]
	return c != nil && c.Blocking
}

// Each calls fn for every position in row-major order. ok is false for unset cells.
func (g *Grid) Each(fn func(row, col int, cell TileCell, ok bool)) {
	for i, c := range g.cells {
		row, col := i/g.cols, i%g.cols
		if c == nil {
			fn(row, col, TileCell{}, false)
			continue
		}
		fn(row, col, *c, true)
	}
}

// Clone returns a deep copy of the grid
func (g *Grid) Clone() *Grid {
	out := &Grid{rows: g.rows, cols: g.cols, cells: make([]*TileCell, len(g.cells))}
	for i, c := range g.cells {
		if c != nil {
			cp := *c
			out.cells[i] = &cp
		}
	}
	return out
}

// SameTopology reports whether both grids have the same shape and the same
// blocked/walkable layout. Kind letters are ignored.
func (g *Grid) SameTopology(other *Grid) bool {
	if other == nil || g.rows != other.rows || g.cols != other.cols {
		return false
	}
	for row := 0; row < g.rows; row++ {
		for col := 0; col < g.cols; col++ {
			if g.IsBlocked(row, col) != other.IsBlocked(row, col) {
				return false
			}
		}
	}
	return true
}

// Counts returns how many cells are open, blocking and unset
func (g *Grid) Counts() (open, blocking, unset int) {
	for _, c := range g.cells {
		switch {
		case c == nil:
			unset++
		case c.Blocking:
			blocking++
		default:
			open++
		}
	}
	return open, blocking, unset
}
