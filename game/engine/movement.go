package engine

import (
	"fmt"
	"strings"
)

// MoveResult is the outcome of one movement attempt
type MoveResult int

const (
	NoInput MoveResult = iota
	Moved
	BlockedBoundary
	BlockedObstacle
)

func (r MoveResult) String() string {
	switch r {
	case NoInput:
		return "no_input"
	case Moved:
		return "moved"
	case BlockedBoundary:
		return "blocked_boundary"
	case BlockedObstacle:
		return "blocked_obstacle"
	}
	return fmt.Sprintf("move_result(%d)", int(r))
}

// MarshalText encodes the result by name
func (r MoveResult) MarshalText() ([]byte, error) {
	return []byte(r.String()), nil
}

// UnmarshalText decodes a result name
func (r *MoveResult) UnmarshalText(text []byte) error {
	for _, candidate := range []MoveResult{NoInput, Moved, BlockedBoundary, BlockedObstacle} {
		if candidate.String() == string(text) {
			*r = candidate
			return nil
		}
	}
	return fmt.Errorf("unknown move result %q", text)
}

// Direction is a per-axis step, each component in -1..1
type Direction struct {
	DRow int `json:"d_row"`
	DCol int `json:"d_col"`
}

// IsZero reports whether the direction moves nowhere
func (d Direction) IsZero() bool { return d.DRow == 0 && d.DCol == 0 }

func (d Direction) String() string {
	var parts []string
	switch d.DRow {
	case -1:
		parts = append(parts, "up")
	case 1:
		parts = append(parts, "down")
	}
	switch d.DCol {
	case -1:
		parts = append(parts, "left")
	case 1:
		parts = append(parts, "right")
	}
	if len(parts) == 0 {
		return "none"
	}
	return strings.Join(parts, "-")
}

// ParseDirection accepts "up", "down-left", "w", "up+right" and similar
func ParseDirection(s string) (Direction, error) {
	s = strings.ToLower(strings.TrimSpace(s))
	if s == "" {
		return Direction{}, fmt.Errorf("empty direction")
	}
	var keys []Key
	for _, part := range strings.FieldsFunc(s, func(r rune) bool { return r == '-' || r == '+' || r == ' ' }) {
		k, err := ParseKey(part)
		if err != nil {
			return Direction{}, fmt.Errorf("invalid direction %q: %w", s, err)
		}
		keys = append(keys, k)
	}
	return OppositeCancel.Direction(SnapshotOf(keys...)), nil
}

// OppositeKeys decides what happens when both keys of an axis are held
type OppositeKeys int

const (
	// OppositePrecedence lets Up win over Down and Left win over Right.
	OppositePrecedence OppositeKeys = iota
	// OppositeCancel makes opposite keys cancel out on their axis.
	OppositeCancel
)

// Direction derives the per-axis step from a key snapshot. The two axes are
// independent, so diagonal steps are possible.
func (p OppositeKeys) Direction(keys KeySnapshot) Direction {
	var d Direction
	if p == OppositeCancel {
		d.DRow = axis(keys.Up, keys.Down)
		d.DCol = axis(keys.Left, keys.Right)
		return d
	}

	if keys.Up {
		d.DRow = -1
	} else if keys.Down {
		d.DRow = 1
	}
	if keys.Left {
		d.DCol = -1
	} else if keys.Right {
		d.DCol = 1
	}
	return d
}

func axis(neg, pos bool) int {
	switch {
	case neg && !pos:
		return -1
	case pos && !neg:
		return 1
	}
	return 0
}

// MovementEngine validates and commits one step per tick. It keeps no state
// between calls and never touches the grid.
type MovementEngine struct {
	opposite OppositeKeys
}

// MovementOption configures a MovementEngine
type MovementOption func(*MovementEngine)

// WithOppositeKeys picks the rule for simultaneously held opposite keys
func WithOppositeKeys(p OppositeKeys) MovementOption {
	return func(m *MovementEngine) { m.opposite = p }
}

// NewMovementEngine returns an engine using OppositePrecedence unless told otherwise
func NewMovementEngine(opts ...MovementOption) *MovementEngine {
	m := &MovementEngine{opposite: OppositePrecedence}
	for _, opt := range opts {
		opt(m)
	}
	return m
}

// Policy returns the opposite-key rule in use
func (m *MovementEngine) Policy() OppositeKeys { return m.opposite }

// Step derives a direction from keys and applies it
func (m *MovementEngine) Step(grid *Grid, actor *Actor, keys KeySnapshot) MoveResult {
	return m.Apply(grid, actor, m.opposite.Direction(keys))
}

// Apply moves actor by d if the target is inside the grid and not blocked.
// The actor is only modified when the result is Moved.
func (m *MovementEngine) Apply(grid *Grid, actor *Actor, d Direction) MoveResult {
	if d.IsZero() {
		return NoInput
	}

	newRow := actor.Row + d.DRow
	newCol := actor.Col + d.DCol

	if !grid.InBounds(newRow, newCol) {
		return BlockedBoundary
	}
	if grid.IsBlocked(newRow, newCol) {
		return BlockedObstacle
	}

	actor.Row = newRow
	actor.Col = newCol
	return Moved
}

// Target returns where d would take the actor, without checking anything
func Target(actor Actor, d Direction) Position {
	return Position{Row: actor.Row + d.DRow, Col: actor.Col + d.DCol}
}
