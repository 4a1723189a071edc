package engine

import (
	"fmt"
	"time"
)

// Engine provides the main interface for game operations
type Engine interface {
	// Game state management
	GetState() *GameState
	SetState(state *GameState) error
	Reset() *GameState
	GetActor() Actor
	GetPlayerPosition() Position
	Grid() *Grid
	Keys() *KeyState

	// Movement operations
	Tick() MoveResult
	Move(direction string) (MoveResult, error)
	CanMove(direction string) bool
	GetPossibleMoves() []string

	// Configuration
	GetConfig() *Config

	// History
	GetMoveHistory() []MoveHistoryEntry
	GetLastMove() *MoveHistoryEntry

	// Local view
	GetLocalView() []SurroundingCell
}

// AllDirections lists every direction a single move can take
var AllDirections = []string{
	"up", "down", "left", "right",
	"up-left", "up-right", "down-left", "down-right",
}

// GameEngine implements the Engine interface
type GameEngine struct {
	config *Config
	grid   *Grid
	keys   *KeyState
	mover  *MovementEngine
	state  *GameState
}

// NewEngine creates a new game engine with the provided configuration.
// The engine works on its own copy of config.Grid.
func NewEngine(config *Config) (*GameEngine, error) {
	if err := ValidateConfig(config); err != nil {
		return nil, err
	}

	state, _ := InitGameStateFromConfig(config)
	return &GameEngine{
		config: config,
		grid:   config.Grid.Clone(),
		keys:   NewKeyState(),
		mover:  NewMovementEngine(WithOppositeKeys(config.OppositeKeys)),
		state:  state,
	}, nil
}

// NewEngineWithDefaults creates a new game engine on the generated default map
func NewEngineWithDefaults() *GameEngine {
	e, err := NewEngine(DefaultConfig())
	if err != nil {
		panic(err)
	}
	return e
}

// GetState returns a copy of the current game state with its derived views
// filled in.
func (e *GameEngine) GetState() *GameState {
	s := *e.state
	s.MoveHistory = append([]MoveHistoryEntry{}, e.state.MoveHistory...)
	s.CurrentMoves = append([]MoveHistoryEntry{}, e.state.CurrentMoves...)
	s.Rows = e.grid.Rows()
	s.Cols = e.grid.Cols()
	s.Layout = Layout(e.grid)
	s.Map = Encode(e.grid)
	s.Keys = e.keys.Snapshot()
	s.LocalView = LocalView(e.grid, s.Actor)
	s.LocalView3x3 = LocalView3x3(e.grid, s.Actor)
	return &s
}

// SetState replaces the game state, used when a persisted session is loaded.
// A non-empty Map replaces the grid; the actor is relocated if the grid no
// longer fits it.
func (e *GameEngine) SetState(state *GameState) error {
	if state == nil {
		return fmt.Errorf("state cannot be nil")
	}
	grid := e.grid
	if state.Map != "" {
		decoded, err := Decode(state.Map)
		if err != nil {
			return fmt.Errorf("restore map: %w", err)
		}
		grid = decoded
	}
	if !Relocate(grid, &state.Actor) {
		return fmt.Errorf("restore state: map has no open cell")
	}
	e.grid = grid
	if state.MoveHistory == nil {
		state.MoveHistory = []MoveHistoryEntry{}
	}
	if state.CurrentMoves == nil {
		state.CurrentMoves = []MoveHistoryEntry{}
	}
	e.state = state
	return nil
}

// Reset restores the scenario's grid and start position. Held keys are released.
func (e *GameEngine) Reset() *GameState {
	// Preserve cumulative history and totals across resets
	prevHistory := e.state.MoveHistory
	prevTotal := e.state.TotalMoves
	prevScore := e.state.Actor.Score

	e.grid = e.config.Grid.Clone()
	e.keys.Clear()
	e.state, _ = InitGameStateFromConfig(e.config)

	e.state.MoveHistory = prevHistory
	e.state.TotalMoves = prevTotal
	e.state.Actor.Score = prevScore
	e.state.CurrentMoves = []MoveHistoryEntry{}
	e.state.CurrentMovesCount = 0

	return e.GetState()
}

// GetActor returns a copy of the actor
func (e *GameEngine) GetActor() Actor {
	return e.state.Actor
}

// GetPlayerPosition returns the current actor position
func (e *GameEngine) GetPlayerPosition() Position {
	return e.state.Actor.Position()
}

// Grid returns the working grid
func (e *GameEngine) Grid() *Grid {
	return e.grid
}

// Keys returns the held-key set fed by input handlers
func (e *GameEngine) Keys() *KeyState {
	return e.keys
}

// Tick runs one frame: snapshot the held keys and step once. Frames without
// input are not recorded in the history, and a blocked frame that repeats the
// previous entry is recorded once.
func (e *GameEngine) Tick() MoveResult {
	snapshot := e.keys.Snapshot()
	d := e.mover.Policy().Direction(snapshot)
	return e.apply("tick:"+d.String(), d, true)
}

// Move attempts a single step in a named direction such as "up" or "down-left"
func (e *GameEngine) Move(direction string) (MoveResult, error) {
	d, err := ParseDirection(direction)
	if err != nil {
		return NoInput, err
	}
	return e.apply(direction, d, false), nil
}

func (e *GameEngine) apply(action string, d Direction, collapse bool) MoveResult {
	from := e.state.Actor.Position()
	target := Target(e.state.Actor, d)

	result := e.mover.Apply(e.grid, &e.state.Actor, d)
	e.state.LastResult = result
	e.state.Message = e.describe(result, target)

	if result == NoInput {
		return result
	}
	if collapse && result != Moved && e.repeatsLastMove(action, from, result) {
		return result
	}
	e.state.AddMoveToHistory(action, from, e.state.Actor.Position(), result)
	return result
}

// repeatsLastMove reports whether the current segment already ends with the
// same blocked attempt.
func (e *GameEngine) repeatsLastMove(action string, from Position, result MoveResult) bool {
	n := len(e.state.CurrentMoves)
	if n == 0 {
		return false
	}
	last := e.state.CurrentMoves[n-1]
	return last.Action == action && last.FromPosition == from && last.Result == result
}

func (e *GameEngine) describe(result MoveResult, target Position) string {
	switch result {
	case Moved:
		return fmt.Sprintf("Moved to (%d,%d)", target.Row, target.Col)
	case BlockedBoundary:
		return fmt.Sprintf("Blocked: (%d,%d) is outside the map", target.Row, target.Col)
	case BlockedObstacle:
		kind := KindBlocking
		if cell, ok := e.grid.Get(target.Row, target.Col); ok {
			kind = cell.Kind
		}
		return fmt.Sprintf("Blocked by obstacle '%s' at (%d,%d)", kind, target.Row, target.Col)
	}
	return "No input"
}

// CanMove checks if the actor can move in the specified direction
func (e *GameEngine) CanMove(direction string) bool {
	d, err := ParseDirection(direction)
	if err != nil || d.IsZero() {
		return false
	}
	target := Target(e.state.Actor, d)
	return !e.grid.IsBlocked(target.Row, target.Col)
}

// GetPossibleMoves returns all valid directions the actor can move
func (e *GameEngine) GetPossibleMoves() []string {
	var possible []string
	for _, dir := range AllDirections {
		if e.CanMove(dir) {
			possible = append(possible, dir)
		}
	}
	return possible
}

// GetConfig returns the configuration the engine was started with
func (e *GameEngine) GetConfig() *Config {
	return e.config
}

// GetMoveHistory returns the complete move history. The slice is shared with
// the engine and must not be modified.
func (e *GameEngine) GetMoveHistory() []MoveHistoryEntry {
	return e.state.MoveHistory
}

// GetLastMove returns the last move made, or nil if no moves
func (e *GameEngine) GetLastMove() *MoveHistoryEntry {
	if len(e.state.MoveHistory) == 0 {
		return nil
	}
	return &e.state.MoveHistory[len(e.state.MoveHistory)-1]
}

// GetLocalView returns the 8 cells around the actor
func (e *GameEngine) GetLocalView() []SurroundingCell {
	return LocalView(e.grid, e.state.Actor)
}

// BulkMove executes moves in order and stops at the first one that does not
// move the actor. An unparsable direction stops the sequence with an error.
func (e *GameEngine) BulkMove(moves []string) ([]MoveResult, error) {
	results := make([]MoveResult, 0, len(moves))
	for _, direction := range moves {
		result, err := e.Move(direction)
		if err != nil {
			return results, err
		}
		results = append(results, result)
		if result != Moved {
			break
		}
	}
	return results, nil
}

// AddMoveToHistory adds a move to the game's move history
func (gs *GameState) AddMoveToHistory(action string, fromPos, toPos Position, result MoveResult) {
	entry := MoveHistoryEntry{
		Action:       action,
		FromPosition: fromPos,
		ToPosition:   toPos,
		Result:       result,
		Timestamp:    time.Now().Unix(),
		Success:      result == Moved,
		MoveNumber:   gs.TotalMoves + 1,
	}
	// Append to cumulative history (never cleared by reset) and increment total
	gs.MoveHistory = append(gs.MoveHistory, entry)
	gs.TotalMoves++

	// Append to current segment history and increment its counter
	gs.CurrentMoves = append(gs.CurrentMoves, entry)
	gs.CurrentMovesCount++
}
