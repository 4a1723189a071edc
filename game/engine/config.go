package engine

import (
	"errors"
	"fmt"
)

// Config describes how an engine starts: which grid, where the actor begins
// and which opposite-key rule the movement engine uses.
type Config struct {
	ScenarioName string
	Grid         *Grid
	Start        Position
	Score        int
	OppositeKeys OppositeKeys
}

// ValidateConfig checks that a config can start a game
func ValidateConfig(config *Config) error {
	if config == nil {
		return errors.New("config validation: config is nil")
	}
	if config.ScenarioName == "" {
		return errors.New("config validation: scenario name is required")
	}
	if config.Grid == nil {
		return errors.New("config validation: grid is required")
	}
	if config.OppositeKeys != OppositePrecedence && config.OppositeKeys != OppositeCancel {
		return fmt.Errorf("config validation: unknown opposite key policy %d", config.OppositeKeys)
	}
	if _, ok := NearestOpenCell(config.Grid, config.Start); !ok {
		return fmt.Errorf("config validation: scenario %q has no open cell", config.ScenarioName)
	}
	return nil
}

// DefaultConfig returns the generated walled room with the actor at (1,1)
func DefaultConfig() *Config {
	grid, err := GenerateDefault(DefaultCols, DefaultRows)
	if err != nil {
		// DefaultCols/DefaultRows are positive constants
		panic(err)
	}
	return &Config{
		ScenarioName: "default",
		Grid:         grid,
		Start:        Position{Row: 1, Col: 1},
	}
}

// InitGameStateFromConfig builds the starting state and the actor for config.
// The actor is relocated to the nearest open cell when Start is unusable.
func InitGameStateFromConfig(config *Config) (*GameState, Actor) {
	actor := Actor{Row: config.Start.Row, Col: config.Start.Col, Score: config.Score}
	Relocate(config.Grid, &actor)

	return &GameState{
		ScenarioName:      config.ScenarioName,
		Rows:              config.Grid.Rows(),
		Cols:              config.Grid.Cols(),
		Actor:             actor,
		LastResult:        NoInput,
		Message:           fmt.Sprintf("Scenario %s loaded (%dX%d)", config.ScenarioName, config.Grid.Cols(), config.Grid.Rows()),
		MoveHistory:       []MoveHistoryEntry{},
		CurrentMoves:      []MoveHistoryEntry{},
		TotalMoves:        0,
		CurrentMovesCount: 0,
	}, actor
}
