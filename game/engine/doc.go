// Package engine provides the core logic for the tile-map game.
//
// The engine package implements:
//   - The RLE map codec (Codec, Decode, Encode) with typed decode errors
//   - The tile grid (Grid, TileCell) with blocking and unset cells
//   - Held-key tracking (KeyState) shared between input handlers and the tick loop
//   - Per-tick movement (MovementEngine) with independent axes and diagonals
//   - Game state management, history and text views
//
// Core Types:
//
// The Engine interface defines the main contract for game operations,
// implemented by GameEngine. GameState is the serializable snapshot of a
// running scenario, while Config names the grid and start position.
//
// Usage:
//
//	grid, err := engine.Decode("3X3\n3O 1O 1E 1O 3O\n")
//	if err != nil {
//		log.Fatal(err)
//	}
//
//	gameEngine, err := engine.NewEngine(&engine.Config{
//		ScenarioName: "room",
//		Grid:         grid,
//		Start:        engine.Position{Row: 1, Col: 1},
//	})
//	if err != nil {
//		log.Fatal(err)
//	}
//
//	gameEngine.Keys().Press(engine.KeyUp)
//	result := gameEngine.Tick() // BlockedObstacle
//
// Movement Rules:
//
// Each tick the held keys are reduced to one step per axis. The target cell
// must lie inside the grid and must not be blocking; otherwise the actor stays
// put and the tick reports which check failed.
package engine
