// Command validate checks every scenario file in a directory (../scenarios by
// default, or the first argument). It checks:
//   - the document decodes strictly (header, runs, exact cell count)
//   - the map has at least one open cell
//   - the start position resolves to an open cell
//   - how much of the map is reachable from the start
//   - whether the file is already in canonical form
package main

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/wricardo/mcp-training/tilegame/game/engine"
	"github.com/wricardo/mcp-training/tilegame/game/session"
)

// ValidationResult captures the outcome of validating a single file.
// If Valid is true, Errors contains informational messages; otherwise it
// accumulates the validation errors that were found.
type ValidationResult struct {
	File   string
	Valid  bool
	Code   string
	Errors []string
}

// validateScenario loads and validates a single scenario file.
func validateScenario(filePath string) ValidationResult {
	result := ValidationResult{
		File:   filepath.Base(filePath),
		Valid:  true,
		Errors: []string{},
	}

	data, err := os.ReadFile(filePath)
	if err != nil {
		result.Valid = false
		result.Code = engine.DecodeErrorCode(fmt.Errorf("%w: %w", engine.ErrUnreadableSource, err))
		result.Errors = append(result.Errors, fmt.Sprintf("Failed to read file: %v", err))
		return result
	}

	grid, err := engine.NewCodec().Decode(string(data))
	if err != nil {
		result.Valid = false
		result.Code = engine.DecodeErrorCode(err)
		result.Errors = append(result.Errors, fmt.Sprintf("Decode failed (%s): %v", result.Code, err))
		return result
	}

	open, blocking, _ := grid.Counts()
	if open == 0 {
		result.Valid = false
		result.Code = "no_open_cell"
		result.Errors = append(result.Errors, "Map has no open cell for the actor")
		return result
	}

	connectivity := validateConnectivity(grid, open)
	result.Errors = append(result.Errors, connectivity.Errors...)
	if !connectivity.Valid {
		result.Valid = false
		result.Code = "no_start"
		return result
	}

	result.Errors = append(result.Errors,
		fmt.Sprintf("✓ Grid: %dX%d (cols X rows)", grid.Cols(), grid.Rows()),
		fmt.Sprintf("✓ Open cells: %d", open),
		fmt.Sprintf("✓ Blocking cells: %d", blocking),
	)

	if canonical := engine.Encode(grid); canonical != string(data) {
		result.Errors = append(result.Errors, "⚠ Not in canonical form; re-save through the API to normalize")
	}

	return result
}

// validateConnectivity places the actor the way a new session does and
// reports how many open cells it can reach with 8-way moves.
func validateConnectivity(grid *engine.Grid, open int) ValidationResult {
	result := ValidationResult{
		Valid:  true,
		Errors: []string{},
	}

	actor := engine.Actor{Row: session.DefaultStart.Row, Col: session.DefaultStart.Col}
	if !engine.Relocate(grid, &actor) {
		result.Valid = false
		result.Errors = append(result.Errors, "No open cell to start on")
		return result
	}
	result.Errors = append(result.Errors, fmt.Sprintf("✓ Start: (%d,%d)", actor.Row, actor.Col))

	reached := len(engine.Reachable(grid, actor.Position()))
	if reached < open {
		result.Errors = append(result.Errors, fmt.Sprintf("⚠ Connectivity: %d/%d open cells reachable from start (%d regions)", reached, open, engine.CountRegions(grid)))
	} else {
		result.Errors = append(result.Errors, fmt.Sprintf("✓ Connectivity: all %d open cells reachable from start", open))
	}
	return result
}

// main scans the scenario directory for *.txt files and validates each one,
// printing a concise report and exiting with non-zero status if any are invalid.
func main() {
	scenarioDir := "../scenarios"
	if len(os.Args) > 1 {
		scenarioDir = os.Args[1]
	}

	files, err := filepath.Glob(filepath.Join(scenarioDir, "*.txt"))
	if err != nil {
		fmt.Printf("Error finding scenario files: %v\n", err)
		os.Exit(1)
	}

	allValid := true
	for _, file := range files {
		result := validateScenario(file)

		fmt.Printf("\n%s %s\n", strings.Repeat("=", 20), result.File)

		if result.Valid {
			fmt.Println("✅ VALID")
			for _, info := range result.Errors {
				fmt.Println("  " + info)
			}
		} else {
			fmt.Printf("❌ INVALID (%s)\n", result.Code)
			allValid = false
			for _, err := range result.Errors {
				if !strings.HasPrefix(err, "✓") {
					fmt.Println("  ❌ " + err)
				}
			}
		}
	}

	fmt.Printf("\n%s\n", strings.Repeat("=", 40))
	if allValid {
		fmt.Println("✅ All scenarios are valid!")
	} else {
		fmt.Println("❌ Some scenarios have errors")
		os.Exit(1)
	}
}
