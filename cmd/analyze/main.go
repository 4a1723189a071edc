// Command analyze prints quick, human-readable stats about the scenario files
// in a directory (scenarios by default, or the first argument). For each map it
// summarizes dimensions, open and blocking counts, connected regions, and how
// much of the map the actor can reach from where a new session starts it.
package main

import (
	"fmt"
	"io"
	"os"
	"path/filepath"
	"sort"
	"strings"

	"github.com/wricardo/mcp-training/tilegame/game/engine"
	"github.com/wricardo/mcp-training/tilegame/game/session"
)

// Analysis is the summary of one scenario file
type Analysis struct {
	Name       string
	Cols, Rows int
	Open       int
	Blocking   int
	Regions    int
	Start      engine.Position
	Reachable  int
	// Isolated lists open cells outside the start's region, row-major
	Isolated []engine.Position
}

func main() {
	dir := "scenarios"
	if len(os.Args) > 1 {
		dir = os.Args[1]
	}

	files, err := filepath.Glob(filepath.Join(dir, "*.txt"))
	if err != nil {
		fmt.Printf("Error finding scenario files: %v\n", err)
		os.Exit(1)
	}
	sort.Strings(files)

	for _, file := range files {
		fmt.Printf("\n=== Analyzing %s ===\n", filepath.Base(file))
		a, err := analyzeScenario(file)
		if err != nil {
			fmt.Printf("Error: %v\n", err)
			continue
		}
		printAnalysis(os.Stdout, a)
	}
}

func analyzeScenario(path string) (*Analysis, error) {
	grid, err := engine.NewCodec().DecodeFile(path)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", engine.DecodeErrorCode(err), err)
	}

	open, blocking, _ := grid.Counts()
	a := &Analysis{
		Name:     strings.TrimSuffix(filepath.Base(path), ".txt"),
		Cols:     grid.Cols(),
		Rows:     grid.Rows(),
		Open:     open,
		Blocking: blocking,
		Regions:  engine.CountRegions(grid),
	}

	actor := engine.Actor{Row: session.DefaultStart.Row, Col: session.DefaultStart.Col}
	if !engine.Relocate(grid, &actor) {
		return a, nil
	}
	a.Start = actor.Position()

	reached := make(map[engine.Position]bool)
	for _, p := range engine.Reachable(grid, a.Start) {
		reached[p] = true
	}
	a.Reachable = len(reached)

	for row := 0; row < grid.Rows(); row++ {
		for col := 0; col < grid.Cols(); col++ {
			p := engine.Position{Row: row, Col: col}
			if !grid.IsBlocked(row, col) && !reached[p] {
				a.Isolated = append(a.Isolated, p)
			}
		}
	}
	return a, nil
}

func printAnalysis(w io.Writer, a *Analysis) {
	fmt.Fprintf(w, "Name: %s\n", a.Name)
	fmt.Fprintf(w, "Grid Size: %d x %d (cols x rows)\n", a.Cols, a.Rows)
	fmt.Fprintf(w, "Open Cells: %d\n", a.Open)
	fmt.Fprintf(w, "Blocking Cells: %d\n", a.Blocking)
	fmt.Fprintf(w, "Regions: %d\n", a.Regions)

	if a.Open == 0 {
		fmt.Fprintf(w, "⚠️  CRITICAL: no open cell, the actor has nowhere to stand\n")
		return
	}
	fmt.Fprintf(w, "Start Position: (%d, %d)\n", a.Start.Row, a.Start.Col)

	if len(a.Isolated) == 0 {
		fmt.Fprintf(w, "✅ All %d open cells are reachable from the start\n", a.Open)
		return
	}

	fmt.Fprintf(w, "⚠️  WARNING: %d open cells are unreachable from the start!\n", len(a.Isolated))
	for i, p := range a.Isolated {
		if i == 5 {
			fmt.Fprintf(w, "   ... and %d more\n", len(a.Isolated)-5)
			break
		}
		fmt.Fprintf(w, "   Unreachable: (%d, %d)\n", p.Row, p.Col)
	}
}
