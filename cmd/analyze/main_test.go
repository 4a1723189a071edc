package main

import (
	"bytes"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/wricardo/mcp-training/tilegame/game/engine"
)

func writeScenario(t *testing.T, name, doc string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), name)
	require.NoError(t, os.WriteFile(path, []byte(doc), 0644))
	return path
}

func TestAnalyzeScenario(t *testing.T) {
	a, err := analyzeScenario(writeScenario(t, "pillar.txt", "5X5\n5O 1O 3E 1O 1O 1E 1O 1E 1O 1O 3E 1O 5O\n"))
	require.NoError(t, err)

	assert.Equal(t, "pillar", a.Name)
	assert.Equal(t, 5, a.Cols)
	assert.Equal(t, 5, a.Rows)
	assert.Equal(t, 8, a.Open)
	assert.Equal(t, 17, a.Blocking)
	assert.Equal(t, 1, a.Regions)
	assert.Equal(t, engine.Position{Row: 1, Col: 1}, a.Start)
	assert.Equal(t, 8, a.Reachable)
	assert.Empty(t, a.Isolated)
}

func TestAnalyzeScenario_SplitRooms(t *testing.T) {
	// left room is a single cell, right room is two cells
	a, err := analyzeScenario(writeScenario(t, "split.txt", "6X3\n6O 1O 1E 1O 2E 1O 6O\n"))
	require.NoError(t, err)

	assert.Equal(t, 2, a.Regions)
	assert.Equal(t, 1, a.Reachable)
	assert.Equal(t, []engine.Position{{Row: 1, Col: 3}, {Row: 1, Col: 4}}, a.Isolated)

	var out bytes.Buffer
	printAnalysis(&out, a)
	assert.Contains(t, out.String(), "WARNING: 2 open cells are unreachable")
	assert.Contains(t, out.String(), "Unreachable: (1, 3)")
}

func TestAnalyzeScenario_StartRelocated(t *testing.T) {
	// (1,1) is blocked so the actor moves to the nearest open cell
	a, err := analyzeScenario(writeScenario(t, "corner.txt", "3X3\n8O 1E\n"))
	require.NoError(t, err)

	assert.Equal(t, engine.Position{Row: 2, Col: 2}, a.Start)
	assert.Equal(t, 1, a.Reachable)
}

func TestAnalyzeScenario_AllBlocked(t *testing.T) {
	a, err := analyzeScenario(writeScenario(t, "wall.txt", "2X1\n2O\n"))
	require.NoError(t, err)
	assert.Zero(t, a.Open)

	var out bytes.Buffer
	printAnalysis(&out, a)
	assert.Contains(t, out.String(), "CRITICAL")
}

func TestAnalyzeScenario_Errors(t *testing.T) {
	_, err := analyzeScenario(filepath.Join(t.TempDir(), "missing.txt"))
	require.Error(t, err)
	assert.ErrorIs(t, err, engine.ErrUnreadableSource)

	_, err = analyzeScenario(writeScenario(t, "short.txt", "2X2\n3E\n"))
	require.Error(t, err)
	assert.Contains(t, err.Error(), "map_size_mismatch")
}

func TestPrintAnalysis(t *testing.T) {
	var out bytes.Buffer
	printAnalysis(&out, &Analysis{Name: "room", Cols: 4, Rows: 3, Open: 2, Blocking: 10, Regions: 1, Start: engine.Position{Row: 1, Col: 1}, Reachable: 2})

	assert.Contains(t, out.String(), "Name: room")
	assert.Contains(t, out.String(), "Grid Size: 4 x 3 (cols x rows)")
	assert.Contains(t, out.String(), "All 2 open cells are reachable")
}
