package main

import (
	"os"
	"path/filepath"
	"strings"
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

func hasLine(lines []string, prefix string) bool {
	for _, l := range lines {
		if strings.HasPrefix(l, prefix) {
			return true
		}
	}
	return false
}

func TestValidateScenario_Valid(t *testing.T) {
	path := writeScenario(t, "room.txt", "5X5\n5O 1O 3E 1O 1O 1E 1O 1E 1O 1O 3E 1O 5O\n")

	result := validateScenario(path)
	require.True(t, result.Valid, "errors: %v", result.Errors)
	assert.Equal(t, "room.txt", result.File)
	assert.Empty(t, result.Code)
	assert.Contains(t, result.Errors, "✓ Grid: 5X5 (cols X rows)")
	assert.Contains(t, result.Errors, "✓ Open cells: 8")
	assert.Contains(t, result.Errors, "✓ Start: (1,1)")
	assert.Contains(t, result.Errors, "✓ Connectivity: all 8 open cells reachable from start")
	assert.False(t, hasLine(result.Errors, "⚠ Not in canonical form"))
}

func TestValidateScenario_DecodeErrors(t *testing.T) {
	tests := []struct {
		name string
		doc  string
		code string
	}{
		{"bad header", "5x\n5E\n", "malformed_header"},
		{"zero size", "0X3\n", "non_positive_dimensions"},
		{"short", "3X2\n4E\n", "map_size_mismatch"},
		{"long", "3X2\n7E\n", "map_size_mismatch"},
		{"bad run", "3X1\n3\n", "malformed_run"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			result := validateScenario(writeScenario(t, "bad.txt", tt.doc))
			assert.False(t, result.Valid)
			assert.Equal(t, tt.code, result.Code)
		})
	}
}

func TestValidateScenario_MissingFile(t *testing.T) {
	result := validateScenario(filepath.Join(t.TempDir(), "missing.txt"))
	assert.False(t, result.Valid)
	assert.Equal(t, "unreadable_source", result.Code)
}

func TestValidateScenario_AllBlocked(t *testing.T) {
	result := validateScenario(writeScenario(t, "wall.txt", "2X2\n4O\n"))
	assert.False(t, result.Valid)
	assert.Equal(t, "no_open_cell", result.Code)
}

func TestValidateScenario_NotCanonical(t *testing.T) {
	// lowercase header and split runs decode fine but differ from Encode output
	result := validateScenario(writeScenario(t, "loose.txt", "3x1\n1E\n2E\n"))
	require.True(t, result.Valid, "errors: %v", result.Errors)
	assert.True(t, hasLine(result.Errors, "⚠ Not in canonical form"))
}

func TestValidateConnectivity(t *testing.T) {
	// two rooms split by a wall column
	grid, err := engine.Decode("5X3\n5O 1O 1E 1O 1E 1O 5O\n")
	require.NoError(t, err)

	result := validateConnectivity(grid, 2)
	assert.True(t, result.Valid)
	assert.Contains(t, result.Errors, "✓ Start: (1,1)")
	assert.Contains(t, result.Errors, "⚠ Connectivity: 1/2 open cells reachable from start (2 regions)")
}
