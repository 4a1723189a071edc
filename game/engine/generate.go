package engine

import (
	"fmt"
	"strings"
)

// KindMarker is the extra obstacle dropped in the middle of generated maps.
const KindMarker Kind = 'X'

// DefaultDocument writes the RLE document of a walled room: a blocking border
// around an open interior.
func DefaultDocument(cols, rows int) (string, error) {
	if cols <= 0 || rows <= 0 {
		return "", fmt.Errorf("%w: %dX%d", ErrInvalidDimensions, cols, rows)
	}

	var runs []string
	if rows == 1 || cols <= 2 {
		runs = append(runs, fmt.Sprintf("%dO", cols*rows))
	} else {
		runs = append(runs, fmt.Sprintf("%dO", cols))
		for i := 1; i < rows-1; i++ {
			runs = append(runs, "1O", fmt.Sprintf("%dE", cols-2), "1O")
		}
		runs = append(runs, fmt.Sprintf("%dO", cols))
	}
	return fmt.Sprintf("%dX%d\n%s\n", cols, rows, strings.Join(runs, " ")), nil
}

// GenerateDefault builds the fallback scenario used when a scenario file is
// missing or unreadable. Rooms larger than 2x2 get an extra X obstacle at
// (rows/2, cols/2).
func GenerateDefault(cols, rows int) (*Grid, error) {
	doc, err := DefaultDocument(cols, rows)
	if err != nil {
		return nil, err
	}
	g, err := Decode(doc)
	if err != nil {
		return nil, fmt.Errorf("default map: %w", err)
	}
	if rows > 2 && cols > 2 {
		marker := NewTileCell(KindMarker, true)
		g.Place(rows/2, cols/2, &marker)
	}
	return g, nil
}
