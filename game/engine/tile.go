package engine

import "fmt"

// Kind is the single-letter tag identifying what a cell is.
type Kind byte

const (
	// KindOpen marks walkable floor in the reference alphabet.
	KindOpen Kind = 'E'
	// KindBlocking marks an obstacle in the reference alphabet.
	KindBlocking Kind = 'O'
	// KindAbsent is only used by text views for cells that were never set.
	KindAbsent Kind = '.'
)

// String returns the letter as a one-character string
func (k Kind) String() string {
	return string(rune(k))
}

// MarshalText encodes the kind as its letter so JSON carries "E" rather than 69
func (k Kind) MarshalText() ([]byte, error) {
	return []byte{byte(k)}, nil
}

// UnmarshalText reads a single-letter kind
func (k *Kind) UnmarshalText(text []byte) error {
	if len(text) != 1 {
		return fmt.Errorf("tile kind must be a single character, got %q", text)
	}
	*k = Kind(text[0])
	return nil
}

// TileCell is one cell of the grid.
//
// Blocking is fixed when the cell is built and only changes together with Kind
// through Grid.Place.
type TileCell struct {
	Kind     Kind `json:"kind"`
	Blocking bool `json:"blocking"`
}

// NewTileCell builds a cell from a caller-chosen kind and blocking flag.
// Any pairing is allowed.
func NewTileCell(kind Kind, blocking bool) TileCell {
	return TileCell{Kind: kind, Blocking: blocking}
}

// CellFor builds a cell using the reference alphabet: O blocks, everything else is open.
func CellFor(kind Kind) TileCell {
	return TileCell{Kind: kind, Blocking: kind == KindBlocking}
}

// EncodedKind is the letter the RLE encoder writes for this cell.
func (c TileCell) EncodedKind() Kind {
	if c.Blocking {
		return KindBlocking
	}
	return KindOpen
}

func (c TileCell) String() string {
	return c.Kind.String()
}
