package engine

const (
	// Default size of a generated scenario
	DefaultCols = 20
	DefaultRows = 10

	MaxBulkMoves        = 50
	UnreachableDistance = 999999
	WebSocketBufferSize = 256
)

// Position is a row/col coordinate. Signed so a step past the edge is representable.
type Position struct {
	Row int `json:"row"`
	Col int `json:"col"`
}

// Actor is the player-controlled entity. Score rides along with movement but
// is never changed by it.
type Actor struct {
	Row   int `json:"row"`
	Col   int `json:"col"`
	Score int `json:"score"`
}

// Position returns the actor's coordinate
func (a Actor) Position() Position {
	return Position{Row: a.Row, Col: a.Col}
}

// SurroundingCell is a neighbour of the actor with its absolute position
type SurroundingCell struct {
	Row      int    `json:"row"`
	Col      int    `json:"col"`
	Kind     string `json:"kind"`
	Blocking bool   `json:"blocking"`
}

// GameState is the serializable view of a running scenario
type GameState struct {
	ScenarioName string             `json:"scenario_name"`
	Rows         int                `json:"rows"`
	Cols         int                `json:"cols"`
	Layout       []string           `json:"layout"`
	Map          string             `json:"map"` // RLE document of the grid
	Actor        Actor              `json:"actor"`
	Keys         KeySnapshot        `json:"keys"`
	LastResult   MoveResult         `json:"last_result"`
	Message      string             `json:"message"`
	MoveHistory  []MoveHistoryEntry `json:"move_history,omitempty"`
	TotalMoves   int                `json:"total_moves"`
	LocalView    []SurroundingCell  `json:"local_view,omitempty"`

	// CurrentMoves tracks only the moves since the last reset. It mirrors MoveHistory entries
	// but gets cleared on reset while MoveHistory remains cumulative.
	CurrentMoves      []MoveHistoryEntry `json:"current_moves,omitempty"`
	CurrentMovesCount int                `json:"current_moves_count"`

	LocalView3x3 []string `json:"local_view_3x3,omitempty"`
}

// Summary returns a shallow copy without the history slices, for pushing
// state to clients. History is served paginated instead.
func (s *GameState) Summary() *GameState {
	c := *s
	c.MoveHistory = nil
	c.CurrentMoves = nil
	return &c
}

// MoveHistoryEntry records one movement attempt
type MoveHistoryEntry struct {
	Action       string     `json:"action"`
	FromPosition Position   `json:"from_position"`
	ToPosition   Position   `json:"to_position"`
	Result       MoveResult `json:"result"`
	Timestamp    int64      `json:"timestamp"`
	Success      bool       `json:"success"`
	MoveNumber   int        `json:"move_number"`
}
