package service

import (
	"time"

	"github.com/wricardo/mcp-training/tilegame/game/engine"
)

// Scenario is a named map ready to start sessions on
type Scenario struct {
	Name string
	Grid *engine.Grid
	// Generated is set when the map was produced by the default generator
	// because the scenario file was missing or unreadable.
	Generated bool
}

// SessionInfo provides information about a game session
type SessionInfo struct {
	ID             string            `json:"id"`
	ScenarioName   string            `json:"scenario_name"`
	CreatedAt      time.Time         `json:"created_at"`
	LastAccessedAt time.Time         `json:"last_accessed_at"`
	GameState      *engine.GameState `json:"game_state"`
}

// MoveResult contains the result of a move operation
type MoveResult struct {
	Success     bool              `json:"success"`
	Result      engine.MoveResult `json:"result"`
	GameState   *engine.GameState `json:"game_state"`
	Message     string            `json:"message"`
	Events      []GameEvent       `json:"events,omitempty"`
	Step        *StepInfo         `json:"step,omitempty"`
	AttemptedTo *AttemptInfo      `json:"attempted_to,omitempty"`
}

// BulkMoveResult contains the result of multiple moves
type BulkMoveResult struct {
	MovesExecuted  int               `json:"moves_executed"`
	RequestedMoves int               `json:"requested_moves"`
	Success        bool              `json:"success"`
	GameState      *engine.GameState `json:"game_state"`
	Events         []GameEvent       `json:"events"`
	StoppedReason  string            `json:"stopped_reason,omitempty"`
	StopReasonCode string            `json:"stop_reason_code,omitempty"` // blocked_boundary|blocked_obstacle|invalid_direction
	StoppedOnMove  int               `json:"stopped_on_move,omitempty"`  // 1-based
	Truncated      bool              `json:"truncated,omitempty"`
	Limit          int               `json:"limit,omitempty"`

	StartPos engine.Position `json:"start_pos"`
	EndPos   engine.Position `json:"end_pos"`

	Steps       []StepInfo   `json:"steps,omitempty"`
	AttemptedTo *AttemptInfo `json:"attempted_to,omitempty"`

	Message       string   `json:"message,omitempty"`
	PossibleMoves []string `json:"possible_moves,omitempty"`
	LocalView3x3  []string `json:"local_view_3x3,omitempty"`
}

// StepInfo is a compact record for each executed move
type StepInfo struct {
	Idx    int               `json:"idx"`
	Dir    string            `json:"dir"`
	From   engine.Position   `json:"from"`
	To     engine.Position   `json:"to"`
	Kind   string            `json:"kind"`
	Result engine.MoveResult `json:"result"`
}

// AttemptInfo details the target cell of a failed move
type AttemptInfo struct {
	Row      int    `json:"row"`
	Col      int    `json:"col"`
	Kind     string `json:"kind"`
	Blocking bool   `json:"blocking"`
	InBounds bool   `json:"in_bounds"`
}

// GameEvent represents an event that occurred during gameplay
type GameEvent struct {
	Type      string          `json:"type"` // "move", "blocked", "reset", "relocated"
	Message   string          `json:"message"`
	Timestamp time.Time       `json:"timestamp"`
	Position  engine.Position `json:"position"`
}

// TickUpdate is produced for every session whose tick did something
type TickUpdate struct {
	SessionID string            `json:"session_id"`
	Result    engine.MoveResult `json:"result"`
	GameState *engine.GameState `json:"game_state"`
}

// HistoryOptions configures move history retrieval
type HistoryOptions struct {
	Page  int    `json:"page"`
	Limit int    `json:"limit"`
	Order string `json:"order"` // "asc" or "desc"
}

// HistoryResponse contains paginated move history
type HistoryResponse struct {
	Moves       []engine.MoveHistoryEntry `json:"moves"`
	TotalMoves  int                       `json:"total_moves"`
	Page        int                       `json:"page"`
	PageSize    int                       `json:"page_size"`
	TotalPages  int                       `json:"total_pages"`
	HasNext     bool                      `json:"has_next"`
	HasPrevious bool                      `json:"has_previous"`
}

// ScenarioInfo summarises one scenario file
type ScenarioInfo struct {
	Filename      string `json:"filename"`
	ScenarioID    string `json:"scenario_id"` // identifier to use for session creation
	Rows          int    `json:"rows"`
	Cols          int    `json:"cols"`
	OpenCells     int    `json:"open_cells"`
	BlockingCells int    `json:"blocking_cells"`
	Regions       int    `json:"regions"`
}

// ScenarioDetail is a scenario with its full layout and canonical document
type ScenarioDetail struct {
	ScenarioInfo
	Layout []string `json:"layout"`
	Map    string   `json:"map"`
}

// NewScenarioInfo summarises grid under the given identifier
func NewScenarioInfo(id, filename string, grid *engine.Grid) *ScenarioInfo {
	open, blocking, _ := grid.Counts()
	return &ScenarioInfo{
		Filename:      filename,
		ScenarioID:    id,
		Rows:          grid.Rows(),
		Cols:          grid.Cols(),
		OpenCells:     open,
		BlockingCells: blocking,
		Regions:       engine.CountRegions(grid),
	}
}
