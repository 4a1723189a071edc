package service

import (
	"context"
	"errors"
	"time"

	"github.com/wricardo/mcp-training/tilegame/game/engine"
)

var (
	ErrSessionNotFound  = errors.New("session not found")
	ErrScenarioNotFound = errors.New("scenario not found")
	ErrInvalidScenario  = errors.New("invalid scenario")
	ErrInvalidName      = errors.New("invalid scenario name")
	ErrInvalidKey       = errors.New("invalid key")
	ErrInvalidDirection = errors.New("invalid direction")
)

// GameService defines all game-related operations
type GameService interface {
	// Session Management
	CreateSession(ctx context.Context, scenarioName string) (*SessionInfo, error)
	GetSession(ctx context.Context, sessionID string) (*SessionInfo, error)
	ListSessions(ctx context.Context) ([]*SessionInfo, error)
	DeleteSession(ctx context.Context, sessionID string) error

	// Game Operations
	Move(ctx context.Context, sessionID, direction string, reset bool) (*MoveResult, error)
	BulkMove(ctx context.Context, sessionID string, moves []string, reset bool) (*BulkMoveResult, error)
	Reset(ctx context.Context, sessionID string) (*engine.GameState, error)

	// Held keys and ticks
	SetKey(ctx context.Context, sessionID, key string, pressed bool) (*engine.GameState, error)
	ClearKeys(ctx context.Context, sessionID string) (*engine.GameState, error)
	Tick(ctx context.Context, sessionID string) (*TickUpdate, error)
	TickAll(ctx context.Context) []TickUpdate
	SaveTicked(ctx context.Context) int

	// Game State
	GetGameState(ctx context.Context, sessionID string) (*engine.GameState, error)
	GetMoveHistory(ctx context.Context, sessionID string, opts HistoryOptions) (*HistoryResponse, error)
	ExportMap(ctx context.Context, sessionID string) (string, error)

	// Scenarios
	ListScenarios(ctx context.Context) ([]*ScenarioInfo, error)
	GetScenario(ctx context.Context, name string) (*ScenarioDetail, error)
	SaveScenario(ctx context.Context, name, document string) (*ScenarioDetail, error)
}

// SessionManager defines session storage operations
type SessionManager interface {
	Create(id string, scenario *Scenario) (*Session, error)
	Get(id string) (*Session, error)
	List() []*Session
	Delete(id string) error
	UpdateLastAccessed(id string) error
	Save(id string) error
}

// ScenarioManager handles scenario loading
type ScenarioManager interface {
	LoadScenario(name string) (*Scenario, error)
	LoadOrGenerate(name string) (*Scenario, error)
	ListScenarios() ([]*ScenarioInfo, error)
	GetDefault() *Scenario
	SaveScenario(name string, grid *engine.Grid) error
	Codec() *engine.Codec
}

// Session represents an active game session
type Session struct {
	ID             string
	Engine         *engine.GameEngine
	Scenario       *Scenario
	CreatedAt      time.Time
	LastAccessedAt time.Time
}
