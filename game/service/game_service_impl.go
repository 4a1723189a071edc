package service

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	log "github.com/sirupsen/logrus"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"

	"github.com/wricardo/mcp-training/tilegame/game/engine"
	"github.com/wricardo/mcp-training/tilegame/telemetry"
)

// gameServiceImpl implements the GameService interface
type gameServiceImpl struct {
	sessions  SessionManager
	scenarios ScenarioManager
	strict    *engine.Codec
	tracer    trace.Tracer
	logger    log.FieldLogger
	mu        sync.RWMutex

	// sessions changed by TickAll since the last SaveTicked
	ticked map[string]struct{}
}

// Option configures the game service
type Option func(*gameServiceImpl)

// WithTracer sets the tracer used for per-operation spans
func WithTracer(tracer trace.Tracer) Option {
	return func(s *gameServiceImpl) { s.tracer = tracer }
}

// WithLogger sets the service logger
func WithLogger(logger log.FieldLogger) Option {
	return func(s *gameServiceImpl) { s.logger = logger }
}

// NewGameService creates a new game service instance
func NewGameService(sessions SessionManager, scenarios ScenarioManager, opts ...Option) GameService {
	s := &gameServiceImpl{
		sessions:  sessions,
		scenarios: scenarios,
		strict:    engine.NewCodec(),
		tracer:    telemetry.Tracer("service"),
		logger:    log.StandardLogger(),
		ticked:    make(map[string]struct{}),
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

func (s *gameServiceImpl) span(ctx context.Context, name string, attrs ...attribute.KeyValue) trace.Span {
	_, span := s.tracer.Start(ctx, "service."+name, trace.WithAttributes(attrs...))
	return span
}

func fail(span trace.Span, err error) error {
	span.RecordError(err)
	span.SetStatus(codes.Error, err.Error())
	return err
}

func sessionAttr(id string) attribute.KeyValue {
	return attribute.String("session.id", id)
}

// CreateSession creates a new game session. An empty name uses the default
// scenario; an unknown name falls back to a generated map.
func (s *gameServiceImpl) CreateSession(ctx context.Context, scenarioName string) (*SessionInfo, error) {
	span := s.span(ctx, "CreateSession", attribute.String("scenario", scenarioName))
	defer span.End()

	s.mu.Lock()
	defer s.mu.Unlock()

	var sc *Scenario
	if scenarioName == "" {
		sc = s.scenarios.GetDefault()
	} else {
		var err error
		sc, err = s.scenarios.LoadOrGenerate(scenarioName)
		if err != nil {
			return nil, fail(span, fmt.Errorf("failed to load scenario %s: %w", scenarioName, err))
		}
	}

	session, err := s.sessions.Create("", sc)
	if err != nil {
		return nil, fail(span, fmt.Errorf("failed to create session: %w", err))
	}
	span.SetAttributes(sessionAttr(session.ID), attribute.Bool("scenario.generated", sc.Generated))

	s.logger.WithFields(log.Fields{
		"session":   session.ID,
		"scenario":  sc.Name,
		"generated": sc.Generated,
	}).Info("session created")

	return sessionInfo(session), nil
}

// GetSession retrieves session information
func (s *gameServiceImpl) GetSession(ctx context.Context, sessionID string) (*SessionInfo, error) {
	span := s.span(ctx, "GetSession", sessionAttr(sessionID))
	defer span.End()

	s.mu.Lock()
	defer s.mu.Unlock()

	session, err := s.touch(sessionID)
	if err != nil {
		return nil, fail(span, err)
	}
	return sessionInfo(session), nil
}

// ListSessions returns all active sessions
func (s *gameServiceImpl) ListSessions(ctx context.Context) ([]*SessionInfo, error) {
	span := s.span(ctx, "ListSessions")
	defer span.End()

	s.mu.RLock()
	defer s.mu.RUnlock()

	sessions := s.sessions.List()
	result := make([]*SessionInfo, 0, len(sessions))
	for _, sess := range sessions {
		result = append(result, sessionInfo(sess))
	}
	span.SetAttributes(attribute.Int("sessions", len(result)))
	return result, nil
}

// DeleteSession removes a session
func (s *gameServiceImpl) DeleteSession(ctx context.Context, sessionID string) error {
	span := s.span(ctx, "DeleteSession", sessionAttr(sessionID))
	defer span.End()

	s.mu.Lock()
	defer s.mu.Unlock()

	if err := s.sessions.Delete(sessionID); err != nil {
		return fail(span, err)
	}
	return nil
}

// Move executes a single move for a session
func (s *gameServiceImpl) Move(ctx context.Context, sessionID, direction string, reset bool) (*MoveResult, error) {
	span := s.span(ctx, "Move", sessionAttr(sessionID), attribute.String("direction", direction))
	defer span.End()

	s.mu.Lock()
	defer s.mu.Unlock()

	sess, err := s.touch(sessionID)
	if err != nil {
		return nil, fail(span, err)
	}

	d, err := engine.ParseDirection(direction)
	if err != nil {
		return nil, fail(span, fmt.Errorf("%w: %v", ErrInvalidDirection, err))
	}

	events := []GameEvent{}
	if reset {
		sess.Engine.Reset()
		events = append(events, resetEvent(sess))
	}

	from := sess.Engine.GetActor()
	result, _ := sess.Engine.Move(direction)
	state := sess.Engine.GetState()
	target := engine.Target(from, d)

	out := &MoveResult{
		Success:   result == engine.Moved,
		Result:    result,
		GameState: state,
		Message:   state.Message,
		Events:    append(events, moveEvent(direction, result, target)),
	}
	if result == engine.Moved {
		out.Step = &StepInfo{
			Idx:    1,
			Dir:    direction,
			From:   from.Position(),
			To:     state.Actor.Position(),
			Kind:   kindAt(sess.Engine.Grid(), target),
			Result: result,
		}
	} else {
		out.AttemptedTo = attemptAt(sess.Engine.Grid(), target)
	}
	span.SetAttributes(attribute.String("result", result.String()))

	s.save(sessionID)
	return out, nil
}

// BulkMove executes moves in order, stopping at the first that does not move the actor
func (s *gameServiceImpl) BulkMove(ctx context.Context, sessionID string, moves []string, reset bool) (*BulkMoveResult, error) {
	span := s.span(ctx, "BulkMove", sessionAttr(sessionID), attribute.Int("moves.requested", len(moves)))
	defer span.End()

	s.mu.Lock()
	defer s.mu.Unlock()

	sess, err := s.touch(sessionID)
	if err != nil {
		return nil, fail(span, err)
	}

	result := &BulkMoveResult{
		RequestedMoves: len(moves),
		Events:         make([]GameEvent, 0),
		Success:        true,
	}

	if reset {
		sess.Engine.Reset()
		result.Events = append(result.Events, resetEvent(sess))
	}
	result.StartPos = sess.Engine.GetPlayerPosition()

	if len(moves) > engine.MaxBulkMoves {
		result.Truncated = true
		result.Limit = engine.MaxBulkMoves
		moves = moves[:engine.MaxBulkMoves]
	}

	for i, move := range moves {
		d, err := engine.ParseDirection(move)
		if err != nil {
			result.Success = false
			result.StopReasonCode = "invalid_direction"
			result.StoppedReason = fmt.Sprintf("move %d: %v", i+1, err)
			result.StoppedOnMove = i + 1
			break
		}

		from := sess.Engine.GetActor()
		target := engine.Target(from, d)
		moved, _ := sess.Engine.Move(move)
		result.Events = append(result.Events, moveEvent(move, moved, target))

		if moved != engine.Moved {
			result.Success = false
			result.StopReasonCode = moved.String()
			result.StoppedReason = fmt.Sprintf("move %d %s: %s", i+1, move, moved)
			result.StoppedOnMove = i + 1
			result.AttemptedTo = attemptAt(sess.Engine.Grid(), target)
			break
		}

		result.MovesExecuted++
		result.Steps = append(result.Steps, StepInfo{
			Idx:    i + 1,
			Dir:    move,
			From:   from.Position(),
			To:     target,
			Kind:   kindAt(sess.Engine.Grid(), target),
			Result: moved,
		})
	}

	state := sess.Engine.GetState()
	result.GameState = state
	result.EndPos = state.Actor.Position()
	result.Message = state.Message
	result.PossibleMoves = sess.Engine.GetPossibleMoves()
	result.LocalView3x3 = state.LocalView3x3

	span.SetAttributes(
		attribute.Int("moves.executed", result.MovesExecuted),
		attribute.String("stop_reason", result.StopReasonCode),
	)

	s.save(sessionID)
	return result, nil
}

// Reset resets a game session to its scenario's initial state
func (s *gameServiceImpl) Reset(ctx context.Context, sessionID string) (*engine.GameState, error) {
	span := s.span(ctx, "Reset", sessionAttr(sessionID))
	defer span.End()

	s.mu.Lock()
	defer s.mu.Unlock()

	sess, err := s.touch(sessionID)
	if err != nil {
		return nil, fail(span, err)
	}

	state := sess.Engine.Reset()
	s.save(sessionID)
	return state, nil
}

// SetKey presses or releases a held key
func (s *gameServiceImpl) SetKey(ctx context.Context, sessionID, key string, pressed bool) (*engine.GameState, error) {
	span := s.span(ctx, "SetKey", sessionAttr(sessionID), attribute.String("key", key), attribute.Bool("pressed", pressed))
	defer span.End()

	k, err := engine.ParseKey(key)
	if err != nil {
		return nil, fail(span, fmt.Errorf("%w: %v", ErrInvalidKey, err))
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	sess, err := s.touch(sessionID)
	if err != nil {
		return nil, fail(span, err)
	}

	if pressed {
		sess.Engine.Keys().Press(k)
	} else {
		sess.Engine.Keys().Release(k)
	}
	return sess.Engine.GetState(), nil
}

// ClearKeys releases every held key
func (s *gameServiceImpl) ClearKeys(ctx context.Context, sessionID string) (*engine.GameState, error) {
	span := s.span(ctx, "ClearKeys", sessionAttr(sessionID))
	defer span.End()

	s.mu.Lock()
	defer s.mu.Unlock()

	sess, err := s.touch(sessionID)
	if err != nil {
		return nil, fail(span, err)
	}
	sess.Engine.Keys().Clear()
	return sess.Engine.GetState(), nil
}

// Tick advances one session by one frame
func (s *gameServiceImpl) Tick(ctx context.Context, sessionID string) (*TickUpdate, error) {
	span := s.span(ctx, "Tick", sessionAttr(sessionID))
	defer span.End()

	s.mu.Lock()
	defer s.mu.Unlock()

	sess, err := s.touch(sessionID)
	if err != nil {
		return nil, fail(span, err)
	}

	result := sess.Engine.Tick()
	span.SetAttributes(attribute.String("result", result.String()))
	if result != engine.NoInput {
		s.save(sessionID)
	}
	return &TickUpdate{SessionID: sess.ID, Result: result, GameState: sess.Engine.GetState()}, nil
}

// TickAll advances every session with held keys and reports the ones that
// produced a result other than NoInput. Ticked sessions are persisted later by
// SaveTicked.
func (s *gameServiceImpl) TickAll(ctx context.Context) []TickUpdate {
	s.mu.Lock()
	defer s.mu.Unlock()

	var updates []TickUpdate
	for _, sess := range s.sessions.List() {
		if sess.Engine.Keys().Len() == 0 {
			continue
		}
		recorded := len(sess.Engine.GetMoveHistory())
		result := sess.Engine.Tick()
		if result == engine.NoInput {
			continue
		}
		if len(sess.Engine.GetMoveHistory()) != recorded {
			s.ticked[sess.ID] = struct{}{}
		}
		updates = append(updates, TickUpdate{
			SessionID: sess.ID,
			Result:    result,
			GameState: sess.Engine.GetState(),
		})
	}
	return updates
}

// SaveTicked persists the sessions TickAll moved or blocked since the last call and
// returns how many were written. Failed saves are retried on the next call.
func (s *gameServiceImpl) SaveTicked(ctx context.Context) int {
	span := s.span(ctx, "SaveTicked")
	defer span.End()

	s.mu.Lock()
	defer s.mu.Unlock()

	saved := 0
	for id := range s.ticked {
		err := s.sessions.Save(id)
		switch {
		case err == nil:
			saved++
		case errors.Is(err, ErrSessionNotFound):
		default:
			s.logger.WithField("session", id).WithError(err).Warn("failed to persist ticked session")
			continue
		}
		delete(s.ticked, id)
	}
	span.SetAttributes(attribute.Int("saved", saved))
	return saved
}

// GetGameState retrieves the current game state
func (s *gameServiceImpl) GetGameState(ctx context.Context, sessionID string) (*engine.GameState, error) {
	span := s.span(ctx, "GetGameState", sessionAttr(sessionID))
	defer span.End()

	s.mu.Lock()
	defer s.mu.Unlock()

	sess, err := s.touch(sessionID)
	if err != nil {
		return nil, fail(span, err)
	}
	return sess.Engine.GetState(), nil
}

// GetMoveHistory returns paginated move history
func (s *gameServiceImpl) GetMoveHistory(ctx context.Context, sessionID string, opts HistoryOptions) (*HistoryResponse, error) {
	span := s.span(ctx, "GetMoveHistory", sessionAttr(sessionID))
	defer span.End()

	s.mu.RLock()
	defer s.mu.RUnlock()

	sess, err := s.sessions.Get(sessionID)
	if err != nil {
		return nil, fail(span, err)
	}

	return paginate(sess.Engine.GetMoveHistory(), opts), nil
}

// ExportMap returns the canonical RLE document of the session's current grid
func (s *gameServiceImpl) ExportMap(ctx context.Context, sessionID string) (string, error) {
	span := s.span(ctx, "ExportMap", sessionAttr(sessionID))
	defer span.End()

	s.mu.RLock()
	defer s.mu.RUnlock()

	sess, err := s.sessions.Get(sessionID)
	if err != nil {
		return "", fail(span, err)
	}
	return s.scenarios.Codec().Encode(sess.Engine.Grid()), nil
}

// ListScenarios returns the available scenarios
func (s *gameServiceImpl) ListScenarios(ctx context.Context) ([]*ScenarioInfo, error) {
	span := s.span(ctx, "ListScenarios")
	defer span.End()

	infos, err := s.scenarios.ListScenarios()
	if err != nil {
		return nil, fail(span, err)
	}
	return infos, nil
}

// GetScenario loads one scenario with its layout. Missing scenarios are not generated.
func (s *gameServiceImpl) GetScenario(ctx context.Context, name string) (*ScenarioDetail, error) {
	span := s.span(ctx, "GetScenario", attribute.String("scenario", name))
	defer span.End()

	sc, err := s.scenarios.LoadScenario(name)
	if err != nil {
		return nil, fail(span, err)
	}
	return s.detail(sc), nil
}

// SaveScenario strictly decodes document and stores it under name
func (s *gameServiceImpl) SaveScenario(ctx context.Context, name, document string) (*ScenarioDetail, error) {
	span := s.span(ctx, "SaveScenario", attribute.String("scenario", name), attribute.Int("bytes", len(document)))
	defer span.End()

	grid, err := s.strict.Decode(document)
	if err != nil {
		span.SetAttributes(attribute.String("decode.code", engine.DecodeErrorCode(err)))
		return nil, fail(span, fmt.Errorf("%w: %w", ErrInvalidScenario, err))
	}
	if err := s.scenarios.SaveScenario(name, grid); err != nil {
		return nil, fail(span, err)
	}

	sc, err := s.scenarios.LoadScenario(name)
	if err != nil {
		return nil, fail(span, err)
	}
	s.logger.WithFields(log.Fields{"scenario": sc.Name, "rows": grid.Rows(), "cols": grid.Cols()}).Info("scenario saved")
	return s.detail(sc), nil
}

func (s *gameServiceImpl) detail(sc *Scenario) *ScenarioDetail {
	return &ScenarioDetail{
		ScenarioInfo: *NewScenarioInfo(sc.Name, sc.Name+".txt", sc.Grid),
		Layout:       engine.Layout(sc.Grid),
		Map:          s.scenarios.Codec().Encode(sc.Grid),
	}
}

// touch fetches a session and refreshes its last-access time. Callers hold s.mu.
func (s *gameServiceImpl) touch(sessionID string) (*Session, error) {
	sess, err := s.sessions.Get(sessionID)
	if err != nil {
		return nil, err
	}
	if err := s.sessions.UpdateLastAccessed(sessionID); err != nil {
		s.logger.WithField("session", sessionID).WithError(err).Warn("failed to update last access")
	}
	return sess, nil
}

func (s *gameServiceImpl) save(sessionID string) {
	if err := s.sessions.Save(sessionID); err != nil {
		s.logger.WithField("session", sessionID).WithError(err).Warn("failed to persist session")
	}
}

func sessionInfo(sess *Session) *SessionInfo {
	info := &SessionInfo{
		ID:             sess.ID,
		CreatedAt:      sess.CreatedAt,
		LastAccessedAt: sess.LastAccessedAt,
		GameState:      sess.Engine.GetState(),
	}
	if sess.Scenario != nil {
		info.ScenarioName = sess.Scenario.Name
	}
	return info
}

func paginate(history []engine.MoveHistoryEntry, opts HistoryOptions) *HistoryResponse {
	total := len(history)

	if opts.Page < 1 {
		opts.Page = 1
	}
	if opts.Limit <= 0 {
		opts.Limit = 20
	}
	if opts.Limit > 100 {
		opts.Limit = 100
	}
	if opts.Order == "" {
		opts.Order = "desc"
	}

	totalPages := (total + opts.Limit - 1) / opts.Limit
	if totalPages == 0 {
		totalPages = 1
	}

	start := (opts.Page - 1) * opts.Limit
	end := start + opts.Limit
	if end > total {
		end = total
	}

	moves := []engine.MoveHistoryEntry{}
	if start < total {
		if opts.Order == "desc" {
			// most recent first
			for i := total - 1 - start; i >= total-end; i-- {
				moves = append(moves, history[i])
			}
		} else {
			moves = append(moves, history[start:end]...)
		}
	}

	return &HistoryResponse{
		Moves:       moves,
		TotalMoves:  total,
		Page:        opts.Page,
		PageSize:    opts.Limit,
		TotalPages:  totalPages,
		HasNext:     opts.Page < totalPages,
		HasPrevious: opts.Page > 1,
	}
}

func resetEvent(sess *Session) GameEvent {
	return GameEvent{
		Type:      "reset",
		Message:   "Game reset to initial state",
		Timestamp: time.Now(),
		Position:  sess.Engine.GetPlayerPosition(),
	}
}

func moveEvent(direction string, result engine.MoveResult, target engine.Position) GameEvent {
	ev := GameEvent{Timestamp: time.Now(), Position: target}
	if result == engine.Moved {
		ev.Type = "move"
		ev.Message = fmt.Sprintf("Moved %s to (%d,%d)", direction, target.Row, target.Col)
	} else {
		ev.Type = "blocked"
		ev.Message = fmt.Sprintf("Move %s to (%d,%d): %s", direction, target.Row, target.Col, result)
	}
	return ev
}

func kindAt(g *engine.Grid, p engine.Position) string {
	if !g.InBounds(p.Row, p.Col) {
		return "#"
	}
	cell, ok := g.Get(p.Row, p.Col)
	if !ok {
		return engine.KindAbsent.String()
	}
	return cell.Kind.String()
}

func attemptAt(g *engine.Grid, p engine.Position) *AttemptInfo {
	return &AttemptInfo{
		Row:      p.Row,
		Col:      p.Col,
		Kind:     kindAt(g, p),
		Blocking: g.IsBlocked(p.Row, p.Col),
		InBounds: g.InBounds(p.Row, p.Col),
	}
}
