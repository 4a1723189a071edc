package main

import (
	"fmt"

	"github.com/zyedidia/generic/mapset"

	"github.com/wricardo/mcp-training/tilegame/game/engine"
	"github.com/wricardo/mcp-training/tilegame/game/service"
)

// steps lists the 8 moves the explorer may send, straight moves first so
// paths prefer them on ties
var steps = []engine.Direction{
	{DRow: -1}, {DRow: 1}, {DCol: -1}, {DCol: 1},
	{DRow: -1, DCol: -1}, {DRow: -1, DCol: 1}, {DRow: 1, DCol: -1}, {DRow: 1, DCol: 1},
}

// Explorer plans tours that visit every open cell reachable from the start
type Explorer struct {
	grid    *engine.Grid
	visited mapset.Set[engine.Position]
	blocked mapset.Set[engine.Position]
}

// NewExplorer reads the map from the session state
func NewExplorer(state *engine.GameState) (*Explorer, error) {
	grid, err := engine.Decode(state.Map)
	if err != nil {
		return nil, fmt.Errorf("decode session map: %w", err)
	}
	e := &Explorer{
		grid:    grid,
		visited: mapset.New[engine.Position](),
		blocked: mapset.New[engine.Position](),
	}
	e.visited.Put(state.Actor.Position())
	return e, nil
}

// Visited is the number of distinct cells the actor has stood on
func (e *Explorer) Visited() int { return e.visited.Size() }

func (e *Explorer) passable(p engine.Position) bool {
	return !e.grid.IsBlocked(p.Row, p.Col) && !e.blocked.Has(p)
}

// NextMoves chains hops to the nearest unvisited cell until max moves are
// planned. It returns nil once nothing reachable is left.
func (e *Explorer) NextMoves(from engine.Position, max int) []string {
	planned := mapset.New[engine.Position]()
	var out []string
	pos := from
	for len(out) < max {
		path, dest, ok := e.nearestUnvisited(pos, planned)
		if !ok {
			break
		}
		out = append(out, path...)
		planned.Put(dest)
		pos = dest
	}
	if len(out) > max {
		out = out[:max]
	}
	return out
}

// nearestUnvisited runs a BFS from pos over passable cells and stops at the
// first cell neither visited nor planned.
func (e *Explorer) nearestUnvisited(pos engine.Position, planned mapset.Set[engine.Position]) ([]string, engine.Position, bool) {
	type item struct {
		pos  engine.Position
		path []string
	}

	queue := []item{{pos: pos}}
	seen := mapset.New[engine.Position]()
	seen.Put(pos)

	for len(queue) > 0 {
		current := queue[0]
		queue = queue[1:]

		for _, d := range steps {
			next := engine.Target(engine.Actor{Row: current.pos.Row, Col: current.pos.Col}, d)
			if seen.Has(next) || !e.passable(next) {
				continue
			}
			seen.Put(next)

			path := append(append([]string{}, current.path...), d.String())
			if !e.visited.Has(next) && !planned.Has(next) {
				return path, next, true
			}
			queue = append(queue, item{pos: next, path: path})
		}
	}
	return nil, engine.Position{}, false
}

// Observe records the cells a bulk move walked through and any cell the
// server refused.
func (e *Explorer) Observe(result *service.BulkMoveResult) {
	for _, s := range result.Steps {
		e.visited.Put(s.To)
	}
	if a := result.AttemptedTo; a != nil && a.Blocking {
		e.blocked.Put(engine.Position{Row: a.Row, Col: a.Col})
	}
}

// Reachable counts the open cells connected to start
func (e *Explorer) Reachable(start engine.Position) int {
	return len(engine.Reachable(e.grid, start))
}
