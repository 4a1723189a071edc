package engine

import "github.com/zyedidia/generic/mapset"

// ManhattanDistance calculates the Manhattan distance between two positions
func ManhattanDistance(from, to Position) int {
	dr := from.Row - to.Row
	if dr < 0 {
		dr = -dr
	}
	dc := from.Col - to.Col
	if dc < 0 {
		dc = -dc
	}
	return dr + dc
}

// IsValidPosition reports whether an actor may stand at p
func IsValidPosition(g *Grid, p Position) bool {
	return !g.IsBlocked(p.Row, p.Col)
}

// NearestOpenCell finds the walkable cell closest to p by Manhattan distance,
// breaking ties in row-major order. found is false on a fully blocked grid.
func NearestOpenCell(g *Grid, p Position) (Position, bool) {
	best := Position{}
	bestDist := -1
	for row := 0; row < g.Rows(); row++ {
		for col := 0; col < g.Cols(); col++ {
			if g.IsBlocked(row, col) {
				continue
			}
			candidate := Position{Row: row, Col: col}
			dist := ManhattanDistance(p, candidate)
			if bestDist == -1 || dist < bestDist {
				best, bestDist = candidate, dist
			}
		}
	}
	return best, bestDist != -1
}

// Relocate moves the actor onto the nearest open cell if its current position
// is outside the grid or blocked. It reports whether the actor ends up valid.
func Relocate(g *Grid, actor *Actor) bool {
	if IsValidPosition(g, actor.Position()) {
		return true
	}
	p, ok := NearestOpenCell(g, actor.Position())
	if !ok {
		return false
	}
	actor.Row, actor.Col = p.Row, p.Col
	return true
}

// neighbours lists the 8 surrounding offsets, clockwise from north
var neighbours = []Direction{
	{DRow: -1, DCol: 0},
	{DRow: -1, DCol: 1},
	{DRow: 0, DCol: 1},
	{DRow: 1, DCol: 1},
	{DRow: 1, DCol: 0},
	{DRow: 1, DCol: -1},
	{DRow: 0, DCol: -1},
	{DRow: -1, DCol: -1},
}

// Reachable returns every open cell the actor can reach from start using the
// same 8-way steps the movement engine allows.
func Reachable(g *Grid, start Position) []Position {
	if g.IsBlocked(start.Row, start.Col) {
		return nil
	}
	visited := mapset.New[Position]()
	visited.Put(start)
	queue := []Position{start}
	var out []Position

	for len(queue) > 0 {
		cur := queue[0]
		queue = queue[1:]
		out = append(out, cur)

		for _, d := range neighbours {
			next := Position{Row: cur.Row + d.DRow, Col: cur.Col + d.DCol}
			if g.IsBlocked(next.Row, next.Col) || visited.Has(next) {
				continue
			}
			visited.Put(next)
			queue = append(queue, next)
		}
	}
	return out
}

// CountRegions counts connected groups of open cells
func CountRegions(g *Grid) int {
	seen := mapset.New[Position]()
	regions := 0
	for row := 0; row < g.Rows(); row++ {
		for col := 0; col < g.Cols(); col++ {
			p := Position{Row: row, Col: col}
			if g.IsBlocked(row, col) || seen.Has(p) {
				continue
			}
			regions++
			for _, q := range Reachable(g, p) {
				seen.Put(q)
			}
		}
	}
	return regions
}
