package engine

import "strings"

// ActorGlyph marks the actor in text views
const ActorGlyph = '@'

// Layout returns one string per row with each cell's kind letter, '.' for unset cells.
func Layout(g *Grid) []string {
	out := make([]string, g.Rows())
	var b strings.Builder
	for row := 0; row < g.Rows(); row++ {
		b.Reset()
		for col := 0; col < g.Cols(); col++ {
			b.WriteByte(byte(kindAt(g, row, col)))
		}
		out[row] = b.String()
	}
	return out
}

// Render draws the grid with the actor on top, cells separated by spaces.
func Render(g *Grid, actor *Actor) string {
	var b strings.Builder
	for row := 0; row < g.Rows(); row++ {
		for col := 0; col < g.Cols(); col++ {
			if col > 0 {
				b.WriteByte(' ')
			}
			if actor != nil && actor.Row == row && actor.Col == col {
				b.WriteByte(ActorGlyph)
				continue
			}
			b.WriteByte(byte(kindAt(g, row, col)))
		}
		b.WriteByte('\n')
	}
	return b.String()
}

// LocalView lists the 8 cells around the actor. Cells past the edge are
// reported as blocking with kind "#".
func LocalView(g *Grid, actor Actor) []SurroundingCell {
	out := make([]SurroundingCell, len(neighbours))
	for i, d := range neighbours {
		row, col := actor.Row+d.DRow, actor.Col+d.DCol
		kind := "#"
		if g.InBounds(row, col) {
			kind = kindAt(g, row, col).String()
		}
		out[i] = SurroundingCell{
			Row:      row,
			Col:      col,
			Kind:     kind,
			Blocking: g.IsBlocked(row, col),
		}
	}
	return out
}

// LocalView3x3 renders the 3x3 window centred on the actor
func LocalView3x3(g *Grid, actor Actor) []string {
	rows := make([]string, 3)
	for dr := -1; dr <= 1; dr++ {
		var b strings.Builder
		for dc := -1; dc <= 1; dc++ {
			row, col := actor.Row+dr, actor.Col+dc
			switch {
			case dr == 0 && dc == 0:
				b.WriteByte(ActorGlyph)
			case !g.InBounds(row, col):
				b.WriteByte('#')
			default:
				b.WriteByte(byte(kindAt(g, row, col)))
			}
		}
		rows[dr+1] = b.String()
	}
	return rows
}

func kindAt(g *Grid, row, col int) Kind {
	cell, ok := g.Get(row, col)
	if !ok {
		return KindAbsent
	}
	return cell.Kind
}
