package diagram

import (
	"fmt"
	"strings"
)

// Canvas pixels per terminal cell.
const (
	cellW = 8
	cellH = 16
)

// RenderASCII draws the scene on a character grid using box-drawing
// characters. Active boxes use double borders; tokens are shown as ● at the
// middle of their trip.
func RenderASCII(s *Scene) string {
	cols := s.Width/cellW + 1
	rows := s.Height/cellH + 1
	g := newGrid(cols, rows)

	for _, l := range s.Lines {
		ch := '·'
		if l.Active {
			ch = '•'
		}
		if l.Dashed {
			ch = '┄'
		}
		g.line(l.X1/cellW, l.Y1/cellH, l.X2/cellW, l.Y2/cellH, ch)
		if l.Arrow {
			g.set(l.X2/cellW, l.Y2/cellH, arrowRune(l.X1, l.Y1, l.X2, l.Y2))
		}
	}

	for _, b := range s.Boxes {
		g.box(b)
	}

	for _, t := range s.Tokens {
		g.set((t.X1+t.X2)/2/cellW, (t.Y1+t.Y2)/2/cellH, '●')
	}

	for _, n := range s.Notes {
		g.text(n.X/cellW, n.Y/cellH, n.Text)
	}

	var b strings.Builder
	b.WriteString(fmt.Sprintf("=== %s: %s ===\n", s.Title, s.ModeTitle))
	b.WriteString(g.String())
	b.WriteString(fmt.Sprintf("%s  %s\n", s.Label(), s.Caption))
	return b.String()
}

type grid struct {
	cols, rows int
	cells      [][]rune
}

func newGrid(cols, rows int) *grid {
	cells := make([][]rune, rows)
	for i := range cells {
		cells[i] = []rune(strings.Repeat(" ", cols))
	}
	return &grid{cols: cols, rows: rows, cells: cells}
}

func (g *grid) set(x, y int, r rune) {
	if x < 0 || y < 0 || x >= g.cols || y >= g.rows {
		return
	}
	g.cells[y][x] = r
}

func (g *grid) text(x, y int, s string) {
	for i, r := range []rune(s) {
		g.set(x+i, y, r)
	}
}

// line rasterizes a segment with Bresenham's algorithm.
func (g *grid) line(x0, y0, x1, y1 int, r rune) {
	dx, dy := absInt(x1-x0), -absInt(y1-y0)
	sx, sy := 1, 1
	if x0 > x1 {
		sx = -1
	}
	if y0 > y1 {
		sy = -1
	}
	e := dx + dy
	for {
		g.set(x0, y0, r)
		if x0 == x1 && y0 == y1 {
			return
		}
		e2 := 2 * e
		if e2 >= dy {
			e += dy
			x0 += sx
		}
		if e2 <= dx {
			e += dx
			y0 += sy
		}
	}
}

func (g *grid) box(b Box) {
	x0, y0 := b.X/cellW, b.Y/cellH
	x1, y1 := (b.X+b.W)/cellW, (b.Y+b.H)/cellH
	if y1 <= y0+1 {
		y1 = y0 + 2
	}
	tl, tr, bl, br, h, v := '┌', '┐', '└', '┘', '─', '│'
	if b.Active {
		tl, tr, bl, br, h, v = '╔', '╗', '╚', '╝', '═', '║'
	}
	for x := x0 + 1; x < x1; x++ {
		g.set(x, y0, h)
		g.set(x, y1, h)
	}
	for y := y0 + 1; y < y1; y++ {
		g.set(x0, y, v)
		g.set(x1, y, v)
		for x := x0 + 1; x < x1; x++ {
			g.set(x, y, ' ')
		}
	}
	g.set(x0, y0, tl)
	g.set(x1, y0, tr)
	g.set(x0, y1, bl)
	g.set(x1, y1, br)

	label := truncate(b.Label, max(x1-x0-1, 1))
	mid := (y0 + y1) / 2
	start := x0 + 1 + (x1-x0-1-len([]rune(label)))/2
	g.text(start, mid, label)
}

func (g *grid) String() string {
	var b strings.Builder
	for _, row := range g.cells {
		b.WriteString(strings.TrimRight(string(row), " "))
		b.WriteByte('\n')
	}
	return b.String()
}

func arrowRune(x1, y1, x2, y2 int) rune {
	dx, dy := x2-x1, y2-y1
	if absInt(dx) >= absInt(dy) {
		if dx >= 0 {
			return '▶'
		}
		return '◀'
	}
	if dy >= 0 {
		return '▼'
	}
	return '▲'
}

func absInt(v int) int {
	if v < 0 {
		return -v
	}
	return v
}
