package engine

import "strings"

// Shape is a boolean occupancy grid indexed [row][col].
type Shape [][]bool

type Piece struct {
	ID    string
	Color Color
	Shape Shape
}

// catalog rows use '#' for an occupied cell.
var catalog = []struct {
	id   string
	rows []string
}{
	{"I1", []string{"#"}},
	{"I2", []string{"##"}},
	{"V3", []string{"#.", "##"}},
	{"I3", []string{"###"}},
	{"O4", []string{"##", "##"}},
	{"T4", []string{"###", ".#."}},
	{"I4", []string{"####"}},
	{"L4", []string{"###", "#.."}},
	{"Z4", []string{"##.", ".##"}},
	{"F5", []string{".##", "##.", ".#."}},
	{"I5", []string{"#####"}},
	{"L5", []string{"####", "#..."}},
	{"N5", []string{"##..", ".###"}},
	{"P5", []string{"##", "##", "#."}},
	{"T5", []string{"###", ".#.", ".#."}},
	{"U5", []string{"#.#", "###"}},
	{"V5", []string{"#..", "#..", "###"}},
	{"W5", []string{"#..", "##.", ".##"}},
	{"X5", []string{".#.", "###", ".#."}},
	{"Y5", []string{"####", ".#.."}},
	{"Z5", []string{"##.", ".#.", ".##"}},
}

var shapes = func() map[string]Shape {
	m := make(map[string]Shape, len(catalog))
	for _, c := range catalog {
		m[c.id] = parseShape(c.rows)
	}
	return m
}()

func parseShape(rows []string) Shape {
	s := make(Shape, len(rows))
	for r, row := range rows {
		s[r] = make([]bool, len(row))
		for c, ch := range row {
			s[r][c] = ch == '#'
		}
	}
	return s
}

// PieceIDs returns the catalog ids in canonical order.
func PieceIDs() []string {
	ids := make([]string, len(catalog))
	for i, c := range catalog {
		ids[i] = c.id
	}
	return ids
}

// NewPiece returns a fresh, unrotated piece of the given color.
func NewPiece(id string, color Color) (Piece, bool) {
	s, ok := shapes[id]
	if !ok {
		return Piece{}, false
	}
	return Piece{ID: id, Color: color, Shape: s.Clone()}, true
}

// FullSet deals one of every catalog piece in the given color.
func FullSet(color Color) []Piece {
	set := make([]Piece, 0, len(catalog))
	for _, c := range catalog {
		p, _ := NewPiece(c.id, color)
		set = append(set, p)
	}
	return set
}

func (s Shape) Clone() Shape {
	out := make(Shape, len(s))
	for r := range s {
		out[r] = append([]bool(nil), s[r]...)
	}
	return out
}

// Rotate returns the shape turned 90 degrees clockwise.
func (s Shape) Rotate() Shape {
	if len(s) == 0 {
		return Shape{}
	}
	h, w := len(s), len(s[0])
	out := make(Shape, w)
	for r := 0; r < w; r++ {
		out[r] = make([]bool, h)
		for c := 0; c < h; c++ {
			out[r][c] = s[h-1-c][r]
		}
	}
	return out
}

func (s Shape) Size() int {
	n := 0
	for _, row := range s {
		for _, v := range row {
			if v {
				n++
			}
		}
	}
	return n
}

func (s Shape) String() string {
	var b strings.Builder
	for i, row := range s {
		if i > 0 {
			b.WriteByte('/')
		}
		for _, v := range row {
			if v {
				b.WriteByte('#')
			} else {
				b.WriteByte('.')
			}
		}
	}
	return b.String()
}

// Rotated returns a copy of p turned clockwise times quarter turns. Negative counts turn
// the other way.
func (p Piece) Rotated(times int) Piece {
	times = ((times % 4) + 4) % 4
	s := p.Shape.Clone()
	for i := 0; i < times; i++ {
		s = s.Rotate()
	}
	return Piece{ID: p.ID, Color: p.Color, Shape: s}
}

func (p Piece) Size() int { return p.Shape.Size() }

// Cells lists the absolute board cells p covers when its grid's top-left sits at anchor.
func (p Piece) Cells(anchor Point) []Point {
	cells := make([]Point, 0, 5)
	for r, row := range p.Shape {
		for c, v := range row {
			if v {
				cells = append(cells, Point{X: anchor.X + c, Y: anchor.Y + r})
			}
		}
	}
	return cells
}
