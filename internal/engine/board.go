package engine

const BoardSize = 20

// Board is the fixed grid of colored cells. The zero value is an empty board.
type Board struct {
	cells [BoardSize][BoardSize]Color
}

func InBounds(p Point) bool {
	return p.X >= 0 && p.X < BoardSize && p.Y >= 0 && p.Y < BoardSize
}

func (b *Board) At(p Point) Color {
	if !InBounds(p) {
		return ColorNone
	}
	return b.cells[p.Y][p.X]
}

func (b *Board) Clear() {
	b.cells = [BoardSize][BoardSize]Color{}
}

// Cells flattens the board row by row.
func (b *Board) Cells() []Color {
	out := make([]Color, 0, BoardSize*BoardSize)
	for y := 0; y < BoardSize; y++ {
		out = append(out, b.cells[y][:]...)
	}
	return out
}

var (
	orthogonal = []Point{{0, -1}, {1, 0}, {0, 1}, {-1, 0}}
	diagonal   = []Point{{-1, -1}, {1, -1}, {1, 1}, {-1, 1}}
)

func (b *Board) touches(cells []Point, c Color, dirs []Point) bool {
	for _, cell := range cells {
		for _, d := range dirs {
			if b.At(Point{cell.X + d.X, cell.Y + d.Y}) == c {
				return true
			}
		}
	}
	return false
}

// Check validates placing p with its grid's top-left at anchor and returns the cells it
// would cover. The board is never modified.
func (b *Board) Check(p Piece, anchor Point, firstMove bool) ([]Point, error) {
	if !p.Color.Valid() {
		return nil, ErrInvalidColor
	}
	cells := p.Cells(anchor)
	if len(cells) == 0 {
		return nil, ErrEmptyPiece
	}
	for _, cell := range cells {
		if !InBounds(cell) {
			return nil, ErrOutOfBounds
		}
		if b.cells[cell.Y][cell.X] != ColorNone {
			return nil, ErrOverlap
		}
	}

	if firstMove {
		home := HomeCorner(p.Color)
		for _, cell := range cells {
			if cell == home {
				return cells, nil
			}
		}
		return nil, ErrHomeCorner
	}

	if b.touches(cells, p.Color, orthogonal) {
		return nil, ErrEdgeContact
	}
	if !b.touches(cells, p.Color, diagonal) {
		return nil, ErrNoCornerContact
	}
	return cells, nil
}

// Place writes p onto the board if Check accepts it. A rejected placement leaves every
// cell untouched.
func (b *Board) Place(p Piece, anchor Point, firstMove bool) error {
	cells, err := b.Check(p, anchor, firstMove)
	if err != nil {
		return err
	}
	for _, cell := range cells {
		b.cells[cell.Y][cell.X] = p.Color
	}
	return nil
}
