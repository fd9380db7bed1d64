package engine

import (
	"errors"
	"sort"
)

var ErrOutOfBounds = errors.New("piece goes off the board")
var ErrOverlap = errors.New("cell already occupied")
var ErrHomeCorner = errors.New("first move must cover your home corner")
var ErrEdgeContact = errors.New("piece touches your own color along an edge")
var ErrNoCornerContact = errors.New("piece must touch your own color at a corner")
var ErrInvalidColor = errors.New("invalid color")
var ErrEmptyPiece = errors.New("empty piece")

// EmptyHandBonus replaces a zero remainder when a seat placed every piece.
const EmptyHandBonus = -15

// HandScore sums the cells still held across the given pieces. Lower is better.
func HandScore(pieces []Piece) int {
	if len(pieces) == 0 {
		return EmptyHandBonus
	}
	total := 0
	for _, p := range pieces {
		total += p.Size()
	}
	return total
}

type Standing struct {
	Name  string
	Score int
}

type Outcome struct {
	// Standings is ordered best first. Ties keep their seat order.
	Standings []Standing
	Winner    string
	Draw      bool
}

// Rank orders scores ascending. A draw is reported when the two best scores are equal.
func Rank(scores []Standing) Outcome {
	out := Outcome{Standings: append([]Standing(nil), scores...)}
	sort.SliceStable(out.Standings, func(i, j int) bool {
		return out.Standings[i].Score < out.Standings[j].Score
	})
	switch {
	case len(out.Standings) == 0:
	case len(out.Standings) > 1 && out.Standings[0].Score == out.Standings[1].Score:
		out.Draw = true
	default:
		out.Winner = out.Standings[0].Name
	}
	return out
}
