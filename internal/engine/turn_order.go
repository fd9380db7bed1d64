package engine

type Color int

const (
	ColorNone   Color = 0
	ColorRed    Color = 1
	ColorBlue   Color = 2
	ColorYellow Color = 3
	ColorGreen  Color = 4
)

// Colors is the fixed turn order.
var Colors = []Color{ColorRed, ColorBlue, ColorYellow, ColorGreen}

func (c Color) Valid() bool { return c >= ColorRed && c <= ColorGreen }

func (c Color) String() string {
	switch c {
	case ColorRed:
		return "RED"
	case ColorBlue:
		return "BLUE"
	case ColorYellow:
		return "YELLOW"
	case ColorGreen:
		return "GREEN"
	default:
		return "NONE"
	}
}

// Next returns the color after c in circular order. ColorNone yields ColorRed.
func (c Color) Next() Color {
	return Color(int(c)%len(Colors) + 1)
}

type Point struct {
	X int
	Y int
}

// HomeCorner is the board corner a color's first placement must cover.
func HomeCorner(c Color) Point {
	switch c {
	case ColorRed:
		return Point{0, 0}
	case ColorBlue:
		return Point{BoardSize - 1, 0}
	case ColorYellow:
		return Point{BoardSize - 1, BoardSize - 1}
	case ColorGreen:
		return Point{0, BoardSize - 1}
	}
	return Point{-1, -1}
}

// SeatColors lists the colors controlled by seat index in a game with seatCount seats.
// Two seats split the board between non-adjacent pairs; four seats take one color each.
func SeatColors(seatCount, seat int) []Color {
	switch seatCount {
	case 2:
		if seat == 0 {
			return []Color{ColorRed, ColorYellow}
		}
		if seat == 1 {
			return []Color{ColorBlue, ColorGreen}
		}
	case 4:
		if seat >= 0 && seat < 4 {
			return []Color{Colors[seat]}
		}
	}
	return nil
}
