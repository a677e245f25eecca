package hexgrid

import (
	"fmt"
	"math"
)

// HexCoord addresses a cell on an odd-row-offset grid.
type HexCoord struct {
	Col int `json:"col"`
	Row int `json:"row"`
}

func (c HexCoord) String() string { return fmt.Sprintf("(%d,%d)", c.Col, c.Row) }

type Point struct {
	X float64 `json:"x"`
	Y float64 `json:"y"`
}

// Project returns the pixel center of c for pointy-topped hexes of the given size
// (center to corner). Odd rows shift right by half a cell width.
func Project(c HexCoord, size float64) Point {
	width := size * math.Sqrt(3)
	x := width * float64(c.Col)
	if c.Row&1 == 1 {
		x += width / 2
	}
	return Point{X: x, Y: 1.5 * size * float64(c.Row)}
}

// Corners lists the six corners of a point-up hex, starting at 30°.
func Corners(center Point, size float64) [6]Point {
	var pts [6]Point
	for i := range pts {
		rad := math.Pi / 180 * (60*float64(i) + 30)
		pts[i] = Point{
			X: center.X + size*math.Cos(rad),
			Y: center.Y + size*math.Sin(rad),
		}
	}
	return pts
}

// Neighbors returns the up to six coordinates adjacent to c, without bounds checks.
func Neighbors(c HexCoord) []HexCoord {
	// Diagonal neighbours lean right on odd rows and left on even rows.
	lo, hi := c.Col-1, c.Col
	if c.Row&1 == 1 {
		lo, hi = c.Col, c.Col+1
	}
	return []HexCoord{
		{Col: c.Col - 1, Row: c.Row},
		{Col: c.Col + 1, Row: c.Row},
		{Col: lo, Row: c.Row - 1},
		{Col: hi, Row: c.Row - 1},
		{Col: lo, Row: c.Row + 1},
		{Col: hi, Row: c.Row + 1},
	}
}

// CellID is the stable identifier for the cell at c.
func CellID(c HexCoord) string { return fmt.Sprintf("c%d-r%d", c.Col, c.Row) }
