package hexgrid

import (
	"errors"
	"fmt"
	"math/rand/v2"
)

var ErrEmptyAlphabet = errors.New("alphabet has no letters")
var ErrBadDimensions = errors.New("grid dimensions must be positive")

type CellState string

const (
	Blank       CellState = "blank"
	Highlighted CellState = "highlighted"
	TeamA       CellState = "team_a"
	TeamB       CellState = "team_b"
)

// Next follows the host's click cycle: blank, highlighted, team A, team B, blank.
func (s CellState) Next() CellState {
	switch s {
	case Blank:
		return Highlighted
	case Highlighted:
		return TeamA
	case TeamA:
		return TeamB
	default:
		return Blank
	}
}

func (s CellState) Valid() bool {
	switch s {
	case Blank, Highlighted, TeamA, TeamB:
		return true
	}
	return false
}

func ParseCellState(v string) (CellState, error) {
	s := CellState(v)
	if !s.Valid() {
		return "", fmt.Errorf("unknown cell state %q", v)
	}
	return s, nil
}

type Cell struct {
	Coord  HexCoord  `json:"coord"`
	ID     string    `json:"id"`
	Letter string    `json:"letter"`
	State  CellState `json:"state"`
}

// Grid holds rows*cols cells in row-major order.
type Grid struct {
	Rows  int    `json:"rows"`
	Cols  int    `json:"cols"`
	Cells []Cell `json:"cells"`
}

// Generate builds a fresh grid. Letters come from a Fisher-Yates shuffle of the
// alphabet and wrap around when there are more cells than letters.
func Generate(rows, cols int, alphabet Alphabet, rng *rand.Rand) (Grid, error) {
	if rows <= 0 || cols <= 0 {
		return Grid{}, ErrBadDimensions
	}
	if len(alphabet.Letters) == 0 {
		return Grid{}, ErrEmptyAlphabet
	}

	letters := append([]string(nil), alphabet.Letters...)
	for i := len(letters) - 1; i > 0; i-- {
		j := rng.IntN(i + 1)
		letters[i], letters[j] = letters[j], letters[i]
	}

	g := Grid{Rows: rows, Cols: cols, Cells: make([]Cell, 0, rows*cols)}
	for row := 0; row < rows; row++ {
		for col := 0; col < cols; col++ {
			c := HexCoord{Col: col, Row: row}
			g.Cells = append(g.Cells, Cell{
				Coord:  c,
				ID:     CellID(c),
				Letter: letters[len(g.Cells)%len(letters)],
				State:  Blank,
			})
		}
	}
	return g, nil
}

func (g Grid) InBounds(c HexCoord) bool {
	return c.Col >= 0 && c.Col < g.Cols && c.Row >= 0 && c.Row < g.Rows
}

func (g Grid) index(c HexCoord) int { return c.Row*g.Cols + c.Col }

func (g Grid) At(c HexCoord) (Cell, bool) {
	if !g.InBounds(c) {
		return Cell{}, false
	}
	return g.Cells[g.index(c)], true
}

// Cell finds a cell by id.
func (g Grid) Cell(id string) (Cell, bool) {
	var c HexCoord
	if _, err := fmt.Sscanf(id, "c%d-r%d", &c.Col, &c.Row); err != nil {
		return Cell{}, false
	}
	cell, ok := g.At(c)
	if !ok || cell.ID != id {
		return Cell{}, false
	}
	return cell, true
}

// SetState mutates the grid in place; callers clone first when they need an
// untouched copy.
func (g Grid) SetState(id string, s CellState) bool {
	cell, ok := g.Cell(id)
	if !ok {
		return false
	}
	g.Cells[g.index(cell.Coord)].State = s
	return true
}

// Neighbors is the in-bounds subset of the package-level Neighbors.
func (g Grid) Neighbors(c HexCoord) []HexCoord {
	all := Neighbors(c)
	out := all[:0]
	for _, n := range all {
		if g.InBounds(n) {
			out = append(out, n)
		}
	}
	return out
}

func (g Grid) Clone() Grid {
	cp := g
	cp.Cells = append([]Cell(nil), g.Cells...)
	return cp
}

// Clear returns every cell to Blank.
func (g Grid) Clear() {
	for i := range g.Cells {
		g.Cells[i].State = Blank
	}
}
