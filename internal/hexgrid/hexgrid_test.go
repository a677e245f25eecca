package hexgrid

import (
	"math"
	"math/rand/v2"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newRNG() *rand.Rand { return rand.New(rand.NewPCG(1, 2)) }

func blankGrid(t *testing.T, rows, cols int) Grid {
	t.Helper()
	a, err := LookupAlphabet(DefaultAlphabet)
	require.NoError(t, err)
	g, err := Generate(rows, cols, a, newRNG())
	require.NoError(t, err)
	return g
}

func TestNeighbors_ParityRule(t *testing.T) {
	cases := []struct {
		name string
		in   HexCoord
		want []HexCoord
	}{
		{
			name: "even row leans left",
			in:   HexCoord{Col: 2, Row: 2},
			want: []HexCoord{{1, 2}, {3, 2}, {1, 1}, {2, 1}, {1, 3}, {2, 3}},
		},
		{
			name: "odd row leans right",
			in:   HexCoord{Col: 2, Row: 1},
			want: []HexCoord{{1, 1}, {3, 1}, {2, 0}, {3, 0}, {2, 2}, {3, 2}},
		},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			assert.ElementsMatch(t, tc.want, Neighbors(tc.in))
		})
	}
}

func TestNeighbors_Symmetric(t *testing.T) {
	g := blankGrid(t, 5, 5)
	for _, a := range g.Cells {
		for _, b := range g.Neighbors(a.Coord) {
			assert.Contains(t, g.Neighbors(b), a.Coord, "%v -> %v is not mutual", a.Coord, b)
		}
	}
}

func TestGrid_NeighborsStayInBounds(t *testing.T) {
	g := blankGrid(t, 5, 5)
	assert.ElementsMatch(t, []HexCoord{{1, 0}, {0, 1}}, g.Neighbors(HexCoord{0, 0}))
	for _, c := range g.Cells {
		for _, n := range g.Neighbors(c.Coord) {
			assert.True(t, g.InBounds(n))
		}
	}
}

func TestGenerate_FiveByFive(t *testing.T) {
	a, err := LookupAlphabet("arabic")
	require.NoError(t, err)
	require.Len(t, a.Letters, 28)

	inAlphabet := make(map[string]bool)
	for _, l := range a.Letters {
		inAlphabet[l] = true
	}

	for seed := uint64(0); seed < 20; seed++ {
		g, err := Generate(5, 5, a, rand.New(rand.NewPCG(seed, seed)))
		require.NoError(t, err)
		require.Len(t, g.Cells, 25)

		ids := make(map[string]bool)
		for _, c := range g.Cells {
			assert.False(t, ids[c.ID], "duplicate id %s", c.ID)
			ids[c.ID] = true
			assert.True(t, inAlphabet[c.Letter], "letter %q not in alphabet", c.Letter)
			assert.Equal(t, Blank, c.State)
		}
		// 25 cells from 28 shuffled letters never repeat.
		letters := make(map[string]bool)
		for _, c := range g.Cells {
			letters[c.Letter] = true
		}
		assert.Len(t, letters, 25)
	}
}

func TestGenerate_ReusesShortAlphabetCyclically(t *testing.T) {
	a := Alphabet{Name: "tiny", Letters: []string{"x", "y", "z"}}
	g, err := Generate(3, 3, a, newRNG())
	require.NoError(t, err)

	for i, c := range g.Cells {
		assert.Equal(t, g.Cells[i%3].Letter, c.Letter)
	}
}

func TestGenerate_RejectsBadInput(t *testing.T) {
	_, err := Generate(0, 5, Alphabet{Letters: []string{"a"}}, newRNG())
	assert.ErrorIs(t, err, ErrBadDimensions)

	_, err = Generate(5, 5, Alphabet{}, newRNG())
	assert.ErrorIs(t, err, ErrEmptyAlphabet)
}

func TestLookupAlphabet_Unknown(t *testing.T) {
	_, err := LookupAlphabet("klingon")
	assert.ErrorIs(t, err, ErrUnknownAlphabet)
}

func TestLoadAlphabets_RejectsEmptyEntry(t *testing.T) {
	_, err := LoadAlphabets([]byte("alphabets:\n  - name: none\n    letters: []\n"))
	assert.ErrorIs(t, err, ErrEmptyAlphabet)
}

func TestGrid_CellLookup(t *testing.T) {
	g := blankGrid(t, 5, 5)

	c, ok := g.Cell("c3-r4")
	require.True(t, ok)
	assert.Equal(t, HexCoord{Col: 3, Row: 4}, c.Coord)

	for _, id := range []string{"c5-r0", "c1-r1x", "nope", ""} {
		_, ok := g.Cell(id)
		assert.False(t, ok, id)
	}
}

func TestGrid_CloneIsIndependent(t *testing.T) {
	g := blankGrid(t, 2, 2)
	cp := g.Clone()
	require.True(t, cp.SetState("c0-r0", TeamA))

	c, _ := g.Cell("c0-r0")
	assert.Equal(t, Blank, c.State)
}

func TestCellState_CycleOrder(t *testing.T) {
	s := Blank
	var seen []CellState
	for i := 0; i < 4; i++ {
		s = s.Next()
		seen = append(seen, s)
	}
	assert.Equal(t, []CellState{Highlighted, TeamA, TeamB, Blank}, seen)
}

func TestProject(t *testing.T) {
	const size = 10.0
	w := size * math.Sqrt(3)

	assert.InDelta(t, 0, Project(HexCoord{0, 0}, size).X, 1e-9)
	assert.InDelta(t, w/2, Project(HexCoord{0, 1}, size).X, 1e-9)
	assert.InDelta(t, 15, Project(HexCoord{0, 1}, size).Y, 1e-9)
	assert.InDelta(t, 2*w, Project(HexCoord{2, 2}, size).X, 1e-9)
	assert.InDelta(t, 30, Project(HexCoord{2, 2}, size).Y, 1e-9)
}

func TestCorners_PointUp(t *testing.T) {
	pts := Corners(Point{}, 10)
	for _, p := range pts {
		assert.InDelta(t, 10, math.Hypot(p.X, p.Y), 1e-9)
	}
	// Corner 4 sits at 270°, straight up in screen coordinates.
	assert.InDelta(t, 0, pts[4].X, 1e-9)
	assert.InDelta(t, -10, pts[4].Y, 1e-9)
}

func TestConnected_ColumnPath(t *testing.T) {
	g := blankGrid(t, 5, 5)
	for row := 0; row < 5; row++ {
		require.True(t, g.SetState(CellID(HexCoord{Col: 2, Row: row}), TeamA))
	}

	assert.True(t, Connected(g, TeamA, TopRow, BottomRow(g)))
	assert.False(t, Connected(g, TeamB, TopRow, BottomRow(g)))

	g.SetState(CellID(HexCoord{Col: 2, Row: 2}), Blank)
	assert.False(t, Connected(g, TeamA, TopRow, BottomRow(g)))
}

func TestConnected_IgnoresOtherStates(t *testing.T) {
	g := blankGrid(t, 3, 3)
	g.SetState("c0-r0", TeamA)
	g.SetState("c0-r1", Highlighted)
	g.SetState("c0-r2", TeamA)

	assert.False(t, Connected(g, TeamA, TopRow, BottomRow(g)))
}

func TestWinner(t *testing.T) {
	g := blankGrid(t, 5, 5)
	_, ok := Winner(g)
	assert.False(t, ok)

	for col := 0; col < 5; col++ {
		g.SetState(CellID(HexCoord{Col: col, Row: 3}), TeamB)
	}
	team, ok := Winner(g)
	require.True(t, ok)
	assert.Equal(t, TeamB, team)
}
