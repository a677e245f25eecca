package hexgrid

// Edge selects the cells a path must start or finish on.
type Edge func(HexCoord) bool

func TopRow(c HexCoord) bool  { return c.Row == 0 }
func LeftCol(c HexCoord) bool { return c.Col == 0 }

func BottomRow(g Grid) Edge { return func(c HexCoord) bool { return c.Row == g.Rows-1 } }
func RightCol(g Grid) Edge  { return func(c HexCoord) bool { return c.Col == g.Cols-1 } }

// Connected reports whether cells in state team form a path from any cell
// satisfying start to any cell satisfying end.
func Connected(g Grid, team CellState, start, end Edge) bool {
	adj := make(map[HexCoord][]HexCoord)
	for _, cell := range g.Cells {
		if cell.State != team {
			continue
		}
		for _, n := range g.Neighbors(cell.Coord) {
			if nc, _ := g.At(n); nc.State == team {
				adj[cell.Coord] = append(adj[cell.Coord], n)
			}
		}
	}

	visited := make(map[HexCoord]bool)
	var queue []HexCoord
	for _, cell := range g.Cells {
		if cell.State == team && start(cell.Coord) {
			visited[cell.Coord] = true
			queue = append(queue, cell.Coord)
		}
	}

	for len(queue) > 0 {
		cur := queue[0]
		queue = queue[1:]
		if end(cur) {
			return true
		}
		for _, n := range adj[cur] {
			if !visited[n] {
				visited[n] = true
				queue = append(queue, n)
			}
		}
	}
	return false
}

// Winner checks both teams' axes: team A spans top to bottom, team B spans
// left to right.
func Winner(g Grid) (CellState, bool) {
	if Connected(g, TeamA, TopRow, BottomRow(g)) {
		return TeamA, true
	}
	if Connected(g, TeamB, LeftCol, RightCol(g)) {
		return TeamB, true
	}
	return "", false
}
