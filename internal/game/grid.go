package game

// Cell holds a digit 1..9, or Empty once matched.
type Cell int8

// Empty marks a cleared cell.
const Empty Cell = 0

const (
	minValue = 1
	maxValue = 9
)

// Pos addresses a grid cell.
type Pos struct {
	Row int `json:"row"`
	Col int `json:"col"`
}

// Grid is a fixed rows×cols board, stored row-major.
type Grid struct {
	rows, cols int
	cells      []Cell
}

// NewGrid samples every cell independently from randomInt(1, 9).
func NewGrid(rows, cols int, randomInt RandomInt) Grid {
	g := Grid{rows: rows, cols: cols, cells: make([]Cell, rows*cols)}
	for i := range g.cells {
		g.cells[i] = Cell(randomInt(minValue, maxValue))
	}
	return g
}

// GridFromValues builds a grid from explicit rows; 0 means Empty.
// Rows shorter than the first row are padded with Empty.
func GridFromValues(values [][]int) Grid {
	rows := len(values)
	cols := 0
	if rows > 0 {
		cols = len(values[0])
	}
	g := Grid{rows: rows, cols: cols, cells: make([]Cell, rows*cols)}
	for r, row := range values {
		for c, v := range row {
			if c < cols {
				g.cells[r*cols+c] = Cell(v)
			}
		}
	}
	return g
}

func (g Grid) Rows() int { return g.rows }
func (g Grid) Cols() int { return g.cols }

// In reports whether p lies on the board.
func (g Grid) In(p Pos) bool {
	return p.Row >= 0 && p.Row < g.rows && p.Col >= 0 && p.Col < g.cols
}

// At returns the cell at p; off-board positions read as Empty.
func (g Grid) At(p Pos) Cell {
	if !g.In(p) {
		return Empty
	}
	return g.cells[p.Row*g.cols+p.Col]
}

func (g Grid) set(p Pos, c Cell) {
	if g.In(p) {
		g.cells[p.Row*g.cols+p.Col] = c
	}
}

// Remaining counts non-empty cells.
func (g Grid) Remaining() int {
	n := 0
	for _, c := range g.cells {
		if c != Empty {
			n++
		}
	}
	return n
}

// Values copies the grid into nested slices for rendering.
func (g Grid) Values() [][]int {
	out := make([][]int, g.rows)
	for r := 0; r < g.rows; r++ {
		row := make([]int, g.cols)
		for c := 0; c < g.cols; c++ {
			row[c] = int(g.cells[r*g.cols+c])
		}
		out[r] = row
	}
	return out
}
