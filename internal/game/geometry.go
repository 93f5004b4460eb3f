package game

// Point is a pointer position in host coordinates.
type Point struct {
	X float64 `json:"x"`
	Y float64 `json:"y"`
}

// Rect is an axis-aligned rectangle; Left <= Right and Top <= Bottom.
type Rect struct {
	Left, Top, Right, Bottom float64
}

// RectFromCorners normalises two opposite corners into a Rect.
func RectFromCorners(a, b Point) Rect {
	r := Rect{Left: a.X, Top: a.Y, Right: b.X, Bottom: b.Y}
	if r.Left > r.Right {
		r.Left, r.Right = r.Right, r.Left
	}
	if r.Top > r.Bottom {
		r.Top, r.Bottom = r.Bottom, r.Top
	}
	return r
}

// Overlaps is the inclusive overlap test: touching edges count.
func (r Rect) Overlaps(o Rect) bool {
	return !(r.Right < o.Left || r.Left > o.Right || r.Bottom < o.Top || r.Top > o.Bottom)
}

// Layout maps grid positions to bounding boxes in the pointer's coordinate space.
type Layout interface {
	Bounds(p Pos) Rect
}

// LayoutFunc adapts a function to Layout.
type LayoutFunc func(p Pos) Rect

func (f LayoutFunc) Bounds(p Pos) Rect { return f(p) }

// GridLayout places uniform cells on a regular lattice.
type GridLayout struct {
	OriginX    float64 `json:"originX"`
	OriginY    float64 `json:"originY"`
	CellWidth  float64 `json:"cellWidth"`
	CellHeight float64 `json:"cellHeight"`
	Gap        float64 `json:"gap"`
}

// DefaultLayout is a 40px lattice with 4px gaps starting at the origin.
var DefaultLayout = GridLayout{CellWidth: 40, CellHeight: 40, Gap: 4}

// Bounds returns the box of the cell at p.
func (l GridLayout) Bounds(p Pos) Rect {
	left := l.OriginX + float64(p.Col)*(l.CellWidth+l.Gap)
	top := l.OriginY + float64(p.Row)*(l.CellHeight+l.Gap)
	return Rect{Left: left, Top: top, Right: left + l.CellWidth, Bottom: top + l.CellHeight}
}

// Valid reports whether the cells have a positive size and the gap is not negative.
func (l GridLayout) Valid() bool {
	return l.CellWidth > 0 && l.CellHeight > 0 && l.Gap >= 0
}
