package model

// Cell is a map cell number (row*width + col); -1 is unset.
type Cell int32

const NoCell Cell = -1

// Waypoints holds the scenario's lettered waypoints. Multiplayer start
// locations are the defined entries among the first MaxWaypoints, numbered
// in order of appearance.
type Waypoints struct {
	MapWidth int                `json:"mapWidth" yaml:"map_width"`
	Cells    [MaxWaypoints]Cell `json:"cells" yaml:"cells"`
}

// NewWaypoints returns a table with every waypoint unset.
func NewWaypoints(mapWidth int) Waypoints {
	w := Waypoints{MapWidth: mapWidth}
	for i := range w.Cells {
		w.Cells[i] = NoCell
	}
	return w
}

// StartLocationCount returns the number of usable start locations.
func (w Waypoints) StartLocationCount() int {
	n := 0
	for _, c := range w.Cells {
		if c != NoCell {
			n++
		}
	}
	return n
}

// StartCell returns the cell of the n-th defined waypoint.
func (w Waypoints) StartCell(loc int) (Cell, bool) {
	if loc < 0 {
		return NoCell, false
	}
	n := 0
	for _, c := range w.Cells {
		if c == NoCell {
			continue
		}
		if n == loc {
			return c, true
		}
		n++
	}
	return NoCell, false
}

// CellXY converts a cell to map coordinates. Returns (0, 0) for a
// zero-width map.
func (w Waypoints) CellXY(c Cell) (int, int) {
	if w.MapWidth <= 0 || c < 0 {
		return 0, 0
	}
	return int(c) % w.MapWidth, int(c) / w.MapWidth
}

// XYCell is the inverse of CellXY.
func (w Waypoints) XYCell(x, y int) Cell {
	if w.MapWidth <= 0 || x < 0 || y < 0 || x >= w.MapWidth {
		return NoCell
	}
	return Cell(y*w.MapWidth + x)
}
