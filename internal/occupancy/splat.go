package occupancy

import "math"

// MinSplatWeight is the smallest bilinear weight that still lights a cell.
const MinSplatWeight = 0.1

// Corner is one bilinear tap.
type Corner struct {
	Cell   Cell
	Weight float64
}

// BilinearCorners returns the four taps around (sx, sy) in the order
// base, right, below, diagonal. Taps collapse onto the same cell at the
// grid's far edges; weights still sum to 1.
func BilinearCorners(sx, sy float64) [4]Corner {
	px0 := min(int(math.Floor(sx)), GridW-1)
	py0 := min(int(math.Floor(sy)), GridH-1)
	px1 := min(px0+1, GridW-1)
	py1 := min(py0+1, GridH-1)

	dx := sx - float64(px0)
	dy := sy - float64(py0)

	return [4]Corner{
		{Cell{px0, py0}, (1 - dx) * (1 - dy)},
		{Cell{px1, py0}, dx * (1 - dy)},
		{Cell{px0, py1}, (1 - dx) * dy},
		{Cell{px1, py1}, dx * dy},
	}
}

// maxCentreDist is the distance from the grid centre to a corner.
var maxCentreDist = math.Hypot((GridW-1)/2.0, (GridH-1)/2.0)

// DetectionColor shades a detection by its distance from the grid centre:
// BrightYellow at the centre fading to DullYellow at the corners.
func DetectionColor(sx, sy float64) Color {
	dist := math.Hypot(sx-(GridW-1)/2.0, sy-(GridH-1)/2.0)
	norm := math.Min(dist/maxCentreDist, 1)
	return Blend(BrightYellow, DullYellow, 1-norm)
}

// Splat paints the detection at (sx, sy) into the working frame and returns
// the cells it lit. Every tap with weight >= MinSplatWeight receives the full
// detection colour; lighter taps are dropped.
func Splat(frame *Frame, sx, sy float64) []Cell {
	c := DetectionColor(sx, sy)
	lit := make([]Cell, 0, 4)
	for _, corner := range BilinearCorners(sx, sy) {
		if corner.Weight < MinSplatWeight {
			continue
		}
		frame.Set(corner.Cell.X, corner.Cell.Y, c)
		if !containsCell(lit, corner.Cell) {
			lit = append(lit, corner.Cell)
		}
	}
	return lit
}

func containsCell(cells []Cell, c Cell) bool {
	for _, x := range cells {
		if x == c {
			return true
		}
	}
	return false
}
