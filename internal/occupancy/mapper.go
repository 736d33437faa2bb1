package occupancy

import "math"

// Detection is one sensor-space point, usually a bounding-box centroid.
type Detection struct {
	X float64 `json:"x"`
	Y float64 `json:"y"`
}

// IsZero reports whether d is the (0,0) "nothing seen" sentinel.
func (d Detection) IsZero() bool {
	return d.X == 0 && d.Y == 0
}

// Range is an inclusive sensor-space rectangle.
type Range struct {
	MinX, MaxX float64
	MinY, MaxY float64
}

// Sensor ranges for the two callers.
var (
	LiveRange  = Range{MinX: 1, MaxX: 32, MinY: 1, MaxY: 24}
	BatchRange = Range{MinX: 1, MaxX: 100, MinY: 1, MaxY: 100}
)

// Clamp pulls d inside r.
func (r Range) Clamp(d Detection) Detection {
	return Detection{X: clamp(d.X, r.MinX, r.MaxX), Y: clamp(d.Y, r.MinY, r.MaxY)}
}

// Mapper converts a sensor-space detection to continuous grid coordinates.
type Mapper func(d Detection) (sx, sy float64)

// MapLive maps the live sensor range [1,32]x[1,24] onto [0,GridW-1]x[0,GridH-1].
// Both endpoints land exactly on the outer cell indices.
func MapLive(d Detection) (sx, sy float64) {
	d = LiveRange.Clamp(d)
	sx = (d.X - LiveRange.MinX) / (LiveRange.MaxX - LiveRange.MinX) * (GridW - 1)
	sy = (d.Y - LiveRange.MinY) / (LiveRange.MaxY - LiveRange.MinY) * (GridH - 1)
	return sx, sy
}

// MapBatch maps the CSV range [1,100] onto [0,GridW)x[0,GridH). It divides by
// the full range rather than range-1, so the top edge never reaches GridW.
func MapBatch(d Detection) (sx, sy float64) {
	d = BatchRange.Clamp(d)
	sx = (d.X - 1) / BatchRange.MaxX * GridW
	sy = (d.Y - 1) / BatchRange.MaxY * GridH
	return sx, sy
}

// clamp maps NaN to lo.
func clamp(v, lo, hi float64) float64 {
	if v < lo || math.IsNaN(v) {
		return lo
	}
	if v > hi {
		return hi
	}
	return v
}
