package occupancy

import (
	"math/rand/v2"
	"sync"
)

// CornerFactor softens ring cells sitting diagonally off a bright cell.
const CornerFactor = 0.85

// MaxRadius is the outermost halo ring.
const MaxRadius = 4

// HaloLayer describes one concentric ring. A layer with a Palette draws a
// colour per cell through the ColorPicker; otherwise Color is used.
type HaloLayer struct {
	Radius  int
	Weight  float64
	Color   Color
	Palette []Color
}

// HaloLayers lists the rings from the inside out.
var HaloLayers = [MaxRadius]HaloLayer{
	{Radius: 1, Weight: 0.6, Palette: FadedPalette},
	{Radius: 2, Weight: 0.5, Color: HaloBlue},
	{Radius: 3, Weight: 0.25, Color: HaloBlue},
	{Radius: 4, Weight: 0.1, Color: HaloBlue},
}

// ColorPicker chooses one palette entry per ring-1 cell.
type ColorPicker interface {
	Pick(palette []Color) Color
}

// RandomPicker picks uniformly. The zero value uses the global source.
type RandomPicker struct {
	mu  sync.Mutex
	rng *rand.Rand
}

// NewRandomPicker returns a picker driven by a PCG source seeded with seed,
// so repeated renders with the same seed are bit-identical.
func NewRandomPicker(seed uint64) *RandomPicker {
	return &RandomPicker{rng: rand.New(rand.NewPCG(seed, seed^0x9e3779b97f4a7c15))}
}

// Pick returns a uniformly chosen palette entry.
func (p *RandomPicker) Pick(palette []Color) Color {
	if p.rng == nil {
		return palette[rand.IntN(len(palette))]
	}
	p.mu.Lock()
	defer p.mu.Unlock()
	return palette[p.rng.IntN(len(palette))]
}

// FixedPicker always returns palette[Index mod len].
type FixedPicker struct {
	Index int
}

func (p FixedPicker) Pick(palette []Color) Color {
	return palette[p.Index%len(palette)]
}

// Unclaimed marks a cell no ring reaches.
const Unclaimed = -1

// ClaimMap records, for every working cell, the smallest radius that claims
// it: 0 for bright cells, 1..MaxRadius for ring cells, Unclaimed otherwise.
// A cell belongs to ring r exactly when its Chebyshev distance to the
// nearest bright cell is r, so the map is built once and never revisited.
type ClaimMap struct {
	radius [GridH][GridW]int
	corner [GridH][GridW]bool
}

// BuildClaimMap derives the claim map for a set of bright cells.
func BuildClaimMap(bright []Cell) *ClaimMap {
	m := &ClaimMap{}
	for y := 0; y < GridH; y++ {
		for x := 0; x < GridW; x++ {
			best := Unclaimed
			for _, b := range bright {
				d := chebyshev(Cell{x, y}, b)
				if d <= MaxRadius && (best == Unclaimed || d < best) {
					best = d
				}
			}
			m.radius[y][x] = best
			if best <= 0 {
				continue
			}
			for _, b := range bright {
				if abs(x-b.X) == best && abs(y-b.Y) == best {
					m.corner[y][x] = true
					break
				}
			}
		}
	}
	return m
}

// Radius returns the claiming radius of c, or Unclaimed.
func (m *ClaimMap) Radius(c Cell) int {
	if !c.InGrid() {
		return Unclaimed
	}
	return m.radius[c.Y][c.X]
}

// IsCorner reports whether c sits diagonally at its claiming radius from at
// least one bright cell.
func (m *ClaimMap) IsCorner(c Cell) bool {
	return c.InGrid() && m.corner[c.Y][c.X]
}

// Ring lists the cells claimed at radius r in row-major order.
func (m *ClaimMap) Ring(r int) []Cell {
	var out []Cell
	for y := 0; y < GridH; y++ {
		for x := 0; x < GridW; x++ {
			if m.radius[y][x] == r {
				out = append(out, Cell{x, y})
			}
		}
	}
	return out
}

// Composite paints the halo rings around bright onto frame in place. Rings are
// processed from radius 1 outwards; each cell is painted at most once, blended
// over whatever the frame holds at that moment.
func Composite(frame *Frame, bright []Cell, picker ColorPicker) {
	if len(bright) == 0 {
		return
	}
	if picker == nil {
		picker = &RandomPicker{}
	}
	claims := BuildClaimMap(bright)
	for _, layer := range HaloLayers {
		for _, c := range claims.Ring(layer.Radius) {
			weight := layer.Weight
			if claims.IsCorner(c) {
				weight *= CornerFactor
			}
			col := layer.Color
			if len(layer.Palette) > 0 {
				col = picker.Pick(layer.Palette)
			}
			frame.Set(c.X, c.Y, Blend(col, frame.At(c.X, c.Y), weight))
		}
	}
}

// RingCells returns every in-grid cell at exact Chebyshev distance r from c,
// without any claim filtering.
func RingCells(c Cell, r int) []Cell {
	var out []Cell
	for dy := -r; dy <= r; dy++ {
		for dx := -r; dx <= r; dx++ {
			if max(abs(dx), abs(dy)) != r {
				continue
			}
			n := Cell{c.X + dx, c.Y + dy}
			if n.InGrid() {
				out = append(out, n)
			}
		}
	}
	return out
}

func chebyshev(a, b Cell) int {
	return max(abs(a.X-b.X), abs(a.Y-b.Y))
}

func abs(v int) int {
	if v < 0 {
		return -v
	}
	return v
}
