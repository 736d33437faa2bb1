package occupancy

import (
	"errors"
	"fmt"
)

// ErrBackgroundSize is returned when the background is not a working-grid frame.
var ErrBackgroundSize = errors.New("background must be a working-grid frame")

// Result holds both artifacts of one render call.
type Result struct {
	Working  *Frame
	Upscaled *Frame
	// Bright lists the splatted cells in first-lit order.
	Bright []Cell
	// Detections counts the points that were splatted.
	Detections int
	// Blank is set when nothing was drawn over the background.
	Blank bool
}

// Renderer runs the splat, halo and upscale passes. The zero value uses a
// global random source for ring-1 colours.
type Renderer struct {
	Picker ColorPicker
}

// NewRenderer returns a renderer using picker for ring-1 colours.
func NewRenderer(picker ColorPicker) *Renderer {
	return &Renderer{Picker: picker}
}

// RenderLive renders detections from the live sensor range. An empty list, or
// one holding only (0,0) sentinels, produces the upscaled background as-is.
// Otherwise every detection is clamped and drawn, (0,0) included.
func (r *Renderer) RenderLive(background *Frame, dets []Detection) (*Result, error) {
	if AllZero(dets) {
		dets = nil
	}
	return r.render(background, dets, MapLive)
}

// AllZero reports whether dets holds nothing but (0,0) sentinels.
// An empty list counts.
func AllZero(dets []Detection) bool {
	for _, d := range dets {
		if !d.IsZero() {
			return false
		}
	}
	return true
}

// RenderBatch renders detections from the CSV range.
func (r *Renderer) RenderBatch(background *Frame, dets []Detection) (*Result, error) {
	return r.render(background, dets, MapBatch)
}

func (r *Renderer) render(background *Frame, dets []Detection, mapper Mapper) (*Result, error) {
	if !background.IsWorking() {
		if background == nil {
			return nil, ErrBackgroundSize
		}
		return nil, fmt.Errorf("%w: got %dx%d", ErrBackgroundSize, background.Width, background.Height)
	}

	working := background.Clone()
	res := &Result{Working: working, Detections: len(dets), Blank: len(dets) == 0}
	if !res.Blank {
		for _, d := range dets {
			sx, sy := mapper(d)
			for _, c := range Splat(working, sx, sy) {
				if !containsCell(res.Bright, c) {
					res.Bright = append(res.Bright, c)
				}
			}
		}
		Composite(working, res.Bright, r.Picker)
	}
	res.Upscaled = Upscale(working)
	return res, nil
}
