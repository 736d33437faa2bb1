// Package diagnostics produces side artifacts for a render: a scatter plot
// of the raw detections and summary statistics stored with each run.
package diagnostics

import (
	"errors"
	"fmt"
	"image/color"
	"io"

	"gonum.org/v1/gonum/stat"
	"gonum.org/v1/plot"
	"gonum.org/v1/plot/plotter"
	"gonum.org/v1/plot/vg"
	"gonum.org/v1/plot/vg/draw"

	"github.com/banshee-data/sensevis/internal/occupancy"
)

// Plot size. 4:3 to match the upscaled output.
const (
	PlotWidth  = 8 * vg.Inch
	PlotHeight = 6 * vg.Inch
)

var detectionColor = color.RGBA{R: 0xff, G: 0xf8, A: 0xff}

// Summary is the centre and spread of a set of detections.
type Summary struct {
	Count   int
	MeanX   float64
	MeanY   float64
	SpreadX float64
	SpreadY float64
}

// Summarize computes per-axis mean and sample standard deviation. Spread is
// zero for fewer than two detections.
func Summarize(dets []occupancy.Detection) Summary {
	s := Summary{Count: len(dets)}
	if len(dets) == 0 {
		return s
	}
	xs := make([]float64, len(dets))
	ys := make([]float64, len(dets))
	for i, d := range dets {
		xs[i], ys[i] = d.X, d.Y
	}
	if len(dets) == 1 {
		s.MeanX, s.MeanY = xs[0], ys[0]
		return s
	}
	s.MeanX, s.SpreadX = stat.MeanStdDev(xs, nil)
	s.MeanY, s.SpreadY = stat.MeanStdDev(ys, nil)
	return s
}

// NewDetectionPlot draws dets as a scatter over the sensor range rng, with
// the Y axis flipped so it reads like the rendered image.
func NewDetectionPlot(title string, dets []occupancy.Detection, rng occupancy.Range) (*plot.Plot, error) {
	if rng.MaxX <= rng.MinX || rng.MaxY <= rng.MinY {
		return nil, errors.New("empty sensor range")
	}

	p := plot.New()
	p.Title.Text = title
	p.X.Label.Text = "Sensor X"
	p.Y.Label.Text = "Sensor Y"
	p.X.Min, p.X.Max = rng.MinX, rng.MaxX
	p.Y.Min, p.Y.Max = rng.MinY, rng.MaxY
	p.Y.Scale = plot.InvertedScale{Normalizer: plot.LinearScale{}}
	p.Add(plotter.NewGrid())

	if len(dets) == 0 {
		return p, nil
	}
	pts := make(plotter.XYs, len(dets))
	for i, d := range dets {
		pts[i] = plotter.XY{X: d.X, Y: d.Y}
	}
	scatter, err := plotter.NewScatter(pts)
	if err != nil {
		return nil, fmt.Errorf("failed to create scatter: %w", err)
	}
	scatter.GlyphStyle.Color = detectionColor
	scatter.GlyphStyle.Shape = draw.CircleGlyph{}
	scatter.GlyphStyle.Radius = vg.Points(4)
	p.Add(scatter)
	p.Legend.Add(fmt.Sprintf("detections (%d)", len(dets)), scatter)
	p.Legend.Top = true
	return p, nil
}

// WritePNG renders p as a PNG to w.
func WritePNG(w io.Writer, p *plot.Plot) error {
	wt, err := p.WriterTo(PlotWidth, PlotHeight, "png")
	if err != nil {
		return fmt.Errorf("failed to create plot writer: %w", err)
	}
	if _, err := wt.WriteTo(w); err != nil {
		return fmt.Errorf("failed to write plot: %w", err)
	}
	return nil
}
