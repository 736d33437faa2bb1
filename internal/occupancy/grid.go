// Package occupancy renders sensor detections into a coarse false-colour
// occupancy grid and upscales it for display.
//
// The pipeline is strictly one pass per call:
//
//	MapLive/MapBatch -> Splat -> Composite -> Upscale
//
// Every call owns its frames; nothing is cached between calls.
package occupancy

import (
	"fmt"
	"image"
	"image/color"
)

// Working grid and output dimensions.
const (
	GridW = 10
	GridH = 8

	OutputW = 640
	OutputH = 480

	BlockW = OutputW / GridW // 64
	BlockH = OutputH / GridH // 60
)

// Cell addresses one working-grid cell. Identity is the coordinate pair.
type Cell struct {
	X, Y int
}

// InGrid reports whether c lies inside the working grid.
func (c Cell) InGrid() bool {
	return c.X >= 0 && c.X < GridW && c.Y >= 0 && c.Y < GridH
}

func (c Cell) String() string {
	return fmt.Sprintf("(%d,%d)", c.X, c.Y)
}

// Frame is an owned, row-major buffer of colours.
type Frame struct {
	Width  int
	Height int
	Pix    []Color
}

// NewFrame allocates a frame filled with fill.
func NewFrame(width, height int, fill Color) *Frame {
	f := &Frame{Width: width, Height: height, Pix: make([]Color, width*height)}
	for i := range f.Pix {
		f.Pix[i] = fill
	}
	return f
}

// At returns the colour at (x, y). Out-of-range coordinates panic.
func (f *Frame) At(x, y int) Color {
	return f.Pix[y*f.Width+x]
}

// Set stores c at (x, y).
func (f *Frame) Set(x, y int, c Color) {
	f.Pix[y*f.Width+x] = c
}

// Clone returns a deep copy.
func (f *Frame) Clone() *Frame {
	out := &Frame{Width: f.Width, Height: f.Height, Pix: make([]Color, len(f.Pix))}
	copy(out.Pix, f.Pix)
	return out
}

// Equal reports whether both frames have the same size and pixels.
func (f *Frame) Equal(o *Frame) bool {
	if f == nil || o == nil {
		return f == o
	}
	if f.Width != o.Width || f.Height != o.Height || len(f.Pix) != len(o.Pix) {
		return false
	}
	for i := range f.Pix {
		if f.Pix[i] != o.Pix[i] {
			return false
		}
	}
	return true
}

// IsWorking reports whether f has the working-grid dimensions.
func (f *Frame) IsWorking() bool {
	return f != nil && f.Width == GridW && f.Height == GridH
}

// RGBA converts the frame to an opaque image for encoding.
func (f *Frame) RGBA() *image.RGBA {
	img := image.NewRGBA(image.Rect(0, 0, f.Width, f.Height))
	for y := 0; y < f.Height; y++ {
		for x := 0; x < f.Width; x++ {
			c := f.At(x, y)
			img.SetRGBA(x, y, color.RGBA{R: c.R, G: c.G, B: c.B, A: 0xff})
		}
	}
	return img
}

// FrameFromImage copies img into a new frame, dropping alpha. Channels are
// taken un-premultiplied, so translucent pixels keep their stored colour.
func FrameFromImage(img image.Image) *Frame {
	b := img.Bounds()
	f := &Frame{Width: b.Dx(), Height: b.Dy(), Pix: make([]Color, b.Dx()*b.Dy())}
	for y := 0; y < f.Height; y++ {
		for x := 0; x < f.Width; x++ {
			c := color.NRGBAModel.Convert(img.At(b.Min.X+x, b.Min.Y+y)).(color.NRGBA)
			f.Set(x, y, Color{R: c.R, G: c.G, B: c.B})
		}
	}
	return f
}
