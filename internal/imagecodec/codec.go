// Package imagecodec decodes background bitmaps and encodes rendered frames.
// The renderer only sees the Codec interface.
package imagecodec

import (
	"errors"
	"fmt"
	"image"
	"image/png"
	"io"
	"io/fs"
	"path/filepath"

	"golang.org/x/image/draw"

	"github.com/banshee-data/sensevis/internal/fsutil"
	"github.com/banshee-data/sensevis/internal/occupancy"
)

var (
	// ErrBackgroundNotFound wraps fs.ErrNotExist for a missing background bitmap.
	ErrBackgroundNotFound = fmt.Errorf("background image not found: %w", fs.ErrNotExist)
	// ErrNoPixelData is returned when a decoder yields an empty image.
	ErrNoPixelData = errors.New("decoded image has no pixel data")
)

// Codec loads and stores frames.
type Codec interface {
	Load(path string) (*occupancy.Frame, error)
	Save(frame *occupancy.Frame, path string) error
}

// PNG is a Codec writing PNG files through a FileSystem.
type PNG struct {
	FS fsutil.FileSystem
	// Decode reads input bitmaps; nil means image.Decode over the
	// registered formats.
	Decode func(r io.Reader) (image.Image, string, error)
}

// NewPNG returns a PNG codec. A nil fs means the OS filesystem.
func NewPNG(fsys fsutil.FileSystem) *PNG {
	if fsys == nil {
		fsys = fsutil.OSFileSystem{}
	}
	return &PNG{FS: fsys}
}

// Load decodes the image at path at its stored size.
func (c *PNG) Load(path string) (*occupancy.Frame, error) {
	f, err := c.FS.Open(path)
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return nil, fmt.Errorf("%w: %s", ErrBackgroundNotFound, path)
		}
		return nil, fmt.Errorf("open %s: %w", path, err)
	}
	defer f.Close()

	decode := c.Decode
	if decode == nil {
		decode = image.Decode
	}
	img, _, err := decode(f)
	if err != nil {
		return nil, fmt.Errorf("decode %s: %w", path, err)
	}
	if img == nil || img.Bounds().Empty() {
		return nil, fmt.Errorf("%s: %w", path, ErrNoPixelData)
	}
	return occupancy.FrameFromImage(img), nil
}

// Save encodes frame as PNG at path, creating parent directories.
func (c *PNG) Save(frame *occupancy.Frame, path string) error {
	if dir := filepath.Dir(path); dir != "." {
		if err := c.FS.MkdirAll(dir, 0o755); err != nil {
			return fmt.Errorf("create output dir: %w", err)
		}
	}
	w, err := c.FS.Create(path)
	if err != nil {
		return fmt.Errorf("create %s: %w", path, err)
	}
	if err := Encode(w, frame); err != nil {
		w.Close()
		return fmt.Errorf("encode %s: %w", path, err)
	}
	if err := w.Close(); err != nil {
		return fmt.Errorf("close %s: %w", path, err)
	}
	return nil
}

// Encode writes frame to w as PNG.
func Encode(w io.Writer, frame *occupancy.Frame) error {
	return png.Encode(w, frame.RGBA())
}

// Resize scales frame to width x height with nearest-neighbour sampling.
// A frame already at that size is returned unchanged.
func Resize(frame *occupancy.Frame, width, height int) *occupancy.Frame {
	if frame.Width == width && frame.Height == height {
		return frame
	}
	dst := image.NewRGBA(image.Rect(0, 0, width, height))
	draw.NearestNeighbor.Scale(dst, dst.Bounds(), frame.RGBA(), image.Rect(0, 0, frame.Width, frame.Height), draw.Src, nil)
	return occupancy.FrameFromImage(dst)
}

// LoadBackground loads the background bitmap and fits it to the working grid.
func LoadBackground(c Codec, path string) (*occupancy.Frame, error) {
	frame, err := c.Load(path)
	if err != nil {
		return nil, fmt.Errorf("load background: %w", err)
	}
	return Resize(frame, occupancy.GridW, occupancy.GridH), nil
}
