// Package exchange reads and writes the coordinate exchange file shared by
// the detection listener and the live renderer.
//
// The file holds JSON: either a single pair [x, y] or a list of pairs
// [[x, y], ...]. A missing or empty file, an empty list and the pair [0, 0]
// all mean "nothing detected".
package exchange

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"io/fs"

	"github.com/banshee-data/sensevis/internal/fsutil"
	"github.com/banshee-data/sensevis/internal/occupancy"
)

// ErrMalformed is returned for JSON that is neither a pair nor a list of pairs.
var ErrMalformed = errors.New("exchange file must hold [x, y] or [[x, y], ...]")

// Blank is what the listener writes when the sensor saw nobody.
var Blank = []occupancy.Detection{{X: 0, Y: 0}}

// Decode parses exchange JSON. Empty input decodes to no detections.
func Decode(data []byte) ([]occupancy.Detection, error) {
	if len(bytes.TrimSpace(data)) == 0 {
		return nil, nil
	}

	if pair, ok := asPair(data); ok {
		return []occupancy.Detection{{X: pair[0], Y: pair[1]}}, nil
	}

	var pairs [][]float64
	if err := json.Unmarshal(data, &pairs); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrMalformed, err)
	}
	dets := make([]occupancy.Detection, 0, len(pairs))
	for i, p := range pairs {
		if len(p) != 2 {
			return nil, fmt.Errorf("%w: entry %d has %d values", ErrMalformed, i, len(p))
		}
		dets = append(dets, occupancy.Detection{X: p[0], Y: p[1]})
	}
	return dets, nil
}

// asPair decodes a flat array of exactly two numbers. Decoding straight into
// [2]float64 would silently pad or truncate other lengths.
func asPair(data []byte) ([2]float64, bool) {
	var pair [2]float64
	var raw []json.RawMessage
	if err := json.Unmarshal(data, &raw); err != nil || len(raw) != 2 {
		return pair, false
	}
	for i, r := range raw {
		if err := json.Unmarshal(r, &pair[i]); err != nil {
			return pair, false
		}
	}
	return pair, true
}

// Encode renders detections in exchange form: one detection as a bare pair,
// anything else as a list.
func Encode(dets []occupancy.Detection) ([]byte, error) {
	if len(dets) == 1 {
		return json.Marshal([2]float64{dets[0].X, dets[0].Y})
	}
	pairs := make([][2]float64, len(dets))
	for i, d := range dets {
		pairs[i] = [2]float64{d.X, d.Y}
	}
	return json.Marshal(pairs)
}

// Read loads detections from path. A missing file yields no detections.
func Read(fsys fsutil.FileSystem, path string) ([]occupancy.Detection, error) {
	data, err := fsys.ReadFile(path)
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return nil, nil
		}
		return nil, fmt.Errorf("read exchange file: %w", err)
	}
	dets, err := Decode(data)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", path, err)
	}
	return dets, nil
}

// Write replaces the exchange file with dets.
func Write(fsys fsutil.FileSystem, path string, dets []occupancy.Detection) error {
	data, err := Encode(dets)
	if err != nil {
		return fmt.Errorf("encode exchange file: %w", err)
	}
	if err := fsys.WriteFile(path, data, 0o644); err != nil {
		return fmt.Errorf("write exchange file: %w", err)
	}
	return nil
}

// Clear truncates the exchange file.
func Clear(fsys fsutil.FileSystem, path string) error {
	if err := fsys.WriteFile(path, nil, 0o644); err != nil {
		return fmt.Errorf("clear exchange file: %w", err)
	}
	return nil
}
