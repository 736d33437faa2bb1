// Package batch reads the centroid CSV used for offline rendering.
//
// Each record is `count,"{x1,x2,...}","{y1,y2,...}"`. Braces and brackets
// around the lists are optional; tokens that are not numbers are dropped.
package batch

import (
	"encoding/csv"
	"errors"
	"fmt"
	"io"
	"math"
	"strconv"
	"strings"

	"github.com/banshee-data/sensevis/internal/occupancy"
)

// Row-level problems. A row failing with one of these is skipped.
var (
	ErrShortRow      = errors.New("row has fewer than 3 fields")
	ErrBadCount      = errors.New("person count is not an integer")
	ErrCountMismatch = errors.New("person count mismatch")
)

// RowError marks a malformed row; processing continues after it.
type RowError struct {
	Index int
	Err   error
}

func (e *RowError) Error() string {
	return fmt.Sprintf("row %d: %v", e.Index, e.Err)
}

func (e *RowError) Unwrap() error { return e.Err }

// Row is one parsed CSV record.
type Row struct {
	// Index is the 0-based record number in the file.
	Index      int
	Count      int
	Detections []occupancy.Detection
}

var listTrim = strings.NewReplacer("{", "", "}", "", "[", "", "]", "")

// ParsePositions splits a comma-separated number list, ignoring enclosing
// braces or brackets, blank entries and unparsable or non-finite tokens.
func ParsePositions(s string) []float64 {
	var vals []float64
	for _, tok := range strings.Split(listTrim.Replace(s), ",") {
		tok = strings.TrimSpace(tok)
		if tok == "" {
			continue
		}
		v, err := strconv.ParseFloat(tok, 64)
		if err != nil || math.IsNaN(v) || math.IsInf(v, 0) {
			continue
		}
		vals = append(vals, v)
	}
	return vals
}

// ParseRow turns CSV fields into a Row. Malformed rows return a *RowError.
func ParseRow(index int, fields []string) (Row, error) {
	if len(fields) < 3 {
		return Row{}, &RowError{Index: index, Err: ErrShortRow}
	}
	count, err := strconv.Atoi(strings.TrimSpace(fields[0]))
	if err != nil {
		return Row{}, &RowError{Index: index, Err: fmt.Errorf("%w: %q", ErrBadCount, fields[0])}
	}
	xs := ParsePositions(fields[1])
	ys := ParsePositions(fields[2])
	if len(xs) != count || len(ys) != count {
		return Row{}, &RowError{
			Index: index,
			Err:   fmt.Errorf("%w: want %d, got %d x and %d y", ErrCountMismatch, count, len(xs), len(ys)),
		}
	}

	dets := make([]occupancy.Detection, count)
	for i := range dets {
		dets[i] = occupancy.Detection{X: xs[i], Y: ys[i]}
	}
	return Row{Index: index, Count: count, Detections: dets}, nil
}

// Reader yields parsed rows from a CSV stream.
type Reader struct {
	csv   *csv.Reader
	index int
}

// NewReader wraps r. Records may have any number of fields.
func NewReader(r io.Reader) *Reader {
	cr := csv.NewReader(r)
	cr.FieldsPerRecord = -1
	cr.TrimLeadingSpace = true
	return &Reader{csv: cr}
}

// Next returns the next row. It returns io.EOF at the end, a *RowError for a
// row that should be skipped, and any other error for an unreadable stream.
func (r *Reader) Next() (Row, error) {
	fields, err := r.csv.Read()
	if errors.Is(err, io.EOF) {
		return Row{}, io.EOF
	}
	idx := r.index
	var perr *csv.ParseError
	if errors.As(err, &perr) {
		r.index++
		return Row{}, &RowError{Index: idx, Err: err}
	}
	if err != nil {
		return Row{}, fmt.Errorf("read csv record %d: %w", idx, err)
	}
	r.index++
	return ParseRow(idx, fields)
}
