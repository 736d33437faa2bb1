package diagnostics

import (
	"bytes"
	"image/png"
	"math"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/banshee-data/sensevis/internal/occupancy"
)

func TestSummarize(t *testing.T) {
	t.Parallel()

	assert.Equal(t, Summary{}, Summarize(nil))
	assert.Equal(t, Summary{Count: 1, MeanX: 16, MeanY: 12}, Summarize([]occupancy.Detection{{X: 16, Y: 12}}))

	s := Summarize([]occupancy.Detection{{X: 10, Y: 5}, {X: 20, Y: 15}})
	assert.Equal(t, 2, s.Count)
	assert.InDelta(t, 15.0, s.MeanX, 1e-12)
	assert.InDelta(t, 10.0, s.MeanY, 1e-12)
	assert.InDelta(t, math.Sqrt(50), s.SpreadX, 1e-12)
	assert.InDelta(t, math.Sqrt(50), s.SpreadY, 1e-12)
}

func TestNewDetectionPlot(t *testing.T) {
	t.Parallel()

	p, err := NewDetectionPlot("lab", []occupancy.Detection{{X: 16, Y: 12}, {X: 2, Y: 20}}, occupancy.LiveRange)
	require.NoError(t, err)
	assert.Equal(t, "lab", p.Title.Text)
	assert.Equal(t, occupancy.LiveRange.MaxX, p.X.Max)

	var buf bytes.Buffer
	require.NoError(t, WritePNG(&buf, p))
	img, err := png.Decode(&buf)
	require.NoError(t, err)
	assert.Positive(t, img.Bounds().Dx())
}

func TestNewDetectionPlot_Empty(t *testing.T) {
	t.Parallel()

	p, err := NewDetectionPlot("blank", nil, occupancy.BatchRange)
	require.NoError(t, err)
	var buf bytes.Buffer
	require.NoError(t, WritePNG(&buf, p))
	assert.NotZero(t, buf.Len())

	_, err = NewDetectionPlot("bad", nil, occupancy.Range{})
	assert.Error(t, err)
}
