package pipeline

import (
	"bytes"
	"context"
	"errors"
	"io/fs"
	"path/filepath"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/google/go-cmp/cmp"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/banshee-data/sensevis/internal/batch"
	"github.com/banshee-data/sensevis/internal/config"
	"github.com/banshee-data/sensevis/internal/db"
	"github.com/banshee-data/sensevis/internal/fsutil"
	"github.com/banshee-data/sensevis/internal/imagecodec"
	"github.com/banshee-data/sensevis/internal/monitoring"
	"github.com/banshee-data/sensevis/internal/occupancy"
	"github.com/banshee-data/sensevis/internal/timeutil"
)

var gray = occupancy.Color{R: 40, G: 40, B: 40}

type fakeRecorder struct {
	mu   sync.Mutex
	runs []db.RenderRun
	err  error
}

func (r *fakeRecorder) RecordRun(run *db.RenderRun) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.err != nil {
		return r.err
	}
	run.RunID = "run-" + run.Label
	r.runs = append(r.runs, *run)
	return nil
}

func newTestPipeline(t *testing.T) (*Pipeline, *fsutil.MemoryFileSystem, *fakeRecorder) {
	t.Helper()
	monitoring.SetLogger(nil)

	mem := fsutil.NewMemoryFileSystem()
	var buf bytes.Buffer
	require.NoError(t, imagecodec.Encode(&buf, occupancy.NewFrame(occupancy.GridW, occupancy.GridH, gray)))
	require.NoError(t, mem.WriteFile("8x10.png", buf.Bytes(), 0o644))

	rec := &fakeRecorder{}
	p := &Pipeline{
		FS:             mem,
		Codec:          imagecodec.NewPNG(mem),
		Renderer:       occupancy.NewRenderer(occupancy.FixedPicker{}),
		BackgroundPath: "8x10.png",
		OutputDir:      "out",
		Recorder:       rec,
		Clock:          timeutil.NewMockClock(time.Date(2024, 5, 1, 9, 0, 0, 0, time.UTC)),
	}
	return p, mem, rec
}

func loadFrame(t *testing.T, mem *fsutil.MemoryFileSystem, path string) *occupancy.Frame {
	t.Helper()
	f, err := imagecodec.NewPNG(mem).Load(path)
	require.NoError(t, err)
	return f
}

func TestLive_WritesArtifacts(t *testing.T) {
	p, mem, rec := newTestPipeline(t)

	out, err := p.Live(context.Background(), "lab", []occupancy.Detection{{X: 16, Y: 12}})
	require.NoError(t, err)

	assert.Equal(t, []string{filepath.Join("out", "ignore.png"), filepath.Join("out", "lab.png")}, mem.Files("out"))
	assert.False(t, out.Result.Blank)
	assert.Equal(t, "run-lab", out.RunID)

	working := loadFrame(t, mem, out.WorkingPath)
	assert.True(t, working.Equal(out.Result.Working))
	upscaled := loadFrame(t, mem, out.UpscaledPath)
	assert.Equal(t, occupancy.OutputW, upscaled.Width)
	assert.True(t, upscaled.Equal(occupancy.Upscale(working)))

	require.Len(t, rec.runs, 1)
	run := rec.runs[0]
	assert.Equal(t, "live", run.Mode)
	assert.Equal(t, 4, run.BrightCells)
	assert.InDelta(t, 16.0, run.MeanX, 1e-12)
	assert.Equal(t, time.Date(2024, 5, 1, 9, 0, 0, 0, time.UTC), run.CreatedAt)

	last := p.LastWorking()
	require.NotNil(t, last)
	assert.True(t, last.Equal(out.Result.Working))
}

func TestLive_BlankUsesLivePNG(t *testing.T) {
	for _, dets := range [][]occupancy.Detection{nil, {{X: 0, Y: 0}}} {
		p, mem, rec := newTestPipeline(t)

		out, err := p.Live(context.Background(), "lab", dets)
		require.NoError(t, err)
		assert.True(t, out.Result.Blank)
		assert.Equal(t, filepath.Join("out", "live.png"), out.WorkingPath)
		assert.False(t, mem.Exists(filepath.Join("out", "ignore.png")))

		upscaled := loadFrame(t, mem, out.UpscaledPath)
		assert.True(t, upscaled.Equal(occupancy.NewFrame(occupancy.OutputW, occupancy.OutputH, gray)))
		require.Len(t, rec.runs, 1)
		assert.True(t, rec.runs[0].Blank)
		assert.Zero(t, rec.runs[0].Detections)
	}
}

func TestLive_SentinelAmongPointsIsDrawn(t *testing.T) {
	p, _, rec := newTestPipeline(t)

	out, err := p.Live(context.Background(), "lab", []occupancy.Detection{{X: 16, Y: 12}, {X: 0, Y: 0}})
	require.NoError(t, err)
	assert.False(t, out.Result.Blank)
	assert.Equal(t, filepath.Join("out", "ignore.png"), out.WorkingPath)
	assert.Contains(t, out.Result.Bright, occupancy.Cell{X: 0, Y: 0})

	require.Len(t, rec.runs, 1)
	assert.Equal(t, 2, rec.runs[0].Detections)
	assert.Equal(t, 2, out.Summary.Count)
	assert.InDelta(t, 8.0, rec.runs[0].MeanX, 1e-12)
}

func TestLive_RejectsBadLabels(t *testing.T) {
	p, mem, _ := newTestPipeline(t)

	for _, label := range []string{"", "..", "../escape", "a/b", "."} {
		_, err := p.Live(context.Background(), label, nil)
		assert.True(t, errors.Is(err, ErrInvalidLabel), "label %q: %v", label, err)
	}
	assert.Empty(t, mem.Files("out"))
}

func TestLive_MissingBackground(t *testing.T) {
	p, _, _ := newTestPipeline(t)
	p.BackgroundPath = "nope.png"

	_, err := p.Live(context.Background(), "lab", nil)
	assert.True(t, errors.Is(err, fs.ErrNotExist))
}

func TestLive_Cancelled(t *testing.T) {
	p, _, _ := newTestPipeline(t)
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	_, err := p.Live(ctx, "lab", nil)
	assert.True(t, errors.Is(err, context.Canceled))
}

func TestLive_RecorderError(t *testing.T) {
	p, _, rec := newTestPipeline(t)
	rec.err = errors.New("database is locked")

	_, err := p.Live(context.Background(), "lab", []occupancy.Detection{{X: 5, Y: 5}})
	assert.ErrorContains(t, err, "record live run")
}

func TestLive_PlotDetections(t *testing.T) {
	p, mem, _ := newTestPipeline(t)
	p.PlotDetections = true

	out, err := p.Live(context.Background(), "lab", []occupancy.Detection{{X: 16, Y: 12}, {X: 0, Y: 0}})
	require.NoError(t, err)
	assert.Equal(t, filepath.Join("out", "lab_detections.png"), out.PlotPath)
	assert.True(t, mem.Exists(out.PlotPath))
	assert.Equal(t, 2, out.Summary.Count)
}

const batchCSV = `2,"{10,20}","{5,15}"
2,"{1}","{1,2}"
1,"{50}","{50}"
`

func TestBatch_NamesByRow(t *testing.T) {
	p, mem, rec := newTestPipeline(t)

	rep, err := p.Batch(context.Background(), strings.NewReader(batchCSV))
	require.NoError(t, err)
	assert.Equal(t, batch.Report{Rows: 3, Rendered: 2, Skipped: 1}, rep)

	want := []string{"1.png", "100.png", "102.png", "3.png"}
	for i := range want {
		want[i] = filepath.Join("out", want[i])
	}
	if diff := cmp.Diff(want, mem.Files("out")); diff != "" {
		t.Errorf("output files mismatch (-want +got):\n%s", diff)
	}

	require.Len(t, rec.runs, 2)
	assert.Equal(t, "1", rec.runs[0].Label)
	assert.Equal(t, "batch", rec.runs[0].Mode)
	assert.Equal(t, 2, rec.runs[0].Detections)
	assert.Equal(t, "3", rec.runs[1].Label)
}

func TestBatch_MatchesRenderer(t *testing.T) {
	p, mem, _ := newTestPipeline(t)

	_, err := p.Batch(context.Background(), strings.NewReader(batchCSV))
	require.NoError(t, err)

	bg := occupancy.NewFrame(occupancy.GridW, occupancy.GridH, gray)
	res, err := occupancy.NewRenderer(occupancy.FixedPicker{}).RenderBatch(bg, []occupancy.Detection{{X: 10, Y: 5}, {X: 20, Y: 15}})
	require.NoError(t, err)
	assert.True(t, loadFrame(t, mem, filepath.Join("out", "100.png")).Equal(res.Working))
}

func TestBatch_MissingBackground(t *testing.T) {
	p, _, _ := newTestPipeline(t)
	p.BackgroundPath = "missing.png"

	_, err := p.Batch(context.Background(), strings.NewReader(batchCSV))
	assert.True(t, errors.Is(err, imagecodec.ErrBackgroundNotFound))
}

func TestNew_FromConfig(t *testing.T) {
	cfg := config.EmptyRenderConfig()
	cfg.OutputDir = config.PtrString("renders")
	cfg.Seed = config.PtrUint64(7)
	cfg.PlotDetections = config.PtrBool(true)

	p := New(cfg, fsutil.NewMemoryFileSystem(), nil)
	assert.Equal(t, "renders", p.OutputDir)
	assert.Equal(t, config.DefaultBackgroundPath, p.BackgroundPath)
	assert.True(t, p.PlotDetections)
	assert.IsType(t, &occupancy.RandomPicker{}, p.Renderer.Picker)
	assert.Nil(t, p.Recorder)
	assert.Nil(t, p.LastWorking())
}

func TestLive_RecordsToSQLite(t *testing.T) {
	p, _, _ := newTestPipeline(t)
	store, err := db.NewDB(filepath.Join(t.TempDir(), "runs.db"))
	require.NoError(t, err)
	defer store.Close()
	p.Recorder = store

	out, err := p.Live(context.Background(), "lab", []occupancy.Detection{{X: 16, Y: 12}})
	require.NoError(t, err)
	require.NotEmpty(t, out.RunID)

	got, err := store.GetRun(out.RunID)
	require.NoError(t, err)
	assert.Equal(t, out.UpscaledPath, got.UpscaledPath)
	assert.Equal(t, 4, got.BrightCells)
}

func TestPreview_WritesNothing(t *testing.T) {
	p, mem, rec := newTestPipeline(t)

	res, err := p.Preview(context.Background(), []occupancy.Detection{{X: 16, Y: 12}})
	require.NoError(t, err)
	assert.Len(t, res.Bright, 4)
	assert.Empty(t, mem.Files("out"))
	assert.Empty(t, rec.runs)
	assert.True(t, p.LastWorking().Equal(res.Working))
}
