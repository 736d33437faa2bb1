// Package pipeline ties the renderer to its inputs and sinks: the background
// bitmap, the output directory, the optional detection plot and the render
// history.
package pipeline

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"path/filepath"
	"strconv"
	"sync"

	"github.com/banshee-data/sensevis/internal/batch"
	"github.com/banshee-data/sensevis/internal/config"
	"github.com/banshee-data/sensevis/internal/db"
	"github.com/banshee-data/sensevis/internal/diagnostics"
	"github.com/banshee-data/sensevis/internal/fsutil"
	"github.com/banshee-data/sensevis/internal/imagecodec"
	"github.com/banshee-data/sensevis/internal/monitoring"
	"github.com/banshee-data/sensevis/internal/occupancy"
	"github.com/banshee-data/sensevis/internal/security"
	"github.com/banshee-data/sensevis/internal/timeutil"
)

// Output file names used by the live job.
const (
	LiveWorkingName  = "ignore.png"
	BlankWorkingName = "live.png"
)

// Batch rows are numbered from these offsets: row i writes working
// <i+BatchWorkingOffset>.png and upscaled <i+BatchUpscaledOffset>.png.
const (
	BatchWorkingOffset  = 100
	BatchUpscaledOffset = 1
)

// ErrInvalidLabel is returned for a live label that cannot be a file name
// under the output directory.
var ErrInvalidLabel = errors.New("invalid output label")

// Recorder persists render runs. *db.DB satisfies it.
type Recorder interface {
	RecordRun(run *db.RenderRun) error
}

// Outcome describes one completed render.
type Outcome struct {
	RunID        string
	Result       *occupancy.Result
	Summary      diagnostics.Summary
	WorkingPath  string
	UpscaledPath string
	PlotPath     string
}

// Pipeline renders detections against a background and writes the artifacts.
// It is safe for concurrent use; each call owns its frames.
type Pipeline struct {
	FS             fsutil.FileSystem
	Codec          imagecodec.Codec
	Renderer       *occupancy.Renderer
	BackgroundPath string
	OutputDir      string
	Recorder       Recorder // optional
	PlotDetections bool
	Clock          timeutil.Clock

	mu   sync.Mutex
	last *occupancy.Frame
}

// New builds a Pipeline from cfg. fsys nil means the OS filesystem; rec may
// be nil.
func New(cfg *config.RenderConfig, fsys fsutil.FileSystem, rec Recorder) *Pipeline {
	if fsys == nil {
		fsys = fsutil.OSFileSystem{}
	}
	picker := occupancy.ColorPicker(&occupancy.RandomPicker{})
	if seed, ok := cfg.GetSeed(); ok {
		picker = occupancy.NewRandomPicker(seed)
	}
	return &Pipeline{
		FS:             fsys,
		Codec:          imagecodec.NewPNG(fsys),
		Renderer:       occupancy.NewRenderer(picker),
		BackgroundPath: cfg.GetBackgroundPath(),
		OutputDir:      cfg.GetOutputDir(),
		Recorder:       rec,
		PlotDetections: cfg.GetPlotDetections(),
		Clock:          timeutil.RealClock{},
	}
}

// LastWorking returns a copy of the most recent working frame, or nil.
func (p *Pipeline) LastWorking() *occupancy.Frame {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.last == nil {
		return nil
	}
	return p.last.Clone()
}

func (p *Pipeline) remember(f *occupancy.Frame) {
	p.mu.Lock()
	p.last = f
	p.mu.Unlock()
}

func (p *Pipeline) clock() timeutil.Clock {
	if p.Clock == nil {
		return timeutil.RealClock{}
	}
	return p.Clock
}

func (p *Pipeline) background() (*occupancy.Frame, error) {
	return imagecodec.LoadBackground(p.Codec, p.BackgroundPath)
}

// ValidateLabel checks that label names a file directly inside the output
// directory.
func (p *Pipeline) ValidateLabel(label string) error {
	if label == "" || label != filepath.Base(label) || label == "." || label == ".." {
		return fmt.Errorf("%w: %q", ErrInvalidLabel, label)
	}
	path := filepath.Join(p.OutputDir, label+".png")
	if err := security.ValidatePathWithinDirectory(path, p.OutputDir); err != nil {
		return fmt.Errorf("%w: %v", ErrInvalidLabel, err)
	}
	return nil
}

// Live renders one live frame and saves it as <label>.png, with the working
// grid as ignore.png, or live.png when nothing was detected.
func (p *Pipeline) Live(ctx context.Context, label string, dets []occupancy.Detection) (*Outcome, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	if err := p.ValidateLabel(label); err != nil {
		return nil, err
	}
	bg, err := p.background()
	if err != nil {
		return nil, err
	}

	start := p.clock().Now()
	res, err := p.Renderer.RenderLive(bg, dets)
	if err != nil {
		return nil, err
	}
	workingName := LiveWorkingName
	if res.Blank {
		workingName = BlankWorkingName
		monitoring.Logf("No valid centroids detected, rendering blank %s", label)
	}

	out := &Outcome{
		Result:       res,
		Summary:      diagnostics.Summarize(liveDetections(dets)),
		WorkingPath:  filepath.Join(p.OutputDir, workingName),
		UpscaledPath: filepath.Join(p.OutputDir, label+".png"),
	}
	if err := p.save(out); err != nil {
		return nil, err
	}
	if p.PlotDetections {
		out.PlotPath = filepath.Join(p.OutputDir, label+"_detections.png")
		if err := p.plot(out.PlotPath, label, liveDetections(dets), occupancy.LiveRange); err != nil {
			return nil, err
		}
	}
	if err := p.record("live", label, out); err != nil {
		return nil, err
	}
	monitoring.Debugf("live %s: %d detections, %d bright cells in %v",
		label, res.Detections, len(res.Bright), p.clock().Since(start))
	return out, nil
}

// Preview renders a live frame without writing anything.
func (p *Pipeline) Preview(ctx context.Context, dets []occupancy.Detection) (*occupancy.Result, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	bg, err := p.background()
	if err != nil {
		return nil, err
	}
	res, err := p.Renderer.RenderLive(bg, dets)
	if err != nil {
		return nil, err
	}
	p.remember(res.Working)
	return res, nil
}

// liveDetections returns the points the live renderer draws: none for an
// all-sentinel list, otherwise every detection.
func liveDetections(dets []occupancy.Detection) []occupancy.Detection {
	if occupancy.AllZero(dets) {
		return nil
	}
	return dets
}

// Batch renders every valid CSV row from r. The background is loaded once.
func (p *Pipeline) Batch(ctx context.Context, r io.Reader) (batch.Report, error) {
	bg, err := p.background()
	if err != nil {
		return batch.Report{}, err
	}
	proc := &batch.Processor{Handle: func(ctx context.Context, row batch.Row) error {
		_, err := p.batchRow(bg, row)
		return err
	}}
	rep, err := proc.Run(ctx, r)
	if err != nil {
		return rep, err
	}
	monitoring.Logf("Batch complete: %d rows, %d rendered, %d skipped", rep.Rows, rep.Rendered, rep.Skipped)
	return rep, nil
}

func (p *Pipeline) batchRow(bg *occupancy.Frame, row batch.Row) (*Outcome, error) {
	res, err := p.Renderer.RenderBatch(bg, row.Detections)
	if err != nil {
		return nil, err
	}
	label := strconv.Itoa(row.Index + BatchUpscaledOffset)
	out := &Outcome{
		Result:       res,
		Summary:      diagnostics.Summarize(row.Detections),
		WorkingPath:  filepath.Join(p.OutputDir, strconv.Itoa(row.Index+BatchWorkingOffset)+".png"),
		UpscaledPath: filepath.Join(p.OutputDir, label+".png"),
	}
	if err := p.save(out); err != nil {
		return nil, err
	}
	if p.PlotDetections {
		out.PlotPath = filepath.Join(p.OutputDir, label+"_detections.png")
		if err := p.plot(out.PlotPath, "row "+label, row.Detections, occupancy.BatchRange); err != nil {
			return nil, err
		}
	}
	if err := p.record("batch", label, out); err != nil {
		return nil, err
	}
	return out, nil
}

func (p *Pipeline) save(out *Outcome) error {
	if err := p.Codec.Save(out.Result.Working, out.WorkingPath); err != nil {
		return err
	}
	if err := p.Codec.Save(out.Result.Upscaled, out.UpscaledPath); err != nil {
		return err
	}
	p.remember(out.Result.Working)
	return nil
}

func (p *Pipeline) plot(path, title string, dets []occupancy.Detection, rng occupancy.Range) error {
	pl, err := diagnostics.NewDetectionPlot(title, dets, rng)
	if err != nil {
		return err
	}
	var buf bytes.Buffer
	if err := diagnostics.WritePNG(&buf, pl); err != nil {
		return err
	}
	if err := p.FS.WriteFile(path, buf.Bytes(), 0o644); err != nil {
		return fmt.Errorf("write plot: %w", err)
	}
	return nil
}

func (p *Pipeline) record(mode, label string, out *Outcome) error {
	if p.Recorder == nil {
		return nil
	}
	run := &db.RenderRun{
		Mode:         mode,
		Label:        label,
		Detections:   out.Result.Detections,
		BrightCells:  len(out.Result.Bright),
		Blank:        out.Result.Blank,
		MeanX:        out.Summary.MeanX,
		MeanY:        out.Summary.MeanY,
		SpreadX:      out.Summary.SpreadX,
		SpreadY:      out.Summary.SpreadY,
		WorkingPath:  out.WorkingPath,
		UpscaledPath: out.UpscaledPath,
		CreatedAt:    p.clock().Now(),
	}
	if err := p.Recorder.RecordRun(run); err != nil {
		return fmt.Errorf("record %s run: %w", mode, err)
	}
	out.RunID = run.RunID
	return nil
}
