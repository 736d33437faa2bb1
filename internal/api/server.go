// Package api serves renders over HTTP.
package api

import (
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"math"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/banshee-data/sensevis/internal/db"
	"github.com/banshee-data/sensevis/internal/exchange"
	"github.com/banshee-data/sensevis/internal/httputil"
	"github.com/banshee-data/sensevis/internal/imagecodec"
	"github.com/banshee-data/sensevis/internal/monitoring"
	"github.com/banshee-data/sensevis/internal/occupancy"
	"github.com/banshee-data/sensevis/internal/pipeline"
)

// ANSI escape codes for the request log
const (
	colorCyan      = "\033[36m"
	colorReset     = "\033[0m"
	colorYellow    = "\033[33m"
	colorBoldGreen = "\033[1;32m"
	colorBoldRed   = "\033[1;31m"
)

const (
	maxRequestBody   = 1 << 20
	defaultRunsLimit = 50
	maxRunsLimit     = 1000
)

// RunStore is the read side of the render history. *db.DB satisfies it.
type RunStore interface {
	ListRuns(limit int) ([]db.RenderRun, error)
	GetRun(runID string) (*db.RenderRun, error)
}

type Server struct {
	pipeline *pipeline.Pipeline
	runs     RunStore
}

// NewServer returns a server rendering through p. runs may be nil, in which
// case the history endpoints answer 404.
func NewServer(p *pipeline.Pipeline, runs RunStore) *Server {
	return &Server{pipeline: p, runs: runs}
}

type loggingResponseWriter struct {
	http.ResponseWriter
	statusCode int
}

func (lrw *loggingResponseWriter) WriteHeader(code int) {
	lrw.statusCode = code
	lrw.ResponseWriter.WriteHeader(code)
}

func statusCodeColor(statusCode int) string {
	switch {
	case statusCode >= 200 && statusCode < 300:
		return colorBoldGreen + strconv.Itoa(statusCode) + colorReset
	case statusCode >= 300 && statusCode < 400:
		return colorYellow + strconv.Itoa(statusCode) + colorReset
	case statusCode >= 400:
		return colorBoldRed + strconv.Itoa(statusCode) + colorReset
	default:
		return strconv.Itoa(statusCode)
	}
}

// LoggingMiddleware logs method, path, query, status, and duration
func LoggingMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		lrw := &loggingResponseWriter{w, http.StatusOK}
		next.ServeHTTP(lrw, r)
		monitoring.Logf(
			"[%s] %s %s%s%s %vms",
			statusCodeColor(lrw.statusCode), r.Method,
			colorCyan, r.RequestURI, colorReset,
			float64(time.Since(start).Nanoseconds())/1e6,
		)
	})
}

func (s *Server) ServeMux() *http.ServeMux {
	mux := http.NewServeMux()
	mux.HandleFunc("/api/render", s.render)
	mux.HandleFunc("/api/render.png", s.renderPNG)
	mux.HandleFunc("/api/runs", s.listRuns)
	mux.HandleFunc("/api/runs/", s.getRun)
	return mux
}

type renderRequest struct {
	Label string `json:"label"`
	// Detections takes the exchange file shape: [x, y] or [[x, y], ...].
	Detections json.RawMessage `json:"detections"`
}

type renderResponse struct {
	RunID       string `json:"run_id,omitempty"`
	Label       string `json:"label"`
	Blank       bool   `json:"blank"`
	Detections  int    `json:"detections"`
	BrightCells int    `json:"bright_cells"`
	Working     string `json:"working"`
	Upscaled    string `json:"upscaled"`
	Plot        string `json:"plot,omitempty"`
}

func (s *Server) render(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		httputil.MethodNotAllowed(w)
		return
	}

	var req renderRequest
	body, err := io.ReadAll(http.MaxBytesReader(w, r.Body, maxRequestBody))
	if err != nil {
		httputil.BadRequest(w, fmt.Sprintf("failed to read body: %v", err))
		return
	}
	if err := json.Unmarshal(body, &req); err != nil {
		httputil.BadRequest(w, fmt.Sprintf("invalid JSON: %v", err))
		return
	}
	dets, err := exchange.Decode(req.Detections)
	if err != nil {
		httputil.BadRequest(w, err.Error())
		return
	}

	out, err := s.pipeline.Live(r.Context(), req.Label, dets)
	if errors.Is(err, pipeline.ErrInvalidLabel) {
		httputil.BadRequest(w, err.Error())
		return
	}
	if err != nil {
		httputil.InternalServerError(w, fmt.Sprintf("render failed: %v", err))
		return
	}

	httputil.WriteJSON(w, http.StatusCreated, renderResponse{
		RunID:       out.RunID,
		Label:       req.Label,
		Blank:       out.Result.Blank,
		Detections:  out.Result.Detections,
		BrightCells: len(out.Result.Bright),
		Working:     out.WorkingPath,
		Upscaled:    out.UpscaledPath,
		Plot:        out.PlotPath,
	})
}

// renderPNG streams a preview. Query: repeated x and y values, paired in
// order; frame=working returns the 10x8 grid instead of the upscaled image.
func (s *Server) renderPNG(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		httputil.MethodNotAllowed(w)
		return
	}
	q := r.URL.Query()
	dets, err := parseDetections(q["x"], q["y"])
	if err != nil {
		httputil.BadRequest(w, err.Error())
		return
	}

	res, err := s.pipeline.Preview(r.Context(), dets)
	if err != nil {
		httputil.InternalServerError(w, fmt.Sprintf("render failed: %v", err))
		return
	}
	frame := res.Upscaled
	switch q.Get("frame") {
	case "", "upscaled":
	case "working":
		frame = res.Working
	default:
		httputil.BadRequest(w, "frame must be 'upscaled' or 'working'")
		return
	}

	w.Header().Set("Content-Type", "image/png")
	w.Header().Set("Cache-Control", "no-store")
	if err := imagecodec.Encode(w, frame); err != nil {
		monitoring.Logf("failed to write preview: %v", err)
	}
}

func parseDetections(xs, ys []string) ([]occupancy.Detection, error) {
	if len(xs) != len(ys) {
		return nil, fmt.Errorf("got %d x values and %d y values", len(xs), len(ys))
	}
	dets := make([]occupancy.Detection, len(xs))
	for i := range xs {
		x, err := parseCoord(xs[i])
		if err != nil {
			return nil, fmt.Errorf("invalid x %q", xs[i])
		}
		y, err := parseCoord(ys[i])
		if err != nil {
			return nil, fmt.Errorf("invalid y %q", ys[i])
		}
		dets[i] = occupancy.Detection{X: x, Y: y}
	}
	return dets, nil
}

func (s *Server) listRuns(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		httputil.MethodNotAllowed(w)
		return
	}
	if s.runs == nil {
		httputil.NotFound(w, "render history is not enabled")
		return
	}

	limit := defaultRunsLimit
	if l := r.URL.Query().Get("limit"); l != "" {
		n, err := strconv.Atoi(l)
		if err != nil || n < 1 || n > maxRunsLimit {
			httputil.BadRequest(w, fmt.Sprintf("limit must be between 1 and %d", maxRunsLimit))
			return
		}
		limit = n
	}

	runs, err := s.runs.ListRuns(limit)
	if err != nil {
		httputil.InternalServerError(w, fmt.Sprintf("failed to list runs: %v", err))
		return
	}
	if runs == nil {
		runs = []db.RenderRun{}
	}
	httputil.WriteJSON(w, http.StatusOK, runs)
}

func (s *Server) getRun(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		httputil.MethodNotAllowed(w)
		return
	}
	if s.runs == nil {
		httputil.NotFound(w, "render history is not enabled")
		return
	}
	id := strings.TrimPrefix(r.URL.Path, "/api/runs/")
	if id == "" || strings.Contains(id, "/") {
		httputil.BadRequest(w, "missing run id")
		return
	}

	run, err := s.runs.GetRun(id)
	if errors.Is(err, db.ErrRunNotFound) {
		httputil.NotFound(w, err.Error())
		return
	}
	if err != nil {
		httputil.InternalServerError(w, fmt.Sprintf("failed to load run: %v", err))
		return
	}
	httputil.WriteJSON(w, http.StatusOK, run)
}

func parseCoord(s string) (float64, error) {
	v, err := strconv.ParseFloat(s, 64)
	if err != nil {
		return 0, err
	}
	if math.IsNaN(v) || math.IsInf(v, 0) {
		return 0, errors.New("not finite")
	}
	return v, nil
}
