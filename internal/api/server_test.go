package api

import (
	"bytes"
	"encoding/json"
	"fmt"
	"image/png"
	"net/http"
	"net/http/httptest"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/banshee-data/sensevis/internal/db"
	"github.com/banshee-data/sensevis/internal/fsutil"
	"github.com/banshee-data/sensevis/internal/imagecodec"
	"github.com/banshee-data/sensevis/internal/monitoring"
	"github.com/banshee-data/sensevis/internal/occupancy"
	"github.com/banshee-data/sensevis/internal/pipeline"
)

func setupServer(t *testing.T, withHistory bool) (*Server, *fsutil.MemoryFileSystem) {
	t.Helper()
	monitoring.SetLogger(nil)

	mem := fsutil.NewMemoryFileSystem()
	var buf bytes.Buffer
	require.NoError(t, imagecodec.Encode(&buf, occupancy.NewFrame(occupancy.GridW, occupancy.GridH, occupancy.Color{R: 30, G: 30, B: 30})))
	require.NoError(t, mem.WriteFile("8x10.png", buf.Bytes(), 0o644))

	p := &pipeline.Pipeline{
		FS:             mem,
		Codec:          imagecodec.NewPNG(mem),
		Renderer:       occupancy.NewRenderer(occupancy.FixedPicker{Index: 2}),
		BackgroundPath: "8x10.png",
		OutputDir:      "out",
	}
	if !withHistory {
		return NewServer(p, nil), mem
	}
	store, err := db.NewDB(filepath.Join(t.TempDir(), "runs.db"))
	require.NoError(t, err)
	t.Cleanup(func() { store.Close() })
	p.Recorder = store
	return NewServer(p, store), mem
}

func do(t *testing.T, h http.Handler, method, target, body string) *httptest.ResponseRecorder {
	t.Helper()
	req := httptest.NewRequest(method, target, strings.NewReader(body))
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, req)
	return rec
}

func TestRender(t *testing.T) {
	s, mem := setupServer(t, true)
	mux := s.ServeMux()

	rec := do(t, mux, http.MethodPost, "/api/render", `{"label":"lab","detections":[16,12]}`)
	require.Equal(t, http.StatusCreated, rec.Code, rec.Body.String())

	var resp renderResponse
	require.NoError(t, json.NewDecoder(rec.Body).Decode(&resp))
	assert.NotEmpty(t, resp.RunID)
	assert.False(t, resp.Blank)
	assert.Equal(t, 1, resp.Detections)
	assert.Equal(t, 4, resp.BrightCells)
	assert.Equal(t, filepath.Join("out", "lab.png"), resp.Upscaled)
	assert.True(t, mem.Exists(resp.Upscaled))
	assert.True(t, mem.Exists(filepath.Join("out", "ignore.png")))

	rec = do(t, mux, http.MethodGet, "/api/runs/"+resp.RunID, "")
	require.Equal(t, http.StatusOK, rec.Code)
	var run db.RenderRun
	require.NoError(t, json.NewDecoder(rec.Body).Decode(&run))
	assert.Equal(t, "lab", run.Label)
	assert.Equal(t, "live", run.Mode)
}

func TestRender_Blank(t *testing.T) {
	s, mem := setupServer(t, false)

	for _, body := range []string{`{"label":"a"}`, `{"label":"a","detections":[]}`, `{"label":"a","detections":[[0,0]]}`} {
		rec := do(t, s.ServeMux(), http.MethodPost, "/api/render", body)
		require.Equal(t, http.StatusCreated, rec.Code, body)
		var resp renderResponse
		require.NoError(t, json.NewDecoder(rec.Body).Decode(&resp))
		assert.True(t, resp.Blank, body)
		assert.Empty(t, resp.RunID)
	}
	assert.True(t, mem.Exists(filepath.Join("out", "live.png")))
}

func TestRender_BadRequests(t *testing.T) {
	s, _ := setupServer(t, false)
	mux := s.ServeMux()

	tests := []struct {
		name   string
		method string
		body   string
		code   int
	}{
		{"wrong method", http.MethodGet, "", http.StatusMethodNotAllowed},
		{"bad json", http.MethodPost, `{`, http.StatusBadRequest},
		{"bad detections", http.MethodPost, `{"label":"a","detections":[[1,2,3]]}`, http.StatusBadRequest},
		{"missing label", http.MethodPost, `{"detections":[1,2]}`, http.StatusBadRequest},
		{"escaping label", http.MethodPost, `{"label":"../x","detections":[1,2]}`, http.StatusBadRequest},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			rec := do(t, mux, tt.method, "/api/render", tt.body)
			assert.Equal(t, tt.code, rec.Code, rec.Body.String())
		})
	}
}

func TestRenderPNG(t *testing.T) {
	s, mem := setupServer(t, false)
	mux := s.ServeMux()

	rec := do(t, mux, http.MethodGet, "/api/render.png?x=16&y=12", "")
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "image/png", rec.Header().Get("Content-Type"))
	img, err := png.Decode(rec.Body)
	require.NoError(t, err)
	assert.Equal(t, occupancy.OutputW, img.Bounds().Dx())
	assert.Equal(t, occupancy.OutputH, img.Bounds().Dy())

	rec = do(t, mux, http.MethodGet, "/api/render.png?x=16&y=12&x=2&y=3&frame=working", "")
	require.Equal(t, http.StatusOK, rec.Code)
	img, err = png.Decode(rec.Body)
	require.NoError(t, err)
	assert.Equal(t, occupancy.GridW, img.Bounds().Dx())

	assert.Empty(t, mem.Files("out"), "preview must not write files")
}

func TestRenderPNG_BadQuery(t *testing.T) {
	s, _ := setupServer(t, false)
	mux := s.ServeMux()

	for _, q := range []string{"x=1", "x=a&y=2", "x=1&y=b", "x=1&y=2&frame=huge", "x=NaN&y=1", "x=1&y=Inf", "x=-inf&y=nan"} {
		rec := do(t, mux, http.MethodGet, "/api/render.png?"+q, "")
		assert.Equal(t, http.StatusBadRequest, rec.Code, q)
	}
	rec := do(t, mux, http.MethodPost, "/api/render.png", "")
	assert.Equal(t, http.StatusMethodNotAllowed, rec.Code)
}

func TestListRuns(t *testing.T) {
	s, _ := setupServer(t, true)
	mux := s.ServeMux()

	rec := do(t, mux, http.MethodGet, "/api/runs", "")
	require.Equal(t, http.StatusOK, rec.Code)
	assert.JSONEq(t, `[]`, rec.Body.String())

	for i := 0; i < 3; i++ {
		body := fmt.Sprintf(`{"label":"r%d","detections":[%d,5]}`, i, 5+i)
		require.Equal(t, http.StatusCreated, do(t, mux, http.MethodPost, "/api/render", body).Code)
	}

	rec = do(t, mux, http.MethodGet, "/api/runs?limit=2", "")
	require.Equal(t, http.StatusOK, rec.Code)
	var runs []db.RenderRun
	require.NoError(t, json.NewDecoder(rec.Body).Decode(&runs))
	assert.Len(t, runs, 2)

	for _, q := range []string{"limit=0", "limit=x", "limit=100000"} {
		assert.Equal(t, http.StatusBadRequest, do(t, mux, http.MethodGet, "/api/runs?"+q, "").Code, q)
	}
	assert.Equal(t, http.StatusNotFound, do(t, mux, http.MethodGet, "/api/runs/nope", "").Code)
	assert.Equal(t, http.StatusBadRequest, do(t, mux, http.MethodGet, "/api/runs/", "").Code)
}

func TestRuns_WithoutHistory(t *testing.T) {
	s, _ := setupServer(t, false)
	mux := s.ServeMux()

	assert.Equal(t, http.StatusNotFound, do(t, mux, http.MethodGet, "/api/runs", "").Code)
	assert.Equal(t, http.StatusNotFound, do(t, mux, http.MethodGet, "/api/runs/abc", "").Code)
}

func TestHandleGrid(t *testing.T) {
	s, _ := setupServer(t, false)

	rec := do(t, http.HandlerFunc(s.handleGrid), http.MethodGet, "/debug/grid", "")
	assert.Equal(t, http.StatusNotFound, rec.Code)

	require.Equal(t, http.StatusOK, do(t, s.ServeMux(), http.MethodGet, "/api/render.png?x=16&y=12", "").Code)

	rec = do(t, http.HandlerFunc(s.handleGrid), http.MethodGet, "/debug/grid", "")
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Header().Get("Content-Type"), "text/html")
	assert.Contains(t, rec.Body.String(), "Working grid")
	assert.Contains(t, rec.Body.String(), "luma")
}

func TestLoggingMiddleware(t *testing.T) {
	var lines []string
	monitoring.SetLogger(func(format string, v ...interface{}) {
		lines = append(lines, fmt.Sprintf(format, v...))
	})
	t.Cleanup(func() { monitoring.SetLogger(nil) })

	h := LoggingMiddleware(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusTeapot)
	}))
	do(t, h, http.MethodGet, "/api/runs?limit=1", "")

	require.Len(t, lines, 1)
	assert.Contains(t, lines[0], "418")
	assert.Contains(t, lines[0], "/api/runs?limit=1")
}
