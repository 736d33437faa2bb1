package api

import (
	"bytes"
	"fmt"
	"net/http"
	"strconv"

	"github.com/go-echarts/go-echarts/v2/charts"
	"github.com/go-echarts/go-echarts/v2/opts"
	"tailscale.com/tsweb"

	"github.com/banshee-data/sensevis/internal/httputil"
	"github.com/banshee-data/sensevis/internal/occupancy"
)

// AttachDebugRoutes adds the working-grid heatmap to the tsweb debug index.
func (s *Server) AttachDebugRoutes(debug *tsweb.DebugHandler) {
	debug.Handle("grid", "Heatmap of the last working grid", http.HandlerFunc(s.handleGrid))
}

// handleGrid draws the most recent working frame as a luma heatmap, row 0
// at the top like the image itself.
func (s *Server) handleGrid(w http.ResponseWriter, r *http.Request) {
	frame := s.pipeline.LastWorking()
	if frame == nil {
		httputil.NotFound(w, "no frame rendered yet")
		return
	}

	hm := gridHeatMap(frame)
	var buf bytes.Buffer
	if err := hm.Render(&buf); err != nil {
		httputil.InternalServerError(w, fmt.Sprintf("failed to render chart: %v", err))
		return
	}
	w.Header().Set("Content-Type", "text/html; charset=utf-8")
	_, _ = w.Write(buf.Bytes())
}

func gridHeatMap(frame *occupancy.Frame) *charts.HeatMap {
	xLabels := make([]string, frame.Width)
	for x := range xLabels {
		xLabels[x] = strconv.Itoa(x)
	}
	// Category axes grow upwards, so rows are listed bottom first.
	yLabels := make([]string, frame.Height)
	for i := range yLabels {
		yLabels[i] = strconv.Itoa(frame.Height - 1 - i)
	}

	data := make([]opts.HeatMapData, 0, frame.Width*frame.Height)
	for y := 0; y < frame.Height; y++ {
		for x := 0; x < frame.Width; x++ {
			c := frame.At(x, y)
			data = append(data, opts.HeatMapData{
				Name:  c.Hex(),
				Value: [3]interface{}{x, frame.Height - 1 - y, int(c.Luma() + 0.5)},
			})
		}
	}

	hm := charts.NewHeatMap()
	hm.SetGlobalOptions(
		charts.WithInitializationOpts(opts.Initialization{PageTitle: "Working grid", Width: "800px", Height: "640px"}),
		charts.WithTitleOpts(opts.Title{Title: "Working grid", Subtitle: fmt.Sprintf("%dx%d luma", frame.Width, frame.Height)}),
		charts.WithTooltipOpts(opts.Tooltip{Show: opts.Bool(true)}),
		charts.WithXAxisOpts(opts.XAxis{Type: "category", Data: xLabels, Name: "x"}),
		charts.WithYAxisOpts(opts.YAxis{Type: "category", Data: yLabels, Name: "y"}),
		charts.WithVisualMapOpts(opts.VisualMap{
			Show:       opts.Bool(true),
			Calculable: opts.Bool(true),
			Min:        0,
			Max:        255,
			InRange:    &opts.VisualMapInRange{Color: []string{"#08306b", "#08d5eb", "#8dff4d", "#fff800"}},
		}),
	)
	hm.SetXAxis(xLabels)
	hm.AddSeries("luma", data)
	return hm
}
