package api

import (
	"bytes"
	"fmt"
	"image/color"
	"math"
	"net/http"
	"strconv"

	"github.com/go-echarts/go-echarts/v2/charts"
	"github.com/go-echarts/go-echarts/v2/components"
	"github.com/go-echarts/go-echarts/v2/opts"
	"gonum.org/v1/plot"
	"gonum.org/v1/plot/plotter"
	"gonum.org/v1/plot/vg"

	"github.com/banshee-data/reflex/internal/avoidance"
	"github.com/banshee-data/reflex/internal/db"
	"github.com/banshee-data/reflex/internal/httputil"
)

var sensorColors = map[avoidance.Sensor]color.RGBA{
	avoidance.Left:  {R: 0x1f, G: 0x77, B: 0xb4, A: 0xff},
	avoidance.Front: {R: 0xd6, G: 0x27, B: 0x28, A: 0xff},
	avoidance.Right: {R: 0x2c, G: 0xa0, B: 0x2c, A: 0xff},
}

// handleCommandChart renders the commanded linear and angular velocity of
// recent ticks as an HTML line chart.
func (s *Server) handleCommandChart(w http.ResponseWriter, r *http.Request) {
	if !httputil.RequireGet(w, r) {
		return
	}
	recs, ok := s.recentTicks(w, r)
	if !ok {
		return
	}

	x := make([]string, 0, len(recs))
	linear := make([]opts.LineData, 0, len(recs))
	angular := make([]opts.LineData, 0, len(recs))
	for _, rec := range recs {
		x = append(x, strconv.FormatUint(rec.Seq, 10))
		linear = append(linear, opts.LineData{Value: rec.Command.LinearX, Name: rec.Label})
		angular = append(angular, opts.LineData{Value: rec.Command.AngularZ, Name: rec.Label})
	}

	line := charts.NewLine()
	line.SetGlobalOptions(
		charts.WithInitializationOpts(opts.Initialization{PageTitle: "Velocity commands", Width: "100%", Height: "600px"}),
		charts.WithTitleOpts(opts.Title{Title: "Velocity commands", Subtitle: fmt.Sprintf("run=%s ticks=%d", s.runID, len(recs))}),
		charts.WithTooltipOpts(opts.Tooltip{Show: opts.Bool(true), Trigger: "axis"}),
		charts.WithLegendOpts(opts.Legend{Show: opts.Bool(true)}),
		charts.WithXAxisOpts(opts.XAxis{Name: "tick", NameLocation: "middle", NameGap: 25}),
		charts.WithYAxisOpts(opts.YAxis{Name: "m/s, rad/s", NameLocation: "middle", NameGap: 40}),
	)
	step := charts.WithLineChartOpts(opts.LineChart{Step: "end"})
	line.SetXAxis(x).
		AddSeries("linear_x", linear, step).
		AddSeries("angular_z", angular, step)

	page := components.NewPage()
	page.AddCharts(line)

	var buf bytes.Buffer
	if err := page.Render(&buf); err != nil {
		httputil.InternalServerError(w, fmt.Sprintf("render error: %v", err))
		return
	}
	w.Header().Set("Content-Type", "text/html; charset=utf-8")
	_, _ = w.Write(buf.Bytes())
}

// ClearancePlot draws the three range readings of recs against tick number.
// Unknown readings leave gaps in the series.
func ClearancePlot(recs []db.TickRecord, threshold float64) (*plot.Plot, error) {
	p := plot.New()
	p.Title.Text = "Clearance"
	p.X.Label.Text = "Tick"
	p.Y.Label.Text = "Distance (m)"
	p.Legend.Top = true
	p.Legend.Left = false

	for _, sensor := range avoidance.Sensors {
		pts := make(plotter.XYs, 0, len(recs))
		for _, rec := range recs {
			v := rec.Readings.Get(sensor)
			if math.IsInf(v, 0) || math.IsNaN(v) {
				continue
			}
			pts = append(pts, plotter.XY{X: float64(rec.Seq), Y: v})
		}
		if len(pts) == 0 {
			continue
		}
		l, err := plotter.NewLine(pts)
		if err != nil {
			return nil, fmt.Errorf("%s: %w", sensor, err)
		}
		l.Color = sensorColors[sensor]
		l.Width = vg.Points(1)
		p.Add(l)
		p.Legend.Add(sensor.String(), l)
	}

	if len(recs) > 0 && threshold > 0 {
		first, last := float64(recs[0].Seq), float64(recs[len(recs)-1].Seq)
		if last == first {
			last = first + 1
		}
		th, err := plotter.NewLine(plotter.XYs{{X: first, Y: threshold}, {X: last, Y: threshold}})
		if err != nil {
			return nil, err
		}
		th.Color = color.Gray{Y: 0x80}
		th.Dashes = []vg.Length{vg.Points(4), vg.Points(2)}
		p.Add(th)
		p.Legend.Add("threshold", th)
	}
	return p, nil
}

func (s *Server) handleClearancePlot(w http.ResponseWriter, r *http.Request) {
	if !httputil.RequireGet(w, r) {
		return
	}
	recs, ok := s.recentTicks(w, r)
	if !ok {
		return
	}
	p, err := ClearancePlot(recs, s.live.Params().ObstacleThreshold)
	if err != nil {
		httputil.InternalServerError(w, fmt.Sprintf("plot error: %v", err))
		return
	}
	wt, err := p.WriterTo(10*vg.Inch, 4*vg.Inch, "png")
	if err != nil {
		httputil.InternalServerError(w, fmt.Sprintf("render error: %v", err))
		return
	}
	var buf bytes.Buffer
	if _, err := wt.WriteTo(&buf); err != nil {
		httputil.InternalServerError(w, fmt.Sprintf("render error: %v", err))
		return
	}
	w.Header().Set("Content-Type", "image/png")
	_, _ = w.Write(buf.Bytes())
}
