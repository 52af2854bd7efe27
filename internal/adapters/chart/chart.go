// Package chart renders lap statistics as standalone charts: a PNG bar
// chart for downloads and an interactive HTML page.
package chart

import (
	"bytes"
	"errors"
	"fmt"
	"image/color"

	"github.com/go-echarts/go-echarts/v2/charts"
	"github.com/go-echarts/go-echarts/v2/components"
	"github.com/go-echarts/go-echarts/v2/opts"
	"github.com/go-echarts/go-echarts/v2/types"
	"gonum.org/v1/plot"
	"gonum.org/v1/plot/plotter"
	"gonum.org/v1/plot/vg"

	"github.com/samirrijal/routecast/internal/core/domain"
	"github.com/samirrijal/routecast/internal/core/render"
)

// ErrNoLaps is returned when there is nothing to chart.
var ErrNoLaps = errors.New("no laps to chart")

// pngDPI is the resolution gonum/plot rasterises at.
const pngDPI = 96

// Renderer implements ports.ChartRenderer.
type Renderer struct {
	// AssetsHost overrides where the HTML page loads echarts from.
	AssetsHost string
}

// New returns a chart renderer.
func New() *Renderer {
	return &Renderer{}
}

func lapLabels(laps []domain.Lap) []string {
	out := make([]string, len(laps))
	for i := range laps {
		out[i] = fmt.Sprintf("%d", i+1)
	}
	return out
}

// paceMinutes converts a lap pace to decimal minutes per km.
func paceMinutes(l domain.Lap) float64 {
	if l.AvgPace <= 0 {
		return 0
	}
	return l.AvgPace / 60
}

// LapPacePNG draws one bar per lap, height in minutes per km.
func (r *Renderer) LapPacePNG(laps []domain.Lap, width, height int) ([]byte, error) {
	if len(laps) == 0 {
		return nil, ErrNoLaps
	}
	if width <= 0 || height <= 0 {
		return nil, fmt.Errorf("chart size %dx%d must be positive", width, height)
	}

	p := plot.New()
	p.Title.Text = "Lap pace"
	p.X.Label.Text = "Lap"
	p.Y.Label.Text = "Pace (min/km)"

	values := make(plotter.Values, len(laps))
	for i, l := range laps {
		values[i] = paceMinutes(l)
	}
	bars, err := plotter.NewBarChart(values, vg.Points(barWidth(width, len(laps))))
	if err != nil {
		return nil, fmt.Errorf("bar chart: %w", err)
	}
	bars.Color = color.RGBA{R: 0, G: 200, B: 0, A: 255}
	bars.LineStyle.Width = 0
	p.Add(bars)
	p.NominalX(lapLabels(laps)...)

	w := vg.Length(width) * vg.Inch / pngDPI
	h := vg.Length(height) * vg.Inch / pngDPI
	wt, err := p.WriterTo(w, h, "png")
	if err != nil {
		return nil, fmt.Errorf("png writer: %w", err)
	}
	var buf bytes.Buffer
	if _, err := wt.WriteTo(&buf); err != nil {
		return nil, fmt.Errorf("write png: %w", err)
	}
	return buf.Bytes(), nil
}

// barWidth spreads bars over about two thirds of the width, in points.
func barWidth(width, n int) float64 {
	px := float64(width) * 2 / 3 / float64(n)
	return max(px*72/pngDPI, 1)
}

// LapPaceHTML renders an interactive page with pace bars and, when any lap
// has it, an average heart rate line.
func (r *Renderer) LapPaceHTML(laps []domain.Lap) ([]byte, error) {
	if len(laps) == 0 {
		return nil, ErrNoLaps
	}

	paces := make([]opts.BarData, len(laps))
	for i, l := range laps {
		paces[i] = opts.BarData{
			Value:   paceMinutes(l),
			Tooltip: &opts.Tooltip{Formatter: types.FuncStr(fmt.Sprintf("Lap %d: %s min/km", i+1, render.FormatPace(l.AvgPace)))},
		}
	}

	initOpts := opts.Initialization{PageTitle: "Lap pace", Width: "100%", Height: "480px"}
	if r.AssetsHost != "" {
		initOpts.AssetsHost = r.AssetsHost
	}
	bar := charts.NewBar()
	bar.SetGlobalOptions(
		charts.WithInitializationOpts(initOpts),
		charts.WithTitleOpts(opts.Title{Title: "Lap pace", Subtitle: fmt.Sprintf("%d laps", len(laps))}),
		charts.WithTooltipOpts(opts.Tooltip{Show: opts.Bool(true)}),
		charts.WithYAxisOpts(opts.YAxis{Name: "min/km"}),
	)
	bar.SetXAxis(lapLabels(laps)).AddSeries("pace", paces)

	if hr, ok := heartRates(laps); ok {
		line := charts.NewLine()
		line.SetXAxis(lapLabels(laps)).AddSeries("heart rate", hr)
		bar.Overlap(line)
	}

	page := components.NewPage()
	if r.AssetsHost != "" {
		page.SetAssetsHost(r.AssetsHost)
	}
	page.AddCharts(bar)

	var buf bytes.Buffer
	if err := page.Render(&buf); err != nil {
		return nil, fmt.Errorf("render html: %w", err)
	}
	return buf.Bytes(), nil
}

func heartRates(laps []domain.Lap) ([]opts.LineData, bool) {
	out := make([]opts.LineData, len(laps))
	found := false
	for i, l := range laps {
		if l.AvgHeartRate != nil {
			out[i] = opts.LineData{Value: *l.AvgHeartRate}
			found = true
		} else {
			out[i] = opts.LineData{Value: "-"}
		}
	}
	return out, found
}
