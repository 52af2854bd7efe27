package render

import (
	"fmt"
	"log/slog"

	"github.com/samirrijal/routecast/internal/core/domain"
	"github.com/samirrijal/routecast/internal/core/ports"
)

const (
	barMargin    = 20.0
	barPadding   = 30.0
	rowGap       = 5.0
	columnGap    = 20.0
	headerOffset = 20.0
)

// Lap panel header labels.
const (
	LabelPace   = "KM  PACE"
	LabelBar    = "BAR"
	LabelHR     = "HR"
	LabelLength = "LENGTH"
)

// Compositor draws the pace/distance bar and the lap panel. It only reads
// the activity and config.
type Compositor struct {
	cfg     domain.RenderConfig
	samples []domain.GeoSample
	laps    []domain.Lap
	lapIdx  LapIndex
	maxPace float64

	width, height int
	lapX, lapY    float64
	showLaps      bool
}

// NewCompositor resolves panel positions for a w×h frame. A lap panel
// requested for an activity without laps is hidden and logged.
func NewCompositor(cfg domain.RenderConfig, act *domain.Activity, w, h int, logger *slog.Logger) *Compositor {
	if logger == nil {
		logger = slog.Default()
	}
	c := &Compositor{
		cfg:      cfg,
		samples:  act.Samples,
		laps:     act.Laps,
		lapIdx:   BuildLapIndex(len(act.Samples), act.Laps),
		maxPace:  MaxLapPace(act.Laps),
		width:    w,
		height:   h,
		lapX:     cfg.LapData.PositionXPercent * float64(w),
		lapY:     cfg.LapData.PositionYPercent * float64(h),
		showLaps: cfg.ShowLapData,
	}
	if c.showLaps && len(act.Laps) == 0 {
		logger.Warn("hiding lap panel", "error", domain.ErrMissingLapData)
		c.showLaps = false
	}
	return c
}

// LapsVisible reports whether the lap panel will be drawn.
func (c *Compositor) LapsVisible() bool { return c.showLaps }

// CurrentLap returns the lap ordinal for sample i, or -1.
func (c *Compositor) CurrentLap(i int) int { return c.lapIdx.At(i) }

// LastLap returns the ordinal of the final lap, or -1.
func (c *Compositor) LastLap() int { return len(c.laps) - 1 }

// DrawFrame draws both panels for sample i.
func (c *Compositor) DrawFrame(cv ports.Canvas, i int) {
	c.DrawPaceDist(cv, i)
	c.DrawLapPanel(cv, c.CurrentLap(i))
}

func (c *Compositor) paceStyle() ports.TextStyle {
	return ports.TextStyle{
		Font:      c.cfg.PaceDist.Font,
		Scale:     c.cfg.PaceDist.FontScale,
		Thickness: c.cfg.PaceDist.Thickness,
		Color:     c.cfg.Colors.Text,
	}
}

func (c *Compositor) lapStyle(col domain.RGB) ports.TextStyle {
	return ports.TextStyle{
		Font:      c.cfg.LapData.Font,
		Scale:     c.cfg.LapData.FontScale,
		Thickness: c.cfg.LapData.Thickness,
		Color:     col,
	}
}

// PaceText is the bar text for sample i.
func (c *Compositor) PaceText(i int) string {
	speed := WindowSpeed(c.samples, i, c.cfg.PaceDist.SmoothingWindow)
	return fmt.Sprintf("Pace: %s min/km", FormatSpeed(speed))
}

// DistanceText is the bar text for sample i.
func (c *Compositor) DistanceText(i int) string {
	if i < 0 || i >= len(c.samples) {
		return "Dist: " + FormatDistance(0)
	}
	return "Dist: " + FormatDistance(c.samples[i].Distance)
}

// DrawPaceDist draws the black bottom band with pace on the left and
// distance on the right.
func (c *Compositor) DrawPaceDist(cv ports.Canvas, i int) {
	pd := c.cfg.PaceDist
	if !c.cfg.ShowBottomBar || (!pd.ShowPace && !pd.ShowDistance) {
		return
	}
	st := c.paceStyle()
	dist := c.DistanceText(i)
	_, th := cv.MeasureText(dist, st)
	barH := th + barPadding
	w, h := float64(c.width), float64(c.height)
	cv.FillRect(0, h-barH, w, barH, domain.ColorBlack.RGB())

	y := h - barMargin
	if pd.ShowPace {
		cv.Text(c.PaceText(i), barMargin, y, st)
	}
	if pd.ShowDistance {
		tw, _ := cv.MeasureText(dist, st)
		cv.Text(dist, w-tw-barMargin, y, st)
	}
}

type lapColumns struct {
	bar, hr, length float64
}

func (c *Compositor) columns(cv ports.Canvas) lapColumns {
	ld := c.cfg.LapData
	st := c.lapStyle(ld.TextColor)
	pw, _ := cv.MeasureText(fmt.Sprintf("%2d  %s", len(c.laps), "00:00"), st)
	var cols lapColumns
	cols.bar = pw + columnGap
	cols.hr = cols.bar
	if ld.ShowPaceBars {
		cols.hr += ld.BarMaxWidth + columnGap
	}
	cols.length = cols.hr
	if ld.ShowHeartRate {
		hw, _ := cv.MeasureText("000", st)
		cols.length += hw + columnGap
	}
	return cols
}

// DrawLapPanel draws the header and one row per lap up to and including
// lap ordinal through. Nothing is drawn when the panel is hidden.
func (c *Compositor) DrawLapPanel(cv ports.Canvas, through int) {
	if !c.showLaps {
		return
	}
	ld := c.cfg.LapData
	cols := c.columns(cv)
	head := c.lapStyle(ld.HeaderColor)
	x, y := c.lapX, c.lapY

	cv.Text(LabelPace, x, y-headerOffset, head)
	if ld.ShowPaceBars {
		cv.Text(LabelBar, x+cols.bar, y-headerOffset, head)
	}
	if ld.ShowHeartRate {
		cv.Text(LabelHR, x+cols.hr, y-headerOffset, head)
	}
	if ld.ShowStrideLength {
		cv.Text(LabelLength, x+cols.length, y-headerOffset, head)
	}

	through = min(through, len(c.laps)-1)
	st := c.lapStyle(ld.TextColor)
	_, rowH := cv.MeasureText("0", st)
	for k := 0; k <= through; k++ {
		lap := c.laps[k]
		ry := y + float64(k)*(rowH+rowGap)
		cv.Text(fmt.Sprintf("%2d  %s", k+1, FormatPace(lap.AvgPace)), x, ry, st)
		if ld.ShowPaceBars {
			if bw := BarWidth(lap.AvgPace, c.maxPace, ld.BarMaxWidth); bw > 0 {
				cv.FillRect(x+cols.bar, ry-rowH, bw, rowH, c.cfg.Colors.LapBars)
			}
		}
		if ld.ShowHeartRate && lap.AvgHeartRate != nil {
			cv.Text(fmt.Sprintf("%.0f", *lap.AvgHeartRate), x+cols.hr, ry, st)
		}
		if ld.ShowStrideLength && lap.AvgStrideLength != nil {
			cv.Text(fmt.Sprintf("%.2f", *lap.AvgStrideLength), x+cols.length, ry, st)
		}
	}
}

// DrawRoute connects consecutive points. A single point draws nothing.
func (c *Compositor) DrawRoute(cv ports.Canvas, pts []domain.PixelPoint) {
	for j := 1; j < len(pts); j++ {
		cv.Line(pts[j-1], pts[j], c.cfg.LineThickness, c.cfg.Colors.RouteLine)
	}
}

// DrawMarker draws the current position.
func (c *Compositor) DrawMarker(cv ports.Canvas, pt domain.PixelPoint) {
	cv.Circle(pt, c.cfg.MarkerRadius, c.cfg.Colors.CurrentPosition)
}
