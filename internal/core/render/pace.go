package render

import (
	"fmt"
	"math"

	"github.com/samirrijal/routecast/internal/core/domain"
)

// FormatPace renders seconds per km as m:ss. Non-positive paces render 0:00.
func FormatPace(secondsPerKm float64) string {
	if secondsPerKm <= 0 || math.IsInf(secondsPerKm, 0) || math.IsNaN(secondsPerKm) {
		return "0:00"
	}
	total := int(math.Round(secondsPerKm))
	return fmt.Sprintf("%d:%02d", total/60, total%60)
}

// SpeedToPace converts m/s into seconds per km. Non-positive speeds give 0.
func SpeedToPace(mps float64) float64 {
	if mps <= 0 {
		return 0
	}
	return 1000 / mps
}

// FormatSpeed renders a speed in m/s as a m:ss pace.
func FormatSpeed(mps float64) string {
	return FormatPace(SpeedToPace(mps))
}

// WindowSpeed estimates speed at sample i from the distance and time covered
// over the trailing window. It falls back to the sample's recorded speed when
// the window covers no distance or no time.
func WindowSpeed(samples []domain.GeoSample, i, window int) float64 {
	if i < 0 || i >= len(samples) {
		return 0
	}
	j := max(i-window, 0)
	dd := samples[i].Distance - samples[j].Distance
	dt := samples[i].Time.Sub(samples[j].Time).Seconds()
	if dd > 0 && dt > 0 {
		return dd / dt
	}
	if s := samples[i].Speed; s != nil {
		return *s
	}
	return 0
}

// FormatDistance renders metres as kilometres with two decimals.
func FormatDistance(metres float64) string {
	return fmt.Sprintf("%.2f km", metres/1000)
}
