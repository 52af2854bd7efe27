package render

import (
	"gonum.org/v1/gonum/floats"

	"github.com/samirrijal/routecast/internal/core/domain"
)

// LapIndex maps a sample index to the lap that owns it, or to the most
// recently completed lap when the sample falls in a gap. Samples before
// the first lap map to -1.
type LapIndex []int

// BuildLapIndex builds the lookup in one pass over n samples.
func BuildLapIndex(n int, laps []domain.Lap) LapIndex {
	idx := make(LapIndex, n)
	cur, next := -1, 0
	for i := range idx {
		for next < len(laps) && laps[next].StartIndex <= i {
			cur = next
			next++
		}
		idx[i] = cur
	}
	return idx
}

// At returns the lap ordinal for sample i.
func (l LapIndex) At(i int) int {
	if i < 0 || i >= len(l) {
		return -1
	}
	return l[i]
}

// MaxLapPace returns the slowest lap pace in seconds per km.
func MaxLapPace(laps []domain.Lap) float64 {
	if len(laps) == 0 {
		return 0
	}
	paces := make([]float64, len(laps))
	for i, l := range laps {
		paces[i] = l.AvgPace
	}
	return floats.Max(paces)
}

// BarWidth scales a lap pace against the slowest lap.
func BarWidth(pace, maxPace, barMax float64) float64 {
	if pace <= 0 || maxPace <= 0 {
		return 0
	}
	return pace / maxPace * barMax
}
