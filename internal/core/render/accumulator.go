package render

import (
	"fmt"

	"github.com/samirrijal/routecast/internal/core/domain"
)

// Accumulator tracks the revealed prefix of a projected route.
// The revealed count never decreases.
type Accumulator struct {
	points   []domain.PixelPoint
	revealed int
}

// NewAccumulator starts with nothing revealed.
func NewAccumulator(points []domain.PixelPoint) *Accumulator {
	return &Accumulator{points: points}
}

// Reveal exposes points[0..=i] and returns the polyline that became
// visible since the previous call, including its joining point. A
// single-element result has no segment to draw.
func (a *Accumulator) Reveal(i int) ([]domain.PixelPoint, error) {
	if i < 0 || i >= len(a.points) {
		return nil, fmt.Errorf("reveal %d: out of range [0,%d)", i, len(a.points))
	}
	if i+1 < a.revealed {
		return nil, fmt.Errorf("reveal %d: already revealed %d points", i, a.revealed)
	}
	start := max(a.revealed-1, 0)
	a.revealed = i + 1
	return a.points[start : i+1], nil
}

// Revealed returns the number of visible points.
func (a *Accumulator) Revealed() int { return a.revealed }

// Visible returns the revealed prefix.
func (a *Accumulator) Visible() []domain.PixelPoint { return a.points[:a.revealed] }

// Current returns the marker position. ok is false before the first Reveal.
func (a *Accumulator) Current() (pt domain.PixelPoint, ok bool) {
	if a.revealed == 0 {
		return domain.PixelPoint{}, false
	}
	return a.points[a.revealed-1], true
}

// Done reports whether the whole route is visible.
func (a *Accumulator) Done() bool { return a.revealed == len(a.points) }

