// Package render maps activity samples into background pixel space and
// composes the route, marker and statistics panels into frames.
package render

import (
	"github.com/samirrijal/routecast/internal/core/domain"
)

// MinSpan replaces a zero-width latitude or longitude span, in degrees.
const MinSpan = 1e-9

// Projector maps geographic samples onto a fixed-size image.
type Projector struct {
	Width  int
	Height int
	Scale  domain.RouteScale
}

// NewProjector returns a projector for a w×h background.
func NewProjector(w, h int, scale domain.RouteScale) *Projector {
	return &Projector{Width: w, Height: h, Scale: scale}
}

// Bounds returns the bounding box of samples with zero spans widened
// to MinSpan around the single coordinate.
func (p *Projector) Bounds(samples []domain.GeoSample) (domain.BoundingBox, error) {
	box, ok := domain.BoundsOf(samples)
	if !ok {
		return domain.BoundingBox{}, domain.ErrEmptyRoute
	}
	if box.LatSpan() == 0 {
		box.MinLat -= MinSpan / 2
		box.MaxLat += MinSpan / 2
	}
	if box.LonSpan() == 0 {
		box.MinLon -= MinSpan / 2
		box.MaxLon += MinSpan / 2
	}
	return box, nil
}

// Project returns one PixelPoint per sample, in order.
func (p *Projector) Project(samples []domain.GeoSample) ([]domain.PixelPoint, error) {
	box, err := p.Bounds(samples)
	if err != nil {
		return nil, err
	}
	w, h := float64(p.Width), float64(p.Height)
	latSpan, lonSpan := box.LatSpan(), box.LonSpan()

	points := make([]domain.PixelPoint, len(samples))
	for i, s := range samples {
		nx := (s.Lon - box.MinLon) / lonSpan
		ny := 1 - (s.Lat-box.MinLat)/latSpan
		pt := domain.PixelPoint{
			X: p.Scale.OffsetXPercent*w + nx*p.Scale.Scale*w,
			Y: p.Scale.OffsetYPercent*h + ny*p.Scale.Scale*h,
		}
		if !pt.Finite() {
			return nil, domain.ErrDegenerateBoundingBox
		}
		points[i] = pt
	}
	return points, nil
}
