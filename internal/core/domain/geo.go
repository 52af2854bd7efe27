package domain

import (
	"math"
	"time"
)

// GeoSample is one timestamped GPS fix with optional sensor readings.
type GeoSample struct {
	Lat       float64   `json:"lat"`
	Lon       float64   `json:"lon"`
	Time      time.Time `json:"time"`
	HeartRate *uint8    `json:"heart_rate,omitempty"`
	Cadence   *float64  `json:"cadence,omitempty"`
	Distance  float64   `json:"distance"`        // cumulative metres
	Speed     *float64  `json:"speed,omitempty"` // m/s
}

// BoundingBox is the geographic extent of a sample sequence.
type BoundingBox struct {
	MinLat float64 `json:"min_lat"`
	MaxLat float64 `json:"max_lat"`
	MinLon float64 `json:"min_lon"`
	MaxLon float64 `json:"max_lon"`
}

// LatSpan returns MaxLat - MinLat.
func (b BoundingBox) LatSpan() float64 { return b.MaxLat - b.MinLat }

// LonSpan returns MaxLon - MinLon.
func (b BoundingBox) LonSpan() float64 { return b.MaxLon - b.MinLon }

// Degenerate reports whether either axis has zero extent.
func (b BoundingBox) Degenerate() bool {
	return b.LatSpan() == 0 || b.LonSpan() == 0
}

// BoundsOf computes the bounding box of samples. ok is false for an empty slice.
func BoundsOf(samples []GeoSample) (box BoundingBox, ok bool) {
	if len(samples) == 0 {
		return BoundingBox{}, false
	}
	box = BoundingBox{
		MinLat: math.Inf(1), MaxLat: math.Inf(-1),
		MinLon: math.Inf(1), MaxLon: math.Inf(-1),
	}
	for _, s := range samples {
		box.MinLat = math.Min(box.MinLat, s.Lat)
		box.MaxLat = math.Max(box.MaxLat, s.Lat)
		box.MinLon = math.Min(box.MinLon, s.Lon)
		box.MaxLon = math.Max(box.MaxLon, s.Lon)
	}
	return box, true
}

// PixelPoint is a coordinate in background-image space.
type PixelPoint struct {
	X float64 `json:"x"`
	Y float64 `json:"y"`
}

// Finite reports whether both coordinates are real numbers.
func (p PixelPoint) Finite() bool {
	return !math.IsNaN(p.X) && !math.IsNaN(p.Y) && !math.IsInf(p.X, 0) && !math.IsInf(p.Y, 0)
}
