// Package fitfile reads Garmin FIT activity files into domain activities.
package fitfile

import (
	"context"
	"fmt"
	"io"
	"math"
	"sort"
	"time"

	"github.com/tormoder/fit"

	"github.com/samirrijal/routecast/internal/core/domain"
	"github.com/samirrijal/routecast/internal/pkg/geospatial"
)

// Decoder implements ports.ActivityDecoder.
type Decoder struct{}

// NewDecoder returns a FIT activity decoder.
func NewDecoder() *Decoder { return &Decoder{} }

// Decode parses a FIT activity. Records without a position fix are skipped.
func (d *Decoder) Decode(ctx context.Context, r io.Reader) (*domain.Activity, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	file, err := fit.Decode(r)
	if err != nil {
		return nil, fmt.Errorf("decode fit: %w", err)
	}
	act, err := file.Activity()
	if err != nil {
		return nil, fmt.Errorf("fit activity: %w", err)
	}

	records := make([]record, 0, len(act.Records))
	for _, m := range act.Records {
		if m == nil || m.PositionLat.Invalid() || m.PositionLong.Invalid() {
			continue
		}
		rec := record{
			time:     m.Timestamp,
			lat:      m.PositionLat.Degrees(),
			lon:      m.PositionLong.Degrees(),
			distance: m.GetDistanceScaled(),
			speed:    m.GetEnhancedSpeedScaled(),
		}
		if math.IsNaN(rec.speed) {
			rec.speed = m.GetSpeedScaled()
		}
		if m.HeartRate != 0xFF {
			hr := m.HeartRate
			rec.heartRate = &hr
		}
		if m.Cadence != 0xFF {
			c := float64(m.Cadence)
			rec.cadence = &c
		}
		records = append(records, rec)
	}

	laps := make([]lap, 0, len(act.Laps))
	for _, m := range act.Laps {
		if m == nil {
			continue
		}
		l := lap{
			start:    m.StartTime,
			end:      m.Timestamp,
			distance: m.GetTotalDistanceScaled(),
			timer:    m.GetTotalTimerTimeScaled(),
			speed:    m.GetAvgSpeedScaled(),
		}
		if m.AvgHeartRate != 0xFF && m.AvgHeartRate != 0 {
			l.heartRate = float64(m.AvgHeartRate)
		}
		if m.AvgCadence != 0xFF {
			l.cadence = float64(m.AvgCadence)
		}
		laps = append(laps, l)
	}

	out := build(records, laps)
	if len(act.Sessions) > 0 && act.Sessions[0] != nil {
		out.Sport = act.Sessions[0].Sport.String()
	}
	if len(out.Samples) == 0 {
		return nil, domain.ErrEmptyRoute
	}
	return out, nil
}

type record struct {
	time      time.Time
	lat, lon  float64
	distance  float64 // metres, NaN when absent
	speed     float64 // m/s, NaN when absent
	heartRate *uint8
	cadence   *float64
}

type lap struct {
	start, end time.Time
	distance   float64 // metres
	timer      float64 // seconds
	speed      float64 // m/s
	heartRate  float64 // 0 when absent
	cadence    float64 // strides per minute, 0 when absent
}

func valid(v float64) bool { return !math.IsNaN(v) && !math.IsInf(v, 0) }

// build converts decoded messages into samples and index-based laps. When
// the file carries no distance, it is integrated from the positions.
func build(records []record, laps []lap) *domain.Activity {
	samples := make([]domain.GeoSample, len(records))
	lats := make([]float64, len(records))
	lons := make([]float64, len(records))
	haveDistance := len(records) > 0
	for i, r := range records {
		lats[i], lons[i] = r.lat, r.lon
		if !valid(r.distance) {
			haveDistance = false
		}
	}
	var integrated []float64
	if !haveDistance {
		integrated = geospatial.Cumulative(lats, lons)
	}

	for i, r := range records {
		s := domain.GeoSample{
			Lat:       r.lat,
			Lon:       r.lon,
			Time:      r.time,
			HeartRate: r.heartRate,
			Cadence:   r.cadence,
		}
		if haveDistance {
			s.Distance = r.distance
		} else {
			s.Distance = integrated[i]
		}
		if valid(r.speed) {
			sp := r.speed
			s.Speed = &sp
		}
		samples[i] = s
	}

	out := &domain.Activity{Samples: samples}
	next := 0
	for _, l := range laps {
		start := max(sort.Search(len(samples), func(i int) bool { return !samples[i].Time.Before(l.start) }), next)
		end := sort.Search(len(samples), func(i int) bool { return samples[i].Time.After(l.end) }) - 1
		if start >= len(samples) || end < start {
			continue
		}
		out.Laps = append(out.Laps, toLap(l, start, end))
		next = end + 1
	}
	return out
}

func toLap(l lap, start, end int) domain.Lap {
	dl := domain.Lap{StartIndex: start, EndIndex: end}
	if valid(l.distance) {
		dl.Distance = l.distance
	}
	if valid(l.timer) && dl.Distance > 0 {
		dl.AvgPace = l.timer / (dl.Distance / 1000)
	} else if valid(l.speed) && l.speed > 0 {
		dl.AvgPace = 1000 / l.speed
	}
	if l.heartRate > 0 {
		hr := l.heartRate
		dl.AvgHeartRate = &hr
	}
	speed := l.speed
	if !valid(speed) || speed <= 0 {
		if valid(l.timer) && l.timer > 0 {
			speed = dl.Distance / l.timer
		}
	}
	// One running stride-per-minute cadence unit is two steps.
	if l.cadence > 0 && valid(speed) && speed > 0 {
		stride := speed * 60 / (2 * l.cadence)
		dl.AvgStrideLength = &stride
	}
	return dl
}
