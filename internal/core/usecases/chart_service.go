package usecases

import (
	"bytes"
	"context"
	"crypto/sha256"
	"encoding/hex"
	"fmt"

	"github.com/samirrijal/routecast/internal/core/domain"
	"github.com/samirrijal/routecast/internal/core/ports"
	"github.com/samirrijal/routecast/internal/pkg/metrics"
	"github.com/samirrijal/routecast/internal/pkg/telemetry"
)

// ChartFormat selects the lap chart output.
type ChartFormat string

const (
	ChartPNG  ChartFormat = "png"
	ChartHTML ChartFormat = "html"
)

// ChartService renders lap statistics of an activity file.
type ChartService struct {
	decoder  ports.ActivityDecoder
	charts   ports.ChartRenderer
	cache    ports.CacheService
	cacheTTL int
}

// NewChartService creates a new ChartService. cache may be nil.
func NewChartService(decoder ports.ActivityDecoder, charts ports.ChartRenderer, cache ports.CacheService, cacheTTL int) *ChartService {
	if cacheTTL <= 0 {
		cacheTTL = 600
	}
	return &ChartService{decoder: decoder, charts: charts, cache: cache, cacheTTL: cacheTTL}
}

// LapChart returns the chart bytes for the laps in a FIT file. Identical
// uploads are served from cache.
func (s *ChartService) LapChart(ctx context.Context, fit []byte, format ChartFormat, width, height int) ([]byte, error) {
	if format != ChartPNG && format != ChartHTML {
		return nil, fmt.Errorf("%w: chart format %q", domain.ErrUnsupportedFormat, format)
	}
	if format == ChartPNG && (width <= 0 || height <= 0) {
		width, height = 800, 400
	}

	sum := sha256.Sum256(fit)
	cacheKey := fmt.Sprintf("charts:laps:%s:%s:%dx%d", hex.EncodeToString(sum[:]), format, width, height)
	if s.cache != nil {
		if data, err := s.cache.Get(ctx, cacheKey); err == nil {
			metrics.CacheHits.WithLabelValues("lap_chart").Inc()
			return data, nil
		}
		metrics.CacheMisses.WithLabelValues("lap_chart").Inc()
	}

	ctx, span := telemetry.StartSpan(ctx, telemetry.SpanLapChart)
	defer span.End()

	act, err := s.decoder.Decode(ctx, bytes.NewReader(fit))
	if err != nil {
		return nil, fmt.Errorf("%w: decode activity: %w", domain.ErrInvalidInput, err)
	}
	if len(act.Laps) == 0 {
		return nil, domain.ErrMissingLapData
	}

	var data []byte
	if format == ChartHTML {
		data, err = s.charts.LapPaceHTML(act.Laps)
	} else {
		data, err = s.charts.LapPacePNG(act.Laps, width, height)
	}
	if err != nil {
		return nil, fmt.Errorf("render chart: %w", err)
	}

	if s.cache != nil {
		_ = s.cache.Set(ctx, cacheKey, data, s.cacheTTL)
	}
	return data, nil
}
