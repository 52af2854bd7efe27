package domain

import (
	"errors"
	"fmt"
)

var (
	// ErrEmptyRoute is returned when an activity has no position samples.
	ErrEmptyRoute = errors.New("route has no samples")
	// ErrDegenerateBoundingBox is returned when the minimum-span substitution
	// still produces non-finite pixel coordinates.
	ErrDegenerateBoundingBox = errors.New("degenerate bounding box")
	// ErrMissingLapData marks a lap panel that was requested without laps.
	// The compositor hides the panel instead of failing.
	ErrMissingLapData = errors.New("lap panel requested but activity has no laps")
	// ErrDraw wraps a canvas drawing failure. It aborts the render.
	ErrDraw = errors.New("drawing failed")
	// ErrSinkWrite wraps a frame sink rejection. It aborts the render.
	ErrSinkWrite = errors.New("frame sink rejected output")
	// ErrInvalidConfig is the parent of every ConfigError.
	ErrInvalidConfig = errors.New("invalid render config")
	// ErrUnsupportedFormat is returned for an output format the render kind
	// cannot produce.
	ErrUnsupportedFormat = errors.New("unsupported output format")
	// ErrInvalidInput marks an upload that cannot be decoded.
	ErrInvalidInput = errors.New("invalid input")
	// ErrNotFound is returned by stores for unknown or already consumed IDs.
	ErrNotFound = errors.New("not found")
)

// ConfigError describes one rejected RenderConfig field.
type ConfigError struct {
	Field  string
	Reason string
}

func (e *ConfigError) Error() string {
	return fmt.Sprintf("%s: %s %s", ErrInvalidConfig, e.Field, e.Reason)
}

func (e *ConfigError) Unwrap() error { return ErrInvalidConfig }
