package domain

import (
	"time"
)

// Lap is a contiguous range of samples with aggregate statistics.
type Lap struct {
	StartIndex      int      `json:"start_index"`
	EndIndex        int      `json:"end_index"` // inclusive
	Distance        float64  `json:"distance"`  // metres
	AvgPace         float64  `json:"avg_pace"`  // seconds per km, 0 when unknown
	AvgHeartRate    *float64 `json:"avg_heart_rate,omitempty"`
	AvgStrideLength *float64 `json:"avg_stride_length,omitempty"` // metres
}

// Contains reports whether sample index i falls inside the lap.
func (l Lap) Contains(i int) bool {
	return i >= l.StartIndex && i <= l.EndIndex
}

// Activity is the parsed content of one activity file.
type Activity struct {
	Samples []GeoSample `json:"samples"`
	Laps    []Lap       `json:"laps"`
	Sport   string      `json:"sport,omitempty"`
}

// Duration returns the elapsed time between the first and last sample.
func (a *Activity) Duration() time.Duration {
	if a == nil || len(a.Samples) < 2 {
		return 0
	}
	return a.Samples[len(a.Samples)-1].Time.Sub(a.Samples[0].Time)
}

// TotalDistance returns the cumulative distance of the last sample in metres.
func (a *Activity) TotalDistance() float64 {
	if a == nil || len(a.Samples) == 0 {
		return 0
	}
	return a.Samples[len(a.Samples)-1].Distance
}

// RenderKind selects the static or progressive pipeline.
type RenderKind string

const (
	RenderImage RenderKind = "image"
	RenderVideo RenderKind = "video"
)

// OutputFormat is the container a render is encoded into.
type OutputFormat string

const (
	FormatPNG         OutputFormat = "png"
	FormatJPEG        OutputFormat = "jpeg"
	FormatGIF         OutputFormat = "gif"
	FormatFrameStream OutputFormat = "frames"
)

// DefaultFormat is the output format used when a request names none.
func (k RenderKind) DefaultFormat() OutputFormat {
	if k == RenderVideo {
		return FormatGIF
	}
	return FormatPNG
}

// Supports reports whether kind k can be encoded as f.
func (k RenderKind) Supports(f OutputFormat) bool {
	switch k {
	case RenderImage:
		return f == FormatPNG || f == FormatJPEG
	case RenderVideo:
		return f == FormatGIF || f == FormatFrameStream
	}
	return false
}

// JobStatus is the lifecycle state of a render job.
type JobStatus string

const (
	JobPending   JobStatus = "pending"
	JobRunning   JobStatus = "running"
	JobSucceeded JobStatus = "succeeded"
	JobFailed    JobStatus = "failed"
)

// RenderJob is the persisted record of one render invocation.
type RenderJob struct {
	ID         string       `json:"id"`
	Kind       RenderKind   `json:"kind"`
	Format     OutputFormat `json:"format"`
	Status     JobStatus    `json:"status"`
	Points     int          `json:"points"`
	Laps       int          `json:"laps"`
	Frames     int          `json:"frames"`
	ArtifactID string       `json:"artifact_id,omitempty"`
	Error      string       `json:"error,omitempty"`
	DurationMS int64        `json:"duration_ms"`
	CreatedAt  time.Time    `json:"created_at"`
	FinishedAt *time.Time   `json:"finished_at,omitempty"`
}

// Artifact is a finished render waiting for its single download.
type Artifact struct {
	ID          string    `json:"id"`
	JobID       string    `json:"job_id"`
	ContentType string    `json:"content_type"`
	Filename    string    `json:"filename"`
	Data        []byte    `json:"data"`
	CreatedAt   time.Time `json:"created_at"`
}

// JobEventType names a render job lifecycle event.
type JobEventType string

const (
	EventStarted   JobEventType = "started"
	EventProgress  JobEventType = "progress"
	EventCompleted JobEventType = "completed"
	EventFailed    JobEventType = "failed"
)

// JobEvent is published while a render job runs.
type JobEvent struct {
	JobID      string       `json:"job_id"`
	Type       JobEventType `json:"type"`
	Kind       RenderKind   `json:"kind"`
	Frame      int          `json:"frame,omitempty"`
	Total      int          `json:"total,omitempty"`
	ArtifactID string       `json:"artifact_id,omitempty"`
	Error      string       `json:"error,omitempty"`
	Time       time.Time    `json:"time"`
}
