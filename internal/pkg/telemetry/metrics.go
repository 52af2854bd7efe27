package telemetry

// SLI metric names used for instrumentation.
const (
	// Latency
	MetricAPILatencyP50 = "api.latency.p50"
	MetricAPILatencyP95 = "api.latency.p95"
	MetricAPILatencyP99 = "api.latency.p99"

	// Render throughput
	MetricFramesPerSec = "render.frames_per_second"
	MetricJobLatency   = "render.job_latency"

	// Availability
	MetricUptime = "service.uptime_percentage"

	// Business
	MetricJobsRendered      = "business.jobs_rendered"
	MetricArtifactsConsumed = "business.artifacts_downloaded"
)

// Span names.
const (
	SpanRenderImage = "render.image"
	SpanRenderVideo = "render.video"
	SpanDecode      = "render.decode"
	SpanProject     = "render.project"
	SpanEncode      = "render.encode"
	SpanLapChart    = "chart.laps"
)
