package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Metrics holds all application metrics
type Metrics struct {
	encodesTotal       *prometheus.CounterVec
	encodesActive      prometheus.Gauge
	stageDuration      *prometheus.HistogramVec
	stageFailures      *prometheus.CounterVec
	ffmpegProcesses    prometheus.Gauge
	uploadBytesTotal   prometheus.Counter
	uploadDuration     prometheus.Histogram
	manifestsTotal     *prometheus.CounterVec
	segmentBytesTotal  prometheus.Counter
	previewCacheHits   *prometheus.CounterVec
	diskFreeBytes      prometheus.Gauge
}

// New creates a new metrics instance
func New() *Metrics {
	m := &Metrics{
		encodesTotal: promauto.NewCounterVec(
			prometheus.CounterOpts{
				Name: "vod_encodes_total",
				Help: "Total number of encode dispatches by output and terminal status",
			},
			[]string{"output", "status"},
		),
		encodesActive: promauto.NewGauge(
			prometheus.GaugeOpts{
				Name: "vod_encodes_active",
				Help: "Number of currently running encodes",
			},
		),
		stageDuration: promauto.NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    "vod_stage_duration_seconds",
				Help:    "Duration of each pipeline stage in seconds",
				Buckets: prometheus.ExponentialBuckets(1, 2, 15), // 1s to ~9 hours
			},
			[]string{"stage"},
		),
		stageFailures: promauto.NewCounterVec(
			prometheus.CounterOpts{
				Name: "vod_stage_failures_total",
				Help: "Total number of stage failures by stage and error class",
			},
			[]string{"stage", "class"},
		),
		ffmpegProcesses: promauto.NewGauge(
			prometheus.GaugeOpts{
				Name: "vod_ffmpeg_processes_active",
				Help: "Number of currently running FFmpeg processes",
			},
		),
		uploadBytesTotal: promauto.NewCounter(
			prometheus.CounterOpts{
				Name: "vod_upload_bytes_total",
				Help: "Total bytes published to the content store",
			},
		),
		uploadDuration: promauto.NewHistogram(
			prometheus.HistogramOpts{
				Name:    "vod_upload_duration_seconds",
				Help:    "Duration of publish operations in seconds",
				Buckets: prometheus.ExponentialBuckets(0.1, 2, 12), // 0.1s to ~6 minutes
			},
		),
		manifestsTotal: promauto.NewCounterVec(
			prometheus.CounterOpts{
				Name: "vod_manifests_generated_total",
				Help: "Total number of manifests generated by output format",
			},
			[]string{"output"},
		),
		segmentBytesTotal: promauto.NewCounter(
			prometheus.CounterOpts{
				Name: "vod_segment_bytes_served_total",
				Help: "Total segment bytes served to clients",
			},
		),
		previewCacheHits: promauto.NewCounterVec(
			prometheus.CounterOpts{
				Name: "vod_preview_cache_requests_total",
				Help: "Preview cache lookups by result",
			},
			[]string{"result"},
		),
		diskFreeBytes: promauto.NewGauge(
			prometheus.GaugeOpts{
				Name: "vod_disk_free_bytes",
				Help: "Free disk space in bytes on the worker workspace",
			},
		),
	}

	return m
}

// IncrementEncodesTotal increments the encode counter
func (m *Metrics) IncrementEncodesTotal(output, status string) {
	m.encodesTotal.WithLabelValues(output, status).Inc()
}

// IncrementEncodesActive increments the active encodes gauge
func (m *Metrics) IncrementEncodesActive() {
	m.encodesActive.Inc()
}

// DecrementEncodesActive decrements the active encodes gauge
func (m *Metrics) DecrementEncodesActive() {
	m.encodesActive.Dec()
}

// RecordStageDuration records the duration of a pipeline stage
func (m *Metrics) RecordStageDuration(stage string, seconds float64) {
	m.stageDuration.WithLabelValues(stage).Observe(seconds)
}

// IncrementStageFailures increments the stage failures counter
func (m *Metrics) IncrementStageFailures(stage, class string) {
	m.stageFailures.WithLabelValues(stage, class).Inc()
}

// IncrementFFmpegProcesses increments the FFmpeg processes gauge
func (m *Metrics) IncrementFFmpegProcesses() {
	m.ffmpegProcesses.Inc()
}

// DecrementFFmpegProcesses decrements the FFmpeg processes gauge
func (m *Metrics) DecrementFFmpegProcesses() {
	m.ffmpegProcesses.Dec()
}

// AddUploadBytes adds bytes to the upload total
func (m *Metrics) AddUploadBytes(bytes float64) {
	m.uploadBytesTotal.Add(bytes)
}

// RecordUploadDuration records the duration of a publish
func (m *Metrics) RecordUploadDuration(seconds float64) {
	m.uploadDuration.Observe(seconds)
}

// IncrementManifestsTotal increments the manifest counter
func (m *Metrics) IncrementManifestsTotal(output string) {
	m.manifestsTotal.WithLabelValues(output).Inc()
}

// AddSegmentBytesServed adds to the served segment byte total
func (m *Metrics) AddSegmentBytesServed(bytes float64) {
	m.segmentBytesTotal.Add(bytes)
}

// IncrementPreviewCache records a preview cache lookup result (hit or miss)
func (m *Metrics) IncrementPreviewCache(result string) {
	m.previewCacheHits.WithLabelValues(result).Inc()
}

// SetDiskFreeBytes sets the disk free bytes gauge
func (m *Metrics) SetDiskFreeBytes(bytes float64) {
	m.diskFreeBytes.Set(bytes)
}
