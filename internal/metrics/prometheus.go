package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Metrics contains all Prometheus metrics for the bot.
type Metrics struct {
	// Webhook metrics
	WebhookEvents     *prometheus.CounterVec
	SignatureFailures prometheus.Counter

	// Authentication metrics
	AuthAttempts   prometheus.Counter
	AuthSuccesses  prometheus.Counter
	ActiveSessions prometheus.Gauge

	// Audio chunking metrics
	RecordingsProcessed prometheus.Counter
	ChunksGenerated     prometheus.Counter
	ChunkDuration       prometheus.Histogram
	RecordingSize       prometheus.Histogram

	// Transcription metrics
	TranscriptionRequests  prometheus.Counter
	TranscriptionSuccesses prometheus.Counter
	TranscriptionFailures  prometheus.Counter
	TranscriptionDuration  prometheus.Histogram

	// Summarization metrics
	SummaryRequests  prometheus.Counter
	SummarySuccesses prometheus.Counter
	SummaryFailures  prometheus.Counter
	SummaryDuration  prometheus.Histogram

	// HTTP API metrics
	HTTPRequests        *prometheus.CounterVec
	HTTPRequestDuration *prometheus.HistogramVec
	HTTPErrors          *prometheus.CounterVec
}

// NewMetrics creates all metrics and registers them with the default
// Prometheus registerer.
func NewMetrics() *Metrics {
	return NewMetricsWith(prometheus.DefaultRegisterer)
}

// NewMetricsWith creates all metrics against the given registerer. Tests use
// this with a fresh registry to avoid duplicate registration.
func NewMetricsWith(reg prometheus.Registerer) *Metrics {
	factory := promauto.With(reg)

	return &Metrics{
		WebhookEvents: factory.NewCounterVec(prometheus.CounterOpts{
			Name: "linebot_webhook_events_total",
			Help: "Total number of webhook events received by message type",
		}, []string{"message_type"}),
		SignatureFailures: factory.NewCounter(prometheus.CounterOpts{
			Name: "linebot_signature_failures_total",
			Help: "Total number of webhook requests rejected for a bad signature",
		}),

		AuthAttempts: factory.NewCounter(prometheus.CounterOpts{
			Name: "linebot_auth_attempts_total",
			Help: "Total number of password authentication attempts",
		}),
		AuthSuccesses: factory.NewCounter(prometheus.CounterOpts{
			Name: "linebot_auth_successes_total",
			Help: "Total number of successful authentications",
		}),
		ActiveSessions: factory.NewGauge(prometheus.GaugeOpts{
			Name: "linebot_active_sessions",
			Help: "Current number of authenticated sessions",
		}),

		RecordingsProcessed: factory.NewCounter(prometheus.CounterOpts{
			Name: "linebot_recordings_processed_total",
			Help: "Total number of voice recordings processed",
		}),
		ChunksGenerated: factory.NewCounter(prometheus.CounterOpts{
			Name: "linebot_audio_chunks_generated_total",
			Help: "Total number of audio chunks generated",
		}),
		ChunkDuration: factory.NewHistogram(prometheus.HistogramOpts{
			Name:    "linebot_chunk_duration_seconds",
			Help:    "Duration of generated audio chunks",
			Buckets: prometheus.ExponentialBuckets(10, 2, 8), // 10s to ~21 minutes
		}),
		RecordingSize: factory.NewHistogram(prometheus.HistogramOpts{
			Name:    "linebot_recording_size_bytes",
			Help:    "Size of downloaded voice recordings in bytes",
			Buckets: prometheus.ExponentialBuckets(16*1024, 4, 8), // 16KB to ~256MB
		}),

		TranscriptionRequests: factory.NewCounter(prometheus.CounterOpts{
			Name: "linebot_transcription_requests_total",
			Help: "Total number of transcription pipeline runs",
		}),
		TranscriptionSuccesses: factory.NewCounter(prometheus.CounterOpts{
			Name: "linebot_transcription_successes_total",
			Help: "Total number of successful transcription pipeline runs",
		}),
		TranscriptionFailures: factory.NewCounter(prometheus.CounterOpts{
			Name: "linebot_transcription_failures_total",
			Help: "Total number of failed transcription pipeline runs",
		}),
		TranscriptionDuration: factory.NewHistogram(prometheus.HistogramOpts{
			Name:    "linebot_transcription_duration_seconds",
			Help:    "Wall time of transcription pipeline runs",
			Buckets: prometheus.ExponentialBuckets(0.5, 2, 10), // 0.5s to ~8 minutes
		}),

		SummaryRequests: factory.NewCounter(prometheus.CounterOpts{
			Name: "linebot_summary_requests_total",
			Help: "Total number of summarization requests",
		}),
		SummarySuccesses: factory.NewCounter(prometheus.CounterOpts{
			Name: "linebot_summary_successes_total",
			Help: "Total number of successful summarization requests",
		}),
		SummaryFailures: factory.NewCounter(prometheus.CounterOpts{
			Name: "linebot_summary_failures_total",
			Help: "Total number of failed summarization requests",
		}),
		SummaryDuration: factory.NewHistogram(prometheus.HistogramOpts{
			Name:    "linebot_summary_duration_seconds",
			Help:    "Duration of summarization requests",
			Buckets: prometheus.ExponentialBuckets(0.5, 2, 10),
		}),

		HTTPRequests: factory.NewCounterVec(prometheus.CounterOpts{
			Name: "linebot_http_requests_total",
			Help: "Total number of HTTP requests",
		}, []string{"method", "endpoint", "status_code"}),
		HTTPRequestDuration: factory.NewHistogramVec(prometheus.HistogramOpts{
			Name:    "linebot_http_request_duration_seconds",
			Help:    "Duration of HTTP requests",
			Buckets: prometheus.DefBuckets,
		}, []string{"method", "endpoint"}),
		HTTPErrors: factory.NewCounterVec(prometheus.CounterOpts{
			Name: "linebot_http_errors_total",
			Help: "Total number of HTTP errors",
		}, []string{"method", "endpoint", "error_type"}),
	}
}

// RecordWebhookEvent counts an incoming webhook event by message type.
func (m *Metrics) RecordWebhookEvent(messageType string) {
	m.WebhookEvents.WithLabelValues(messageType).Inc()
}

// RecordSignatureFailure counts a rejected webhook request.
func (m *Metrics) RecordSignatureFailure() {
	m.SignatureFailures.Inc()
}

// RecordAuthAttempt counts an authentication attempt and its outcome.
func (m *Metrics) RecordAuthAttempt(success bool) {
	m.AuthAttempts.Inc()
	if success {
		m.AuthSuccesses.Inc()
	}
}

// SetActiveSessions sets the current number of authenticated sessions.
func (m *Metrics) SetActiveSessions(count int) {
	m.ActiveSessions.Set(float64(count))
}

// RecordRecording records a downloaded recording and its chunking outcome.
func (m *Metrics) RecordRecording(sizeBytes int, chunkDurations []float64) {
	m.RecordingsProcessed.Inc()
	m.RecordingSize.Observe(float64(sizeBytes))
	for _, d := range chunkDurations {
		m.ChunksGenerated.Inc()
		m.ChunkDuration.Observe(d)
	}
}

// RecordTranscription records a transcription pipeline run.
func (m *Metrics) RecordTranscription(success bool, durationSeconds float64) {
	m.TranscriptionRequests.Inc()
	if success {
		m.TranscriptionSuccesses.Inc()
	} else {
		m.TranscriptionFailures.Inc()
	}
	m.TranscriptionDuration.Observe(durationSeconds)
}

// RecordSummary records a summarization request.
func (m *Metrics) RecordSummary(success bool, durationSeconds float64) {
	m.SummaryRequests.Inc()
	if success {
		m.SummarySuccesses.Inc()
	} else {
		m.SummaryFailures.Inc()
	}
	m.SummaryDuration.Observe(durationSeconds)
}

// RecordHTTPRequest records an HTTP request.
func (m *Metrics) RecordHTTPRequest(method, endpoint, statusCode string, durationSeconds float64) {
	m.HTTPRequests.WithLabelValues(method, endpoint, statusCode).Inc()
	m.HTTPRequestDuration.WithLabelValues(method, endpoint).Observe(durationSeconds)
}

// RecordHTTPError records an HTTP error.
func (m *Metrics) RecordHTTPError(method, endpoint, errorType string) {
	m.HTTPErrors.WithLabelValues(method, endpoint, errorType).Inc()
}
