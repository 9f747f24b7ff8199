package observability

import (
	"context"
	"net/http"

	"github.com/prometheus/client_golang/prometheus/promhttp"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/exporters/prometheus"
	"go.opentelemetry.io/otel/metric"
	sdkmetric "go.opentelemetry.io/otel/sdk/metric"

	"geotask/pkg/gpjob"
)

// Metrics holds all application metrics implementing the golden 4 signals:
// - Latency: How long requests/jobs take
// - Traffic: Request/job throughput
// - Errors: Rate of failures
// - Saturation: Resource utilization (in-flight jobs, queued notifications)
type Metrics struct {
	meter metric.Meter

	// HTTP metrics (Latency, Traffic, Errors)
	HTTPRequestDuration metric.Float64Histogram
	HTTPRequestsTotal   metric.Int64Counter
	HTTPErrorsTotal     metric.Int64Counter

	// Job lifecycle metrics (Latency, Traffic, Errors, Saturation)
	JobDuration   metric.Float64Histogram
	JobsSubmitted metric.Int64Counter
	JobsResolved  metric.Int64Counter
	JobsActive    metric.Int64UpDownCounter

	// Status polling metrics (Latency, Errors)
	PollDuration metric.Float64Histogram
	PollFailures metric.Int64Counter

	// Notifier metrics (Latency, Traffic, Errors, Saturation)
	NotifierDuration  metric.Float64Histogram
	NotifierDelivered metric.Int64Counter
	NotifierFailed    metric.Int64Counter
	NotifierDropped   metric.Int64Counter
	NotifierQueueSize metric.Int64Gauge
}

// NewMetrics creates and registers all metrics with a Prometheus exporter.
func NewMetrics(ctx context.Context) (*Metrics, http.Handler, error) {
	exporter, err := prometheus.New()
	if err != nil {
		return nil, nil, err
	}

	provider := sdkmetric.NewMeterProvider(sdkmetric.WithReader(exporter))
	otel.SetMeterProvider(provider)

	meter := provider.Meter("geotask")
	m := &Metrics{meter: meter}

	// HTTP metrics
	m.HTTPRequestDuration, err = meter.Float64Histogram(
		"http_request_duration_seconds",
		metric.WithDescription("HTTP request latency in seconds"),
		metric.WithUnit("s"),
		metric.WithExplicitBucketBoundaries(0.001, 0.005, 0.01, 0.025, 0.05, 0.1, 0.25, 0.5, 1, 2.5, 5, 10),
	)
	if err != nil {
		return nil, nil, err
	}

	m.HTTPRequestsTotal, err = meter.Int64Counter(
		"http_requests_total",
		metric.WithDescription("Total number of HTTP requests"),
	)
	if err != nil {
		return nil, nil, err
	}

	m.HTTPErrorsTotal, err = meter.Int64Counter(
		"http_errors_total",
		metric.WithDescription("Total number of HTTP errors (4xx and 5xx)"),
	)
	if err != nil {
		return nil, nil, err
	}

	// Job lifecycle metrics
	m.JobDuration, err = meter.Float64Histogram(
		"analysis_job_duration_seconds",
		metric.WithDescription("Analysis job lifetime from submission to terminal outcome"),
		metric.WithUnit("s"),
		metric.WithExplicitBucketBoundaries(0.5, 1, 2.5, 5, 10, 30, 60, 120, 300, 600),
	)
	if err != nil {
		return nil, nil, err
	}

	m.JobsSubmitted, err = meter.Int64Counter(
		"analysis_jobs_submitted_total",
		metric.WithDescription("Total number of jobs accepted by the service"),
	)
	if err != nil {
		return nil, nil, err
	}

	m.JobsResolved, err = meter.Int64Counter(
		"analysis_jobs_resolved_total",
		metric.WithDescription("Total number of jobs that reached a terminal outcome"),
	)
	if err != nil {
		return nil, nil, err
	}

	m.JobsActive, err = meter.Int64UpDownCounter(
		"analysis_jobs_active",
		metric.WithDescription("Number of jobs awaiting a terminal outcome (saturation)"),
	)
	if err != nil {
		return nil, nil, err
	}

	// Status polling metrics
	m.PollDuration, err = meter.Float64Histogram(
		"analysis_poll_duration_seconds",
		metric.WithDescription("Status poll latency in seconds"),
		metric.WithUnit("s"),
		metric.WithExplicitBucketBoundaries(0.001, 0.005, 0.01, 0.025, 0.05, 0.1, 0.25, 0.5, 1, 2.5, 5, 10),
	)
	if err != nil {
		return nil, nil, err
	}

	m.PollFailures, err = meter.Int64Counter(
		"analysis_poll_failures_total",
		metric.WithDescription("Total status polls that returned an error"),
	)
	if err != nil {
		return nil, nil, err
	}

	// Notifier metrics
	m.NotifierDuration, err = meter.Float64Histogram(
		"notifier_duration_seconds",
		metric.WithDescription("Webhook delivery latency in seconds"),
		metric.WithUnit("s"),
		metric.WithExplicitBucketBoundaries(0.01, 0.025, 0.05, 0.1, 0.25, 0.5, 1, 2.5, 5, 10),
	)
	if err != nil {
		return nil, nil, err
	}

	m.NotifierDelivered, err = meter.Int64Counter(
		"notifier_delivered_total",
		metric.WithDescription("Total events successfully delivered"),
	)
	if err != nil {
		return nil, nil, err
	}

	m.NotifierFailed, err = meter.Int64Counter(
		"notifier_failed_total",
		metric.WithDescription("Total events failed after retries"),
	)
	if err != nil {
		return nil, nil, err
	}

	m.NotifierDropped, err = meter.Int64Counter(
		"notifier_dropped_total",
		metric.WithDescription("Total events dropped (queue full or circuit open)"),
	)
	if err != nil {
		return nil, nil, err
	}

	m.NotifierQueueSize, err = meter.Int64Gauge(
		"notifier_queue_size",
		metric.WithDescription("Current number of events in the notifier queue (saturation)"),
	)
	if err != nil {
		return nil, nil, err
	}

	return m, promhttp.Handler(), nil
}

// RecordHTTPRequest records HTTP request metrics.
func (m *Metrics) RecordHTTPRequest(ctx context.Context, method, path string, statusCode int, durationSeconds float64) {
	attrs := metric.WithAttributes(
		methodAttr(method),
		pathAttr(path),
		statusAttr(statusCode),
	)

	m.HTTPRequestDuration.Record(ctx, durationSeconds, attrs)
	m.HTTPRequestsTotal.Add(ctx, 1, attrs)

	if statusCode >= 400 {
		m.HTTPErrorsTotal.Add(ctx, 1, attrs)
	}
}

// RecordJobSubmitted counts one accepted submission.
func (m *Metrics) RecordJobSubmitted(ctx context.Context, mode gpjob.ExecutionMode) {
	m.JobsSubmitted.Add(ctx, 1, metric.WithAttributes(modeAttr(mode)))
	m.JobsActive.Add(ctx, 1)
}

// RecordJobResolved counts one terminal outcome with the job's lifetime.
func (m *Metrics) RecordJobResolved(ctx context.Context, status gpjob.Status, durationSeconds float64) {
	attrs := metric.WithAttributes(outcomeAttr(status))
	m.JobDuration.Record(ctx, durationSeconds, attrs)
	m.JobsResolved.Add(ctx, 1, attrs)
	m.JobsActive.Add(ctx, -1)
}

// RecordStatusPoll times one status fetch.
func (m *Metrics) RecordStatusPoll(ctx context.Context, durationSeconds float64, failed bool) {
	m.PollDuration.Record(ctx, durationSeconds, metric.WithAttributes(failedAttr(failed)))
	if failed {
		m.PollFailures.Add(ctx, 1)
	}
}

// RecordNotificationDelivered records a successful event delivery with its duration.
func (m *Metrics) RecordNotificationDelivered(ctx context.Context, durationSeconds float64) {
	m.NotifierDelivered.Add(ctx, 1)
	m.NotifierDuration.Record(ctx, durationSeconds)
}

// RecordNotificationFailed records a failed event delivery.
func (m *Metrics) RecordNotificationFailed(ctx context.Context) {
	m.NotifierFailed.Add(ctx, 1)
}

// RecordNotificationDropped records a dropped event.
func (m *Metrics) RecordNotificationDropped(ctx context.Context) {
	m.NotifierDropped.Add(ctx, 1)
}

// RecordNotificationQueueSize records the current queue size.
func (m *Metrics) RecordNotificationQueueSize(ctx context.Context, size int64) {
	m.NotifierQueueSize.Record(ctx, size)
}

// Verify Metrics satisfies the controller's recorder contract
var _ gpjob.MetricsRecorder = (*Metrics)(nil)
