// Package observe holds the OpenTelemetry metrics and HTTP instrumentation.
package observe

import (
	"context"
	"time"

	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/metric"
)

const meterName = "github.com/rbright/consult"

// Metrics holds every instrument. A nil *Metrics records nothing.
type Metrics struct {
	CaptureDuration       metric.Float64Histogram
	TranscriptionDuration metric.Float64Histogram
	SummaryDuration       metric.Float64Histogram
	HTTPRequestDuration   metric.Float64Histogram

	Captures       metric.Int64Counter
	Transcriptions metric.Int64Counter
	Summaries      metric.Int64Counter
	Shares         metric.Int64Counter

	ActiveSessions metric.Int64UpDownCounter
}

var latencyBuckets = []float64{
	0.05, 0.1, 0.25, 0.5, 1, 2.5, 5, 10, 30, 60, 120, 300,
}

func NewMetrics(mp metric.MeterProvider) (*Metrics, error) {
	m := mp.Meter(meterName)
	var err error
	met := &Metrics{}

	if met.CaptureDuration, err = m.Float64Histogram("consult.capture.duration",
		metric.WithDescription("Wall time of voice capture sessions."),
		metric.WithUnit("s"),
		metric.WithExplicitBucketBoundaries(latencyBuckets...),
	); err != nil {
		return nil, err
	}
	if met.TranscriptionDuration, err = m.Float64Histogram("consult.transcription.duration",
		metric.WithDescription("Latency of speech-to-text requests."),
		metric.WithUnit("s"),
		metric.WithExplicitBucketBoundaries(latencyBuckets...),
	); err != nil {
		return nil, err
	}
	if met.SummaryDuration, err = m.Float64Histogram("consult.summary.duration",
		metric.WithDescription("Latency of summary generation including rendering."),
		metric.WithUnit("s"),
		metric.WithExplicitBucketBoundaries(latencyBuckets...),
	); err != nil {
		return nil, err
	}
	if met.HTTPRequestDuration, err = m.Float64Histogram("consult.http.request.duration",
		metric.WithDescription("HTTP request latency by method and path."),
		metric.WithUnit("s"),
	); err != nil {
		return nil, err
	}

	if met.Captures, err = m.Int64Counter("consult.captures",
		metric.WithDescription("Finished capture sessions by terminal status."),
	); err != nil {
		return nil, err
	}
	if met.Transcriptions, err = m.Int64Counter("consult.transcriptions",
		metric.WithDescription("Transcription attempts by outcome."),
	); err != nil {
		return nil, err
	}
	if met.Summaries, err = m.Int64Counter("consult.summaries",
		metric.WithDescription("Summary requests by outcome."),
	); err != nil {
		return nil, err
	}
	if met.Shares, err = m.Int64Counter("consult.shares",
		metric.WithDescription("Record store appends by status."),
	); err != nil {
		return nil, err
	}

	if met.ActiveSessions, err = m.Int64UpDownCounter("consult.active_sessions",
		metric.WithDescription("Number of live interaction sessions."),
	); err != nil {
		return nil, err
	}

	return met, nil
}

func (m *Metrics) RecordCapture(ctx context.Context, status string, d time.Duration) {
	if m == nil {
		return
	}
	attrs := metric.WithAttributes(attribute.String("status", status))
	m.Captures.Add(ctx, 1, attrs)
	m.CaptureDuration.Record(ctx, d.Seconds(), attrs)
}

func (m *Metrics) RecordTranscription(ctx context.Context, outcome string, d time.Duration) {
	if m == nil {
		return
	}
	attrs := metric.WithAttributes(attribute.String("outcome", outcome))
	m.Transcriptions.Add(ctx, 1, attrs)
	m.TranscriptionDuration.Record(ctx, d.Seconds(), attrs)
}

// RecordSummary counts one request. Cache hits and rejected input carry no
// duration sample.
func (m *Metrics) RecordSummary(ctx context.Context, outcome string, d time.Duration) {
	if m == nil {
		return
	}
	attrs := metric.WithAttributes(attribute.String("outcome", outcome))
	m.Summaries.Add(ctx, 1, attrs)
	if d > 0 {
		m.SummaryDuration.Record(ctx, d.Seconds(), attrs)
	}
}

func (m *Metrics) RecordShare(ctx context.Context, status string) {
	if m == nil {
		return
	}
	m.Shares.Add(ctx, 1, metric.WithAttributes(attribute.String("status", status)))
}

func (m *Metrics) SessionOpened(ctx context.Context) {
	if m == nil {
		return
	}
	m.ActiveSessions.Add(ctx, 1)
}

func (m *Metrics) SessionClosed(ctx context.Context) {
	if m == nil {
		return
	}
	m.ActiveSessions.Add(ctx, -1)
}
