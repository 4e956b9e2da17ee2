// Package observe holds the relay's OpenTelemetry metric instruments and the
// Prometheus exporter bridge that serves them on /metrics.
//
// Components take a *Metrics explicitly. Tests build one with [NewMetrics]
// over a ManualReader; code that does not care uses [Discard].
package observe

import (
	"context"
	"strconv"
	"time"

	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/metric"
	"go.opentelemetry.io/otel/metric/noop"
)

const meterName = "ghlrelay"

// Outcome labels shared by the CRM and extractor instruments.
const (
	OutcomeOK      = "ok"
	OutcomeError   = "error"
	OutcomeEmpty   = "empty"
	OutcomeSkipped = "skipped"
)

// Metrics holds all metric instruments for the relay. The OTel instruments
// handle their own synchronisation.
type Metrics struct {
	// WebhookRequests counts inbound requests by endpoint and HTTP status.
	WebhookRequests metric.Int64Counter

	// CRMRequests counts GHL API calls by operation and outcome.
	CRMRequests metric.Int64Counter

	// CRMDuration tracks GHL API latency by operation.
	CRMDuration metric.Float64Histogram

	// ExtractDuration tracks transcript extraction latency by outcome.
	ExtractDuration metric.Float64Histogram

	// NotesFailed counts notes that could not be written, by note kind.
	NotesFailed metric.Int64Counter
}

// latencyBuckets covers fast CRM reads up to slow LLM completions (seconds).
var latencyBuckets = []float64{
	0.05, 0.1, 0.25, 0.5, 1, 2.5, 5, 10, 30,
}

// NewMetrics creates every instrument from mp.
func NewMetrics(mp metric.MeterProvider) (*Metrics, error) {
	m := mp.Meter(meterName)
	var err error
	met := &Metrics{}

	if met.WebhookRequests, err = m.Int64Counter("relay.webhook.requests",
		metric.WithDescription("Inbound webhook requests by endpoint and status."),
	); err != nil {
		return nil, err
	}
	if met.CRMRequests, err = m.Int64Counter("relay.crm.requests",
		metric.WithDescription("GoHighLevel API calls by operation and outcome."),
	); err != nil {
		return nil, err
	}
	if met.CRMDuration, err = m.Float64Histogram("relay.crm.duration",
		metric.WithDescription("Latency of GoHighLevel API calls."),
		metric.WithUnit("s"),
		metric.WithExplicitBucketBoundaries(latencyBuckets...),
	); err != nil {
		return nil, err
	}
	if met.ExtractDuration, err = m.Float64Histogram("relay.extract.duration",
		metric.WithDescription("Latency of transcript extraction."),
		metric.WithUnit("s"),
		metric.WithExplicitBucketBoundaries(latencyBuckets...),
	); err != nil {
		return nil, err
	}
	if met.NotesFailed, err = m.Int64Counter("relay.notes.failed",
		metric.WithDescription("Notes that could not be written to the CRM."),
	); err != nil {
		return nil, err
	}

	return met, nil
}

// Discard returns instruments backed by a no-op provider.
func Discard() *Metrics {
	m, _ := NewMetrics(noop.NewMeterProvider())
	return m
}

// RecordWebhook counts one inbound request.
func (m *Metrics) RecordWebhook(ctx context.Context, endpoint string, status int) {
	m.WebhookRequests.Add(ctx, 1, metric.WithAttributes(
		attribute.String("endpoint", endpoint),
		attribute.String("status", strconv.Itoa(status)),
	))
}

// RecordCRM counts one CRM call and records its latency.
func (m *Metrics) RecordCRM(ctx context.Context, operation, outcome string, d time.Duration) {
	m.CRMRequests.Add(ctx, 1, metric.WithAttributes(
		attribute.String("operation", operation),
		attribute.String("outcome", outcome),
	))
	m.CRMDuration.Record(ctx, d.Seconds(), metric.WithAttributes(
		attribute.String("operation", operation),
	))
}

// RecordExtract records one extraction attempt.
func (m *Metrics) RecordExtract(ctx context.Context, outcome string, d time.Duration) {
	m.ExtractDuration.Record(ctx, d.Seconds(), metric.WithAttributes(
		attribute.String("outcome", outcome),
	))
}

// RecordNoteFailure counts a note that was dropped.
func (m *Metrics) RecordNoteFailure(ctx context.Context, kind string) {
	m.NotesFailed.Add(ctx, 1, metric.WithAttributes(
		attribute.String("kind", kind),
	))
}
