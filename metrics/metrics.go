// Package metrics records review pipeline telemetry with OpenTelemetry and
// exposes it in Prometheus format.
//
// A nil *Recorder is valid and records nothing, so components accept an
// optional recorder without guarding every call.
package metrics

import (
	"context"
	"errors"
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"go.opentelemetry.io/otel/attribute"
	otelprom "go.opentelemetry.io/otel/exporters/prometheus"
	"go.opentelemetry.io/otel/metric"
	"go.opentelemetry.io/otel/metric/noop"
	sdkmetric "go.opentelemetry.io/otel/sdk/metric"
	"go.opentelemetry.io/otel/sdk/resource"
	semconv "go.opentelemetry.io/otel/semconv/v1.24.0"

	"github.com/hupe1980/reviewmesh/core"
)

const meterName = "github.com/hupe1980/reviewmesh"

// Attribute keys.
var (
	AttrStatus = attribute.Key("status")
	AttrAgent  = attribute.Key("agent")
	AttrPath   = attribute.Key("path")
	AttrResult = attribute.Key("result")
)

// Recorder owns the review instruments.
type Recorder struct {
	reviews        metric.Int64Counter
	reviewDuration metric.Float64Histogram
	agentRuns      metric.Int64Counter
	agentDuration  metric.Float64Histogram
	cacheLookups   metric.Int64Counter

	shutdown func(context.Context) error
}

// NewRecorder creates the instruments on meter.
func NewRecorder(meter metric.Meter) (*Recorder, error) {
	r := &Recorder{}
	var err, e error

	r.reviews, e = meter.Int64Counter("reviewmesh_reviews_total",
		metric.WithDescription("Reviews processed by terminal status"))
	err = errors.Join(err, e)
	r.reviewDuration, e = meter.Float64Histogram("reviewmesh_review_duration_seconds",
		metric.WithDescription("Review job duration in seconds"))
	err = errors.Join(err, e)
	r.agentRuns, e = meter.Int64Counter("reviewmesh_agent_runs_total",
		metric.WithDescription("Agent runs by agent and execution path"))
	err = errors.Join(err, e)
	r.agentDuration, e = meter.Float64Histogram("reviewmesh_agent_run_duration_seconds",
		metric.WithDescription("Agent run duration in seconds"))
	err = errors.Join(err, e)
	r.cacheLookups, e = meter.Int64Counter("reviewmesh_cache_lookups_total",
		metric.WithDescription("Generation cache lookups by result"))
	err = errors.Join(err, e)

	if err != nil {
		return nil, err
	}
	return r, nil
}

// Nop returns a recorder backed by the no-op meter.
func Nop() *Recorder {
	r, _ := NewRecorder(noop.NewMeterProvider().Meter(meterName))
	return r
}

// NewPrometheus builds a meter provider exporting to a private Prometheus
// registry and returns the recorder plus the handler serving /metrics.
func NewPrometheus(ctx context.Context, serviceName string) (*Recorder, http.Handler, error) {
	if serviceName == "" {
		serviceName = "reviewmesh"
	}
	reg := prometheus.NewRegistry()
	exporter, err := otelprom.New(otelprom.WithRegisterer(reg))
	if err != nil {
		return nil, nil, err
	}
	res, err := resource.New(ctx, resource.WithAttributes(semconv.ServiceName(serviceName)))
	if err != nil {
		return nil, nil, err
	}
	provider := sdkmetric.NewMeterProvider(
		sdkmetric.WithReader(exporter),
		sdkmetric.WithResource(res),
	)

	r, err := NewRecorder(provider.Meter(meterName))
	if err != nil {
		_ = provider.Shutdown(ctx)
		return nil, nil, err
	}
	r.shutdown = provider.Shutdown

	return r, promhttp.HandlerFor(reg, promhttp.HandlerOpts{EnableOpenMetrics: true}), nil
}

// RecordReview records one finished review job.
func (r *Recorder) RecordReview(ctx context.Context, status core.ReviewStatus, d time.Duration) {
	if r == nil {
		return
	}
	attrs := metric.WithAttributes(AttrStatus.String(string(status)))
	r.reviews.Add(ctx, 1, attrs)
	r.reviewDuration.Record(ctx, d.Seconds(), attrs)
}

// RecordAgentRun records one agent execution; path is "generation" or "rules".
func (r *Recorder) RecordAgentRun(ctx context.Context, agentID, path string, d time.Duration) {
	if r == nil {
		return
	}
	attrs := metric.WithAttributes(AttrAgent.String(agentID), AttrPath.String(path))
	r.agentRuns.Add(ctx, 1, attrs)
	r.agentDuration.Record(ctx, d.Seconds(), attrs)
}

// RecordCacheLookup records a cache hit or miss.
func (r *Recorder) RecordCacheLookup(ctx context.Context, hit bool) {
	if r == nil {
		return
	}
	result := "miss"
	if hit {
		result = "hit"
	}
	r.cacheLookups.Add(ctx, 1, metric.WithAttributes(AttrResult.String(result)))
}

// Shutdown flushes and stops the underlying provider, if any.
func (r *Recorder) Shutdown(ctx context.Context) error {
	if r == nil || r.shutdown == nil {
		return nil
	}
	return r.shutdown(ctx)
}
