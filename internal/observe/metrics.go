// Package observe provides the yubimoji observability primitives:
// OpenTelemetry metrics with a Prometheus bridge, request tracing and the
// HTTP middleware that ties them together.
//
// Tests should build [Metrics] with [NewMetrics] over their own
// [metric.MeterProvider]; [DefaultMetrics] uses the global provider.
package observe

import (
	"context"
	"errors"
	"sync"
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/metric"

	"github.com/ayusman/yubimoji/internal/compose"
	"github.com/ayusman/yubimoji/internal/engine"
)

// meterName is the instrumentation scope name used for all yubimoji metrics.
const meterName = "github.com/ayusman/yubimoji"

// Frame sources.
const (
	SourceCamera = "camera"
	SourceAPI    = "api"
	SourceWS     = "ws"
)

// Metrics holds the metric instruments. All fields are safe for concurrent use.
type Metrics struct {
	// FrameDuration tracks engine processing time per frame, by source.
	FrameDuration metric.Float64Histogram

	// DetectDuration tracks hand landmark detection time per camera frame.
	DetectDuration metric.Float64Histogram

	// Frames counts processed frames. Attributes: source, hands.
	Frames metric.Int64Counter

	// Actions counts text actions other than none. Attribute: action.
	Actions metric.Int64Counter

	// FrameErrors counts dropped frames. Attributes: source, kind.
	FrameErrors metric.Int64Counter

	// PluginCalls counts output plugin invocations. Attributes: plugin, status.
	PluginCalls metric.Int64Counter

	// StreamClients tracks connected websocket clients.
	StreamClients metric.Int64UpDownCounter

	// HTTPRequestDuration tracks HTTP request time. Attributes: method, path.
	HTTPRequestDuration metric.Float64Histogram
}

// frameBuckets are histogram boundaries in seconds sized for per-frame work.
var frameBuckets = []float64{
	0.0005, 0.001, 0.0025, 0.005, 0.01, 0.025, 0.05, 0.1, 0.25,
}

// NewMetrics creates every instrument on mp.
func NewMetrics(mp metric.MeterProvider) (*Metrics, error) {
	m := mp.Meter(meterName)
	var err error
	met := &Metrics{}

	if met.FrameDuration, err = m.Float64Histogram("yubimoji.frame.duration",
		metric.WithDescription("Engine processing time per frame."),
		metric.WithUnit("s"),
		metric.WithExplicitBucketBoundaries(frameBuckets...),
	); err != nil {
		return nil, err
	}
	if met.DetectDuration, err = m.Float64Histogram("yubimoji.detect.duration",
		metric.WithDescription("Hand landmark detection time per camera frame."),
		metric.WithUnit("s"),
		metric.WithExplicitBucketBoundaries(frameBuckets...),
	); err != nil {
		return nil, err
	}
	if met.Frames, err = m.Int64Counter("yubimoji.frames",
		metric.WithDescription("Processed frames by source and hand count."),
	); err != nil {
		return nil, err
	}
	if met.Actions, err = m.Int64Counter("yubimoji.actions",
		metric.WithDescription("Committed text actions by kind."),
	); err != nil {
		return nil, err
	}
	if met.FrameErrors, err = m.Int64Counter("yubimoji.frame.errors",
		metric.WithDescription("Dropped frames by source and error kind."),
	); err != nil {
		return nil, err
	}
	if met.PluginCalls, err = m.Int64Counter("yubimoji.plugin.calls",
		metric.WithDescription("Output plugin invocations by plugin and status."),
	); err != nil {
		return nil, err
	}
	if met.StreamClients, err = m.Int64UpDownCounter("yubimoji.stream.clients",
		metric.WithDescription("Connected websocket clients."),
	); err != nil {
		return nil, err
	}
	if met.HTTPRequestDuration, err = m.Float64Histogram("yubimoji.http.request.duration",
		metric.WithDescription("HTTP request latency by method and path."),
		metric.WithUnit("s"),
	); err != nil {
		return nil, err
	}

	return met, nil
}

var (
	defaultMetrics     *Metrics
	defaultMetricsOnce sync.Once
)

// DefaultMetrics returns the package-level [Metrics] built on
// [otel.GetMeterProvider] at first use.
func DefaultMetrics() *Metrics {
	defaultMetricsOnce.Do(func() {
		var err error
		defaultMetrics, err = NewMetrics(otel.GetMeterProvider())
		if err != nil {
			panic("observe: failed to create default metrics: " + err.Error())
		}
	})
	return defaultMetrics
}

// RecordFrame records one processed frame and the action it produced.
func (m *Metrics) RecordFrame(ctx context.Context, source string, r engine.Result, d time.Duration) {
	m.FrameDuration.Record(ctx, d.Seconds(),
		metric.WithAttributes(attribute.String("source", source)))
	m.Frames.Add(ctx, 1,
		metric.WithAttributes(
			attribute.String("source", source),
			attribute.Int("hands", len(r.Hands)),
		),
	)
	if r.Action != compose.ActionNone {
		m.Actions.Add(ctx, 1,
			metric.WithAttributes(attribute.String("action", r.Action.String())))
	}
}

// RecordFrameError records a dropped frame. The kind attribute is "input"
// for malformed frames and "processing" for everything else.
func (m *Metrics) RecordFrameError(ctx context.Context, source string, err error) {
	m.FrameErrors.Add(ctx, 1,
		metric.WithAttributes(
			attribute.String("source", source),
			attribute.String("kind", ErrorKind(err)),
		),
	)
}

// RecordPluginCall records an output plugin invocation.
func (m *Metrics) RecordPluginCall(ctx context.Context, plugin string, err error) {
	status := "ok"
	if err != nil {
		status = "error"
	}
	m.PluginCalls.Add(ctx, 1,
		metric.WithAttributes(
			attribute.String("plugin", plugin),
			attribute.String("status", status),
		),
	)
}

// ErrorKind classifies a frame error for metrics and API responses.
func ErrorKind(err error) string {
	var inputErr *engine.InputError
	if errors.As(err, &inputErr) {
		return "input"
	}
	return "processing"
}
