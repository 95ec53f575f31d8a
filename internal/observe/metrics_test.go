package observe

import (
	"context"
	"errors"
	"fmt"
	"testing"
	"time"

	"go.opentelemetry.io/otel/attribute"
	sdkmetric "go.opentelemetry.io/otel/sdk/metric"
	"go.opentelemetry.io/otel/sdk/metric/metricdata"

	"github.com/ayusman/yubimoji/internal/compose"
	"github.com/ayusman/yubimoji/internal/engine"
)

// newTestMetrics returns Metrics backed by a ManualReader.
func newTestMetrics(t *testing.T) (*Metrics, *sdkmetric.ManualReader) {
	t.Helper()
	reader := sdkmetric.NewManualReader()
	mp := sdkmetric.NewMeterProvider(sdkmetric.WithReader(reader))
	t.Cleanup(func() { _ = mp.Shutdown(context.Background()) })

	m, err := NewMetrics(mp)
	if err != nil {
		t.Fatalf("NewMetrics: %v", err)
	}
	return m, reader
}

func collect(t *testing.T, reader *sdkmetric.ManualReader) metricdata.ResourceMetrics {
	t.Helper()
	var rm metricdata.ResourceMetrics
	if err := reader.Collect(context.Background(), &rm); err != nil {
		t.Fatalf("Collect: %v", err)
	}
	return rm
}

func findMetric(rm metricdata.ResourceMetrics, name string) *metricdata.Metrics {
	for _, sm := range rm.ScopeMetrics {
		for i := range sm.Metrics {
			if sm.Metrics[i].Name == name {
				return &sm.Metrics[i]
			}
		}
	}
	return nil
}

// counterValue sums the data points of an int counter whose attributes
// include every given key/value pair.
func counterValue(t *testing.T, rm metricdata.ResourceMetrics, name string, attrs ...attribute.KeyValue) int64 {
	t.Helper()
	m := findMetric(rm, name)
	if m == nil {
		t.Fatalf("metric %q not found", name)
	}
	sum, ok := m.Data.(metricdata.Sum[int64])
	if !ok {
		t.Fatalf("metric %q: data is %T, want Sum[int64]", name, m.Data)
	}

	var total int64
outer:
	for _, dp := range sum.DataPoints {
		for _, kv := range attrs {
			v, ok := dp.Attributes.Value(kv.Key)
			if !ok || v != kv.Value {
				continue outer
			}
		}
		total += dp.Value
	}
	return total
}

func TestRecordFrame(t *testing.T) {
	m, reader := newTestMetrics(t)
	ctx := context.Background()

	m.RecordFrame(ctx, SourceAPI, engine.Result{Action: compose.ActionCommit, Hands: make([]engine.HandSummary, 1)}, 2*time.Millisecond)
	m.RecordFrame(ctx, SourceAPI, engine.Result{}, time.Millisecond)
	m.RecordFrame(ctx, SourceCamera, engine.Result{Action: compose.ActionDelete}, time.Millisecond)

	rm := collect(t, reader)

	if got := counterValue(t, rm, "yubimoji.frames", attribute.String("source", SourceAPI)); got != 2 {
		t.Errorf("api frames = %d, want 2", got)
	}
	if got := counterValue(t, rm, "yubimoji.frames", attribute.Int("hands", 1)); got != 1 {
		t.Errorf("one-hand frames = %d, want 1", got)
	}
	if got := counterValue(t, rm, "yubimoji.actions"); got != 2 {
		t.Errorf("actions = %d, want 2 (none is not counted)", got)
	}
	if got := counterValue(t, rm, "yubimoji.actions", attribute.String("action", "delete")); got != 1 {
		t.Errorf("delete actions = %d, want 1", got)
	}

	hist := findMetric(rm, "yubimoji.frame.duration")
	if hist == nil {
		t.Fatal("frame duration histogram not found")
	}
	data, ok := hist.Data.(metricdata.Histogram[float64])
	if !ok {
		t.Fatalf("frame duration data is %T", hist.Data)
	}
	var count uint64
	for _, dp := range data.DataPoints {
		count += dp.Count
	}
	if count != 3 {
		t.Errorf("histogram count = %d, want 3", count)
	}
}

func TestRecordFrameError(t *testing.T) {
	m, reader := newTestMetrics(t)
	ctx := context.Background()

	m.RecordFrameError(ctx, SourceWS, fmt.Errorf("wrapped: %w", &engine.InputError{Hand: 0, Reason: "bad"}))
	m.RecordFrameError(ctx, SourceWS, errors.New("classifier down"))

	rm := collect(t, reader)
	if got := counterValue(t, rm, "yubimoji.frame.errors", attribute.String("kind", "input")); got != 1 {
		t.Errorf("input errors = %d, want 1", got)
	}
	if got := counterValue(t, rm, "yubimoji.frame.errors", attribute.String("kind", "processing")); got != 1 {
		t.Errorf("processing errors = %d, want 1", got)
	}
}

func TestRecordPluginCall(t *testing.T) {
	m, reader := newTestMetrics(t)
	ctx := context.Background()

	m.RecordPluginCall(ctx, "keyboard", nil)
	m.RecordPluginCall(ctx, "keyboard", nil)
	m.RecordPluginCall(ctx, "keyboard", errors.New("boom"))

	rm := collect(t, reader)
	if got := counterValue(t, rm, "yubimoji.plugin.calls", attribute.String("status", "ok")); got != 2 {
		t.Errorf("ok calls = %d, want 2", got)
	}
	if got := counterValue(t, rm, "yubimoji.plugin.calls", attribute.String("status", "error")); got != 1 {
		t.Errorf("failed calls = %d, want 1", got)
	}
}

func TestDefaultMetrics(t *testing.T) {
	if DefaultMetrics() == nil || DefaultMetrics() != DefaultMetrics() {
		t.Fatal("DefaultMetrics should return one shared instance")
	}
}
