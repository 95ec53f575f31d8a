package app

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	sdkmetric "go.opentelemetry.io/otel/sdk/metric"
	"go.opentelemetry.io/otel/sdk/metric/metricdata"

	"github.com/ayusman/yubimoji/internal/compose"
	"github.com/ayusman/yubimoji/internal/engine"
	"github.com/ayusman/yubimoji/internal/observe"
	"github.com/ayusman/yubimoji/internal/store"
)

type recordingSink struct {
	mu     sync.Mutex
	events []Event
}

func (s *recordingSink) Publish(_ context.Context, ev Event) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.events = append(s.events, ev)
}

func (s *recordingSink) Events() []Event {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]Event(nil), s.events...)
}

func testTables(labels ...string) engine.Tables {
	return engine.Tables{Labels: compose.NewLabelTable(labels, compose.DefaultTokenNames())}
}

func newTestProcessor(t *testing.T, clock *fakeClock) (*Processor, *recordingSink, *sdkmetric.ManualReader) {
	t.Helper()
	eng, err := engine.New(engine.DefaultConfig(), testTables("あ", "い"), nil, engine.WithClock(clock.Now))
	require.NoError(t, err)

	reader := sdkmetric.NewManualReader()
	m, err := observe.NewMetrics(sdkmetric.NewMeterProvider(sdkmetric.WithReader(reader)))
	require.NoError(t, err)

	p := NewProcessor(eng, m)
	rec := &recordingSink{}
	p.AddSink(rec)
	return p, rec, reader
}

func metricNames(t *testing.T, reader *sdkmetric.ManualReader) []string {
	t.Helper()
	var rm metricdata.ResourceMetrics
	require.NoError(t, reader.Collect(context.Background(), &rm))
	var names []string
	for _, sm := range rm.ScopeMetrics {
		for _, m := range sm.Metrics {
			names = append(names, m.Name)
		}
	}
	return names
}

func TestProcessor_ProcessFrame(t *testing.T) {
	clock := newFakeClock()
	p, rec, reader := newTestProcessor(t, clock)

	r := spell(t, p, clock, 0)
	assert.Equal(t, "あ", r.Text)
	assert.Equal(t, compose.ActionCommit, r.Action)

	events := rec.Events()
	require.Len(t, events, 2)
	assert.Equal(t, observe.SourceAPI, events[1].Source)
	assert.Empty(t, events[1].Cause)
	assert.Empty(t, events[1].Prev.Text)
	assert.Equal(t, "あ", events[1].Next.Text)

	names := metricNames(t, reader)
	assert.Contains(t, names, "yubimoji.frames")
	assert.Contains(t, names, "yubimoji.frame.duration")
	assert.Contains(t, names, "yubimoji.actions")
}

func TestProcessor_RejectedFrame(t *testing.T) {
	clock := newFakeClock()
	p, rec, reader := newTestProcessor(t, clock)
	spell(t, p, clock, 0)
	before := p.Snapshot()

	h := rightHand(1)
	h.Handedness = "middle"
	_, err := p.ProcessFrame(context.Background(), observe.SourceWS, engine.Frame{Hands: []engine.Hand{h}})

	var inputErr *engine.InputError
	require.True(t, errors.As(err, &inputErr))
	assert.Len(t, rec.Events(), 2, "rejected frames are not published")
	assert.Equal(t, before, p.Snapshot())
	assert.Contains(t, metricNames(t, reader), "yubimoji.frame.errors")
}

func TestProcessor_Reset(t *testing.T) {
	clock := newFakeClock()
	p, rec, _ := newTestProcessor(t, clock)
	before := spell(t, p, clock, 1)

	r, err := p.Reset(context.Background())
	require.NoError(t, err)
	assert.Empty(t, r.Text)

	events := rec.Events()
	last := events[len(events)-1]
	assert.Equal(t, store.ReasonReset, last.Cause)
	assert.Equal(t, "い", last.Prev.Text)
	assert.Equal(t, before.SessionID, last.Prev.SessionID)
	assert.Empty(t, last.Next.Text)
}

func TestProcessor_Restart(t *testing.T) {
	clock := newFakeClock()
	p, rec, _ := newTestProcessor(t, clock)
	spell(t, p, clock, 0)

	t.Run("without labels fails", func(t *testing.T) {
		n := len(rec.Events())
		_, err := p.Restart(context.Background(), engine.Tables{})
		assert.ErrorIs(t, err, engine.ErrNoLabels)
		assert.Len(t, rec.Events(), n)
		assert.Equal(t, "あ", p.Snapshot().Text)
	})

	t.Run("new tables", func(t *testing.T) {
		old := p.Snapshot().SessionID
		r, err := p.Restart(context.Background(), testTables("か"))
		require.NoError(t, err)
		assert.NotEqual(t, old, r.SessionID)

		last := rec.Events()[len(rec.Events())-1]
		assert.Equal(t, store.ReasonReload, last.Cause)
		assert.Equal(t, "あ", last.Prev.Text)

		assert.Equal(t, "か", spell(t, p, clock, 0).Text)
	})
}

func TestProcessor_Replace(t *testing.T) {
	clock := newFakeClock()
	p, rec, _ := newTestProcessor(t, clock)
	spell(t, p, clock, 0)

	cfg := engine.DefaultConfig()
	cfg.Timing.Hold = time.Second
	eng, err := engine.New(cfg, testTables("か"), nil, engine.WithClock(clock.Now))
	require.NoError(t, err)

	r := p.Replace(context.Background(), eng)
	assert.Equal(t, eng.SessionID(), r.SessionID)
	assert.Same(t, eng, p.Engine())

	last := rec.Events()[len(rec.Events())-1]
	assert.Equal(t, store.ReasonReload, last.Cause)
	assert.Equal(t, "あ", last.Prev.Text)
}

func TestProcessor_Stop(t *testing.T) {
	clock := newFakeClock()
	p, rec, _ := newTestProcessor(t, clock)
	spell(t, p, clock, 0)

	p.Stop(context.Background())

	last := rec.Events()[len(rec.Events())-1]
	assert.Equal(t, store.ReasonStop, last.Cause)
	assert.Equal(t, "あ", last.Prev.Text)
	assert.Equal(t, last.Prev, last.Next)
}
