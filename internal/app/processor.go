package app

import (
	"context"
	"sync"
	"time"

	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"

	"github.com/ayusman/yubimoji/internal/engine"
	"github.com/ayusman/yubimoji/internal/observe"
	"github.com/ayusman/yubimoji/internal/store"
)

// Event is one session state change. Prev is the state before the change.
// Cause is empty for frames and one of the store transcript reasons for
// resets, reloads and shutdown.
type Event struct {
	Source string
	Prev   engine.Result
	Next   engine.Result
	Cause  string
}

// Sink receives every state change of the processor, in order. Publish runs
// with the processor locked and must not call back into it.
type Sink interface {
	Publish(ctx context.Context, ev Event)
}

// SinkFunc adapts a function to Sink.
type SinkFunc func(ctx context.Context, ev Event)

// Publish calls f(ctx, ev).
func (f SinkFunc) Publish(ctx context.Context, ev Event) { f(ctx, ev) }

// Processor is the single entry point for frames from the camera, the HTTP
// API and websocket clients. It records metrics and fans results out to the
// registered sinks.
type Processor struct {
	engine  *engine.Engine
	metrics *observe.Metrics

	mu    sync.Mutex
	sinks []Sink
}

// NewProcessor wraps eng. metrics may be nil.
func NewProcessor(eng *engine.Engine, metrics *observe.Metrics) *Processor {
	return &Processor{engine: eng, metrics: metrics}
}

// AddSink registers s for all later events.
func (p *Processor) AddSink(s Sink) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.sinks = append(p.sinks, s)
}

// Engine returns the current engine.
func (p *Processor) Engine() *engine.Engine {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.engine
}

// ProcessFrame advances the session by one frame. Rejected frames leave the
// session unchanged and are not published.
func (p *Processor) ProcessFrame(ctx context.Context, source string, f engine.Frame) (engine.Result, error) {
	ctx, span := observe.StartSpan(ctx, "engine.process")
	defer span.End()
	span.SetAttributes(
		attribute.String("source", source),
		attribute.Int("hands", len(f.Hands)),
	)

	p.mu.Lock()
	defer p.mu.Unlock()

	start := time.Now()
	prev := p.engine.Snapshot()
	next, err := p.engine.Process(f)
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
		if p.metrics != nil {
			p.metrics.RecordFrameError(ctx, source, err)
		}
		return next, err
	}
	if p.metrics != nil {
		p.metrics.RecordFrame(ctx, source, next, time.Since(start))
	}
	span.SetAttributes(attribute.String("action", next.Action.String()))

	p.publish(ctx, Event{Source: source, Prev: prev, Next: next})
	return next, nil
}

// Snapshot returns the current session state.
func (p *Processor) Snapshot() engine.Result {
	return p.Engine().Snapshot()
}

// Reset empties the session.
func (p *Processor) Reset(ctx context.Context) (engine.Result, error) {
	p.mu.Lock()
	defer p.mu.Unlock()

	prev := p.engine.Snapshot()
	next := p.engine.Reset()
	p.publish(ctx, Event{Prev: prev, Next: next, Cause: store.ReasonReset})
	return next, nil
}

// Restart starts a new session over tables.
func (p *Processor) Restart(ctx context.Context, tables engine.Tables) (engine.Result, error) {
	p.mu.Lock()
	defer p.mu.Unlock()

	prev := p.engine.Snapshot()
	next, err := p.engine.Restart(tables)
	if err != nil {
		return prev, err
	}
	p.publish(ctx, Event{Prev: prev, Next: next, Cause: store.ReasonReload})
	return next, nil
}

// Replace swaps in eng, which already runs a fresh session, after the
// session tuning changed.
func (p *Processor) Replace(ctx context.Context, eng *engine.Engine) engine.Result {
	p.mu.Lock()
	defer p.mu.Unlock()

	prev := p.engine.Snapshot()
	p.engine = eng
	next := eng.Snapshot()
	p.publish(ctx, Event{Prev: prev, Next: next, Cause: store.ReasonReload})
	return next
}

// Stop publishes the final state of the session before shutdown.
func (p *Processor) Stop(ctx context.Context) {
	p.mu.Lock()
	defer p.mu.Unlock()

	last := p.engine.Snapshot()
	p.publish(ctx, Event{Prev: last, Next: last, Cause: store.ReasonStop})
}

func (p *Processor) publish(ctx context.Context, ev Event) {
	for _, s := range p.sinks {
		s.Publish(ctx, ev)
	}
}
