package app

import (
	"context"
	"sync"

	"github.com/google/uuid"

	"github.com/ayusman/yubimoji/internal/compose"
	"github.com/ayusman/yubimoji/internal/engine"
	"github.com/ayusman/yubimoji/internal/observe"
	"github.com/ayusman/yubimoji/internal/plugin"
	"github.com/ayusman/yubimoji/internal/store"
)

// Broadcaster pushes results to live viewers.
type Broadcaster interface {
	Broadcast(r engine.Result)
}

// BroadcastSink forwards every new state to b.
func BroadcastSink(b Broadcaster) Sink {
	return SinkFunc(func(_ context.Context, ev Event) {
		if ev.Cause == store.ReasonStop {
			return
		}
		b.Broadcast(ev.Next)
	})
}

// TextSink calls set with the committed text whenever it changes.
func TextSink(set func(text string)) Sink {
	return SinkFunc(func(_ context.Context, ev Event) {
		if ev.Cause == "" && ev.Prev.Text == ev.Next.Text {
			return
		}
		set(ev.Next.Text)
	})
}

// TranscriptSink archives committed text when it is about to be lost: on an
// idle clear, a reset, a reload or shutdown.
type TranscriptSink struct {
	repo *store.TranscriptRepository
}

// NewTranscriptSink returns a sink writing to repo.
func NewTranscriptSink(repo *store.TranscriptRepository) *TranscriptSink {
	return &TranscriptSink{repo: repo}
}

// Publish implements Sink.
func (s *TranscriptSink) Publish(ctx context.Context, ev Event) {
	reason, ok := archiveReason(ev)
	if !ok {
		return
	}
	t := &store.Transcript{
		ID:        uuid.NewString(),
		SessionID: ev.Prev.SessionID,
		Text:      ev.Prev.Text,
		Reason:    reason,
	}
	if err := s.repo.Create(t); err != nil {
		observe.Logger(ctx).Warn("archive transcript", "session", t.SessionID, "reason", reason, "err", err)
		return
	}
	observe.Logger(ctx).Info("transcript archived", "id", t.ID, "reason", reason, "chars", len([]rune(t.Text)))
}

func archiveReason(ev Event) (string, bool) {
	if ev.Prev.Text == "" {
		return "", false
	}
	if ev.Cause != "" {
		return ev.Cause, true
	}
	if ev.Next.Action == compose.ActionClear {
		return store.ReasonIdle, true
	}
	return "", false
}

// OutputSink mirrors the committed text into an output plugin. Plugin calls
// run on the goroutine started by Run; while one is in flight, newer states
// replace older pending ones.
type OutputSink struct {
	out  *plugin.Output
	wake chan struct{}

	mu      sync.Mutex
	pending bool
	detach  bool
	session string
	text    string
}

// NewOutputSink returns a sink writing through out.
func NewOutputSink(out *plugin.Output) *OutputSink {
	return &OutputSink{out: out, wake: make(chan struct{}, 1)}
}

// Publish implements Sink.
func (s *OutputSink) Publish(_ context.Context, ev Event) {
	if ev.Cause == store.ReasonStop {
		return
	}

	s.mu.Lock()
	if ev.Cause != "" || ev.Next.Action == compose.ActionClear {
		s.detach = true
	} else if ev.Prev.Text == ev.Next.Text && !s.pending {
		s.mu.Unlock()
		return
	}
	s.pending = true
	s.session = ev.Next.SessionID
	s.text = ev.Next.Text
	s.mu.Unlock()

	select {
	case s.wake <- struct{}{}:
	default:
	}
}

// Run delivers pending text until ctx is done.
func (s *OutputSink) Run(ctx context.Context) error {
	for {
		select {
		case <-ctx.Done():
			return nil
		case <-s.wake:
			s.flush(ctx)
		}
	}
}

func (s *OutputSink) flush(ctx context.Context) {
	s.mu.Lock()
	if !s.pending {
		s.mu.Unlock()
		return
	}
	detach, session, text := s.detach, s.session, s.text
	s.pending, s.detach = false, false
	s.mu.Unlock()

	logger := observe.Logger(ctx)
	if detach {
		if err := s.out.Detach(ctx, session); err != nil {
			logger.Warn("output detach", "plugin", s.out.Plugin().Manifest.Name, "err", err)
		}
	}
	if err := s.out.Sync(ctx, session, text); err != nil {
		logger.Warn("output sync", "plugin", s.out.Plugin().Manifest.Name, "err", err)
	}
}
