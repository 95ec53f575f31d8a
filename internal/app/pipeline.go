package app

import (
	"context"
	"errors"
	"log/slog"
	"time"

	"github.com/ayusman/yubimoji/internal/capture"
	"github.com/ayusman/yubimoji/internal/engine"
	"github.com/ayusman/yubimoji/internal/hand"
	"github.com/ayusman/yubimoji/internal/observe"
)

// runPipeline is the camera loop. It reads frames at the rate chosen by the
// motion gate and feeds every frame's hands to the processor:
//
//  1. Start in idle mode (idle FPS)
//  2. On motion, switch to active mode (active FPS)
//  3. Detect hands and advance the session, including frames with no hands
//     so that idle clear fires
//  4. After the idle timeout without motion, switch back to idle mode
//
// A camera that cannot be opened is logged and leaves frames to the HTTP
// and websocket inputs.
func (a *App) runPipeline(ctx context.Context) error {
	if err := a.camera.Open(); err != nil {
		slog.Warn("camera unavailable, accepting API frames only", "err", err)
		return nil
	}
	defer func() {
		if err := a.camera.Close(); err != nil {
			slog.Warn("close camera", "err", err)
		}
	}()

	a.camera.SetFPS(a.gate.FPS())
	ticker := time.NewTicker(a.gate.Interval())
	defer ticker.Stop()

	slog.Info("capture pipeline started", "mode", a.gate.Mode(), "fps", a.gate.FPS())
	for {
		select {
		case <-ctx.Done():
			slog.Info("capture pipeline stopped")
			return nil
		case now := <-ticker.C:
			if !a.IsEnabled() {
				continue
			}
			if mode, changed := a.step(ctx, now); changed {
				a.camera.SetFPS(a.gate.FPS())
				ticker.Reset(a.gate.Interval())
				slog.Debug("capture mode changed", "mode", mode, "fps", a.gate.FPS())
			}
		}
	}
}

// step processes one camera frame and reports the gate mode after it.
func (a *App) step(ctx context.Context, now time.Time) (capture.Mode, bool) {
	frame, err := a.camera.ReadFrame()
	if err != nil {
		if !errors.Is(err, capture.ErrEmptyFrame) {
			slog.Warn("read frame", "err", err)
		}
		return a.gate.Mode(), false
	}
	defer frame.Close()

	a.mu.RLock()
	preview := a.preview
	a.mu.RUnlock()
	if preview != nil {
		preview.Publish(frame)
	}

	moved, _ := a.motion.Detect(frame)
	mode, changed := a.gate.Observe(now, moved)

	start := time.Now()
	hands, err := a.detector.Detect(frame)
	if a.metrics != nil {
		a.metrics.DetectDuration.Record(ctx, time.Since(start).Seconds())
	}
	if err != nil {
		slog.Warn("detect hands", "err", err)
		return mode, changed
	}

	if _, err := a.processor.ProcessFrame(ctx, observe.SourceCamera, FrameFromHands(hands)); err != nil {
		slog.Debug("camera frame rejected", "err", err)
	}
	return mode, changed
}

// FrameFromHands converts detector output into an engine frame. The engine
// classifies the hands itself.
func FrameFromHands(hands []hand.Landmarks) engine.Frame {
	f := engine.Frame{Hands: make([]engine.Hand, len(hands))}
	for i := range hands {
		f.Hands[i] = engine.Hand{
			Keypoints:  hands[i].Points[:],
			Handedness: hands[i].Handedness,
		}
	}
	return f
}
