// Package app wires the recognition engine to the camera, the store and the
// text outputs of the yubimoji fingerspelling system.
package app

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"gocv.io/x/gocv"
	"golang.org/x/sync/errgroup"

	"github.com/ayusman/yubimoji/internal/capture"
	"github.com/ayusman/yubimoji/internal/classifier"
	"github.com/ayusman/yubimoji/internal/config"
	"github.com/ayusman/yubimoji/internal/detector"
	"github.com/ayusman/yubimoji/internal/engine"
	"github.com/ayusman/yubimoji/internal/observe"
	"github.com/ayusman/yubimoji/internal/plugin"
	"github.com/ayusman/yubimoji/internal/store"
)

// FramePublisher receives every camera frame, typically the MJPEG preview.
type FramePublisher interface {
	Publish(frame *gocv.Mat)
}

// Options holds the dependencies of an App. Only Config is required.
type Options struct {
	Config *config.Config
	// Store persists symbols, rules, transcripts and settings.
	Store   *store.Store
	Metrics *observe.Metrics
	// Camera overrides the device described by Config.Capture.
	Camera capture.Camera
	// Detector overrides the MediaPipe detector.
	Detector detector.Detector
	// Clock overrides the engine clock.
	Clock func() time.Time
}

// App is the main application: it owns the engine session and feeds it from
// the camera pipeline.
type App struct {
	store      *store.Store
	metrics    *observe.Metrics
	clock      func() time.Time
	classifier *classifier.TemplateClassifier
	trainer    *classifier.Trainer
	processor  *Processor
	output     *OutputSink

	camera   capture.Camera
	motion   *capture.MotionDetector
	gate     *capture.Gate
	detector detector.Detector

	mu      sync.RWMutex
	cfg     *config.Config
	enabled bool
	preview FramePublisher

	reloadMu sync.Mutex
}

// New builds the application from opts.
func New(opts Options) (*App, error) {
	cfg := opts.Config
	if cfg == nil {
		return nil, errors.New("app: config is required")
	}

	a := &App{
		cfg:     cfg,
		store:   opts.Store,
		metrics: opts.Metrics,
		clock:   opts.Clock,
		trainer: classifier.NewTrainer(cfg.Classifier.DepthScale),
		camera:  opts.Camera,
		motion:  capture.NewMotionDetector(cfg.Capture.MotionThreshold),
		gate: capture.NewGate(capture.GateConfig{
			IdleFPS:     cfg.Capture.IdleFPS,
			ActiveFPS:   cfg.Capture.ActiveFPS,
			IdleTimeout: cfg.Capture.IdleTimeout.Std(),
		}),
		detector: opts.Detector,
		enabled:  cfg.Capture.Enabled,
	}
	if a.store != nil {
		a.enabled = a.store.Settings().Bool(store.SettingCaptureEnabled, cfg.Capture.Enabled)
	}

	syms, err := LoadSymbols(cfg, a.store)
	if err != nil {
		return nil, fmt.Errorf("app: load symbols: %w", err)
	}
	if a.classifier, err = newClassifier(cfg, syms.Templates); err != nil {
		return nil, fmt.Errorf("app: %w", err)
	}

	eng, err := a.newEngine(cfg, syms.Tables, a.classifier)
	if err != nil {
		return nil, fmt.Errorf("app: %w", err)
	}
	a.processor = NewProcessor(eng, a.metrics)

	if a.store != nil {
		a.processor.AddSink(NewTranscriptSink(a.store.Transcripts()))
	}
	if cfg.Output.Plugin != "" {
		out, err := a.openOutput(cfg)
		if err != nil {
			slog.Warn("output plugin unavailable", "plugin", cfg.Output.Plugin, "err", err)
		} else {
			a.output = NewOutputSink(out)
			a.processor.AddSink(a.output)
		}
	}

	if a.camera == nil {
		a.camera = capture.NewCamera(capture.Options{
			DeviceID: cfg.Capture.CameraID,
			Width:    cfg.Capture.Width,
			Height:   cfg.Capture.Height,
			FPS:      cfg.Capture.IdleFPS,
			Mirror:   cfg.Capture.Mirror,
		})
	}
	if a.detector == nil {
		dcfg := detector.DefaultConfig()
		dcfg.ScriptPath = cfg.Path(cfg.Capture.ScriptPath)
		if mp, err := detector.NewMediaPipeDetector(dcfg); err == nil {
			a.detector = mp
			slog.Info("using MediaPipe hand detection")
		} else {
			slog.Warn("MediaPipe not available, using mock detector", "err", err)
			a.detector = detector.NewMockDetector()
		}
	}

	slog.Info("app ready",
		"labels", syms.Tables.Labels.Len(),
		"templates", len(syms.Templates),
		"session", eng.SessionID(),
	)
	return a, nil
}

// newClassifier returns the template classifier cfg asks for, or nil when
// frames carry their own shape ids.
func newClassifier(cfg *config.Config, templates []*classifier.Template) (*classifier.TemplateClassifier, error) {
	if cfg.Classifier.Kind != config.ClassifierTemplates {
		return nil, nil
	}
	c := classifier.NewTemplateClassifier(cfg.Session.UnknownID, cfg.Classifier.MaxDistance)
	if err := c.Replace(templates); err != nil {
		return nil, fmt.Errorf("load templates: %w", err)
	}
	return c, nil
}

func (a *App) newEngine(cfg *config.Config, tables engine.Tables, tc *classifier.TemplateClassifier) (*engine.Engine, error) {
	var c classifier.Classifier
	if tc != nil {
		c = tc
	}
	opts := []engine.Option{engine.WithLogger(slog.Default())}
	if a.clock != nil {
		opts = append(opts, engine.WithClock(a.clock))
	}
	return engine.New(cfg.EngineConfig(), tables, c, opts...)
}

func (a *App) openOutput(cfg *config.Config) (*plugin.Output, error) {
	mgr := plugin.NewManager(cfg.Path(cfg.Output.PluginDir))
	if err := mgr.Discover(); err != nil {
		return nil, fmt.Errorf("discover plugins: %w", err)
	}
	p, err := mgr.Get(cfg.Output.Plugin)
	if err != nil {
		return nil, err
	}
	var onCall plugin.CallFunc
	if a.metrics != nil {
		onCall = a.metrics.RecordPluginCall
	}
	return plugin.NewOutput(plugin.NewExecutor(cfg.Output.Timeout.Std()), p, onCall), nil
}

// Processor returns the frame processor shared by every input.
func (a *App) Processor() *Processor { return a.processor }

// Trainer returns the template trainer used for recorded samples.
func (a *App) Trainer() *classifier.Trainer { return a.trainer }

// Classifier returns the template classifier, or nil when callers supply
// shape ids.
func (a *App) Classifier() *classifier.TemplateClassifier {
	a.mu.RLock()
	defer a.mu.RUnlock()
	return a.classifier
}

// Config returns the active configuration.
func (a *App) Config() *config.Config {
	a.mu.RLock()
	defer a.mu.RUnlock()
	return a.cfg
}

// SetPreview registers p to receive camera frames.
func (a *App) SetPreview(p FramePublisher) {
	a.mu.Lock()
	defer a.mu.Unlock()
	a.preview = p
}

// SetEnabled turns camera recognition on or off and remembers the choice.
func (a *App) SetEnabled(enabled bool) {
	a.mu.Lock()
	a.enabled = enabled
	a.mu.Unlock()

	if a.store != nil {
		if err := a.store.Settings().SetBool(store.SettingCaptureEnabled, enabled); err != nil {
			slog.Warn("persist capture setting", "err", err)
		}
	}
	slog.Info("camera recognition toggled", "enabled", enabled)
}

// IsEnabled reports whether camera frames are being recognised.
func (a *App) IsEnabled() bool {
	a.mu.RLock()
	defer a.mu.RUnlock()
	return a.enabled
}

// Reload rebuilds the tables and templates from the configuration and the
// store, then starts a new session over them. The previous session's text
// is archived by the transcript sink.
func (a *App) Reload(ctx context.Context) error {
	a.reloadMu.Lock()
	defer a.reloadMu.Unlock()

	syms, err := LoadSymbols(a.Config(), a.store)
	if err != nil {
		return fmt.Errorf("reload: %w", err)
	}
	return a.restart(ctx, syms)
}

// ApplyConfig switches to cfg after the config file changed. A change of
// session tuning or classifier settings replaces the engine and the
// classifier; anything else restarts the session over the new tables.
// Camera, server and output settings take effect on the next start. When the
// new tables, classifier or engine cannot be built the running session and
// configuration are kept.
func (a *App) ApplyConfig(ctx context.Context, cfg *config.Config) error {
	a.reloadMu.Lock()
	defer a.reloadMu.Unlock()

	syms, err := LoadSymbols(cfg, a.store)
	if err != nil {
		return fmt.Errorf("apply config: %w", err)
	}

	old := a.Config()
	if old.EngineConfig() == cfg.EngineConfig() && old.Classifier == cfg.Classifier {
		if err := a.restart(ctx, syms); err != nil {
			return fmt.Errorf("apply config: %w", err)
		}
		a.commitConfig(cfg, a.Classifier())
		return nil
	}

	clf, err := newClassifier(cfg, syms.Templates)
	if err != nil {
		return fmt.Errorf("apply config: %w", err)
	}
	eng, err := a.newEngine(cfg, syms.Tables, clf)
	if err != nil {
		return fmt.Errorf("apply config: %w", err)
	}

	a.commitConfig(cfg, clf)
	r := a.processor.Replace(ctx, eng)
	observe.Logger(ctx).Info("session tuning changed", "session", r.SessionID)
	return nil
}

func (a *App) commitConfig(cfg *config.Config, clf *classifier.TemplateClassifier) {
	a.mu.Lock()
	a.cfg = cfg
	a.classifier = clf
	a.mu.Unlock()

	a.trainer.SetDepthScale(cfg.Classifier.DepthScale)
	a.motion.SetThreshold(cfg.Capture.MotionThreshold)
}

func (a *App) restart(ctx context.Context, syms Symbols) error {
	if clf := a.Classifier(); clf != nil {
		if err := clf.Replace(syms.Templates); err != nil {
			return fmt.Errorf("replace templates: %w", err)
		}
	}
	r, err := a.processor.Restart(ctx, syms.Tables)
	if err != nil {
		return fmt.Errorf("restart session: %w", err)
	}
	observe.Logger(ctx).Info("symbols reloaded",
		"labels", syms.Tables.Labels.Len(),
		"templates", len(syms.Templates),
		"session", r.SessionID,
	)
	return nil
}

// Run drives the camera pipeline and the output plugin until ctx is done,
// then publishes the final session state and releases the devices.
func (a *App) Run(ctx context.Context) error {
	g, gctx := errgroup.WithContext(ctx)

	if a.output != nil {
		g.Go(func() error { return a.output.Run(gctx) })
	}
	if a.Config().Capture.Enabled {
		g.Go(func() error { return a.runPipeline(gctx) })
	}

	err := g.Wait()

	a.processor.Stop(context.WithoutCancel(ctx))
	a.motion.Close()
	if cerr := a.detector.Close(); cerr != nil {
		slog.Warn("close detector", "err", cerr)
	}
	slog.Info("app stopped")
	return err
}
