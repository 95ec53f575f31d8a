package app

import (
	"context"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ayusman/yubimoji/internal/capture"
	"github.com/ayusman/yubimoji/internal/config"
	"github.com/ayusman/yubimoji/internal/detector"
	"github.com/ayusman/yubimoji/internal/engine"
	"github.com/ayusman/yubimoji/internal/hand"
	"github.com/ayusman/yubimoji/internal/observe"
	"github.com/ayusman/yubimoji/internal/store"
)

type fakeClock struct {
	mu  sync.Mutex
	now time.Time
}

func newFakeClock() *fakeClock {
	return &fakeClock{now: time.Date(2026, 1, 1, 9, 0, 0, 0, time.UTC)}
}

func (c *fakeClock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.now
}

func (c *fakeClock) Advance(d time.Duration) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.now = c.now.Add(d)
}

func testConfig() *config.Config {
	cfg := config.Default()
	cfg.Tables.Labels = []string{"あ", "い", "う", "DELETE_ONE"}
	cfg.Classifier.Kind = config.ClassifierNone
	cfg.Capture.Enabled = false
	return cfg
}

func newTestStore(t *testing.T) *store.Store {
	t.Helper()
	st, err := store.New(filepath.Join(t.TempDir(), "test.db"))
	require.NoError(t, err)
	t.Cleanup(func() { st.Close() })
	return st
}

func newTestApp(t *testing.T, cfg *config.Config, st *store.Store, clock *fakeClock) *App {
	t.Helper()
	a, err := New(Options{
		Config:   cfg,
		Store:    st,
		Camera:   capture.NewMockCamera(nil, false),
		Detector: detector.NewMockDetector(),
		Clock:    clock.Now,
	})
	require.NoError(t, err)
	return a
}

func rightHand(shapeID int) engine.Hand {
	lm := hand.ThumbsUp()
	return engine.Hand{Keypoints: lm.Points[:], Handedness: hand.Right, ShapeID: &shapeID}
}

// spell holds shapeID for two frames 500ms apart, which commits its label.
func spell(t *testing.T, p *Processor, clock *fakeClock, shapeID int) engine.Result {
	t.Helper()
	f := engine.Frame{Hands: []engine.Hand{rightHand(shapeID)}}
	_, err := p.ProcessFrame(context.Background(), observe.SourceAPI, f)
	require.NoError(t, err)
	clock.Advance(500 * time.Millisecond)
	r, err := p.ProcessFrame(context.Background(), observe.SourceAPI, f)
	require.NoError(t, err)
	clock.Advance(10 * time.Millisecond)
	return r
}

func findTranscript(t *testing.T, st *store.Store, reason string) *store.Transcript {
	t.Helper()
	all, err := st.Transcripts().List(0)
	require.NoError(t, err)
	for _, tr := range all {
		if tr.Reason == reason {
			return tr
		}
	}
	return nil
}

func TestNew_RequiresConfig(t *testing.T) {
	_, err := New(Options{})
	assert.Error(t, err)
}

func TestNew_RequiresLabels(t *testing.T) {
	cfg := testConfig()
	cfg.Tables.Labels = nil

	_, err := New(Options{Config: cfg, Camera: capture.NewMockCamera(nil, false), Detector: detector.NewMockDetector()})
	assert.ErrorIs(t, err, config.ErrNoLabels)
}

func TestApp_SpellsConfiguredLabels(t *testing.T) {
	clock := newFakeClock()
	a := newTestApp(t, testConfig(), nil, clock)

	spell(t, a.Processor(), clock, 0)
	r := spell(t, a.Processor(), clock, 1)

	assert.Equal(t, "あい", r.Text)
	assert.Nil(t, a.Classifier(), "shape ids come from the caller")
}

func TestApp_StoredSymbolsReplaceLabels(t *testing.T) {
	st := newTestStore(t)
	require.NoError(t, st.Symbols().Create(&store.Symbol{ID: "ka", ShapeID: 0, Label: "か"}))

	clock := newFakeClock()
	a := newTestApp(t, testConfig(), st, clock)

	r := spell(t, a.Processor(), clock, 0)
	assert.Equal(t, "か", r.Text)
}

func TestApp_Reload(t *testing.T) {
	st := newTestStore(t)
	clock := newFakeClock()
	a := newTestApp(t, testConfig(), st, clock)

	before := spell(t, a.Processor(), clock, 0)
	require.Equal(t, "あ", before.Text)

	require.NoError(t, st.Symbols().Create(&store.Symbol{ID: "ki", ShapeID: 0, Label: "き"}))
	require.NoError(t, a.Reload(context.Background()))

	after := a.Processor().Snapshot()
	assert.NotEqual(t, before.SessionID, after.SessionID)
	assert.Empty(t, after.Text)

	tr := findTranscript(t, st, store.ReasonReload)
	require.NotNil(t, tr, "text lost by the reload should be archived")
	assert.Equal(t, "あ", tr.Text)
	assert.Equal(t, before.SessionID, tr.SessionID)

	r := spell(t, a.Processor(), clock, 0)
	assert.Equal(t, "き", r.Text)
}

func TestApp_Reset(t *testing.T) {
	st := newTestStore(t)
	clock := newFakeClock()
	a := newTestApp(t, testConfig(), st, clock)

	spell(t, a.Processor(), clock, 2)
	r, err := a.Processor().Reset(context.Background())
	require.NoError(t, err)
	assert.Empty(t, r.Text)

	tr := findTranscript(t, st, store.ReasonReset)
	require.NotNil(t, tr)
	assert.Equal(t, "う", tr.Text)
}

func TestApp_SetEnabledPersists(t *testing.T) {
	st := newTestStore(t)
	cfg := testConfig()
	cfg.Capture.Enabled = true

	a := newTestApp(t, cfg, st, newFakeClock())
	require.True(t, a.IsEnabled())

	a.SetEnabled(false)
	assert.False(t, a.IsEnabled())
	assert.False(t, st.Settings().Bool(store.SettingCaptureEnabled, true))

	again := newTestApp(t, cfg, st, newFakeClock())
	assert.False(t, again.IsEnabled(), "setting should survive a restart")
}

func TestApp_ApplyConfig(t *testing.T) {
	t.Run("new labels restart the session", func(t *testing.T) {
		clock := newFakeClock()
		a := newTestApp(t, testConfig(), nil, clock)
		eng := a.Processor().Engine()
		spell(t, a.Processor(), clock, 0)

		cfg := testConfig()
		cfg.Tables.Labels = []string{"ア", "イ"}
		require.NoError(t, a.ApplyConfig(context.Background(), cfg))

		assert.Same(t, eng, a.Processor().Engine(), "tuning unchanged, engine kept")
		assert.Same(t, cfg, a.Config())
		r := spell(t, a.Processor(), clock, 1)
		assert.Equal(t, "イ", r.Text)
	})

	t.Run("new timing replaces the engine", func(t *testing.T) {
		clock := newFakeClock()
		a := newTestApp(t, testConfig(), nil, clock)
		eng := a.Processor().Engine()

		cfg := testConfig()
		cfg.Session.Hold = config.Duration(800 * time.Millisecond)
		require.NoError(t, a.ApplyConfig(context.Background(), cfg))

		assert.NotSame(t, eng, a.Processor().Engine())
		assert.Equal(t, 800*time.Millisecond, a.Processor().Engine().Config().Timing.Hold)

		r := spell(t, a.Processor(), clock, 0)
		assert.Empty(t, r.Text, "500ms no longer reaches the hold time")
	})

	t.Run("invalid labels keep the running session", func(t *testing.T) {
		clock := newFakeClock()
		a := newTestApp(t, testConfig(), nil, clock)
		id := a.Processor().Snapshot().SessionID

		cfg := testConfig()
		cfg.Tables.Labels = nil
		assert.Error(t, a.ApplyConfig(context.Background(), cfg))
		assert.Equal(t, id, a.Processor().Snapshot().SessionID)
	})

	t.Run("invalid tuning keeps the running configuration", func(t *testing.T) {
		clock := newFakeClock()
		old := testConfig()
		a := newTestApp(t, old, nil, clock)
		eng := a.Processor().Engine()

		cfg := testConfig()
		cfg.Session.Dominant = "both"
		cfg.Session.Hold = config.Duration(800 * time.Millisecond)
		assert.Error(t, a.ApplyConfig(context.Background(), cfg))

		assert.Same(t, old, a.Config())
		assert.Same(t, eng, a.Processor().Engine())
	})

	t.Run("classifier settings rebuild the classifier", func(t *testing.T) {
		clock := newFakeClock()
		a := newTestApp(t, testConfig(), nil, clock)
		require.Nil(t, a.Classifier())

		cfg := testConfig()
		cfg.Classifier.Kind = config.ClassifierTemplates
		cfg.Session.UnknownID = 50
		require.NoError(t, a.ApplyConfig(context.Background(), cfg))

		require.NotNil(t, a.Classifier())
		assert.Equal(t, 50, a.Classifier().UnknownID())
		assert.Equal(t, 50, a.Processor().Engine().Config().UnknownID)
		assert.Same(t, cfg, a.Config())
	})
}

func writeRecorderPlugin(t *testing.T) (dir, log string) {
	t.Helper()
	dir = t.TempDir()
	pluginDir := filepath.Join(dir, "recorder")
	require.NoError(t, os.MkdirAll(pluginDir, 0755))
	require.NoError(t, os.WriteFile(filepath.Join(pluginDir, "plugin.json"), []byte(`{
  "name": "recorder",
  "version": "1.0.0",
  "executable": "plugin.sh",
  "actions": ["type_text", "backspace", "clear"]
}`), 0644))
	require.NoError(t, os.WriteFile(filepath.Join(pluginDir, "plugin.sh"), []byte(`#!/bin/sh
cat >> log.jsonl
echo >> log.jsonl
echo '{"success":true}'
`), 0755))
	return dir, filepath.Join(pluginDir, "log.jsonl")
}

func TestApp_RunDeliversTextAndArchivesOnStop(t *testing.T) {
	pluginDir, log := writeRecorderPlugin(t)
	st := newTestStore(t)
	cfg := testConfig()
	cfg.Output.PluginDir = pluginDir
	cfg.Output.Plugin = "recorder"

	clock := newFakeClock()
	a := newTestApp(t, cfg, st, clock)
	require.NotNil(t, a.output)

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- a.Run(ctx) }()

	spell(t, a.Processor(), clock, 0)

	assert.Eventually(t, func() bool {
		data, err := os.ReadFile(log)
		return err == nil && strings.Contains(string(data), `"text":"あ"`)
	}, 5*time.Second, 20*time.Millisecond)

	cancel()
	select {
	case err := <-done:
		require.NoError(t, err)
	case <-time.After(5 * time.Second):
		t.Fatal("Run did not return after cancel")
	}

	tr := findTranscript(t, st, store.ReasonStop)
	require.NotNil(t, tr)
	assert.Equal(t, "あ", tr.Text)
}

func TestApp_MissingPluginIsNotFatal(t *testing.T) {
	cfg := testConfig()
	cfg.Output.PluginDir = t.TempDir()
	cfg.Output.Plugin = "absent"

	a := newTestApp(t, cfg, nil, newFakeClock())
	assert.Nil(t, a.output)
}
