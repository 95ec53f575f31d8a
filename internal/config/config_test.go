package config_test

import (
	"os"
	"path/filepath"
	"strings"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ayusman/yubimoji/internal/compose"
	"github.com/ayusman/yubimoji/internal/config"
	"github.com/ayusman/yubimoji/internal/hand"
	"github.com/ayusman/yubimoji/internal/motion"
)

func TestDefault_IsValid(t *testing.T) {
	t.Parallel()
	require.NoError(t, config.Validate(config.Default()))
}

func TestLoadFromReader_Empty(t *testing.T) {
	t.Parallel()
	cfg, err := config.LoadFromReader(strings.NewReader(""))
	require.NoError(t, err)
	assert.Equal(t, config.Default().Session, cfg.Session)
}

func TestLoadFromReader_Overrides(t *testing.T) {
	t.Parallel()
	yaml := `
server:
  addr: ":9000"
  log_level: debug
session:
  dominant: Left
  delete_window: 100ms
  idle_clear: 300ms
tables:
  labels: [あ, い, DEL]
  tokens:
    delete_one: [DEL]
  modifiers:
    - {base: 0, modifier: right, result: 1}
    - {base: 1, modifier: 3, result: 0}
  merges:
    - {last: あ, next: 1, result: ぁ}
`
	cfg, err := config.LoadFromReader(strings.NewReader(yaml))
	require.NoError(t, err)

	assert.Equal(t, ":9000", cfg.Server.Addr)
	assert.Equal(t, config.LogDebug, cfg.Server.LogLevel)
	assert.Equal(t, 100*time.Millisecond, cfg.Session.DeleteWindow.Std())
	assert.Equal(t, 300*time.Millisecond, cfg.Session.IdleClear.Std())
	assert.Equal(t, 400*time.Millisecond, cfg.Session.Hold.Std(), "unset fields keep defaults")
	assert.Equal(t, motion.Right, cfg.Tables.Modifiers[0].Modifier)
	assert.Equal(t, motion.Up, cfg.Tables.Modifiers[1].Modifier)

	ec := cfg.EngineConfig()
	assert.Equal(t, hand.Left, ec.Dominant)
	assert.Equal(t, 100*time.Millisecond, ec.DeleteWindow)
	assert.Equal(t, 1.05, ec.Motion.EndSlack)

	tables, err := cfg.LoadTables()
	require.NoError(t, err)
	assert.Equal(t, compose.TokenDeleteOne, tables.Labels.Lookup(2).Token)
	assert.Equal(t, 1, tables.Modifiers.Resolve(0, motion.Right))
	r, ok := tables.Merges.Lookup("あ", 1)
	assert.True(t, ok)
	assert.Equal(t, "ぁ", r)
}

func TestLoadTables_RejectsMergeOnControlToken(t *testing.T) {
	t.Parallel()
	yaml := `
tables:
  labels: [あ, DELETE_ONE, NO_OP]
  merges:
    - {last: あ, next: 1, result: ぁ}
    - {last: あ, next: 2, result: ぁ}
    - {last: あ, next: 87, result: ぁ}
`
	cfg, err := config.LoadFromReader(strings.NewReader(yaml))
	require.NoError(t, err)

	_, err = cfg.LoadTables()
	require.Error(t, err)
	for _, want := range []string{"tables.merges[0]", "tables.merges[1]", "tables.merges[2]"} {
		assert.Contains(t, err.Error(), want)
	}
}

func TestLoadFromReader_UnknownField(t *testing.T) {
	t.Parallel()
	_, err := config.LoadFromReader(strings.NewReader("session:\n  hold_time: 1s\n"))
	require.Error(t, err)
	assert.Contains(t, err.Error(), "hold_time")
}

func TestDuration_RejectsBareNumbers(t *testing.T) {
	t.Parallel()
	_, err := config.LoadFromReader(strings.NewReader("session:\n  hold: 400\n"))
	require.Error(t, err)
	assert.Contains(t, err.Error(), "duration")

	_, err = config.LoadFromReader(strings.NewReader("session:\n  hold: soon\n"))
	assert.Error(t, err)
}

func TestValidate_CollectsAllErrors(t *testing.T) {
	t.Parallel()
	yaml := `
server:
  log_level: loud
session:
  dominant: both
  dead_zone: 1s
classifier:
  kind: neural
tables:
  labels_file: labels.csv
  labels: [a]
  modifiers:
    - {base: 0, modifier: none, result: 1}
`
	_, err := config.LoadFromReader(strings.NewReader(yaml))
	require.Error(t, err)
	for _, want := range []string{
		"server.log_level",
		"session.dominant",
		"session.dead_zone",
		"classifier.kind",
		"mutually exclusive",
		"tables.modifiers",
	} {
		assert.Contains(t, err.Error(), want)
	}
}

func TestDecode_TOML(t *testing.T) {
	t.Parallel()
	doc := `
[session]
dominant = "right"
idle_clear = "3s"

[tables]
labels = ["a", "b"]

[[tables.modifiers]]
base = 0
modifier = "down"
result = 1
`
	cfg, err := config.Decode(strings.NewReader(doc), config.FormatTOML)
	require.NoError(t, err)
	assert.Equal(t, 3*time.Second, cfg.Session.IdleClear.Std())
	require.Len(t, cfg.Tables.Modifiers, 1)
	assert.Equal(t, motion.Down, cfg.Tables.Modifiers[0].Modifier)

	_, err = config.Decode(strings.NewReader("[session]\nnope = 1\n"), config.FormatTOML)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "session.nope")
}

func TestFormatOf(t *testing.T) {
	t.Parallel()
	assert.Equal(t, config.FormatTOML, config.FormatOf("a/b.TOML"))
	assert.Equal(t, config.FormatYAML, config.FormatOf("a/b.yaml"))
	assert.Equal(t, config.FormatYAML, config.FormatOf("config"))
}

func writeFile(t *testing.T, path, content string) {
	t.Helper()
	require.NoError(t, os.WriteFile(path, []byte(content), 0o644))
}

func TestLoad_LabelsFileRelativeToConfig(t *testing.T) {
	dir := t.TempDir()
	writeFile(t, filepath.Join(dir, "labels.csv"), "あ\nい\nNO_OP\n")
	writeFile(t, filepath.Join(dir, "yubimoji.yaml"), "tables:\n  labels_file: labels.csv\n")

	cfg, err := config.Load(filepath.Join(dir, "yubimoji.yaml"))
	require.NoError(t, err)
	assert.Equal(t, filepath.Join(dir, "labels.csv"), cfg.LabelsPath())

	labels, err := cfg.LoadLabels()
	require.NoError(t, err)
	assert.Equal(t, 3, labels.Len())
	assert.Equal(t, "い", labels.Text(1))
	assert.Equal(t, compose.TokenNoOp, labels.Lookup(2).Token)
}

func TestLoadLabels_NoneConfigured(t *testing.T) {
	t.Parallel()
	_, err := config.Default().LoadTables()
	assert.ErrorIs(t, err, config.ErrNoLabels)
}

func TestApplyEnv(t *testing.T) {
	t.Parallel()
	env := map[string]string{
		"YUBIMOJI_ADDR":      ":7000",
		"YUBIMOJI_LOG_LEVEL": "WARN",
		"YUBIMOJI_DB":        "/tmp/y.db",
	}
	cfg := config.Default()
	cfg.ApplyEnv(func(k string) (string, bool) {
		v, ok := env[k]
		return v, ok
	})
	assert.Equal(t, ":7000", cfg.Server.Addr)
	assert.Equal(t, config.LogWarn, cfg.Server.LogLevel)
	assert.Equal(t, "/tmp/y.db", cfg.Store.Path)
	assert.Empty(t, cfg.Tables.LabelsFile)
}

func TestPath_ExpandsHome(t *testing.T) {
	t.Parallel()
	home, err := os.UserHomeDir()
	if err != nil {
		t.Skip("no home directory")
	}
	assert.Equal(t, filepath.Join(home, ".yubimoji", "x.db"), config.Default().Path("~/.yubimoji/x.db"))
	assert.Equal(t, "/abs/file", config.Default().Path("/abs/file"))
	assert.Empty(t, config.Default().Path(""))
}

func TestWatcher_ReloadsOnLabelsChange(t *testing.T) {
	dir := t.TempDir()
	labelsPath := filepath.Join(dir, "labels.csv")
	configPath := filepath.Join(dir, "yubimoji.yaml")
	writeFile(t, labelsPath, "a\nb\n")
	writeFile(t, configPath, "tables:\n  labels_file: labels.csv\n")

	var changes atomic.Int32
	w, err := config.NewWatcher(configPath, func(old, new *config.Config) {
		changes.Add(1)
	}, config.WithDebounce(10*time.Millisecond))
	require.NoError(t, err)
	defer w.Stop()

	writeFile(t, labelsPath, "a\nb\nc\n")
	require.Eventually(t, func() bool { return changes.Load() >= 1 }, 5*time.Second, 10*time.Millisecond)

	labels, err := w.Current().LoadLabels()
	require.NoError(t, err)
	assert.Equal(t, 3, labels.Len())
}

func TestWatcher_IgnoresInvalidEdit(t *testing.T) {
	dir := t.TempDir()
	configPath := filepath.Join(dir, "yubimoji.yaml")
	writeFile(t, configPath, "server:\n  addr: \":9000\"\n")

	var changes atomic.Int32
	w, err := config.NewWatcher(configPath, func(old, new *config.Config) {
		changes.Add(1)
	}, config.WithDebounce(10*time.Millisecond))
	require.NoError(t, err)
	defer w.Stop()

	writeFile(t, configPath, "server:\n  log_level: loud\n")
	time.Sleep(200 * time.Millisecond)
	assert.Zero(t, changes.Load())
	assert.Equal(t, ":9000", w.Current().Server.Addr)

	writeFile(t, configPath, "server:\n  addr: \":9001\"\n")
	require.Eventually(t, func() bool { return w.Current().Server.Addr == ":9001" }, 5*time.Second, 10*time.Millisecond)
}
