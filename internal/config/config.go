// Package config defines the yubimoji configuration file and its defaults.
package config

import (
	"fmt"
	"log/slog"
	"time"

	"gopkg.in/yaml.v3"

	"github.com/ayusman/yubimoji/internal/compose"
)

// LogLevel is the minimum level written by the default logger.
type LogLevel string

const (
	LogDebug LogLevel = "debug"
	LogInfo  LogLevel = "info"
	LogWarn  LogLevel = "warn"
	LogError LogLevel = "error"
)

// IsValid reports whether l is a known level.
func (l LogLevel) IsValid() bool {
	switch l {
	case LogDebug, LogInfo, LogWarn, LogError:
		return true
	}
	return false
}

// Level converts l to a slog level. Unknown values map to info.
func (l LogLevel) Level() slog.Level {
	switch l {
	case LogDebug:
		return slog.LevelDebug
	case LogWarn:
		return slog.LevelWarn
	case LogError:
		return slog.LevelError
	}
	return slog.LevelInfo
}

// Duration is a time.Duration written as a Go duration string ("300ms").
type Duration time.Duration

// Std returns d as a time.Duration.
func (d Duration) Std() time.Duration { return time.Duration(d) }

// String formats d like time.Duration.
func (d Duration) String() string { return time.Duration(d).String() }

// MarshalText implements encoding.TextMarshaler.
func (d Duration) MarshalText() ([]byte, error) {
	return []byte(d.String()), nil
}

// UnmarshalText implements encoding.TextUnmarshaler.
func (d *Duration) UnmarshalText(text []byte) error {
	v, err := time.ParseDuration(string(text))
	if err != nil {
		return fmt.Errorf("invalid duration %q: %w", text, err)
	}
	*d = Duration(v)
	return nil
}

// UnmarshalYAML accepts duration strings only; bare integers are rejected
// because their unit would be ambiguous.
func (d *Duration) UnmarshalYAML(value *yaml.Node) error {
	if tag := value.ShortTag(); value.Kind != yaml.ScalarNode || tag == "!!int" || tag == "!!float" {
		return fmt.Errorf("line %d: duration must be a string such as \"300ms\"", value.Line)
	}
	return d.UnmarshalText([]byte(value.Value))
}

// MarshalYAML implements yaml.Marshaler.
func (d Duration) MarshalYAML() (any, error) {
	return d.String(), nil
}

// Config is the root configuration.
type Config struct {
	Server     ServerConfig     `yaml:"server" toml:"server"`
	Session    SessionConfig    `yaml:"session" toml:"session"`
	Motion     MotionConfig     `yaml:"motion" toml:"motion"`
	Classifier ClassifierConfig `yaml:"classifier" toml:"classifier"`
	Tables     TablesConfig     `yaml:"tables" toml:"tables"`
	Capture    CaptureConfig    `yaml:"capture" toml:"capture"`
	Store      StoreConfig      `yaml:"store" toml:"store"`
	Output     OutputConfig     `yaml:"output" toml:"output"`

	// dir is the directory relative paths are resolved against.
	dir string
}

// ServerConfig configures the HTTP surface.
type ServerConfig struct {
	Addr      string   `yaml:"addr" toml:"addr"`
	LogLevel  LogLevel `yaml:"log_level" toml:"log_level"`
	StaticDir string   `yaml:"static_dir" toml:"static_dir"`
	Tray      bool     `yaml:"tray" toml:"tray"`
}

// SessionConfig holds the text commit timings and hand arbitration.
type SessionConfig struct {
	Dominant      string   `yaml:"dominant" toml:"dominant"`
	KeypointCount int      `yaml:"keypoint_count" toml:"keypoint_count"`
	Hold          Duration `yaml:"hold" toml:"hold"`
	DeadZone      Duration `yaml:"dead_zone" toml:"dead_zone"`
	DeleteWindow  Duration `yaml:"delete_window" toml:"delete_window"`
	IdleClear     Duration `yaml:"idle_clear" toml:"idle_clear"`
	UnknownID     int      `yaml:"unknown_id" toml:"unknown_id"`
}

// MotionConfig tunes the directional modifier tracker.
type MotionConfig struct {
	HistorySize int      `yaml:"history_size" toml:"history_size"`
	Rearm       Duration `yaml:"rearm" toml:"rearm"`
	Unlock      Duration `yaml:"unlock" toml:"unlock"`
	MidSlack    float64  `yaml:"mid_slack" toml:"mid_slack"`
	EndSlack    float64  `yaml:"end_slack" toml:"end_slack"`
}

// ClassifierKind selects how base shape ids are produced.
type ClassifierKind string

const (
	// ClassifierTemplates matches hands against trained shape templates.
	ClassifierTemplates ClassifierKind = "templates"
	// ClassifierNone expects callers to supply shape ids with every frame.
	ClassifierNone ClassifierKind = "none"
)

// ClassifierConfig configures the built-in template classifier.
type ClassifierConfig struct {
	Kind        ClassifierKind `yaml:"kind" toml:"kind"`
	MaxDistance float64        `yaml:"max_distance" toml:"max_distance"`
	DepthScale  float64        `yaml:"depth_scale" toml:"depth_scale"`
}

// TablesConfig supplies the symbol data. Labels come from LabelsFile when
// set, otherwise from the inline list.
type TablesConfig struct {
	LabelsFile string                 `yaml:"labels_file" toml:"labels_file"`
	Labels     []string               `yaml:"labels" toml:"labels"`
	Tokens     compose.TokenNames     `yaml:"tokens" toml:"tokens"`
	Modifiers  []compose.ModifierRule `yaml:"modifiers" toml:"modifiers"`
	Merges     []compose.MergeRule    `yaml:"merges" toml:"merges"`
}

// CaptureConfig configures the local camera pipeline.
type CaptureConfig struct {
	Enabled         bool     `yaml:"enabled" toml:"enabled"`
	CameraID        int      `yaml:"camera_id" toml:"camera_id"`
	Width           int      `yaml:"width" toml:"width"`
	Height          int      `yaml:"height" toml:"height"`
	Mirror          bool     `yaml:"mirror" toml:"mirror"`
	IdleFPS         int      `yaml:"idle_fps" toml:"idle_fps"`
	ActiveFPS       int      `yaml:"active_fps" toml:"active_fps"`
	IdleTimeout     Duration `yaml:"idle_timeout" toml:"idle_timeout"`
	MotionThreshold float64  `yaml:"motion_threshold" toml:"motion_threshold"`
	ScriptPath      string   `yaml:"script_path" toml:"script_path"`
}

// StoreConfig locates the SQLite database.
type StoreConfig struct {
	Path string `yaml:"path" toml:"path"`
}

// OutputConfig selects the plugin that receives committed text.
type OutputConfig struct {
	PluginDir string   `yaml:"plugin_dir" toml:"plugin_dir"`
	Plugin    string   `yaml:"plugin" toml:"plugin"`
	Timeout   Duration `yaml:"timeout" toml:"timeout"`
}

// Default returns a complete configuration with every field populated.
func Default() *Config {
	return &Config{
		Server: ServerConfig{
			Addr:     "127.0.0.1:8080",
			LogLevel: LogInfo,
			Tray:     true,
		},
		Session: SessionConfig{
			Dominant:      "right",
			KeypointCount: 21,
			Hold:          Duration(400 * time.Millisecond),
			DeadZone:      Duration(20 * time.Millisecond),
			DeleteWindow:  Duration(300 * time.Millisecond),
			IdleClear:     Duration(3 * time.Second),
			UnknownID:     87,
		},
		Motion: MotionConfig{
			HistorySize: 12,
			Rearm:       Duration(100 * time.Millisecond),
			Unlock:      Duration(100 * time.Millisecond),
			MidSlack:    1.03,
			EndSlack:    1.05,
		},
		Classifier: ClassifierConfig{
			Kind:        ClassifierTemplates,
			MaxDistance: 0.6,
			DepthScale:  1,
		},
		Tables: TablesConfig{
			Tokens: compose.DefaultTokenNames(),
		},
		Capture: CaptureConfig{
			Enabled:         true,
			Width:           960,
			Height:          540,
			Mirror:          true,
			IdleFPS:         5,
			ActiveFPS:       30,
			IdleTimeout:     Duration(2 * time.Second),
			MotionThreshold: 0.01,
		},
		Store: StoreConfig{
			Path: "~/.yubimoji/yubimoji.db",
		},
		Output: OutputConfig{
			PluginDir: "~/.yubimoji/plugins",
			Timeout:   Duration(5 * time.Second),
		},
	}
}
