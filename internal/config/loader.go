package config

import (
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"

	"github.com/BurntSushi/toml"
	"gopkg.in/yaml.v3"

	"github.com/ayusman/yubimoji/internal/compose"
	"github.com/ayusman/yubimoji/internal/hand"
)

// Format is a configuration file syntax.
type Format string

const (
	FormatYAML Format = "yaml"
	FormatTOML Format = "toml"
)

// FormatOf picks the format from a file extension. Anything other than
// .toml is read as YAML.
func FormatOf(path string) Format {
	if strings.EqualFold(filepath.Ext(path), ".toml") {
		return FormatTOML
	}
	return FormatYAML
}

// Load reads the configuration file at path, applies environment overrides
// and returns a validated [Config]. Relative paths inside the file resolve
// against its directory.
func Load(path string) (*Config, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("config: open %q: %w", path, err)
	}
	defer f.Close()

	cfg, err := decode(f, FormatOf(path))
	if err != nil {
		return nil, fmt.Errorf("config: parse %q: %w", path, err)
	}
	cfg.dir = filepath.Dir(path)
	cfg.ApplyEnv(os.LookupEnv)

	if err := Validate(cfg); err != nil {
		return nil, fmt.Errorf("config: %q: %w", path, err)
	}
	return cfg, nil
}

// LoadFromReader decodes a YAML config from r over the defaults and
// validates the result.
func LoadFromReader(r io.Reader) (*Config, error) {
	return Decode(r, FormatYAML)
}

// Decode reads a config in the given format over the defaults and validates it.
func Decode(r io.Reader, format Format) (*Config, error) {
	cfg, err := decode(r, format)
	if err != nil {
		return nil, err
	}
	if err := Validate(cfg); err != nil {
		return nil, err
	}
	return cfg, nil
}

func decode(r io.Reader, format Format) (*Config, error) {
	cfg := Default()

	switch format {
	case FormatTOML:
		md, err := toml.NewDecoder(r).Decode(cfg)
		if err != nil {
			return nil, fmt.Errorf("config: decode toml: %w", err)
		}
		if undecoded := md.Undecoded(); len(undecoded) > 0 {
			keys := make([]string, len(undecoded))
			for i, k := range undecoded {
				keys[i] = k.String()
			}
			return nil, fmt.Errorf("config: unknown toml keys: %s", strings.Join(keys, ", "))
		}
	default:
		dec := yaml.NewDecoder(r)
		dec.KnownFields(true)
		if err := dec.Decode(cfg); err != nil && !errors.Is(err, io.EOF) {
			return nil, fmt.Errorf("config: decode yaml: %w", err)
		}
	}
	return cfg, nil
}

// ApplyEnv overrides selected fields from YUBIMOJI_* environment variables.
func (c *Config) ApplyEnv(lookup func(string) (string, bool)) {
	if v, ok := lookup("YUBIMOJI_ADDR"); ok && v != "" {
		c.Server.Addr = v
	}
	if v, ok := lookup("YUBIMOJI_LOG_LEVEL"); ok && v != "" {
		c.Server.LogLevel = LogLevel(strings.ToLower(v))
	}
	if v, ok := lookup("YUBIMOJI_DB"); ok && v != "" {
		c.Store.Path = v
	}
	if v, ok := lookup("YUBIMOJI_LABELS"); ok && v != "" {
		c.Tables.LabelsFile = v
	}
}

// Validate checks that cfg contains a coherent set of values.
// It returns a joined error listing all validation failures found.
func Validate(cfg *Config) error {
	var errs []error

	// Server
	if cfg.Server.Addr == "" {
		errs = append(errs, errors.New("server.addr is required"))
	}
	if cfg.Server.LogLevel != "" && !cfg.Server.LogLevel.IsValid() {
		errs = append(errs, fmt.Errorf("server.log_level %q is invalid; valid values: debug, info, warn, error", cfg.Server.LogLevel))
	}

	// Session
	s := cfg.Session
	if _, ok := hand.CanonicalHandedness(s.Dominant); !ok {
		errs = append(errs, fmt.Errorf("session.dominant %q is invalid; valid values: left, right", s.Dominant))
	}
	if s.KeypointCount <= 0 {
		errs = append(errs, fmt.Errorf("session.keypoint_count must be positive, got %d", s.KeypointCount))
	}
	if s.Hold <= 0 {
		errs = append(errs, errors.New("session.hold must be positive"))
	}
	if s.DeadZone < 0 || s.DeadZone >= s.Hold {
		errs = append(errs, fmt.Errorf("session.dead_zone %s must lie in [0, hold)", s.DeadZone))
	}
	if s.DeleteWindow <= 0 {
		errs = append(errs, errors.New("session.delete_window must be positive"))
	}
	if s.IdleClear <= 0 {
		errs = append(errs, errors.New("session.idle_clear must be positive"))
	}

	// Motion
	m := cfg.Motion
	if m.HistorySize < 4 {
		errs = append(errs, fmt.Errorf("motion.history_size must be at least 4, got %d", m.HistorySize))
	}
	if m.Rearm < 0 || m.Unlock < 0 {
		errs = append(errs, errors.New("motion.rearm and motion.unlock must not be negative"))
	}
	if m.MidSlack <= 0 || m.EndSlack <= 0 {
		errs = append(errs, errors.New("motion slack factors must be positive"))
	}

	// Classifier
	switch cfg.Classifier.Kind {
	case ClassifierTemplates, ClassifierNone:
	default:
		errs = append(errs, fmt.Errorf("classifier.kind %q is invalid; valid values: templates, none", cfg.Classifier.Kind))
	}
	if cfg.Classifier.DepthScale <= 0 {
		errs = append(errs, fmt.Errorf("classifier.depth_scale must be positive, got %g", cfg.Classifier.DepthScale))
	}
	if cfg.Classifier.Kind == ClassifierTemplates && cfg.Classifier.MaxDistance <= 0 {
		errs = append(errs, errors.New("classifier.max_distance must be positive"))
	}

	// Tables
	if cfg.Tables.LabelsFile != "" && len(cfg.Tables.Labels) > 0 {
		errs = append(errs, errors.New("tables.labels_file and tables.labels are mutually exclusive"))
	}
	if _, err := compose.NewModifierTable(cfg.Tables.Modifiers); err != nil {
		errs = append(errs, fmt.Errorf("tables.modifiers: %w", err))
	}
	for i, r := range cfg.Tables.Merges {
		if r.Last == "" {
			errs = append(errs, fmt.Errorf("tables.merges[%d].last is required", i))
		}
	}

	// Capture
	if c := cfg.Capture; c.Enabled {
		if c.IdleFPS <= 0 || c.ActiveFPS <= 0 {
			errs = append(errs, errors.New("capture.idle_fps and capture.active_fps must be positive"))
		}
		if c.Width <= 0 || c.Height <= 0 {
			errs = append(errs, fmt.Errorf("capture size %dx%d is invalid", c.Width, c.Height))
		}
	}

	// Store
	if cfg.Store.Path == "" {
		errs = append(errs, errors.New("store.path is required"))
	}

	return errors.Join(errs...)
}
