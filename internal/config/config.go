package config

import (
	"fmt"
	"math"
	"os"
	"strings"
	"time"

	"github.com/dshills/termmark/internal/config/loader"
)

// Config is the resolved termmark configuration.
type Config struct {
	Scrollback ScrollbackConfig
	Marks      MarksConfig
	Logging    LoggingConfig
	Script     ScriptConfig

	// Source is the file the config was read from, empty if none.
	Source string
}

// ScrollbackConfig controls the line buffer.
type ScrollbackConfig struct {
	// MaxLines bounds the buffer. Lines beyond it are trimmed oldest first.
	MaxLines int
}

// MarksConfig controls the mark registry.
type MarksConfig struct {
	// MaxCapturedOutput caps captured output records per command; 0 means
	// no cap.
	MaxCapturedOutput int
}

// LoggingConfig controls the logger.
type LoggingConfig struct {
	Level  string // trace, debug, info, warn or error
	Format string // json or console
}

// ScriptConfig controls the Lua host.
type ScriptConfig struct {
	// Timeout bounds a script run; 0 disables the limit.
	Timeout time.Duration
}

// Defaults returns the built-in configuration.
func Defaults() Config {
	return Config{
		Scrollback: ScrollbackConfig{MaxLines: 10000},
		Logging:    LoggingConfig{Level: "info", Format: "json"},
		Script:     ScriptConfig{Timeout: 5 * time.Second},
	}
}

// defaultMap returns Defaults in the generic map form loaders produce.
func defaultMap() map[string]any {
	d := Defaults()
	return map[string]any{
		"scrollback": map[string]any{"maxLines": int64(d.Scrollback.MaxLines)},
		"marks":      map[string]any{"maxCapturedOutput": int64(d.Marks.MaxCapturedOutput)},
		"logging":    map[string]any{"level": d.Logging.Level, "format": d.Logging.Format},
		"script":     map[string]any{"timeout": d.Script.Timeout.String()},
	}
}

// Validate checks every setting and returns the first problem found,
// wrapping ErrInvalidConfig.
func (c Config) Validate() error {
	if c.Scrollback.MaxLines <= 0 {
		return fmt.Errorf("%w: scrollback.maxLines must be positive, got %d", ErrInvalidConfig, c.Scrollback.MaxLines)
	}
	if c.Marks.MaxCapturedOutput < 0 {
		return fmt.Errorf("%w: marks.maxCapturedOutput must not be negative, got %d", ErrInvalidConfig, c.Marks.MaxCapturedOutput)
	}
	switch strings.ToLower(c.Logging.Level) {
	case "trace", "debug", "info", "warn", "warning", "error":
	default:
		return fmt.Errorf("%w: logging.level %q", ErrInvalidConfig, c.Logging.Level)
	}
	switch strings.ToLower(c.Logging.Format) {
	case "json", "console":
	default:
		return fmt.Errorf("%w: logging.format %q", ErrInvalidConfig, c.Logging.Format)
	}
	if c.Script.Timeout < 0 {
		return fmt.Errorf("%w: script.timeout must not be negative, got %s", ErrInvalidConfig, c.Script.Timeout)
	}
	return nil
}

// String renders the config in TOML form for display.
func (c Config) String() string {
	var b strings.Builder
	fmt.Fprintf(&b, "[scrollback]\nmaxLines = %d\n\n", c.Scrollback.MaxLines)
	fmt.Fprintf(&b, "[marks]\nmaxCapturedOutput = %d\n\n", c.Marks.MaxCapturedOutput)
	fmt.Fprintf(&b, "[logging]\nlevel = %q\nformat = %q\n\n", c.Logging.Level, c.Logging.Format)
	fmt.Fprintf(&b, "[script]\ntimeout = %q\n", c.Script.Timeout.String())
	return b.String()
}

// Option configures Load.
type Option func(*options)

type options struct {
	fs      loader.FileSystem
	path    string
	prefix  string
	environ []string
	useEnv  bool
}

// WithFile reads settings from path. A missing file is not an error.
func WithFile(path string) Option {
	return func(o *options) {
		o.path = path
	}
}

// WithFS reads the config file from fsys.
func WithFS(fsys loader.FileSystem) Option {
	return func(o *options) {
		o.fs = fsys
	}
}

// WithEnv overlays variables from environ instead of the process
// environment.
func WithEnv(environ []string) Option {
	return func(o *options) {
		o.environ = environ
	}
}

// WithEnvPrefix changes the environment variable prefix.
func WithEnvPrefix(prefix string) Option {
	return func(o *options) {
		o.prefix = prefix
	}
}

// WithoutEnv disables the environment overlay.
func WithoutEnv() Option {
	return func(o *options) {
		o.useEnv = false
	}
}

// Load resolves defaults, the optional file and the environment into a
// validated Config.
func Load(opts ...Option) (Config, error) {
	o := options{
		fs:     loader.DefaultFS(),
		prefix: loader.DefaultEnvPrefix,
		useEnv: true,
	}
	for _, opt := range opts {
		opt(&o)
	}

	merged := defaultMap()

	if o.path != "" {
		fl, err := loader.NewFileLoaderWithFS(o.fs, o.path)
		if err != nil {
			return Config{}, fmt.Errorf("%w: %v", ErrInvalidConfig, err)
		}
		data, err := fl.Load()
		if err != nil {
			return Config{}, err
		}
		merged = loader.DeepMerge(merged, data)
	}

	if o.useEnv {
		environ := o.environ
		if environ == nil {
			environ = os.Environ()
		}
		data, err := loader.NewEnvLoaderFrom(o.prefix, environ).Load()
		if err != nil {
			return Config{}, err
		}
		merged = loader.DeepMerge(merged, data)
	}

	cfg, err := decode(merged)
	if err != nil {
		return Config{}, err
	}
	cfg.Source = o.path
	if err := cfg.Validate(); err != nil {
		return Config{}, err
	}
	return cfg, nil
}

// decode converts a merged map into a Config.
func decode(m map[string]any) (Config, error) {
	var cfg Config
	var err error

	if cfg.Scrollback.MaxLines, err = getInt(m, "scrollback.maxLines"); err != nil {
		return Config{}, err
	}
	if cfg.Marks.MaxCapturedOutput, err = getInt(m, "marks.maxCapturedOutput"); err != nil {
		return Config{}, err
	}
	if cfg.Logging.Level, err = getString(m, "logging.level"); err != nil {
		return Config{}, err
	}
	if cfg.Logging.Format, err = getString(m, "logging.format"); err != nil {
		return Config{}, err
	}
	if cfg.Script.Timeout, err = getDuration(m, "script.timeout"); err != nil {
		return Config{}, err
	}
	return cfg, nil
}

func getInt(m map[string]any, path string) (int, error) {
	v, _ := loader.Lookup(m, path)
	switch val := v.(type) {
	case int64:
		if val > math.MaxInt32 || val < math.MinInt32 {
			return 0, fmt.Errorf("%w: %s out of range: %d", ErrInvalidConfig, path, val)
		}
		return int(val), nil
	case int:
		return val, nil
	case float64:
		if val != math.Trunc(val) {
			return 0, fmt.Errorf("%w: %s must be an integer, got %v", ErrTypeMismatch, path, val)
		}
		return int(val), nil
	default:
		return 0, fmt.Errorf("%w: %s must be an integer, got %T", ErrTypeMismatch, path, v)
	}
}

func getString(m map[string]any, path string) (string, error) {
	v, _ := loader.Lookup(m, path)
	s, ok := v.(string)
	if !ok {
		return "", fmt.Errorf("%w: %s must be a string, got %T", ErrTypeMismatch, path, v)
	}
	return s, nil
}

// getDuration accepts a duration string such as "1.5s", or 0 for none.
func getDuration(m map[string]any, path string) (time.Duration, error) {
	v, _ := loader.Lookup(m, path)
	switch val := v.(type) {
	case string:
		d, err := time.ParseDuration(val)
		if err != nil {
			return 0, fmt.Errorf("%w: %s: %v", ErrInvalidConfig, path, err)
		}
		return d, nil
	case time.Duration:
		return val, nil
	case int64:
		if val != 0 {
			return 0, fmt.Errorf("%w: %s needs a unit, got %d", ErrInvalidConfig, path, val)
		}
		return 0, nil
	default:
		return 0, fmt.Errorf("%w: %s must be a duration string, got %T", ErrTypeMismatch, path, v)
	}
}
