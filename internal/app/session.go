package app

import (
	"context"
	"io"
	"sync"
	"sync/atomic"
	"time"

	"pkt.systems/pslog"

	"github.com/dshills/termmark/internal/config"
	"github.com/dshills/termmark/internal/logging"
	"github.com/dshills/termmark/internal/mark"
	"github.com/dshills/termmark/internal/script"
	"github.com/dshills/termmark/internal/scrollback"
)

// Session owns one scrollback buffer and the marks anchored to it.
//
// The registry is single-writer; Session serializes access with its mutex,
// which scripts and config reloads both take. Session implements
// sync.Locker so callers driving the buffer directly can do the same.
type Session struct {
	mu sync.Mutex

	cfg      config.Config
	history  *scrollback.History
	registry *mark.Registry
	logger   pslog.Logger

	evicted    atomic.Uint64
	scriptRuns atomic.Uint64

	closed bool
}

// Option configures a Session.
type Option func(*sessionOptions)

type sessionOptions struct {
	logger pslog.Logger
	clock  func() time.Time
}

// WithLogger sets the session logger.
func WithLogger(l pslog.Logger) Option {
	return func(o *sessionOptions) {
		o.logger = l
	}
}

// WithClock sets the clock used for command start and end dates.
func WithClock(now func() time.Time) Option {
	return func(o *sessionOptions) {
		o.clock = now
	}
}

// NewSession builds a session from a validated config.
func NewSession(cfg config.Config, opts ...Option) (*Session, error) {
	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	o := sessionOptions{logger: logging.Discard()}
	for _, opt := range opts {
		opt(&o)
	}

	s := &Session{
		cfg:    cfg,
		logger: logging.Component(o.logger, "session"),
	}

	regOpts := []mark.Option{
		mark.WithLogger(logging.Component(o.logger, "marks")),
		mark.WithMaxCapturedOutput(cfg.Marks.MaxCapturedOutput),
		mark.WithEvictHook(s.onEvict),
	}
	if o.clock != nil {
		regOpts = append(regOpts, mark.WithClock(o.clock))
	}

	s.registry = mark.NewRegistry(regOpts...)
	s.history = scrollback.NewHistory(cfg.Scrollback.MaxLines, s.registry)

	s.logger.Info("session started",
		"maxLines", cfg.Scrollback.MaxLines,
		"maxCapturedOutput", cfg.Marks.MaxCapturedOutput,
	)
	return s, nil
}

// Lock acquires the session lock.
func (s *Session) Lock() { s.mu.Lock() }

// Unlock releases the session lock.
func (s *Session) Unlock() { s.mu.Unlock() }

// History returns the scrollback buffer.
func (s *Session) History() *scrollback.History { return s.history }

// Registry returns the mark registry. Hold the session lock while using it
// if other goroutines share the session.
func (s *Session) Registry() *mark.Registry { return s.registry }

// Config returns the config currently in effect.
func (s *Session) Config() config.Config {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.cfg
}

// ApplyConfig switches to a new config. Shrinking the scrollback trims the
// oldest lines immediately, evicting the marks anchored to them.
func (s *Session) ApplyConfig(cfg config.Config) error {
	if err := cfg.Validate(); err != nil {
		return NewOperationError("apply config", cfg.Source, err)
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	if s.closed {
		return ErrSessionClosed
	}

	dropped := s.history.SetMaxLines(cfg.Scrollback.MaxLines)
	s.registry.SetMaxCapturedOutput(cfg.Marks.MaxCapturedOutput)
	s.cfg = cfg

	s.logger.Info("config applied",
		"source", cfg.Source,
		"maxLines", cfg.Scrollback.MaxLines,
		"dropped", dropped,
		"marks", s.registry.Len(),
	)
	return nil
}

// Watch reloads the config file at path whenever it changes and applies
// it to the session. Close the returned watcher to stop.
func (s *Session) Watch(path string, loadOpts ...config.Option) (*config.Watcher, error) {
	return config.NewWatcher(path, func(cfg config.Config) {
		if err := s.ApplyConfig(cfg); err != nil {
			s.logger.Warn("config reload rejected", "path", path, "err", err)
		}
	},
		config.WithWatcherLogger(logging.Component(s.logger, "config")),
		config.WithLoadOptions(loadOpts...),
	)
}

// NewScript creates a script state bound to this session.
func (s *Session) NewScript(out io.Writer) (*script.State, error) {
	s.mu.Lock()
	timeout := s.cfg.Script.Timeout
	closed := s.closed
	s.mu.Unlock()

	if closed {
		return nil, ErrSessionClosed
	}

	st := script.NewState(
		script.WithTimeout(timeout),
		script.WithOutput(out),
		script.WithLogger(logging.Component(s.logger, "script")),
	)
	if err := st.Bind(script.Env{History: s.history, Registry: s.registry, Lock: s}); err != nil {
		st.Close()
		return nil, err
	}
	return st, nil
}

// RunScript runs the Lua file at path against the session.
func (s *Session) RunScript(ctx context.Context, path string, out io.Writer) error {
	st, err := s.NewScript(out)
	if err != nil {
		return NewOperationError("run", path, err)
	}
	defer st.Close()

	s.scriptRuns.Add(1)
	if err := st.DoFile(ctx, path); err != nil {
		return NewOperationError("run", path, err)
	}
	return nil
}

// Stats is a snapshot of session counters.
type Stats struct {
	Lines      int
	Trimmed    int64
	Marks      int
	Evicted    uint64
	ScriptRuns uint64
}

// Stats returns the current counters.
func (s *Session) Stats() Stats {
	s.mu.Lock()
	defer s.mu.Unlock()
	return Stats{
		Lines:      s.history.Len(),
		Trimmed:    s.history.Trimmed(),
		Marks:      s.registry.Len(),
		Evicted:    s.evicted.Load(),
		ScriptRuns: s.scriptRuns.Load(),
	}
}

// Close ends the session and drops every mark.
func (s *Session) Close() error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.closed {
		return ErrSessionClosed
	}
	s.closed = true
	s.registry.Clear()
	s.logger.Info("session closed", "evicted", s.evicted.Load())
	return nil
}

// onEvict runs inside registry trims.
func (s *Session) onEvict(v mark.View) {
	s.evicted.Add(1)
	s.logger.Debug("mark evicted", "id", v.ID.String(), "kind", v.Kind.String(), "guid", v.GUID)
}
