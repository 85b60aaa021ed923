package mark

import (
	"time"

	"pkt.systems/pslog"
)

// Option configures a Registry.
type Option func(*Registry)

// WithClock sets the time source used for command start dates and for
// finishing without an explicit end date.
func WithClock(now func() time.Time) Option {
	return func(r *Registry) {
		if now != nil {
			r.now = now
		}
	}
}

// WithLogger sets the logger used for lifecycle and eviction messages.
func WithLogger(logger pslog.Logger) Option {
	return func(r *Registry) {
		if logger != nil {
			r.logger = logger
		}
	}
}

// WithEvictHook registers a function called with the final view of every
// mark evicted by a trim. The hook must not call back into the registry.
func WithEvictHook(fn func(View)) Option {
	return func(r *Registry) {
		r.onEvict = fn
	}
}

// WithMaxCapturedOutput caps the captured output kept per command mark.
// When the cap is reached the oldest record is dropped. Zero means unbounded.
func WithMaxCapturedOutput(n int) Option {
	return func(r *Registry) {
		if n >= 0 {
			r.maxOutput = n
		}
	}
}
