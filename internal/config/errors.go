package config

import (
	"errors"

	"github.com/dshills/termmark/internal/config/loader"
)

// Errors returned by configuration operations.
var (
	// ErrInvalidConfig indicates a setting has an unusable value.
	ErrInvalidConfig = errors.New("invalid config")

	// ErrTypeMismatch indicates a setting holds the wrong type.
	ErrTypeMismatch = errors.New("type mismatch")

	// ErrWatcherClosed indicates the watcher was already closed.
	ErrWatcherClosed = errors.New("watcher closed")
)

// ParseError represents an error while parsing a configuration file.
type ParseError = loader.ParseError
