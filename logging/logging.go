// Package logging wraps github.com/joeycumines/logiface, backed by
// github.com/joeycumines/izerolog (a github.com/rs/zerolog adapter), the
// way the teacher repo's logiface-zerolog package wires the two together.
// Every component in this module takes a *Logger rather than writing to
// stdout directly.
package logging

import (
	"io"
	"os"

	"github.com/joeycumines/izerolog"
	"github.com/joeycumines/logiface"
	"github.com/rs/zerolog"
)

// Event is this module's logiface event type: a thin alias over the
// izerolog event, matching the teacher's convention of exposing the
// backend's concrete event type rather than hiding it behind another
// layer of interface.
type Event = izerolog.Event

// Logger is a bound logiface.Logger[*Event], ready for Info()/Debug()/
// Err() chains.
type Logger = logiface.Logger[*Event]

// Option configures New.
type Option func(*options)

type options struct {
	writer io.Writer
	level  zerolog.Level
	debug  bool
}

// WithWriter sets the underlying zerolog writer (defaults to os.Stderr).
func WithWriter(w io.Writer) Option {
	return func(o *options) { o.writer = w }
}

// WithDebug lowers the minimum level to debug, matching general.debug
// from the TOML configuration.
func WithDebug(debug bool) Option {
	return func(o *options) { o.debug = debug }
}

// New constructs a component logger, named via a "component" field so
// every log line is attributable to the subsystem that emitted it
// (pulse, axis, movement, fsm, listener, ...).
func New(component string, opts ...Option) *Logger {
	o := options{writer: os.Stderr, level: zerolog.InfoLevel}
	for _, opt := range opts {
		opt(&o)
	}
	if o.debug {
		o.level = zerolog.DebugLevel
	}

	z := zerolog.New(o.writer).
		Level(o.level).
		With().
		Timestamp().
		Str("component", component).
		Logger()

	return logiface.New[*Event](izerolog.WithZerolog(z))
}
