// Package-scope structured logging, grounded on the teacher's own
// github.com/joeycumines/logiface generic logging framework, instantiated
// against github.com/joeycumines/stumpy's JSON event implementation — the
// same backend the corpus's own example tests exercise
// (logiface-stumpy/example_test.go). A Logger with no writer attached is a
// genuine no-op: logiface.Logger.canWrite() is false until one is
// configured, so every call site elsewhere in this package is safe to
// leave unconditional.
package fiber

import (
	"github.com/joeycumines/logiface"
	"github.com/joeycumines/stumpy"
)

// Logger is the type used throughout this module for structured logging:
// the generic logiface.Logger instantiated for stumpy's concrete Event
// type, matching how the rest of the corpus wires a logiface backend.
type Logger = logiface.Logger[*stumpy.Event]

// newNoopLogger returns a Logger with no writer attached, which silently
// discards every log call — the default until a caller supplies one via
// Config.Logger / WithLogger.
func newNoopLogger() *Logger {
	return logiface.New[*stumpy.Event]()
}

// defaultGlobalLogger is the process-wide fallback used by components
// created through Default()/Install() without an explicit Config.Logger.
var defaultGlobalLogger = newNoopLogger()
