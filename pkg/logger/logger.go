// Package logger provides a process-wide structured logger. It sits
// underneath the literal stdout/stderr lines the CLI prints directly;
// those always go through fmt/os.Stderr, never through here.
package logger

import (
	"os"
	"sync/atomic"

	"go.uber.org/zap"
)

var current atomic.Pointer[zap.SugaredLogger]

// Initialize builds the default logger: info level, or debug level if
// debug is true or COREPACK_DEBUG is set.
func Initialize(debug bool) {
	if !debug {
		_, debug = os.LookupEnv("COREPACK_DEBUG")
	}

	cfg := zap.NewProductionConfig()
	if debug {
		cfg = zap.NewDevelopmentConfig()
		cfg.Level = zap.NewAtomicLevelAt(zap.DebugLevel)
	} else {
		cfg.Level = zap.NewAtomicLevelAt(zap.InfoLevel)
	}
	cfg.DisableStacktrace = !debug

	l, err := cfg.Build()
	if err != nil {
		// Fall back to a no-op logger rather than letting a logging
		// misconfiguration take down the whole shim.
		l = zap.NewNop()
	}
	current.Store(l.Sugar())
}

func get() *zap.SugaredLogger {
	if l := current.Load(); l != nil {
		return l
	}
	Initialize(false)
	return current.Load()
}

func Debugf(format string, args ...any) { get().Debugf(format, args...) }
func Infof(format string, args ...any)  { get().Infof(format, args...) }
func Warnf(format string, args ...any)  { get().Warnf(format, args...) }
func Errorf(format string, args ...any) { get().Errorf(format, args...) }

func Debugw(msg string, kv ...any) { get().Debugw(msg, kv...) }
func Infow(msg string, kv ...any)  { get().Infow(msg, kv...) }
func Warnw(msg string, kv ...any)  { get().Warnw(msg, kv...) }
func Errorw(msg string, kv ...any) { get().Errorw(msg, kv...) }

// Sync flushes any buffered log entries; call from main() before exit.
func Sync() {
	if l := current.Load(); l != nil {
		_ = l.Sync()
	}
}
