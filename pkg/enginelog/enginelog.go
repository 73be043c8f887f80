// Package enginelog wraps the standard library logger with the small set of
// level prefixes the engine's subsystems use, matching the teacher's own
// ambient-logging idiom (plain stdlib log.Logger, not a structured logging
// framework).
package enginelog

import (
	"io"
	"log"
	"os"
)

// Level is a coarse logging level.
type Level int

const (
	LevelDebug Level = iota
	LevelInfo
	LevelWarn
	LevelError
)

func parseLevel(s string) Level {
	switch s {
	case "debug":
		return LevelDebug
	case "warn":
		return LevelWarn
	case "error":
		return LevelError
	default:
		return LevelInfo
	}
}

// Logger is a leveled wrapper around *log.Logger.
type Logger struct {
	level Level
	out   *log.Logger
}

// New creates a Logger writing to w with the given minimum level ("debug",
// "info", "warn", "error").
func New(w io.Writer, levelName, prefix string) *Logger {
	if w == nil {
		w = os.Stderr
	}
	return &Logger{
		level: parseLevel(levelName),
		out:   log.New(w, "["+prefix+"] ", log.LstdFlags),
	}
}

func (l *Logger) logf(level Level, tag, format string, args ...interface{}) {
	if level < l.level {
		return
	}
	l.out.Printf(tag+" "+format, args...)
}

// Debugf logs at debug level.
func (l *Logger) Debugf(format string, args ...interface{}) { l.logf(LevelDebug, "[debug]", format, args...) }

// Infof logs at info level.
func (l *Logger) Infof(format string, args ...interface{}) { l.logf(LevelInfo, "[info]", format, args...) }

// Warnf logs at warn level.
func (l *Logger) Warnf(format string, args ...interface{}) { l.logf(LevelWarn, "[warn]", format, args...) }

// Errorf logs at error level.
func (l *Logger) Errorf(format string, args ...interface{}) { l.logf(LevelError, "[error]", format, args...) }

// Recalc returns a logger scoped to the recalculation loop.
func (l *Logger) Recalc() *scoped { return &scoped{l, "[recalc]"} }

// Action returns a logger scoped to the action pipeline.
func (l *Logger) Action() *scoped { return &scoped{l, "[action]"} }

// Lookup returns a logger scoped to the lookup-index subsystem.
func (l *Logger) Lookup() *scoped { return &scoped{l, "[lookup]"} }

type scoped struct {
	l   *Logger
	tag string
}

func (s *scoped) Debugf(format string, args ...interface{}) { s.l.logf(LevelDebug, s.tag, format, args...) }
func (s *scoped) Infof(format string, args ...interface{})  { s.l.logf(LevelInfo, s.tag, format, args...) }
func (s *scoped) Warnf(format string, args ...interface{})  { s.l.logf(LevelWarn, s.tag, format, args...) }
func (s *scoped) Errorf(format string, args ...interface{}) { s.l.logf(LevelError, s.tag, format, args...) }
