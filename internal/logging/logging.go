// Package logging provides the component-tagged logger used by the SDK's
// soft-failure paths. Output goes through a standard library *log.Logger so
// host applications can redirect it; logging is disabled unless the enabled
// gate reports true.
package logging

import (
	"fmt"
	"log"
)

// Logger writes tagged, leveled log lines when enabled.
type Logger struct {
	tag     string
	enabled func() bool
	sink    *log.Logger
}

// New creates a Logger for the given component tag. If enabled is nil the
// logger stays silent; if sink is nil the process default logger is used.
func New(tag string, enabled func() bool, sink *log.Logger) *Logger {
	if sink == nil {
		sink = log.Default()
	}
	return &Logger{tag: tag, enabled: enabled, sink: sink}
}

// WithTag returns a Logger sharing the gate and sink under a new tag.
func (l *Logger) WithTag(tag string) *Logger {
	return &Logger{tag: tag, enabled: l.enabled, sink: l.sink}
}

// Debugf logs a debug-level line.
func (l *Logger) Debugf(format string, args ...interface{}) {
	l.logf("DEBUG", format, args...)
}

// Infof logs an info-level line.
func (l *Logger) Infof(format string, args ...interface{}) {
	l.logf("INFO", format, args...)
}

// Errorf logs an error-level line.
func (l *Logger) Errorf(format string, args ...interface{}) {
	l.logf("ERROR", format, args...)
}

func (l *Logger) logf(level, format string, args ...interface{}) {
	if l == nil || l.enabled == nil || !l.enabled() {
		return
	}
	l.sink.Printf("[Pulse:%s] %s: %s", l.tag, level, fmt.Sprintf(format, args...))
}
