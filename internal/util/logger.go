package util

import (
	"fmt"
	"log/slog"
	"strings"
)

// Logger wraps slog and provides printf style methods for libraries that
// report through format strings.
type Logger struct {
	slogLogger *slog.Logger
}

// GetCompatLogger returns a printf style logger tagged with component.
func GetCompatLogger(component string) *Logger {
	return &Logger{
		slogLogger: GetLogger().With("component", component),
	}
}

// Debugf logs at debug level
func (l *Logger) Debugf(format string, v ...interface{}) {
	if IsVerbose() {
		l.slogLogger.Debug(message(format, v...))
	}
}

// Errorf logs at error level
func (l *Logger) Errorf(format string, v ...interface{}) {
	l.slogLogger.Error(message(format, v...))
}

// Warnf logs at warn level
func (l *Logger) Warnf(format string, v ...interface{}) {
	l.slogLogger.Warn(message(format, v...))
}

// Infof logs at info level
func (l *Logger) Infof(format string, v ...interface{}) {
	l.slogLogger.Info(message(format, v...))
}

// message formats and drops the trailing newline library lines carry.
func message(format string, v ...interface{}) string {
	if len(v) == 0 {
		return strings.TrimRight(format, "\r\n")
	}
	return strings.TrimRight(fmt.Sprintf(format, v...), "\r\n")
}
