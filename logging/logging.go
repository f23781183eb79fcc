// Package logging provides standardized structured logging helpers shared across
// the rudpcore packages. It wraps logrus with a small builder that keeps the
// package/function identity attached to every line, matching the field
// conventions used throughout the rest of the module.
package logging

import (
	"fmt"
	"runtime"
	"strings"

	"github.com/sirupsen/logrus"
)

// Helper accumulates structured fields for a single logical operation and
// flushes them through logrus at the requested level.
type Helper struct {
	pkg      string
	function string
	fields   logrus.Fields
}

// NewLogger creates a Helper scoped to pkg (e.g. "manager", "demux") and
// function (the calling function's name).
func NewLogger(pkg, function string) *Helper {
	return &Helper{
		pkg:      pkg,
		function: function,
		fields: logrus.Fields{
			"package":  pkg,
			"function": function,
		},
	}
}

// WithCaller attaches the caller's file:line to the log entry.
func (l *Helper) WithCaller() *Helper {
	if pc, file, line, ok := runtime.Caller(1); ok {
		if fn := runtime.FuncForPC(pc); fn != nil {
			name := fn.Name()
			if idx := strings.LastIndex(name, "/"); idx >= 0 {
				name = name[idx+1:]
			}
			l.fields["caller"] = fmt.Sprintf("%s:%d", file, line)
			l.fields["caller_func"] = name
		}
	}
	return l
}

// WithField adds a single field.
func (l *Helper) WithField(key string, value interface{}) *Helper {
	l.fields[key] = value
	return l
}

// WithFields merges additional fields.
func (l *Helper) WithFields(fields logrus.Fields) *Helper {
	for k, v := range fields {
		l.fields[k] = v
	}
	return l
}

// WithError attaches error context.
func (l *Helper) WithError(err error, operation string) *Helper {
	l.fields["error"] = err.Error()
	l.fields["operation"] = operation
	return l
}

// Entry logs function entry at debug level.
func (l *Helper) Entry(message string) {
	logrus.WithFields(l.fields).Debug("enter: " + message)
}

// Debug logs a debug message.
func (l *Helper) Debug(message string) {
	logrus.WithFields(l.fields).Debug(message)
}

// Info logs an info message.
func (l *Helper) Info(message string) {
	logrus.WithFields(l.fields).Info(message)
}

// Verbose logs a fine-grained trace message. The demultiplexer policy uses
// this level for routing decisions that are expected, high-volume, and not
// actionable on their own.
func (l *Helper) Verbose(message string) {
	logrus.WithFields(l.fields).Trace(message)
}

// Warn logs a warning message.
func (l *Helper) Warn(message string) {
	logrus.WithFields(l.fields).Warn(message)
}

// Error logs an error message.
func (l *Helper) Error(message string) {
	logrus.WithFields(l.fields).Error(message)
}

// IDPreview returns a short hex preview of an identity-like byte slice
// (node ids, public keys) suitable for log fields without leaking the
// full value into logs.
func IDPreview(data []byte) string {
	if len(data) == 0 {
		return "nil"
	}
	n := 6
	if len(data) < n {
		n = len(data)
	}
	preview := fmt.Sprintf("%x", data[:n])
	if len(data) > n {
		preview += "..."
	}
	return preview
}
