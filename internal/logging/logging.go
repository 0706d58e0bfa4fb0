// Package logging provides structured logging for the portal service.
// It wraps logrus and carries request-scoped identifiers (trace ID, user ID,
// role) through context so every log line can be correlated.
package logging

import (
	"context"
	"io"
	"os"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/sirupsen/logrus"
)

// contextKey is a custom type for context keys.
type contextKey string

const (
	// TraceIDKey is the context key for the request trace ID.
	TraceIDKey contextKey = "trace_id"
	// UserIDKey is the context key for the authenticated user ID.
	UserIDKey contextKey = "user_id"
	// RoleKey is the context key for the authenticated user role.
	RoleKey contextKey = "role"
)

// Logger wraps a logrus logger with context-aware field helpers.
type Logger struct {
	log *logrus.Logger
}

// Config configures the logger.
type Config struct {
	// Level is one of debug, info, warn, error. Defaults to info.
	Level string
	// Format is "json" or "text". Defaults to json.
	Format string
	// Output defaults to stdout.
	Output io.Writer
}

// New creates a logger from config.
func New(cfg Config) *Logger {
	log := logrus.New()

	if cfg.Output != nil {
		log.SetOutput(cfg.Output)
	} else {
		log.SetOutput(os.Stdout)
	}

	level, err := logrus.ParseLevel(strings.ToLower(cfg.Level))
	if err != nil {
		level = logrus.InfoLevel
	}
	log.SetLevel(level)

	if strings.ToLower(cfg.Format) == "text" {
		log.SetFormatter(&logrus.TextFormatter{FullTimestamp: true})
	} else {
		log.SetFormatter(&logrus.JSONFormatter{})
	}

	return &Logger{log: log}
}

// NewDefault creates a logger with default settings.
func NewDefault() *Logger {
	return New(Config{})
}

// Entry is a log entry with accumulated fields.
type Entry struct {
	entry *logrus.Entry
}

// WithContext returns an entry annotated with identifiers from ctx.
func (l *Logger) WithContext(ctx context.Context) *Entry {
	fields := logrus.Fields{}
	if traceID := GetTraceID(ctx); traceID != "" {
		fields["trace_id"] = traceID
	}
	if userID := GetUserID(ctx); userID != "" {
		fields["user_id"] = userID
	}
	if role := GetRole(ctx); role != "" {
		fields["role"] = role
	}
	return &Entry{entry: l.log.WithFields(fields)}
}

// WithFields returns an entry with the given fields.
func (l *Logger) WithFields(fields map[string]interface{}) *Entry {
	return &Entry{entry: l.log.WithFields(logrus.Fields(fields))}
}

// WithError returns an entry with the error field set.
func (l *Logger) WithError(err error) *Entry {
	return &Entry{entry: l.log.WithError(err)}
}

// Debug logs at debug level.
func (l *Logger) Debug(args ...interface{}) { l.log.Debug(args...) }

// Info logs at info level.
func (l *Logger) Info(args ...interface{}) { l.log.Info(args...) }

// Warn logs at warn level.
func (l *Logger) Warn(args ...interface{}) { l.log.Warn(args...) }

// Error logs at error level.
func (l *Logger) Error(args ...interface{}) { l.log.Error(args...) }

// Fatal logs at fatal level and exits.
func (l *Logger) Fatal(args ...interface{}) { l.log.Fatal(args...) }

// WithFields adds fields to the entry.
func (e *Entry) WithFields(fields map[string]interface{}) *Entry {
	return &Entry{entry: e.entry.WithFields(logrus.Fields(fields))}
}

// WithError adds an error field to the entry.
func (e *Entry) WithError(err error) *Entry {
	return &Entry{entry: e.entry.WithError(err)}
}

// Debug logs at debug level.
func (e *Entry) Debug(args ...interface{}) { e.entry.Debug(args...) }

// Info logs at info level.
func (e *Entry) Info(args ...interface{}) { e.entry.Info(args...) }

// Warn logs at warn level.
func (e *Entry) Warn(args ...interface{}) { e.entry.Warn(args...) }

// Error logs at error level.
func (e *Entry) Error(args ...interface{}) { e.entry.Error(args...) }

// Fatal logs at fatal level and exits.
func (e *Entry) Fatal(args ...interface{}) { e.entry.Fatal(args...) }

// LogSecurityEvent logs a security-relevant event at warn level.
func (l *Logger) LogSecurityEvent(ctx context.Context, event string, details map[string]interface{}) {
	l.WithContext(ctx).WithFields(map[string]interface{}{
		"security_event": event,
		"details":        details,
	}).Warn("Security event")
}

// LogRequest logs one completed HTTP request.
func (l *Logger) LogRequest(ctx context.Context, method, path string, status int, duration time.Duration) {
	l.WithContext(ctx).WithFields(map[string]interface{}{
		"method":      method,
		"path":        path,
		"status":      status,
		"duration_ms": duration.Milliseconds(),
	}).Info("HTTP request")
}

// NewTraceID generates a fresh trace ID.
func NewTraceID() string {
	return uuid.NewString()
}

// WithTraceID returns a context carrying the given trace ID, generating one
// if id is empty.
func WithTraceID(ctx context.Context, id string) context.Context {
	if id == "" {
		id = uuid.NewString()
	}
	return context.WithValue(ctx, TraceIDKey, id)
}

// GetTraceID extracts the trace ID from context.
func GetTraceID(ctx context.Context) string {
	if v, ok := ctx.Value(TraceIDKey).(string); ok {
		return v
	}
	return ""
}

// GetUserID extracts the user ID from context.
func GetUserID(ctx context.Context) string {
	if v, ok := ctx.Value(UserIDKey).(string); ok {
		return v
	}
	return ""
}

// GetRole extracts the user role from context.
func GetRole(ctx context.Context) string {
	if v, ok := ctx.Value(RoleKey).(string); ok {
		return v
	}
	return ""
}
