// Package logging builds the zap loggers shared by the service, CLI and demo binaries.
package logging

import (
	"context"
	"strings"
	"sync"

	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
)

type ctxKey string

const ctxKeyJobID ctxKey = "job_id"

var (
	mu     sync.RWMutex
	global = zap.NewNop()
)

// New builds a logger. level is one of debug, info, warn, error (default info).
// development switches to the human-readable console encoder.
func New(level string, development bool) (*zap.Logger, error) {
	var config zap.Config
	if development {
		config = zap.NewDevelopmentConfig()
	} else {
		config = zap.NewProductionConfig()
	}

	lvl := zapcore.InfoLevel
	if level != "" {
		if err := lvl.UnmarshalText([]byte(strings.ToLower(level))); err != nil {
			return nil, err
		}
	}
	config.Level = zap.NewAtomicLevelAt(lvl)

	return config.Build()
}

// SetGlobal replaces the process-wide logger returned by L
func SetGlobal(l *zap.Logger) {
	if l == nil {
		l = zap.NewNop()
	}
	mu.Lock()
	global = l
	mu.Unlock()
}

// L returns the process-wide logger (a no-op logger until SetGlobal is called)
func L() *zap.Logger {
	mu.RLock()
	defer mu.RUnlock()
	return global
}

// WithJobID stores a job id in the context
func WithJobID(ctx context.Context, jobID string) context.Context {
	return context.WithValue(ctx, ctxKeyJobID, jobID)
}

// FromContext returns the global logger annotated with the job id, if present
func FromContext(ctx context.Context) *zap.Logger {
	jobID, _ := ctx.Value(ctxKeyJobID).(string)
	if jobID == "" {
		return L()
	}
	return L().With(zap.String("job_id", jobID))
}
