package logger

import (
	"context"
	"sync"
)

type ctxKey struct{}

var (
	fallbackMu sync.RWMutex
	fallback   = New(nil)
)

// GetDefault returns the process-wide logger used when a context carries none.
func GetDefault() *Logger {
	fallbackMu.RLock()
	defer fallbackMu.RUnlock()
	return fallback
}

// SetDefaultLogger replaces the process-wide logger. Nil is ignored.
func SetDefaultLogger(l *Logger) {
	if l == nil {
		return
	}
	fallbackMu.Lock()
	fallback = l
	fallbackMu.Unlock()
}

// WithContext attaches l to ctx. Request handlers and pipeline steps read it
// back with FromContext so every line carries request, task and step fields.
func (l *Logger) WithContext(ctx context.Context) context.Context {
	return context.WithValue(ctx, ctxKey{}, l)
}

// FromContext returns the logger attached to ctx, or the default logger.
func FromContext(ctx context.Context) *Logger {
	if ctx == nil {
		return GetDefault()
	}
	if l, ok := ctx.Value(ctxKey{}).(*Logger); ok {
		return l
	}
	return GetDefault()
}
