package logger

import (
	"context"
	"fmt"
	"os"
	"sync"
)

type ctxKey struct{}

// WithContext attaches l to ctx. The request middleware stores a logger
// tagged with the request id this way.
func WithContext(ctx context.Context, l Logger) context.Context {
	return context.WithValue(ctx, ctxKey{}, l)
}

// FromContext returns the logger attached to ctx, or Default when ctx
// carries none.
func FromContext(ctx context.Context) Logger {
	if l, ok := ctx.Value(ctxKey{}).(Logger); ok {
		return l
	}
	return Default()
}

var (
	defaultMu  sync.RWMutex
	defaultLog Logger

	stderrOnce sync.Once
	stderrLog  Logger
)

// SetDefault registers the process logger returned by Default. Nil restores
// the built-in warn-level stderr logger.
func SetDefault(l Logger) {
	defaultMu.Lock()
	defaultLog = l
	defaultMu.Unlock()
}

// Default returns the logger registered with SetDefault, if any.
func Default() Logger {
	defaultMu.RLock()
	l := defaultLog
	defaultMu.RUnlock()
	if l != nil {
		return l
	}
	return stderrLogger()
}

func stderrLogger() Logger {
	stderrOnce.Do(func() {
		l, err := New(Config{Level: "warn", OutputPaths: []string{"stderr"}})
		if err != nil {
			fmt.Fprintf(os.Stderr, "webpulse: stderr logger unavailable: %v\n", err)
			l = NewNop()
		}
		stderrLog = l
	})
	return stderrLog
}
