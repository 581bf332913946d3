package observ

import (
	"io"
	"os"
	"sync"
	"time"

	"github.com/rs/zerolog"
)

var (
	mu     sync.RWMutex
	logger = zerolog.New(os.Stdout).With().Timestamp().Logger()
)

// Init configures the process-wide logger. Level is one of zerolog's level
// strings ("debug", "info", ...); unknown levels fall back to info.
func Init(level string, w io.Writer) {
	lvl, err := zerolog.ParseLevel(level)
	if err != nil {
		lvl = zerolog.InfoLevel
	}
	if w == nil {
		w = os.Stdout
	}
	zerolog.TimeFieldFormat = time.RFC3339Nano
	mu.Lock()
	logger = zerolog.New(w).Level(lvl).With().Timestamp().Logger()
	mu.Unlock()
}

// Logger returns the configured logger for callers that want zerolog's
// typed field API directly.
func Logger() zerolog.Logger {
	mu.RLock()
	defer mu.RUnlock()
	return logger
}

func Log(event string, kv map[string]any) {
	emit(zerolog.InfoLevel, event, kv)
}

func Debug(event string, kv map[string]any) {
	emit(zerolog.DebugLevel, event, kv)
}

func Warn(event string, kv map[string]any) {
	emit(zerolog.WarnLevel, event, kv)
}

func Error(event string, err error, kv map[string]any) {
	mu.RLock()
	l := logger
	mu.RUnlock()
	e := l.Error().Err(err)
	for k, v := range kv {
		e = e.Interface(k, v)
	}
	e.Msg(event)
}

func emit(lvl zerolog.Level, event string, kv map[string]any) {
	mu.RLock()
	l := logger
	mu.RUnlock()
	e := l.WithLevel(lvl)
	for k, v := range kv {
		e = e.Interface(k, v)
	}
	e.Msg(event)
}
