// Package utils holds small shared helpers, currently the logger.
package utils

import (
	"io"
	"os"

	"github.com/rs/zerolog"
)

// Logger wraps zerolog behind key/value-pair methods so handlers can write
// log.Error("msg", "key", value, ...) without carrying zerolog through the
// call sites.
type Logger struct {
	zl zerolog.Logger
}

func NewLogger() *Logger {
	return NewLoggerTo(os.Stderr)
}

func NewLoggerTo(w io.Writer) *Logger {
	return &Logger{zl: zerolog.New(w).With().Timestamp().Logger()}
}

func (l *Logger) Debug(msg string, kv ...interface{}) { emit(l.zl.Debug(), msg, kv) }
func (l *Logger) Info(msg string, kv ...interface{})  { emit(l.zl.Info(), msg, kv) }
func (l *Logger) Error(msg string, kv ...interface{}) { emit(l.zl.Error(), msg, kv) }

func emit(ev *zerolog.Event, msg string, kv []interface{}) {
	for i := 0; i+1 < len(kv); i += 2 {
		key, ok := kv[i].(string)
		if !ok {
			continue
		}
		ev = ev.Interface(key, kv[i+1])
	}
	ev.Msg(msg)
}
