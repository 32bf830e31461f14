package zerologlog

import (
	"github.com/goliatone/go-scopecache/pkg/logging"
	"github.com/rs/zerolog"
)

// Logger adapts a zerolog.Logger to logging.Logger.
type Logger struct{ Z zerolog.Logger }

func New(z zerolog.Logger) Logger { return Logger{Z: z} }

func (l Logger) Debug(msg string, f logging.Fields) { emit(l.Z.Debug(), msg, f) }
func (l Logger) Info(msg string, f logging.Fields)  { emit(l.Z.Info(), msg, f) }
func (l Logger) Warn(msg string, f logging.Fields)  { emit(l.Z.Warn(), msg, f) }
func (l Logger) Error(msg string, f logging.Fields) { emit(l.Z.Error(), msg, f) }

func emit(e *zerolog.Event, msg string, f logging.Fields) {
	if len(f) > 0 {
		e = e.Fields(map[string]any(f))
	}
	e.Msg(msg)
}
