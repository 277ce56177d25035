package tuta

import (
	"os"
	"sync/atomic"

	"github.com/rs/zerolog"
)

// Logger is the narrow diagnostics sink the client writes to. Tests can
// replace it with SetLogger.
type Logger interface {
	Log(msg string)
	LogError(label string, err error)
}

var verbose atomic.Bool

// SetVerbose toggles verbose diagnostics. Off by default; when off, Log
// calls are dropped and only errors are written.
func SetVerbose(v bool) {
	verbose.Store(v)
}

type zerologSink struct {
	zl zerolog.Logger
}

func (s *zerologSink) Log(msg string) {
	if !verbose.Load() {
		return
	}
	s.zl.Debug().Msg(msg)
}

func (s *zerologSink) LogError(label string, err error) {
	s.zl.Error().Err(err).Msg(label)
}

func newStderrLogger() Logger {
	zl := zerolog.New(zerolog.ConsoleWriter{Out: os.Stderr}).With().Timestamp().Logger()
	return &zerologSink{zl: zl}
}

var logger Logger = newStderrLogger()

// SetLogger replaces the process-wide diagnostics sink. Passing nil
// restores the default stderr logger.
func SetLogger(l Logger) {
	if l == nil {
		logger = newStderrLogger()
		return
	}
	logger = l
}
