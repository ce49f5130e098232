package cabinet

import (
	"sync"

	"github.com/rs/zerolog"
)

var (
	loggerMu      sync.RWMutex
	currentLogger = zerolog.Nop()
)

// SetLogger replaces the package logger. The default discards everything.
// Consumer selection and resolution are logged at debug level, cast
// fallbacks at trace level.
func SetLogger(l zerolog.Logger) {
	loggerMu.Lock()
	currentLogger = l.With().Str("component", "cabinet").Logger()
	loggerMu.Unlock()
}

func logger() *zerolog.Logger {
	loggerMu.RLock()
	l := currentLogger
	loggerMu.RUnlock()
	return &l
}
