package pusher

import (
	"sync"

	"go.uber.org/zap"
)

// logger is the package-level sink for connection, auth, and dispatch
// diagnostics. It defaults to a no-op logger so embedding applications do
// not see output unless they opt in with SetLogger.
var (
	loggerMu sync.RWMutex
	logger   = zap.NewNop().Sugar()
)

// SetLogger replaces the package-level logger. Passing nil restores the
// no-op default.
func SetLogger(l *zap.SugaredLogger) {
	loggerMu.Lock()
	defer loggerMu.Unlock()
	if l == nil {
		l = zap.NewNop().Sugar()
	}
	logger = l
}

func log() *zap.SugaredLogger {
	loggerMu.RLock()
	defer loggerMu.RUnlock()
	return logger
}
