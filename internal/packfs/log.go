package packfs

import (
	"fmt"
	"sync"
)

// Avoid importing the log type information unnecessarily; an interface
// costs little and keeps this package usable without *log.Logger.
type log_Logger interface {
	Output(calldepth int, s string) error
}

var globalLoggerLock sync.Mutex
var globalLogger log_Logger

// SetLogger registers the *log.Logger object pack switches and staging
// events are reported to. Pass nil to silence.
func SetLogger(logger log_Logger) {
	globalLoggerLock.Lock()
	globalLogger = logger
	globalLoggerLock.Unlock()
}

func logf(format string, args ...interface{}) {
	globalLoggerLock.Lock()
	defer globalLoggerLock.Unlock()
	if globalLogger != nil {
		globalLogger.Output(2, fmt.Sprintf(format, args...))
	}
}
