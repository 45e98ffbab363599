// Package logger is a process-wide structured logging facade.
//
// Library packages log through the package-level functions. Nothing is
// written until Init installs at least one backend, so tests and
// embedded callers stay quiet by default.
package logger

import "sync"

// LoggerInstance is a logging backend.
type LoggerInstance interface {
	Debug(message string, keyvals ...any)
	Info(message string, keyvals ...any)
	Warn(message string, keyvals ...any)
	Error(message string, keyvals ...any)
}

type dispatcher struct {
	instances []LoggerInstance
}

var (
	mu     sync.RWMutex
	global *dispatcher
)

// Init installs the given backends, replacing any previous ones.
func Init(instances ...LoggerInstance) {
	mu.Lock()
	defer mu.Unlock()
	global = &dispatcher{instances: instances}
}

// Reset removes all backends.
func Reset() {
	mu.Lock()
	defer mu.Unlock()
	global = nil
}

func each(fn func(LoggerInstance)) {
	mu.RLock()
	d := global
	mu.RUnlock()
	if d == nil {
		return
	}
	for _, inst := range d.instances {
		fn(inst)
	}
}

// Debug logs at DEBUG level.
func Debug(message string, keyvals ...any) {
	each(func(l LoggerInstance) { l.Debug(message, keyvals...) })
}

// Info logs at INFO level.
func Info(message string, keyvals ...any) {
	each(func(l LoggerInstance) { l.Info(message, keyvals...) })
}

// Warn logs at WARN level.
func Warn(message string, keyvals ...any) {
	each(func(l LoggerInstance) { l.Warn(message, keyvals...) })
}

// Error logs at ERROR level.
func Error(message string, keyvals ...any) {
	each(func(l LoggerInstance) { l.Error(message, keyvals...) })
}
