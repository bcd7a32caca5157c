// Package async runs background goroutines that cannot take the process down.
package async

import (
	"fmt"
	"runtime/debug"
)

// PanicLogger receives panic reports from background goroutines.
type PanicLogger interface {
	Error(format string, args ...any)
}

// PanicError is delivered by Run when fn panicked.
type PanicError struct {
	Name  string
	Value any
}

func (e *PanicError) Error() string {
	return fmt.Sprintf("goroutine %s panicked: %v", e.Name, e.Value)
}

// Go runs fn in a goroutine and logs, rather than propagates, a panic.
func Go(logger PanicLogger, name string, fn func()) {
	go func() {
		defer Recover(logger, name)
		fn()
	}()
}

// Run runs fn in a goroutine and delivers its result on the returned channel.
// A panic is logged and delivered as *PanicError.
func Run(logger PanicLogger, name string, fn func() error) <-chan error {
	out := make(chan error, 1)
	go func() {
		defer func() {
			if r := recover(); r != nil {
				report(logger, name, r)
				out <- &PanicError{Name: name, Value: r}
			}
		}()
		out <- fn()
	}()
	return out
}

// Recover logs a panic in the calling goroutine. It must be deferred directly.
func Recover(logger PanicLogger, name string) {
	if r := recover(); r != nil {
		report(logger, name, r)
	}
}

func report(logger PanicLogger, name string, value any) {
	if logger == nil {
		return
	}
	logger.Error("goroutine panic [%s]: %v, stack: %s", name, value, debug.Stack())
}
