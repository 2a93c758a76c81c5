package observability

import "runtime/debug"

// RecoverPanic settles a panic in a background task. It is deferred at the
// top of goroutines that must not take the process down with them (the price
// map watcher, the pool stats updater): the panic is logged with its stack
// under the task name and then swallowed.
//
//	go func() {
//	    defer observability.RecoverPanic(logger, "price map watcher")
//	    ...
//	}()
func RecoverPanic(logger *Logger, task string) {
	if r := recover(); r != nil {
		logger.WithField("panic", r).
			WithField("stack", string(debug.Stack())).
			WithField("task", task).
			Error("panic recovered in background task")
	}
}
