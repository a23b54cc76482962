// Package engine defines the contract between the session layer and a
// speech recognizer. A recognizer accepts PCM16 mono 16 kHz frames and emits
// zero or more partial results followed by exactly one final result or one
// error, delivered from a goroutine the recognizer owns.
package engine

import "errors"

var (
	// ErrUnavailable means the recognizer cannot run on this host.
	ErrUnavailable = errors.New("speech recognizer is not available")
	// ErrUnsupportedLocale means no model exists for the requested locale.
	ErrUnsupportedLocale = errors.New("unsupported locale")
	// ErrTaskClosed is returned by Task methods after Close.
	ErrTaskClosed = errors.New("recognition task closed")
	// ErrTaskFinished is returned by Submit after Finish or Cancel.
	ErrTaskFinished = errors.New("recognition task no longer accepts audio")
)

// Event is one recognizer emission. Exactly one of Final or Err marks the
// terminal event of a task.
type Event struct {
	Text  string
	Final bool
	Err   error
}

func (e Event) Terminal() bool {
	return e.Final || e.Err != nil
}

// Handler receives events for one task. Calls for a task are sequential but
// happen on recognizer goroutines, never on the caller's.
type Handler func(Event)

// Recognizer constructs per-session recognition tasks.
type Recognizer interface {
	// Available reports whether NewTask can succeed on this host.
	Available() bool
	// NewTask builds a handle for locale. An empty locale selects the
	// recognizer default. Errors wrap ErrUnavailable or ErrUnsupportedLocale.
	NewTask(locale string) (Task, error)
}

// Task is an exclusively owned handle to one recognition run.
type Task interface {
	// Start subscribes h to the task's result stream. It is called once.
	Start(h Handler) error
	// Submit queues frames for recognition. The task owns frames afterwards.
	Submit(frames []int16) error
	// Finish signals end of input; a terminal event follows asynchronously.
	Finish() error
	// Cancel aborts recognition. No terminal event is guaranteed afterwards.
	Cancel()
	// Close releases the handle and waits for recognizer goroutines to exit.
	// The handler is never invoked once Close returns.
	Close() error
}
