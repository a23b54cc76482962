// Package enginetest provides a scripted in-memory recognizer for tests.
package enginetest

import (
	"fmt"
	"sync"

	"github.com/fmueller/speechbridge/internal/engine"
)

// Script reacts to task input. Hooks run on the caller's goroutine and
// usually call Task.Emit.
type Script struct {
	OnSubmit func(t *Task, frames []int16)
	OnFinish func(t *Task)
}

// FinalOnFinish emits partials followed by a final result when input ends.
func FinalOnFinish(final string, partials ...string) Script {
	return Script{OnFinish: func(t *Task) {
		for _, p := range partials {
			t.Emit(engine.Event{Text: p})
		}
		t.Emit(engine.Event{Text: final, Final: true})
	}}
}

// ErrorOnFinish emits err when input ends.
func ErrorOnFinish(err error) Script {
	return Script{OnFinish: func(t *Task) {
		t.Emit(engine.Event{Err: err})
	}}
}

type Recognizer struct {
	mu          sync.Mutex
	unavailable bool
	rejected    map[string]bool
	script      Script
	tasks       []*Task
}

func New(script Script) *Recognizer {
	return &Recognizer{script: script, rejected: map[string]bool{}}
}

func (r *Recognizer) SetAvailable(available bool) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.unavailable = !available
}

// RejectLocale makes NewTask fail for locale.
func (r *Recognizer) RejectLocale(locale string) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.rejected[locale] = true
}

func (r *Recognizer) Available() bool {
	r.mu.Lock()
	defer r.mu.Unlock()
	return !r.unavailable
}

func (r *Recognizer) NewTask(locale string) (engine.Task, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	if r.unavailable {
		return nil, engine.ErrUnavailable
	}
	if r.rejected[locale] {
		return nil, fmt.Errorf("%w: %s", engine.ErrUnsupportedLocale, locale)
	}

	t := &Task{
		Locale: locale,
		script: r.script,
		events: make(chan engine.Event, 1024),
		done:   make(chan struct{}),
	}
	r.tasks = append(r.tasks, t)
	return t, nil
}

func (r *Recognizer) Tasks() []*Task {
	r.mu.Lock()
	defer r.mu.Unlock()
	return append([]*Task(nil), r.tasks...)
}

// Last returns the most recently created task, or nil.
func (r *Recognizer) Last() *Task {
	r.mu.Lock()
	defer r.mu.Unlock()
	if len(r.tasks) == 0 {
		return nil
	}
	return r.tasks[len(r.tasks)-1]
}

// Task delivers emitted events on its own goroutine, in emission order.
type Task struct {
	Locale string

	script Script
	events chan engine.Event
	done   chan struct{}

	mu        sync.Mutex
	handler   engine.Handler
	frames    int
	submits   int
	started   bool
	finished  bool
	cancelled bool
	closed    bool
	closes    int
}

func (t *Task) Start(h engine.Handler) error {
	t.mu.Lock()
	defer t.mu.Unlock()

	if t.closed {
		return engine.ErrTaskClosed
	}
	if t.started {
		return fmt.Errorf("task already started")
	}
	t.started = true
	t.handler = h
	go t.run()
	return nil
}

func (t *Task) run() {
	defer close(t.done)
	for ev := range t.events {
		t.mu.Lock()
		cancelled, h := t.cancelled, t.handler
		t.mu.Unlock()
		if cancelled {
			continue
		}
		h(ev)
	}
}

func (t *Task) Submit(frames []int16) error {
	t.mu.Lock()
	switch {
	case t.closed:
		t.mu.Unlock()
		return engine.ErrTaskClosed
	case t.finished || t.cancelled:
		t.mu.Unlock()
		return engine.ErrTaskFinished
	}
	t.frames += len(frames)
	t.submits++
	hook := t.script.OnSubmit
	t.mu.Unlock()

	if hook != nil {
		hook(t, frames)
	}
	return nil
}

func (t *Task) Finish() error {
	t.mu.Lock()
	if t.closed {
		t.mu.Unlock()
		return engine.ErrTaskClosed
	}
	if t.finished || t.cancelled {
		t.mu.Unlock()
		return nil
	}
	t.finished = true
	hook := t.script.OnFinish
	t.mu.Unlock()

	if hook != nil {
		hook(t)
	}
	return nil
}

func (t *Task) Cancel() {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.cancelled = true
}

func (t *Task) Close() error {
	t.mu.Lock()
	t.closes++
	if t.closed {
		t.mu.Unlock()
		return nil
	}
	t.closed = true
	t.cancelled = true
	started := t.started
	close(t.events)
	t.mu.Unlock()

	if started {
		<-t.done
	}
	return nil
}

// Emit queues ev for delivery. Events emitted after Close are dropped.
func (t *Task) Emit(ev engine.Event) {
	t.mu.Lock()
	defer t.mu.Unlock()
	if t.closed {
		return
	}
	t.events <- ev
}

func (t *Task) FramesSubmitted() int {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.frames
}

func (t *Task) Submits() int {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.submits
}

func (t *Task) Finished() bool {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.finished
}

func (t *Task) Cancelled() bool {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.cancelled
}

func (t *Task) Closed() bool {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.closed
}

// CloseCount reports how many times Close was called.
func (t *Task) CloseCount() int {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.closes
}
