// Package session manages streaming recognition sessions: the per-session
// state machine, ordered delivery of recognizer results to caller sinks, and
// the process-wide id table.
package session

import (
	"errors"
	"fmt"
	"sync"

	"github.com/fmueller/speechbridge/internal/audio"
	"github.com/fmueller/speechbridge/internal/engine"
	"go.uber.org/zap"
)

var ErrNotListening = errors.New("session is not listening")

// ResultFunc receives partial (final=false) and final results.
type ResultFunc func(id int64, text string, final bool)

// ErrorFunc receives a recognition failure. It is terminal for the session.
type ErrorFunc func(id int64, message string)

// Sinks are caller-owned callbacks. They run on the session's dispatch
// goroutine, one at a time, and may call End, Cancel or Dispose on their own
// session. A Dispose from inside a sink returns at once; the dispatcher
// releases the recognizer after the sink returns.
type Sinks struct {
	OnResult ResultFunc
	OnError  ErrorFunc
}

type Session struct {
	id      int64
	locale  string
	logger  *zap.Logger
	release func(id int64)

	mu       sync.Mutex
	cond     *sync.Cond
	state    State
	task     engine.Task
	sinks    Sinks
	terminal bool
	queue    []engine.Event
	closing  bool

	dispatching  bool
	dispatcherID uint64
	delivering   bool
	// pendingClose is the task a sink-initiated Dispose left for the
	// dispatcher to close.
	pendingClose engine.Task
	dispatched   chan struct{}
	disposed     chan struct{}
}

func newSession(id int64, locale string, task engine.Task, sinks Sinks, logger *zap.Logger, release func(int64)) *Session {
	if logger == nil {
		logger = zap.NewNop()
	}
	s := &Session{
		id:         id,
		locale:     locale,
		logger:     logger.With(zap.Int64("session", id), zap.String("locale", locale)),
		release:    release,
		state:      Created,
		task:       task,
		sinks:      sinks,
		dispatched: make(chan struct{}),
		disposed:   make(chan struct{}),
	}
	s.cond = sync.NewCond(&s.mu)
	return s
}

func (s *Session) ID() int64 {
	return s.id
}

func (s *Session) Locale() string {
	return s.locale
}

func (s *Session) State() State {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.state
}

// Start subscribes to the recognizer's result stream and moves the session
// to Listening.
func (s *Session) Start() error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.state != Created {
		return fmt.Errorf("start session %d in state %s", s.id, s.state)
	}

	if err := s.task.Start(s.handle); err != nil {
		return fmt.Errorf("start recognition: %w", err)
	}

	s.dispatching = true
	go s.dispatch()

	s.state = Listening
	s.logger.Debug("session listening")
	return nil
}

// AppendAudio converts a PCM16 buffer and submits it. The buffer is copied
// before this returns.
func (s *Session) AppendAudio(data []byte) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.state != Listening {
		return fmt.Errorf("append audio in state %s: %w", s.state, ErrNotListening)
	}

	frames, err := audio.ConvertPCM16(data)
	if err != nil {
		return err
	}

	if err := s.task.Submit(frames); err != nil {
		return fmt.Errorf("submit audio: %w", err)
	}
	return nil
}

// End signals that no more audio follows. The recognizer still delivers a
// final result or an error.
func (s *Session) End() error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.state != Listening {
		return fmt.Errorf("end in state %s: %w", s.state, ErrNotListening)
	}

	s.state = Ended
	if err := s.task.Finish(); err != nil {
		s.logger.Warn("finish recognition failed", zap.Error(err))
		return fmt.Errorf("finish recognition: %w", err)
	}
	s.logger.Debug("session ended by caller")
	return nil
}

// Cancel aborts recognition. Undelivered results are dropped and later
// recognizer events are ignored. When called outside a sink, Cancel also
// waits for a sink that is already running, so no callback runs after it
// returns.
func (s *Session) Cancel() {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.state != Listening && s.state != Ended {
		return
	}

	s.state = Cancelled
	s.queue = nil
	s.task.Cancel()
	s.logger.Debug("session cancelled")

	if s.inSinkLocked() {
		return
	}
	for s.delivering {
		s.cond.Wait()
	}
}

// inSinkLocked reports whether the caller is a sink running on this
// session's dispatcher. s.mu must be held.
func (s *Session) inSinkLocked() bool {
	return s.delivering && s.dispatcherID == goroutineID()
}

// Dispose cancels outstanding recognition, releases the recognizer handle,
// removes the session from its registry and drops the sinks. It is
// idempotent. No sink is invoked after Dispose returns, apart from the sink
// that called it.
func (s *Session) Dispose() error {
	s.mu.Lock()
	reentrant := s.inSinkLocked()
	if s.state == Disposed {
		s.mu.Unlock()
		if !reentrant {
			<-s.disposed
		}
		return nil
	}

	if s.state == Listening || s.state == Ended {
		s.task.Cancel()
	}
	s.state = Disposed
	s.closing = true
	s.queue = nil
	s.cond.Broadcast()

	task := s.task
	s.task = nil
	dispatching := s.dispatching
	if reentrant {
		s.pendingClose = task
	}
	s.mu.Unlock()

	if reentrant {
		// the dispatcher is blocked in our caller; it closes the task once
		// the sink returns
		if s.release != nil {
			s.release(s.id)
		}
		s.logger.Debug("session disposed from its own sink")
		return nil
	}

	if dispatching {
		<-s.dispatched
	}
	return s.finish(task, true)
}

// finish closes task and completes disposal. engine goroutines may be
// blocked in handle, so s.mu must not be held.
func (s *Session) finish(task engine.Task, release bool) error {
	err := task.Close()

	s.mu.Lock()
	s.sinks = Sinks{}
	s.mu.Unlock()

	if release && s.release != nil {
		s.release(s.id)
	}
	close(s.disposed)

	if err != nil {
		s.logger.Warn("release recognition task failed", zap.Error(err))
		return fmt.Errorf("release recognition task: %w", err)
	}
	s.logger.Debug("session disposed")
	return nil
}

// handle runs on recognizer goroutines.
func (s *Session) handle(ev engine.Event) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.state == Cancelled || s.state == Disposed || s.terminal {
		s.logger.Debug("dropping late recognizer event", zap.Stringer("state", s.state), zap.Bool("final", ev.Final), zap.Error(ev.Err))
		return
	}

	if ev.Terminal() {
		s.terminal = true
		if s.state == Listening {
			s.state = Ended
		}
	}

	s.queue = append(s.queue, ev)
	s.cond.Broadcast()
}

func (s *Session) dispatch() {
	s.mu.Lock()
	s.dispatcherID = goroutineID()
	s.mu.Unlock()

	for {
		s.mu.Lock()
		for len(s.queue) == 0 && !s.closing {
			s.cond.Wait()
		}
		if s.closing {
			task := s.pendingClose
			s.pendingClose = nil
			s.mu.Unlock()

			close(s.dispatched)
			if task != nil {
				_ = s.finish(task, false)
			}
			return
		}

		ev := s.queue[0]
		s.queue[0] = engine.Event{}
		s.queue = s.queue[1:]
		sinks := s.sinks
		s.delivering = true
		s.mu.Unlock()

		s.deliver(sinks, ev)

		s.mu.Lock()
		s.delivering = false
		s.cond.Broadcast()
		s.mu.Unlock()
	}
}

func (s *Session) deliver(sinks Sinks, ev engine.Event) {
	defer func() {
		if r := recover(); r != nil {
			s.logger.Error("result sink panicked", zap.Any("panic", r))
		}
	}()

	if ev.Err != nil {
		if sinks.OnError != nil {
			sinks.OnError(s.id, ev.Err.Error())
		}
		return
	}
	if sinks.OnResult != nil {
		sinks.OnResult(s.id, ev.Text, ev.Final)
	}
}
