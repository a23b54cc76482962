package session

import (
	"fmt"
	"sync"

	"github.com/fmueller/speechbridge/internal/engine"
	"go.uber.org/multierr"
	"go.uber.org/zap"
)

// Registry owns the id → Session table. Ids start at 1, grow monotonically
// and are never reused. The table lock guards only lookup, insert and
// removal; recognizer work always happens outside it.
type Registry struct {
	recognizer engine.Recognizer
	logger     *zap.Logger

	mu       sync.Mutex
	lastID   int64
	sessions map[int64]*Session
}

func NewRegistry(recognizer engine.Recognizer, logger *zap.Logger) *Registry {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Registry{
		recognizer: recognizer,
		logger:     logger.Named("sessions"),
		sessions:   make(map[int64]*Session),
	}
}

// Available reports whether the underlying recognizer can run on this host.
func (r *Registry) Available() bool {
	return r.recognizer != nil && r.recognizer.Available()
}

// Create builds a recognizer task for locale, registers a session for it and
// starts it. Failures to construct the task wrap engine.ErrUnavailable or
// engine.ErrUnsupportedLocale and leave no session behind.
func (r *Registry) Create(locale string, sinks Sinks) (*Session, error) {
	if r.recognizer == nil {
		return nil, engine.ErrUnavailable
	}

	task, err := r.recognizer.NewTask(locale)
	if err != nil {
		r.logger.Warn("recognizer unavailable for session", zap.String("locale", locale), zap.Error(err))
		return nil, fmt.Errorf("create session: %w", err)
	}

	r.mu.Lock()
	r.lastID++
	s := newSession(r.lastID, locale, task, sinks, r.logger, r.forget)
	r.sessions[s.id] = s
	r.mu.Unlock()

	if err := s.Start(); err != nil {
		_ = s.Dispose()
		r.logger.Warn("session failed to start", zap.Int64("session", s.id), zap.Error(err))
		return nil, fmt.Errorf("create session: %w", err)
	}

	r.logger.Debug("session created", zap.Int64("session", s.id), zap.String("locale", locale))
	return s, nil
}

func (r *Registry) Get(id int64) (*Session, bool) {
	r.mu.Lock()
	defer r.mu.Unlock()
	s, ok := r.sessions[id]
	return s, ok
}

// Remove detaches a session from the table without disposing it.
func (r *Registry) Remove(id int64) (*Session, bool) {
	r.mu.Lock()
	defer r.mu.Unlock()
	s, ok := r.sessions[id]
	if ok {
		delete(r.sessions, id)
	}
	return s, ok
}

// Dispose disposes the session with id. Unknown ids are a no-op.
func (r *Registry) Dispose(id int64) error {
	s, ok := r.Get(id)
	if !ok {
		return nil
	}
	return s.Dispose()
}

func (r *Registry) Len() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return len(r.sessions)
}

// Close disposes every live session.
func (r *Registry) Close() error {
	r.mu.Lock()
	live := make([]*Session, 0, len(r.sessions))
	for _, s := range r.sessions {
		live = append(live, s)
	}
	r.mu.Unlock()

	var errs error
	for _, s := range live {
		errs = multierr.Append(errs, s.Dispose())
	}
	return errs
}

func (r *Registry) forget(id int64) {
	r.Remove(id)
}
