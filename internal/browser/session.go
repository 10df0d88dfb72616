package browser

import (
	"context"
	"math"
	"sync"
)

const (
	DefaultScaleFactor = 2.0
	minScaleFactor     = 1.0
	maxScaleFactor     = 4.0
)

// ClampScale bounds a device-scale-factor hint to [1,4]. Zero, negative and
// NaN hints fall back to the default.
func ClampScale(f float64) float64 {
	if f <= 0 || math.IsNaN(f) {
		return DefaultScaleFactor
	}
	return math.Min(maxScaleFactor, math.Max(minScaleFactor, f))
}

// Options for launching one session
type Options struct {
	SessionID   string
	ScaleFactor float64
}

// Launcher creates isolated browser sessions
type Launcher interface {
	Launch(ctx context.Context, opts Options) (*Session, error)
}

// Session is one browser, one browsing context and one page
type Session struct {
	ID   string
	Page Page

	closeFn  func() error
	once     sync.Once
	closeErr error
}

// NewSession wraps a page with the function that tears everything down
func NewSession(id string, page Page, closeFn func() error) *Session {
	return &Session{ID: id, Page: page, closeFn: closeFn}
}

// Close tears the session down. Only the first call does any work.
func (s *Session) Close() error {
	s.once.Do(func() {
		if s.closeFn != nil {
			s.closeErr = s.closeFn()
		}
	})
	return s.closeErr
}

// WithSession launches a session, runs fn and closes the session on every
// exit path, panics included. Close errors are left to the launcher to log;
// they never replace fn's result.
func WithSession(ctx context.Context, l Launcher, opts Options, fn func(ctx context.Context, s *Session) error) error {
	s, err := l.Launch(ctx, opts)
	if err != nil {
		return err
	}
	defer s.Close()

	return fn(ctx, s)
}
