// Package session tracks the browser sessions that are open right now.
package session

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"sync"
	"time"

	"go.uber.org/zap"
	"golang.org/x/sync/semaphore"

	"github.com/shehryarbajwa/walla-export/internal/browser"
	"github.com/shehryarbajwa/walla-export/internal/logging"
)

// Info describes one live session
type Info struct {
	ID        string
	StartedAt time.Time
}

type entry struct {
	session *browser.Session
	info    Info
}

// Registry wraps a browser.Launcher. It bounds how many browsers run at once,
// force-closes sessions that outlive maxLifetime and can close everything on
// shutdown.
type Registry struct {
	launcher    browser.Launcher
	slots       *semaphore.Weighted
	maxLifetime time.Duration
	logger      *zap.Logger

	mu       sync.Mutex
	nextKey  uint64
	sessions map[uint64]*entry
}

// NewRegistry returns a Registry. maxConcurrent <= 0 means no cap and
// maxLifetime <= 0 disables the watchdog.
func NewRegistry(launcher browser.Launcher, maxConcurrent int, maxLifetime time.Duration, logger *zap.Logger) *Registry {
	r := &Registry{
		launcher:    launcher,
		maxLifetime: maxLifetime,
		logger:      logger,
		sessions:    make(map[uint64]*entry),
	}
	if maxConcurrent > 0 {
		r.slots = semaphore.NewWeighted(int64(maxConcurrent))
	}
	return r
}

// Launch waits for a free slot, then launches through the wrapped launcher
func (r *Registry) Launch(ctx context.Context, opts browser.Options) (*browser.Session, error) {
	if err := r.acquireSlot(ctx); err != nil {
		return nil, err
	}

	inner, err := r.launcher.Launch(ctx, opts)
	if err != nil {
		r.releaseSlot()
		return nil, err
	}

	// Entries are keyed by the registry, not by the launcher's id, so two
	// sessions reporting the same id never shadow each other.
	r.mu.Lock()
	r.nextKey++
	key := r.nextKey
	r.mu.Unlock()

	done := make(chan struct{})
	s := browser.NewSession(inner.ID, inner.Page, func() error {
		close(done)
		r.remove(key)
		defer r.releaseSlot()
		return inner.Close()
	})

	r.mu.Lock()
	r.sessions[key] = &entry{session: s, info: Info{ID: s.ID, StartedAt: time.Now()}}
	r.mu.Unlock()

	if r.maxLifetime > 0 {
		go r.watch(s, done)
	}
	return s, nil
}

// watch closes s once it has been open for maxLifetime
func (r *Registry) watch(s *browser.Session, done <-chan struct{}) {
	timer := time.NewTimer(r.maxLifetime)
	defer timer.Stop()

	select {
	case <-done:
	case <-timer.C:
		r.logger.Warn("session exceeded max lifetime, closing",
			zap.String(logging.SessionID, s.ID),
			zap.Duration("max_lifetime", r.maxLifetime))
		_ = s.Close()
	}
}

// Active lists live sessions, oldest first
func (r *Registry) Active() []Info {
	r.mu.Lock()
	out := make([]Info, 0, len(r.sessions))
	for _, e := range r.sessions {
		out = append(out, e.info)
	}
	r.mu.Unlock()

	sort.Slice(out, func(i, j int) bool {
		if !out[i].StartedAt.Equal(out[j].StartedAt) {
			return out[i].StartedAt.Before(out[j].StartedAt)
		}
		return out[i].ID < out[j].ID
	})
	return out
}

// CloseAll closes every live session and joins their errors
func (r *Registry) CloseAll() error {
	r.mu.Lock()
	live := make([]*browser.Session, 0, len(r.sessions))
	for _, e := range r.sessions {
		live = append(live, e.session)
	}
	r.mu.Unlock()

	var errs []error
	for _, s := range live {
		if err := s.Close(); err != nil {
			errs = append(errs, fmt.Errorf("session %s: %w", s.ID, err))
		}
	}
	return errors.Join(errs...)
}

func (r *Registry) remove(key uint64) {
	r.mu.Lock()
	defer r.mu.Unlock()
	delete(r.sessions, key)
}

func (r *Registry) acquireSlot(ctx context.Context) error {
	if r.slots == nil {
		return nil
	}
	if err := r.slots.Acquire(ctx, 1); err != nil {
		return fmt.Errorf("waiting for a browser slot: %w", err)
	}
	return nil
}

func (r *Registry) releaseSlot() {
	if r.slots != nil {
		r.slots.Release(1)
	}
}
