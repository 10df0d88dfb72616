package session

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/shehryarbajwa/walla-export/internal/browser"
	"github.com/shehryarbajwa/walla-export/internal/browser/browsertest"
)

func TestRegistryCapsConcurrentSessions(t *testing.T) {
	l := &browsertest.Launcher{Page: browsertest.NewPage()}
	r := NewRegistry(l, 1, 0, zap.NewNop())

	first, err := r.Launch(context.Background(), browser.Options{SessionID: "a"})
	require.NoError(t, err)

	ctx, cancel := context.WithTimeout(context.Background(), 20*time.Millisecond)
	defer cancel()
	_, err = r.Launch(ctx, browser.Options{SessionID: "b"})
	assert.ErrorIs(t, err, context.DeadlineExceeded)
	assert.Equal(t, 1, l.Launches())

	require.NoError(t, first.Close())
	second, err := r.Launch(context.Background(), browser.Options{SessionID: "c"})
	require.NoError(t, err)
	require.NoError(t, second.Close())
	assert.Equal(t, 2, l.Closes())
}

func TestRegistryReleasesSlotOnLaunchFailure(t *testing.T) {
	l := &browsertest.Launcher{LaunchErr: assert.AnError}
	r := NewRegistry(l, 1, 0, zap.NewNop())

	for i := 0; i < 3; i++ {
		_, err := r.Launch(context.Background(), browser.Options{})
		assert.ErrorIs(t, err, assert.AnError)
	}
	assert.Empty(t, r.Active())
}

func TestRegistryTracksActiveSessions(t *testing.T) {
	l := &browsertest.Launcher{Page: browsertest.NewPage()}
	r := NewRegistry(l, 0, 0, zap.NewNop())

	a, err := r.Launch(context.Background(), browser.Options{})
	require.NoError(t, err)
	b, err := r.Launch(context.Background(), browser.Options{})
	require.NoError(t, err)

	active := r.Active()
	require.Len(t, active, 2)
	assert.Equal(t, a.ID, active[0].ID)
	assert.Equal(t, b.ID, active[1].ID)

	require.NoError(t, a.Close())
	require.NoError(t, a.Close())
	assert.Len(t, r.Active(), 1)
	assert.Equal(t, 1, l.Closes())

	require.NoError(t, r.CloseAll())
	assert.Empty(t, r.Active())
	assert.Equal(t, 2, l.Closes())

	// closing after CloseAll is a no-op
	require.NoError(t, b.Close())
	assert.Equal(t, 2, l.Closes())
}

func TestRegistryClosesExpiredSessions(t *testing.T) {
	l := &browsertest.Launcher{Page: browsertest.NewPage()}
	r := NewRegistry(l, 1, 10*time.Millisecond, zap.NewNop())

	_, err := r.Launch(context.Background(), browser.Options{})
	require.NoError(t, err)

	assert.Eventually(t, func() bool { return l.Closes() == 1 }, time.Second, 5*time.Millisecond)
	assert.Empty(t, r.Active())

	// the expired session gave its slot back
	s, err := r.Launch(context.Background(), browser.Options{})
	require.NoError(t, err)
	require.NoError(t, s.Close())
}

func TestRegistryCloseAllJoinsErrors(t *testing.T) {
	l := &browsertest.Launcher{Page: browsertest.NewPage(), CloseErr: assert.AnError}
	r := NewRegistry(l, 0, 0, zap.NewNop())

	for i := 0; i < 2; i++ {
		_, err := r.Launch(context.Background(), browser.Options{})
		require.NoError(t, err)
	}

	err := r.CloseAll()
	assert.ErrorIs(t, err, assert.AnError)
	assert.Equal(t, 2, l.Closes())
}

// echoLauncher reports the requested session id back unchanged
type echoLauncher struct {
	mu     sync.Mutex
	closes int
}

func (l *echoLauncher) Launch(ctx context.Context, opts browser.Options) (*browser.Session, error) {
	return browser.NewSession(opts.SessionID, browsertest.NewPage(), func() error {
		l.mu.Lock()
		defer l.mu.Unlock()
		l.closes++
		return nil
	}), nil
}

func (l *echoLauncher) Closes() int {
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.closes
}

func TestRegistryKeepsSessionsWithDuplicateIDs(t *testing.T) {
	l := &echoLauncher{}
	r := NewRegistry(l, 0, 0, zap.NewNop())

	first, err := r.Launch(context.Background(), browser.Options{SessionID: "same"})
	require.NoError(t, err)
	_, err = r.Launch(context.Background(), browser.Options{SessionID: "same"})
	require.NoError(t, err)
	require.Len(t, r.Active(), 2)

	require.NoError(t, first.Close())
	active := r.Active()
	require.Len(t, active, 1)
	assert.Equal(t, "same", active[0].ID)

	require.NoError(t, r.CloseAll())
	assert.Equal(t, 2, l.Closes())
	assert.Empty(t, r.Active())
}
