package browser_test

import (
	"context"
	"errors"
	"math"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/shehryarbajwa/walla-export/internal/browser"
	"github.com/shehryarbajwa/walla-export/internal/browser/browsertest"
)

func TestClampScale(t *testing.T) {
	tests := []struct {
		in   float64
		want float64
	}{
		{0, 2},
		{-3, 2},
		{math.NaN(), 2},
		{0.5, 1},
		{1, 1},
		{2.5, 2.5},
		{4, 4},
		{9, 4},
	}

	for _, tt := range tests {
		assert.Equal(t, tt.want, browser.ClampScale(tt.in), "ClampScale(%v)", tt.in)
	}
}

func TestWithSessionClosesOnSuccess(t *testing.T) {
	l := &browsertest.Launcher{Page: browsertest.NewPage()}

	err := browser.WithSession(context.Background(), l, browser.Options{}, func(ctx context.Context, s *browser.Session) error {
		assert.NotNil(t, s.Page)
		return nil
	})
	require.NoError(t, err)
	assert.Equal(t, 1, l.Launches())
	assert.Equal(t, 1, l.Closes())
}

func TestWithSessionClosesOnError(t *testing.T) {
	l := &browsertest.Launcher{Page: browsertest.NewPage()}
	boom := errors.New("boom")

	err := browser.WithSession(context.Background(), l, browser.Options{}, func(ctx context.Context, s *browser.Session) error {
		return boom
	})
	assert.ErrorIs(t, err, boom)
	assert.Equal(t, 1, l.Closes())
}

func TestWithSessionClosesOnPanic(t *testing.T) {
	l := &browsertest.Launcher{Page: browsertest.NewPage()}

	assert.Panics(t, func() {
		_ = browser.WithSession(context.Background(), l, browser.Options{}, func(ctx context.Context, s *browser.Session) error {
			panic("driver crashed")
		})
	})
	assert.Equal(t, 1, l.Closes())
}

func TestWithSessionCloseErrorDoesNotFailWork(t *testing.T) {
	l := &browsertest.Launcher{Page: browsertest.NewPage(), CloseErr: errors.New("already gone")}

	err := browser.WithSession(context.Background(), l, browser.Options{}, func(ctx context.Context, s *browser.Session) error {
		return nil
	})
	assert.NoError(t, err)
	assert.Equal(t, 1, l.Closes())
}

func TestWithSessionLaunchFailure(t *testing.T) {
	l := &browsertest.Launcher{LaunchErr: errors.New("no chromium")}
	called := false

	err := browser.WithSession(context.Background(), l, browser.Options{}, func(ctx context.Context, s *browser.Session) error {
		called = true
		return nil
	})
	assert.Error(t, err)
	assert.False(t, called)
	assert.Equal(t, 0, l.Closes())
}

func TestSessionCloseIsIdempotent(t *testing.T) {
	calls := 0
	s := browser.NewSession("s1", nil, func() error {
		calls++
		return errors.New("first close failed")
	})

	err1 := s.Close()
	err2 := s.Close()
	assert.Equal(t, 1, calls)
	assert.Equal(t, err1, err2)
}
