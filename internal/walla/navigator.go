package walla

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"github.com/shehryarbajwa/walla-export/internal/browser"
	"github.com/shehryarbajwa/walla-export/internal/logging"
	"github.com/shehryarbajwa/walla-export/pkg/models"
)

// State of the navigation/login flow. It is always derived from the live
// page URL, never remembered between transitions.
type State int

const (
	StateUnauthenticated State = iota
	StateOnLoginPage
	StateAuthenticating
	StatePostLoginUnknown
	StateOnTargetReport
	StateFailed
)

func (s State) String() string {
	switch s {
	case StateUnauthenticated:
		return "unauthenticated"
	case StateOnLoginPage:
		return "on_login_page"
	case StateAuthenticating:
		return "authenticating"
	case StatePostLoginUnknown:
		return "post_login_unknown"
	case StateOnTargetReport:
		return "on_target_report"
	case StateFailed:
		return "failed"
	}
	return fmt.Sprintf("state(%d)", int(s))
}

type navigator struct {
	page     browser.Page
	site     Site
	req      models.ReportRequest
	timeouts Timeouts
	logger   *zap.Logger

	reportURL   string
	renavigated bool
	visited     []State
}

func newNavigator(page browser.Page, site Site, req models.ReportRequest, t Timeouts, logger *zap.Logger) *navigator {
	return &navigator{
		page:      page,
		site:      site,
		req:       req,
		timeouts:  t,
		logger:    logger,
		reportURL: site.ReportURL(req.Kind, req.StartDate, req.EndDate),
	}
}

// run drives the page from wherever it is to a settled report page
func (n *navigator) run(ctx context.Context) error {
	state := StateUnauthenticated
	for {
		n.visited = append(n.visited, state)

		var (
			next State
			err  error
		)
		switch state {
		case StateUnauthenticated:
			next, err = n.open(ctx)
		case StateOnLoginPage:
			next, err = n.fillCredentials(ctx)
		case StateAuthenticating:
			next, err = n.submit(ctx)
		case StatePostLoginUnknown:
			next, err = n.resolve(ctx)
		case StateOnTargetReport:
			return n.settle(ctx)
		default:
			return fmt.Errorf("%w: unexpected state %s", ErrNavigation, state)
		}

		if err != nil {
			n.visited = append(n.visited, StateFailed)
			n.logger.Warn("navigation failed",
				zap.String(logging.Stage, state.String()),
				zap.String(logging.URL, redact(n.page.URL())),
				zap.Error(err))
			return err
		}

		n.logger.Debug("navigation transition",
			zap.String("from", state.String()),
			zap.String("to", next.String()),
			zap.String(logging.URL, redact(n.page.URL())))
		state = next
	}
}

func (n *navigator) open(ctx context.Context) (State, error) {
	if err := n.page.Goto(ctx, n.reportURL, n.timeouts.Navigation); err != nil {
		return StateFailed, fmt.Errorf("%w: opening report: %w", ErrNavigation, err)
	}
	if IsLoginURL(n.page.URL()) {
		return StateOnLoginPage, nil
	}
	return StatePostLoginUnknown, nil
}

func (n *navigator) fillCredentials(ctx context.Context) (State, error) {
	user, err := n.timeouts.usernameChain().Find(ctx, n.page, n.logger)
	if err != nil {
		return StateFailed, fieldError(err)
	}
	if err := user.Fill(ctx, n.req.Credentials.Username); err != nil {
		return StateFailed, fmt.Errorf("%w: filling username: %w", ErrNavigation, err)
	}

	pass, err := n.timeouts.passwordChain().Find(ctx, n.page, n.logger)
	if err != nil {
		return StateFailed, fieldError(err)
	}
	if err := pass.Fill(ctx, n.req.Credentials.Password); err != nil {
		return StateFailed, fmt.Errorf("%w: filling password: %w", ErrNavigation, err)
	}

	return StateAuthenticating, nil
}

// submit clicks the login control while waiting for the URL to leave the
// login path. A load-settle after the click also counts; resolve decides
// whether that settle was a successful login.
func (n *navigator) submit(ctx context.Context) (State, error) {
	button, err := n.timeouts.submitChain().Find(ctx, n.page, n.logger)
	if err != nil {
		return StateFailed, fieldError(err)
	}

	offLogin := func(u string) bool { return !IsLoginURL(u) }

	var urlErr, loadErr error
	g, gctx := errgroup.WithContext(ctx)
	urlCtx, stopURLWait := context.WithCancel(gctx)
	defer stopURLWait()

	g.Go(func() error {
		urlErr = n.page.WaitForURL(urlCtx, offLogin, n.timeouts.LoginSettle)
		return nil
	})
	g.Go(func() error {
		if err := button.Click(gctx, browser.ClickOptions{Timeout: n.timeouts.Click}); err != nil {
			return fmt.Errorf("%w: clicking submit: %w", ErrNavigation, err)
		}
		loadErr = n.page.WaitForLoad(gctx, n.timeouts.LoginSettle)
		// Once the page has settled the redirect gets one Submit window
		// to show up; resolve judges wherever the page ends up.
		time.AfterFunc(n.timeouts.Submit, stopURLWait)
		return nil
	})
	if err := g.Wait(); err != nil {
		return StateFailed, err
	}

	if urlErr != nil && loadErr != nil {
		return StateFailed, fmt.Errorf("%w after %s: %w", ErrLoginTimeout, n.timeouts.LoginSettle, errors.Join(urlErr, loadErr))
	}
	return StatePostLoginUnknown, nil
}

func (n *navigator) resolve(ctx context.Context) (State, error) {
	current := n.page.URL()

	if IsLoginURL(current) {
		if n.renavigated {
			return StateFailed, fmt.Errorf("%w: report navigation landed on %s", ErrUnexpectedLoginRedirect, redact(current))
		}
		return StateFailed, fmt.Errorf("%w: still on %s", ErrLoginDidNotComplete, redact(current))
	}

	if n.site.IsReportURL(current, n.req.Kind) || n.renavigated {
		return StateOnTargetReport, nil
	}

	n.renavigated = true
	if err := n.page.Goto(ctx, n.reportURL, n.timeouts.Navigation); err != nil {
		return StateFailed, fmt.Errorf("%w: reopening report: %w", ErrNavigation, err)
	}
	return StatePostLoginUnknown, nil
}

// settle waits out client-side rendering; the report page gives no
// reliable "interactive" signal.
func (n *navigator) settle(ctx context.Context) error {
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-time.After(n.timeouts.Settle):
		return nil
	}
}

func fieldError(err error) error {
	if errors.Is(err, browser.ErrElementNotFound) {
		return fmt.Errorf("%w: %w", ErrLoginFieldNotFound, err)
	}
	return fmt.Errorf("%w: %w", ErrNavigation, err)
}

// redact drops the query string for log output
func redact(raw string) string {
	if i := strings.IndexByte(raw, '?'); i >= 0 {
		return raw[:i]
	}
	return raw
}
