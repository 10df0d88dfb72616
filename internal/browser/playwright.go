package browser

import (
	"context"
	"errors"
	"fmt"
	"os"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/playwright-community/playwright-go"
	"go.uber.org/zap"

	"github.com/shehryarbajwa/walla-export/internal/logging"
	"github.com/shehryarbajwa/walla-export/internal/metrics"
)

// ContainerPool supplies remote Chrome instances for the docker backend
type ContainerPool interface {
	LaunchBrowser(ctx context.Context, sessionID string) (*Container, error)
	StopBrowser(ctx context.Context, containerID string) error
}

// PlaywrightLauncher opens a fresh Chromium per session, either locally or
// over CDP inside a container from Pool.
type PlaywrightLauncher struct {
	pw       *playwright.Playwright
	headless bool
	pool     ContainerPool
	metrics  *metrics.Metrics
	logger   *zap.Logger
}

// LauncherOption customizes a PlaywrightLauncher
type LauncherOption func(*PlaywrightLauncher)

// WithContainerPool switches the launcher to the docker backend
func WithContainerPool(pool ContainerPool) LauncherOption {
	return func(l *PlaywrightLauncher) {
		l.pool = pool
	}
}

// WithHeadless toggles headless mode for local browsers
func WithHeadless(headless bool) LauncherOption {
	return func(l *PlaywrightLauncher) {
		l.headless = headless
	}
}

// WithMetrics records open sessions on m
func WithMetrics(m *metrics.Metrics) LauncherOption {
	return func(l *PlaywrightLauncher) {
		l.metrics = m
	}
}

// StartPlaywright starts the driver once for the whole process. Browser
// binaries are installed only when they will run locally.
func StartPlaywright(installBrowsers bool) (*playwright.Playwright, error) {
	opts := &playwright.RunOptions{
		Browsers:            []string{"chromium"},
		SkipInstallBrowsers: !installBrowsers,
	}
	if err := playwright.Install(opts); err != nil {
		return nil, fmt.Errorf("failed to install playwright: %w", err)
	}

	pw, err := playwright.Run(opts)
	if err != nil {
		return nil, fmt.Errorf("failed to start playwright: %w", err)
	}
	return pw, nil
}

func NewPlaywrightLauncher(pw *playwright.Playwright, logger *zap.Logger, opts ...LauncherOption) *PlaywrightLauncher {
	l := &PlaywrightLauncher{
		pw:       pw,
		headless: true,
		logger:   logger,
	}
	for _, opt := range opts {
		opt(l)
	}
	return l
}

// Launch opens browser, context and page. If any step fails, whatever was
// already opened is closed before the error is returned.
func (l *PlaywrightLauncher) Launch(ctx context.Context, opts Options) (*Session, error) {
	if opts.SessionID == "" {
		opts.SessionID = uuid.NewString()
	}
	logger := l.logger.With(zap.String(logging.SessionID, opts.SessionID))

	var cleanups []func() error
	closeAll := func() error {
		var errs []error
		for i := len(cleanups) - 1; i >= 0; i-- {
			if err := cleanups[i](); err != nil {
				errs = append(errs, err)
			}
		}
		return errors.Join(errs...)
	}
	fail := func(err error) (*Session, error) {
		if cerr := closeAll(); cerr != nil {
			logger.Warn("partial session cleanup failed", zap.Error(cerr))
		}
		return nil, err
	}

	browser, err := l.openBrowser(ctx, opts.SessionID, &cleanups)
	if err != nil {
		return fail(err)
	}
	cleanups = append(cleanups, func() error { return browser.Close() })

	scale := ClampScale(opts.ScaleFactor)
	bctx, err := browser.NewContext(playwright.BrowserNewContextOptions{
		Viewport:          &playwright.Size{Width: ViewportWidth, Height: ViewportHeight},
		DeviceScaleFactor: playwright.Float(scale),
		Locale:            playwright.String(Locale),
		TimezoneId:        playwright.String(TimezoneID),
		UserAgent:         playwright.String(UserAgent),
		IgnoreHttpsErrors: playwright.Bool(true),
		AcceptDownloads:   playwright.Bool(true),
	})
	if err != nil {
		return fail(fmt.Errorf("failed to create browser context: %w", err))
	}
	cleanups = append(cleanups, func() error { return bctx.Close() })

	if err := bctx.AddInitScript(playwright.Script{Content: playwright.String(stealthScript)}); err != nil {
		return fail(fmt.Errorf("failed to add init script: %w", err))
	}
	bctx.SetDefaultNavigationTimeout(millis(NavigationTimeout))
	bctx.SetDefaultTimeout(millis(ActionTimeout))

	page, err := bctx.NewPage()
	if err != nil {
		return fail(fmt.Errorf("failed to create page: %w", err))
	}

	l.metrics.SessionOpened()
	logger.Info("browser session opened", zap.Float64("scale", scale), zap.Bool("remote", l.pool != nil))

	return NewSession(opts.SessionID, newPlaywrightPage(page), func() error {
		defer l.metrics.SessionClosed()
		err := closeAll()
		if err != nil {
			logger.Warn("browser session closed with errors", zap.Error(err))
		} else {
			logger.Info("browser session closed")
		}
		return err
	}), nil
}

func (l *PlaywrightLauncher) openBrowser(ctx context.Context, sessionID string, cleanups *[]func() error) (playwright.Browser, error) {
	if l.pool == nil {
		browser, err := l.pw.Chromium.Launch(playwright.BrowserTypeLaunchOptions{
			Headless: playwright.Bool(l.headless),
			Args:     launchArgs,
		})
		if err != nil {
			return nil, fmt.Errorf("failed to launch chromium: %w", err)
		}
		return browser, nil
	}

	c, err := l.pool.LaunchBrowser(ctx, sessionID)
	if err != nil {
		return nil, err
	}
	*cleanups = append(*cleanups, func() error {
		stopCtx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
		defer cancel()
		return l.pool.StopBrowser(stopCtx, c.ID)
	})

	browser, err := l.pw.Chromium.ConnectOverCDP(c.ConnectURL, playwright.BrowserTypeConnectOverCDPOptions{
		Timeout: playwright.Float(millis(30 * time.Second)),
	})
	if err != nil {
		return nil, fmt.Errorf("failed to connect over cdp: %w", err)
	}
	return browser, nil
}

// playwrightPage adapts playwright.Page to Page
type playwrightPage struct {
	page playwright.Page

	mu        sync.Mutex
	mimeByURL map[string]string
}

func newPlaywrightPage(page playwright.Page) *playwrightPage {
	p := &playwrightPage{page: page, mimeByURL: make(map[string]string)}

	// Downloads carry no MIME type of their own; remember what the server
	// sent for attachment responses so CaptureDownload can report it.
	page.OnResponse(func(resp playwright.Response) {
		headers := resp.Headers()
		if !strings.Contains(strings.ToLower(headers["content-disposition"]), "attachment") {
			return
		}
		ct := headers["content-type"]
		if ct == "" {
			return
		}
		p.mu.Lock()
		p.mimeByURL[resp.URL()] = ct
		p.mu.Unlock()
	})
	return p
}

func (p *playwrightPage) Goto(ctx context.Context, url string, timeout time.Duration) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	_, err := p.page.Goto(url, playwright.PageGotoOptions{
		Timeout:   playwright.Float(millis(timeout)),
		WaitUntil: playwright.WaitUntilStateDomcontentloaded,
	})
	return translate(err)
}

func (p *playwrightPage) URL() string {
	return p.page.URL()
}

func (p *playwrightPage) WaitVisible(ctx context.Context, q Query, timeout time.Duration) (Element, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	loc := p.locate(q).First()
	err := loc.WaitFor(playwright.LocatorWaitForOptions{
		State:   playwright.WaitForSelectorStateVisible,
		Timeout: playwright.Float(millis(timeout)),
	})
	if err != nil {
		return nil, translate(err)
	}
	return playwrightElement{loc}, nil
}

func (p *playwrightPage) locate(q Query) playwright.Locator {
	var text interface{} = q.Text
	if q.Pattern != nil {
		text = q.Pattern
	}

	switch q.Kind {
	case QueryRole:
		opts := playwright.PageGetByRoleOptions{}
		if q.Pattern != nil {
			opts.Name = q.Pattern
		}
		return p.page.GetByRole(playwright.AriaRole(q.Role), opts)
	case QueryLabel:
		return p.page.GetByLabel(text)
	case QueryText:
		return p.page.GetByText(text, playwright.PageGetByTextOptions{Exact: playwright.Bool(q.Exact)})
	default:
		return p.page.Locator(q.Selector)
	}
}

func (p *playwrightPage) WaitForURL(ctx context.Context, match func(string) bool, timeout time.Duration) error {
	if err := ctx.Err(); err != nil {
		return err
	}

	// The driver wait cannot be cancelled; stop waiting on it instead and
	// let it run out on its own timeout.
	done := make(chan error, 1)
	go func() {
		done <- translate(p.page.WaitForURL(match, playwright.PageWaitForURLOptions{
			Timeout:   playwright.Float(millis(timeout)),
			WaitUntil: playwright.WaitUntilStateCommit,
		}))
	}()

	select {
	case err := <-done:
		return err
	case <-ctx.Done():
		return ctx.Err()
	}
}

func (p *playwrightPage) WaitForLoad(ctx context.Context, timeout time.Duration) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	return translate(p.page.WaitForLoadState(playwright.PageWaitForLoadStateOptions{
		State:   playwright.LoadStateNetworkidle,
		Timeout: playwright.Float(millis(timeout)),
	}))
}

func (p *playwrightPage) CaptureDownload(ctx context.Context, trigger func() error, timeout time.Duration) (*Download, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	dl, err := p.page.ExpectDownload(trigger, playwright.PageExpectDownloadOptions{
		Timeout: playwright.Float(millis(timeout)),
	})
	if err != nil {
		return nil, translate(err)
	}

	out := &Download{
		SuggestedFilename: dl.SuggestedFilename(),
		URL:               dl.URL(),
	}
	p.mu.Lock()
	out.MimeType = p.mimeByURL[dl.URL()]
	p.mu.Unlock()

	if err := dl.Failure(); err != nil {
		return out, nil
	}
	path, err := dl.Path()
	if err != nil || path == "" {
		return out, nil
	}
	f, err := os.Open(path)
	if err != nil {
		return out, nil
	}
	out.Stream = f
	return out, nil
}

type playwrightElement struct {
	loc playwright.Locator
}

func (e playwrightElement) Fill(ctx context.Context, value string) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	return translate(e.loc.Fill(value))
}

func (e playwrightElement) Click(ctx context.Context, opts ClickOptions) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	clickOpts := playwright.LocatorClickOptions{Force: playwright.Bool(opts.Force)}
	if opts.Timeout > 0 {
		clickOpts.Timeout = playwright.Float(millis(opts.Timeout))
	}
	return translate(e.loc.Click(clickOpts))
}

// translate maps driver timeouts onto ErrTimeout so callers stay driver-neutral
func translate(err error) error {
	if err == nil {
		return nil
	}
	if errors.Is(err, playwright.ErrTimeout) {
		return fmt.Errorf("%w: %v", ErrTimeout, err)
	}
	return err
}

func millis(d time.Duration) float64 {
	return float64(d / time.Millisecond)
}
