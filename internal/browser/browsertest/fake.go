// Package browsertest provides scriptable doubles for browser.Page and
// browser.Launcher.
package browsertest

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/shehryarbajwa/walla-export/internal/browser"
)

// Element is a fake located element
type Element struct {
	mu        sync.Mutex
	Filled    []string
	Clicks    int
	LastClick browser.ClickOptions
	// OnClick runs on every click, e.g. to move the page to a new URL
	OnClick  func()
	ClickErr error
}

func (e *Element) Fill(ctx context.Context, value string) error {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.Filled = append(e.Filled, value)
	return nil
}

func (e *Element) Click(ctx context.Context, opts browser.ClickOptions) error {
	e.mu.Lock()
	e.Clicks++
	e.LastClick = opts
	onClick, err := e.OnClick, e.ClickErr
	e.mu.Unlock()

	if err != nil {
		return err
	}
	if onClick != nil {
		onClick()
	}
	return nil
}

// ClickCount is safe to call while the element is in use
func (e *Element) ClickCount() int {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.Clicks
}

// Page is a scriptable browser.Page. Elements are keyed by Query.String().
type Page struct {
	mu sync.Mutex

	url      string
	elements map[string]*Element

	// Redirect maps a requested URL to where the site actually lands
	Redirect func(url string) string
	GotoErr  error
	// LoadErr is returned by WaitForLoad
	LoadErr error
	// SimulateWaits makes failing waits block for their full timeout
	SimulateWaits bool

	Download    *browser.Download
	DownloadErr error

	Gotos   []string
	Queries []string
}

func NewPage() *Page {
	return &Page{elements: make(map[string]*Element)}
}

// Add makes q resolve to el
func (p *Page) Add(q browser.Query, el *Element) *Element {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.elements[q.String()] = el
	return el
}

// SetURL moves the page without recording a navigation
func (p *Page) SetURL(url string) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.url = url
}

func (p *Page) URL() string {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.url
}

// GotoCalls returns a copy of every requested URL
func (p *Page) GotoCalls() []string {
	p.mu.Lock()
	defer p.mu.Unlock()
	return append([]string(nil), p.Gotos...)
}

// QueriesTried returns a copy of every query passed to WaitVisible
func (p *Page) QueriesTried() []string {
	p.mu.Lock()
	defer p.mu.Unlock()
	return append([]string(nil), p.Queries...)
}

func (p *Page) Goto(ctx context.Context, url string, timeout time.Duration) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.Gotos = append(p.Gotos, url)
	if p.GotoErr != nil {
		return p.GotoErr
	}
	if p.Redirect != nil {
		url = p.Redirect(url)
	}
	p.url = url
	return nil
}

func (p *Page) WaitVisible(ctx context.Context, q browser.Query, timeout time.Duration) (browser.Element, error) {
	p.mu.Lock()
	key := q.String()
	p.Queries = append(p.Queries, key)
	el, ok := p.elements[key]
	p.mu.Unlock()

	if ok {
		return el, nil
	}
	return nil, p.timeout(ctx, timeout, key)
}

// WaitForURL polls the current URL until match succeeds or timeout passes
func (p *Page) WaitForURL(ctx context.Context, match func(string) bool, timeout time.Duration) error {
	deadline := time.Now().Add(timeout)
	for {
		if match(p.URL()) {
			return nil
		}
		if time.Now().After(deadline) {
			return fmt.Errorf("%w: waiting for url", browser.ErrTimeout)
		}
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-time.After(2 * time.Millisecond):
		}
	}
}

func (p *Page) WaitForLoad(ctx context.Context, timeout time.Duration) error {
	p.mu.Lock()
	err := p.LoadErr
	p.mu.Unlock()

	if err != nil {
		return p.timeout(ctx, timeout, "load")
	}
	return nil
}

func (p *Page) CaptureDownload(ctx context.Context, trigger func() error, timeout time.Duration) (*browser.Download, error) {
	if err := trigger(); err != nil {
		return nil, err
	}

	p.mu.Lock()
	defer p.mu.Unlock()
	if p.DownloadErr != nil {
		return nil, p.DownloadErr
	}
	if p.Download == nil {
		return nil, fmt.Errorf("%w: no download", browser.ErrTimeout)
	}
	return p.Download, nil
}

func (p *Page) timeout(ctx context.Context, d time.Duration, what string) error {
	if p.SimulateWaits {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-time.After(d):
		}
	}
	return fmt.Errorf("%w: waiting for %s", browser.ErrTimeout, what)
}

// Launcher hands out sessions around a single Page and counts lifecycles
type Launcher struct {
	mu sync.Mutex

	Page      browser.Page
	LaunchErr error
	CloseErr  error

	launches int
	closes   int
	last     browser.Options
}

func (l *Launcher) Launch(ctx context.Context, opts browser.Options) (*browser.Session, error) {
	l.mu.Lock()
	defer l.mu.Unlock()

	l.launches++
	l.last = opts
	if l.LaunchErr != nil {
		return nil, l.LaunchErr
	}

	id := fmt.Sprintf("fake-%d", l.launches)
	return browser.NewSession(id, l.Page, func() error {
		l.mu.Lock()
		defer l.mu.Unlock()
		l.closes++
		return l.CloseErr
	}), nil
}

func (l *Launcher) Launches() int {
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.launches
}

func (l *Launcher) Closes() int {
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.closes
}

// LastOptions returns the options of the most recent launch
func (l *Launcher) LastOptions() browser.Options {
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.last
}
