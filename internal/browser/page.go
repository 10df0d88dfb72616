package browser

import (
	"context"
	"errors"
	"fmt"
	"io"
	"regexp"
	"time"
)

// ErrTimeout is returned by Page implementations when a bounded wait expires
var ErrTimeout = errors.New("browser: timeout")

// QueryKind selects how a Query finds its element
type QueryKind int

const (
	QueryRole QueryKind = iota
	QueryLabel
	QueryText
	QueryCSS
)

// Query is a driver-neutral element lookup
type Query struct {
	Kind QueryKind

	// Role is the ARIA role for QueryRole
	Role string
	// Pattern matches the accessible name, label or text. It takes
	// precedence over Text when both are set.
	Pattern *regexp.Regexp
	Text    string
	Exact   bool
	// Selector is a CSS selector for QueryCSS
	Selector string
}

func (q Query) String() string {
	switch q.Kind {
	case QueryRole:
		if q.Pattern != nil {
			return fmt.Sprintf("role=%s name=%s", q.Role, q.Pattern)
		}
		return "role=" + q.Role
	case QueryLabel:
		return "label=" + q.match()
	case QueryText:
		if q.Exact {
			return fmt.Sprintf("text=%q", q.match())
		}
		return "text~" + q.match()
	case QueryCSS:
		return "css=" + q.Selector
	}
	return "unknown"
}

func (q Query) match() string {
	if q.Pattern != nil {
		return q.Pattern.String()
	}
	return q.Text
}

// ClickOptions tune a single click
type ClickOptions struct {
	// Force skips actionability checks such as overlays covering the target
	Force   bool
	Timeout time.Duration
}

// Element is a located, visible element on a Page
type Element interface {
	Fill(ctx context.Context, value string) error
	Click(ctx context.Context, opts ClickOptions) error
}

// Download is a completed browser download. Stream is nil when the
// driver could not expose the downloaded bytes.
type Download struct {
	SuggestedFilename string
	MimeType          string
	URL               string
	Stream            io.ReadCloser
}

// Page is the subset of browser page behavior the exporter drives. Every
// method that waits is bounded by its timeout argument.
type Page interface {
	Goto(ctx context.Context, url string, timeout time.Duration) error
	URL() string
	WaitVisible(ctx context.Context, q Query, timeout time.Duration) (Element, error)
	WaitForURL(ctx context.Context, match func(string) bool, timeout time.Duration) error
	WaitForLoad(ctx context.Context, timeout time.Duration) error
	CaptureDownload(ctx context.Context, trigger func() error, timeout time.Duration) (*Download, error)
}
