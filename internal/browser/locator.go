package browser

import (
	"context"
	"errors"
	"fmt"
	"regexp"
	"strings"
	"time"

	"go.uber.org/zap"

	"github.com/shehryarbajwa/walla-export/internal/logging"
)

// ErrElementNotFound is wrapped by NotFoundError
var ErrElementNotFound = errors.New("element not found")

// NotFoundError reports an exhausted Chain
type NotFoundError struct {
	Target string
	Tried  []string
}

func (e *NotFoundError) Error() string {
	return fmt.Sprintf("%s not found after %d strategies (%s)", e.Target, len(e.Tried), strings.Join(e.Tried, "; "))
}

func (e *NotFoundError) Unwrap() error { return ErrElementNotFound }

// Strategy is one way of finding an element within its own time bound
type Strategy interface {
	Describe() string
	Find(ctx context.Context, page Page) (Element, error)
}

type queryStrategy struct {
	query   Query
	timeout time.Duration
}

func (s queryStrategy) Describe() string { return s.query.String() }

func (s queryStrategy) Find(ctx context.Context, page Page) (Element, error) {
	return page.WaitVisible(ctx, s.query, s.timeout)
}

// ByRole matches an ARIA role with an accessible name pattern
func ByRole(role string, name *regexp.Regexp, timeout time.Duration) Strategy {
	return queryStrategy{Query{Kind: QueryRole, Role: role, Pattern: name}, timeout}
}

// ByLabel matches form controls by their associated label
func ByLabel(label *regexp.Regexp, timeout time.Duration) Strategy {
	return queryStrategy{Query{Kind: QueryLabel, Pattern: label}, timeout}
}

// ByExactText matches elements whose whole text equals text
func ByExactText(text string, timeout time.Duration) Strategy {
	return queryStrategy{Query{Kind: QueryText, Text: text, Exact: true}, timeout}
}

// ByTextContains matches elements whose text contains text, ignoring case
func ByTextContains(text string, timeout time.Duration) Strategy {
	return queryStrategy{Query{Kind: QueryText, Text: text}, timeout}
}

// ByCSS matches a CSS selector
func ByCSS(selector string, timeout time.Duration) Strategy {
	return queryStrategy{Query{Kind: QueryCSS, Selector: selector}, timeout}
}

// Chain tries strategies in priority order; the first match wins
type Chain struct {
	Target     string
	Strategies []Strategy
}

// Find walks the chain. Only timeouts and misses advance to the next
// strategy; any other error (closed page, cancelled context) stops it.
func (c Chain) Find(ctx context.Context, page Page, logger *zap.Logger) (Element, error) {
	if logger == nil {
		logger = zap.NewNop()
	}

	tried := make([]string, 0, len(c.Strategies))
	for _, s := range c.Strategies {
		if err := ctx.Err(); err != nil {
			return nil, err
		}

		el, err := s.Find(ctx, page)
		if err == nil {
			logger.Debug("element located", zap.String("target", c.Target), zap.String(logging.Strategy, s.Describe()))
			return el, nil
		}
		if !errors.Is(err, ErrTimeout) && !errors.Is(err, ErrElementNotFound) {
			return nil, fmt.Errorf("locating %s via %s: %w", c.Target, s.Describe(), err)
		}

		logger.Debug("strategy missed", zap.String("target", c.Target), zap.String(logging.Strategy, s.Describe()))
		tried = append(tried, s.Describe())
	}

	return nil, &NotFoundError{Target: c.Target, Tried: tried}
}

// Budget is the sum of every strategy's wait
func (c Chain) Budget() time.Duration {
	var total time.Duration
	for _, s := range c.Strategies {
		if qs, ok := s.(queryStrategy); ok {
			total += qs.timeout
		}
	}
	return total
}
