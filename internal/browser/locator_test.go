package browser_test

import (
	"context"
	"errors"
	"regexp"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/shehryarbajwa/walla-export/internal/browser"
	"github.com/shehryarbajwa/walla-export/internal/browser/browsertest"
)

func exportChain() browser.Chain {
	return browser.Chain{
		Target: "export control",
		Strategies: []browser.Strategy{
			browser.ByRole("button", regexp.MustCompile(`(?i)export`), 60*time.Second),
			browser.ByExactText("Export", 20*time.Second),
			browser.ByTextContains("export", 15*time.Second),
		},
	}
}

func TestChainFirstMatchWins(t *testing.T) {
	page := browsertest.NewPage()
	want := page.Add(browser.Query{Kind: browser.QueryRole, Role: "button", Pattern: regexp.MustCompile(`(?i)export`)}, &browsertest.Element{})
	page.Add(browser.Query{Kind: browser.QueryText, Text: "Export", Exact: true}, &browsertest.Element{})

	el, err := exportChain().Find(context.Background(), page, nil)
	require.NoError(t, err)
	assert.Same(t, want, el)
	assert.Len(t, page.QueriesTried(), 1)
}

func TestChainFallsBackInOrder(t *testing.T) {
	page := browsertest.NewPage()
	want := page.Add(browser.Query{Kind: browser.QueryText, Text: "export"}, &browsertest.Element{})

	el, err := exportChain().Find(context.Background(), page, nil)
	require.NoError(t, err)
	assert.Same(t, want, el)
	assert.Equal(t, []string{
		"role=button name=(?i)export",
		`text="Export"`,
		"text~export",
	}, page.QueriesTried())
}

func TestChainExhausted(t *testing.T) {
	page := browsertest.NewPage()

	_, err := exportChain().Find(context.Background(), page, nil)
	require.Error(t, err)
	assert.ErrorIs(t, err, browser.ErrElementNotFound)

	var nf *browser.NotFoundError
	require.True(t, errors.As(err, &nf))
	assert.Equal(t, "export control", nf.Target)
	assert.Len(t, nf.Tried, 3)
}

type brokenStrategy struct{}

func (brokenStrategy) Describe() string { return "broken" }

func (brokenStrategy) Find(context.Context, browser.Page) (browser.Element, error) {
	return nil, errors.New("target closed")
}

func TestChainStopsOnHardError(t *testing.T) {
	page := browsertest.NewPage()
	chain := browser.Chain{
		Target:     "field",
		Strategies: []browser.Strategy{brokenStrategy{}, browser.ByCSS("input", time.Second)},
	}

	_, err := chain.Find(context.Background(), page, nil)
	require.Error(t, err)
	assert.NotErrorIs(t, err, browser.ErrElementNotFound)
	assert.Empty(t, page.QueriesTried())
}

func TestChainHonorsCancelledContext(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	_, err := exportChain().Find(ctx, browsertest.NewPage(), nil)
	assert.ErrorIs(t, err, context.Canceled)
}

func TestChainBudget(t *testing.T) {
	assert.Equal(t, 95*time.Second, exportChain().Budget())
}
