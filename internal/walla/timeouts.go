package walla

import (
	"regexp"
	"time"

	"github.com/shehryarbajwa/walla-export/internal/browser"
)

// Timeouts bound every wait of an export. There is no end-to-end deadline;
// a pathological page can use up the sum of these.
type Timeouts struct {
	Navigation time.Duration
	// Field is the budget for one login field across its whole chain
	Field         time.Duration
	Submit        time.Duration
	LoginSettle   time.Duration
	ExportPrimary time.Duration
	ExportExact   time.Duration
	ExportBroad   time.Duration
	Click         time.Duration
	Download      time.Duration
	Settle        time.Duration
}

// DefaultTimeouts favors patience over speed; exports run unattended
func DefaultTimeouts() Timeouts {
	return Timeouts{
		Navigation:    browser.NavigationTimeout,
		Field:         20 * time.Second,
		Submit:        10 * time.Second,
		LoginSettle:   45 * time.Second,
		ExportPrimary: 60 * time.Second,
		ExportExact:   20 * time.Second,
		ExportBroad:   15 * time.Second,
		Click:         browser.ActionTimeout,
		Download:      180 * time.Second,
		Settle:        3 * time.Second,
	}
}

func portion(d time.Duration, num, den int64) time.Duration {
	return d * time.Duration(num) / time.Duration(den)
}

const (
	emailInputs = `input[type="email"], input[name*="email" i], input[id*="email" i], input[placeholder*="email" i]`
	userInputs  = `input[name*="user" i], input[id*="user" i], input[placeholder*="user" i]`
	passInputs  = `input[name*="pass" i], input[id*="pass" i], input[placeholder*="pass" i]`
)

var (
	usernameLabel = regexp.MustCompile(`(?i)email|user`)
	passwordLabel = regexp.MustCompile(`(?i)password`)
	submitName    = regexp.MustCompile(`(?i)log in|login|sign in`)
	exportName    = regexp.MustCompile(`(?i)export`)
)

func (t Timeouts) usernameChain() browser.Chain {
	return browser.Chain{
		Target: "username field",
		Strategies: []browser.Strategy{
			browser.ByLabel(usernameLabel, portion(t.Field, 2, 5)),
			browser.ByCSS(emailInputs, portion(t.Field, 3, 10)),
			browser.ByCSS(userInputs, portion(t.Field, 3, 10)),
		},
	}
}

func (t Timeouts) passwordChain() browser.Chain {
	return browser.Chain{
		Target: "password field",
		Strategies: []browser.Strategy{
			browser.ByLabel(passwordLabel, portion(t.Field, 2, 5)),
			browser.ByCSS(`input[type="password"]`, portion(t.Field, 2, 5)),
			browser.ByCSS(passInputs, portion(t.Field, 1, 5)),
		},
	}
}

func (t Timeouts) submitChain() browser.Chain {
	fallback := portion(t.Submit, 1, 2)
	return browser.Chain{
		Target: "login submit control",
		Strategies: []browser.Strategy{
			browser.ByRole("button", submitName, t.Submit),
			browser.ByTextContains("Log in", fallback),
			browser.ByTextContains("Sign in", fallback),
			browser.ByCSS(`button[type="submit"], input[type="submit"]`, fallback),
		},
	}
}

func (t Timeouts) exportChain() browser.Chain {
	return browser.Chain{
		Target: "export control",
		Strategies: []browser.Strategy{
			browser.ByRole("button", exportName, t.ExportPrimary),
			browser.ByExactText("Export", t.ExportExact),
			browser.ByTextContains("export", t.ExportBroad),
		},
	}
}
