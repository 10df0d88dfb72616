package walla

import (
	"io"
	"strings"
	"sync/atomic"
	"time"

	"github.com/shehryarbajwa/walla-export/internal/browser"
	"github.com/shehryarbajwa/walla-export/internal/browser/browsertest"
	"github.com/shehryarbajwa/walla-export/pkg/models"
)

var testSite = Site{BaseURL: "https://walla.test", Tenant: "studio", LocationID: "42"}

const (
	loginURL     = "https://walla.test/login?redirect=%2Fstudio%2Freports"
	dashboardURL = "https://walla.test/studio/dashboard"
)

func fastTimeouts() Timeouts {
	return Timeouts{
		Navigation:    50 * time.Millisecond,
		Field:         50 * time.Millisecond,
		Submit:        20 * time.Millisecond,
		LoginSettle:   40 * time.Millisecond,
		ExportPrimary: 20 * time.Millisecond,
		ExportExact:   10 * time.Millisecond,
		ExportBroad:   10 * time.Millisecond,
		Click:         20 * time.Millisecond,
		Download:      50 * time.Millisecond,
		Settle:        time.Millisecond,
	}
}

func firstPurchaseRequest() models.ReportRequest {
	return models.ReportRequest{
		Kind:        models.ReportFirstPurchase,
		StartDate:   "2024-01-01",
		EndDate:     "2024-01-31",
		Credentials: models.Credentials{Username: "ops@example.com", Password: "hunter2"},
	}
}

var (
	usernameByLabel = browser.Query{Kind: browser.QueryLabel, Pattern: usernameLabel}
	passwordByLabel = browser.Query{Kind: browser.QueryLabel, Pattern: passwordLabel}
	passwordByType  = browser.Query{Kind: browser.QueryCSS, Selector: `input[type="password"]`}
	submitByRole    = browser.Query{Kind: browser.QueryRole, Role: "button", Pattern: submitName}
	exportByRole    = browser.Query{Kind: browser.QueryRole, Role: "button", Pattern: exportName}
	exportByText    = browser.Query{Kind: browser.QueryText, Text: "export"}
)

// fakeSite simulates Walla: every navigation lands on the login page until
// the submit button is clicked with auth allowed.
type fakeSite struct {
	page *browsertest.Page

	authed    atomic.Bool
	allowAuth bool
	// afterLogin is where a successful submit lands
	afterLogin string

	user, pass, submit *browsertest.Element
}

func newFakeSite(requireLogin bool) *fakeSite {
	s := &fakeSite{
		page:       browsertest.NewPage(),
		allowAuth:  true,
		afterLogin: dashboardURL,
	}
	s.authed.Store(!requireLogin)

	s.page.Redirect = func(url string) string {
		if !s.authed.Load() {
			return loginURL
		}
		return url
	}

	s.user = s.page.Add(usernameByLabel, &browsertest.Element{})
	s.pass = s.page.Add(passwordByLabel, &browsertest.Element{})
	s.submit = s.page.Add(submitByRole, &browsertest.Element{OnClick: func() {
		if !s.allowAuth {
			return
		}
		s.authed.Store(true)
		s.page.SetURL(s.afterLogin)
	}})
	return s
}

func (s *fakeSite) withExport(name, mimeType, body string) *browsertest.Element {
	el := s.page.Add(exportByRole, &browsertest.Element{})
	s.page.Download = &browser.Download{
		SuggestedFilename: name,
		MimeType:          mimeType,
		Stream:            io.NopCloser(strings.NewReader(body)),
	}
	return el
}
