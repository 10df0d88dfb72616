package walla

import (
	"net/url"
	"strings"

	"github.com/shehryarbajwa/walla-export/pkg/models"
)

const loginSegment = "/login"

// Site locates the Walla tenant whose reports are exported
type Site struct {
	BaseURL    string
	Tenant     string
	LocationID string
}

// Every filter of a report is forced to "all"
var reportFilters = map[models.ReportKind][]string{
	models.ReportSalesCashBasis: {"payment_method", "product_type", "staff", "channel"},
	models.ReportFirstPurchase:  {"product_type", "membership_type", "staff"},
}

// ReportPath is the URL path of a report page
func (s Site) ReportPath(kind models.ReportKind) string {
	path := "/reports/" + kind.Slug()
	if s.Tenant != "" {
		path = "/" + url.PathEscape(s.Tenant) + path
	}
	return path
}

// ReportURL builds the fully parameterised report URL for a date range
func (s Site) ReportURL(kind models.ReportKind, start, end string) string {
	q := url.Values{}
	q.Set("start_date", start)
	q.Set("end_date", end)
	if s.LocationID != "" {
		q.Set("location_id", s.LocationID)
	}
	for _, f := range reportFilters[kind] {
		q.Set(f, "all")
	}
	q.Set("page", "1")
	q.Set("per_page", "100")
	q.Set("sort", "date")
	q.Set("direction", "asc")

	return strings.TrimRight(s.BaseURL, "/") + s.ReportPath(kind) + "?" + q.Encode()
}

// IsLoginURL reports whether the live URL is on the login flow
func IsLoginURL(raw string) bool {
	return strings.Contains(urlPath(raw), loginSegment)
}

// IsReportURL reports whether the live URL is the report page for kind
func (s Site) IsReportURL(raw string, kind models.ReportKind) bool {
	u, err := url.Parse(raw)
	if err != nil {
		return false
	}
	// ReportPath is escaped, so compare against the escaped form
	return strings.TrimRight(u.EscapedPath(), "/") == s.ReportPath(kind)
}

func urlPath(raw string) string {
	u, err := url.Parse(raw)
	if err != nil {
		return raw
	}
	return u.Path
}
