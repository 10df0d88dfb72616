package models

import (
	"fmt"
	"strings"
)

// ReportKind identifies one of the two Walla report exports
type ReportKind string

const (
	ReportSalesCashBasis ReportKind = "SALES_CASH_BASIS"
	ReportFirstPurchase  ReportKind = "FIRST_PURCHASE"
)

// ReportKinds lists every supported kind in route order
var ReportKinds = []ReportKind{ReportSalesCashBasis, ReportFirstPurchase}

// Slug returns the kebab-case name used in routes and report paths
func (k ReportKind) Slug() string {
	return strings.ReplaceAll(strings.ToLower(string(k)), "_", "-")
}

// ParseReportKind accepts either the enum value or its slug
func ParseReportKind(s string) (ReportKind, error) {
	for _, k := range ReportKinds {
		if s == string(k) || s == k.Slug() {
			return k, nil
		}
	}
	return "", fmt.Errorf("unknown report kind %q", s)
}

// Credentials for the Walla login form
type Credentials struct {
	Username string
	Password string
}

// Empty reports whether either half of the pair is missing
func (c Credentials) Empty() bool {
	return c.Username == "" || c.Password == ""
}

// ReportRequest describes a single export. Treat it as a value; nothing
// mutates it after construction.
type ReportRequest struct {
	Kind        ReportKind
	StartDate   string
	EndDate     string
	Credentials Credentials
	ScaleFactor float64
}

// ExportResult is the downloaded report held in memory
type ExportResult struct {
	FileName string
	MimeType string
	Data     []byte
}
