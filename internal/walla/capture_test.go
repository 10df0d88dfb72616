package walla

import (
	"context"
	"io"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/shehryarbajwa/walla-export/internal/browser"
	"github.com/shehryarbajwa/walla-export/internal/browser/browsertest"
)

func TestCaptureDownloadsReport(t *testing.T) {
	s := newFakeSite(false)
	control := s.withExport("first-purchase-2024-01.csv", "", "email,first_purchase\na@b.c,2024-01-03\n")

	res, err := capture(context.Background(), s.page, firstPurchaseRequest(), fastTimeouts(), zap.NewNop())
	require.NoError(t, err)

	assert.Equal(t, "first-purchase-2024-01.csv", res.FileName)
	assert.Equal(t, "text/csv", res.MimeType)
	assert.Equal(t, "email,first_purchase\na@b.c,2024-01-03\n", string(res.Data))
	assert.Equal(t, 1, control.ClickCount())
	assert.True(t, control.LastClick.Force)
}

func TestCaptureFallsBackToTextMatch(t *testing.T) {
	page := browsertest.NewPage()
	page.Download = &browser.Download{SuggestedFilename: "sales.xlsx", Stream: io.NopCloser(strings.NewReader("PK"))}
	page.Add(exportByText, &browsertest.Element{})

	res, err := capture(context.Background(), page, firstPurchaseRequest(), fastTimeouts(), zap.NewNop())
	require.NoError(t, err)
	assert.Equal(t, "application/vnd.openxmlformats-officedocument.spreadsheetml.sheet", res.MimeType)
	assert.Len(t, page.QueriesTried(), 3)
}

func TestCaptureNoExportControl(t *testing.T) {
	s := newFakeSite(false)

	_, err := capture(context.Background(), s.page, firstPurchaseRequest(), fastTimeouts(), zap.NewNop())
	require.Error(t, err)
	assert.ErrorIs(t, err, ErrExportControlNotFound)
	assert.True(t, IsNoData(err))
	assert.Equal(t, []string{
		"role=button name=(?i)export",
		`text="Export"`,
		"text~export",
	}, s.page.QueriesTried())
}

func TestCaptureStreamUnavailable(t *testing.T) {
	s := newFakeSite(false)
	s.withExport("report.csv", "", "")
	s.page.Download.Stream = nil

	_, err := capture(context.Background(), s.page, firstPurchaseRequest(), fastTimeouts(), zap.NewNop())
	assert.ErrorIs(t, err, ErrDownloadStreamUnavailable)
	assert.False(t, IsNoData(err))
}

func TestCaptureDownloadEventMissing(t *testing.T) {
	s := newFakeSite(false)
	s.page.Add(exportByRole, &browsertest.Element{})

	_, err := capture(context.Background(), s.page, firstPurchaseRequest(), fastTimeouts(), zap.NewNop())
	assert.ErrorIs(t, err, ErrDownloadFailed)
	assert.ErrorIs(t, err, browser.ErrTimeout)
}

func TestCaptureNamesUnnamedDownload(t *testing.T) {
	s := newFakeSite(false)
	s.withExport("", "text/csv; charset=utf-8", "a,b\n")

	res, err := capture(context.Background(), s.page, firstPurchaseRequest(), fastTimeouts(), zap.NewNop())
	require.NoError(t, err)
	assert.Equal(t, "first-purchase-2024-01-01_2024-01-31", res.FileName)
	assert.Equal(t, "text/csv", res.MimeType)
}

func TestDetectMimeType(t *testing.T) {
	tests := []struct {
		name     string
		reported string
		file     string
		data     string
		want     string
	}{
		{"reported wins", "application/vnd.ms-excel", "report.csv", "a,b", "application/vnd.ms-excel"},
		{"reported params stripped", "text/csv; charset=utf-8", "report", "a,b", "text/csv"},
		{"extension", "", "REPORT.CSV", "a,b", "text/csv"},
		{"sniffed pdf", "", "report.bin", "%PDF-1.4\n%âãÏÓ\n", "application/pdf"},
		{"empty unknown", "", "report", "", defaultMimeType},
		{"malformed reported", ";;", "report.pdf", "", "application/pdf"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, detectMimeType(tt.reported, tt.file, []byte(tt.data)))
		})
	}
}
