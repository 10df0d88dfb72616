package walla

import (
	"context"
	"errors"
	"fmt"
	"io"
	"mime"
	"path/filepath"
	"strings"

	"github.com/gabriel-vasile/mimetype"
	"go.uber.org/zap"

	"github.com/shehryarbajwa/walla-export/internal/browser"
	"github.com/shehryarbajwa/walla-export/pkg/models"
)

const defaultMimeType = "application/octet-stream"

var reportMimeTypes = map[string]string{
	".csv":  "text/csv",
	".xlsx": "application/vnd.openxmlformats-officedocument.spreadsheetml.sheet",
	".xls":  "application/vnd.ms-excel",
	".pdf":  "application/pdf",
	".json": "application/json",
	".zip":  "application/zip",
}

// capture finds the export control on a rendered report page, clicks it and
// reads the resulting download into memory.
func capture(ctx context.Context, page browser.Page, req models.ReportRequest, t Timeouts, logger *zap.Logger) (*models.ExportResult, error) {
	control, err := t.exportChain().Find(ctx, page, logger)
	if err != nil {
		if errors.Is(err, browser.ErrElementNotFound) {
			return nil, fmt.Errorf("%w: %w", ErrExportControlNotFound, err)
		}
		return nil, fmt.Errorf("%w: %w", ErrNavigation, err)
	}

	dl, err := page.CaptureDownload(ctx, func() error {
		return control.Click(ctx, browser.ClickOptions{Force: true, Timeout: t.Click})
	}, t.Download)
	if err != nil {
		return nil, fmt.Errorf("%w: %w", ErrDownloadFailed, err)
	}
	if dl.Stream == nil {
		return nil, fmt.Errorf("%w: %s", ErrDownloadStreamUnavailable, dl.SuggestedFilename)
	}
	defer dl.Stream.Close()

	data, err := io.ReadAll(dl.Stream)
	if err != nil {
		return nil, fmt.Errorf("%w: reading download: %w", ErrDownloadStreamUnavailable, err)
	}

	name := dl.SuggestedFilename
	if name == "" {
		name = fmt.Sprintf("%s-%s_%s", req.Kind.Slug(), req.StartDate, req.EndDate)
	}

	result := &models.ExportResult{
		FileName: name,
		MimeType: detectMimeType(dl.MimeType, name, data),
		Data:     data,
	}
	logger.Info("export downloaded",
		zap.String("file", result.FileName),
		zap.String("mime", result.MimeType),
		zap.Int("bytes", len(data)))
	return result, nil
}

// detectMimeType prefers what the server reported, then the file extension,
// then the content itself.
func detectMimeType(reported, name string, data []byte) string {
	if mt := baseType(reported); mt != "" {
		return mt
	}
	if mt, ok := reportMimeTypes[strings.ToLower(filepath.Ext(name))]; ok {
		return mt
	}
	if len(data) == 0 {
		return defaultMimeType
	}
	if mt := baseType(mimetype.Detect(data).String()); mt != "" {
		return mt
	}
	return defaultMimeType
}

func baseType(contentType string) string {
	if contentType == "" {
		return ""
	}
	mt, _, err := mime.ParseMediaType(contentType)
	if err != nil {
		return ""
	}
	return mt
}
