package api

import (
	"context"
	"encoding/base64"
	"encoding/json"
	"errors"
	"net/http"
	"strconv"
	"time"

	"go.uber.org/zap"

	"github.com/shehryarbajwa/walla-export/internal/logging"
	"github.com/shehryarbajwa/walla-export/internal/walla"
	"github.com/shehryarbajwa/walla-export/pkg/models"
)

const dateLayout = "2006-01-02"

// Exporter runs a single report export
type Exporter interface {
	Export(ctx context.Context, req models.ReportRequest) (*models.ExportResult, error)
}

// Webhook forwards a finished export to a caller-supplied URL
type Webhook interface {
	Deliver(ctx context.Context, target string, payload models.WebhookPayload) *models.WebhookResult
}

// Handler holds dependencies for HTTP handlers
type Handler struct {
	exporter     Exporter
	webhook      Webhook
	credentials  models.Credentials
	defaultScale float64
	logger       *zap.Logger
}

// NewHandler creates the export handler. credentials, when complete, take
// precedence over anything a caller passes in the query string.
func NewHandler(exporter Exporter, webhook Webhook, credentials models.Credentials, defaultScale float64, logger *zap.Logger) *Handler {
	return &Handler{
		exporter:     exporter,
		webhook:      webhook,
		credentials:  credentials,
		defaultScale: defaultScale,
		logger:       logger,
	}
}

// Health handles GET /healthz
func (h *Handler) Health(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]bool{"ok": true})
}

// Export returns the handler for GET /export-walla-{report}
func (h *Handler) Export(kind models.ReportKind) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		logger := h.logger.With(
			zap.String(logging.RequestID, logging.RequestIDFrom(r.Context())),
			zap.String(logging.Report, kind.Slug()),
		)

		req, apiErr := h.parseRequest(r, kind)
		if apiErr != nil {
			logger.Info("rejected export request", zap.String("error", apiErr.Error))
			writeJSON(w, http.StatusBadRequest, apiErr)
			return
		}

		result, err := h.exporter.Export(r.Context(), req)
		if err != nil {
			h.writeExportError(w, logger, err)
			return
		}

		resp := models.ExportResponse{
			OK:         true,
			FileName:   result.FileName,
			MimeType:   result.MimeType,
			FileBase64: base64.StdEncoding.EncodeToString(result.Data),
		}

		if target := r.URL.Query().Get("webhook"); target != "" && h.webhook != nil {
			resp.WebhookResult = h.webhook.Deliver(r.Context(), target, models.WebhookPayload{
				OK:         true,
				Report:     kind.Slug(),
				Start:      req.StartDate,
				End:        req.EndDate,
				FileName:   resp.FileName,
				MimeType:   resp.MimeType,
				FileBase64: resp.FileBase64,
			})
		}

		writeJSON(w, http.StatusOK, resp)
	}
}

// parseRequest validates the query string. Everything here is checked
// before a browser is launched.
func (h *Handler) parseRequest(r *http.Request, kind models.ReportKind) (models.ReportRequest, *models.ErrorResponse) {
	q := r.URL.Query()

	start, end := q.Get("start"), q.Get("end")
	if start == "" || end == "" {
		return models.ReportRequest{}, &models.ErrorResponse{
			Error:   "missing_params",
			Details: "start and end are required (YYYY-MM-DD)",
		}
	}
	if err := validateDates(start, end); err != nil {
		return models.ReportRequest{}, &models.ErrorResponse{Error: "invalid_dates", Details: err.Error()}
	}

	creds := h.credentials
	if creds.Empty() {
		creds = models.Credentials{Username: q.Get("user"), Password: q.Get("pass")}
	}
	if creds.Empty() {
		return models.ReportRequest{}, &models.ErrorResponse{
			Error:   "missing_credentials",
			Details: "set WALLA_USER and WALLA_PASS or pass user and pass",
		}
	}

	scale := h.defaultScale
	if raw := q.Get("scale"); raw != "" {
		f, err := strconv.ParseFloat(raw, 64)
		if err != nil {
			return models.ReportRequest{}, &models.ErrorResponse{Error: "invalid_scale", Details: "scale must be a number"}
		}
		scale = f
	}

	return models.ReportRequest{
		Kind:        kind,
		StartDate:   start,
		EndDate:     end,
		Credentials: creds,
		ScaleFactor: scale,
	}, nil
}

func validateDates(start, end string) error {
	s, err := time.Parse(dateLayout, start)
	if err != nil {
		return errors.New("start must be YYYY-MM-DD")
	}
	e, err := time.Parse(dateLayout, end)
	if err != nil {
		return errors.New("end must be YYYY-MM-DD")
	}
	if s.After(e) {
		return errors.New("start must not be after end")
	}
	return nil
}

func (h *Handler) writeExportError(w http.ResponseWriter, logger *zap.Logger, err error) {
	switch {
	case walla.IsNoData(err):
		logger.Info("report has nothing to export", zap.Error(err))
		writeJSON(w, http.StatusOK, models.ErrorResponse{Error: "no_export_button", Details: err.Error()})
	case errors.Is(err, walla.ErrInvalidRequest):
		writeJSON(w, http.StatusBadRequest, models.ErrorResponse{Error: "invalid_params", Details: err.Error()})
	default:
		logger.Error("export failed", zap.Error(err))
		writeJSON(w, http.StatusInternalServerError, models.ErrorResponse{
			Error:   "export_failed",
			Code:    walla.Code(err),
			Details: err.Error(),
		})
	}
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}
