package walla

import (
	"errors"
)

// Automation failures. Callers match them with errors.Is; every returned
// error wraps exactly one of these.
var (
	ErrInvalidRequest            = errors.New("invalid report request")
	ErrSessionLaunch             = errors.New("browser session launch failed")
	ErrNavigation                = errors.New("navigation failed")
	ErrLoginFieldNotFound        = errors.New("login field not found")
	ErrLoginTimeout              = errors.New("login timed out")
	ErrLoginDidNotComplete       = errors.New("login did not complete")
	ErrUnexpectedLoginRedirect   = errors.New("unexpected redirect to login")
	ErrExportControlNotFound     = errors.New("export control not found")
	ErrDownloadFailed            = errors.New("download failed")
	ErrDownloadStreamUnavailable = errors.New("download stream unavailable")
)

var errorCodes = []struct {
	err  error
	code string
}{
	{ErrInvalidRequest, "invalid_request"},
	{ErrSessionLaunch, "session_launch_failed"},
	{ErrNavigation, "navigation_failed"},
	{ErrLoginFieldNotFound, "login_field_not_found"},
	{ErrLoginTimeout, "login_timeout"},
	{ErrLoginDidNotComplete, "login_did_not_complete"},
	{ErrUnexpectedLoginRedirect, "unexpected_login_redirect"},
	{ErrExportControlNotFound, "no_export_button"},
	{ErrDownloadFailed, "download_failed"},
	{ErrDownloadStreamUnavailable, "download_stream_unavailable"},
}

// Code maps err to a stable snake_case code for API responses
func Code(err error) string {
	for _, c := range errorCodes {
		if errors.Is(err, c.err) {
			return c.code
		}
	}
	return "export_failed"
}

// IsNoData reports whether err means the report page had nothing to export
func IsNoData(err error) bool {
	return errors.Is(err, ErrExportControlNotFound)
}
