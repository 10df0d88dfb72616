package models

// ExportResponse is the JSON body returned by the export endpoints
type ExportResponse struct {
	OK            bool           `json:"ok"`
	FileName      string         `json:"fileName,omitempty"`
	MimeType      string         `json:"mimeType,omitempty"`
	FileBase64    string         `json:"fileBase64,omitempty"`
	WebhookResult *WebhookResult `json:"webhookResult"`
}

// ErrorResponse is the JSON body for every non-success outcome
type ErrorResponse struct {
	OK      bool   `json:"ok"`
	Error   string `json:"error"`
	Code    string `json:"code,omitempty"`
	Details string `json:"details,omitempty"`
}

// WebhookResult records the out-of-band delivery attempt
type WebhookResult struct {
	OK         bool   `json:"ok"`
	StatusCode int    `json:"status,omitempty"`
	Error      string `json:"error,omitempty"`
}

// WebhookPayload is POSTed to the caller's webhook after a successful export
type WebhookPayload struct {
	OK         bool   `json:"ok"`
	Report     string `json:"report"`
	Start      string `json:"start"`
	End        string `json:"end"`
	FileName   string `json:"fileName"`
	MimeType   string `json:"mimeType"`
	FileBase64 string `json:"fileBase64"`
}
