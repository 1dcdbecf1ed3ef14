// Package sessionreq contains HTTP request DTOs for session endpoints.
package sessionreq

// StartSessionRequest is the body for starting (or reconfiguring) a session.
// The webhook URL is optional; when present it replaces the stored one
// before the connection is built.
type StartSessionRequest struct {
	WebhookURL string `json:"webhook_url,omitempty"`
}

// ProvisionTokenRequest is the operator request that registers a tenant and
// issues its API token.
type ProvisionTokenRequest struct {
	TenantID   string `json:"tenant_id" binding:"required"`
	WebhookURL string `json:"webhook_url,omitempty"`
}

// SendMessageRequest is the body for sending an outbound message.
type SendMessageRequest struct {
	To           string  `json:"to" binding:"required"`
	Type         string  `json:"type" binding:"required,oneof=text image document location sticker contact"`
	Text         string  `json:"text,omitempty"`
	URL          string  `json:"url,omitempty"`
	Caption      string  `json:"caption,omitempty"`
	MimeType     string  `json:"mime_type,omitempty"`
	FileName     string  `json:"file_name,omitempty"`
	Latitude     float64 `json:"latitude,omitempty"`
	Longitude    float64 `json:"longitude,omitempty"`
	ContactName  string  `json:"contact_name,omitempty"`
	ContactPhone string  `json:"contact_phone,omitempty"`
}
