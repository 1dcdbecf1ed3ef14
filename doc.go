// Package whatsappapi implements the whatsapp-api service which provides
// multi-tenant WhatsApp session lifecycle management.
//
// The service provides:
//   - Session creation with QR pairing payload delivery
//   - Session lifecycle management (start, stop, status, automatic reconnection)
//   - Session restoration after process restarts
//   - Outbound text, image, document and location messages
//   - Webhook delivery of lifecycle and inbound traffic events
//   - Tenant token provisioning behind an admin secret
package whatsappapi
