package session

import "time"

// Status represents the lifecycle state of a tenant session.
type Status string

const (
	// StatusUninitialized means the record exists but no connection was made.
	StatusUninitialized Status = "UNINITIALIZED"
	// StatusQRReady means a pairing payload is waiting to be scanned.
	StatusQRReady Status = "QR_READY"
	// StatusConnected means the session is live and paired.
	StatusConnected Status = "CONNECTED"
	// StatusReconnecting means the session dropped and a retry is scheduled.
	StatusReconnecting Status = "RECONNECTING"
	// StatusDisconnected is terminal; credentials are wiped and the tenant
	// must start over from UNINITIALIZED.
	StatusDisconnected Status = "DISCONNECTED"
)

// Record is the durable state of one tenant session.
//
// Invariants maintained by the record store:
//   - PairingPayload is non-empty iff Status == QR_READY.
//   - Identity is non-empty iff Status is CONNECTED or RECONNECTING; it is
//     retained across transient drops and cleared only on terminal teardown.
type Record struct {
	TenantID       string
	Status         Status
	PairingPayload string
	WebhookURL     string
	Identity       string
	Token          string
	RetryCount     int
	CreatedAt      time.Time
	UpdatedAt      time.Time
}

// Resumable reports whether the session should be rebuilt automatically
// after a process restart.
func (r *Record) Resumable() bool {
	return r.Status == StatusConnected || r.Status == StatusReconnecting
}
