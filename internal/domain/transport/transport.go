// Package transport defines the boundary to the external chat-protocol
// library. The session lifecycle manager consumes this interface only; the
// production implementation lives in internal/infrastructure/wameow.
package transport

import (
	"context"
	"time"

	"wahub/services/whatsapp-api/internal/domain/credential"
)

// CloseCode identifies why a connection closed. The terminal/transient
// classification is carried explicitly by Closed.Terminal; codes are for
// reporting, never for classification heuristics.
type CloseCode string

const (
	// CodeLoggedOut means the remote endpoint revoked authorization.
	CodeLoggedOut CloseCode = "logged_out"
	// CodeSessionCorrupt means the transport rejected the stored credentials.
	CodeSessionCorrupt CloseCode = "session_corrupt"
	// CodeStreamReplaced means another client took over the session.
	CodeStreamReplaced CloseCode = "stream_replaced"
	// CodeConnectionLost is a plain network-level drop.
	CodeConnectionLost CloseCode = "connection_lost"
	// CodeConnectFailure is a failed connection or pairing attempt.
	CodeConnectFailure CloseCode = "connect_failure"
	// CodeTemporaryBan is a time-limited upstream rejection.
	CodeTemporaryBan CloseCode = "temporary_ban"
)

// Event is one item on a handle's ordered per-tenant event stream.
type Event interface {
	event()
}

// Pairing carries a fresh pairing payload to show to the user.
type Pairing struct {
	Payload string
}

// Connected reports a successful connect with the assigned identity.
type Connected struct {
	Identity string
}

// Closed reports that the connection ended. It is the final event on the
// stream; the channel is closed after it.
type Closed struct {
	Code     CloseCode
	Terminal bool
}

// Credentials carries updated credential blobs to persist. A nil blob value
// means the key is no longer needed and must be removed.
type Credentials struct {
	Blobs map[string][]byte
}

// Message is an inbound message envelope to forward.
type Message struct {
	Envelope MessageEnvelope
}

// ContactsSync is a batch of contact updates to forward.
type ContactsSync struct {
	Contacts []Contact
}

// ChatsSync is a batch of chat updates to forward.
type ChatsSync struct {
	Chats []Chat
}

func (Pairing) event()      {}
func (Connected) event()    {}
func (Closed) event()       {}
func (Credentials) event()  {}
func (Message) event()      {}
func (ContactsSync) event() {}
func (ChatsSync) event()    {}

// MessageEnvelope is the normalized inbound message shape.
type MessageEnvelope struct {
	MessageID string
	From      string
	PushName  string
	Type      string
	Text      string
	Timestamp time.Time
}

// Contact is a normalized contact entry.
type Contact struct {
	ID   string
	Name string
}

// Chat is a normalized chat entry.
type Chat struct {
	ID          string
	Name        string
	UnreadCount int
}

// ContentType enumerates outbound message kinds.
type ContentType string

const (
	ContentText     ContentType = "text"
	ContentImage    ContentType = "image"
	ContentDocument ContentType = "document"
	ContentLocation ContentType = "location"
	ContentSticker  ContentType = "sticker"
	ContentContact  ContentType = "contact"
)

// Content describes one outbound message. Media is referenced by URL and
// fetched by the transport at send time. Contact messages carry a display
// name and phone number; the transport renders the vCard.
type Content struct {
	Type         ContentType
	Text         string
	URL          string
	Caption      string
	MimeType     string
	FileName     string
	Latitude     float64
	Longitude    float64
	ContactName  string
	ContactPhone string
}

// SendReceipt reports the transport-assigned id of a sent message.
type SendReceipt struct {
	MessageID string
	Timestamp time.Time
}

// Handle is the live connection object for one tenant.
//
// Events returns the handle's ordered event stream. The stream ends with a
// Closed event followed by channel close; after that the handle is dead and
// a new one must be dialed.
//
// Terminate logs the session out remotely and invalidates its pairing;
// Detach only drops the local connection, leaving the pairing intact so a
// later Dial can resume it.
type Handle interface {
	Events() <-chan Event
	Send(ctx context.Context, to string, content Content) (SendReceipt, error)
	Terminate(ctx context.Context) error
	Detach()
}

// Dialer constructs a Handle for a tenant from its persisted credentials.
// A dial error is synchronous; once a Handle is returned, all further
// failures arrive as Closed events on its stream.
type Dialer interface {
	Dial(ctx context.Context, tenantID string, creds credential.Scope) (Handle, error)
}
