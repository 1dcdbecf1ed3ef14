package wameow

import (
	"context"
	"sync"
	"time"

	"github.com/rs/zerolog"
	"go.mau.fi/whatsmeow"
	"go.mau.fi/whatsmeow/proto/waE2E"
	"go.mau.fi/whatsmeow/types/events"

	"wahub/services/whatsapp-api/internal/domain/transport"
)

const (
	eventBufferSize      = 64
	logoutRequestTimeout = 30 * time.Second
)

// handle adapts one whatsmeow client to the transport.Handle contract. The
// whatsmeow event callback and the QR pump both feed the same outbound
// channel; emit serializes them and drops everything after the stream ends.
type handle struct {
	tenantID string
	client   *whatsmeow.Client
	log      zerolog.Logger

	mu     sync.Mutex
	closed bool
	events chan transport.Event
}

var _ transport.Handle = (*handle)(nil)

func newHandle(tenantID string, client *whatsmeow.Client, log zerolog.Logger) *handle {
	return &handle{
		tenantID: tenantID,
		client:   client,
		log:      log,
		events:   make(chan transport.Event, eventBufferSize),
	}
}

// Events returns the ordered per-tenant event stream.
func (h *handle) Events() <-chan transport.Event {
	return h.events
}

// route is the whatsmeow event callback. Terminal protocol signals map to a
// terminal Closed; everything recoverable maps to a transient one.
func (h *handle) route(evt any) {
	switch e := evt.(type) {
	case *events.Connected:
		if h.client.Store.ID != nil {
			h.emit(transport.Credentials{Blobs: map[string][]byte{
				deviceKey: []byte(h.client.Store.ID.String()),
			}})
			h.emit(transport.Connected{Identity: h.client.Store.ID.User})
		}

	case *events.LoggedOut:
		h.client.Disconnect()
		h.close(transport.CodeLoggedOut, true)

	case *events.StreamReplaced:
		h.client.Disconnect()
		h.close(transport.CodeStreamReplaced, true)

	case *events.TemporaryBan:
		// Time-limited rejection; the retry budget bounds how long we keep
		// knocking.
		h.log.Warn().Str("reason", e.Code.String()).Dur("expire", e.Expire).Msg("temporary ban")
		h.close(transport.CodeTemporaryBan, false)

	case *events.ClientOutdated:
		h.close(transport.CodeSessionCorrupt, true)

	case *events.Disconnected:
		h.close(transport.CodeConnectionLost, false)

	case *events.ConnectFailure:
		h.log.Warn().Str("reason", e.Reason.String()).Msg("connect failure")
		h.client.Disconnect()
		h.close(transport.CodeConnectFailure, false)

	case *events.Message:
		h.emit(transport.Message{Envelope: envelopeFrom(e)})

	case *events.HistorySync:
		h.routeHistorySync(e)
	}
}

// pumpQR forwards pairing codes from the whatsmeow QR channel. The channel
// delivers a fresh code every few seconds until pairing succeeds or the
// window times out.
func (h *handle) pumpQR(ctx context.Context, cancel context.CancelFunc, qrChan <-chan whatsmeow.QRChannelItem) {
	defer cancel()
	for {
		select {
		case <-ctx.Done():
			return
		case item, ok := <-qrChan:
			if !ok {
				return
			}
			switch item.Event {
			case "code":
				h.emit(transport.Pairing{Payload: item.Code})
			case whatsmeow.QRChannelSuccess.Event:
				// events.Connected carries the rest.
				return
			case whatsmeow.QRChannelTimeout.Event:
				h.log.Info().Msg("pairing window expired")
				h.client.Disconnect()
				h.close(transport.CodeConnectionLost, false)
				return
			default:
				if item.Error != nil {
					h.log.Warn().Err(item.Error).Msg("qr channel error")
				}
				h.client.Disconnect()
				h.close(transport.CodeConnectFailure, false)
				return
			}
		}
	}
}

func (h *handle) routeHistorySync(e *events.HistorySync) {
	if e.Data == nil {
		return
	}

	if pushnames := e.Data.GetPushnames(); len(pushnames) > 0 {
		contacts := make([]transport.Contact, 0, len(pushnames))
		for _, p := range pushnames {
			contacts = append(contacts, transport.Contact{
				ID:   p.GetID(),
				Name: p.GetPushname(),
			})
		}
		h.emit(transport.ContactsSync{Contacts: contacts})
	}

	if conversations := e.Data.GetConversations(); len(conversations) > 0 {
		chats := make([]transport.Chat, 0, len(conversations))
		for _, c := range conversations {
			chats = append(chats, transport.Chat{
				ID:          c.GetID(),
				Name:        c.GetName(),
				UnreadCount: int(c.GetUnreadCount()),
			})
		}
		h.emit(transport.ChatsSync{Chats: chats})
	}
}

func envelopeFrom(e *events.Message) transport.MessageEnvelope {
	env := transport.MessageEnvelope{
		MessageID: e.Info.ID,
		From:      e.Info.Sender.String(),
		PushName:  e.Info.PushName,
		Type:      "text",
		Timestamp: e.Info.Timestamp,
	}
	env.Type, env.Text = classifyMessage(e.Message)
	return env
}

func classifyMessage(msg *waE2E.Message) (kind, text string) {
	switch {
	case msg == nil:
		return "unknown", ""
	case msg.ImageMessage != nil:
		return "image", msg.ImageMessage.GetCaption()
	case msg.StickerMessage != nil:
		return "sticker", ""
	case msg.ContactMessage != nil:
		return "contact", msg.ContactMessage.GetDisplayName()
	case msg.DocumentMessage != nil:
		return "document", msg.DocumentMessage.GetCaption()
	case msg.LocationMessage != nil:
		return "location", ""
	case msg.ExtendedTextMessage != nil:
		return "text", msg.ExtendedTextMessage.GetText()
	default:
		return "text", msg.GetConversation()
	}
}

// emit queues an event unless the stream already ended.
func (h *handle) emit(ev transport.Event) {
	h.mu.Lock()
	defer h.mu.Unlock()
	if h.closed {
		return
	}
	select {
	case h.events <- ev:
	default:
		h.log.Warn().Msg("event buffer full, dropping transport event")
	}
}

// close ends the stream with a Closed event. Only the first close wins.
// Unlike emit, the final event is never dropped: a terminal close that got
// lost behind a full buffer would be misread as a plain stream end and
// retried instead of torn down, so the send blocks until the consumer
// drains.
func (h *handle) close(code transport.CloseCode, terminal bool) {
	h.mu.Lock()
	if h.closed {
		h.mu.Unlock()
		return
	}
	h.closed = true
	h.mu.Unlock()

	h.events <- transport.Closed{Code: code, Terminal: terminal}
	close(h.events)
}

// shut ends the stream without a Closed event, for callers that already own
// the teardown.
func (h *handle) shut() {
	h.mu.Lock()
	defer h.mu.Unlock()
	if h.closed {
		return
	}
	h.closed = true
	close(h.events)
}

// Detach drops the connection without touching the pairing, so the session
// can be resumed by a later dial.
func (h *handle) Detach() {
	h.shut()
	h.client.Disconnect()
}

// Terminate logs the device out remotely and wipes its datastore entry.
// Used for explicit teardown; the caller handles record and credential
// cleanup.
func (h *handle) Terminate(ctx context.Context) error {
	h.shut()

	if h.client.Store.ID == nil {
		h.client.Disconnect()
		return nil
	}

	logoutCtx, cancel := context.WithTimeout(ctx, logoutRequestTimeout)
	defer cancel()

	if err := h.client.Logout(logoutCtx); err != nil {
		// The remote logout can fail when the connection is already gone;
		// deleting the local device state still invalidates the pairing.
		h.client.Disconnect()
		if delErr := h.client.Store.Delete(ctx); delErr != nil {
			return delErr
		}
		return err
	}
	return nil
}
