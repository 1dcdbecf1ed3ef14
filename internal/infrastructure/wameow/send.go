package wameow

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/go-resty/resty/v2"
	"go.mau.fi/whatsmeow"
	"go.mau.fi/whatsmeow/proto/waE2E"
	"go.mau.fi/whatsmeow/types"
	"google.golang.org/protobuf/proto"

	"wahub/services/whatsapp-api/internal/domain/transport"
)

const mediaFetchTimeout = 30 * time.Second

// mediaClient fetches URL-referenced media before uploading it to the
// WhatsApp media servers.
var mediaClient = resty.New().
	SetHeader("User-Agent", "wahub-whatsapp-api/1.0").
	SetTimeout(mediaFetchTimeout).
	SetRetryCount(0)

// Send uploads any referenced media and dispatches one outbound message.
func (h *handle) Send(ctx context.Context, to string, content transport.Content) (transport.SendReceipt, error) {
	if !h.client.IsConnected() || !h.client.IsLoggedIn() {
		return transport.SendReceipt{}, fmt.Errorf("client for tenant %s is not connected", h.tenantID)
	}

	remoteJID, err := composeJID(to)
	if err != nil {
		return transport.SendReceipt{}, err
	}

	msg, err := h.buildMessage(ctx, content)
	if err != nil {
		return transport.SendReceipt{}, err
	}

	extra := whatsmeow.SendRequestExtra{ID: h.client.GenerateMessageID()}
	resp, err := h.client.SendMessage(ctx, remoteJID, msg, extra)
	if err != nil {
		return transport.SendReceipt{}, fmt.Errorf("send message: %w", err)
	}

	return transport.SendReceipt{
		MessageID: extra.ID,
		Timestamp: resp.Timestamp,
	}, nil
}

func (h *handle) buildMessage(ctx context.Context, content transport.Content) (*waE2E.Message, error) {
	switch content.Type {
	case transport.ContentText:
		return &waE2E.Message{
			Conversation: proto.String(content.Text),
		}, nil

	case transport.ContentImage:
		data, err := fetchMedia(ctx, content.URL)
		if err != nil {
			return nil, err
		}
		uploaded, err := h.client.Upload(ctx, data, whatsmeow.MediaImage)
		if err != nil {
			return nil, fmt.Errorf("upload image: %w", err)
		}
		return &waE2E.Message{
			ImageMessage: &waE2E.ImageMessage{
				URL:           proto.String(uploaded.URL),
				DirectPath:    proto.String(uploaded.DirectPath),
				Mimetype:      proto.String(content.MimeType),
				Caption:       proto.String(content.Caption),
				FileLength:    proto.Uint64(uploaded.FileLength),
				FileSHA256:    uploaded.FileSHA256,
				FileEncSHA256: uploaded.FileEncSHA256,
				MediaKey:      uploaded.MediaKey,
			},
		}, nil

	case transport.ContentDocument:
		data, err := fetchMedia(ctx, content.URL)
		if err != nil {
			return nil, err
		}
		uploaded, err := h.client.Upload(ctx, data, whatsmeow.MediaDocument)
		if err != nil {
			return nil, fmt.Errorf("upload document: %w", err)
		}
		return &waE2E.Message{
			DocumentMessage: &waE2E.DocumentMessage{
				URL:           proto.String(uploaded.URL),
				DirectPath:    proto.String(uploaded.DirectPath),
				Mimetype:      proto.String(content.MimeType),
				FileName:      proto.String(content.FileName),
				Caption:       proto.String(content.Caption),
				FileLength:    proto.Uint64(uploaded.FileLength),
				FileSHA256:    uploaded.FileSHA256,
				FileEncSHA256: uploaded.FileEncSHA256,
				MediaKey:      uploaded.MediaKey,
			},
		}, nil

	case transport.ContentSticker:
		data, err := fetchMedia(ctx, content.URL)
		if err != nil {
			return nil, err
		}
		uploaded, err := h.client.Upload(ctx, data, whatsmeow.MediaImage)
		if err != nil {
			return nil, fmt.Errorf("upload sticker: %w", err)
		}
		mimeType := content.MimeType
		if mimeType == "" {
			// Stickers must be webp; anything else renders as a broken tile.
			mimeType = "image/webp"
		}
		return &waE2E.Message{
			StickerMessage: &waE2E.StickerMessage{
				URL:           proto.String(uploaded.URL),
				DirectPath:    proto.String(uploaded.DirectPath),
				Mimetype:      proto.String(mimeType),
				FileLength:    proto.Uint64(uploaded.FileLength),
				FileSHA256:    uploaded.FileSHA256,
				FileEncSHA256: uploaded.FileEncSHA256,
				MediaKey:      uploaded.MediaKey,
			},
		}, nil

	case transport.ContentContact:
		return &waE2E.Message{
			ContactMessage: &waE2E.ContactMessage{
				DisplayName: proto.String(content.ContactName),
				Vcard:       proto.String(composeVCard(content.ContactName, content.ContactPhone)),
			},
		}, nil

	case transport.ContentLocation:
		return &waE2E.Message{
			LocationMessage: &waE2E.LocationMessage{
				DegreesLatitude:  proto.Float64(content.Latitude),
				DegreesLongitude: proto.Float64(content.Longitude),
			},
		}, nil

	default:
		return nil, fmt.Errorf("unsupported content type %q", content.Type)
	}
}

func fetchMedia(ctx context.Context, url string) ([]byte, error) {
	if url == "" {
		return nil, fmt.Errorf("media URL is empty")
	}
	resp, err := mediaClient.R().SetContext(ctx).Get(url)
	if err != nil {
		return nil, fmt.Errorf("fetch media: %w", err)
	}
	if resp.IsError() {
		return nil, fmt.Errorf("fetch media: endpoint returned status %d", resp.StatusCode())
	}
	return resp.Body(), nil
}

// composeVCard renders a minimal vCard 3.0 for one contact. The waid
// parameter is what makes the entry tappable inside WhatsApp.
func composeVCard(name, phone string) string {
	phone = decomposeJID(phone)
	return "BEGIN:VCARD\n" +
		"VERSION:3.0\n" +
		"FN:" + name + "\n" +
		"TEL;type=CELL;type=VOICE;waid=" + phone + ":+" + phone + "\n" +
		"END:VCARD"
}

// composeJID normalizes a recipient identifier into a JID. Full JIDs pass
// through; long or hyphenated ids are treated as groups, everything else as
// a personal number.
func composeJID(id string) (types.JID, error) {
	if strings.ContainsRune(id, '@') {
		if parsed, err := types.ParseJID(id); err == nil && parsed.User != "" {
			return parsed, nil
		}
	}

	id = decomposeJID(id)
	if id == "" {
		return types.EmptyJID, fmt.Errorf("recipient id is empty")
	}

	if strings.ContainsRune(id, '-') || len(id) >= 18 {
		return types.NewJID(id, types.GroupServer), nil
	}
	return types.NewJID(id, types.DefaultUserServer), nil
}

func decomposeJID(id string) string {
	if strings.ContainsRune(id, '@') {
		id = strings.Split(id, "@")[0]
	}
	if len(id) > 0 && id[0] == '+' {
		id = id[1:]
	}
	return strings.TrimSpace(id)
}
