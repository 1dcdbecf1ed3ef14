package webhook

import (
	"context"
	"time"

	"github.com/go-resty/resty/v2"
	"github.com/rs/zerolog"

	"wahub/services/whatsapp-api/internal/domain/session"
	"wahub/services/whatsapp-api/internal/infrastructure/metrics"
)

const defaultTimeout = 5 * time.Second

// Dispatcher posts lifecycle and traffic events to the webhook URL a tenant
// registered. Delivery is at-most-once: a single attempt per event, no
// retries, failures logged and dropped. Every delivery re-reads the record
// so a URL updated mid-session takes effect on the next event.
type Dispatcher struct {
	client  *resty.Client
	records session.Store
	log     zerolog.Logger
}

// NewDispatcher builds a dispatcher with the given per-delivery timeout.
func NewDispatcher(records session.Store, timeout time.Duration, log zerolog.Logger) *Dispatcher {
	if timeout <= 0 {
		timeout = defaultTimeout
	}
	client := resty.New().
		SetHeader("User-Agent", "wahub-whatsapp-api/1.0").
		SetHeader("Content-Type", "application/json").
		SetTimeout(timeout).
		SetRetryCount(0)
	return &Dispatcher{
		client:  client,
		records: records,
		log:     log.With().Str("component", "webhook").Logger(),
	}
}

// Deliver posts one event envelope to the tenant's webhook URL. It returns
// immediately; the HTTP round trip happens on its own goroutine so slow or
// dead endpoints never stall lifecycle processing.
func (d *Dispatcher) Deliver(ctx context.Context, tenantID, event string, payload map[string]any) {
	rec, err := d.records.Find(ctx, tenantID)
	if err != nil {
		d.log.Warn().Err(err).Str("tenant_id", tenantID).Str("event", event).Msg("load record for webhook delivery")
		return
	}
	if rec.WebhookURL == "" {
		d.log.Debug().Str("tenant_id", tenantID).Str("event", event).Msg("no webhook URL configured, dropping event")
		return
	}

	envelope := make(map[string]any, len(payload)+2)
	for k, v := range payload {
		envelope[k] = v
	}
	envelope["event"] = event
	envelope["tenant"] = tenantID

	go d.post(rec.WebhookURL, tenantID, event, envelope)
}

func (d *Dispatcher) post(url, tenantID, event string, envelope map[string]any) {
	start := time.Now()
	resp, err := d.client.R().
		SetHeader("X-Wahub-Event", event).
		SetBody(envelope).
		Post(url)
	elapsed := time.Since(start).Seconds()

	if err != nil {
		metrics.RecordWebhookDelivery(event, "error", elapsed)
		d.log.Warn().Err(err).Str("tenant_id", tenantID).Str("event", event).Msg("webhook delivery failed")
		return
	}
	if resp.IsError() {
		metrics.RecordWebhookDelivery(event, "rejected", elapsed)
		d.log.Warn().
			Str("tenant_id", tenantID).
			Str("event", event).
			Int("status", resp.StatusCode()).
			Msg("webhook endpoint rejected event")
		return
	}

	metrics.RecordWebhookDelivery(event, "ok", elapsed)
	d.log.Debug().Str("tenant_id", tenantID).Str("event", event).Int("status", resp.StatusCode()).Msg("webhook delivered")
}
