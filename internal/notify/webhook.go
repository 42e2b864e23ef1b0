// Package notify delivers wager status events to the outside world: the
// Discord channel, per-user webhooks, Redis pub/sub and Kafka.
package notify

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"sync"
	"time"

	"go.uber.org/zap"

	"wagerbot/internal/events"
	"wagerbot/internal/metrics"
)

// Payload is the body POSTed to a user's webhook.
type Payload struct {
	Event       string    `json:"event"`
	WagerID     int64     `json:"wager_id,omitempty"`
	UserID      string    `json:"user_id,omitempty"`
	Description string    `json:"description,omitempty"`
	Status      string    `json:"status,omitempty"`
	Outcome     string    `json:"outcome,omitempty"`
	TotalPot    string    `json:"total_pot,omitempty"`
	Timestamp   time.Time `json:"timestamp"`
}

// WebhookStore looks up a user's webhook URL; empty means none configured.
type WebhookStore interface {
	GetWebhook(ctx context.Context, userID string) (string, error)
}

// Webhook posts settled wagers to each participant's webhook.
type Webhook struct {
	store  WebhookStore
	client *http.Client
	log    *zap.Logger
	wg     sync.WaitGroup
}

func NewWebhook(store WebhookStore, timeout time.Duration, log *zap.Logger) *Webhook {
	if log == nil {
		log = zap.NewNop()
	}
	if timeout <= 0 {
		timeout = 5 * time.Second
	}
	return &Webhook{
		store:  store,
		client: &http.Client{Timeout: timeout},
		log:    log.Named("webhook"),
	}
}

// Notify only reacts to resolutions and cancellations. Deliveries run in
// the background; Wait blocks until they finish.
func (h *Webhook) Notify(ctx context.Context, e events.Event) {
	if !e.Terminal() {
		return
	}
	for _, userID := range e.Participants {
		url, err := h.store.GetWebhook(ctx, userID)
		if err != nil {
			metrics.NotifyFailures.WithLabelValues("webhook").Inc()
			h.log.Warn("webhook lookup failed", zap.String("user_id", userID), zap.Error(err))
			continue
		}
		if url == "" {
			continue
		}

		p := Payload{
			Event:       string(e.Kind),
			WagerID:     e.WagerID,
			UserID:      userID,
			Description: e.Description,
			Status:      e.Status,
			Outcome:     e.Outcome,
			TotalPot:    e.TotalPot,
			Timestamp:   e.OccurredAt,
		}
		h.wg.Add(1)
		go func(targetURL, userID string, p Payload) {
			defer h.wg.Done()
			if err := h.post(context.Background(), targetURL, p); err != nil {
				metrics.NotifyFailures.WithLabelValues("webhook").Inc()
				h.log.Warn("failed to trigger webhook",
					zap.String("user_id", userID),
					zap.Int64("wager_id", p.WagerID),
					zap.Error(err),
				)
			}
		}(url, userID, p)
	}
}

// Test sends a test payload synchronously.
func (h *Webhook) Test(ctx context.Context, url string) error {
	return h.post(ctx, url, Payload{Event: "test", Timestamp: time.Now().UTC()})
}

// Wait blocks until in-flight deliveries are done.
func (h *Webhook) Wait() { h.wg.Wait() }

func (h *Webhook) post(ctx context.Context, url string, p Payload) error {
	body, err := json.Marshal(p)
	if err != nil {
		return err
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, url, bytes.NewReader(body))
	if err != nil {
		return err
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := h.client.Do(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()
	if resp.StatusCode >= http.StatusBadRequest {
		return fmt.Errorf("webhook returned %d", resp.StatusCode)
	}
	return nil
}
