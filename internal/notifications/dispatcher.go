package notifications

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"log"
	"net/http"
	"sync"
	"time"
)

// Dispatcher records notifications and delivers them to the configured
// webhook.
type Dispatcher struct {
	store  *Store
	client *http.Client

	mu         sync.RWMutex
	webhookURL string
}

// NewDispatcher creates a Dispatcher backed by the given store. An empty
// webhookURL keeps notifications local.
func NewDispatcher(store *Store, webhookURL string) *Dispatcher {
	return &Dispatcher{
		store: store,
		client: &http.Client{
			Timeout: 10 * time.Second,
		},
		webhookURL: webhookURL,
	}
}

// SetWebhook replaces the delivery URL.
func (d *Dispatcher) SetWebhook(url string) {
	d.mu.Lock()
	d.webhookURL = url
	d.mu.Unlock()
}

// Dispatch persists a notification and, when a webhook is configured, sends
// it there. A successful delivery marks the notification delivered.
func (d *Dispatcher) Dispatch(ctx context.Context, n Notification) (string, error) {
	if n.CreatedAt.IsZero() {
		n.CreatedAt = time.Now().UTC()
	}
	id, err := d.store.Create(ctx, n)
	if err != nil {
		return "", fmt.Errorf("creating notification: %w", err)
	}
	n.ID = id

	d.mu.RLock()
	url := d.webhookURL
	d.mu.RUnlock()
	if url == "" {
		return id, nil
	}

	payload, err := json.Marshal(n)
	if err != nil {
		return id, fmt.Errorf("marshalling notification: %w", err)
	}
	if err := d.SendWebhook(ctx, url, payload); err != nil {
		log.Printf("notifications: delivering %s: %v", id, err)
		return id, nil
	}
	if err := d.store.MarkDelivered(ctx, id); err != nil {
		return id, err
	}
	return id, nil
}

// SendWebhook POSTs payload to the given URL.
func (d *Dispatcher) SendWebhook(ctx context.Context, url string, payload []byte) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, url, bytes.NewReader(payload))
	if err != nil {
		return fmt.Errorf("creating webhook request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := d.client.Do(req)
	if err != nil {
		return fmt.Errorf("sending webhook: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode >= 300 {
		return fmt.Errorf("webhook returned status %d", resp.StatusCode)
	}
	return nil
}
