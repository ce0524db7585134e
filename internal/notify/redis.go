package notify

import (
	"context"
	"encoding/json"
	"time"

	"github.com/redis/go-redis/v9"
)

const alertKeyPrefix = "pcfh:alert:"

// AlertMirror copies alerts into redis so other processes can show them.
// Keys expire together with the alert.
type AlertMirror struct {
	client redis.Cmdable
	ttl    time.Duration
}

func NewAlertMirror(client redis.Cmdable, ttl time.Duration) *AlertMirror {
	return &AlertMirror{client: client, ttl: ttl}
}

type mirroredAlert struct {
	ID         string    `json:"id"`
	Severity   string    `json:"severity"`
	Message    string    `json:"message"`
	DocumentID string    `json:"documentId,omitempty"`
	CreatedAt  time.Time `json:"createdAt"`
}

func AlertKey(id string) string {
	return alertKeyPrefix + id
}

func (m *AlertMirror) Notify(ctx context.Context, e Event) error {
	if !e.HasAlert() {
		return nil
	}
	if e.Type == TypeAlertDismissed {
		return m.Dismiss(ctx, e.AlertID)
	}

	value, err := json.Marshal(mirroredAlert{
		ID:         e.AlertID,
		Severity:   e.Severity,
		Message:    e.Message,
		DocumentID: e.DocumentID,
		CreatedAt:  e.Timestamp,
	})
	if err != nil {
		return err
	}
	return m.client.Set(ctx, AlertKey(e.AlertID), value, m.ttl).Err()
}

// Dismiss removes a mirrored alert before it expires.
func (m *AlertMirror) Dismiss(ctx context.Context, id string) error {
	return m.client.Del(ctx, AlertKey(id)).Err()
}
