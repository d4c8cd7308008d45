package model

import (
	"encoding/json"
	"time"
)

// NotificationEvent is what the billing engine hands to the dispatcher.
type NotificationEvent struct {
	TenantID       string         `json:"tenant_id"`
	SubscriptionID string         `json:"subscription_id"`
	EventType      string         `json:"event_type"`
	Payload        map[string]any `json:"payload,omitempty"`
}

// Notification is a persisted outbox row awaiting delivery by an external
// sender.
type Notification struct {
	ID             string          `db:"id" json:"id"`
	TenantID       string          `db:"tenant_id" json:"tenant_id"`
	SubscriptionID string          `db:"subscription_id" json:"subscription_id"`
	EventType      string          `db:"event_type" json:"event_type"`
	Payload        json.RawMessage `db:"payload" json:"payload,omitempty"`
	DeliveredAt    *time.Time      `db:"delivered_at" json:"delivered_at,omitempty"`
	CreatedAt      time.Time       `db:"created_at" json:"created_at"`
}
