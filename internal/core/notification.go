package core

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/edvin/marketbill/internal/model"
	"github.com/edvin/marketbill/internal/platform"
)

// NotificationService persists lifecycle events into the notifications
// outbox. Delivery to tenants is someone else's job; the engine only needs
// the append to succeed.
type NotificationService struct {
	db DB
}

func NewNotificationService(db DB) *NotificationService {
	return &NotificationService{db: db}
}

func (s *NotificationService) Notify(ctx context.Context, ev model.NotificationEvent) error {
	payload, err := json.Marshal(ev.Payload)
	if err != nil {
		return fmt.Errorf("marshal notification payload: %w", err)
	}

	_, err = s.db.Exec(ctx,
		`INSERT INTO notifications (id, tenant_id, subscription_id, event_type, payload, created_at)
		 VALUES ($1, $2, $3, $4, $5, now())`,
		platform.NewID(), ev.TenantID, ev.SubscriptionID, ev.EventType, payload,
	)
	if err != nil {
		return fmt.Errorf("insert notification: %w", err)
	}
	return nil
}

// ListByTenant returns a tenant's notifications, newest first, with
// cursor-based pagination.
func (s *NotificationService) ListByTenant(ctx context.Context, tenantID string, limit int, cursor string) ([]model.Notification, bool, error) {
	query := `SELECT id, tenant_id, subscription_id, event_type, payload, delivered_at, created_at
		 FROM notifications WHERE tenant_id = $1`
	args := []any{tenantID}
	argIdx := 2

	if cursor != "" {
		query += fmt.Sprintf(` AND id < $%d`, argIdx)
		args = append(args, cursor)
		argIdx++
	}

	query += ` ORDER BY id DESC`
	query += fmt.Sprintf(` LIMIT $%d`, argIdx)
	args = append(args, limit+1)

	rows, err := s.db.Query(ctx, query, args...)
	if err != nil {
		return nil, false, fmt.Errorf("list notifications for tenant %s: %w", tenantID, err)
	}
	defer rows.Close()

	var notifications []model.Notification
	for rows.Next() {
		var n model.Notification
		if err := rows.Scan(&n.ID, &n.TenantID, &n.SubscriptionID, &n.EventType, &n.Payload, &n.DeliveredAt, &n.CreatedAt); err != nil {
			return nil, false, fmt.Errorf("scan notification: %w", err)
		}
		notifications = append(notifications, n)
	}
	if err := rows.Err(); err != nil {
		return nil, false, fmt.Errorf("iterate notifications: %w", err)
	}

	hasMore := len(notifications) > limit
	if hasMore {
		notifications = notifications[:limit]
	}
	return notifications, hasMore, nil
}
