package repository

import (
	"context"
	"fmt"

	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/shiva/shiptrack/internal/model"
)

// NotificationRepository records delivery-notification requests.
// Nothing reads them back yet; delivery is a separate concern.
type NotificationRepository struct {
	pool *pgxpool.Pool
}

// NewNotificationRepository creates a new notification repository.
func NewNotificationRepository(pool *pgxpool.Pool) *NotificationRepository {
	return &NotificationRepository{pool: pool}
}

// CreateNotification inserts one email + shipment code pair.
func (r *NotificationRepository) CreateNotification(ctx context.Context, n *model.Notification) error {
	_, err := r.pool.Exec(ctx, `
		INSERT INTO notifications (id, email, shipment_code, created_at)
		VALUES ($1, $2, $3, $4)
	`, n.ID, n.Email, n.ShipmentCode, n.CreatedAt)
	if err != nil {
		return fmt.Errorf("create notification for %s: %w", n.ShipmentCode, err)
	}
	return nil
}
