package service

import (
	"context"
	"fmt"
	"log"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/shiva/shiptrack/config"
	"github.com/shiva/shiptrack/internal/model"
)

// NotifyMessage is returned to the client after a successful subscription.
const NotifyMessage = "You will be notified when the shipment is delivered!"

// NotifyInput is the payload of POST /notify.
type NotifyInput struct {
	Email        string `json:"email" validate:"required,email"`
	ShipmentCode string `json:"shipmentCode" validate:"required"`
}

// NotificationService records who wants to hear about a delivery.
// Sending the notification is out of scope; this is a single insert.
type NotificationService struct {
	store        NotificationStore
	now          Clock
	storeTimeout time.Duration
}

// NewNotificationService creates a notification service.
func NewNotificationService(store NotificationStore, cfg config.TrackingConfig) *NotificationService {
	return &NotificationService{store: store, now: time.Now, storeTimeout: cfg.StoreTimeout}
}

// Subscribe validates in and records it.
func (s *NotificationService) Subscribe(ctx context.Context, in NotifyInput) error {
	in.Email = strings.TrimSpace(in.Email)
	in.ShipmentCode = model.NormalizeCode(in.ShipmentCode)
	if err := validateStruct(in); err != nil {
		return err
	}

	ctx, cancel := context.WithTimeout(ctx, s.storeTimeout)
	defer cancel()

	n := &model.Notification{
		ID:           uuid.New(),
		Email:        in.Email,
		ShipmentCode: in.ShipmentCode,
		CreatedAt:    s.now().UTC(),
	}
	if err := s.store.CreateNotification(ctx, n); err != nil {
		return fmt.Errorf("notify: %w", err)
	}
	log.Printf("[notify] %s subscribed to %s", n.Email, n.ShipmentCode)
	return nil
}
