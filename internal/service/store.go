package service

import (
	"context"
	"time"

	"github.com/google/uuid"

	"github.com/shiva/shiptrack/internal/model"
)

// ShipmentStore is the persistence the services need. It is satisfied by
// repository.ShipmentRepository and repository.MemoryStore.
type ShipmentStore interface {
	Create(ctx context.Context, s *model.Shipment) error
	GetByCode(ctx context.Context, code string) (*model.Shipment, error)
	List(ctx context.Context, limit, offset int) ([]model.Shipment, error)
	UpdateProgress(ctx context.Context, id uuid.UUID, upd model.ProgressUpdate) error
	UpdateLocation(ctx context.Context, id uuid.UUID, o model.LocationOverride) error
}

// NotificationStore records delivery-notification requests.
type NotificationStore interface {
	CreateNotification(ctx context.Context, n *model.Notification) error
}

// ViewCache caches encoded tracking views by normalized code.
// It is satisfied by repository.TrackingCache.
type ViewCache interface {
	Get(ctx context.Context, code string) ([]byte, bool, error)
	Set(ctx context.Context, code string, view []byte) error
	Invalidate(ctx context.Context, code string) error
}

// CityLookup resolves a "City, CC" label to coordinates.
type CityLookup interface {
	Lookup(label string) (model.Location, bool)
}

// Clock returns the current time. Tests replace it with a fixed clock.
type Clock func() time.Time
