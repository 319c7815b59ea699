package repository

import (
	"context"
	"fmt"
	"sort"
	"strings"
	"sync"

	"github.com/google/uuid"

	"github.com/shiva/shiptrack/internal/model"
)

// MemoryStore keeps shipments and notifications in process memory.
// It is used for STORE_DRIVER=memory and by tests; it counts writes so
// callers can check that idempotent polls skip them.
type MemoryStore struct {
	mu            sync.RWMutex
	shipments     map[string]*model.Shipment // keyed by upper-cased code
	notifications []model.Notification

	progressWrites int
	locationWrites int
}

// NewMemoryStore creates an empty store.
func NewMemoryStore() *MemoryStore {
	return &MemoryStore{
		shipments: make(map[string]*model.Shipment),
	}
}

func (m *MemoryStore) Create(ctx context.Context, s *model.Shipment) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	key := strings.ToUpper(s.Code)

	m.mu.Lock()
	defer m.mu.Unlock()
	if _, exists := m.shipments[key]; exists {
		return fmt.Errorf("create shipment %s: %w", s.Code, ErrDuplicateCode)
	}
	m.shipments[key] = cloneShipment(s)
	return nil
}

func (m *MemoryStore) GetByCode(ctx context.Context, code string) (*model.Shipment, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	m.mu.RLock()
	defer m.mu.RUnlock()
	s, ok := m.shipments[strings.ToUpper(code)]
	if !ok {
		return nil, fmt.Errorf("get shipment %s: %w", code, ErrNotFound)
	}
	return cloneShipment(s), nil
}

func (m *MemoryStore) List(ctx context.Context, limit, offset int) ([]model.Shipment, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	m.mu.RLock()
	all := make([]model.Shipment, 0, len(m.shipments))
	for _, s := range m.shipments {
		all = append(all, *cloneShipment(s))
	}
	m.mu.RUnlock()

	sort.Slice(all, func(i, j int) bool {
		return all[i].CreatedAt.After(all[j].CreatedAt)
	})

	// Apply pagination
	if offset >= len(all) {
		return nil, nil
	}
	end := offset + limit
	if end > len(all) {
		end = len(all)
	}
	return all[offset:end], nil
}

func (m *MemoryStore) UpdateProgress(ctx context.Context, id uuid.UUID, upd model.ProgressUpdate) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	s := m.byID(id)
	if s == nil {
		return fmt.Errorf("update progress %s: %w", id, ErrNotFound)
	}
	m.progressWrites++

	cur := upd.Current
	s.Progress = upd.Progress
	s.Current = &cur
	s.UpdatedAt = upd.UpdatedAt
	if upd.Status != nil {
		s.Status = *upd.Status
	}
	if upd.DeliveredAt != nil {
		at := *upd.DeliveredAt
		s.DeliveredAt = &at
	}
	if upd.Event != nil {
		s.History = append(s.History, *upd.Event)
	}
	return nil
}

func (m *MemoryStore) UpdateLocation(ctx context.Context, id uuid.UUID, o model.LocationOverride) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	s := m.byID(id)
	if s == nil {
		return fmt.Errorf("update location %s: %w", id, ErrNotFound)
	}
	m.locationWrites++

	cur := o.Current
	s.Current = &cur
	s.Progress = o.Progress
	if o.Status != nil {
		s.Status = *o.Status
	}
	s.History = append(s.History, o.Event)
	s.UpdatedAt = o.UpdatedAt
	return nil
}

// CreateNotification records a delivery-notification request.
func (m *MemoryStore) CreateNotification(ctx context.Context, n *model.Notification) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	m.notifications = append(m.notifications, *n)
	return nil
}

// Notifications returns a copy of all recorded notifications.
func (m *MemoryStore) Notifications() []model.Notification {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return append([]model.Notification(nil), m.notifications...)
}

// ProgressWrites returns how many UpdateProgress calls reached the store.
func (m *MemoryStore) ProgressWrites() int {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.progressWrites
}

// LocationWrites returns how many UpdateLocation calls reached the store.
func (m *MemoryStore) LocationWrites() int {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.locationWrites
}

// byID must be called with mu held.
func (m *MemoryStore) byID(id uuid.UUID) *model.Shipment {
	for _, s := range m.shipments {
		if s.ID == id {
			return s
		}
	}
	return nil
}

// cloneShipment copies s deeply enough that callers cannot mutate stored state.
func cloneShipment(s *model.Shipment) *model.Shipment {
	c := *s
	c.Origin = cloneLocation(s.Origin)
	c.Destination = cloneLocation(s.Destination)
	c.Current = cloneLocation(s.Current)
	if s.EstimatedHours != nil {
		h := *s.EstimatedHours
		c.EstimatedHours = &h
	}
	c.Products = append([]model.Product(nil), s.Products...)
	c.History = append([]model.HistoryEvent(nil), s.History...)
	return &c
}

func cloneLocation(l *model.Location) *model.Location {
	if l == nil {
		return nil
	}
	c := *l
	return &c
}
