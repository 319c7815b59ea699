package service

import (
	"context"
	"errors"
	"fmt"
	"log"
	"time"

	"github.com/goccy/go-json"
	"github.com/google/uuid"

	"github.com/shiva/shiptrack/config"
	"github.com/shiva/shiptrack/internal/events"
	"github.com/shiva/shiptrack/internal/metrics"
	"github.com/shiva/shiptrack/internal/model"
	"github.com/shiva/shiptrack/internal/repository"
	"github.com/shiva/shiptrack/internal/tracking"
)

// ─── TrackingView ───────────────────────────────────────────

// TrackingView is the response of a tracking lookup: stored fields plus the
// freshly derived progress, position, status and ETA.
type TrackingView struct {
	ID             uuid.UUID            `json:"id"`
	Code           string               `json:"code"`
	Name           string               `json:"name"`
	Location       string               `json:"location"`
	Products       []model.Product      `json:"products"`
	Agency         string               `json:"agency"`
	CreatedAt      time.Time            `json:"created_at"`
	UpdatedAt      time.Time            `json:"updated_at"`
	EstimatedHours *float64             `json:"estimated_hours"`
	Progress       float64              `json:"progress"`
	CurrentLat     float64              `json:"current_lat"`
	CurrentLng     float64              `json:"current_lng"`
	OriginLat      *float64             `json:"origin_lat"`
	OriginLng      *float64             `json:"origin_lng"`
	DestLat        *float64             `json:"dest_lat"`
	DestLng        *float64             `json:"dest_lng"`
	Status         model.ShipmentStatus `json:"status"`
	ETA            tracking.ETA         `json:"eta"`
}

func newTrackingView(s *model.Shipment, d tracking.Derived) *TrackingView {
	v := &TrackingView{
		ID:             s.ID,
		Code:           s.Code,
		Name:           s.Name,
		Location:       s.Location,
		Products:       s.Products,
		Agency:         s.Agency,
		CreatedAt:      s.CreatedAt,
		UpdatedAt:      s.UpdatedAt,
		EstimatedHours: s.EstimatedHours,
		Progress:       d.Progress,
		CurrentLat:     d.Position.Lat,
		CurrentLng:     d.Position.Lng,
		Status:         d.Status,
		ETA:            d.ETA,
	}
	if v.Products == nil {
		v.Products = []model.Product{}
	}
	if s.Origin != nil {
		v.OriginLat, v.OriginLng = &s.Origin.Lat, &s.Origin.Lng
	}
	if s.Destination != nil {
		v.DestLat, v.DestLng = &s.Destination.Lat, &s.Destination.Lng
	}
	return v
}

// ─── TrackingService ────────────────────────────────────────

// TrackingService answers tracking polls.
//
// Each poll re-derives progress and position from the stored inputs and
// writes them back only when they changed. There is no lock: concurrent polls
// derive identical values from the same snapshot, so last-writer-wins is safe.
type TrackingService struct {
	store        ShipmentStore
	cache        ViewCache
	events       events.Publisher
	now          Clock
	storeTimeout time.Duration
}

// NewTrackingService creates a tracking service. cache may be nil.
func NewTrackingService(store ShipmentStore, cache ViewCache, pub events.Publisher, cfg config.TrackingConfig) *TrackingService {
	if pub == nil {
		pub = events.NopPublisher{}
	}
	return &TrackingService{
		store:        store,
		cache:        cache,
		events:       pub,
		now:          time.Now,
		storeTimeout: cfg.StoreTimeout,
	}
}

// SetClock replaces the time source.
func (s *TrackingService) SetClock(c Clock) { s.now = c }

// Track looks up code and returns its current tracking view.
//
// A failed write-back is logged and does not fail the lookup; the caller
// still gets the freshly derived values.
func (s *TrackingService) Track(ctx context.Context, code string) (*TrackingView, error) {
	code = model.NormalizeCode(code)
	if code == "" {
		return nil, ErrMissingCode
	}

	if view := s.cached(ctx, code); view != nil {
		metrics.TrackingCacheHitsTotal.Inc()
		return view, nil
	}

	ctx, cancel := context.WithTimeout(ctx, s.storeTimeout)
	defer cancel()

	shipment, err := s.store.GetByCode(ctx, code)
	if err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			return nil, ErrShipmentNotFound
		}
		return nil, fmt.Errorf("tracking: load %s: %w", code, err)
	}
	metrics.TrackingPollsTotal.Inc()

	now := s.now()
	derived := tracking.Derive(shipment, now)
	s.writeBack(ctx, shipment, derived, now)

	view := newTrackingView(shipment, derived)
	s.remember(ctx, code, view)
	return view, nil
}

// writeBack persists derived values when they differ from the snapshot and
// applies them to shipment on success.
func (s *TrackingService) writeBack(ctx context.Context, shipment *model.Shipment, d tracking.Derived, now time.Time) {
	if !d.Changed && !d.Arrived {
		metrics.ProgressWritesTotal.WithLabelValues("skipped").Inc()
		return
	}

	upd := model.ProgressUpdate{
		Progress:  d.Progress,
		Current:   d.Position,
		UpdatedAt: now,
	}
	if d.Arrived {
		delivered := model.StatusDelivered
		upd.Status = &delivered
		upd.DeliveredAt = &now
		upd.Event = &model.HistoryEvent{
			Event:     "Delivered",
			Location:  firstNonEmpty(shipment.DestCity, shipment.Location, "Destination"),
			Timestamp: now,
			Reason:    "Arrived at destination",
			Status:    model.StatusDelivered,
		}
	}

	if err := s.store.UpdateProgress(ctx, shipment.ID, upd); err != nil {
		metrics.ProgressWritesTotal.WithLabelValues("failed").Inc()
		log.Printf("[tracking] write-back for %s failed: %v", shipment.Code, err)
		return
	}
	metrics.ProgressWritesTotal.WithLabelValues("written").Inc()

	pos := d.Position
	shipment.Progress = d.Progress
	shipment.Current = &pos
	shipment.UpdatedAt = now
	if d.Arrived {
		shipment.Status = model.StatusDelivered
		shipment.DeliveredAt = &now
		shipment.History = append(shipment.History, *upd.Event)

		metrics.ShipmentsDeliveredTotal.Inc()
		log.Printf("[tracking] %s delivered", shipment.Code)
		s.events.Publish(events.Event{
			Type:       events.TypeDelivered,
			Code:       shipment.Code,
			OccurredAt: now,
		})
	}
}

// ─── Cache ──────────────────────────────────────────────────

func (s *TrackingService) cached(ctx context.Context, code string) *TrackingView {
	if s.cache == nil {
		return nil
	}
	raw, ok, err := s.cache.Get(ctx, code)
	if err != nil {
		log.Printf("[tracking] cache read for %s failed: %v", code, err)
		return nil
	}
	if !ok {
		return nil
	}
	var view TrackingView
	if err := json.Unmarshal(raw, &view); err != nil {
		log.Printf("[tracking] cached view for %s is corrupt: %v", code, err)
		return nil
	}
	return &view
}

func (s *TrackingService) remember(ctx context.Context, code string, view *TrackingView) {
	if s.cache == nil {
		return
	}
	raw, err := json.Marshal(view)
	if err != nil {
		log.Printf("[tracking] encode view for %s: %v", code, err)
		return
	}
	if err := s.cache.Set(ctx, code, raw); err != nil {
		log.Printf("[tracking] cache write for %s failed: %v", code, err)
	}
}

func firstNonEmpty(vals ...string) string {
	for _, v := range vals {
		if v != "" {
			return v
		}
	}
	return ""
}
