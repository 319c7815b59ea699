package service

import (
	"context"
	"errors"
	"fmt"
	"log"
	"math"
	"math/rand"
	"sort"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"github.com/shiva/shiptrack/config"
	"github.com/shiva/shiptrack/internal/events"
	"github.com/shiva/shiptrack/internal/metrics"
	"github.com/shiva/shiptrack/internal/model"
	"github.com/shiva/shiptrack/internal/repository"
	"github.com/shiva/shiptrack/internal/tracking"
)

const (
	// maxCodeAttempts bounds retries when a generated code collides.
	maxCodeAttempts = 5

	// DefaultListLimit and MaxListLimit bound GET /shipments pages.
	DefaultListLimit = 50
	MaxListLimit     = 200

	codeAlphabet = "0123456789ABCDEFGHIJKLMNOPQRSTUVWXYZ"
)

// ─── Inputs / Results ───────────────────────────────────────

// CreateShipmentInput is the admin form payload for POST /shipments.
type CreateShipmentInput struct {
	Name     string               `json:"name" validate:"required"`
	Agency   string               `json:"agency"`
	Location string               `json:"location"`
	Status   model.ShipmentStatus `json:"status"`
	Reason   string               `json:"reason_for_status_change"`

	OriginCity string   `json:"originCity"`
	DestCity   string   `json:"destCity"`
	OriginLat  *float64 `json:"origin_lat" validate:"omitempty,latitude"`
	OriginLng  *float64 `json:"origin_lng" validate:"omitempty,longitude"`
	DestLat    *float64 `json:"dest_lat" validate:"omitempty,latitude"`
	DestLng    *float64 `json:"dest_lng" validate:"omitempty,longitude"`

	EstimatedHours float64 `json:"estimated_hours" validate:"required,gt=0"`

	ShipperName     string `json:"shipper_name"`
	ShipperAddress  string `json:"shipper_address"`
	ShipperPhone    string `json:"shipper_phone"`
	ReceiverName    string `json:"receiver_name"`
	ReceiverAddress string `json:"receiver_address"`
	ReceiverPhone   string `json:"receiver_phone"`
	ReceiverEmail   string `json:"receiver_email" validate:"omitempty,email"`

	Products []model.Product `json:"products" validate:"omitempty,dive"`

	DeclaredValue  decimal.Decimal     `json:"declared_value"`
	Insurance      bool                `json:"insurance"`
	InsuranceValue decimal.NullDecimal `json:"insurance_value"`
	Currency       string              `json:"currency" validate:"omitempty,len=3,alpha"`
	TaxAmount      decimal.NullDecimal `json:"tax_amount"`
	TotalCost      decimal.NullDecimal `json:"total_cost"`

	HSCode   string `json:"hs_code"`
	Incoterm string `json:"incoterm" validate:"omitempty,oneof=EXW FCA FAS FOB CFR CIF CPT CIP DAP DPU DDP"`

	CarrierRef string `json:"carrier_ref"`
	Category   string `json:"shipment_category"`

	PickupAt           *time.Time `json:"pickup_datetime"`
	ExpectedDeliveryAt *time.Time `json:"expected_delivery_datetime"`
}

// CreateResult is returned by a successful creation.
type CreateResult struct {
	Code    string              `json:"code"`
	Message string              `json:"message"`
	Summary model.WeightSummary `json:"summary"`
}

// LocationUpdateInput is the payload of POST /update-location.
type LocationUpdateInput struct {
	Code     string               `json:"code" validate:"required"`
	Lat      *float64             `json:"lat" validate:"required,latitude"`
	Lng      *float64             `json:"lng" validate:"required,longitude"`
	Status   model.ShipmentStatus `json:"status"`
	Reason   string               `json:"reason"`
	Location string               `json:"location"`
}

// ─── ShipmentService ────────────────────────────────────────

// ShipmentService handles the administrative side: creation, manual
// location overrides, listing and history.
type ShipmentService struct {
	store        ShipmentStore
	cities       CityLookup
	cache        ViewCache
	events       events.Publisher
	now          Clock
	storeTimeout time.Duration

	newCode       func() string
	newCarrierRef func() string
}

// NewShipmentService creates a shipment service. cache may be nil.
func NewShipmentService(
	store ShipmentStore,
	cities CityLookup,
	cache ViewCache,
	pub events.Publisher,
	cfg config.TrackingConfig,
) *ShipmentService {
	if pub == nil {
		pub = events.NopPublisher{}
	}
	return &ShipmentService{
		store:         store,
		cities:        cities,
		cache:         cache,
		events:        pub,
		now:           time.Now,
		storeTimeout:  cfg.StoreTimeout,
		newCode:       randomCode,
		newCarrierRef: randomCarrierRef,
	}
}

// SetClock replaces the time source.
func (s *ShipmentService) SetClock(c Clock) { s.now = c }

// Create validates in, applies the business rules and stores a new shipment.
//
// Rules, first failure wins:
//  1. Struct validation (name, estimated_hours, coordinate ranges, ...).
//  2. Origin coordinates: explicit pair, else city directory → origin_lat.
//  3. Destination coordinates, same → dest_lat.
//  4. Declared value above the threshold requires insurance → insurance.
//  5. International shipments require an HS code → hs_code,
//     then an incoterm → incoterm.
func (s *ShipmentService) Create(ctx context.Context, in CreateShipmentInput) (*CreateResult, error) {
	if err := validateStruct(in); err != nil {
		return nil, err
	}
	if in.Status != "" && !in.Status.Valid() {
		return nil, invalid("status", "unknown status %q", in.Status)
	}
	if in.DeclaredValue.IsNegative() {
		return nil, invalid("declared_value", "declared_value must not be negative")
	}

	origin, ok := s.resolve(in.OriginLat, in.OriginLng, in.OriginCity)
	if !ok {
		return nil, invalid("origin_lat", "origin coordinates are required: send origin_lat/origin_lng or a known originCity")
	}
	dest, ok := s.resolve(in.DestLat, in.DestLng, in.DestCity)
	if !ok {
		return nil, invalid("dest_lat", "destination coordinates are required: send dest_lat/dest_lng or a known destCity")
	}

	requiresInsurance := in.DeclaredValue.GreaterThan(decimal.NewFromInt(model.InsuranceThreshold))
	if requiresInsurance && !in.Insurance {
		return nil, invalid("insurance", "insurance is required for shipments with declared value over $%d", model.InsuranceThreshold)
	}

	international := model.IsInternational(in.OriginCity, in.DestCity)
	if international && strings.TrimSpace(in.HSCode) == "" {
		return nil, invalid("hs_code", "HS code is required for international shipments")
	}
	if international && strings.TrimSpace(in.Incoterm) == "" {
		return nil, invalid("incoterm", "incoterm is required for international shipments")
	}

	now := s.now().UTC()
	shipment := s.build(in, origin, dest, now)

	summary := model.Weigh(shipment.Products)
	summary.TotalWeight = round2(summary.TotalWeight)
	summary.VolumetricWeight = round2(summary.VolumetricWeight)
	summary.ChargeableWeight = round2(summary.ChargeableWeight)
	summary.RequiresInsurance = requiresInsurance
	summary.IsInternational = international

	ctx, cancel := context.WithTimeout(ctx, s.storeTimeout)
	defer cancel()

	if err := s.insert(ctx, shipment); err != nil {
		return nil, err
	}

	metrics.ShipmentsCreatedTotal.Inc()
	log.Printf("[shipment] Created %s (%s → %s, %.1fh, international=%t)",
		shipment.Code, shipment.OriginCity, shipment.DestCity, in.EstimatedHours, international)

	s.events.Publish(events.Event{
		Type:       events.TypeCreated,
		Code:       shipment.Code,
		OccurredAt: now,
		Payload:    summary,
	})

	return &CreateResult{
		Code:    shipment.Code,
		Message: "Shipment created successfully",
		Summary: summary,
	}, nil
}

// insert stores shipment under a fresh code, retrying on collisions.
func (s *ShipmentService) insert(ctx context.Context, shipment *model.Shipment) error {
	for attempt := 1; attempt <= maxCodeAttempts; attempt++ {
		shipment.Code = s.newCode()
		err := s.store.Create(ctx, shipment)
		if err == nil {
			return nil
		}
		if !errors.Is(err, repository.ErrDuplicateCode) {
			return fmt.Errorf("shipment: create: %w", err)
		}
		log.Printf("[shipment] Code %s collided (attempt %d/%d)", shipment.Code, attempt, maxCodeAttempts)
	}
	return ErrCodeExhausted
}

func (s *ShipmentService) build(in CreateShipmentInput, origin, dest model.Location, now time.Time) *model.Shipment {
	status := in.Status
	if status == "" {
		status = model.StatusInTransit
	}
	hours := in.EstimatedHours
	current := origin

	products := make([]model.Product, len(in.Products))
	copy(products, in.Products)
	for i := range products {
		if products[i].Qty == 0 {
			products[i].Qty = 1
		}
	}

	currency := strings.ToUpper(in.Currency)
	if currency == "" {
		currency = model.DefaultCurrency
	}

	return &model.Shipment{
		ID:          uuid.New(),
		Name:        in.Name,
		Agency:      in.Agency,
		Status:      status,
		Location:    in.Location,
		OriginCity:  in.OriginCity,
		DestCity:    in.DestCity,
		Origin:      &origin,
		Destination: &dest,
		Current:     &current,
		Progress:    0,

		EstimatedHours: &hours,

		Shipper:  model.Contact{Name: in.ShipperName, Address: in.ShipperAddress, Phone: in.ShipperPhone},
		Receiver: model.Contact{Name: in.ReceiverName, Address: in.ReceiverAddress, Phone: in.ReceiverPhone, Email: in.ReceiverEmail},
		Products: products,
		Finance: model.Finance{
			DeclaredValue:  in.DeclaredValue,
			Insurance:      in.Insurance,
			InsuranceValue: in.InsuranceValue,
			Currency:       currency,
			TaxAmount:      in.TaxAmount,
			TotalCost:      in.TotalCost,
		},
		Customs: model.Customs{
			HSCode:   strings.TrimSpace(in.HSCode),
			Incoterm: strings.TrimSpace(in.Incoterm),
		},

		CarrierRef: firstNonEmpty(in.CarrierRef, s.newCarrierRef()),
		Category:   firstNonEmpty(in.Category, model.DefaultCategory),
		History: []model.HistoryEvent{{
			Event:     "Shipment Created",
			Location:  firstNonEmpty(in.Location, in.OriginCity, "Origin"),
			Timestamp: now,
			Reason:    firstNonEmpty(in.Reason, "Initial shipment creation"),
			Status:    status,
		}},

		PickupAt:           in.PickupAt,
		ExpectedDeliveryAt: in.ExpectedDeliveryAt,
		CreatedAt:          now,
		UpdatedAt:          now,
	}
}

// resolve returns explicit coordinates when both are given, otherwise the
// city directory's coordinates for city.
func (s *ShipmentService) resolve(lat, lng *float64, city string) (model.Location, bool) {
	if lat != nil && lng != nil {
		return model.Location{Lat: *lat, Lng: *lng}, true
	}
	if s.cities == nil || city == "" {
		return model.Location{}, false
	}
	return s.cities.Lookup(city)
}

// ─── Location override ──────────────────────────────────────

// UpdateLocation moves a shipment to the given coordinates, optionally
// changing its status. Stored progress is recomputed from the new position
// along origin → destination; a time-simulated shipment resumes its schedule
// on the next poll.
func (s *ShipmentService) UpdateLocation(ctx context.Context, in LocationUpdateInput) (*model.Shipment, error) {
	in.Code = model.NormalizeCode(in.Code)
	if err := validateStruct(in); err != nil {
		return nil, err
	}
	if in.Status != "" && !in.Status.Valid() {
		return nil, invalid("status", "unknown status %q", in.Status)
	}

	ctx, cancel := context.WithTimeout(ctx, s.storeTimeout)
	defer cancel()

	shipment, err := s.load(ctx, in.Code)
	if err != nil {
		return nil, err
	}

	now := s.now().UTC()
	pos := model.Location{Lat: *in.Lat, Lng: *in.Lng}

	progress := shipment.Progress
	if shipment.Origin != nil && shipment.Destination != nil {
		progress = tracking.DistanceProgress(*shipment.Origin, pos, *shipment.Destination)
	}

	status := shipment.Status
	override := model.LocationOverride{
		Current:   pos,
		Progress:  progress,
		UpdatedAt: now,
	}
	event := "Location Updated"
	if in.Status != "" && in.Status != shipment.Status {
		status = in.Status
		override.Status = &status
		event = "Status changed to " + string(status)
	}
	override.Event = model.HistoryEvent{
		Event:     event,
		Location:  firstNonEmpty(in.Location, fmt.Sprintf("%.4f, %.4f", pos.Lat, pos.Lng)),
		Timestamp: now,
		Reason:    firstNonEmpty(in.Reason, "Manual location update"),
		Status:    status,
	}

	if err := s.store.UpdateLocation(ctx, shipment.ID, override); err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			return nil, ErrShipmentNotFound
		}
		return nil, fmt.Errorf("shipment: update location %s: %w", in.Code, err)
	}

	if s.cache != nil {
		if err := s.cache.Invalidate(ctx, shipment.Code); err != nil {
			log.Printf("[shipment] cache invalidate for %s failed: %v", shipment.Code, err)
		}
	}

	shipment.Current = &pos
	shipment.Progress = progress
	shipment.Status = status
	shipment.UpdatedAt = now
	shipment.History = append(shipment.History, override.Event)

	log.Printf("[shipment] %s moved to (%.4f, %.4f), progress %.2f, status %s",
		shipment.Code, pos.Lat, pos.Lng, progress, status)

	s.events.Publish(events.Event{
		Type:       events.TypeLocationUpdated,
		Code:       shipment.Code,
		OccurredAt: now,
		Payload:    override.Event,
	})
	return shipment, nil
}

// ─── Reads ──────────────────────────────────────────────────

// List returns a page of shipments, newest first. limit <= 0 selects the
// default page size; larger limits are capped.
func (s *ShipmentService) List(ctx context.Context, limit, offset int) ([]model.Shipment, error) {
	if limit <= 0 {
		limit = DefaultListLimit
	}
	if limit > MaxListLimit {
		limit = MaxListLimit
	}
	if offset < 0 {
		offset = 0
	}

	ctx, cancel := context.WithTimeout(ctx, s.storeTimeout)
	defer cancel()

	out, err := s.store.List(ctx, limit, offset)
	if err != nil {
		return nil, fmt.Errorf("shipment: list: %w", err)
	}
	if out == nil {
		out = []model.Shipment{}
	}
	return out, nil
}

// History returns the tracking log of code, newest first. Shipments with no
// recorded events get a synthetic log built from their timestamps.
func (s *ShipmentService) History(ctx context.Context, code string) ([]model.HistoryEvent, error) {
	code = model.NormalizeCode(code)
	if code == "" {
		return nil, ErrMissingCode
	}

	ctx, cancel := context.WithTimeout(ctx, s.storeTimeout)
	defer cancel()

	shipment, err := s.load(ctx, code)
	if err != nil {
		return nil, err
	}

	if len(shipment.History) == 0 {
		return syntheticHistory(shipment), nil
	}
	out := make([]model.HistoryEvent, len(shipment.History))
	copy(out, shipment.History)
	sort.SliceStable(out, func(i, j int) bool {
		return out[i].Timestamp.After(out[j].Timestamp)
	})
	return out, nil
}

// syntheticHistory produces booking, optional midpoint and current entries.
func syntheticHistory(sh *model.Shipment) []model.HistoryEvent {
	here := sh.Location
	if here == "" && sh.Current != nil {
		here = fmt.Sprintf("%.4f, %.4f", sh.Current.Lat, sh.Current.Lng)
	}

	out := []model.HistoryEvent{{
		Event:     "Status Update",
		Location:  here,
		Timestamp: sh.UpdatedAt,
		Reason:    "Shipment status updated to " + string(sh.Status),
		Status:    sh.Status,
	}}

	if sh.Progress > 0 && sh.Progress < 1 && !sh.CreatedAt.Equal(sh.UpdatedAt) {
		mid := sh.CreatedAt.Add(sh.UpdatedAt.Sub(sh.CreatedAt) / 2)
		out = append(out, model.HistoryEvent{
			Event:     "In Transit",
			Location:  firstNonEmpty(sh.Location, "In Transit Location"),
			Timestamp: mid,
			Reason:    fmt.Sprintf("Processing update. Progress: %.0f%%.", sh.Progress*100),
			Status:    model.StatusInTransit,
		})
	}

	booked := sh.Location
	if booked == "" && sh.Origin != nil {
		booked = fmt.Sprintf("%.4f, %.4f (Origin)", sh.Origin.Lat, sh.Origin.Lng)
	}
	out = append(out, model.HistoryEvent{
		Event:     "Booked / Pending",
		Location:  booked,
		Timestamp: sh.CreatedAt,
		Reason:    "Shipment created and booked on " + sh.CreatedAt.Format("Jan 2, 2006") + ".",
	})
	return out
}

func (s *ShipmentService) load(ctx context.Context, code string) (*model.Shipment, error) {
	shipment, err := s.store.GetByCode(ctx, code)
	if err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			return nil, ErrShipmentNotFound
		}
		return nil, fmt.Errorf("shipment: load %s: %w", code, err)
	}
	return shipment, nil
}

// ─── Generators ─────────────────────────────────────────────

// randomCode returns "SHP" followed by six random base-36 characters.
func randomCode() string {
	var b strings.Builder
	b.Grow(len(model.CodePrefix) + model.CodeSuffixLen)
	b.WriteString(model.CodePrefix)
	for i := 0; i < model.CodeSuffixLen; i++ {
		b.WriteByte(codeAlphabet[rand.Intn(len(codeAlphabet))])
	}
	return b.String()
}

// randomCarrierRef returns "LOG" followed by twelve digits.
func randomCarrierRef() string {
	return fmt.Sprintf("LOG%d", 100000000000+rand.Int63n(900000000000))
}

func round2(v float64) float64 {
	return math.Round(v*100) / 100
}
