package service

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/shiva/shiptrack/config"
	"github.com/shiva/shiptrack/internal/model"
	"github.com/shiva/shiptrack/internal/repository"
	"github.com/shiva/shiptrack/internal/tracking"
	"github.com/shiva/shiptrack/pkg/geo"
)

var (
	t0       = time.Date(2026, 3, 1, 8, 0, 0, 0, time.UTC)
	testCfg  = config.TrackingConfig{StoreTimeout: time.Second}
	paris    = model.Location{Lat: 48.8566, Lng: 2.3522}
	berlin   = model.Location{Lat: 52.5200, Lng: 13.4050}
	fixedAt  = func(at time.Time) Clock { return func() time.Time { return at } }
	hoursPtr = func(h float64) *float64 { return &h }
)

// ─── Fakes ──────────────────────────────────────────────────

// failingWrites wraps a store and rejects every progress write.
type failingWrites struct {
	*repository.MemoryStore
}

func (failingWrites) UpdateProgress(context.Context, uuid.UUID, model.ProgressUpdate) error {
	return errors.New("connection reset")
}

// collidingStore reports the first n creates as duplicates.
type collidingStore struct {
	*repository.MemoryStore
	collisions int
}

func (c *collidingStore) Create(ctx context.Context, s *model.Shipment) error {
	if c.collisions > 0 {
		c.collisions--
		return repository.ErrDuplicateCode
	}
	return c.MemoryStore.Create(ctx, s)
}

type memCache struct {
	mu          sync.Mutex
	views       map[string][]byte
	invalidated []string
}

func newMemCache() *memCache { return &memCache{views: map[string][]byte{}} }

func (c *memCache) Get(_ context.Context, code string) ([]byte, bool, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	b, ok := c.views[code]
	return b, ok, nil
}

func (c *memCache) Set(_ context.Context, code string, view []byte) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.views[code] = view
	return nil
}

func (c *memCache) Invalidate(_ context.Context, code string) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	delete(c.views, code)
	c.invalidated = append(c.invalidated, code)
	return nil
}

func seed(t *testing.T, store *repository.MemoryStore, mutate func(*model.Shipment)) *model.Shipment {
	t.Helper()
	origin, dest, cur := paris, berlin, paris
	s := &model.Shipment{
		ID:             uuid.New(),
		Code:           "SHP1A2B3C",
		Name:           "Test parcel",
		Status:         model.StatusInTransit,
		OriginCity:     "Paris, FR",
		DestCity:       "Berlin, DE",
		Origin:         &origin,
		Destination:    &dest,
		Current:        &cur,
		EstimatedHours: hoursPtr(10),
		CreatedAt:      t0,
		UpdatedAt:      t0,
	}
	if mutate != nil {
		mutate(s)
	}
	require.NoError(t, store.Create(context.Background(), s))
	return s
}

// ─── Tracking ───────────────────────────────────────────────

func TestTrack_MidwayWritesInterpolatedPosition(t *testing.T) {
	store := repository.NewMemoryStore()
	seed(t, store, nil)

	svc := NewTrackingService(store, nil, nil, testCfg)
	svc.SetClock(fixedAt(t0.Add(5 * time.Hour)))

	view, err := svc.Track(context.Background(), "  shp1a2b3c ")
	require.NoError(t, err)
	assert.InDelta(t, 0.5, view.Progress, 1e-9)
	assert.InDelta(t, (paris.Lat+berlin.Lat)/2, view.CurrentLat, 1e-9)
	assert.InDelta(t, (paris.Lng+berlin.Lng)/2, view.CurrentLng, 1e-9)
	assert.Equal(t, model.StatusInTransit, view.Status)
	assert.Equal(t, tracking.ETAKnown, view.ETA.State)
	assert.Equal(t, 1, store.ProgressWrites())

	stored, err := store.GetByCode(context.Background(), "SHP1A2B3C")
	require.NoError(t, err)
	assert.InDelta(t, 0.5, stored.Progress, 1e-9)
	assert.Equal(t, t0.Add(5*time.Hour), stored.UpdatedAt)
}

func TestTrack_IdempotentPollSkipsWrite(t *testing.T) {
	store := repository.NewMemoryStore()
	seed(t, store, nil)

	svc := NewTrackingService(store, nil, nil, testCfg)
	svc.SetClock(fixedAt(t0.Add(3 * time.Hour)))

	first, err := svc.Track(context.Background(), "SHP1A2B3C")
	require.NoError(t, err)
	second, err := svc.Track(context.Background(), "SHP1A2B3C")
	require.NoError(t, err)

	assert.Equal(t, 1, store.ProgressWrites())
	assert.Equal(t, first.Progress, second.Progress)
	assert.Equal(t, first.CurrentLat, second.CurrentLat)
}

func TestTrack_ArrivalMarksDelivered(t *testing.T) {
	store := repository.NewMemoryStore()
	seed(t, store, nil)

	svc := NewTrackingService(store, nil, nil, testCfg)
	arrival := t0.Add(12 * time.Hour)
	svc.SetClock(fixedAt(arrival))

	view, err := svc.Track(context.Background(), "SHP1A2B3C")
	require.NoError(t, err)
	assert.Equal(t, 1.0, view.Progress)
	assert.Equal(t, berlin.Lat, view.CurrentLat)
	assert.Equal(t, berlin.Lng, view.CurrentLng)
	assert.Equal(t, model.StatusDelivered, view.Status)

	stored, err := store.GetByCode(context.Background(), "SHP1A2B3C")
	require.NoError(t, err)
	assert.Equal(t, model.StatusDelivered, stored.Status)
	require.NotNil(t, stored.DeliveredAt)
	assert.Equal(t, arrival, *stored.DeliveredAt)
	require.NotEmpty(t, stored.History)
	assert.Equal(t, "Delivered", stored.History[len(stored.History)-1].Event)

	// Delivered is frozen: later polls never write.
	svc.SetClock(fixedAt(arrival.Add(time.Hour)))
	_, err = svc.Track(context.Background(), "SHP1A2B3C")
	require.NoError(t, err)
	assert.Equal(t, 1, store.ProgressWrites())
}

func TestTrack_FrozenStatusesNeverWrite(t *testing.T) {
	for _, status := range []model.ShipmentStatus{model.StatusOnHold, model.StatusCancelled, model.StatusDelivered} {
		t.Run(string(status), func(t *testing.T) {
			store := repository.NewMemoryStore()
			seed(t, store, func(s *model.Shipment) {
				s.Status = status
				s.Progress = 0.3
			})

			svc := NewTrackingService(store, nil, nil, testCfg)
			svc.SetClock(fixedAt(t0.Add(8 * time.Hour)))

			view, err := svc.Track(context.Background(), "SHP1A2B3C")
			require.NoError(t, err)
			assert.Equal(t, 0.3, view.Progress)
			assert.Equal(t, status, view.Status)
			assert.Equal(t, 0, store.ProgressWrites())
		})
	}
}

func TestTrack_UnknownCode(t *testing.T) {
	svc := NewTrackingService(repository.NewMemoryStore(), nil, nil, testCfg)
	_, err := svc.Track(context.Background(), "ZZZZZZ")
	assert.ErrorIs(t, err, ErrShipmentNotFound)
}

func TestTrack_BlankCode(t *testing.T) {
	svc := NewTrackingService(repository.NewMemoryStore(), nil, nil, testCfg)
	_, err := svc.Track(context.Background(), "   ")
	assert.ErrorIs(t, err, ErrMissingCode)
}

func TestTrack_WriteFailureIsNotFatal(t *testing.T) {
	mem := repository.NewMemoryStore()
	seed(t, mem, nil)

	svc := NewTrackingService(failingWrites{mem}, nil, nil, testCfg)
	svc.SetClock(fixedAt(t0.Add(5 * time.Hour)))

	view, err := svc.Track(context.Background(), "SHP1A2B3C")
	require.NoError(t, err)
	assert.InDelta(t, 0.5, view.Progress, 1e-9)

	stored, err := mem.GetByCode(context.Background(), "SHP1A2B3C")
	require.NoError(t, err)
	assert.Equal(t, 0.0, stored.Progress)
}

func TestTrack_ServesCachedView(t *testing.T) {
	store := repository.NewMemoryStore()
	seed(t, store, nil)
	cache := newMemCache()

	svc := NewTrackingService(store, cache, nil, testCfg)
	svc.SetClock(fixedAt(t0.Add(2 * time.Hour)))

	first, err := svc.Track(context.Background(), "SHP1A2B3C")
	require.NoError(t, err)
	require.Contains(t, cache.views, "SHP1A2B3C")

	svc.SetClock(fixedAt(t0.Add(4 * time.Hour)))
	second, err := svc.Track(context.Background(), "shp1a2b3c")
	require.NoError(t, err)
	assert.Equal(t, first.Progress, second.Progress)
	assert.Equal(t, 1, store.ProgressWrites())
}

// ─── Creation ───────────────────────────────────────────────

func validInput() CreateShipmentInput {
	return CreateShipmentInput{
		Name:           "Laptops",
		OriginCity:     "New York City, US",
		DestCity:       "Chicago, US",
		EstimatedHours: 24,
		Products: []model.Product{
			{Product: "Laptop", Qty: 2, LengthCm: 50, WidthCm: 40, HeightCm: 30, WeightKg: 5.5},
		},
	}
}

func newShipmentService(store ShipmentStore) *ShipmentService {
	svc := NewShipmentService(store, geo.NewCityDirectory(geo.DefaultCities), nil, nil, testCfg)
	svc.SetClock(fixedAt(t0))
	return svc
}

func TestCreate_Domestic(t *testing.T) {
	store := repository.NewMemoryStore()
	svc := newShipmentService(store)

	res, err := svc.Create(context.Background(), validInput())
	require.NoError(t, err)
	assert.Regexp(t, `^SHP[0-9A-Z]{6}$`, res.Code)
	assert.Equal(t, "Shipment created successfully", res.Message)
	assert.Equal(t, 11.0, res.Summary.TotalWeight)
	assert.Equal(t, 24.0, res.Summary.VolumetricWeight)
	assert.Equal(t, 24.0, res.Summary.ChargeableWeight)
	assert.Equal(t, 2, res.Summary.Pieces)
	assert.False(t, res.Summary.IsInternational)

	s, err := store.GetByCode(context.Background(), res.Code)
	require.NoError(t, err)
	assert.Equal(t, model.StatusInTransit, s.Status)
	assert.Equal(t, 0.0, s.Progress)
	assert.Equal(t, *s.Origin, *s.Current)
	assert.Equal(t, model.DefaultCurrency, s.Finance.Currency)
	assert.Equal(t, model.DefaultCategory, s.Category)
	assert.Regexp(t, `^LOG\d{12}$`, s.CarrierRef)
	require.Len(t, s.History, 1)
	assert.Equal(t, "Shipment Created", s.History[0].Event)
}

func TestCreate_InsuranceRequiredAboveThreshold(t *testing.T) {
	svc := newShipmentService(repository.NewMemoryStore())

	in := validInput()
	in.DeclaredValue = decimal.NewFromInt(10)
	in.Insurance = false

	_, err := svc.Create(context.Background(), in)
	var verr *ValidationError
	require.ErrorAs(t, err, &verr)
	assert.Equal(t, "insurance", verr.Field)

	in.Insurance = true
	_, err = svc.Create(context.Background(), in)
	assert.NoError(t, err)
}

func TestCreate_InternationalNeedsCustoms(t *testing.T) {
	svc := newShipmentService(repository.NewMemoryStore())

	in := validInput()
	in.OriginCity = "Paris, FR"
	in.DestCity = "Berlin, DE"

	_, err := svc.Create(context.Background(), in)
	var verr *ValidationError
	require.ErrorAs(t, err, &verr)
	assert.Equal(t, "hs_code", verr.Field)

	in.HSCode = "847130"
	_, err = svc.Create(context.Background(), in)
	require.ErrorAs(t, err, &verr)
	assert.Equal(t, "incoterm", verr.Field)

	in.Incoterm = "DAP"
	res, err := svc.Create(context.Background(), in)
	require.NoError(t, err)
	assert.True(t, res.Summary.IsInternational)
}

func TestCreate_FieldValidation(t *testing.T) {
	svc := newShipmentService(repository.NewMemoryStore())

	tests := []struct {
		name  string
		edit  func(*CreateShipmentInput)
		field string
	}{
		{"missing name", func(in *CreateShipmentInput) { in.Name = "" }, "name"},
		{"zero hours", func(in *CreateShipmentInput) { in.EstimatedHours = 0 }, "estimated_hours"},
		{"negative hours", func(in *CreateShipmentInput) { in.EstimatedHours = -2 }, "estimated_hours"},
		{"unknown origin", func(in *CreateShipmentInput) { in.OriginCity = "Atlantis" }, "origin_lat"},
		{"unknown destination", func(in *CreateShipmentInput) { in.DestCity = "Nowhere, ZZ" }, "dest_lat"},
		{"latitude out of range", func(in *CreateShipmentInput) {
			in.OriginLat, in.OriginLng = hoursPtr(95), hoursPtr(0)
		}, "origin_lat"},
		{"bad email", func(in *CreateShipmentInput) { in.ReceiverEmail = "not-an-email" }, "receiver_email"},
		{"bad status", func(in *CreateShipmentInput) { in.Status = "Lost" }, "status"},
		{"bad incoterm", func(in *CreateShipmentInput) { in.Incoterm = "XYZ" }, "incoterm"},
	}
	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			in := validInput()
			tc.edit(&in)
			_, err := svc.Create(context.Background(), in)
			var verr *ValidationError
			require.ErrorAs(t, err, &verr)
			assert.Equal(t, tc.field, verr.Field)
		})
	}
}

func TestCreate_ExplicitCoordinatesWin(t *testing.T) {
	store := repository.NewMemoryStore()
	svc := newShipmentService(store)

	in := validInput()
	in.OriginCity = "Somewhere"
	in.OriginLat, in.OriginLng = hoursPtr(10), hoursPtr(20)

	res, err := svc.Create(context.Background(), in)
	require.NoError(t, err)

	s, err := store.GetByCode(context.Background(), res.Code)
	require.NoError(t, err)
	assert.Equal(t, model.Location{Lat: 10, Lng: 20}, *s.Origin)
}

func TestCreate_RetriesCodeCollisions(t *testing.T) {
	store := &collidingStore{MemoryStore: repository.NewMemoryStore(), collisions: 2}
	svc := newShipmentService(store)

	_, err := svc.Create(context.Background(), validInput())
	assert.NoError(t, err)

	store.collisions = maxCodeAttempts
	_, err = svc.Create(context.Background(), validInput())
	assert.ErrorIs(t, err, ErrCodeExhausted)
}

// ─── Location override ──────────────────────────────────────

func TestUpdateLocation_RecomputesProgressAndInvalidates(t *testing.T) {
	store := repository.NewMemoryStore()
	seed(t, store, nil)
	cache := newMemCache()
	cache.views["SHP1A2B3C"] = []byte(`{}`)

	svc := NewShipmentService(store, nil, cache, nil, testCfg)
	svc.SetClock(fixedAt(t0.Add(time.Hour)))

	mid := geo.Interpolate(paris, berlin, 0.5)
	s, err := svc.UpdateLocation(context.Background(), LocationUpdateInput{
		Code:   "shp1a2b3c",
		Lat:    &mid.Lat,
		Lng:    &mid.Lng,
		Status: model.StatusOnHold,
		Reason: "Customs inspection",
	})
	require.NoError(t, err)
	assert.InDelta(t, 0.5, s.Progress, 0.02)
	assert.Equal(t, model.StatusOnHold, s.Status)
	assert.Equal(t, []string{"SHP1A2B3C"}, cache.invalidated)
	assert.NotContains(t, cache.views, "SHP1A2B3C")
	assert.Equal(t, 1, store.LocationWrites())

	stored, err := store.GetByCode(context.Background(), "SHP1A2B3C")
	require.NoError(t, err)
	assert.Equal(t, mid, *stored.Current)
	last := stored.History[len(stored.History)-1]
	assert.Equal(t, "Status changed to On Hold", last.Event)
	assert.Equal(t, "Customs inspection", last.Reason)
}

func TestUpdateLocation_Errors(t *testing.T) {
	store := repository.NewMemoryStore()
	seed(t, store, nil)
	svc := NewShipmentService(store, nil, nil, nil, testCfg)

	lat, lng := 1.0, 2.0
	_, err := svc.UpdateLocation(context.Background(), LocationUpdateInput{Code: "NOPE", Lat: &lat, Lng: &lng})
	assert.ErrorIs(t, err, ErrShipmentNotFound)

	_, err = svc.UpdateLocation(context.Background(), LocationUpdateInput{Code: "SHP1A2B3C", Lat: &lat})
	var verr *ValidationError
	require.ErrorAs(t, err, &verr)
	assert.Equal(t, "lng", verr.Field)

	bad := 200.0
	_, err = svc.UpdateLocation(context.Background(), LocationUpdateInput{Code: "SHP1A2B3C", Lat: &lat, Lng: &bad})
	require.ErrorAs(t, err, &verr)
	assert.Equal(t, "lng", verr.Field)
}

// ─── Reads ──────────────────────────────────────────────────

func TestList_NewestFirstWithLimits(t *testing.T) {
	store := repository.NewMemoryStore()
	for i, code := range []string{"SHP000001", "SHP000002", "SHP000003"} {
		seed(t, store, func(s *model.Shipment) {
			s.ID = uuid.New()
			s.Code = code
			s.CreatedAt = t0.Add(time.Duration(i) * time.Hour)
		})
	}
	svc := NewShipmentService(store, nil, nil, nil, testCfg)

	all, err := svc.List(context.Background(), 0, 0)
	require.NoError(t, err)
	require.Len(t, all, 3)
	assert.Equal(t, "SHP000003", all[0].Code)

	page, err := svc.List(context.Background(), 1, 1)
	require.NoError(t, err)
	require.Len(t, page, 1)
	assert.Equal(t, "SHP000002", page[0].Code)

	empty, err := svc.List(context.Background(), 10, 99)
	require.NoError(t, err)
	assert.Empty(t, empty)
	assert.NotNil(t, empty)
}

func TestHistory_StoredNewestFirst(t *testing.T) {
	store := repository.NewMemoryStore()
	seed(t, store, func(s *model.Shipment) {
		s.History = []model.HistoryEvent{
			{Event: "Shipment Created", Timestamp: t0},
			{Event: "Location Updated", Timestamp: t0.Add(2 * time.Hour)},
		}
	})
	svc := NewShipmentService(store, nil, nil, nil, testCfg)

	h, err := svc.History(context.Background(), "shp1a2b3c")
	require.NoError(t, err)
	require.Len(t, h, 2)
	assert.Equal(t, "Location Updated", h[0].Event)
}

func TestHistory_SyntheticWhenEmpty(t *testing.T) {
	store := repository.NewMemoryStore()
	seed(t, store, func(s *model.Shipment) {
		s.Progress = 0.4
		s.UpdatedAt = t0.Add(4 * time.Hour)
	})
	svc := NewShipmentService(store, nil, nil, nil, testCfg)

	h, err := svc.History(context.Background(), "SHP1A2B3C")
	require.NoError(t, err)
	require.Len(t, h, 3)
	assert.Equal(t, t0.Add(4*time.Hour), h[0].Timestamp)
	assert.Equal(t, t0.Add(2*time.Hour), h[1].Timestamp)
	assert.Equal(t, "Processing update. Progress: 40%.", h[1].Reason)
	assert.Equal(t, "Booked / Pending", h[2].Event)
	assert.Equal(t, t0, h[2].Timestamp)
}

// ─── Notify ─────────────────────────────────────────────────

func TestSubscribe(t *testing.T) {
	store := repository.NewMemoryStore()
	svc := NewNotificationService(store, testCfg)

	require.NoError(t, svc.Subscribe(context.Background(), NotifyInput{Email: "a@example.com", ShipmentCode: "shp1a2b3c"}))
	got := store.Notifications()
	require.Len(t, got, 1)
	assert.Equal(t, "SHP1A2B3C", got[0].ShipmentCode)

	var verr *ValidationError
	err := svc.Subscribe(context.Background(), NotifyInput{ShipmentCode: "SHP1A2B3C"})
	require.ErrorAs(t, err, &verr)
	assert.Equal(t, "email", verr.Field)

	err = svc.Subscribe(context.Background(), NotifyInput{Email: "a@example.com"})
	require.ErrorAs(t, err, &verr)
	assert.Equal(t, "shipmentCode", verr.Field)
}
