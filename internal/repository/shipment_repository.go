// Package repository provides storage for the shipment tracking system.
//
// ShipmentRepository is the PostgreSQL implementation; MemoryStore is an
// in-process implementation with the same contract.
package repository

import (
	"context"
	_ "embed"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/shopspring/decimal"

	"github.com/shiva/shiptrack/internal/model"
)

// ─── Errors ─────────────────────────────────────────────────

var (
	// ErrNotFound is returned when no shipment matches the lookup.
	ErrNotFound = errors.New("shipment not found")

	// ErrDuplicateCode is returned when a tracking code is already taken.
	ErrDuplicateCode = errors.New("tracking code already exists")
)

// pgUniqueViolation is the SQLSTATE for unique_violation.
const pgUniqueViolation = "23505"

//go:embed schema.sql
var Schema string

// ─── ShipmentRepository ─────────────────────────────────────

// ShipmentRepository provides PostgreSQL access to shipments.
type ShipmentRepository struct {
	pool *pgxpool.Pool
}

// NewShipmentRepository creates a new repository backed by the given PG pool.
func NewShipmentRepository(pool *pgxpool.Pool) *ShipmentRepository {
	return &ShipmentRepository{pool: pool}
}

const shipmentColumns = `
	id, code, name, agency, status, location, origin_city, dest_city,
	origin_lat, origin_lng, dest_lat, dest_lng, current_lat, current_lng,
	progress, estimated_hours,
	shipper, receiver, products,
	declared_value::text, insurance, insurance_value::text, currency,
	tax_amount::text, total_cost::text,
	hs_code, incoterm, carrier_ref, category, tracking_history,
	pickup_at, expected_delivery_at, delivered_at, created_at, updated_at`

// Create inserts a new shipment. The code must already be normalized.
// Returns ErrDuplicateCode when the code collides with an existing one.
func (r *ShipmentRepository) Create(ctx context.Context, s *model.Shipment) error {
	query := `
		INSERT INTO shipments (
			id, code, name, agency, status, location, origin_city, dest_city,
			origin_lat, origin_lng, dest_lat, dest_lng, current_lat, current_lng,
			progress, estimated_hours,
			shipper, receiver, products,
			declared_value, insurance, insurance_value, currency, tax_amount, total_cost,
			hs_code, incoterm, carrier_ref, category, tracking_history,
			pickup_at, expected_delivery_at, delivered_at, created_at, updated_at
		) VALUES (
			$1, $2, $3, $4, $5, $6, $7, $8,
			$9, $10, $11, $12, $13, $14,
			$15, $16,
			$17, $18, $19,
			$20::text::numeric, $21, $22::text::numeric, $23, $24::text::numeric, $25::text::numeric,
			$26, $27, $28, $29, $30,
			$31, $32, $33, $34, $35
		)
	`
	oLat, oLng := splitLocation(s.Origin)
	dLat, dLng := splitLocation(s.Destination)
	cLat, cLng := splitLocation(s.Current)

	_, err := r.pool.Exec(ctx, query,
		s.ID, s.Code, s.Name, s.Agency, s.Status, s.Location, s.OriginCity, s.DestCity,
		oLat, oLng, dLat, dLng, cLat, cLng,
		s.Progress, s.EstimatedHours,
		s.Shipper, s.Receiver, s.Products,
		s.Finance.DeclaredValue.String(), s.Finance.Insurance, nullDecimalText(s.Finance.InsuranceValue),
		s.Finance.Currency, nullDecimalText(s.Finance.TaxAmount), nullDecimalText(s.Finance.TotalCost),
		nullString(s.Customs.HSCode), nullString(s.Customs.Incoterm), s.CarrierRef, s.Category, s.History,
		s.PickupAt, s.ExpectedDeliveryAt, s.DeliveredAt, s.CreatedAt, s.UpdatedAt,
	)
	if err != nil {
		var pgErr *pgconn.PgError
		if errors.As(err, &pgErr) && pgErr.Code == pgUniqueViolation {
			return fmt.Errorf("create shipment %s: %w", s.Code, ErrDuplicateCode)
		}
		return fmt.Errorf("create shipment %s: %w", s.Code, err)
	}
	return nil
}

// GetByCode fetches a shipment by tracking code, case-insensitively.
func (r *ShipmentRepository) GetByCode(ctx context.Context, code string) (*model.Shipment, error) {
	query := `SELECT ` + shipmentColumns + `
		FROM shipments
		WHERE upper(code) = upper($1)`

	s, err := scanShipment(r.pool.QueryRow(ctx, query, code))
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, fmt.Errorf("get shipment %s: %w", code, ErrNotFound)
		}
		return nil, fmt.Errorf("get shipment %s: %w", code, err)
	}
	return s, nil
}

// List returns shipments newest first.
func (r *ShipmentRepository) List(ctx context.Context, limit, offset int) ([]model.Shipment, error) {
	query := `SELECT ` + shipmentColumns + `
		FROM shipments
		ORDER BY created_at DESC
		LIMIT $1 OFFSET $2`

	rows, err := r.pool.Query(ctx, query, limit, offset)
	if err != nil {
		return nil, fmt.Errorf("list shipments: %w", err)
	}
	defer rows.Close()

	var out []model.Shipment
	for rows.Next() {
		s, err := scanShipment(rows)
		if err != nil {
			return nil, fmt.Errorf("scan shipment: %w", err)
		}
		out = append(out, *s)
	}
	return out, rows.Err()
}

// UpdateProgress writes the derived progress and position in one statement.
// Status, delivered_at and a history entry are written only when set.
//
// No row lock is taken: the values are pure functions of immutable inputs,
// so concurrent writers converge on the same row contents.
func (r *ShipmentRepository) UpdateProgress(ctx context.Context, id uuid.UUID, upd model.ProgressUpdate) error {
	query := `
		UPDATE shipments
		SET progress     = $2,
		    current_lat  = $3,
		    current_lng  = $4,
		    updated_at   = $5,
		    status       = COALESCE($6::text, status),
		    delivered_at = COALESCE($7::timestamptz, delivered_at),
		    tracking_history = CASE
		        WHEN $8::jsonb IS NULL THEN tracking_history
		        ELSE tracking_history || jsonb_build_array($8::jsonb)
		    END
		WHERE id = $1
	`
	tag, err := r.pool.Exec(ctx, query,
		id, upd.Progress, upd.Current.Lat, upd.Current.Lng, upd.UpdatedAt,
		upd.Status, upd.DeliveredAt, upd.Event,
	)
	if err != nil {
		return fmt.Errorf("update progress %s: %w", id, err)
	}
	if tag.RowsAffected() == 0 {
		return fmt.Errorf("update progress %s: %w", id, ErrNotFound)
	}
	return nil
}

// UpdateLocation applies an administrative override and appends its history event.
func (r *ShipmentRepository) UpdateLocation(ctx context.Context, id uuid.UUID, o model.LocationOverride) error {
	query := `
		UPDATE shipments
		SET current_lat      = $2,
		    current_lng      = $3,
		    progress         = $4,
		    status           = COALESCE($5::text, status),
		    tracking_history = tracking_history || jsonb_build_array($6::jsonb),
		    updated_at       = $7
		WHERE id = $1
	`
	tag, err := r.pool.Exec(ctx, query,
		id, o.Current.Lat, o.Current.Lng, o.Progress, o.Status, o.Event, o.UpdatedAt,
	)
	if err != nil {
		return fmt.Errorf("update location %s: %w", id, err)
	}
	if tag.RowsAffected() == 0 {
		return fmt.Errorf("update location %s: %w", id, ErrNotFound)
	}
	return nil
}

// ─── Scanning ───────────────────────────────────────────────

func scanShipment(row pgx.Row) (*model.Shipment, error) {
	var (
		s                      model.Shipment
		oLat, oLng, dLat, dLng *float64
		cLat, cLng             *float64
		declared               string
		insValue, tax, total   *string
		hsCode, incoterm       *string
		status                 string
	)
	err := row.Scan(
		&s.ID, &s.Code, &s.Name, &s.Agency, &status, &s.Location, &s.OriginCity, &s.DestCity,
		&oLat, &oLng, &dLat, &dLng, &cLat, &cLng,
		&s.Progress, &s.EstimatedHours,
		&s.Shipper, &s.Receiver, &s.Products,
		&declared, &s.Finance.Insurance, &insValue, &s.Finance.Currency,
		&tax, &total,
		&hsCode, &incoterm, &s.CarrierRef, &s.Category, &s.History,
		&s.PickupAt, &s.ExpectedDeliveryAt, &s.DeliveredAt, &s.CreatedAt, &s.UpdatedAt,
	)
	if err != nil {
		return nil, err
	}

	s.Status = model.ShipmentStatus(status)
	s.Origin = joinLocation(oLat, oLng)
	s.Destination = joinLocation(dLat, dLng)
	s.Current = joinLocation(cLat, cLng)

	if s.Finance.DeclaredValue, err = decimal.NewFromString(declared); err != nil {
		return nil, fmt.Errorf("parse declared_value %q: %w", declared, err)
	}
	if s.Finance.InsuranceValue, err = parseNullDecimal(insValue); err != nil {
		return nil, err
	}
	if s.Finance.TaxAmount, err = parseNullDecimal(tax); err != nil {
		return nil, err
	}
	if s.Finance.TotalCost, err = parseNullDecimal(total); err != nil {
		return nil, err
	}
	if hsCode != nil {
		s.Customs.HSCode = *hsCode
	}
	if incoterm != nil {
		s.Customs.Incoterm = *incoterm
	}
	return &s, nil
}

// ─── Helpers ────────────────────────────────────────────────

// splitLocation maps an optional point onto two nullable columns.
func splitLocation(loc *model.Location) (*float64, *float64) {
	if loc == nil {
		return nil, nil
	}
	lat, lng := loc.Lat, loc.Lng
	return &lat, &lng
}

// joinLocation is the inverse of splitLocation. A half-set pair is treated as missing.
func joinLocation(lat, lng *float64) *model.Location {
	if lat == nil || lng == nil {
		return nil
	}
	return &model.Location{Lat: *lat, Lng: *lng}
}

func nullDecimalText(d decimal.NullDecimal) *string {
	if !d.Valid {
		return nil
	}
	s := d.Decimal.String()
	return &s
}

func parseNullDecimal(s *string) (decimal.NullDecimal, error) {
	if s == nil {
		return decimal.NullDecimal{}, nil
	}
	d, err := decimal.NewFromString(*s)
	if err != nil {
		return decimal.NullDecimal{}, fmt.Errorf("parse decimal %q: %w", *s, err)
	}
	return decimal.NewNullDecimal(d), nil
}

func nullString(s string) *string {
	if s == "" {
		return nil
	}
	return &s
}

// Migrate applies the embedded schema. Every statement is idempotent.
func Migrate(ctx context.Context, pool *pgxpool.Pool) error {
	ctx, cancel := context.WithTimeout(ctx, 30*time.Second)
	defer cancel()
	if _, err := pool.Exec(ctx, Schema); err != nil {
		return fmt.Errorf("migrate: %w", err)
	}
	return nil
}
