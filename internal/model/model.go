// Package model contains domain models for the shipment tracking system.
// These structs map to the PostgreSQL schema in internal/repository/schema.sql.
package model

import (
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

// ─── Enums ──────────────────────────────────────────────────

type ShipmentStatus string

const (
	StatusInTransit ShipmentStatus = "In Transit"
	StatusOnHold    ShipmentStatus = "On Hold"
	StatusDelivered ShipmentStatus = "Delivered"
	StatusCancelled ShipmentStatus = "Cancelled"
)

// Valid reports whether s is one of the known statuses.
func (s ShipmentStatus) Valid() bool {
	switch s {
	case StatusInTransit, StatusOnHold, StatusDelivered, StatusCancelled:
		return true
	}
	return false
}

// Frozen reports whether movement simulation is stopped for s.
func (s ShipmentStatus) Frozen() bool {
	return s == StatusOnHold || s == StatusDelivered || s == StatusCancelled
}

// ─── Constants ──────────────────────────────────────────────

const (
	// CodePrefix is prepended to every generated tracking code.
	CodePrefix = "SHP"

	// CodeSuffixLen is the number of random base-36 characters after the prefix.
	CodeSuffixLen = 6

	// InsuranceThreshold is the declared value above which insurance is mandatory.
	InsuranceThreshold = 5

	// VolumetricDivisor converts cm³ into volumetric kilograms.
	VolumetricDivisor = 5000.0

	DefaultCurrency = "USD"
	DefaultCategory = "General"
)

// NormalizeCode trims and upper-cases a tracking code for lookup.
func NormalizeCode(code string) string {
	return strings.ToUpper(strings.TrimSpace(code))
}

// ─── Location ───────────────────────────────────────────────

// Location represents a WGS-84 geographic point in degrees.
type Location struct {
	Lat float64 `json:"lat"`
	Lng float64 `json:"lng"`
}

// ─── Shipment ───────────────────────────────────────────────

// Contact is a shipper or receiver block.
type Contact struct {
	Name    string `json:"name"`
	Address string `json:"address"`
	Phone   string `json:"phone,omitempty"`
	Email   string `json:"email,omitempty"`
}

// Product is a single free-form line item of a shipment.
type Product struct {
	PieceType   string  `json:"piece_type"`
	Product     string  `json:"product"`
	Description string  `json:"description"`
	Qty         int     `json:"qty" validate:"gte=0"`
	LengthCm    float64 `json:"length_cm" validate:"gte=0"`
	WidthCm     float64 `json:"width_cm" validate:"gte=0"`
	HeightCm    float64 `json:"height_cm" validate:"gte=0"`
	WeightKg    float64 `json:"weight_kg" validate:"gte=0"`
}

// HistoryEvent is one entry of the append-only tracking log.
type HistoryEvent struct {
	Event     string         `json:"event"`
	Location  string         `json:"location"`
	Timestamp time.Time      `json:"timestamp"`
	Reason    string         `json:"reason,omitempty"`
	Status    ShipmentStatus `json:"status,omitempty"`
}

// Finance holds the money fields of a shipment.
type Finance struct {
	DeclaredValue  decimal.Decimal     `json:"declared_value"`
	Insurance      bool                `json:"insurance"`
	InsuranceValue decimal.NullDecimal `json:"insurance_value"`
	Currency       string              `json:"currency"`
	TaxAmount      decimal.NullDecimal `json:"tax_amount"`
	TotalCost      decimal.NullDecimal `json:"total_cost"`
}

// Customs holds cross-border fields, required only for international shipments.
type Customs struct {
	HSCode   string `json:"hs_code,omitempty"`
	Incoterm string `json:"incoterm,omitempty"`
}

// Shipment maps to the `shipments` table.
type Shipment struct {
	ID     uuid.UUID      `json:"id"`
	Code   string         `json:"code"`
	Name   string         `json:"name"`
	Agency string         `json:"agency"`
	Status ShipmentStatus `json:"status"`

	// Location is a free-text description shown to customers.
	Location   string `json:"location"`
	OriginCity string `json:"origin_city"`
	DestCity   string `json:"dest_city"`

	Origin      *Location `json:"origin,omitempty"`
	Destination *Location `json:"destination,omitempty"`
	Current     *Location `json:"current,omitempty"`

	Progress       float64  `json:"progress"`
	EstimatedHours *float64 `json:"estimated_hours,omitempty"`

	Shipper  Contact   `json:"shipper"`
	Receiver Contact   `json:"receiver"`
	Products []Product `json:"products"`
	Finance  Finance   `json:"finance"`
	Customs  Customs   `json:"customs"`

	CarrierRef string         `json:"carrier_ref"`
	Category   string         `json:"category"`
	History    []HistoryEvent `json:"tracking_history"`

	PickupAt           *time.Time `json:"pickup_at,omitempty"`
	ExpectedDeliveryAt *time.Time `json:"expected_delivery_at,omitempty"`
	DeliveredAt        *time.Time `json:"delivered_at,omitempty"`
	CreatedAt          time.Time  `json:"created_at"`
	UpdatedAt          time.Time  `json:"updated_at"`
}

// ─── Writes ─────────────────────────────────────────────────

// ProgressUpdate is the single conditional write issued by a tracking poll.
// Status, DeliveredAt and Event are only set on the In Transit → Delivered edge.
type ProgressUpdate struct {
	Progress    float64
	Current     Location
	UpdatedAt   time.Time
	Status      *ShipmentStatus
	DeliveredAt *time.Time
	Event       *HistoryEvent
}

// LocationOverride is an administrative move of a shipment.
type LocationOverride struct {
	Current   Location
	Progress  float64
	Status    *ShipmentStatus
	Event     HistoryEvent
	UpdatedAt time.Time
}

// ─── Notification ───────────────────────────────────────────

// Notification maps to the `notifications` table.
type Notification struct {
	ID           uuid.UUID `json:"id"`
	Email        string    `json:"email"`
	ShipmentCode string    `json:"shipment_code"`
	CreatedAt    time.Time `json:"created_at"`
}

// ─── Weight summary ─────────────────────────────────────────

// WeightSummary is returned on creation.
type WeightSummary struct {
	TotalWeight       float64 `json:"total_weight"`
	VolumetricWeight  float64 `json:"volumetric_weight"`
	ChargeableWeight  float64 `json:"chargeable_weight"`
	Pieces            int     `json:"pieces"`
	RequiresInsurance bool    `json:"requires_insurance"`
	IsInternational   bool    `json:"is_international"`
}

// Weigh computes actual, volumetric and chargeable weight of the products.
// A zero quantity counts as one piece for weight purposes.
func Weigh(products []Product) WeightSummary {
	var ws WeightSummary
	for _, p := range products {
		qty := p.Qty
		if qty <= 0 {
			qty = 1
		}
		ws.TotalWeight += p.WeightKg * float64(qty)
		ws.VolumetricWeight += (p.LengthCm * p.WidthCm * p.HeightCm / VolumetricDivisor) * float64(qty)
		ws.Pieces += p.Qty
	}
	ws.ChargeableWeight = ws.TotalWeight
	if ws.VolumetricWeight > ws.ChargeableWeight {
		ws.ChargeableWeight = ws.VolumetricWeight
	}
	return ws
}

// CountryOf returns the country suffix of a "City, CC" string, or "".
func CountryOf(city string) string {
	idx := strings.LastIndex(city, ", ")
	if idx < 0 {
		return ""
	}
	return strings.TrimSpace(city[idx+2:])
}

// IsInternational reports whether origin and destination cities carry
// different country suffixes. Unknown countries are treated as domestic.
func IsInternational(originCity, destCity string) bool {
	o, d := CountryOf(originCity), CountryOf(destCity)
	return o != "" && d != "" && o != d
}
