package db

import (
	"time"

	"github.com/google/uuid"
)

// Property represents a managed property in the database
type Property struct {
	ID           uuid.UUID `json:"id"`
	Address      string    `json:"address"`
	City         string    `json:"city"`
	State        string    `json:"state"`
	ZipCode      string    `json:"zip_code"`
	OwnerName    *string   `json:"owner_name"`
	WaterUtility *string   `json:"water_utility"`
	PowerUtility *string   `json:"power_utility"`
	GasUtility   *string   `json:"gas_utility"`
	CreatedAt    time.Time `json:"created_at"`
	UpdatedAt    time.Time `json:"updated_at"`
}

// Unit represents a rentable unit within a property
type Unit struct {
	ID         uuid.UUID `json:"id"`
	PropertyID uuid.UUID `json:"property_id"`
	UnitNumber string    `json:"unit_number"`
	CreatedAt  time.Time `json:"created_at"`
	UpdatedAt  time.Time `json:"updated_at"`
}

// Tenant represents a tenant occupying a unit
type Tenant struct {
	ID            uuid.UUID  `json:"id"`
	UnitID        uuid.UUID  `json:"unit_id"`
	Name          string     `json:"name"`
	Email         *string    `json:"email"`
	Phone         *string    `json:"phone"`
	MoveInDate    time.Time  `json:"move_in_date"`
	MoveOutDate   *time.Time `json:"move_out_date"`
	AccountNumber *string    `json:"account_number"`
	CreatedAt     time.Time  `json:"created_at"`
	UpdatedAt     time.Time  `json:"updated_at"`
}

// Meter represents a submeter attached to a unit
type Meter struct {
	ID               uuid.UUID `json:"id"`
	UnitID           uuid.UUID `json:"unit_id"`
	MeterNumber      string    `json:"meter_number"`
	MeterType        string    `json:"meter_type"`
	DeviceType       *string   `json:"device_type"`
	DeviceIdentifier *string   `json:"device_identifier"`
	IsActive         bool      `json:"is_active"`
	CreatedAt        time.Time `json:"created_at"`
	UpdatedAt        time.Time `json:"updated_at"`
}

// MeterReading represents a stored meter reading. At most one row exists per
// (meter_id, reading_date) pair.
type MeterReading struct {
	ID           uuid.UUID
	MeterID      uuid.UUID
	ReadingValue float64
	ReadingDate  string
	RawData      []byte
	Source       string
	CreatedAt    time.Time
	UpdatedAt    time.Time
}
