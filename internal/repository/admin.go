package repository

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/submeterhq/submeter-ingest/internal/db"
)

// CreateProperty inserts a new property
func (r *Repository) CreateProperty(ctx context.Context, p *db.Property) (*db.Property, error) {
	query := `
		INSERT INTO properties (address, city, state, zip_code, owner_name, water_utility, power_utility, gas_utility)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8)
		RETURNING id, created_at, updated_at
	`

	err := r.pool.QueryRow(ctx, query,
		p.Address, p.City, p.State, p.ZipCode,
		p.OwnerName, p.WaterUtility, p.PowerUtility, p.GasUtility,
	).Scan(&p.ID, &p.CreatedAt, &p.UpdatedAt)
	if err != nil {
		return nil, fmt.Errorf("failed to create property: %w", err)
	}

	return p, nil
}

// ListProperties returns all properties ordered by address
func (r *Repository) ListProperties(ctx context.Context) ([]db.Property, error) {
	query := `
		SELECT id, address, city, state, zip_code, owner_name, water_utility, power_utility, gas_utility, created_at, updated_at
		FROM properties
		ORDER BY address
	`

	rows, err := r.pool.Query(ctx, query)
	if err != nil {
		return nil, fmt.Errorf("failed to query properties: %w", err)
	}
	defer rows.Close()

	var properties []db.Property
	for rows.Next() {
		var p db.Property
		if err := rows.Scan(
			&p.ID, &p.Address, &p.City, &p.State, &p.ZipCode,
			&p.OwnerName, &p.WaterUtility, &p.PowerUtility, &p.GasUtility,
			&p.CreatedAt, &p.UpdatedAt,
		); err != nil {
			return nil, fmt.Errorf("failed to scan property: %w", err)
		}
		properties = append(properties, p)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("rows iteration error: %w", err)
	}

	return properties, nil
}

// CreateUnit inserts a new unit
func (r *Repository) CreateUnit(ctx context.Context, u *db.Unit) (*db.Unit, error) {
	query := `
		INSERT INTO units (property_id, unit_number)
		VALUES ($1, $2)
		RETURNING id, created_at, updated_at
	`

	err := r.pool.QueryRow(ctx, query, u.PropertyID, u.UnitNumber).
		Scan(&u.ID, &u.CreatedAt, &u.UpdatedAt)
	if err != nil {
		return nil, fmt.Errorf("failed to create unit: %w", err)
	}

	return u, nil
}

// ListUnitsByProperty returns all units for a property
func (r *Repository) ListUnitsByProperty(ctx context.Context, propertyID uuid.UUID) ([]db.Unit, error) {
	query := `
		SELECT id, property_id, unit_number, created_at, updated_at
		FROM units
		WHERE property_id = $1
		ORDER BY unit_number
	`

	rows, err := r.pool.Query(ctx, query, propertyID)
	if err != nil {
		return nil, fmt.Errorf("failed to query units: %w", err)
	}
	defer rows.Close()

	var units []db.Unit
	for rows.Next() {
		var u db.Unit
		if err := rows.Scan(&u.ID, &u.PropertyID, &u.UnitNumber, &u.CreatedAt, &u.UpdatedAt); err != nil {
			return nil, fmt.Errorf("failed to scan unit: %w", err)
		}
		units = append(units, u)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("rows iteration error: %w", err)
	}

	return units, nil
}

// CreateTenant inserts a new tenant
func (r *Repository) CreateTenant(ctx context.Context, t *db.Tenant) (*db.Tenant, error) {
	query := `
		INSERT INTO tenants (unit_id, name, email, phone, move_in_date, account_number)
		VALUES ($1, $2, $3, $4, $5, $6)
		RETURNING id, created_at, updated_at
	`

	err := r.pool.QueryRow(ctx, query,
		t.UnitID, t.Name, t.Email, t.Phone, t.MoveInDate, t.AccountNumber,
	).Scan(&t.ID, &t.CreatedAt, &t.UpdatedAt)
	if err != nil {
		return nil, fmt.Errorf("failed to create tenant: %w", err)
	}

	return t, nil
}

// MoveOutTenant records a tenant's move-out date
func (r *Repository) MoveOutTenant(ctx context.Context, tenantID uuid.UUID, moveOutDate time.Time) error {
	query := `
		UPDATE tenants
		SET move_out_date = $1, updated_at = $2
		WHERE id = $3
	`

	tag, err := r.pool.Exec(ctx, query, moveOutDate, time.Now(), tenantID)
	if err != nil {
		return fmt.Errorf("failed to move out tenant: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return fmt.Errorf("no tenant with id %s", tenantID)
	}

	return nil
}

// CreateMeter inserts a new meter
func (r *Repository) CreateMeter(ctx context.Context, m *db.Meter) (*db.Meter, error) {
	query := `
		INSERT INTO meters (unit_id, meter_number, meter_type, device_type, device_identifier, is_active)
		VALUES ($1, $2, $3, $4, $5, $6)
		RETURNING id, created_at, updated_at
	`

	err := r.pool.QueryRow(ctx, query,
		m.UnitID, m.MeterNumber, m.MeterType, m.DeviceType, m.DeviceIdentifier, m.IsActive,
	).Scan(&m.ID, &m.CreatedAt, &m.UpdatedAt)
	if err != nil {
		return nil, fmt.Errorf("failed to create meter: %w", err)
	}

	return m, nil
}
