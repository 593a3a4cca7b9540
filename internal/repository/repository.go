package repository

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/submeterhq/submeter-ingest/internal/db"
)

// Tx is an alias for pgx.Tx
type Tx = pgx.Tx

// Repository handles database operations
type Repository struct {
	pool *pgxpool.Pool
}

// NewRepository creates a new repository
func NewRepository(pool *pgxpool.Pool) *Repository {
	return &Repository{pool: pool}
}

// IsUniqueViolation reports whether err is a Postgres unique constraint
// violation. The ingest path relies on this to turn a lost insert race on
// (meter_id, reading_date) into an update.
func IsUniqueViolation(err error) bool {
	var pgErr *pgconn.PgError
	return errors.As(err, &pgErr) && pgErr.Code == "23505"
}

// Ping verifies database connectivity.
func (r *Repository) Ping(ctx context.Context) error {
	return r.pool.Ping(ctx)
}

// FindActiveMeterByNumber looks up an active meter by its external meter
// number. Returns nil without error when no active meter matches.
func (r *Repository) FindActiveMeterByNumber(ctx context.Context, meterNumber string) (*db.Meter, error) {
	query := `
		SELECT id, unit_id, meter_number, meter_type, device_type, device_identifier, is_active, created_at, updated_at
		FROM meters
		WHERE meter_number = $1 AND is_active = TRUE
	`

	var meter db.Meter
	err := r.pool.QueryRow(ctx, query, meterNumber).Scan(
		&meter.ID,
		&meter.UnitID,
		&meter.MeterNumber,
		&meter.MeterType,
		&meter.DeviceType,
		&meter.DeviceIdentifier,
		&meter.IsActive,
		&meter.CreatedAt,
		&meter.UpdatedAt,
	)
	if err == pgx.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to query meter: %w", err)
	}

	return &meter, nil
}

// FindReadingByMeterAndDate looks up the stored reading for a meter and
// calendar date. Returns nil without error when none exists.
func (r *Repository) FindReadingByMeterAndDate(ctx context.Context, meterID uuid.UUID, readingDate string) (*db.MeterReading, error) {
	query := `
		SELECT id, meter_id, reading_value, reading_date::text, raw_data, source, created_at, updated_at
		FROM meter_readings
		WHERE meter_id = $1 AND reading_date = $2
	`

	var reading db.MeterReading
	err := r.pool.QueryRow(ctx, query, meterID, readingDate).Scan(
		&reading.ID,
		&reading.MeterID,
		&reading.ReadingValue,
		&reading.ReadingDate,
		&reading.RawData,
		&reading.Source,
		&reading.CreatedAt,
		&reading.UpdatedAt,
	)
	if err == pgx.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to query reading: %w", err)
	}

	return &reading, nil
}

// InsertReading inserts a new meter reading and returns its id. A unique
// violation on (meter_id, reading_date) is returned unwrapped enough for
// IsUniqueViolation to detect it.
func (r *Repository) InsertReading(ctx context.Context, reading *db.MeterReading) (uuid.UUID, error) {
	query := `
		INSERT INTO meter_readings (meter_id, reading_value, reading_date, raw_data, source)
		VALUES ($1, $2, $3, $4, $5)
		RETURNING id
	`

	var id uuid.UUID
	err := r.pool.QueryRow(ctx, query,
		reading.MeterID,
		reading.ReadingValue,
		reading.ReadingDate,
		reading.RawData,
		reading.Source,
	).Scan(&id)
	if err != nil {
		return uuid.Nil, fmt.Errorf("failed to insert meter reading: %w", err)
	}

	return id, nil
}

// UpdateReading overwrites the value, raw payload and source of an existing
// reading. The reading's identity (id, meter_id, reading_date) is preserved.
func (r *Repository) UpdateReading(ctx context.Context, id uuid.UUID, readingValue float64, rawData []byte, source string) error {
	query := `
		UPDATE meter_readings
		SET reading_value = $1, raw_data = $2, source = $3, updated_at = $4
		WHERE id = $5
	`

	tag, err := r.pool.Exec(ctx, query, readingValue, rawData, source, time.Now(), id)
	if err != nil {
		return fmt.Errorf("failed to update meter reading: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return fmt.Errorf("no reading with id %s", id)
	}

	return nil
}

// ListReadingsByMeter returns stored readings for a meter, newest first.
func (r *Repository) ListReadingsByMeter(ctx context.Context, meterID uuid.UUID, limit int) ([]db.MeterReading, error) {
	query := `
		SELECT id, meter_id, reading_value, reading_date::text, raw_data, source, created_at, updated_at
		FROM meter_readings
		WHERE meter_id = $1
		ORDER BY reading_date DESC
		LIMIT $2
	`

	rows, err := r.pool.Query(ctx, query, meterID, limit)
	if err != nil {
		return nil, fmt.Errorf("failed to query readings: %w", err)
	}
	defer rows.Close()

	var readings []db.MeterReading
	for rows.Next() {
		var reading db.MeterReading
		if err := rows.Scan(
			&reading.ID,
			&reading.MeterID,
			&reading.ReadingValue,
			&reading.ReadingDate,
			&reading.RawData,
			&reading.Source,
			&reading.CreatedAt,
			&reading.UpdatedAt,
		); err != nil {
			return nil, fmt.Errorf("failed to scan reading: %w", err)
		}
		readings = append(readings, reading)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("rows iteration error: %w", err)
	}

	return readings, nil
}

// GetRecentReadingValues returns the most recent reading values for a meter,
// used for the spike advisory on ingest.
func (r *Repository) GetRecentReadingValues(ctx context.Context, meterID uuid.UUID, limit int) ([]float64, error) {
	query := `
		SELECT reading_value
		FROM meter_readings
		WHERE meter_id = $1
		ORDER BY reading_date DESC
		LIMIT $2
	`

	rows, err := r.pool.Query(ctx, query, meterID, limit)
	if err != nil {
		return nil, fmt.Errorf("failed to query recent readings: %w", err)
	}
	defer rows.Close()

	var values []float64
	for rows.Next() {
		var value float64
		if err := rows.Scan(&value); err != nil {
			return nil, fmt.Errorf("failed to scan value: %w", err)
		}
		values = append(values, value)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("rows iteration error: %w", err)
	}

	return values, nil
}
