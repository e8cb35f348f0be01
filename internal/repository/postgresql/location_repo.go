package postgresql

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/dmarxie/smart-parking/internal/domain"
	"github.com/dmarxie/smart-parking/internal/repository"

	"github.com/lib/pq"
)

type pgLocationRepository struct {
	db *sql.DB
}

func NewPgLocationRepository(db *sql.DB) repository.LocationRepository {
	return &pgLocationRepository{db: db}
}

// available_slots is derived on every read: total minus slots currently
// flagged occupied or reserved.
const locationSelect = `SELECT l.id, l.name, l.address, l.total_slots,
	        l.total_slots - (SELECT COUNT(*) FROM parking_slots s WHERE s.location_id = l.id AND (s.is_occupied OR s.is_reserved)),
	        l.hourly_rate, l.is_active, l.created_at, l.updated_at
	   FROM parking_locations l`

func scanLocation(row interface{ Scan(...any) error }, loc *domain.ParkingLocation) error {
	var rate string
	err := row.Scan(&loc.ID, &loc.Name, &loc.Address, &loc.TotalSlots, &loc.AvailableSlots,
		&rate, &loc.IsActive, &loc.CreatedAt, &loc.UpdatedAt)
	if err != nil {
		return err
	}
	loc.HourlyRate, err = parseRate(rate)
	loc.CreatedAt = loc.CreatedAt.In(time.UTC)
	loc.UpdatedAt = loc.UpdatedAt.In(time.UTC)
	return err
}

func (r *pgLocationRepository) Create(ctx context.Context, loc *domain.ParkingLocation) (*domain.ParkingLocation, error) {
	query := `INSERT INTO parking_locations (name, address, total_slots, hourly_rate, is_active, created_at, updated_at)
	           VALUES ($1, $2, $3, $4, $5, CURRENT_TIMESTAMP, CURRENT_TIMESTAMP)
	           RETURNING id, created_at, updated_at`
	err := r.db.QueryRowContext(ctx, query,
		loc.Name, loc.Address, loc.TotalSlots, loc.HourlyRate.String(), loc.IsActive,
	).Scan(&loc.ID, &loc.CreatedAt, &loc.UpdatedAt)
	if err != nil {
		if pqErr, ok := err.(*pq.Error); ok && pqErr.Code.Name() == "unique_violation" {
			return nil, fmt.Errorf("%w: location %q already exists", repository.ErrDuplicateEntry, loc.Name)
		}
		return nil, fmt.Errorf("LocationRepository.Create: %w", err)
	}
	loc.AvailableSlots = loc.TotalSlots
	loc.CreatedAt = loc.CreatedAt.In(time.UTC)
	loc.UpdatedAt = loc.UpdatedAt.In(time.UTC)
	return loc, nil
}

func (r *pgLocationRepository) FindByID(ctx context.Context, id int) (*domain.ParkingLocation, error) {
	loc := &domain.ParkingLocation{}
	err := scanLocation(r.db.QueryRowContext(ctx, locationSelect+` WHERE l.id = $1`, id), loc)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, repository.ErrNotFound
		}
		return nil, fmt.Errorf("LocationRepository.FindByID: %w", err)
	}
	return loc, nil
}

func (r *pgLocationRepository) FindAll(ctx context.Context, filter domain.LocationFilterDTO, limit, offset int) ([]domain.ParkingLocation, int, error) {
	where := ` WHERE 1=1`
	args := []any{}
	if filter.IsActive != nil {
		args = append(args, *filter.IsActive)
		where += fmt.Sprintf(" AND l.is_active = $%d", len(args))
	}
	if filter.Search != nil && *filter.Search != "" {
		args = append(args, "%"+*filter.Search+"%")
		n := len(args)
		where += fmt.Sprintf(" AND (l.name ILIKE $%d OR l.address ILIKE $%d)", n, n)
	}

	var count int
	if err := r.db.QueryRowContext(ctx, `SELECT COUNT(*) FROM parking_locations l`+where, args...).Scan(&count); err != nil {
		return nil, 0, fmt.Errorf("LocationRepository.FindAll (count): %w", err)
	}

	args = append(args, limit, offset)
	query := locationSelect + where + fmt.Sprintf(` ORDER BY l.name LIMIT $%d OFFSET $%d`, len(args)-1, len(args))
	rows, err := r.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, 0, fmt.Errorf("LocationRepository.FindAll: %w", err)
	}
	defer rows.Close()

	var locations []domain.ParkingLocation
	for rows.Next() {
		var loc domain.ParkingLocation
		if err := scanLocation(rows, &loc); err != nil {
			return nil, 0, fmt.Errorf("LocationRepository.FindAll (scanning row): %w", err)
		}
		locations = append(locations, loc)
	}
	if err = rows.Err(); err != nil {
		return nil, 0, fmt.Errorf("LocationRepository.FindAll (rows error): %w", err)
	}
	return locations, count, nil
}

func (r *pgLocationRepository) Update(ctx context.Context, loc *domain.ParkingLocation) (*domain.ParkingLocation, error) {
	query := `UPDATE parking_locations
	           SET name = $1, address = $2, total_slots = $3, hourly_rate = $4, is_active = $5, updated_at = CURRENT_TIMESTAMP
	           WHERE id = $6
	           RETURNING updated_at`
	err := r.db.QueryRowContext(ctx, query,
		loc.Name, loc.Address, loc.TotalSlots, loc.HourlyRate.String(), loc.IsActive, loc.ID,
	).Scan(&loc.UpdatedAt)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, repository.ErrNotFound
		}
		return nil, fmt.Errorf("LocationRepository.Update: %w", err)
	}
	loc.UpdatedAt = loc.UpdatedAt.In(time.UTC)
	return loc, nil
}

func (r *pgLocationRepository) Delete(ctx context.Context, id int) error {
	result, err := r.db.ExecContext(ctx, `DELETE FROM parking_locations WHERE id = $1`, id)
	if err != nil {
		return fmt.Errorf("LocationRepository.Delete: %w", err)
	}
	rowsAffected, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("LocationRepository.Delete (checking rows affected): %w", err)
	}
	if rowsAffected == 0 {
		return repository.ErrNotFound
	}
	return nil
}
