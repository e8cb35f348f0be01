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

type pgSlotRepository struct {
	db *sql.DB
}

func NewPgSlotRepository(db *sql.DB) repository.SlotRepository {
	return &pgSlotRepository{db: db}
}

const slotSelect = `SELECT s.id, s.location_id, l.name, s.slot_number, s.is_occupied, s.is_reserved, s.created_at, s.updated_at
	   FROM parking_slots s JOIN parking_locations l ON l.id = s.location_id`

func scanSlot(row interface{ Scan(...any) error }, slot *domain.ParkingSlot) error {
	err := row.Scan(&slot.ID, &slot.LocationID, &slot.LocationName, &slot.SlotNumber,
		&slot.IsOccupied, &slot.IsReserved, &slot.CreatedAt, &slot.UpdatedAt)
	if err != nil {
		return err
	}
	slot.CreatedAt = slot.CreatedAt.In(time.UTC)
	slot.UpdatedAt = slot.UpdatedAt.In(time.UTC)
	return nil
}

func (r *pgSlotRepository) Create(ctx context.Context, slot *domain.ParkingSlot) (*domain.ParkingSlot, error) {
	query := `INSERT INTO parking_slots (location_id, slot_number, is_occupied, is_reserved, created_at, updated_at)
	           VALUES ($1, $2, FALSE, FALSE, CURRENT_TIMESTAMP, CURRENT_TIMESTAMP)
	           RETURNING id, created_at, updated_at`
	err := r.db.QueryRowContext(ctx, query, slot.LocationID, slot.SlotNumber).
		Scan(&slot.ID, &slot.CreatedAt, &slot.UpdatedAt)
	if err != nil {
		if pqErr, ok := err.(*pq.Error); ok {
			if pqErr.Code.Name() == "unique_violation" && pqErr.Constraint == "parking_slots_location_id_slot_number_key" {
				return nil, fmt.Errorf("%w: slot %q already exists at location %d", repository.ErrDuplicateEntry, slot.SlotNumber, slot.LocationID)
			}
		}
		return nil, fmt.Errorf("SlotRepository.Create: %w", err)
	}
	slot.CreatedAt = slot.CreatedAt.In(time.UTC)
	slot.UpdatedAt = slot.UpdatedAt.In(time.UTC)
	return slot, nil
}

func (r *pgSlotRepository) CreateBatch(ctx context.Context, locationID int, slotNumbers []string) error {
	if len(slotNumbers) == 0 {
		return nil
	}
	query := `INSERT INTO parking_slots (location_id, slot_number, is_occupied, is_reserved, created_at, updated_at)
	           SELECT $1, unnest($2::text[]), FALSE, FALSE, CURRENT_TIMESTAMP, CURRENT_TIMESTAMP`
	_, err := r.db.ExecContext(ctx, query, locationID, pq.Array(slotNumbers))
	if err != nil {
		return fmt.Errorf("SlotRepository.CreateBatch: %w", err)
	}
	return nil
}

func (r *pgSlotRepository) FindByID(ctx context.Context, id int) (*domain.ParkingSlot, error) {
	slot := &domain.ParkingSlot{}
	err := scanSlot(r.db.QueryRowContext(ctx, slotSelect+` WHERE s.id = $1`, id), slot)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, repository.ErrNotFound
		}
		return nil, fmt.Errorf("SlotRepository.FindByID: %w", err)
	}
	return slot, nil
}

func (r *pgSlotRepository) FindAll(ctx context.Context, filter domain.SlotFilterDTO, limit, offset int) ([]domain.ParkingSlot, int, error) {
	where := ` WHERE 1=1`
	args := []any{}
	if filter.LocationID != nil {
		args = append(args, *filter.LocationID)
		where += fmt.Sprintf(" AND s.location_id = $%d", len(args))
	}
	if filter.IsOccupied != nil {
		args = append(args, *filter.IsOccupied)
		where += fmt.Sprintf(" AND s.is_occupied = $%d", len(args))
	}
	if filter.IsReserved != nil {
		args = append(args, *filter.IsReserved)
		where += fmt.Sprintf(" AND s.is_reserved = $%d", len(args))
	}
	if filter.Search != nil && *filter.Search != "" {
		args = append(args, "%"+*filter.Search+"%")
		where += fmt.Sprintf(" AND s.slot_number ILIKE $%d", len(args))
	}

	var count int
	countQuery := `SELECT COUNT(*) FROM parking_slots s JOIN parking_locations l ON l.id = s.location_id` + where
	if err := r.db.QueryRowContext(ctx, countQuery, args...).Scan(&count); err != nil {
		return nil, 0, fmt.Errorf("SlotRepository.FindAll (count): %w", err)
	}

	args = append(args, limit, offset)
	query := slotSelect + where + fmt.Sprintf(` ORDER BY l.name, s.slot_number LIMIT $%d OFFSET $%d`, len(args)-1, len(args))
	rows, err := r.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, 0, fmt.Errorf("SlotRepository.FindAll: %w", err)
	}
	defer rows.Close()

	var slots []domain.ParkingSlot
	for rows.Next() {
		var slot domain.ParkingSlot
		if err := scanSlot(rows, &slot); err != nil {
			return nil, 0, fmt.Errorf("SlotRepository.FindAll (scanning row): %w", err)
		}
		slots = append(slots, slot)
	}
	if err = rows.Err(); err != nil {
		return nil, 0, fmt.Errorf("SlotRepository.FindAll (rows error): %w", err)
	}
	return slots, count, nil
}

func (r *pgSlotRepository) Update(ctx context.Context, slot *domain.ParkingSlot) (*domain.ParkingSlot, error) {
	query := `UPDATE parking_slots
	           SET location_id = $1, slot_number = $2, updated_at = CURRENT_TIMESTAMP
	           WHERE id = $3
	           RETURNING updated_at`
	err := r.db.QueryRowContext(ctx, query, slot.LocationID, slot.SlotNumber, slot.ID).Scan(&slot.UpdatedAt)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, repository.ErrNotFound
		}
		if pqErr, ok := err.(*pq.Error); ok && pqErr.Code.Name() == "unique_violation" {
			return nil, fmt.Errorf("%w: slot %q already exists at location %d", repository.ErrDuplicateEntry, slot.SlotNumber, slot.LocationID)
		}
		return nil, fmt.Errorf("SlotRepository.Update: %w", err)
	}
	slot.UpdatedAt = slot.UpdatedAt.In(time.UTC)
	return slot, nil
}

func (r *pgSlotRepository) SetFlags(ctx context.Context, id int, occupied, reserved bool) error {
	query := `UPDATE parking_slots SET is_occupied = $1, is_reserved = $2, updated_at = CURRENT_TIMESTAMP WHERE id = $3`
	result, err := r.db.ExecContext(ctx, query, occupied, reserved, id)
	if err != nil {
		return fmt.Errorf("SlotRepository.SetFlags: %w", err)
	}
	rowsAffected, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("SlotRepository.SetFlags (checking rows affected): %w", err)
	}
	if rowsAffected == 0 {
		return repository.ErrNotFound
	}
	return nil
}

func (r *pgSlotRepository) Delete(ctx context.Context, id int) error {
	result, err := r.db.ExecContext(ctx, `DELETE FROM parking_slots WHERE id = $1`, id)
	if err != nil {
		return fmt.Errorf("SlotRepository.Delete: %w", err)
	}
	rowsAffected, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("SlotRepository.Delete (checking rows affected): %w", err)
	}
	if rowsAffected == 0 {
		return repository.ErrNotFound
	}
	return nil
}

func (r *pgSlotRepository) DeleteFreeAboveNumber(ctx context.Context, locationID int, number string) (int, error) {
	query := `DELETE FROM parking_slots
	           WHERE location_id = $1 AND slot_number > $2 AND NOT is_occupied AND NOT is_reserved`
	result, err := r.db.ExecContext(ctx, query, locationID, number)
	if err != nil {
		return 0, fmt.Errorf("SlotRepository.DeleteFreeAboveNumber: %w", err)
	}
	rowsAffected, err := result.RowsAffected()
	if err != nil {
		return 0, fmt.Errorf("SlotRepository.DeleteFreeAboveNumber (checking rows affected): %w", err)
	}
	return int(rowsAffected), nil
}

func (r *pgSlotRepository) CountByLocation(ctx context.Context, locationID int) (int, error) {
	var count int
	err := r.db.QueryRowContext(ctx, `SELECT COUNT(*) FROM parking_slots WHERE location_id = $1`, locationID).Scan(&count)
	if err != nil {
		return 0, fmt.Errorf("SlotRepository.CountByLocation: %w", err)
	}
	return count, nil
}

func (r *pgSlotRepository) CountTotals(ctx context.Context) (int, int, error) {
	var total, occupied int
	query := `SELECT COUNT(*), COUNT(*) FILTER (WHERE is_occupied) FROM parking_slots`
	if err := r.db.QueryRowContext(ctx, query).Scan(&total, &occupied); err != nil {
		return 0, 0, fmt.Errorf("SlotRepository.CountTotals: %w", err)
	}
	return total, occupied, nil
}
