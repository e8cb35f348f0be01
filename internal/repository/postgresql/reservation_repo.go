package postgresql

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/dmarxie/smart-parking/internal/domain"
	"github.com/dmarxie/smart-parking/internal/repository"
)

type pgReservationRepository struct {
	db *sql.DB
}

func NewPgReservationRepository(db *sql.DB) repository.ReservationRepository {
	return &pgReservationRepository{db: db}
}

const reservationSelect = `SELECT r.id, r.user_id, u.email, r.slot_id, s.slot_number, s.location_id, l.name,
	        r.start_time, r.end_time, r.vehicle_plate, r.status, r.estimated_fee, r.created_at, r.updated_at
	   FROM reservations r
	   JOIN users u ON u.id = r.user_id
	   JOIN parking_slots s ON s.id = r.slot_id
	   JOIN parking_locations l ON l.id = s.location_id`

func scanReservation(row interface{ Scan(...any) error }, res *domain.Reservation) error {
	var fee string
	err := row.Scan(&res.ID, &res.UserID, &res.UserEmail, &res.SlotID, &res.SlotNumber,
		&res.LocationID, &res.LocationName, &res.StartTime, &res.EndTime,
		&res.VehiclePlate, &res.Status, &fee, &res.CreatedAt, &res.UpdatedAt)
	if err != nil {
		return err
	}
	if res.EstimatedFee, err = parseRate(fee); err != nil {
		return err
	}
	res.StartTime = res.StartTime.In(time.UTC)
	res.EndTime = res.EndTime.In(time.UTC)
	res.CreatedAt = res.CreatedAt.In(time.UTC)
	res.UpdatedAt = res.UpdatedAt.In(time.UTC)
	return nil
}

// Create inserts a reservation after an overlap check, all inside one
// transaction. The slot row is locked first so two concurrent requests for
// the same slot serialize; the loser of the race sees the winner's row in
// the overlap query and gets ErrSlotConflict.
func (r *pgReservationRepository) Create(ctx context.Context, res *domain.Reservation) (*domain.Reservation, error) {
	tx, err := r.db.BeginTx(ctx, nil)
	if err != nil {
		return nil, fmt.Errorf("ReservationRepository.Create (begin): %w", err)
	}
	defer tx.Rollback()

	var slotID int
	err = tx.QueryRowContext(ctx, `SELECT id FROM parking_slots WHERE id = $1 FOR UPDATE`, res.SlotID).Scan(&slotID)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, repository.ErrNotFound
		}
		return nil, fmt.Errorf("ReservationRepository.Create (locking slot): %w", err)
	}

	// Overlap: [start, end) intervals intersect and the existing
	// reservation is still active.
	var conflicts int
	overlapQuery := `SELECT COUNT(*) FROM reservations
	                  WHERE slot_id = $1 AND status IN ('PENDING', 'CONFIRMED')
	                    AND start_time < $3 AND end_time > $2`
	err = tx.QueryRowContext(ctx, overlapQuery, res.SlotID, res.StartTime, res.EndTime).Scan(&conflicts)
	if err != nil {
		return nil, fmt.Errorf("ReservationRepository.Create (overlap check): %w", err)
	}
	if conflicts > 0 {
		return nil, repository.ErrSlotConflict
	}

	insertQuery := `INSERT INTO reservations (user_id, slot_id, start_time, end_time, vehicle_plate, status, estimated_fee, created_at, updated_at)
	                 VALUES ($1, $2, $3, $4, $5, $6, $7, CURRENT_TIMESTAMP, CURRENT_TIMESTAMP)
	                 RETURNING id, created_at, updated_at`
	err = tx.QueryRowContext(ctx, insertQuery,
		res.UserID, res.SlotID, res.StartTime, res.EndTime, res.VehiclePlate, res.Status, res.EstimatedFee.String(),
	).Scan(&res.ID, &res.CreatedAt, &res.UpdatedAt)
	if err != nil {
		return nil, fmt.Errorf("ReservationRepository.Create (insert): %w", err)
	}

	_, err = tx.ExecContext(ctx, `UPDATE parking_slots SET is_reserved = TRUE, updated_at = CURRENT_TIMESTAMP WHERE id = $1`, res.SlotID)
	if err != nil {
		return nil, fmt.Errorf("ReservationRepository.Create (flagging slot): %w", err)
	}

	if err = tx.Commit(); err != nil {
		return nil, fmt.Errorf("ReservationRepository.Create (commit): %w", err)
	}
	res.CreatedAt = res.CreatedAt.In(time.UTC)
	res.UpdatedAt = res.UpdatedAt.In(time.UTC)
	return res, nil
}

func (r *pgReservationRepository) FindByID(ctx context.Context, id int) (*domain.Reservation, error) {
	res := &domain.Reservation{}
	err := scanReservation(r.db.QueryRowContext(ctx, reservationSelect+` WHERE r.id = $1`, id), res)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, repository.ErrNotFound
		}
		return nil, fmt.Errorf("ReservationRepository.FindByID: %w", err)
	}
	return res, nil
}

func (r *pgReservationRepository) FindAll(ctx context.Context, filter domain.ReservationFilterDTO, limit, offset int) ([]domain.Reservation, int, error) {
	where := ` WHERE 1=1`
	args := []any{}
	if filter.Status != nil {
		args = append(args, *filter.Status)
		where += fmt.Sprintf(" AND r.status = $%d", len(args))
	}
	if filter.LocationID != nil {
		args = append(args, *filter.LocationID)
		where += fmt.Sprintf(" AND s.location_id = $%d", len(args))
	}
	if filter.UserID != nil {
		args = append(args, *filter.UserID)
		where += fmt.Sprintf(" AND r.user_id = $%d", len(args))
	}
	if filter.Search != nil && *filter.Search != "" {
		args = append(args, "%"+*filter.Search+"%")
		where += fmt.Sprintf(" AND s.slot_number ILIKE $%d", len(args))
	}

	countQuery := `SELECT COUNT(*) FROM reservations r JOIN parking_slots s ON s.id = r.slot_id` + where
	var count int
	if err := r.db.QueryRowContext(ctx, countQuery, args...).Scan(&count); err != nil {
		return nil, 0, fmt.Errorf("ReservationRepository.FindAll (count): %w", err)
	}

	args = append(args, limit, offset)
	query := reservationSelect + where + fmt.Sprintf(` ORDER BY r.start_time DESC LIMIT $%d OFFSET $%d`, len(args)-1, len(args))
	rows, err := r.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, 0, fmt.Errorf("ReservationRepository.FindAll: %w", err)
	}
	defer rows.Close()

	var reservations []domain.Reservation
	for rows.Next() {
		var res domain.Reservation
		if err := scanReservation(rows, &res); err != nil {
			return nil, 0, fmt.Errorf("ReservationRepository.FindAll (scanning row): %w", err)
		}
		reservations = append(reservations, res)
	}
	if err = rows.Err(); err != nil {
		return nil, 0, fmt.Errorf("ReservationRepository.FindAll (rows error): %w", err)
	}
	return reservations, count, nil
}

// FindCurrentBySlotID picks the active reservation whose interval is nearest
// to now: one in progress wins, otherwise the next upcoming one.
func (r *pgReservationRepository) FindCurrentBySlotID(ctx context.Context, slotID int, now time.Time) (*domain.Reservation, error) {
	res := &domain.Reservation{}
	query := reservationSelect + `
	   WHERE r.slot_id = $1 AND r.status IN ('PENDING', 'CONFIRMED') AND r.end_time > $2
	   ORDER BY r.start_time ASC
	   LIMIT 1`
	err := scanReservation(r.db.QueryRowContext(ctx, query, slotID, now), res)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, repository.ErrNotFound
		}
		return nil, fmt.Errorf("ReservationRepository.FindCurrentBySlotID: %w", err)
	}
	return res, nil
}

func (r *pgReservationRepository) UpdateStatus(ctx context.Context, id int, status domain.ReservationStatus) (*domain.Reservation, error) {
	query := `UPDATE reservations SET status = $1, updated_at = CURRENT_TIMESTAMP WHERE id = $2`
	result, err := r.db.ExecContext(ctx, query, status, id)
	if err != nil {
		return nil, fmt.Errorf("ReservationRepository.UpdateStatus: %w", err)
	}
	rowsAffected, err := result.RowsAffected()
	if err != nil {
		return nil, fmt.Errorf("ReservationRepository.UpdateStatus (checking rows affected): %w", err)
	}
	if rowsAffected == 0 {
		return nil, repository.ErrNotFound
	}
	return r.FindByID(ctx, id)
}

func (r *pgReservationRepository) ExpirePending(ctx context.Context, now time.Time) ([]domain.Reservation, error) {
	return r.sweep(ctx, domain.ReservationPending, domain.ReservationExpired, now)
}

func (r *pgReservationRepository) CompleteConfirmed(ctx context.Context, now time.Time) ([]domain.Reservation, error) {
	return r.sweep(ctx, domain.ReservationConfirmed, domain.ReservationCompleted, now)
}

// sweep applies a time-driven one-way transition to every reservation of the
// given status whose end_time has passed, releases the slots, and returns
// the affected reservations.
func (r *pgReservationRepository) sweep(ctx context.Context, from, to domain.ReservationStatus, now time.Time) ([]domain.Reservation, error) {
	tx, err := r.db.BeginTx(ctx, nil)
	if err != nil {
		return nil, fmt.Errorf("ReservationRepository.sweep (begin): %w", err)
	}
	defer tx.Rollback()

	updateQuery := `UPDATE reservations SET status = $1, updated_at = CURRENT_TIMESTAMP
	                 WHERE status = $2 AND end_time < $3
	                 RETURNING id`
	rows, err := tx.QueryContext(ctx, updateQuery, to, from, now)
	if err != nil {
		return nil, fmt.Errorf("ReservationRepository.sweep (update): %w", err)
	}
	var ids []int
	for rows.Next() {
		var id int
		if err := rows.Scan(&id); err != nil {
			rows.Close()
			return nil, fmt.Errorf("ReservationRepository.sweep (scanning id): %w", err)
		}
		ids = append(ids, id)
	}
	rows.Close()
	if err = rows.Err(); err != nil {
		return nil, fmt.Errorf("ReservationRepository.sweep (rows error): %w", err)
	}
	if len(ids) == 0 {
		return nil, tx.Commit()
	}

	// Release slot flags for slots that no longer carry any active
	// reservation.
	releaseQuery := `UPDATE parking_slots s SET is_reserved = FALSE, is_occupied = FALSE, updated_at = CURRENT_TIMESTAMP
	                  WHERE s.id IN (SELECT slot_id FROM reservations WHERE id = ANY($1))
	                    AND NOT EXISTS (
	                      SELECT 1 FROM reservations a
	                       WHERE a.slot_id = s.id AND a.status IN ('PENDING', 'CONFIRMED'))`
	if _, err = tx.ExecContext(ctx, releaseQuery, intArray(ids)); err != nil {
		return nil, fmt.Errorf("ReservationRepository.sweep (releasing slots): %w", err)
	}

	if err = tx.Commit(); err != nil {
		return nil, fmt.Errorf("ReservationRepository.sweep (commit): %w", err)
	}

	swept := make([]domain.Reservation, 0, len(ids))
	for _, id := range ids {
		res, err := r.FindByID(ctx, id)
		if err != nil {
			return nil, err
		}
		swept = append(swept, *res)
	}
	return swept, nil
}

func (r *pgReservationRepository) CountActive(ctx context.Context) (int, error) {
	var count int
	query := `SELECT COUNT(*) FROM reservations WHERE status IN ('PENDING', 'CONFIRMED')`
	if err := r.db.QueryRowContext(ctx, query).Scan(&count); err != nil {
		return 0, fmt.Errorf("ReservationRepository.CountActive: %w", err)
	}
	return count, nil
}

func (r *pgReservationRepository) CountStartingBetween(ctx context.Context, from, to time.Time) (int, error) {
	var count int
	query := `SELECT COUNT(*) FROM reservations WHERE start_time >= $1 AND start_time < $2`
	if err := r.db.QueryRowContext(ctx, query, from, to).Scan(&count); err != nil {
		return 0, fmt.Errorf("ReservationRepository.CountStartingBetween: %w", err)
	}
	return count, nil
}
