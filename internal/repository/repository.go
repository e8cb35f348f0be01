package repository

import (
	"context"
	"errors"
	"time"

	"github.com/dmarxie/smart-parking/internal/domain"
)

var ErrNotFound = errors.New("record not found")
var ErrDuplicateEntry = errors.New("record already exists")

// ErrSlotConflict is returned when a reservation would overlap an active
// (PENDING or CONFIRMED) reservation on the same slot. The check and the
// insert happen in one transaction, so two concurrent requests for the same
// interval cannot both succeed.
var ErrSlotConflict = errors.New("slot already reserved for the requested period")

type UserRepository interface {
	Create(ctx context.Context, user *domain.User) (*domain.User, error)
	FindByEmail(ctx context.Context, email string) (*domain.User, error)
	FindByID(ctx context.Context, id int) (*domain.User, error)
	Update(ctx context.Context, user *domain.User) (*domain.User, error)
	UpdatePassword(ctx context.Context, id int, passwordHash string) error
	FindAll(ctx context.Context, filter domain.UserFilterDTO, limit, offset int) ([]domain.User, int, error)
}

type LocationRepository interface {
	Create(ctx context.Context, loc *domain.ParkingLocation) (*domain.ParkingLocation, error)
	FindByID(ctx context.Context, id int) (*domain.ParkingLocation, error)
	FindAll(ctx context.Context, filter domain.LocationFilterDTO, limit, offset int) ([]domain.ParkingLocation, int, error)
	Update(ctx context.Context, loc *domain.ParkingLocation) (*domain.ParkingLocation, error)
	Delete(ctx context.Context, id int) error
}

type SlotRepository interface {
	Create(ctx context.Context, slot *domain.ParkingSlot) (*domain.ParkingSlot, error)
	// CreateBatch inserts numbered slots for a location in one statement.
	CreateBatch(ctx context.Context, locationID int, slotNumbers []string) error
	FindByID(ctx context.Context, id int) (*domain.ParkingSlot, error)
	FindAll(ctx context.Context, filter domain.SlotFilterDTO, limit, offset int) ([]domain.ParkingSlot, int, error)
	Update(ctx context.Context, slot *domain.ParkingSlot) (*domain.ParkingSlot, error)
	SetFlags(ctx context.Context, id int, occupied, reserved bool) error
	Delete(ctx context.Context, id int) error
	// DeleteFreeAboveNumber removes unoccupied, unreserved slots whose
	// number sorts above the given one. Used when a location shrinks.
	DeleteFreeAboveNumber(ctx context.Context, locationID int, number string) (int, error)
	CountByLocation(ctx context.Context, locationID int) (int, error)
	CountTotals(ctx context.Context) (total int, occupied int, err error)
}

type ReservationRepository interface {
	// Create checks for overlapping active reservations and inserts inside
	// one serializable unit of work; an overlap yields ErrSlotConflict.
	Create(ctx context.Context, res *domain.Reservation) (*domain.Reservation, error)
	FindByID(ctx context.Context, id int) (*domain.Reservation, error)
	FindAll(ctx context.Context, filter domain.ReservationFilterDTO, limit, offset int) ([]domain.Reservation, int, error)
	// FindCurrentBySlotID returns the active reservation most relevant to
	// the slot at instant now, or ErrNotFound.
	FindCurrentBySlotID(ctx context.Context, slotID int, now time.Time) (*domain.Reservation, error)
	UpdateStatus(ctx context.Context, id int, status domain.ReservationStatus) (*domain.Reservation, error)
	// ExpirePending marks PENDING reservations whose end_time has passed as
	// EXPIRED and returns them.
	ExpirePending(ctx context.Context, now time.Time) ([]domain.Reservation, error)
	// CompleteConfirmed marks CONFIRMED reservations whose end_time has
	// passed as COMPLETED and returns them.
	CompleteConfirmed(ctx context.Context, now time.Time) ([]domain.Reservation, error)
	CountActive(ctx context.Context) (int, error)
	CountStartingBetween(ctx context.Context, from, to time.Time) (int, error)
}
