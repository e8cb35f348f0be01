package service

import (
	"context"
	"errors"
	"fmt"
	"log"
	"time"

	"github.com/dmarxie/smart-parking/internal/domain"
	"github.com/dmarxie/smart-parking/internal/lifecycle"
	"github.com/dmarxie/smart-parking/internal/repository"

	"github.com/shopspring/decimal"
	"gopkg.in/guregu/null.v4"
)

var ErrInvalidInterval = errors.New("end_time must be after start_time")
var ErrStartInPast = errors.New("start_time must be in the future")
var ErrSlotUnavailable = errors.New("slot is currently occupied")
var ErrNotAllowed = errors.New("not allowed")
var ErrInvalidTransition = errors.New("invalid status transition")
var ErrCancellationNotAllowed = errors.New("this reservation cannot be cancelled")

// SlotBroadcaster pushes slot state changes to live subscribers.
type SlotBroadcaster interface {
	BroadcastSlotUpdate(event domain.SlotStatusEvent)
}

// ReservationView is a reservation plus the evaluator's verdict for the
// requesting viewer. Every surface returns this shape, so status derivation
// happens in exactly one place.
type ReservationView struct {
	domain.Reservation
	Evaluation lifecycle.Evaluation `json:"evaluation"`
}

type ReservationService struct {
	resRepo      repository.ReservationRepository
	slotRepo     repository.SlotRepository
	locationRepo repository.LocationRepository
	userRepo     repository.UserRepository
	evaluator    lifecycle.Evaluator
	notifier     *NotificationService
	broadcaster  SlotBroadcaster
}

func NewReservationService(
	resRepo repository.ReservationRepository,
	slotRepo repository.SlotRepository,
	locationRepo repository.LocationRepository,
	userRepo repository.UserRepository,
	evaluator lifecycle.Evaluator,
	notifier *NotificationService,
	broadcaster SlotBroadcaster,
) *ReservationService {
	return &ReservationService{
		resRepo:      resRepo,
		slotRepo:     slotRepo,
		locationRepo: locationRepo,
		userRepo:     userRepo,
		evaluator:    evaluator,
		notifier:     notifier,
		broadcaster:  broadcaster,
	}
}

// Create places a PENDING reservation for the user. Overlap with an active
// reservation on the same slot surfaces as repository.ErrSlotConflict; the
// caller retries with another slot or interval.
func (s *ReservationService) Create(ctx context.Context, userID int, dto domain.CreateReservationDTO) (*ReservationView, error) {
	if !dto.StartTime.Before(dto.EndTime) {
		return nil, ErrInvalidInterval
	}
	now := time.Now()
	if !dto.StartTime.After(now) {
		return nil, ErrStartInPast
	}

	slot, err := s.slotRepo.FindByID(ctx, dto.SlotID)
	if err != nil {
		return nil, err
	}
	if slot.IsOccupied {
		return nil, ErrSlotUnavailable
	}
	location, err := s.locationRepo.FindByID(ctx, slot.LocationID)
	if err != nil {
		return nil, err
	}
	if !location.IsActive {
		return nil, fmt.Errorf("location %q is not accepting reservations", location.Name)
	}

	res := &domain.Reservation{
		UserID:       userID,
		SlotID:       dto.SlotID,
		StartTime:    dto.StartTime.UTC(),
		EndTime:      dto.EndTime.UTC(),
		VehiclePlate: null.NewString(dto.VehiclePlate, dto.VehiclePlate != ""),
		Status:       domain.ReservationPending,
		EstimatedFee: estimateFee(location.HourlyRate, dto.StartTime, dto.EndTime),
	}
	created, err := s.resRepo.Create(ctx, res)
	if err != nil {
		return nil, err
	}

	if user, err := s.userRepo.FindByID(ctx, userID); err == nil {
		s.notifier.Publish(ctx, user, NotifyReservationCreated, created)
	}
	s.broadcast(created, lifecycle.LabelPending, false, true)

	return s.view(created, now, lifecycle.Viewer{UserID: userID, Role: domain.RoleUser})
}

// List returns the viewer's reservations; admins see everyone's.
func (s *ReservationService) List(ctx context.Context, viewer lifecycle.Viewer, filter domain.ReservationFilterDTO, limit, offset int) (domain.Page[ReservationView], error) {
	if viewer.Role != domain.RoleAdmin {
		filter.UserID = &viewer.UserID
	}
	reservations, count, err := s.resRepo.FindAll(ctx, filter, limit, offset)
	if err != nil {
		return domain.Page[ReservationView]{}, err
	}

	now := time.Now()
	views := make([]ReservationView, 0, len(reservations))
	for i := range reservations {
		view, err := s.view(&reservations[i], now, viewer)
		if err != nil {
			return domain.Page[ReservationView]{}, err
		}
		views = append(views, *view)
	}
	return domain.NewPage(views, count, limit, offset), nil
}

func (s *ReservationService) Get(ctx context.Context, viewer lifecycle.Viewer, id int) (*ReservationView, error) {
	res, err := s.resRepo.FindByID(ctx, id)
	if err != nil {
		return nil, err
	}
	if viewer.Role != domain.RoleAdmin && res.UserID != viewer.UserID {
		return nil, ErrNotAllowed
	}
	return s.view(res, time.Now(), viewer)
}

// SetStatus applies an administrative transition: PENDING→CONFIRMED, or
// PENDING/CONFIRMED→CANCELLED. Everything else is rejected; terminal
// reservations are never mutated.
func (s *ReservationService) SetStatus(ctx context.Context, admin lifecycle.Viewer, id int, target domain.ReservationStatus) (*ReservationView, error) {
	res, err := s.resRepo.FindByID(ctx, id)
	if err != nil {
		return nil, err
	}
	if res.Status.IsTerminal() {
		return nil, fmt.Errorf("%w: reservation %d is already %s", ErrInvalidTransition, id, res.Status)
	}

	var notificationType string
	switch target {
	case domain.ReservationConfirmed:
		if res.Status != domain.ReservationPending {
			return nil, fmt.Errorf("%w: only PENDING reservations can be confirmed", ErrInvalidTransition)
		}
		notificationType = NotifyReservationConfirmed
	case domain.ReservationCancelled:
		notificationType = NotifyReservationDeclined
	case domain.ReservationPending, domain.ReservationCompleted, domain.ReservationExpired:
		return nil, fmt.Errorf("%w: %s is not an administrative transition", ErrInvalidTransition, target)
	default:
		return nil, fmt.Errorf("%w: %q", lifecycle.ErrUnknownStatus, target)
	}

	updated, err := s.resRepo.UpdateStatus(ctx, id, target)
	if err != nil {
		return nil, err
	}

	if target == domain.ReservationCancelled {
		s.releaseSlotIfIdle(ctx, updated.SlotID)
		s.broadcast(updated, lifecycle.LabelAvailable, false, false)
	} else {
		s.broadcast(updated, lifecycle.LabelConfirmed, false, true)
	}
	if user, err := s.userRepo.FindByID(ctx, updated.UserID); err == nil {
		s.notifier.Publish(ctx, user, notificationType, updated)
	}
	return s.view(updated, time.Now(), admin)
}

// Cancel cancels a reservation on behalf of the viewer. Whether the viewer
// may do so is decided by the evaluator, not re-derived here.
func (s *ReservationService) Cancel(ctx context.Context, viewer lifecycle.Viewer, id int) (*ReservationView, error) {
	res, err := s.resRepo.FindByID(ctx, id)
	if err != nil {
		return nil, err
	}
	if viewer.Role != domain.RoleAdmin && res.UserID != viewer.UserID {
		return nil, ErrNotAllowed
	}

	ok, err := s.evaluator.CanCancel(res, time.Now(), viewer)
	if err != nil {
		return nil, err
	}
	if !ok {
		return nil, ErrCancellationNotAllowed
	}

	updated, err := s.resRepo.UpdateStatus(ctx, id, domain.ReservationCancelled)
	if err != nil {
		return nil, err
	}
	s.releaseSlotIfIdle(ctx, updated.SlotID)
	s.broadcast(updated, lifecycle.LabelAvailable, false, false)
	if user, err := s.userRepo.FindByID(ctx, updated.UserID); err == nil {
		s.notifier.Publish(ctx, user, NotifyReservationCancellation, updated)
	}
	return s.view(updated, time.Now(), viewer)
}

// EvaluateSlot derives the slot's state for the viewer at now, pairing the
// slot's flags with its current reservation.
func (s *ReservationService) EvaluateSlot(ctx context.Context, slotID int, viewer lifecycle.Viewer, now time.Time) (*lifecycle.Evaluation, error) {
	slot, err := s.slotRepo.FindByID(ctx, slotID)
	if err != nil {
		return nil, err
	}
	res, err := s.resRepo.FindCurrentBySlotID(ctx, slotID, now)
	if err != nil && !errors.Is(err, repository.ErrNotFound) {
		return nil, err
	}
	eval, err := s.evaluator.Evaluate(res, slot.IsOccupied, now, viewer)
	if err != nil {
		return nil, err
	}
	return &eval, nil
}

// Sweep persists the time-driven transitions (PENDING→EXPIRED,
// CONFIRMED→COMPLETED), releases freed slots, and notifies owners of
// expiries. Returns how many reservations changed.
func (s *ReservationService) Sweep(ctx context.Context, now time.Time) (int, error) {
	expired, err := s.resRepo.ExpirePending(ctx, now)
	if err != nil {
		return 0, err
	}
	completed, err := s.resRepo.CompleteConfirmed(ctx, now)
	if err != nil {
		return len(expired), err
	}

	for i := range expired {
		res := &expired[i]
		if user, err := s.userRepo.FindByID(ctx, res.UserID); err == nil {
			s.notifier.Publish(ctx, user, NotifyReservationExpiry, res)
		}
		s.broadcast(res, lifecycle.LabelAvailable, false, false)
	}
	for i := range completed {
		s.broadcast(&completed[i], lifecycle.LabelAvailable, false, false)
	}
	return len(expired) + len(completed), nil
}

func (s *ReservationService) view(res *domain.Reservation, now time.Time, viewer lifecycle.Viewer) (*ReservationView, error) {
	eval, err := s.evaluator.Evaluate(res, false, now, viewer)
	if err != nil {
		return nil, err
	}
	return &ReservationView{Reservation: *res, Evaluation: eval}, nil
}

// releaseSlotIfIdle clears the slot's flags when no active reservation
// remains on it.
func (s *ReservationService) releaseSlotIfIdle(ctx context.Context, slotID int) {
	_, err := s.resRepo.FindCurrentBySlotID(ctx, slotID, time.Now())
	if err == nil {
		return // another active reservation still claims the slot
	}
	if !errors.Is(err, repository.ErrNotFound) {
		log.Printf("Error checking slot %d for active reservations: %v", slotID, err)
		return
	}
	if err := s.slotRepo.SetFlags(ctx, slotID, false, false); err != nil {
		log.Printf("Error releasing slot %d: %v", slotID, err)
	}
}

func (s *ReservationService) broadcast(res *domain.Reservation, label string, occupied, reserved bool) {
	if s.broadcaster == nil {
		return
	}
	s.broadcaster.BroadcastSlotUpdate(domain.SlotStatusEvent{
		SlotID:     res.SlotID,
		LocationID: res.LocationID,
		SlotNumber: res.SlotNumber,
		Label:      label,
		IsOccupied: occupied,
		IsReserved: reserved,
		Timestamp:  time.Now().UTC(),
	})
}

// estimateFee charges the location's hourly rate for the reserved duration,
// rounded to cents.
func estimateFee(hourlyRate decimal.Decimal, start, end time.Time) decimal.Decimal {
	hours := decimal.NewFromFloat(end.Sub(start).Hours())
	return hourlyRate.Mul(hours).Round(2)
}
