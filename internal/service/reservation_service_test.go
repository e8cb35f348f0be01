package service

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/dmarxie/smart-parking/internal/domain"
	"github.com/dmarxie/smart-parking/internal/lifecycle"
	"github.com/dmarxie/smart-parking/internal/repository"

	"github.com/shopspring/decimal"
)

type fakeSlotRepo struct {
	slots map[int]*domain.ParkingSlot
	flags map[int][2]bool
}

func newFakeSlotRepo(slots ...*domain.ParkingSlot) *fakeSlotRepo {
	r := &fakeSlotRepo{slots: map[int]*domain.ParkingSlot{}, flags: map[int][2]bool{}}
	for _, s := range slots {
		r.slots[s.ID] = s
	}
	return r
}

func (r *fakeSlotRepo) Create(_ context.Context, slot *domain.ParkingSlot) (*domain.ParkingSlot, error) {
	return slot, nil
}

func (r *fakeSlotRepo) CreateBatch(_ context.Context, _ int, _ []string) error { return nil }

func (r *fakeSlotRepo) FindByID(_ context.Context, id int) (*domain.ParkingSlot, error) {
	s, ok := r.slots[id]
	if !ok {
		return nil, repository.ErrNotFound
	}
	out := *s
	return &out, nil
}

func (r *fakeSlotRepo) FindAll(_ context.Context, _ domain.SlotFilterDTO, _, _ int) ([]domain.ParkingSlot, int, error) {
	return nil, 0, nil
}

func (r *fakeSlotRepo) Update(_ context.Context, slot *domain.ParkingSlot) (*domain.ParkingSlot, error) {
	return slot, nil
}

func (r *fakeSlotRepo) SetFlags(_ context.Context, id int, occupied, reserved bool) error {
	r.flags[id] = [2]bool{occupied, reserved}
	if s, ok := r.slots[id]; ok {
		s.IsOccupied = occupied
		s.IsReserved = reserved
	}
	return nil
}

func (r *fakeSlotRepo) Delete(_ context.Context, _ int) error { return nil }

func (r *fakeSlotRepo) DeleteFreeAboveNumber(_ context.Context, _ int, _ string) (int, error) {
	return 0, nil
}

func (r *fakeSlotRepo) CountByLocation(_ context.Context, _ int) (int, error) { return 0, nil }

func (r *fakeSlotRepo) CountTotals(_ context.Context) (int, int, error) { return 0, 0, nil }

type fakeLocationRepo struct {
	locations map[int]*domain.ParkingLocation
}

func newFakeLocationRepo(locs ...*domain.ParkingLocation) *fakeLocationRepo {
	r := &fakeLocationRepo{locations: map[int]*domain.ParkingLocation{}}
	for _, l := range locs {
		r.locations[l.ID] = l
	}
	return r
}

func (r *fakeLocationRepo) Create(_ context.Context, loc *domain.ParkingLocation) (*domain.ParkingLocation, error) {
	return loc, nil
}

func (r *fakeLocationRepo) FindByID(_ context.Context, id int) (*domain.ParkingLocation, error) {
	l, ok := r.locations[id]
	if !ok {
		return nil, repository.ErrNotFound
	}
	out := *l
	return &out, nil
}

func (r *fakeLocationRepo) FindAll(_ context.Context, _ domain.LocationFilterDTO, _, _ int) ([]domain.ParkingLocation, int, error) {
	return nil, 0, nil
}

func (r *fakeLocationRepo) Update(_ context.Context, loc *domain.ParkingLocation) (*domain.ParkingLocation, error) {
	return loc, nil
}

func (r *fakeLocationRepo) Delete(_ context.Context, _ int) error { return nil }

type fakeReservationRepo struct {
	reservations map[int]*domain.Reservation
	nextID       int
	conflict     bool
}

func newFakeReservationRepo(reservations ...*domain.Reservation) *fakeReservationRepo {
	r := &fakeReservationRepo{reservations: map[int]*domain.Reservation{}, nextID: 1}
	for _, res := range reservations {
		r.reservations[res.ID] = res
		if res.ID >= r.nextID {
			r.nextID = res.ID + 1
		}
	}
	return r
}

func (r *fakeReservationRepo) Create(_ context.Context, res *domain.Reservation) (*domain.Reservation, error) {
	if r.conflict {
		return nil, repository.ErrSlotConflict
	}
	stored := *res
	stored.ID = r.nextID
	r.nextID++
	r.reservations[stored.ID] = &stored
	out := stored
	return &out, nil
}

func (r *fakeReservationRepo) FindByID(_ context.Context, id int) (*domain.Reservation, error) {
	res, ok := r.reservations[id]
	if !ok {
		return nil, repository.ErrNotFound
	}
	out := *res
	return &out, nil
}

func (r *fakeReservationRepo) FindAll(_ context.Context, filter domain.ReservationFilterDTO, _, _ int) ([]domain.Reservation, int, error) {
	var out []domain.Reservation
	for _, res := range r.reservations {
		if filter.UserID != nil && res.UserID != *filter.UserID {
			continue
		}
		out = append(out, *res)
	}
	return out, len(out), nil
}

func (r *fakeReservationRepo) FindCurrentBySlotID(_ context.Context, slotID int, now time.Time) (*domain.Reservation, error) {
	for _, res := range r.reservations {
		if res.SlotID == slotID && res.Status.IsActive() && res.EndTime.After(now) {
			out := *res
			return &out, nil
		}
	}
	return nil, repository.ErrNotFound
}

func (r *fakeReservationRepo) UpdateStatus(_ context.Context, id int, status domain.ReservationStatus) (*domain.Reservation, error) {
	res, ok := r.reservations[id]
	if !ok {
		return nil, repository.ErrNotFound
	}
	res.Status = status
	out := *res
	return &out, nil
}

func (r *fakeReservationRepo) ExpirePending(_ context.Context, now time.Time) ([]domain.Reservation, error) {
	var out []domain.Reservation
	for _, res := range r.reservations {
		if res.Status == domain.ReservationPending && now.After(res.EndTime) {
			res.Status = domain.ReservationExpired
			out = append(out, *res)
		}
	}
	return out, nil
}

func (r *fakeReservationRepo) CompleteConfirmed(_ context.Context, now time.Time) ([]domain.Reservation, error) {
	var out []domain.Reservation
	for _, res := range r.reservations {
		if res.Status == domain.ReservationConfirmed && now.After(res.EndTime) {
			res.Status = domain.ReservationCompleted
			out = append(out, *res)
		}
	}
	return out, nil
}

func (r *fakeReservationRepo) CountActive(_ context.Context) (int, error) { return 0, nil }

func (r *fakeReservationRepo) CountStartingBetween(_ context.Context, _, _ time.Time) (int, error) {
	return 0, nil
}

type recordingBroadcaster struct {
	events []domain.SlotStatusEvent
}

func (b *recordingBroadcaster) BroadcastSlotUpdate(event domain.SlotStatusEvent) {
	b.events = append(b.events, event)
}

type reservationFixture struct {
	svc         *ReservationService
	resRepo     *fakeReservationRepo
	slotRepo    *fakeSlotRepo
	broadcaster *recordingBroadcaster
}

func newReservationFixture(reservations ...*domain.Reservation) *reservationFixture {
	slotRepo := newFakeSlotRepo(&domain.ParkingSlot{ID: 7, LocationID: 3, SlotNumber: "007"})
	locationRepo := newFakeLocationRepo(&domain.ParkingLocation{
		ID:         3,
		Name:       "Central Garage",
		HourlyRate: decimal.RequireFromString("2.50"),
		IsActive:   true,
	})
	userRepo := newFakeUserRepo()
	userRepo.Create(context.Background(), &domain.User{
		Email:                  "owner@example.com",
		NotificationPreference: domain.NotifyAll,
	})

	resRepo := newFakeReservationRepo(reservations...)
	broadcaster := &recordingBroadcaster{}
	svc := NewReservationService(resRepo, slotRepo, locationRepo, userRepo,
		lifecycle.Evaluator{CancellationWindow: time.Hour},
		NewNotificationService(nil, ""), broadcaster)
	return &reservationFixture{svc: svc, resRepo: resRepo, slotRepo: slotRepo, broadcaster: broadcaster}
}

func TestCreateReservation(t *testing.T) {
	f := newReservationFixture()
	ctx := context.Background()
	start := time.Now().Add(2 * time.Hour)

	view, err := f.svc.Create(ctx, 1, domain.CreateReservationDTO{
		SlotID:    7,
		StartTime: start,
		EndTime:   start.Add(3 * time.Hour),
	})
	if err != nil {
		t.Fatalf("Create: %v", err)
	}
	if view.Status != domain.ReservationPending {
		t.Errorf("status = %q, want PENDING", view.Status)
	}
	// 3 hours at 2.50/h
	if want := decimal.RequireFromString("7.50"); !view.EstimatedFee.Equal(want) {
		t.Errorf("estimated fee = %s, want %s", view.EstimatedFee, want)
	}
	if view.Evaluation.Label != lifecycle.LabelPending {
		t.Errorf("evaluation label = %q, want PENDING", view.Evaluation.Label)
	}
	if len(f.broadcaster.events) != 1 {
		t.Fatalf("broadcast events = %d, want 1", len(f.broadcaster.events))
	}
	if got := f.broadcaster.events[0]; got.SlotID != 7 || !got.IsReserved {
		t.Errorf("broadcast event = %+v, want slot 7 reserved", got)
	}
}

func TestCreateReservationValidation(t *testing.T) {
	f := newReservationFixture()
	ctx := context.Background()
	start := time.Now().Add(2 * time.Hour)

	_, err := f.svc.Create(ctx, 1, domain.CreateReservationDTO{SlotID: 7, StartTime: start, EndTime: start})
	if !errors.Is(err, ErrInvalidInterval) {
		t.Errorf("empty interval error = %v, want ErrInvalidInterval", err)
	}

	past := time.Now().Add(-time.Hour)
	_, err = f.svc.Create(ctx, 1, domain.CreateReservationDTO{SlotID: 7, StartTime: past, EndTime: past.Add(2 * time.Hour)})
	if !errors.Is(err, ErrStartInPast) {
		t.Errorf("past start error = %v, want ErrStartInPast", err)
	}

	_, err = f.svc.Create(ctx, 1, domain.CreateReservationDTO{SlotID: 99, StartTime: start, EndTime: start.Add(time.Hour)})
	if !errors.Is(err, repository.ErrNotFound) {
		t.Errorf("unknown slot error = %v, want ErrNotFound", err)
	}
}

func TestCreateReservationConflict(t *testing.T) {
	f := newReservationFixture()
	f.resRepo.conflict = true
	start := time.Now().Add(2 * time.Hour)

	_, err := f.svc.Create(context.Background(), 1, domain.CreateReservationDTO{
		SlotID:    7,
		StartTime: start,
		EndTime:   start.Add(time.Hour),
	})
	if !errors.Is(err, repository.ErrSlotConflict) {
		t.Fatalf("overlap error = %v, want ErrSlotConflict", err)
	}
}

func TestListScopesToOwner(t *testing.T) {
	now := time.Now()
	f := newReservationFixture(
		&domain.Reservation{ID: 1, UserID: 1, SlotID: 7, Status: domain.ReservationPending, StartTime: now.Add(time.Hour), EndTime: now.Add(2 * time.Hour)},
		&domain.Reservation{ID: 2, UserID: 2, SlotID: 7, Status: domain.ReservationPending, StartTime: now.Add(3 * time.Hour), EndTime: now.Add(4 * time.Hour)},
	)
	ctx := context.Background()

	page, err := f.svc.List(ctx, lifecycle.Viewer{UserID: 1, Role: domain.RoleUser}, domain.ReservationFilterDTO{}, 20, 0)
	if err != nil {
		t.Fatalf("List: %v", err)
	}
	if page.Count != 1 || len(page.Results) != 1 || page.Results[0].UserID != 1 {
		t.Errorf("owner list = %+v, want only reservation 1", page.Results)
	}

	page, err = f.svc.List(ctx, lifecycle.Viewer{UserID: 9, Role: domain.RoleAdmin}, domain.ReservationFilterDTO{}, 20, 0)
	if err != nil {
		t.Fatalf("List as admin: %v", err)
	}
	if page.Count != 2 {
		t.Errorf("admin list count = %d, want 2", page.Count)
	}
}

func TestGetForbiddenForStranger(t *testing.T) {
	now := time.Now()
	f := newReservationFixture(
		&domain.Reservation{ID: 1, UserID: 1, SlotID: 7, Status: domain.ReservationPending, StartTime: now.Add(time.Hour), EndTime: now.Add(2 * time.Hour)},
	)
	ctx := context.Background()

	if _, err := f.svc.Get(ctx, lifecycle.Viewer{UserID: 2, Role: domain.RoleUser}, 1); !errors.Is(err, ErrNotAllowed) {
		t.Errorf("stranger Get error = %v, want ErrNotAllowed", err)
	}
	if _, err := f.svc.Get(ctx, lifecycle.Viewer{UserID: 2, Role: domain.RoleAdmin}, 1); err != nil {
		t.Errorf("admin Get error = %v", err)
	}
}

func TestSetStatusTransitions(t *testing.T) {
	now := time.Now()
	admin := lifecycle.Viewer{UserID: 9, Role: domain.RoleAdmin}
	ctx := context.Background()

	f := newReservationFixture(
		&domain.Reservation{ID: 1, UserID: 1, SlotID: 7, Status: domain.ReservationPending, StartTime: now.Add(time.Hour), EndTime: now.Add(2 * time.Hour)},
	)
	view, err := f.svc.SetStatus(ctx, admin, 1, domain.ReservationConfirmed)
	if err != nil {
		t.Fatalf("confirm: %v", err)
	}
	if view.Status != domain.ReservationConfirmed {
		t.Errorf("status after confirm = %q", view.Status)
	}

	// Confirming twice is not a transition.
	if _, err := f.svc.SetStatus(ctx, admin, 1, domain.ReservationConfirmed); !errors.Is(err, ErrInvalidTransition) {
		t.Errorf("re-confirm error = %v, want ErrInvalidTransition", err)
	}

	// Admin decline of a confirmed reservation.
	view, err = f.svc.SetStatus(ctx, admin, 1, domain.ReservationCancelled)
	if err != nil {
		t.Fatalf("decline: %v", err)
	}
	if view.Status != domain.ReservationCancelled {
		t.Errorf("status after decline = %q", view.Status)
	}

	// Terminal reservations never mutate again.
	if _, err := f.svc.SetStatus(ctx, admin, 1, domain.ReservationConfirmed); !errors.Is(err, ErrInvalidTransition) {
		t.Errorf("mutating terminal error = %v, want ErrInvalidTransition", err)
	}

	f = newReservationFixture(
		&domain.Reservation{ID: 1, UserID: 1, SlotID: 7, Status: domain.ReservationPending, StartTime: now.Add(time.Hour), EndTime: now.Add(2 * time.Hour)},
	)
	if _, err := f.svc.SetStatus(ctx, admin, 1, domain.ReservationStatus("ON_HOLD")); !errors.Is(err, lifecycle.ErrUnknownStatus) {
		t.Errorf("unknown status error = %v, want ErrUnknownStatus", err)
	}
	if _, err := f.svc.SetStatus(ctx, admin, 1, domain.ReservationExpired); !errors.Is(err, ErrInvalidTransition) {
		t.Errorf("EXPIRED via admin error = %v, want ErrInvalidTransition", err)
	}
}

func TestCancelPolicy(t *testing.T) {
	now := time.Now()
	owner := lifecycle.Viewer{UserID: 1, Role: domain.RoleUser}
	ctx := context.Background()

	// Owner cancels a pending reservation.
	f := newReservationFixture(
		&domain.Reservation{ID: 1, UserID: 1, SlotID: 7, Status: domain.ReservationPending, StartTime: now.Add(2 * time.Hour), EndTime: now.Add(4 * time.Hour)},
	)
	view, err := f.svc.Cancel(ctx, owner, 1)
	if err != nil {
		t.Fatalf("Cancel: %v", err)
	}
	if view.Status != domain.ReservationCancelled {
		t.Errorf("status after cancel = %q", view.Status)
	}
	// The slot is released once nothing active remains on it.
	if flags, ok := f.slotRepo.flags[7]; !ok || flags != [2]bool{false, false} {
		t.Errorf("slot flags after cancel = %v, want released", flags)
	}

	// A stranger may not cancel.
	f = newReservationFixture(
		&domain.Reservation{ID: 1, UserID: 1, SlotID: 7, Status: domain.ReservationPending, StartTime: now.Add(2 * time.Hour), EndTime: now.Add(4 * time.Hour)},
	)
	if _, err := f.svc.Cancel(ctx, lifecycle.Viewer{UserID: 5, Role: domain.RoleUser}, 1); !errors.Is(err, ErrNotAllowed) {
		t.Errorf("stranger cancel error = %v, want ErrNotAllowed", err)
	}

	// Confirmed and inside the cancellation window: too late.
	f = newReservationFixture(
		&domain.Reservation{ID: 1, UserID: 1, SlotID: 7, Status: domain.ReservationConfirmed, StartTime: now.Add(30 * time.Minute), EndTime: now.Add(4 * time.Hour)},
	)
	if _, err := f.svc.Cancel(ctx, owner, 1); !errors.Is(err, ErrCancellationNotAllowed) {
		t.Errorf("late cancel error = %v, want ErrCancellationNotAllowed", err)
	}
}

func TestSweep(t *testing.T) {
	now := time.Now()
	f := newReservationFixture(
		&domain.Reservation{ID: 1, UserID: 1, SlotID: 7, Status: domain.ReservationPending, StartTime: now.Add(-3 * time.Hour), EndTime: now.Add(-time.Hour)},
		&domain.Reservation{ID: 2, UserID: 1, SlotID: 7, Status: domain.ReservationConfirmed, StartTime: now.Add(-5 * time.Hour), EndTime: now.Add(-2 * time.Hour)},
		&domain.Reservation{ID: 3, UserID: 1, SlotID: 7, Status: domain.ReservationPending, StartTime: now.Add(time.Hour), EndTime: now.Add(2 * time.Hour)},
	)

	count, err := f.svc.Sweep(context.Background(), now)
	if err != nil {
		t.Fatalf("Sweep: %v", err)
	}
	if count != 2 {
		t.Errorf("swept = %d, want 2", count)
	}

	res, _ := f.resRepo.FindByID(context.Background(), 1)
	if res.Status != domain.ReservationExpired {
		t.Errorf("reservation 1 status = %q, want EXPIRED", res.Status)
	}
	res, _ = f.resRepo.FindByID(context.Background(), 2)
	if res.Status != domain.ReservationCompleted {
		t.Errorf("reservation 2 status = %q, want COMPLETED", res.Status)
	}
	res, _ = f.resRepo.FindByID(context.Background(), 3)
	if res.Status != domain.ReservationPending {
		t.Errorf("reservation 3 status = %q, want untouched PENDING", res.Status)
	}
	if len(f.broadcaster.events) != 2 {
		t.Errorf("broadcast events = %d, want 2", len(f.broadcaster.events))
	}
}

func TestEvaluateSlot(t *testing.T) {
	now := time.Now()
	f := newReservationFixture(
		&domain.Reservation{ID: 1, UserID: 1, SlotID: 7, Status: domain.ReservationConfirmed, StartTime: now.Add(-time.Hour), EndTime: now.Add(time.Hour)},
	)
	ctx := context.Background()

	eval, err := f.svc.EvaluateSlot(ctx, 7, lifecycle.Viewer{UserID: 2, Role: domain.RoleUser}, now)
	if err != nil {
		t.Fatalf("EvaluateSlot: %v", err)
	}
	if eval.Label != lifecycle.LabelOccupied {
		t.Errorf("in-progress slot label = %q, want OCCUPIED", eval.Label)
	}
	if len(eval.Actions) != 0 {
		t.Errorf("in-progress slot actions = %v, want none", eval.Actions)
	}

	// No reservation at all: free slot.
	f = newReservationFixture()
	eval, err = f.svc.EvaluateSlot(ctx, 7, lifecycle.Viewer{UserID: 2, Role: domain.RoleUser}, now)
	if err != nil {
		t.Fatalf("EvaluateSlot(empty): %v", err)
	}
	if eval.Label != lifecycle.LabelAvailable {
		t.Errorf("empty slot label = %q, want AVAILABLE", eval.Label)
	}
}
