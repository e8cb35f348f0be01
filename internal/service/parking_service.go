package service

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/dmarxie/smart-parking/internal/domain"
	"github.com/dmarxie/smart-parking/internal/repository"

	"github.com/shopspring/decimal"
)

// ParkingService manages locations, their slots, and the dashboard
// aggregates.
type ParkingService struct {
	locationRepo repository.LocationRepository
	slotRepo     repository.SlotRepository
	resRepo      repository.ReservationRepository
}

func NewParkingService(
	locationRepo repository.LocationRepository,
	slotRepo repository.SlotRepository,
	resRepo repository.ReservationRepository,
) *ParkingService {
	return &ParkingService{
		locationRepo: locationRepo,
		slotRepo:     slotRepo,
		resRepo:      resRepo,
	}
}

// --- Locations ---

// CreateLocation creates a location and provisions its numbered slots
// ("001" .. total_slots).
func (s *ParkingService) CreateLocation(ctx context.Context, dto domain.ParkingLocationDTO) (*domain.ParkingLocation, error) {
	rate := decimal.Zero
	if dto.HourlyRate != "" {
		var err error
		if rate, err = decimal.NewFromString(dto.HourlyRate); err != nil {
			return nil, fmt.Errorf("invalid hourly rate %q: %w", dto.HourlyRate, err)
		}
	}
	isActive := true
	if dto.IsActive != nil {
		isActive = *dto.IsActive
	}

	loc := &domain.ParkingLocation{
		Name:       dto.Name,
		Address:    dto.Address,
		TotalSlots: dto.TotalSlots,
		HourlyRate: rate,
		IsActive:   isActive,
	}
	created, err := s.locationRepo.Create(ctx, loc)
	if err != nil {
		return nil, err
	}

	if err = s.slotRepo.CreateBatch(ctx, created.ID, slotNumbers(1, created.TotalSlots)); err != nil {
		return nil, fmt.Errorf("provisioning slots for location %d: %w", created.ID, err)
	}
	return created, nil
}

func (s *ParkingService) GetLocationByID(ctx context.Context, id int) (*domain.ParkingLocation, error) {
	return s.locationRepo.FindByID(ctx, id)
}

func (s *ParkingService) ListLocations(ctx context.Context, filter domain.LocationFilterDTO, limit, offset int) (domain.Page[domain.ParkingLocation], error) {
	locations, count, err := s.locationRepo.FindAll(ctx, filter, limit, offset)
	if err != nil {
		return domain.Page[domain.ParkingLocation]{}, err
	}
	return domain.NewPage(locations, count, limit, offset), nil
}

// UpdateLocation updates a location and reconciles its slot inventory when
// total_slots changed: growth appends numbered slots, shrinkage removes
// trailing slots that are neither occupied nor reserved.
func (s *ParkingService) UpdateLocation(ctx context.Context, id int, dto domain.ParkingLocationDTO) (*domain.ParkingLocation, error) {
	loc, err := s.locationRepo.FindByID(ctx, id)
	if err != nil {
		return nil, err
	}

	loc.Name = dto.Name
	loc.Address = dto.Address
	if dto.HourlyRate != "" {
		if loc.HourlyRate, err = decimal.NewFromString(dto.HourlyRate); err != nil {
			return nil, fmt.Errorf("invalid hourly rate %q: %w", dto.HourlyRate, err)
		}
	}
	if dto.IsActive != nil {
		loc.IsActive = *dto.IsActive
	}

	currentSlots, err := s.slotRepo.CountByLocation(ctx, id)
	if err != nil {
		return nil, err
	}
	loc.TotalSlots = dto.TotalSlots

	updated, err := s.locationRepo.Update(ctx, loc)
	if err != nil {
		return nil, err
	}

	if dto.TotalSlots > currentSlots {
		if err = s.slotRepo.CreateBatch(ctx, id, slotNumbers(currentSlots+1, dto.TotalSlots)); err != nil {
			return nil, fmt.Errorf("growing slot inventory for location %d: %w", id, err)
		}
	} else if dto.TotalSlots < currentSlots {
		if _, err = s.slotRepo.DeleteFreeAboveNumber(ctx, id, fmt.Sprintf("%03d", dto.TotalSlots)); err != nil {
			return nil, fmt.Errorf("shrinking slot inventory for location %d: %w", id, err)
		}
	}
	return updated, nil
}

func (s *ParkingService) DeleteLocation(ctx context.Context, id int) error {
	count, err := s.slotRepo.CountByLocation(ctx, id)
	if err != nil {
		return err
	}
	if count > 0 {
		occupied := true
		reserved := true
		busy, _, err := s.slotRepo.FindAll(ctx, domain.SlotFilterDTO{LocationID: &id, IsOccupied: &occupied}, 1, 0)
		if err != nil {
			return err
		}
		if len(busy) == 0 {
			busy, _, err = s.slotRepo.FindAll(ctx, domain.SlotFilterDTO{LocationID: &id, IsReserved: &reserved}, 1, 0)
			if err != nil {
				return err
			}
		}
		if len(busy) > 0 {
			return fmt.Errorf("location %d still has occupied or reserved slots", id)
		}
	}
	return s.locationRepo.Delete(ctx, id)
}

// --- Slots ---

func (s *ParkingService) CreateSlot(ctx context.Context, dto domain.ParkingSlotDTO) (*domain.ParkingSlot, error) {
	loc, err := s.locationRepo.FindByID(ctx, dto.LocationID)
	if err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			return nil, fmt.Errorf("location %d does not exist", dto.LocationID)
		}
		return nil, fmt.Errorf("checking location: %w", err)
	}

	if loc.TotalSlots > 0 {
		current, err := s.slotRepo.CountByLocation(ctx, dto.LocationID)
		if err != nil {
			return nil, err
		}
		if current >= loc.TotalSlots {
			return nil, fmt.Errorf("location %d already has its maximum of %d slots", dto.LocationID, loc.TotalSlots)
		}
	}

	slot := &domain.ParkingSlot{
		LocationID: dto.LocationID,
		SlotNumber: dto.SlotNumber,
	}
	return s.slotRepo.Create(ctx, slot)
}

func (s *ParkingService) GetSlotByID(ctx context.Context, id int) (*domain.ParkingSlot, error) {
	return s.slotRepo.FindByID(ctx, id)
}

func (s *ParkingService) ListSlots(ctx context.Context, filter domain.SlotFilterDTO, limit, offset int) (domain.Page[domain.ParkingSlot], error) {
	slots, count, err := s.slotRepo.FindAll(ctx, filter, limit, offset)
	if err != nil {
		return domain.Page[domain.ParkingSlot]{}, err
	}
	return domain.NewPage(slots, count, limit, offset), nil
}

func (s *ParkingService) UpdateSlot(ctx context.Context, id int, dto domain.ParkingSlotDTO) (*domain.ParkingSlot, error) {
	slot, err := s.slotRepo.FindByID(ctx, id)
	if err != nil {
		return nil, err
	}
	if dto.LocationID != 0 && dto.LocationID != slot.LocationID {
		if _, err := s.locationRepo.FindByID(ctx, dto.LocationID); err != nil {
			if errors.Is(err, repository.ErrNotFound) {
				return nil, fmt.Errorf("location %d does not exist", dto.LocationID)
			}
			return nil, err
		}
		slot.LocationID = dto.LocationID
	}
	if dto.SlotNumber != "" {
		slot.SlotNumber = dto.SlotNumber
	}
	return s.slotRepo.Update(ctx, slot)
}

func (s *ParkingService) DeleteSlot(ctx context.Context, id int) error {
	slot, err := s.slotRepo.FindByID(ctx, id)
	if err != nil {
		return err
	}
	if slot.IsOccupied || slot.IsReserved {
		return fmt.Errorf("slot %d is occupied or reserved and cannot be deleted", id)
	}
	return s.slotRepo.Delete(ctx, id)
}

// --- Dashboard ---

type DashboardStats struct {
	TodayReservations  int `json:"today_reservations"`
	ActiveReservations int `json:"active_reservations"`
	TotalSlots         int `json:"total_slots"`
	OccupiedSlots      int `json:"occupied_slots"`
	AvailableSlots     int `json:"available_slots"`
}

func (s *ParkingService) GetDashboardStats(ctx context.Context, now time.Time) (*DashboardStats, error) {
	dayStart := time.Date(now.Year(), now.Month(), now.Day(), 0, 0, 0, 0, now.Location())
	dayEnd := dayStart.Add(24 * time.Hour)

	today, err := s.resRepo.CountStartingBetween(ctx, dayStart, dayEnd)
	if err != nil {
		return nil, err
	}
	active, err := s.resRepo.CountActive(ctx)
	if err != nil {
		return nil, err
	}
	total, occupied, err := s.slotRepo.CountTotals(ctx)
	if err != nil {
		return nil, err
	}
	return &DashboardStats{
		TodayReservations:  today,
		ActiveReservations: active,
		TotalSlots:         total,
		OccupiedSlots:      occupied,
		AvailableSlots:     total - occupied,
	}, nil
}

// slotNumbers renders the inclusive range [from, to] as zero-padded labels.
func slotNumbers(from, to int) []string {
	if to < from {
		return nil
	}
	numbers := make([]string, 0, to-from+1)
	for i := from; i <= to; i++ {
		numbers = append(numbers, fmt.Sprintf("%03d", i))
	}
	return numbers
}
