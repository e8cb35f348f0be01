package domain

import (
	"time"

	"github.com/shopspring/decimal"
	"gopkg.in/guregu/null.v4"
)

type ReservationStatus string

const (
	ReservationPending   ReservationStatus = "PENDING"
	ReservationConfirmed ReservationStatus = "CONFIRMED"
	ReservationCancelled ReservationStatus = "CANCELLED"
	ReservationCompleted ReservationStatus = "COMPLETED"
	ReservationExpired   ReservationStatus = "EXPIRED"
)

// IsTerminal reports whether the status admits no further transitions.
func (s ReservationStatus) IsTerminal() bool {
	switch s {
	case ReservationCancelled, ReservationCompleted, ReservationExpired:
		return true
	}
	return false
}

func (s ReservationStatus) IsActive() bool {
	return s == ReservationPending || s == ReservationConfirmed
}

type Reservation struct {
	ID           int               `json:"id"`
	UserID       int               `json:"user"`
	UserEmail    string            `json:"user_email,omitempty"`
	SlotID       int               `json:"parking_slot"`
	SlotNumber   string            `json:"slot_number,omitempty"`
	LocationID   int               `json:"location_id,omitempty"`
	LocationName string            `json:"location_name,omitempty"`
	StartTime    time.Time         `json:"start_time"`
	EndTime      time.Time         `json:"end_time"`
	VehiclePlate null.String       `json:"vehicle_plate"`
	Status       ReservationStatus `json:"status"`
	EstimatedFee decimal.Decimal   `json:"estimated_fee"`
	CreatedAt    time.Time         `json:"created_at"`
	UpdatedAt    time.Time         `json:"updated_at"`
}

type CreateReservationDTO struct {
	SlotID       int       `json:"parking_slot" binding:"required"`
	StartTime    time.Time `json:"start_time" binding:"required"`
	EndTime      time.Time `json:"end_time" binding:"required"`
	VehiclePlate string    `json:"vehicle_plate,omitempty" binding:"omitempty,max=20,alphanum"`
}

type UpdateReservationStatusDTO struct {
	Status string `json:"status" binding:"required"`
}

type ReservationFilterDTO struct {
	Status     *string `form:"status"`
	LocationID *int    `form:"location"`
	UserID     *int    `form:"-"`
	Search     *string `form:"search"`
}
