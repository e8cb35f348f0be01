package domain

import "time"

type ParkingSlot struct {
	ID           int       `json:"id"`
	LocationID   int       `json:"location"`
	LocationName string    `json:"location_name,omitempty"`
	SlotNumber   string    `json:"slot_number"`
	IsOccupied   bool      `json:"is_occupied"`
	IsReserved   bool      `json:"is_reserved"`
	CreatedAt    time.Time `json:"created_at"`
	UpdatedAt    time.Time `json:"updated_at"`
}

type ParkingSlotDTO struct {
	LocationID int    `json:"location" binding:"required"`
	SlotNumber string `json:"slot_number" binding:"required,max=10"`
}

type SlotFilterDTO struct {
	LocationID *int    `form:"location"`
	IsOccupied *bool   `form:"is_occupied"`
	IsReserved *bool   `form:"is_reserved"`
	Search     *string `form:"search"`
}

// SlotStatusEvent is pushed to websocket subscribers whenever a slot's
// derived state changes (reservation created, cancelled, expired, completed).
type SlotStatusEvent struct {
	SlotID     int       `json:"slot_id"`
	LocationID int       `json:"location_id"`
	SlotNumber string    `json:"slot_number"`
	Label      string    `json:"label"`
	IsOccupied bool      `json:"is_occupied"`
	IsReserved bool      `json:"is_reserved"`
	Timestamp  time.Time `json:"timestamp"`
}
