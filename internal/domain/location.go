package domain

import (
	"time"

	"github.com/shopspring/decimal"
)

type ParkingLocation struct {
	ID         int    `json:"id"`
	Name       string `json:"name"`
	Address    string `json:"address"`
	TotalSlots int    `json:"total_slots"`
	// AvailableSlots is derived on read: total minus slots currently
	// occupied or reserved. Never stored.
	AvailableSlots int             `json:"available_slots"`
	HourlyRate     decimal.Decimal `json:"hourly_rate"`
	IsActive       bool            `json:"is_active"`
	CreatedAt      time.Time       `json:"created_at"`
	UpdatedAt      time.Time       `json:"updated_at"`
}

type ParkingLocationDTO struct {
	Name       string `json:"name" binding:"required,max=100"`
	Address    string `json:"address" binding:"required"`
	TotalSlots int    `json:"total_slots" binding:"required,min=1"`
	HourlyRate string `json:"hourly_rate,omitempty"`
	IsActive   *bool  `json:"is_active"`
}

type LocationFilterDTO struct {
	IsActive *bool   `form:"is_active"`
	Search   *string `form:"search"`
}
