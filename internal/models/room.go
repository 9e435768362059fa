package models

import (
	"time"

	"github.com/shopspring/decimal"
)

type Room struct {
	ID            int64           `json:"id"`
	Code          string          `json:"room_code"`
	Category      string          `json:"category"`
	PricePerNight decimal.Decimal `json:"price_per_night"`
	Capacity      int             `json:"capacity"`
	Reserved      bool            `json:"reserved"`
	Description   string          `json:"description"`
	IsActive      bool            `json:"is_active"`
	CreatedAt     time.Time       `json:"created_at"`
	UpdatedAt     time.Time       `json:"updated_at"`
}

// RoomInput carries the client-editable room fields. Reserved is derived and
// deliberately absent.
type RoomInput struct {
	Code          string          `json:"room_code"`
	Category      string          `json:"category"`
	PricePerNight decimal.Decimal `json:"price_per_night"`
	Capacity      int             `json:"capacity"`
	Description   string          `json:"description"`
	IsActive      *bool           `json:"is_active"`
}

// Apply copies the input onto room.
func (in RoomInput) Apply(room *Room) {
	room.Code = in.Code
	room.Category = in.Category
	room.PricePerNight = in.PricePerNight
	room.Capacity = in.Capacity
	room.Description = in.Description
	if in.IsActive != nil {
		room.IsActive = *in.IsActive
	}
}

// RoomFilter narrows room listings. Zero values mean "any".
type RoomFilter struct {
	AvailableOnly bool
	ActiveOnly    bool
	Category      string
	MinPrice      *decimal.Decimal
	MaxPrice      *decimal.Decimal
}
