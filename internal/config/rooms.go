package config

import (
	"fmt"
	"strings"

	"guestms/internal/models"

	"github.com/shopspring/decimal"
)

// RoomsFile is the layout of configs/rooms.yaml.
type RoomsFile struct {
	Rooms []RoomEntry `yaml:"rooms"`
}

// RoomEntry keeps the price as text so it parses into an exact decimal.
type RoomEntry struct {
	Code          string `yaml:"room_code"`
	Category      string `yaml:"category"`
	PricePerNight string `yaml:"price_per_night"`
	Capacity      int    `yaml:"capacity"`
	Description   string `yaml:"description"`
	IsActive      *bool  `yaml:"is_active"`
}

// BuildRooms validates the entries and converts them to rooms. Rooms are
// active unless the entry says otherwise.
func (f RoomsFile) BuildRooms() ([]models.Room, error) {
	seen := make(map[string]bool, len(f.Rooms))
	rooms := make([]models.Room, 0, len(f.Rooms))

	for i, e := range f.Rooms {
		code := strings.TrimSpace(e.Code)
		if code == "" {
			return nil, fmt.Errorf("room #%d: room_code is required", i+1)
		}
		if seen[code] {
			return nil, fmt.Errorf("duplicate room_code %s", code)
		}
		seen[code] = true

		category := strings.ToUpper(strings.TrimSpace(e.Category))
		if !models.IsValidCategory(category) {
			return nil, fmt.Errorf("room %s: unknown category %q", code, e.Category)
		}
		if e.Capacity < 1 {
			return nil, fmt.Errorf("room %s: capacity must be at least 1", code)
		}
		price, err := decimal.NewFromString(strings.TrimSpace(e.PricePerNight))
		if err != nil {
			return nil, fmt.Errorf("room %s: invalid price_per_night %q", code, e.PricePerNight)
		}
		if !price.IsPositive() {
			return nil, fmt.Errorf("room %s: price_per_night must be positive", code)
		}

		active := true
		if e.IsActive != nil {
			active = *e.IsActive
		}

		rooms = append(rooms, models.Room{
			Code:          code,
			Category:      category,
			PricePerNight: price,
			Capacity:      e.Capacity,
			Description:   strings.TrimSpace(e.Description),
			IsActive:      active,
		})
	}
	return rooms, nil
}
