package config

import (
	"strings"
	"testing"

	"guestms/internal/models"
)

func TestBuildRooms(t *testing.T) {
	inactive := false
	f := RoomsFile{Rooms: []RoomEntry{
		{Code: " 101 ", Category: "g", PricePerNight: "100.50", Capacity: 2},
		{Code: "PH", Category: "S", PricePerNight: "900", Capacity: 4, IsActive: &inactive},
	}}

	rooms, err := f.BuildRooms()
	if err != nil {
		t.Fatalf("BuildRooms: %v", err)
	}
	if len(rooms) != 2 {
		t.Fatalf("expected 2 rooms, got %d", len(rooms))
	}
	if rooms[0].Code != "101" || rooms[0].Category != models.CategoryGeneral || !rooms[0].IsActive {
		t.Errorf("unexpected first room: %+v", rooms[0])
	}
	if rooms[0].PricePerNight.String() != "100.5" {
		t.Errorf("expected price 100.5, got %s", rooms[0].PricePerNight)
	}
	if rooms[1].IsActive {
		t.Errorf("expected PH to be inactive")
	}
}

func TestBuildRoomsErrors(t *testing.T) {
	tests := []struct {
		name  string
		entry RoomEntry
		want  string
	}{
		{"missing code", RoomEntry{Category: "G", PricePerNight: "1", Capacity: 1}, "room_code is required"},
		{"bad category", RoomEntry{Code: "1", Category: "X", PricePerNight: "1", Capacity: 1}, "unknown category"},
		{"zero capacity", RoomEntry{Code: "1", Category: "G", PricePerNight: "1"}, "capacity"},
		{"bad price", RoomEntry{Code: "1", Category: "G", PricePerNight: "abc", Capacity: 1}, "invalid price_per_night"},
		{"negative price", RoomEntry{Code: "1", Category: "G", PricePerNight: "-5", Capacity: 1}, "must be positive"},
		{"zero price", RoomEntry{Code: "1", Category: "G", PricePerNight: "0.00", Capacity: 1}, "must be positive"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := RoomsFile{Rooms: []RoomEntry{tt.entry}}.BuildRooms()
			if err == nil || !strings.Contains(err.Error(), tt.want) {
				t.Fatalf("expected error containing %q, got %v", tt.want, err)
			}
		})
	}

	dup := RoomsFile{Rooms: []RoomEntry{
		{Code: "1", Category: "G", PricePerNight: "1", Capacity: 1},
		{Code: "1", Category: "G", PricePerNight: "1", Capacity: 1},
	}}
	if _, err := dup.BuildRooms(); err == nil {
		t.Fatalf("expected duplicate error")
	}
}
