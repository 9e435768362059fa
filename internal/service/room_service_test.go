package service

import (
	"context"
	"testing"

	"guestms/internal/domain"
	"guestms/internal/models"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestRoomService_CreateValidation(t *testing.T) {
	env := newTestEnv(t, ReservationOptions{})
	ctx := context.Background()

	tests := []struct {
		name string
		in   models.RoomInput
	}{
		{"empty code", models.RoomInput{Code: "  ", Category: "G", PricePerNight: decimal.NewFromInt(10), Capacity: 1}},
		{"unknown category", models.RoomInput{Code: "1", Category: "X", PricePerNight: decimal.NewFromInt(10), Capacity: 1}},
		{"negative price", models.RoomInput{Code: "1", Category: "G", PricePerNight: decimal.NewFromInt(-1), Capacity: 1}},
		{"zero price", models.RoomInput{Code: "1", Category: "G", PricePerNight: decimal.Zero, Capacity: 1}},
		{"zero capacity", models.RoomInput{Code: "1", Category: "G", PricePerNight: decimal.NewFromInt(10), Capacity: 0}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := env.rooms.Create(ctx, tt.in)
			assert.ErrorIs(t, err, domain.ErrValidation)
		})
	}
}

func TestRoomService_CreateDefaults(t *testing.T) {
	env := newTestEnv(t, ReservationOptions{})

	room, err := env.rooms.Create(context.Background(), models.RoomInput{
		Code: " 12A ", Category: "v", PricePerNight: decimal.RequireFromString("149.90"), Capacity: 3,
	})
	require.NoError(t, err)
	assert.Equal(t, "12A", room.Code)
	assert.Equal(t, models.CategoryVIP, room.Category)
	assert.True(t, room.IsActive)
	assert.False(t, room.Reserved)

	_, err = env.rooms.Create(context.Background(), models.RoomInput{
		Code: "12A", Category: "G", PricePerNight: decimal.NewFromInt(1), Capacity: 1,
	})
	assert.ErrorIs(t, err, domain.ErrConflict)
}

func TestRoomService_UpdateKeepsReservedFlag(t *testing.T) {
	env := newTestEnv(t, ReservationOptions{})
	ctx := context.Background()
	room := env.room(t, "601", 2, 100)
	cust := env.customer(t, "C-20")

	_, err := env.svc.Create(ctx, models.NewReservation{
		RoomID: room.ID, CustomerID: cust.ID,
		CheckIn: date(t, "2025-03-01"), CheckOut: date(t, "2025-03-02"), Guests: 1,
	})
	require.NoError(t, err)

	updated, err := env.rooms.Update(ctx, room.ID, models.RoomInput{
		Code: "601", Category: models.CategoryDeluxe, PricePerNight: decimal.NewFromInt(120), Capacity: 4, Description: "sea view",
	})
	require.NoError(t, err)
	assert.Equal(t, models.CategoryDeluxe, updated.Category)
	assert.Equal(t, 4, updated.Capacity)
	assert.True(t, updated.Reserved)

	_, err = env.rooms.Update(ctx, 999, models.RoomInput{Code: "x", Category: "G", PricePerNight: decimal.NewFromInt(10), Capacity: 1})
	assert.ErrorIs(t, err, domain.ErrNotFound)
}

func TestRoomService_DeleteProtected(t *testing.T) {
	env := newTestEnv(t, ReservationOptions{})
	ctx := context.Background()
	used := env.room(t, "701", 2, 100)
	free := env.room(t, "702", 2, 100)
	cust := env.customer(t, "C-21")

	res, err := env.svc.Create(ctx, models.NewReservation{
		RoomID: used.ID, CustomerID: cust.ID,
		CheckIn: date(t, "2025-04-01"), CheckOut: date(t, "2025-04-02"), Guests: 1,
	})
	require.NoError(t, err)
	require.NoError(t, env.svc.Cancel(ctx, res.ID))

	assert.ErrorIs(t, env.rooms.Delete(ctx, used.ID), domain.ErrRoomInUse)
	assert.NoError(t, env.rooms.Delete(ctx, free.ID))
	assert.ErrorIs(t, env.rooms.Delete(ctx, free.ID), domain.ErrNotFound)
}

func TestRoomService_Search(t *testing.T) {
	env := newTestEnv(t, ReservationOptions{})
	ctx := context.Background()
	cheap := env.room(t, "801", 2, 50)
	env.room(t, "802", 2, 200)
	booked := env.room(t, "803", 2, 60)
	inactive := false
	_, err := env.rooms.Create(ctx, models.RoomInput{
		Code: "804", Category: "G", PricePerNight: decimal.NewFromInt(55), Capacity: 2, IsActive: &inactive,
	})
	require.NoError(t, err)
	cust := env.customer(t, "C-22")

	_, err = env.svc.Create(ctx, models.NewReservation{
		RoomID: booked.ID, CustomerID: cust.ID,
		CheckIn: date(t, "2025-05-01"), CheckOut: date(t, "2025-05-02"), Guests: 1,
	})
	require.NoError(t, err)

	maxPrice := decimal.NewFromInt(100)
	rooms, err := env.rooms.Search(ctx, models.RoomFilter{MaxPrice: &maxPrice})
	require.NoError(t, err)
	require.Len(t, rooms, 1)
	assert.Equal(t, cheap.ID, rooms[0].ID)

	all, err := env.rooms.List(ctx, models.RoomFilter{})
	require.NoError(t, err)
	assert.Len(t, all, 4)

	minPrice := decimal.NewFromInt(300)
	_, err = env.rooms.Search(ctx, models.RoomFilter{MinPrice: &minPrice, MaxPrice: &maxPrice})
	assert.ErrorIs(t, err, domain.ErrValidation)

	_, err = env.rooms.List(ctx, models.RoomFilter{Category: "Z"})
	assert.ErrorIs(t, err, domain.ErrValidation)
}

func TestRoomService_UpdateRejectsZeroPrice(t *testing.T) {
	env := newTestEnv(t, ReservationOptions{})
	room := env.room(t, "610", 2, 100)

	_, err := env.rooms.Update(context.Background(), room.ID, models.RoomInput{
		Code: "610", Category: "G", PricePerNight: decimal.Zero, Capacity: 2,
	})
	var verr *domain.ValidationError
	require.ErrorAs(t, err, &verr)
	assert.Equal(t, domain.RuleInvalidInput, verr.Rule)

	stored, err := env.rooms.Get(context.Background(), room.ID)
	require.NoError(t, err)
	assert.True(t, stored.PricePerNight.Equal(decimal.NewFromInt(100)))
}
