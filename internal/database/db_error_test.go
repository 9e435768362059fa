package database

import (
	"context"
	"testing"
	"time"

	"guestms/internal/domain"
	"guestms/internal/models"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestDB_ErrorPaths(t *testing.T) {
	logger := zerolog.Nop()
	db, err := NewDB(":memory:", &logger)
	require.NoError(t, err)
	db.Close() // Close the DB to trigger errors

	ctx := context.Background()

	t.Run("InTx_Begin", func(t *testing.T) {
		err := db.InTx(ctx, func(domain.ReservationTx) error { return nil })
		assert.ErrorIs(t, err, domain.ErrPersistence)
	})

	t.Run("GetRoom", func(t *testing.T) {
		_, err := db.GetRoom(ctx, 1)
		assert.Error(t, err)
		assert.NotErrorIs(t, err, domain.ErrNotFound)
	})

	t.Run("ListRooms", func(t *testing.T) {
		_, err := db.ListRooms(ctx, models.RoomFilter{})
		assert.Error(t, err)
	})

	t.Run("CreateRoom", func(t *testing.T) {
		assert.Error(t, db.CreateRoom(ctx, &models.Room{Code: "x"}))
	})

	t.Run("DeleteRoom", func(t *testing.T) {
		assert.Error(t, db.DeleteRoom(ctx, 1))
	})

	t.Run("SyncRooms", func(t *testing.T) {
		assert.Error(t, db.SyncRooms(ctx, []models.Room{}))
	})

	t.Run("CreateCustomer", func(t *testing.T) {
		assert.Error(t, db.CreateCustomer(ctx, &models.Customer{}))
	})

	t.Run("ListReservations", func(t *testing.T) {
		_, err := db.ListReservations(ctx, models.ReservationFilter{})
		assert.Error(t, err)
	})

	t.Run("GetReservationsByDateRange", func(t *testing.T) {
		_, err := db.GetReservationsByDateRange(ctx, time.Now(), time.Now())
		assert.Error(t, err)
	})

	t.Run("CreateSyncTask", func(t *testing.T) {
		assert.Error(t, db.CreateSyncTask(ctx, &models.SyncTask{}))
	})

	t.Run("UpdateSyncTaskStatus", func(t *testing.T) {
		assert.Error(t, db.UpdateSyncTaskStatus(ctx, 1, models.SyncCompleted, "", nil))
	})
}

func TestInTx_CorruptDateSurfacesAsPersistence(t *testing.T) {
	db := setupTestDB(t)
	defer db.Close()

	ctx := context.Background()
	room := seedRoom(t, db, "101", 2, 100)
	customer := seedCustomer(t, db, "C-1")

	_, err := db.ExecContext(ctx, `INSERT INTO reservations
		(room_id, customer_id, check_in, check_out, guests, total_amount, status)
		VALUES (?, ?, 'not-a-date', '2024-01-02', 1, '0', 'confirmed')`, room.ID, customer.ID)
	require.NoError(t, err)

	err = db.InTx(ctx, func(tx domain.ReservationTx) error {
		_, err := tx.ActiveReservationsForRoom(ctx, room.ID, 0)
		return err
	})
	assert.ErrorIs(t, err, domain.ErrPersistence)
}
