package service

import (
	"context"
	"errors"
	"path/filepath"
	"sync"
	"testing"
	"time"

	"guestms/internal/domain"
	"guestms/internal/events"
	"guestms/internal/models"
	"guestms/internal/reservation"

	"github.com/rs/zerolog"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
)

func TestCreate_AdjacentAndOverlapping(t *testing.T) {
	env := newTestEnv(t, ReservationOptions{})
	ctx := context.Background()
	room := env.room(t, "101", 2, 100)
	cust := env.customer(t, "C-1")

	first, err := env.svc.Create(ctx, models.NewReservation{
		RoomID: room.ID, CustomerID: cust.ID,
		CheckIn: date(t, "2024-01-01"), CheckOut: date(t, "2024-01-05"), Guests: 2,
	})
	require.NoError(t, err)
	assert.Equal(t, models.StatusConfirmed, first.Status)
	assert.True(t, first.TotalAmount.Equal(decimal.NewFromInt(400)))
	assert.True(t, env.reserved(t, room.ID))

	_, err = env.svc.Create(ctx, models.NewReservation{
		RoomID: room.ID, CustomerID: cust.ID,
		CheckIn: date(t, "2024-01-03"), CheckOut: date(t, "2024-01-06"), Guests: 1,
	})
	assert.ErrorIs(t, err, domain.ErrRoomUnavailable)

	adjacent, err := env.svc.Create(ctx, models.NewReservation{
		RoomID: room.ID, CustomerID: cust.ID,
		CheckIn: date(t, "2024-01-05"), CheckOut: date(t, "2024-01-08"), Guests: 2,
	})
	require.NoError(t, err)
	assert.Equal(t, "300", adjacent.TotalAmount.String())

	list, err := env.svc.List(ctx, models.ReservationFilter{RoomID: room.ID})
	require.NoError(t, err)
	assert.Len(t, list, 2)

	assert.Equal(t, []string{events.EventReservationCreated, events.EventReservationCreated}, env.events.types())
	env.sync.AssertNumberOfCalls(t, "EnqueueReservation", 2)
}

func TestCreate_ValidationFailuresLeaveNoRow(t *testing.T) {
	env := newTestEnv(t, ReservationOptions{Limits: reservation.StayLimits{MaxNights: 14}})
	ctx := context.Background()
	room := env.room(t, "102", 2, 100)
	cust := env.customer(t, "C-2")

	inactive := false
	closed, err := env.rooms.Create(ctx, models.RoomInput{
		Code: "closed", Category: models.CategorySuite, PricePerNight: decimal.NewFromInt(50), Capacity: 2, IsActive: &inactive,
	})
	require.NoError(t, err)

	tests := []struct {
		name    string
		req     models.NewReservation
		wantErr error
		rule    string
	}{
		{
			name:    "check-out equals check-in",
			req:     models.NewReservation{RoomID: room.ID, CustomerID: cust.ID, CheckIn: date(t, "2024-02-01"), CheckOut: date(t, "2024-02-01"), Guests: 1},
			wantErr: domain.ErrInvalidDateRange,
			rule:    domain.RuleInvalidDateRange,
		},
		{
			name:    "check-out before check-in",
			req:     models.NewReservation{RoomID: room.ID, CustomerID: cust.ID, CheckIn: date(t, "2024-02-05"), CheckOut: date(t, "2024-02-01"), Guests: 1},
			wantErr: domain.ErrInvalidDateRange,
			rule:    domain.RuleInvalidDateRange,
		},
		{
			name:    "too many guests",
			req:     models.NewReservation{RoomID: room.ID, CustomerID: cust.ID, CheckIn: date(t, "2024-02-01"), CheckOut: date(t, "2024-02-03"), Guests: 3},
			wantErr: domain.ErrCapacityExceeded,
			rule:    domain.RuleCapacityExceeded,
		},
		{
			name:    "no guests",
			req:     models.NewReservation{RoomID: room.ID, CustomerID: cust.ID, CheckIn: date(t, "2024-02-01"), CheckOut: date(t, "2024-02-03"), Guests: 0},
			wantErr: domain.ErrValidation,
			rule:    domain.RuleInvalidGuests,
		},
		{
			name:    "stay too long",
			req:     models.NewReservation{RoomID: room.ID, CustomerID: cust.ID, CheckIn: date(t, "2024-02-01"), CheckOut: date(t, "2024-03-01"), Guests: 1},
			wantErr: domain.ErrInvalidDateRange,
			rule:    domain.RuleInvalidDateRange,
		},
		{
			name:    "inactive room",
			req:     models.NewReservation{RoomID: closed.ID, CustomerID: cust.ID, CheckIn: date(t, "2024-02-01"), CheckOut: date(t, "2024-02-03"), Guests: 1},
			wantErr: domain.ErrValidation,
			rule:    domain.RuleRoomInactive,
		},
		{
			name:    "missing room",
			req:     models.NewReservation{RoomID: 999, CustomerID: cust.ID, CheckIn: date(t, "2024-02-01"), CheckOut: date(t, "2024-02-03"), Guests: 1},
			wantErr: domain.ErrNotFound,
		},
		{
			name:    "missing customer",
			req:     models.NewReservation{RoomID: room.ID, CustomerID: 999, CheckIn: date(t, "2024-02-01"), CheckOut: date(t, "2024-02-03"), Guests: 1},
			wantErr: domain.ErrNotFound,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			res, err := env.svc.Create(ctx, tt.req)
			assert.Nil(t, res)
			assert.ErrorIs(t, err, tt.wantErr)

			var verr *domain.ValidationError
			if tt.rule != "" && assert.ErrorAs(t, err, &verr) {
				assert.Equal(t, tt.rule, verr.Rule)
			}
		})
	}

	list, err := env.svc.List(ctx, models.ReservationFilter{})
	require.NoError(t, err)
	assert.Empty(t, list)
	assert.False(t, env.reserved(t, room.ID))
	assert.Empty(t, env.events.types())
	env.sync.AssertNotCalled(t, "EnqueueReservation", mock.Anything, mock.Anything, mock.Anything)
}

func TestCreate_CapacityErrorCarriesCapacity(t *testing.T) {
	env := newTestEnv(t, ReservationOptions{})
	room := env.room(t, "103", 2, 80)
	cust := env.customer(t, "C-3")

	_, err := env.svc.Create(context.Background(), models.NewReservation{
		RoomID: room.ID, CustomerID: cust.ID,
		CheckIn: date(t, "2024-03-01"), CheckOut: date(t, "2024-03-02"), Guests: 5,
	})

	var verr *domain.ValidationError
	require.ErrorAs(t, err, &verr)
	assert.Equal(t, 2, verr.Capacity)
}

func TestCreate_RateLimited(t *testing.T) {
	env := newTestEnv(t, ReservationOptions{CreateRateLimit: 2, CreateRateWindow: time.Minute})
	ctx := context.Background()
	room := env.room(t, "104", 2, 100)
	cust := env.customer(t, "C-4")

	for i := 0; i < 2; i++ {
		_, err := env.svc.Create(ctx, models.NewReservation{
			RoomID: room.ID, CustomerID: cust.ID,
			CheckIn: date(t, "2024-04-01").AddDate(0, 0, i*2), CheckOut: date(t, "2024-04-02").AddDate(0, 0, i*2), Guests: 1,
		})
		require.NoError(t, err)
	}

	_, err := env.svc.Create(ctx, models.NewReservation{
		RoomID: room.ID, CustomerID: cust.ID,
		CheckIn: date(t, "2024-04-10"), CheckOut: date(t, "2024-04-11"), Guests: 1,
	})
	assert.ErrorIs(t, err, domain.ErrRateLimited)
}

func TestCreate_RoomLockHeld(t *testing.T) {
	env := newTestEnv(t, ReservationOptions{LockWait: 50 * time.Millisecond})
	ctx := context.Background()
	room := env.room(t, "105", 2, 100)
	cust := env.customer(t, "C-5")

	token, err := env.coord.AcquireRoomLock(ctx, room.ID, time.Minute)
	require.NoError(t, err)

	_, err = env.svc.Create(ctx, models.NewReservation{
		RoomID: room.ID, CustomerID: cust.ID,
		CheckIn: date(t, "2024-05-01"), CheckOut: date(t, "2024-05-02"), Guests: 1,
	})
	assert.ErrorIs(t, err, domain.ErrConflict)

	require.NoError(t, env.coord.ReleaseRoomLock(ctx, room.ID, token))
	_, err = env.svc.Create(ctx, models.NewReservation{
		RoomID: room.ID, CustomerID: cust.ID,
		CheckIn: date(t, "2024-05-01"), CheckOut: date(t, "2024-05-02"), Guests: 1,
	})
	assert.NoError(t, err)
}

type failingCoordinator struct{}

func (failingCoordinator) AcquireRoomLock(context.Context, int64, time.Duration) (string, error) {
	return "", errors.New("connection refused")
}

func (failingCoordinator) ReleaseRoomLock(context.Context, int64, string) error {
	return errors.New("connection refused")
}

func (failingCoordinator) CheckRateLimit(context.Context, string, int, time.Duration) (bool, error) {
	return false, errors.New("connection refused")
}

func TestCreate_CoordinatorDownStillBooks(t *testing.T) {
	env := newTestEnv(t, ReservationOptions{CreateRateLimit: 1})
	env.svc.coord = failingCoordinator{}
	room := env.room(t, "106", 2, 100)
	cust := env.customer(t, "C-6")

	res, err := env.svc.Create(context.Background(), models.NewReservation{
		RoomID: room.ID, CustomerID: cust.ID,
		CheckIn: date(t, "2024-06-01"), CheckOut: date(t, "2024-06-03"), Guests: 1,
	})
	require.NoError(t, err)
	assert.NotZero(t, res.ID)
}

func TestUpdateStatus_Lifecycle(t *testing.T) {
	env := newTestEnv(t, ReservationOptions{})
	ctx := context.Background()
	room := env.room(t, "201", 2, 100)
	cust := env.customer(t, "C-7")

	res, err := env.svc.Create(ctx, models.NewReservation{
		RoomID: room.ID, CustomerID: cust.ID,
		CheckIn: date(t, "2024-07-01"), CheckOut: date(t, "2024-07-04"), Guests: 2,
	})
	require.NoError(t, err)

	updated, err := env.svc.UpdateStatus(ctx, res.ID, models.ReservationUpdate{Status: models.StatusCheckedIn})
	require.NoError(t, err)
	assert.Equal(t, models.StatusCheckedIn, updated.Status)
	assert.True(t, env.reserved(t, room.ID))

	updated, err = env.svc.UpdateStatus(ctx, res.ID, models.ReservationUpdate{Status: models.StatusCheckedOut})
	require.NoError(t, err)
	assert.Equal(t, models.StatusCheckedOut, updated.Status)
	assert.False(t, env.reserved(t, room.ID))

	_, err = env.svc.UpdateStatus(ctx, res.ID, models.ReservationUpdate{Status: models.StatusPending})
	assert.ErrorIs(t, err, domain.ErrIllegalTransition)

	stored, err := env.svc.Get(ctx, res.ID)
	require.NoError(t, err)
	assert.Equal(t, models.StatusCheckedOut, stored.Status)

	assert.Equal(t, []string{
		events.EventReservationCreated,
		events.EventReservationCheckedIn,
		events.EventReservationCheckedOut,
	}, env.events.types())
}

func TestUpdateStatus_PendingToConfirmed(t *testing.T) {
	env := newTestEnv(t, ReservationOptions{})
	ctx := context.Background()
	room := env.room(t, "202", 2, 100)
	cust := env.customer(t, "C-8")

	pending := &models.Reservation{
		RoomID: room.ID, CustomerID: cust.ID,
		CheckIn: date(t, "2024-08-01"), CheckOut: date(t, "2024-08-02"), Guests: 1,
		TotalAmount: decimal.NewFromInt(100), Status: models.StatusPending,
	}
	require.NoError(t, env.db.InTx(ctx, func(tx domain.ReservationTx) error {
		return tx.InsertReservation(ctx, pending)
	}))

	updated, err := env.svc.UpdateStatus(ctx, pending.ID, models.ReservationUpdate{Status: models.StatusConfirmed})
	require.NoError(t, err)
	assert.Equal(t, models.StatusConfirmed, updated.Status)
	assert.True(t, env.reserved(t, room.ID))
}

func TestUpdateStatus_FlagTracksRemainingActive(t *testing.T) {
	env := newTestEnv(t, ReservationOptions{})
	ctx := context.Background()
	room := env.room(t, "203", 2, 100)
	cust := env.customer(t, "C-9")

	a, err := env.svc.Create(ctx, models.NewReservation{
		RoomID: room.ID, CustomerID: cust.ID,
		CheckIn: date(t, "2024-09-01"), CheckOut: date(t, "2024-09-03"), Guests: 1,
	})
	require.NoError(t, err)
	b, err := env.svc.Create(ctx, models.NewReservation{
		RoomID: room.ID, CustomerID: cust.ID,
		CheckIn: date(t, "2024-09-10"), CheckOut: date(t, "2024-09-12"), Guests: 1,
	})
	require.NoError(t, err)

	require.NoError(t, env.svc.Cancel(ctx, a.ID))
	assert.True(t, env.reserved(t, room.ID), "b is still confirmed")

	_, err = env.svc.UpdateStatus(ctx, b.ID, models.ReservationUpdate{Status: models.StatusCheckedIn})
	require.NoError(t, err)
	assert.True(t, env.reserved(t, room.ID), "b is checked in")

	_, err = env.svc.UpdateStatus(ctx, b.ID, models.ReservationUpdate{Status: models.StatusCheckedOut})
	require.NoError(t, err)
	assert.False(t, env.reserved(t, room.ID))
}

func TestCancel_Idempotent(t *testing.T) {
	env := newTestEnv(t, ReservationOptions{})
	ctx := context.Background()
	room := env.room(t, "204", 2, 100)
	cust := env.customer(t, "C-10")

	res, err := env.svc.Create(ctx, models.NewReservation{
		RoomID: room.ID, CustomerID: cust.ID,
		CheckIn: date(t, "2024-10-01"), CheckOut: date(t, "2024-10-02"), Guests: 1,
	})
	require.NoError(t, err)

	require.NoError(t, env.svc.Cancel(ctx, res.ID))
	require.NoError(t, env.svc.Cancel(ctx, res.ID))

	stored, err := env.svc.Get(ctx, res.ID)
	require.NoError(t, err)
	assert.Equal(t, models.StatusCanceled, stored.Status)
	assert.False(t, env.reserved(t, room.ID))

	// the second cancel publishes nothing
	assert.Equal(t, []string{events.EventReservationCreated, events.EventReservationCanceled}, env.events.types())

	// canceled rows stay and free the dates
	_, err = env.svc.Create(ctx, models.NewReservation{
		RoomID: room.ID, CustomerID: cust.ID,
		CheckIn: date(t, "2024-10-01"), CheckOut: date(t, "2024-10-02"), Guests: 1,
	})
	assert.NoError(t, err)
}

func TestUpdateStatus_NotesOnly(t *testing.T) {
	env := newTestEnv(t, ReservationOptions{})
	ctx := context.Background()
	room := env.room(t, "205", 2, 100)
	cust := env.customer(t, "C-11")

	res, err := env.svc.Create(ctx, models.NewReservation{
		RoomID: room.ID, CustomerID: cust.ID,
		CheckIn: date(t, "2024-11-01"), CheckOut: date(t, "2024-11-02"), Guests: 1, Notes: "late arrival",
	})
	require.NoError(t, err)

	notes := "early arrival"
	updated, err := env.svc.UpdateStatus(ctx, res.ID, models.ReservationUpdate{Status: models.StatusConfirmed, Notes: &notes})
	require.NoError(t, err)
	assert.Equal(t, "early arrival", updated.Notes)
	assert.Equal(t, models.StatusConfirmed, updated.Status)
	assert.Equal(t, []string{events.EventReservationCreated, events.EventReservationUpdated}, env.events.types())
}

func TestUpdateStatus_Errors(t *testing.T) {
	env := newTestEnv(t, ReservationOptions{})
	ctx := context.Background()

	_, err := env.svc.UpdateStatus(ctx, 1, models.ReservationUpdate{Status: "archived"})
	assert.ErrorIs(t, err, domain.ErrValidation)

	_, err = env.svc.UpdateStatus(ctx, 42, models.ReservationUpdate{Status: models.StatusCanceled})
	assert.ErrorIs(t, err, domain.ErrNotFound)

	assert.ErrorIs(t, env.svc.Cancel(ctx, 42), domain.ErrNotFound)
}

func TestListInRange(t *testing.T) {
	env := newTestEnv(t, ReservationOptions{})
	ctx := context.Background()
	room := env.room(t, "301", 2, 100)
	cust := env.customer(t, "C-12")

	_, err := env.svc.Create(ctx, models.NewReservation{
		RoomID: room.ID, CustomerID: cust.ID,
		CheckIn: date(t, "2024-12-01"), CheckOut: date(t, "2024-12-05"), Guests: 1,
	})
	require.NoError(t, err)

	found, err := env.svc.ListInRange(ctx, date(t, "2024-12-04"), date(t, "2024-12-10"))
	require.NoError(t, err)
	assert.Len(t, found, 1)

	found, err = env.svc.ListInRange(ctx, date(t, "2024-12-05"), date(t, "2024-12-10"))
	require.NoError(t, err)
	assert.Empty(t, found)

	_, err = env.svc.ListInRange(ctx, date(t, "2024-12-10"), date(t, "2024-12-01"))
	assert.ErrorIs(t, err, domain.ErrInvalidDateRange)
}

func TestReconcileAll_RepairsDrift(t *testing.T) {
	env := newTestEnv(t, ReservationOptions{})
	ctx := context.Background()
	booked := env.room(t, "401", 2, 100)
	empty := env.room(t, "402", 2, 100)
	cust := env.customer(t, "C-13")

	_, err := env.svc.Create(ctx, models.NewReservation{
		RoomID: booked.ID, CustomerID: cust.ID,
		CheckIn: date(t, "2025-01-01"), CheckOut: date(t, "2025-01-03"), Guests: 1,
	})
	require.NoError(t, err)

	require.NoError(t, env.db.InTx(ctx, func(tx domain.ReservationTx) error {
		if _, err := tx.SetRoomReserved(ctx, booked.ID, false); err != nil {
			return err
		}
		_, err := tx.SetRoomReserved(ctx, empty.ID, true)
		return err
	}))

	changed, err := env.svc.ReconcileAll(ctx)
	require.NoError(t, err)
	assert.Equal(t, 2, changed)
	assert.True(t, env.reserved(t, booked.ID))
	assert.False(t, env.reserved(t, empty.ID))

	changed, err = env.svc.ReconcileAll(ctx)
	require.NoError(t, err)
	assert.Zero(t, changed)
}

// createConcurrently races overlapping creates for one room and checks
// exactly one wins.
func createConcurrently(t *testing.T, env *testEnv, svc *ReservationService, roomCode string, workers int) {
	t.Helper()
	ctx := context.Background()
	room := env.room(t, roomCode, 2, 100)
	cust := env.customer(t, "C-"+roomCode)

	var wg sync.WaitGroup
	errs := make(chan error, workers)
	for i := 0; i < workers; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			_, err := svc.Create(ctx, models.NewReservation{
				RoomID: room.ID, CustomerID: cust.ID,
				CheckIn:  date(t, "2025-02-01").AddDate(0, 0, i%2),
				CheckOut: date(t, "2025-02-05"),
				Guests:   1,
			})
			errs <- err
		}(i)
	}
	wg.Wait()
	close(errs)

	succeeded := 0
	for err := range errs {
		if err == nil {
			succeeded++
			continue
		}
		assert.ErrorIs(t, err, domain.ErrRoomUnavailable)
	}
	assert.Equal(t, 1, succeeded)

	list, err := env.svc.List(ctx, models.ReservationFilter{RoomID: room.ID})
	require.NoError(t, err)
	assert.Len(t, list, 1)
	assert.True(t, env.reserved(t, room.ID))
}

func TestCreate_ConcurrentOverlapping(t *testing.T) {
	env := newTestEnvAt(t, filepath.Join(t.TempDir(), "reservations.db"), ReservationOptions{LockWait: 10 * time.Second})
	createConcurrently(t, env, env.svc, "501", 8)
}

func TestCreate_ConcurrentOverlappingWithoutCoordinator(t *testing.T) {
	env := newTestEnvAt(t, filepath.Join(t.TempDir(), "reservations.db"), ReservationOptions{})
	logger := zerolog.Nop()
	svc := NewReservationService(env.db, nil, nil, nil, ReservationOptions{}, &logger)
	createConcurrently(t, env, svc, "502", 16)
}
