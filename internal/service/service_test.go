package service

import (
	"context"
	"sync"
	"testing"
	"time"

	"guestms/internal/database"
	"guestms/internal/events"
	"guestms/internal/models"
	"guestms/internal/repository"

	"github.com/rs/zerolog"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
)

type mockSyncWorker struct {
	mock.Mock
}

func (m *mockSyncWorker) EnqueueReservation(ctx context.Context, taskType string, r *models.Reservation) error {
	args := m.Called(ctx, taskType, r)
	return args.Error(0)
}

// eventRecorder collects published events in order.
type eventRecorder struct {
	mu     sync.Mutex
	events []*events.Event
}

func (r *eventRecorder) handle(e *events.Event) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.events = append(r.events, e)
	return nil
}

func (r *eventRecorder) types() []string {
	r.mu.Lock()
	defer r.mu.Unlock()
	out := make([]string, 0, len(r.events))
	for _, e := range r.events {
		out = append(out, e.Type)
	}
	return out
}

type testEnv struct {
	db     *database.DB
	svc    *ReservationService
	rooms  *RoomService
	custs  *CustomerService
	coord  *repository.MemoryCoordinator
	events *eventRecorder
	sync   *mockSyncWorker
}

func newTestEnv(t *testing.T, opts ReservationOptions) *testEnv {
	t.Helper()
	return newTestEnvAt(t, ":memory:", opts)
}

func newTestEnvAt(t *testing.T, path string, opts ReservationOptions) *testEnv {
	t.Helper()
	logger := zerolog.Nop()
	db, err := database.NewDB(path, &logger)
	require.NoError(t, err)
	t.Cleanup(func() { db.Close() })

	bus := events.NewEventBus()
	rec := &eventRecorder{}
	bus.Subscribe(rec.handle, events.ReservationEventTypes()...)

	sw := new(mockSyncWorker)
	sw.On("EnqueueReservation", mock.Anything, mock.Anything, mock.Anything).Return(nil).Maybe()

	coord := repository.NewMemoryCoordinator()
	return &testEnv{
		db:     db,
		svc:    NewReservationService(db, coord, bus, sw, opts, &logger),
		rooms:  NewRoomService(db, &logger),
		custs:  NewCustomerService(db, &logger),
		coord:  coord,
		events: rec,
		sync:   sw,
	}
}

func (e *testEnv) room(t *testing.T, code string, capacity int, price int64) *models.Room {
	t.Helper()
	room, err := e.rooms.Create(context.Background(), models.RoomInput{
		Code:          code,
		Category:      models.CategoryGeneral,
		PricePerNight: decimal.NewFromInt(price),
		Capacity:      capacity,
	})
	require.NoError(t, err)
	return room
}

func (e *testEnv) customer(t *testing.T, code string) *models.Customer {
	t.Helper()
	c := &models.Customer{Code: code, FirstName: "Anna", LastName: "Smirnova"}
	require.NoError(t, e.custs.Register(context.Background(), c))
	return c
}

func (e *testEnv) reserved(t *testing.T, roomID int64) bool {
	t.Helper()
	room, err := e.db.GetRoom(context.Background(), roomID)
	require.NoError(t, err)
	return room.Reserved
}

func date(t *testing.T, s string) time.Time {
	t.Helper()
	d, err := models.ParseDate(s)
	require.NoError(t, err)
	return d
}
