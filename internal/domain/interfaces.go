package domain

import (
	"context"
	"time"

	"guestms/internal/models"
)

// ReservationTx is the transactional view of the store. Everything done
// through one ReservationTx commits or rolls back together.
type ReservationTx interface {
	GetRoom(ctx context.Context, id int64) (*models.Room, error)
	GetCustomer(ctx context.Context, id int64) (*models.Customer, error)
	ActiveReservationsForRoom(ctx context.Context, roomID, excludeID int64) ([]*models.Reservation, error)
	InsertReservation(ctx context.Context, r *models.Reservation) error
	GetReservation(ctx context.Context, id int64) (*models.Reservation, error)
	UpdateReservation(ctx context.Context, id int64, upd models.ReservationUpdate) error
	HasActiveReservations(ctx context.Context, roomID int64) (bool, error)
	SetRoomReserved(ctx context.Context, roomID int64, reserved bool) (bool, error)
	ListRoomIDs(ctx context.Context) ([]int64, error)
}

type Repository interface {
	InTx(ctx context.Context, fn func(tx ReservationTx) error) error
	Ping(ctx context.Context) error

	GetReservation(ctx context.Context, id int64) (*models.Reservation, error)
	ListReservations(ctx context.Context, filter models.ReservationFilter) ([]*models.Reservation, error)
	GetReservationsByDateRange(ctx context.Context, from, to time.Time) ([]*models.Reservation, error)

	GetRoom(ctx context.Context, id int64) (*models.Room, error)
	GetRoomByCode(ctx context.Context, code string) (*models.Room, error)
	ListRooms(ctx context.Context, filter models.RoomFilter) ([]*models.Room, error)
	CreateRoom(ctx context.Context, room *models.Room) error
	UpdateRoom(ctx context.Context, room *models.Room) error
	DeleteRoom(ctx context.Context, id int64) error

	CreateCustomer(ctx context.Context, c *models.Customer) error
	GetCustomer(ctx context.Context, id int64) (*models.Customer, error)
}

// Coordinator serializes reservation attempts per room and throttles
// customers. Implementations: Redis, in-memory, failover.
type Coordinator interface {
	AcquireRoomLock(ctx context.Context, roomID int64, ttl time.Duration) (string, error)
	ReleaseRoomLock(ctx context.Context, roomID int64, token string) error
	CheckRateLimit(ctx context.Context, key string, limit int, window time.Duration) (bool, error)
}

type EventPublisher interface {
	PublishJSON(eventType string, payload interface{}) error
}

type SyncWorker interface {
	EnqueueReservation(ctx context.Context, taskType string, r *models.Reservation) error
}

type ReservationService interface {
	Create(ctx context.Context, req models.NewReservation) (*models.Reservation, error)
	UpdateStatus(ctx context.Context, id int64, upd models.ReservationUpdate) (*models.Reservation, error)
	Cancel(ctx context.Context, id int64) error
	Get(ctx context.Context, id int64) (*models.Reservation, error)
	List(ctx context.Context, filter models.ReservationFilter) ([]*models.Reservation, error)
	ListInRange(ctx context.Context, from, to time.Time) ([]*models.Reservation, error)
	ReconcileAll(ctx context.Context) (int, error)
}

type RoomService interface {
	Create(ctx context.Context, in models.RoomInput) (*models.Room, error)
	Update(ctx context.Context, id int64, in models.RoomInput) (*models.Room, error)
	Delete(ctx context.Context, id int64) error
	Get(ctx context.Context, id int64) (*models.Room, error)
	List(ctx context.Context, filter models.RoomFilter) ([]*models.Room, error)
	Search(ctx context.Context, filter models.RoomFilter) ([]*models.Room, error)
}

type CustomerService interface {
	Register(ctx context.Context, c *models.Customer) error
	Get(ctx context.Context, id int64) (*models.Customer, error)
}
