package database

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"guestms/internal/domain"
	"guestms/internal/models"

	_ "github.com/mattn/go-sqlite3" // sqlite3 driver
	"github.com/rs/zerolog"
)

// DefaultBusyTimeoutMS is used when NewDB is called without an explicit timeout.
const DefaultBusyTimeoutMS = 5000

// DB wraps sql.DB for the reservation store.
type DB struct {
	*sql.DB
	path   string
	logger *zerolog.Logger
}

// querier is satisfied by both *sql.DB and *sql.Tx.
type querier interface {
	ExecContext(ctx context.Context, query string, args ...interface{}) (sql.Result, error)
	QueryContext(ctx context.Context, query string, args ...interface{}) (*sql.Rows, error)
	QueryRowContext(ctx context.Context, query string, args ...interface{}) *sql.Row
}

func NewDB(path string, logger *zerolog.Logger) (*DB, error) {
	return NewDBWithTimeout(path, DefaultBusyTimeoutMS, logger)
}

// NewDBWithTimeout opens the database at path and runs migrations. Write
// transactions start with BEGIN IMMEDIATE and wait up to busyTimeoutMS for
// the write lock.
func NewDBWithTimeout(path string, busyTimeoutMS int, logger *zerolog.Logger) (*DB, error) {
	inMemory := isMemoryPath(path)
	if !inMemory {
		// Создаем директорию для БД, если её нет
		if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
			return nil, fmt.Errorf("failed to create database directory: %w", err)
		}
	}

	db, err := sql.Open("sqlite3", buildDSN(path, busyTimeoutMS, inMemory))
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}

	if inMemory {
		// каждое соединение к :memory: видит свою базу
		db.SetMaxOpenConns(1)
	}

	if err := db.Ping(); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to connect to database: %w", err)
	}

	if err := createTables(db); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to create tables: %w", err)
	}

	logger.Info().Str("path", path).Msg("Database initialized")
	return &DB{DB: db, path: path, logger: logger}, nil
}

func isMemoryPath(path string) bool {
	return path == ":memory:" || strings.HasPrefix(path, "file::memory:")
}

func buildDSN(path string, busyTimeoutMS int, inMemory bool) string {
	if busyTimeoutMS <= 0 {
		busyTimeoutMS = DefaultBusyTimeoutMS
	}
	params := fmt.Sprintf("_foreign_keys=1&_txlock=immediate&_busy_timeout=%d", busyTimeoutMS)
	if !inMemory {
		params += "&_journal_mode=WAL"
	}
	sep := "?"
	if strings.Contains(path, "?") {
		sep = "&"
	}
	return path + sep + params
}

func createTables(db *sql.DB) error {
	queries := []string{
		`CREATE TABLE IF NOT EXISTS rooms (
            id INTEGER PRIMARY KEY AUTOINCREMENT,
            room_code TEXT UNIQUE NOT NULL,
            category TEXT NOT NULL,
            price_per_night TEXT NOT NULL,
            capacity INTEGER NOT NULL CHECK (capacity >= 1),
            reserved BOOLEAN NOT NULL DEFAULT 0,
            description TEXT NOT NULL DEFAULT '',
            is_active BOOLEAN NOT NULL DEFAULT 1,
            created_at DATETIME DEFAULT CURRENT_TIMESTAMP,
            updated_at DATETIME DEFAULT CURRENT_TIMESTAMP
        )`,

		`CREATE TABLE IF NOT EXISTS customers (
            id INTEGER PRIMARY KEY AUTOINCREMENT,
            customer_code TEXT UNIQUE NOT NULL,
            first_name TEXT NOT NULL,
            last_name TEXT NOT NULL DEFAULT '',
            email TEXT NOT NULL DEFAULT '',
            phone TEXT NOT NULL DEFAULT '',
            created_at DATETIME DEFAULT CURRENT_TIMESTAMP,
            updated_at DATETIME DEFAULT CURRENT_TIMESTAMP
        )`,

		// даты заезда/выезда хранятся как YYYY-MM-DD
		`CREATE TABLE IF NOT EXISTS reservations (
            id INTEGER PRIMARY KEY AUTOINCREMENT,
            room_id INTEGER NOT NULL REFERENCES rooms(id) ON DELETE RESTRICT,
            customer_id INTEGER NOT NULL REFERENCES customers(id) ON DELETE RESTRICT,
            check_in TEXT NOT NULL,
            check_out TEXT NOT NULL,
            guests INTEGER NOT NULL,
            total_amount TEXT NOT NULL,
            notes TEXT NOT NULL DEFAULT '',
            status TEXT NOT NULL DEFAULT 'pending',
            created_at DATETIME DEFAULT CURRENT_TIMESTAMP,
            updated_at DATETIME DEFAULT CURRENT_TIMESTAMP
        )`,

		`CREATE TABLE IF NOT EXISTS sync_queue (
            id INTEGER PRIMARY KEY AUTOINCREMENT,
            task_type TEXT NOT NULL,
            reservation_id INTEGER NOT NULL,
            payload TEXT,
            status TEXT NOT NULL DEFAULT 'pending',
            retry_count INTEGER NOT NULL DEFAULT 0,
            last_error TEXT,
            created_at DATETIME DEFAULT CURRENT_TIMESTAMP,
            processed_at DATETIME,
            next_retry_at DATETIME
        )`,

		`CREATE INDEX IF NOT EXISTS idx_rooms_category ON rooms(category)`,
		`CREATE INDEX IF NOT EXISTS idx_rooms_reserved ON rooms(reserved, is_active)`,
		`CREATE INDEX IF NOT EXISTS idx_reservations_room_status ON reservations(room_id, status)`,
		`CREATE INDEX IF NOT EXISTS idx_reservations_customer ON reservations(customer_id)`,
		`CREATE INDEX IF NOT EXISTS idx_reservations_dates ON reservations(check_in, check_out)`,
		`CREATE INDEX IF NOT EXISTS idx_sync_queue_status ON sync_queue(status, next_retry_at)`,
	}

	for _, query := range queries {
		if _, err := db.Exec(query); err != nil {
			return fmt.Errorf("error executing query %s: %w", firstLine(query), err)
		}
	}
	return nil
}

func firstLine(q string) string {
	if i := strings.IndexByte(q, '\n'); i >= 0 {
		return strings.TrimSpace(q[:i])
	}
	return q
}

// Path returns the file the database was opened from.
func (db *DB) Path() string {
	return db.path
}

func (db *DB) Ping(ctx context.Context) error {
	return db.PingContext(ctx)
}

// InTx runs fn inside a write transaction. fn's error rolls back; nil commits.
// On :memory: databases fn must only use tx, the pool holds one connection.
func (db *DB) InTx(ctx context.Context, fn func(tx domain.ReservationTx) error) error {
	sqlTx, err := db.BeginTx(ctx, nil)
	if err != nil {
		return domain.Persistence("begin transaction", err)
	}
	defer func() {
		_ = sqlTx.Rollback()
	}()

	if err := fn(&Tx{tx: sqlTx}); err != nil {
		return err
	}

	if err := sqlTx.Commit(); err != nil {
		return domain.Persistence("commit transaction", err)
	}
	return nil
}

// Tx is the transactional store handed to InTx callbacks.
type Tx struct {
	tx *sql.Tx
}

func (t *Tx) GetRoom(ctx context.Context, id int64) (*models.Room, error) {
	room, err := getRoom(ctx, t.tx, id)
	return room, domain.Persistence("get room", err)
}

func (t *Tx) GetCustomer(ctx context.Context, id int64) (*models.Customer, error) {
	c, err := getCustomer(ctx, t.tx, id)
	return c, domain.Persistence("get customer", err)
}

func (t *Tx) GetReservation(ctx context.Context, id int64) (*models.Reservation, error) {
	r, err := getReservation(ctx, t.tx, id)
	return r, domain.Persistence("get reservation", err)
}

func (t *Tx) ActiveReservationsForRoom(ctx context.Context, roomID, excludeID int64) ([]*models.Reservation, error) {
	res, err := activeReservationsForRoom(ctx, t.tx, roomID, excludeID)
	return res, domain.Persistence("load active reservations", err)
}

func (t *Tx) InsertReservation(ctx context.Context, r *models.Reservation) error {
	return domain.Persistence("insert reservation", insertReservation(ctx, t.tx, r))
}

func (t *Tx) UpdateReservation(ctx context.Context, id int64, upd models.ReservationUpdate) error {
	return domain.Persistence("update reservation", updateReservation(ctx, t.tx, id, upd))
}

func (t *Tx) HasActiveReservations(ctx context.Context, roomID int64) (bool, error) {
	ok, err := hasActiveReservations(ctx, t.tx, roomID)
	return ok, domain.Persistence("check active reservations", err)
}

func (t *Tx) SetRoomReserved(ctx context.Context, roomID int64, reserved bool) (bool, error) {
	changed, err := setRoomReserved(ctx, t.tx, roomID, reserved)
	return changed, domain.Persistence("set room reserved", err)
}

func (t *Tx) ListRoomIDs(ctx context.Context) ([]int64, error) {
	rows, err := t.tx.QueryContext(ctx, `SELECT id FROM rooms ORDER BY id ASC`)
	if err != nil {
		return nil, domain.Persistence("list room ids", err)
	}
	defer rows.Close()

	var ids []int64
	for rows.Next() {
		var id int64
		if err := rows.Scan(&id); err != nil {
			return nil, domain.Persistence("scan room id", err)
		}
		ids = append(ids, id)
	}
	return ids, domain.Persistence("list room ids", rows.Err())
}

// notFound maps sql.ErrNoRows to a domain NotFoundError.
func notFound(err error, entity string, id int64) error {
	if errors.Is(err, sql.ErrNoRows) {
		return domain.NotFound(entity, id)
	}
	return err
}

// inClause returns "?, ?, ?" and args for values.
func inClause(values []string) (string, []interface{}) {
	marks := make([]string, len(values))
	args := make([]interface{}, len(values))
	for i, v := range values {
		marks[i] = "?"
		args[i] = v
	}
	return strings.Join(marks, ", "), args
}
