package database

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"
	"time"

	"guestms/internal/domain"
	"guestms/internal/models"

	"github.com/mattn/go-sqlite3"
)

const roomColumns = `id, room_code, category, price_per_night, capacity, reserved, description, is_active, created_at, updated_at`

type rowScanner interface {
	Scan(dest ...interface{}) error
}

func scanRoom(row rowScanner) (*models.Room, error) {
	r := &models.Room{}
	err := row.Scan(
		&r.ID, &r.Code, &r.Category, &r.PricePerNight, &r.Capacity,
		&r.Reserved, &r.Description, &r.IsActive, &r.CreatedAt, &r.UpdatedAt,
	)
	if err != nil {
		return nil, err
	}
	return r, nil
}

func getRoom(ctx context.Context, q querier, id int64) (*models.Room, error) {
	row := q.QueryRowContext(ctx, `SELECT `+roomColumns+` FROM rooms WHERE id = ?`, id)
	room, err := scanRoom(row)
	if err != nil {
		return nil, notFound(err, "room", id)
	}
	return room, nil
}

func setRoomReserved(ctx context.Context, q querier, roomID int64, reserved bool) (bool, error) {
	result, err := q.ExecContext(ctx,
		`UPDATE rooms SET reserved = ?, updated_at = ? WHERE id = ? AND reserved <> ?`,
		reserved, time.Now(), roomID, reserved)
	if err != nil {
		return false, fmt.Errorf("failed to update room reserved flag: %w", err)
	}
	rows, err := result.RowsAffected()
	if err != nil {
		return false, fmt.Errorf("failed to read affected rows: %w", err)
	}
	return rows > 0, nil
}

func (db *DB) GetRoom(ctx context.Context, id int64) (*models.Room, error) {
	room, err := getRoom(ctx, db, id)
	if err != nil {
		return nil, fmt.Errorf("failed to get room: %w", err)
	}
	return room, nil
}

func (db *DB) GetRoomByCode(ctx context.Context, code string) (*models.Room, error) {
	row := db.QueryRowContext(ctx, `SELECT `+roomColumns+` FROM rooms WHERE room_code = ?`, code)
	room, err := scanRoom(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, fmt.Errorf("room %q: %w", code, domain.ErrNotFound)
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get room by code: %w", err)
	}
	return room, nil
}

// ListRooms returns rooms ordered by code. AvailableOnly keeps rooms whose
// reserved flag is clear.
func (db *DB) ListRooms(ctx context.Context, filter models.RoomFilter) ([]*models.Room, error) {
	var where []string
	var args []interface{}

	if filter.AvailableOnly {
		where = append(where, "reserved = 0")
	}
	if filter.ActiveOnly {
		where = append(where, "is_active = 1")
	}
	if filter.Category != "" {
		where = append(where, "category = ?")
		args = append(args, filter.Category)
	}
	if filter.MinPrice != nil {
		where = append(where, "CAST(price_per_night AS REAL) >= ?")
		args = append(args, filter.MinPrice.InexactFloat64())
	}
	if filter.MaxPrice != nil {
		where = append(where, "CAST(price_per_night AS REAL) <= ?")
		args = append(args, filter.MaxPrice.InexactFloat64())
	}

	query := `SELECT ` + roomColumns + ` FROM rooms`
	if len(where) > 0 {
		query += ` WHERE ` + strings.Join(where, " AND ")
	}
	query += ` ORDER BY room_code ASC`

	rows, err := db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to list rooms: %w", err)
	}
	defer rows.Close()

	var rooms []*models.Room
	for rows.Next() {
		room, err := scanRoom(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan room: %w", err)
		}
		rooms = append(rooms, room)
	}
	return rooms, rows.Err()
}

// CreateRoom inserts a room. The reserved flag always starts clear.
func (db *DB) CreateRoom(ctx context.Context, room *models.Room) error {
	now := time.Now()
	result, err := db.ExecContext(ctx, `INSERT INTO rooms (
				room_code, category, price_per_night, capacity, reserved,
				description, is_active, created_at, updated_at
			) VALUES (?, ?, ?, ?, 0, ?, ?, ?, ?)`,
		room.Code, room.Category, room.PricePerNight, room.Capacity,
		room.Description, room.IsActive, now, now,
	)
	if err != nil {
		if isUniqueViolation(err) {
			return fmt.Errorf("room code %q already exists: %w", room.Code, domain.ErrConflict)
		}
		return fmt.Errorf("failed to create room: %w", err)
	}

	id, err := result.LastInsertId()
	if err != nil {
		return fmt.Errorf("failed to get last insert id: %w", err)
	}
	room.ID = id
	room.Reserved = false
	room.CreatedAt = now
	room.UpdatedAt = now
	return nil
}

// UpdateRoom writes the editable fields. reserved is never touched here.
func (db *DB) UpdateRoom(ctx context.Context, room *models.Room) error {
	now := time.Now()
	result, err := db.ExecContext(ctx, `UPDATE rooms SET
				room_code = ?, category = ?, price_per_night = ?, capacity = ?,
				description = ?, is_active = ?, updated_at = ?
			WHERE id = ?`,
		room.Code, room.Category, room.PricePerNight, room.Capacity,
		room.Description, room.IsActive, now, room.ID,
	)
	if err != nil {
		if isUniqueViolation(err) {
			return fmt.Errorf("room code %q already exists: %w", room.Code, domain.ErrConflict)
		}
		return fmt.Errorf("failed to update room: %w", err)
	}
	rows, _ := result.RowsAffected()
	if rows == 0 {
		return domain.NotFound("room", room.ID)
	}
	room.UpdatedAt = now
	return nil
}

// DeleteRoom removes a room that no reservation references.
func (db *DB) DeleteRoom(ctx context.Context, id int64) error {
	var refs int
	err := db.QueryRowContext(ctx, `SELECT COUNT(*) FROM reservations WHERE room_id = ?`, id).Scan(&refs)
	if err != nil {
		return fmt.Errorf("failed to count room reservations: %w", err)
	}
	if refs > 0 {
		return fmt.Errorf("room %d has %d reservations: %w", id, refs, domain.ErrRoomInUse)
	}

	result, err := db.ExecContext(ctx, `DELETE FROM rooms WHERE id = ?`, id)
	if err != nil {
		if isForeignKeyViolation(err) {
			return fmt.Errorf("room %d: %w", id, domain.ErrRoomInUse)
		}
		return fmt.Errorf("failed to delete room: %w", err)
	}
	rows, _ := result.RowsAffected()
	if rows == 0 {
		return domain.NotFound("room", id)
	}
	return nil
}

// SyncRooms upserts rooms by room_code. Existing reserved flags are kept.
func (db *DB) SyncRooms(ctx context.Context, rooms []models.Room) error {
	tx, err := db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer func() {
		_ = tx.Rollback()
	}()

	query := `INSERT INTO rooms (
				room_code, category, price_per_night, capacity, reserved,
				description, is_active, created_at, updated_at
			) VALUES (?, ?, ?, ?, 0, ?, ?, ?, ?)
			ON CONFLICT(room_code) DO UPDATE SET
				category = excluded.category,
				price_per_night = excluded.price_per_night,
				capacity = excluded.capacity,
				description = excluded.description,
				is_active = excluded.is_active,
				updated_at = excluded.updated_at`

	now := time.Now()
	for i := range rooms {
		r := &rooms[i]
		if _, err := tx.ExecContext(ctx, query,
			r.Code, r.Category, r.PricePerNight, r.Capacity,
			r.Description, r.IsActive, now, now,
		); err != nil {
			return fmt.Errorf("failed to upsert room %s: %w", r.Code, err)
		}
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("failed to commit rooms: %w", err)
	}
	db.logger.Info().Int("count", len(rooms)).Msg("Rooms synchronized")
	return nil
}

func isUniqueViolation(err error) bool {
	var se sqlite3.Error
	return errors.As(err, &se) && se.ExtendedCode == sqlite3.ErrConstraintUnique
}

func isForeignKeyViolation(err error) bool {
	var se sqlite3.Error
	return errors.As(err, &se) && se.ExtendedCode == sqlite3.ErrConstraintForeignKey
}
