package database

import (
	"context"
	"fmt"
	"strings"
	"time"

	"guestms/internal/domain"
	"guestms/internal/models"
)

const reservationColumns = `id, room_id, customer_id, check_in, check_out, guests, total_amount, notes, status, created_at, updated_at`

func scanReservation(row rowScanner) (*models.Reservation, error) {
	r := &models.Reservation{}
	var checkIn, checkOut string
	err := row.Scan(
		&r.ID, &r.RoomID, &r.CustomerID, &checkIn, &checkOut, &r.Guests,
		&r.TotalAmount, &r.Notes, &r.Status, &r.CreatedAt, &r.UpdatedAt,
	)
	if err != nil {
		return nil, err
	}

	if r.CheckIn, err = models.ParseDate(checkIn); err != nil {
		return nil, fmt.Errorf("failed to parse check_in %s: %w", checkIn, err)
	}
	if r.CheckOut, err = models.ParseDate(checkOut); err != nil {
		return nil, fmt.Errorf("failed to parse check_out %s: %w", checkOut, err)
	}
	return r, nil
}

func collectReservations(rows rowsIterator) ([]*models.Reservation, error) {
	defer rows.Close()

	var out []*models.Reservation
	for rows.Next() {
		r, err := scanReservation(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan reservation: %w", err)
		}
		out = append(out, r)
	}
	return out, rows.Err()
}

type rowsIterator interface {
	rowScanner
	Next() bool
	Close() error
	Err() error
}

func getReservation(ctx context.Context, q querier, id int64) (*models.Reservation, error) {
	row := q.QueryRowContext(ctx, `SELECT `+reservationColumns+` FROM reservations WHERE id = ?`, id)
	r, err := scanReservation(row)
	if err != nil {
		return nil, notFound(err, "reservation", id)
	}
	return r, nil
}

func activeReservationsForRoom(ctx context.Context, q querier, roomID, excludeID int64) ([]*models.Reservation, error) {
	marks, args := inClause(models.ActiveStatuses())
	query := `SELECT ` + reservationColumns + ` FROM reservations
              WHERE room_id = ? AND id <> ? AND status IN (` + marks + `)
              ORDER BY check_in ASC`
	rows, err := q.QueryContext(ctx, query, append([]interface{}{roomID, excludeID}, args...)...)
	if err != nil {
		return nil, fmt.Errorf("failed to query active reservations: %w", err)
	}
	return collectReservations(rows)
}

func hasActiveReservations(ctx context.Context, q querier, roomID int64) (bool, error) {
	marks, args := inClause(models.ActiveStatuses())
	query := `SELECT EXISTS (SELECT 1 FROM reservations WHERE room_id = ? AND status IN (` + marks + `))`
	var exists bool
	if err := q.QueryRowContext(ctx, query, append([]interface{}{roomID}, args...)...).Scan(&exists); err != nil {
		return false, fmt.Errorf("failed to check active reservations: %w", err)
	}
	return exists, nil
}

func insertReservation(ctx context.Context, q querier, r *models.Reservation) error {
	now := time.Now()
	result, err := q.ExecContext(ctx, `INSERT INTO reservations (
				room_id, customer_id, check_in, check_out, guests,
				total_amount, notes, status, created_at, updated_at
			) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		r.RoomID, r.CustomerID,
		r.CheckIn.Format(models.DateLayout), r.CheckOut.Format(models.DateLayout),
		r.Guests, r.TotalAmount, r.Notes, r.Status, now, now,
	)
	if err != nil {
		return fmt.Errorf("failed to insert reservation: %w", err)
	}

	id, err := result.LastInsertId()
	if err != nil {
		return fmt.Errorf("failed to get last insert id: %w", err)
	}
	r.ID = id
	r.CreatedAt = now
	r.UpdatedAt = now
	return nil
}

func updateReservation(ctx context.Context, q querier, id int64, upd models.ReservationUpdate) error {
	set := []string{"status = ?", "updated_at = ?"}
	args := []interface{}{upd.Status, time.Now()}
	if upd.Notes != nil {
		set = append(set, "notes = ?")
		args = append(args, *upd.Notes)
	}
	args = append(args, id)

	result, err := q.ExecContext(ctx, `UPDATE reservations SET `+strings.Join(set, ", ")+` WHERE id = ?`, args...)
	if err != nil {
		return fmt.Errorf("failed to update reservation: %w", err)
	}
	rows, _ := result.RowsAffected()
	if rows == 0 {
		return domain.NotFound("reservation", id)
	}
	return nil
}

func (db *DB) GetReservation(ctx context.Context, id int64) (*models.Reservation, error) {
	r, err := getReservation(ctx, db, id)
	if err != nil {
		return nil, fmt.Errorf("failed to get reservation: %w", err)
	}
	return r, nil
}

// ListReservations returns matching reservations, newest first.
func (db *DB) ListReservations(ctx context.Context, filter models.ReservationFilter) ([]*models.Reservation, error) {
	var where []string
	var args []interface{}

	if filter.CustomerID != 0 {
		where = append(where, "customer_id = ?")
		args = append(args, filter.CustomerID)
	}
	if filter.RoomID != 0 {
		where = append(where, "room_id = ?")
		args = append(args, filter.RoomID)
	}
	if filter.Status != "" {
		where = append(where, "status = ?")
		args = append(args, filter.Status)
	}

	query := `SELECT ` + reservationColumns + ` FROM reservations`
	if len(where) > 0 {
		query += ` WHERE ` + strings.Join(where, " AND ")
	}
	query += ` ORDER BY created_at DESC, id DESC`

	rows, err := db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to list reservations: %w", err)
	}
	return collectReservations(rows)
}

// GetReservationsByDateRange returns reservations whose stay intersects
// [from, to], both inclusive, ordered by check-in.
func (db *DB) GetReservationsByDateRange(ctx context.Context, from, to time.Time) ([]*models.Reservation, error) {
	query := `SELECT ` + reservationColumns + ` FROM reservations
              WHERE check_in <= ? AND check_out > ?
              ORDER BY check_in ASC, room_id ASC`
	rows, err := db.QueryContext(ctx, query, to.Format(models.DateLayout), from.Format(models.DateLayout))
	if err != nil {
		return nil, fmt.Errorf("failed to get reservations by date range: %w", err)
	}
	return collectReservations(rows)
}
