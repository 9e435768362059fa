package models

import (
	"time"

	"github.com/shopspring/decimal"
)

type Reservation struct {
	ID          int64           `json:"id"`
	RoomID      int64           `json:"room_id"`
	CustomerID  int64           `json:"customer_id"`
	CheckIn     time.Time       `json:"check_in"`
	CheckOut    time.Time       `json:"check_out"`
	Guests      int             `json:"guests"`
	TotalAmount decimal.Decimal `json:"total_amount"`
	Notes       string          `json:"notes"`
	Status      string          `json:"status"`
	CreatedAt   time.Time       `json:"created_at"`
	UpdatedAt   time.Time       `json:"updated_at"`
}

// Nights is the length of stay in whole days, never negative.
func (r *Reservation) Nights() int {
	return NightsBetween(r.CheckIn, r.CheckOut)
}

// Overlaps reports whether r intersects the half-open range [checkIn, checkOut).
func (r *Reservation) Overlaps(checkIn, checkOut time.Time) bool {
	return r.CheckIn.Before(checkOut) && r.CheckOut.After(checkIn)
}

// ReservationUpdate enumerates what a status update may change.
type ReservationUpdate struct {
	Status string
	Notes  *string
}

// ReservationFilter narrows reservation listings. Zero values mean "any".
type ReservationFilter struct {
	CustomerID int64
	RoomID     int64
	Status     string
}

// NewReservation is the create request accepted by the reservation service.
type NewReservation struct {
	RoomID     int64
	CustomerID int64
	CheckIn    time.Time
	CheckOut   time.Time
	Guests     int
	Notes      string
}

// DateOnly truncates t to midnight UTC of its calendar date.
func DateOnly(t time.Time) time.Time {
	y, m, d := t.Date()
	return time.Date(y, m, d, 0, 0, 0, 0, time.UTC)
}

// ParseDate parses a YYYY-MM-DD date.
func ParseDate(s string) (time.Time, error) {
	return time.Parse(DateLayout, s)
}

// NightsBetween counts calendar days between two dates, floored at zero.
func NightsBetween(checkIn, checkOut time.Time) int {
	n := int(DateOnly(checkOut).Sub(DateOnly(checkIn)).Hours() / 24)
	if n < 0 {
		return 0
	}
	return n
}

// StayTotal is nights multiplied by the nightly rate.
func StayTotal(checkIn, checkOut time.Time, rate decimal.Decimal) decimal.Decimal {
	return rate.Mul(decimal.NewFromInt(int64(NightsBetween(checkIn, checkOut))))
}
