// Package reservation holds the booking rules: the create-time validator and
// the status state machine with its room flag reconciliation.
package reservation

import (
	"time"

	"guestms/internal/domain"
	"guestms/internal/models"
)

// Validate checks a booking request against the room and the reservations
// already holding it. Checks run in order and stop at the first failure:
// date range, capacity, overlap. existing may contain inactive reservations;
// they are ignored.
func Validate(room *models.Room, checkIn, checkOut time.Time, guests int, existing []*models.Reservation) error {
	if !checkIn.Before(checkOut) {
		return &domain.ValidationError{Rule: domain.RuleInvalidDateRange}
	}

	if guests > room.Capacity {
		return &domain.ValidationError{Rule: domain.RuleCapacityExceeded, Capacity: room.Capacity}
	}

	for _, r := range existing {
		if r.RoomID != room.ID || !models.IsActiveStatus(r.Status) {
			continue
		}
		if r.Overlaps(checkIn, checkOut) {
			return &domain.ValidationError{Rule: domain.RuleRoomUnavailable}
		}
	}

	return nil
}

// StayLimits bounds how long and how far ahead a stay may be booked.
// Zero disables a limit.
type StayLimits struct {
	MaxNights      int
	MaxAdvanceDays int
}

// Check applies the limits relative to today.
func (l StayLimits) Check(checkIn, checkOut, today time.Time) error {
	if l.MaxNights > 0 && models.NightsBetween(checkIn, checkOut) > l.MaxNights {
		return domain.Invalid(domain.RuleInvalidDateRange, "stay is longer than the allowed number of nights")
	}
	if l.MaxAdvanceDays > 0 && checkIn.After(models.DateOnly(today).AddDate(0, 0, l.MaxAdvanceDays)) {
		return domain.Invalid(domain.RuleInvalidDateRange, "check-in is too far in the future")
	}
	return nil
}
