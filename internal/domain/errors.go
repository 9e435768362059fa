package domain

import (
	"errors"
	"fmt"
)

var (
	ErrNotFound          = errors.New("not found")
	ErrValidation        = errors.New("validation failed")
	ErrIllegalTransition = errors.New("illegal status transition")
	ErrPersistence       = errors.New("persistence failure")
	ErrRoomInUse         = errors.New("room has reservations")
	ErrRateLimited       = errors.New("rate limit exceeded")
	ErrConflict          = errors.New("conflict")

	ErrInvalidDateRange = errors.New("check-in must be before check-out")
	ErrCapacityExceeded = errors.New("guests exceed room capacity")
	ErrRoomUnavailable  = errors.New("room is not available for the selected dates")
)

// Validation rules.
const (
	RuleInvalidDateRange = "invalid_date_range"
	RuleCapacityExceeded = "capacity_exceeded"
	RuleRoomUnavailable  = "room_unavailable"
	RuleInvalidGuests    = "invalid_guests"
	RuleRoomInactive     = "room_inactive"
	RuleInvalidInput     = "invalid_input"
)

var ruleSentinels = map[string]error{
	RuleInvalidDateRange: ErrInvalidDateRange,
	RuleCapacityExceeded: ErrCapacityExceeded,
	RuleRoomUnavailable:  ErrRoomUnavailable,
}

// NotFoundError reports a missing room, customer or reservation.
type NotFoundError struct {
	Entity string
	ID     int64
}

func (e *NotFoundError) Error() string {
	return fmt.Sprintf("%s %d not found", e.Entity, e.ID)
}

func (e *NotFoundError) Is(target error) bool {
	return target == ErrNotFound
}

func NotFound(entity string, id int64) error {
	return &NotFoundError{Entity: entity, ID: id}
}

// ValidationError names the rule a request broke.
type ValidationError struct {
	Rule     string
	Capacity int
	Message  string
}

func (e *ValidationError) Error() string {
	switch {
	case e.Message != "":
		return e.Message
	case e.Rule == RuleCapacityExceeded:
		return fmt.Sprintf("%s (capacity %d)", ErrCapacityExceeded, e.Capacity)
	case ruleSentinels[e.Rule] != nil:
		return ruleSentinels[e.Rule].Error()
	default:
		return fmt.Sprintf("validation failed: %s", e.Rule)
	}
}

func (e *ValidationError) Is(target error) bool {
	if target == ErrValidation {
		return true
	}
	sentinel, ok := ruleSentinels[e.Rule]
	return ok && target == sentinel
}

func Invalid(rule, message string) error {
	return &ValidationError{Rule: rule, Message: message}
}

// TransitionError is returned when the state machine refuses a status change.
type TransitionError struct {
	From string
	To   string
}

func (e *TransitionError) Error() string {
	return fmt.Sprintf("cannot change status from %s to %s", e.From, e.To)
}

func (e *TransitionError) Is(target error) bool {
	return target == ErrIllegalTransition
}

// PersistenceError wraps a store failure that aborted the transaction.
type PersistenceError struct {
	Op  string
	Err error
}

func (e *PersistenceError) Error() string {
	return fmt.Sprintf("%s: %v", e.Op, e.Err)
}

func (e *PersistenceError) Unwrap() error { return e.Err }

func (e *PersistenceError) Is(target error) bool {
	return target == ErrPersistence
}

// Persistence wraps err unless it already belongs to the taxonomy.
func Persistence(op string, err error) error {
	if err == nil {
		return nil
	}
	if IsDomainError(err) {
		return err
	}
	return &PersistenceError{Op: op, Err: err}
}

// IsDomainError reports whether err is already classified.
func IsDomainError(err error) bool {
	for _, target := range []error{ErrNotFound, ErrValidation, ErrIllegalTransition, ErrPersistence, ErrRoomInUse, ErrRateLimited, ErrConflict} {
		if errors.Is(err, target) {
			return true
		}
	}
	return false
}
