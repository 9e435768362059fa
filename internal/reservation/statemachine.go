package reservation

import (
	"context"
	"fmt"

	"guestms/internal/domain"
	"guestms/internal/models"
)

var transitions = map[string][]string{
	models.StatusPending:    {models.StatusConfirmed, models.StatusCanceled},
	models.StatusConfirmed:  {models.StatusCheckedIn, models.StatusCanceled},
	models.StatusCheckedIn:  {models.StatusCheckedOut},
	models.StatusCheckedOut: nil,
	models.StatusCanceled:   nil,
}

// CanTransition reports whether from -> to is legal. Staying in the same
// status is always legal.
func CanTransition(from, to string) bool {
	if from == to {
		return models.IsValidStatus(to)
	}
	for _, next := range transitions[from] {
		if next == to {
			return true
		}
	}
	return false
}

// NextStatuses lists the statuses reachable from status in one step.
func NextStatuses(status string) []string {
	return append([]string(nil), transitions[status]...)
}

// Store is the slice of the transactional store the state machine writes to.
type Store interface {
	UpdateReservation(ctx context.Context, id int64, upd models.ReservationUpdate) error
	HasActiveReservations(ctx context.Context, roomID int64) (bool, error)
	SetRoomReserved(ctx context.Context, roomID int64, reserved bool) (bool, error)
}

// Transition moves res to upd.Status, persists it and reconciles the room
// flag. res is updated in place. changed is false for a self-transition that
// carries no notes change; nothing is written in that case.
func Transition(ctx context.Context, store Store, res *models.Reservation, upd models.ReservationUpdate) (changed bool, err error) {
	if !CanTransition(res.Status, upd.Status) {
		return false, &domain.TransitionError{From: res.Status, To: upd.Status}
	}

	notesChanged := upd.Notes != nil && *upd.Notes != res.Notes
	if res.Status == upd.Status && !notesChanged {
		return false, nil
	}

	if err := store.UpdateReservation(ctx, res.ID, upd); err != nil {
		return false, domain.Persistence("update reservation", err)
	}

	from := res.Status
	res.Status = upd.Status
	if upd.Notes != nil {
		res.Notes = *upd.Notes
	}

	if from != res.Status {
		if _, err := Reconcile(ctx, store, res.RoomID); err != nil {
			return false, err
		}
	}
	return true, nil
}

// Reconcile recomputes room.reserved: true iff any reservation on the room is
// active. It is the only writer of the flag.
func Reconcile(ctx context.Context, store Store, roomID int64) (bool, error) {
	active, err := store.HasActiveReservations(ctx, roomID)
	if err != nil {
		return false, domain.Persistence(fmt.Sprintf("check active reservations of room %d", roomID), err)
	}
	changed, err := store.SetRoomReserved(ctx, roomID, active)
	if err != nil {
		return false, domain.Persistence(fmt.Sprintf("set reserved flag of room %d", roomID), err)
	}
	return changed, nil
}
