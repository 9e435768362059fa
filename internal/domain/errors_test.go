package domain

import (
	"errors"
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestValidationError(t *testing.T) {
	err := error(&ValidationError{Rule: RuleCapacityExceeded, Capacity: 2})
	wrapped := fmt.Errorf("create: %w", err)

	assert.ErrorIs(t, wrapped, ErrValidation)
	assert.ErrorIs(t, wrapped, ErrCapacityExceeded)
	assert.NotErrorIs(t, wrapped, ErrRoomUnavailable)
	assert.Contains(t, err.Error(), "capacity 2")

	var verr *ValidationError
	if assert.ErrorAs(t, wrapped, &verr) {
		assert.Equal(t, 2, verr.Capacity)
	}

	custom := Invalid(RuleInvalidGuests, "guests must be at least 1")
	assert.ErrorIs(t, custom, ErrValidation)
	assert.Equal(t, "guests must be at least 1", custom.Error())
}

func TestTransitionError(t *testing.T) {
	err := &TransitionError{From: "checked_out", To: "pending"}
	assert.ErrorIs(t, err, ErrIllegalTransition)
	assert.Equal(t, "cannot change status from checked_out to pending", err.Error())
}

func TestPersistence(t *testing.T) {
	cause := errors.New("disk I/O error")

	err := Persistence("insert reservation", cause)
	assert.ErrorIs(t, err, ErrPersistence)
	assert.ErrorIs(t, err, cause)

	nf := NotFound("room", 4)
	assert.Same(t, nf, Persistence("load room", nf))
	assert.Equal(t, "room 4 not found", nf.Error())
	assert.NoError(t, Persistence("noop", nil))
}
