package errs

import (
	"errors"
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestCode(t *testing.T) {
	assert.Equal(t, "", Code(nil))
	assert.Equal(t, "insufficient_funds", Code(Op("debit", "u1", ErrInsufficientFunds)))
	assert.Equal(t, "storage_fault", Code(fmt.Errorf("%w: disk", ErrStorageFault)))
	assert.Equal(t, "reconciliation_failure", Code(fmt.Errorf("%w: %w", ErrReconciliation, ErrStorageFault)))
	assert.Equal(t, "internal_error", Code(errors.New("boom")))
}

func TestOpError(t *testing.T) {
	err := Op("get_wallet", "u1", ErrNotFound)
	assert.EqualError(t, err, "get_wallet u1: not found")
	assert.ErrorIs(t, err, ErrNotFound)

	var op *OpError
	assert.True(t, errors.As(err, &op))
	assert.Equal(t, "u1", op.UserID)

	assert.Nil(t, Op("x", "y", nil))
}

func TestIsValidation(t *testing.T) {
	assert.True(t, IsValidation(ErrSelfTransfer))
	assert.True(t, IsValidation(Op("send", "a", ErrNotFound)))
	assert.False(t, IsValidation(ErrInsufficientFunds))
	assert.False(t, IsValidation(ErrTimeout))
}

func TestFromCodeRoundTrip(t *testing.T) {
	for _, err := range []error{ErrNotFound, ErrInsufficientFunds, ErrTimeout, ErrStorageFault, ErrReconciliation} {
		assert.ErrorIs(t, FromCode(Code(err)), err)
	}
	assert.ErrorIs(t, FromCode("something_new"), ErrStorageFault)
}
