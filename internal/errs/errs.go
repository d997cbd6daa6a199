// Package errs holds the engine's error taxonomy.
package errs

import (
	"errors"
	"fmt"
)

var (
	ErrNotFound          = errors.New("not found")
	ErrInvalidAmount     = errors.New("invalid amount")
	ErrInsufficientFunds = errors.New("insufficient funds")
	ErrSelfTransfer      = errors.New("cannot transfer to self")
	ErrTimeout           = errors.New("timed out waiting for wallet lock")
	ErrStorageFault      = errors.New("storage fault")

	ErrReconciliation  = errors.New("reconciliation failure")
	ErrImmutable       = errors.New("transaction already in terminal state")
	ErrAlreadyExists   = errors.New("already exists")
	ErrInvalidArgument = errors.New("invalid argument")
	ErrInProgress      = errors.New("request with this idempotency key is in progress")
)

// OpError ties an error to the operation and wallet owner it happened on.
type OpError struct {
	Op     string
	UserID string
	Err    error
}

func (e *OpError) Error() string {
	if e.UserID == "" {
		return fmt.Sprintf("%s: %v", e.Op, e.Err)
	}
	return fmt.Sprintf("%s %s: %v", e.Op, e.UserID, e.Err)
}

func (e *OpError) Unwrap() error { return e.Err }

func Op(op, userID string, err error) error {
	if err == nil {
		return nil
	}
	return &OpError{Op: op, UserID: userID, Err: err}
}

// Code maps an error to the stable code exposed by the API.
func Code(err error) string {
	switch {
	case err == nil:
		return ""
	case errors.Is(err, ErrNotFound):
		return "not_found"
	case errors.Is(err, ErrInvalidAmount):
		return "invalid_amount"
	case errors.Is(err, ErrInsufficientFunds):
		return "insufficient_funds"
	case errors.Is(err, ErrSelfTransfer):
		return "self_transfer"
	case errors.Is(err, ErrTimeout):
		return "timeout"
	case errors.Is(err, ErrReconciliation):
		return "reconciliation_failure"
	case errors.Is(err, ErrStorageFault):
		return "storage_fault"
	case errors.Is(err, ErrImmutable):
		return "immutable"
	case errors.Is(err, ErrAlreadyExists):
		return "already_exists"
	case errors.Is(err, ErrInvalidArgument):
		return "invalid_argument"
	case errors.Is(err, ErrInProgress):
		return "in_progress"
	}
	return "internal_error"
}

// IsValidation reports errors raised before any mutation.
func IsValidation(err error) bool {
	return errors.Is(err, ErrNotFound) || errors.Is(err, ErrInvalidAmount) ||
		errors.Is(err, ErrSelfTransfer) || errors.Is(err, ErrInvalidArgument)
}

var byCode = map[string]error{
	"not_found":              ErrNotFound,
	"invalid_amount":         ErrInvalidAmount,
	"insufficient_funds":     ErrInsufficientFunds,
	"self_transfer":          ErrSelfTransfer,
	"timeout":                ErrTimeout,
	"reconciliation_failure": ErrReconciliation,
	"storage_fault":          ErrStorageFault,
	"immutable":              ErrImmutable,
	"already_exists":         ErrAlreadyExists,
	"invalid_argument":       ErrInvalidArgument,
	"in_progress":            ErrInProgress,
}

// FromCode is the inverse of Code, used to replay the error stored on a
// failed record. Unknown codes map to ErrStorageFault.
func FromCode(code string) error {
	if err, ok := byCode[code]; ok {
		return err
	}
	return ErrStorageFault
}
