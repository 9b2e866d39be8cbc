package points

import (
	"errors"
	"fmt"
)

var (
	ErrInsufficientPoints = errors.New("insufficient points")
	ErrAccountNotFound    = errors.New("points account not found")
	ErrAccountExists      = errors.New("points account already exists")
	ErrInvalidAmount      = errors.New("points amount must be a positive integer")
	ErrLedgerUnavailable  = errors.New("points ledger unavailable")
)

// InsufficientError carries the balance seen when a debit was refused.
type InsufficientError struct {
	Current  int64
	Required int64
}

func (e *InsufficientError) Error() string {
	return fmt.Sprintf("insufficient points: have %d, need %d", e.Current, e.Required)
}

func (e *InsufficientError) Is(target error) bool { return target == ErrInsufficientPoints }

// isOutcome reports errors that are answers, not storage failures.
func isOutcome(err error) bool {
	return errors.Is(err, ErrInsufficientPoints) ||
		errors.Is(err, ErrAccountNotFound) ||
		errors.Is(err, ErrAccountExists) ||
		errors.Is(err, ErrInvalidAmount)
}
