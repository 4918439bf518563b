/*
errors.go - Error taxonomy for the booking core

PURPOSE:
  Every business-rule and validation failure carries a stable
  machine-readable code that survives to the HTTP boundary unchanged.
  Storage-level unique-constraint races are reclassified here into
  domain errors - they must never surface as generic 500s.

ERROR CATEGORIES:
  Validation:     E_RES_TIME (bad interval, or cancel after start)
  Not found:      E_RES_NOT_FOUND, E_EXPERT_NOT_FOUND
  Business rule:  E_CREDIT_LACK, E_OUT_OF_HOURS, E_ALREADY_REVIEWED
  Concurrency:    E_RES_CONFLICT (409, carries alternative slots)
  Authorization:  E_FORBIDDEN

USAGE:
  Handlers match with errors.As on *booking.Error to pick the HTTP
  status, or errors.Is against the sentinel values below.
*/
package booking

import (
	"errors"
	"fmt"
)

// Stable error codes returned to callers.
const (
	CodeResTime         = "E_RES_TIME"
	CodeResNotFound     = "E_RES_NOT_FOUND"
	CodeExpertNotFound  = "E_EXPERT_NOT_FOUND"
	CodeCreditLack      = "E_CREDIT_LACK"
	CodeOutOfHours      = "E_OUT_OF_HOURS"
	CodeAlreadyReviewed = "E_ALREADY_REVIEWED"
	CodeResConflict     = "E_RES_CONFLICT"
	CodeForbidden       = "E_FORBIDDEN"
)

// =============================================================================
// SENTINEL ERRORS - Use with errors.Is()
// =============================================================================

var (
	// ErrInvalidInterval is returned when endAt is not after startAt, or
	// when cancellation is attempted at or after the session start.
	ErrInvalidInterval = errors.New("invalid reservation interval")

	// ErrReservationNotFound is returned when no reservation matches the
	// given display id.
	ErrReservationNotFound = errors.New("reservation not found")

	// ErrExpertNotFound is returned when the expert id has no profile.
	ErrExpertNotFound = errors.New("expert not found")

	// ErrInsufficientCredit is returned when the user's balance cannot
	// cover the reservation cost.
	ErrInsufficientCredit = errors.New("insufficient credit")

	// ErrOutOfHours is returned when the slot falls outside every active
	// availability window for the expert on that weekday.
	ErrOutOfHours = errors.New("slot outside expert availability")

	// ErrAlreadyReviewed is returned when approve/reject is attempted on
	// a reservation that is no longer PENDING.
	ErrAlreadyReviewed = errors.New("reservation already reviewed")

	// ErrSlotConflict is returned when the slot overlaps a non-terminal
	// reservation for the same expert. Expected under concurrent booking.
	ErrSlotConflict = errors.New("time slot already reserved")

	// ErrForbidden is returned when the caller does not own the
	// reservation they are acting on.
	ErrForbidden = errors.New("not allowed for this reservation")
)

// =============================================================================
// STRUCTURED ERRORS - Carry additional context
// =============================================================================

// Error is a coded domain error. Code is stable; Message is advisory.
type Error struct {
	Code    string
	Message string
	err     error
}

func (e *Error) Error() string { return fmt.Sprintf("%s: %s", e.Code, e.Message) }
func (e *Error) Unwrap() error { return e.err }

func newError(code, message string, sentinel error) *Error {
	return &Error{Code: code, Message: message, err: sentinel}
}

// CreditLackError reports the shortfall so the caller can prompt a top-up.
type CreditLackError struct {
	Required  int64
	Available int64
}

func (e *CreditLackError) Error() string {
	return fmt.Sprintf("%s: need %d credits, have %d (short %d)",
		CodeCreditLack, e.Required, e.Available, e.Shortfall())
}

func (e *CreditLackError) Unwrap() error    { return ErrInsufficientCredit }
func (e *CreditLackError) Shortfall() int64 { return e.Required - e.Available }

// ConflictError reports the reservation that won the slot plus nearby free
// slots computed as a convenience for the client.
type ConflictError struct {
	Conflicting  *Slot
	Alternatives []Slot
}

func (e *ConflictError) Error() string {
	return fmt.Sprintf("%s: time slot already reserved", CodeResConflict)
}

func (e *ConflictError) Unwrap() error { return ErrSlotConflict }

// CodeOf maps any booking error to its stable code, or "" for unknown
// errors (which the HTTP layer treats as internal).
func CodeOf(err error) string {
	var coded *Error
	if errors.As(err, &coded) {
		return coded.Code
	}
	switch {
	case errors.Is(err, ErrInvalidInterval):
		return CodeResTime
	case errors.Is(err, ErrReservationNotFound):
		return CodeResNotFound
	case errors.Is(err, ErrExpertNotFound):
		return CodeExpertNotFound
	case errors.Is(err, ErrInsufficientCredit):
		return CodeCreditLack
	case errors.Is(err, ErrOutOfHours):
		return CodeOutOfHours
	case errors.Is(err, ErrAlreadyReviewed):
		return CodeAlreadyReviewed
	case errors.Is(err, ErrSlotConflict):
		return CodeResConflict
	case errors.Is(err, ErrForbidden):
		return CodeForbidden
	}
	return ""
}
