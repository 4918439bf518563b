/*
Package booking contains the reservation core: the reservation state
machine, the availability/conflict checks that guard slot creation, and
the refund policy applied on rejection and cancellation.

KEY CONCEPTS IN THIS FILE (types.go):
  - Reservation: the booking record, owned exclusively by the Service
  - ReservationStatus: PENDING -> CONFIRMED/REJECTED/CANCELED lifecycle
  - HistoryEntry: immutable audit row written on every status change
  - Expert / AvailabilityWindow: read-only collaborator data used to
    price and validate a proposed slot

DESIGN PRINCIPLES:
  1. Credits are whole integers; arithmetic that can round (cost, refund)
     goes through decimal to keep the rounding rule explicit.
  2. Terminal states (REJECTED, CANCELED) are immutable except for the
     refund bookkeeping fields set in the same transaction.
  3. Every status change appends a HistoryEntry; history is never
     mutated or deleted.

SEE ALSO:
  - service.go: lifecycle operations (Create/Approve/Reject/Cancel)
  - availability.go: slot validation and conflict detection
  - refund.go: refund policy
*/
package booking

import "time"

// =============================================================================
// RESERVATION - The booking record
// =============================================================================

type ReservationStatus string

const (
	StatusPending   ReservationStatus = "PENDING"
	StatusConfirmed ReservationStatus = "CONFIRMED"
	StatusRejected  ReservationStatus = "REJECTED"
	StatusCanceled  ReservationStatus = "CANCELED"
)

// Terminal reports whether the status admits no further transitions.
// CONFIRMED is not terminal: a confirmed reservation can still be canceled
// by the client until it starts.
func (s ReservationStatus) Terminal() bool {
	return s == StatusRejected || s == StatusCanceled
}

// Reservation is a booked consultation slot. ID is the internal primary
// key; DisplayID is the public opaque identifier used on the wire and as
// the base of ledger refIDs.
type Reservation struct {
	ID        int64
	DisplayID string
	UserID    int64
	ExpertID  int64
	StartAt   time.Time
	EndAt     time.Time

	// Cost in whole credits: ceil(duration minutes) * expert rate.
	Cost int64

	Status ReservationStatus
	Note   string

	ConfirmedAt  *time.Time
	CanceledAt   *time.Time
	CanceledBy   int64
	CancelReason string
	RefundAmount int64

	CreatedAt time.Time
	UpdatedAt time.Time
}

// Slot is a proposed [start, end) interval, used for conflict reporting
// and alternative-slot suggestions.
type Slot struct {
	StartAt time.Time `json:"startAt"`
	EndAt   time.Time `json:"endAt"`
}

// Overlaps applies the half-open interval test: two slots conflict when
// existing.start < end AND existing.end > start. Back-to-back slots
// (one ends exactly when the other starts) do not conflict.
func (s Slot) Overlaps(start, end time.Time) bool {
	return s.StartAt.Before(end) && s.EndAt.After(start)
}

// =============================================================================
// HISTORY - Append-only audit trail
// =============================================================================

// ChangedBySystem marks transitions not attributable to a user or expert.
const ChangedBySystem int64 = 0

// HistoryEntry records a single status transition. Entries are written in
// the same database transaction as the transition itself and never change.
type HistoryEntry struct {
	ID            int64
	ReservationID int64
	FromStatus    ReservationStatus
	ToStatus      ReservationStatus
	ChangedBy     int64
	Reason        string
	CreatedAt     time.Time
}

// =============================================================================
// EXPERT PROFILE - Read-only collaborator data
// =============================================================================

// Expert carries the subset of the expert profile the booking core reads:
// the per-minute rate used for pricing. The profile itself is owned by the
// expert-profile collaborator and is never mutated on the booking path.
type Expert struct {
	ID            int64
	Name          string
	RatePerMinute int64
	CreatedAt     time.Time
}

// AvailabilityWindow is one recurring weekly open-hours window.
// StartTime/EndTime are "HH:MM" local clock strings, matching how the
// profile service stores them.
type AvailabilityWindow struct {
	ID        int64
	ExpertID  int64
	DayOfWeek time.Weekday
	StartTime string
	EndTime   string
	IsActive  bool
}
