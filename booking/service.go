/*
service.go - Reservation state machine

PURPOSE:
  Owns the reservation record and its legal transitions:

    PENDING ──approve──▶ CONFIRMED ──cancel──▶ CANCELED
       │                                          ▲
       ├──reject──▶ REJECTED                      │
       └──────────────cancel──────────────────────┘

  REJECTED and CANCELED are terminal. Rejection refunds the full cost;
  cancellation refunds by time-to-start (refund.go).

ATOMICITY:
  Every mutating operation executes its reservation write, ledger write
  and history row inside one database transaction via Store.WithTx.
  A failure anywhere rolls back everything - a reservation without its
  debit, or a refund without its status change, is never observable.

CONCURRENCY:
  Overlapping booking attempts race at the storage layer, not here. An
  in-transaction overlap re-check arbitrates overlapping slots; the slot
  unique index backstops identical start times. Either failure is
  reclassified into E_RES_CONFLICT with alternative slots attached.
  Status transitions use guarded updates (expected-status WHERE clause),
  so racing approve/reject/cancel calls settle to exactly one winner and
  the refund is written at most once.
  A ledger refId collision during create means a retry of an already
  committed request; the existing reservation is re-read and returned.

SEE ALSO:
  - availability.go: slot validation used by Create
  - refund.go: refund tiers used by Cancel/Reject
  - store/sqlite: the Store/Tx implementation
*/
package booking

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"go.uber.org/zap"

	"github.com/warp/booking-engine/ledger"
	"github.com/warp/booking-engine/notify"
)

// =============================================================================
// STORAGE INTERFACES
// =============================================================================

// Store is the persistence surface of the booking core. Implementations
// must reclassify unique-constraint violations: the slot index into
// ErrSlotConflict, the ledger ref_id index into ledger.ErrDuplicateRefID.
type Store interface {
	GetExpert(ctx context.Context, expertID int64) (*Expert, error)
	Availability(ctx context.Context, expertID int64, day time.Weekday) ([]AvailabilityWindow, error)

	GetReservation(ctx context.Context, displayID string) (*Reservation, error)
	// FindConflict returns a non-terminal reservation for the expert whose
	// interval overlaps [start, end), or nil.
	FindConflict(ctx context.Context, expertID int64, start, end time.Time) (*Reservation, error)
	// BusySlots returns the occupied intervals for the expert within
	// [from, to), used for alternative-slot suggestions.
	BusySlots(ctx context.Context, expertID int64, from, to time.Time) ([]Slot, error)

	ListByUser(ctx context.Context, userID int64, includeCanceled bool) ([]Reservation, error)
	ListByExpert(ctx context.Context, expertID int64) ([]Reservation, error)
	History(ctx context.Context, reservationID int64) ([]HistoryEntry, error)

	// WithTx runs fn inside a single database transaction; fn's writes are
	// applied all-or-nothing.
	WithTx(ctx context.Context, fn func(tx Tx) error) error
}

// Tx is the write surface available inside a transaction.
// UpdateReservation is a guarded transition: it only applies when the
// row still holds the expected from status, and returns
// ErrAlreadyReviewed otherwise. FindConflict re-runs the overlap query
// against the transaction's view so overlapping creates that both passed
// the pre-check cannot both commit.
type Tx interface {
	InsertReservation(ctx context.Context, r *Reservation) error
	UpdateReservation(ctx context.Context, r *Reservation, from ReservationStatus) error
	FindConflict(ctx context.Context, expertID int64, start, end time.Time) (*Reservation, error)
	AppendCredit(ctx context.Context, tx ledger.Transaction) error
	AppendHistory(ctx context.Context, h HistoryEntry) error
}

// =============================================================================
// SERVICE
// =============================================================================

// Service drives the reservation lifecycle.
type Service struct {
	store    Store
	ledger   *ledger.Ledger
	notifier notify.Notifier
	log      *zap.Logger

	// Now is the clock; overridable in tests.
	Now func() time.Time
}

func NewService(store Store, l *ledger.Ledger, n notify.Notifier, log *zap.Logger) *Service {
	if n == nil {
		n = notify.NopNotifier{}
	}
	if log == nil {
		log = zap.NewNop()
	}
	return &Service{store: store, ledger: l, notifier: n, log: log, Now: time.Now}
}

// CreateParams are the client inputs for a new reservation.
type CreateParams struct {
	UserID   int64
	ExpertID int64
	StartAt  time.Time
	EndAt    time.Time
	Note     string
}

// Create books a slot: validates the interval, prices it from the expert
// rate, checks balance, availability and conflicts, then atomically
// inserts the PENDING reservation and the ledger debit (refId = display
// id). The debit holds the funds until approve/reject/cancel settles.
func (s *Service) Create(ctx context.Context, p CreateParams) (*Reservation, error) {
	if !p.EndAt.After(p.StartAt) {
		return nil, newError(CodeResTime, "endAt must be after startAt", ErrInvalidInterval)
	}

	expert, err := s.store.GetExpert(ctx, p.ExpertID)
	if err != nil {
		return nil, fmt.Errorf("failed to load expert: %w", err)
	}
	if expert == nil {
		return nil, newError(CodeExpertNotFound, "expert not found", ErrExpertNotFound)
	}

	cost := Cost(p.StartAt, p.EndAt, expert.RatePerMinute)

	balance, err := s.ledger.Balance(ctx, p.UserID)
	if err != nil {
		return nil, fmt.Errorf("failed to read balance: %w", err)
	}
	if balance < cost {
		return nil, &CreditLackError{Required: cost, Available: balance}
	}

	windows, err := s.store.Availability(ctx, p.ExpertID, p.StartAt.Weekday())
	if err != nil {
		return nil, fmt.Errorf("failed to load availability: %w", err)
	}
	if err := ValidateSlot(windows, p.StartAt, p.EndAt); err != nil {
		return nil, err
	}

	if conflict, err := s.store.FindConflict(ctx, p.ExpertID, p.StartAt, p.EndAt); err != nil {
		return nil, fmt.Errorf("failed to check conflicts: %w", err)
	} else if conflict != nil {
		return nil, s.conflictError(ctx, p.ExpertID, windows, conflict, p.StartAt, p.EndAt)
	}

	now := s.Now().UTC()
	res := &Reservation{
		DisplayID: uuid.NewString(),
		UserID:    p.UserID,
		ExpertID:  p.ExpertID,
		StartAt:   p.StartAt,
		EndAt:     p.EndAt,
		Cost:      cost,
		Status:    StatusPending,
		Note:      p.Note,
		CreatedAt: now,
		UpdatedAt: now,
	}

	var txConflict *Reservation
	err = s.store.WithTx(ctx, func(tx Tx) error {
		// Re-check inside the transaction: another create may have taken an
		// overlapping slot between the pre-check and this point, and the
		// slot index only catches identical start times.
		conflict, err := tx.FindConflict(ctx, p.ExpertID, p.StartAt, p.EndAt)
		if err != nil {
			return err
		}
		if conflict != nil {
			txConflict = conflict
			return ErrSlotConflict
		}
		if err := tx.InsertReservation(ctx, res); err != nil {
			return err
		}
		if err := tx.AppendCredit(ctx, ledger.Transaction{
			UserID: p.UserID,
			Amount: -cost,
			Reason: ledger.ReasonUseReservation,
			RefID:  res.DisplayID,
		}); err != nil {
			return err
		}
		return tx.AppendHistory(ctx, HistoryEntry{
			ReservationID: res.ID,
			ToStatus:      StatusPending,
			ChangedBy:     p.UserID,
			Reason:        "reservation created",
		})
	})
	if err != nil {
		// The race losers surface here: another request took the slot, or
		// this is a storage-level retry of a create that already committed.
		if errors.Is(err, ErrSlotConflict) {
			return nil, s.conflictError(ctx, p.ExpertID, windows, txConflict, p.StartAt, p.EndAt)
		}
		if errors.Is(err, ledger.ErrDuplicateRefID) {
			existing, lookupErr := s.store.GetReservation(ctx, res.DisplayID)
			if lookupErr == nil && existing != nil {
				return existing, nil
			}
		}
		return nil, err
	}

	s.log.Info("reservation created",
		zap.String("displayId", res.DisplayID),
		zap.Int64("userId", res.UserID),
		zap.Int64("expertId", res.ExpertID),
		zap.Int64("cost", res.Cost))
	s.emit("created", res, 0)
	return res, nil
}

// Approve confirms a PENDING reservation. Only the reservation's expert
// may approve; funds stay held, so there is no ledger effect.
func (s *Service) Approve(ctx context.Context, displayID string, expertID int64) (*Reservation, error) {
	res, err := s.getForExpert(ctx, displayID, expertID)
	if err != nil {
		return nil, err
	}
	if res.Status != StatusPending {
		return nil, s.alreadyReviewed(res)
	}

	now := s.Now().UTC()
	from := res.Status
	res.Status = StatusConfirmed
	res.ConfirmedAt = &now
	res.UpdatedAt = now

	err = s.store.WithTx(ctx, func(tx Tx) error {
		if err := tx.UpdateReservation(ctx, res, from); err != nil {
			return err
		}
		return tx.AppendHistory(ctx, HistoryEntry{
			ReservationID: res.ID,
			FromStatus:    from,
			ToStatus:      StatusConfirmed,
			ChangedBy:     expertID,
			Reason:        "expert approved the reservation",
		})
	})
	if err != nil {
		if errors.Is(err, ErrAlreadyReviewed) {
			return nil, s.staleReview(ctx, displayID)
		}
		return nil, err
	}

	s.log.Info("reservation confirmed", zap.String("displayId", res.DisplayID))
	s.emit("confirmed", res, 0)
	return res, nil
}

// Reject declines a PENDING reservation and refunds the full cost
// (rejection is not the client's fault). The refund ledger row uses
// refId displayId+":reject" so a retried reject cannot refund twice.
func (s *Service) Reject(ctx context.Context, displayID string, expertID int64, reason string) (*Reservation, error) {
	res, err := s.getForExpert(ctx, displayID, expertID)
	if err != nil {
		return nil, err
	}
	if res.Status != StatusPending {
		return nil, s.alreadyReviewed(res)
	}
	if reason == "" {
		reason = "expert rejected the reservation"
	}

	refund := FullRefund(res.Cost)
	now := s.Now().UTC()
	from := res.Status
	res.Status = StatusRejected
	res.CancelReason = reason
	res.CanceledAt = &now
	res.CanceledBy = expertID
	res.RefundAmount = refund.Amount
	res.UpdatedAt = now

	err = s.store.WithTx(ctx, func(tx Tx) error {
		if err := tx.UpdateReservation(ctx, res, from); err != nil {
			return err
		}
		if refund.Amount > 0 {
			err := tx.AppendCredit(ctx, ledger.Transaction{
				UserID: res.UserID,
				Amount: refund.Amount,
				Reason: ledger.ReasonRefundRejected,
				RefID:  res.DisplayID + ":reject",
			})
			if err != nil && !errors.Is(err, ledger.ErrDuplicateRefID) {
				return err
			}
		}
		return tx.AppendHistory(ctx, HistoryEntry{
			ReservationID: res.ID,
			FromStatus:    from,
			ToStatus:      StatusRejected,
			ChangedBy:     expertID,
			Reason:        reason,
		})
	})
	if err != nil {
		if errors.Is(err, ErrAlreadyReviewed) {
			return nil, s.staleReview(ctx, displayID)
		}
		return nil, err
	}

	s.log.Info("reservation rejected",
		zap.String("displayId", res.DisplayID),
		zap.Int64("refundAmount", refund.Amount))
	s.emit("rejected", res, refund.Amount)
	return res, nil
}

// CancelResult is the client-facing outcome of a cancellation.
type CancelResult struct {
	Reservation  *Reservation
	RefundAmount int64
	RefundRate   int
}

// Cancel cancels a PENDING or CONFIRMED reservation on behalf of its
// owner. The refund follows time-to-start regardless of whether the
// reservation was previously confirmed. Canceling an already-CANCELED
// reservation is a no-op returning the current state with zero refund.
func (s *Service) Cancel(ctx context.Context, displayID string, userID int64) (*CancelResult, error) {
	res, err := s.store.GetReservation(ctx, displayID)
	if err != nil {
		return nil, fmt.Errorf("failed to load reservation: %w", err)
	}
	if res == nil {
		return nil, newError(CodeResNotFound, "reservation not found", ErrReservationNotFound)
	}
	if res.UserID != userID {
		return nil, newError(CodeForbidden, "only the booking client may cancel", ErrForbidden)
	}
	if res.Status == StatusCanceled {
		return &CancelResult{Reservation: res}, nil
	}
	if res.Status == StatusRejected {
		return nil, s.alreadyReviewed(res)
	}

	now := s.Now().UTC()
	refund, err := RefundAt(now, res.StartAt, res.Cost)
	if err != nil {
		return nil, err
	}

	reason := "canceled by client (full refund)"
	refundReason := ledger.ReasonRefund
	if refund.Rate < 100 {
		reason = fmt.Sprintf("canceled by client within %s of start (%d%% refund)",
			CancellationWindow, refund.Rate)
		refundReason = ledger.ReasonRefundPartial
	}

	from := res.Status
	res.Status = StatusCanceled
	res.CancelReason = reason
	res.CanceledAt = &now
	res.CanceledBy = userID
	res.RefundAmount = refund.Amount
	res.UpdatedAt = now

	err = s.store.WithTx(ctx, func(tx Tx) error {
		if err := tx.UpdateReservation(ctx, res, from); err != nil {
			return err
		}
		if refund.Amount > 0 {
			err := tx.AppendCredit(ctx, ledger.Transaction{
				UserID: res.UserID,
				Amount: refund.Amount,
				Reason: refundReason,
				RefID:  res.DisplayID + ":cancel",
			})
			if err != nil && !errors.Is(err, ledger.ErrDuplicateRefID) {
				return err
			}
		}
		return tx.AppendHistory(ctx, HistoryEntry{
			ReservationID: res.ID,
			FromStatus:    from,
			ToStatus:      StatusCanceled,
			ChangedBy:     userID,
			Reason:        reason,
		})
	})
	if err != nil {
		if errors.Is(err, ErrAlreadyReviewed) {
			// Lost a race against another transition. A concurrent cancel
			// stays idempotent; anything else is a review conflict.
			current, lookupErr := s.store.GetReservation(ctx, displayID)
			if lookupErr == nil && current != nil && current.Status == StatusCanceled {
				return &CancelResult{Reservation: current}, nil
			}
			return nil, s.staleReview(ctx, displayID)
		}
		return nil, err
	}

	s.log.Info("reservation canceled",
		zap.String("displayId", res.DisplayID),
		zap.Int64("refundAmount", refund.Amount),
		zap.Int("refundRate", refund.Rate))
	s.emit("canceled", res, refund.Amount)
	return &CancelResult{Reservation: res, RefundAmount: refund.Amount, RefundRate: refund.Rate}, nil
}

// =============================================================================
// READ OPERATIONS
// =============================================================================

// Get returns a reservation by display id.
func (s *Service) Get(ctx context.Context, displayID string) (*Reservation, error) {
	res, err := s.store.GetReservation(ctx, displayID)
	if err != nil {
		return nil, err
	}
	if res == nil {
		return nil, newError(CodeResNotFound, "reservation not found", ErrReservationNotFound)
	}
	return res, nil
}

// ListByUser returns the user's reservations, newest first. Canceled
// reservations are excluded unless explicitly requested.
func (s *Service) ListByUser(ctx context.Context, userID int64, includeCanceled bool) ([]Reservation, error) {
	return s.store.ListByUser(ctx, userID, includeCanceled)
}

// ListByExpert returns all reservations targeting the expert.
func (s *Service) ListByExpert(ctx context.Context, expertID int64) ([]Reservation, error) {
	return s.store.ListByExpert(ctx, expertID)
}

// History returns the ordered transition log for a reservation.
func (s *Service) History(ctx context.Context, displayID string) ([]HistoryEntry, error) {
	res, err := s.Get(ctx, displayID)
	if err != nil {
		return nil, err
	}
	return s.store.History(ctx, res.ID)
}

// =============================================================================
// PRICING
// =============================================================================

// Cost prices a slot: ceil of the duration in minutes times the expert's
// per-minute rate. A 61-second slot bills two minutes.
func Cost(start, end time.Time, ratePerMinute int64) int64 {
	minutes := decimal.NewFromFloat(end.Sub(start).Minutes()).Ceil().IntPart()
	if minutes < 0 {
		minutes = 0
	}
	return minutes * ratePerMinute
}

// =============================================================================
// HELPERS
// =============================================================================

func (s *Service) getForExpert(ctx context.Context, displayID string, expertID int64) (*Reservation, error) {
	res, err := s.store.GetReservation(ctx, displayID)
	if err != nil {
		return nil, fmt.Errorf("failed to load reservation: %w", err)
	}
	if res == nil {
		return nil, newError(CodeResNotFound, "reservation not found", ErrReservationNotFound)
	}
	if res.ExpertID != expertID {
		return nil, newError(CodeForbidden, "reservation belongs to another expert", ErrForbidden)
	}
	return res, nil
}

func (s *Service) alreadyReviewed(res *Reservation) error {
	return newError(CodeAlreadyReviewed,
		fmt.Sprintf("reservation is %s, not PENDING", res.Status), ErrAlreadyReviewed)
}

// staleReview builds the E_ALREADY_REVIEWED error after a guarded update
// found the row already moved by a concurrent transition. The re-read
// reports the status that won.
func (s *Service) staleReview(ctx context.Context, displayID string) error {
	current, err := s.store.GetReservation(ctx, displayID)
	if err != nil || current == nil {
		return newError(CodeAlreadyReviewed,
			"reservation is no longer PENDING", ErrAlreadyReviewed)
	}
	return s.alreadyReviewed(current)
}

// conflictError assembles E_RES_CONFLICT with the winning slot (when
// known) and nearby free alternatives. Suggestion failures are ignored:
// alternatives are a convenience, not a correctness requirement.
func (s *Service) conflictError(ctx context.Context, expertID int64, windows []AvailabilityWindow, conflict *Reservation, start, end time.Time) error {
	dayStart := time.Date(start.Year(), start.Month(), start.Day(), 0, 0, 0, 0, start.Location())
	busy, err := s.store.BusySlots(ctx, expertID, dayStart, dayStart.AddDate(0, 0, 1))
	if err != nil {
		busy = nil
	}

	ce := &ConflictError{Alternatives: SuggestAlternatives(windows, busy, start, end)}
	if conflict != nil {
		ce.Conflicting = &Slot{StartAt: conflict.StartAt, EndAt: conflict.EndAt}
	}
	return ce
}

// emit dispatches a notification without awaiting it.
func (s *Service) emit(eventType string, res *Reservation, refund int64) {
	ev := notify.Event{
		Type:         eventType,
		DisplayID:    res.DisplayID,
		UserID:       res.UserID,
		ExpertID:     res.ExpertID,
		StartAt:      res.StartAt,
		EndAt:        res.EndAt,
		Cost:         res.Cost,
		RefundAmount: refund,
	}
	go s.notifier.Notify(ev)
}
