/*
Package ledger is the append-only credit transaction log.

PURPOSE:
  The ledger is the immutable source of truth for every credit movement:
  top-ups, reservation debits, refunds. A user's balance is always
  computed by summing their transactions - there is no stored "balance"
  field that can drift out of sync.

CRITICAL INVARIANTS:
  1. APPEND-ONLY: no update, no delete. Corrections are new rows.
  2. EXACTLY-ONCE: RefID is unique; a retried write with the same RefID
     stores exactly one row. This invariant is the system-of-record
     guarantee for money movement - it holds even when the HTTP-level
     idempotency cache is lost (restart, multi-instance deployment).
  3. AUDITABLE: every row carries a reason tag tying it to the
     originating operation.

IDEMPOTENT RETRIES:
  Record treats a RefID unique-constraint collision as a successful
  no-op, so callers may retry on timeout or crash without double-charging
  or double-refunding.
*/
package ledger

import (
	"context"
	"errors"
	"fmt"
	"time"
)

// Reason tags for transactions, one per originating operation.
const (
	ReasonUseReservation = "use:reservation"
	ReasonRefund         = "refund:reservation"
	ReasonRefundPartial  = "refund:partial"
	ReasonRefundRejected = "refund:rejected"
	ReasonTopUp          = "topup"
)

// ErrDuplicateRefID is returned by stores when a transaction with the
// same RefID already exists. Record swallows it; it is expected under
// retries and concurrent duplicate requests.
var ErrDuplicateRefID = errors.New("duplicate ledger refId")

// Transaction is one immutable ledger row. Amount is signed: debits are
// negative, credits and refunds positive. RefID ties the row to exactly
// one logical financial event.
type Transaction struct {
	ID        int64
	UserID    int64
	Amount    int64
	Reason    string
	RefID     string
	CreatedAt time.Time
}

// Store is the persistence surface the ledger needs. AppendCredit must
// return ErrDuplicateRefID on a RefID unique-constraint violation.
type Store interface {
	AppendCredit(ctx context.Context, tx Transaction) error
	SumCredits(ctx context.Context, userID int64) (int64, error)
	CreditTransactions(ctx context.Context, userID int64) ([]Transaction, error)
}

// Ledger wraps a Store with the balance and idempotent-record operations.
type Ledger struct {
	store Store
}

func New(store Store) *Ledger {
	return &Ledger{store: store}
}

// Balance returns the sum of all transaction amounts for the user, 0 when
// none exist. Read-only.
func (l *Ledger) Balance(ctx context.Context, userID int64) (int64, error) {
	return l.store.SumCredits(ctx, userID)
}

// Record appends a transaction. A RefID collision with an existing row is
// treated as a successful no-op: the movement already happened.
func (l *Ledger) Record(ctx context.Context, userID, amount int64, reason, refID string) error {
	err := l.store.AppendCredit(ctx, Transaction{
		UserID: userID,
		Amount: amount,
		Reason: reason,
		RefID:  refID,
	})
	if errors.Is(err, ErrDuplicateRefID) {
		return nil
	}
	if err != nil {
		return fmt.Errorf("failed to record credit transaction: %w", err)
	}
	return nil
}

// Transactions returns the user's ledger rows, oldest first.
func (l *Ledger) Transactions(ctx context.Context, userID int64) ([]Transaction, error) {
	return l.store.CreditTransactions(ctx, userID)
}
