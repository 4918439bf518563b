/*
refund.go - Time-based refund policy

PURPOSE:
  One pure function owns the refund tiers. Rejection and cancellation
  both route through here (rejection forces the 100% tier); no call site
  carries its own breakpoint constants.

POLICY:
  now <= startAt - 24h          -> 100% of cost
  startAt - 24h < now < startAt -> 50% of cost
  now >= startAt                -> cancellation disallowed

  Refund amounts round DOWN to the nearest whole credit.
*/
package booking

import (
	"time"

	"github.com/shopspring/decimal"
)

// CancellationWindow is the cutoff before session start under which a
// cancellation only refunds half the cost.
const CancellationWindow = 24 * time.Hour

// Refund is the outcome of applying the refund policy.
type Refund struct {
	Amount int64
	Rate   int // percent: 0, 50 or 100
}

// RefundAt computes the refund for canceling a reservation of the given
// cost at time now. Returns ErrInvalidInterval once the session has
// started: a running or finished session cannot be canceled.
func RefundAt(now, startAt time.Time, cost int64) (Refund, error) {
	if !now.Before(startAt) {
		return Refund{}, newError(CodeResTime,
			"reservation has already started; cancellation is not allowed",
			ErrInvalidInterval)
	}

	rate := 100
	if now.After(startAt.Add(-CancellationWindow)) {
		rate = 50
	}
	return Refund{Amount: refundAmount(cost, rate), Rate: rate}, nil
}

// FullRefund is the rejection path: rejection is not the client's fault,
// so the whole cost comes back regardless of time-to-start.
func FullRefund(cost int64) Refund {
	return Refund{Amount: cost, Rate: 100}
}

func refundAmount(cost int64, rate int) int64 {
	return decimal.NewFromInt(cost).
		Mul(decimal.NewFromInt(int64(rate))).
		Div(decimal.NewFromInt(100)).
		Floor().
		IntPart()
}
