/*
dto.go - Request/response data structures for the HTTP API

All timestamps cross the wire as RFC 3339. Credits are whole integers.
Error responses share one envelope:

  {"error": {"code": "E_RES_CONFLICT", "message": "...", ...}}

with the stable codes defined in the booking package.
*/
package api

import (
	"time"

	"github.com/warp/booking-engine/booking"
	"github.com/warp/booking-engine/ledger"
)

// =============================================================================
// REQUESTS
// =============================================================================

type CreateReservationRequest struct {
	UserID   int64  `json:"userId"`
	ExpertID int64  `json:"expertId"`
	StartAt  string `json:"startAt"`
	EndAt    string `json:"endAt"`
	Note     string `json:"note,omitempty"`
}

type ApproveRequest struct {
	ExpertID int64 `json:"expertId"`
}

type RejectRequest struct {
	ExpertID int64  `json:"expertId"`
	Reason   string `json:"reason,omitempty"`
}

type CancelRequest struct {
	UserID int64 `json:"userId"`
}

type TopUpRequest struct {
	UserID int64  `json:"userId"`
	Amount int64  `json:"amount"`
	RefID  string `json:"refId,omitempty"`
	Reason string `json:"reason,omitempty"`
}

type CreateExpertRequest struct {
	Name          string `json:"name"`
	RatePerMinute int64  `json:"ratePerMinute"`
}

type AvailabilityRequest struct {
	DayOfWeek int    `json:"dayOfWeek"` // 0=Sunday .. 6=Saturday
	StartTime string `json:"startTime"` // "HH:MM"
	EndTime   string `json:"endTime"`
	IsActive  *bool  `json:"isActive,omitempty"` // default true
}

// =============================================================================
// RESPONSES
// =============================================================================

type ReservationDTO struct {
	DisplayID    string `json:"displayId"`
	UserID       int64  `json:"userId"`
	ExpertID     int64  `json:"expertId"`
	StartAt      string `json:"startAt"`
	EndAt        string `json:"endAt"`
	Cost         int64  `json:"cost"`
	Status       string `json:"status"`
	Note         string `json:"note,omitempty"`
	ConfirmedAt  string `json:"confirmedAt,omitempty"`
	CanceledAt   string `json:"canceledAt,omitempty"`
	CancelReason string `json:"cancelReason,omitempty"`
	RefundAmount int64  `json:"refundAmount"`
	CreatedAt    string `json:"createdAt"`
}

type CancelResponseDTO struct {
	ReservationDTO
	RefundRate int `json:"refundRate"`
}

type HistoryDTO struct {
	FromStatus string `json:"fromStatus,omitempty"`
	ToStatus   string `json:"toStatus"`
	ChangedBy  int64  `json:"changedBy"`
	Reason     string `json:"reason,omitempty"`
	CreatedAt  string `json:"createdAt"`
}

type BalanceDTO struct {
	UserID  int64 `json:"userId"`
	Balance int64 `json:"balance"`
}

type CreditTransactionDTO struct {
	Amount    int64  `json:"amount"`
	Reason    string `json:"reason"`
	RefID     string `json:"refId,omitempty"`
	CreatedAt string `json:"createdAt"`
}

type ExpertDTO struct {
	ID            int64  `json:"id"`
	Name          string `json:"name"`
	RatePerMinute int64  `json:"ratePerMinute"`
}

// ErrorBody is the error envelope payload.
type ErrorBody struct {
	Code    string `json:"code"`
	Message string `json:"message"`

	// E_CREDIT_LACK detail: how many credits the top-up needs to cover.
	Shortfall *int64 `json:"shortfall,omitempty"`

	// E_RES_CONFLICT detail.
	Conflicting  *booking.Slot  `json:"conflicting,omitempty"`
	Alternatives []booking.Slot `json:"alternatives,omitempty"`
}

type ErrorResponse struct {
	Error ErrorBody `json:"error"`
}

// =============================================================================
// MAPPERS
// =============================================================================

func toReservationDTO(r *booking.Reservation) ReservationDTO {
	dto := ReservationDTO{
		DisplayID:    r.DisplayID,
		UserID:       r.UserID,
		ExpertID:     r.ExpertID,
		StartAt:      r.StartAt.UTC().Format(time.RFC3339),
		EndAt:        r.EndAt.UTC().Format(time.RFC3339),
		Cost:         r.Cost,
		Status:       string(r.Status),
		Note:         r.Note,
		CancelReason: r.CancelReason,
		RefundAmount: r.RefundAmount,
		CreatedAt:    r.CreatedAt.UTC().Format(time.RFC3339),
	}
	if r.ConfirmedAt != nil {
		dto.ConfirmedAt = r.ConfirmedAt.UTC().Format(time.RFC3339)
	}
	if r.CanceledAt != nil {
		dto.CanceledAt = r.CanceledAt.UTC().Format(time.RFC3339)
	}
	return dto
}

func toHistoryDTO(h booking.HistoryEntry) HistoryDTO {
	return HistoryDTO{
		FromStatus: string(h.FromStatus),
		ToStatus:   string(h.ToStatus),
		ChangedBy:  h.ChangedBy,
		Reason:     h.Reason,
		CreatedAt:  h.CreatedAt.UTC().Format(time.RFC3339),
	}
}

func toCreditTransactionDTO(tx ledger.Transaction) CreditTransactionDTO {
	return CreditTransactionDTO{
		Amount:    tx.Amount,
		Reason:    tx.Reason,
		RefID:     tx.RefID,
		CreatedAt: tx.CreatedAt.UTC().Format(time.RFC3339),
	}
}
