/*
handlers.go - HTTP handlers

PURPOSE:
  Translates HTTP requests into booking/ledger operations and domain
  errors into the stable error envelope. No business logic lives here;
  handlers decode, delegate, encode.

ERROR MAPPING:
  E_RES_TIME, E_OUT_OF_HOURS, E_IDEMPOTENCY_KEY    400
  E_FORBIDDEN                                      403
  E_RES_NOT_FOUND, E_EXPERT_NOT_FOUND              404
  E_ALREADY_REVIEWED, E_RES_CONFLICT               409
  E_CREDIT_LACK                                    422
  anything uncoded                                 500

SEE ALSO:
  - dto.go: request/response shapes
  - server.go: route wiring
*/
package api

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"strconv"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/warp/booking-engine/booking"
	"github.com/warp/booking-engine/ledger"
)

// ExpertStore is the seed/admin surface for expert profiles. The booking
// core reads experts through its own Store; these writes exist so the
// engine runs standalone without the upstream profile service.
type ExpertStore interface {
	SaveExpert(ctx context.Context, e *booking.Expert) error
	GetExpert(ctx context.Context, expertID int64) (*booking.Expert, error)
	SaveAvailability(ctx context.Context, w *booking.AvailabilityWindow) error
}

// Handler holds the dependencies for all HTTP handlers.
type Handler struct {
	service *booking.Service
	ledger  *ledger.Ledger
	experts ExpertStore
	log     *zap.Logger
}

func NewHandler(service *booking.Service, l *ledger.Ledger, experts ExpertStore, log *zap.Logger) *Handler {
	if log == nil {
		log = zap.NewNop()
	}
	return &Handler{service: service, ledger: l, experts: experts, log: log}
}

// =============================================================================
// RESERVATIONS
// =============================================================================

func (h *Handler) CreateReservation(w http.ResponseWriter, r *http.Request) {
	var req CreateReservationRequest
	if err := decodeJSON(r, &req); err != nil {
		respondBadRequest(w, err.Error())
		return
	}
	startAt, err := parseRFC3339("startAt", req.StartAt)
	if err != nil {
		respondBadRequest(w, err.Error())
		return
	}
	endAt, err := parseRFC3339("endAt", req.EndAt)
	if err != nil {
		respondBadRequest(w, err.Error())
		return
	}

	res, err := h.service.Create(r.Context(), booking.CreateParams{
		UserID:   req.UserID,
		ExpertID: req.ExpertID,
		StartAt:  startAt,
		EndAt:    endAt,
		Note:     req.Note,
	})
	if err != nil {
		h.respondError(w, err)
		return
	}
	respondJSON(w, http.StatusCreated, toReservationDTO(res))
}

func (h *Handler) GetReservation(w http.ResponseWriter, r *http.Request) {
	res, err := h.service.Get(r.Context(), chi.URLParam(r, "displayId"))
	if err != nil {
		h.respondError(w, err)
		return
	}
	respondJSON(w, http.StatusOK, toReservationDTO(res))
}

func (h *Handler) ListReservations(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()

	if v := q.Get("userId"); v != "" {
		userID, err := strconv.ParseInt(v, 10, 64)
		if err != nil {
			respondBadRequest(w, "userId must be an integer")
			return
		}
		list, err := h.service.ListByUser(r.Context(), userID, q.Get("includeCanceled") == "true")
		if err != nil {
			h.respondError(w, err)
			return
		}
		respondReservationList(w, list)
		return
	}

	if v := q.Get("expertId"); v != "" {
		expertID, err := strconv.ParseInt(v, 10, 64)
		if err != nil {
			respondBadRequest(w, "expertId must be an integer")
			return
		}
		list, err := h.service.ListByExpert(r.Context(), expertID)
		if err != nil {
			h.respondError(w, err)
			return
		}
		respondReservationList(w, list)
		return
	}

	respondBadRequest(w, "userId or expertId query parameter is required")
}

func (h *Handler) GetHistory(w http.ResponseWriter, r *http.Request) {
	entries, err := h.service.History(r.Context(), chi.URLParam(r, "displayId"))
	if err != nil {
		h.respondError(w, err)
		return
	}
	out := make([]HistoryDTO, 0, len(entries))
	for _, e := range entries {
		out = append(out, toHistoryDTO(e))
	}
	respondJSON(w, http.StatusOK, out)
}

func (h *Handler) ApproveReservation(w http.ResponseWriter, r *http.Request) {
	var req ApproveRequest
	if err := decodeJSON(r, &req); err != nil {
		respondBadRequest(w, err.Error())
		return
	}
	res, err := h.service.Approve(r.Context(), chi.URLParam(r, "displayId"), req.ExpertID)
	if err != nil {
		h.respondError(w, err)
		return
	}
	respondJSON(w, http.StatusOK, toReservationDTO(res))
}

func (h *Handler) RejectReservation(w http.ResponseWriter, r *http.Request) {
	var req RejectRequest
	if err := decodeJSON(r, &req); err != nil {
		respondBadRequest(w, err.Error())
		return
	}
	res, err := h.service.Reject(r.Context(), chi.URLParam(r, "displayId"), req.ExpertID, req.Reason)
	if err != nil {
		h.respondError(w, err)
		return
	}
	respondJSON(w, http.StatusOK, toReservationDTO(res))
}

// CancelReservation accepts the acting user either in the JSON body or as
// a userId query parameter (DELETE bodies are legal but awkward for some
// clients).
func (h *Handler) CancelReservation(w http.ResponseWriter, r *http.Request) {
	var req CancelRequest
	if r.Body != nil && r.ContentLength != 0 {
		if err := decodeJSON(r, &req); err != nil {
			respondBadRequest(w, err.Error())
			return
		}
	}
	if req.UserID == 0 {
		if v := r.URL.Query().Get("userId"); v != "" {
			userID, err := strconv.ParseInt(v, 10, 64)
			if err != nil {
				respondBadRequest(w, "userId must be an integer")
				return
			}
			req.UserID = userID
		}
	}
	if req.UserID == 0 {
		respondBadRequest(w, "userId is required")
		return
	}

	result, err := h.service.Cancel(r.Context(), chi.URLParam(r, "displayId"), req.UserID)
	if err != nil {
		h.respondError(w, err)
		return
	}
	respondJSON(w, http.StatusOK, CancelResponseDTO{
		ReservationDTO: toReservationDTO(result.Reservation),
		RefundRate:     result.RefundRate,
	})
}

// =============================================================================
// CREDITS
// =============================================================================

func (h *Handler) GetBalance(w http.ResponseWriter, r *http.Request) {
	userID, ok := queryUserID(w, r)
	if !ok {
		return
	}
	balance, err := h.ledger.Balance(r.Context(), userID)
	if err != nil {
		h.respondError(w, err)
		return
	}
	respondJSON(w, http.StatusOK, BalanceDTO{UserID: userID, Balance: balance})
}

func (h *Handler) ListTransactions(w http.ResponseWriter, r *http.Request) {
	userID, ok := queryUserID(w, r)
	if !ok {
		return
	}
	txs, err := h.ledger.Transactions(r.Context(), userID)
	if err != nil {
		h.respondError(w, err)
		return
	}
	out := make([]CreditTransactionDTO, 0, len(txs))
	for _, tx := range txs {
		out = append(out, toCreditTransactionDTO(tx))
	}
	respondJSON(w, http.StatusOK, out)
}

// TopUp records a funding credit. A caller-supplied refId makes the
// top-up retryable; without one each call mints a fresh transaction.
func (h *Handler) TopUp(w http.ResponseWriter, r *http.Request) {
	var req TopUpRequest
	if err := decodeJSON(r, &req); err != nil {
		respondBadRequest(w, err.Error())
		return
	}
	if req.UserID == 0 {
		respondBadRequest(w, "userId is required")
		return
	}
	if req.Amount <= 0 {
		respondBadRequest(w, "amount must be positive")
		return
	}
	refID := req.RefID
	if refID == "" {
		refID = "topup:" + uuid.NewString()
	}
	reason := ledger.ReasonTopUp
	if req.Reason != "" {
		reason = req.Reason
	}

	if err := h.ledger.Record(r.Context(), req.UserID, req.Amount, reason, refID); err != nil {
		h.respondError(w, err)
		return
	}
	balance, err := h.ledger.Balance(r.Context(), req.UserID)
	if err != nil {
		h.respondError(w, err)
		return
	}
	respondJSON(w, http.StatusCreated, BalanceDTO{UserID: req.UserID, Balance: balance})
}

// =============================================================================
// EXPERTS (seed/admin)
// =============================================================================

func (h *Handler) CreateExpert(w http.ResponseWriter, r *http.Request) {
	var req CreateExpertRequest
	if err := decodeJSON(r, &req); err != nil {
		respondBadRequest(w, err.Error())
		return
	}
	if req.Name == "" {
		respondBadRequest(w, "name is required")
		return
	}
	if req.RatePerMinute <= 0 {
		respondBadRequest(w, "ratePerMinute must be positive")
		return
	}

	expert := &booking.Expert{Name: req.Name, RatePerMinute: req.RatePerMinute}
	if err := h.experts.SaveExpert(r.Context(), expert); err != nil {
		h.respondError(w, err)
		return
	}
	respondJSON(w, http.StatusCreated, ExpertDTO{
		ID:            expert.ID,
		Name:          expert.Name,
		RatePerMinute: expert.RatePerMinute,
	})
}

func (h *Handler) GetExpert(w http.ResponseWriter, r *http.Request) {
	expertID, err := strconv.ParseInt(chi.URLParam(r, "id"), 10, 64)
	if err != nil {
		respondBadRequest(w, "expert id must be an integer")
		return
	}
	expert, err := h.experts.GetExpert(r.Context(), expertID)
	if err != nil {
		h.respondError(w, err)
		return
	}
	if expert == nil {
		writeErrorBody(w, http.StatusNotFound, ErrorBody{
			Code:    booking.CodeExpertNotFound,
			Message: "expert not found",
		})
		return
	}
	respondJSON(w, http.StatusOK, ExpertDTO{
		ID:            expert.ID,
		Name:          expert.Name,
		RatePerMinute: expert.RatePerMinute,
	})
}

func (h *Handler) AddAvailability(w http.ResponseWriter, r *http.Request) {
	expertID, err := strconv.ParseInt(chi.URLParam(r, "id"), 10, 64)
	if err != nil {
		respondBadRequest(w, "expert id must be an integer")
		return
	}
	var req AvailabilityRequest
	if err := decodeJSON(r, &req); err != nil {
		respondBadRequest(w, err.Error())
		return
	}
	if req.DayOfWeek < 0 || req.DayOfWeek > 6 {
		respondBadRequest(w, "dayOfWeek must be 0 (Sunday) through 6 (Saturday)")
		return
	}
	if !validClock(req.StartTime) || !validClock(req.EndTime) {
		respondBadRequest(w, "startTime and endTime must be HH:MM")
		return
	}

	expert, err := h.experts.GetExpert(r.Context(), expertID)
	if err != nil {
		h.respondError(w, err)
		return
	}
	if expert == nil {
		writeErrorBody(w, http.StatusNotFound, ErrorBody{
			Code:    booking.CodeExpertNotFound,
			Message: "expert not found",
		})
		return
	}

	active := true
	if req.IsActive != nil {
		active = *req.IsActive
	}
	window := &booking.AvailabilityWindow{
		ExpertID:  expertID,
		DayOfWeek: time.Weekday(req.DayOfWeek),
		StartTime: req.StartTime,
		EndTime:   req.EndTime,
		IsActive:  active,
	}
	if err := h.experts.SaveAvailability(r.Context(), window); err != nil {
		h.respondError(w, err)
		return
	}
	respondJSON(w, http.StatusCreated, map[string]int64{"id": window.ID})
}

// =============================================================================
// RESPONSE HELPERS
// =============================================================================

func respondJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(v)
}

func respondReservationList(w http.ResponseWriter, list []booking.Reservation) {
	out := make([]ReservationDTO, 0, len(list))
	for i := range list {
		out = append(out, toReservationDTO(&list[i]))
	}
	respondJSON(w, http.StatusOK, out)
}

func respondBadRequest(w http.ResponseWriter, message string) {
	writeErrorBody(w, http.StatusBadRequest, ErrorBody{
		Code:    "E_BAD_REQUEST",
		Message: message,
	})
}

func writeErrorBody(w http.ResponseWriter, status int, body ErrorBody) {
	respondJSON(w, status, ErrorResponse{Error: body})
}

// respondError maps a domain error to the envelope and an HTTP status.
func (h *Handler) respondError(w http.ResponseWriter, err error) {
	body := ErrorBody{Code: booking.CodeOf(err), Message: err.Error()}

	var coded *booking.Error
	if errors.As(err, &coded) {
		body.Message = coded.Message
	}
	var lack *booking.CreditLackError
	if errors.As(err, &lack) {
		shortfall := lack.Shortfall()
		body.Shortfall = &shortfall
		body.Message = fmt.Sprintf("insufficient credit: need %d, have %d", lack.Required, lack.Available)
	}
	var conflict *booking.ConflictError
	if errors.As(err, &conflict) {
		body.Conflicting = conflict.Conflicting
		body.Alternatives = conflict.Alternatives
		body.Message = "time slot already reserved"
	}

	status := statusOf(body.Code)
	if status == http.StatusInternalServerError {
		h.log.Error("internal error", zap.Error(err))
		body.Code = "E_INTERNAL"
		body.Message = "internal server error"
	}
	writeErrorBody(w, status, body)
}

func statusOf(code string) int {
	switch code {
	case booking.CodeResTime, booking.CodeOutOfHours:
		return http.StatusBadRequest
	case booking.CodeForbidden:
		return http.StatusForbidden
	case booking.CodeResNotFound, booking.CodeExpertNotFound:
		return http.StatusNotFound
	case booking.CodeAlreadyReviewed, booking.CodeResConflict:
		return http.StatusConflict
	case booking.CodeCreditLack:
		return http.StatusUnprocessableEntity
	}
	return http.StatusInternalServerError
}

// =============================================================================
// REQUEST HELPERS
// =============================================================================

func decodeJSON(r *http.Request, v any) error {
	if err := json.NewDecoder(r.Body).Decode(v); err != nil {
		return fmt.Errorf("invalid JSON body: %w", err)
	}
	return nil
}

func parseRFC3339(field, value string) (time.Time, error) {
	t, err := time.Parse(time.RFC3339, value)
	if err != nil {
		return time.Time{}, fmt.Errorf("%s must be an RFC 3339 timestamp", field)
	}
	return t.UTC(), nil
}

func queryUserID(w http.ResponseWriter, r *http.Request) (int64, bool) {
	v := r.URL.Query().Get("userId")
	if v == "" {
		respondBadRequest(w, "userId query parameter is required")
		return 0, false
	}
	userID, err := strconv.ParseInt(v, 10, 64)
	if err != nil {
		respondBadRequest(w, "userId must be an integer")
		return 0, false
	}
	return userID, true
}

func validClock(v string) bool {
	var hh, mm int
	if _, err := fmt.Sscanf(v, "%d:%d", &hh, &mm); err != nil {
		return false
	}
	return hh >= 0 && hh <= 23 && mm >= 0 && mm <= 59
}
