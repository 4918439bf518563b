package api_test

import (
	"bytes"
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/warp/booking-engine/api"
	"github.com/warp/booking-engine/booking"
	"github.com/warp/booking-engine/ledger"
	"github.com/warp/booking-engine/store/sqlite"
)

// =============================================================================
// TEST SETUP
// =============================================================================

// Monday 2026-03-02; the test clock sits 30 hours earlier so cancellations
// land in the full-refund tier unless a test moves it.
var (
	slotStart = time.Date(2026, time.March, 2, 10, 0, 0, 0, time.UTC)
	slotEnd   = slotStart.Add(time.Hour)
	testClock = slotStart.Add(-30 * time.Hour)
)

type testAPI struct {
	router  http.Handler
	service *booking.Service
}

func newTestAPI(t *testing.T) *testAPI {
	store, err := sqlite.New(":memory:")
	require.NoError(t, err)
	t.Cleanup(func() { store.Close() })

	log := zap.NewNop()
	l := ledger.New(store)
	svc := booking.NewService(store, l, nil, log)
	svc.Now = func() time.Time { return testClock }

	handler := api.NewHandler(svc, l, store, log)
	router := api.NewRouter(handler, api.NewMemoryKeyStore(0), log)
	return &testAPI{router: router, service: svc}
}

func (a *testAPI) do(t *testing.T, method, path string, body any, headers map[string]string) *httptest.ResponseRecorder {
	t.Helper()

	var buf bytes.Buffer
	if body != nil {
		require.NoError(t, json.NewEncoder(&buf).Encode(body))
	}
	req := httptest.NewRequest(method, path, &buf)
	req.Header.Set("Content-Type", "application/json")
	for k, v := range headers {
		req.Header.Set(k, v)
	}
	rec := httptest.NewRecorder()
	a.router.ServeHTTP(rec, req)
	return rec
}

func decode[T any](t *testing.T, rec *httptest.ResponseRecorder) T {
	t.Helper()
	var v T
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &v))
	return v
}

// seedExpert creates an expert at 10/min with Monday 09:00-17:00 hours.
func (a *testAPI) seedExpert(t *testing.T) int64 {
	t.Helper()

	rec := a.do(t, http.MethodPost, "/api/experts",
		api.CreateExpertRequest{Name: "Dr. Chen", RatePerMinute: 10}, nil)
	require.Equal(t, http.StatusCreated, rec.Code)
	expert := decode[api.ExpertDTO](t, rec)

	rec = a.do(t, http.MethodPost, fmt.Sprintf("/api/experts/%d/availability", expert.ID),
		api.AvailabilityRequest{DayOfWeek: 1, StartTime: "09:00", EndTime: "17:00"}, nil)
	require.Equal(t, http.StatusCreated, rec.Code)
	return expert.ID
}

func (a *testAPI) topUp(t *testing.T, userID, amount int64) {
	t.Helper()
	rec := a.do(t, http.MethodPost, "/api/credits/topup",
		api.TopUpRequest{UserID: userID, Amount: amount}, nil)
	require.Equal(t, http.StatusCreated, rec.Code)
}

func (a *testAPI) book(t *testing.T, userID, expertID int64, key string) *httptest.ResponseRecorder {
	t.Helper()
	return a.do(t, http.MethodPost, "/api/reservations",
		api.CreateReservationRequest{
			UserID:   userID,
			ExpertID: expertID,
			StartAt:  slotStart.Format(time.RFC3339),
			EndAt:    slotEnd.Format(time.RFC3339),
		},
		map[string]string{api.IdempotencyHeader: key})
}

// =============================================================================
// BOOKING FLOW TESTS
// =============================================================================

func TestAPI_BookApproveCancelFlow(t *testing.T) {
	a := newTestAPI(t)
	expertID := a.seedExpert(t)
	a.topUp(t, 1, 1000)

	// Book: 60 min at 10/min debits 600.
	rec := a.book(t, 1, expertID, "flow-key-000001")
	require.Equal(t, http.StatusCreated, rec.Code)
	res := decode[api.ReservationDTO](t, rec)
	assert.Equal(t, "PENDING", res.Status)
	assert.Equal(t, int64(600), res.Cost)

	rec = a.do(t, http.MethodGet, "/api/credits/balance?userId=1", nil, nil)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, int64(400), decode[api.BalanceDTO](t, rec).Balance)

	// Approve.
	rec = a.do(t, http.MethodPost, "/api/reservations/"+res.DisplayID+"/approve",
		api.ApproveRequest{ExpertID: expertID}, nil)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "CONFIRMED", decode[api.ReservationDTO](t, rec).Status)

	// Cancel outside the 24h window: full refund.
	rec = a.do(t, http.MethodDelete, "/api/reservations/"+res.DisplayID+"?userId=1", nil, nil)
	require.Equal(t, http.StatusOK, rec.Code)
	canceled := decode[api.CancelResponseDTO](t, rec)
	assert.Equal(t, "CANCELED", canceled.Status)
	assert.Equal(t, 100, canceled.RefundRate)
	assert.Equal(t, int64(600), canceled.RefundAmount)

	rec = a.do(t, http.MethodGet, "/api/credits/balance?userId=1", nil, nil)
	assert.Equal(t, int64(1000), decode[api.BalanceDTO](t, rec).Balance)

	// Full paper trail: topup, debit, refund.
	rec = a.do(t, http.MethodGet, "/api/credits/transactions?userId=1", nil, nil)
	require.Equal(t, http.StatusOK, rec.Code)
	txs := decode[[]api.CreditTransactionDTO](t, rec)
	require.Len(t, txs, 3)
	assert.Equal(t, ledger.ReasonTopUp, txs[0].Reason)
	assert.Equal(t, ledger.ReasonUseReservation, txs[1].Reason)
	assert.Equal(t, ledger.ReasonRefund, txs[2].Reason)

	// History shows every transition.
	rec = a.do(t, http.MethodGet, "/api/reservations/"+res.DisplayID+"/history", nil, nil)
	require.Equal(t, http.StatusOK, rec.Code)
	history := decode[[]api.HistoryDTO](t, rec)
	require.Len(t, history, 3)
	assert.Equal(t, "PENDING", history[0].ToStatus)
	assert.Equal(t, "CONFIRMED", history[1].ToStatus)
	assert.Equal(t, "CANCELED", history[2].ToStatus)
}

func TestAPI_DuplicateBooking_Replayed(t *testing.T) {
	// GIVEN: A booked reservation under an idempotency key
	// WHEN: The identical request retries with the same key
	// THEN: The original response replays; no second reservation or debit

	a := newTestAPI(t)
	expertID := a.seedExpert(t)
	a.topUp(t, 1, 1000)

	first := a.book(t, 1, expertID, "retry-key-00001")
	require.Equal(t, http.StatusCreated, first.Code)

	second := a.book(t, 1, expertID, "retry-key-00001")
	require.Equal(t, http.StatusCreated, second.Code)
	assert.Equal(t, "true", second.Header().Get("Idempotency-Replayed"))
	assert.Equal(t,
		decode[api.ReservationDTO](t, first).DisplayID,
		decode[api.ReservationDTO](t, second).DisplayID)

	rec := a.do(t, http.MethodGet, "/api/credits/balance?userId=1", nil, nil)
	assert.Equal(t, int64(400), decode[api.BalanceDTO](t, rec).Balance, "debited once")
}

func TestAPI_BookingWithoutKey_Rejected(t *testing.T) {
	a := newTestAPI(t)
	expertID := a.seedExpert(t)
	a.topUp(t, 1, 1000)

	rec := a.do(t, http.MethodPost, "/api/reservations",
		api.CreateReservationRequest{
			UserID:   1,
			ExpertID: expertID,
			StartAt:  slotStart.Format(time.RFC3339),
			EndAt:    slotEnd.Format(time.RFC3339),
		}, nil)
	assert.Equal(t, http.StatusBadRequest, rec.Code)
	assert.Equal(t, api.CodeIdempotencyKey, errorCode(t, rec.Body.Bytes()))
}

// =============================================================================
// ERROR MAPPING TESTS
// =============================================================================

func TestAPI_ConflictCarriesAlternatives(t *testing.T) {
	a := newTestAPI(t)
	expertID := a.seedExpert(t)
	a.topUp(t, 1, 1000)
	a.topUp(t, 2, 1000)

	require.Equal(t, http.StatusCreated, a.book(t, 1, expertID, "winner-key-0001").Code)

	rec := a.book(t, 2, expertID, "loser-key-00001")
	require.Equal(t, http.StatusConflict, rec.Code)

	resp := decode[api.ErrorResponse](t, rec)
	assert.Equal(t, booking.CodeResConflict, resp.Error.Code)
	require.NotNil(t, resp.Error.Conflicting)
	assert.Equal(t, slotStart, resp.Error.Conflicting.StartAt.UTC())
	assert.NotEmpty(t, resp.Error.Alternatives)
}

func TestAPI_CreditLackCarriesShortfall(t *testing.T) {
	a := newTestAPI(t)
	expertID := a.seedExpert(t)
	a.topUp(t, 1, 500)

	rec := a.book(t, 1, expertID, "poor-key-000001")
	require.Equal(t, http.StatusUnprocessableEntity, rec.Code)

	resp := decode[api.ErrorResponse](t, rec)
	assert.Equal(t, booking.CodeCreditLack, resp.Error.Code)
	require.NotNil(t, resp.Error.Shortfall)
	assert.Equal(t, int64(100), *resp.Error.Shortfall)
}

func TestAPI_UnknownReservation_404(t *testing.T) {
	a := newTestAPI(t)

	rec := a.do(t, http.MethodGet, "/api/reservations/no-such-id", nil, nil)
	assert.Equal(t, http.StatusNotFound, rec.Code)
	assert.Equal(t, booking.CodeResNotFound, errorCode(t, rec.Body.Bytes()))
}

func TestAPI_UnknownExpert_404(t *testing.T) {
	a := newTestAPI(t)

	rec := a.do(t, http.MethodGet, "/api/experts/42", nil, nil)
	assert.Equal(t, http.StatusNotFound, rec.Code)
	assert.Equal(t, booking.CodeExpertNotFound, errorCode(t, rec.Body.Bytes()))
}

func TestAPI_TopUpValidation(t *testing.T) {
	a := newTestAPI(t)

	tests := []struct {
		name string
		req  api.TopUpRequest
	}{
		{"missing user", api.TopUpRequest{Amount: 100}},
		{"zero amount", api.TopUpRequest{UserID: 1}},
		{"negative amount", api.TopUpRequest{UserID: 1, Amount: -5}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			rec := a.do(t, http.MethodPost, "/api/credits/topup", tt.req, nil)
			assert.Equal(t, http.StatusBadRequest, rec.Code)
		})
	}
}

func TestAPI_TopUpWithRefID_IsRetryable(t *testing.T) {
	a := newTestAPI(t)

	req := api.TopUpRequest{UserID: 1, Amount: 250, RefID: "invoice-77"}
	for i := 0; i < 2; i++ {
		rec := a.do(t, http.MethodPost, "/api/credits/topup", req, nil)
		require.Equal(t, http.StatusCreated, rec.Code)
	}

	rec := a.do(t, http.MethodGet, "/api/credits/balance?userId=1", nil, nil)
	assert.Equal(t, int64(250), decode[api.BalanceDTO](t, rec).Balance)
}

func TestAPI_ListReservations_RequiresAFilter(t *testing.T) {
	a := newTestAPI(t)

	rec := a.do(t, http.MethodGet, "/api/reservations", nil, nil)
	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestAPI_ListReservationsByUserAndExpert(t *testing.T) {
	a := newTestAPI(t)
	expertID := a.seedExpert(t)
	a.topUp(t, 1, 1000)

	require.Equal(t, http.StatusCreated, a.book(t, 1, expertID, "list-key-000001").Code)

	rec := a.do(t, http.MethodGet, "/api/reservations?userId=1", nil, nil)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Len(t, decode[[]api.ReservationDTO](t, rec), 1)

	rec = a.do(t, http.MethodGet, fmt.Sprintf("/api/reservations?expertId=%d", expertID), nil, nil)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Len(t, decode[[]api.ReservationDTO](t, rec), 1)
}
