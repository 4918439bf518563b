/*
Package sqlite provides the SQLite-backed implementation of the booking
and ledger storage interfaces.

INTERFACES IMPLEMENTED:
  booking.Store: reservations, availability, history, transactions
  ledger.Store:  append-only credit transaction log

APPEND-ONLY ENFORCEMENT:
  credit_transactions and reservation_history have no UPDATE or DELETE
  statements anywhere in this package. Corrections are new rows.

RACE ARBITRATION:
  Concurrent writers are arbitrated at three points:
  - idx_unique_active_slot on (expert_id, start_at) for non-terminal
    reservations: the loser of an identical-slot race gets a constraint
    violation, reclassified into booking.ErrSlotConflict.
  - the in-transaction overlap re-check (txStore.FindConflict): catches
    overlapping slots with different start times, which the partial
    index cannot.
  - credit_transactions.ref_id: a retried debit/refund collides and is
    reclassified into ledger.ErrDuplicateRefID, which callers treat as
    an idempotent success.
  Status transitions are guarded UPDATEs (WHERE status = expected); a
  zero-row update surfaces booking.ErrAlreadyReviewed so two racing
  transitions cannot both refund. Violations are never passed through
  as raw driver errors.

WAL MODE:
  SQLite is opened with WAL for better concurrency: readers don't block,
  one writer at a time, better crash recovery. A process-level mutex
  serializes writers; with PostgreSQL the database would do this itself.

USAGE:
  store, err := sqlite.New("./data/booking.db")   // or ":memory:"
  ledger := ledger.New(store)
  svc := booking.NewService(store, ledger, notifier, log)

SEE ALSO:
  - booking/service.go: the Store/Tx interface definitions
  - ledger/ledger.go: the ledger Store definition
*/
package sqlite

import (
	"context"
	"database/sql"
	"fmt"
	"strings"
	"sync"
	"time"

	_ "github.com/mattn/go-sqlite3"

	"github.com/warp/booking-engine/booking"
	"github.com/warp/booking-engine/ledger"
)

// Store implements booking.Store and ledger.Store using SQLite.
type Store struct {
	db *sql.DB
	mu sync.RWMutex
}

// New opens (or creates) the database at dbPath and migrates the schema.
// Use ":memory:" for an in-memory database.
func New(dbPath string) (*Store, error) {
	db, err := sql.Open("sqlite3", dbPath+"?_foreign_keys=on&_journal_mode=WAL")
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}
	// A single connection keeps ":memory:" databases coherent and matches
	// the one-writer model; the mutex serializes access anyway.
	db.SetMaxOpenConns(1)

	store := &Store{db: db}
	if err := store.migrate(); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to migrate database: %w", err)
	}
	return store, nil
}

// Close closes the database connection.
func (s *Store) Close() error {
	return s.db.Close()
}

func (s *Store) migrate() error {
	schema := `
	-- Expert profiles (read-only collaborator data on the booking path)
	CREATE TABLE IF NOT EXISTS experts (
		id INTEGER PRIMARY KEY AUTOINCREMENT,
		name TEXT NOT NULL,
		rate_per_minute INTEGER NOT NULL,
		created_at TEXT NOT NULL
	);

	-- Recurring weekly open-hours windows
	CREATE TABLE IF NOT EXISTS expert_availability (
		id INTEGER PRIMARY KEY AUTOINCREMENT,
		expert_id INTEGER NOT NULL REFERENCES experts(id),
		day_of_week INTEGER NOT NULL,
		start_time TEXT NOT NULL,
		end_time TEXT NOT NULL,
		is_active BOOLEAN NOT NULL DEFAULT TRUE
	);

	CREATE INDEX IF NOT EXISTS idx_availability_expert_day
		ON expert_availability(expert_id, day_of_week);

	-- Reservations
	CREATE TABLE IF NOT EXISTS reservations (
		id INTEGER PRIMARY KEY AUTOINCREMENT,
		display_id TEXT NOT NULL UNIQUE,
		user_id INTEGER NOT NULL,
		expert_id INTEGER NOT NULL,
		start_at TEXT NOT NULL,
		end_at TEXT NOT NULL,
		cost INTEGER NOT NULL,
		status TEXT NOT NULL DEFAULT 'PENDING',
		note TEXT,
		confirmed_at TEXT,
		canceled_at TEXT,
		canceled_by INTEGER,
		cancel_reason TEXT,
		refund_amount INTEGER NOT NULL DEFAULT 0,
		created_at TEXT NOT NULL,
		updated_at TEXT NOT NULL
	);

	CREATE INDEX IF NOT EXISTS idx_reservations_user
		ON reservations(user_id, created_at DESC);
	CREATE INDEX IF NOT EXISTS idx_reservations_expert
		ON reservations(expert_id, start_at);

	-- CRITICAL: concurrent bookings for the same slot race here. Canceled
	-- and rejected reservations leave the index so the slot frees up.
	CREATE UNIQUE INDEX IF NOT EXISTS idx_unique_active_slot
		ON reservations(expert_id, start_at)
		WHERE status IN ('PENDING', 'CONFIRMED');

	-- Credit ledger (append-only)
	CREATE TABLE IF NOT EXISTS credit_transactions (
		id INTEGER PRIMARY KEY AUTOINCREMENT,
		user_id INTEGER NOT NULL,
		amount INTEGER NOT NULL,
		reason TEXT NOT NULL,
		ref_id TEXT UNIQUE,
		created_at TEXT NOT NULL
	);

	CREATE INDEX IF NOT EXISTS idx_credit_tx_user
		ON credit_transactions(user_id, created_at);

	-- Reservation history (append-only audit trail)
	CREATE TABLE IF NOT EXISTS reservation_history (
		id INTEGER PRIMARY KEY AUTOINCREMENT,
		reservation_id INTEGER NOT NULL REFERENCES reservations(id),
		from_status TEXT,
		to_status TEXT NOT NULL,
		changed_by INTEGER NOT NULL,
		reason TEXT,
		created_at TEXT NOT NULL
	);

	CREATE INDEX IF NOT EXISTS idx_history_reservation
		ON reservation_history(reservation_id, created_at);
	`

	_, err := s.db.Exec(schema)
	return err
}

type execer interface {
	ExecContext(ctx context.Context, query string, args ...any) (sql.Result, error)
}

type queryer interface {
	QueryContext(ctx context.Context, query string, args ...any) (*sql.Rows, error)
}

// =============================================================================
// RESERVATIONS (booking.Store / booking.Tx)
// =============================================================================

func (s *Store) insertReservation(ctx context.Context, db execer, r *booking.Reservation) error {
	query := `
		INSERT INTO reservations
		(display_id, user_id, expert_id, start_at, end_at, cost, status, note,
		 refund_amount, created_at, updated_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
	`

	result, err := db.ExecContext(ctx, query,
		r.DisplayID, r.UserID, r.ExpertID,
		formatTime(r.StartAt), formatTime(r.EndAt),
		r.Cost, r.Status, r.Note, r.RefundAmount,
		formatTime(r.CreatedAt), formatTime(r.UpdatedAt),
	)
	if err != nil {
		return classifyUnique(err, "failed to insert reservation")
	}

	id, err := result.LastInsertId()
	if err != nil {
		return fmt.Errorf("failed to read reservation id: %w", err)
	}
	r.ID = id
	return nil
}

// updateReservation applies a status transition guarded by the expected
// current status. When a concurrent transaction already moved the row,
// zero rows match and ErrAlreadyReviewed comes back, so racing
// reject/cancel calls cannot both commit their refunds.
func (s *Store) updateReservation(ctx context.Context, db execer, r *booking.Reservation, from booking.ReservationStatus) error {
	query := `
		UPDATE reservations SET
			status = ?, confirmed_at = ?, canceled_at = ?, canceled_by = ?,
			cancel_reason = ?, refund_amount = ?, updated_at = ?
		WHERE display_id = ? AND status = ?
	`

	result, err := db.ExecContext(ctx, query,
		r.Status,
		formatNullableTime(r.ConfirmedAt),
		formatNullableTime(r.CanceledAt),
		r.CanceledBy, r.CancelReason, r.RefundAmount,
		formatTime(r.UpdatedAt), r.DisplayID, from,
	)
	if err != nil {
		return classifyUnique(err, "failed to update reservation")
	}
	affected, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("failed to read affected rows: %w", err)
	}
	if affected == 0 {
		return fmt.Errorf("reservation %s is no longer %s: %w",
			r.DisplayID, from, booking.ErrAlreadyReviewed)
	}
	return nil
}

const reservationColumns = `
	id, display_id, user_id, expert_id, start_at, end_at, cost, status, note,
	confirmed_at, canceled_at, canceled_by, cancel_reason, refund_amount,
	created_at, updated_at`

// GetReservation returns the reservation with the given display id, or nil.
func (s *Store) GetReservation(ctx context.Context, displayID string) (*booking.Reservation, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	query := `SELECT ` + reservationColumns + ` FROM reservations WHERE display_id = ?`
	reservations, err := s.queryReservations(ctx, s.db, query, displayID)
	if err != nil {
		return nil, err
	}
	if len(reservations) == 0 {
		return nil, nil
	}
	return &reservations[0], nil
}

// FindConflict returns a non-terminal reservation overlapping [start, end)
// for the expert, or nil. Half-open test: existing.start < end AND
// existing.end > start.
func (s *Store) FindConflict(ctx context.Context, expertID int64, start, end time.Time) (*booking.Reservation, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	return s.findConflict(ctx, s.db, expertID, start, end)
}

// findConflict is shared by the lock-free pre-check and the in-transaction
// re-check that arbitrates overlapping slots with different start times
// (the partial unique index only catches identical starts).
func (s *Store) findConflict(ctx context.Context, db queryer, expertID int64, start, end time.Time) (*booking.Reservation, error) {
	query := `
		SELECT ` + reservationColumns + `
		FROM reservations
		WHERE expert_id = ? AND status IN ('PENDING', 'CONFIRMED')
		  AND start_at < ? AND end_at > ?
		ORDER BY start_at ASC
		LIMIT 1
	`

	reservations, err := s.queryReservations(ctx, db, query, expertID, formatTime(end), formatTime(start))
	if err != nil {
		return nil, err
	}
	if len(reservations) == 0 {
		return nil, nil
	}
	return &reservations[0], nil
}

// BusySlots returns occupied intervals for the expert within [from, to).
func (s *Store) BusySlots(ctx context.Context, expertID int64, from, to time.Time) ([]booking.Slot, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	query := `
		SELECT start_at, end_at FROM reservations
		WHERE expert_id = ? AND status IN ('PENDING', 'CONFIRMED')
		  AND start_at < ? AND end_at > ?
		ORDER BY start_at ASC
	`

	rows, err := s.db.QueryContext(ctx, query, expertID, formatTime(to), formatTime(from))
	if err != nil {
		return nil, fmt.Errorf("failed to query busy slots: %w", err)
	}
	defer rows.Close()

	var slots []booking.Slot
	for rows.Next() {
		var (
			startStr, endStr string
			slot             booking.Slot
		)
		if err := rows.Scan(&startStr, &endStr); err != nil {
			return nil, err
		}
		if slot.StartAt, err = parseTime(startStr); err != nil {
			return nil, err
		}
		if slot.EndAt, err = parseTime(endStr); err != nil {
			return nil, err
		}
		slots = append(slots, slot)
	}
	return slots, rows.Err()
}

// ListByUser returns the user's reservations, newest first. Canceled rows
// are excluded unless includeCanceled is set.
func (s *Store) ListByUser(ctx context.Context, userID int64, includeCanceled bool) ([]booking.Reservation, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	query := `SELECT ` + reservationColumns + ` FROM reservations WHERE user_id = ?`
	if !includeCanceled {
		query += ` AND status != 'CANCELED'`
	}
	query += ` ORDER BY created_at DESC, id DESC`

	return s.queryReservations(ctx, s.db, query, userID)
}

// ListByExpert returns all reservations targeting the expert, newest first.
func (s *Store) ListByExpert(ctx context.Context, expertID int64) ([]booking.Reservation, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	query := `SELECT ` + reservationColumns + ` FROM reservations WHERE expert_id = ? ORDER BY created_at DESC, id DESC`
	return s.queryReservations(ctx, s.db, query, expertID)
}

func (s *Store) queryReservations(ctx context.Context, db queryer, query string, args ...any) ([]booking.Reservation, error) {
	rows, err := db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to query reservations: %w", err)
	}
	defer rows.Close()

	var reservations []booking.Reservation
	for rows.Next() {
		r, err := scanReservation(rows)
		if err != nil {
			return nil, err
		}
		reservations = append(reservations, r)
	}
	return reservations, rows.Err()
}

func scanReservation(rows *sql.Rows) (booking.Reservation, error) {
	var (
		r            booking.Reservation
		startAt      string
		endAt        string
		note         sql.NullString
		confirmedAt  sql.NullString
		canceledAt   sql.NullString
		canceledBy   sql.NullInt64
		cancelReason sql.NullString
		createdAt    string
		updatedAt    string
	)

	err := rows.Scan(
		&r.ID, &r.DisplayID, &r.UserID, &r.ExpertID, &startAt, &endAt,
		&r.Cost, &r.Status, &note, &confirmedAt, &canceledAt, &canceledBy,
		&cancelReason, &r.RefundAmount, &createdAt, &updatedAt,
	)
	if err != nil {
		return r, fmt.Errorf("failed to scan reservation: %w", err)
	}

	if r.StartAt, err = parseTime(startAt); err != nil {
		return r, err
	}
	if r.EndAt, err = parseTime(endAt); err != nil {
		return r, err
	}
	if r.CreatedAt, err = parseTime(createdAt); err != nil {
		return r, err
	}
	if r.UpdatedAt, err = parseTime(updatedAt); err != nil {
		return r, err
	}
	r.Note = note.String
	r.CancelReason = cancelReason.String
	r.CanceledBy = canceledBy.Int64
	if confirmedAt.Valid {
		t, err := parseTime(confirmedAt.String)
		if err != nil {
			return r, err
		}
		r.ConfirmedAt = &t
	}
	if canceledAt.Valid {
		t, err := parseTime(canceledAt.String)
		if err != nil {
			return r, err
		}
		r.CanceledAt = &t
	}
	return r, nil
}

// =============================================================================
// TRANSACTIONAL STORE (booking.Store WithTx)
// =============================================================================

// WithTx executes fn within a database transaction. All writes made
// through the passed booking.Tx apply atomically.
func (s *Store) WithTx(ctx context.Context, fn func(tx booking.Tx) error) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	sqlTx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer sqlTx.Rollback()

	if err := fn(&txStore{tx: sqlTx, parent: s}); err != nil {
		return err
	}
	return sqlTx.Commit()
}

type txStore struct {
	tx     *sql.Tx
	parent *Store
}

func (ts *txStore) InsertReservation(ctx context.Context, r *booking.Reservation) error {
	return ts.parent.insertReservation(ctx, ts.tx, r)
}

func (ts *txStore) UpdateReservation(ctx context.Context, r *booking.Reservation, from booking.ReservationStatus) error {
	return ts.parent.updateReservation(ctx, ts.tx, r, from)
}

func (ts *txStore) FindConflict(ctx context.Context, expertID int64, start, end time.Time) (*booking.Reservation, error) {
	return ts.parent.findConflict(ctx, ts.tx, expertID, start, end)
}

func (ts *txStore) AppendCredit(ctx context.Context, tx ledger.Transaction) error {
	return ts.parent.appendCredit(ctx, ts.tx, tx)
}

func (ts *txStore) AppendHistory(ctx context.Context, h booking.HistoryEntry) error {
	return ts.parent.appendHistory(ctx, ts.tx, h)
}

// =============================================================================
// CREDIT LEDGER (ledger.Store)
// =============================================================================

func (s *Store) appendCredit(ctx context.Context, db execer, tx ledger.Transaction) error {
	query := `
		INSERT INTO credit_transactions (user_id, amount, reason, ref_id, created_at)
		VALUES (?, ?, ?, ?, ?)
	`

	_, err := db.ExecContext(ctx, query,
		tx.UserID, tx.Amount, tx.Reason, nullString(tx.RefID),
		time.Now().UTC().Format(time.RFC3339),
	)
	if err != nil {
		return classifyUnique(err, "failed to append credit transaction")
	}
	return nil
}

// AppendCredit adds one ledger row outside any enclosing transaction.
func (s *Store) AppendCredit(ctx context.Context, tx ledger.Transaction) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	return s.appendCredit(ctx, s.db, tx)
}

// SumCredits derives the user's balance. 0 when no rows exist.
func (s *Store) SumCredits(ctx context.Context, userID int64) (int64, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	var sum int64
	err := s.db.QueryRowContext(ctx,
		"SELECT COALESCE(SUM(amount), 0) FROM credit_transactions WHERE user_id = ?",
		userID,
	).Scan(&sum)
	return sum, err
}

// CreditTransactions returns the user's ledger rows, oldest first.
func (s *Store) CreditTransactions(ctx context.Context, userID int64) ([]ledger.Transaction, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	query := `
		SELECT id, user_id, amount, reason, ref_id, created_at
		FROM credit_transactions
		WHERE user_id = ?
		ORDER BY created_at ASC, id ASC
	`

	rows, err := s.db.QueryContext(ctx, query, userID)
	if err != nil {
		return nil, fmt.Errorf("failed to query credit transactions: %w", err)
	}
	defer rows.Close()

	var transactions []ledger.Transaction
	for rows.Next() {
		var (
			tx        ledger.Transaction
			refID     sql.NullString
			createdAt string
		)
		if err := rows.Scan(&tx.ID, &tx.UserID, &tx.Amount, &tx.Reason, &refID, &createdAt); err != nil {
			return nil, err
		}
		tx.RefID = refID.String
		if tx.CreatedAt, err = parseTime(createdAt); err != nil {
			return nil, err
		}
		transactions = append(transactions, tx)
	}
	return transactions, rows.Err()
}

// =============================================================================
// HISTORY (append-only)
// =============================================================================

func (s *Store) appendHistory(ctx context.Context, db execer, h booking.HistoryEntry) error {
	query := `
		INSERT INTO reservation_history
		(reservation_id, from_status, to_status, changed_by, reason, created_at)
		VALUES (?, ?, ?, ?, ?, ?)
	`

	_, err := db.ExecContext(ctx, query,
		h.ReservationID, nullString(string(h.FromStatus)), h.ToStatus,
		h.ChangedBy, h.Reason,
		time.Now().UTC().Format(time.RFC3339),
	)
	if err != nil {
		return fmt.Errorf("failed to append history: %w", err)
	}
	return nil
}

// History returns the reservation's transitions, oldest first.
func (s *Store) History(ctx context.Context, reservationID int64) ([]booking.HistoryEntry, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	query := `
		SELECT id, reservation_id, from_status, to_status, changed_by, reason, created_at
		FROM reservation_history
		WHERE reservation_id = ?
		ORDER BY created_at ASC, id ASC
	`

	rows, err := s.db.QueryContext(ctx, query, reservationID)
	if err != nil {
		return nil, fmt.Errorf("failed to query history: %w", err)
	}
	defer rows.Close()

	var entries []booking.HistoryEntry
	for rows.Next() {
		var (
			h          booking.HistoryEntry
			fromStatus sql.NullString
			reason     sql.NullString
			createdAt  string
		)
		if err := rows.Scan(&h.ID, &h.ReservationID, &fromStatus, &h.ToStatus,
			&h.ChangedBy, &reason, &createdAt); err != nil {
			return nil, err
		}
		h.FromStatus = booking.ReservationStatus(fromStatus.String)
		h.Reason = reason.String
		if h.CreatedAt, err = parseTime(createdAt); err != nil {
			return nil, err
		}
		entries = append(entries, h)
	}
	return entries, rows.Err()
}

// =============================================================================
// EXPERT PROFILES (seed/admin surface)
// =============================================================================

// SaveExpert inserts an expert and returns its id.
func (s *Store) SaveExpert(ctx context.Context, e *booking.Expert) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	result, err := s.db.ExecContext(ctx,
		"INSERT INTO experts (name, rate_per_minute, created_at) VALUES (?, ?, ?)",
		e.Name, e.RatePerMinute, time.Now().UTC().Format(time.RFC3339),
	)
	if err != nil {
		return fmt.Errorf("failed to save expert: %w", err)
	}
	e.ID, err = result.LastInsertId()
	return err
}

// GetExpert returns the expert with the given id, or nil.
func (s *Store) GetExpert(ctx context.Context, expertID int64) (*booking.Expert, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	var (
		e         booking.Expert
		createdAt string
	)
	err := s.db.QueryRowContext(ctx,
		"SELECT id, name, rate_per_minute, created_at FROM experts WHERE id = ?",
		expertID,
	).Scan(&e.ID, &e.Name, &e.RatePerMinute, &createdAt)

	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	if e.CreatedAt, err = parseTime(createdAt); err != nil {
		return nil, err
	}
	return &e, nil
}

// SaveAvailability inserts one weekly window for an expert.
func (s *Store) SaveAvailability(ctx context.Context, w *booking.AvailabilityWindow) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	result, err := s.db.ExecContext(ctx,
		`INSERT INTO expert_availability (expert_id, day_of_week, start_time, end_time, is_active)
		 VALUES (?, ?, ?, ?, ?)`,
		w.ExpertID, int(w.DayOfWeek), w.StartTime, w.EndTime, w.IsActive,
	)
	if err != nil {
		return fmt.Errorf("failed to save availability: %w", err)
	}
	w.ID, err = result.LastInsertId()
	return err
}

// Availability returns the expert's windows for one weekday, active or
// not; the validator filters on IsActive.
func (s *Store) Availability(ctx context.Context, expertID int64, day time.Weekday) ([]booking.AvailabilityWindow, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	query := `
		SELECT id, expert_id, day_of_week, start_time, end_time, is_active
		FROM expert_availability
		WHERE expert_id = ? AND day_of_week = ?
		ORDER BY start_time ASC
	`

	rows, err := s.db.QueryContext(ctx, query, expertID, int(day))
	if err != nil {
		return nil, fmt.Errorf("failed to query availability: %w", err)
	}
	defer rows.Close()

	var windows []booking.AvailabilityWindow
	for rows.Next() {
		var (
			w   booking.AvailabilityWindow
			dow int
		)
		if err := rows.Scan(&w.ID, &w.ExpertID, &dow, &w.StartTime, &w.EndTime, &w.IsActive); err != nil {
			return nil, err
		}
		w.DayOfWeek = time.Weekday(dow)
		windows = append(windows, w)
	}
	return windows, rows.Err()
}

// =============================================================================
// HELPERS
// =============================================================================

func formatTime(t time.Time) string {
	return t.UTC().Format(time.RFC3339)
}

func formatNullableTime(t *time.Time) any {
	if t == nil {
		return nil
	}
	return formatTime(*t)
}

func parseTime(s string) (time.Time, error) {
	t, err := time.Parse(time.RFC3339Nano, s)
	if err != nil {
		return time.Time{}, fmt.Errorf("malformed stored timestamp %q: %w", s, err)
	}
	return t, nil
}

func nullString(s string) sql.NullString {
	if s == "" {
		return sql.NullString{}
	}
	return sql.NullString{String: s, Valid: true}
}

// classifyUnique reclassifies SQLite unique-constraint violations into
// the domain errors callers handle; anything else is wrapped as-is. The
// driver names the violated columns in its message.
func classifyUnique(err error, msg string) error {
	if err == nil {
		return nil
	}
	if strings.Contains(err.Error(), "UNIQUE constraint failed") {
		if strings.Contains(err.Error(), "credit_transactions") {
			return ledger.ErrDuplicateRefID
		}
		if strings.Contains(err.Error(), "reservations") {
			return booking.ErrSlotConflict
		}
	}
	return fmt.Errorf("%s: %w", msg, err)
}
