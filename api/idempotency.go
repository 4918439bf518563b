/*
idempotency.go - Request-level idempotency gate

PURPOSE:
  Shields the booking endpoint from duplicate submissions (double-click,
  client retry, gateway replay). Each mutating request carries an
  Idempotency-Key header; the first arrival claims the key and runs, a
  concurrent duplicate gets 409, and a later duplicate replays the cached
  response verbatim.

STATE MACHINE (per key):
  absent ──claim──▶ processing ──2xx──▶ completed (cached for TTL)
                        │
                        └──non-2xx──▶ absent (mark cleared, retry allowed)

GUARANTEE LEVEL:
  Best-effort. The cache can be lost on restart or sit on another
  instance; the ledger's refId uniqueness remains the hard exactly-once
  guarantee for money movement. This layer only improves the client
  experience by replaying the original response body.

SEE ALSO:
  - idempotency_redis.go: the shared-across-instances KeyStore
*/
package api

import (
	"bytes"
	"context"
	"net/http"
	"sync"
	"time"

	"go.uber.org/zap"
)

const (
	// IdempotencyHeader names the client-supplied key header.
	IdempotencyHeader = "Idempotency-Key"

	// MinIdempotencyKeyLength rejects trivially collidable keys.
	MinIdempotencyKeyLength = 10

	// DefaultIdempotencyTTL bounds how long a completed response replays.
	DefaultIdempotencyTTL = 5 * time.Minute
)

// API-level error codes for the gate itself.
const (
	CodeIdempotencyKey      = "E_IDEMPOTENCY_KEY"
	CodeIdempotencyInFlight = "E_IDEMPOTENCY_IN_FLIGHT"
)

// CachedResponse is the replayable outcome of a completed request.
type CachedResponse struct {
	Status int    `json:"status"`
	Body   []byte `json:"body"`
}

// Claim is the outcome of attempting to take ownership of a key. Exactly
// one of the three fields is set.
type Claim struct {
	// Acquired means the caller owns the key and must Complete or Release.
	Acquired bool
	// InFlight means another request holds the key right now.
	InFlight bool
	// Cached is a completed response to replay.
	Cached *CachedResponse
}

// KeyStore persists idempotency claims. Implementations must expire
// entries after their TTL so abandoned keys do not block forever.
type KeyStore interface {
	Claim(ctx context.Context, key string) (Claim, error)
	Complete(ctx context.Context, key string, resp CachedResponse) error
	Release(ctx context.Context, key string) error
}

// =============================================================================
// IN-MEMORY KEY STORE
// =============================================================================

type memoryEntry struct {
	resp      *CachedResponse // nil while processing
	expiresAt time.Time
}

// MemoryKeyStore is the single-instance default. Entries expire lazily on
// the next Claim that touches them.
type MemoryKeyStore struct {
	mu      sync.Mutex
	ttl     time.Duration
	entries map[string]*memoryEntry
}

func NewMemoryKeyStore(ttl time.Duration) *MemoryKeyStore {
	if ttl <= 0 {
		ttl = DefaultIdempotencyTTL
	}
	return &MemoryKeyStore{ttl: ttl, entries: make(map[string]*memoryEntry)}
}

func (s *MemoryKeyStore) Claim(_ context.Context, key string) (Claim, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	now := time.Now()
	if e, ok := s.entries[key]; ok && now.Before(e.expiresAt) {
		if e.resp == nil {
			return Claim{InFlight: true}, nil
		}
		return Claim{Cached: e.resp}, nil
	}
	s.entries[key] = &memoryEntry{expiresAt: now.Add(s.ttl)}
	return Claim{Acquired: true}, nil
}

func (s *MemoryKeyStore) Complete(_ context.Context, key string, resp CachedResponse) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.entries[key] = &memoryEntry{resp: &resp, expiresAt: time.Now().Add(s.ttl)}
	return nil
}

func (s *MemoryKeyStore) Release(_ context.Context, key string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.entries, key)
	return nil
}

// =============================================================================
// MIDDLEWARE
// =============================================================================

// Idempotency wraps a handler with the key claim/replay protocol.
func Idempotency(store KeyStore, log *zap.Logger) func(http.Handler) http.Handler {
	if log == nil {
		log = zap.NewNop()
	}
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			key := r.Header.Get(IdempotencyHeader)
			if len(key) < MinIdempotencyKeyLength {
				writeErrorBody(w, http.StatusBadRequest, ErrorBody{
					Code:    CodeIdempotencyKey,
					Message: "Idempotency-Key header with at least 10 characters is required",
				})
				return
			}

			claim, err := store.Claim(r.Context(), key)
			if err != nil {
				// A broken key store must not block booking; fall through to
				// the handler, the ledger still guarantees exactly-once.
				log.Warn("idempotency claim failed", zap.Error(err))
				next.ServeHTTP(w, r)
				return
			}

			switch {
			case claim.InFlight:
				writeErrorBody(w, http.StatusConflict, ErrorBody{
					Code:    CodeIdempotencyInFlight,
					Message: "a request with this idempotency key is already in progress",
				})
				return
			case claim.Cached != nil:
				w.Header().Set("Content-Type", "application/json")
				w.Header().Set("Idempotency-Replayed", "true")
				w.WriteHeader(claim.Cached.Status)
				w.Write(claim.Cached.Body)
				return
			}

			rec := &responseRecorder{ResponseWriter: w, status: http.StatusOK}
			next.ServeHTTP(rec, r)

			if rec.status >= 200 && rec.status < 300 {
				if err := store.Complete(r.Context(), key, CachedResponse{
					Status: rec.status,
					Body:   rec.buf.Bytes(),
				}); err != nil {
					log.Warn("idempotency cache write failed", zap.Error(err))
				}
			} else if err := store.Release(r.Context(), key); err != nil {
				log.Warn("idempotency release failed", zap.Error(err))
			}
		})
	}
}

// responseRecorder copies the response body while passing it through.
type responseRecorder struct {
	http.ResponseWriter
	status int
	buf    bytes.Buffer
}

func (r *responseRecorder) WriteHeader(status int) {
	r.status = status
	r.ResponseWriter.WriteHeader(status)
}

func (r *responseRecorder) Write(b []byte) (int, error) {
	r.buf.Write(b)
	return r.ResponseWriter.Write(b)
}
