package middleware

import (
	"bytes"
	"context"
	"crypto/sha256"
	"encoding/hex"
	"net/http"
	"strings"
	"sync"
	"time"

	apperrors "zivara/pkg/errors"
	httputil "zivara/pkg/http"
	"zivara/pkg/logger"
)

const (
	IdempotencyKeyHeader   = "Idempotency-Key"
	IdempotentReplayHeader = "Idempotent-Replayed"

	maxIdempotencyKeyLen = 255
)

// IdempotencyStore keeps the first successful response per key.
type IdempotencyStore interface {
	Get(ctx context.Context, key string) (*CachedResponse, bool, error)
	Set(ctx context.Context, key string, response *CachedResponse) error
	// Acquire marks key as in flight. It returns false while another request holds it.
	Acquire(ctx context.Context, key string) (bool, error)
	Release(ctx context.Context, key string) error
	Stop()
}

type CachedResponse struct {
	StatusCode int         `json:"status_code"`
	Headers    http.Header `json:"headers"`
	Body       []byte      `json:"body"`
	CreatedAt  time.Time   `json:"created_at"`
}

type InMemoryIdempotencyStore struct {
	mu       sync.RWMutex
	store    map[string]*CachedResponse
	inFlight map[string]struct{}
	ttl      time.Duration
	stopCh   chan struct{}
	stopOnce sync.Once
}

func NewInMemoryIdempotencyStore(ttl time.Duration) *InMemoryIdempotencyStore {
	store := &InMemoryIdempotencyStore{
		store:    make(map[string]*CachedResponse),
		inFlight: make(map[string]struct{}),
		ttl:      ttl,
		stopCh:   make(chan struct{}),
	}

	go store.cleanup()

	return store
}

func (s *InMemoryIdempotencyStore) Get(_ context.Context, key string) (*CachedResponse, bool, error) {
	s.mu.RLock()
	response, exists := s.store[key]
	s.mu.RUnlock()

	if !exists {
		return nil, false, nil
	}

	if time.Since(response.CreatedAt) > s.ttl {
		s.mu.Lock()
		delete(s.store, key)
		s.mu.Unlock()
		return nil, false, nil
	}

	return response, true, nil
}

func (s *InMemoryIdempotencyStore) Set(_ context.Context, key string, response *CachedResponse) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	response.CreatedAt = time.Now()
	s.store[key] = response
	return nil
}

func (s *InMemoryIdempotencyStore) Acquire(_ context.Context, key string) (bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, busy := s.inFlight[key]; busy {
		return false, nil
	}
	s.inFlight[key] = struct{}{}
	return true, nil
}

func (s *InMemoryIdempotencyStore) Release(_ context.Context, key string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	delete(s.inFlight, key)
	return nil
}

func (s *InMemoryIdempotencyStore) cleanup() {
	ticker := time.NewTicker(1 * time.Hour)
	defer ticker.Stop()

	for {
		select {
		case <-ticker.C:
			s.mu.Lock()
			for key, response := range s.store {
				if time.Since(response.CreatedAt) > s.ttl {
					delete(s.store, key)
				}
			}
			s.mu.Unlock()
		case <-s.stopCh:
			return
		}
	}
}

func (s *InMemoryIdempotencyStore) Stop() {
	s.stopOnce.Do(func() { close(s.stopCh) })
}

type responseCapture struct {
	http.ResponseWriter
	statusCode int
	body       *bytes.Buffer
}

func (rc *responseCapture) WriteHeader(statusCode int) {
	rc.statusCode = statusCode
	rc.ResponseWriter.WriteHeader(statusCode)
}

func (rc *responseCapture) Write(b []byte) (int, error) {
	rc.body.Write(b)
	return rc.ResponseWriter.Write(b)
}

// Idempotency replays the first successful response for a repeated
// Idempotency-Key on POST requests. Keys are scoped to the guest, method and
// path, so the same key on another route or from another guest is a new
// request. Store failures are logged and the request runs unprotected.
func Idempotency(store IdempotencyStore, log *logger.Logger) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			raw := strings.TrimSpace(r.Header.Get(IdempotencyKeyHeader))
			if raw == "" || r.Method != http.MethodPost {
				next.ServeHTTP(w, r)
				return
			}
			if len(raw) > maxIdempotencyKeyLen {
				_ = httputil.WriteError(w, apperrors.InvalidInput("Idempotency-Key is too long"))
				return
			}

			ctx := r.Context()
			key := scopedKey(r, raw)

			cached, found, err := store.Get(ctx, key)
			if err != nil {
				log.Warn("Idempotency store unavailable", "request_id", RequestID(ctx), "error", err)
				next.ServeHTTP(w, r)
				return
			}
			if found {
				replayCachedResponse(w, cached)
				return
			}

			acquired, err := store.Acquire(ctx, key)
			if err != nil {
				log.Warn("Idempotency lock unavailable", "request_id", RequestID(ctx), "error", err)
				next.ServeHTTP(w, r)
				return
			}
			if !acquired {
				_ = httputil.WriteError(w, apperrors.Conflict("A request with this Idempotency-Key is still in progress"))
				return
			}
			defer func() {
				if err := store.Release(context.WithoutCancel(ctx), key); err != nil {
					log.Warn("Failed to release idempotency lock", "request_id", RequestID(ctx), "error", err)
				}
			}()

			// The first request may have stored its response and released
			// the lock between our Get and Acquire.
			if cached, found, err := store.Get(ctx, key); err != nil {
				log.Warn("Idempotency store unavailable", "request_id", RequestID(ctx), "error", err)
			} else if found {
				replayCachedResponse(w, cached)
				return
			}

			capture := captureResponse(w)
			next.ServeHTTP(capture, r)
			if !shouldCacheResponse(capture.statusCode) {
				return
			}

			headers := w.Header().Clone()
			headers.Del(RequestIDHeader)
			cachedResp := &CachedResponse{
				StatusCode: capture.statusCode,
				Headers:    headers,
				Body:       capture.body.Bytes(),
			}
			if err := store.Set(context.WithoutCancel(ctx), key, cachedResp); err != nil {
				log.Warn("Failed to store idempotent response", "request_id", RequestID(ctx), "error", err)
			}
		})
	}
}

func scopedKey(r *http.Request, raw string) string {
	sum := sha256.Sum256([]byte(strings.Join([]string{
		r.Header.Get(httputil.GuestIDHeader), r.Method, r.URL.Path, raw,
	}, "\x00")))
	return hex.EncodeToString(sum[:])
}

func replayCachedResponse(w http.ResponseWriter, cached *CachedResponse) {
	for key, values := range cached.Headers {
		for _, value := range values {
			w.Header().Add(key, value)
		}
	}
	w.Header().Set(IdempotentReplayHeader, "true")
	w.WriteHeader(cached.StatusCode)
	_, _ = w.Write(cached.Body)
}

func captureResponse(w http.ResponseWriter) *responseCapture {
	return &responseCapture{
		ResponseWriter: w,
		statusCode:     http.StatusOK,
		body:           &bytes.Buffer{},
	}
}

func shouldCacheResponse(statusCode int) bool {
	return statusCode >= 200 && statusCode < 300
}
