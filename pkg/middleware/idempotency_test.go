package middleware

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"strconv"
	"strings"
	"sync/atomic"
	"testing"
	"time"

	"zivara/pkg/logger"

	"github.com/go-redis/redismock/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func countingHandler(calls *int32, status int) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		n := atomic.AddInt32(calls, 1)
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(status)
		_, _ = w.Write([]byte(`{"call":` + strconv.Itoa(int(n)) + `}`))
	})
}

func postWithKey(key, guest string) *http.Request {
	req := httptest.NewRequest(http.MethodPost, "/api/v1/bookings", strings.NewReader(`{}`))
	req.Header.Set(IdempotencyKeyHeader, key)
	req.Header.Set("X-Guest-ID", guest)
	return req
}

func TestIdempotency_ReplaysSuccessfulResponse(t *testing.T) {
	store := NewInMemoryIdempotencyStore(time.Hour)
	defer store.Stop()

	var calls int32
	h := Idempotency(store, logger.Discard())(countingHandler(&calls, http.StatusCreated))

	first := httptest.NewRecorder()
	h.ServeHTTP(first, postWithKey("abc", "guest-1"))
	second := httptest.NewRecorder()
	h.ServeHTTP(second, postWithKey("abc", "guest-1"))

	assert.Equal(t, int32(1), calls)
	assert.Equal(t, http.StatusCreated, second.Code)
	assert.Equal(t, first.Body.String(), second.Body.String())
	assert.Equal(t, "true", second.Header().Get(IdempotentReplayHeader))
}

func TestIdempotency_KeyIsScopedToGuest(t *testing.T) {
	store := NewInMemoryIdempotencyStore(time.Hour)
	defer store.Stop()

	var calls int32
	h := Idempotency(store, logger.Discard())(countingHandler(&calls, http.StatusCreated))

	h.ServeHTTP(httptest.NewRecorder(), postWithKey("abc", "guest-1"))
	h.ServeHTTP(httptest.NewRecorder(), postWithKey("abc", "guest-2"))

	assert.Equal(t, int32(2), calls)
}

func TestIdempotency_ErrorsAreNotCached(t *testing.T) {
	store := NewInMemoryIdempotencyStore(time.Hour)
	defer store.Stop()

	var calls int32
	h := Idempotency(store, logger.Discard())(countingHandler(&calls, http.StatusConflict))

	h.ServeHTTP(httptest.NewRecorder(), postWithKey("abc", "guest-1"))
	h.ServeHTTP(httptest.NewRecorder(), postWithKey("abc", "guest-1"))

	assert.Equal(t, int32(2), calls)
}

func TestIdempotency_InFlightDuplicateConflicts(t *testing.T) {
	store := NewInMemoryIdempotencyStore(time.Hour)
	defer store.Stop()

	req := postWithKey("abc", "guest-1")
	acquired, err := store.Acquire(context.Background(), scopedKey(req, "abc"))
	require.NoError(t, err)
	require.True(t, acquired)

	var calls int32
	rec := httptest.NewRecorder()
	Idempotency(store, logger.Discard())(countingHandler(&calls, http.StatusCreated)).ServeHTTP(rec, req)

	assert.Equal(t, http.StatusConflict, rec.Code)
	assert.Zero(t, calls)
}

func TestIdempotency_PassThrough(t *testing.T) {
	store := NewInMemoryIdempotencyStore(time.Hour)
	defer store.Stop()

	var calls int32
	h := Idempotency(store, logger.Discard())(countingHandler(&calls, http.StatusOK))

	get := httptest.NewRequest(http.MethodGet, "/api/v1/bookings/1", nil)
	get.Header.Set(IdempotencyKeyHeader, "abc")
	h.ServeHTTP(httptest.NewRecorder(), get)
	h.ServeHTTP(httptest.NewRecorder(), get)
	h.ServeHTTP(httptest.NewRecorder(), postWithKey("", "guest-1"))

	assert.Equal(t, int32(3), calls)

	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, postWithKey(strings.Repeat("k", 256), "guest-1"))
	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

// staleStore misses on the next staleReads lookups, as a read that raced
// ahead of another request's Set would.
type staleStore struct {
	*InMemoryIdempotencyStore
	staleReads int32
}

func (s *staleStore) Get(ctx context.Context, key string) (*CachedResponse, bool, error) {
	if atomic.AddInt32(&s.staleReads, -1) >= 0 {
		return nil, false, nil
	}
	return s.InMemoryIdempotencyStore.Get(ctx, key)
}

func TestIdempotency_RechecksCacheAfterAcquiringLock(t *testing.T) {
	store := &staleStore{InMemoryIdempotencyStore: NewInMemoryIdempotencyStore(time.Hour)}
	defer store.Stop()

	var calls int32
	h := Idempotency(store, logger.Discard())(countingHandler(&calls, http.StatusCreated))

	first := httptest.NewRecorder()
	h.ServeHTTP(first, postWithKey("abc", "guest-1"))
	require.Equal(t, http.StatusCreated, first.Code)

	// The retry's first lookup misses, then it wins the lock the first
	// request already released.
	atomic.StoreInt32(&store.staleReads, 1)
	second := httptest.NewRecorder()
	h.ServeHTTP(second, postWithKey("abc", "guest-1"))

	assert.Equal(t, int32(1), atomic.LoadInt32(&calls))
	assert.Equal(t, http.StatusCreated, second.Code)
	assert.Equal(t, "true", second.Header().Get(IdempotentReplayHeader))
	assert.Equal(t, first.Body.String(), second.Body.String())
}

type failingStore struct{ InMemoryIdempotencyStore }

func (*failingStore) Get(context.Context, string) (*CachedResponse, bool, error) {
	return nil, false, errors.New("connection refused")
}

func TestIdempotency_StoreFailureFailsOpen(t *testing.T) {
	var calls int32
	h := Idempotency(&failingStore{}, logger.Discard())(countingHandler(&calls, http.StatusCreated))

	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, postWithKey("abc", "guest-1"))

	assert.Equal(t, http.StatusCreated, rec.Code)
	assert.Equal(t, int32(1), calls)
}

func TestRedisIdempotencyStore_Get(t *testing.T) {
	client, mock := redismock.NewClientMock()
	store := NewRedisIdempotencyStore(client, time.Hour, time.Minute)
	ctx := context.Background()

	payload, err := json.Marshal(&CachedResponse{StatusCode: http.StatusCreated, Body: []byte(`{"id":"b1"}`)})
	require.NoError(t, err)

	mock.ExpectGet("idempotency:hit").SetVal(string(payload))
	mock.ExpectGet("idempotency:miss").RedisNil()
	mock.ExpectGet("idempotency:down").SetErr(errors.New("connection refused"))

	cached, found, err := store.Get(ctx, "hit")
	require.NoError(t, err)
	require.True(t, found)
	assert.Equal(t, http.StatusCreated, cached.StatusCode)
	assert.JSONEq(t, `{"id":"b1"}`, string(cached.Body))

	_, found, err = store.Get(ctx, "miss")
	require.NoError(t, err)
	assert.False(t, found)

	_, _, err = store.Get(ctx, "down")
	assert.Error(t, err)

	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestRedisIdempotencyStore_Lock(t *testing.T) {
	client, mock := redismock.NewClientMock()
	store := NewRedisIdempotencyStore(client, time.Hour, time.Minute)
	ctx := context.Background()

	mock.ExpectSetNX("idempotency:lock:k", "1", time.Minute).SetVal(true)
	mock.ExpectSetNX("idempotency:lock:k", "1", time.Minute).SetVal(false)
	mock.ExpectDel("idempotency:lock:k").SetVal(1)

	acquired, err := store.Acquire(ctx, "k")
	require.NoError(t, err)
	assert.True(t, acquired)

	acquired, err = store.Acquire(ctx, "k")
	require.NoError(t, err)
	assert.False(t, acquired)

	require.NoError(t, store.Release(ctx, "k"))
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestRedisIdempotencyStore_Set(t *testing.T) {
	client, mock := redismock.NewClientMock()
	store := NewRedisIdempotencyStore(client, time.Hour, time.Minute)

	// The stored JSON carries a timestamp, so only the command shape is checked.
	mock.CustomMatch(func(expected, actual []interface{}) error {
		if len(actual) < 3 || actual[0] != "set" || actual[1] != "idempotency:k" {
			return errors.New("unexpected command")
		}
		return nil
	}).ExpectSet("idempotency:k", "", time.Hour).SetVal("OK")

	err := store.Set(context.Background(), "k", &CachedResponse{StatusCode: http.StatusCreated})
	require.NoError(t, err)
	assert.NoError(t, mock.ExpectationsWereMet())
}
