package integration

import (
	"bytes"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	httpHandler "wallet-service/internal/adapter/http/handler"
	redisStorage "wallet-service/internal/adapter/storage/redis"
	"wallet-service/internal/core/ports"
	"wallet-service/internal/service"
	"wallet-service/pkg/logger"

	"github.com/alicebob/miniredis/v2"
	"github.com/google/uuid"
	goredis "github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const testAPIKey = "integration-test-key"

// testApp runs the full application stack against miniredis: real HTTP
// layer, middleware, handlers, services, and Redis stores end-to-end.
type testApp struct {
	server *httptest.Server
	redis  *miniredis.Miniredis
}

func newTestApp(t *testing.T) *testApp {
	t.Helper()

	mr := miniredis.RunT(t)
	rdb := goredis.NewClient(&goredis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { _ = rdb.Close() })

	walletStore := redisStorage.NewWalletStore(rdb)
	idemStore := redisStorage.NewIdempotencyStore(rdb)

	log := logger.New("debug", false)
	walletSvc := service.NewWalletService(walletStore, log)
	idemSvc := service.NewIdempotencyService(idemStore, 30*time.Second, 10*time.Millisecond, 2*time.Second, log)

	router := httpHandler.SetupRouter(httpHandler.RouterDeps{
		WalletSvc:      walletSvc,
		IdempotencySvc: idemSvc,
		APIKey:         testAPIKey,
		HealthCheckers: []ports.HealthChecker{redisStorage.NewHealthCheck(rdb)},
		Logger:         log,
	})

	srv := httptest.NewServer(router)
	t.Cleanup(srv.Close)

	return &testApp{server: srv, redis: mr}
}

func (a *testApp) do(t *testing.T, method, path, idempotencyKey string, body interface{}) (*http.Response, []byte) {
	t.Helper()

	var reader io.Reader
	if body != nil {
		raw, err := json.Marshal(body)
		require.NoError(t, err)
		reader = bytes.NewReader(raw)
	}

	req, err := http.NewRequest(method, a.server.URL+path, reader)
	require.NoError(t, err)
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("X-API-KEY", testAPIKey)
	if idempotencyKey != "" {
		req.Header.Set("Idempotency-Key", idempotencyKey)
	}

	resp, err := a.server.Client().Do(req)
	require.NoError(t, err)
	defer resp.Body.Close()
	raw, err := io.ReadAll(resp.Body)
	require.NoError(t, err)
	return resp, raw
}

func (a *testApp) createWallet(t *testing.T, id uuid.UUID, balance, key string) []byte {
	t.Helper()
	resp, body := a.do(t, http.MethodPost, "/wallet", key,
		map[string]string{"id": id.String(), "balance": balance})
	require.Equal(t, http.StatusCreated, resp.StatusCode, string(body))
	return body
}

func balanceOf(t *testing.T, body []byte) string {
	t.Helper()
	var wallet struct {
		ID      string `json:"id"`
		Balance string `json:"balance"`
	}
	require.NoError(t, json.Unmarshal(body, &wallet))
	return wallet.Balance
}

func TestAPIKey_Required(t *testing.T) {
	app := newTestApp(t)

	req, err := http.NewRequest(http.MethodGet, app.server.URL+"/wallet/health", nil)
	require.NoError(t, err)
	resp, err := app.server.Client().Do(req)
	require.NoError(t, err)
	defer resp.Body.Close()

	assert.Equal(t, http.StatusUnauthorized, resp.StatusCode)

	var errResp struct {
		ErrorCode string `json:"error_code"`
	}
	require.NoError(t, json.NewDecoder(resp.Body).Decode(&errResp))
	assert.Equal(t, "SEC_001", errResp.ErrorCode)
}

func TestHealthEndpoints(t *testing.T) {
	app := newTestApp(t)

	// Deep health check is public
	resp, err := app.server.Client().Get(app.server.URL + "/health")
	require.NoError(t, err)
	resp.Body.Close()
	assert.Equal(t, http.StatusOK, resp.StatusCode)

	// Service ping requires the API key
	pingResp, body := app.do(t, http.MethodGet, "/wallet/health", "", nil)
	assert.Equal(t, http.StatusOK, pingResp.StatusCode)
	assert.Equal(t, `"Pong"`, string(body))
}

func TestWalletLifecycle(t *testing.T) {
	app := newTestApp(t)

	id := uuid.New()
	k1 := uuid.NewString()

	// Create with an initial balance.
	created := app.createWallet(t, id, "10.11", k1)
	assert.Equal(t, "10.11", balanceOf(t, created))

	// Replaying the same idempotency key returns the recorded body verbatim.
	resp, replayed := app.do(t, http.MethodPost, "/wallet", k1,
		map[string]string{"id": id.String(), "balance": "10.11"})
	assert.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Equal(t, created, replayed)

	// Fetch it back.
	resp, body := app.do(t, http.MethodGet, "/wallet/"+id.String(), "", nil)
	assert.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Equal(t, "10.11", balanceOf(t, body))

	// Credit 20.22.
	resp, body = app.do(t, http.MethodPatch,
		fmt.Sprintf("/wallet/%s?isAddingFunds=true&amount=20.22", id), uuid.NewString(), nil)
	assert.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Equal(t, "30.33", balanceOf(t, body))

	// Debiting more than the balance is rejected and the balance is untouched.
	resp, body = app.do(t, http.MethodPatch,
		fmt.Sprintf("/wallet/%s?isAddingFunds=false&amount=40.00", id), uuid.NewString(), nil)
	assert.Equal(t, http.StatusPaymentRequired, resp.StatusCode)
	var errResp struct {
		ErrorCode string `json:"error_code"`
	}
	require.NoError(t, json.Unmarshal(body, &errResp))
	assert.Equal(t, "WAL_002", errResp.ErrorCode)

	resp, body = app.do(t, http.MethodGet, "/wallet/"+id.String(), "", nil)
	assert.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Equal(t, "30.33", balanceOf(t, body))

	// Debit back down.
	resp, body = app.do(t, http.MethodPatch,
		fmt.Sprintf("/wallet/%s?isAddingFunds=false&amount=20.22", id), uuid.NewString(), nil)
	assert.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Equal(t, "10.11", balanceOf(t, body))
}

func TestGetWallet_Unknown(t *testing.T) {
	app := newTestApp(t)

	resp, body := app.do(t, http.MethodGet, "/wallet/"+uuid.NewString(), "", nil)
	assert.Equal(t, http.StatusNotFound, resp.StatusCode)
	assert.Empty(t, body)
}

func TestGetWallet_MalformedID(t *testing.T) {
	app := newTestApp(t)

	resp, _ := app.do(t, http.MethodGet, "/wallet/not-a-uuid", "", nil)
	assert.Equal(t, http.StatusBadRequest, resp.StatusCode)
}

func TestPatch_UnknownWallet(t *testing.T) {
	app := newTestApp(t)

	resp, body := app.do(t, http.MethodPatch,
		fmt.Sprintf("/wallet/%s?isAddingFunds=true&amount=5.00", uuid.New()), uuid.NewString(), nil)
	assert.Equal(t, http.StatusNotFound, resp.StatusCode)
	assert.Empty(t, body)
}

func TestPatch_RequiresIdempotencyKey(t *testing.T) {
	app := newTestApp(t)

	resp, _ := app.do(t, http.MethodPatch,
		fmt.Sprintf("/wallet/%s?isAddingFunds=true&amount=5.00", uuid.New()), "", nil)
	assert.Equal(t, http.StatusBadRequest, resp.StatusCode)
}

func TestPatch_InvalidAmount(t *testing.T) {
	app := newTestApp(t)

	id := uuid.New()
	app.createWallet(t, id, "10.00", uuid.NewString())

	for _, amount := range []string{"0", "-5.00"} {
		resp, body := app.do(t, http.MethodPatch,
			fmt.Sprintf("/wallet/%s?isAddingFunds=true&amount=%s", id, amount), uuid.NewString(), nil)
		assert.Equal(t, http.StatusBadRequest, resp.StatusCode)
		var errResp struct {
			ErrorCode string `json:"error_code"`
		}
		require.NoError(t, json.Unmarshal(body, &errResp))
		assert.Equal(t, "WAL_001", errResp.ErrorCode)
	}
}

// A failed mutation must not be replayed: retrying the same key after an
// insufficient-funds rejection executes again and can succeed.
func TestIdempotency_FailureNotCached(t *testing.T) {
	app := newTestApp(t)

	id := uuid.New()
	app.createWallet(t, id, "10.00", uuid.NewString())

	key := uuid.NewString()
	resp, _ := app.do(t, http.MethodPatch,
		fmt.Sprintf("/wallet/%s?isAddingFunds=false&amount=50.00", id), key, nil)
	assert.Equal(t, http.StatusPaymentRequired, resp.StatusCode)

	// Top up, then retry the rejected debit with the same key.
	_, _ = app.do(t, http.MethodPatch,
		fmt.Sprintf("/wallet/%s?isAddingFunds=true&amount=100.00", id), uuid.NewString(), nil)

	resp, body := app.do(t, http.MethodPatch,
		fmt.Sprintf("/wallet/%s?isAddingFunds=false&amount=50.00", id), key, nil)
	assert.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Equal(t, "60", balanceOf(t, body))
}

// Once the record's retention window has passed and the store has dropped
// it, the same key executes the operation again.
func TestIdempotency_RecordExpiry(t *testing.T) {
	app := newTestApp(t)

	id := uuid.New()
	key := uuid.NewString()
	app.createWallet(t, id, "5.00", uuid.NewString())

	resp, body := app.do(t, http.MethodPatch,
		fmt.Sprintf("/wallet/%s?isAddingFunds=true&amount=1.00", id), key, nil)
	assert.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Equal(t, "6", balanceOf(t, body))

	// Replay within the window: no second execution.
	resp, body = app.do(t, http.MethodPatch,
		fmt.Sprintf("/wallet/%s?isAddingFunds=true&amount=1.00", id), key, nil)
	assert.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Equal(t, "6", balanceOf(t, body))

	// Let Redis reclaim the record, then replay: executes again.
	app.redis.FastForward(26 * time.Hour)

	resp, body = app.do(t, http.MethodPatch,
		fmt.Sprintf("/wallet/%s?isAddingFunds=true&amount=1.00", id), key, nil)
	assert.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Equal(t, "7", balanceOf(t, body))
}
