package http

import (
	"bytes"
	"context"
	"crypto/ecdsa"
	"crypto/elliptic"
	"crypto/rand"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/layer-3/storefront/adapters/events"
	"github.com/layer-3/storefront/adapters/store"
	"github.com/layer-3/storefront/adapters/tokenizer"
	"github.com/layer-3/storefront/core"
	"github.com/layer-3/storefront/internal/eth"
	"github.com/layer-3/storefront/pkg/slogx"
	"github.com/layer-3/storefront/ports"
	"github.com/layer-3/storefront/service"
	"github.com/stretchr/testify/require"
)

func init() {
	gin.SetMode(gin.TestMode)
}

// brokenStore fails every write and readiness check
type brokenStore struct {
	*store.MemoryIdentityStore
}

func (brokenStore) CreateIdentity(context.Context, string, time.Time) (*core.Identity, error) {
	return nil, errors.New("insert failed")
}

func (brokenStore) Ping(context.Context) error {
	return errors.New("database is gone")
}

// toggleStore fails creates while broken is set
type toggleStore struct {
	*store.MemoryIdentityStore
	broken bool
}

func (s *toggleStore) CreateIdentity(ctx context.Context, address string, at time.Time) (*core.Identity, error) {
	if s.broken {
		return nil, errors.New("insert failed")
	}
	return s.MemoryIdentityStore.CreateIdentity(ctx, address, at)
}

func newTestRouter(t *testing.T, identities ports.IdentityStore, cfg RouterConfig, opts ...service.Option) *gin.Engine {
	t.Helper()

	key, err := ecdsa.GenerateKey(elliptic.P256(), rand.Reader)
	require.NoError(t, err)

	svc := service.NewAuthService(
		identities,
		tokenizer.NewJWTTokenizer(key, "storefront-auth", time.Hour),
		eth.Recoverer{},
		events.NopPublisher{},
		opts...,
	)
	router, err := SetupRouter(svc, slogx.Discard(), cfg)
	require.NoError(t, err)
	return router
}

func doJSON(t *testing.T, router http.Handler, method, path string, body any, headers map[string]string) (*httptest.ResponseRecorder, map[string]any) {
	t.Helper()

	var buf bytes.Buffer
	if body != nil {
		if s, ok := body.(string); ok {
			buf.WriteString(s)
		} else {
			require.NoError(t, json.NewEncoder(&buf).Encode(body))
		}
	}

	req := httptest.NewRequest(method, path, &buf)
	req.Host = "market.example"
	req.Header.Set("Content-Type", "application/json")
	for k, v := range headers {
		req.Header.Set(k, v)
	}

	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, req)

	var out map[string]any
	if rec.Body.Len() > 0 {
		require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &out), rec.Body.String())
	}
	return rec, out
}

// generate requests a challenge and decodes it into a typed payload
func generate(t *testing.T, router http.Handler, address string) *core.Challenge {
	t.Helper()

	rec, out := doJSON(t, router, http.MethodPost, "/api/auth/wallet", AuthRequest{Action: ActionGenerate, Address: address}, nil)
	require.Equal(t, http.StatusOK, rec.Code)

	raw, err := json.Marshal(out["payload"])
	require.NoError(t, err)

	var payload core.Challenge
	require.NoError(t, json.Unmarshal(raw, &payload))
	return &payload
}

func TestGenerate(t *testing.T) {
	router := newTestRouter(t, store.NewMemoryIdentityStore(), RouterConfig{})

	rec, out := doJSON(t, router, http.MethodPost, "/api/auth/wallet",
		map[string]string{"action": "generate", "address": "0xABC0000000000000000000000000000000000001"}, nil)
	require.Equal(t, http.StatusOK, rec.Code)

	payload, ok := out["payload"].(map[string]any)
	require.True(t, ok)
	require.Equal(t, "market.example", payload["domain"])
	require.Equal(t, "market.example", payload["uri"])
	require.Equal(t, "0xABC0000000000000000000000000000000000001", payload["address"])
	require.Equal(t, "1", payload["version"])
	require.Equal(t, "1", payload["chain_id"])
	require.Len(t, payload["nonce"], 64)

	for _, field := range []string{"statement", "issued_at", "expiration_time", "invalid_before"} {
		require.NotEmpty(t, payload[field], field)
	}

	issued, err := time.Parse(time.RFC3339Nano, payload["issued_at"].(string))
	require.NoError(t, err)
	expires, err := time.Parse(time.RFC3339Nano, payload["expiration_time"].(string))
	require.NoError(t, err)
	require.Equal(t, 10*time.Minute, expires.Sub(issued))
}

func TestVerifyFlow(t *testing.T) {
	router := newTestRouter(t, store.NewMemoryIdentityStore(), RouterConfig{})
	wallet, err := eth.GenerateWallet()
	require.NoError(t, err)

	payload := generate(t, router, wallet.Address())
	sig, err := wallet.SignMessage(payload.Message())
	require.NoError(t, err)

	rec, out := doJSON(t, router, http.MethodPost, "/api/auth/wallet", AuthRequest{
		Action:    ActionVerify,
		Address:   wallet.Address(),
		Payload:   payload,
		Signature: sig,
	}, nil)
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	require.Equal(t, true, out["success"])

	session := out["session"].(map[string]any)
	user := session["user"].(map[string]any)
	require.NotEmpty(t, user["id"])
	require.Equal(t, strings.ToLower(wallet.Address()), user["wallet_address"])

	token, ok := session["access_token"].(string)
	require.True(t, ok)
	require.NotEmpty(t, token)

	t.Run("me", func(t *testing.T) {
		rec, me := doJSON(t, router, http.MethodGet, "/api/me", nil, map[string]string{"Authorization": "Bearer " + token})
		require.Equal(t, http.StatusOK, rec.Code)
		require.Equal(t, user["id"], me["id"])
		require.Equal(t, user["wallet_address"], me["wallet_address"])
		require.NotEmpty(t, me["last_login"])
	})

	t.Run("me without token", func(t *testing.T) {
		rec, _ := doJSON(t, router, http.MethodGet, "/api/me", nil, nil)
		require.Equal(t, http.StatusUnauthorized, rec.Code)
	})

	t.Run("me with garbage token", func(t *testing.T) {
		rec, out := doJSON(t, router, http.MethodGet, "/api/me", nil, map[string]string{"Authorization": "Bearer nope"})
		require.Equal(t, http.StatusUnauthorized, rec.Code)
		require.Equal(t, "Invalid token", out["error"])
	})
}

func TestVerifyAddressMismatch(t *testing.T) {
	router := newTestRouter(t, store.NewMemoryIdentityStore(), RouterConfig{})
	signer, err := eth.GenerateWallet()
	require.NoError(t, err)
	claimed, err := eth.GenerateWallet()
	require.NoError(t, err)

	payload := generate(t, router, claimed.Address())
	sig, err := signer.SignMessage(payload.Message())
	require.NoError(t, err)

	rec, out := doJSON(t, router, http.MethodPost, "/api/auth/wallet", AuthRequest{
		Action:    ActionVerify,
		Address:   claimed.Address(),
		Payload:   payload,
		Signature: sig,
	}, nil)
	require.Equal(t, http.StatusUnauthorized, rec.Code)
	require.Equal(t, "Invalid signature", out["error"])
	require.Equal(t, claimed.Address(), out["expected"])
	require.Equal(t, signer.Address(), out["received"])
}

func TestVerifyMissingFields(t *testing.T) {
	router := newTestRouter(t, store.NewMemoryIdentityStore(), RouterConfig{})
	payload := generate(t, router, "0xabc")

	tests := []struct {
		name string
		body any
	}{
		{name: "no payload", body: map[string]any{"action": "verify", "address": "0xabc", "signature": "0x00"}},
		{name: "no signature", body: map[string]any{"action": "verify", "address": "0xabc", "payload": payload}},
		{name: "no address", body: map[string]any{"action": "verify", "signature": "0x00", "payload": payload}},
		{name: "null payload", body: `{"action":"verify","address":"0xabc","signature":"0x00","payload":null}`},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			rec, out := doJSON(t, router, http.MethodPost, "/api/auth/wallet", tt.body, nil)
			require.Equal(t, http.StatusBadRequest, rec.Code)
			require.Equal(t, "Missing payload, signature, or address", out["error"])
		})
	}
}

func TestVerifyMalformedSignature(t *testing.T) {
	router := newTestRouter(t, store.NewMemoryIdentityStore(), RouterConfig{})
	payload := generate(t, router, "0xabc")

	rec, out := doJSON(t, router, http.MethodPost, "/api/auth/wallet", AuthRequest{
		Action:    ActionVerify,
		Address:   "0xabc",
		Payload:   payload,
		Signature: "0xdeadbeef",
	}, nil)
	require.Equal(t, http.StatusBadRequest, rec.Code)
	require.Contains(t, out["error"], "signature")
}

func TestVerifyIdentityFailure(t *testing.T) {
	router := newTestRouter(t, brokenStore{store.NewMemoryIdentityStore()}, RouterConfig{})
	wallet, err := eth.GenerateWallet()
	require.NoError(t, err)

	payload := generate(t, router, wallet.Address())
	sig, err := wallet.SignMessage(payload.Message())
	require.NoError(t, err)

	rec, out := doJSON(t, router, http.MethodPost, "/api/auth/wallet", AuthRequest{
		Action:    ActionVerify,
		Address:   wallet.Address(),
		Payload:   payload,
		Signature: sig,
	}, nil)
	require.Equal(t, http.StatusInternalServerError, rec.Code)
	require.Equal(t, "Failed to create user", out["error"])
}

func TestVerifyReplayRejected(t *testing.T) {
	router := newTestRouter(t, store.NewMemoryIdentityStore(), RouterConfig{},
		service.WithReplayProtection(store.NewMemoryNonceStore()))
	wallet, err := eth.GenerateWallet()
	require.NoError(t, err)

	payload := generate(t, router, wallet.Address())
	sig, err := wallet.SignMessage(payload.Message())
	require.NoError(t, err)

	body := AuthRequest{Action: ActionVerify, Address: wallet.Address(), Payload: payload, Signature: sig}

	rec, _ := doJSON(t, router, http.MethodPost, "/api/auth/wallet", body, nil)
	require.Equal(t, http.StatusOK, rec.Code)

	rec, out := doJSON(t, router, http.MethodPost, "/api/auth/wallet", body, nil)
	require.Equal(t, http.StatusUnauthorized, rec.Code)
	require.Equal(t, "Challenge already used", out["error"])
}

func TestVerifyRetryAfterServerFailure(t *testing.T) {
	identities := &toggleStore{MemoryIdentityStore: store.NewMemoryIdentityStore(), broken: true}
	router := newTestRouter(t, identities, RouterConfig{},
		service.WithReplayProtection(store.NewMemoryNonceStore()))
	wallet, err := eth.GenerateWallet()
	require.NoError(t, err)

	payload := generate(t, router, wallet.Address())
	sig, err := wallet.SignMessage(payload.Message())
	require.NoError(t, err)
	body := AuthRequest{Action: ActionVerify, Address: wallet.Address(), Payload: payload, Signature: sig}

	rec, out := doJSON(t, router, http.MethodPost, "/api/auth/wallet", body, nil)
	require.Equal(t, http.StatusInternalServerError, rec.Code)
	require.Equal(t, "Failed to create user", out["error"])

	// The client retries the very same signed challenge
	identities.broken = false
	rec, out = doJSON(t, router, http.MethodPost, "/api/auth/wallet", body, nil)
	require.Equal(t, http.StatusOK, rec.Code, out)
}

func TestInvalidAction(t *testing.T) {
	router := newTestRouter(t, store.NewMemoryIdentityStore(), RouterConfig{})

	for _, action := range []string{"", "refresh", "GENERATE"} {
		rec, out := doJSON(t, router, http.MethodPost, "/api/auth/wallet", map[string]string{"action": action}, nil)
		require.Equal(t, http.StatusBadRequest, rec.Code, action)
		require.Equal(t, "Invalid action", out["error"])
	}
}

func TestUndecodableBody(t *testing.T) {
	router := newTestRouter(t, store.NewMemoryIdentityStore(), RouterConfig{})

	rec, out := doJSON(t, router, http.MethodPost, "/api/auth/wallet", `{"action":`, nil)
	require.Equal(t, http.StatusInternalServerError, rec.Code)
	require.NotEmpty(t, out["error"])
}

func TestMistypedField(t *testing.T) {
	router := newTestRouter(t, store.NewMemoryIdentityStore(), RouterConfig{})

	for _, body := range []string{
		`{"action":"verify","address":"0xabc","signature":123}`,
		`{"action":"generate","address":["0xabc"]}`,
		`{"action":"verify","address":"0xabc","signature":"0x00","payload":"not-an-object"}`,
	} {
		rec, out := doJSON(t, router, http.MethodPost, "/api/auth/wallet", body, nil)
		require.Equal(t, http.StatusBadRequest, rec.Code, body)
		require.Contains(t, out["error"], "cannot unmarshal")
	}
}

func TestHealth(t *testing.T) {
	healthy := newTestRouter(t, store.NewMemoryIdentityStore(), RouterConfig{})
	rec, _ := doJSON(t, healthy, http.MethodGet, "/livez", nil, nil)
	require.Equal(t, http.StatusOK, rec.Code)
	rec, _ = doJSON(t, healthy, http.MethodGet, "/readyz", nil, nil)
	require.Equal(t, http.StatusOK, rec.Code)

	broken := newTestRouter(t, brokenStore{store.NewMemoryIdentityStore()}, RouterConfig{})
	rec, _ = doJSON(t, broken, http.MethodGet, "/livez", nil, nil)
	require.Equal(t, http.StatusOK, rec.Code)
	rec, _ = doJSON(t, broken, http.MethodGet, "/readyz", nil, nil)
	require.Equal(t, http.StatusServiceUnavailable, rec.Code)
}

func TestRequestIDHeader(t *testing.T) {
	router := newTestRouter(t, store.NewMemoryIdentityStore(), RouterConfig{})

	rec, _ := doJSON(t, router, http.MethodGet, "/livez", nil, map[string]string{"X-Request-ID": "req-123"})
	require.Equal(t, "req-123", rec.Header().Get("X-Request-ID"))

	rec, _ = doJSON(t, router, http.MethodGet, "/livez", nil, nil)
	require.NotEmpty(t, rec.Header().Get("X-Request-ID"))
}

func TestRateLimit(t *testing.T) {
	limit := RateLimitConfig{
		RequestsPerWindow: 1,
		Window:            time.Hour,
		Burst:             2,
	}
	body := AuthRequest{Action: ActionGenerate, Address: "0xabc"}

	t.Run("per client", func(t *testing.T) {
		router := newTestRouter(t, store.NewMemoryIdentityStore(), RouterConfig{RateLimit: limit})

		for range 2 {
			rec, _ := doJSON(t, router, http.MethodPost, "/api/auth/wallet", body, nil)
			require.Equal(t, http.StatusOK, rec.Code)
		}

		rec, out := doJSON(t, router, http.MethodPost, "/api/auth/wallet", body, nil)
		require.Equal(t, http.StatusTooManyRequests, rec.Code)
		require.Equal(t, "Too many requests", out["error"])
		require.NotEmpty(t, rec.Header().Get("Retry-After"))

		// Health checks are not rate limited
		rec, _ = doJSON(t, router, http.MethodGet, "/livez", nil, nil)
		require.Equal(t, http.StatusOK, rec.Code)
	})

	t.Run("forwarded header from untrusted peer is ignored", func(t *testing.T) {
		router := newTestRouter(t, store.NewMemoryIdentityStore(), RouterConfig{RateLimit: limit})

		codes := make([]int, 0, 5)
		for i := range 5 {
			rec, _ := doJSON(t, router, http.MethodPost, "/api/auth/wallet", body,
				map[string]string{"X-Forwarded-For": fmt.Sprintf("10.0.0.%d", i)})
			codes = append(codes, rec.Code)
		}

		require.Equal(t, []int{
			http.StatusOK,
			http.StatusOK,
			http.StatusTooManyRequests,
			http.StatusTooManyRequests,
			http.StatusTooManyRequests,
		}, codes)
	})

	t.Run("forwarded header from trusted proxy is honoured", func(t *testing.T) {
		// httptest requests come from 192.0.2.1
		router := newTestRouter(t, store.NewMemoryIdentityStore(), RouterConfig{
			RateLimit:      limit,
			TrustedProxies: []string{"192.0.2.0/24"},
		})

		for i := range 5 {
			rec, _ := doJSON(t, router, http.MethodPost, "/api/auth/wallet", body,
				map[string]string{"X-Forwarded-For": fmt.Sprintf("10.0.0.%d", i)})
			require.Equal(t, http.StatusOK, rec.Code)
		}
	})
}

func TestSetupRouterRejectsBadProxies(t *testing.T) {
	key, err := ecdsa.GenerateKey(elliptic.P256(), rand.Reader)
	require.NoError(t, err)
	svc := service.NewAuthService(
		store.NewMemoryIdentityStore(),
		tokenizer.NewJWTTokenizer(key, "storefront-auth", time.Hour),
		eth.Recoverer{},
		events.NopPublisher{},
	)

	_, err = SetupRouter(svc, slogx.Discard(), RouterConfig{TrustedProxies: []string{"not-an-ip"}})
	require.ErrorContains(t, err, "invalid trusted proxies")
}
