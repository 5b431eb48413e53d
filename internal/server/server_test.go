package server

import (
	"net/http"
	"net/http/httptest"
	"strings"
	"sync/atomic"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/yoku-app/gateway/internal/auth"
	"github.com/yoku-app/gateway/internal/cache"
	"github.com/yoku-app/gateway/internal/config"
	"github.com/yoku-app/gateway/internal/health"
	"github.com/yoku-app/gateway/internal/observability"
	"github.com/yoku-app/gateway/internal/proxy"
)

const (
	callerID    = "3b241101-e2bb-4255-8caf-4136c566a962"
	otherUserID = "9f8b2d11-7c3a-4e55-9a1f-2b6d8e4c0a77"
)

type gatewayHarness struct {
	handler       http.Handler
	server        *Server
	mr            *miniredis.Miniredis
	providerCalls *atomic.Int32
	backendCalls  *atomic.Int32
}

// newGatewayHarness assembles a full gateway against a scripted identity
// provider and a scripted backend.
func newGatewayHarness(t *testing.T) *gatewayHarness {
	t.Helper()

	logger := observability.NopLogger()

	var providerCalls atomic.Int32
	providerSrv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		providerCalls.Add(1)
		if r.Header.Get("Authorization") == "Bearer valid-token" {
			w.Header().Set("Content-Type", "application/json")
			_, _ = w.Write([]byte(`{"id":"` + callerID + `","email":"caller@example.com"}`))
			return
		}
		w.WriteHeader(http.StatusUnauthorized)
		_, _ = w.Write([]byte(`{"msg":"invalid JWT"}`))
	}))
	t.Cleanup(providerSrv.Close)

	var backendCalls atomic.Int32
	backendSrv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		backendCalls.Add(1)
		w.Header().Set("Content-Type", "application/json")
		switch {
		case strings.HasPrefix(r.URL.Path, "/api/p/user/"):
			if strings.HasSuffix(r.URL.Path, otherUserID) {
				w.WriteHeader(http.StatusNotFound)
				_, _ = w.Write([]byte(`{"errors":[{"message":"User not found"}]}`))
				return
			}
			_, _ = w.Write([]byte(`{"id":"` + callerID + `","displayName":"Caller"}`))
		case r.Method == http.MethodPut && r.URL.Path == "/api/user/":
			_, _ = w.Write([]byte(`{"updated":true}`))
		default:
			_, _ = w.Write([]byte(`{"path":"` + r.URL.Path + `"}`))
		}
	}))
	t.Cleanup(backendSrv.Close)

	mr := miniredis.RunT(t)
	identityCache, err := cache.New(&config.CacheConfig{
		Type:  config.CacheTypeRedis,
		Redis: &config.RedisCacheConfig{URL: "redis://" + mr.Addr()},
	}, logger)
	require.NoError(t, err)
	t.Cleanup(func() { _ = identityCache.Close() })

	cfg := &config.Config{
		Provider: config.ProviderConfig{
			URL:     providerSrv.URL,
			Timeout: config.Duration(2 * time.Second),
		},
		Services: []config.Service{
			{Name: "user", URL: backendSrv.URL},
			{Name: "survey", URL: backendSrv.URL},
		},
		Routes: []config.Route{
			{Prefix: "/api/user", Service: "user"},
			{Prefix: "/api/p/user", Service: "user"},
			{Prefix: "/api/survey", Service: "survey"},
			{Prefix: "/api/p/survey", Service: "survey"},
		},
	}
	cfg.SetDefaults()

	provider := auth.NewHTTPProvider(&cfg.Provider, logger)
	validator := auth.NewTokenValidator(provider, logger)
	resolver := auth.NewResolver(identityCache, validator, time.Hour, logger)
	revoker := auth.NewRevoker(identityCache, logger)

	registry, err := proxy.NewRegistry(cfg.Services, logger)
	require.NoError(t, err)

	srv := New(cfg, resolver, revoker, registry,
		health.NewHandler(identityCache, "test", logger), logger)

	return &gatewayHarness{
		handler:       srv.Handler(),
		server:        srv,
		mr:            mr,
		providerCalls: &providerCalls,
		backendCalls:  &backendCalls,
	}
}

func (h *gatewayHarness) do(method, path, token, body string) *httptest.ResponseRecorder {
	var reader *strings.Reader
	if body != "" {
		reader = strings.NewReader(body)
	} else {
		reader = strings.NewReader("")
	}

	req := httptest.NewRequest(method, path, reader)
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}
	rec := httptest.NewRecorder()
	h.handler.ServeHTTP(rec, req)
	return rec
}

func TestGateway_PublicRoutes(t *testing.T) {
	t.Run("public route forwards without credentials", func(t *testing.T) {
		h := newGatewayHarness(t)

		rec := h.do(http.MethodGet, "/api/p/survey/1", "", "")
		assert.Equal(t, http.StatusOK, rec.Code)
		assert.Zero(t, h.providerCalls.Load())
		assert.Equal(t, int32(1), h.backendCalls.Load())
	})

	t.Run("health endpoint is public", func(t *testing.T) {
		h := newGatewayHarness(t)

		rec := h.do(http.MethodGet, "/api/p/health", "", "")
		assert.Equal(t, http.StatusOK, rec.Code)
		assert.Zero(t, h.providerCalls.Load())
	})
}

func TestGateway_ProtectedRoutes(t *testing.T) {
	t.Run("request without a token is rejected", func(t *testing.T) {
		h := newGatewayHarness(t)

		rec := h.do(http.MethodGet, "/api/survey/1", "", "")
		assert.Equal(t, http.StatusUnauthorized, rec.Code)
		assert.JSONEq(t,
			`{"errors":[{"message":"missing authentication token for protected endpoint"}]}`,
			rec.Body.String())
		assert.Zero(t, h.backendCalls.Load())
	})

	t.Run("invalid token is rejected without reaching the backend", func(t *testing.T) {
		h := newGatewayHarness(t)

		rec := h.do(http.MethodGet, "/api/survey/1", "expired-token", "")
		assert.Equal(t, http.StatusUnauthorized, rec.Code)
		assert.JSONEq(t, `{"errors":[{"message":"invalid token"}]}`, rec.Body.String())
		assert.Zero(t, h.backendCalls.Load())
	})

	t.Run("valid token forwards and later requests hit the cache", func(t *testing.T) {
		h := newGatewayHarness(t)

		rec := h.do(http.MethodGet, "/api/survey/1", "valid-token", "")
		assert.Equal(t, http.StatusOK, rec.Code)
		assert.Equal(t, int32(1), h.providerCalls.Load())

		assert.True(t, h.mr.Exists("auth:valid-token"))
		assert.Equal(t, time.Hour, h.mr.TTL("auth:valid-token"))

		rec = h.do(http.MethodGet, "/api/survey/2", "valid-token", "")
		assert.Equal(t, http.StatusOK, rec.Code)
		assert.Equal(t, int32(1), h.providerCalls.Load())
	})

	t.Run("unrouted path is a 404 in the standard shape", func(t *testing.T) {
		h := newGatewayHarness(t)

		rec := h.do(http.MethodGet, "/api/orders/1", "valid-token", "")
		assert.Equal(t, http.StatusNotFound, rec.Code)
		assert.JSONEq(t, `{"errors":[{"message":"resource not found"}]}`, rec.Body.String())
	})
}

func TestGateway_Logout(t *testing.T) {
	t.Run("logout revokes the token for subsequent requests", func(t *testing.T) {
		h := newGatewayHarness(t)

		rec := h.do(http.MethodGet, "/api/survey/1", "valid-token", "")
		require.Equal(t, http.StatusOK, rec.Code)

		rec = h.do(http.MethodPost, "/api/auth/logout", "valid-token", "")
		assert.Equal(t, http.StatusNoContent, rec.Code)

		assert.True(t, h.mr.Exists("revoked_token:valid-token"))
		assert.False(t, h.mr.Exists("auth:valid-token"))

		rec = h.do(http.MethodGet, "/api/survey/1", "valid-token", "")
		assert.Equal(t, http.StatusUnauthorized, rec.Code)
		assert.JSONEq(t, `{"errors":[{"message":"token has been revoked"}]}`, rec.Body.String())
	})

	t.Run("logout without a token is rejected", func(t *testing.T) {
		h := newGatewayHarness(t)

		rec := h.do(http.MethodPost, "/api/auth/logout", "", "")
		assert.Equal(t, http.StatusUnauthorized, rec.Code)
	})
}

func TestGateway_PublicUserLookup(t *testing.T) {
	t.Run("malformed UUID is rejected before the backend", func(t *testing.T) {
		h := newGatewayHarness(t)

		rec := h.do(http.MethodGet, "/api/p/user/not-a-uuid", "", "")
		assert.Equal(t, http.StatusBadRequest, rec.Code)
		assert.JSONEq(t, `{"errors":[{"message":"Invalid UUID","field":"userId"}]}`, rec.Body.String())
		assert.Zero(t, h.backendCalls.Load())
	})

	t.Run("backend response is relayed", func(t *testing.T) {
		h := newGatewayHarness(t)

		rec := h.do(http.MethodGet, "/api/p/user/"+callerID, "", "")
		assert.Equal(t, http.StatusOK, rec.Code)
		assert.Contains(t, rec.Body.String(), "Caller")
	})

	t.Run("backend error passes through verbatim", func(t *testing.T) {
		h := newGatewayHarness(t)

		rec := h.do(http.MethodGet, "/api/p/user/"+otherUserID, "", "")
		assert.Equal(t, http.StatusNotFound, rec.Code)
		assert.JSONEq(t, `{"errors":[{"message":"User not found"}]}`, rec.Body.String())
	})
}

func TestGateway_UserUpdate(t *testing.T) {
	t.Run("caller may update their own profile", func(t *testing.T) {
		h := newGatewayHarness(t)

		rec := h.do(http.MethodPut, "/api/user/", "valid-token",
			`{"id":"`+callerID+`","displayName":"New Name"}`)
		assert.Equal(t, http.StatusOK, rec.Code)
		assert.JSONEq(t, `{"updated":true}`, rec.Body.String())
	})

	t.Run("updating another user's profile is rejected", func(t *testing.T) {
		h := newGatewayHarness(t)

		rec := h.do(http.MethodPut, "/api/user/", "valid-token",
			`{"id":"`+otherUserID+`","displayName":"Hijack"}`)
		assert.Equal(t, http.StatusUnauthorized, rec.Code)
		assert.JSONEq(t,
			`{"errors":[{"message":"cannot modify another user's profile"}]}`,
			rec.Body.String())
	})

	t.Run("malformed body is a bad request", func(t *testing.T) {
		h := newGatewayHarness(t)

		rec := h.do(http.MethodPut, "/api/user/", "valid-token", `{broken`)
		assert.Equal(t, http.StatusBadRequest, rec.Code)
	})
}

func TestGateway_ApplyConfig(t *testing.T) {
	t.Run("reload reroutes traffic", func(t *testing.T) {
		h := newGatewayHarness(t)

		rec := h.do(http.MethodGet, "/api/p/survey/1", "", "")
		require.Equal(t, http.StatusOK, rec.Code)

		next := *h.server.cfg
		next.Routes = []config.Route{
			{Prefix: "/api/p/user", Service: "user"},
		}
		h.server.ApplyConfig(&next)

		rec = h.do(http.MethodGet, "/api/p/survey/1", "", "")
		assert.Equal(t, http.StatusNotFound, rec.Code)
	})
}
