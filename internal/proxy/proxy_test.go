package proxy

import (
	"context"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/yoku-app/gateway/internal/apierror"
	"github.com/yoku-app/gateway/internal/config"
	"github.com/yoku-app/gateway/internal/observability"
)

func newTestForwarder(t *testing.T, handler http.HandlerFunc) *Forwarder {
	t.Helper()

	srv := httptest.NewServer(handler)
	t.Cleanup(srv.Close)

	f, err := NewForwarder("backend", srv.URL, WithTransport(http.DefaultTransport))
	require.NoError(t, err)
	return f
}

func TestForwarder_Forward(t *testing.T) {
	t.Run("relays method, path, query, and body", func(t *testing.T) {
		f := newTestForwarder(t, func(w http.ResponseWriter, r *http.Request) {
			assert.Equal(t, http.MethodPost, r.Method)
			assert.Equal(t, "/api/user/1", r.URL.Path)
			assert.Equal(t, "full=true", r.URL.RawQuery)

			body, _ := io.ReadAll(r.Body)
			assert.Equal(t, `{"name":"x"}`, string(body))

			w.Header().Set("Content-Type", "application/json")
			w.WriteHeader(http.StatusCreated)
			_, _ = w.Write([]byte(`{"ok":true}`))
		})

		req := httptest.NewRequest(http.MethodPost, "/api/user/1?full=true",
			strings.NewReader(`{"name":"x"}`))
		rec := httptest.NewRecorder()

		require.NoError(t, f.Forward(rec, req, ""))
		assert.Equal(t, http.StatusCreated, rec.Code)
		assert.Equal(t, "application/json", rec.Header().Get("Content-Type"))
		assert.Equal(t, `{"ok":true}`, rec.Body.String())
	})

	t.Run("upstream errors are relayed verbatim, not translated", func(t *testing.T) {
		f := newTestForwarder(t, func(w http.ResponseWriter, r *http.Request) {
			w.Header().Set("Content-Type", "application/problem+json")
			w.WriteHeader(http.StatusUnprocessableEntity)
			_, _ = w.Write([]byte(`{"detail":"name too short"}`))
		})

		rec := httptest.NewRecorder()
		require.NoError(t, f.Forward(rec, httptest.NewRequest(http.MethodGet, "/x", nil), ""))

		assert.Equal(t, http.StatusUnprocessableEntity, rec.Code)
		assert.Equal(t, `{"detail":"name too short"}`, rec.Body.String())
		assert.Equal(t, "application/problem+json", rec.Header().Get("Content-Type"))
	})

	t.Run("strips the route prefix when asked", func(t *testing.T) {
		f := newTestForwarder(t, func(w http.ResponseWriter, r *http.Request) {
			assert.Equal(t, "/42", r.URL.Path)
		})

		rec := httptest.NewRecorder()
		require.NoError(t, f.Forward(rec, httptest.NewRequest(http.MethodGet, "/api/survey/42", nil), "/api/survey"))
	})

	t.Run("joins the upstream base path", func(t *testing.T) {
		srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			assert.Equal(t, "/v2/api/user/1", r.URL.Path)
		}))
		t.Cleanup(srv.Close)

		f, err := NewForwarder("backend", srv.URL+"/v2", WithTransport(http.DefaultTransport))
		require.NoError(t, err)

		rec := httptest.NewRecorder()
		require.NoError(t, f.Forward(rec, httptest.NewRequest(http.MethodGet, "/api/user/1", nil), ""))
	})

	t.Run("sets forwarding headers and drops hop-by-hop ones", func(t *testing.T) {
		f := newTestForwarder(t, func(w http.ResponseWriter, r *http.Request) {
			assert.NotEmpty(t, r.Header.Get("X-Forwarded-For"))
			assert.Equal(t, "gateway.example.com", r.Header.Get("X-Forwarded-Host"))
			assert.Equal(t, "http", r.Header.Get("X-Forwarded-Proto"))
			assert.Empty(t, r.Header.Get("Proxy-Authorization"))
			assert.Equal(t, "Bearer tok", r.Header.Get("Authorization"))
		})

		req := httptest.NewRequest(http.MethodGet, "/x", nil)
		req.Host = "gateway.example.com"
		req.Header.Set("Authorization", "Bearer tok")
		req.Header.Set("Proxy-Authorization", "secret")

		rec := httptest.NewRecorder()
		require.NoError(t, f.Forward(rec, req, ""))
	})

	t.Run("unreachable backend is a classified internal error", func(t *testing.T) {
		f, err := NewForwarder("backend", "http://127.0.0.1:1", WithTransport(http.DefaultTransport))
		require.NoError(t, err)

		rec := httptest.NewRecorder()
		err = f.Forward(rec, httptest.NewRequest(http.MethodGet, "/x", nil), "")
		require.Error(t, err)

		apiErr := apierror.From(err)
		assert.Equal(t, apierror.KindOperation, apiErr.Kind())
		assert.Equal(t, http.StatusInternalServerError, apiErr.Status())
		assert.Contains(t, apiErr.Message(), "backend")
	})
}

func TestForwarder_Do(t *testing.T) {
	t.Run("returns the raw upstream response", func(t *testing.T) {
		f := newTestForwarder(t, func(w http.ResponseWriter, r *http.Request) {
			assert.Equal(t, "/user/1", r.URL.Path)
			w.WriteHeader(http.StatusNotFound)
			_, _ = w.Write([]byte(`{"errors":[{"message":"User not found"}]}`))
		})

		resp, err := f.Do(context.Background(), http.MethodGet, "/user/1", nil, nil)
		require.NoError(t, err)
		defer func() { _ = resp.Body.Close() }()

		assert.Equal(t, http.StatusNotFound, resp.StatusCode)
		body, _ := io.ReadAll(resp.Body)
		assert.Contains(t, string(body), "User not found")
	})
}

func TestNewForwarder(t *testing.T) {
	t.Run("rejects an unparseable URL", func(t *testing.T) {
		_, err := NewForwarder("backend", "://nope")
		assert.Error(t, err)
	})
}

func TestRegistry(t *testing.T) {
	logger := observability.NopLogger()

	t.Run("lookup by service name", func(t *testing.T) {
		reg, err := NewRegistry([]config.Service{
			{Name: "user", URL: "http://localhost:8081"},
		}, logger)
		require.NoError(t, err)

		_, ok := reg.Get("user")
		assert.True(t, ok)
		_, ok = reg.Get("orders")
		assert.False(t, ok)
	})

	t.Run("rebuild swaps the service set", func(t *testing.T) {
		reg, err := NewRegistry([]config.Service{
			{Name: "user", URL: "http://localhost:8081"},
		}, logger)
		require.NoError(t, err)

		require.NoError(t, reg.Rebuild([]config.Service{
			{Name: "orders", URL: "http://localhost:8082"},
		}))

		_, ok := reg.Get("user")
		assert.False(t, ok)
		_, ok = reg.Get("orders")
		assert.True(t, ok)
	})

	t.Run("rebuild keeps the forwarder for an unchanged upstream", func(t *testing.T) {
		reg, err := NewRegistry([]config.Service{
			{Name: "user", URL: "http://localhost:8081"},
		}, logger)
		require.NoError(t, err)

		before, ok := reg.Get("user")
		require.True(t, ok)

		require.NoError(t, reg.Rebuild([]config.Service{
			{Name: "user", URL: "http://localhost:8081"},
		}))

		after, ok := reg.Get("user")
		require.True(t, ok)
		assert.Same(t, before, after)
	})
}

func TestStatusClass(t *testing.T) {
	assert.Equal(t, "2xx", statusClass(204))
	assert.Equal(t, "3xx", statusClass(302))
	assert.Equal(t, "4xx", statusClass(404))
	assert.Equal(t, "5xx", statusClass(503))
}
