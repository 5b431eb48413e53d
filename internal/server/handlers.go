package server

import (
	"bytes"
	"encoding/json"
	"io"
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"

	"github.com/yoku-app/gateway/internal/apierror"
	"github.com/yoku-app/gateway/internal/auth"
	"github.com/yoku-app/gateway/internal/observability"
)

// maxHandlerBody bounds request and upstream bodies buffered by composite
// handlers.
const maxHandlerBody = 1 << 20

// handleLogout revokes the caller's token. The authentication hook has
// already resolved the credential, so a missing token here means the hook
// was bypassed.
func (s *Server) handleLogout(c *gin.Context) {
	token, ok := auth.BearerToken(c.GetHeader("Authorization"))
	if !ok {
		_ = c.Error(apierror.Authentication("missing authentication token for protected endpoint"))
		return
	}

	if err := s.revoker.Revoke(c.Request.Context(), token); err != nil {
		_ = c.Error(apierror.Operation("failed to revoke token", apierror.WithCause(err)))
		return
	}

	s.logger.Info("token revoked",
		observability.String("request_id", observability.RequestIDFromContext(c.Request.Context())))
	c.Status(http.StatusNoContent)
}

// handlePublicUserLookup validates the user ID before touching the backend
// and relays the backend's response, including its errors, verbatim.
func (s *Server) handlePublicUserLookup(c *gin.Context) {
	userID := c.Param("userId")
	if _, err := uuid.Parse(userID); err != nil {
		_ = c.Error(apierror.BadRequest("Invalid UUID",
			apierror.WithField("userId"),
			apierror.WithoutLogging()))
		return
	}

	route, ok := s.table.Match(c.Request.URL.Path)
	if !ok {
		_ = c.Error(apierror.NotFound("resource not found", apierror.WithoutLogging()))
		return
	}
	forwarder, ok := s.registry.Get(route.Service)
	if !ok {
		_ = c.Error(apierror.Operation("no backend registered for service " + route.Service))
		return
	}

	upstreamPath := c.Request.URL.Path
	if route.StripPrefix {
		upstreamPath = upstreamPath[len(route.Prefix):]
	}

	resp, err := forwarder.Do(c.Request.Context(), http.MethodGet, upstreamPath, nil, nil)
	if err != nil {
		_ = c.Error(err)
		return
	}
	defer func() { _ = resp.Body.Close() }()

	body, err := io.ReadAll(io.LimitReader(resp.Body, maxHandlerBody))
	if err != nil {
		_ = c.Error(apierror.Operation("failed to read backend response", apierror.WithCause(err)))
		return
	}

	if resp.StatusCode < http.StatusOK || resp.StatusCode >= http.StatusMultipleChoices {
		_ = c.Error(apierror.Upstream(resp.StatusCode, resp.Header.Get("Content-Type"), body))
		return
	}

	c.Data(resp.StatusCode, resp.Header.Get("Content-Type"), body)
}

// userUpdatePayload is the subset of the profile body the gateway inspects.
type userUpdatePayload struct {
	ID string `json:"id"`
}

// handleUserUpdate lets a caller modify only their own profile. The body is
// buffered for the ownership check and replayed to the backend untouched.
func (s *Server) handleUserUpdate(c *gin.Context) {
	identity, err := auth.RequireIdentity(c.Request.Context())
	if err != nil {
		_ = c.Error(err)
		return
	}

	body, err := io.ReadAll(io.LimitReader(c.Request.Body, maxHandlerBody))
	if err != nil {
		_ = c.Error(apierror.BadRequest("failed to read request body", apierror.WithCause(err)))
		return
	}

	var payload userUpdatePayload
	if err := json.Unmarshal(body, &payload); err != nil {
		_ = c.Error(apierror.BadRequest("invalid request body", apierror.WithCause(err)))
		return
	}

	if payload.ID != identity.ID {
		_ = c.Error(apierror.Authentication("cannot modify another user's profile"))
		return
	}

	c.Request.Body = io.NopCloser(bytes.NewReader(body))
	c.Request.ContentLength = int64(len(body))
	s.dispatch(c)
}
