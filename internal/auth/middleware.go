package auth

import (
	"context"
	"errors"

	"github.com/gin-gonic/gin"

	"github.com/yoku-app/gateway/internal/apierror"
)

// Rejection messages for unauthenticated outcomes.
const (
	msgMissingToken = "missing authentication token for protected endpoint"
	msgRevokedToken = "token has been revoked"
	msgInvalidToken = "invalid token"
)

// Middleware gates every request before any handler executes. Public paths
// pass through untouched with no resolution attempted; all other paths
// require a resolved identity, which is attached to the request context for
// downstream handlers.
func Middleware(resolver *Resolver) gin.HandlerFunc {
	return func(c *gin.Context) {
		if IsPublic(c.Request.URL.Path) {
			c.Next()
			return
		}

		identity, err := resolver.Resolve(c.Request.Context(), c.GetHeader("Authorization"))
		if err != nil {
			_ = c.Error(rejectionError(err))
			c.Abort()
			return
		}

		ctx := ContextWithIdentity(c.Request.Context(), identity)
		c.Request = c.Request.WithContext(ctx)
		c.Next()
	}
}

// rejectionError converts a resolution failure into a classified error.
func rejectionError(err error) error {
	switch {
	case errors.Is(err, ErrNoCredentials):
		return apierror.Authentication(msgMissingToken, apierror.WithoutLogging())
	case errors.Is(err, ErrTokenRevoked):
		return apierror.Authentication(msgRevokedToken)
	case errors.Is(err, ErrInvalidToken):
		return apierror.Authentication(msgInvalidToken, apierror.WithoutLogging())
	default:
		return apierror.From(err)
	}
}

// RequireIdentity returns the identity attached to the context, or an
// authentication error when it is absent. Handlers that need a caller must
// use this rather than assuming the hook ran; absence means an
// unauthenticated caller, not a programming fault.
func RequireIdentity(ctx context.Context) (*Identity, error) {
	identity, ok := IdentityFromContext(ctx)
	if !ok {
		return nil, apierror.Authentication("authentication required to perform this action")
	}
	return identity, nil
}
