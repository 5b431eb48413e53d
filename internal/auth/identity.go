// Package auth implements request authentication for the gateway: bearer
// credential extraction, public-route classification, cache-aside identity
// resolution against the external identity provider, and token revocation.
package auth

import (
	"context"
)

// Identity represents an authenticated caller. It is resolved from, and
// deferred to, the external identity provider; the gateway only caches
// copies and never mutates one after resolution.
type Identity struct {
	// ID is the stable unique identifier of the caller.
	ID string `json:"id"`

	// Email is the email address of the caller, if known.
	Email string `json:"email,omitempty"`

	// Metadata carries provider-specific attributes opaque to the gateway.
	Metadata map[string]any `json:"metadata,omitempty"`
}

// Cache key formats. These must be reproduced exactly: revocation entries
// are written by an external logout flow and read here.
const (
	authKeyPrefix    = "auth:"
	revokedKeyPrefix = "revoked_token:"
)

// AuthKey returns the positive-cache key for a token.
func AuthKey(token string) string {
	return authKeyPrefix + token
}

// RevokedKey returns the revocation-set key for a token.
func RevokedKey(token string) string {
	return revokedKeyPrefix + token
}

type identityContextKey struct{}

// ContextWithIdentity attaches a resolved identity to the context. It is
// written at most once per request, before any downstream handler runs.
func ContextWithIdentity(ctx context.Context, identity *Identity) context.Context {
	return context.WithValue(ctx, identityContextKey{}, identity)
}

// IdentityFromContext extracts the identity from the context. The second
// return is false for public or anonymous requests.
func IdentityFromContext(ctx context.Context) (*Identity, bool) {
	identity, ok := ctx.Value(identityContextKey{}).(*Identity)
	if !ok || identity == nil {
		return nil, false
	}
	return identity, true
}
