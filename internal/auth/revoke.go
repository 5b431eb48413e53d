package auth

import (
	"context"
	"fmt"

	"github.com/yoku-app/gateway/internal/cache"
	"github.com/yoku-app/gateway/internal/observability"
)

// revokedSentinel is the marker stored under a revocation key. Any truthy
// serialized value establishes the deny; "1" matches what the logout flow
// writes.
const revokedSentinel = "1"

// Revoker invalidates a credential before its natural expiry. The sentinel
// is written first so the deny holds even if dropping the positive entry
// fails.
type Revoker struct {
	cache  cache.Cache
	logger observability.Logger
}

// NewRevoker creates a Revoker.
func NewRevoker(c cache.Cache, logger observability.Logger) *Revoker {
	if logger == nil {
		logger = observability.NopLogger()
	}
	return &Revoker{cache: c, logger: logger}
}

// Revoke adds the token to the revocation set and drops its cached
// identity. The sentinel does not expire; revocation must outlive any
// cached copy of the identity.
func (rv *Revoker) Revoke(ctx context.Context, token string) error {
	if token == "" {
		return ErrNoCredentials
	}

	if err := rv.cache.Set(ctx, RevokedKey(token), []byte(revokedSentinel), 0); err != nil {
		return fmt.Errorf("write revocation marker: %w", err)
	}

	if err := rv.cache.Delete(ctx, AuthKey(token)); err != nil {
		// The revocation marker already holds; the stale positive entry
		// can never be served past it.
		rv.logger.Warn("failed to drop cached identity for revoked token",
			observability.Error(err))
	}

	GetAuthMetrics().revocations.Inc()
	return nil
}
