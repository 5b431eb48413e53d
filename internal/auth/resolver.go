package auth

import (
	"context"
	"time"

	"github.com/yoku-app/gateway/internal/apierror"
	"github.com/yoku-app/gateway/internal/cache"
	"github.com/yoku-app/gateway/internal/observability"
)

// Resolver resolves a caller's identity from the Authorization header with
// a cache-aside strategy: revocation check, then positive cache, then the
// identity provider, then cache population.
//
// The five steps run strictly in order within one request. Across requests
// sharing a token no mutual exclusion is enforced; duplicate provider calls
// and duplicate cache writes are accepted (last write wins, values are
// equivalent).
type Resolver struct {
	cache     cache.Cache
	validator *TokenValidator
	logger    observability.Logger
	ttl       time.Duration
}

// NewResolver creates a Resolver. ttl bounds the lifetime of positive
// cache entries.
func NewResolver(c cache.Cache, validator *TokenValidator, ttl time.Duration, logger observability.Logger) *Resolver {
	if logger == nil {
		logger = observability.NopLogger()
	}
	return &Resolver{
		cache:     c,
		validator: validator,
		logger:    logger,
		ttl:       ttl,
	}
}

// Resolve resolves the identity for the given Authorization header value.
//
// Unauthenticated outcomes return ErrNoCredentials, ErrTokenRevoked, or
// ErrInvalidToken. A positive-cache transport failure surfaces as an
// operation error; a revocation-check transport failure is logged and the
// resolution proceeds.
func (r *Resolver) Resolve(ctx context.Context, authorization string) (*Identity, error) {
	token, ok := BearerToken(authorization)
	if !ok {
		GetAuthMetrics().resolutions.WithLabelValues("missing").Inc()
		return nil, ErrNoCredentials
	}

	// Revocation wins unconditionally over any cached identity, so it is
	// checked before the positive cache is ever consulted.
	revoked, err := cache.Exists(ctx, r.cache, RevokedKey(token))
	if err != nil {
		r.logger.Warn("revocation check failed, proceeding without it",
			observability.Error(err))
	}
	if revoked {
		GetAuthMetrics().resolutions.WithLabelValues("revoked").Inc()
		return nil, ErrTokenRevoked
	}

	cached, err := cache.GetJSON[Identity](ctx, r.cache, AuthKey(token))
	if err != nil {
		GetAuthMetrics().resolutions.WithLabelValues("error").Inc()
		return nil, apierror.Operation("identity cache unavailable", apierror.WithCause(err))
	}
	if cached != nil {
		GetAuthMetrics().resolutions.WithLabelValues("cache_hit").Inc()
		return cached, nil
	}

	identity := r.validator.Validate(ctx, token)
	if identity == nil {
		GetAuthMetrics().resolutions.WithLabelValues("invalid").Inc()
		return nil, ErrInvalidToken
	}

	// Best effort: the identity is already resolved, so a failed cache
	// write must not fail the request.
	if err := cache.SetJSON(ctx, r.cache, AuthKey(token), identity, r.ttl); err != nil {
		r.logger.Warn("failed to cache resolved identity",
			observability.Error(err))
	}

	GetAuthMetrics().resolutions.WithLabelValues("resolved").Inc()
	return identity, nil
}
