package auth

import (
	"context"
	"errors"

	"github.com/yoku-app/gateway/internal/observability"
)

// TokenValidator resolves a bearer credential through the identity
// provider. It never fails for "invalid token": a rejected credential and
// an unreachable provider both report "no identity". An unavailable
// provider is never substituted with an assumption of trust.
type TokenValidator struct {
	provider Provider
	logger   observability.Logger
}

// NewTokenValidator creates a TokenValidator.
func NewTokenValidator(provider Provider, logger observability.Logger) *TokenValidator {
	if logger == nil {
		logger = observability.NopLogger()
	}
	return &TokenValidator{provider: provider, logger: logger}
}

// Validate returns the identity the credential belongs to, or nil when the
// credential is invalid, expired, or the provider could not be reached.
func (v *TokenValidator) Validate(ctx context.Context, token string) *Identity {
	identity, err := v.provider.ResolveIdentity(ctx, token)
	if err == nil {
		GetAuthMetrics().providerRequests.WithLabelValues("resolved").Inc()
		return identity
	}

	var providerErr *ProviderError
	if errors.As(err, &providerErr) {
		GetAuthMetrics().providerRequests.WithLabelValues("rejected").Inc()
		v.logger.Debug("identity provider rejected credential",
			observability.Int("status", providerErr.Status))
		return nil
	}

	// Transport failure: fail closed.
	GetAuthMetrics().providerRequests.WithLabelValues("error").Inc()
	v.logger.Error("identity provider call failed",
		observability.Error(err))
	return nil
}
