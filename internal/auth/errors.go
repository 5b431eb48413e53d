package auth

import (
	"errors"
	"fmt"
)

// Sentinel errors for authentication outcomes. All three resolve to an
// unauthenticated request; they are kept distinct so the rejection can
// carry a precise reason.
var (
	// ErrNoCredentials indicates that no bearer credential was supplied.
	ErrNoCredentials = errors.New("no credentials provided")

	// ErrTokenRevoked indicates that the credential has been explicitly
	// invalidated before its natural expiry.
	ErrTokenRevoked = errors.New("token revoked")

	// ErrInvalidToken indicates that the identity provider did not
	// resolve the credential to an identity.
	ErrInvalidToken = errors.New("invalid token")
)

// ProviderError is a failure reported by the identity provider itself,
// carrying the provider's own HTTP status.
type ProviderError struct {
	Status  int
	Message string
}

// Error implements the error interface.
func (e *ProviderError) Error() string {
	if e.Message != "" {
		return fmt.Sprintf("identity provider rejected credential (%d): %s", e.Status, e.Message)
	}
	return fmt.Sprintf("identity provider rejected credential (%d)", e.Status)
}

// StatusCode returns the provider's own status for boundary translation.
func (e *ProviderError) StatusCode() int {
	return e.Status
}

// Is checks if the error matches the target.
func (e *ProviderError) Is(target error) bool {
	_, ok := target.(*ProviderError)
	return ok
}
