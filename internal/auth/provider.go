package auth

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"

	"github.com/yoku-app/gateway/internal/config"
	"github.com/yoku-app/gateway/internal/observability"
)

// Provider resolves a bearer credential to an identity. It is the gateway's
// only view of the external identity provider.
type Provider interface {
	// ResolveIdentity verifies the credential and returns the caller it
	// belongs to. A *ProviderError means the provider rejected the
	// credential; any other error is a transport-level failure.
	ResolveIdentity(ctx context.Context, token string) (*Identity, error)
}

// userEndpoint is the provider's credential-to-user resolution endpoint.
const userEndpoint = "/auth/v1/user"

// maxProviderBody bounds how much of a provider response is read.
const maxProviderBody = 1 << 20

// httpProvider calls the identity provider over HTTP.
type httpProvider struct {
	baseURL string
	apiKey  string
	client  *http.Client
	logger  observability.Logger
}

// NewHTTPProvider creates a Provider backed by the configured identity
// provider endpoint.
func NewHTTPProvider(cfg *config.ProviderConfig, logger observability.Logger) Provider {
	if logger == nil {
		logger = observability.NopLogger()
	}
	return &httpProvider{
		baseURL: strings.TrimRight(cfg.URL, "/"),
		apiKey:  cfg.APIKey,
		client:  &http.Client{Timeout: cfg.Timeout.Duration()},
		logger:  logger,
	}
}

// providerUser is the provider's wire representation of a user record.
type providerUser struct {
	ID           string         `json:"id"`
	Email        string         `json:"email"`
	UserMetadata map[string]any `json:"user_metadata"`
}

// providerFailure is the provider's wire representation of a rejection.
type providerFailure struct {
	Message          string `json:"msg"`
	ErrorDescription string `json:"error_description"`
}

// ResolveIdentity resolves a user record from a bearer credential.
func (p *httpProvider) ResolveIdentity(ctx context.Context, token string) (*Identity, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, p.baseURL+userEndpoint, nil)
	if err != nil {
		return nil, fmt.Errorf("build provider request: %w", err)
	}
	req.Header.Set("Authorization", bearerPrefix+token)
	req.Header.Set("apikey", p.apiKey)

	resp, err := p.client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("identity provider unreachable: %w", err)
	}
	defer func() { _ = resp.Body.Close() }()

	body, err := io.ReadAll(io.LimitReader(resp.Body, maxProviderBody))
	if err != nil {
		return nil, fmt.Errorf("read provider response: %w", err)
	}

	switch {
	case resp.StatusCode == http.StatusOK:
		var user providerUser
		if err := json.Unmarshal(body, &user); err != nil {
			return nil, fmt.Errorf("decode provider response: %w", err)
		}
		if user.ID == "" {
			return nil, fmt.Errorf("provider response missing user id")
		}
		return &Identity{
			ID:       user.ID,
			Email:    user.Email,
			Metadata: user.UserMetadata,
		}, nil

	case resp.StatusCode >= http.StatusBadRequest && resp.StatusCode < http.StatusInternalServerError:
		var failure providerFailure
		_ = json.Unmarshal(body, &failure)
		message := failure.Message
		if message == "" {
			message = failure.ErrorDescription
		}
		return nil, &ProviderError{Status: resp.StatusCode, Message: message}

	default:
		return nil, fmt.Errorf("identity provider returned status %d", resp.StatusCode)
	}
}
