// Package identity delegates verification of non-internal bearer
// credentials to an external identity provider.
package identity

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"time"
)

// ExternalIdentity is a verified identity returned by the provider.
type ExternalIdentity struct {
	Subject string `json:"sub"`
	Email   string `json:"email"`
	Name    string `json:"name"`
}

// Verifier validates an opaque external token and returns the identity
// it belongs to.
type Verifier interface {
	Verify(ctx context.Context, token string) (*ExternalIdentity, error)
}

// HTTPVerifier validates tokens against the provider's userinfo endpoint.
type HTTPVerifier struct {
	endpoint string
	client   *http.Client
}

func NewHTTPVerifier(endpoint string, timeout time.Duration) *HTTPVerifier {
	if timeout == 0 {
		timeout = 5 * time.Second
	}
	return &HTTPVerifier{
		endpoint: endpoint,
		client:   &http.Client{Timeout: timeout},
	}
}

func (v *HTTPVerifier) Verify(ctx context.Context, token string) (*ExternalIdentity, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, v.endpoint, nil)
	if err != nil {
		return nil, fmt.Errorf("failed to build userinfo request: %w", err)
	}
	req.Header.Set("Authorization", "Bearer "+token)

	resp, err := v.client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("userinfo request failed: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("identity provider rejected token: status %d", resp.StatusCode)
	}

	var ident ExternalIdentity
	if err := json.NewDecoder(resp.Body).Decode(&ident); err != nil {
		return nil, fmt.Errorf("failed to decode userinfo response: %w", err)
	}
	if ident.Subject == "" || ident.Email == "" {
		return nil, fmt.Errorf("identity provider returned incomplete identity")
	}
	return &ident, nil
}
