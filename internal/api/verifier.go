package api

import (
	"context"
	"fmt"
	"io"
	"net/http"
)

// TokenVerifier checks OAuth access tokens against the identity provider.
// It returns false when the token is rejected, and an error only when the
// check itself could not be performed.
type TokenVerifier interface {
	Verify(ctx context.Context, accessToken string) (bool, error)
}

// VerifierFunc adapts a function to the TokenVerifier interface
type VerifierFunc func(ctx context.Context, accessToken string) (bool, error)

// Verify implements TokenVerifier
func (f VerifierFunc) Verify(ctx context.Context, accessToken string) (bool, error) {
	return f(ctx, accessToken)
}

// HTTPVerifier checks a token by presenting it as a bearer credential to the
// provider's profile endpoint. A 2xx answer accepts the token, a 401 or 403
// rejects it, anything else is a check failure.
type HTTPVerifier struct {
	Endpoint string
	Client   *http.Client
}

// Verify implements TokenVerifier
func (v *HTTPVerifier) Verify(ctx context.Context, accessToken string) (bool, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, v.Endpoint, nil)
	if err != nil {
		return false, err
	}
	req.Header.Set("Authorization", "Bearer "+accessToken)

	client := v.Client
	if client == nil {
		client = http.DefaultClient
	}
	resp, err := client.Do(req)
	if err != nil {
		return false, err
	}
	defer func() {
		_, _ = io.Copy(io.Discard, resp.Body)
		_ = resp.Body.Close()
	}()

	switch {
	case resp.StatusCode >= 200 && resp.StatusCode < 300:
		return true, nil
	case resp.StatusCode == http.StatusUnauthorized || resp.StatusCode == http.StatusForbidden:
		return false, nil
	default:
		return false, fmt.Errorf("token provider returned status %d", resp.StatusCode)
	}
}
