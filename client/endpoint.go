package client

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strings"
)

// Default token endpoint paths, relative to the API base URL
const (
	DefaultTokenPath   = "/token/"
	DefaultRefreshPath = "/token/refresh/"
)

// maxResponseBody caps how much of a token response is read
const maxResponseBody = 64 << 10

// tokenObtainRequest is the request body for the token endpoint
type tokenObtainRequest struct {
	Email    string `json:"email"`
	Password string `json:"password"`
}

// tokenRefreshRequest is the request body for the refresh endpoint
type tokenRefreshRequest struct {
	Refresh string `json:"refresh"`
}

// tokenResponse is the success body of both endpoints. The refresh endpoint
// omits "refresh" when the server does not rotate refresh tokens.
type tokenResponse struct {
	Access  string `json:"access"`
	Refresh string `json:"refresh,omitempty"`
}

// errorResponse is the error body of both endpoints
type errorResponse struct {
	Detail string `json:"detail,omitempty"`
	Code   string `json:"code,omitempty"`
}

// TokenEndpoint exchanges credentials and refresh tokens for credential pairs.
// It talks to the server with the base transport directly, never through the
// Authorizer, so token requests can't recurse into refreshes.
type TokenEndpoint struct {
	baseURL     string
	tokenPath   string
	refreshPath string
	httpClient  *http.Client
}

// NewTokenEndpoint creates an endpoint client for the API at baseURL
func NewTokenEndpoint(baseURL string, base http.RoundTripper) *TokenEndpoint {
	if base == nil {
		base = http.DefaultTransport
	}
	return &TokenEndpoint{
		baseURL:     strings.TrimRight(baseURL, "/"),
		tokenPath:   DefaultTokenPath,
		refreshPath: DefaultRefreshPath,
		httpClient:  &http.Client{Transport: base},
	}
}

// Obtain performs the initial credential exchange.
// A rejected login returns an error matching ErrInvalidCredentials; network
// and server failures match ErrUnavailable.
func (e *TokenEndpoint) Obtain(ctx context.Context, identifier, secret string) (*CredentialPair, error) {
	resp, status, err := e.post(ctx, e.tokenPath, tokenObtainRequest{Email: identifier, Password: secret})
	if err != nil {
		return nil, fmt.Errorf("failed to connect to server: %w: %w", ErrUnavailable, err)
	}
	if status/100 != 2 {
		class := ErrUnavailable
		if status == http.StatusUnauthorized || status == http.StatusBadRequest {
			class = ErrInvalidCredentials
		}
		return nil, endpointError("obtain", status, resp, class)
	}

	var tr tokenResponse
	if err := json.Unmarshal(resp, &tr); err != nil {
		return nil, fmt.Errorf("invalid response from server: %w: %w", ErrUnavailable, err)
	}
	pair := &CredentialPair{Access: tr.Access, Refresh: tr.Refresh}
	if err := pair.Validate(); err != nil {
		return nil, fmt.Errorf("incomplete response from server: %w: %w", ErrUnavailable, err)
	}
	return pair, nil
}

// Refresh exchanges a refresh token for a new pair.
// A rejected refresh token returns an error matching ErrFatalAuth; network
// failures, timeouts and server errors match ErrTransientAuth.
func (e *TokenEndpoint) Refresh(ctx context.Context, refresh string) (*CredentialPair, error) {
	resp, status, err := e.post(ctx, e.refreshPath, tokenRefreshRequest{Refresh: refresh})
	if err != nil {
		return nil, fmt.Errorf("refresh request failed: %w: %w", ErrTransientAuth, err)
	}
	if status/100 != 2 {
		class := ErrTransientAuth
		switch status {
		case http.StatusBadRequest, http.StatusUnauthorized, http.StatusForbidden:
			class = ErrFatalAuth
		}
		return nil, endpointError("refresh", status, resp, class)
	}

	var tr tokenResponse
	if err := json.Unmarshal(resp, &tr); err != nil || tr.Access == "" {
		if err == nil {
			err = errors.New("missing access token")
		}
		return nil, fmt.Errorf("invalid refresh response: %w: %w", ErrTransientAuth, err)
	}

	// Use new refresh token if provided, otherwise keep the old one
	pair := &CredentialPair{Access: tr.Access, Refresh: tr.Refresh}
	if pair.Refresh == "" {
		pair.Refresh = refresh
	}
	return pair, nil
}

func (e *TokenEndpoint) post(ctx context.Context, path string, body any) ([]byte, int, error) {
	jsonBody, err := json.Marshal(body)
	if err != nil {
		return nil, 0, fmt.Errorf("failed to encode request: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, e.baseURL+path, bytes.NewReader(jsonBody))
	if err != nil {
		return nil, 0, err
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Accept", "application/json")

	resp, err := e.httpClient.Do(req)
	if err != nil {
		return nil, 0, err
	}
	defer resp.Body.Close()

	data, err := io.ReadAll(io.LimitReader(resp.Body, maxResponseBody))
	if err != nil {
		return nil, 0, fmt.Errorf("failed to read response: %w", err)
	}
	return data, resp.StatusCode, nil
}

func endpointError(op string, status int, body []byte, class error) *EndpointError {
	var er errorResponse
	_ = json.Unmarshal(body, &er)
	return &EndpointError{
		Op:         op,
		StatusCode: status,
		Code:       er.Code,
		Detail:     er.Detail,
		Class:      class,
	}
}
