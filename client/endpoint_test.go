package client

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func statusServer(t *testing.T, status int, body string) *httptest.Server {
	t.Helper()
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(status)
		w.Write([]byte(body))
	}))
	t.Cleanup(srv.Close)
	return srv
}

func TestTokenEndpoint_Obtain(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/api/token/", r.URL.Path)
		assert.Equal(t, http.MethodPost, r.Method)
		var req tokenObtainRequest
		require.NoError(t, json.NewDecoder(r.Body).Decode(&req))
		assert.Equal(t, "user@example.com", req.Email)
		assert.Equal(t, "hunter2", req.Password)
		json.NewEncoder(w).Encode(tokenResponse{Access: "access-123", Refresh: "refresh-456"})
	}))
	defer srv.Close()

	ep := NewTokenEndpoint(srv.URL+"/api/", nil)
	pair, err := ep.Obtain(context.Background(), "user@example.com", "hunter2")
	require.NoError(t, err)
	assert.Equal(t, &CredentialPair{Access: "access-123", Refresh: "refresh-456"}, pair)
}

func TestTokenEndpoint_ObtainClassification(t *testing.T) {
	tests := []struct {
		name   string
		status int
		body   string
		want   error
	}{
		{"bad request", http.StatusBadRequest, `{"email":["This field is required."]}`, ErrInvalidCredentials},
		{"wrong password", http.StatusUnauthorized, `{"detail":"No active account found with the given credentials"}`, ErrInvalidCredentials},
		{"server error", http.StatusInternalServerError, `oops`, ErrUnavailable},
		{"bad gateway", http.StatusBadGateway, ``, ErrUnavailable},
		{"missing refresh", http.StatusOK, `{"access":"a"}`, ErrUnavailable},
		{"not json", http.StatusOK, `<html>`, ErrUnavailable},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			srv := statusServer(t, tt.status, tt.body)
			_, err := NewTokenEndpoint(srv.URL, nil).Obtain(context.Background(), "u", "p")
			require.Error(t, err)
			assert.True(t, errors.Is(err, tt.want), "got %v", err)
		})
	}
}

func TestTokenEndpoint_ObtainNetworkFailure(t *testing.T) {
	srv := statusServer(t, http.StatusOK, "")
	url := srv.URL
	srv.Close()

	_, err := NewTokenEndpoint(url, nil).Obtain(context.Background(), "u", "p")
	assert.True(t, errors.Is(err, ErrUnavailable))
	assert.False(t, errors.Is(err, ErrInvalidCredentials))
}

func TestTokenEndpoint_ObtainErrorDetail(t *testing.T) {
	srv := statusServer(t, http.StatusUnauthorized, `{"detail":"No active account","code":"no_account"}`)
	_, err := NewTokenEndpoint(srv.URL, nil).Obtain(context.Background(), "u", "p")

	var epErr *EndpointError
	require.True(t, errors.As(err, &epErr))
	assert.Equal(t, http.StatusUnauthorized, epErr.StatusCode)
	assert.Equal(t, "no_account", epErr.Code)
	assert.Equal(t, "No active account", epErr.Detail)
	assert.Equal(t, "obtain", epErr.Op)
}

func TestTokenEndpoint_RefreshClassification(t *testing.T) {
	tests := []struct {
		name   string
		status int
		body   string
		want   error
	}{
		{"blacklisted", http.StatusUnauthorized, `{"detail":"Token is blacklisted","code":"token_not_valid"}`, ErrFatalAuth},
		{"malformed", http.StatusBadRequest, `{"refresh":["This field may not be blank."]}`, ErrFatalAuth},
		{"forbidden", http.StatusForbidden, ``, ErrFatalAuth},
		{"server error", http.StatusInternalServerError, ``, ErrTransientAuth},
		{"unavailable", http.StatusServiceUnavailable, ``, ErrTransientAuth},
		{"throttled", http.StatusTooManyRequests, ``, ErrTransientAuth},
		{"request timeout", http.StatusRequestTimeout, ``, ErrTransientAuth},
		{"no access token", http.StatusOK, `{}`, ErrTransientAuth},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			srv := statusServer(t, tt.status, tt.body)
			_, err := NewTokenEndpoint(srv.URL, nil).Refresh(context.Background(), "r")
			require.Error(t, err)
			assert.True(t, errors.Is(err, tt.want), "got %v", err)
		})
	}
}

func TestTokenEndpoint_RefreshKeepsRefreshTokenWhenNotRotated(t *testing.T) {
	srv := statusServer(t, http.StatusOK, `{"access":"new-access"}`)
	pair, err := NewTokenEndpoint(srv.URL, nil).Refresh(context.Background(), "old-refresh")
	require.NoError(t, err)
	assert.Equal(t, &CredentialPair{Access: "new-access", Refresh: "old-refresh"}, pair)
}

func TestTokenEndpoint_RefreshUsesRotatedToken(t *testing.T) {
	var got tokenRefreshRequest
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/token/refresh/", r.URL.Path)
		json.NewDecoder(r.Body).Decode(&got)
		json.NewEncoder(w).Encode(tokenResponse{Access: "a2", Refresh: "r2"})
	}))
	defer srv.Close()

	pair, err := NewTokenEndpoint(srv.URL, nil).Refresh(context.Background(), "r1")
	require.NoError(t, err)
	assert.Equal(t, "r1", got.Refresh)
	assert.Equal(t, &CredentialPair{Access: "a2", Refresh: "r2"}, pair)
}
