package client

import (
	"context"
	"errors"
	"fmt"
	"net/http"
)

// Authorizer attaches the current access token to outbound requests,
// refreshing it through the Coordinator first when it is no longer usable.
// It only reads the CredentialStore; refreshed pairs are written by the Coordinator.
type Authorizer struct {
	store       *CredentialStore
	evaluator   *Evaluator
	coordinator *Coordinator
	clock       Clock
}

// NewAuthorizer creates an Authorizer over the given store and coordinator
func NewAuthorizer(store *CredentialStore, evaluator *Evaluator, coordinator *Coordinator) *Authorizer {
	return &Authorizer{
		store:       store,
		evaluator:   evaluator,
		coordinator: coordinator,
		clock:       RealClock{},
	}
}

// Authorize returns req carrying an Authorization header.
//
// Without stored credentials the request is returned unchanged: anonymous
// endpoints (login, registration) are valid targets. With a usable token the
// header is attached immediately. With a stale token the call waits for the
// shared refresh; if that refresh ends the session the error matches
// ErrUnauthenticated and the Session has already logged out.
func (a *Authorizer) Authorize(ctx context.Context, req *http.Request) (*http.Request, error) {
	token, err := a.token(ctx)
	if err != nil {
		return nil, err
	}
	if token == "" {
		return req, nil
	}
	return withBearer(req, token), nil
}

// AccessToken returns a usable access token, refreshing if needed.
// It returns ErrUnauthenticated when there are no credentials at all.
func (a *Authorizer) AccessToken(ctx context.Context) (string, error) {
	token, err := a.token(ctx)
	if err != nil {
		return "", err
	}
	if token == "" {
		return "", ErrUnauthenticated
	}
	return token, nil
}

func (a *Authorizer) token(ctx context.Context) (string, error) {
	cred := a.store.Current()
	if cred == nil {
		return "", nil
	}
	if a.evaluator.IsUsable(cred.Access, a.clock.Now()) {
		return cred.Access, nil
	}

	pair, err := a.coordinator.Refresh(ctx, cred.Access)
	if err != nil {
		return "", authError(err)
	}
	return pair.Access, nil
}

// ForceRefresh replaces a token the server refused even though it looked usable.
// Concurrent callers rejecting the same token share one exchange.
func (a *Authorizer) ForceRefresh(ctx context.Context, rejected string) (string, error) {
	pair, err := a.coordinator.Refresh(ctx, rejected)
	if err != nil {
		return "", authError(err)
	}
	return pair.Access, nil
}

func authError(err error) error {
	if errors.Is(err, ErrUnauthenticated) {
		return err
	}
	if errors.Is(err, ErrFatalAuth) {
		return fmt.Errorf("%w: %w", ErrUnauthenticated, err)
	}
	return err
}

// withBearer clones the request and sets the Authorization header.
// The original request is never mutated.
func withBearer(req *http.Request, token string) *http.Request {
	req2 := req.Clone(req.Context())
	req2.Header.Set("Authorization", "Bearer "+token)
	return req2
}
