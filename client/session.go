package client

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"strings"
	"sync"

	vc "github.com/cerbyonvault/vaultclient"
)

// DefaultProfilePath is where the remote user record is fetched from
const DefaultProfilePath = "/users/me/"

// Obtainer performs the initial credential exchange.
// TokenEndpoint is the production implementation.
type Obtainer interface {
	Obtain(ctx context.Context, identifier, secret string) (*CredentialPair, error)
}

// LogoutHook is called once per session teardown. reason is nil for an
// explicit Logout and carries the cause when the session ended on its own.
type LogoutHook func(reason error)

// Session is the process-wide session context: it owns the CredentialStore's
// lifecycle and exposes the current identity to the rest of the application.
type Session struct {
	store       *CredentialStore
	obtainer    Obtainer
	coordinator *Coordinator
	httpClient  *http.Client
	profileURL  string
	logger      *slog.Logger

	mu      sync.RWMutex
	profile *vc.User
	hooks   []LogoutHook

	wg sync.WaitGroup
}

// NewSession creates a Session. httpClient must be authorized (see Transport);
// it is used for the profile fetch. The Session registers itself as the
// Coordinator's fatal-failure handler.
func NewSession(store *CredentialStore, obtainer Obtainer, coordinator *Coordinator, httpClient *http.Client, profileURL string) *Session {
	s := &Session{
		store:       store,
		obtainer:    obtainer,
		coordinator: coordinator,
		httpClient:  httpClient,
		profileURL:  profileURL,
		logger:      slog.Default(),
	}
	coordinator.OnFatal(s.endedByRefresh)
	return s
}

// Init loads persisted credentials and, when a session exists, fetches the
// profile in the background. If that fetch fails with an authentication error
// the session is logged out. Use Wait to join the background fetch.
func (s *Session) Init(ctx context.Context) error {
	pair, err := s.store.Load(ctx)
	if err != nil {
		return err
	}
	if pair == nil {
		return nil
	}
	s.coordinator.Reset()

	s.wg.Add(1)
	go func() {
		defer s.wg.Done()
		if err := s.RefreshProfile(ctx); err != nil {
			s.handleProfileError(ctx, err)
		}
	}()
	return nil
}

// Wait blocks until background work started by Init has finished
func (s *Session) Wait() {
	s.wg.Wait()
}

// Login exchanges identifier and secret for a credential pair, stores it and
// fetches the profile. A rejected login matches ErrInvalidCredentials and
// leaves any existing session untouched; network failures match ErrUnavailable.
func (s *Session) Login(ctx context.Context, identifier, secret string) error {
	pair, err := s.obtainer.Obtain(ctx, identifier, secret)
	if err != nil {
		return err
	}

	s.coordinator.Reset()
	if err := s.store.Save(ctx, pair); err != nil {
		return err
	}
	s.setProfile(nil)

	if err := s.RefreshProfile(ctx); err != nil {
		if isAuthClass(err) {
			s.handleProfileError(ctx, err)
			return fmt.Errorf("%w: profile rejected after login: %w", ErrUnauthenticated, err)
		}
		s.logger.Warn("failed to fetch profile after login", "err", err)
	}
	return nil
}

// Logout clears credentials, identity and profile. Calling it without a
// session is a no-op.
func (s *Session) Logout(ctx context.Context) error {
	s.coordinator.MarkLoggedOut()
	had := s.store.Current() != nil
	err := s.store.Clear(ctx)
	s.setProfile(nil)
	if had {
		s.fire(nil)
	}
	return err
}

// CurrentIdentity decodes the identity from the access token currently held.
// It never performs I/O and returns nil when there is no session.
func (s *Session) CurrentIdentity() *Claims {
	pair := s.store.Current()
	if pair == nil {
		return nil
	}
	claims, err := DecodeClaims(pair.Access)
	if err != nil {
		return nil
	}
	return claims
}

// Profile returns the last fetched remote user record. It may lag behind
// the identity and is nil until the first successful fetch.
func (s *Session) Profile() *vc.User {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.profile
}

// OnLogout registers a hook run on every session teardown
func (s *Session) OnLogout(hook LogoutHook) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.hooks = append(s.hooks, hook)
}

// RefreshProfile fetches the remote user record through the authorized client.
// 401 and 403 answers match ErrUnauthenticated and ErrForbidden.
func (s *Session) RefreshProfile(ctx context.Context) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, s.profileURL, nil)
	if err != nil {
		return err
	}
	req.Header.Set("Accept", "application/json")

	resp, err := s.httpClient.Do(req)
	if err != nil {
		if IsAuthFailure(err) || IsRetryable(err) {
			return err
		}
		return fmt.Errorf("%w: %w", ErrUnavailable, err)
	}
	defer resp.Body.Close()

	switch {
	case resp.StatusCode == http.StatusUnauthorized:
		return fmt.Errorf("%w: profile fetch returned HTTP 401", ErrUnauthenticated)
	case resp.StatusCode == http.StatusForbidden:
		return fmt.Errorf("%w: profile fetch returned HTTP 403", ErrForbidden)
	case resp.StatusCode/100 != 2:
		body, _ := io.ReadAll(io.LimitReader(resp.Body, 512))
		return fmt.Errorf("%w: profile fetch returned HTTP %d: %s", ErrUnavailable, resp.StatusCode, strings.TrimSpace(string(body)))
	}

	var user vc.User
	if err := json.NewDecoder(resp.Body).Decode(&user); err != nil {
		return fmt.Errorf("%w: invalid profile response: %w", ErrUnavailable, err)
	}
	s.setProfile(&user)
	return nil
}

// handleProfileError ends a session whose account no longer resolves server-side
func (s *Session) handleProfileError(ctx context.Context, err error) {
	if !isAuthClass(err) {
		s.logger.Warn("failed to fetch profile", "err", err)
		return
	}
	s.logger.Warn("profile rejected, logging out", "err", err)
	if s.store.Current() == nil {
		// the Coordinator already tore the session down
		return
	}
	s.coordinator.MarkLoggedOut()
	if cerr := s.store.Clear(ctx); cerr != nil {
		s.logger.Warn("failed to clear credentials", "err", cerr)
	}
	s.setProfile(nil)
	s.fire(err)
}

// endedByRefresh runs after the Coordinator cleared the store on a fatal failure
func (s *Session) endedByRefresh(cause error) {
	s.setProfile(nil)
	s.fire(cause)
}

func (s *Session) setProfile(u *vc.User) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.profile = u
}

func (s *Session) fire(reason error) {
	s.mu.RLock()
	hooks := append([]LogoutHook(nil), s.hooks...)
	s.mu.RUnlock()
	for _, h := range hooks {
		h(reason)
	}
}

func isAuthClass(err error) bool {
	return IsAuthFailure(err) || errors.Is(err, ErrForbidden)
}
