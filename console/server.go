// Package console is a small JSON backend-for-frontend for browsers.
//
// Every browser session gets its own client.AuthClient, so concurrent calls
// from one browser share a single refresh while different browsers stay
// isolated. The browser never sees the bearer tokens: they live in the
// session store and are attached by the session transport when /api/ calls
// are proxied upstream.
package console

import (
	"context"
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"
	"net/http/httputil"
	"net/url"
	"strings"
	"sync"
	"time"

	"github.com/alexedwards/scs/v2"
	"github.com/alexedwards/scs/v2/memstore"
	"github.com/google/uuid"
	"github.com/gorilla/mux"

	vc "github.com/cerbyonvault/vaultclient"
	"github.com/cerbyonvault/vaultclient/client"
)

// tabSessionVar is the scs key holding the browser's tab id
const tabSessionVar = "tab"

// DefaultSessionLifetime matches a one day browser session
const DefaultSessionLifetime = 24 * time.Hour

// DefaultSweepInterval is how often clients of expired sessions are evicted
const DefaultSweepInterval = 5 * time.Minute

// ClientFactory builds the AuthClient for one browser session
type ClientFactory func(backend client.Backend) (*client.AuthClient, error)

// Config configures the console
type Config struct {
	// APIURL is the upstream API base URL, including the /api prefix
	APIURL string

	// SessionLifetime bounds both the session cookie and stored credentials
	SessionLifetime time.Duration

	// CookieName overrides the scs session cookie name
	CookieName string

	// Store holds sessions and credentials. Defaults to an in-memory store.
	Store scs.Store

	// SecureCookie marks the session cookie Secure
	SecureCookie bool

	// SweepInterval sets how often Sweep runs in the background. Negative
	// disables the background sweep.
	SweepInterval time.Duration

	Logger *slog.Logger
}

// EnsureDefaults fills unset fields
func (c *Config) EnsureDefaults() *Config {
	if c.SessionLifetime <= 0 {
		c.SessionLifetime = DefaultSessionLifetime
	}
	if c.CookieName == "" {
		c.CookieName = "vault_session"
	}
	if c.Store == nil {
		c.Store = memstore.New()
	}
	if c.SweepInterval == 0 {
		c.SweepInterval = DefaultSweepInterval
	}
	if c.Logger == nil {
		c.Logger = slog.Default()
	}
	return c
}

// Server serves /auth/* and proxies /api/* for browser sessions
type Server struct {
	cfg      Config
	target   *url.URL
	factory  ClientFactory
	sessions *scs.SessionManager
	router   *mux.Router
	proxy    *httputil.ReverseProxy
	logger   *slog.Logger

	mu   sync.Mutex
	tabs map[string]*client.AuthClient

	stop      chan struct{}
	closeOnce sync.Once
}

// NewServer creates a console for cfg.APIURL. A nil factory builds clients
// with client.NewAuthClient and default options.
func NewServer(cfg Config, factory ClientFactory) (*Server, error) {
	cfg.EnsureDefaults()
	target, err := url.Parse(strings.TrimRight(cfg.APIURL, "/"))
	if err != nil || target.Scheme == "" || target.Host == "" {
		return nil, errors.New("console: invalid API URL " + cfg.APIURL)
	}
	if factory == nil {
		factory = func(backend client.Backend) (*client.AuthClient, error) {
			return client.NewAuthClient(cfg.APIURL, backend, client.WithLogger(cfg.Logger))
		}
	}

	sessions := scs.New()
	sessions.Store = cfg.Store
	sessions.Lifetime = cfg.SessionLifetime
	sessions.Cookie.Name = cfg.CookieName
	sessions.Cookie.HttpOnly = true
	sessions.Cookie.SameSite = http.SameSiteLaxMode
	sessions.Cookie.Secure = cfg.SecureCookie

	s := &Server{
		cfg:      cfg,
		target:   target,
		factory:  factory,
		sessions: sessions,
		logger:   cfg.Logger,
		tabs:     map[string]*client.AuthClient{},
		stop:     make(chan struct{}),
	}
	s.proxy = &httputil.ReverseProxy{
		Rewrite:      s.rewrite,
		Transport:    tabTransport{},
		ErrorHandler: s.proxyError,
	}

	r := mux.NewRouter()
	r.HandleFunc("/auth/login", s.handleLogin).Methods(http.MethodPost)
	r.HandleFunc("/auth/logout", s.handleLogout).Methods(http.MethodPost)
	r.HandleFunc("/auth/me", s.handleMe).Methods(http.MethodGet)
	r.PathPrefix("/api/").Handler(http.StripPrefix("/api", http.HandlerFunc(s.handleAPI)))
	s.router = r

	if cfg.SweepInterval > 0 {
		go s.sweepEvery(cfg.SweepInterval)
	}
	return s, nil
}

// Handler returns the console's HTTP handler
func (s *Server) Handler() http.Handler {
	return s.sessions.LoadAndSave(s.router)
}

// Sessions exposes the session manager
func (s *Server) Sessions() *scs.SessionManager {
	return s.sessions
}

// ActiveTabs returns the number of browser sessions with a live client
func (s *Server) ActiveTabs() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.tabs)
}

// Close stops the background sweep and the memory store's cleanup goroutine
func (s *Server) Close() {
	s.closeOnce.Do(func() {
		close(s.stop)
		if ms, ok := s.cfg.Store.(*memstore.MemStore); ok {
			ms.StopCleanup()
		}
	})
}

// Sweep evicts clients that no longer hold credentials, including those whose
// stored credentials expired with the browser session. It returns the number
// of clients evicted.
func (s *Server) Sweep(ctx context.Context) int {
	s.mu.Lock()
	tabs := make(map[string]*client.AuthClient, len(s.tabs))
	for tab, ac := range s.tabs {
		tabs[tab] = ac
	}
	s.mu.Unlock()

	evicted := 0
	for tab, ac := range tabs {
		if ac.IsLoggedIn() {
			data, err := NewStoreBackend(s.cfg.Store, tab, s.cfg.SessionLifetime).Read(ctx)
			if err != nil {
				s.logger.Warn("failed to read session credentials", "tab", tab, "err", err)
				continue
			}
			if data != nil {
				continue
			}
		}
		if s.drop(tab, ac) {
			evicted++
		}
	}
	return evicted
}

func (s *Server) sweepEvery(interval time.Duration) {
	ticker := time.NewTicker(interval)
	defer ticker.Stop()
	for {
		select {
		case <-s.stop:
			return
		case <-ticker.C:
			if n := s.Sweep(context.Background()); n > 0 {
				s.logger.Debug("evicted expired console sessions", "count", n)
			}
		}
	}
}

// tab returns the browser's tab id, creating one when create is set
func (s *Server) tab(ctx context.Context, create bool) string {
	id := s.sessions.GetString(ctx, tabSessionVar)
	if id == "" && create {
		id = uuid.NewString()
		s.sessions.Put(ctx, tabSessionVar, id)
	}
	return id
}

// clientFor returns the tab's AuthClient, restoring persisted credentials on first use
func (s *Server) clientFor(tab string) (*client.AuthClient, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if ac, ok := s.tabs[tab]; ok {
		return ac, nil
	}

	ac, err := s.factory(NewStoreBackend(s.cfg.Store, tab, s.cfg.SessionLifetime))
	if err != nil {
		return nil, err
	}
	ac.Session().OnLogout(func(reason error) {
		s.logger.Info("console session ended", "tab", tab, "reason", reason)
		s.drop(tab, ac)
	})
	if err := ac.Session().Init(context.Background()); err != nil {
		return nil, err
	}
	s.tabs[tab] = ac
	return ac, nil
}

// drop forgets the tab's client if it is still ac
func (s *Server) drop(tab string, ac *client.AuthClient) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.tabs[tab] == ac {
		delete(s.tabs, tab)
		return true
	}
	return false
}

type loginRequest struct {
	Email    string `json:"email"`
	Password string `json:"password"`
}

type meResponse struct {
	Identity *client.Claims `json:"identity"`
	Profile  *vc.User       `json:"profile,omitempty"`
}

func (s *Server) handleLogin(w http.ResponseWriter, r *http.Request) {
	var req loginRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil || req.Email == "" {
		writeError(w, http.StatusBadRequest, "email and password required")
		return
	}

	ctx := r.Context()
	existing := s.tab(ctx, false)
	tab := s.tab(ctx, true)
	ac, err := s.clientFor(tab)
	if err != nil {
		s.logger.Error("failed to create session client", "err", err)
		writeError(w, http.StatusInternalServerError, "internal error")
		return
	}

	if err := ac.Session().Login(ctx, req.Email, req.Password); err != nil {
		if !ac.IsLoggedIn() {
			s.drop(tab, ac)
			if existing == "" {
				if err := s.sessions.Destroy(ctx); err != nil {
					s.logger.Warn("failed to destroy session", "err", err)
				}
			}
		}
		switch {
		case errors.Is(err, client.ErrInvalidCredentials):
			writeError(w, http.StatusUnauthorized, "invalid credentials")
		case client.IsAuthFailure(err):
			writeError(w, http.StatusUnauthorized, "unauthenticated")
		default:
			s.logger.Warn("login failed", "err", err)
			writeError(w, http.StatusServiceUnavailable, "unavailable")
		}
		return
	}
	if err := s.sessions.RenewToken(ctx); err != nil {
		s.logger.Warn("failed to renew session token", "err", err)
	}
	writeJSON(w, http.StatusOK, meResponse{Identity: ac.Session().CurrentIdentity(), Profile: ac.Session().Profile()})
}

func (s *Server) handleLogout(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	if tab := s.tab(ctx, false); tab != "" {
		ac, err := s.clientFor(tab)
		if err == nil {
			if err := ac.Session().Logout(ctx); err != nil {
				s.logger.Warn("logout failed to clear credentials", "err", err)
			}
			s.drop(tab, ac)
		}
		if err := s.sessions.Destroy(ctx); err != nil {
			s.logger.Warn("failed to destroy session", "err", err)
		}
	}
	w.WriteHeader(http.StatusNoContent)
}

func (s *Server) handleMe(w http.ResponseWriter, r *http.Request) {
	ac := s.loggedIn(w, r)
	if ac == nil {
		return
	}
	writeJSON(w, http.StatusOK, meResponse{Identity: ac.Session().CurrentIdentity(), Profile: ac.Session().Profile()})
}

// loggedIn returns the tab's client or writes 401
func (s *Server) loggedIn(w http.ResponseWriter, r *http.Request) *client.AuthClient {
	tab := s.tab(r.Context(), false)
	if tab == "" {
		writeError(w, http.StatusUnauthorized, "unauthenticated")
		return nil
	}
	ac, err := s.clientFor(tab)
	if err != nil {
		s.logger.Error("failed to restore session client", "err", err)
		writeError(w, http.StatusInternalServerError, "internal error")
		return nil
	}
	if !ac.IsLoggedIn() {
		s.drop(tab, ac)
		writeError(w, http.StatusUnauthorized, "unauthenticated")
		return nil
	}
	return ac
}

type clientKey struct{}

func (s *Server) handleAPI(w http.ResponseWriter, r *http.Request) {
	ac := s.loggedIn(w, r)
	if ac == nil {
		return
	}
	ctx := context.WithValue(r.Context(), clientKey{}, ac)
	s.proxy.ServeHTTP(w, r.WithContext(ctx))
}

// rewrite points the request at the API and keeps only upstream cookies
func (s *Server) rewrite(pr *httputil.ProxyRequest) {
	pr.SetURL(s.target)
	pr.SetXForwarded()
	pr.Out.Header.Del("Authorization")
	pr.Out.Header.Del("Cookie")
	for _, c := range pr.In.Cookies() {
		if c.Name != s.cfg.CookieName {
			pr.Out.AddCookie(c)
		}
	}
}

func (s *Server) proxyError(w http.ResponseWriter, r *http.Request, err error) {
	switch {
	case client.IsAuthFailure(err):
		writeError(w, http.StatusUnauthorized, "unauthenticated")
	case client.IsRetryable(err):
		writeError(w, http.StatusServiceUnavailable, "unavailable")
	case errors.Is(err, context.Canceled):
		// browser went away
	default:
		s.logger.Warn("proxy error", "path", r.URL.Path, "err", err)
		writeError(w, http.StatusBadGateway, "bad gateway")
	}
}

// tabTransport sends proxied requests through the tab's session transport
type tabTransport struct{}

func (tabTransport) RoundTrip(req *http.Request) (*http.Response, error) {
	ac, ok := req.Context().Value(clientKey{}).(*client.AuthClient)
	if !ok {
		return nil, client.ErrUnauthenticated
	}
	return ac.HTTPClient().Transport.RoundTrip(req)
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(v)
}

func writeError(w http.ResponseWriter, status int, msg string) {
	writeJSON(w, status, map[string]string{"error": msg})
}
