package clienttest

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"sync/atomic"
	"time"

	"github.com/gorilla/mux"
)

// Fixed login accepted by TokenServer
const (
	Email    = "alice@example.com"
	Password = "correct horse"
	UserID   = 7
)

// TokenServer is a fake API server issuing short-lived access tokens.
// Routes are mounted under /api like the real service.
type TokenServer struct {
	*httptest.Server
	Router *mux.Router

	Clock   *FakeClock
	TTL     time.Duration
	Refresh string // the refresh token currently accepted

	mu            sync.Mutex
	refreshStatus int
	refreshDelay  time.Duration
	revoked       map[string]bool

	Obtains    atomic.Int32
	Refreshes  atomic.Int32
	Profiles   atomic.Int32
	LastBearer atomic.Value // string
}

// NewTokenServer starts a server whose tokens are valid for ttl on clock
func NewTokenServer(clock *FakeClock, ttl time.Duration) *TokenServer {
	s := &TokenServer{
		Clock:   clock,
		TTL:     ttl,
		Refresh: "refresh-1",
		revoked: map[string]bool{},
	}
	r := mux.NewRouter()
	api := r.PathPrefix("/api").Subrouter()
	api.HandleFunc("/token/", s.handleObtain).Methods(http.MethodPost)
	api.HandleFunc("/token/refresh/", s.handleRefresh).Methods(http.MethodPost)
	api.HandleFunc("/users/me/", s.requireBearer(s.handleMe)).Methods(http.MethodGet)
	s.Router = api
	s.Server = httptest.NewServer(r)
	return s
}

// APIURL returns the API base URL
func (s *TokenServer) APIURL() string {
	return s.URL + "/api"
}

// Mint issues an access token valid for TTL from the current fake time
func (s *TokenServer) Mint() string {
	return MintTokenIn(s.Clock.Now(), s.TTL, WithSubject(UserID, Email))
}

// FailRefresh makes the refresh endpoint answer status; 0 restores normal behavior
func (s *TokenServer) FailRefresh(status int) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.refreshStatus = status
}

// SlowRefresh delays every refresh answer by d
func (s *TokenServer) SlowRefresh(d time.Duration) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.refreshDelay = d
}

// Revoke makes the server answer 401 for access
func (s *TokenServer) Revoke(access string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.revoked[access] = true
}

// RequireBearer wraps h so it answers 401 unless the request carries an
// unexpired, unrevoked access token
func (s *TokenServer) RequireBearer(h http.HandlerFunc) http.HandlerFunc {
	return s.requireBearer(h)
}

func (s *TokenServer) requireBearer(h http.HandlerFunc) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		token, ok := strings.CutPrefix(r.Header.Get("Authorization"), "Bearer ")
		if !ok {
			writeJSON(w, http.StatusUnauthorized, map[string]string{"detail": "Authentication credentials were not provided."})
			return
		}
		s.LastBearer.Store(token)
		if !s.Accepts(token) {
			writeJSON(w, http.StatusUnauthorized, map[string]string{"detail": "Given token not valid for any token type", "code": "token_not_valid"})
			return
		}
		h(w, r)
	}
}

// Accepts reports whether token is unexpired on Clock and not revoked
func (s *TokenServer) Accepts(token string) bool {
	s.mu.Lock()
	revoked := s.revoked[token]
	s.mu.Unlock()
	if revoked {
		return false
	}
	var claims jwtExp
	if err := decodeExp(token, &claims); err != nil {
		return false
	}
	return s.Clock.Now().Unix() < claims.Exp
}

func (s *TokenServer) handleObtain(w http.ResponseWriter, r *http.Request) {
	s.Obtains.Add(1)
	var req struct {
		Email    string `json:"email"`
		Password string `json:"password"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeJSON(w, http.StatusBadRequest, map[string]string{"detail": "malformed request"})
		return
	}
	if req.Email != Email || req.Password != Password {
		writeJSON(w, http.StatusUnauthorized, map[string]string{"detail": "No active account found with the given credentials"})
		return
	}
	s.mu.Lock()
	refresh := s.Refresh
	s.mu.Unlock()
	writeJSON(w, http.StatusOK, map[string]string{"access": s.Mint(), "refresh": refresh})
}

func (s *TokenServer) handleRefresh(w http.ResponseWriter, r *http.Request) {
	s.Refreshes.Add(1)
	s.mu.Lock()
	status, delay, want := s.refreshStatus, s.refreshDelay, s.Refresh
	s.mu.Unlock()

	if delay > 0 {
		select {
		case <-time.After(delay):
		case <-r.Context().Done():
			return
		}
	}
	if status != 0 {
		writeJSON(w, status, map[string]string{"detail": http.StatusText(status)})
		return
	}

	var req struct {
		Refresh string `json:"refresh"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil || req.Refresh != want {
		writeJSON(w, http.StatusUnauthorized, map[string]string{"detail": "Token is invalid or expired", "code": "token_not_valid"})
		return
	}
	writeJSON(w, http.StatusOK, map[string]string{"access": s.Mint()})
}

func (s *TokenServer) handleMe(w http.ResponseWriter, r *http.Request) {
	s.Profiles.Add(1)
	writeJSON(w, http.StatusOK, map[string]any{
		"id":         UserID,
		"email":      Email,
		"username":   "alice",
		"first_name": "Alice",
		"last_name":  "Liddell",
		"is_admin":   false,
		"teams":      []map[string]any{{"id": 1, "name": "ops"}},
	})
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(v)
}
