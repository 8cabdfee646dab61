// Package client provides the session credential lifecycle for vaultclient.
// It includes credential storage, expiry evaluation, single-flight token refresh,
// the authorizing HTTP transport and the session context built on top of them.
package client

import (
	"context"
	"encoding/json"
	"fmt"
	"sync"
)

// CredentialPair holds the access and refresh tokens issued by the token endpoint.
// A pair is either complete or absent (nil); partial pairs are never persisted.
type CredentialPair struct {
	Access  string `json:"access"`
	Refresh string `json:"refresh"`
}

// Validate returns ErrPartialCredentials unless both tokens are set
func (p *CredentialPair) Validate() error {
	if p == nil || p.Access == "" || p.Refresh == "" {
		return ErrPartialCredentials
	}
	return nil
}

// HasRefreshToken returns true if a refresh token is available
func (p *CredentialPair) HasRefreshToken() bool {
	return p != nil && p.Refresh != ""
}

// Backend is durable byte storage for one serialized credential pair.
// The bytes are always the JSON object {"access": ..., "refresh": ...}.
type Backend interface {
	// Read returns the stored bytes, or nil, nil if nothing is stored
	Read(ctx context.Context) ([]byte, error)

	// Write replaces the stored bytes
	Write(ctx context.Context, data []byte) error

	// Delete removes the stored bytes. Deleting a missing entry is not an error.
	Delete(ctx context.Context) error
}

// CredentialStore holds the current credential pair in memory and persists it
// through a Backend. It is the only mutable state shared between the Authorizer,
// the Coordinator and the Session; every Save and Clear is visible to all of
// them as soon as it returns.
type CredentialStore struct {
	mu      sync.RWMutex
	backend Backend
	current *CredentialPair
}

// NewCredentialStore creates a store over the given backend. Call Load to pick
// up persisted state.
func NewCredentialStore(backend Backend) *CredentialStore {
	if backend == nil {
		backend = NewMemoryBackend()
	}
	return &CredentialStore{backend: backend}
}

// Load reads persisted state into memory. Absent, malformed or partial data
// yields nil, nil; only a backend I/O failure is returned as an error.
func (s *CredentialStore) Load(ctx context.Context) (*CredentialPair, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	data, err := s.backend.Read(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to read credentials: %w", err)
	}
	s.current = decodePair(data)
	return s.current, nil
}

// Current returns the in-memory pair without touching the backend
func (s *CredentialStore) Current() *CredentialPair {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.current
}

// Save persists the pair and makes it current. Both fields are written together
// and readers observe either the previous pair or this one.
func (s *CredentialStore) Save(ctx context.Context, pair *CredentialPair) error {
	if err := pair.Validate(); err != nil {
		return err
	}
	cp := *pair
	data, err := json.Marshal(&cp)
	if err != nil {
		return fmt.Errorf("failed to serialize credentials: %w", err)
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	if err := s.backend.Write(ctx, data); err != nil {
		return fmt.Errorf("failed to write credentials: %w", err)
	}
	s.current = &cp
	return nil
}

// Clear removes persisted state. Clearing an empty store is a no-op.
func (s *CredentialStore) Clear(ctx context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	// memory goes first so a failing backend can't keep a dead session alive
	s.current = nil
	if err := s.backend.Delete(ctx); err != nil {
		return fmt.Errorf("failed to delete credentials: %w", err)
	}
	return nil
}

func decodePair(data []byte) *CredentialPair {
	if len(data) == 0 {
		return nil
	}
	var pair CredentialPair
	if err := json.Unmarshal(data, &pair); err != nil {
		return nil
	}
	if pair.Validate() != nil {
		return nil
	}
	return &pair
}

// MemoryBackend keeps the serialized pair in process memory
type MemoryBackend struct {
	mu   sync.Mutex
	data []byte
}

// NewMemoryBackend creates an empty in-memory backend
func NewMemoryBackend() *MemoryBackend {
	return &MemoryBackend{}
}

func (m *MemoryBackend) Read(ctx context.Context) ([]byte, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.data == nil {
		return nil, nil
	}
	return append([]byte(nil), m.data...), nil
}

func (m *MemoryBackend) Write(ctx context.Context, data []byte) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.data = append([]byte(nil), data...)
	return nil
}

func (m *MemoryBackend) Delete(ctx context.Context) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.data = nil
	return nil
}
