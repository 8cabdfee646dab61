package console

import (
	"context"
	"time"

	"github.com/alexedwards/scs/v2"
)

// CredentialKeyPrefix namespaces credential entries inside the session store
const CredentialKeyPrefix = "cred:"

// StoreBackend persists one credential pair in an scs.Store under
// cred:<tab>. Entries expire after ttl like the browser session does.
type StoreBackend struct {
	store scs.Store
	key   string
	ttl   time.Duration
	now   func() time.Time
}

// NewStoreBackend creates a backend for the browser tab id
func NewStoreBackend(store scs.Store, tab string, ttl time.Duration) *StoreBackend {
	return &StoreBackend{
		store: store,
		key:   CredentialKeyPrefix + tab,
		ttl:   ttl,
		now:   time.Now,
	}
}

// Key returns the store key used for this tab
func (b *StoreBackend) Key() string {
	return b.key
}

func (b *StoreBackend) Read(ctx context.Context) ([]byte, error) {
	data, found, err := b.store.Find(b.key)
	if err != nil || !found {
		return nil, err
	}
	return data, nil
}

func (b *StoreBackend) Write(ctx context.Context, data []byte) error {
	return b.store.Commit(b.key, data, b.now().Add(b.ttl))
}

func (b *StoreBackend) Delete(ctx context.Context) error {
	return b.store.Delete(b.key)
}
