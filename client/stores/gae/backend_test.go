//go:build !wasm
// +build !wasm

package gae

import (
	"context"
	"os"
	"testing"

	"cloud.google.com/go/datastore"
	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/cerbyonvault/vaultclient/client"
)

// newEmulatorClient connects to the Datastore emulator, skipping when it isn't running
func newEmulatorClient(t *testing.T) *datastore.Client {
	t.Helper()
	if os.Getenv("DATASTORE_EMULATOR_HOST") == "" {
		t.Skip("DATASTORE_EMULATOR_HOST not set")
	}
	ds, err := datastore.NewClient(context.Background(), "vaultclient-test")
	require.NoError(t, err)
	t.Cleanup(func() { ds.Close() })
	return ds
}

func TestBackend_RoundTrip(t *testing.T) {
	ctx := context.Background()
	ds := newEmulatorClient(t)
	ns := "test-" + uuid.NewString()

	store := client.NewCredentialStore(NewBackend(ds, ns, "default"))
	pair := &client.CredentialPair{Access: "a1", Refresh: "r1"}
	require.NoError(t, store.Save(ctx, pair))

	loaded, err := client.NewCredentialStore(NewBackend(ds, ns, "default")).Load(ctx)
	require.NoError(t, err)
	assert.Equal(t, pair, loaded)

	profiles, err := Profiles(ctx, ds, ns)
	require.NoError(t, err)
	assert.Equal(t, []string{"default"}, profiles)

	require.NoError(t, store.Clear(ctx))
	require.NoError(t, store.Clear(ctx))
	loaded, err = store.Load(ctx)
	require.NoError(t, err)
	assert.Nil(t, loaded)
}
