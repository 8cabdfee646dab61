//go:build !wasm
// +build !wasm

package gorm

import (
	"context"
	"testing"

	"github.com/glebarez/sqlite"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"

	"github.com/cerbyonvault/vaultclient/client"
)

func newTestDB(t *testing.T) *gorm.DB {
	t.Helper()
	db, err := gorm.Open(sqlite.Open("file::memory:"), &gorm.Config{Logger: logger.Discard})
	require.NoError(t, err)
	sqlDB, err := db.DB()
	require.NoError(t, err)
	// a single connection keeps the in-memory database alive
	sqlDB.SetMaxOpenConns(1)
	t.Cleanup(func() { sqlDB.Close() })
	require.NoError(t, AutoMigrate(db))
	return db
}

func TestBackend_ReadWriteDelete(t *testing.T) {
	ctx := context.Background()
	b := NewBackend(newTestDB(t), "ci")

	data, err := b.Read(ctx)
	require.NoError(t, err)
	assert.Nil(t, data)

	require.NoError(t, b.Write(ctx, []byte(`{"access":"a1","refresh":"r1"}`)))
	require.NoError(t, b.Write(ctx, []byte(`{"access":"a2","refresh":"r1"}`)))
	data, err = b.Read(ctx)
	require.NoError(t, err)
	assert.Equal(t, `{"access":"a2","refresh":"r1"}`, string(data))

	require.NoError(t, b.Delete(ctx))
	require.NoError(t, b.Delete(ctx))
	data, err = b.Read(ctx)
	require.NoError(t, err)
	assert.Nil(t, data)
}

func TestBackend_ProfilesAreIsolated(t *testing.T) {
	ctx := context.Background()
	db := newTestDB(t)

	staging := client.NewCredentialStore(NewBackend(db, "staging"))
	prod := client.NewCredentialStore(NewBackend(db, "prod"))
	require.NoError(t, staging.Save(ctx, &client.CredentialPair{Access: "sa", Refresh: "sr"}))
	require.NoError(t, prod.Save(ctx, &client.CredentialPair{Access: "pa", Refresh: "pr"}))

	require.NoError(t, staging.Clear(ctx))

	loaded, err := client.NewCredentialStore(NewBackend(db, "prod")).Load(ctx)
	require.NoError(t, err)
	assert.Equal(t, &client.CredentialPair{Access: "pa", Refresh: "pr"}, loaded)

	profiles, err := Profiles(ctx, db)
	require.NoError(t, err)
	assert.Equal(t, []string{"prod"}, profiles)
}
