//go:build !wasm
// +build !wasm

// Package gae provides a Google Cloud Datastore credential backend for vaultclient.
//
// Pairs are stored as entities of kind Credential keyed by profile name.
// Pass a namespace to isolate tenants sharing one project:
//
//	dsClient, _ := datastore.NewClient(ctx, projectID)
//	backend := gae.NewBackend(dsClient, "tenant-123", "default")
package gae

import (
	"context"
	"errors"
	"time"

	"cloud.google.com/go/datastore"
	"google.golang.org/api/iterator"

	"github.com/cerbyonvault/vaultclient/client"
)

// KindCredential is the Datastore kind for stored pairs
const KindCredential = "Credential"

// CredentialEntity is the Datastore entity for a stored credential pair
type CredentialEntity struct {
	Key       *datastore.Key `datastore:"__key__"`
	Data      []byte         `datastore:"data,noindex"`
	UpdatedAt time.Time      `datastore:"updated_at"`
}

// Backend implements client.Backend using Google Cloud Datastore
type Backend struct {
	client    *datastore.Client
	namespace string
	profile   string
}

var _ client.Backend = (*Backend)(nil)

// NewBackend creates a Datastore-backed backend for profile
func NewBackend(client *datastore.Client, namespace, profile string) *Backend {
	if profile == "" {
		profile = "default"
	}
	return &Backend{client: client, namespace: namespace, profile: profile}
}

func (b *Backend) key() *datastore.Key {
	key := datastore.NameKey(KindCredential, b.profile, nil)
	key.Namespace = b.namespace
	return key
}

func (b *Backend) Read(ctx context.Context) ([]byte, error) {
	var entity CredentialEntity
	err := b.client.Get(ctx, b.key(), &entity)
	if errors.Is(err, datastore.ErrNoSuchEntity) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return entity.Data, nil
}

func (b *Backend) Write(ctx context.Context, data []byte) error {
	key := b.key()
	entity := &CredentialEntity{Key: key, Data: data, UpdatedAt: time.Now()}
	_, err := b.client.Put(ctx, key, entity)
	return err
}

func (b *Backend) Delete(ctx context.Context) error {
	// Delete of a missing key succeeds in Datastore
	return b.client.Delete(ctx, b.key())
}

// Profiles lists the profiles stored in namespace
func Profiles(ctx context.Context, client *datastore.Client, namespace string) ([]string, error) {
	query := datastore.NewQuery(KindCredential).KeysOnly()
	if namespace != "" {
		query = query.Namespace(namespace)
	}

	var profiles []string
	it := client.Run(ctx, query)
	for {
		key, err := it.Next(nil)
		if err == iterator.Done {
			break
		}
		if err != nil {
			return nil, err
		}
		profiles = append(profiles, key.Name)
	}
	return profiles, nil
}
