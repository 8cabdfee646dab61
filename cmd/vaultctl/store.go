package main

import (
	"context"
	"fmt"
	"path/filepath"

	"cloud.google.com/go/datastore"
	"github.com/glebarez/sqlite"
	goredis "github.com/redis/go-redis/v9"
	"gorm.io/gorm"

	"github.com/cerbyonvault/vaultclient/client"
	"github.com/cerbyonvault/vaultclient/client/stores/fs"
	"github.com/cerbyonvault/vaultclient/client/stores/gae"
	gormstore "github.com/cerbyonvault/vaultclient/client/stores/gorm"
	redisstore "github.com/cerbyonvault/vaultclient/client/stores/redis"
	"github.com/cerbyonvault/vaultclient/internal/config"
)

// storage is an opened credential store for the configured profile
type storage struct {
	backend  client.Backend
	profiles func(ctx context.Context) ([]string, error)
	close    func() error
}

func openStorage(ctx context.Context, cfg *config.Config) (*storage, error) {
	noop := func() error { return nil }

	switch cfg.Store {
	case config.StoreMemory:
		return &storage{
			backend:  client.NewMemoryBackend(),
			profiles: func(context.Context) ([]string, error) { return nil, nil },
			close:    noop,
		}, nil

	case config.StoreFile:
		dir := cfg.StorePath
		if dir == "" {
			d, err := fs.DefaultDir()
			if err != nil {
				return nil, err
			}
			dir = d
		}
		backend, err := fs.NewBackend(dir, cfg.Profile, &fs.Options{Passphrase: cfg.Passphrase})
		if err != nil {
			return nil, err
		}
		return &storage{
			backend:  backend,
			profiles: func(context.Context) ([]string, error) { return fs.Profiles(dir) },
			close:    noop,
		}, nil

	case config.StoreSQL:
		db, err := gorm.Open(sqlite.Open(filepath.Clean(cfg.StorePath)), &gorm.Config{})
		if err != nil {
			return nil, fmt.Errorf("open %s: %w", cfg.StorePath, err)
		}
		if err := gormstore.AutoMigrate(db); err != nil {
			return nil, fmt.Errorf("migrate %s: %w", cfg.StorePath, err)
		}
		sqlDB, err := db.DB()
		if err != nil {
			return nil, err
		}
		return &storage{
			backend:  gormstore.NewBackend(db, cfg.Profile),
			profiles: func(ctx context.Context) ([]string, error) { return gormstore.Profiles(ctx, db) },
			close:    sqlDB.Close,
		}, nil

	case config.StoreDatastore:
		dsClient, err := datastore.NewClient(ctx, cfg.DatastoreProject)
		if err != nil {
			return nil, fmt.Errorf("connect to datastore: %w", err)
		}
		return &storage{
			backend: gae.NewBackend(dsClient, cfg.DatastoreNamespace, cfg.Profile),
			profiles: func(ctx context.Context) ([]string, error) {
				return gae.Profiles(ctx, dsClient, cfg.DatastoreNamespace)
			},
			close: dsClient.Close,
		}, nil

	case config.StoreRedis:
		rdb := goredis.NewClient(&goredis.Options{
			Addr:     cfg.RedisAddr,
			Password: cfg.RedisPassword,
			DB:       cfg.RedisDB,
		})
		return &storage{
			backend:  redisstore.NewBackend(rdb, cfg.Profile, cfg.RedisTTL),
			profiles: func(ctx context.Context) ([]string, error) { return redisstore.Profiles(ctx, rdb) },
			close:    rdb.Close,
		}, nil
	}
	return nil, fmt.Errorf("%w: unknown store %q", config.ErrInvalidConfig, cfg.Store)
}
