//go:build !wasm
// +build !wasm

// Package gorm provides a GORM-based credential backend for vaultclient.
// It supports any database that GORM supports (PostgreSQL, MySQL, SQLite, etc.)
// and lets several profiles share one table, e.g. on a build host.
//
// # Database Schema
//
// AutoMigrate creates the credential_records table:
//   - profile: primary key
//   - data: the serialized credential pair
//   - updated_at: last write
//
// # Usage
//
//	db, _ := gorm.Open(postgres.Open(dsn), &gorm.Config{})
//	_ = gormstore.AutoMigrate(db)
//	backend := gormstore.NewBackend(db, "ci")
package gorm

import (
	"context"
	"errors"
	"time"

	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	"github.com/cerbyonvault/vaultclient/client"
)

// CredentialRecord is the GORM model for a stored credential pair
type CredentialRecord struct {
	Profile   string    `gorm:"primaryKey;size:128"`
	Data      []byte    `gorm:"not null"`
	UpdatedAt time.Time `gorm:"autoUpdateTime"`
}

func (CredentialRecord) TableName() string {
	return "credential_records"
}

// AutoMigrate runs database migrations for the credential table
func AutoMigrate(db *gorm.DB) error {
	return db.AutoMigrate(&CredentialRecord{})
}

// Backend implements client.Backend for one profile row
type Backend struct {
	db      *gorm.DB
	profile string
}

var _ client.Backend = (*Backend)(nil)

func NewBackend(db *gorm.DB, profile string) *Backend {
	if profile == "" {
		profile = "default"
	}
	return &Backend{db: db, profile: profile}
}

func (b *Backend) Read(ctx context.Context) ([]byte, error) {
	var rec CredentialRecord
	err := b.db.WithContext(ctx).First(&rec, "profile = ?", b.profile).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return rec.Data, nil
}

func (b *Backend) Write(ctx context.Context, data []byte) error {
	rec := &CredentialRecord{Profile: b.profile, Data: data, UpdatedAt: time.Now()}
	return b.db.WithContext(ctx).Clauses(clause.OnConflict{
		Columns:   []clause.Column{{Name: "profile"}},
		DoUpdates: clause.AssignmentColumns([]string{"data", "updated_at"}),
	}).Create(rec).Error
}

func (b *Backend) Delete(ctx context.Context) error {
	return b.db.WithContext(ctx).Delete(&CredentialRecord{}, "profile = ?", b.profile).Error
}

// Profiles lists every profile with stored credentials, sorted
func Profiles(ctx context.Context, db *gorm.DB) ([]string, error) {
	var profiles []string
	err := db.WithContext(ctx).Model(&CredentialRecord{}).Order("profile").Pluck("profile", &profiles).Error
	return profiles, err
}
