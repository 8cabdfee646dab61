// Package grpc carries a vaultclient session over gRPC: per-RPC credentials and
// client interceptors that authorize outgoing calls through the same
// Authorizer as the HTTP transport.
package grpc

import (
	"context"
	"strings"

	"github.com/google/uuid"
	"google.golang.org/grpc/metadata"
)

// Default metadata keys.
// These can be customized via Config if needed.
const (
	// DefaultMetadataKeyAuthorization carries "Bearer <access>"
	DefaultMetadataKeyAuthorization = "authorization"

	// DefaultMetadataKeyRequestID correlates a call with server logs
	DefaultMetadataKeyRequestID = "x-request-id"
)

// Config holds the metadata key configuration and per-method behavior.
type Config struct {
	// MetadataKeyAuthorization defaults to "authorization".
	MetadataKeyAuthorization string

	// MetadataKeyRequestID defaults to "x-request-id".
	MetadataKeyRequestID string

	// PublicMethods are sent without credentials.
	// Keys should be full method names like "/package.Service/Method".
	PublicMethods map[string]bool

	// InsecureTransport allows credentials over plaintext connections.
	// Should only be enabled in development/testing environments.
	InsecureTransport bool
}

// DefaultConfig returns the default configuration.
func DefaultConfig() *Config {
	return &Config{
		MetadataKeyAuthorization: DefaultMetadataKeyAuthorization,
		MetadataKeyRequestID:     DefaultMetadataKeyRequestID,
		PublicMethods:            make(map[string]bool),
	}
}

// NewPublicMethodsConfig creates a config with the specified public methods.
func NewPublicMethodsConfig(publicMethods ...string) *Config {
	config := DefaultConfig()
	for _, method := range publicMethods {
		config.PublicMethods[method] = true
	}
	return config
}

// EnsureDefaults fills in default values for any unset fields.
func (c *Config) EnsureDefaults() {
	if c.MetadataKeyAuthorization == "" {
		c.MetadataKeyAuthorization = DefaultMetadataKeyAuthorization
	}
	if c.MetadataKeyRequestID == "" {
		c.MetadataKeyRequestID = DefaultMetadataKeyRequestID
	}
	if c.PublicMethods == nil {
		c.PublicMethods = make(map[string]bool)
	}
}

// BearerFromIncomingContext extracts the bearer token a client sent.
// Returns empty string if there is none.
func BearerFromIncomingContext(ctx context.Context) string {
	md, ok := metadata.FromIncomingContext(ctx)
	if !ok {
		return ""
	}
	if values := md.Get(DefaultMetadataKeyAuthorization); len(values) > 0 {
		if token, ok := strings.CutPrefix(values[0], "Bearer "); ok {
			return token
		}
	}
	return ""
}

// RequestIDFromContext extracts the request ID from incoming metadata.
func RequestIDFromContext(ctx context.Context) string {
	md, ok := metadata.FromIncomingContext(ctx)
	if !ok {
		return ""
	}
	if values := md.Get(DefaultMetadataKeyRequestID); len(values) > 0 {
		return values[0]
	}
	return ""
}

// RequestIDToOutgoingContext adds a request ID to outgoing gRPC context metadata.
func RequestIDToOutgoingContext(ctx context.Context, requestID string) context.Context {
	return RequestIDToOutgoingContextWithKey(ctx, requestID, DefaultMetadataKeyRequestID)
}

// RequestIDToOutgoingContextWithKey adds a request ID with a custom key.
func RequestIDToOutgoingContextWithKey(ctx context.Context, requestID string, key string) context.Context {
	return metadata.AppendToOutgoingContext(ctx, key, requestID)
}

// ensureRequestID adds a fresh request ID unless the caller already set one
func ensureRequestID(ctx context.Context, key string) context.Context {
	if md, ok := metadata.FromOutgoingContext(ctx); ok && len(md.Get(key)) > 0 {
		return ctx
	}
	return RequestIDToOutgoingContextWithKey(ctx, uuid.NewString(), key)
}

// withBearer sets the authorization entry on the outgoing metadata, replacing any previous one
func withBearer(ctx context.Context, key, token string) context.Context {
	md, _ := metadata.FromOutgoingContext(ctx)
	md = md.Copy()
	md.Set(key, "Bearer "+token)
	return metadata.NewOutgoingContext(ctx, md)
}
