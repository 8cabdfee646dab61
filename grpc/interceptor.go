package grpc

import (
	"context"
	"errors"

	"google.golang.org/grpc"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/credentials"
	"google.golang.org/grpc/status"

	"github.com/cerbyonvault/vaultclient/client"
)

// PerRPCCredentials adapts an Authorizer to credentials.PerRPCCredentials,
// for use with grpc.WithPerRPCCredentials.
type PerRPCCredentials struct {
	Authorizer *client.Authorizer
	Config     *Config
}

// NewPerRPCCredentials creates per-RPC credentials over authorizer
func NewPerRPCCredentials(authorizer *client.Authorizer, config *Config) *PerRPCCredentials {
	if config == nil {
		config = DefaultConfig()
	}
	config.EnsureDefaults()
	return &PerRPCCredentials{Authorizer: authorizer, Config: config}
}

// GetRequestMetadata implements credentials.PerRPCCredentials
func (c *PerRPCCredentials) GetRequestMetadata(ctx context.Context, uri ...string) (map[string]string, error) {
	token, err := c.Authorizer.AccessToken(ctx)
	if err != nil {
		return nil, statusError(err)
	}
	return map[string]string{c.Config.MetadataKeyAuthorization: "Bearer " + token}, nil
}

// RequireTransportSecurity implements credentials.PerRPCCredentials
func (c *PerRPCCredentials) RequireTransportSecurity() bool {
	return !c.Config.InsecureTransport
}

var _ credentials.PerRPCCredentials = (*PerRPCCredentials)(nil)

// UnaryClientInterceptor returns a gRPC unary client interceptor that attaches
// the session's access token. When the server answers Unauthenticated to a
// token the client still considered usable, that token is refreshed and the
// call retried once.
func UnaryClientInterceptor(authorizer *client.Authorizer, config *Config) grpc.UnaryClientInterceptor {
	if config == nil {
		config = DefaultConfig()
	}
	config.EnsureDefaults()

	return func(ctx context.Context, method string, req, reply interface{}, cc *grpc.ClientConn, invoker grpc.UnaryInvoker, opts ...grpc.CallOption) error {
		ctx = ensureRequestID(ctx, config.MetadataKeyRequestID)
		if config.PublicMethods[method] {
			return invoker(ctx, method, req, reply, cc, opts...)
		}

		token, err := authorizer.AccessToken(ctx)
		if err != nil {
			return statusError(err)
		}

		err = invoker(withBearer(ctx, config.MetadataKeyAuthorization, token), method, req, reply, cc, opts...)
		if status.Code(err) != codes.Unauthenticated {
			return err
		}

		newToken, rerr := authorizer.ForceRefresh(ctx, token)
		if rerr != nil {
			if client.IsAuthFailure(rerr) {
				return statusError(rerr)
			}
			// transient: let the caller see the original answer
			return err
		}
		return invoker(withBearer(ctx, config.MetadataKeyAuthorization, newToken), method, req, reply, cc, opts...)
	}
}

// StreamClientInterceptor returns a gRPC stream client interceptor that
// attaches the session's access token when the stream opens.
func StreamClientInterceptor(authorizer *client.Authorizer, config *Config) grpc.StreamClientInterceptor {
	if config == nil {
		config = DefaultConfig()
	}
	config.EnsureDefaults()

	return func(ctx context.Context, desc *grpc.StreamDesc, cc *grpc.ClientConn, method string, streamer grpc.Streamer, opts ...grpc.CallOption) (grpc.ClientStream, error) {
		ctx = ensureRequestID(ctx, config.MetadataKeyRequestID)
		if config.PublicMethods[method] {
			return streamer(ctx, desc, cc, method, opts...)
		}

		token, err := authorizer.AccessToken(ctx)
		if err != nil {
			return nil, statusError(err)
		}
		return streamer(withBearer(ctx, config.MetadataKeyAuthorization, token), desc, cc, method, opts...)
	}
}

// statusError maps session errors onto gRPC codes
func statusError(err error) error {
	switch {
	case client.IsAuthFailure(err):
		return status.Error(codes.Unauthenticated, err.Error())
	case client.IsRetryable(err):
		return status.Error(codes.Unavailable, err.Error())
	case errors.Is(err, context.Canceled):
		return status.Error(codes.Canceled, err.Error())
	case errors.Is(err, context.DeadlineExceeded):
		return status.Error(codes.DeadlineExceeded, err.Error())
	}
	return status.Error(codes.Internal, err.Error())
}
