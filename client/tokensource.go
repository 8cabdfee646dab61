package client

import (
	"context"

	"golang.org/x/oauth2"
)

// TokenSource adapts an Authorizer to oauth2.TokenSource so the session can
// drive libraries that speak golang.org/x/oauth2 (gRPC per-RPC credentials,
// oauth2.NewClient). Each Token call goes through the same single-flight
// refresh as HTTP requests.
type TokenSource struct {
	authorizer *Authorizer
	ctx        context.Context
}

// NewTokenSource creates a TokenSource over the authorizer
func NewTokenSource(authorizer *Authorizer) *TokenSource {
	return &TokenSource{authorizer: authorizer, ctx: context.Background()}
}

// WithContext returns a copy of the token source that refreshes under ctx
func (ts *TokenSource) WithContext(ctx context.Context) *TokenSource {
	return &TokenSource{authorizer: ts.authorizer, ctx: ctx}
}

// Token implements oauth2.TokenSource. Expiry is the token's exp minus the
// margin, so oauth2 stops reusing it exactly when the Evaluator would.
func (ts *TokenSource) Token() (*oauth2.Token, error) {
	access, err := ts.authorizer.AccessToken(ts.ctx)
	if err != nil {
		return nil, err
	}
	tok := &oauth2.Token{
		AccessToken: access,
		TokenType:   "Bearer",
	}
	if claims, err := DecodeClaims(access); err == nil {
		tok.Expiry = claims.ExpiresAt().Add(-ts.authorizer.evaluator.Margin())
	}
	return tok, nil
}

var _ oauth2.TokenSource = (*TokenSource)(nil)
