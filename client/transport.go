package client

import (
	"net/http"
	"strings"
)

// Transport is an http.RoundTripper that authorizes every request and
// recovers once from a 401 on a token the client still considered usable.
type Transport struct {
	Authorizer *Authorizer
	Base       http.RoundTripper
}

// NewTransport creates a Transport over base (http.DefaultTransport if nil)
func NewTransport(authorizer *Authorizer, base http.RoundTripper) *Transport {
	return &Transport{
		Authorizer: authorizer,
		Base:       base,
	}
}

// RoundTrip implements http.RoundTripper
func (t *Transport) RoundTrip(req *http.Request) (*http.Response, error) {
	base := t.base()

	authed, err := t.Authorizer.Authorize(req.Context(), req)
	if err != nil {
		if req.Body != nil {
			req.Body.Close()
		}
		return nil, err
	}

	resp, err := base.RoundTrip(authed)
	if err != nil {
		return nil, err
	}

	// If we get 401 on a token we sent, refresh that exact token and retry once
	token := bearerToken(authed)
	if resp.StatusCode != http.StatusUnauthorized || token == "" {
		return resp, nil
	}
	if req.Body != nil && req.Body != http.NoBody && req.GetBody == nil {
		// body already consumed and can't be replayed
		return resp, nil
	}

	newToken, err := t.Authorizer.ForceRefresh(req.Context(), token)
	if err != nil {
		if IsAuthFailure(err) {
			resp.Body.Close()
			return nil, err
		}
		// transient: let the caller see the original 401
		return resp, nil
	}
	resp.Body.Close()

	retry := withBearer(req, newToken)
	if req.GetBody != nil {
		body, err := req.GetBody()
		if err != nil {
			return nil, err
		}
		retry.Body = body
	}
	return base.RoundTrip(retry)
}

func (t *Transport) base() http.RoundTripper {
	if t.Base == nil {
		return http.DefaultTransport
	}
	return t.Base
}

func bearerToken(req *http.Request) string {
	h := req.Header.Get("Authorization")
	if token, ok := strings.CutPrefix(h, "Bearer "); ok {
		return token
	}
	return ""
}

// StaticTransport wraps an http.RoundTripper to add a fixed Authorization header.
// It is meant for scripts and tests that already hold a token.
type StaticTransport struct {
	Base  http.RoundTripper
	Token string
}

// RoundTrip implements http.RoundTripper
func (t *StaticTransport) RoundTrip(req *http.Request) (*http.Response, error) {
	if t.Token != "" {
		req = withBearer(req, t.Token)
	}

	base := t.Base
	if base == nil {
		base = http.DefaultTransport
	}

	return base.RoundTrip(req)
}
