package client

import (
	"fmt"
	"log/slog"
	"net/http"
	"net/url"
	"strings"
	"time"
)

// AuthClient wires the credential store, evaluator, coordinator, authorizer and
// session for one API server and hands out an HTTP client that authorizes
// every request.
type AuthClient struct {
	baseURL       string
	store         *CredentialStore
	evaluator     *Evaluator
	endpoint      *TokenEndpoint
	coordinator   *Coordinator
	authorizer    *Authorizer
	session       *Session
	httpClient    *http.Client
	baseTransport http.RoundTripper

	margin         time.Duration
	refreshTimeout time.Duration
	clock          Clock
	logger         *slog.Logger
	tokenPath      string
	refreshPath    string
	profilePath    string
	hooks          []LogoutHook
}

// ClientOption configures an AuthClient
type ClientOption func(*AuthClient)

// WithTokenPath sets a custom credential exchange path
func WithTokenPath(path string) ClientOption {
	return func(c *AuthClient) {
		c.tokenPath = path
	}
}

// WithRefreshPath sets a custom refresh exchange path
func WithRefreshPath(path string) ClientOption {
	return func(c *AuthClient) {
		c.refreshPath = path
	}
}

// WithProfilePath sets a custom profile path
func WithProfilePath(path string) ClientOption {
	return func(c *AuthClient) {
		c.profilePath = path
	}
}

// WithHTTPClient sets a custom base HTTP client (for timeouts, TLS config, etc.)
// The transport from this client will be wrapped with auth handling.
func WithHTTPClient(client *http.Client) ClientOption {
	return func(c *AuthClient) {
		if client != nil && client.Transport != nil {
			c.baseTransport = client.Transport
		}
		// Copy timeout and other settings
		if client != nil {
			c.httpClient.Timeout = client.Timeout
			c.httpClient.CheckRedirect = client.CheckRedirect
			c.httpClient.Jar = client.Jar
		}
	}
}

// WithTransport sets a custom base transport (for connection pooling, proxies, etc.)
func WithTransport(transport http.RoundTripper) ClientOption {
	return func(c *AuthClient) {
		c.baseTransport = transport
	}
}

// WithMargin sets the expiry safety margin. Non-positive values make
// NewAuthClient fail with ErrInvalidMargin.
func WithMargin(margin time.Duration) ClientOption {
	return func(c *AuthClient) {
		c.margin = margin
	}
}

// WithRefreshTimeout bounds each refresh exchange
func WithRefreshTimeout(timeout time.Duration) ClientOption {
	return func(c *AuthClient) {
		if timeout > 0 {
			c.refreshTimeout = timeout
		}
	}
}

// WithClock replaces the clock used for expiry decisions
func WithClock(clock Clock) ClientOption {
	return func(c *AuthClient) {
		if clock != nil {
			c.clock = clock
		}
	}
}

// WithLogger sets the logger used by the coordinator and session
func WithLogger(logger *slog.Logger) ClientOption {
	return func(c *AuthClient) {
		if logger != nil {
			c.logger = logger
		}
	}
}

// WithLogoutHook registers a hook run whenever the session ends
func WithLogoutHook(hook LogoutHook) ClientOption {
	return func(c *AuthClient) {
		c.hooks = append(c.hooks, hook)
	}
}

// NewAuthClient creates a new authenticated HTTP client for the API at baseURL,
// persisting credentials through backend. Call Session().Init to load them.
func NewAuthClient(baseURL string, backend Backend, opts ...ClientOption) (*AuthClient, error) {
	c := &AuthClient{
		baseURL:        normalizeBaseURL(baseURL),
		httpClient:     &http.Client{},
		baseTransport:  http.DefaultTransport,
		margin:         DefaultMargin,
		refreshTimeout: DefaultRefreshTimeout,
		clock:          RealClock{},
		logger:         slog.Default(),
		tokenPath:      DefaultTokenPath,
		refreshPath:    DefaultRefreshPath,
		profilePath:    DefaultProfilePath,
	}

	for _, opt := range opts {
		opt(c)
	}

	evaluator, err := NewEvaluator(c.margin)
	if err != nil {
		return nil, fmt.Errorf("invalid client options: %w", err)
	}
	c.evaluator = evaluator

	c.store = NewCredentialStore(backend)

	c.endpoint = NewTokenEndpoint(c.baseURL, c.baseTransport)
	c.endpoint.tokenPath = c.tokenPath
	c.endpoint.refreshPath = c.refreshPath

	c.coordinator = NewCoordinator(c.store, c.endpoint, evaluator)
	c.coordinator.clock = c.clock
	c.coordinator.timeout = c.refreshTimeout
	c.coordinator.logger = c.logger

	c.authorizer = NewAuthorizer(c.store, evaluator, c.coordinator)
	c.authorizer.clock = c.clock

	// Wrap the base transport with auth handling
	c.httpClient.Transport = NewTransport(c.authorizer, c.baseTransport)

	c.session = NewSession(c.store, c.endpoint, c.coordinator, c.httpClient, c.baseURL+c.profilePath)
	c.session.logger = c.logger
	for _, h := range c.hooks {
		c.session.OnLogout(h)
	}

	return c, nil
}

// normalizeBaseURL trims trailing slashes; the API is mounted under a path
// prefix, so unlike a host-only URL the path is kept
func normalizeBaseURL(baseURL string) string {
	u, err := url.Parse(baseURL)
	if err == nil && u.Scheme != "" && u.Host != "" {
		baseURL = fmt.Sprintf("%s://%s%s", u.Scheme, u.Host, u.Path)
	}
	return strings.TrimRight(baseURL, "/")
}

// HTTPClient returns the underlying HTTP client with auth handling
func (c *AuthClient) HTTPClient() *http.Client {
	return c.httpClient
}

// BaseURL returns the API base URL this client is configured for
func (c *AuthClient) BaseURL() string {
	return c.baseURL
}

// Session returns the session context
func (c *AuthClient) Session() *Session {
	return c.session
}

// Authorizer returns the authorization interceptor
func (c *AuthClient) Authorizer() *Authorizer {
	return c.authorizer
}

// Coordinator returns the refresh coordinator
func (c *AuthClient) Coordinator() *Coordinator {
	return c.coordinator
}

// Store returns the credential store
func (c *AuthClient) Store() *CredentialStore {
	return c.store
}

// Evaluator returns the expiry evaluator
func (c *AuthClient) Evaluator() *Evaluator {
	return c.evaluator
}

// TokenSource returns an oauth2.TokenSource backed by the authorizer
func (c *AuthClient) TokenSource() *TokenSource {
	return NewTokenSource(c.authorizer)
}

// IsLoggedIn returns true if a credential pair is held. The access token may be
// stale; it is refreshed on the next request.
func (c *AuthClient) IsLoggedIn() bool {
	return c.store.Current() != nil
}
