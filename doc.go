// Package vaultclient is a Go client for the Cerbyon certificate-inventory service.
//
// The service stores certificates, private keys, websites and teams. This module
// talks to its REST API on behalf of a logged-in user and keeps that user's
// session alive.
//
// # Architecture
//
// The root package holds the records exchanged with the API (Certificate,
// PrivateKey, Website, Team, User) and a few helpers over them.
//
// The client package owns the session credential lifecycle:
//
//   - CredentialStore keeps the current access/refresh pair in memory and
//     persists it through a Backend (memory, file, GORM, Datastore, Redis, scs).
//   - Evaluator decides whether an access token is still usable, applying a
//     safety margin before its expiry.
//   - Coordinator refreshes the pair against /token/refresh/ with single-flight
//     semantics: concurrent callers share one exchange.
//   - Authorizer and Transport attach the bearer token to every outbound
//     request, refreshing first when needed.
//   - Session exposes Login, Logout and CurrentIdentity, and tears the session
//     down when the refresh token is rejected.
//
// The inventory package is the typed API client built on top of the authorized
// HTTP client. The grpc package adapts the Authorizer to gRPC client calls. The
// console package serves a small JSON backend-for-frontend that keeps one
// session per browser.
//
// # Basic Usage
//
//	backend, _ := fs.NewBackend("", "default", nil)
//	ac, err := client.NewAuthClient("https://vault.example.com/api", backend)
//	if err != nil {
//	    return err
//	}
//	if err := ac.Session().Init(ctx); err != nil {
//	    return err
//	}
//	if ac.Session().CurrentIdentity() == nil {
//	    if err := ac.Session().Login(ctx, "user@example.com", password); err != nil {
//	        return err
//	    }
//	}
//	inv := inventory.NewClient(ac.BaseURL(), ac.HTTPClient())
//	certs, err := inv.ListCertificates(ctx)
//
// # Errors
//
// Failures are reported with sentinel errors from the client package, matched
// with errors.Is: ErrUnauthenticated and ErrFatalAuth end the session,
// ErrTransientAuth and ErrUnavailable can be retried, ErrInvalidCredentials
// means the login was rejected.
package vaultclient
