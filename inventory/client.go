// Package inventory is a typed client for the certificate inventory API.
//
// It carries no authentication logic of its own: pass it the HTTP client of a
// client.AuthClient and every call is authorized, refreshed and retried by the
// session transport.
//
//	ac, _ := client.NewAuthClient(baseURL, backend)
//	inv := inventory.NewClient(ac.BaseURL(), ac.HTTPClient())
//	certs, err := inv.ListCertificates(ctx)
package inventory

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"

	"github.com/google/uuid"

	"github.com/cerbyonvault/vaultclient/client"
)

// RequestIDHeader correlates a call with server logs
const RequestIDHeader = "X-Request-ID"

// maxErrorBody caps how much of an error response is kept
const maxErrorBody = 4 << 10

// ErrNotFound is returned for 404 answers
var ErrNotFound = errors.New("not found")

// APIError is a non-2xx answer from the inventory API.
// It unwraps to client.ErrUnauthenticated (401), client.ErrForbidden (403),
// ErrNotFound (404) or client.ErrUnavailable (5xx).
type APIError struct {
	Method string
	Path   string
	Status int
	Detail string
}

func (e *APIError) Error() string {
	msg := fmt.Sprintf("%s %s: HTTP %d", e.Method, e.Path, e.Status)
	if e.Detail != "" {
		msg += ": " + e.Detail
	}
	return msg
}

func (e *APIError) Unwrap() error {
	switch {
	case e.Status == http.StatusUnauthorized:
		return client.ErrUnauthenticated
	case e.Status == http.StatusForbidden:
		return client.ErrForbidden
	case e.Status == http.StatusNotFound:
		return ErrNotFound
	case e.Status >= 500:
		return client.ErrUnavailable
	}
	return nil
}

// Client calls the inventory API
type Client struct {
	baseURL    string
	httpClient *http.Client
}

// NewClient creates a client for the API at baseURL (including the /api prefix).
// httpClient should be an authorized client; nil uses http.DefaultClient.
func NewClient(baseURL string, httpClient *http.Client) *Client {
	if httpClient == nil {
		httpClient = http.DefaultClient
	}
	return &Client{
		baseURL:    strings.TrimRight(baseURL, "/"),
		httpClient: httpClient,
	}
}

// do sends a JSON request and decodes a JSON answer into out (if non-nil)
func (c *Client) do(ctx context.Context, method, path string, query url.Values, body any, out any) error {
	var reader io.Reader
	contentType := ""
	if body != nil {
		data, err := json.Marshal(body)
		if err != nil {
			return fmt.Errorf("failed to encode request: %w", err)
		}
		// bytes.Reader bodies can be replayed by the session transport
		reader = bytes.NewReader(data)
		contentType = "application/json"
	}

	data, err := c.send(ctx, method, path, query, reader, contentType)
	if err != nil {
		return err
	}
	if out == nil || len(data) == 0 {
		return nil
	}
	if err := json.Unmarshal(data, out); err != nil {
		return fmt.Errorf("invalid response from %s %s: %w", method, path, err)
	}
	return nil
}

// send performs the request and returns the raw answer body for 2xx responses
func (c *Client) send(ctx context.Context, method, path string, query url.Values, body io.Reader, contentType string) ([]byte, error) {
	u := c.baseURL + path
	if len(query) > 0 {
		u += "?" + query.Encode()
	}

	req, err := http.NewRequestWithContext(ctx, method, u, body)
	if err != nil {
		return nil, err
	}
	if contentType != "" {
		req.Header.Set("Content-Type", contentType)
	}
	req.Header.Set("Accept", "application/json")
	req.Header.Set(RequestIDHeader, uuid.NewString())

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, unwrapURLError(err)
	}
	defer resp.Body.Close()

	if resp.StatusCode/100 != 2 {
		data, _ := io.ReadAll(io.LimitReader(resp.Body, maxErrorBody))
		return nil, &APIError{Method: method, Path: path, Status: resp.StatusCode, Detail: errorDetail(data)}
	}
	return io.ReadAll(resp.Body)
}

// unwrapURLError strips the *url.Error added by http.Client so session errors
// surface as the transport returned them
func unwrapURLError(err error) error {
	var uerr *url.Error
	if errors.As(err, &uerr) && (client.IsAuthFailure(uerr.Err) || client.IsRetryable(uerr.Err)) {
		return uerr.Err
	}
	if client.IsAuthFailure(err) || client.IsRetryable(err) {
		return err
	}
	return fmt.Errorf("%w: %w", client.ErrUnavailable, err)
}

// errorDetail picks the human-readable message out of an error body
func errorDetail(data []byte) string {
	var body struct {
		Detail  string `json:"detail"`
		Error   string `json:"error"`
		Message string `json:"message"`
	}
	if err := json.Unmarshal(data, &body); err == nil {
		for _, s := range []string{body.Detail, body.Error, body.Message} {
			if s != "" {
				return s
			}
		}
	}
	return strings.TrimSpace(string(data))
}

func idPath(format string, id int64) string {
	return fmt.Sprintf(format, id)
}
