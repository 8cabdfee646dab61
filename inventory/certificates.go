package inventory

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"net/url"
	"strconv"

	vc "github.com/cerbyonvault/vaultclient"
)

// ErrPasswordRequired is returned when a PFX export has no password
var ErrPasswordRequired = errors.New("pfx export requires a password")

// ListCertificates returns the root certificates visible to the user, each
// with its chain children nested
func (c *Client) ListCertificates(ctx context.Context) ([]vc.Certificate, error) {
	var certs []vc.Certificate
	err := c.do(ctx, http.MethodGet, "/certificates/", nil, nil, &certs)
	return certs, err
}

// GetCertificate returns one certificate
func (c *Client) GetCertificate(ctx context.Context, id int64) (*vc.Certificate, error) {
	var cert vc.Certificate
	if err := c.do(ctx, http.MethodGet, idPath("/certificates/%d/", id), nil, nil, &cert); err != nil {
		return nil, err
	}
	return &cert, nil
}

// UpdateCertificate changes a certificate's name, comment or team access
func (c *Client) UpdateCertificate(ctx context.Context, id int64, update vc.CertificateUpdate) (*vc.Certificate, error) {
	var cert vc.Certificate
	if err := c.do(ctx, http.MethodPatch, idPath("/certificates/%d/update-certificate/", id), nil, update, &cert); err != nil {
		return nil, err
	}
	return &cert, nil
}

// DeleteCertificates removes certificates by id
func (c *Client) DeleteCertificates(ctx context.Context, ids []int64) error {
	if len(ids) == 0 {
		return nil
	}
	return c.do(ctx, http.MethodDelete, "/certificates/delete/", nil, map[string][]int64{"ids": ids}, nil)
}

// ExportCertificate downloads a certificate, optionally bundled with its key
// and chain. PFX bundles always include the key and need a password.
func (c *Client) ExportCertificate(ctx context.Context, id int64, opts vc.ExportOptions) ([]byte, error) {
	format := opts.Format
	if format == "" {
		format = vc.ExportPEM
	}
	switch format {
	case vc.ExportPEM, vc.ExportDER:
	case vc.ExportPFX:
		if opts.Password == "" {
			return nil, ErrPasswordRequired
		}
		opts.IncludeKey = true
	default:
		return nil, fmt.Errorf("unsupported export format %q", format)
	}

	q := url.Values{}
	q.Set("fmt", string(format))
	q.Set("key", strconv.FormatBool(opts.IncludeKey))
	q.Set("chain", strconv.FormatBool(opts.IncludeChain))
	if opts.Password != "" {
		q.Set("pwd", opts.Password)
	}
	return c.send(ctx, http.MethodGet, idPath("/certificates/%d/export/", id), q, nil, "")
}

// CertificateWebsites lists the websites attached to a certificate
func (c *Client) CertificateWebsites(ctx context.Context, certID int64) ([]vc.Website, error) {
	var sites []vc.Website
	err := c.do(ctx, http.MethodGet, idPath("/certificates/%d/websites/", certID), nil, nil, &sites)
	return sites, err
}

// AddWebsite attaches a website to a certificate
func (c *Client) AddWebsite(ctx context.Context, certID int64, siteURL string) (*vc.Website, error) {
	var site vc.Website
	if err := c.do(ctx, http.MethodPost, idPath("/certificates/%d/websites/", certID), nil, map[string]string{"url": siteURL}, &site); err != nil {
		return nil, err
	}
	return &site, nil
}

// DeleteWebsite removes a website
func (c *Client) DeleteWebsite(ctx context.Context, id int64) error {
	return c.do(ctx, http.MethodDelete, idPath("/websites/%d/", id), nil, nil, nil)
}

// ListWebsites lists every website the user can see
func (c *Client) ListWebsites(ctx context.Context) ([]vc.Website, error) {
	var sites []vc.Website
	err := c.do(ctx, http.MethodGet, "/websites/", nil, nil, &sites)
	return sites, err
}
