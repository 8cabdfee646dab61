package inventory

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"mime/multipart"
	"net/http"
	"net/url"
	"strconv"

	vc "github.com/cerbyonvault/vaultclient"
)

// UploadCertFile sends a certificate or key file for parsing. The server keeps
// the parsed material in its session; finish with ImportCertMetadata using the
// same cookie jar. password is only needed for encrypted PKCS#12 files.
func (c *Client) UploadCertFile(ctx context.Context, filename string, r io.Reader, password string) (*vc.UploadPreview, error) {
	var buf bytes.Buffer
	mw := multipart.NewWriter(&buf)
	part, err := mw.CreateFormFile("file", filename)
	if err != nil {
		return nil, err
	}
	if _, err := io.Copy(part, r); err != nil {
		return nil, fmt.Errorf("failed to read %s: %w", filename, err)
	}
	if password != "" {
		if err := mw.WriteField("password", password); err != nil {
			return nil, err
		}
	}
	if err := mw.Close(); err != nil {
		return nil, err
	}

	data, err := c.send(ctx, http.MethodPost, "/upload-cert-file/", nil, bytes.NewReader(buf.Bytes()), mw.FormDataContentType())
	if err != nil {
		return nil, err
	}
	var preview vc.UploadPreview
	if err := json.Unmarshal(data, &preview); err != nil {
		return nil, fmt.Errorf("invalid upload preview: %w", err)
	}
	return &preview, nil
}

// ImportCertMetadata stores the previewed certificates and key
func (c *Client) ImportCertMetadata(ctx context.Context, req vc.ImportRequest) (*vc.ImportResult, error) {
	var res vc.ImportResult
	if err := c.do(ctx, http.MethodPost, "/import-cert-metadata/", nil, req, &res); err != nil {
		return nil, err
	}
	return &res, nil
}

// DashboardOverview returns certificate counts
func (c *Client) DashboardOverview(ctx context.Context) (*vc.DashboardOverview, error) {
	var o vc.DashboardOverview
	if err := c.do(ctx, http.MethodGet, "/dashboard/certificates-overview/", nil, nil, &o); err != nil {
		return nil, err
	}
	return &o, nil
}

// ExpiringSoon counts certificates expiring within days (server default 30 when days <= 0)
func (c *Client) ExpiringSoon(ctx context.Context, days int) (*vc.ExpiringSoon, error) {
	var q url.Values
	if days > 0 {
		q = url.Values{"days": {strconv.Itoa(days)}}
	}
	var e vc.ExpiringSoon
	if err := c.do(ctx, http.MethodGet, "/dashboard/certificates-expiring-soon/", q, nil, &e); err != nil {
		return nil, err
	}
	return &e, nil
}
