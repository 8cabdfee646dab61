package inventory

import (
	"context"
	"net/http"

	vc "github.com/cerbyonvault/vaultclient"
)

func (c *Client) ListKeys(ctx context.Context) ([]vc.PrivateKey, error) {
	var keys []vc.PrivateKey
	err := c.do(ctx, http.MethodGet, "/keys/", nil, nil, &keys)
	return keys, err
}

func (c *Client) GetKey(ctx context.Context, id int64) (*vc.PrivateKey, error) {
	var key vc.PrivateKey
	if err := c.do(ctx, http.MethodGet, idPath("/keys/%d/", id), nil, nil, &key); err != nil {
		return nil, err
	}
	return &key, nil
}

// UpdateKey changes a key's name, comment, team access or linked certificate
func (c *Client) UpdateKey(ctx context.Context, id int64, update vc.KeyUpdate) (*vc.PrivateKey, error) {
	var key vc.PrivateKey
	if err := c.do(ctx, http.MethodPatch, idPath("/keys/%d/update-privatekey/", id), nil, update, &key); err != nil {
		return nil, err
	}
	return &key, nil
}

func (c *Client) DeleteKeys(ctx context.Context, ids []int64) error {
	if len(ids) == 0 {
		return nil
	}
	return c.do(ctx, http.MethodDelete, "/keys/delete/", nil, map[string][]int64{"ids": ids}, nil)
}
