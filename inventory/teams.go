package inventory

import (
	"context"
	"net/http"

	vc "github.com/cerbyonvault/vaultclient"
)

// ListTeams lists all teams. Admin only.
func (c *Client) ListTeams(ctx context.Context) ([]vc.Team, error) {
	var teams []vc.Team
	err := c.do(ctx, http.MethodGet, "/teams/", nil, nil, &teams)
	return teams, err
}

// GetTeam returns a team with its members
func (c *Client) GetTeam(ctx context.Context, id int64) (*vc.TeamDetail, error) {
	var team vc.TeamDetail
	if err := c.do(ctx, http.MethodGet, idPath("/teams/%d/", id), nil, nil, &team); err != nil {
		return nil, err
	}
	return &team, nil
}

// Me returns the authenticated user
func (c *Client) Me(ctx context.Context) (*vc.User, error) {
	var user vc.User
	if err := c.do(ctx, http.MethodGet, "/users/me/", nil, nil, &user); err != nil {
		return nil, err
	}
	return &user, nil
}

// ListUsers lists all users. Admin only.
func (c *Client) ListUsers(ctx context.Context) ([]vc.User, error) {
	var users []vc.User
	err := c.do(ctx, http.MethodGet, "/users/", nil, nil, &users)
	return users, err
}
