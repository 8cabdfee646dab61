package client

import (
	"bytes"
	"encoding/json"
	"fmt"
	"strconv"
	"time"

	"github.com/golang-jwt/jwt/v5"

	vc "github.com/cerbyonvault/vaultclient"
)

// Claims are the identity claims embedded in an access token
type Claims struct {
	jwt.RegisteredClaims
	TokenType string    `json:"token_type,omitempty"`
	UserID    UserID    `json:"user_id,omitempty"`
	Email     string    `json:"email,omitempty"`
	Username  string    `json:"username,omitempty"`
	FirstName string    `json:"first_name,omitempty"`
	LastName  string    `json:"last_name,omitempty"`
	Teams     []vc.Team `json:"teams,omitempty"`
}

// UserID is the user_id claim. Depending on the server's user model it is
// issued as a JSON number or a string; both decode, and so does null.
type UserID string

func (id *UserID) UnmarshalJSON(data []byte) error {
	data = bytes.TrimSpace(data)
	switch {
	case bytes.Equal(data, []byte("null")):
		*id = ""
		return nil
	case len(data) > 0 && data[0] == '"':
		var s string
		if err := json.Unmarshal(data, &s); err != nil {
			return err
		}
		*id = UserID(s)
		return nil
	}
	var n json.Number
	if err := json.Unmarshal(data, &n); err != nil {
		return fmt.Errorf("user_id: %w", err)
	}
	*id = UserID(n.String())
	return nil
}

// MarshalJSON writes numeric ids as numbers and anything else as a string
func (id UserID) MarshalJSON() ([]byte, error) {
	if _, err := strconv.ParseInt(string(id), 10, 64); err == nil {
		return []byte(id), nil
	}
	return json.Marshal(string(id))
}

// SubjectID returns the token subject, falling back to the user_id claim
func (c *Claims) SubjectID() string {
	if c.Subject != "" {
		return c.Subject
	}
	return string(c.UserID)
}

// ExpiresAt returns the exp claim as a time
func (c *Claims) ExpiresAt() time.Time {
	if c.RegisteredClaims.ExpiresAt == nil {
		return time.Time{}
	}
	return c.RegisteredClaims.ExpiresAt.Time
}

// parser only decodes: the server verifies signatures, the client only reads claims
var parser = jwt.NewParser()

// DecodeClaims decodes the claims of an access token without verifying its signature.
// The token string is never modified. Tokens without an exp claim are rejected.
func DecodeClaims(access string) (*Claims, error) {
	if access == "" {
		return nil, fmt.Errorf("empty access token")
	}
	var claims Claims
	if _, _, err := parser.ParseUnverified(access, &claims); err != nil {
		return nil, fmt.Errorf("failed to decode access token: %w", err)
	}
	if claims.RegisteredClaims.ExpiresAt == nil {
		return nil, fmt.Errorf("access token has no exp claim")
	}
	return &claims, nil
}
