package client

import (
	"encoding/json"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/cerbyonvault/vaultclient/client/clienttest"
)

func TestNewEvaluator_RejectsNonPositiveMargin(t *testing.T) {
	for _, margin := range []time.Duration{0, -time.Second} {
		_, err := NewEvaluator(margin)
		assert.True(t, errors.Is(err, ErrInvalidMargin), "margin %v", margin)
	}
}

func TestEvaluator_IsUsable(t *testing.T) {
	now := epoch
	tests := []struct {
		name   string
		token  string
		margin time.Duration
		want   bool
	}{
		{"far from expiry", clienttest.MintTokenIn(now, time.Hour), 5 * time.Second, true},
		{"inside margin", clienttest.MintTokenIn(now, 2*time.Second), 5 * time.Second, false},
		{"exactly at margin", clienttest.MintTokenIn(now, 5*time.Second), 5 * time.Second, false},
		{"just past margin", clienttest.MintTokenIn(now, 6*time.Second), 5 * time.Second, true},
		{"already expired", clienttest.MintTokenIn(now, -time.Minute), 5 * time.Second, false},
		{"small margin", clienttest.MintTokenIn(now, 2*time.Second), time.Second, true},
		{"not a jwt", "garbage", 5 * time.Second, false},
		{"empty", "", 5 * time.Second, false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			ev, err := NewEvaluator(tt.margin)
			require.NoError(t, err)
			assert.Equal(t, tt.want, ev.IsUsable(tt.token, now))
		})
	}
}

func TestDecodeClaims_UserIDForms(t *testing.T) {
	exp := epoch.Add(time.Hour)
	tests := []struct {
		name  string
		value any
		want  string
	}{
		{"number", 42, "42"},
		{"string", "42", "42"},
		{"uuid", "8c1f6a9e-2b7d-4c55-9a47-3f0e5d2b1c80", "8c1f6a9e-2b7d-4c55-9a47-3f0e5d2b1c80"},
		{"null", nil, ""},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			token := clienttest.MintToken(exp, clienttest.WithClaim("user_id", tt.value))

			claims, err := DecodeClaims(token)
			require.NoError(t, err)
			assert.Equal(t, tt.want, claims.SubjectID())

			ev, err := NewEvaluator(DefaultMargin)
			require.NoError(t, err)
			assert.True(t, ev.IsUsable(token, epoch))
		})
	}
}

func TestUserID_MarshalJSON(t *testing.T) {
	data, err := json.Marshal(struct {
		A UserID `json:"a"`
		B UserID `json:"b"`
	}{A: "7", B: "alice"})
	require.NoError(t, err)
	assert.JSONEq(t, `{"a":7,"b":"alice"}`, string(data))
}

func TestIsUsable_OneOff(t *testing.T) {
	token := clienttest.MintTokenIn(epoch, time.Hour)

	ok, err := IsUsable(token, epoch, time.Second)
	require.NoError(t, err)
	assert.True(t, ok)

	ok, err = IsUsable(token, epoch, 2*time.Hour)
	require.NoError(t, err)
	assert.False(t, ok)

	for _, margin := range []time.Duration{0, -time.Second} {
		ok, err := IsUsable(token, epoch, margin)
		assert.True(t, errors.Is(err, ErrInvalidMargin), "margin %v", margin)
		assert.False(t, ok)
	}
}

func TestDecodeClaims(t *testing.T) {
	exp := epoch.Add(time.Hour)
	token := clienttest.MintToken(exp, clienttest.WithSubject(42, "bob@example.com"), clienttest.WithClaim("username", "bob"))

	claims, err := DecodeClaims(token)
	require.NoError(t, err)
	assert.Equal(t, exp.Unix(), claims.ExpiresAt().Unix())
	assert.Equal(t, "42", claims.SubjectID())
	assert.Equal(t, "bob@example.com", claims.Email)
	assert.Equal(t, "bob", claims.Username)
	assert.Equal(t, "access", claims.TokenType)

	_, err = DecodeClaims("not.a.jwt")
	assert.Error(t, err)

	noExp := clienttest.MintToken(exp, clienttest.WithClaim("exp", nil))
	_, err = DecodeClaims(noExp)
	assert.Error(t, err)
}
