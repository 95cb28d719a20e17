package auth

import (
	"errors"
	"testing"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newJWTer() *JWTer {
	return &JWTer{
		Secret:        []byte("access-secret"),
		RefreshSecret: []byte("refresh-secret"),
		Issuer:        "gear-market-test",
		TTL:           time.Minute,
		RefreshTTL:    time.Hour,
	}
}

func TestIssuePair_RoundTrip(t *testing.T) {
	j := newJWTer()
	pair, err := j.IssuePair("u1", "seller", true)
	require.NoError(t, err)
	require.NotEmpty(t, pair.Access)
	require.NotEmpty(t, pair.Refresh)
	assert.NotEqual(t, pair.Access, pair.Refresh)

	ac, err := j.Parse(pair.Access)
	require.NoError(t, err)
	assert.Equal(t, "u1", ac.UID)
	assert.Equal(t, "seller", ac.Role)
	assert.True(t, ac.Staff)
	assert.Equal(t, TypeAccess, ac.Type)

	rc, err := j.ParseRefresh(pair.Refresh)
	require.NoError(t, err)
	assert.Equal(t, "u1", rc.UID)
	assert.Equal(t, TypeRefresh, rc.Type)
	assert.NotEqual(t, ac.ID, rc.ID)
}

func TestParse_RejectsRefreshAsAccess(t *testing.T) {
	j := newJWTer()
	j.RefreshSecret = nil // same key for both, only the typ claim differs
	refresh, err := j.IssueRefresh("u1", "buyer", false)
	require.NoError(t, err)

	_, err = j.Parse(refresh)
	assert.True(t, errors.Is(err, ErrWrongTokenType))
}

func TestParseRefresh_RejectsAccessToken(t *testing.T) {
	j := newJWTer()
	access, err := j.Issue("u1", "buyer", false)
	require.NoError(t, err)

	_, err = j.ParseRefresh(access)
	assert.Error(t, err)
}

func TestParse_Expired(t *testing.T) {
	j := newJWTer()
	j.TTL = -2 * time.Minute // beyond the 60s leeway
	tok, err := j.Issue("u1", "buyer", false)
	require.NoError(t, err)

	_, err = j.Parse(tok)
	assert.True(t, errors.Is(err, jwt.ErrTokenExpired))
}

func TestParse_WrongIssuer(t *testing.T) {
	j := newJWTer()
	tok, err := j.Issue("u1", "buyer", false)
	require.NoError(t, err)

	other := newJWTer()
	other.Issuer = "someone-else"
	_, err = other.Parse(tok)
	assert.Error(t, err)
}

func TestCallerFromClaims(t *testing.T) {
	assert.False(t, CallerFromClaims(nil).Authenticated())
	c := CallerFromClaims(&Claims{UID: "u9", Role: "seller"})
	assert.True(t, c.Authenticated())
	assert.Equal(t, Caller{UserID: "u9", Role: "seller"}, c)
}
