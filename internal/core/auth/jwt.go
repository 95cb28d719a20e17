package auth

import (
	"errors"
	"fmt"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"
)

const (
	TypeAccess  = "access"
	TypeRefresh = "refresh"
)

var ErrWrongTokenType = errors.New("wrong token type")

type Claims struct {
	UID   string `json:"uid"`
	Role  string `json:"role"` // buyer / seller
	Staff bool   `json:"staff,omitempty"`
	Type  string `json:"typ"`
	jwt.RegisteredClaims
}

// Pair is what login, password change and refresh hand back to the client.
type Pair struct {
	Refresh string `json:"refresh,omitempty"`
	Access  string `json:"access"`
}

// JWTer signs access tokens with Secret and refresh tokens with RefreshSecret so a
// leaked access secret cannot mint long-lived credentials.
type JWTer struct {
	Secret        []byte
	RefreshSecret []byte
	Issuer        string
	TTL           time.Duration
	RefreshTTL    time.Duration
}

func (j *JWTer) Issue(uid, role string, staff bool) (string, error) {
	return j.sign(j.Secret, TypeAccess, uid, role, staff, j.TTL)
}

func (j *JWTer) IssueRefresh(uid, role string, staff bool) (string, error) {
	return j.sign(j.refreshKey(), TypeRefresh, uid, role, staff, j.RefreshTTL)
}

func (j *JWTer) IssuePair(uid, role string, staff bool) (Pair, error) {
	access, err := j.Issue(uid, role, staff)
	if err != nil {
		return Pair{}, err
	}
	refresh, err := j.IssueRefresh(uid, role, staff)
	if err != nil {
		return Pair{}, err
	}
	return Pair{Refresh: refresh, Access: access}, nil
}

func (j *JWTer) sign(key []byte, typ, uid, role string, staff bool, ttl time.Duration) (string, error) {
	now := time.Now()
	claims := Claims{
		UID:   uid,
		Role:  role,
		Staff: staff,
		Type:  typ,
		RegisteredClaims: jwt.RegisteredClaims{
			ID:        uuid.NewString(),
			Subject:   uid,
			Issuer:    j.Issuer,
			IssuedAt:  jwt.NewNumericDate(now),
			ExpiresAt: jwt.NewNumericDate(now.Add(ttl)),
		},
	}
	token := jwt.NewWithClaims(jwt.SigningMethodHS256, claims)
	return token.SignedString(key)
}

// Parse validates an access token.
func (j *JWTer) Parse(tokenStr string) (*Claims, error) {
	return j.parse(tokenStr, j.Secret, TypeAccess)
}

func (j *JWTer) ParseRefresh(tokenStr string) (*Claims, error) {
	return j.parse(tokenStr, j.refreshKey(), TypeRefresh)
}

func (j *JWTer) parse(tokenStr string, key []byte, typ string) (*Claims, error) {
	t, err := jwt.ParseWithClaims(tokenStr, &Claims{}, func(token *jwt.Token) (interface{}, error) {
		if token.Method != jwt.SigningMethodHS256 {
			return nil, fmt.Errorf("unexpected alg %v", token.Header["alg"])
		}
		return key, nil
	}, jwt.WithIssuer(j.Issuer), jwt.WithLeeway(60*time.Second))

	if err != nil {
		return nil, err
	}
	c, ok := t.Claims.(*Claims)
	if !ok || !t.Valid {
		return nil, errors.New("invalid token")
	}
	if c.Type != typ {
		return nil, ErrWrongTokenType
	}
	return c, nil
}

func (j *JWTer) refreshKey() []byte {
	if len(j.RefreshSecret) == 0 {
		return j.Secret
	}
	return j.RefreshSecret
}
