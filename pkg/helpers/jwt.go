package helpers

import (
	"errors"
	"fmt"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"
)

// ErrInvalidToken wraps every decode failure: bad signature, wrong algorithm,
// expiry, malformed input.
var ErrInvalidToken = errors.New("invalid token")

// JWTManager signs and verifies access tokens with a shared HMAC secret.
type JWTManager struct {
	secret    []byte
	method    jwt.SigningMethod
	AccessTTL time.Duration
}

type Claims struct {
	jwt.RegisteredClaims
}

// NewJWTManager accepts HS256, HS384 or HS512.
func NewJWTManager(secret, algorithm string, accessTTL time.Duration) (*JWTManager, error) {
	var method jwt.SigningMethod
	switch algorithm {
	case "", "HS256":
		method = jwt.SigningMethodHS256
	case "HS384":
		method = jwt.SigningMethodHS384
	case "HS512":
		method = jwt.SigningMethodHS512
	default:
		return nil, fmt.Errorf("unsupported signing algorithm %q", algorithm)
	}
	if secret == "" {
		return nil, errors.New("jwt secret is empty")
	}
	return &JWTManager{secret: []byte(secret), method: method, AccessTTL: accessTTL}, nil
}

// Issue signs claims with iat=now and exp=now+ttl. A zero ttl uses AccessTTL;
// a negative ttl produces a token that is already expired.
func (m *JWTManager) Issue(claims Claims, ttl time.Duration) (string, time.Time, error) {
	if ttl == 0 {
		ttl = m.AccessTTL
	}
	now := time.Now()
	exp := now.Add(ttl)
	claims.IssuedAt = jwt.NewNumericDate(now)
	claims.ExpiresAt = jwt.NewNumericDate(exp)
	t := jwt.NewWithClaims(m.method, claims)
	s, err := t.SignedString(m.secret)
	if err != nil {
		return "", time.Time{}, err
	}
	return s, exp, nil
}

// GenerateAccessToken issues a token whose subject is userID.
func (m *JWTManager) GenerateAccessToken(userID string) (string, time.Time, error) {
	return m.Issue(Claims{RegisteredClaims: jwt.RegisteredClaims{Subject: userID}}, 0)
}

func (m *JWTManager) Decode(tokenStr string) (*Claims, error) {
	claims := &Claims{}
	tkn, err := jwt.ParseWithClaims(tokenStr, claims, func(token *jwt.Token) (interface{}, error) {
		return m.secret, nil
	}, jwt.WithValidMethods([]string{m.method.Alg()}), jwt.WithIssuedAt())
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrInvalidToken, err)
	}
	if !tkn.Valid {
		return nil, ErrInvalidToken
	}
	return claims, nil
}

// ExtractSubject returns the user id carried in sub. It never errors: any
// decode failure, a missing sub, or a non-UUID sub yields ok=false.
func (m *JWTManager) ExtractSubject(tokenStr string) (uuid.UUID, bool) {
	claims, err := m.Decode(tokenStr)
	if err != nil || claims.Subject == "" {
		return uuid.Nil, false
	}
	id, err := uuid.Parse(claims.Subject)
	if err != nil {
		return uuid.Nil, false
	}
	return id, true
}
