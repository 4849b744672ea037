package auth

import (
	"crypto/rsa"
	"errors"
	"fmt"
	"time"

	"github.com/golang-jwt/jwt/v5"
)

var ErrInvalidToken = errors.New("invalid token")

// Claims is the access-token payload issued by the identity provider.
type Claims struct {
	BusinessID  string   `json:"business_id"`
	Role        string   `json:"role"`
	Permissions []string `json:"permissions,omitempty"`
	jwt.RegisteredClaims
}

// KeySource resolves RS256 public keys by key id.
type KeySource interface {
	Get(keyID string) (*rsa.PublicKey, error)
}

// Verifier checks bearer tokens. HS256 tokens are verified with the shared secret; RS256
// tokens are verified against keys from the optional KeySource.
type Verifier struct {
	secret []byte
	keys   KeySource
	leeway time.Duration
}

func NewVerifier(secret string, keys KeySource) *Verifier {
	return &Verifier{secret: []byte(secret), keys: keys, leeway: 30 * time.Second}
}

func (v *Verifier) Verify(token string) (*Claims, error) {
	methods := []string{jwt.SigningMethodHS256.Alg()}
	if v.keys != nil {
		methods = append(methods, jwt.SigningMethodRS256.Alg())
	}

	claims := &Claims{}
	parsed, err := jwt.ParseWithClaims(token, claims, v.keyFunc,
		jwt.WithValidMethods(methods),
		jwt.WithLeeway(v.leeway),
	)
	if err != nil || !parsed.Valid {
		return nil, fmt.Errorf("%w: %v", ErrInvalidToken, err)
	}
	if claims.Subject == "" || claims.BusinessID == "" {
		return nil, fmt.Errorf("%w: missing subject or business", ErrInvalidToken)
	}
	return claims, nil
}

func (v *Verifier) keyFunc(t *jwt.Token) (any, error) {
	switch t.Method.Alg() {
	case jwt.SigningMethodHS256.Alg():
		if len(v.secret) == 0 {
			return nil, errors.New("hs256 secret not configured")
		}
		return v.secret, nil
	case jwt.SigningMethodRS256.Alg():
		kid, _ := t.Header["kid"].(string)
		if kid == "" {
			return nil, errors.New("rs256 token without kid")
		}
		return v.keys.Get(kid)
	default:
		return nil, fmt.Errorf("unexpected signing method %s", t.Method.Alg())
	}
}

// SignHS256 issues a token signed with secret. Used by local tooling and tests; production
// tokens come from the identity provider.
func SignHS256(claims Claims, secret string) (string, error) {
	return jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString([]byte(secret))
}
