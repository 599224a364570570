// Package auth resolves the caller of an HTTP request to a schema.Principal.
package auth

import (
	"errors"
	"fmt"
	"net/http"
	"strings"
	"time"

	"github.com/covercompare/membergate/pkg/schema"
	"github.com/gin-gonic/gin"
	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"
)

var (
	ErrMissingToken = errors.New("missing bearer token")
	ErrInvalidToken = errors.New("invalid token")
)

// Authenticator turns a raw bearer token into a principal.
type Authenticator interface {
	Authenticate(token string) (*schema.Principal, error)
}

// Claims is the token payload. The subject is the account id.
type Claims struct {
	Email string `json:"email,omitempty"`
	jwt.RegisteredClaims
}

// JWT verifies HS256 tokens signed with a shared secret.
type JWT struct {
	secret []byte
	issuer string
	now    func() time.Time
}

// NewJWT returns a verifier. An empty issuer accepts any issuer.
func NewJWT(secret []byte, issuer string) (*JWT, error) {
	if len(secret) == 0 {
		return nil, errors.New("auth: jwt secret is required")
	}
	return &JWT{secret: secret, issuer: issuer, now: time.Now}, nil
}

// Authenticate verifies the token and maps its subject to a principal.
func (j *JWT) Authenticate(token string) (*schema.Principal, error) {
	token = strings.TrimSpace(token)
	if token == "" {
		return nil, ErrMissingToken
	}

	opts := []jwt.ParserOption{
		jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}),
		jwt.WithTimeFunc(j.now),
		jwt.WithExpirationRequired(),
	}
	if j.issuer != "" {
		opts = append(opts, jwt.WithIssuer(j.issuer))
	}

	claims := &Claims{}
	parsed, err := jwt.ParseWithClaims(token, claims, func(t *jwt.Token) (any, error) {
		if t.Method.Alg() != jwt.SigningMethodHS256.Alg() {
			return nil, fmt.Errorf("unexpected signing method: %s", t.Method.Alg())
		}
		return j.secret, nil
	}, opts...)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrInvalidToken, err)
	}
	if !parsed.Valid {
		return nil, ErrInvalidToken
	}

	id, err := uuid.Parse(claims.Subject)
	if err != nil {
		return nil, fmt.Errorf("%w: subject is not an account id", ErrInvalidToken)
	}
	return &schema.Principal{AccountID: id, Email: claims.Email}, nil
}

// Issue signs a token for accountID valid for ttl. Used by tooling and tests.
func (j *JWT) Issue(accountID uuid.UUID, email string, ttl time.Duration) (string, error) {
	now := j.now().UTC()
	claims := Claims{
		Email: email,
		RegisteredClaims: jwt.RegisteredClaims{
			Subject:   accountID.String(),
			Issuer:    j.issuer,
			IssuedAt:  jwt.NewNumericDate(now),
			ExpiresAt: jwt.NewNumericDate(now.Add(ttl)),
		},
	}
	signed, err := jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString(j.secret)
	if err != nil {
		return "", fmt.Errorf("sign token: %w", err)
	}
	return signed, nil
}

const principalKey = "membergate.principal"

// Middleware attaches the principal of a valid bearer token to the request context.
// Requests without a valid token continue anonymously; the gateway rejects them where it matters.
func Middleware(a Authenticator) gin.HandlerFunc {
	return func(c *gin.Context) {
		token, ok := bearerToken(c.Request)
		if !ok {
			c.Next()
			return
		}
		p, err := a.Authenticate(token)
		if err == nil {
			c.Set(principalKey, p)
		}
		c.Next()
	}
}

// PrincipalFrom returns the principal attached by Middleware, or nil.
func PrincipalFrom(c *gin.Context) *schema.Principal {
	v, ok := c.Get(principalKey)
	if !ok {
		return nil
	}
	p, _ := v.(*schema.Principal)
	return p
}

func bearerToken(r *http.Request) (string, bool) {
	h := r.Header.Get("Authorization")
	if h == "" {
		// Browsers cannot set headers on a websocket handshake.
		if t := r.URL.Query().Get("access_token"); t != "" {
			return t, true
		}
		return "", false
	}
	scheme, token, ok := strings.Cut(h, " ")
	if !ok || !strings.EqualFold(scheme, "Bearer") {
		return "", false
	}
	return strings.TrimSpace(token), token != ""
}
