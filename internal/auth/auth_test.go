package auth

import (
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestJWT(t *testing.T, issuer string) *JWT {
	t.Helper()
	j, err := NewJWT([]byte("test-secret-0123456789"), issuer)
	require.NoError(t, err)
	return j
}

func TestJWT_RoundTrip(t *testing.T) {
	j := newTestJWT(t, "membergate")
	id := uuid.New()

	token, err := j.Issue(id, "a@example.com", time.Hour)
	require.NoError(t, err)

	p, err := j.Authenticate(token)
	require.NoError(t, err)
	assert.Equal(t, id, p.AccountID)
	assert.Equal(t, "a@example.com", p.Email)
}

func TestJWT_Rejects(t *testing.T) {
	j := newTestJWT(t, "membergate")
	id := uuid.New()

	expired, err := j.Issue(id, "", -time.Minute)
	require.NoError(t, err)

	other := newTestJWT(t, "someone-else")
	wrongIssuer, err := other.Issue(id, "", time.Hour)
	require.NoError(t, err)

	forged, err := (&JWT{secret: []byte("another-secret"), issuer: "membergate", now: time.Now}).Issue(id, "", time.Hour)
	require.NoError(t, err)

	badSubject, err := jwt.NewWithClaims(jwt.SigningMethodHS256, Claims{RegisteredClaims: jwt.RegisteredClaims{
		Subject:   "not-a-uuid",
		Issuer:    "membergate",
		ExpiresAt: jwt.NewNumericDate(time.Now().Add(time.Hour)),
	}}).SignedString(j.secret)
	require.NoError(t, err)

	noneAlg, err := jwt.NewWithClaims(jwt.SigningMethodNone, Claims{RegisteredClaims: jwt.RegisteredClaims{
		Subject:   id.String(),
		ExpiresAt: jwt.NewNumericDate(time.Now().Add(time.Hour)),
	}}).SignedString(jwt.UnsafeAllowNoneSignatureType)
	require.NoError(t, err)

	for name, token := range map[string]string{
		"empty":        "",
		"garbage":      "abc.def.ghi",
		"expired":      expired,
		"wrong issuer": wrongIssuer,
		"forged":       forged,
		"bad subject":  badSubject,
		"alg none":     noneAlg,
	} {
		t.Run(name, func(t *testing.T) {
			_, err := j.Authenticate(token)
			assert.Error(t, err)
		})
	}
}

func TestNewJWT_RequiresSecret(t *testing.T) {
	_, err := NewJWT(nil, "")
	assert.Error(t, err)
}

func TestMiddleware(t *testing.T) {
	gin.SetMode(gin.TestMode)
	j := newTestJWT(t, "")
	id := uuid.New()
	token, err := j.Issue(id, "", time.Hour)
	require.NoError(t, err)

	r := gin.New()
	r.Use(Middleware(j))
	r.GET("/whoami", func(c *gin.Context) {
		p := PrincipalFrom(c)
		if p == nil {
			c.String(http.StatusOK, "anonymous")
			return
		}
		c.String(http.StatusOK, p.AccountID.String())
	})

	tests := []struct {
		name   string
		url    string
		header string
		want   string
	}{
		{"bearer header", "/whoami", "Bearer " + token, id.String()},
		{"lowercase scheme", "/whoami", "bearer " + token, id.String()},
		{"query token", "/whoami?access_token=" + token, "", id.String()},
		{"no token", "/whoami", "", "anonymous"},
		{"basic scheme", "/whoami", "Basic Zm9vOmJhcg==", "anonymous"},
		{"invalid token", "/whoami", "Bearer nope", "anonymous"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			req := httptest.NewRequest(http.MethodGet, tt.url, nil)
			if tt.header != "" {
				req.Header.Set("Authorization", tt.header)
			}
			w := httptest.NewRecorder()
			r.ServeHTTP(w, req)
			assert.Equal(t, tt.want, w.Body.String())
		})
	}
}
