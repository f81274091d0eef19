package middleware

import (
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/golang-jwt/jwt/v5"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/frontdesk-io/frontdesk-ce/internal/models"
)

func init() {
	gin.SetMode(gin.TestMode)
}

func TestRateLimiterAllow(t *testing.T) {
	rl := NewRateLimiter(3, time.Minute)
	for i := 0; i < 3; i++ {
		assert.True(t, rl.Allow("1.2.3.4"), "hit %d", i)
	}
	assert.False(t, rl.Allow("1.2.3.4"))
	// Other keys are unaffected.
	assert.True(t, rl.Allow("5.6.7.8"))
}

func TestRateLimiterWindowSlides(t *testing.T) {
	rl := NewRateLimiter(1, 30*time.Millisecond)
	require.True(t, rl.Allow("k"))
	require.False(t, rl.Allow("k"))
	time.Sleep(40 * time.Millisecond)
	assert.True(t, rl.Allow("k"))
}

func TestRateLimiterZeroLimitDisabled(t *testing.T) {
	rl := NewRateLimiter(0, time.Minute)
	for i := 0; i < 100; i++ {
		assert.True(t, rl.Allow("k"))
	}
}

func TestRateLimitMiddleware(t *testing.T) {
	router := gin.New()
	router.Use(NewRateLimiter(2, time.Minute).Middleware())
	router.GET("/ping", func(c *gin.Context) { c.Status(http.StatusOK) })

	status := func() int {
		w := httptest.NewRecorder()
		req := httptest.NewRequest(http.MethodGet, "/ping", nil)
		req.RemoteAddr = "10.0.0.1:1234"
		router.ServeHTTP(w, req)
		return w.Code
	}
	assert.Equal(t, http.StatusOK, status())
	assert.Equal(t, http.StatusOK, status())
	assert.Equal(t, http.StatusTooManyRequests, status())
}

const testSecret = "test-secret"

func signToken(t *testing.T, claims Claims) string {
	t.Helper()
	token := jwt.NewWithClaims(jwt.SigningMethodHS256, claims)
	raw, err := token.SignedString([]byte(testSecret))
	require.NoError(t, err)
	return raw
}

func authRouter() *gin.Engine {
	router := gin.New()
	router.GET("/me", Auth(testSecret), func(c *gin.Context) {
		p, ok := PrincipalFrom(c)
		if !ok {
			c.Status(http.StatusInternalServerError)
			return
		}
		c.JSON(http.StatusOK, p)
	})
	return router
}

func doAuth(router *gin.Engine, header string) *httptest.ResponseRecorder {
	w := httptest.NewRecorder()
	req := httptest.NewRequest(http.MethodGet, "/me", nil)
	if header != "" {
		req.Header.Set("Authorization", header)
	}
	router.ServeHTTP(w, req)
	return w
}

func TestAuthAcceptsValidToken(t *testing.T) {
	router := authRouter()
	raw := signToken(t, Claims{
		Role:   "staff",
		Office: "registrar",
		RegisteredClaims: jwt.RegisteredClaims{
			Subject:   "user-1",
			ExpiresAt: jwt.NewNumericDate(time.Now().Add(time.Hour)),
		},
	})

	w := doAuth(router, "Bearer "+raw)
	assert.Equal(t, http.StatusOK, w.Code)
	assert.Contains(t, w.Body.String(), "user-1")
	assert.Contains(t, w.Body.String(), string(models.OfficeRegistrar))
}

func TestAuthRejectsBadTokens(t *testing.T) {
	router := authRouter()

	cases := []struct {
		name   string
		header string
		want   int
	}{
		{"missing header", "", http.StatusUnauthorized},
		{"not bearer", "Basic abc", http.StatusUnauthorized},
		{"garbage token", "Bearer not.a.jwt", http.StatusUnauthorized},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			assert.Equal(t, tc.want, doAuth(router, tc.header).Code)
		})
	}
}

func TestAuthRejectsExpiredToken(t *testing.T) {
	router := authRouter()
	raw := signToken(t, Claims{
		Office: "registrar",
		RegisteredClaims: jwt.RegisteredClaims{
			Subject:   "user-1",
			ExpiresAt: jwt.NewNumericDate(time.Now().Add(-time.Hour)),
		},
	})
	assert.Equal(t, http.StatusUnauthorized, doAuth(router, "Bearer "+raw).Code)
}

func TestAuthRejectsUnknownOffice(t *testing.T) {
	router := authRouter()
	raw := signToken(t, Claims{
		Office: "cafeteria",
		RegisteredClaims: jwt.RegisteredClaims{
			Subject:   "user-1",
			ExpiresAt: jwt.NewNumericDate(time.Now().Add(time.Hour)),
		},
	})
	assert.Equal(t, http.StatusForbidden, doAuth(router, "Bearer "+raw).Code)
}

func TestAuthRejectsWrongSecret(t *testing.T) {
	router := authRouter()
	token := jwt.NewWithClaims(jwt.SigningMethodHS256, Claims{
		Office: "registrar",
		RegisteredClaims: jwt.RegisteredClaims{
			Subject:   "user-1",
			ExpiresAt: jwt.NewNumericDate(time.Now().Add(time.Hour)),
		},
	})
	raw, err := token.SignedString([]byte("other-secret"))
	require.NoError(t, err)
	assert.Equal(t, http.StatusUnauthorized, doAuth(router, "Bearer "+raw).Code)
}

func TestRequestIDMintsAndEchoes(t *testing.T) {
	r := gin.New()
	r.Use(RequestID())
	r.GET("/", func(c *gin.Context) { c.Status(http.StatusNoContent) })

	w := httptest.NewRecorder()
	r.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/", nil))
	minted := w.Header().Get(HeaderRequestID)
	require.NotEmpty(t, minted)

	// A client-supplied id survives untouched.
	req := httptest.NewRequest(http.MethodGet, "/", nil)
	req.Header.Set(HeaderRequestID, "kiosk-retry-7")
	w = httptest.NewRecorder()
	r.ServeHTTP(w, req)
	assert.Equal(t, "kiosk-retry-7", w.Header().Get(HeaderRequestID))
}
