package middleware

import (
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"
	"github.com/stretchr/testify/require"
)

const secret = "test-secret"

func sign(t *testing.T, key, subject string, expires time.Time) string {
	t.Helper()
	token := jwt.NewWithClaims(jwt.SigningMethodHS256, jwt.RegisteredClaims{
		Subject:   subject,
		ExpiresAt: jwt.NewNumericDate(expires),
	})
	s, err := token.SignedString([]byte(key))
	require.NoError(t, err)
	return s
}

func router(mw gin.HandlerFunc) *gin.Engine {
	gin.SetMode(gin.TestMode)
	r := gin.New()
	r.GET("/", mw, func(c *gin.Context) {
		c.String(http.StatusOK, c.GetString("user_id"))
	})
	return r
}

func call(r *gin.Engine, token string) *httptest.ResponseRecorder {
	req := httptest.NewRequest(http.MethodGet, "/", nil)
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}
	w := httptest.NewRecorder()
	r.ServeHTTP(w, req)
	return w
}

func TestRequireAuth(t *testing.T) {
	r := router(NewAuthMiddleware(secret).RequireAuth())
	user := uuid.NewString()

	w := call(r, sign(t, secret, user, time.Now().Add(time.Hour)))
	require.Equal(t, http.StatusOK, w.Code)
	require.Equal(t, user, w.Body.String())

	require.Equal(t, http.StatusUnauthorized, call(r, "").Code)
	require.Equal(t, http.StatusUnauthorized, call(r, sign(t, "other", user, time.Now().Add(time.Hour))).Code)
	require.Equal(t, http.StatusUnauthorized, call(r, sign(t, secret, user, time.Now().Add(-time.Minute))).Code)
	require.Equal(t, http.StatusUnauthorized, call(r, sign(t, secret, "not-a-uuid", time.Now().Add(time.Hour))).Code)
}

func TestOptionalAuth(t *testing.T) {
	r := router(NewAuthMiddleware(secret).OptionalAuth())
	user := uuid.NewString()

	w := call(r, "")
	require.Equal(t, http.StatusOK, w.Code)
	require.Empty(t, w.Body.String())

	w = call(r, "garbage")
	require.Equal(t, http.StatusOK, w.Code)
	require.Empty(t, w.Body.String())

	w = call(r, sign(t, secret, user, time.Now().Add(time.Hour)))
	require.Equal(t, http.StatusOK, w.Code)
	require.Equal(t, user, w.Body.String())
}
