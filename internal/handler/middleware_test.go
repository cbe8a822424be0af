package handler

import (
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/golang-jwt/jwt/v5"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"adventure-server/internal/domain"
)

const testSecret = "test-secret"

func signToken(t *testing.T, wallet string, expires time.Time, secret string) string {
	t.Helper()
	claims := walletClaims{
		Wallet: wallet,
		RegisteredClaims: jwt.RegisteredClaims{
			ExpiresAt: jwt.NewNumericDate(expires),
		},
	}
	token := jwt.NewWithClaims(jwt.SigningMethodHS256, claims)
	signed, err := token.SignedString([]byte(secret))
	require.NoError(t, err)
	return signed
}

func TestVerifyToken(t *testing.T) {
	t.Run("valid token lowercases wallet", func(t *testing.T) {
		token := signToken(t, "0xABCdef", time.Now().Add(time.Hour), testSecret)
		wallet, err := verifyToken(token, testSecret)
		require.NoError(t, err)
		assert.Equal(t, "0xabcdef", wallet)
	})

	t.Run("expired token", func(t *testing.T) {
		token := signToken(t, "0xabc", time.Now().Add(-time.Hour), testSecret)
		_, err := verifyToken(token, testSecret)
		assert.ErrorIs(t, err, domain.ErrTokenExpired)
	})

	t.Run("wrong secret", func(t *testing.T) {
		token := signToken(t, "0xabc", time.Now().Add(time.Hour), "other-secret")
		_, err := verifyToken(token, testSecret)
		assert.ErrorIs(t, err, domain.ErrTokenInvalid)
	})

	t.Run("malformed token", func(t *testing.T) {
		_, err := verifyToken("not-a-token", testSecret)
		assert.ErrorIs(t, err, domain.ErrTokenMalformed)
	})

	t.Run("missing wallet claim", func(t *testing.T) {
		token := signToken(t, "", time.Now().Add(time.Hour), testSecret)
		_, err := verifyToken(token, testSecret)
		assert.ErrorIs(t, err, domain.ErrTokenInvalid)
	})
}

func authTestRouter() *gin.Engine {
	gin.SetMode(gin.TestMode)
	r := gin.New()
	r.GET("/protected", Auth(testSecret, zap.NewNop()), func(c *gin.Context) {
		owner, _ := ownerFrom(c)
		c.JSON(http.StatusOK, gin.H{"owner": owner})
	})
	return r
}

func TestAuthMiddleware(t *testing.T) {
	r := authTestRouter()

	t.Run("valid bearer token passes", func(t *testing.T) {
		token := signToken(t, "0xAbC", time.Now().Add(time.Hour), testSecret)
		req := httptest.NewRequest(http.MethodGet, "/protected", nil)
		req.Header.Set("Authorization", "Bearer "+token)
		w := httptest.NewRecorder()
		r.ServeHTTP(w, req)

		assert.Equal(t, http.StatusOK, w.Code)
		assert.Contains(t, w.Body.String(), `"owner":"0xabc"`)
	})

	t.Run("missing header rejected", func(t *testing.T) {
		req := httptest.NewRequest(http.MethodGet, "/protected", nil)
		w := httptest.NewRecorder()
		r.ServeHTTP(w, req)
		assert.Equal(t, http.StatusUnauthorized, w.Code)
	})

	t.Run("wrong scheme rejected", func(t *testing.T) {
		req := httptest.NewRequest(http.MethodGet, "/protected", nil)
		req.Header.Set("Authorization", "Basic abc")
		w := httptest.NewRecorder()
		r.ServeHTTP(w, req)
		assert.Equal(t, http.StatusUnauthorized, w.Code)
	})

	t.Run("expired token rejected", func(t *testing.T) {
		token := signToken(t, "0xabc", time.Now().Add(-time.Hour), testSecret)
		req := httptest.NewRequest(http.MethodGet, "/protected", nil)
		req.Header.Set("Authorization", "Bearer "+token)
		w := httptest.NewRecorder()
		r.ServeHTTP(w, req)
		assert.Equal(t, http.StatusUnauthorized, w.Code)
	})
}

func TestRequestLogger_RequestID(t *testing.T) {
	gin.SetMode(gin.TestMode)
	r := gin.New()
	r.Use(RequestLogger(zap.NewNop()))
	r.GET("/ping", func(c *gin.Context) {
		c.String(http.StatusOK, "pong")
	})

	t.Run("generated id reaches the client", func(t *testing.T) {
		req := httptest.NewRequest(http.MethodGet, "/ping", nil)
		w := httptest.NewRecorder()
		r.ServeHTTP(w, req)

		assert.Equal(t, http.StatusOK, w.Code)
		assert.NotEmpty(t, w.Header().Get("X-Request-ID"))
	})

	t.Run("caller id is echoed back", func(t *testing.T) {
		req := httptest.NewRequest(http.MethodGet, "/ping", nil)
		req.Header.Set("X-Request-ID", "caller-supplied-id")
		w := httptest.NewRecorder()
		r.ServeHTTP(w, req)

		assert.Equal(t, "caller-supplied-id", w.Header().Get("X-Request-ID"))
	})
}

func TestRespondError_StatusMapping(t *testing.T) {
	gin.SetMode(gin.TestMode)
	h := &StoryHandler{logger: zap.NewNop()}

	tests := []struct {
		err    error
		status int
	}{
		{domain.ErrStoryNotFound, http.StatusNotFound},
		{domain.ErrUnknownOption, http.StatusBadRequest},
		{domain.ErrInvalidInput, http.StatusBadRequest},
		{domain.ErrTurnInProgress, http.StatusConflict},
		{domain.ErrStaleTurn, http.StatusConflict},
		{domain.ErrStoryEnded, http.StatusConflict},
		{domain.ErrUnauthorized, http.StatusUnauthorized},
		{domain.ErrForbidden, http.StatusForbidden},
		{domain.ErrGenerationFailed, http.StatusBadGateway},
		{assert.AnError, http.StatusInternalServerError},
	}

	for _, tt := range tests {
		w := httptest.NewRecorder()
		c, _ := gin.CreateTestContext(w)
		h.respondError(c, tt.err)
		assert.Equal(t, tt.status, w.Code, "error %v", tt.err)
	}
}
