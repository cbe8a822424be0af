package handler

import (
	"errors"
	"net/http"
	"strings"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"
	"go.uber.org/zap"

	"adventure-server/internal/domain"
)

// ownerContextKey is where the auth middleware stores the verified wallet
// address.
const ownerContextKey = "owner"

// RequestLogger logs every request with zap. Health and metrics probes are
// skipped to keep the log usable.
func RequestLogger(log *zap.Logger) gin.HandlerFunc {
	return func(c *gin.Context) {
		start := time.Now()
		path := c.Request.URL.Path

		if path == "/health" || path == "/metrics" {
			c.Next()
			return
		}

		// The id has to be on the response before any handler writes it.
		requestID := c.GetHeader("X-Request-ID")
		if requestID == "" {
			requestID = uuid.NewString()
		}
		c.Header("X-Request-ID", requestID)

		c.Next()

		latency := time.Since(start)
		if raw := c.Request.URL.RawQuery; raw != "" {
			path = path + "?" + raw
		}

		fields := []zap.Field{
			zap.Int("status", c.Writer.Status()),
			zap.String("method", c.Request.Method),
			zap.String("path", path),
			zap.String("ip", c.ClientIP()),
			zap.Duration("latency", latency),
			zap.String("request_id", requestID),
		}

		if len(c.Errors) > 0 {
			for _, ginErr := range c.Errors.ByType(gin.ErrorTypeAny) {
				log.Error("Request error", append(fields, zap.Error(ginErr.Err))...)
			}
			return
		}

		status := c.Writer.Status()
		switch {
		case status >= http.StatusInternalServerError:
			log.Error("Server error", fields...)
		case status >= http.StatusBadRequest:
			log.Warn("Client error", fields...)
		default:
			log.Info("Request completed", fields...)
		}
	}
}

// walletClaims is the JWT payload issued by the auth service. The wallet
// address identifies the player.
type walletClaims struct {
	Wallet string `json:"wallet"`
	jwt.RegisteredClaims
}

// verifyToken validates an HS256 token and returns the wallet claim.
func verifyToken(tokenString, secret string) (string, error) {
	token, err := jwt.ParseWithClaims(tokenString, &walletClaims{}, func(t *jwt.Token) (interface{}, error) {
		if _, ok := t.Method.(*jwt.SigningMethodHMAC); !ok {
			return nil, domain.ErrTokenInvalid
		}
		return []byte(secret), nil
	})
	if err != nil {
		switch {
		case errors.Is(err, jwt.ErrTokenExpired):
			return "", domain.ErrTokenExpired
		case errors.Is(err, jwt.ErrTokenMalformed):
			return "", domain.ErrTokenMalformed
		default:
			return "", domain.ErrTokenInvalid
		}
	}

	claims, ok := token.Claims.(*walletClaims)
	if !ok || !token.Valid || claims.Wallet == "" {
		return "", domain.ErrTokenInvalid
	}
	return strings.ToLower(claims.Wallet), nil
}

// Auth extracts and verifies the bearer token, storing the wallet address
// in the request context. Requests without a valid token get 401.
func Auth(secret string, log *zap.Logger) gin.HandlerFunc {
	return func(c *gin.Context) {
		header := c.GetHeader("Authorization")
		if header == "" {
			c.AbortWithStatusJSON(http.StatusUnauthorized, APIError{Message: "missing authorization header"})
			return
		}
		parts := strings.SplitN(header, " ", 2)
		if len(parts) != 2 || !strings.EqualFold(parts[0], "Bearer") {
			c.AbortWithStatusJSON(http.StatusUnauthorized, APIError{Message: "invalid authorization header"})
			return
		}

		wallet, err := verifyToken(parts[1], secret)
		if err != nil {
			log.Debug("Token verification failed", zap.Error(err))
			c.AbortWithStatusJSON(http.StatusUnauthorized, APIError{Message: err.Error()})
			return
		}

		c.Set(ownerContextKey, wallet)
		c.Next()
	}
}

// ownerFrom returns the verified wallet address set by Auth.
func ownerFrom(c *gin.Context) (string, bool) {
	owner, ok := c.Get(ownerContextKey)
	if !ok {
		return "", false
	}
	s, ok := owner.(string)
	return s, ok && s != ""
}
