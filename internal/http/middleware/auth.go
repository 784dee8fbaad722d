package middleware

import (
	"fmt"
	"net/http"
	"strings"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/golang-jwt/jwt/v5"

	"github.com/yungbote/docreview-backend/internal/http/response"
	"github.com/yungbote/docreview-backend/internal/platform/apierr"
	"github.com/yungbote/docreview-backend/internal/platform/ctxutil"
	"github.com/yungbote/docreview-backend/internal/platform/logger"
)

// CallerClaims are the claims of an access token issued by the upstream identity service.
type CallerClaims struct {
	Email string `json:"email,omitempty"`
	jwt.RegisteredClaims
}

// AuthMiddleware verifies HS256 bearer tokens. It never issues tokens and does no
// case/document ownership checks; those happen upstream.
type AuthMiddleware struct {
	log    *logger.Logger
	secret []byte
	leeway time.Duration
}

func NewAuthMiddleware(log *logger.Logger, secret string) *AuthMiddleware {
	return &AuthMiddleware{
		log:    log.With("middleware", "AuthMiddleware"),
		secret: []byte(secret),
		leeway: 30 * time.Second,
	}
}

func (am *AuthMiddleware) RequireAuth() gin.HandlerFunc {
	return func(c *gin.Context) {
		tokenString := extractBearer(c)
		if tokenString == "" {
			response.RespondError(c, http.StatusUnauthorized, apierr.CodeUnauthorized, fmt.Errorf("missing or invalid token"))
			c.Abort()
			return
		}
		caller, err := am.verify(tokenString)
		if err != nil {
			am.log.Debug("token rejected", "error", err)
			response.RespondError(c, http.StatusUnauthorized, apierr.CodeUnauthorized, err)
			c.Abort()
			return
		}
		c.Request = c.Request.WithContext(ctxutil.WithCaller(c.Request.Context(), caller))
		c.Next()
	}
}

func (am *AuthMiddleware) verify(tokenString string) (*ctxutil.Caller, error) {
	claims := &CallerClaims{}
	parser := jwt.NewParser(
		jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}),
		jwt.WithLeeway(am.leeway),
		jwt.WithExpirationRequired(),
	)
	tok, err := parser.ParseWithClaims(tokenString, claims, func(t *jwt.Token) (any, error) {
		return am.secret, nil
	})
	if err != nil {
		return nil, fmt.Errorf("invalid token: %w", err)
	}
	if !tok.Valid || strings.TrimSpace(claims.Subject) == "" {
		return nil, fmt.Errorf("invalid token: missing subject")
	}
	return &ctxutil.Caller{ID: claims.Subject, Email: claims.Email}, nil
}

func extractBearer(c *gin.Context) string {
	authHeader := c.GetHeader("Authorization")
	if len(authHeader) > 7 && strings.EqualFold(authHeader[:7], "Bearer ") {
		return strings.TrimSpace(authHeader[7:])
	}
	return ""
}
