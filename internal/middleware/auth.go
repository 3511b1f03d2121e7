package middleware

import (
	"context"
	"net/http"
	"strings"

	"github.com/netsblox/cloud/internal/auth"
	"github.com/netsblox/cloud/internal/logging"
	"github.com/gin-gonic/gin"
	"go.uber.org/zap"
)

// ClaimsKey is the Gin context key Auth stores validated claims under,
// the same key internal/ratelimit's GlobalMiddleware/MiddlewareForEndpoint
// already expect to find populated.
const ClaimsKey = "claims"

// Auth validates the Authorization: Bearer <token> header against
// validator and stores the resulting claims in the Gin context, matching
// the teacher's header-parse-then-validate middleware shape. Requests with
// no or malformed header are rejected before reaching a handler; C7/C8's
// handlers read the username back out via Username.
func Auth(validator auth.TokenValidator) gin.HandlerFunc {
	return func(c *gin.Context) {
		header := c.GetHeader("Authorization")
		token, ok := strings.CutPrefix(header, "Bearer ")
		if header == "" || !ok || token == "" {
			c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{"error": "missing bearer token"})
			return
		}

		claims, err := validator.ValidateToken(token)
		if err != nil {
			c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{"error": "invalid token"})
			return
		}

		c.Set(ClaimsKey, claims)

		ctx := context.WithValue(c.Request.Context(), logging.UserIDKey, claims.Subject)
		c.Request = c.Request.WithContext(ctx)
		logging.Info(ctx, "authenticated request",
			zap.String("path", c.Request.URL.Path),
			zap.String("email", logging.RedactEmail(claims.Email)),
		)

		c.Next()
	}
}

// Username extracts the authenticated caller's subject, set by Auth.
// Returns ok=false if Auth never ran (a handler-wiring bug, not a runtime
// condition callers should treat as "anonymous").
func Username(c *gin.Context) (string, bool) {
	val, exists := c.Get(ClaimsKey)
	if !exists {
		return "", false
	}
	claims, ok := val.(*auth.CustomClaims)
	if !ok {
		return "", false
	}
	return claims.Subject, true
}
