package middleware

import (
	"strings"

	"github.com/gin-gonic/gin"

	iauth "github.com/codecourse/server/internal/auth"
	"github.com/codecourse/server/pkg/errors"
	"github.com/codecourse/server/pkg/response"
)

const (
	CtxClaimsKey = "authClaims"
	CtxUserIDKey = "userID"
	CtxEmailKey  = "userEmail"
	CtxTokenKey  = "bearerToken"
)

// Auth enforces bearer authentication. The token must both carry a valid
// signature and be backed by a live session row: a logged-out or reset
// account fails here even while the JWT itself is still within its lifetime.
func Auth(jwt *iauth.JWTService, sessions *iauth.SessionService) gin.HandlerFunc {
	return func(c *gin.Context) {
		authz := c.GetHeader("Authorization")
		if len(authz) < 8 || !strings.EqualFold(authz[:7], "Bearer ") {
			response.Error(c, errors.ErrUnauthorized)
			c.Abort()
			return
		}

		token := strings.TrimSpace(authz[7:])
		claims, err := jwt.ValidateAccessToken(token)
		if err != nil {
			// Normalise all validation failures to 401
			c.Header("WWW-Authenticate", "Bearer")
			response.Error(c, errors.ErrUnauthorized)
			c.Abort()
			return
		}

		if _, err := sessions.Verify(c.Request.Context(), token); err != nil {
			c.Header("WWW-Authenticate", "Bearer")
			response.Error(c, errors.ErrUnauthorized)
			c.Abort()
			return
		}

		// Propagate identity into request context
		c.Set(CtxClaimsKey, claims)
		c.Set(CtxUserIDKey, claims.UserID)
		c.Set(CtxEmailKey, claims.Email)
		c.Set(CtxTokenKey, token)

		c.Next()
	}
}
