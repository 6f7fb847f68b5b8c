package handlers

import (
	"context"

	"github.com/gin-gonic/gin"

	"github.com/codecourse/server/internal/middleware"
)

// requestContext safely returns the request context with a background fallback for tests.
func requestContext(c *gin.Context) context.Context {
	if c == nil {
		return context.Background()
	}
	if req := c.Request; req != nil {
		return req.Context()
	}
	return context.Background()
}

// currentUserID returns the authenticated user id stashed by the auth middleware.
func currentUserID(c *gin.Context) string {
	v, ok := c.Get(middleware.CtxUserIDKey)
	if !ok {
		return ""
	}
	id, _ := v.(string)
	return id
}

// currentToken returns the bearer token the request authenticated with.
func currentToken(c *gin.Context) string {
	v, ok := c.Get(middleware.CtxTokenKey)
	if !ok {
		return ""
	}
	token, _ := v.(string)
	return token
}
