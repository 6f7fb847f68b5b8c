package middleware

import (
	"context"
	"fmt"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/require"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"

	iauth "github.com/codecourse/server/internal/auth"
	"github.com/codecourse/server/internal/database"
)

func setupAuthTest(t *testing.T) (*gin.Engine, *iauth.JWTService, *iauth.SessionService) {
	t.Helper()
	gin.SetMode(gin.TestMode)

	name := strings.NewReplacer("/", "_", " ", "_").Replace(t.Name())
	db, err := gorm.Open(sqlite.Open(fmt.Sprintf("file:%s?mode=memory&cache=shared", name)), &gorm.Config{})
	require.NoError(t, err)
	require.NoError(t, database.AutoMigrate(db))
	sqlDB, err := db.DB()
	require.NoError(t, err)
	t.Cleanup(func() { _ = sqlDB.Close() })

	jwt, err := iauth.NewJWTService(iauth.JWTConfig{Secret: "mw-secret", Issuer: "mw-test"})
	require.NoError(t, err)

	sessions, err := iauth.NewSessionService(db, iauth.SessionConfig{TokenTTL: time.Hour})
	require.NoError(t, err)

	r := gin.New()
	r.Use(Auth(jwt, sessions))
	r.GET("/protected", func(c *gin.Context) {
		c.String(http.StatusOK, c.GetString(CtxUserIDKey))
	})

	return r, jwt, sessions
}

func TestAuthMiddlewareAcceptsBackedToken(t *testing.T) {
	r, jwt, sessions := setupAuthTest(t)

	token, err := jwt.GenerateAccessToken("user-1", "a@x.com")
	require.NoError(t, err)
	_, err = sessions.Create(context.Background(), nil, "user-1", token)
	require.NoError(t, err)

	w := httptest.NewRecorder()
	req := httptest.NewRequest(http.MethodGet, "/protected", nil)
	req.Header.Set("Authorization", "Bearer "+token)
	r.ServeHTTP(w, req)

	require.Equal(t, http.StatusOK, w.Code)
	require.Equal(t, "user-1", w.Body.String())
}

func TestAuthMiddlewareRejectsTokenWithoutSession(t *testing.T) {
	r, jwt, _ := setupAuthTest(t)

	// Cryptographically valid token, but no session row behind it.
	token, err := jwt.GenerateAccessToken("user-1", "a@x.com")
	require.NoError(t, err)

	w := httptest.NewRecorder()
	req := httptest.NewRequest(http.MethodGet, "/protected", nil)
	req.Header.Set("Authorization", "Bearer "+token)
	r.ServeHTTP(w, req)

	require.Equal(t, http.StatusUnauthorized, w.Code)
}

func TestAuthMiddlewareRejectsGarbage(t *testing.T) {
	r, _, _ := setupAuthTest(t)

	for _, header := range []string{"", "Bearer", "Bearer   ", "Basic abc", "Bearer not-a-jwt"} {
		w := httptest.NewRecorder()
		req := httptest.NewRequest(http.MethodGet, "/protected", nil)
		if header != "" {
			req.Header.Set("Authorization", header)
		}
		r.ServeHTTP(w, req)
		require.Equal(t, http.StatusUnauthorized, w.Code, "header %q", header)
	}
}

func TestAuthMiddlewareRejectsDeletedSession(t *testing.T) {
	r, jwt, sessions := setupAuthTest(t)

	token, err := jwt.GenerateAccessToken("user-1", "a@x.com")
	require.NoError(t, err)
	_, err = sessions.Create(context.Background(), nil, "user-1", token)
	require.NoError(t, err)
	require.NoError(t, sessions.DeleteByToken(context.Background(), token))

	w := httptest.NewRecorder()
	req := httptest.NewRequest(http.MethodGet, "/protected", nil)
	req.Header.Set("Authorization", "Bearer "+token)
	r.ServeHTTP(w, req)

	require.Equal(t, http.StatusUnauthorized, w.Code)
}
