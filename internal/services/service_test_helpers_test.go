package services

import (
	"context"
	"fmt"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"

	iauth "github.com/codecourse/server/internal/auth"
	"github.com/codecourse/server/internal/auth/social"
	"github.com/codecourse/server/internal/database"
)

func openServiceTestDB(t *testing.T) *gorm.DB {
	t.Helper()

	name := strings.NewReplacer("/", "_", " ", "_").Replace(t.Name())
	dsn := fmt.Sprintf("file:%s?mode=memory&cache=shared", name)

	db, err := gorm.Open(sqlite.Open(dsn), &gorm.Config{TranslateError: true})
	require.NoError(t, err)
	require.NoError(t, database.AutoMigrate(db))

	sqlDB, err := db.DB()
	require.NoError(t, err)
	t.Cleanup(func() { _ = sqlDB.Close() })

	return db
}

// testClock is a mutable time source shared by the services under test.
type testClock struct {
	current time.Time
}

func newTestClock() *testClock {
	return &testClock{current: time.Date(2024, 3, 1, 12, 0, 0, 0, time.UTC)}
}

func (c *testClock) Now() time.Time { return c.current }

func (c *testClock) Advance(d time.Duration) { c.current = c.current.Add(d) }

func newAuthServices(t *testing.T, db *gorm.DB, clock *testClock) (*iauth.JWTService, *iauth.SessionService) {
	t.Helper()

	jwt, err := iauth.NewJWTService(iauth.JWTConfig{
		Secret: "test-secret",
		Issuer: "codecourse-test",
		Clock:  clock.Now,
	})
	require.NoError(t, err)

	sessions, err := iauth.NewSessionService(db, iauth.SessionConfig{Clock: clock.Now})
	require.NoError(t, err)

	return jwt, sessions
}

type stubGoogleVerifier struct {
	profile *social.Profile
	err     error
}

func (s *stubGoogleVerifier) VerifyIDToken(ctx context.Context, rawIDToken string) (*social.Profile, error) {
	return s.profile, s.err
}

type stubFacebookVerifier struct {
	profile *social.Profile
	err     error
}

func (s *stubFacebookVerifier) VerifyAccessToken(ctx context.Context, accessToken string) (*social.Profile, error) {
	return s.profile, s.err
}
