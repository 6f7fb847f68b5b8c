package maintenance

import (
	"context"
	"fmt"
	"strings"
	"testing"
	"time"

	"github.com/robfig/cron/v3"
	"github.com/stretchr/testify/require"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"

	iauth "github.com/codecourse/server/internal/auth"
	"github.com/codecourse/server/internal/database"
	"github.com/codecourse/server/internal/models"
	"github.com/codecourse/server/internal/services"
)

func openTestDB(t *testing.T) *gorm.DB {
	t.Helper()

	name := strings.NewReplacer("/", "_", " ", "_").Replace(t.Name())
	dsn := fmt.Sprintf("file:%s?mode=memory&cache=shared", name)

	db, err := gorm.Open(sqlite.Open(dsn), &gorm.Config{})
	require.NoError(t, err)
	require.NoError(t, database.AutoMigrate(db))

	sqlDB, err := db.DB()
	require.NoError(t, err)
	t.Cleanup(func() { _ = sqlDB.Close() })

	return db
}

type fixedClock struct {
	current time.Time
}

func (c *fixedClock) Now() time.Time { return c.current }

func TestCleanerRunOnce(t *testing.T) {
	db := openTestDB(t)
	clock := &fixedClock{current: time.Date(2024, 5, 20, 9, 0, 0, 0, time.UTC)}

	jwtSvc, err := iauth.NewJWTService(iauth.JWTConfig{
		Secret: "cleanup-secret",
		Issuer: "test-suite",
		Clock:  clock.Now,
	})
	require.NoError(t, err)

	sessionSvc, err := iauth.NewSessionService(db, iauth.SessionConfig{Clock: clock.Now})
	require.NoError(t, err)

	verificationSvc, err := services.NewVerificationService(db, jwtSvc, sessionSvc, nil,
		services.WithVerificationClock(clock.Now))
	require.NoError(t, err)

	resetSvc, err := services.NewResetService(db, sessionSvc, nil,
		services.WithResetClock(clock.Now))
	require.NoError(t, err)

	// Expired and live rows in every maintained table.
	require.NoError(t, db.Create(&models.Session{
		UserID: "u1", Token: "expired-session", ExpiresAt: clock.current.Add(-time.Hour),
	}).Error)
	require.NoError(t, db.Create(&models.Session{
		UserID: "u1", Token: "live-session", ExpiresAt: clock.current.Add(time.Hour),
	}).Error)

	require.NoError(t, db.Create(&models.VerificationCode{
		Subject: "a@x.com", Kind: models.CodeKindEmail, Code: "111111",
		ExpiresAt: clock.current.Add(-time.Minute),
	}).Error)
	require.NoError(t, db.Create(&models.VerificationCode{
		Subject: "b@x.com", Kind: models.CodeKindEmail, Code: "222222",
		ExpiresAt: clock.current.Add(time.Minute),
	}).Error)

	require.NoError(t, db.Create(&models.PasswordResetToken{
		Email: "a@x.com", Token: "reset-expired", ExpiresAt: clock.current.Add(-time.Hour),
	}).Error)
	require.NoError(t, db.Create(&models.PasswordResetToken{
		Email: "b@x.com", Token: "reset-live", ExpiresAt: clock.current.Add(time.Hour),
	}).Error)

	c := NewCleaner(sessionSvc, verificationSvc, resetSvc,
		WithCron(cron.New(cron.WithLogger(cron.DiscardLogger))),
	)

	require.NoError(t, c.RunOnce(context.Background()))

	assertRemaining := func(model any, expected int64) {
		var count int64
		require.NoError(t, db.Model(model).Count(&count).Error)
		require.Equal(t, expected, count)
	}

	assertRemaining(&models.Session{}, 1)
	assertRemaining(&models.VerificationCode{}, 1)
	assertRemaining(&models.PasswordResetToken{}, 1)

	var session models.Session
	require.NoError(t, db.Take(&session).Error)
	require.Equal(t, "live-session", session.Token)
}

func TestCleanerStartWithBadSchedule(t *testing.T) {
	db := openTestDB(t)

	sessionSvc, err := iauth.NewSessionService(db, iauth.SessionConfig{})
	require.NoError(t, err)

	c := NewCleaner(sessionSvc, nil, nil, WithSchedule("not-a-spec"))
	require.Error(t, c.Start())
}

func TestCleanerNoDependencies(t *testing.T) {
	c := NewCleaner(nil, nil, nil)
	require.NoError(t, c.Start())
	require.NoError(t, c.RunOnce(context.Background()))
	c.Stop()
}
