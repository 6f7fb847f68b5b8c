package auth

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"gorm.io/gorm"

	"github.com/codecourse/server/internal/models"
	"github.com/codecourse/server/pkg/metrics"
)

var (
	// ErrSessionNotFound indicates that no live session matches the token.
	ErrSessionNotFound = errors.New("session: not found")
	// ErrSessionExpired signals that the session row has passed its expiry.
	ErrSessionExpired = errors.New("session: expired")
)

// SessionConfig describes tunable behaviour for the SessionService.
type SessionConfig struct {
	TokenTTL time.Duration
	Clock    func() time.Time
}

// SessionService manages the session rows that back issued bearer tokens.
// Token possession alone is not enough for authenticated requests: the row
// must still exist, which is what logout deletes.
type SessionService struct {
	db  *gorm.DB
	ttl time.Duration
	now func() time.Time
}

// NewSessionService constructs a session manager backed by the provided database.
func NewSessionService(db *gorm.DB, cfg SessionConfig) (*SessionService, error) {
	if db == nil {
		return nil, errors.New("session service: db is required")
	}

	ttl := cfg.TokenTTL
	if ttl <= 0 {
		ttl = DefaultAccessTokenTTL
	}

	clock := time.Now
	if cfg.Clock != nil {
		clock = cfg.Clock
	}

	return &SessionService{db: db, ttl: ttl, now: clock}, nil
}

// Create persists a session row for an issued token. When tx is non-nil the
// insert joins the caller's transaction.
func (s *SessionService) Create(ctx context.Context, tx *gorm.DB, userID, token string) (*models.Session, error) {
	if strings.TrimSpace(userID) == "" {
		return nil, errors.New("session service: user id is required")
	}
	if strings.TrimSpace(token) == "" {
		return nil, errors.New("session service: token is required")
	}

	db := tx
	if db == nil {
		db = s.db
	}

	session := &models.Session{
		UserID:    userID,
		Token:     token,
		ExpiresAt: s.now().Add(s.ttl),
	}

	if err := db.WithContext(ctx).Create(session).Error; err != nil {
		return nil, fmt.Errorf("session service: create session: %w", err)
	}

	// Inside a caller transaction the gauge is the caller's to settle after
	// commit; a rollback must not move it.
	if tx == nil {
		metrics.ActiveSessions.Inc()
	}
	return session, nil
}

// Verify confirms that a live, unexpired session exists for the token.
// Expiry is lazy: expired rows are rejected here, then removed by the
// maintenance cleaner.
func (s *SessionService) Verify(ctx context.Context, token string) (*models.Session, error) {
	token = strings.TrimSpace(token)
	if token == "" {
		return nil, ErrSessionNotFound
	}

	var session models.Session
	err := s.db.WithContext(ctx).Where("token = ?", token).Take(&session).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, ErrSessionNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("session service: find session: %w", err)
	}

	if session.ExpiresAt.Before(s.now()) {
		return nil, ErrSessionExpired
	}

	return &session, nil
}

// DeleteByToken removes the session row for a token. Idempotent: deleting a
// missing session is not an error.
func (s *SessionService) DeleteByToken(ctx context.Context, token string) error {
	token = strings.TrimSpace(token)
	if token == "" {
		return nil
	}

	result := s.db.WithContext(ctx).Where("token = ?", token).Delete(&models.Session{})
	if result.Error != nil {
		return fmt.Errorf("session service: delete session: %w", result.Error)
	}

	if result.RowsAffected > 0 {
		metrics.ActiveSessions.Sub(float64(result.RowsAffected))
	}
	return nil
}

// DeleteForUser removes every session belonging to a user and returns the
// count. When tx is non-nil the delete joins the caller's transaction
// (account deletion, password reset); the caller then settles the session
// gauge after commit, since the delete may still roll back.
func (s *SessionService) DeleteForUser(ctx context.Context, tx *gorm.DB, userID string) (int64, error) {
	if strings.TrimSpace(userID) == "" {
		return 0, errors.New("session service: user id is required")
	}

	db := tx
	if db == nil {
		db = s.db
	}

	result := db.WithContext(ctx).Where("user_id = ?", userID).Delete(&models.Session{})
	if result.Error != nil {
		return 0, fmt.Errorf("session service: delete user sessions: %w", result.Error)
	}

	if tx == nil && result.RowsAffected > 0 {
		metrics.ActiveSessions.Sub(float64(result.RowsAffected))
	}
	return result.RowsAffected, nil
}

// CleanupExpired removes sessions past their expiry and returns the count.
func (s *SessionService) CleanupExpired(ctx context.Context) (int64, error) {
	if ctx == nil {
		ctx = context.Background()
	}

	result := s.db.WithContext(ctx).
		Where("expires_at < ?", s.now()).
		Delete(&models.Session{})
	if result.Error != nil {
		return 0, fmt.Errorf("session service: cleanup expired sessions: %w", result.Error)
	}

	if result.RowsAffected > 0 {
		metrics.ActiveSessions.Sub(float64(result.RowsAffected))
	}

	return result.RowsAffected, nil
}
