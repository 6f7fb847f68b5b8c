package services

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"gorm.io/gorm"

	iauth "github.com/codecourse/server/internal/auth"
	"github.com/codecourse/server/internal/models"
	"github.com/codecourse/server/pkg/crypto"
	apperrors "github.com/codecourse/server/pkg/errors"
	"github.com/codecourse/server/pkg/mail"
	"github.com/codecourse/server/pkg/metrics"
)

const (
	defaultResetExpiry     = time.Hour
	defaultResetTokenBytes = 32
)

// ResetOption customises the ResetService.
type ResetOption func(*ResetService)

// WithResetExpiry overrides the reset-token lifetime.
func WithResetExpiry(d time.Duration) ResetOption {
	return func(s *ResetService) {
		if d > 0 {
			s.expiry = d
		}
	}
}

// WithResetClock injects a custom time source.
func WithResetClock(clock func() time.Time) ResetOption {
	return func(s *ResetService) {
		if clock != nil {
			s.now = clock
		}
	}
}

// ResetService manages single-use password-reset tokens.
type ResetService struct {
	db       *gorm.DB
	sessions *iauth.SessionService
	notifier *mail.Notifier
	expiry   time.Duration
	now      func() time.Time
}

// NewResetService constructs a password-reset service.
func NewResetService(db *gorm.DB, sessions *iauth.SessionService, notifier *mail.Notifier, opts ...ResetOption) (*ResetService, error) {
	if db == nil {
		return nil, errors.New("reset service: db is required")
	}
	if sessions == nil {
		return nil, errors.New("reset service: session service is required")
	}

	service := &ResetService{
		db:       db,
		sessions: sessions,
		notifier: notifier,
		expiry:   defaultResetExpiry,
		now:      time.Now,
	}

	for _, opt := range opts {
		opt(service)
	}

	return service, nil
}

// Request issues a reset token for a registered email and mails it.
// Unregistered emails are rejected with ErrUnknownEmail; this reveals
// account existence and is part of the documented contract.
func (s *ResetService) Request(ctx context.Context, email string) (string, error) {
	email = normalizeEmail(email)
	if email == "" {
		return "", apperrors.NewBadRequest("email is required")
	}

	var count int64
	if err := s.db.WithContext(ctx).Model(&models.User{}).Where("email = ?", email).Count(&count).Error; err != nil {
		return "", fmt.Errorf("reset service: check user: %w", err)
	}
	if count == 0 {
		return "", apperrors.ErrUnknownEmail
	}

	token, err := crypto.GenerateToken(defaultResetTokenBytes)
	if err != nil {
		return "", fmt.Errorf("reset service: generate token: %w", err)
	}

	record := models.PasswordResetToken{
		Email:     email,
		Token:     token,
		ExpiresAt: s.now().Add(s.expiry),
	}

	err = s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := tx.Where("email = ?", email).Delete(&models.PasswordResetToken{}).Error; err != nil {
			return fmt.Errorf("cleanup prior tokens: %w", err)
		}
		if err := tx.Create(&record).Error; err != nil {
			return fmt.Errorf("create token: %w", err)
		}
		return nil
	})
	if err != nil {
		return "", fmt.Errorf("reset service: issue token: %w", err)
	}

	s.notifier.Dispatch(mail.Message{
		To:      []string{email},
		Subject: "Reset your CodeCourse password",
		Body:    fmt.Sprintf("A password reset was requested for your account.\n\nReset token: %s\n\nIt expires in %d minutes. If you did not request this, you can ignore this message.\n", token, int(s.expiry.Minutes())),
	})

	return token, nil
}

// Redeem consumes a reset token and sets a new password. The token row is
// deleted on success, and every session for the user is dropped so stolen
// tokens stop working immediately.
func (s *ResetService) Redeem(ctx context.Context, token, newPassword string) error {
	token = strings.TrimSpace(token)
	if token == "" {
		return apperrors.ErrInvalidResetToken
	}
	if len(newPassword) < minPasswordLength {
		return apperrors.ErrWeakPassword
	}

	var droppedSessions int64
	err := s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		var record models.PasswordResetToken
		err := tx.Where("token = ? AND expires_at > ?", token, s.now()).Take(&record).Error
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return apperrors.ErrInvalidResetToken
		}
		if err != nil {
			return fmt.Errorf("find token: %w", err)
		}

		var user models.User
		err = tx.Where("email = ?", record.Email).Take(&user).Error
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return apperrors.ErrInvalidResetToken
		}
		if err != nil {
			return fmt.Errorf("find user: %w", err)
		}

		hashed, err := crypto.HashPassword(newPassword)
		if err != nil {
			return fmt.Errorf("hash password: %w", err)
		}

		if err := tx.Model(&user).Update("password", hashed).Error; err != nil {
			return fmt.Errorf("update password: %w", err)
		}
		if err := tx.Delete(&record).Error; err != nil {
			return fmt.Errorf("consume token: %w", err)
		}

		dropped, err := s.sessions.DeleteForUser(ctx, tx, user.ID)
		if err != nil {
			return err
		}
		droppedSessions = dropped
		return nil
	})
	if err != nil {
		return apperrors.FromError(err)
	}

	if droppedSessions > 0 {
		metrics.ActiveSessions.Sub(float64(droppedSessions))
	}
	return nil
}

// CleanupExpired removes expired reset tokens and returns the count.
func (s *ResetService) CleanupExpired(ctx context.Context) (int64, error) {
	result := s.db.WithContext(ctx).
		Where("expires_at < ?", s.now()).
		Delete(&models.PasswordResetToken{})
	if result.Error != nil {
		return 0, fmt.Errorf("reset service: cleanup expired tokens: %w", result.Error)
	}
	return result.RowsAffected, nil
}
