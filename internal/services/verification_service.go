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
	defaultCodeExpiry = 10 * time.Minute
	codeDigits        = 6
)

// VerificationOption customises the VerificationService.
type VerificationOption func(*VerificationService)

// WithCodeExpiry overrides the code lifetime.
func WithCodeExpiry(d time.Duration) VerificationOption {
	return func(s *VerificationService) {
		if d > 0 {
			s.expiry = d
		}
	}
}

// WithVerificationClock injects a custom time source.
func WithVerificationClock(clock func() time.Time) VerificationOption {
	return func(s *VerificationService) {
		if clock != nil {
			s.now = clock
		}
	}
}

// IssueResult reports an issued code and whether it was delivered by email.
// When delivery failed the handler surfaces the code to the user as a
// fallback.
type IssueResult struct {
	Code      string
	Delivered bool
	ExpiresAt time.Time
}

// VerificationService manages one-time 6-digit confirmation codes for email
// addresses and phone numbers.
type VerificationService struct {
	db       *gorm.DB
	jwt      *iauth.JWTService
	sessions *iauth.SessionService
	notifier *mail.Notifier
	expiry   time.Duration
	now      func() time.Time
}

// NewVerificationService constructs a verification service.
func NewVerificationService(db *gorm.DB, jwt *iauth.JWTService, sessions *iauth.SessionService, notifier *mail.Notifier, opts ...VerificationOption) (*VerificationService, error) {
	if db == nil {
		return nil, errors.New("verification service: db is required")
	}
	if jwt == nil {
		return nil, errors.New("verification service: jwt service is required")
	}
	if sessions == nil {
		return nil, errors.New("verification service: session service is required")
	}

	service := &VerificationService{
		db:       db,
		jwt:      jwt,
		sessions: sessions,
		notifier: notifier,
		expiry:   defaultCodeExpiry,
		now:      time.Now,
	}

	for _, opt := range opts {
		opt(service)
	}

	return service, nil
}

// Issue generates a fresh code for (subject, kind), invalidating any prior
// unused code for the same pair. Email codes are dispatched synchronously so
// the caller learns whether delivery succeeded; phone codes have no SMS
// transport and are always reported undelivered.
func (s *VerificationService) Issue(ctx context.Context, subject, kind string) (*IssueResult, error) {
	subject = strings.TrimSpace(subject)
	if kind == models.CodeKindEmail {
		subject = strings.ToLower(subject)
	}
	if subject == "" {
		return nil, apperrors.NewBadRequest(kind + " is required")
	}
	if kind != models.CodeKindEmail && kind != models.CodeKindPhone {
		return nil, apperrors.NewBadRequest("unknown verification kind")
	}

	code, err := crypto.GenerateNumericCode(codeDigits)
	if err != nil {
		return nil, fmt.Errorf("verification service: generate code: %w", err)
	}

	record := models.VerificationCode{
		Subject:   subject,
		Kind:      kind,
		Code:      code,
		ExpiresAt: s.now().Add(s.expiry),
	}

	err = s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := tx.Where("subject = ? AND kind = ? AND used = ?", subject, kind, false).
			Delete(&models.VerificationCode{}).Error; err != nil {
			return fmt.Errorf("cleanup prior codes: %w", err)
		}
		if err := tx.Create(&record).Error; err != nil {
			return fmt.Errorf("create code: %w", err)
		}
		return nil
	})
	if err != nil {
		return nil, fmt.Errorf("verification service: issue code: %w", err)
	}

	metrics.VerificationCodes.WithLabelValues(kind, "issued").Inc()

	delivered := false
	if kind == models.CodeKindEmail && s.notifier != nil {
		mailErr := s.notifier.Send(ctx, mail.Message{
			To:      []string{subject},
			Subject: "Your CodeCourse verification code",
			Body:    fmt.Sprintf("Your verification code is: %s\n\nIt expires in %d minutes.\n", code, int(s.expiry.Minutes())),
		})
		delivered = mailErr == nil
	}

	return &IssueResult{Code: code, Delivered: delivered, ExpiresAt: record.ExpiresAt}, nil
}

// Redeem consumes a code exactly once. Unknown, expired, and already-used
// codes all collapse into ErrInvalidCode. On success the matching user, if
// one exists, is marked verified and signed in (auto-login-on-verify); the
// returned AuthResult is nil when no account matches the subject.
func (s *VerificationService) Redeem(ctx context.Context, subject, kind, submittedCode string) (*AuthResult, error) {
	subject = strings.TrimSpace(subject)
	if kind == models.CodeKindEmail {
		subject = strings.ToLower(subject)
	}
	submittedCode = strings.TrimSpace(submittedCode)
	if subject == "" || submittedCode == "" {
		return nil, apperrors.ErrInvalidCode
	}

	var result *AuthResult
	err := s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		var record models.VerificationCode
		err := tx.Where("subject = ? AND kind = ? AND code = ? AND used = ? AND expires_at > ?",
			subject, kind, submittedCode, false, s.now()).
			Take(&record).Error
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return apperrors.ErrInvalidCode
		}
		if err != nil {
			return fmt.Errorf("find code: %w", err)
		}

		if err := tx.Model(&record).Update("used", true).Error; err != nil {
			return fmt.Errorf("consume code: %w", err)
		}

		var user models.User
		column := "email"
		verifiedColumn := "email_verified"
		if kind == models.CodeKindPhone {
			column = "phone"
			verifiedColumn = "phone_verified"
		}

		err = tx.Where(column+" = ?", subject).Take(&user).Error
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil // code consumed; no account to verify or sign in
		}
		if err != nil {
			return fmt.Errorf("find user: %w", err)
		}

		if err := tx.Model(&user).Update(verifiedColumn, true).Error; err != nil {
			return fmt.Errorf("mark verified: %w", err)
		}

		token, err := s.jwt.GenerateAccessToken(user.ID, user.Email)
		if err != nil {
			return fmt.Errorf("generate token: %w", err)
		}
		if _, err := s.sessions.Create(ctx, tx, user.ID, token); err != nil {
			return err
		}

		if kind == models.CodeKindPhone {
			user.PhoneVerified = true
		} else {
			user.EmailVerified = true
		}
		result = &AuthResult{Token: token, User: user.Public()}
		return nil
	})
	if err != nil {
		metrics.VerificationCodes.WithLabelValues(kind, "rejected").Inc()
		return nil, apperrors.FromError(err)
	}

	metrics.VerificationCodes.WithLabelValues(kind, "redeemed").Inc()
	if result != nil {
		// The auto-login session committed with the transaction.
		metrics.ActiveSessions.Inc()
	}
	return result, nil
}

// CleanupExpired removes expired codes and returns the count.
func (s *VerificationService) CleanupExpired(ctx context.Context) (int64, error) {
	result := s.db.WithContext(ctx).
		Where("expires_at < ?", s.now()).
		Delete(&models.VerificationCode{})
	if result.Error != nil {
		return 0, fmt.Errorf("verification service: cleanup expired codes: %w", result.Error)
	}
	return result.RowsAffected, nil
}
