package services

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"gorm.io/gorm"

	iauth "github.com/codecourse/server/internal/auth"
	"github.com/codecourse/server/internal/auth/social"
	"github.com/codecourse/server/internal/models"
	"github.com/codecourse/server/pkg/crypto"
	apperrors "github.com/codecourse/server/pkg/errors"
	"github.com/codecourse/server/pkg/mail"
	"github.com/codecourse/server/pkg/metrics"
	appvalidator "github.com/codecourse/server/pkg/validator"
)

const minPasswordLength = 8

// GoogleTokenVerifier verifies a Google-issued ID token.
type GoogleTokenVerifier interface {
	VerifyIDToken(ctx context.Context, rawIDToken string) (*social.Profile, error)
}

// FacebookTokenVerifier verifies a Facebook user access token.
type FacebookTokenVerifier interface {
	VerifyAccessToken(ctx context.Context, accessToken string) (*social.Profile, error)
}

// AuthResult carries an issued bearer token and the public user view.
type AuthResult struct {
	Token string            `json:"token"`
	User  models.PublicView `json:"user"`
}

// RegisterInput describes the fields accepted at registration.
type RegisterInput struct {
	FirstName  string
	LastName   string
	Email      string
	Password   string
	Phone      string
	Country    string
	Experience string
	Newsletter bool
}

// SocialRegisterInput registers an account from already-obtained provider
// profile fields.
type SocialRegisterInput struct {
	FirstName    string
	LastName     string
	Email        string
	GoogleID     string
	FacebookID   string
	ProfileImage string
	Newsletter   bool
}

// UpdateProfileInput enumerates the allow-listed mutable profile fields.
// Nil pointers are left untouched.
type UpdateProfileInput struct {
	FirstName  *string
	LastName   *string
	Email      *string
	Phone      *string
	Country    *string
	Experience *string
	Newsletter *bool
}

// AccountService orchestrates registration, authentication, and account
// lifecycle over the credential store.
type AccountService struct {
	db       *gorm.DB
	jwt      *iauth.JWTService
	sessions *iauth.SessionService
	notifier *mail.Notifier
	google   GoogleTokenVerifier
	facebook FacebookTokenVerifier
}

// NewAccountService constructs an AccountService. The notifier and the
// provider verifiers may be nil; the corresponding flows degrade gracefully
// (no emails, social login rejected).
func NewAccountService(db *gorm.DB, jwt *iauth.JWTService, sessions *iauth.SessionService, notifier *mail.Notifier, google GoogleTokenVerifier, facebook FacebookTokenVerifier) (*AccountService, error) {
	if db == nil {
		return nil, errors.New("account service: db is required")
	}
	if jwt == nil {
		return nil, errors.New("account service: jwt service is required")
	}
	if sessions == nil {
		return nil, errors.New("account service: session service is required")
	}

	return &AccountService{
		db:       db,
		jwt:      jwt,
		sessions: sessions,
		notifier: notifier,
		google:   google,
		facebook: facebook,
	}, nil
}

// Register creates a local account. No session is issued; plain registration
// requires a subsequent login, unlike social registration.
func (s *AccountService) Register(ctx context.Context, input RegisterInput) (*models.User, error) {
	input.FirstName = strings.TrimSpace(input.FirstName)
	input.LastName = strings.TrimSpace(input.LastName)
	email := normalizeEmail(input.Email)

	if input.FirstName == "" || input.LastName == "" || email == "" ||
		input.Password == "" || strings.TrimSpace(input.Country) == "" || strings.TrimSpace(input.Experience) == "" {
		return nil, apperrors.NewBadRequest("firstName, lastName, email, password, country and experience are required")
	}

	if err := appvalidator.ValidateVar(email, "email"); err != nil {
		return nil, apperrors.NewBadRequest("email address is not valid")
	}

	if len(input.Password) < minPasswordLength {
		return nil, apperrors.ErrWeakPassword
	}

	var count int64
	if err := s.db.WithContext(ctx).Model(&models.User{}).Where("email = ?", email).Count(&count).Error; err != nil {
		return nil, fmt.Errorf("account service: check existing email: %w", err)
	}
	if count > 0 {
		return nil, apperrors.ErrUserExists
	}

	hashed, err := crypto.HashPassword(input.Password)
	if err != nil {
		return nil, fmt.Errorf("account service: hash password: %w", err)
	}

	user := &models.User{
		FirstName:  input.FirstName,
		LastName:   input.LastName,
		Email:      email,
		Phone:      strings.TrimSpace(input.Phone),
		Country:    strings.TrimSpace(input.Country),
		Experience: strings.TrimSpace(input.Experience),
		Password:   hashed,
		Newsletter: input.Newsletter,
	}

	if err := s.db.WithContext(ctx).Create(user).Error; err != nil {
		// A racing registration can slip past the pre-check and land on
		// the unique email index.
		if errors.Is(err, gorm.ErrDuplicatedKey) {
			return nil, apperrors.ErrUserExists
		}
		return nil, fmt.Errorf("account service: create user: %w", err)
	}

	s.notifier.Dispatch(mail.Message{
		To:      []string{user.Email},
		Subject: "Welcome to CodeCourse!",
		Body: fmt.Sprintf("Hi %s,\n\nThanks for joining CodeCourse! Your account is ready and all courses and resources are now available to you.\n\nThe CodeCourse team\n", user.FirstName),
	})
	s.notifier.NotifyAdmin("New registration",
		fmt.Sprintf("Name: %s %s\nEmail: %s\nCountry: %s\nExperience: %s\nNewsletter: %t\n",
			user.FirstName, user.LastName, user.Email, user.Country, user.Experience, user.Newsletter))

	return user, nil
}

// Login authenticates with email and password. Unknown emails and wrong
// passwords both surface as ErrInvalidCredentials.
func (s *AccountService) Login(ctx context.Context, email, password string) (*AuthResult, error) {
	email = normalizeEmail(email)
	if email == "" || password == "" {
		metrics.AuthAttempts.WithLabelValues("local", "failure").Inc()
		return nil, apperrors.ErrInvalidCredentials
	}

	var user models.User
	err := s.db.WithContext(ctx).Where("email = ?", email).Take(&user).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		metrics.AuthAttempts.WithLabelValues("local", "failure").Inc()
		return nil, apperrors.ErrInvalidCredentials
	}
	if err != nil {
		return nil, fmt.Errorf("account service: find user: %w", err)
	}

	if user.Password == "" || !crypto.VerifyPassword(user.Password, password) {
		metrics.AuthAttempts.WithLabelValues("local", "failure").Inc()
		return nil, apperrors.ErrInvalidCredentials
	}

	result, err := s.issueSession(ctx, nil, &user)
	if err != nil {
		return nil, err
	}

	metrics.AuthAttempts.WithLabelValues("local", "success").Inc()
	s.notifier.NotifyAdmin("User login",
		fmt.Sprintf("User: %s %s\nEmail: %s\n", user.FirstName, user.LastName, user.Email))

	return result, nil
}

// GoogleLogin verifies a Google ID token and signs the holder in, creating an
// account on first sight.
func (s *AccountService) GoogleLogin(ctx context.Context, idToken string) (*AuthResult, error) {
	if s.google == nil {
		return nil, apperrors.ErrInvalidSocialToken
	}

	profile, err := s.google.VerifyIDToken(ctx, idToken)
	if err != nil {
		metrics.AuthAttempts.WithLabelValues(social.ProviderGoogle, "failure").Inc()
		return nil, apperrors.ErrInvalidSocialToken
	}

	return s.federatedLogin(ctx, social.ProviderGoogle, profile)
}

// FacebookLogin verifies a Facebook access token and signs the holder in,
// creating an account on first sight.
func (s *AccountService) FacebookLogin(ctx context.Context, accessToken string) (*AuthResult, error) {
	if s.facebook == nil {
		return nil, apperrors.ErrInvalidSocialToken
	}

	profile, err := s.facebook.VerifyAccessToken(ctx, accessToken)
	if err != nil {
		metrics.AuthAttempts.WithLabelValues(social.ProviderFacebook, "failure").Inc()
		return nil, apperrors.ErrInvalidSocialToken
	}

	return s.federatedLogin(ctx, social.ProviderFacebook, profile)
}

func (s *AccountService) federatedLogin(ctx context.Context, provider string, profile *social.Profile) (*AuthResult, error) {
	email := normalizeEmail(profile.Email)
	providerColumn := "google_id"
	if provider == social.ProviderFacebook {
		providerColumn = "facebook_id"
	}

	var result *AuthResult
	err := s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		var user models.User
		err := tx.Where("email = ? OR "+providerColumn+" = ?", email, profile.ProviderID).Take(&user).Error

		switch {
		case errors.Is(err, gorm.ErrRecordNotFound):
			firstName, lastName := splitName(profile.Name)
			user = models.User{
				FirstName:     firstName,
				LastName:      lastName,
				Email:         email,
				ProfileImage:  profile.Picture,
				EmailVerified: true,
			}
			setProviderID(&user, provider, profile.ProviderID)
			if createErr := tx.Create(&user).Error; createErr != nil {
				if errors.Is(createErr, gorm.ErrDuplicatedKey) {
					return apperrors.ErrUserExists
				}
				return fmt.Errorf("create user: %w", createErr)
			}

		case err != nil:
			return fmt.Errorf("find user: %w", err)

		default:
			if providerIDOf(&user, provider) == "" {
				updates := map[string]any{
					providerColumn:   profile.ProviderID,
					"email_verified": true,
				}
				if user.ProfileImage == "" && profile.Picture != "" {
					updates["profile_image"] = profile.Picture
				}
				if updateErr := tx.Model(&user).Updates(updates).Error; updateErr != nil {
					return fmt.Errorf("link provider: %w", updateErr)
				}
				setProviderID(&user, provider, profile.ProviderID)
				user.EmailVerified = true
			}
		}

		issued, issueErr := s.issueSession(ctx, tx, &user)
		if issueErr != nil {
			return issueErr
		}
		result = issued
		return nil
	})
	if err != nil {
		metrics.AuthAttempts.WithLabelValues(provider, "failure").Inc()
		return nil, apperrors.FromError(err)
	}

	// The session row committed with the transaction.
	metrics.ActiveSessions.Inc()
	metrics.AuthAttempts.WithLabelValues(provider, "success").Inc()
	s.notifier.NotifyAdmin(fmt.Sprintf("Login via %s", provider),
		fmt.Sprintf("User: %s %s\nEmail: %s\nProvider ID: %s\n",
			result.User.FirstName, result.User.LastName, result.User.Email, profile.ProviderID))

	return result, nil
}

// SocialRegister creates an account from provider profile fields supplied by
// the client. A session is issued, matching the social-login flows.
func (s *AccountService) SocialRegister(ctx context.Context, input SocialRegisterInput) (*AuthResult, error) {
	input.FirstName = strings.TrimSpace(input.FirstName)
	input.LastName = strings.TrimSpace(input.LastName)
	email := normalizeEmail(input.Email)

	if input.FirstName == "" || input.LastName == "" || email == "" {
		return nil, apperrors.NewBadRequest("firstName, lastName and email are required")
	}
	if input.GoogleID == "" && input.FacebookID == "" {
		return nil, apperrors.NewBadRequest("a google or facebook identity is required")
	}

	var result *AuthResult
	err := s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		var count int64
		if err := tx.Model(&models.User{}).Where("email = ?", email).Count(&count).Error; err != nil {
			return fmt.Errorf("check existing email: %w", err)
		}
		if count > 0 {
			return apperrors.ErrUserExists
		}

		user := models.User{
			FirstName:     input.FirstName,
			LastName:      input.LastName,
			Email:         email,
			GoogleID:      strings.TrimSpace(input.GoogleID),
			FacebookID:    strings.TrimSpace(input.FacebookID),
			ProfileImage:  strings.TrimSpace(input.ProfileImage),
			Newsletter:    input.Newsletter,
			EmailVerified: true,
		}
		if err := tx.Create(&user).Error; err != nil {
			if errors.Is(err, gorm.ErrDuplicatedKey) {
				return apperrors.ErrUserExists
			}
			return fmt.Errorf("create user: %w", err)
		}

		issued, err := s.issueSession(ctx, tx, &user)
		if err != nil {
			return err
		}
		result = issued
		return nil
	})
	if err != nil {
		return nil, apperrors.FromError(err)
	}

	metrics.ActiveSessions.Inc()
	s.notifier.Dispatch(mail.Message{
		To:      []string{result.User.Email},
		Subject: "Welcome to CodeCourse!",
		Body:    fmt.Sprintf("Hi %s,\n\nYour CodeCourse account was created through social sign-in. All courses and resources are now available to you.\n\nThe CodeCourse team\n", result.User.FirstName),
	})
	s.notifier.NotifyAdmin("New social registration",
		fmt.Sprintf("Name: %s %s\nEmail: %s\n", result.User.FirstName, result.User.LastName, result.User.Email))

	return result, nil
}

// GetProfile returns the public view of a user.
func (s *AccountService) GetProfile(ctx context.Context, userID string) (*models.PublicView, error) {
	var user models.User
	err := s.db.WithContext(ctx).Take(&user, "id = ?", userID).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, apperrors.ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("account service: find user: %w", err)
	}

	view := user.Public()
	return &view, nil
}

// UpdateProfile applies the allow-listed fields. Empty input is rejected.
func (s *AccountService) UpdateProfile(ctx context.Context, userID string, input UpdateProfileInput) (*models.PublicView, error) {
	updates := map[string]any{}

	if input.FirstName != nil {
		updates["first_name"] = strings.TrimSpace(*input.FirstName)
	}
	if input.LastName != nil {
		updates["last_name"] = strings.TrimSpace(*input.LastName)
	}
	if input.Email != nil {
		email := normalizeEmail(*input.Email)
		if err := appvalidator.ValidateVar(email, "email"); err != nil {
			return nil, apperrors.NewBadRequest("email address is not valid")
		}
		updates["email"] = email
	}
	if input.Phone != nil {
		updates["phone"] = strings.TrimSpace(*input.Phone)
	}
	if input.Country != nil {
		updates["country"] = strings.TrimSpace(*input.Country)
	}
	if input.Experience != nil {
		updates["experience"] = strings.TrimSpace(*input.Experience)
	}
	if input.Newsletter != nil {
		updates["newsletter"] = *input.Newsletter
	}

	if len(updates) == 0 {
		return nil, apperrors.ErrNoFieldsProvided
	}

	if email, ok := updates["email"].(string); ok {
		var count int64
		if err := s.db.WithContext(ctx).Model(&models.User{}).
			Where("email = ? AND id <> ?", email, userID).Count(&count).Error; err != nil {
			return nil, fmt.Errorf("account service: check email conflict: %w", err)
		}
		if count > 0 {
			return nil, apperrors.ErrUserExists
		}
	}

	result := s.db.WithContext(ctx).Model(&models.User{}).Where("id = ?", userID).Updates(updates)
	if result.Error != nil {
		if errors.Is(result.Error, gorm.ErrDuplicatedKey) {
			return nil, apperrors.ErrUserExists
		}
		return nil, fmt.Errorf("account service: update profile: %w", result.Error)
	}
	if result.RowsAffected == 0 {
		return nil, apperrors.ErrNotFound
	}

	return s.GetProfile(ctx, userID)
}

// ChangePassword verifies the current password before rehashing the new one.
func (s *AccountService) ChangePassword(ctx context.Context, userID, currentPassword, newPassword string) error {
	if len(newPassword) < minPasswordLength {
		return apperrors.ErrWeakPassword
	}

	var user models.User
	err := s.db.WithContext(ctx).Take(&user, "id = ?", userID).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return apperrors.ErrNotFound
	}
	if err != nil {
		return fmt.Errorf("account service: find user: %w", err)
	}

	if user.Password == "" || !crypto.VerifyPassword(user.Password, currentPassword) {
		return apperrors.ErrIncorrectPassword
	}

	hashed, err := crypto.HashPassword(newPassword)
	if err != nil {
		return fmt.Errorf("account service: hash password: %w", err)
	}

	if err := s.db.WithContext(ctx).Model(&user).Update("password", hashed).Error; err != nil {
		return fmt.Errorf("account service: update password: %w", err)
	}

	return nil
}

// DeleteAccount removes the user and every dependent row in one unit of
// work: sessions, course progress, and reset tokens commit or roll back
// together with the user row.
func (s *AccountService) DeleteAccount(ctx context.Context, userID string) error {
	var removedSessions int64
	err := s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		var user models.User
		err := tx.Take(&user, "id = ?", userID).Error
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return apperrors.ErrNotFound
		}
		if err != nil {
			return fmt.Errorf("find user: %w", err)
		}

		removed, err := s.sessions.DeleteForUser(ctx, tx, userID)
		if err != nil {
			return err
		}
		removedSessions = removed

		if err := tx.Where("user_id = ?", userID).Delete(&models.CourseProgress{}).Error; err != nil {
			return fmt.Errorf("delete course progress: %w", err)
		}
		if err := tx.Where("email = ?", user.Email).Delete(&models.PasswordResetToken{}).Error; err != nil {
			return fmt.Errorf("delete reset tokens: %w", err)
		}
		if err := tx.Delete(&user).Error; err != nil {
			return fmt.Errorf("delete user: %w", err)
		}

		return nil
	})
	if err != nil {
		return err
	}

	if removedSessions > 0 {
		metrics.ActiveSessions.Sub(float64(removedSessions))
	}
	return nil
}

// Logout removes the session backing a token. Idempotent.
func (s *AccountService) Logout(ctx context.Context, token string) error {
	return s.sessions.DeleteByToken(ctx, token)
}

// issueSession mints a bearer token and persists the matching session row.
func (s *AccountService) issueSession(ctx context.Context, tx *gorm.DB, user *models.User) (*AuthResult, error) {
	token, err := s.jwt.GenerateAccessToken(user.ID, user.Email)
	if err != nil {
		return nil, fmt.Errorf("account service: generate token: %w", err)
	}

	if _, err := s.sessions.Create(ctx, tx, user.ID, token); err != nil {
		return nil, err
	}

	return &AuthResult{Token: token, User: user.Public()}, nil
}

func normalizeEmail(email string) string {
	return strings.ToLower(strings.TrimSpace(email))
}

// splitName splits a provider display name on the first whitespace: first
// token becomes the first name, the remainder the last name.
func splitName(name string) (string, string) {
	fields := strings.Fields(strings.TrimSpace(name))
	if len(fields) == 0 {
		return "", ""
	}
	return fields[0], strings.Join(fields[1:], " ")
}

func setProviderID(user *models.User, provider, providerID string) {
	switch provider {
	case social.ProviderGoogle:
		user.GoogleID = providerID
	case social.ProviderFacebook:
		user.FacebookID = providerID
	}
}

func providerIDOf(user *models.User, provider string) string {
	switch provider {
	case social.ProviderGoogle:
		return user.GoogleID
	case social.ProviderFacebook:
		return user.FacebookID
	}
	return ""
}
