package services

import (
	"context"
	"testing"

	"github.com/stretchr/testify/require"
	"gorm.io/gorm"

	"github.com/codecourse/server/internal/auth/social"
	"github.com/codecourse/server/internal/models"
	apperrors "github.com/codecourse/server/pkg/errors"
)

func newAccountService(t *testing.T, db *gorm.DB, google GoogleTokenVerifier, facebook FacebookTokenVerifier) *AccountService {
	t.Helper()

	clock := newTestClock()
	jwt, sessions := newAuthServices(t, db, clock)

	svc, err := NewAccountService(db, jwt, sessions, nil, google, facebook)
	require.NoError(t, err)
	return svc
}

func validRegistration() RegisterInput {
	return RegisterInput{
		FirstName:  "Ali",
		LastName:   "Hassan",
		Email:      "a@x.com",
		Password:   "pw123456",
		Country:    "EG",
		Experience: models.ExperienceBeginner,
	}
}

func TestRegisterAndLogin(t *testing.T) {
	db := openServiceTestDB(t)
	svc := newAccountService(t, db, nil, nil)

	user, err := svc.Register(context.Background(), validRegistration())
	require.NoError(t, err)
	require.NotEmpty(t, user.ID)
	require.NotEqual(t, "pw123456", user.Password)

	result, err := svc.Login(context.Background(), "a@x.com", "pw123456")
	require.NoError(t, err)
	require.NotEmpty(t, result.Token)
	require.Equal(t, "a@x.com", result.User.Email)

	// A session row backs the issued token.
	var count int64
	require.NoError(t, db.Model(&models.Session{}).Where("token = ?", result.Token).Count(&count).Error)
	require.EqualValues(t, 1, count)
}

func TestRegisterDuplicateEmail(t *testing.T) {
	db := openServiceTestDB(t)
	svc := newAccountService(t, db, nil, nil)

	_, err := svc.Register(context.Background(), validRegistration())
	require.NoError(t, err)

	_, err = svc.Register(context.Background(), validRegistration())
	require.ErrorIs(t, err, apperrors.ErrUserExists)

	var count int64
	require.NoError(t, db.Model(&models.User{}).Count(&count).Error)
	require.EqualValues(t, 1, count)
}

func TestRegisterDuplicateEmailRace(t *testing.T) {
	db := openServiceTestDB(t)
	svc := newAccountService(t, db, nil, nil)

	// Simulate a racing registration: a conflicting row lands after the
	// duplicate pre-check has passed, right before the insert runs. The
	// unique email index catches it and the error maps to USER_EXISTS.
	seeded := false
	require.NoError(t, db.Callback().Create().Before("gorm:create").Register("rival_insert", func(tx *gorm.DB) {
		if seeded || tx.Statement.Table != "users" {
			return
		}
		seeded = true
		require.NoError(t, tx.Session(&gorm.Session{NewDB: true}).Exec(
			"INSERT INTO users (id, first_name, last_name, email) VALUES (?, ?, ?, ?)",
			"rival-id", "Rival", "Hassan", "a@x.com",
		).Error)
	}))
	t.Cleanup(func() { _ = db.Callback().Create().Remove("rival_insert") })

	_, err := svc.Register(context.Background(), validRegistration())
	require.ErrorIs(t, err, apperrors.ErrUserExists)
}

func TestRegisterRejectsWeakPassword(t *testing.T) {
	db := openServiceTestDB(t)
	svc := newAccountService(t, db, nil, nil)

	input := validRegistration()
	input.Password = "short"

	_, err := svc.Register(context.Background(), input)
	require.ErrorIs(t, err, apperrors.ErrWeakPassword)
}

func TestRegisterRejectsInvalidEmail(t *testing.T) {
	db := openServiceTestDB(t)
	svc := newAccountService(t, db, nil, nil)

	input := validRegistration()
	input.Email = "not-an-email"

	_, err := svc.Register(context.Background(), input)
	require.Error(t, err)
}

func TestLoginInvalidCredentials(t *testing.T) {
	db := openServiceTestDB(t)
	svc := newAccountService(t, db, nil, nil)

	_, err := svc.Register(context.Background(), validRegistration())
	require.NoError(t, err)

	// Wrong password and unknown email produce the same failure.
	_, err = svc.Login(context.Background(), "a@x.com", "wrong-password")
	require.ErrorIs(t, err, apperrors.ErrInvalidCredentials)

	_, err = svc.Login(context.Background(), "nobody@x.com", "pw123456")
	require.ErrorIs(t, err, apperrors.ErrInvalidCredentials)
}

func TestChangePasswordFlow(t *testing.T) {
	db := openServiceTestDB(t)
	svc := newAccountService(t, db, nil, nil)

	user, err := svc.Register(context.Background(), validRegistration())
	require.NoError(t, err)

	require.ErrorIs(t,
		svc.ChangePassword(context.Background(), user.ID, "wrong", "newpw1234"),
		apperrors.ErrIncorrectPassword)

	require.ErrorIs(t,
		svc.ChangePassword(context.Background(), user.ID, "pw123456", "short"),
		apperrors.ErrWeakPassword)

	require.NoError(t, svc.ChangePassword(context.Background(), user.ID, "pw123456", "newpw1234"))

	_, err = svc.Login(context.Background(), "a@x.com", "pw123456")
	require.ErrorIs(t, err, apperrors.ErrInvalidCredentials)

	_, err = svc.Login(context.Background(), "a@x.com", "newpw1234")
	require.NoError(t, err)
}

func TestUpdateProfileAllowList(t *testing.T) {
	db := openServiceTestDB(t)
	svc := newAccountService(t, db, nil, nil)

	user, err := svc.Register(context.Background(), validRegistration())
	require.NoError(t, err)

	_, err = svc.UpdateProfile(context.Background(), user.ID, UpdateProfileInput{})
	require.ErrorIs(t, err, apperrors.ErrNoFieldsProvided)

	phone := "+20100000000"
	newsletter := true
	view, err := svc.UpdateProfile(context.Background(), user.ID, UpdateProfileInput{
		Phone:      &phone,
		Newsletter: &newsletter,
	})
	require.NoError(t, err)
	require.Equal(t, phone, view.Phone)
	require.True(t, view.Newsletter)
}

func TestUpdateProfileEmailConflict(t *testing.T) {
	db := openServiceTestDB(t)
	svc := newAccountService(t, db, nil, nil)

	_, err := svc.Register(context.Background(), validRegistration())
	require.NoError(t, err)

	other := validRegistration()
	other.Email = "b@x.com"
	second, err := svc.Register(context.Background(), other)
	require.NoError(t, err)

	taken := "a@x.com"
	_, err = svc.UpdateProfile(context.Background(), second.ID, UpdateProfileInput{Email: &taken})
	require.ErrorIs(t, err, apperrors.ErrUserExists)
}

func TestDeleteAccountCascades(t *testing.T) {
	db := openServiceTestDB(t)
	svc := newAccountService(t, db, nil, nil)

	user, err := svc.Register(context.Background(), validRegistration())
	require.NoError(t, err)

	_, err = svc.Login(context.Background(), "a@x.com", "pw123456")
	require.NoError(t, err)

	require.NoError(t, db.Create(&models.CourseProgress{
		UserID: user.ID, CourseName: "go-basics", LessonNumber: 1, Completed: true,
	}).Error)
	require.NoError(t, db.Create(&models.PasswordResetToken{
		Email: user.Email, Token: "reset-token",
	}).Error)

	require.NoError(t, svc.DeleteAccount(context.Background(), user.ID))

	for _, model := range []any{&models.User{}, &models.Session{}, &models.CourseProgress{}, &models.PasswordResetToken{}} {
		var count int64
		require.NoError(t, db.Model(model).Count(&count).Error)
		require.Zero(t, count)
	}
}

func TestGoogleLoginCreatesAccount(t *testing.T) {
	db := openServiceTestDB(t)
	google := &stubGoogleVerifier{profile: &social.Profile{
		ProviderID: "g-123",
		Email:      "sara@x.com",
		Name:       "Sara Mahmoud Ali",
		Picture:    "https://cdn.example.com/p.jpg",
	}}
	svc := newAccountService(t, db, google, nil)

	result, err := svc.GoogleLogin(context.Background(), "id-token")
	require.NoError(t, err)
	require.NotEmpty(t, result.Token)
	require.Equal(t, "Sara", result.User.FirstName)
	require.Equal(t, "Mahmoud Ali", result.User.LastName)
	require.True(t, result.User.EmailVerified)

	var user models.User
	require.NoError(t, db.Where("email = ?", "sara@x.com").Take(&user).Error)
	require.Equal(t, "g-123", user.GoogleID)
	require.Empty(t, user.Password)
}

func TestGoogleLoginLinksExistingAccount(t *testing.T) {
	db := openServiceTestDB(t)
	google := &stubGoogleVerifier{profile: &social.Profile{
		ProviderID: "g-123",
		Email:      "a@x.com",
		Name:       "Ali Hassan",
	}}
	svc := newAccountService(t, db, google, nil)

	registered, err := svc.Register(context.Background(), validRegistration())
	require.NoError(t, err)

	result, err := svc.GoogleLogin(context.Background(), "id-token")
	require.NoError(t, err)
	require.Equal(t, registered.ID, result.User.ID)

	var user models.User
	require.NoError(t, db.Take(&user, "id = ?", registered.ID).Error)
	require.Equal(t, "g-123", user.GoogleID)
	require.True(t, user.EmailVerified)

	// Only one account for the email after linking.
	var count int64
	require.NoError(t, db.Model(&models.User{}).Count(&count).Error)
	require.EqualValues(t, 1, count)
}

func TestFacebookLoginRejectsInvalidToken(t *testing.T) {
	db := openServiceTestDB(t)
	facebook := &stubFacebookVerifier{err: social.ErrInvalidToken}
	svc := newAccountService(t, db, nil, facebook)

	_, err := svc.FacebookLogin(context.Background(), "bad-token")
	require.ErrorIs(t, err, apperrors.ErrInvalidSocialToken)
}

func TestSocialRegisterDuplicateEmail(t *testing.T) {
	db := openServiceTestDB(t)
	svc := newAccountService(t, db, nil, nil)

	_, err := svc.Register(context.Background(), validRegistration())
	require.NoError(t, err)

	_, err = svc.SocialRegister(context.Background(), SocialRegisterInput{
		FirstName: "Ali",
		LastName:  "Hassan",
		Email:     "a@x.com",
		GoogleID:  "g-999",
	})
	require.ErrorIs(t, err, apperrors.ErrUserExists)
}

func TestLogoutIsIdempotent(t *testing.T) {
	db := openServiceTestDB(t)
	svc := newAccountService(t, db, nil, nil)

	_, err := svc.Register(context.Background(), validRegistration())
	require.NoError(t, err)

	result, err := svc.Login(context.Background(), "a@x.com", "pw123456")
	require.NoError(t, err)

	require.NoError(t, svc.Logout(context.Background(), result.Token))
	require.NoError(t, svc.Logout(context.Background(), result.Token))
}
