package api

import (
	"bytes"
	"encoding/json"
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
	"github.com/codecourse/server/internal/services"
)

func newTestRouter(t *testing.T) (*gin.Engine, *gorm.DB) {
	t.Helper()
	gin.SetMode(gin.TestMode)

	name := strings.NewReplacer("/", "_", " ", "_").Replace(t.Name())
	db, err := gorm.Open(sqlite.Open(fmt.Sprintf("file:%s?mode=memory&cache=shared", name)), &gorm.Config{TranslateError: true})
	require.NoError(t, err)
	require.NoError(t, database.AutoMigrate(db))
	sqlDB, err := db.DB()
	require.NoError(t, err)
	t.Cleanup(func() { _ = sqlDB.Close() })

	jwt, err := iauth.NewJWTService(iauth.JWTConfig{Secret: "router-secret", Issuer: "router-test"})
	require.NoError(t, err)

	sessions, err := iauth.NewSessionService(db, iauth.SessionConfig{TokenTTL: time.Hour})
	require.NoError(t, err)

	accounts, err := services.NewAccountService(db, jwt, sessions, nil, nil, nil)
	require.NoError(t, err)

	verification, err := services.NewVerificationService(db, jwt, sessions, nil)
	require.NoError(t, err)

	resets, err := services.NewResetService(db, sessions, nil)
	require.NoError(t, err)

	progress, err := services.NewProgressService(db)
	require.NoError(t, err)

	contact, err := services.NewContactService(db, nil)
	require.NoError(t, err)

	r, err := NewRouter(Deps{
		DB:              db,
		JWT:             jwt,
		Sessions:        sessions,
		Accounts:        accounts,
		Verification:    verification,
		Resets:          resets,
		Progress:        progress,
		Contact:         contact,
		MetricsEndpoint: "/metrics",
	})
	require.NoError(t, err)

	return r, db
}

type envelope struct {
	Success bool            `json:"success"`
	Data    json.RawMessage `json:"data"`
	Error   *struct {
		Code    string `json:"code"`
		Message string `json:"message"`
	} `json:"error"`
}

func doJSON(t *testing.T, r *gin.Engine, method, path, token string, body any) (*httptest.ResponseRecorder, envelope) {
	t.Helper()

	var reader *bytes.Reader
	if body != nil {
		raw, err := json.Marshal(body)
		require.NoError(t, err)
		reader = bytes.NewReader(raw)
	} else {
		reader = bytes.NewReader(nil)
	}

	req := httptest.NewRequest(method, path, reader)
	req.Header.Set("Content-Type", "application/json")
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}

	w := httptest.NewRecorder()
	r.ServeHTTP(w, req)

	var env envelope
	if w.Body.Len() > 0 {
		require.NoError(t, json.Unmarshal(w.Body.Bytes(), &env))
	}
	return w, env
}

func registerAndLogin(t *testing.T, r *gin.Engine) string {
	t.Helper()

	w, _ := doJSON(t, r, http.MethodPost, "/api/register", "", gin.H{
		"firstName":  "Ali",
		"lastName":   "Hassan",
		"email":      "a@x.com",
		"password":   "pw123456",
		"country":    "EG",
		"experience": "beginner",
	})
	require.Equal(t, http.StatusCreated, w.Code)

	w, env := doJSON(t, r, http.MethodPost, "/api/login", "", gin.H{
		"email":    "a@x.com",
		"password": "pw123456",
	})
	require.Equal(t, http.StatusOK, w.Code)

	var payload struct {
		Token string `json:"token"`
	}
	require.NoError(t, json.Unmarshal(env.Data, &payload))
	require.NotEmpty(t, payload.Token)
	return payload.Token
}

func TestHealthEndpoint(t *testing.T) {
	r, _ := newTestRouter(t)

	w, env := doJSON(t, r, http.MethodGet, "/health", "", nil)
	require.Equal(t, http.StatusOK, w.Code)
	require.True(t, env.Success)
}

func TestRegisterLoginProfileFlow(t *testing.T) {
	r, _ := newTestRouter(t)
	token := registerAndLogin(t, r)

	w, env := doJSON(t, r, http.MethodGet, "/api/profile", token, nil)
	require.Equal(t, http.StatusOK, w.Code)

	var payload struct {
		User struct {
			Email     string `json:"email"`
			FirstName string `json:"first_name"`
		} `json:"user"`
	}
	require.NoError(t, json.Unmarshal(env.Data, &payload))
	require.Equal(t, "a@x.com", payload.User.Email)
	require.Equal(t, "Ali", payload.User.FirstName)
}

func TestProfileRequiresAuth(t *testing.T) {
	r, _ := newTestRouter(t)

	w, env := doJSON(t, r, http.MethodGet, "/api/profile", "", nil)
	require.Equal(t, http.StatusUnauthorized, w.Code)
	require.False(t, env.Success)
	require.Equal(t, "UNAUTHORIZED", env.Error.Code)
}

func TestLogoutRevokesToken(t *testing.T) {
	r, _ := newTestRouter(t)
	token := registerAndLogin(t, r)

	w, _ := doJSON(t, r, http.MethodPost, "/api/logout", token, nil)
	require.Equal(t, http.StatusOK, w.Code)

	// The JWT is still unexpired but its session row is gone.
	w, _ = doJSON(t, r, http.MethodGet, "/api/profile", token, nil)
	require.Equal(t, http.StatusUnauthorized, w.Code)
}

func TestCourseProgressFlow(t *testing.T) {
	r, _ := newTestRouter(t)
	token := registerAndLogin(t, r)

	for _, lesson := range []int{1, 2} {
		w, _ := doJSON(t, r, http.MethodPost, "/api/course-progress", token, gin.H{
			"courseName":   "go-basics",
			"lessonNumber": lesson,
		})
		require.Equal(t, http.StatusOK, w.Code)
	}

	w, env := doJSON(t, r, http.MethodGet, "/api/course-progress", token, nil)
	require.Equal(t, http.StatusOK, w.Code)

	var payload struct {
		Courses []struct {
			CourseName       string  `json:"course_name"`
			CompletedLessons int     `json:"completed_lessons"`
			Percentage       float64 `json:"percentage"`
		} `json:"courses"`
	}
	require.NoError(t, json.Unmarshal(env.Data, &payload))
	require.Len(t, payload.Courses, 1)
	require.Equal(t, "go-basics", payload.Courses[0].CourseName)
	require.Equal(t, 2, payload.Courses[0].CompletedLessons)
	require.InDelta(t, 100.0, payload.Courses[0].Percentage, 0.001)
}

func TestVerificationCodeFlow(t *testing.T) {
	r, _ := newTestRouter(t)

	// SMTP is off in tests, so the code comes back in the response.
	w, env := doJSON(t, r, http.MethodPost, "/api/send-email-verification", "", gin.H{
		"email": "a@x.com",
	})
	require.Equal(t, http.StatusOK, w.Code)

	var issued struct {
		Code      string `json:"code"`
		Delivered bool   `json:"delivered"`
	}
	require.NoError(t, json.Unmarshal(env.Data, &issued))
	require.False(t, issued.Delivered)
	require.Len(t, issued.Code, 6)

	w, env = doJSON(t, r, http.MethodPost, "/api/verify-email-code", "", gin.H{
		"email": "a@x.com",
		"code":  issued.Code,
	})
	require.Equal(t, http.StatusOK, w.Code)
	require.True(t, env.Success)

	// Second redemption of the same code fails.
	w, env = doJSON(t, r, http.MethodPost, "/api/verify-email-code", "", gin.H{
		"email": "a@x.com",
		"code":  issued.Code,
	})
	require.Equal(t, http.StatusBadRequest, w.Code)
	require.Equal(t, "INVALID_CODE", env.Error.Code)
}

func TestContactSubmission(t *testing.T) {
	r, _ := newTestRouter(t)

	w, env := doJSON(t, r, http.MethodPost, "/api/contact", "", gin.H{
		"firstName": "Ali",
		"lastName":  "Hassan",
		"email":     "a@x.com",
		"subject":   "Question",
		"message":   "When does the next course start?",
	})
	require.Equal(t, http.StatusCreated, w.Code)
	require.True(t, env.Success)

	// Missing fields are rejected before hitting the store.
	w, env = doJSON(t, r, http.MethodPost, "/api/contact", "", gin.H{
		"firstName": "Ali",
	})
	require.Equal(t, http.StatusBadRequest, w.Code)
	require.False(t, env.Success)
}

func TestUnknownRouteReturnsJSON404(t *testing.T) {
	r, _ := newTestRouter(t)

	w, env := doJSON(t, r, http.MethodGet, "/api/does-not-exist", "", nil)
	require.Equal(t, http.StatusNotFound, w.Code)
	require.False(t, env.Success)
}

func TestMetricsEndpointExposed(t *testing.T) {
	r, _ := newTestRouter(t)

	w := httptest.NewRecorder()
	r.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/metrics", nil))
	require.Equal(t, http.StatusOK, w.Code)
	require.Contains(t, w.Body.String(), "codecourse_")
}

func TestRouterRequiresDependencies(t *testing.T) {
	_, err := NewRouter(Deps{})
	require.Error(t, err)
}
