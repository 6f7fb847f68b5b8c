package api

import (
	"fmt"

	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"gorm.io/gorm"

	iauth "github.com/codecourse/server/internal/auth"
	"github.com/codecourse/server/internal/handlers"
	"github.com/codecourse/server/internal/middleware"
	"github.com/codecourse/server/internal/services"
)

// Deps bundles everything the router needs. All service fields are required;
// MetricsEndpoint is optional and hides the Prometheus handler when empty.
type Deps struct {
	DB           *gorm.DB
	JWT          *iauth.JWTService
	Sessions     *iauth.SessionService
	Accounts     *services.AccountService
	Verification *services.VerificationService
	Resets       *services.ResetService
	Progress     *services.ProgressService
	Contact      *services.ContactService

	MetricsEndpoint string
}

// NewRouter builds the Gin engine, wires middleware and registers all routes.
func NewRouter(deps Deps) (*gin.Engine, error) {
	if deps.DB == nil {
		return nil, fmt.Errorf("database handle must be provided")
	}
	if deps.JWT == nil {
		return nil, fmt.Errorf("jwt service must be provided")
	}
	if deps.Sessions == nil {
		return nil, fmt.Errorf("session service must be provided")
	}
	if deps.Accounts == nil || deps.Verification == nil || deps.Resets == nil ||
		deps.Progress == nil || deps.Contact == nil {
		return nil, fmt.Errorf("all services must be provided")
	}

	r := gin.New()

	// Global middleware
	r.Use(middleware.Recovery())
	r.Use(middleware.Logger())
	r.Use(middleware.Metrics())
	r.Use(middleware.SecurityHeaders())
	r.Use(middleware.CORS())

	// Health endpoint (public)
	r.GET("/health", handlers.Health())

	authHandler := handlers.NewAuthHandler(deps.Accounts)
	profileHandler := handlers.NewProfileHandler(deps.Accounts)
	socialHandler := handlers.NewSocialHandler(deps.Accounts)
	verificationHandler := handlers.NewVerificationHandler(deps.Verification)
	resetHandler := handlers.NewPasswordResetHandler(deps.Resets)
	progressHandler := handlers.NewProgressHandler(deps.Progress)
	contactHandler := handlers.NewContactHandler(deps.Contact)

	// Public routes
	public := r.Group("/api")
	{
		public.POST("/register", authHandler.Register)
		public.POST("/login", authHandler.Login)
		public.POST("/google-auth", socialHandler.GoogleAuth)
		public.POST("/facebook-auth", socialHandler.FacebookAuth)
		public.POST("/social-register", socialHandler.SocialRegister)
		public.POST("/send-email-verification", verificationHandler.SendEmailCode)
		public.POST("/send-phone-verification", verificationHandler.SendPhoneCode)
		public.POST("/verify-email-code", verificationHandler.VerifyEmailCode)
		public.POST("/verify-phone-code", verificationHandler.VerifyPhoneCode)
		public.POST("/forgot-password", resetHandler.Forgot)
		public.POST("/reset-password", resetHandler.Reset)
		public.POST("/contact", contactHandler.Submit)
	}

	// Protected routes: bearer token plus a live session row
	authed := r.Group("/api")
	authed.Use(middleware.Auth(deps.JWT, deps.Sessions))
	{
		authed.GET("/profile", profileHandler.Get)
		authed.PUT("/profile", profileHandler.Update)
		authed.POST("/change-password", authHandler.ChangePassword)
		authed.DELETE("/delete-account", authHandler.DeleteAccount)
		authed.POST("/logout", authHandler.Logout)
		authed.GET("/course-progress", progressHandler.List)
		authed.POST("/course-progress", progressHandler.Save)
	}

	// Metrics endpoint
	if deps.MetricsEndpoint != "" {
		r.GET(deps.MetricsEndpoint, gin.WrapH(promhttp.Handler()))
	}

	// NotFound fallback
	r.NoRoute(middleware.NotFoundHandler)

	return r, nil
}
