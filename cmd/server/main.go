package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"path/filepath"
	"strings"
	"syscall"
	"time"

	"go.uber.org/zap"
	"gorm.io/gorm"

	"github.com/codecourse/server/internal/api"
	"github.com/codecourse/server/internal/app"
	"github.com/codecourse/server/internal/app/maintenance"
	iauth "github.com/codecourse/server/internal/auth"
	"github.com/codecourse/server/internal/auth/social"
	"github.com/codecourse/server/internal/database"
	"github.com/codecourse/server/internal/services"
	"github.com/codecourse/server/pkg/logger"
	"github.com/codecourse/server/pkg/mail"
)

const shutdownTimeout = 15 * time.Second

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM, syscall.SIGQUIT)
	defer stop()

	if err := run(ctx, os.Args[1:]); err != nil {
		if errors.Is(err, flag.ErrHelp) {
			os.Exit(0)
		}
		fmt.Fprintf(os.Stderr, "error: %v\n", err)
		os.Exit(1)
	}
}

func run(ctx context.Context, args []string) error {
	fs := flag.NewFlagSet("codecourse-server", flag.ContinueOnError)
	fs.SetOutput(os.Stdout)

	var configPath string
	fs.StringVar(&configPath, "config", "", "Path to configuration directory or file")

	if err := fs.Parse(args); err != nil {
		return err
	}

	cfg, err := loadApplicationConfig(configPath)
	if err != nil {
		return err
	}

	if err := app.ConfigureLogging(cfg.Server.LogLevel); err != nil {
		return fmt.Errorf("configure logging: %w", err)
	}
	defer logger.Sync() // best effort

	log := logger.WithModule("bootstrap")

	cfg.Auth.JWT.Secret = strings.TrimSpace(cfg.Auth.JWT.Secret)
	if cfg.Auth.JWT.Secret == "" {
		return errors.New("auth.jwt.secret must be configured")
	}

	db, err := initialiseDatabase(cfg)
	if err != nil {
		return err
	}
	defer closeDatabase(db, log)

	jwtService, err := iauth.NewJWTService(cfg.JWTSettings())
	if err != nil {
		return fmt.Errorf("initialise jwt service: %w", err)
	}

	sessionSvc, err := iauth.NewSessionService(db, cfg.SessionSettings())
	if err != nil {
		return fmt.Errorf("initialise session service: %w", err)
	}

	notifier, err := buildNotifier(cfg, log)
	if err != nil {
		return err
	}

	var googleVerifier services.GoogleTokenVerifier
	if cfg.Social.Google.Enabled {
		gv, gvErr := social.NewGoogleVerifier(cfg.GoogleSettings())
		if gvErr != nil {
			return fmt.Errorf("initialise google verifier: %w", gvErr)
		}
		googleVerifier = gv
	}

	var facebookVerifier services.FacebookTokenVerifier
	if cfg.Social.Facebook.Enabled {
		facebookVerifier = social.NewFacebookVerifier(cfg.FacebookSettings())
	}

	accountSvc, err := services.NewAccountService(db, jwtService, sessionSvc, notifier, googleVerifier, facebookVerifier)
	if err != nil {
		return fmt.Errorf("initialise account service: %w", err)
	}

	verificationSvc, err := services.NewVerificationService(db, jwtService, sessionSvc, notifier)
	if err != nil {
		return fmt.Errorf("initialise verification service: %w", err)
	}

	resetSvc, err := services.NewResetService(db, sessionSvc, notifier)
	if err != nil {
		return fmt.Errorf("initialise reset service: %w", err)
	}

	progressSvc, err := services.NewProgressService(db)
	if err != nil {
		return fmt.Errorf("initialise progress service: %w", err)
	}

	contactSvc, err := services.NewContactService(db, notifier)
	if err != nil {
		return fmt.Errorf("initialise contact service: %w", err)
	}

	if cfg.Maintenance.Enabled {
		cleaner := maintenance.NewCleaner(sessionSvc, verificationSvc, resetSvc,
			maintenance.WithSchedule(cfg.Maintenance.Schedule))
		if err := cleaner.Start(); err != nil {
			return fmt.Errorf("start maintenance jobs: %w", err)
		}
		defer func() {
			stopCtx := cleaner.Stop()
			if err := cleaner.RunOnce(stopCtx); err != nil {
				log.Warn("maintenance shutdown cleanup failed", zap.Error(err))
			}
		}()
	}

	metricsEndpoint := ""
	if cfg.Monitoring.Prometheus.Enabled {
		metricsEndpoint = cfg.Monitoring.Prometheus.Endpoint
	}

	router, err := api.NewRouter(api.Deps{
		DB:              db,
		JWT:             jwtService,
		Sessions:        sessionSvc,
		Accounts:        accountSvc,
		Verification:    verificationSvc,
		Resets:          resetSvc,
		Progress:        progressSvc,
		Contact:         contactSvc,
		MetricsEndpoint: metricsEndpoint,
	})
	if err != nil {
		return fmt.Errorf("build api router: %w", err)
	}

	server := &http.Server{
		Addr:    fmt.Sprintf(":%d", cfg.Server.Port),
		Handler: router,
	}

	serverErr := make(chan error, 1)
	go func() {
		log.Info("server listening", zap.String("addr", server.Addr))
		if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			serverErr <- err
		}
		close(serverErr)
	}()

	select {
	case <-ctx.Done():
		log.Info("shutdown signal received")
	case err := <-serverErr:
		if err != nil {
			return fmt.Errorf("server error: %w", err)
		}
		return nil
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancel()

	if err := server.Shutdown(shutdownCtx); err != nil && !errors.Is(err, http.ErrServerClosed) {
		return fmt.Errorf("graceful shutdown: %w", err)
	}

	if err, ok := <-serverErr; ok && err != nil {
		return fmt.Errorf("server error: %w", err)
	}

	log.Info("server stopped gracefully")
	return nil
}

func loadApplicationConfig(path string) (*app.Config, error) {
	switch {
	case strings.TrimSpace(path) == "":
		return app.LoadConfig()
	default:
		info, err := os.Stat(path)
		if err == nil {
			if info.IsDir() {
				return app.LoadConfig(path)
			}
			return app.LoadConfig(filepath.Dir(path))
		}
		if errors.Is(err, os.ErrNotExist) {
			return nil, fmt.Errorf("config path %q does not exist", path)
		}
		return nil, fmt.Errorf("stat config path: %w", err)
	}
}

// buildNotifier wires the SMTP mailer behind the async notifier. When SMTP is
// disabled the notifier is nil and every mail hook becomes a no-op.
func buildNotifier(cfg *app.Config, log *zap.Logger) (*mail.Notifier, error) {
	if !cfg.Email.SMTP.Enabled {
		log.Info("smtp disabled; outbound email is off")
		return nil, nil
	}

	mailer, err := mail.NewSMTPMailer(cfg.SMTPSettings())
	if err != nil {
		return nil, fmt.Errorf("initialise smtp mailer: %w", err)
	}

	return mail.NewNotifier(mailer, cfg.Email.Admin), nil
}

func initialiseDatabase(cfg *app.Config) (*gorm.DB, error) {
	dbCfg := cfg.DatabaseSettings()
	db, err := database.OpenAndMigrate(dbCfg)
	if err != nil {
		return nil, fmt.Errorf("open database: %w", err)
	}

	log := logger.WithModule("database")
	log.Info("database connected", zap.String("driver", strings.ToLower(strings.TrimSpace(dbCfg.Driver))))

	return db, nil
}

func closeDatabase(db *gorm.DB, log *zap.Logger) {
	if db == nil {
		return
	}

	if err := database.Close(db); err != nil {
		log.Warn("failed to close database", zap.Error(err))
	}
}
