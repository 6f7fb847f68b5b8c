package app

import (
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	iauth "github.com/codecourse/server/internal/auth"
)

func TestLoadConfigFromFile(t *testing.T) {
	path := filepath.Join("testdata")
	cfg, err := LoadConfig(path)
	require.NoError(t, err)

	require.Equal(t, 9090, cfg.Server.Port)
	require.Equal(t, "debug", cfg.Server.LogLevel)

	require.Equal(t, "postgres", cfg.Database.Driver)
	require.Equal(t, "db.example.com", cfg.Database.Postgres.Host)
	require.Equal(t, 5433, cfg.Database.Postgres.Port)

	require.Equal(t, "jwt-secret", cfg.Auth.JWT.Secret)
	require.Equal(t, "codecourse-test", cfg.Auth.JWT.Issuer)
	require.Equal(t, 24*time.Hour, cfg.Auth.JWT.TTL)
	require.Equal(t, 30*time.Minute, cfg.Auth.JWT.ShortTTL)
	require.Equal(t, 24*time.Hour, cfg.Auth.Session.TTL)

	require.True(t, cfg.Social.Google.Enabled)
	require.Equal(t, "google-client-id", cfg.Social.Google.ClientID)
	require.Equal(t, 5*time.Second, cfg.Social.Google.Timeout)
	require.True(t, cfg.Social.Facebook.Enabled)

	require.True(t, cfg.Email.SMTP.Enabled)
	require.Equal(t, "smtp.example.com", cfg.Email.SMTP.Host)
	require.Equal(t, 2525, cfg.Email.SMTP.Port)
	require.Equal(t, "no-reply@example.com", cfg.Email.SMTP.From)
	require.True(t, cfg.Email.SMTP.UseTLS)
	require.Equal(t, 15*time.Second, cfg.Email.SMTP.Timeout)
	require.Equal(t, "admin@example.com", cfg.Email.Admin)

	require.False(t, cfg.Monitoring.Prometheus.Enabled)
	require.Equal(t, "@daily", cfg.Maintenance.Schedule)
}

func TestLoadConfigDefaults(t *testing.T) {
	cfg, err := LoadConfig(t.TempDir())
	require.NoError(t, err)

	require.Equal(t, 3000, cfg.Server.Port)
	require.Equal(t, "info", cfg.Server.LogLevel)
	require.Equal(t, "sqlite", cfg.Database.Driver)
	require.Equal(t, 168*time.Hour, cfg.Auth.JWT.TTL)
	require.False(t, cfg.Social.Google.Enabled)
	require.False(t, cfg.Email.SMTP.Enabled)
	require.True(t, cfg.Monitoring.Prometheus.Enabled)
	require.Equal(t, "/metrics", cfg.Monitoring.Prometheus.Endpoint)
	require.Equal(t, "@hourly", cfg.Maintenance.Schedule)
}

func TestConfigAdapters(t *testing.T) {
	cfg := Config{
		Database: DatabaseConfig{
			Driver: "postgres",
			Postgres: DBAuthConfig{
				Host:     "db.example.com",
				Port:     5433,
				Database: "codecourse",
				Username: "course",
				Password: "secret",
			},
		},
		Auth: AuthConfig{
			JWT: JWTSettings{
				Secret:   "secret",
				Issuer:   "issuer",
				TTL:      30 * time.Minute,
				ShortTTL: 5 * time.Minute,
			},
		},
		Email: EmailConfig{
			SMTP: SMTPConfig{
				Enabled: true,
				Host:    "smtp.example.com",
				Port:    2525,
				From:    "no-reply@example.com",
			},
		},
	}

	dbCfg := cfg.DatabaseSettings()
	require.Equal(t, "db.example.com", dbCfg.Host)
	require.Equal(t, 5433, dbCfg.Port)
	require.Equal(t, "codecourse", dbCfg.Name)
	require.Equal(t, "course", dbCfg.User)

	jwtCfg := cfg.JWTSettings()
	require.Equal(t, iauth.JWTConfig{
		Secret:         "secret",
		Issuer:         "issuer",
		AccessTokenTTL: 30 * time.Minute,
		ShortTokenTTL:  5 * time.Minute,
	}, jwtCfg)

	// Session TTL falls back to the JWT lifetime when unset.
	sessionCfg := cfg.SessionSettings()
	require.Equal(t, 30*time.Minute, sessionCfg.TokenTTL)

	smtp := cfg.SMTPSettings()
	require.True(t, smtp.Enabled)
	require.Equal(t, "smtp.example.com", smtp.Host)
	require.Equal(t, 2525, smtp.Port)
	require.Equal(t, "no-reply@example.com", smtp.From)
}
