package maintenance

import (
	"context"
	"time"

	"github.com/robfig/cron/v3"
	"go.uber.org/multierr"
	"go.uber.org/zap"

	iauth "github.com/codecourse/server/internal/auth"
	"github.com/codecourse/server/internal/services"
	"github.com/codecourse/server/pkg/logger"
)

const defaultSchedule = "@hourly"

// Cleaner coordinates background maintenance: purging expired sessions,
// stale verification codes, and dead password-reset tokens. Rows are only
// ever rejected lazily at read time, so this is the sole place they are
// physically removed.
type Cleaner struct {
	sessions     *iauth.SessionService
	verification *services.VerificationService
	resets       *services.ResetService
	cron         *cron.Cron
	log          *zap.Logger
	schedule     string
}

// Option customises the Cleaner.
type Option func(*Cleaner)

// WithCron injects a preconfigured cron instance, primarily for testing.
func WithCron(c *cron.Cron) Option {
	return func(cleaner *Cleaner) {
		if c != nil {
			cleaner.cron = c
		}
	}
}

// WithSchedule overrides the cron expression for all cleanup jobs.
func WithSchedule(spec string) Option {
	return func(cleaner *Cleaner) {
		if spec != "" {
			cleaner.schedule = spec
		}
	}
}

// NewCleaner constructs a Cleaner. Any nil dependency results in the
// corresponding cleanup being skipped.
func NewCleaner(sessions *iauth.SessionService, verification *services.VerificationService, resets *services.ResetService, opts ...Option) *Cleaner {
	cleaner := &Cleaner{
		sessions:     sessions,
		verification: verification,
		resets:       resets,
		schedule:     defaultSchedule,
		log:          logger.WithModule("maintenance"),
	}

	for _, opt := range opts {
		opt(cleaner)
	}

	if cleaner.cron == nil {
		cleaner.cron = cron.New(cron.WithLogger(cron.DiscardLogger))
	}

	return cleaner
}

// Start registers the cleanup job with the cron scheduler and launches it.
func (c *Cleaner) Start() error {
	if c.sessions == nil && c.verification == nil && c.resets == nil {
		return nil
	}

	if _, err := c.cron.AddFunc(c.schedule, func() {
		if err := c.RunOnce(context.Background()); err != nil {
			c.log.Warn("cleanup run failed", zap.Error(err))
		}
	}); err != nil {
		return err
	}

	c.cron.Start()
	return nil
}

// Stop halts the underlying scheduler, waiting for any running jobs to complete.
func (c *Cleaner) Stop() context.Context {
	if c.cron == nil {
		return context.Background()
	}
	return c.cron.Stop()
}

// RunOnce executes all configured cleanup routines sequentially. Also used
// during graceful shutdown.
func (c *Cleaner) RunOnce(ctx context.Context) error {
	if ctx == nil {
		ctx = context.Background()
	}

	started := time.Now()
	var errs error
	var sessions, codes, tokens int64

	if c.sessions != nil {
		n, err := c.sessions.CleanupExpired(ctx)
		if err != nil {
			errs = multierr.Append(errs, err)
		}
		sessions = n
	}

	if c.verification != nil {
		n, err := c.verification.CleanupExpired(ctx)
		if err != nil {
			errs = multierr.Append(errs, err)
		}
		codes = n
	}

	if c.resets != nil {
		n, err := c.resets.CleanupExpired(ctx)
		if err != nil {
			errs = multierr.Append(errs, err)
		}
		tokens = n
	}

	c.log.Info("cleanup completed",
		zap.Int64("sessions", sessions),
		zap.Int64("verification_codes", codes),
		zap.Int64("reset_tokens", tokens),
		zap.Duration("duration", time.Since(started)),
	)

	return errs
}
