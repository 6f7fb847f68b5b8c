package mail

import (
	"context"
	"errors"
	"time"

	"go.uber.org/zap"

	"github.com/codecourse/server/pkg/logger"
	"github.com/codecourse/server/pkg/metrics"
)

const defaultDispatchTimeout = 15 * time.Second

// Notifier dispatches best-effort notification emails. Delivery failures are
// logged and counted, never surfaced to request handlers.
type Notifier struct {
	mailer  Mailer
	admin   string
	timeout time.Duration
	log     *zap.Logger
}

// NewNotifier wraps a Mailer. The admin address receives operational notices
// (new registrations, logins, contact submissions).
func NewNotifier(mailer Mailer, adminAddress string) *Notifier {
	return &Notifier{
		mailer:  mailer,
		admin:   adminAddress,
		timeout: defaultDispatchTimeout,
		log:     logger.WithModule("mail"),
	}
}

// Dispatch sends a message asynchronously, fire-and-forget.
func (n *Notifier) Dispatch(msg Message) {
	if n == nil || n.mailer == nil {
		return
	}

	go func() {
		ctx, cancel := context.WithTimeout(context.Background(), n.timeout)
		defer cancel()

		n.observe(n.mailer.Send(ctx, msg), msg.Subject)
	}()
}

// NotifyAdmin sends an operational notice to the configured admin address.
// No-op when no admin address is configured.
func (n *Notifier) NotifyAdmin(subject, body string) {
	if n == nil || n.admin == "" {
		return
	}
	n.Dispatch(Message{To: []string{n.admin}, Subject: subject, Body: body})
}

// Send delivers a message synchronously with a bounded timeout and returns
// the delivery error. Used where the caller needs to know dispatch failed,
// such as falling back to showing a verification code in the response.
func (n *Notifier) Send(ctx context.Context, msg Message) error {
	if n == nil || n.mailer == nil {
		return ErrSMTPDisabled
	}

	ctx, cancel := context.WithTimeout(ctx, n.timeout)
	defer cancel()

	err := n.mailer.Send(ctx, msg)
	n.observe(err, msg.Subject)
	return err
}

func (n *Notifier) observe(err error, subject string) {
	switch {
	case err == nil:
		metrics.EmailsDispatched.WithLabelValues("sent").Inc()
	case errors.Is(err, ErrSMTPDisabled):
		metrics.EmailsDispatched.WithLabelValues("disabled").Inc()
	default:
		metrics.EmailsDispatched.WithLabelValues("failed").Inc()
		n.log.Warn("email dispatch failed", zap.String("subject", subject), zap.Error(err))
	}
}
