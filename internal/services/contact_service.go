package services

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"gorm.io/gorm"

	"github.com/codecourse/server/internal/models"
	apperrors "github.com/codecourse/server/pkg/errors"
	"github.com/codecourse/server/pkg/mail"
)

// ContactInput describes a contact-form submission.
type ContactInput struct {
	FirstName  string
	LastName   string
	Email      string
	Phone      string
	Subject    string
	Message    string
	Newsletter bool
}

// ContactService stores inbound contact messages. Append-only; messages have
// no lifecycle beyond creation.
type ContactService struct {
	db       *gorm.DB
	notifier *mail.Notifier
}

// NewContactService constructs a ContactService.
func NewContactService(db *gorm.DB, notifier *mail.Notifier) (*ContactService, error) {
	if db == nil {
		return nil, errors.New("contact service: db is required")
	}
	return &ContactService{db: db, notifier: notifier}, nil
}

// Submit persists the message and notifies the admin best-effort.
func (s *ContactService) Submit(ctx context.Context, input ContactInput) (*models.ContactMessage, error) {
	input.FirstName = strings.TrimSpace(input.FirstName)
	input.LastName = strings.TrimSpace(input.LastName)
	input.Subject = strings.TrimSpace(input.Subject)
	input.Message = strings.TrimSpace(input.Message)
	email := normalizeEmail(input.Email)

	if input.FirstName == "" || input.LastName == "" || email == "" || input.Subject == "" || input.Message == "" {
		return nil, apperrors.NewBadRequest("firstName, lastName, email, subject and message are required")
	}

	message := &models.ContactMessage{
		FirstName:  input.FirstName,
		LastName:   input.LastName,
		Email:      email,
		Phone:      strings.TrimSpace(input.Phone),
		Subject:    input.Subject,
		Message:    input.Message,
		Newsletter: input.Newsletter,
	}

	if err := s.db.WithContext(ctx).Create(message).Error; err != nil {
		return nil, fmt.Errorf("contact service: create message: %w", err)
	}

	s.notifier.NotifyAdmin("New contact message: "+message.Subject,
		fmt.Sprintf("From: %s %s <%s>\nPhone: %s\n\n%s\n",
			message.FirstName, message.LastName, message.Email, message.Phone, message.Message))

	return message, nil
}
