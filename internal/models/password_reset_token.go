package models

import "time"

// PasswordResetToken is single-use: the row is deleted on first successful
// redemption.
type PasswordResetToken struct {
	BaseModel

	Email     string    `gorm:"not null;index" json:"email"`
	Token     string    `gorm:"uniqueIndex;not null" json:"-"`
	ExpiresAt time.Time `gorm:"index" json:"expires_at"`
}
