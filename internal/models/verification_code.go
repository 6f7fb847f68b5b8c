package models

import "time"

// Verification code kinds.
const (
	CodeKindEmail = "email"
	CodeKindPhone = "phone"
)

// VerificationCode is a one-time 6-digit code proving control of an email
// address or phone number. At most one unused, unexpired code exists per
// (subject, kind); issuing a new code deletes prior unused ones.
type VerificationCode struct {
	BaseModel

	Subject   string    `gorm:"not null;index:idx_codes_subject_kind" json:"subject"`
	Kind      string    `gorm:"not null;index:idx_codes_subject_kind" json:"kind"`
	Code      string    `gorm:"not null" json:"-"`
	ExpiresAt time.Time `gorm:"index" json:"expires_at"`
	Used      bool      `gorm:"default:false" json:"used"`
}
