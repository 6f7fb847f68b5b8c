package models

// ContactMessage is an append-only inbound contact-form submission.
type ContactMessage struct {
	BaseModel

	FirstName  string `gorm:"not null" json:"first_name"`
	LastName   string `gorm:"not null" json:"last_name"`
	Email      string `gorm:"not null;index" json:"email"`
	Phone      string `json:"phone,omitempty"`
	Subject    string `gorm:"not null" json:"subject"`
	Message    string `gorm:"not null" json:"message"`
	Newsletter bool   `gorm:"default:false" json:"newsletter"`
}
