package models

// Experience levels accepted at registration.
const (
	ExperienceBeginner     = "beginner"
	ExperienceIntermediate = "intermediate"
	ExperienceAdvanced     = "advanced"
	ExperienceExpert       = "expert"
)

// User is a course-platform account. Password is empty for accounts created
// purely through social sign-in; such accounts must carry at least one
// external identity to remain usable for login.
type User struct {
	BaseModel

	FirstName string `gorm:"not null" json:"first_name"`
	LastName  string `gorm:"not null" json:"last_name"`
	Email     string `gorm:"uniqueIndex;not null" json:"email"`
	Phone     string `json:"phone,omitempty"`
	Country   string `json:"country,omitempty"`

	Experience string `json:"experience,omitempty"`
	Password   string `json:"-"`
	Newsletter bool   `gorm:"default:false" json:"newsletter"`

	EmailVerified bool `gorm:"default:false" json:"email_verified"`
	PhoneVerified bool `gorm:"default:false" json:"phone_verified"`

	ProfileImage string `json:"profile_image,omitempty"`

	// Provider-assigned subject ids, at most one per provider.
	GoogleID   string `gorm:"index" json:"-"`
	FacebookID string `gorm:"index" json:"-"`

	Sessions []Session        `gorm:"foreignKey:UserID" json:"-"`
	Progress []CourseProgress `gorm:"foreignKey:UserID" json:"-"`
}

// PublicView is the user representation returned by the API. It never carries
// the password hash or provider subject ids.
type PublicView struct {
	ID            string `json:"id"`
	FirstName     string `json:"first_name"`
	LastName      string `json:"last_name"`
	Email         string `json:"email"`
	Phone         string `json:"phone,omitempty"`
	Country       string `json:"country,omitempty"`
	Experience    string `json:"experience,omitempty"`
	Newsletter    bool   `json:"newsletter"`
	EmailVerified bool   `json:"email_verified"`
	PhoneVerified bool   `json:"phone_verified"`
	ProfileImage  string `json:"profile_image,omitempty"`
}

// Public projects the user into its API representation.
func (u *User) Public() PublicView {
	return PublicView{
		ID:            u.ID,
		FirstName:     u.FirstName,
		LastName:      u.LastName,
		Email:         u.Email,
		Phone:         u.Phone,
		Country:       u.Country,
		Experience:    u.Experience,
		Newsletter:    u.Newsletter,
		EmailVerified: u.EmailVerified,
		PhoneVerified: u.PhoneVerified,
		ProfileImage:  u.ProfileImage,
	}
}
