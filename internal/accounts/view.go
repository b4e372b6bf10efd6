package accounts

import (
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/aldoetobex/legal-aid-backend/pkg/models"
)

// URLer turns a storage key into a link (storage.ObjectStore satisfies it).
type URLer interface {
	PublicURL(key string) string
}

// UserView is the public account shape returned by auth and user endpoints.
type UserView struct {
	ID                 uuid.UUID   `json:"id"`
	Email              string      `json:"email"`
	Phone              string      `json:"phone"`
	Name               string      `json:"name"`
	Role               models.Role `json:"role"`
	LanguagePreference string      `json:"language_preference"`
	IsActive           bool        `json:"is_active"`
	IsVerified         bool        `json:"is_verified"`
	IsStaff            bool        `json:"is_staff"`
	CreatedAt          time.Time   `json:"created_at"`
	Avatar             *string     `json:"avatar"`
	VerificationStatus string      `json:"verification_status"`
	Profile            Profile     `json:"profile"`
}

// NewUserView merges an account with its profile. Lawyers report their profile
// status; everyone else reports VERIFIED or PENDING from the account flag.
func NewUserView(u models.User, p Profile, urls URLer) UserView {
	v := UserView{
		ID:                 u.ID,
		Email:              u.Email,
		Phone:              u.PhoneNumber,
		Name:               p.DisplayName(),
		Role:               u.Role,
		LanguagePreference: u.LanguagePreference,
		IsActive:           u.IsActive,
		IsVerified:         u.IsVerified,
		IsStaff:            u.IsStaff,
		CreatedAt:          u.CreatedAt,
		Profile:            p,
	}
	if v.Name == "" {
		v.Name, _, _ = strings.Cut(u.Email, "@")
	}
	if key := p.PhotoKey(); key != "" && urls != nil {
		url := urls.PublicURL(key)
		v.Avatar = &url
	}
	switch {
	case p.Lawyer != nil:
		v.VerificationStatus = string(p.Lawyer.VerificationStatus)
	case u.IsVerified:
		v.VerificationStatus = string(models.VerificationVerified)
	default:
		v.VerificationStatus = string(models.VerificationPending)
	}
	return v
}
