// Package accounts resolves the role-specific profile attached to a user.
package accounts

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/aldoetobex/legal-aid-backend/pkg/models"
)

// ErrNoProfile means the account exists but its profile row is missing.
var ErrNoProfile = errors.New("profile not found")

// Profile is exactly one of the citizen, lawyer or admin variants, chosen by Kind.
type Profile struct {
	Kind    models.Role
	Citizen *models.CitizenProfile
	Lawyer  *models.LawyerProfile
	Admin   *models.AdminProfile
}

// Load fetches the profile matching u.Role.
func Load(ctx context.Context, db *gorm.DB, u models.User) (Profile, error) {
	db = db.WithContext(ctx)
	p := Profile{Kind: u.Role}

	var err error
	switch u.Role {
	case models.RoleCitizen:
		p.Citizen = &models.CitizenProfile{}
		err = db.First(p.Citizen, "user_id = ?", u.ID).Error
	case models.RoleLawyer:
		p.Lawyer = &models.LawyerProfile{}
		err = db.Preload("Specializations").First(p.Lawyer, "user_id = ?", u.ID).Error
	case models.RoleAdmin:
		p.Admin = &models.AdminProfile{}
		err = db.First(p.Admin, "user_id = ?", u.ID).Error
	default:
		return Profile{}, fmt.Errorf("unknown role %q", u.Role)
	}
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return Profile{Kind: u.Role}, ErrNoProfile
	}
	if err != nil {
		return Profile{}, err
	}
	return p, nil
}

// LawyerByUser loads the lawyer profile owned by a user account.
func LawyerByUser(ctx context.Context, db *gorm.DB, userID uuid.UUID) (models.LawyerProfile, error) {
	var lp models.LawyerProfile
	err := db.WithContext(ctx).First(&lp, "user_id = ?", userID).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return lp, ErrNoProfile
	}
	return lp, err
}

// Empty reports whether no variant is set.
func (p Profile) Empty() bool { return p.Citizen == nil && p.Lawyer == nil && p.Admin == nil }

// DisplayName is the name shown to other users.
func (p Profile) DisplayName() string {
	switch {
	case p.Citizen != nil:
		return p.Citizen.FullNameEn
	case p.Lawyer != nil:
		return p.Lawyer.FullNameEn
	case p.Admin != nil:
		return p.Admin.FullName
	}
	return ""
}

// PhotoKey is the storage key of the avatar, if any.
func (p Profile) PhotoKey() string {
	switch {
	case p.Citizen != nil:
		return p.Citizen.ProfilePhotoKey
	case p.Lawyer != nil:
		return p.Lawyer.ProfilePhotoKey
	}
	return ""
}

// MarshalJSON renders only the active variant.
func (p Profile) MarshalJSON() ([]byte, error) {
	switch {
	case p.Citizen != nil:
		return json.Marshal(p.Citizen)
	case p.Lawyer != nil:
		return json.Marshal(p.Lawyer)
	case p.Admin != nil:
		return json.Marshal(p.Admin)
	}
	return []byte("null"), nil
}
