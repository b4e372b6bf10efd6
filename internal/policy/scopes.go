package policy

import (
	"strings"

	"github.com/gofiber/fiber/v2"
	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/aldoetobex/legal-aid-backend/pkg/apperror"
	"github.com/aldoetobex/legal-aid-backend/pkg/models"
)

const lawyerProfilesOf = "SELECT id FROM lawyer_profiles WHERE user_id = ?"

// VisibleCases restricts a cases query to what a may read.
func VisibleCases(a Actor) func(*gorm.DB) *gorm.DB {
	return func(db *gorm.DB) *gorm.DB {
		if a.IsAdmin() {
			return db
		}
		return db.Where("cases.citizen_id = ? OR cases.assigned_lawyer_id IN ("+lawyerProfilesOf+")", a.ID, a.ID)
	}
}

// VisibleBookings restricts a consultation_bookings query to what a may read.
func VisibleBookings(a Actor) func(*gorm.DB) *gorm.DB {
	return func(db *gorm.DB) *gorm.DB {
		if a.IsAdmin() {
			return db
		}
		return db.Where("consultation_bookings.citizen_id = ? OR consultation_bookings.lawyer_id IN ("+lawyerProfilesOf+")", a.ID, a.ID)
	}
}

func visibleCaseIDs(db *gorm.DB, a Actor) *gorm.DB {
	return db.Session(&gorm.Session{NewDB: true}).
		Model(&models.Case{}).
		Select("cases.id").
		Scopes(VisibleCases(a))
}

// VisibleDocuments restricts an evidence_documents query to what a may read.
func VisibleDocuments(a Actor) func(*gorm.DB) *gorm.DB {
	return func(db *gorm.DB) *gorm.DB {
		if a.IsAdmin() {
			return db
		}
		return db.Where("evidence_documents.uploader_id = ? OR evidence_documents.case_id IN (?)", a.ID, visibleCaseIDs(db, a))
	}
}

// VisibleMessages restricts a chat_messages query to what a may read.
func VisibleMessages(a Actor) func(*gorm.DB) *gorm.DB {
	return func(db *gorm.DB) *gorm.DB {
		if a.IsAdmin() {
			return db
		}
		return db.Where(
			"chat_messages.sender_id = ? OR chat_messages.receiver_id = ? OR chat_messages.case_id IN (?)",
			a.ID, a.ID, visibleCaseIDs(db, a),
		)
	}
}

// VisibleLawyers applies the listing rule: admins see everyone, a lawyer sees
// only themself, everyone else sees verified profiles only.
func VisibleLawyers(a Actor) func(*gorm.DB) *gorm.DB {
	return func(db *gorm.DB) *gorm.DB {
		switch {
		case a.IsAdmin():
			return db
		case a.IsLawyer():
			return db.Where("lawyer_profiles.user_id = ?", a.ID)
		default:
			return db.Where("lawyer_profiles.verification_status = ?", models.VerificationVerified)
		}
	}
}

// LawyerFilter holds the optional listing filters. Non-empty filters are ANDed.
type LawyerFilter struct {
	Specialization string // slug, case-insensitive exact
	Location       string // substring of the chamber address
	Query          string // names or account email
}

// FilterLawyers applies f to a lawyer_profiles query.
func FilterLawyers(f LawyerFilter) func(*gorm.DB) *gorm.DB {
	return func(db *gorm.DB) *gorm.DB {
		if s := strings.TrimSpace(f.Specialization); s != "" {
			db = db.Where(`lawyer_profiles.id IN (
				SELECT m.lawyer_profile_id FROM lawyer_specializations_map m
				JOIN legal_specializations s ON s.id = m.legal_specialization_id
				WHERE LOWER(s.slug) = LOWER(?))`, s)
		}
		if loc := strings.TrimSpace(f.Location); loc != "" {
			db = db.Where("lawyer_profiles.chamber_address ILIKE ?", "%"+escapeLike(loc)+"%")
		}
		if q := strings.TrimSpace(f.Query); q != "" {
			like := "%" + escapeLike(q) + "%"
			db = db.Where(`(lawyer_profiles.full_name_en ILIKE ? OR lawyer_profiles.full_name_bn ILIKE ?
				OR lawyer_profiles.user_id IN (SELECT id FROM users WHERE email ILIKE ?))`, like, like, like)
		}
		return db
	}
}

// NotificationsOf restricts a notifications query to one user.
func NotificationsOf(userID uuid.UUID) func(*gorm.DB) *gorm.DB {
	return func(db *gorm.DB) *gorm.DB {
		return db.Where("notifications.user_id = ?", userID)
	}
}

// PartyFilter narrows case and booking lists to one citizen and/or one lawyer.
// LawyerID may be either the lawyer's user id or their profile id.
type PartyFilter struct {
	ClientID *uuid.UUID
	LawyerID *uuid.UUID
}

// ParsePartyFilter reads the clientId and lawyerId query values.
func ParsePartyFilter(clientID, lawyerID string) (PartyFilter, error) {
	var f PartyFilter
	errs := fiber.Map{}
	if s := strings.TrimSpace(clientID); s != "" {
		if id, err := uuid.Parse(s); err == nil {
			f.ClientID = &id
		} else {
			errs["clientId"] = []string{"Invalid UUID format"}
		}
	}
	if s := strings.TrimSpace(lawyerID); s != "" {
		if id, err := uuid.Parse(s); err == nil {
			f.LawyerID = &id
		} else {
			errs["lawyerId"] = []string{"Invalid UUID format"}
		}
	}
	if len(errs) > 0 {
		return PartyFilter{}, apperror.Validation("Validation failed").With("errors", errs)
	}
	return f, nil
}

// partyScope applies f given the table's citizen and lawyer-profile columns.
func partyScope(f PartyFilter, citizenCol, lawyerCol string) func(*gorm.DB) *gorm.DB {
	return func(db *gorm.DB) *gorm.DB {
		if f.ClientID != nil {
			db = db.Where(citizenCol+" = ?", *f.ClientID)
		}
		if f.LawyerID != nil {
			db = db.Where("("+lawyerCol+" = ? OR "+lawyerCol+" IN ("+lawyerProfilesOf+"))", *f.LawyerID, *f.LawyerID)
		}
		return db
	}
}

// CasesOfParties applies f to a cases query (lawyer = assigned lawyer).
func CasesOfParties(f PartyFilter) func(*gorm.DB) *gorm.DB {
	return partyScope(f, "cases.citizen_id", "cases.assigned_lawyer_id")
}

// BookingsOfParties applies f to a consultation_bookings query.
func BookingsOfParties(f PartyFilter) func(*gorm.DB) *gorm.DB {
	return partyScope(f, "consultation_bookings.citizen_id", "consultation_bookings.lawyer_id")
}

func escapeLike(s string) string {
	return strings.NewReplacer(`\`, `\\`, `%`, `\%`, `_`, `\_`).Replace(s)
}
