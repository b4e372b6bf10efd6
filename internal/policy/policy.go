// Package policy decides who may read or change which resource.
//
// Predicates take already-loaded records. Callers must preload the relations a
// predicate looks through (Case.AssignedLawyer, ConsultationBooking.Lawyer,
// EvidenceDocument.Case.AssignedLawyer, ChatMessage.Case.AssignedLawyer).
// List endpoints use the gorm scopes in scopes.go, which encode the same rules in SQL.
package policy

import (
	"github.com/gofiber/fiber/v2"
	"github.com/google/uuid"

	"github.com/aldoetobex/legal-aid-backend/pkg/apperror"
	"github.com/aldoetobex/legal-aid-backend/pkg/models"
)

// Actor is the authenticated caller.
type Actor struct {
	ID      uuid.UUID
	Role    models.Role
	IsStaff bool
}

// IsAdmin reports admin rights (admin role or staff flag).
func (a Actor) IsAdmin() bool { return a.Role == models.RoleAdmin || a.IsStaff }

// IsLawyer reports the lawyer role.
func (a Actor) IsLawyer() bool { return a.Role == models.RoleLawyer }

/* ================================ Cases ================================= */

func assignedTo(a Actor, lp *models.LawyerProfile) bool {
	return lp != nil && lp.UserID == a.ID
}

// CanReadCase: admin, the owning citizen, or the assigned lawyer's account.
func CanReadCase(a Actor, cs models.Case) bool {
	if a.IsAdmin() {
		return true
	}
	return cs.CitizenID == a.ID || assignedTo(a, cs.AssignedLawyer)
}

// CanUpdateCase follows the read rule.
func CanUpdateCase(a Actor, cs models.Case) bool { return CanReadCase(a, cs) }

// CanDeleteCase: admin or the owning citizen.
func CanDeleteCase(a Actor, cs models.Case) bool {
	return a.IsAdmin() || cs.CitizenID == a.ID
}

// CaseOwner picks the citizen a new case is attributed to. Only admins may
// name someone else; everyone else always files for themselves.
func CaseOwner(a Actor, requested *uuid.UUID) uuid.UUID {
	if a.IsAdmin() && requested != nil && *requested != uuid.Nil {
		return *requested
	}
	return a.ID
}

/* =============================== Bookings =============================== */

// CanReadBooking: admin, the booking citizen, or the booked lawyer's account.
func CanReadBooking(a Actor, b models.ConsultationBooking) bool {
	if a.IsAdmin() {
		return true
	}
	return b.CitizenID == a.ID || b.Lawyer.UserID == a.ID
}

// CanUpdateBooking follows the read rule: either party or an admin.
func CanUpdateBooking(a Actor, b models.ConsultationBooking) bool { return CanReadBooking(a, b) }

// BookingCitizen resolves the citizen of a new booking. An unspecified citizen
// defaults to the caller; only admins may book on someone else's behalf.
func BookingCitizen(a Actor, requested *uuid.UUID) (uuid.UUID, error) {
	if requested == nil || *requested == uuid.Nil || *requested == a.ID {
		return a.ID, nil
	}
	if a.IsAdmin() {
		return *requested, nil
	}
	return uuid.Nil, apperror.Forbidden(apperror.CodeNotOwner, "You can only book consultations for yourself")
}

/* =============================== Documents ============================== */

// CanReadDocument: admin, the uploader, or anyone who can read the linked case.
func CanReadDocument(a Actor, d models.EvidenceDocument) bool {
	if a.IsAdmin() || d.UploaderID == a.ID {
		return true
	}
	return CanReadCase(a, d.Case)
}

// CanDeleteDocument follows the read rule.
func CanDeleteDocument(a Actor, d models.EvidenceDocument) bool { return CanReadDocument(a, d) }

/* ================================ Chat ================================== */

// CanReadMessage: admin, sender, receiver, or anyone who can read the linked case.
func CanReadMessage(a Actor, m models.ChatMessage) bool {
	if a.IsAdmin() || m.SenderID == a.ID {
		return true
	}
	if m.ReceiverID != nil && *m.ReceiverID == a.ID {
		return true
	}
	return m.Case != nil && CanReadCase(a, *m.Case)
}

// CanMarkMessageRead: only the receiver (or an admin) flips the read flag.
func CanMarkMessageRead(a Actor, m models.ChatMessage) bool {
	if a.IsAdmin() {
		return true
	}
	if m.ReceiverID != nil {
		return *m.ReceiverID == a.ID
	}
	return m.SenderID != a.ID && CanReadMessage(a, m)
}

/* ================================ Lawyers =============================== */

// CanSeeLawyer mirrors the listing rule for a single profile.
func CanSeeLawyer(a Actor, lp models.LawyerProfile) bool {
	switch {
	case a.IsAdmin():
		return true
	case a.IsLawyer():
		return lp.UserID == a.ID
	default:
		return lp.VerificationStatus == models.VerificationVerified
	}
}

// CanReplaceSchedule: only the owning lawyer.
func CanReplaceSchedule(a Actor, lp models.LawyerProfile) bool {
	return a.IsLawyer() && lp.UserID == a.ID
}

// CanSetVerification: only admins.
func CanSetVerification(a Actor) bool { return a.IsAdmin() }

// RequireVerifiedLawyer gates lawyer-only aggregate views.
func RequireVerifiedLawyer(lp models.LawyerProfile) error {
	if lp.VerificationStatus == models.VerificationVerified {
		return nil
	}
	return apperror.Forbidden(apperror.CodeNotVerified, "Your lawyer profile is not verified yet").
		With("status", lp.VerificationStatus)
}

/* ============================= Notifications ============================ */

// NotificationOwner picks whose notifications a query covers. Admins may pass
// another user's id; without one, and for everyone else, it is the actor.
func NotificationOwner(a Actor, requested string) (uuid.UUID, error) {
	if !a.IsAdmin() || requested == "" {
		return a.ID, nil
	}
	id, err := uuid.Parse(requested)
	if err != nil {
		return uuid.Nil, apperror.Validation("invalid userId").With("errors", fiber.Map{"userId": []string{"Invalid UUID format"}})
	}
	return id, nil
}

// CanReadNotification: admin or the recipient.
func CanReadNotification(a Actor, n models.Notification) bool {
	return a.IsAdmin() || n.UserID == a.ID
}

/* ================================ Users ================================= */

// CanReadUser: admin or self.
func CanReadUser(a Actor, id uuid.UUID) bool { return a.IsAdmin() || a.ID == id }
