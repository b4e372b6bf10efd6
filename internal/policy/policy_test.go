package policy

import (
	"testing"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/aldoetobex/legal-aid-backend/pkg/apperror"
	"github.com/aldoetobex/legal-aid-backend/pkg/models"
)

type world struct {
	owner, stranger, lawyer, otherLawyer, admin, staff Actor
	lawyerProfile, otherProfile                        models.LawyerProfile
	assigned, unassigned                               models.Case
}

func newWorld() world {
	w := world{
		owner:       Actor{ID: uuid.New(), Role: models.RoleCitizen},
		stranger:    Actor{ID: uuid.New(), Role: models.RoleCitizen},
		lawyer:      Actor{ID: uuid.New(), Role: models.RoleLawyer},
		otherLawyer: Actor{ID: uuid.New(), Role: models.RoleLawyer},
		admin:       Actor{ID: uuid.New(), Role: models.RoleAdmin},
		staff:       Actor{ID: uuid.New(), Role: models.RoleCitizen, IsStaff: true},
	}
	w.lawyerProfile = models.LawyerProfile{ID: uuid.New(), UserID: w.lawyer.ID, VerificationStatus: models.VerificationVerified}
	w.otherProfile = models.LawyerProfile{ID: uuid.New(), UserID: w.otherLawyer.ID, VerificationStatus: models.VerificationPending}
	w.assigned = models.Case{ID: uuid.New(), CitizenID: w.owner.ID, AssignedLawyerID: &w.lawyerProfile.ID, AssignedLawyer: &w.lawyerProfile}
	w.unassigned = models.Case{ID: uuid.New(), CitizenID: w.owner.ID}
	return w
}

func TestCaseAccess_StrangersDeniedAdminsGranted(t *testing.T) {
	w := newWorld()

	for i := 0; i < 50; i++ {
		stranger := Actor{ID: uuid.New(), Role: models.RoleCitizen}
		assert.False(t, CanReadCase(stranger, w.assigned))
		assert.False(t, CanReadCase(stranger, w.unassigned))
		assert.False(t, CanUpdateCase(stranger, w.assigned))
	}

	for _, cs := range []models.Case{w.assigned, w.unassigned} {
		assert.True(t, CanReadCase(w.admin, cs))
		assert.True(t, CanReadCase(w.staff, cs))
		assert.True(t, CanDeleteCase(w.admin, cs))
		assert.True(t, CanReadCase(w.owner, cs))
	}
}

func TestCaseAccess_AssignedLawyerOnly(t *testing.T) {
	w := newWorld()

	assert.True(t, CanReadCase(w.lawyer, w.assigned))
	assert.True(t, CanUpdateCase(w.lawyer, w.assigned))
	assert.False(t, CanDeleteCase(w.lawyer, w.assigned))

	assert.False(t, CanReadCase(w.lawyer, w.unassigned))
	assert.False(t, CanReadCase(w.otherLawyer, w.assigned))
}

func TestCaseOwner(t *testing.T) {
	w := newWorld()
	other := w.stranger.ID

	assert.Equal(t, w.owner.ID, CaseOwner(w.owner, nil))
	assert.Equal(t, w.owner.ID, CaseOwner(w.owner, &other))
	assert.Equal(t, other, CaseOwner(w.admin, &other))
	assert.Equal(t, w.admin.ID, CaseOwner(w.admin, nil))
}

func TestBookingAccess(t *testing.T) {
	w := newWorld()
	b := models.ConsultationBooking{CitizenID: w.owner.ID, LawyerID: w.lawyerProfile.ID, Lawyer: w.lawyerProfile}

	assert.True(t, CanReadBooking(w.owner, b))
	assert.True(t, CanReadBooking(w.lawyer, b))
	assert.True(t, CanReadBooking(w.admin, b))
	assert.False(t, CanReadBooking(w.stranger, b))
	assert.False(t, CanUpdateBooking(w.otherLawyer, b))
}

func TestBookingCitizen(t *testing.T) {
	w := newWorld()
	other := w.stranger.ID

	got, err := BookingCitizen(w.owner, nil)
	require.NoError(t, err)
	assert.Equal(t, w.owner.ID, got)

	self := w.owner.ID
	got, err = BookingCitizen(w.owner, &self)
	require.NoError(t, err)
	assert.Equal(t, w.owner.ID, got)

	_, err = BookingCitizen(w.owner, &other)
	require.Error(t, err)
	assert.True(t, apperror.IsCode(err, apperror.CodeNotOwner))

	got, err = BookingCitizen(w.admin, &other)
	require.NoError(t, err)
	assert.Equal(t, other, got)
}

func TestDocumentAccess(t *testing.T) {
	w := newWorld()
	byOwner := models.EvidenceDocument{UploaderID: w.owner.ID, CaseID: w.assigned.ID, Case: w.assigned}
	byStranger := models.EvidenceDocument{UploaderID: w.stranger.ID, CaseID: w.unassigned.ID, Case: w.unassigned}

	assert.True(t, CanReadDocument(w.lawyer, byOwner))
	assert.True(t, CanReadDocument(w.owner, byOwner))
	assert.False(t, CanReadDocument(w.stranger, byOwner))
	assert.False(t, CanDeleteDocument(w.otherLawyer, byOwner))

	// Uploader keeps access, case owner too.
	assert.True(t, CanReadDocument(w.stranger, byStranger))
	assert.True(t, CanReadDocument(w.owner, byStranger))
	assert.False(t, CanReadDocument(w.lawyer, byStranger))
}

func TestMessageAccess(t *testing.T) {
	w := newWorld()
	receiver := w.lawyer.ID
	direct := models.ChatMessage{SenderID: w.owner.ID, ReceiverID: &receiver}
	onCase := models.ChatMessage{SenderID: w.stranger.ID, CaseID: &w.assigned.ID, Case: &w.assigned}

	assert.True(t, CanReadMessage(w.owner, direct))
	assert.True(t, CanReadMessage(w.lawyer, direct))
	assert.False(t, CanReadMessage(w.stranger, direct))
	assert.True(t, CanReadMessage(w.admin, direct))

	assert.True(t, CanReadMessage(w.owner, onCase))
	assert.True(t, CanReadMessage(w.lawyer, onCase))
	assert.False(t, CanReadMessage(w.otherLawyer, onCase))

	assert.True(t, CanMarkMessageRead(w.lawyer, direct))
	assert.False(t, CanMarkMessageRead(w.owner, direct))
}

func TestLawyerVisibility(t *testing.T) {
	w := newWorld()

	assert.True(t, CanSeeLawyer(w.owner, w.lawyerProfile))
	assert.False(t, CanSeeLawyer(w.owner, w.otherProfile))
	assert.True(t, CanSeeLawyer(w.admin, w.otherProfile))

	// A lawyer only sees their own profile in listings.
	assert.True(t, CanSeeLawyer(w.otherLawyer, w.otherProfile))
	assert.False(t, CanSeeLawyer(w.otherLawyer, w.lawyerProfile))

	assert.True(t, CanReplaceSchedule(w.lawyer, w.lawyerProfile))
	assert.False(t, CanReplaceSchedule(w.lawyer, w.otherProfile))
	assert.False(t, CanReplaceSchedule(w.admin, w.lawyerProfile))

	assert.True(t, CanSetVerification(w.admin))
	assert.False(t, CanSetVerification(w.lawyer))
}

func TestRequireVerifiedLawyer(t *testing.T) {
	w := newWorld()
	require.NoError(t, RequireVerifiedLawyer(w.lawyerProfile))

	err := RequireVerifiedLawyer(w.otherProfile)
	require.Error(t, err)
	e, ok := apperror.As(err)
	require.True(t, ok)
	assert.Equal(t, 403, e.Status)
	assert.Equal(t, apperror.CodeNotVerified, e.Code)
	assert.Equal(t, models.VerificationPending, e.Details["status"])
}

func TestNotificationOwner(t *testing.T) {
	w := newWorld()

	got, err := NotificationOwner(w.owner, w.stranger.ID.String())
	require.NoError(t, err)
	assert.Equal(t, w.owner.ID, got)

	// Without userId an admin gets their own inbox, not everyone's.
	got, err = NotificationOwner(w.admin, "")
	require.NoError(t, err)
	assert.Equal(t, w.admin.ID, got)

	got, err = NotificationOwner(w.admin, w.stranger.ID.String())
	require.NoError(t, err)
	assert.Equal(t, w.stranger.ID, got)

	_, err = NotificationOwner(w.admin, "nope")
	assert.Error(t, err)
}
