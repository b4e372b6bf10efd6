package models

import (
	"time"

	"github.com/google/uuid"
)

/* =============================== Enums ================================== */

// Role defines the type of account in the system.
type Role string

const (
	RoleCitizen Role = "citizen"
	RoleLawyer  Role = "lawyer"
	RoleAdmin   Role = "admin"
)

// VerificationStatus is the admin-controlled trust state of a lawyer profile.
type VerificationStatus string

const (
	VerificationPending   VerificationStatus = "PENDING"
	VerificationVerified  VerificationStatus = "VERIFIED"
	VerificationRejected  VerificationStatus = "REJECTED"
	VerificationSuspended VerificationStatus = "SUSPENDED"
)

// BookingType is the modality a weekly availability rule offers.
type BookingType string

const (
	BookingOnline   BookingType = "ONLINE"
	BookingInPerson BookingType = "IN_PERSON"
	BookingBoth     BookingType = "BOTH"
)

// CaseStatus defines lifecycle states for a case. Transitions are not enforced.
type CaseStatus string

const (
	CaseSubmitted    CaseStatus = "SUBMITTED"
	CaseInReview     CaseStatus = "IN_REVIEW"
	CaseDocRequested CaseStatus = "DOC_REQUESTED"
	CaseScheduled    CaseStatus = "SCHEDULED"
	CaseResolved     CaseStatus = "RESOLVED"
	CaseClosed       CaseStatus = "CLOSED"
)

// CasePriority ranks a case for the lawyer dashboard.
type CasePriority string

const (
	PriorityLow      CasePriority = "LOW"
	PriorityMedium   CasePriority = "MEDIUM"
	PriorityHigh     CasePriority = "HIGH"
	PriorityCritical CasePriority = "CRITICAL"
)

// BookingStatus defines lifecycle states for a consultation booking.
type BookingStatus string

const (
	BookingPending     BookingStatus = "PENDING"
	BookingConfirmed   BookingStatus = "CONFIRMED"
	BookingCancelled   BookingStatus = "CANCELLED"
	BookingCompleted   BookingStatus = "COMPLETED"
	BookingRescheduled BookingStatus = "RESCHEDULED"
)

// NotificationType groups notifications for the client UI.
type NotificationType string

const (
	NotifyCaseUpdate NotificationType = "CASE_UPDATE"
	NotifyBooking    NotificationType = "BOOKING"
	NotifySystem     NotificationType = "SYSTEM"
	NotifyReminder   NotificationType = "REMINDER"
	NotifyMessage    NotificationType = "MESSAGE"
)

// PayStatus defines lifecycle states for a consultation payment.
type PayStatus string

const (
	PayInitiated PayStatus = "initiated"
	PayPaid      PayStatus = "paid"
	PayFailed    PayStatus = "failed"
)

/* =============================== Accounts =============================== */

// User is an authenticated identity. Its profile lives in the table matching Role.
type User struct {
	ID                 uuid.UUID `gorm:"type:uuid;default:gen_random_uuid();primaryKey" json:"id"`
	Email              string    `gorm:"uniqueIndex;not null" json:"email"`
	PhoneNumber        string    `gorm:"type:varchar(20);uniqueIndex;not null" json:"phone"`
	PasswordHash       string    `gorm:"not null" json:"-"`
	Role               Role      `gorm:"type:varchar(20);not null" json:"role"`
	IsActive           bool      `gorm:"not null;default:false" json:"is_active"`
	IsVerified         bool      `gorm:"not null;default:false" json:"is_verified"`
	IsStaff            bool      `gorm:"not null;default:false" json:"is_staff"`
	LanguagePreference string    `gorm:"type:varchar(2);default:'BN'" json:"language_preference"`
	CreatedAt          time.Time `json:"created_at"`
	UpdatedAt          time.Time `json:"updated_at"`
}

// CitizenProfile holds citizen-only attributes.
type CitizenProfile struct {
	ID                  uuid.UUID  `gorm:"type:uuid;default:gen_random_uuid();primaryKey" json:"profile_id"`
	UserID              uuid.UUID  `gorm:"type:uuid;uniqueIndex;not null" json:"user_id"`
	User                User       `gorm:"foreignKey:UserID;constraint:OnDelete:CASCADE" json:"-"`
	FullNameEn          string     `gorm:"type:varchar(100);not null" json:"full_name_en"`
	FullNameBn          string     `gorm:"type:varchar(100)" json:"full_name_bn"`
	DateOfBirth         *time.Time `gorm:"type:date" json:"date_of_birth"`
	Gender              string     `gorm:"type:varchar(10)" json:"gender"`
	NIDNumber           string     `gorm:"type:varchar(50)" json:"nid_number"`
	PresentAddress      string     `json:"present_address"`
	PermanentAddress    string     `json:"permanent_address"`
	GeoDivision         string     `gorm:"type:varchar(50)" json:"geo_division"`
	GeoDistrict         string     `gorm:"type:varchar(50)" json:"geo_district"`
	ProfilePhotoKey     string     `json:"-"`
	IdentityDocumentKey string     `json:"-"`
	CreatedAt           time.Time  `json:"created_at"`
	UpdatedAt           time.Time  `json:"updated_at"`
}

// LawyerProfile holds lawyer-only attributes and the verification state.
type LawyerProfile struct {
	ID                      uuid.UUID          `gorm:"type:uuid;default:gen_random_uuid();primaryKey" json:"profile_id"`
	UserID                  uuid.UUID          `gorm:"type:uuid;uniqueIndex;not null" json:"user_id"`
	User                    User               `gorm:"foreignKey:UserID;constraint:OnDelete:CASCADE" json:"-"`
	BarCouncilNumber        string             `gorm:"type:varchar(50);uniqueIndex;not null" json:"bar_council_number"`
	LicenseIssueDate        time.Time          `gorm:"type:date;not null" json:"license_issue_date"`
	FullNameEn              string             `gorm:"type:varchar(100);not null" json:"full_name_en"`
	FullNameBn              string             `gorm:"type:varchar(100)" json:"full_name_bn"`
	BioEn                   string             `json:"bio_en"`
	BioBn                   string             `json:"bio_bn"`
	ChamberAddress          string             `json:"chamber_address"`
	VerificationStatus      VerificationStatus `gorm:"type:varchar(20);not null;default:'PENDING'" json:"verification_status"`
	ProfilePhotoKey         string             `json:"-"`
	VerificationDocumentKey string             `json:"-"`
	IdentityDocumentKey     string             `json:"-"`
	FeeOnlineCents          *int               `json:"consultation_fee_online_cents"`
	FeeOfflineCents         *int               `json:"consultation_fee_offline_cents"`
	RatingAverage           float64            `gorm:"not null;default:0" json:"rating_average"`
	TotalReviews            int                `gorm:"not null;default:0" json:"total_reviews"`
	CreatedAt               time.Time          `json:"created_at"`
	UpdatedAt               time.Time          `json:"updated_at"`

	Specializations   []LegalSpecialization `gorm:"many2many:lawyer_specializations_map;constraint:OnDelete:CASCADE" json:"-"`
	AvailabilityRules []AvailabilityRule    `gorm:"foreignKey:LawyerID;constraint:OnDelete:CASCADE" json:"-"`
}

// AdminProfile holds admin-only attributes.
type AdminProfile struct {
	ID         uuid.UUID `gorm:"type:uuid;default:gen_random_uuid();primaryKey" json:"profile_id"`
	UserID     uuid.UUID `gorm:"type:uuid;uniqueIndex;not null" json:"user_id"`
	User       User      `gorm:"foreignKey:UserID;constraint:OnDelete:CASCADE" json:"-"`
	FullName   string    `gorm:"type:varchar(100);not null" json:"full_name"`
	AdminLevel string    `gorm:"type:varchar(20);default:'MODERATOR'" json:"admin_level"`
	Department string    `gorm:"type:varchar(100)" json:"department"`
	CreatedAt  time.Time `json:"created_at"`
	UpdatedAt  time.Time `json:"updated_at"`
}

// LegalSpecialization is a practice area a lawyer can be listed under.
type LegalSpecialization struct {
	ID            uint      `gorm:"primaryKey" json:"id"`
	NameEn        string    `gorm:"type:varchar(100);not null" json:"name_en"`
	NameBn        string    `gorm:"type:varchar(100)" json:"name_bn"`
	Slug          string    `gorm:"type:varchar(100);uniqueIndex;not null" json:"slug"`
	DescriptionEn string    `json:"description_en"`
	IsActive      bool      `gorm:"not null;default:true" json:"is_active"`
	CreatedAt     time.Time `json:"created_at"`
}

// AvailabilityRule is one recurring weekly block. DayOfWeek: 0=Monday..6=Sunday.
// Times are "HH:MM" in the platform time zone.
type AvailabilityRule struct {
	ID          uint        `gorm:"primaryKey" json:"id"`
	LawyerID    uuid.UUID   `gorm:"type:uuid;not null;index" json:"lawyer_id"`
	DayOfWeek   int         `gorm:"type:smallint;not null" json:"day_of_week"`
	StartTime   string      `gorm:"type:varchar(5);not null" json:"start_time"`
	EndTime     string      `gorm:"type:varchar(5);not null" json:"end_time"`
	BookingType BookingType `gorm:"type:varchar(20);not null;default:'ONLINE'" json:"booking_type"`
	IsActive    bool        `gorm:"not null;default:true" json:"is_active"`
	CreatedAt   time.Time   `json:"created_at"`
	UpdatedAt   time.Time   `json:"updated_at"`
}

/* ============================ Cases & ledger ============================ */

// Case is a legal matter owned by a citizen.
type Case struct {
	ID               uuid.UUID            `gorm:"type:uuid;default:gen_random_uuid();primaryKey" json:"id"`
	CitizenID        uuid.UUID            `gorm:"type:uuid;not null;index" json:"citizen_id"`
	Citizen          User                 `gorm:"foreignKey:CitizenID;constraint:OnDelete:CASCADE" json:"-"`
	AssignedLawyerID *uuid.UUID           `gorm:"type:uuid;index" json:"assigned_lawyer_id"`
	AssignedLawyer   *LawyerProfile       `gorm:"foreignKey:AssignedLawyerID;constraint:OnDelete:SET NULL" json:"-"`
	CategoryID       *uint                `json:"category_id"`
	Category         *LegalSpecialization `gorm:"foreignKey:CategoryID;constraint:OnDelete:SET NULL" json:"-"`
	Title            string               `gorm:"type:varchar(255);not null" json:"title"`
	Description      string               `gorm:"type:text;not null" json:"description"`
	CaseNumber       string               `gorm:"type:varchar(100)" json:"case_number"`
	CourtName        string               `gorm:"type:varchar(255)" json:"court_name"`
	PresidingJudge   string               `gorm:"type:varchar(255)" json:"presiding_judge"`
	RelevantActs     string               `json:"relevant_acts"`
	NextHearingAt    *time.Time           `json:"next_hearing_at"`
	FilingDate       *time.Time           `gorm:"type:date" json:"filing_date"`
	Status           CaseStatus           `gorm:"type:varchar(20);not null;default:'SUBMITTED'" json:"status"`
	Priority         CasePriority         `gorm:"type:varchar(20);not null;default:'MEDIUM'" json:"priority"`
	IsAnonymous      bool                 `gorm:"not null;default:false" json:"is_anonymous"`
	SubmissionDate   time.Time            `json:"submission_date"`
	ResolvedDate     *time.Time           `json:"resolved_date"`
	CreatedAt        time.Time            `json:"created_at"`
	UpdatedAt        time.Time            `json:"updated_at"`
}

// CaseActivityLog is an immutable audit entry for a case.
type CaseActivityLog struct {
	ID            uint64    `gorm:"primaryKey" json:"id"`
	CaseID        uuid.UUID `gorm:"type:uuid;not null;index" json:"case_id"`
	Case          Case      `gorm:"foreignKey:CaseID;constraint:OnDelete:CASCADE" json:"-"`
	ActorID       uuid.UUID `gorm:"type:uuid;not null;index" json:"actor_id"`
	ActionType    string    `gorm:"type:varchar(50);not null" json:"action_type"` // e.g. created, status_changed, lawyer_assigned
	PreviousValue string    `gorm:"type:text" json:"previous_value"`
	NewValue      string    `gorm:"type:text" json:"new_value"`
	Timestamp     time.Time `gorm:"autoCreateTime" json:"timestamp"`
}

// EvidenceDocument is a file attached to a case.
type EvidenceDocument struct {
	ID            uuid.UUID `gorm:"type:uuid;default:gen_random_uuid();primaryKey" json:"id"`
	CaseID        uuid.UUID `gorm:"type:uuid;not null;index" json:"case_id"`
	Case          Case      `gorm:"foreignKey:CaseID;constraint:OnDelete:CASCADE" json:"-"`
	UploaderID    uuid.UUID `gorm:"type:uuid;not null;index" json:"uploader_id"`
	FileName      string    `gorm:"type:varchar(255);not null" json:"file_name"`
	StorageKey    string    `gorm:"type:varchar(512);not null" json:"-"`
	FileSizeBytes int64     `gorm:"not null" json:"file_size_bytes"`
	MimeType      string    `gorm:"type:varchar(100);not null" json:"mime_type"`
	UploadedAt    time.Time `gorm:"autoCreateTime" json:"uploaded_at"`
}

// ConsultationBooking is an appointment between a citizen and a lawyer.
// LawyerID references lawyer_profiles, not users.
type ConsultationBooking struct {
	ID                 uuid.UUID     `gorm:"type:uuid;default:gen_random_uuid();primaryKey" json:"id"`
	CaseID             *uuid.UUID    `gorm:"type:uuid;index" json:"case_id"`
	CitizenID          uuid.UUID     `gorm:"type:uuid;not null;index" json:"citizen_id"`
	Citizen            User          `gorm:"foreignKey:CitizenID;constraint:OnDelete:CASCADE" json:"-"`
	LawyerID           uuid.UUID     `gorm:"type:uuid;not null;index" json:"lawyer_id"`
	Lawyer             LawyerProfile `gorm:"foreignKey:LawyerID;constraint:OnDelete:CASCADE" json:"-"`
	ScheduledStart     time.Time     `gorm:"not null" json:"scheduled_start"`
	ScheduledEnd       time.Time     `gorm:"not null" json:"scheduled_end"`
	Status             BookingStatus `gorm:"type:varchar(20);not null;default:'PENDING'" json:"status"`
	MeetingLink        string        `gorm:"type:varchar(255)" json:"meeting_link"`
	Location           string        `json:"location"`
	CancellationReason string        `json:"cancellation_reason"`
	CreatedAt          time.Time     `json:"created_at"`
	UpdatedAt          time.Time     `json:"updated_at"`
}

/* ========================== Notifications & chat ======================== */

// Notification is an append-only message to one user.
type Notification struct {
	ID        uint64           `gorm:"primaryKey" json:"id"`
	UserID    uuid.UUID        `gorm:"type:uuid;not null;index" json:"user_id"`
	Type      NotificationType `gorm:"type:varchar(20);not null" json:"type"`
	Title     string           `gorm:"type:varchar(255);not null" json:"title"`
	Body      string           `gorm:"type:text" json:"body"`
	IsRead    bool             `gorm:"not null;default:false" json:"is_read"`
	CreatedAt time.Time        `json:"created_at"`
}

// ChatMessage is a direct or case-scoped message.
type ChatMessage struct {
	ID           uint64     `gorm:"primaryKey" json:"id"`
	CaseID       *uuid.UUID `gorm:"type:uuid;index" json:"case_id"`
	Case         *Case      `gorm:"foreignKey:CaseID;constraint:OnDelete:CASCADE" json:"-"`
	SenderID     uuid.UUID  `gorm:"type:uuid;not null;index" json:"sender_id"`
	ReceiverID   *uuid.UUID `gorm:"type:uuid;index" json:"receiver_id"`
	MessageText  string     `gorm:"type:text;not null" json:"message_text"`
	AttachmentID *uuid.UUID `gorm:"type:uuid" json:"attachment_id"`
	SentAt       time.Time  `gorm:"autoCreateTime" json:"sent_at"`
	IsRead       bool       `gorm:"not null;default:false" json:"is_read"`
}

/* =========================== Reviews & payments ========================= */

// LawyerReview is a citizen's rating of a completed consultation.
type LawyerReview struct {
	ID          uuid.UUID `gorm:"type:uuid;default:gen_random_uuid();primaryKey" json:"id"`
	BookingID   uuid.UUID `gorm:"type:uuid;not null;index:idx_review_booking_citizen,unique" json:"booking_id"`
	CitizenID   uuid.UUID `gorm:"type:uuid;not null;index:idx_review_booking_citizen,unique" json:"citizen_id"`
	LawyerID    uuid.UUID `gorm:"type:uuid;not null;index" json:"lawyer_id"`
	Rating      int       `gorm:"not null" json:"rating"`
	Comment     string    `json:"comment"`
	IsPublished bool      `gorm:"not null;default:true" json:"is_published"`
	CreatedAt   time.Time `json:"created_at"`
	UpdatedAt   time.Time `json:"updated_at"`
}

// Payment represents a payment attempt for a consultation booking.
type Payment struct {
	ID          uuid.UUID `gorm:"type:uuid;default:gen_random_uuid();primaryKey" json:"id"`
	BookingID   uuid.UUID `gorm:"type:uuid;not null;uniqueIndex" json:"booking_id"`
	CitizenID   uuid.UUID `gorm:"type:uuid;not null;index" json:"citizen_id"`
	Provider    string    `gorm:"type:varchar(20);not null" json:"provider"`
	ProviderRef *string   `gorm:"uniqueIndex:ux_pay_provider_ref" json:"provider_ref"`
	AmountCents int       `gorm:"not null" json:"amount_cents"` // stored in cents to avoid float issues
	Status      PayStatus `gorm:"type:varchar(20);default:'initiated'" json:"status"`
	CreatedAt   time.Time `gorm:"not null;default:now()" json:"created_at"`
	UpdatedAt   time.Time `gorm:"not null;default:now()" json:"updated_at"`
}

// All lists every entity in migration order.
func All() []any {
	return []any{
		&User{}, &CitizenProfile{}, &LawyerProfile{}, &AdminProfile{},
		&LegalSpecialization{}, &AvailabilityRule{},
		&Case{}, &CaseActivityLog{}, &EvidenceDocument{}, &ConsultationBooking{},
		&Notification{}, &ChatMessage{}, &LawyerReview{}, &Payment{},
	}
}
