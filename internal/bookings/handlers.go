package bookings

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/gofiber/fiber/v2"
	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/aldoetobex/legal-aid-backend/internal/accounts"
	"github.com/aldoetobex/legal-aid-backend/internal/auth"
	"github.com/aldoetobex/legal-aid-backend/internal/metrics"
	"github.com/aldoetobex/legal-aid-backend/internal/policy"
	"github.com/aldoetobex/legal-aid-backend/internal/storage"
	"github.com/aldoetobex/legal-aid-backend/pkg/apperror"
	"github.com/aldoetobex/legal-aid-backend/pkg/models"
	"github.com/aldoetobex/legal-aid-backend/pkg/utils"
	"github.com/aldoetobex/legal-aid-backend/pkg/validation"
)

const defaultDuration = time.Hour

type Handler struct {
	db    *gorm.DB
	files accounts.URLer
}

func NewHandler(db *gorm.DB, files storage.ObjectStore) *Handler {
	return &Handler{db: db, files: files}
}

/* ================================ DTOs ================================== */

type CreateBookingRequest struct {
	LawyerID       uuid.UUID  `json:"lawyer_id"`
	CitizenID      *uuid.UUID `json:"citizen_id"`
	CaseID         *uuid.UUID `json:"case_id"`
	ScheduledStart time.Time  `json:"scheduled_start"`
	// Defaults to one hour after the start.
	ScheduledEnd *time.Time `json:"scheduled_end"`
	MeetingLink  string     `json:"meeting_link" validate:"omitempty,url,max=255"`
	Location     string     `json:"location" validate:"max=500"`
}

type UpdateBookingRequest struct {
	Status             *string    `json:"status" validate:"omitempty,oneof=PENDING CONFIRMED CANCELLED COMPLETED RESCHEDULED"`
	ScheduledStart     *time.Time `json:"scheduled_start"`
	ScheduledEnd       *time.Time `json:"scheduled_end"`
	MeetingLink        *string    `json:"meeting_link" validate:"omitempty,max=255"`
	Location           *string    `json:"location" validate:"omitempty,max=500"`
	CancellationReason *string    `json:"cancellation_reason" validate:"omitempty,max=1000"`
}

type CancelRequest struct {
	Reason string `json:"reason" validate:"max=1000"`
}

// BookingView is a booking enriched with what the booking cards display.
type BookingView struct {
	models.ConsultationBooking
	CitizenName    string  `json:"citizen_name"`
	CitizenAvatar  *string `json:"citizen_avatar"`
	LawyerUserID   string  `json:"lawyer_user_id"`
	LawyerName     string  `json:"lawyer_name"`
	LawyerAvatar   *string `json:"lawyer_avatar"`
	Specialization string  `json:"specialization"`
}

type PageBookings = models.Page[BookingView]

/* ============================== Helpers ================================= */

func (h *Handler) url(key string) *string {
	if key == "" || h.files == nil {
		return nil
	}
	u := h.files.PublicURL(key)
	return &u
}

func (h *Handler) views(ctx context.Context, list []models.ConsultationBooking) []BookingView {
	ids := make([]uuid.UUID, 0, len(list))
	for _, b := range list {
		ids = append(ids, b.CitizenID)
	}
	citizens := map[uuid.UUID]models.CitizenProfile{}
	if len(ids) > 0 {
		var rows []models.CitizenProfile
		if err := h.db.WithContext(ctx).Where("user_id IN ?", ids).Find(&rows).Error; err != nil {
			slog.Warn("citizen profiles lookup failed", "err", err)
		}
		for _, r := range rows {
			citizens[r.UserID] = r
		}
	}

	out := make([]BookingView, 0, len(list))
	for _, b := range list {
		cp := citizens[b.CitizenID]
		v := BookingView{
			ConsultationBooking: b,
			CitizenName:         cp.FullNameEn,
			CitizenAvatar:       h.url(cp.ProfilePhotoKey),
			LawyerUserID:        b.Lawyer.UserID.String(),
			LawyerName:          b.Lawyer.FullNameEn,
			LawyerAvatar:        h.url(b.Lawyer.ProfilePhotoKey),
		}
		if len(b.Lawyer.Specializations) > 0 {
			v.Specialization = b.Lawyer.Specializations[0].NameEn
		}
		out = append(out, v)
	}
	return out
}

func (h *Handler) load(ctx context.Context, id uuid.UUID) (models.ConsultationBooking, error) {
	var b models.ConsultationBooking
	err := h.db.WithContext(ctx).
		Preload("Lawyer.Specializations", func(db *gorm.DB) *gorm.DB { return db.Order("name_en ASC") }).
		First(&b, "id = ?", id).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return b, apperror.NotFound("Booking")
	}
	return b, err
}

// loadVisible is load plus the read rule; hidden bookings read as missing.
func (h *Handler) loadVisible(c *fiber.Ctx, a policy.Actor) (models.ConsultationBooking, error) {
	id, err := uuid.Parse(c.Params("id"))
	if err != nil {
		return models.ConsultationBooking{}, apperror.NotFound("Booking")
	}
	b, err := h.load(c.UserContext(), id)
	if err != nil {
		return b, err
	}
	if !policy.CanReadBooking(a, b) {
		return b, apperror.NotFound("Booking")
	}
	return b, nil
}

// counterpart is the party to notify about a change made by a.
func counterpart(a policy.Actor, b models.ConsultationBooking) []uuid.UUID {
	switch a.ID {
	case b.CitizenID:
		return []uuid.UUID{b.Lawyer.UserID}
	case b.Lawyer.UserID:
		return []uuid.UUID{b.CitizenID}
	}
	return []uuid.UUID{b.CitizenID, b.Lawyer.UserID}
}

func when(t time.Time) string { return t.UTC().Format("02 Jan 2006 15:04 UTC") }

/* ================================ Create ================================ */

// Create Booking godoc
// @Summary      Book a consultation
// @Description  Citizens book for themselves; admins may pass citizen_id. The lawyer must be VERIFIED. Overlapping bookings are allowed.
// @Tags         bookings
// @Security     BearerAuth
// @Accept       json
// @Produce      json
// @Param        payload  body  CreateBookingRequest  true  "Booking"
// @Success      201  {object}  BookingView
// @Failure      400  {object}  models.ValidationErrorResponse
// @Failure      403  {object}  models.ErrorResponse
// @Router       /bookings [post]
func (h *Handler) Create(c *fiber.Ctx) error {
	var in CreateBookingRequest
	if err := c.BodyParser(&in); err != nil {
		return validation.Respond(c, validation.Field("body", "Invalid JSON or datetime (use RFC 3339)"))
	}
	errs, _ := validation.Validate(in)
	if errs == nil {
		errs = map[string][]string{}
	}
	if in.LawyerID == uuid.Nil {
		errs["lawyer_id"] = []string{"This field is required"}
	}
	if in.ScheduledStart.IsZero() {
		errs["scheduled_start"] = []string{"This field is required"}
	}
	end := in.ScheduledStart.Add(defaultDuration)
	if in.ScheduledEnd != nil {
		end = *in.ScheduledEnd
	}
	if !in.ScheduledStart.IsZero() && !end.After(in.ScheduledStart) {
		errs["scheduled_end"] = []string{"Must be after scheduled_start"}
	}
	if len(errs) > 0 {
		return validation.Respond(c, errs)
	}

	a := auth.ActorOf(c)
	ctx := c.UserContext()
	db := h.db.WithContext(ctx)

	citizenID, err := policy.BookingCitizen(a, in.CitizenID)
	if err != nil {
		return err
	}

	var lp models.LawyerProfile
	err = db.First(&lp, "id = ?", in.LawyerID).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return validation.Respond(c, validation.Field("lawyer_id", "Lawyer not found"))
	}
	if err != nil {
		return err
	}
	if lp.VerificationStatus != models.VerificationVerified {
		return validation.Respond(c, validation.Field("lawyer_id", "Lawyer is not verified"))
	}

	if in.CaseID != nil {
		var cs models.Case
		err := db.Preload("AssignedLawyer").First(&cs, "id = ?", *in.CaseID).Error
		if errors.Is(err, gorm.ErrRecordNotFound) || (err == nil && !policy.CanReadCase(a, cs)) {
			return validation.Respond(c, validation.Field("case_id", "Case not found"))
		}
		if err != nil {
			return err
		}
	}

	b := models.ConsultationBooking{
		CaseID:         in.CaseID,
		CitizenID:      citizenID,
		LawyerID:       lp.ID,
		ScheduledStart: in.ScheduledStart,
		ScheduledEnd:   end,
		Status:         models.BookingPending,
		MeetingLink:    strings.TrimSpace(in.MeetingLink),
		Location:       strings.TrimSpace(in.Location),
	}
	if err := db.Omit("Citizen", "Lawyer").Create(&b).Error; err != nil {
		return err
	}
	metrics.IncBookingCreated(string(b.Status))

	utils.Notify(ctx, h.db, lp.UserID, models.NotifyBooking, "New consultation request",
		"Requested for "+when(b.ScheduledStart))
	if b.CaseID != nil {
		utils.LogCaseActivity(ctx, h.db, *b.CaseID, a.ID, "booking_created", "", b.ID.String())
	}

	fresh, err := h.load(ctx, b.ID)
	if err != nil {
		return err
	}
	return c.Status(fiber.StatusCreated).JSON(h.views(ctx, []models.ConsultationBooking{fresh})[0])
}

/* ================================= Read ================================= */

// List Bookings godoc
// @Summary      List bookings
// @Description  Admins see all, citizens their own, lawyers the ones made with them.
// @Tags         bookings
// @Security     BearerAuth
// @Produce      json
// @Param        status    query string false "status"
// @Param        clientId  query string false "citizen user id"
// @Param        lawyerId  query string false "lawyer user id or profile id"
// @Param        page      query int    false "page"
// @Param        pageSize  query int    false "pageSize"
// @Success      200  {object}  PageBookings
// @Router       /bookings [get]
func (h *Handler) List(c *fiber.Ctx) error {
	a := auth.ActorOf(c)
	parties, err := policy.ParsePartyFilter(c.Query("clientId"), c.Query("lawyerId"))
	if err != nil {
		return err
	}
	page, size := utils.ParsePage(c)

	q := h.db.WithContext(c.UserContext()).Model(&models.ConsultationBooking{}).Scopes(policy.VisibleBookings(a), policy.BookingsOfParties(parties))
	if s := strings.ToUpper(strings.TrimSpace(c.Query("status"))); s != "" {
		q = q.Where("consultation_bookings.status = ?", s)
	}

	var total int64
	if err := q.Count(&total).Error; err != nil {
		return err
	}
	var list []models.ConsultationBooking
	if err := q.Preload("Lawyer.Specializations", func(db *gorm.DB) *gorm.DB { return db.Order("name_en ASC") }).
		Order("consultation_bookings.scheduled_start DESC").
		Offset((page - 1) * size).Limit(size).
		Find(&list).Error; err != nil {
		return err
	}
	return c.JSON(utils.NewPage(page, size, total, h.views(c.UserContext(), list)))
}

// Get Booking godoc
// @Summary      Booking detail
// @Tags         bookings
// @Security     BearerAuth
// @Produce      json
// @Param        id   path string true "booking id"
// @Success      200  {object}  BookingView
// @Failure      404  {object}  models.ErrorResponse
// @Router       /bookings/{id} [get]
func (h *Handler) Get(c *fiber.Ctx) error {
	b, err := h.loadVisible(c, auth.ActorOf(c))
	if err != nil {
		return err
	}
	return c.JSON(h.views(c.UserContext(), []models.ConsultationBooking{b})[0])
}

/* ================================ Update ================================ */

// Update Booking godoc
// @Summary      Update booking
// @Description  Either party or an admin may change status, time, meeting link or location. Status transitions are not restricted.
// @Tags         bookings
// @Security     BearerAuth
// @Accept       json
// @Produce      json
// @Param        id       path  string                true  "booking id"
// @Param        payload  body  UpdateBookingRequest  true  "fields to change"
// @Success      200  {object}  BookingView
// @Failure      400  {object}  models.ValidationErrorResponse
// @Failure      404  {object}  models.ErrorResponse
// @Router       /bookings/{id} [patch]
func (h *Handler) Update(c *fiber.Ctx) error {
	var in UpdateBookingRequest
	if err := c.BodyParser(&in); err != nil {
		return validation.Respond(c, validation.Field("body", "Invalid JSON or datetime (use RFC 3339)"))
	}
	if in.Status != nil {
		s := strings.ToUpper(strings.TrimSpace(*in.Status))
		in.Status = &s
	}
	if errs, _ := validation.Validate(in); errs != nil {
		return validation.Respond(c, errs)
	}

	a := auth.ActorOf(c)
	ctx := c.UserContext()
	b, err := h.loadVisible(c, a)
	if err != nil {
		return err
	}
	if !policy.CanUpdateBooking(a, b) {
		return apperror.Forbidden("", "")
	}

	start, end := b.ScheduledStart, b.ScheduledEnd
	if in.ScheduledStart != nil {
		start = *in.ScheduledStart
		if in.ScheduledEnd == nil {
			end = start.Add(b.ScheduledEnd.Sub(b.ScheduledStart))
		}
	}
	if in.ScheduledEnd != nil {
		end = *in.ScheduledEnd
	}
	if !end.After(start) {
		return validation.Respond(c, validation.Field("scheduled_end", "Must be after scheduled_start"))
	}

	up := map[string]any{}
	if !start.Equal(b.ScheduledStart) || !end.Equal(b.ScheduledEnd) {
		up["scheduled_start"] = start
		up["scheduled_end"] = end
	}
	if in.Status != nil {
		up["status"] = *in.Status
	}
	if in.MeetingLink != nil {
		up["meeting_link"] = strings.TrimSpace(*in.MeetingLink)
	}
	if in.Location != nil {
		up["location"] = strings.TrimSpace(*in.Location)
	}
	if in.CancellationReason != nil {
		up["cancellation_reason"] = strings.TrimSpace(*in.CancellationReason)
	}
	if len(up) > 0 {
		if err := h.db.WithContext(ctx).Model(&models.ConsultationBooking{}).Where("id = ?", b.ID).Updates(up).Error; err != nil {
			return err
		}
	}

	if in.Status != nil && models.BookingStatus(*in.Status) != b.Status {
		for _, uid := range counterpart(a, b) {
			utils.Notify(ctx, h.db, uid, models.NotifyBooking, "Consultation "+strings.ToLower(*in.Status),
				fmt.Sprintf("Consultation on %s is now %s", when(start), *in.Status))
		}
	} else if _, moved := up["scheduled_start"]; moved {
		for _, uid := range counterpart(a, b) {
			utils.Notify(ctx, h.db, uid, models.NotifyBooking, "Consultation rescheduled", "New time: "+when(start))
		}
	}

	fresh, err := h.load(ctx, b.ID)
	if err != nil {
		return err
	}
	return c.JSON(h.views(ctx, []models.ConsultationBooking{fresh})[0])
}

// Cancel Booking godoc
// @Summary      Cancel booking
// @Tags         bookings
// @Security     BearerAuth
// @Accept       json
// @Produce      json
// @Param        id       path  string         true   "booking id"
// @Param        payload  body  CancelRequest  false  "reason"
// @Success      200  {object}  BookingView
// @Failure      404  {object}  models.ErrorResponse
// @Failure      409  {object}  models.ErrorResponse
// @Router       /bookings/{id}/cancel [post]
func (h *Handler) Cancel(c *fiber.Ctx) error {
	var in CancelRequest
	if len(c.Body()) > 0 {
		if err := c.BodyParser(&in); err != nil {
			return fiber.ErrBadRequest
		}
	}
	if errs, _ := validation.Validate(in); errs != nil {
		return validation.Respond(c, errs)
	}

	a := auth.ActorOf(c)
	ctx := c.UserContext()
	b, err := h.loadVisible(c, a)
	if err != nil {
		return err
	}
	if !policy.CanUpdateBooking(a, b) {
		return apperror.Forbidden("", "")
	}
	switch b.Status {
	case models.BookingCancelled:
		return apperror.Conflict("Booking is already cancelled")
	case models.BookingCompleted:
		return apperror.Conflict("Completed bookings cannot be cancelled")
	}

	if err := h.db.WithContext(ctx).Model(&models.ConsultationBooking{}).Where("id = ?", b.ID).Updates(map[string]any{
		"status":              models.BookingCancelled,
		"cancellation_reason": strings.TrimSpace(in.Reason),
	}).Error; err != nil {
		return err
	}
	for _, uid := range counterpart(a, b) {
		utils.Notify(ctx, h.db, uid, models.NotifyBooking, "Consultation cancelled",
			fmt.Sprintf("Consultation on %s was cancelled", when(b.ScheduledStart)))
	}

	fresh, err := h.load(ctx, b.ID)
	if err != nil {
		return err
	}
	return c.JSON(h.views(ctx, []models.ConsultationBooking{fresh})[0])
}
