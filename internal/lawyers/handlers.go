package lawyers

import (
	"context"
	"errors"
	"strconv"
	"strings"
	"time"

	"github.com/gofiber/fiber/v2"
	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/aldoetobex/legal-aid-backend/internal/accounts"
	"github.com/aldoetobex/legal-aid-backend/internal/auth"
	"github.com/aldoetobex/legal-aid-backend/internal/availability"
	"github.com/aldoetobex/legal-aid-backend/internal/metrics"
	"github.com/aldoetobex/legal-aid-backend/internal/policy"
	"github.com/aldoetobex/legal-aid-backend/internal/storage"
	"github.com/aldoetobex/legal-aid-backend/pkg/apperror"
	"github.com/aldoetobex/legal-aid-backend/pkg/models"
	"github.com/aldoetobex/legal-aid-backend/pkg/utils"
	"github.com/aldoetobex/legal-aid-backend/pkg/validation"
)

type Handler struct {
	db    *gorm.DB
	files accounts.URLer
	cal   availability.Calendar
}

func NewHandler(db *gorm.DB, files storage.ObjectStore, cal availability.Calendar) *Handler {
	return &Handler{db: db, files: files, cal: cal}
}

/* ================================ DTOs ================================== */

// LawyerView is a lawyer profile as shown in listings and detail pages.
type LawyerView struct {
	models.LawyerProfile
	Name            string                       `json:"name"`
	Email           string                       `json:"email"`
	Phone           string                       `json:"phone"`
	Avatar          *string                      `json:"avatar"`
	Specializations []models.LegalSpecialization `json:"specializations"`
	ExperienceYears int                          `json:"experience_years"`
	// Availability maps ISO dates to "03:04 PM" slot labels.
	Availability map[string][]string `json:"availability"`
}

type PageLawyers = models.Page[LawyerView]

// ScheduleRequest is the weekly schedule payload, keyed by weekday name.
type ScheduleRequest struct {
	Schedule map[string]availability.DayInput `json:"schedule"`
}

type AvailabilityResponse struct {
	LawyerID     uuid.UUID           `json:"lawyer_id"`
	From         string              `json:"from"`
	Days         int                 `json:"days"`
	Availability map[string][]string `json:"availability"`
}

// views expands profiles into LawyerViews. Rules for all profiles are loaded in
// one query; profiles must have User and Specializations preloaded.
func (h *Handler) views(ctx context.Context, list []models.LawyerProfile) ([]LawyerView, error) {
	ids := make([]uuid.UUID, 0, len(list))
	for _, lp := range list {
		ids = append(ids, lp.ID)
	}
	byLawyer := map[uuid.UUID][]models.AvailabilityRule{}
	if len(ids) > 0 {
		var rows []models.AvailabilityRule
		if err := h.db.WithContext(ctx).
			Where("lawyer_id IN ? AND is_active = ?", ids, true).
			Find(&rows).Error; err != nil {
			return nil, err
		}
		for _, r := range rows {
			byLawyer[r.LawyerID] = append(byLawyer[r.LawyerID], r)
		}
	}

	out := make([]LawyerView, 0, len(list))
	for _, lp := range list {
		out = append(out, h.view(lp, byLawyer[lp.ID]))
	}
	return out, nil
}

func (h *Handler) view(lp models.LawyerProfile, rules []models.AvailabilityRule) LawyerView {
	start := time.Now()
	slots := h.cal.Availability(rules)
	metrics.ObserveSince(metrics.AvailabilityDurationMs, start)

	v := LawyerView{
		LawyerProfile:   lp,
		Name:            lp.FullNameEn,
		Email:           lp.User.Email,
		Phone:           lp.User.PhoneNumber,
		Specializations: lp.Specializations,
		ExperienceYears: h.cal.Experience(lp.LicenseIssueDate),
		Availability:    slots,
	}
	if v.Specializations == nil {
		v.Specializations = []models.LegalSpecialization{}
	}
	if lp.ProfilePhotoKey != "" && h.files != nil {
		url := h.files.PublicURL(lp.ProfilePhotoKey)
		v.Avatar = &url
	}
	return v
}

func (h *Handler) load(ctx context.Context, where string, arg any) (models.LawyerProfile, error) {
	var lp models.LawyerProfile
	err := h.db.WithContext(ctx).
		Preload("User").
		Preload("Specializations").
		Where(where, arg).
		First(&lp).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return lp, apperror.NotFound("Lawyer")
	}
	return lp, err
}

// loadVisible is load plus the listing rule; hidden profiles read as missing.
func (h *Handler) loadVisible(c *fiber.Ctx, where string, arg any) (models.LawyerProfile, error) {
	lp, err := h.load(c.UserContext(), where, arg)
	if err != nil {
		return lp, err
	}
	if !policy.CanSeeLawyer(auth.ActorOf(c), lp) {
		return lp, apperror.NotFound("Lawyer")
	}
	return lp, nil
}

func (h *Handler) detail(c *fiber.Ctx, lp models.LawyerProfile) error {
	views, err := h.views(c.UserContext(), []models.LawyerProfile{lp})
	if err != nil {
		return err
	}
	return c.JSON(views[0])
}

/* ================================ Listing =============================== */

// List godoc
// @Summary      List lawyers
// @Description  Admins see every profile, a lawyer sees only their own, everyone else sees VERIFIED lawyers. Filters are ANDed.
// @Tags         lawyers
// @Security     BearerAuth
// @Produce      json
// @Param        specialization  query string false "specialization slug"
// @Param        location        query string false "chamber address contains"
// @Param        q               query string false "name or email contains"
// @Param        page            query int    false "page"
// @Param        pageSize        query int    false "pageSize"
// @Success      200  {object}  PageLawyers
// @Failure      401  {object}  models.ErrorResponse
// @Router       /lawyers [get]
func (h *Handler) List(c *fiber.Ctx) error {
	a := auth.ActorOf(c)
	page, size := utils.ParsePage(c)
	filter := policy.LawyerFilter{
		Specialization: c.Query("specialization"),
		Location:       c.Query("location"),
		Query:          c.Query("q"),
	}

	base := func() *gorm.DB {
		return h.db.WithContext(c.UserContext()).
			Model(&models.LawyerProfile{}).
			Scopes(policy.VisibleLawyers(a), policy.FilterLawyers(filter))
	}

	var total int64
	if err := base().Count(&total).Error; err != nil {
		return err
	}

	var list []models.LawyerProfile
	if err := base().
		Preload("User").
		Preload("Specializations").
		Order("lawyer_profiles.rating_average DESC, lawyer_profiles.created_at DESC").
		Offset((page - 1) * size).Limit(size).
		Find(&list).Error; err != nil {
		return err
	}

	items, err := h.views(c.UserContext(), list)
	if err != nil {
		return err
	}
	return c.JSON(utils.NewPage(page, size, total, items))
}

// Get godoc
// @Summary      Lawyer detail
// @Tags         lawyers
// @Security     BearerAuth
// @Produce      json
// @Param        id   path string true "lawyer profile id"
// @Success      200  {object}  LawyerView
// @Failure      404  {object}  models.ErrorResponse
// @Router       /lawyers/{id} [get]
func (h *Handler) Get(c *fiber.Ctx) error {
	id, err := uuid.Parse(c.Params("id"))
	if err != nil {
		return apperror.NotFound("Lawyer")
	}
	lp, err := h.loadVisible(c, "lawyer_profiles.id = ?", id)
	if err != nil {
		return err
	}
	return h.detail(c, lp)
}

// ByUser godoc
// @Summary      Lawyer profile by account id
// @Description  Resolves the lawyer profile id for a user account.
// @Tags         lawyers
// @Security     BearerAuth
// @Produce      json
// @Param        userID   path string true "user id"
// @Success      200  {object}  LawyerView
// @Failure      404  {object}  models.ErrorResponse
// @Router       /lawyers/by-user/{userID} [get]
func (h *Handler) ByUser(c *fiber.Ctx) error {
	userID, err := uuid.Parse(c.Params("userID"))
	if err != nil {
		return apperror.NotFound("Lawyer")
	}
	lp, err := h.loadVisible(c, "lawyer_profiles.user_id = ?", userID)
	if err != nil {
		return err
	}
	return h.detail(c, lp)
}

// Availability godoc
// @Summary      Bookable slots
// @Description  Expands the lawyer's weekly rules into hourly slots, from a date (default today) for N days (default window).
// @Tags         lawyers
// @Security     BearerAuth
// @Produce      json
// @Param        id    path  string true  "lawyer profile id"
// @Param        from  query string false "YYYY-MM-DD"
// @Param        days  query int    false "1..180"
// @Success      200  {object}  AvailabilityResponse
// @Failure      400  {object}  models.ValidationErrorResponse
// @Failure      404  {object}  models.ErrorResponse
// @Router       /lawyers/{id}/availability [get]
func (h *Handler) Availability(c *fiber.Ctx) error {
	id, err := uuid.Parse(c.Params("id"))
	if err != nil {
		return apperror.NotFound("Lawyer")
	}

	errs := map[string][]string{}
	from := h.cal.Today()
	if raw := strings.TrimSpace(c.Query("from")); raw != "" {
		d, err := time.ParseInLocation("2006-01-02", raw, from.Location())
		if err != nil {
			errs["from"] = []string{"Invalid date (use YYYY-MM-DD)"}
		}
		from = d
	}
	days := h.cal.WindowDays
	if raw := strings.TrimSpace(c.Query("days")); raw != "" {
		n, err := strconv.Atoi(raw)
		if err != nil || n < 1 || n > 180 {
			errs["days"] = []string{"Must be between 1 and 180"}
		}
		days = n
	}
	if len(errs) > 0 {
		return validation.Respond(c, errs)
	}

	lp, err := h.loadVisible(c, "lawyer_profiles.id = ?", id)
	if err != nil {
		return err
	}
	rules, err := availability.ActiveRules(c.UserContext(), h.db, lp.ID)
	if err != nil {
		return err
	}

	start := time.Now()
	slots := h.cal.AvailabilityFrom(rules, from, days)
	metrics.ObserveSince(metrics.AvailabilityDurationMs, start)

	return c.JSON(AvailabilityResponse{
		LawyerID:     lp.ID,
		From:         from.Format("2006-01-02"),
		Days:         days,
		Availability: slots,
	})
}

/* =============================== Schedule =============================== */

// ReplaceSchedule godoc
// @Summary      Replace weekly schedule
// @Description  Replaces the caller's whole availability in one step and returns the refreshed profile.
// @Tags         lawyers
// @Security     BearerAuth
// @Accept       json
// @Produce      json
// @Param        payload  body  ScheduleRequest  true  "{schedule:{Monday:{active,start,end}}}"
// @Success      200  {object}  LawyerView
// @Failure      400  {object}  models.ValidationErrorResponse
// @Failure      403  {object}  models.ErrorResponse
// @Router       /lawyers/schedule [post]
func (h *Handler) ReplaceSchedule(c *fiber.Ctx) error {
	a := auth.ActorOf(c)
	if !a.IsLawyer() {
		return apperror.Forbidden("", "Only lawyers can set availability")
	}

	var in ScheduleRequest
	if err := c.BodyParser(&in); err != nil {
		return fiber.NewError(fiber.StatusBadRequest, "invalid body")
	}
	if in.Schedule == nil {
		return validation.Respond(c, validation.Field("schedule", "This field is required"))
	}

	ctx := c.UserContext()
	lp, err := accounts.LawyerByUser(ctx, h.db, a.ID)
	if errors.Is(err, accounts.ErrNoProfile) {
		return apperror.NotFound("Lawyer profile")
	}
	if err != nil {
		return err
	}
	if !policy.CanReplaceSchedule(a, lp) {
		return apperror.Forbidden(apperror.CodeNotOwner, "")
	}

	rules, errs := availability.ParseSchedule(in.Schedule)
	if errs != nil {
		return validation.Respond(c, errs)
	}
	if _, err := availability.ReplaceSchedule(ctx, h.db, lp.ID, rules); err != nil {
		return err
	}
	metrics.IncScheduleReplaced()

	fresh, err := h.load(ctx, "lawyer_profiles.id = ?", lp.ID)
	if err != nil {
		return err
	}
	return h.detail(c, fresh)
}
