package cases

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

	"github.com/aldoetobex/legal-aid-backend/internal/auth"
	"github.com/aldoetobex/legal-aid-backend/internal/policy"
	"github.com/aldoetobex/legal-aid-backend/internal/storage"
	"github.com/aldoetobex/legal-aid-backend/pkg/apperror"
	"github.com/aldoetobex/legal-aid-backend/pkg/models"
	"github.com/aldoetobex/legal-aid-backend/pkg/sanitize"
	"github.com/aldoetobex/legal-aid-backend/pkg/utils"
	"github.com/aldoetobex/legal-aid-backend/pkg/validation"
)

// ===== DTOs =====

type CreateCaseRequest struct {
	// Admins may file on behalf of a citizen; ignored for everyone else.
	CitizenID        *uuid.UUID `json:"citizen_id"`
	Title            string     `json:"title" validate:"required,max=255"`
	Description      string     `json:"description" validate:"required,max=10000"`
	CategoryID       *uint      `json:"category_id"`
	Priority         string     `json:"priority" validate:"omitempty,oneof=LOW MEDIUM HIGH CRITICAL"`
	IsAnonymous      bool       `json:"is_anonymous"`
	CaseNumber       string     `json:"case_number" validate:"max=100"`
	CourtName        string     `json:"court_name" validate:"max=255"`
	AssignedLawyerID *uuid.UUID `json:"assigned_lawyer_id"`
}

type UpdateCaseRequest struct {
	Title          *string `json:"title" validate:"omitempty,min=1,max=255"`
	Description    *string `json:"description" validate:"omitempty,min=1,max=10000"`
	Status         *string `json:"status" validate:"omitempty,oneof=SUBMITTED IN_REVIEW DOC_REQUESTED SCHEDULED RESOLVED CLOSED"`
	Priority       *string `json:"priority" validate:"omitempty,oneof=LOW MEDIUM HIGH CRITICAL"`
	CategoryID     *uint   `json:"category_id"`
	CaseNumber     *string `json:"case_number" validate:"omitempty,max=100"`
	CourtName      *string `json:"court_name" validate:"omitempty,max=255"`
	PresidingJudge *string `json:"presiding_judge" validate:"omitempty,max=255"`
	RelevantActs   *string `json:"relevant_acts"`
	NextHearingAt  *string `json:"next_hearing_at" example:"2026-11-02T10:30:00+06:00"`
	FilingDate     *string `json:"filing_date" validate:"omitempty,datetime=2006-01-02"`
	IsAnonymous    *bool   `json:"is_anonymous"`
	// "" unassigns.
	AssignedLawyerID *string `json:"assigned_lawyer_id"`
}

// CaseView is a case plus the display names of both parties. Anonymous cases
// shown to anyone but the owner or an admin hide the citizen and redact contact
// details from the description.
type CaseView struct {
	models.Case
	CitizenName string `json:"citizen_name"`
	LawyerName  string `json:"lawyer_name,omitempty"`
	Preview     string `json:"preview"`
}

type PageCases = models.Page[CaseView]

type Handler struct {
	db    *gorm.DB
	files storage.ObjectStore
	now   func() time.Time
}

func NewHandler(db *gorm.DB, files storage.ObjectStore) *Handler {
	return &Handler{db: db, files: files, now: time.Now}
}

/* ============================== Helpers ================================= */

// loadCase fetches a case the caller may read. Hidden cases read as missing.
func (h *Handler) loadCase(c *fiber.Ctx, a policy.Actor, id string) (models.Case, error) {
	var cs models.Case
	if _, err := uuid.Parse(id); err != nil {
		return cs, apperror.NotFound("Case")
	}
	err := h.db.WithContext(c.UserContext()).
		Preload("AssignedLawyer").
		First(&cs, "id = ?", id).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return cs, apperror.NotFound("Case")
	}
	if err != nil {
		return cs, err
	}
	if !policy.CanReadCase(a, cs) {
		return cs, apperror.NotFound("Case")
	}
	return cs, nil
}

// verifiedLawyer resolves an assignable lawyer profile.
func (h *Handler) verifiedLawyer(ctx context.Context, id uuid.UUID) (*models.LawyerProfile, map[string][]string, error) {
	var lp models.LawyerProfile
	err := h.db.WithContext(ctx).First(&lp, "id = ?", id).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, validation.Field("assigned_lawyer_id", "Lawyer not found"), nil
	}
	if err != nil {
		return nil, nil, err
	}
	if policy.RequireVerifiedLawyer(lp) != nil {
		return nil, validation.Field("assigned_lawyer_id", "Lawyer is not verified"), nil
	}
	return &lp, nil, nil
}

// checkCategory returns a field error when id names no specialization.
func (h *Handler) checkCategory(ctx context.Context, id uint) (map[string][]string, error) {
	var n int64
	if err := h.db.WithContext(ctx).Model(&models.LegalSpecialization{}).Where("id = ?", id).Count(&n).Error; err != nil {
		return nil, err
	}
	if n == 0 {
		return validation.Field("category_id", "Category not found"), nil
	}
	return nil, nil
}

func (h *Handler) citizenNames(ctx context.Context, ids []uuid.UUID) map[uuid.UUID]string {
	out := map[uuid.UUID]string{}
	if len(ids) == 0 {
		return out
	}
	var rows []models.CitizenProfile
	if err := h.db.WithContext(ctx).Select("user_id", "full_name_en").Where("user_id IN ?", ids).Find(&rows).Error; err != nil {
		slog.Warn("citizen names lookup failed", "err", err)
		return out
	}
	for _, r := range rows {
		out[r.UserID] = r.FullNameEn
	}
	return out
}

func (h *Handler) views(ctx context.Context, a policy.Actor, list []models.Case) []CaseView {
	ids := make([]uuid.UUID, 0, len(list))
	for _, cs := range list {
		ids = append(ids, cs.CitizenID)
	}
	names := h.citizenNames(ctx, ids)

	out := make([]CaseView, 0, len(list))
	for _, cs := range list {
		v := CaseView{Case: cs, CitizenName: names[cs.CitizenID]}
		if cs.AssignedLawyer != nil {
			v.LawyerName = cs.AssignedLawyer.FullNameEn
		}
		if cs.IsAnonymous && !a.IsAdmin() && cs.CitizenID != a.ID {
			v.CitizenID = uuid.Nil
			v.CitizenName = "Anonymous"
			v.Description = sanitize.RedactPII(cs.Description)
		}
		v.Preview = sanitize.Summary(v.Description, 240)
		out = append(out, v)
	}
	return out
}

func (h *Handler) view(ctx context.Context, a policy.Actor, cs models.Case) CaseView {
	return h.views(ctx, a, []models.Case{cs})[0]
}

/* ================================ Create ================================ */

// Create Case godoc
// @Summary      Create case
// @Description  Citizens file for themselves; admins may pass citizen_id. An optional assignee must be a VERIFIED lawyer.
// @Tags         cases
// @Security     BearerAuth
// @Accept       json
// @Produce      json
// @Param        payload  body  CreateCaseRequest  true  "Case payload"
// @Success      201  {object}  CaseView
// @Failure      400  {object}  models.ValidationErrorResponse
// @Failure      401  {object}  models.ErrorResponse
// @Router       /cases [post]
func (h *Handler) Create(c *fiber.Ctx) error {
	var in CreateCaseRequest
	if err := c.BodyParser(&in); err != nil {
		return fiber.NewError(fiber.StatusBadRequest, "invalid json")
	}
	in.Title = strings.TrimSpace(in.Title)
	in.Description = strings.TrimSpace(in.Description)
	in.Priority = strings.ToUpper(strings.TrimSpace(in.Priority))
	if errs, _ := validation.Validate(in); errs != nil {
		return validation.Respond(c, errs)
	}

	a := auth.ActorOf(c)
	ctx := c.UserContext()
	db := h.db.WithContext(ctx)

	owner := policy.CaseOwner(a, in.CitizenID)
	if owner != a.ID {
		var n int64
		if err := db.Model(&models.User{}).Where("id = ? AND role = ?", owner, models.RoleCitizen).Count(&n).Error; err != nil {
			return err
		}
		if n == 0 {
			return validation.Respond(c, validation.Field("citizen_id", "Citizen not found"))
		}
	}

	var lawyer *models.LawyerProfile
	if in.AssignedLawyerID != nil {
		lp, errs, err := h.verifiedLawyer(ctx, *in.AssignedLawyerID)
		if err != nil {
			return err
		}
		if errs != nil {
			return validation.Respond(c, errs)
		}
		lawyer = lp
	}

	if in.CategoryID != nil {
		errs, err := h.checkCategory(ctx, *in.CategoryID)
		if err != nil {
			return err
		}
		if errs != nil {
			return validation.Respond(c, errs)
		}
	}

	priority := models.PriorityMedium
	if in.Priority != "" {
		priority = models.CasePriority(in.Priority)
	}
	cs := models.Case{
		CitizenID:      owner,
		CategoryID:     in.CategoryID,
		Title:          in.Title,
		Description:    in.Description,
		CaseNumber:     strings.TrimSpace(in.CaseNumber),
		CourtName:      strings.TrimSpace(in.CourtName),
		Status:         models.CaseSubmitted,
		Priority:       priority,
		IsAnonymous:    in.IsAnonymous,
		SubmissionDate: h.now(),
	}
	if lawyer != nil {
		cs.AssignedLawyerID = &lawyer.ID
		cs.AssignedLawyer = lawyer
	}
	if err := db.Omit("AssignedLawyer", "Citizen", "Category").Create(&cs).Error; err != nil {
		return err
	}

	utils.LogCaseActivity(ctx, h.db, cs.ID, a.ID, "created", "", string(cs.Status))
	if lawyer != nil {
		utils.LogCaseActivity(ctx, h.db, cs.ID, a.ID, "lawyer_assigned", "", lawyer.ID.String())
		utils.Notify(ctx, h.db, lawyer.UserID, models.NotifyCaseUpdate, "New case assigned", cs.Title)
	}
	return c.Status(fiber.StatusCreated).JSON(h.view(ctx, a, cs))
}

/* ================================= List ================================= */

// List Cases godoc
// @Summary      List cases
// @Description  Admins see all cases, citizens their own, lawyers the ones assigned to them.
// @Tags         cases
// @Security     BearerAuth
// @Produce      json
// @Param        status    query string false "status"
// @Param        priority  query string false "priority"
// @Param        clientId  query string false "citizen user id"
// @Param        lawyerId  query string false "lawyer user id or profile id"
// @Param        page      query int    false "page"
// @Param        pageSize  query int    false "pageSize"
// @Success      200  {object}  PageCases
// @Failure      401  {object}  models.ErrorResponse
// @Router       /cases [get]
func (h *Handler) List(c *fiber.Ctx) error {
	a := auth.ActorOf(c)
	parties, err := policy.ParsePartyFilter(c.Query("clientId"), c.Query("lawyerId"))
	if err != nil {
		return err
	}
	page, size := utils.ParsePage(c)

	q := h.db.WithContext(c.UserContext()).Model(&models.Case{}).Scopes(policy.VisibleCases(a), policy.CasesOfParties(parties))
	if s := strings.ToUpper(strings.TrimSpace(c.Query("status"))); s != "" {
		q = q.Where("cases.status = ?", s)
	}
	if p := strings.ToUpper(strings.TrimSpace(c.Query("priority"))); p != "" {
		q = q.Where("cases.priority = ?", p)
	}

	var total int64
	if err := q.Count(&total).Error; err != nil {
		return err
	}
	var list []models.Case
	if err := q.Preload("AssignedLawyer").
		Order("cases.created_at DESC").
		Offset((page - 1) * size).Limit(size).
		Find(&list).Error; err != nil {
		return err
	}
	return c.JSON(utils.NewPage(page, size, total, h.views(c.UserContext(), a, list)))
}

// Get case detail
// @Summary      Case detail
// @Tags         cases
// @Security     BearerAuth
// @Produce      json
// @Param        id   path string true "case id (uuid)"
// @Success      200  {object}  CaseView
// @Failure      401  {object}  models.ErrorResponse
// @Failure      404  {object}  models.ErrorResponse
// @Router       /cases/{id} [get]
func (h *Handler) Get(c *fiber.Ctx) error {
	a := auth.ActorOf(c)
	cs, err := h.loadCase(c, a, c.Params("id"))
	if err != nil {
		return err
	}
	return c.JSON(h.view(c.UserContext(), a, cs))
}

/* ================================ Update ================================ */

// Update case
// @Summary      Update case
// @Description  Partial update by anyone who can read the case. Reassignment is limited to the owner or an admin and requires a VERIFIED lawyer.
// @Tags         cases
// @Security     BearerAuth
// @Accept       json
// @Produce      json
// @Param        id       path  string             true  "case id (uuid)"
// @Param        payload  body  UpdateCaseRequest  true  "fields to change"
// @Success      200  {object}  CaseView
// @Failure      400  {object}  models.ValidationErrorResponse
// @Failure      403  {object}  models.ErrorResponse
// @Failure      404  {object}  models.ErrorResponse
// @Router       /cases/{id} [patch]
func (h *Handler) Update(c *fiber.Ctx) error {
	var in UpdateCaseRequest
	if err := c.BodyParser(&in); err != nil {
		return fiber.NewError(fiber.StatusBadRequest, "invalid json")
	}
	upper := func(p *string) {
		if p != nil {
			*p = strings.ToUpper(strings.TrimSpace(*p))
		}
	}
	upper(in.Status)
	upper(in.Priority)
	if errs, _ := validation.Validate(in); errs != nil {
		return validation.Respond(c, errs)
	}

	a := auth.ActorOf(c)
	ctx := c.UserContext()
	cs, err := h.loadCase(c, a, c.Params("id"))
	if err != nil {
		return err
	}
	if !policy.CanUpdateCase(a, cs) {
		return apperror.Forbidden("", "")
	}

	up := map[string]any{}
	setStr := func(col string, v *string) {
		if v != nil {
			up[col] = strings.TrimSpace(*v)
		}
	}
	setStr("title", in.Title)
	setStr("description", in.Description)
	setStr("case_number", in.CaseNumber)
	setStr("court_name", in.CourtName)
	setStr("presiding_judge", in.PresidingJudge)
	setStr("relevant_acts", in.RelevantActs)
	if in.Priority != nil {
		up["priority"] = *in.Priority
	}
	if in.CategoryID != nil {
		errs, err := h.checkCategory(ctx, *in.CategoryID)
		if err != nil {
			return err
		}
		if errs != nil {
			return validation.Respond(c, errs)
		}
		up["category_id"] = *in.CategoryID
	}
	if in.IsAnonymous != nil {
		up["is_anonymous"] = *in.IsAnonymous
	}
	if in.NextHearingAt != nil {
		if strings.TrimSpace(*in.NextHearingAt) == "" {
			up["next_hearing_at"] = nil
		} else {
			t, err := time.Parse(time.RFC3339, strings.TrimSpace(*in.NextHearingAt))
			if err != nil {
				return validation.Respond(c, validation.Field("next_hearing_at", "Invalid datetime (use RFC 3339)"))
			}
			up["next_hearing_at"] = t
		}
	}
	if in.FilingDate != nil {
		d, _ := time.Parse("2006-01-02", *in.FilingDate)
		up["filing_date"] = d
	}

	statusChanged := in.Status != nil && models.CaseStatus(*in.Status) != cs.Status
	if statusChanged {
		next := models.CaseStatus(*in.Status)
		up["status"] = next
		if next == models.CaseResolved {
			up["resolved_date"] = h.now()
		}
	}

	var newLawyer *models.LawyerProfile
	reassigned := false
	if in.AssignedLawyerID != nil {
		if !a.IsAdmin() && cs.CitizenID != a.ID {
			return apperror.Forbidden(apperror.CodeNotOwner, "Only the case owner or an admin can reassign a case")
		}
		raw := strings.TrimSpace(*in.AssignedLawyerID)
		if raw == "" {
			reassigned = cs.AssignedLawyerID != nil
			up["assigned_lawyer_id"] = nil
		} else {
			id, err := uuid.Parse(raw)
			if err != nil {
				return validation.Respond(c, validation.Field("assigned_lawyer_id", "Invalid UUID format"))
			}
			lp, errs, err := h.verifiedLawyer(ctx, id)
			if err != nil {
				return err
			}
			if errs != nil {
				return validation.Respond(c, errs)
			}
			reassigned = cs.AssignedLawyerID == nil || *cs.AssignedLawyerID != lp.ID
			newLawyer = lp
			up["assigned_lawyer_id"] = lp.ID
		}
	}

	if len(up) > 0 {
		if err := h.db.WithContext(ctx).Model(&models.Case{}).Where("id = ?", cs.ID).Updates(up).Error; err != nil {
			return err
		}
	}

	if statusChanged {
		utils.LogCaseActivity(ctx, h.db, cs.ID, a.ID, "status_changed", string(cs.Status), *in.Status)
		if cs.CitizenID != a.ID {
			utils.Notify(ctx, h.db, cs.CitizenID, models.NotifyCaseUpdate, "Case status updated",
				fmt.Sprintf("%s is now %s", cs.Title, *in.Status))
		}
	}
	if reassigned {
		prev := ""
		if cs.AssignedLawyerID != nil {
			prev = cs.AssignedLawyerID.String()
		}
		next := ""
		if newLawyer != nil {
			next = newLawyer.ID.String()
			utils.Notify(ctx, h.db, newLawyer.UserID, models.NotifyCaseUpdate, "New case assigned", cs.Title)
		}
		utils.LogCaseActivity(ctx, h.db, cs.ID, a.ID, "lawyer_assigned", prev, next)
	}
	if !statusChanged && !reassigned && len(up) > 0 {
		utils.LogCaseActivity(ctx, h.db, cs.ID, a.ID, "updated", "", "")
	}

	fresh, err := h.loadCase(c, a, cs.ID.String())
	if apperror.IsCode(err, "NOT_FOUND") {
		// The caller may have lost access by this very update.
		return c.SendStatus(fiber.StatusNoContent)
	}
	if err != nil {
		return err
	}
	return c.JSON(h.view(ctx, a, fresh))
}

/* ================================ Delete ================================ */

// Delete case
// @Summary      Delete case
// @Description  Owner or admin. Evidence objects are removed from storage after the rows are gone.
// @Tags         cases
// @Security     BearerAuth
// @Param        id   path string true "case id (uuid)"
// @Success      204
// @Failure      403  {object}  models.ErrorResponse
// @Failure      404  {object}  models.ErrorResponse
// @Router       /cases/{id} [delete]
func (h *Handler) Delete(c *fiber.Ctx) error {
	a := auth.ActorOf(c)
	ctx := c.UserContext()
	cs, err := h.loadCase(c, a, c.Params("id"))
	if err != nil {
		return err
	}
	if !policy.CanDeleteCase(a, cs) {
		return apperror.Forbidden(apperror.CodeNotOwner, "Only the case owner or an admin can delete a case")
	}

	var keys []string
	err = h.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := tx.Model(&models.EvidenceDocument{}).Where("case_id = ?", cs.ID).Pluck("storage_key", &keys).Error; err != nil {
			return err
		}
		if err := tx.Where("case_id = ?", cs.ID).Delete(&models.ChatMessage{}).Error; err != nil {
			return err
		}
		if err := tx.Model(&models.ConsultationBooking{}).Where("case_id = ?", cs.ID).Update("case_id", nil).Error; err != nil {
			return err
		}
		return tx.Delete(&models.Case{}, "id = ?", cs.ID).Error
	})
	if err != nil {
		return err
	}

	if len(keys) > 0 && h.files != nil {
		if err := h.files.BulkDelete(ctx, keys); err != nil {
			slog.Warn("evidence cleanup failed", "case_id", cs.ID, "objects", len(keys), "err", err)
		}
	}
	slog.Info("case deleted", "case_id", cs.ID, "by", a.ID)
	return c.SendStatus(fiber.StatusNoContent)
}

/* =============================== Activity =============================== */

// Activity godoc
// @Summary      Case activity log
// @Tags         cases
// @Security     BearerAuth
// @Produce      json
// @Param        id   path string true "case id (uuid)"
// @Success      200  {array}   models.CaseActivityLog
// @Failure      404  {object}  models.ErrorResponse
// @Router       /cases/{id}/activity [get]
func (h *Handler) Activity(c *fiber.Ctx) error {
	a := auth.ActorOf(c)
	cs, err := h.loadCase(c, a, c.Params("id"))
	if err != nil {
		return err
	}
	logs := []models.CaseActivityLog{}
	if err := h.db.WithContext(c.UserContext()).
		Where("case_id = ?", cs.ID).
		Order("timestamp DESC, id DESC").
		Find(&logs).Error; err != nil {
		return err
	}
	return c.JSON(logs)
}
