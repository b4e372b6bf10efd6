package dashboard

import (
	"errors"
	"time"

	"github.com/gofiber/fiber/v2"
	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/aldoetobex/legal-aid-backend/internal/accounts"
	"github.com/aldoetobex/legal-aid-backend/internal/auth"
	"github.com/aldoetobex/legal-aid-backend/internal/policy"
	"github.com/aldoetobex/legal-aid-backend/pkg/apperror"
	"github.com/aldoetobex/legal-aid-backend/pkg/models"
)

// Cases in these states count as active work.
var activeStatuses = []models.CaseStatus{
	models.CaseSubmitted, models.CaseInReview, models.CaseDocRequested, models.CaseScheduled,
}

const (
	listLimit      = 5
	attentionLimit = 3
	attentionAhead = 48 * time.Hour
	weekAhead      = 7 * 24 * time.Hour
)

type Handler struct {
	db  *gorm.DB
	now func() time.Time
}

func NewHandler(db *gorm.DB, now func() time.Time) *Handler {
	if now == nil {
		now = time.Now
	}
	return &Handler{db: db, now: now}
}

type Stats struct {
	ActiveCases      int64 `json:"active_cases"`
	HearingsThisWeek int64 `json:"hearings_this_week"`
	PendingBookings  int64 `json:"pending_bookings"`
}

type Hearing struct {
	ID         uuid.UUID `json:"id"`
	Title      string    `json:"title"`
	CaseNumber string    `json:"case_number"`
	Date       time.Time `json:"date"`
	Court      string    `json:"court"`
}

type CaseSummary struct {
	ID            uuid.UUID           `json:"id"`
	Title         string              `json:"title"`
	Status        models.CaseStatus   `json:"status"`
	Priority      models.CasePriority `json:"priority"`
	NextHearingAt *time.Time          `json:"next_hearing_at"`
}

type LawyerDashboard struct {
	Stats                 Stats                    `json:"stats"`
	CaseOverview          map[string]int64         `json:"case_overview"`
	UpcomingHearings      []Hearing                `json:"upcoming_hearings"`
	RecentActivity        []models.CaseActivityLog `json:"recent_activity"`
	CasesNeedingAttention []CaseSummary            `json:"cases_needing_attention"`
}

// Lawyer Dashboard godoc
// @Summary      Lawyer dashboard
// @Description  Aggregates over the caller's assigned cases and bookings. Unverified lawyers get 403 NOT_VERIFIED with their current status.
// @Tags         dashboard
// @Security     BearerAuth
// @Produce      json
// @Success      200  {object}  LawyerDashboard
// @Failure      403  {object}  models.ErrorResponse
// @Failure      404  {object}  models.ErrorResponse
// @Router       /dashboard/lawyer [get]
func (h *Handler) Lawyer(c *fiber.Ctx) error {
	a := auth.ActorOf(c)
	if !a.IsLawyer() {
		return apperror.Forbidden("", "Lawyer role required")
	}
	ctx := c.UserContext()
	lp, err := accounts.LawyerByUser(ctx, h.db, a.ID)
	if errors.Is(err, accounts.ErrNoProfile) {
		return apperror.NotFound("Lawyer profile")
	}
	if err != nil {
		return err
	}
	if err := policy.RequireVerifiedLawyer(lp); err != nil {
		return err
	}

	db := h.db.WithContext(ctx)
	now := h.now()
	mine := func() *gorm.DB { return db.Model(&models.Case{}).Where("cases.assigned_lawyer_id = ?", lp.ID) }

	out := LawyerDashboard{
		CaseOverview:          map[string]int64{},
		UpcomingHearings:      []Hearing{},
		RecentActivity:        []models.CaseActivityLog{},
		CasesNeedingAttention: []CaseSummary{},
	}

	if err := mine().Where("cases.status IN ?", activeStatuses).Count(&out.Stats.ActiveCases).Error; err != nil {
		return err
	}
	if err := mine().Where("cases.next_hearing_at BETWEEN ? AND ?", now, now.Add(weekAhead)).
		Count(&out.Stats.HearingsThisWeek).Error; err != nil {
		return err
	}
	if err := db.Model(&models.ConsultationBooking{}).
		Where("lawyer_id = ? AND status = ?", lp.ID, models.BookingPending).
		Count(&out.Stats.PendingBookings).Error; err != nil {
		return err
	}

	var overview []struct {
		Status models.CaseStatus
		N      int64
	}
	if err := mine().Select("cases.status AS status, COUNT(*) AS n").Group("cases.status").Scan(&overview).Error; err != nil {
		return err
	}
	for _, row := range overview {
		out.CaseOverview[string(row.Status)] = row.N
	}

	var upcoming []models.Case
	if err := mine().Where("cases.next_hearing_at >= ?", now).
		Order("cases.next_hearing_at ASC").Limit(listLimit).
		Find(&upcoming).Error; err != nil {
		return err
	}
	for _, cs := range upcoming {
		out.UpcomingHearings = append(out.UpcomingHearings, Hearing{
			ID: cs.ID, Title: cs.Title, CaseNumber: cs.CaseNumber, Date: *cs.NextHearingAt, Court: cs.CourtName,
		})
	}

	if err := db.Model(&models.CaseActivityLog{}).
		Where("case_id IN (?)", mine().Select("cases.id")).
		Order("timestamp DESC").Order("id DESC").Limit(listLimit).
		Find(&out.RecentActivity).Error; err != nil {
		return err
	}

	var attention []models.Case
	if err := mine().
		Where("cases.priority IN ? OR cases.next_hearing_at BETWEEN ? AND ?",
			[]models.CasePriority{models.PriorityHigh, models.PriorityCritical}, now, now.Add(attentionAhead)).
		Order("cases.next_hearing_at ASC NULLS LAST").Order("cases.created_at DESC").
		Limit(attentionLimit).
		Find(&attention).Error; err != nil {
		return err
	}
	for _, cs := range attention {
		out.CasesNeedingAttention = append(out.CasesNeedingAttention, CaseSummary{
			ID: cs.ID, Title: cs.Title, Status: cs.Status, Priority: cs.Priority, NextHearingAt: cs.NextHearingAt,
		})
	}

	return c.JSON(out)
}
