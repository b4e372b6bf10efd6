package reviews

import (
	"errors"
	"fmt"
	"math"
	"strings"
	"time"

	"github.com/gofiber/fiber/v2"
	"github.com/google/uuid"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	"github.com/aldoetobex/legal-aid-backend/internal/auth"
	"github.com/aldoetobex/legal-aid-backend/internal/policy"
	"github.com/aldoetobex/legal-aid-backend/pkg/apperror"
	"github.com/aldoetobex/legal-aid-backend/pkg/models"
	"github.com/aldoetobex/legal-aid-backend/pkg/utils"
	"github.com/aldoetobex/legal-aid-backend/pkg/validation"
)

type Handler struct {
	db *gorm.DB
}

func NewHandler(db *gorm.DB) *Handler { return &Handler{db: db} }

// =====================================
// POST /api/reviews (citizen) - Upsert
// =====================================

type UpsertRequest struct {
	BookingID uuid.UUID `json:"booking_id"`
	Rating    int       `json:"rating" validate:"gte=1,lte=5"`
	Comment   string    `json:"comment" validate:"max=2000"`
}

// Upsert Review godoc
// @Summary      Review a completed consultation
// @Description  One review per booking and citizen; posting again updates it. The lawyer's rating average and review count are recomputed in the same transaction.
// @Tags         reviews
// @Security     BearerAuth
// @Accept       json
// @Produce      json
// @Param        payload  body  UpsertRequest  true  "Review"
// @Success      201  {object}  models.LawyerReview
// @Failure      400  {object}  models.ValidationErrorResponse
// @Failure      404  {object}  models.ErrorResponse
// @Failure      409  {object}  models.ErrorResponse
// @Router       /reviews [post]
func (h *Handler) Upsert(c *fiber.Ctx) error {
	var in UpsertRequest
	if err := c.BodyParser(&in); err != nil {
		return fiber.NewError(fiber.StatusBadRequest, "invalid json")
	}
	in.Comment = strings.TrimSpace(in.Comment)
	errs, _ := validation.Validate(in)
	if in.BookingID == uuid.Nil {
		if errs == nil {
			errs = map[string][]string{}
		}
		errs["booking_id"] = []string{"This field is required"}
	}
	if errs != nil {
		return validation.Respond(c, errs)
	}

	a := auth.ActorOf(c)
	var (
		out          models.LawyerReview
		lawyerUserID uuid.UUID
	)

	err := h.db.WithContext(c.UserContext()).Transaction(func(tx *gorm.DB) error {
		var b models.ConsultationBooking
		if err := tx.Preload("Lawyer").First(&b, "id = ?", in.BookingID).Error; err != nil {
			if errors.Is(err, gorm.ErrRecordNotFound) {
				return apperror.NotFound("Booking")
			}
			return err
		}
		if !policy.CanReadBooking(a, b) {
			return apperror.NotFound("Booking")
		}
		if b.CitizenID != a.ID {
			return apperror.Forbidden(apperror.CodeNotOwner, "Only the booking's citizen can review it")
		}
		if b.Status != models.BookingCompleted {
			return apperror.Conflict("Only completed consultations can be reviewed")
		}

		// Lock the lawyer row so concurrent reviews serialise on the aggregate.
		var lp models.LawyerProfile
		if err := tx.Clauses(clause.Locking{Strength: "UPDATE"}).
			First(&lp, "id = ?", b.LawyerID).Error; err != nil {
			return err
		}
		lawyerUserID = lp.UserID

		err := tx.Where("booking_id = ? AND citizen_id = ?", b.ID, a.ID).First(&out).Error
		switch {
		case errors.Is(err, gorm.ErrRecordNotFound):
			out = models.LawyerReview{
				BookingID:   b.ID,
				CitizenID:   a.ID,
				LawyerID:    lp.ID,
				Rating:      in.Rating,
				Comment:     in.Comment,
				IsPublished: true,
			}
			if err := tx.Create(&out).Error; err != nil {
				return err
			}
		case err == nil:
			if err := tx.Model(&out).Updates(map[string]any{
				"rating":     in.Rating,
				"comment":    in.Comment,
				"updated_at": time.Now(),
			}).Error; err != nil {
				return err
			}
			out.Rating, out.Comment = in.Rating, in.Comment
		default:
			return err
		}

		return recomputeRating(tx, lp.ID)
	})
	if err != nil {
		return err
	}

	utils.Notify(c.UserContext(), h.db, lawyerUserID, models.NotifySystem, "New review",
		fmt.Sprintf("A client rated a consultation %d/5", out.Rating))
	return c.Status(fiber.StatusCreated).JSON(out)
}

// recomputeRating rewrites the profile's aggregate from published reviews.
func recomputeRating(tx *gorm.DB, lawyerID uuid.UUID) error {
	var agg struct {
		Avg   float64
		Total int
	}
	if err := tx.Model(&models.LawyerReview{}).
		Select("COALESCE(AVG(rating), 0) AS avg, COUNT(*) AS total").
		Where("lawyer_id = ? AND is_published = ?", lawyerID, true).
		Scan(&agg).Error; err != nil {
		return err
	}
	return tx.Model(&models.LawyerProfile{}).Where("id = ?", lawyerID).Updates(map[string]any{
		"rating_average": math.Round(agg.Avg*100) / 100,
		"total_reviews":  agg.Total,
	}).Error
}

// ======================================================
// GET /api/lawyers/:id/reviews?page=&pageSize=
// ======================================================

type ReviewItem struct {
	ID          uuid.UUID `json:"id"`
	Rating      int       `json:"rating"`
	Comment     string    `json:"comment"`
	CitizenName string    `json:"citizen_name"`
	CreatedAt   time.Time `json:"created_at"`
}

type PageReviews = models.Page[ReviewItem]

// List Lawyer Reviews godoc
// @Summary      Reviews for a lawyer
// @Description  Published reviews, newest first. Hidden lawyer profiles read as missing.
// @Tags         reviews
// @Security     BearerAuth
// @Produce      json
// @Param        id        path  string true  "lawyer profile id"
// @Param        page      query int    false "page"
// @Param        pageSize  query int    false "pageSize"
// @Success      200  {object}  PageReviews
// @Failure      404  {object}  models.ErrorResponse
// @Router       /lawyers/{id}/reviews [get]
func (h *Handler) ListForLawyer(c *fiber.Ctx) error {
	id, err := uuid.Parse(c.Params("id"))
	if err != nil {
		return apperror.NotFound("Lawyer")
	}
	db := h.db.WithContext(c.UserContext())

	var lp models.LawyerProfile
	err = db.First(&lp, "id = ?", id).Error
	if errors.Is(err, gorm.ErrRecordNotFound) || (err == nil && !policy.CanSeeLawyer(auth.ActorOf(c), lp)) {
		return apperror.NotFound("Lawyer")
	}
	if err != nil {
		return err
	}

	page, size := utils.ParsePage(c)
	q := db.Model(&models.LawyerReview{}).Where("lawyer_reviews.lawyer_id = ? AND lawyer_reviews.is_published = ?", lp.ID, true)

	var total int64
	if err := q.Count(&total).Error; err != nil {
		return err
	}
	var rows []ReviewItem
	if err := q.Select(`lawyer_reviews.id, lawyer_reviews.rating, lawyer_reviews.comment, lawyer_reviews.created_at,
			COALESCE(cp.full_name_en, '') AS citizen_name`).
		Joins("LEFT JOIN citizen_profiles cp ON cp.user_id = lawyer_reviews.citizen_id").
		Order("lawyer_reviews.created_at DESC").
		Offset((page - 1) * size).Limit(size).
		Scan(&rows).Error; err != nil {
		return err
	}
	return c.JSON(utils.NewPage(page, size, total, rows))
}
