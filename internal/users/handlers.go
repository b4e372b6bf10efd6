package users

import (
	"errors"
	"log/slog"

	"github.com/gofiber/fiber/v2"
	"github.com/google/uuid"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"

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

type Handler struct {
	db    *gorm.DB
	files storage.ObjectStore
}

func NewHandler(db *gorm.DB, files storage.ObjectStore) *Handler {
	return &Handler{db: db, files: files}
}

type PageUsers = models.Page[accounts.UserView]

// VerificationRequest is loose on purpose: activate/ban_user arrive as JSON
// booleans or as "true"/"1" strings from admin forms.
type VerificationRequest struct {
	Status   string `json:"status" example:"VERIFIED"`
	Activate any    `json:"activate" swaggertype:"boolean"`
	BanUser  any    `json:"ban_user" swaggertype:"boolean"`
}

func (h *Handler) viewOf(c *fiber.Ctx, u models.User) (accounts.UserView, error) {
	p, err := accounts.Load(c.UserContext(), h.db, u)
	if err != nil && !errors.Is(err, accounts.ErrNoProfile) {
		return accounts.UserView{}, err
	}
	return accounts.NewUserView(u, p, h.files), nil
}

// List godoc
// @Summary      List users
// @Description  Admins list every account (optionally by role); everyone else gets only themself.
// @Tags         users
// @Security     BearerAuth
// @Produce      json
// @Param        role      query string false "citizen | lawyer | admin"
// @Param        page      query int    false "page"
// @Param        pageSize  query int    false "pageSize"
// @Success      200  {object}  PageUsers
// @Failure      401  {object}  models.ErrorResponse
// @Router       /users [get]
func (h *Handler) List(c *fiber.Ctx) error {
	a := auth.ActorOf(c)
	page, size := utils.ParsePage(c)

	q := h.db.WithContext(c.UserContext()).Model(&models.User{})
	if !a.IsAdmin() {
		q = q.Where("id = ?", a.ID)
	} else if role := c.Query("role"); role != "" {
		q = q.Where("role = ?", role)
	}

	var total int64
	if err := q.Count(&total).Error; err != nil {
		return err
	}
	var list []models.User
	if err := q.Order("created_at DESC").Offset((page - 1) * size).Limit(size).Find(&list).Error; err != nil {
		return err
	}

	items := make([]accounts.UserView, 0, len(list))
	for _, u := range list {
		v, err := h.viewOf(c, u)
		if err != nil {
			return err
		}
		items = append(items, v)
	}
	return c.JSON(utils.NewPage(page, size, total, items))
}

// Get godoc
// @Summary      User detail
// @Tags         users
// @Security     BearerAuth
// @Produce      json
// @Param        id   path string true "user id"
// @Success      200  {object}  accounts.UserView
// @Failure      404  {object}  models.ErrorResponse
// @Router       /users/{id} [get]
func (h *Handler) Get(c *fiber.Ctx) error {
	id, err := uuid.Parse(c.Params("id"))
	if err != nil || !policy.CanReadUser(auth.ActorOf(c), id) {
		return apperror.NotFound("User")
	}
	var u models.User
	if err := h.db.WithContext(c.UserContext()).First(&u, "id = ?", id).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return apperror.NotFound("User")
		}
		return err
	}
	v, err := h.viewOf(c, u)
	if err != nil {
		return err
	}
	return c.JSON(v)
}

// SetVerification godoc
// @Summary      Set verification status
// @Description  Admin decision: VERIFIED verifies and reactivates unless activate=false; any other status unverifies. ban_user=true always deactivates.
// @Tags         users
// @Security     BearerAuth
// @Accept       json
// @Produce      json
// @Param        id       path  string               true  "user id"
// @Param        payload  body  VerificationRequest  true  "decision"
// @Success      200  {object}  accounts.UserView
// @Failure      400  {object}  models.ValidationErrorResponse
// @Failure      403  {object}  models.ErrorResponse
// @Failure      404  {object}  models.ErrorResponse
// @Router       /users/{id}/verification [post]
func (h *Handler) SetVerification(c *fiber.Ctx) error {
	a := auth.ActorOf(c)
	if !policy.CanSetVerification(a) {
		return apperror.Forbidden("", "")
	}
	id, err := uuid.Parse(c.Params("id"))
	if err != nil {
		return apperror.NotFound("User")
	}

	var in VerificationRequest
	if err := c.BodyParser(&in); err != nil {
		return fiber.ErrBadRequest
	}
	errs := map[string][]string{}
	status, ok := ParseStatus(in.Status)
	if !ok {
		errs["status"] = []string{"Must be one of VERIFIED, PENDING, REJECTED, SUSPENDED"}
	}
	activate, ok := parseBool(in.Activate)
	if !ok {
		errs["activate"] = []string{"Must be a boolean"}
	}
	ban, ok := parseBool(in.BanUser)
	if !ok {
		errs["ban_user"] = []string{"Must be a boolean"}
	}
	if len(errs) > 0 {
		return validation.Respond(c, errs)
	}

	var u models.User
	err = h.db.WithContext(c.UserContext()).Transaction(func(tx *gorm.DB) error {
		if err := tx.Clauses(clause.Locking{Strength: "UPDATE"}).First(&u, "id = ?", id).Error; err != nil {
			if errors.Is(err, gorm.ErrRecordNotFound) {
				return apperror.NotFound("User")
			}
			return err
		}

		var lp *models.LawyerProfile
		if u.Role == models.RoleLawyer {
			var found models.LawyerProfile
			err := tx.Clauses(clause.Locking{Strength: "UPDATE"}).First(&found, "user_id = ?", u.ID).Error
			switch {
			case err == nil:
				lp = &found
			case !errors.Is(err, gorm.ErrRecordNotFound):
				return err
			}
		}

		cur := AccountState{IsActive: u.IsActive, IsVerified: u.IsVerified}
		if lp != nil {
			cur.LawyerStatus = lp.VerificationStatus
		}
		next := ApplyVerification(cur, Verification{Status: status, Activate: activate, Ban: ban})

		if err := tx.Model(&u).Updates(map[string]any{
			"is_active":   next.IsActive,
			"is_verified": next.IsVerified,
		}).Error; err != nil {
			return err
		}
		u.IsActive, u.IsVerified = next.IsActive, next.IsVerified
		if lp != nil {
			if err := tx.Model(lp).Update("verification_status", next.LawyerStatus).Error; err != nil {
				return err
			}
		}
		return nil
	})
	if err != nil {
		return err
	}

	metrics.IncVerification(string(status))
	slog.Info("verification updated", "user_id", u.ID, "status", status, "by", a.ID)
	utils.Notify(c.UserContext(), h.db, u.ID, models.NotifySystem,
		"Account verification updated", "Your verification status is now "+string(status)+".")

	v, err := h.viewOf(c, u)
	if err != nil {
		return err
	}
	return c.JSON(v)
}
