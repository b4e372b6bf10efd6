package notifications

import (
	"errors"
	"strconv"

	"github.com/gofiber/fiber/v2"
	"gorm.io/gorm"

	"github.com/aldoetobex/legal-aid-backend/internal/auth"
	"github.com/aldoetobex/legal-aid-backend/internal/policy"
	"github.com/aldoetobex/legal-aid-backend/pkg/apperror"
	"github.com/aldoetobex/legal-aid-backend/pkg/models"
	"github.com/aldoetobex/legal-aid-backend/pkg/utils"
)

type Handler struct{ db *gorm.DB }

func NewHandler(db *gorm.DB) *Handler { return &Handler{db: db} }

type PageNotifications = models.Page[models.Notification]

// List Notifications godoc
// @Summary      List notifications
// @Description  Own notifications, newest first. Admins may pass userId to read another user's.
// @Tags         notifications
// @Security     BearerAuth
// @Produce      json
// @Param        userId    query string false "admin only: user id"
// @Param        unread    query bool   false "only unread"
// @Param        page      query int    false "page"
// @Param        pageSize  query int    false "pageSize"
// @Success      200  {object}  PageNotifications
// @Failure      400  {object}  models.ErrorResponse
// @Router       /notifications [get]
func (h *Handler) List(c *fiber.Ctx) error {
	owner, err := policy.NotificationOwner(auth.ActorOf(c), c.Query("userId"))
	if err != nil {
		return err
	}
	page, size := utils.ParsePage(c)

	q := h.db.WithContext(c.UserContext()).Model(&models.Notification{}).Scopes(policy.NotificationsOf(owner))
	if c.QueryBool("unread") {
		q = q.Where("notifications.is_read = ?", false)
	}

	var total int64
	if err := q.Count(&total).Error; err != nil {
		return err
	}
	var list []models.Notification
	if err := q.Order("notifications.created_at DESC").Order("notifications.id DESC").
		Offset((page - 1) * size).Limit(size).
		Find(&list).Error; err != nil {
		return err
	}
	return c.JSON(utils.NewPage(page, size, total, list))
}

// Mark Read godoc
// @Summary      Mark one notification read
// @Tags         notifications
// @Security     BearerAuth
// @Produce      json
// @Param        id  path int true "notification id"
// @Success      200  {object}  models.Notification
// @Failure      404  {object}  models.ErrorResponse
// @Router       /notifications/{id}/read [post]
func (h *Handler) MarkRead(c *fiber.Ctx) error {
	id, err := strconv.ParseUint(c.Params("id"), 10, 64)
	if err != nil {
		return apperror.NotFound("Notification")
	}
	db := h.db.WithContext(c.UserContext())

	var n models.Notification
	err = db.First(&n, "id = ?", id).Error
	if errors.Is(err, gorm.ErrRecordNotFound) || (err == nil && !policy.CanReadNotification(auth.ActorOf(c), n)) {
		return apperror.NotFound("Notification")
	}
	if err != nil {
		return err
	}
	if !n.IsRead {
		if err := db.Model(&n).Update("is_read", true).Error; err != nil {
			return err
		}
	}
	return c.JSON(n)
}

// Mark All Read godoc
// @Summary      Mark all notifications read
// @Description  Applies to the same set List would return.
// @Tags         notifications
// @Security     BearerAuth
// @Produce      json
// @Param        userId  query string false "admin only: user id"
// @Success      200  {object}  map[string]any  "status, updated"
// @Router       /notifications/mark-all-read [post]
func (h *Handler) MarkAllRead(c *fiber.Ctx) error {
	owner, err := policy.NotificationOwner(auth.ActorOf(c), c.Query("userId"))
	if err != nil {
		return err
	}
	res := h.db.WithContext(c.UserContext()).
		Model(&models.Notification{}).
		Scopes(policy.NotificationsOf(owner)).
		Where("notifications.is_read = ?", false).
		Update("is_read", true)
	if res.Error != nil {
		return res.Error
	}
	return c.JSON(fiber.Map{"status": "marked all as read", "updated": res.RowsAffected})
}
