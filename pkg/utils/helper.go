package utils

import (
	"context"
	"log/slog"
	"math"
	"strconv"

	"github.com/gofiber/fiber/v2"
	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/aldoetobex/legal-aid-backend/pkg/models"
)

// ParsePage reads ?page=&pageSize= with sane defaults (1, 10; max 50).
func ParsePage(c *fiber.Ctx) (page, size int) {
	page, _ = strconv.Atoi(c.Query("page", "1"))
	size, _ = strconv.Atoi(c.Query("pageSize", "10"))
	if page < 1 {
		page = 1
	}
	if size < 1 || size > 50 {
		size = 10
	}
	return
}

// NewPage wraps items in the list envelope. Items is never null.
func NewPage[T any](page, size int, total int64, items []T) models.Page[T] {
	if items == nil {
		items = []T{}
	}
	return models.Page[T]{
		Page:     page,
		PageSize: size,
		Total:    total,
		Pages:    int(math.Ceil(float64(total) / float64(size))),
		Items:    items,
	}
}

// LogCaseActivity appends an audit record to case_activity_logs.
// Best-effort: failures are logged, never returned.
func LogCaseActivity(ctx context.Context, db *gorm.DB, caseID, actorID uuid.UUID, action, prev, next string) {
	err := db.WithContext(ctx).Create(&models.CaseActivityLog{
		CaseID:        caseID,
		ActorID:       actorID,
		ActionType:    action,
		PreviousValue: prev,
		NewValue:      next,
	}).Error
	if err != nil {
		slog.Warn("case activity not recorded", "case_id", caseID, "action", action, "err", err)
	}
}

// Notify appends a notification for userID. Best-effort like LogCaseActivity.
func Notify(ctx context.Context, db *gorm.DB, userID uuid.UUID, typ models.NotificationType, title, body string) {
	err := db.WithContext(ctx).Create(&models.Notification{
		UserID: userID,
		Type:   typ,
		Title:  title,
		Body:   body,
	}).Error
	if err != nil {
		slog.Warn("notification not recorded", "user_id", userID, "type", typ, "err", err)
	}
}
