package chat

import (
	"errors"
	"strconv"
	"strings"

	"github.com/gofiber/fiber/v2"
	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/aldoetobex/legal-aid-backend/internal/auth"
	"github.com/aldoetobex/legal-aid-backend/internal/policy"
	"github.com/aldoetobex/legal-aid-backend/pkg/apperror"
	"github.com/aldoetobex/legal-aid-backend/pkg/models"
	"github.com/aldoetobex/legal-aid-backend/pkg/sanitize"
	"github.com/aldoetobex/legal-aid-backend/pkg/utils"
	"github.com/aldoetobex/legal-aid-backend/pkg/validation"
)

type Handler struct{ db *gorm.DB }

func NewHandler(db *gorm.DB) *Handler { return &Handler{db: db} }

type SendRequest struct {
	CaseID       *uuid.UUID `json:"case_id"`
	ReceiverID   *uuid.UUID `json:"receiver_id"`
	MessageText  string     `json:"message_text" validate:"required,max=5000"`
	AttachmentID *uuid.UUID `json:"attachment_id"`
}

type PageMessages = models.Page[models.ChatMessage]

// List Messages godoc
// @Summary      List chat messages
// @Description  Messages the caller sent or received, plus those on cases they can read. Filter by case_id or with (the other party).
// @Tags         chat
// @Security     BearerAuth
// @Produce      json
// @Param        case_id   query string false "case id"
// @Param        with      query string false "other user id"
// @Param        page      query int    false "page"
// @Param        pageSize  query int    false "pageSize"
// @Success      200  {object}  PageMessages
// @Failure      400  {object}  models.ValidationErrorResponse
// @Router       /messages [get]
func (h *Handler) List(c *fiber.Ctx) error {
	a := auth.ActorOf(c)
	page, size := utils.ParsePage(c)

	q := h.db.WithContext(c.UserContext()).Model(&models.ChatMessage{}).Scopes(policy.VisibleMessages(a))
	if raw := c.Query("case_id"); raw != "" {
		id, err := uuid.Parse(raw)
		if err != nil {
			return validation.Respond(c, validation.Field("case_id", "Invalid UUID format"))
		}
		q = q.Where("chat_messages.case_id = ?", id)
	}
	if raw := c.Query("with"); raw != "" {
		other, err := uuid.Parse(raw)
		if err != nil {
			return validation.Respond(c, validation.Field("with", "Invalid UUID format"))
		}
		q = q.Where("(chat_messages.sender_id = ? AND chat_messages.receiver_id = ?) OR (chat_messages.sender_id = ? AND chat_messages.receiver_id = ?)",
			a.ID, other, other, a.ID)
	}

	var total int64
	if err := q.Count(&total).Error; err != nil {
		return err
	}
	var list []models.ChatMessage
	if err := q.Order("chat_messages.sent_at DESC").
		Offset((page - 1) * size).Limit(size).
		Find(&list).Error; err != nil {
		return err
	}
	return c.JSON(utils.NewPage(page, size, total, list))
}

// Send godoc
// @Summary      Send a message
// @Description  Sender is always the caller. Needs a case the caller can read or a receiver (or both).
// @Tags         chat
// @Security     BearerAuth
// @Accept       json
// @Produce      json
// @Param        payload  body  SendRequest  true  "message"
// @Success      201  {object}  models.ChatMessage
// @Failure      400  {object}  models.ValidationErrorResponse
// @Router       /messages [post]
func (h *Handler) Send(c *fiber.Ctx) error {
	var in SendRequest
	if err := c.BodyParser(&in); err != nil {
		return fiber.ErrBadRequest
	}
	in.MessageText = strings.TrimSpace(in.MessageText)
	if errs, _ := validation.Validate(in); errs != nil {
		return validation.Respond(c, errs)
	}
	if in.CaseID == nil && in.ReceiverID == nil {
		return validation.Respond(c, validation.Field("receiver_id", "Either case_id or receiver_id is required"))
	}

	a := auth.ActorOf(c)
	ctx := c.UserContext()
	db := h.db.WithContext(ctx)

	var cs *models.Case
	if in.CaseID != nil {
		var found models.Case
		err := db.Preload("AssignedLawyer").First(&found, "id = ?", *in.CaseID).Error
		if errors.Is(err, gorm.ErrRecordNotFound) || (err == nil && !policy.CanReadCase(a, found)) {
			return validation.Respond(c, validation.Field("case_id", "Case not found"))
		}
		if err != nil {
			return err
		}
		cs = &found
	}
	if in.ReceiverID != nil {
		var n int64
		if err := db.Model(&models.User{}).Where("id = ?", *in.ReceiverID).Count(&n).Error; err != nil {
			return err
		}
		if n == 0 {
			return validation.Respond(c, validation.Field("receiver_id", "User not found"))
		}
	}

	m := models.ChatMessage{
		CaseID:       in.CaseID,
		SenderID:     a.ID,
		ReceiverID:   in.ReceiverID,
		MessageText:  in.MessageText,
		AttachmentID: in.AttachmentID,
	}
	if err := db.Omit("Case").Create(&m).Error; err != nil {
		return err
	}

	preview := sanitize.Summary(sanitize.RedactPII(m.MessageText), 120)
	for _, uid := range recipients(a.ID, m, cs) {
		utils.Notify(ctx, h.db, uid, models.NotifyMessage, "New message", preview)
	}
	return c.Status(fiber.StatusCreated).JSON(m)
}

// recipients are everyone who should hear about m except its sender.
func recipients(sender uuid.UUID, m models.ChatMessage, cs *models.Case) []uuid.UUID {
	seen := map[uuid.UUID]bool{sender: true}
	var out []uuid.UUID
	add := func(id uuid.UUID) {
		if id != uuid.Nil && !seen[id] {
			seen[id] = true
			out = append(out, id)
		}
	}
	if m.ReceiverID != nil {
		add(*m.ReceiverID)
	} else if cs != nil {
		add(cs.CitizenID)
		if cs.AssignedLawyer != nil {
			add(cs.AssignedLawyer.UserID)
		}
	}
	return out
}

// Mark Read godoc
// @Summary      Mark a message read
// @Description  Only the receiver (or, for case-wide messages, another case party) may mark it.
// @Tags         chat
// @Security     BearerAuth
// @Produce      json
// @Param        id  path int true "message id"
// @Success      200  {object}  models.ChatMessage
// @Failure      403  {object}  models.ErrorResponse
// @Failure      404  {object}  models.ErrorResponse
// @Router       /messages/{id}/read [post]
func (h *Handler) MarkRead(c *fiber.Ctx) error {
	a := auth.ActorOf(c)
	id, err := strconv.ParseUint(c.Params("id"), 10, 64)
	if err != nil {
		return apperror.NotFound("Message")
	}
	db := h.db.WithContext(c.UserContext())

	var m models.ChatMessage
	err = db.Preload("Case.AssignedLawyer").First(&m, "id = ?", id).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return apperror.NotFound("Message")
	}
	if err != nil {
		return err
	}
	if !policy.CanReadMessage(a, m) {
		return apperror.NotFound("Message")
	}
	if !policy.CanMarkMessageRead(a, m) {
		return apperror.Forbidden("", "Only the recipient can mark this message as read")
	}
	if !m.IsRead {
		if err := db.Model(&models.ChatMessage{}).Where("id = ?", m.ID).Update("is_read", true).Error; err != nil {
			return err
		}
		m.IsRead = true
	}
	return c.JSON(m)
}
