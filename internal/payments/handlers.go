package payments

import (
	"errors"
	"log/slog"
	"net/http"
	"strings"

	"github.com/gofiber/fiber/v2"
	"github.com/google/uuid"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	"github.com/aldoetobex/legal-aid-backend/internal/auth"
	"github.com/aldoetobex/legal-aid-backend/internal/policy"
	"github.com/aldoetobex/legal-aid-backend/pkg/apperror"
	"github.com/aldoetobex/legal-aid-backend/pkg/models"
	"github.com/aldoetobex/legal-aid-backend/pkg/utils"
)

const providerMock = "mock"

// Options mirror the payment settings in config.Config.
type Options struct {
	Provider  string
	DevMode   bool
	DevSecret string
}

type Handler struct {
	db   *gorm.DB
	opts Options
}

func NewHandler(db *gorm.DB, opts Options) *Handler { return &Handler{db: db, opts: opts} }

// Fee is the amount due for b: the offline fee when a location is set, else the online fee.
// Zero means the lawyer charges nothing for that modality.
func Fee(b models.ConsultationBooking) int {
	fee := b.Lawyer.FeeOnlineCents
	if strings.TrimSpace(b.Location) != "" {
		fee = b.Lawyer.FeeOfflineCents
	}
	if fee == nil || *fee < 0 {
		return 0
	}
	return *fee
}

// ========== Create Checkout (citizen) ==========

// Create Checkout godoc
// @Summary      Start payment for a booking
// @Description  Mock provider: creates (or returns) the booking's payment and a fake redirect URL. Amount comes from the lawyer's fee, never from the client.
// @Tags         payments
// @Security     BearerAuth
// @Produce      json
// @Param        bookingID  path  string  true  "booking id"
// @Success      201  {object}  map[string]any  "payment_id, redirect_url, provider, amount_cents"
// @Failure      404  {object}  models.ErrorResponse
// @Failure      409  {object}  models.ErrorResponse
// @Router       /checkout/{bookingID} [post]
func (h *Handler) CreateCheckout(c *fiber.Ctx) error {
	if h.opts.Provider != providerMock {
		return fiber.NewError(fiber.StatusNotImplemented, "payment provider "+h.opts.Provider+" is not wired")
	}
	a := auth.ActorOf(c)
	bookingID, err := uuid.Parse(c.Params("bookingID"))
	if err != nil {
		return fiber.NewError(fiber.StatusBadRequest, "invalid booking id")
	}
	db := h.db.WithContext(c.UserContext())

	var b models.ConsultationBooking
	err = db.Preload("Lawyer").First(&b, "id = ?", bookingID).Error
	if errors.Is(err, gorm.ErrRecordNotFound) || (err == nil && !policy.CanReadBooking(a, b)) {
		return apperror.NotFound("Booking")
	}
	if err != nil {
		return err
	}
	if b.CitizenID != a.ID {
		return apperror.Forbidden(apperror.CodeNotOwner, "Only the booking's citizen can pay for it")
	}
	if b.Status == models.BookingCancelled || b.Status == models.BookingCompleted {
		return apperror.Conflict("Booking is " + strings.ToLower(string(b.Status)))
	}
	amount := Fee(b)
	if amount == 0 {
		return apperror.Conflict("This consultation is free; no payment needed")
	}

	ref := "mock_" + uuid.NewString()
	pay := models.Payment{
		BookingID:   b.ID,
		CitizenID:   b.CitizenID,
		Provider:    providerMock,
		ProviderRef: &ref,
		AmountCents: amount,
		Status:      models.PayInitiated,
	}
	if err := db.Create(&pay).Error; err != nil {
		// Unique on booking_id: a retry gets the existing payment.
		var existing models.Payment
		if e := db.First(&existing, "booking_id = ?", b.ID).Error; e != nil {
			return err
		}
		pay = existing
	}

	return c.Status(fiber.StatusCreated).JSON(fiber.Map{
		"payment_id":   pay.ID,
		"redirect_url": "mock://checkout?payment_id=" + pay.ID.String(),
		"provider":     pay.Provider,
		"amount_cents": pay.AmountCents,
		"status":       pay.Status,
	})
}

// ========== Mock Complete (dev only) ==========

type MockCompleteRequest struct {
	PaymentID string `json:"payment_id"`
}

// Mock Complete godoc
// @Summary      Complete a mock payment (dev only)
// @Description  Needs APP_ENV=dev, the mock provider and X-Dev-Secret. Marks the payment paid and confirms the booking; repeating it is a no-op.
// @Tags         payments
// @Accept       json
// @Produce      json
// @Param        X-Dev-Secret  header  string               true  "DEV_PAYMENT_SECRET"
// @Param        payload       body    MockCompleteRequest  true  "payment"
// @Success      200  {object}  map[string]any
// @Failure      401  {object}  models.ErrorResponse
// @Failure      404  {object}  models.ErrorResponse
// @Failure      409  {object}  models.ErrorResponse
// @Router       /payments/mock/complete [post]
func (h *Handler) MockComplete(c *fiber.Ctx) error {
	if !h.opts.DevMode || h.opts.Provider != providerMock {
		return fiber.ErrNotFound
	}
	if h.opts.DevSecret == "" || c.Get("X-Dev-Secret") != h.opts.DevSecret {
		return fiber.NewError(http.StatusUnauthorized, "missing/invalid X-Dev-Secret")
	}
	var in MockCompleteRequest
	if err := c.BodyParser(&in); err != nil {
		return fiber.ErrBadRequest
	}
	pid, err := uuid.Parse(strings.TrimSpace(in.PaymentID))
	if err != nil {
		return fiber.NewError(fiber.StatusBadRequest, "invalid payment id")
	}

	// Single winner: payment and booking rows are locked until commit.
	tx := h.db.WithContext(c.UserContext()).Begin()

	var pay models.Payment
	if err := tx.Clauses(clause.Locking{Strength: "UPDATE"}).
		First(&pay, "id = ?", pid).Error; err != nil {
		tx.Rollback()
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return fiber.ErrNotFound
		}
		return err
	}
	if pay.Status == models.PayPaid {
		tx.Rollback()
		return c.JSON(fiber.Map{"ok": true, "message": "already paid (idempotent)"})
	}

	var b models.ConsultationBooking
	if err := tx.Clauses(clause.Locking{Strength: "UPDATE"}).
		Preload("Lawyer").
		First(&b, "id = ?", pay.BookingID).Error; err != nil {
		tx.Rollback()
		return err
	}

	// The fee may have changed since checkout; never trust the stored amount alone.
	if pay.AmountCents != Fee(b) {
		tx.Rollback()
		return fiber.NewError(http.StatusConflict, "amount mismatch")
	}
	if b.Status == models.BookingCancelled {
		tx.Rollback()
		return fiber.NewError(http.StatusConflict, "booking was cancelled")
	}

	if b.Status == models.BookingPending || b.Status == models.BookingRescheduled {
		if err := tx.Model(&models.ConsultationBooking{}).Where("id = ?", b.ID).
			Update("status", models.BookingConfirmed).Error; err != nil {
			tx.Rollback()
			return err
		}
	}
	if err := tx.Model(&models.Payment{}).Where("id = ?", pay.ID).
		Update("status", models.PayPaid).Error; err != nil {
		tx.Rollback()
		return err
	}
	if err := tx.Commit().Error; err != nil {
		return err
	}

	slog.Info("mock payment completed", "payment_id", pay.ID, "booking_id", b.ID, "amount_cents", pay.AmountCents)
	utils.Notify(c.UserContext(), h.db, b.Lawyer.UserID, models.NotifyBooking, "Consultation paid", "The client has paid; the booking is confirmed")
	utils.Notify(c.UserContext(), h.db, b.CitizenID, models.NotifyBooking, "Payment received", "Your consultation is confirmed")
	return c.JSON(fiber.Map{"ok": true})
}
