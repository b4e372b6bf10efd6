package auth

import (
	"errors"
	"log/slog"
	"strings"
	"time"

	"github.com/gofiber/fiber/v2"
	"github.com/google/uuid"
	"golang.org/x/crypto/bcrypt"
	"gorm.io/gorm"

	"github.com/aldoetobex/legal-aid-backend/internal/accounts"
	"github.com/aldoetobex/legal-aid-backend/internal/metrics"
	"github.com/aldoetobex/legal-aid-backend/internal/sessions"
	"github.com/aldoetobex/legal-aid-backend/internal/storage"
	"github.com/aldoetobex/legal-aid-backend/pkg/apperror"
	"github.com/aldoetobex/legal-aid-backend/pkg/models"
	"github.com/aldoetobex/legal-aid-backend/pkg/validation"
)

/* ================================ DTOs ================================= */

// RegisterRequest is the body of /auth/register (JSON or multipart).
type RegisterRequest struct {
	Role        string `json:"role" form:"role" validate:"omitempty,oneof=citizen lawyer"`
	Name        string `json:"name" form:"name" validate:"required,min=2,max=100"`
	Email       string `json:"email" form:"email" validate:"required,email,max=254"`
	PhoneNumber string `json:"phone_number" form:"phone_number" validate:"required,phone"`
	Password    string `json:"password" form:"password" validate:"required,min=8,max=72"`
	Language    string `json:"language" form:"language" validate:"omitempty,oneof=EN BN"`

	// Lawyer only
	BarCouncilNumber string             `json:"bar_council_number" form:"bar_council_number" validate:"omitempty,max=50"`
	LicenseIssueDate string             `json:"license_issue_date" form:"license_issue_date" validate:"omitempty,datetime=2006-01-02"`
	Bio              string             `json:"bio" form:"bio" validate:"max=4000"`
	ChamberAddress   string             `json:"chamber_address" form:"chamber_address" validate:"max=500"`
	Specializations  validation.CSVList `json:"specializations" form:"specializations"`
}

// LoginRequest accepts an email or phone number as identifier.
type LoginRequest struct {
	Identifier  string `json:"identifier"`
	Email       string `json:"email"`
	PhoneNumber string `json:"phone_number"`
	Password    string `json:"password"`
}

// AuthResponse is returned by register and login.
type AuthResponse struct {
	Token              string            `json:"token"`
	Role               models.Role       `json:"role"`
	User               accounts.UserView `json:"user"`
	VerificationStatus string            `json:"verification_status,omitempty"`
}

type messageResponse struct {
	Message string `json:"message"`
}

/* ============================== Handler ================================= */

type Handler struct {
	db       *gorm.DB
	tokens   *Tokens
	sessions sessions.Store
	files    storage.ObjectStore
	resetTTL time.Duration
	now      func() time.Time
}

func NewHandler(db *gorm.DB, tokens *Tokens, store sessions.Store, files storage.ObjectStore) *Handler {
	return &Handler{db: db, tokens: tokens, sessions: store, files: files, resetTTL: 30 * time.Minute, now: time.Now}
}

func hashPassword(pw string) (string, error) {
	b, err := bcrypt.GenerateFromPassword([]byte(pw), bcrypt.DefaultCost)
	return string(b), err
}

func (h *Handler) view(c *fiber.Ctx, u models.User) (accounts.UserView, error) {
	p, err := accounts.Load(c.UserContext(), h.db, u)
	if err != nil && !errors.Is(err, accounts.ErrNoProfile) {
		return accounts.UserView{}, err
	}
	return accounts.NewUserView(u, p, h.files), nil
}

/* =============================== Register =============================== */

// @Summary      Register
// @Description  Create a citizen or lawyer account with its profile. Citizens are verified immediately; lawyers start PENDING.
// @Tags         auth
// @Accept       json,mpfd
// @Produce      json
// @Param        payload  body  RegisterRequest  true  "Registration payload"
// @Success      201      {object}  AuthResponse
// @Failure      400      {object}  models.ValidationErrorResponse
// @Failure      409      {object}  models.ErrorResponse  "email or phone already exists"
// @Router       /auth/register [post]
func (h *Handler) Register(c *fiber.Ctx) error {
	var in RegisterRequest
	if err := c.BodyParser(&in); err != nil {
		return fiber.NewError(fiber.StatusBadRequest, "invalid body")
	}

	in.Email = strings.ToLower(strings.TrimSpace(in.Email))
	in.PhoneNumber = strings.TrimSpace(in.PhoneNumber)
	in.Name = strings.TrimSpace(in.Name)
	in.Role = strings.ToLower(strings.TrimSpace(in.Role))
	if in.Role == "" {
		in.Role = string(models.RoleCitizen)
	}
	in.Language = strings.ToUpper(strings.TrimSpace(in.Language))
	if in.Language == "" {
		in.Language = "EN"
	}

	if errs, _ := validation.Validate(in); errs != nil {
		return validation.Respond(c, errs)
	}

	ctx := c.UserContext()
	db := h.db.WithContext(ctx)

	var n int64
	if err := db.Model(&models.User{}).Where("LOWER(email) = ?", in.Email).Count(&n).Error; err != nil {
		return err
	}
	if n > 0 {
		return apperror.Conflict("An account with this email already exists.")
	}
	if err := db.Model(&models.User{}).Where("phone_number = ?", in.PhoneNumber).Count(&n).Error; err != nil {
		return err
	}
	if n > 0 {
		return apperror.Conflict("An account with this phone number already exists.")
	}

	hash, err := hashPassword(in.Password)
	if err != nil {
		return err
	}

	role := models.Role(in.Role)
	u := models.User{
		ID:                 uuid.New(),
		Email:              in.Email,
		PhoneNumber:        in.PhoneNumber,
		PasswordHash:       hash,
		Role:               role,
		IsActive:           true,
		IsVerified:         role == models.RoleCitizen,
		LanguagePreference: in.Language,
	}

	var lawyer *models.LawyerProfile
	err = db.Transaction(func(tx *gorm.DB) error {
		if err := tx.Create(&u).Error; err != nil {
			return err
		}
		switch role {
		case models.RoleCitizen:
			return tx.Create(&models.CitizenProfile{UserID: u.ID, FullNameEn: in.Name}).Error
		case models.RoleLawyer:
			lp, err := h.newLawyerProfile(tx, u, in)
			if err != nil {
				return err
			}
			lawyer = lp
		}
		return nil
	})
	if err != nil {
		return err
	}

	// Best-effort extras: none of these undo the account.
	if lawyer != nil {
		accounts.LinkSpecializations(ctx, h.db, lawyer, in.Specializations.Items(), false)
	}
	h.attachRegistrationFiles(c, u, lawyer)
	metrics.IncRegistered(string(role))
	slog.Info("account registered", "user_id", u.ID, "role", role)

	token, err := h.tokens.Issue(u)
	if err != nil {
		return err
	}
	v, err := h.view(c, u)
	if err != nil {
		return err
	}
	resp := AuthResponse{Token: token, Role: u.Role, User: v}
	if lawyer != nil {
		resp.VerificationStatus = string(models.VerificationPending)
	}
	return c.Status(fiber.StatusCreated).JSON(resp)
}

func (h *Handler) newLawyerProfile(tx *gorm.DB, u models.User, in RegisterRequest) (*models.LawyerProfile, error) {
	bar := strings.TrimSpace(in.BarCouncilNumber)
	if bar == "" {
		bar = "TEMP-" + u.ID.String()
	}
	var n int64
	if err := tx.Model(&models.LawyerProfile{}).Where("bar_council_number = ?", bar).Count(&n).Error; err != nil {
		return nil, err
	}
	if n > 0 {
		return nil, apperror.Conflict("A lawyer with this bar council number already exists.")
	}

	issued := h.now()
	if in.LicenseIssueDate != "" {
		issued, _ = time.Parse("2006-01-02", in.LicenseIssueDate) // format checked by the validator
	}
	lp := &models.LawyerProfile{
		UserID:             u.ID,
		BarCouncilNumber:   bar,
		LicenseIssueDate:   issued,
		FullNameEn:         in.Name,
		BioEn:              strings.TrimSpace(in.Bio),
		ChamberAddress:     strings.TrimSpace(in.ChamberAddress),
		VerificationStatus: models.VerificationPending,
	}
	if err := tx.Create(lp).Error; err != nil {
		return nil, err
	}
	return lp, nil
}

func (h *Handler) attachRegistrationFiles(c *fiber.Ctx, u models.User, lawyer *models.LawyerProfile) {
	photo := uploadOptional(c, h.files, u.ID, "avatar", "profile_photo", "avatar")
	identity := uploadOptional(c, h.files, u.ID, "identity", "identity_document")

	updates := map[string]any{}
	if photo != "" {
		updates["profile_photo_key"] = photo
	}
	if identity != "" {
		updates["identity_document_key"] = identity
	}

	db := h.db.WithContext(c.UserContext())
	if lawyer != nil {
		if doc := uploadOptional(c, h.files, u.ID, "verification", "verification_document", "doc"); doc != "" {
			updates["verification_document_key"] = doc
		}
		if len(updates) > 0 {
			if err := db.Model(lawyer).Updates(updates).Error; err != nil {
				slog.Warn("saving lawyer file keys failed", "user_id", u.ID, "err", err)
			}
		}
		return
	}
	if len(updates) > 0 {
		if err := db.Model(&models.CitizenProfile{}).Where("user_id = ?", u.ID).Updates(updates).Error; err != nil {
			slog.Warn("saving citizen file keys failed", "user_id", u.ID, "err", err)
		}
	}
}

/* ================================ Login ================================= */

// @Summary      Login
// @Description  Authenticate with email or phone number and receive a JWT
// @Tags         auth
// @Accept       json
// @Produce      json
// @Param        payload  body  LoginRequest  true  "Login payload"
// @Success      200      {object}  AuthResponse
// @Failure      400      {object}  models.ValidationErrorResponse
// @Failure      401      {object}  models.ErrorResponse
// @Router       /auth/login [post]
func (h *Handler) Login(c *fiber.Ctx) error {
	var in LoginRequest
	if err := c.BodyParser(&in); err != nil {
		return fiber.ErrBadRequest
	}

	identifier := strings.TrimSpace(in.Identifier)
	if identifier == "" {
		identifier = strings.TrimSpace(in.Email)
	}
	if identifier == "" {
		identifier = strings.TrimSpace(in.PhoneNumber)
	}
	errs := map[string][]string{}
	if identifier == "" {
		errs["identifier"] = []string{"Email or phone number is required"}
	}
	if in.Password == "" {
		errs["password"] = []string{"This field is required"}
	}
	if len(errs) > 0 {
		return validation.Respond(c, errs)
	}

	q := h.db.WithContext(c.UserContext())
	if strings.Contains(identifier, "@") {
		q = q.Where("LOWER(email) = ?", strings.ToLower(identifier))
	} else {
		q = q.Where("phone_number = ?", identifier)
	}

	var u models.User
	if err := q.First(&u).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return apperror.Unauthenticated("Invalid credentials")
		}
		return err
	}
	if bcrypt.CompareHashAndPassword([]byte(u.PasswordHash), []byte(in.Password)) != nil || !u.IsActive {
		return apperror.Unauthenticated("Invalid credentials")
	}

	token, err := h.tokens.Issue(u)
	if err != nil {
		return err
	}
	v, err := h.view(c, u)
	if err != nil {
		return err
	}
	resp := AuthResponse{Token: token, Role: u.Role, User: v}
	if u.Role == models.RoleLawyer {
		resp.VerificationStatus = v.VerificationStatus
	}
	return c.JSON(resp)
}

/* ================================ Logout ================================ */

// @Summary      Logout
// @Description  Revoke the presented access token
// @Tags         auth
// @Security     BearerAuth
// @Produce      json
// @Success      200  {object}  map[string]string
// @Failure      401  {object}  models.ErrorResponse
// @Router       /auth/logout [post]
func (h *Handler) Logout(c *fiber.Ctx) error {
	claims, _ := c.Locals("claims").(*Claims)
	if err := h.tokens.Revoke(c.UserContext(), claims); err != nil {
		return err
	}
	return c.JSON(messageResponse{Message: "Logged out"})
}

/* ================================ Refresh =============================== */

// @Summary      Refresh token
// @Description  Issue a fresh access token for the current account and revoke the presented one
// @Tags         auth
// @Security     BearerAuth
// @Produce      json
// @Success      200  {object}  AuthResponse
// @Failure      401  {object}  models.ErrorResponse
// @Router       /auth/refresh [post]
func (h *Handler) Refresh(c *fiber.Ctx) error {
	var u models.User
	if err := h.db.WithContext(c.UserContext()).First(&u, "id = ?", MustUserID(c)).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return apperror.Unauthenticated("")
		}
		return err
	}
	if !u.IsActive {
		return apperror.Unauthenticated("Account is inactive")
	}

	token, err := h.tokens.Issue(u)
	if err != nil {
		return err
	}
	claims, _ := c.Locals("claims").(*Claims)
	if err := h.tokens.Revoke(c.UserContext(), claims); err != nil {
		return err
	}
	v, err := h.view(c, u)
	if err != nil {
		return err
	}
	resp := AuthResponse{Token: token, Role: u.Role, User: v}
	if u.Role == models.RoleLawyer {
		resp.VerificationStatus = v.VerificationStatus
	}
	return c.JSON(resp)
}
