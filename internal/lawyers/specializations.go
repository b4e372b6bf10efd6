package lawyers

import (
	"regexp"
	"strings"

	"github.com/gofiber/fiber/v2"

	"github.com/aldoetobex/legal-aid-backend/pkg/apperror"
	"github.com/aldoetobex/legal-aid-backend/pkg/models"
	"github.com/aldoetobex/legal-aid-backend/pkg/validation"
)

type CreateSpecializationRequest struct {
	NameEn        string `json:"name_en" validate:"required,min=2,max=100"`
	NameBn        string `json:"name_bn" validate:"max=100"`
	Slug          string `json:"slug" validate:"omitempty,slug,max=100"`
	DescriptionEn string `json:"description_en" validate:"max=2000"`
}

var reNonSlug = regexp.MustCompile(`[^a-z0-9]+`)

// Slugify lower-cases s and joins its words with dashes.
func Slugify(s string) string {
	return strings.Trim(reNonSlug.ReplaceAllString(strings.ToLower(s), "-"), "-")
}

// Specializations godoc
// @Summary      List specializations
// @Tags         lawyers
// @Produce      json
// @Success      200  {array}  models.LegalSpecialization
// @Router       /specializations [get]
func (h *Handler) Specializations(c *fiber.Ctx) error {
	list := []models.LegalSpecialization{}
	if err := h.db.WithContext(c.UserContext()).
		Where("is_active = ?", true).
		Order("name_en ASC").
		Find(&list).Error; err != nil {
		return err
	}
	return c.JSON(list)
}

// CreateSpecialization godoc
// @Summary      Add a specialization
// @Tags         lawyers
// @Security     BearerAuth
// @Accept       json
// @Produce      json
// @Param        payload  body  CreateSpecializationRequest  true  "Specialization"
// @Success      201  {object}  models.LegalSpecialization
// @Failure      400  {object}  models.ValidationErrorResponse
// @Failure      403  {object}  models.ErrorResponse
// @Failure      409  {object}  models.ErrorResponse
// @Router       /specializations [post]
func (h *Handler) CreateSpecialization(c *fiber.Ctx) error {
	var in CreateSpecializationRequest
	if err := c.BodyParser(&in); err != nil {
		return fiber.ErrBadRequest
	}
	in.NameEn = strings.TrimSpace(in.NameEn)
	in.Slug = strings.TrimSpace(in.Slug)
	if in.Slug == "" {
		in.Slug = Slugify(in.NameEn)
	}
	if errs, _ := validation.Validate(in); errs != nil {
		return validation.Respond(c, errs)
	}

	db := h.db.WithContext(c.UserContext())
	var n int64
	if err := db.Model(&models.LegalSpecialization{}).Where("LOWER(slug) = ?", strings.ToLower(in.Slug)).Count(&n).Error; err != nil {
		return err
	}
	if n > 0 {
		return apperror.Conflict("A specialization with this slug already exists.")
	}

	spec := models.LegalSpecialization{
		NameEn:        in.NameEn,
		NameBn:        strings.TrimSpace(in.NameBn),
		Slug:          in.Slug,
		DescriptionEn: strings.TrimSpace(in.DescriptionEn),
		IsActive:      true,
	}
	if err := db.Create(&spec).Error; err != nil {
		return err
	}
	return c.Status(fiber.StatusCreated).JSON(spec)
}
