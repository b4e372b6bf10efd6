package documents

import (
	"errors"
	"log/slog"
	"mime"
	"path/filepath"
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
	"github.com/aldoetobex/legal-aid-backend/pkg/utils"
	"github.com/aldoetobex/legal-aid-backend/pkg/validation"
)

const (
	maxFiles        = 10
	maxFileBytes    = 10 * 1024 * 1024
	signedURLExpiry = 60 // seconds
)

var allowedTypes = map[string]bool{
	"application/pdf": true,
	"image/png":       true,
	"image/jpeg":      true,
}

type Handler struct {
	db    *gorm.DB
	files storage.ObjectStore
}

func NewHandler(db *gorm.DB, files storage.ObjectStore) *Handler {
	return &Handler{db: db, files: files}
}

type PageDocuments = models.Page[models.EvidenceDocument]

// UploadResult reports one file of a multi-file upload.
type UploadResult struct {
	Name  string     `json:"name"`
	Size  int64      `json:"size"`
	ID    *uuid.UUID `json:"id,omitempty"`
	Error string     `json:"error,omitempty"`
}

func (h *Handler) loadDocument(c *fiber.Ctx, a policy.Actor) (models.EvidenceDocument, error) {
	var d models.EvidenceDocument
	id, err := uuid.Parse(c.Params("id"))
	if err != nil {
		return d, apperror.NotFound("Document")
	}
	err = h.db.WithContext(c.UserContext()).
		Preload("Case.AssignedLawyer").
		First(&d, "id = ?", id).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return d, apperror.NotFound("Document")
	}
	if err != nil {
		return d, err
	}
	if !policy.CanReadDocument(a, d) {
		return d, apperror.NotFound("Document")
	}
	return d, nil
}

// List Documents godoc
// @Summary      List evidence documents
// @Description  Documents the caller may see, optionally for one case.
// @Tags         documents
// @Security     BearerAuth
// @Produce      json
// @Param        case_id   query string false "case id"
// @Param        page      query int    false "page"
// @Param        pageSize  query int    false "pageSize"
// @Success      200  {object}  PageDocuments
// @Failure      401  {object}  models.ErrorResponse
// @Router       /documents [get]
func (h *Handler) List(c *fiber.Ctx) error {
	a := auth.ActorOf(c)
	page, size := utils.ParsePage(c)

	q := h.db.WithContext(c.UserContext()).Model(&models.EvidenceDocument{}).Scopes(policy.VisibleDocuments(a))
	if raw := c.Query("case_id"); raw != "" {
		caseID, err := uuid.Parse(raw)
		if err != nil {
			return validation.Respond(c, validation.Field("case_id", "Invalid UUID format"))
		}
		q = q.Where("evidence_documents.case_id = ?", caseID)
	}

	var total int64
	if err := q.Count(&total).Error; err != nil {
		return err
	}
	var list []models.EvidenceDocument
	if err := q.Order("evidence_documents.uploaded_at DESC").
		Offset((page - 1) * size).Limit(size).
		Find(&list).Error; err != nil {
		return err
	}
	return c.JSON(utils.NewPage(page, size, total, list))
}

// Upload godoc
// @Summary      Upload evidence (PDF/PNG/JPEG)
// @Description  Uploads up to 10 files to a case the caller can read. Each file succeeds or fails on its own.
// @Tags         documents
// @Security     BearerAuth
// @Accept       multipart/form-data
// @Produce      json
// @Param        case_id  formData  string  true  "case id"
// @Param        files    formData  []file  true  "PDF/PNG/JPEG (max 10, 10MB each)"
// @Success      201  {array}   UploadResult
// @Failure      400  {object}  models.ErrorResponse
// @Failure      404  {object}  models.ErrorResponse
// @Router       /documents [post]
func (h *Handler) Upload(c *fiber.Ctx) error {
	a := auth.ActorOf(c)
	ctx := c.UserContext()

	form, err := c.MultipartForm()
	if err != nil {
		return fiber.NewError(fiber.StatusBadRequest, "multipart form required; use files[]")
	}

	caseID, err := uuid.Parse(strings.TrimSpace(c.FormValue("case_id")))
	if err != nil {
		return validation.Respond(c, validation.Field("case_id", "This field is required"))
	}
	var cs models.Case
	err = h.db.WithContext(ctx).Preload("AssignedLawyer").First(&cs, "id = ?", caseID).Error
	if errors.Is(err, gorm.ErrRecordNotFound) || (err == nil && !policy.CanReadCase(a, cs)) {
		return apperror.NotFound("Case")
	}
	if err != nil {
		return err
	}

	// Swagger UI sends "files" even when the docs say files[].
	files := form.File["files[]"]
	if len(files) == 0 {
		files = form.File["files"]
	}
	if len(files) == 0 {
		files = form.File["file"]
	}
	if len(files) == 0 {
		return fiber.NewError(fiber.StatusBadRequest, "files are required (use key: files[])")
	}
	if len(files) > maxFiles {
		return fiber.NewError(fiber.StatusBadRequest, "max 10 files allowed")
	}

	results := make([]UploadResult, 0, len(files))
	stored := 0
	for _, fh := range files {
		res := UploadResult{Name: fh.Filename, Size: fh.Size}

		if fh.Size <= 0 {
			res.Error = "empty file"
			results = append(results, res)
			continue
		}
		if fh.Size > maxFileBytes {
			res.Error = "max 10MB per file"
			results = append(results, res)
			continue
		}
		ct := fh.Header.Get("Content-Type")
		if ct == "" {
			ct = mime.TypeByExtension(filepath.Ext(fh.Filename))
		}
		if !allowedTypes[ct] {
			res.Error = "only PDF, PNG or JPEG are allowed"
			results = append(results, res)
			continue
		}

		f, err := fh.Open()
		if err != nil {
			res.Error = "open failed"
			results = append(results, res)
			continue
		}
		key := storage.DocumentKey(cs.ID, fh.Filename)
		err = h.files.Upload(ctx, key, f, ct, fh.Size)
		f.Close()
		if err != nil {
			slog.Warn("evidence upload failed", "case_id", cs.ID, "name", fh.Filename, "err", err)
			res.Error = "upload failed"
			results = append(results, res)
			continue
		}

		doc := models.EvidenceDocument{
			CaseID:        cs.ID,
			UploaderID:    a.ID,
			FileName:      fh.Filename,
			StorageKey:    key,
			FileSizeBytes: fh.Size,
			MimeType:      ct,
		}
		if err := h.db.WithContext(ctx).Omit("Case").Create(&doc).Error; err != nil {
			// Don't leave an orphaned object behind.
			_ = h.files.Delete(ctx, key)
			res.Error = "database error"
			results = append(results, res)
			continue
		}
		res.ID = &doc.ID
		results = append(results, res)
		stored++
	}

	if stored > 0 {
		utils.LogCaseActivity(ctx, h.db, cs.ID, a.ID, "document_uploaded", "", strings.Join(names(results), ", "))
	}
	// 201 even on partial failure; clients check each item's "error".
	return c.Status(fiber.StatusCreated).JSON(results)
}

func names(results []UploadResult) []string {
	out := make([]string, 0, len(results))
	for _, r := range results {
		if r.Error == "" {
			out = append(out, r.Name)
		}
	}
	return out
}

// Signed Download URL godoc
// @Summary      Get signed URL
// @Description  Anyone who can read the document gets a short-lived download URL.
// @Tags         documents
// @Security     BearerAuth
// @Produce      json
// @Param        id  path string true "document id"
// @Success      200  {object}  map[string]any  "url, expires_in, now"
// @Failure      404  {object}  models.ErrorResponse
// @Router       /documents/{id}/signed-url [get]
func (h *Handler) SignedURL(c *fiber.Ctx) error {
	d, err := h.loadDocument(c, auth.ActorOf(c))
	if err != nil {
		return err
	}
	url, err := h.files.SignedURL(c.UserContext(), d.StorageKey, signedURLExpiry)
	if err != nil {
		return err
	}
	return c.JSON(fiber.Map{"url": url, "expires_in": signedURLExpiry, "now": time.Now().UTC()})
}

// Delete godoc
// @Summary      Delete evidence document
// @Description  Removes the stored object (already-missing objects are fine) and the record.
// @Tags         documents
// @Security     BearerAuth
// @Param        id  path string true "document id"
// @Success      204
// @Failure      404  {object}  models.ErrorResponse
// @Router       /documents/{id} [delete]
func (h *Handler) Delete(c *fiber.Ctx) error {
	a := auth.ActorOf(c)
	d, err := h.loadDocument(c, a)
	if err != nil {
		return err
	}
	if !policy.CanDeleteDocument(a, d) {
		return apperror.Forbidden("", "")
	}
	ctx := c.UserContext()
	if err := h.files.Delete(ctx, d.StorageKey); err != nil {
		return err
	}
	if err := h.db.WithContext(ctx).Delete(&models.EvidenceDocument{}, "id = ?", d.ID).Error; err != nil {
		return err
	}
	utils.LogCaseActivity(ctx, h.db, d.CaseID, a.ID, "document_deleted", d.FileName, "")
	return c.SendStatus(fiber.StatusNoContent)
}
