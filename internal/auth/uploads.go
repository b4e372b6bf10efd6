package auth

import (
	"log/slog"
	"mime"
	"path/filepath"

	"github.com/gofiber/fiber/v2"
	"github.com/google/uuid"

	"github.com/aldoetobex/legal-aid-backend/internal/storage"
)

const maxProfileFileBytes = 5 * 1024 * 1024

// uploadOptional stores the first present multipart file among fields and
// returns its key. Failures are logged and yield "" so a bad avatar never
// blocks registration or a profile update.
func uploadOptional(c *fiber.Ctx, files storage.ObjectStore, userID uuid.UUID, kind string, fields ...string) string {
	if files == nil {
		return ""
	}
	form, err := c.MultipartForm()
	if err != nil {
		return ""
	}
	for _, field := range fields {
		list := form.File[field]
		if len(list) == 0 {
			continue
		}
		fh := list[0]
		if fh.Size <= 0 || fh.Size > maxProfileFileBytes {
			slog.Warn("skipping profile file", "field", field, "size", fh.Size, "user_id", userID)
			return ""
		}
		ct := fh.Header.Get("Content-Type")
		if ct == "" {
			ct = mime.TypeByExtension(filepath.Ext(fh.Filename))
		}
		f, err := fh.Open()
		if err != nil {
			slog.Warn("open profile file failed", "field", field, "err", err)
			return ""
		}
		defer f.Close()

		key := storage.UserFileKey(userID, kind, fh.Filename)
		if err := files.Upload(c.UserContext(), key, f, ct, fh.Size); err != nil {
			slog.Warn("upload profile file failed", "field", field, "user_id", userID, "err", err)
			return ""
		}
		return key
	}
	return ""
}
