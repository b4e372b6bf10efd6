package accounts

import (
	"context"
	"log/slog"

	"gorm.io/gorm"

	"github.com/aldoetobex/legal-aid-backend/pkg/models"
)

// LinkSpecializations attaches the specializations named by refs (slug or English
// name, case-insensitive) to lp. Unknown refs and per-item failures are logged and
// skipped. With replace set, existing links are cleared first.
func LinkSpecializations(ctx context.Context, db *gorm.DB, lp *models.LawyerProfile, refs []string, replace bool) int {
	db = db.WithContext(ctx)
	assoc := db.Model(lp).Association("Specializations")

	if replace {
		if err := assoc.Clear(); err != nil {
			slog.Warn("clear specializations failed", "lawyer_id", lp.ID, "err", err)
			return 0
		}
	}

	linked := 0
	for _, ref := range refs {
		var spec models.LegalSpecialization
		err := db.Where("LOWER(slug) = LOWER(?) OR LOWER(name_en) = LOWER(?)", ref, ref).First(&spec).Error
		if err != nil {
			slog.Warn("unknown specialization, skipping", "ref", ref, "lawyer_id", lp.ID, "err", err)
			continue
		}
		if err := db.Model(lp).Association("Specializations").Append(&spec); err != nil {
			slog.Warn("link specialization failed", "ref", ref, "lawyer_id", lp.ID, "err", err)
			continue
		}
		linked++
	}
	return linked
}
