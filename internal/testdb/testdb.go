// Package testdb opens the integration-test database and seeds common fixtures.
// Tests that use it are skipped when TEST_DATABASE_URL is not set.
package testdb

import (
	"os"
	"testing"
	"time"

	"github.com/gofiber/fiber/v2"
	"github.com/google/uuid"
	"github.com/joho/godotenv"
	"gorm.io/driver/postgres"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"

	"github.com/aldoetobex/legal-aid-backend/pkg/models"
)

// Open loads TEST_DATABASE_URL, opens a real Postgres connection, runs
// migrations, and registers a cleanup that truncates every table after the test.
func Open(t *testing.T) *gorm.DB {
	t.Helper()
	_ = godotenv.Load()

	dsn := os.Getenv("TEST_DATABASE_URL")
	if dsn == "" {
		t.Skip("TEST_DATABASE_URL is empty")
	}
	db, err := gorm.Open(postgres.Open(dsn), &gorm.Config{Logger: logger.Default.LogMode(logger.Silent)})
	if err != nil {
		t.Fatalf("open db: %v", err)
	}
	if err := db.AutoMigrate(models.All()...); err != nil {
		t.Fatalf("migrate: %v", err)
	}

	// Truncate AFTER each test (data survives within a single test).
	t.Cleanup(func() {
		sql := `
TRUNCATE TABLE
	payments,
	lawyer_reviews,
	chat_messages,
	notifications,
	consultation_bookings,
	evidence_documents,
	case_activity_logs,
	cases,
	availability_rules,
	lawyer_specializations_map,
	legal_specializations,
	admin_profiles,
	lawyer_profiles,
	citizen_profiles,
	users
RESTART IDENTITY CASCADE`
		if err := db.Exec(sql).Error; err != nil {
			t.Logf("truncate failed (ignored): %v", err)
		}
	})
	return db
}

// InjectAuth puts the auth locals into the Fiber context without a real JWT.
func InjectAuth(userID uuid.UUID, role models.Role) fiber.Handler {
	id := userID.String()
	return func(c *fiber.Ctx) error {
		c.Locals("userID", id)
		c.Locals("role", string(role))
		return c.Next()
	}
}

// Citizen inserts an active, verified citizen with a profile.
func Citizen(t *testing.T, db *gorm.DB, name string) models.User {
	t.Helper()
	u := user(t, db, models.RoleCitizen, true)
	if err := db.Create(&models.CitizenProfile{UserID: u.ID, FullNameEn: name}).Error; err != nil {
		t.Fatal(err)
	}
	return u
}

// Lawyer inserts an active lawyer account and profile with the given status.
func Lawyer(t *testing.T, db *gorm.DB, name string, status models.VerificationStatus) (models.User, models.LawyerProfile) {
	t.Helper()
	u := user(t, db, models.RoleLawyer, status == models.VerificationVerified)
	lp := models.LawyerProfile{
		UserID:             u.ID,
		BarCouncilNumber:   "BAR-" + u.ID.String()[:8],
		LicenseIssueDate:   time.Date(2015, 6, 1, 0, 0, 0, 0, time.UTC),
		FullNameEn:         name,
		VerificationStatus: status,
	}
	if err := db.Create(&lp).Error; err != nil {
		t.Fatal(err)
	}
	lp.User = u
	return u, lp
}

// Admin inserts a staff account with a profile.
func Admin(t *testing.T, db *gorm.DB) models.User {
	t.Helper()
	u := user(t, db, models.RoleAdmin, true)
	u.IsStaff = true
	if err := db.Model(&u).Update("is_staff", true).Error; err != nil {
		t.Fatal(err)
	}
	if err := db.Create(&models.AdminProfile{UserID: u.ID, FullName: "Admin"}).Error; err != nil {
		t.Fatal(err)
	}
	return u
}

// Case inserts a case owned by citizenID, optionally assigned.
func Case(t *testing.T, db *gorm.DB, citizenID uuid.UUID, lawyerProfileID *uuid.UUID) models.Case {
	t.Helper()
	cs := models.Case{
		CitizenID:        citizenID,
		AssignedLawyerID: lawyerProfileID,
		Title:            "Land dispute",
		Description:      "Boundary disagreement with neighbour",
		Status:           models.CaseSubmitted,
		Priority:         models.PriorityMedium,
		SubmissionDate:   time.Now(),
	}
	if err := db.Create(&cs).Error; err != nil {
		t.Fatal(err)
	}
	return cs
}

func user(t *testing.T, db *gorm.DB, role models.Role, verified bool) models.User {
	t.Helper()
	id := uuid.New()
	u := models.User{
		ID:           id,
		Email:        string(role) + "_" + id.String()[:8] + "@test.local",
		PhoneNumber:  "+8801" + id.String()[:8],
		PasswordHash: "x",
		Role:         role,
		IsActive:     true,
		IsVerified:   verified,
	}
	if err := db.Create(&u).Error; err != nil {
		t.Fatal(err)
	}
	return u
}
