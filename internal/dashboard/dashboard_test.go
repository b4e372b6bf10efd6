package dashboard

import (
	"encoding/json"
	"io"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/gofiber/fiber/v2"
	"github.com/google/uuid"

	"github.com/aldoetobex/legal-aid-backend/internal/auth"
	"github.com/aldoetobex/legal-aid-backend/internal/storage"
	"github.com/aldoetobex/legal-aid-backend/internal/testdb"
	"github.com/aldoetobex/legal-aid-backend/internal/users"
	"github.com/aldoetobex/legal-aid-backend/pkg/models"
	"github.com/aldoetobex/legal-aid-backend/pkg/utils"
)

var fixedNow = time.Date(2026, 10, 17, 10, 0, 0, 0, time.UTC)

func newTestApp(h *Handler, userID uuid.UUID, role models.Role) *fiber.App {
	app := fiber.New(fiber.Config{ErrorHandler: auth.ErrorHandler})
	app.Use(testdb.InjectAuth(userID, role))
	app.Get("/api/dashboard/lawyer", h.Lawyer)
	return app
}

func call(t *testing.T, app *fiber.App, method, path, body string, out any) int {
	t.Helper()
	req := httptest.NewRequest(method, path, strings.NewReader(body))
	req.Header.Set("Content-Type", "application/json")
	resp, err := app.Test(req, -1)
	if err != nil {
		t.Fatal(err)
	}
	defer resp.Body.Close()
	if out != nil {
		raw, _ := io.ReadAll(resp.Body)
		if err := json.Unmarshal(raw, out); err != nil {
			t.Fatalf("decode: %v (%s)", err, raw)
		}
	}
	return resp.StatusCode
}

func Test_Dashboard_VerificationGate(t *testing.T) {
	db := testdb.Open(t)
	admin := testdb.Admin(t, db)
	lu, _ := testdb.Lawyer(t, db, "Kamal Hossain", models.VerificationPending)
	app := newTestApp(NewHandler(db, func() time.Time { return fixedNow }), lu.ID, models.RoleLawyer)

	var denied struct {
		Code   string `json:"code"`
		Status string `json:"status"`
	}
	if code := call(t, app, "GET", "/api/dashboard/lawyer", "", &denied); code != fiber.StatusForbidden {
		t.Fatalf("pending: want 403, got %d", code)
	}
	if denied.Code != "NOT_VERIFIED" || denied.Status != "PENDING" {
		t.Fatalf("want NOT_VERIFIED/PENDING, got %+v", denied)
	}

	adminApp := fiber.New(fiber.Config{ErrorHandler: auth.ErrorHandler})
	adminApp.Use(testdb.InjectAuth(admin.ID, models.RoleAdmin))
	adminApp.Post("/api/users/:id/verification", users.NewHandler(db, storage.NewMemory()).SetVerification)
	if code := call(t, adminApp, "POST", "/api/users/"+lu.ID.String()+"/verification", `{"status":"VERIFIED"}`, nil); code != fiber.StatusOK {
		t.Fatalf("verify: want 200, got %d", code)
	}

	if code := call(t, app, "GET", "/api/dashboard/lawyer", "", nil); code != fiber.StatusOK {
		t.Fatalf("verified: want 200, got %d", code)
	}
}

func Test_Dashboard_NonLawyerForbidden(t *testing.T) {
	db := testdb.Open(t)
	citizen := testdb.Citizen(t, db, "Rahima")
	app := newTestApp(NewHandler(db, nil), citizen.ID, models.RoleCitizen)
	if code := call(t, app, "GET", "/api/dashboard/lawyer", "", nil); code != fiber.StatusForbidden {
		t.Fatalf("want 403, got %d", code)
	}
}

func Test_Dashboard_AggregatesOwnCasesOnly(t *testing.T) {
	db := testdb.Open(t)
	citizen := testdb.Citizen(t, db, "Rahima")
	lu, lp := testdb.Lawyer(t, db, "Kamal Hossain", models.VerificationVerified)
	_, otherLP := testdb.Lawyer(t, db, "Other Lawyer", models.VerificationVerified)

	inThreeDays := fixedNow.Add(72 * time.Hour)
	tomorrow := fixedNow.Add(24 * time.Hour)
	nextMonth := fixedNow.Add(30 * 24 * time.Hour)

	soon := testdb.Case(t, db, citizen.ID, &lp.ID)
	db.Model(&soon).Update("next_hearing_at", tomorrow)
	later := testdb.Case(t, db, citizen.ID, &lp.ID)
	db.Model(&later).Updates(map[string]any{"next_hearing_at": inThreeDays, "priority": models.PriorityCritical})
	far := testdb.Case(t, db, citizen.ID, &lp.ID)
	db.Model(&far).Update("next_hearing_at", nextMonth)
	closed := testdb.Case(t, db, citizen.ID, &lp.ID)
	db.Model(&closed).Update("status", models.CaseClosed)
	foreign := testdb.Case(t, db, citizen.ID, &otherLP.ID)
	db.Model(&foreign).Update("next_hearing_at", tomorrow)

	utils.LogCaseActivity(t.Context(), db, soon.ID, citizen.ID, "created", "", "")
	utils.LogCaseActivity(t.Context(), db, foreign.ID, citizen.ID, "created", "", "")

	for _, st := range []models.BookingStatus{models.BookingPending, models.BookingPending, models.BookingConfirmed} {
		b := models.ConsultationBooking{
			CitizenID: citizen.ID, LawyerID: lp.ID, Status: st,
			ScheduledStart: tomorrow, ScheduledEnd: tomorrow.Add(time.Hour),
		}
		if err := db.Omit("Citizen", "Lawyer").Create(&b).Error; err != nil {
			t.Fatal(err)
		}
	}

	app := newTestApp(NewHandler(db, func() time.Time { return fixedNow }), lu.ID, models.RoleLawyer)
	var out LawyerDashboard
	if code := call(t, app, "GET", "/api/dashboard/lawyer", "", &out); code != fiber.StatusOK {
		t.Fatalf("want 200, got %d", code)
	}

	if out.Stats.ActiveCases != 3 || out.Stats.HearingsThisWeek != 2 || out.Stats.PendingBookings != 2 {
		t.Fatalf("unexpected stats: %+v", out.Stats)
	}
	if out.CaseOverview["SUBMITTED"] != 3 || out.CaseOverview["CLOSED"] != 1 {
		t.Fatalf("unexpected overview: %+v", out.CaseOverview)
	}
	if len(out.UpcomingHearings) != 3 || out.UpcomingHearings[0].ID != soon.ID || out.UpcomingHearings[2].ID != far.ID {
		t.Fatalf("hearings should be own cases in date order: %+v", out.UpcomingHearings)
	}
	if len(out.RecentActivity) != 1 || out.RecentActivity[0].CaseID != soon.ID {
		t.Fatalf("activity should be own cases only: %+v", out.RecentActivity)
	}
	// Tomorrow's hearing and the critical case qualify; the far one does not.
	if len(out.CasesNeedingAttention) != 2 {
		t.Fatalf("want 2 cases needing attention, got %+v", out.CasesNeedingAttention)
	}
}
