package bookings

import (
	"encoding/json"
	"fmt"
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
	"github.com/aldoetobex/legal-aid-backend/pkg/models"
)

func newTestApp(h *Handler, userID uuid.UUID, role models.Role) *fiber.App {
	app := fiber.New(fiber.Config{ErrorHandler: auth.ErrorHandler})
	app.Use(testdb.InjectAuth(userID, role))

	app.Get("/api/bookings", h.List)
	app.Post("/api/bookings", h.Create)
	app.Post("/api/bookings/:id/cancel", h.Cancel)
	app.Get("/api/bookings/:id", h.Get)
	app.Patch("/api/bookings/:id", h.Update)
	return app
}

func doJSON(t *testing.T, app *fiber.App, method, path, body string, out any) int {
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

func tomorrow() string {
	return time.Now().Add(24 * time.Hour).UTC().Truncate(time.Hour).Format(time.RFC3339)
}

func Test_Create_EnrichedAndNotifies(t *testing.T) {
	db := testdb.Open(t)
	citizen := testdb.Citizen(t, db, "Rahima Khatun")
	lu, lp := testdb.Lawyer(t, db, "Kamal Hossain", models.VerificationVerified)
	spec := models.LegalSpecialization{NameEn: "Family Law", Slug: "family-law-" + lp.ID.String()[:8], IsActive: true}
	if err := db.Create(&spec).Error; err != nil {
		t.Fatal(err)
	}
	if err := db.Model(&lp).Association("Specializations").Append(&spec); err != nil {
		t.Fatal(err)
	}
	app := newTestApp(NewHandler(db, storage.NewMemory()), citizen.ID, models.RoleCitizen)

	var out BookingView
	body := fmt.Sprintf(`{"lawyer_id":%q,"scheduled_start":%q}`, lp.ID, tomorrow())
	if code := doJSON(t, app, "POST", "/api/bookings", body, &out); code != fiber.StatusCreated {
		t.Fatalf("want 201, got %d", code)
	}
	if out.Status != models.BookingPending || out.CitizenID != citizen.ID {
		t.Fatalf("unexpected booking: %+v", out.ConsultationBooking)
	}
	if out.CitizenName != "Rahima Khatun" || out.LawyerName != "Kamal Hossain" || out.Specialization != "Family Law" {
		t.Fatalf("not enriched: %+v", out)
	}
	if got := out.ScheduledEnd.Sub(out.ScheduledStart); got != time.Hour {
		t.Fatalf("default duration: want 1h, got %s", got)
	}

	var n int64
	db.Model(&models.Notification{}).Where("user_id = ? AND type = ?", lu.ID, models.NotifyBooking).Count(&n)
	if n != 1 {
		t.Fatalf("lawyer should be notified once, got %d", n)
	}
}

func Test_Create_Rejections(t *testing.T) {
	db := testdb.Open(t)
	citizen := testdb.Citizen(t, db, "Rahima Khatun")
	other := testdb.Citizen(t, db, "Someone Else")
	_, pending := testdb.Lawyer(t, db, "Pending Lawyer", models.VerificationPending)
	_, lp := testdb.Lawyer(t, db, "Kamal Hossain", models.VerificationVerified)
	app := newTestApp(NewHandler(db, storage.NewMemory()), citizen.ID, models.RoleCitizen)

	var out struct {
		Code   string              `json:"code"`
		Errors map[string][]string `json:"errors"`
	}

	if code := doJSON(t, app, "POST", "/api/bookings", `{}`, &out); code != fiber.StatusBadRequest {
		t.Fatalf("empty: want 400, got %d", code)
	}
	if len(out.Errors["lawyer_id"]) == 0 || len(out.Errors["scheduled_start"]) == 0 {
		t.Fatalf("missing field errors: %+v", out.Errors)
	}

	out.Errors = nil
	body := fmt.Sprintf(`{"lawyer_id":%q,"scheduled_start":%q}`, pending.ID, tomorrow())
	if code := doJSON(t, app, "POST", "/api/bookings", body, &out); code != fiber.StatusBadRequest || len(out.Errors["lawyer_id"]) == 0 {
		t.Fatalf("unverified lawyer: want 400 on lawyer_id, got %d %+v", code, out.Errors)
	}

	out.Errors = nil
	start := time.Now().Add(48 * time.Hour).UTC().Truncate(time.Hour)
	body = fmt.Sprintf(`{"lawyer_id":%q,"scheduled_start":%q,"scheduled_end":%q}`,
		lp.ID, start.Format(time.RFC3339), start.Add(-time.Hour).Format(time.RFC3339))
	if code := doJSON(t, app, "POST", "/api/bookings", body, &out); code != fiber.StatusBadRequest || len(out.Errors["scheduled_end"]) == 0 {
		t.Fatalf("inverted range: want 400 on scheduled_end, got %d %+v", code, out.Errors)
	}

	body = fmt.Sprintf(`{"lawyer_id":%q,"citizen_id":%q,"scheduled_start":%q}`, lp.ID, other.ID, tomorrow())
	if code := doJSON(t, app, "POST", "/api/bookings", body, &out); code != fiber.StatusForbidden || out.Code != "NOT_OWNER" {
		t.Fatalf("booking for someone else: want 403 NOT_OWNER, got %d %q", code, out.Code)
	}
}

func Test_OverlappingBookingsAllowed(t *testing.T) {
	db := testdb.Open(t)
	a := testdb.Citizen(t, db, "First")
	b := testdb.Citizen(t, db, "Second")
	_, lp := testdb.Lawyer(t, db, "Kamal Hossain", models.VerificationVerified)
	h := NewHandler(db, storage.NewMemory())

	body := fmt.Sprintf(`{"lawyer_id":%q,"scheduled_start":%q}`, lp.ID, tomorrow())
	for _, u := range []models.User{a, b} {
		if code := doJSON(t, newTestApp(h, u.ID, models.RoleCitizen), "POST", "/api/bookings", body, nil); code != fiber.StatusCreated {
			t.Fatalf("want 201, got %d", code)
		}
	}
}

func Test_VisibilityUpdateAndCancel(t *testing.T) {
	db := testdb.Open(t)
	citizen := testdb.Citizen(t, db, "Rahima Khatun")
	stranger := testdb.Citizen(t, db, "Stranger")
	lu, lp := testdb.Lawyer(t, db, "Kamal Hossain", models.VerificationVerified)
	admin := testdb.Admin(t, db)
	h := NewHandler(db, storage.NewMemory())

	citizenApp := newTestApp(h, citizen.ID, models.RoleCitizen)
	var created BookingView
	body := fmt.Sprintf(`{"lawyer_id":%q,"scheduled_start":%q}`, lp.ID, tomorrow())
	doJSON(t, citizenApp, "POST", "/api/bookings", body, &created)
	path := "/api/bookings/" + created.ID.String()

	if code := doJSON(t, newTestApp(h, stranger.ID, models.RoleCitizen), "GET", path, "", nil); code != fiber.StatusNotFound {
		t.Fatalf("stranger: want 404, got %d", code)
	}
	var page PageBookings
	doJSON(t, newTestApp(h, stranger.ID, models.RoleCitizen), "GET", "/api/bookings", "", &page)
	if page.Total != 0 {
		t.Fatalf("stranger sees %d bookings", page.Total)
	}
	doJSON(t, newTestApp(h, admin.ID, models.RoleAdmin), "GET", "/api/bookings", "", &page)
	if page.Total < 1 {
		t.Fatal("admin should see every booking")
	}

	lawyerApp := newTestApp(h, lu.ID, models.RoleLawyer)
	var updated BookingView
	code := doJSON(t, lawyerApp, "PATCH", path, `{"status":"confirmed","meeting_link":"https://meet.example.com/abc"}`, &updated)
	if code != fiber.StatusOK || updated.Status != models.BookingConfirmed || updated.MeetingLink != "https://meet.example.com/abc" {
		t.Fatalf("lawyer confirm: %d %+v", code, updated.ConsultationBooking)
	}
	var n int64
	db.Model(&models.Notification{}).Where("user_id = ?", citizen.ID).Count(&n)
	if n != 1 {
		t.Fatalf("citizen should be notified of the confirmation, got %d", n)
	}

	var cancelled BookingView
	if code := doJSON(t, citizenApp, "POST", path+"/cancel", `{"reason":"Resolved out of court"}`, &cancelled); code != fiber.StatusOK {
		t.Fatalf("cancel: want 200, got %d", code)
	}
	if cancelled.Status != models.BookingCancelled || cancelled.CancellationReason != "Resolved out of court" {
		t.Fatalf("unexpected cancel result: %+v", cancelled.ConsultationBooking)
	}
	if code := doJSON(t, citizenApp, "POST", path+"/cancel", ``, nil); code != fiber.StatusConflict {
		t.Fatalf("second cancel: want 409, got %d", code)
	}
}

func Test_List_FiltersByClientAndLawyer(t *testing.T) {
	db := testdb.Open(t)
	a := testdb.Citizen(t, db, "First")
	b := testdb.Citizen(t, db, "Second")
	lu, lp := testdb.Lawyer(t, db, "Kamal Hossain", models.VerificationVerified)
	_, lp2 := testdb.Lawyer(t, db, "Nasrin Akter", models.VerificationVerified)
	admin := testdb.Admin(t, db)
	h := NewHandler(db, storage.NewMemory())

	book := func(u models.User, lawyer uuid.UUID) {
		body := fmt.Sprintf(`{"lawyer_id":%q,"scheduled_start":%q}`, lawyer, tomorrow())
		if code := doJSON(t, newTestApp(h, u.ID, models.RoleCitizen), "POST", "/api/bookings", body, nil); code != fiber.StatusCreated {
			t.Fatalf("book: want 201, got %d", code)
		}
	}
	book(a, lp.ID)
	book(b, lp.ID)
	book(b, lp2.ID)

	app := newTestApp(h, admin.ID, models.RoleAdmin)
	count := func(query string) int64 {
		t.Helper()
		var page PageBookings
		if code := doJSON(t, app, "GET", "/api/bookings"+query, "", &page); code != fiber.StatusOK {
			t.Fatalf("%s: want 200, got %d", query, code)
		}
		return page.Total
	}

	if n := count("?clientId=" + b.ID.String()); n != 2 {
		t.Fatalf("clientId: want 2, got %d", n)
	}
	if n := count("?lawyerId=" + lu.ID.String()); n != 2 {
		t.Fatalf("lawyerId as user id: want 2, got %d", n)
	}
	if n := count("?lawyerId=" + lp.ID.String()); n != 2 {
		t.Fatalf("lawyerId as profile id: want 2, got %d", n)
	}
	if n := count("?clientId=" + b.ID.String() + "&lawyerId=" + lp2.ID.String()); n != 1 {
		t.Fatalf("combined: want 1, got %d", n)
	}
	if code := doJSON(t, app, "GET", "/api/bookings?clientId=x", "", nil); code != fiber.StatusBadRequest {
		t.Fatalf("bad clientId: want 400, got %d", code)
	}
}
