package reviews

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
	"gorm.io/gorm"

	"github.com/aldoetobex/legal-aid-backend/internal/auth"
	"github.com/aldoetobex/legal-aid-backend/internal/testdb"
	"github.com/aldoetobex/legal-aid-backend/pkg/models"
)

/* ===== helpers ===== */

func newTestApp(h *Handler, userID uuid.UUID, role models.Role) *fiber.App {
	app := fiber.New(fiber.Config{ErrorHandler: auth.ErrorHandler})
	app.Use(testdb.InjectAuth(userID, role))
	app.Post("/api/reviews", h.Upsert)
	app.Get("/api/lawyers/:id/reviews", h.ListForLawyer)
	return app
}

func post(t *testing.T, app *fiber.App, body string) int {
	t.Helper()
	req := httptest.NewRequest("POST", "/api/reviews", strings.NewReader(body))
	req.Header.Set("Content-Type", "application/json")
	resp, err := app.Test(req, -1)
	if err != nil {
		t.Fatal(err)
	}
	resp.Body.Close()
	return resp.StatusCode
}

func booking(t *testing.T, db *gorm.DB, citizenID, lawyerID uuid.UUID, st models.BookingStatus) models.ConsultationBooking {
	t.Helper()
	start := time.Now().Add(-48 * time.Hour)
	b := models.ConsultationBooking{
		CitizenID: citizenID, LawyerID: lawyerID, Status: st,
		ScheduledStart: start, ScheduledEnd: start.Add(time.Hour),
	}
	if err := db.Omit("Citizen", "Lawyer").Create(&b).Error; err != nil {
		t.Fatal(err)
	}
	return b
}

/* ================== TESTS ================== */

func Test_Upsert_UpdatesExistingAndRecomputesAggregate(t *testing.T) {
	db := testdb.Open(t)
	c1 := testdb.Citizen(t, db, "Rahima")
	c2 := testdb.Citizen(t, db, "Karim")
	_, lp := testdb.Lawyer(t, db, "Kamal", models.VerificationVerified)
	b1 := booking(t, db, c1.ID, lp.ID, models.BookingCompleted)
	b2 := booking(t, db, c2.ID, lp.ID, models.BookingCompleted)
	h := NewHandler(db)

	app1 := newTestApp(h, c1.ID, models.RoleCitizen)
	if code := post(t, app1, fmt.Sprintf(`{"booking_id":%q,"rating":2,"comment":"late"}`, b1.ID)); code != 201 {
		t.Fatalf("upsert-1 got %d", code)
	}
	if code := post(t, app1, fmt.Sprintf(`{"booking_id":%q,"rating":4,"comment":"fine"}`, b1.ID)); code != 201 {
		t.Fatalf("upsert-2 got %d", code)
	}
	if code := post(t, newTestApp(h, c2.ID, models.RoleCitizen), fmt.Sprintf(`{"booking_id":%q,"rating":5}`, b2.ID)); code != 201 {
		t.Fatalf("second citizen got %d", code)
	}

	var cnt int64
	db.Model(&models.LawyerReview{}).Where("booking_id = ?", b1.ID).Count(&cnt)
	if cnt != 1 {
		t.Fatalf("want 1 row for booking, got %d", cnt)
	}

	var stored models.LawyerProfile
	if err := db.First(&stored, "id = ?", lp.ID).Error; err != nil {
		t.Fatal(err)
	}
	if stored.TotalReviews != 2 || stored.RatingAverage != 4.5 {
		t.Fatalf("aggregate not recomputed: total=%d avg=%v", stored.TotalReviews, stored.RatingAverage)
	}

	var page struct {
		Total int64 `json:"total"`
		Items []struct {
			CitizenName string `json:"citizen_name"`
		} `json:"items"`
	}
	resp, _ := app1.Test(httptest.NewRequest("GET", "/api/lawyers/"+lp.ID.String()+"/reviews", nil), -1)
	raw, _ := io.ReadAll(resp.Body)
	_ = json.Unmarshal(raw, &page)
	if resp.StatusCode != 200 || page.Total != 2 {
		t.Fatalf("list: %d %s", resp.StatusCode, raw)
	}
}

func Test_Upsert_Rejections(t *testing.T) {
	db := testdb.Open(t)
	citizen := testdb.Citizen(t, db, "Rahima")
	stranger := testdb.Citizen(t, db, "Stranger")
	lu, lp := testdb.Lawyer(t, db, "Kamal", models.VerificationVerified)
	h := NewHandler(db)
	app := newTestApp(h, citizen.ID, models.RoleCitizen)

	for _, st := range []models.BookingStatus{models.BookingPending, models.BookingConfirmed, models.BookingCancelled} {
		b := booking(t, db, citizen.ID, lp.ID, st)
		if code := post(t, app, fmt.Sprintf(`{"booking_id":%q,"rating":5}`, b.ID)); code != 409 {
			t.Fatalf("status %s: want 409, got %d", st, code)
		}
	}

	done := booking(t, db, citizen.ID, lp.ID, models.BookingCompleted)
	if code := post(t, app, fmt.Sprintf(`{"booking_id":%q,"rating":6}`, done.ID)); code != 400 {
		t.Fatalf("rating 6: want 400, got %d", code)
	}
	if code := post(t, newTestApp(h, stranger.ID, models.RoleCitizen), fmt.Sprintf(`{"booking_id":%q,"rating":5}`, done.ID)); code != 404 {
		t.Fatalf("stranger: want 404, got %d", code)
	}
	if code := post(t, newTestApp(h, lu.ID, models.RoleLawyer), fmt.Sprintf(`{"booking_id":%q,"rating":5}`, done.ID)); code != 403 {
		t.Fatalf("lawyer reviewing self: want 403, got %d", code)
	}
}
