package chat

import (
	"encoding/json"
	"fmt"
	"io"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/gofiber/fiber/v2"
	"github.com/google/uuid"

	"github.com/aldoetobex/legal-aid-backend/internal/auth"
	"github.com/aldoetobex/legal-aid-backend/internal/testdb"
	"github.com/aldoetobex/legal-aid-backend/pkg/models"
)

func newTestApp(h *Handler, userID uuid.UUID, role models.Role) *fiber.App {
	app := fiber.New(fiber.Config{ErrorHandler: auth.ErrorHandler})
	app.Use(testdb.InjectAuth(userID, role))
	app.Get("/api/messages", h.List)
	app.Post("/api/messages", h.Send)
	app.Post("/api/messages/:id/read", h.MarkRead)
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

func Test_Send_SenderForcedAndCaseMembersSee(t *testing.T) {
	db := testdb.Open(t)
	citizen := testdb.Citizen(t, db, "Rahima")
	lu, lp := testdb.Lawyer(t, db, "Kamal", models.VerificationVerified)
	stranger := testdb.Citizen(t, db, "Stranger")
	cs := testdb.Case(t, db, citizen.ID, &lp.ID)
	h := NewHandler(db)

	// sender_id in the body is not a field and must be ignored.
	body := fmt.Sprintf(`{"case_id":%q,"sender_id":%q,"message_text":"Hearing moved, call me at 01712345678"}`, cs.ID, stranger.ID)
	var m models.ChatMessage
	if code := doJSON(t, newTestApp(h, citizen.ID, models.RoleCitizen), "POST", "/api/messages", body, &m); code != fiber.StatusCreated {
		t.Fatalf("want 201, got %d", code)
	}
	if m.SenderID != citizen.ID {
		t.Fatalf("sender should be the caller, got %s", m.SenderID)
	}

	var page PageMessages
	doJSON(t, newTestApp(h, lu.ID, models.RoleLawyer), "GET", "/api/messages?case_id="+cs.ID.String(), "", &page)
	if page.Total != 1 {
		t.Fatalf("assigned lawyer should see 1 message, got %d", page.Total)
	}
	doJSON(t, newTestApp(h, stranger.ID, models.RoleCitizen), "GET", "/api/messages", "", &page)
	if page.Total != 0 {
		t.Fatalf("stranger should see nothing, got %d", page.Total)
	}

	var note models.Notification
	if err := db.Where("user_id = ? AND type = ?", lu.ID, models.NotifyMessage).First(&note).Error; err != nil {
		t.Fatalf("lawyer should be notified: %v", err)
	}
	if strings.Contains(note.Body, "01712345678") {
		t.Fatalf("notification leaks phone number: %q", note.Body)
	}
}

func Test_Send_Rejections(t *testing.T) {
	db := testdb.Open(t)
	citizen := testdb.Citizen(t, db, "Rahima")
	other := testdb.Citizen(t, db, "Other")
	cs := testdb.Case(t, db, other.ID, nil)
	app := newTestApp(NewHandler(db), citizen.ID, models.RoleCitizen)

	if code := doJSON(t, app, "POST", "/api/messages", `{"message_text":"hi"}`, nil); code != fiber.StatusBadRequest {
		t.Fatalf("no target: want 400, got %d", code)
	}
	if code := doJSON(t, app, "POST", "/api/messages", fmt.Sprintf(`{"receiver_id":%q,"message_text":"  "}`, other.ID), nil); code != fiber.StatusBadRequest {
		t.Fatalf("blank text: want 400, got %d", code)
	}
	if code := doJSON(t, app, "POST", "/api/messages", fmt.Sprintf(`{"case_id":%q,"message_text":"hi"}`, cs.ID), nil); code != fiber.StatusBadRequest {
		t.Fatalf("foreign case: want 400, got %d", code)
	}
}

func Test_MarkRead_OnlyReceiver(t *testing.T) {
	db := testdb.Open(t)
	sender := testdb.Citizen(t, db, "Sender")
	receiver := testdb.Citizen(t, db, "Receiver")
	stranger := testdb.Citizen(t, db, "Stranger")
	h := NewHandler(db)

	var m models.ChatMessage
	doJSON(t, newTestApp(h, sender.ID, models.RoleCitizen), "POST", "/api/messages",
		fmt.Sprintf(`{"receiver_id":%q,"message_text":"hello"}`, receiver.ID), &m)
	path := fmt.Sprintf("/api/messages/%d/read", m.ID)

	if code := doJSON(t, newTestApp(h, sender.ID, models.RoleCitizen), "POST", path, "", nil); code != fiber.StatusForbidden {
		t.Fatalf("sender: want 403, got %d", code)
	}
	if code := doJSON(t, newTestApp(h, stranger.ID, models.RoleCitizen), "POST", path, "", nil); code != fiber.StatusNotFound {
		t.Fatalf("stranger: want 404, got %d", code)
	}
	var read models.ChatMessage
	if code := doJSON(t, newTestApp(h, receiver.ID, models.RoleCitizen), "POST", path, "", &read); code != fiber.StatusOK || !read.IsRead {
		t.Fatalf("receiver: want 200 read, got %d %+v", code, read)
	}
}
