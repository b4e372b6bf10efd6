package notifications

import (
	"encoding/json"
	"fmt"
	"io"
	"net/http/httptest"
	"testing"

	"github.com/gofiber/fiber/v2"
	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/aldoetobex/legal-aid-backend/internal/auth"
	"github.com/aldoetobex/legal-aid-backend/internal/testdb"
	"github.com/aldoetobex/legal-aid-backend/pkg/models"
	"github.com/aldoetobex/legal-aid-backend/pkg/utils"
)

func newTestApp(h *Handler, userID uuid.UUID, role models.Role) *fiber.App {
	app := fiber.New(fiber.Config{ErrorHandler: auth.ErrorHandler})
	app.Use(testdb.InjectAuth(userID, role))
	app.Get("/api/notifications", h.List)
	app.Post("/api/notifications/mark-all-read", h.MarkAllRead)
	app.Post("/api/notifications/:id/read", h.MarkRead)
	return app
}

func call(t *testing.T, app *fiber.App, method, path string, out any) int {
	t.Helper()
	resp, err := app.Test(httptest.NewRequest(method, path, nil), -1)
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

func notify(t *testing.T, db *gorm.DB, userID uuid.UUID, n int) {
	t.Helper()
	for i := 0; i < n; i++ {
		utils.Notify(t.Context(), db, userID, models.NotifySystem, fmt.Sprintf("Notice %d", i), "")
	}
}

func unread(db *gorm.DB, userID uuid.UUID) int64 {
	var n int64
	db.Model(&models.Notification{}).Where("user_id = ? AND is_read = false", userID).Count(&n)
	return n
}

func Test_List_OwnOnlyUnlessAdmin(t *testing.T) {
	db := testdb.Open(t)
	me := testdb.Citizen(t, db, "Me")
	other := testdb.Citizen(t, db, "Other")
	admin := testdb.Admin(t, db)
	notify(t, db, me.ID, 2)
	notify(t, db, other.ID, 3)
	notify(t, db, admin.ID, 1)
	h := NewHandler(db)

	var page PageNotifications
	// userId is ignored for non-admins.
	call(t, newTestApp(h, me.ID, models.RoleCitizen), "GET", "/api/notifications?userId="+other.ID.String(), &page)
	if page.Total != 2 {
		t.Fatalf("want own 2, got %d", page.Total)
	}
	call(t, newTestApp(h, admin.ID, models.RoleAdmin), "GET", "/api/notifications?userId="+other.ID.String(), &page)
	if page.Total != 3 {
		t.Fatalf("admin filter: want 3, got %d", page.Total)
	}
	// Without userId the admin reads their own inbox, the same set mark-all-read touches.
	call(t, newTestApp(h, admin.ID, models.RoleAdmin), "GET", "/api/notifications", &page)
	if page.Total != 1 {
		t.Fatalf("admin without userId: want own 1, got %d", page.Total)
	}
	var res struct {
		Updated int64 `json:"updated"`
	}
	call(t, newTestApp(h, admin.ID, models.RoleAdmin), "POST", "/api/notifications/mark-all-read", &res)
	if res.Updated != 1 || unread(db, other.ID) != 3 {
		t.Fatalf("admin mark all: updated=%d other unread=%d", res.Updated, unread(db, other.ID))
	}
	if code := call(t, newTestApp(h, admin.ID, models.RoleAdmin), "GET", "/api/notifications?userId=nope", nil); code != fiber.StatusBadRequest {
		t.Fatalf("bad userId: want 400, got %d", code)
	}
}

func Test_MarkReadAndMarkAll(t *testing.T) {
	db := testdb.Open(t)
	me := testdb.Citizen(t, db, "Me")
	other := testdb.Citizen(t, db, "Other")
	notify(t, db, me.ID, 3)
	notify(t, db, other.ID, 1)
	h := NewHandler(db)
	app := newTestApp(h, me.ID, models.RoleCitizen)

	var theirs models.Notification
	db.Where("user_id = ?", other.ID).First(&theirs)
	if code := call(t, app, "POST", fmt.Sprintf("/api/notifications/%d/read", theirs.ID), nil); code != fiber.StatusNotFound {
		t.Fatalf("foreign notification: want 404, got %d", code)
	}

	var mine models.Notification
	db.Where("user_id = ?", me.ID).First(&mine)
	var got models.Notification
	if code := call(t, app, "POST", fmt.Sprintf("/api/notifications/%d/read", mine.ID), &got); code != fiber.StatusOK || !got.IsRead {
		t.Fatalf("mark read: %d %+v", code, got)
	}
	if n := unread(db, me.ID); n != 2 {
		t.Fatalf("want 2 unread, got %d", n)
	}

	var res struct {
		Updated int64 `json:"updated"`
	}
	call(t, app, "POST", "/api/notifications/mark-all-read", &res)
	if res.Updated != 2 || unread(db, me.ID) != 0 {
		t.Fatalf("mark all: updated=%d unread=%d", res.Updated, unread(db, me.ID))
	}
	if unread(db, other.ID) != 1 {
		t.Fatal("another user's notifications must stay unread")
	}
}
