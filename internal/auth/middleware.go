package auth

import (
	"errors"
	"log/slog"
	"strings"

	"github.com/gofiber/fiber/v2"
	"github.com/google/uuid"

	"github.com/aldoetobex/legal-aid-backend/internal/policy"
	"github.com/aldoetobex/legal-aid-backend/pkg/apperror"
	"github.com/aldoetobex/legal-aid-backend/pkg/models"
)

/* ============================== Middleware ============================== */

// RequireAuth validates a Bearer JWT and injects userID, role and staff into the context.
func (t *Tokens) RequireAuth() fiber.Handler {
	return func(c *fiber.Ctx) error {
		h := c.Get("Authorization")
		if !strings.HasPrefix(h, "Bearer ") {
			return apperror.Unauthenticated("")
		}
		claims, err := t.Parse(c.UserContext(), strings.TrimPrefix(h, "Bearer "))
		if errors.Is(err, ErrInvalidToken) || errors.Is(err, ErrRevoked) {
			return apperror.Unauthenticated("Token is invalid or expired")
		}
		if err != nil {
			return err
		}
		if err := t.checkActive(c.UserContext(), claims); err != nil {
			if errors.Is(err, ErrInactive) || errors.Is(err, ErrInvalidToken) {
				return apperror.Unauthenticated("Account is inactive")
			}
			return err
		}

		c.Locals("userID", claims.Sub)
		c.Locals("role", claims.Role)
		c.Locals("staff", claims.Staff)
		c.Locals("claims", claims)
		return c.Next()
	}
}

// MustUserID reads the authenticated user ID from context or panics (programming error).
func MustUserID(c *fiber.Ctx) string {
	if v, ok := c.Locals("userID").(string); ok {
		return v
	}
	panic(errors.New("user not in context"))
}

// MustUserUUID is MustUserID parsed.
func MustUserUUID(c *fiber.Ctx) uuid.UUID {
	id, err := uuid.Parse(MustUserID(c))
	if err != nil {
		panic(err)
	}
	return id
}

// MustRole reads the authenticated user role from context or panics (programming error).
func MustRole(c *fiber.Ctx) models.Role {
	if v, ok := c.Locals("role").(string); ok {
		return models.Role(v)
	}
	panic(errors.New("role not in context"))
}

// ActorOf builds the policy actor for the current request.
func ActorOf(c *fiber.Ctx) policy.Actor {
	staff, _ := c.Locals("staff").(bool)
	return policy.Actor{ID: MustUserUUID(c), Role: MustRole(c), IsStaff: staff}
}

// RequireRole ensures the authenticated user has one of the expected roles.
// Staff accounts pass any admin check.
func RequireRole(roles ...models.Role) fiber.Handler {
	return func(c *fiber.Ctx) error {
		a := ActorOf(c)
		for _, r := range roles {
			if a.Role == r || (r == models.RoleAdmin && a.IsAdmin()) {
				return c.Next()
			}
		}
		return apperror.Forbidden("", "")
	}
}

/* =========================== Error Formatting =========================== */

// httpCodeToString converts an HTTP status code to a short, stable string.
func httpCodeToString(code int) string {
	switch code {
	case fiber.StatusBadRequest:
		return "BAD_REQUEST"
	case fiber.StatusUnauthorized:
		return "UNAUTHORIZED"
	case fiber.StatusForbidden:
		return "FORBIDDEN"
	case fiber.StatusNotFound:
		return "NOT_FOUND"
	case fiber.StatusMethodNotAllowed:
		return "METHOD_NOT_ALLOWED"
	case fiber.StatusConflict:
		return "CONFLICT"
	case fiber.StatusUnprocessableEntity:
		return "UNPROCESSABLE_ENTITY"
	case fiber.StatusRequestEntityTooLarge:
		return "PAYLOAD_TOO_LARGE"
	case fiber.StatusNotImplemented:
		return "NOT_IMPLEMENTED"
	default:
		return "INTERNAL_SERVER_ERROR"
	}
}

// ErrorHandler is the global Fiber error handler. It renders apperror and fiber
// errors in one JSON shape; anything else is logged and hidden behind a 500.
func ErrorHandler(c *fiber.Ctx, err error) error {
	if e, ok := apperror.As(err); ok {
		if len(e.Details) == 0 {
			return c.Status(e.Status).JSON(models.ErrorResponse{Error: true, Message: e.Message, Code: e.Code})
		}
		body := fiber.Map{}
		for k, v := range e.Details {
			body[k] = v
		}
		body["error"] = true
		body["message"] = e.Message
		body["code"] = e.Code
		return c.Status(e.Status).JSON(body)
	}

	code := fiber.StatusInternalServerError
	msg := "Internal Server Error"

	var fe *fiber.Error
	if errors.As(err, &fe) {
		code = fe.Code
		if strings.TrimSpace(fe.Message) != "" {
			msg = fe.Message
		}
	} else {
		slog.Error("unhandled error",
			"method", c.Method(),
			"path", c.Path(),
			"request_id", c.Locals("requestid"),
			"err", err,
		)
	}

	return c.Status(code).JSON(models.ErrorResponse{
		Code:    httpCodeToString(code),
		Error:   true,
		Message: msg,
	})
}
