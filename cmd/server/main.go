// @title           Legal Aid API
// @version         1.0
// @description     Legal-aid platform: citizens find verified lawyers, book consultations and track cases; lawyers manage availability and assigned cases; admins verify accounts.
// @contact.name    Aldo Rifki Putra
// @contact.email   aldoetobex@gmail.com
// @BasePath        /api
// @schemes         http
// @securityDefinitions.apikey BearerAuth
// @in              header
// @name            Authorization
// @description     Format: Bearer <token>
package main

import (
	"context"
	"log/slog"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/fiber/v2/middleware/adaptor"
	"github.com/gofiber/fiber/v2/middleware/cors"
	"github.com/gofiber/fiber/v2/middleware/logger"
	"github.com/gofiber/fiber/v2/middleware/recover"
	"github.com/gofiber/fiber/v2/middleware/requestid"
	fiberSwagger "github.com/gofiber/swagger"
	"github.com/joho/godotenv"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	_ "github.com/aldoetobex/legal-aid-backend/docs"
	"github.com/aldoetobex/legal-aid-backend/internal/auth"
	"github.com/aldoetobex/legal-aid-backend/internal/availability"
	"github.com/aldoetobex/legal-aid-backend/internal/bookings"
	"github.com/aldoetobex/legal-aid-backend/internal/cases"
	"github.com/aldoetobex/legal-aid-backend/internal/chat"
	"github.com/aldoetobex/legal-aid-backend/internal/config"
	"github.com/aldoetobex/legal-aid-backend/internal/dashboard"
	"github.com/aldoetobex/legal-aid-backend/internal/documents"
	"github.com/aldoetobex/legal-aid-backend/internal/lawyers"
	"github.com/aldoetobex/legal-aid-backend/internal/metrics"
	"github.com/aldoetobex/legal-aid-backend/internal/notifications"
	"github.com/aldoetobex/legal-aid-backend/internal/payments"
	"github.com/aldoetobex/legal-aid-backend/internal/reviews"
	"github.com/aldoetobex/legal-aid-backend/internal/sessions"
	"github.com/aldoetobex/legal-aid-backend/internal/storage"
	"github.com/aldoetobex/legal-aid-backend/internal/users"
	"github.com/aldoetobex/legal-aid-backend/pkg/database"
	"github.com/aldoetobex/legal-aid-backend/pkg/models"
)

func main() {
	_ = godotenv.Load()
	cfg, err := config.FromEnv()
	if err != nil {
		slog.Error("config", "err", err)
		os.Exit(1)
	}

	level := slog.LevelInfo
	if cfg.IsDev() {
		level = slog.LevelDebug
	}
	slog.SetDefault(slog.New(slog.NewJSONHandler(os.Stdout, &slog.HandlerOptions{Level: level})))

	if cfg.DatabaseURL == "" {
		slog.Error("DATABASE_URL is required")
		os.Exit(1)
	}
	db, err := database.Open(cfg.DatabaseURL, cfg.IsDev())
	if err != nil {
		slog.Error("database", "err", err)
		os.Exit(1)
	}
	if err := database.Migrate(db); err != nil {
		slog.Error("database", "err", err)
		os.Exit(1)
	}

	// Sessions: Redis when configured, otherwise in-process (single instance only).
	var store sessions.Store = sessions.NewMemoryStore()
	if cfg.RedisURL != "" {
		ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		client, err := sessions.Connect(ctx, cfg.RedisURL)
		cancel()
		if err != nil {
			slog.Warn("redis unavailable, using in-memory sessions", "err", err)
		} else {
			defer client.Close()
			store = sessions.NewRedisStore(client)
		}
	}

	// Storage: Supabase when configured, otherwise in-memory for local runs.
	var files storage.ObjectStore
	if cfg.SupabaseURL != "" && cfg.SupabaseKey != "" {
		files = storage.NewSupabase(cfg.SupabaseURL, cfg.SupabaseKey, cfg.SupabaseBucket)
	} else {
		slog.Warn("SUPABASE_URL/SUPABASE_SERVICE_KEY not set, files are kept in memory")
		files = storage.NewMemory()
	}

	tokens := auth.NewTokens(cfg.JWTSecret, cfg.JWTTTL, store).WithAccountCheck(db)
	cal := availability.NewCalendar(cfg.Location, cfg.AvailabilityWindowDays)

	app := fiber.New(fiber.Config{
		ErrorHandler: auth.ErrorHandler,
		BodyLimit:    110 * 1024 * 1024, // 10 files x 10MB plus form overhead
	})
	app.Use(recover.New())
	app.Use(requestid.New())
	app.Use(logger.New(logger.Config{
		Format: "${time} ${locals:requestid} ${status} ${latency} ${method} ${path}\n",
	}))
	app.Use(cors.New(cors.Config{
		AllowOrigins: corsOrigins(cfg.CORSOrigins),
		AllowHeaders: "Origin, Content-Type, Accept, Authorization, X-Dev-Secret",
	}))
	app.Use(metrics.Middleware())

	app.Get("/health", func(c *fiber.Ctx) error { return c.JSON(fiber.Map{"status": "ok"}) })
	app.Get("/metrics", adaptor.HTTPHandler(promhttp.Handler()))
	app.Get("/swagger/*", fiberSwagger.HandlerDefault)

	api := app.Group("/api")
	authed := tokens.RequireAuth()
	adminOnly := auth.RequireRole(models.RoleAdmin)

	// Auth
	authH := auth.NewHandler(db, tokens, store, files)
	api.Post("/auth/register", authH.Register)
	api.Post("/auth/login", authH.Login)
	api.Post("/auth/password/reset", authH.RequestPasswordReset)
	api.Post("/auth/password/reset/confirm", authH.ConfirmPasswordReset)
	api.Post("/auth/logout", authed, authH.Logout)
	api.Post("/auth/refresh", authed, authH.Refresh)
	api.Get("/auth/profile", authed, authH.Profile)
	api.Patch("/auth/profile", authed, authH.UpdateProfile)
	api.Post("/auth/password/change", authed, authH.ChangePassword)

	// Lawyers & availability (static paths before /:id)
	lawyerH := lawyers.NewHandler(db, files, cal)
	reviewH := reviews.NewHandler(db)
	api.Get("/specializations", lawyerH.Specializations)
	api.Post("/specializations", authed, adminOnly, lawyerH.CreateSpecialization)
	api.Get("/lawyers", authed, lawyerH.List)
	api.Post("/lawyers/schedule", authed, lawyerH.ReplaceSchedule)
	api.Get("/lawyers/by-user/:userID", authed, lawyerH.ByUser)
	api.Get("/lawyers/:id/availability", authed, lawyerH.Availability)
	api.Get("/lawyers/:id/reviews", authed, reviewH.ListForLawyer)
	api.Get("/lawyers/:id", authed, lawyerH.Get)

	// Users & verification
	userH := users.NewHandler(db, files)
	api.Get("/users", authed, userH.List)
	api.Get("/users/:id", authed, userH.Get)
	api.Post("/users/:id/verification", authed, adminOnly, userH.SetVerification)

	// Cases
	caseH := cases.NewHandler(db, files)
	api.Get("/cases", authed, caseH.List)
	api.Post("/cases", authed, caseH.Create)
	api.Get("/cases/:id/activity", authed, caseH.Activity)
	api.Get("/cases/:id", authed, caseH.Get)
	api.Patch("/cases/:id", authed, caseH.Update)
	api.Delete("/cases/:id", authed, caseH.Delete)

	// Bookings
	bookingH := bookings.NewHandler(db, files)
	api.Get("/bookings", authed, bookingH.List)
	api.Post("/bookings", authed, bookingH.Create)
	api.Post("/bookings/:id/cancel", authed, bookingH.Cancel)
	api.Get("/bookings/:id", authed, bookingH.Get)
	api.Patch("/bookings/:id", authed, bookingH.Update)

	// Evidence documents
	docH := documents.NewHandler(db, files)
	api.Get("/documents", authed, docH.List)
	api.Post("/documents", authed, docH.Upload)
	api.Get("/documents/:id/signed-url", authed, docH.SignedURL)
	api.Delete("/documents/:id", authed, docH.Delete)

	// Chat & notifications
	chatH := chat.NewHandler(db)
	api.Get("/messages", authed, chatH.List)
	api.Post("/messages", authed, chatH.Send)
	api.Post("/messages/:id/read", authed, chatH.MarkRead)

	notifH := notifications.NewHandler(db)
	api.Get("/notifications", authed, notifH.List)
	api.Post("/notifications/mark-all-read", authed, notifH.MarkAllRead)
	api.Post("/notifications/:id/read", authed, notifH.MarkRead)

	// Dashboard & reviews
	dashH := dashboard.NewHandler(db, time.Now)
	api.Get("/dashboard/lawyer", authed, dashH.Lawyer)
	api.Post("/reviews", authed, reviewH.Upsert)

	// Payments
	payH := payments.NewHandler(db, payments.Options{
		Provider:  cfg.PaymentProvider,
		DevMode:   cfg.IsDev(),
		DevSecret: cfg.DevPaymentSecret,
	})
	api.Post("/checkout/:bookingID", authed, payH.CreateCheckout)
	// Only in dev mode with mock payment provider; protected by X-Dev-Secret.
	if cfg.IsDev() && cfg.PaymentProvider == "mock" {
		api.Post("/payments/mock/complete", payH.MockComplete)
	}

	go func() {
		slog.Info("server running", "port", cfg.Port, "env", cfg.AppEnv)
		if err := app.Listen(":" + cfg.Port); err != nil {
			slog.Error("listen", "err", err)
			os.Exit(1)
		}
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, os.Interrupt, syscall.SIGTERM)
	<-quit

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := app.ShutdownWithContext(ctx); err != nil {
		slog.Error("shutdown", "err", err)
	}
}

func corsOrigins(list []string) string {
	if len(list) == 0 {
		return "*"
	}
	return strings.Join(list, ",")
}
