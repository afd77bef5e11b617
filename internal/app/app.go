package app

import (
	"time"

	"tixhold-backend/internal/access"
	"tixhold-backend/internal/analytics"
	"tixhold-backend/internal/booking"
	"tixhold-backend/internal/catalog"
	"tixhold-backend/internal/config"
	"tixhold-backend/internal/constants"
	"tixhold-backend/internal/health"
	"tixhold-backend/internal/holds"
	"tixhold-backend/internal/infrastructure/database"
	"tixhold-backend/internal/ledger"
	"tixhold-backend/internal/links"
	"tixhold-backend/internal/middleware"
	"tixhold-backend/internal/redemption"
	"tixhold-backend/internal/storefront"

	"github.com/gofiber/fiber/v2"
	"gorm.io/gorm"
)

// CreateApp builds the Fiber app with all global middleware and route registration.
func CreateApp(cfg *config.Config) (*fiber.App, error) {
	app := fiber.New(fiber.Config{
		DisableStartupMessage:   true,
		ErrorHandler:            middleware.ErrorHandler,
		EnableTrustedProxyCheck: true,
	})

	// CORS (before session)
	app.Use(middleware.CORS(middleware.CORSConfig{
		AllowedSuffix: cfg.FrontendURLEndsWith,
	}))

	// Session (Redis); need Redis client for health marker and rate limits too
	sessionHandler, rdb, err := middleware.Session(middleware.SessionConfig{
		Secret:       cfg.SessionSecret,
		RedisURL:     cfg.RedisURL,
		IsProduction: cfg.Env == "production",
	})
	if err != nil {
		return nil, err
	}
	app.Use(sessionHandler)

	// Health request marker (after session)
	app.Use(middleware.HealthMarker(rdb))

	// Tracing + route logger
	app.Use(middleware.Tracing())
	app.Use(middleware.RouteLogger())

	var db *gorm.DB
	if cfg.DatabaseURL != "" {
		var errDB error
		db, errDB = database.Open(cfg.DatabaseURL)
		if errDB != nil {
			return nil, errDB
		}
		if err := database.AutoMigrate(db); err != nil {
			return nil, err
		}
	}

	// Health endpoints (no auth)
	healthHandlers := &health.Handlers{
		Rdb:            rdb,
		HealthAdminKey: cfg.HealthAdminKey,
	}
	if db != nil {
		if sqlDB, err := db.DB(); err == nil {
			healthHandlers.DB = sqlDB
		}
	}
	app.Get("/reset", healthHandlers.Reset)
	app.Get("/health/json", healthHandlers.JSON)

	// db may be nil if DATABASE_URL not set (e.g. tests); only health stays up
	if db == nil {
		return app, nil
	}

	ledgerSvc := &ledger.Service{DB: db}
	catalogSvc := &catalog.GormCatalog{DB: db}
	holdsSvc := &holds.Service{DB: db, Ledger: ledgerSvc, Catalog: catalogSvc}
	linksSvc := &links.Service{DB: db, Holds: holdsSvc}
	accessSvc := &access.Service{DB: db}
	redemptionSvc := &redemption.Service{
		DB:       db,
		Ledger:   ledgerSvc,
		Access:   accessSvc,
		Catalog:  catalogSvc,
		Pipeline: &booking.GormPipeline{},
	}

	// --- Public storefront (the link code is the credential) ---
	sf := &storefront.Handlers{
		Links:      linksSvc,
		Access:     accessSvc,
		Redemption: redemptionSvc,
		Catalog:    catalogSvc,
	}
	app.Get("/purchase-link/:code",
		middleware.RateLimit(rdb, middleware.RateLimitConfig{Scope: "show", Limit: cfg.ShowRateLimit, Window: time.Minute}),
		sf.ShowLink)
	app.Post("/purchase-link/:code/purchase",
		middleware.RateLimit(rdb, middleware.RateLimitConfig{Scope: "purchase", Limit: cfg.PurchaseRateLimit, Window: time.Minute}),
		sf.Purchase)

	// --- Hold management (auth required; views need only view_data) ---
	holdHandlers := &holds.Handlers{Service: holdsSvc}
	holdGroup := app.Group("/api/v1/holds", middleware.RequireAuth())
	holdGroup.Post("/create-hold", middleware.AuthorizePermission(constants.ManageHolds), holdHandlers.CreateHold)
	holdGroup.Post("/release-hold", middleware.AuthorizePermission(constants.ManageHolds), holdHandlers.ReleaseHold)
	holdGroup.Get("/view-hold/:hold_id", middleware.AuthorizePermission(constants.ViewData), holdHandlers.ViewHold)
	holdGroup.Get("/view-holds", middleware.AuthorizePermission(constants.ViewData), holdHandlers.ViewHolds)
	holdGroup.Patch("/update-allocation", middleware.AuthorizePermission(constants.ManageHolds), holdHandlers.UpdateAllocation)

	// --- Link management (auth required) ---
	linkHandlers := &links.Handlers{Service: linksSvc}
	linkGroup := app.Group("/api/v1/links", middleware.RequireAuth(), middleware.AuthorizePermission(constants.ManageLinks))
	linkGroup.Post("/create-link", linkHandlers.CreateLink)
	linkGroup.Patch("/revoke-link", linkHandlers.RevokeLink)
	linkGroup.Get("/view-links/:hold_id", linkHandlers.ViewLinks)
	linkGroup.Patch("/update-link", linkHandlers.UpdateLink)

	// --- Analytics (admin only) ---
	analyticsHandlers := &analytics.Handlers{Service: &analytics.Service{DB: db, Holds: holdsSvc, Access: accessSvc}}
	analyticsGroup := app.Group("/api/v1/analytics", middleware.RequireAuth(), middleware.AuthorizePermission(constants.ViewAnalytics))
	analyticsGroup.Get("/hold/:hold_id", analyticsHandlers.HoldAnalytics)
	analyticsGroup.Get("/top-links/:hold_id", analyticsHandlers.TopLinks)

	return app, nil
}
