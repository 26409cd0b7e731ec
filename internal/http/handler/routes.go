package handler

import (
	"database/sql"

	"github.com/gofiber/fiber/v2"

	"fileshare/internal/http/middleware"
	"fileshare/internal/service"
)

// Services bundles the use cases the routes dispatch to.
type Services struct {
	Files      service.FileService
	Governance service.GovernanceService
	Accounts   service.AccountService
}

// RouteOptions carries the request headers set by the proxy in front of the service.
type RouteOptions struct {
	// UserHeader names the authenticated account.
	UserHeader string
	// ClientHeader names the client address used as the rate limiting key.
	ClientHeader string
}

// RegisterRoutes attaches HTTP routes to the provided Fiber app. Everything below /files,
// /quota and /accounts requires an identity; the ops endpoints do not.
func RegisterRoutes(app *fiber.App, db *sql.DB, svc Services, opts RouteOptions) {
	app.Get("/health", HealthCheck(db))
	app.Get("/healthz", LivenessProbe())

	identity := middleware.Identity(svc.Accounts, opts.UserHeader)

	files := app.Group("/files", identity)
	files.Post("/", middleware.ClientKey(opts.ClientHeader), UploadFile(svc.Files))
	files.Get("/", ListFiles(svc.Files))
	files.Get("/:id", GetFile(svc.Files))
	files.Delete("/:id", DeleteFile(svc.Files))

	quota := app.Group("/quota", identity)
	quota.Get("/", GetQuota(svc.Governance))
	quota.Put("/limit", SetOwnLimit(svc.Governance))
	quota.Post("/requests", CreateQuotaRequest(svc.Governance))
	quota.Get("/requests", ListQuotaRequests(svc.Governance))
	quota.Get("/requests/:id", GetQuotaRequest(svc.Governance))
	quota.Put("/requests/:id", ReviewQuotaRequest(svc.Governance))
	quota.Get("/log", ListQuotaLog(svc.Governance))

	accounts := app.Group("/accounts", identity)
	accounts.Get("/:id", GetAccount(svc.Accounts))
	accounts.Put("/:id/roles", SetAccountRoles(svc.Accounts))
}
