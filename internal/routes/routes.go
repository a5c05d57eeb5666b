package routes

import (
	"log/slog"

	"github.com/ahmetk3436/netwatch/internal/config"
	"github.com/ahmetk3436/netwatch/internal/handlers"
	"github.com/ahmetk3436/netwatch/internal/middleware"
	"github.com/gofiber/fiber/v2"
)

func Setup(
	app *fiber.App,
	cfg *config.Config,
	alertHandler *handlers.AlertHandler,
	watchHandler *handlers.WatchHandler,
	streamHandler *handlers.StreamHandler,
	systemHandler *handlers.SystemHandler,
) {
	// ─── Public ──────────────────────────────────────────────────────────
	app.Get("/api/health", systemHandler.Health)

	// ─── Protected routes ────────────────────────────────────────────────
	var api fiber.Router
	if cfg.JWTSecret != "" {
		api = app.Group("/api", middleware.JWTProtected(cfg.JWTSecret))
	} else {
		slog.Warn("JWT_SECRET not set, API is unauthenticated")
		api = app.Group("/api")
	}

	// Alerts
	api.Post("/alerts", alertHandler.ProcessAlert)
	api.Post("/alerts/batch", alertHandler.ProcessBatch)
	api.Get("/alerts/current", alertHandler.ListCurrent)
	api.Get("/alerts/current/summary", alertHandler.Summary)
	api.Get("/alerts/current/count", alertHandler.CountCurrent)
	api.Get("/alerts/current/device/:deviceId", alertHandler.ListCurrentByDevice)
	api.Get("/alerts/history", alertHandler.ListHistory)
	api.Post("/alerts/history/:id/ack", alertHandler.AcknowledgeHistory)

	// Watch groups
	api.Get("/watch/groups", watchHandler.ListGroups)
	api.Post("/watch/groups", watchHandler.CreateGroup)
	api.Get("/watch/groups/:id", watchHandler.GetGroup)
	api.Put("/watch/groups/:id", watchHandler.UpdateGroup)
	api.Delete("/watch/groups/:id", watchHandler.DeleteGroup)
	api.Put("/watch/groups/:id/move", watchHandler.MoveGroup)
	api.Put("/watch/groups/:id/icon", watchHandler.SetIcon)
	api.Put("/watch/groups/:id/devices", watchHandler.SetDevices)
	api.Get("/watch/groups/:id/descendants/count", watchHandler.CountDescendants)

	// Collection
	api.Post("/watch/start/:groupId", watchHandler.StartWatch)
	api.Post("/watch/stop/:groupId", watchHandler.StopWatch)
	api.Post("/watch/heartbeat/:groupId", watchHandler.Heartbeat)

	// Metrics snapshots
	api.Get("/watch/metrics/:groupId", watchHandler.LatestMetrics)
	api.Get("/watch/history/:groupId/:deviceId", watchHandler.MetricsHistory)

	// Alert stream (WebSocket)
	api.Get("/ws/alerts", streamHandler.UpgradeCheck(), streamHandler.HandleAlerts())
	api.Get("/ws/alerts/:category", streamHandler.UpgradeCheck(), streamHandler.HandleAlerts())
}
