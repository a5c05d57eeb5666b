package main

import (
	"context"
	"log/slog"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/ahmetk3436/netwatch/internal/broadcast"
	"github.com/ahmetk3436/netwatch/internal/collector"
	"github.com/ahmetk3436/netwatch/internal/config"
	"github.com/ahmetk3436/netwatch/internal/database"
	"github.com/ahmetk3436/netwatch/internal/dedup"
	"github.com/ahmetk3436/netwatch/internal/handlers"
	"github.com/ahmetk3436/netwatch/internal/logging"
	"github.com/ahmetk3436/netwatch/internal/routes"
	"github.com/ahmetk3436/netwatch/internal/services"
	"github.com/ahmetk3436/netwatch/internal/store"
	"github.com/bytedance/sonic"
	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/fiber/v2/middleware/cors"
	"github.com/gofiber/fiber/v2/middleware/recover"
)

func main() {
	// ─── Config ──────────────────────────────────────────────────────────
	cfg := config.Load()

	// JSON structured logging
	slog.SetDefault(logging.New(cfg))
	slog.Info("Starting netwatch", "version", handlers.Version)

	// ─── Database ────────────────────────────────────────────────────────
	db, err := database.Connect(cfg)
	if err != nil {
		slog.Error("Database connection failed", "error", err)
		os.Exit(1)
	}

	if err := database.Migrate(db); err != nil {
		slog.Error("Database migration failed", "error", err)
		os.Exit(1)
	}

	// ─── Redis (metrics snapshots, optional shared dedup) ───────────────
	rdb, err := database.ConnectRedis(cfg)
	if err != nil {
		slog.Error("Redis connection failed", "error", err)
		os.Exit(1)
	}

	// ─── Dedup ───────────────────────────────────────────────────────────
	var dedupCache dedup.Cache
	switch cfg.DedupBackend {
	case "redis":
		dedupCache = dedup.NewRedisCache(rdb, cfg.DedupWindow)
	case "memory", "":
		dedupCache = dedup.NewMemoryCache(cfg.DedupCapacity, cfg.DedupWindow)
	default:
		slog.Error("Unknown DEDUP_BACKEND", "backend", cfg.DedupBackend)
		os.Exit(1)
	}
	slog.Info("Dedup cache ready", "backend", cfg.DedupBackend, "window", cfg.DedupWindow)

	// ─── Broadcast ──────────────────────────────────────────────────────
	hub := broadcast.NewHub(64)
	sinks := []broadcast.Sink{hub}
	var natsSink *broadcast.NATSSink
	if cfg.NATSURL != "" {
		natsSink, err = broadcast.ConnectNATS(cfg.NATSURL)
		if err != nil {
			// websocket delivery still works without NATS
			slog.Warn("NATS unavailable, alerts will only reach websocket clients", "error", err)
		} else {
			sinks = append(sinks, natsSink)
		}
	}
	dispatcher := broadcast.NewDispatcher(cfg.BroadcastBuffer, sinks...)

	// ─── Services ───────────────────────────────────────────────────────
	alertStore := store.NewAlertStore(db)
	groupStore := store.NewGroupStore(db)

	alertEngine := services.NewAlertEngine(dedupCache, alertStore, alertStore, dispatcher)
	alertQuery := services.NewAlertQuery(alertStore, alertStore)

	collectorClient := collector.NewClient(collector.Config{
		BaseURL:          cfg.CollectorBaseURL,
		StartTimeout:     cfg.CollectorStartTimeout,
		Timeout:          cfg.CollectorTimeout,
		HeartbeatTimeout: cfg.CollectorHeartbeatTimeout,
	})
	orchestrator := services.NewWatchOrchestrator(groupStore, collectorClient)
	groupService := services.NewWatchGroupService(groupStore, orchestrator)
	metricsReader := services.NewMetricsReader(rdb, cfg.MetricsHistoryLimit)

	// ─── Heartbeat Scheduler ────────────────────────────────────────────
	var heartbeats *services.HeartbeatScheduler
	if cfg.HeartbeatInterval > 0 {
		heartbeats = services.NewHeartbeatScheduler(orchestrator, cfg.HeartbeatInterval)
		heartbeats.Start()
	}

	// ─── Handlers ───────────────────────────────────────────────────────
	alertHandler := handlers.NewAlertHandler(alertEngine, alertQuery)
	watchHandler := handlers.NewWatchHandler(groupService, orchestrator, metricsReader)
	streamHandler := handlers.NewStreamHandler(hub)
	systemHandler := handlers.NewSystemHandler(db, handlers.PingFunc(func(ctx context.Context) error {
		return rdb.Ping(ctx).Err()
	}))

	// ─── Fiber App ──────────────────────────────────────────────────────
	app := fiber.New(fiber.Config{
		AppName:      "netwatch v" + handlers.Version,
		ServerHeader: "netwatch",
		BodyLimit:    4 * 1024 * 1024,
		JSONEncoder:  sonic.Marshal,
		JSONDecoder:  sonic.Unmarshal,
		ErrorHandler: func(c *fiber.Ctx, err error) error {
			code := fiber.StatusInternalServerError
			message := "Internal server error"
			if e, ok := err.(*fiber.Error); ok {
				code = e.Code
				message = e.Message
			}
			return c.Status(code).JSON(fiber.Map{
				"error":   true,
				"message": message,
			})
		},
	})

	app.Use(cors.New(cors.Config{
		AllowOrigins: "*",
		AllowHeaders: "Origin, Content-Type, Accept, Authorization",
		AllowMethods: "GET, POST, PUT, DELETE, OPTIONS",
	}))

	app.Use(recover.New(recover.Config{
		EnableStackTrace: false,
	}))

	// Request logger
	app.Use(func(c *fiber.Ctx) error {
		start := time.Now()
		err := c.Next()
		if c.Path() == "/api/health" {
			return err
		}
		slog.Info("request",
			"method", c.Method(),
			"path", c.Path(),
			"status", c.Response().StatusCode(),
			"duration_ms", time.Since(start).Milliseconds(),
			"ip", c.IP(),
		)
		return err
	})

	// ─── Routes ─────────────────────────────────────────────────────────
	routes.Setup(app, cfg, alertHandler, watchHandler, streamHandler, systemHandler)

	// ─── Graceful Shutdown ──────────────────────────────────────────────
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	stopped := make(chan struct{})

	go func() {
		defer close(stopped)
		<-quit
		slog.Info("Shutting down netwatch...")

		if heartbeats != nil {
			heartbeats.Stop()
		}

		if err := app.ShutdownWithTimeout(10 * time.Second); err != nil {
			slog.Error("Fiber shutdown error", "error", err)
		}

		// in-flight alerts have finished; flush what is still queued
		dispatcher.Close()
		slog.Info("Broadcast dispatcher closed", "dropped", dispatcher.Dropped())
		if natsSink != nil {
			natsSink.Close()
		}
		if err := dedupCache.Close(); err != nil {
			slog.Warn("Dedup cache close error", "error", err)
		}
		if err := rdb.Close(); err != nil {
			slog.Warn("Redis close error", "error", err)
		}
		if sqlDB, err := db.DB(); err == nil {
			sqlDB.Close()
		}
	}()

	// ─── Start ──────────────────────────────────────────────────────────
	listenAddr := ":" + cfg.Port
	slog.Info("netwatch listening", "addr", listenAddr)

	if err := app.Listen(listenAddr); err != nil {
		slog.Error("Server error", "error", err)
		os.Exit(1)
	}
	<-stopped
}
