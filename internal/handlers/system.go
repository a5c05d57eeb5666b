package handlers

import (
	"context"
	"time"

	"github.com/gofiber/fiber/v2"
	"gorm.io/gorm"
)

var startTime = time.Now()
var Version = "1.0.0"

type Pinger interface {
	Ping(ctx context.Context) error
}

// PingFunc adapts a function, such as a redis ping, to Pinger.
type PingFunc func(ctx context.Context) error

func (f PingFunc) Ping(ctx context.Context) error { return f(ctx) }

type SystemHandler struct {
	db    *gorm.DB
	redis Pinger
}

func NewSystemHandler(db *gorm.DB, redis Pinger) *SystemHandler {
	return &SystemHandler{db: db, redis: redis}
}

func (h *SystemHandler) Health(c *fiber.Ctx) error {
	ctx, cancel := context.WithTimeout(c.UserContext(), 3*time.Second)
	defer cancel()

	statusCode := fiber.StatusOK

	dbStatus := "ok"
	if h.db == nil {
		dbStatus = "not configured"
		statusCode = fiber.StatusServiceUnavailable
	} else if sqlDB, err := h.db.DB(); err != nil {
		dbStatus = "error: " + err.Error()
		statusCode = fiber.StatusServiceUnavailable
	} else if err := sqlDB.PingContext(ctx); err != nil {
		dbStatus = "unreachable: " + err.Error()
		statusCode = fiber.StatusServiceUnavailable
	}

	redisStatus := "ok"
	if h.redis == nil {
		redisStatus = "not configured"
		statusCode = fiber.StatusServiceUnavailable
	} else if err := h.redis.Ping(ctx); err != nil {
		redisStatus = "unreachable: " + err.Error()
		statusCode = fiber.StatusServiceUnavailable
	}

	overall := "ok"
	if statusCode != fiber.StatusOK {
		overall = "degraded"
	}

	return c.Status(statusCode).JSON(fiber.Map{
		"status":  overall,
		"service": "netwatch",
		"version": Version,
		"time":    time.Now().UTC().Format(time.RFC3339),
		"uptime":  time.Since(startTime).String(),
		"db":      dbStatus,
		"redis":   redisStatus,
	})
}
