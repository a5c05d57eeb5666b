package handlers

import (
	"errors"
	"log/slog"
	"strconv"

	"github.com/ahmetk3436/netwatch/internal/collector"
	"github.com/ahmetk3436/netwatch/internal/services"
	"github.com/gofiber/fiber/v2"
)

func fail(c *fiber.Ctx, status int, message string) error {
	return c.Status(status).JSON(fiber.Map{
		"error":   true,
		"message": message,
	})
}

// respondError maps service and collector errors onto HTTP statuses.
func respondError(c *fiber.Ctx, err error, action string) error {
	var cerr *collector.Error
	switch {
	case services.IsValidation(err):
		return fail(c, fiber.StatusBadRequest, err.Error())
	case services.IsNotFound(err):
		return fail(c, fiber.StatusNotFound, err.Error())
	case errors.As(err, &cerr):
		slog.Warn(action+" failed", "path", c.Path(), "error", err)
		status := fiber.StatusBadGateway
		if cerr.Timeout {
			status = fiber.StatusGatewayTimeout
		}
		return fail(c, status, collectorMessage(err))
	}
	slog.Error(action+" failed", "path", c.Path(), "error", err)
	return fail(c, fiber.StatusInternalServerError, action+" failed")
}

// collectorMessage describes a collector failure without transport details
// such as the collector address. The collector's own message is kept.
func collectorMessage(err error) string {
	var cerr *collector.Error
	switch {
	case !errors.As(err, &cerr):
		return "collector call failed"
	case cerr.Timeout:
		return "collector timed out"
	case cerr.Status == 0:
		return "collector unavailable"
	case cerr.Message != "":
		return "collector rejected the request: " + cerr.Message
	}
	return "collector rejected the request"
}

func paramUint(c *fiber.Ctx, name string) (uint, bool) {
	v, err := strconv.ParseUint(c.Params(name), 10, 64)
	if err != nil || v == 0 {
		return 0, false
	}
	return uint(v), true
}

func paramInt64(c *fiber.Ctx, name string) (int64, bool) {
	v, err := strconv.ParseInt(c.Params(name), 10, 64)
	if err != nil || v <= 0 {
		return 0, false
	}
	return v, true
}
