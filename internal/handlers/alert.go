package handlers

import (
	"context"
	"strconv"
	"time"

	"github.com/ahmetk3436/netwatch/internal/models"
	"github.com/ahmetk3436/netwatch/internal/services"
	"github.com/gofiber/fiber/v2"
)

const maxBatchSize = 500

type AlertIngester interface {
	Process(ctx context.Context, a *models.Alert) (*services.ProcessResult, error)
	ProcessBatch(ctx context.Context, alerts []models.Alert) []services.BatchItem
}

type AlertReader interface {
	ListCurrent(ctx context.Context, f services.CurrentFilter) ([]models.CurrentAlert, error)
	CountCurrent(ctx context.Context, f services.CurrentFilter) (int64, error)
	ListCurrentByDevice(ctx context.Context, deviceID int64) ([]models.CurrentAlert, error)
	Summary(ctx context.Context, f services.CurrentFilter) (*services.Summary, error)
	History(ctx context.Context, f services.HistoryFilter, page, size int) (*services.HistoryPage, error)
	Acknowledge(ctx context.Context, id uint, note string) (*models.AlertHistory, error)
}

type AlertHandler struct {
	engine AlertIngester
	query  AlertReader
}

func NewAlertHandler(engine AlertIngester, query AlertReader) *AlertHandler {
	return &AlertHandler{engine: engine, query: query}
}

type processResponse struct {
	*services.ProcessResult
	Warnings []string `json:"warnings,omitempty"`
}

// ProcessAlert ingests a single raise or clear event.
func (h *AlertHandler) ProcessAlert(c *fiber.Ctx) error {
	var a models.Alert
	if err := c.BodyParser(&a); err != nil {
		return fail(c, fiber.StatusBadRequest, "Invalid request body")
	}

	res, err := h.engine.Process(c.UserContext(), &a)
	if err != nil {
		return respondError(c, err, "Process alert")
	}
	return c.JSON(processResponse{ProcessResult: res, Warnings: res.Warnings()})
}

// ProcessBatch ingests alerts in order; one bad element does not fail the rest.
func (h *AlertHandler) ProcessBatch(c *fiber.Ctx) error {
	var alerts []models.Alert
	if err := c.BodyParser(&alerts); err != nil {
		return fail(c, fiber.StatusBadRequest, "Request body must be an array of alerts")
	}
	if len(alerts) == 0 {
		return fail(c, fiber.StatusBadRequest, "Batch is empty")
	}
	if len(alerts) > maxBatchSize {
		return fail(c, fiber.StatusRequestEntityTooLarge, "Batch exceeds "+strconv.Itoa(maxBatchSize)+" alerts")
	}

	items := h.engine.ProcessBatch(c.UserContext(), alerts)
	failed := 0
	for _, it := range items {
		if it.Error != "" {
			failed++
		}
	}
	return c.JSON(fiber.Map{
		"items":     items,
		"processed": len(items) - failed,
		"failed":    failed,
	})
}

func currentFilter(c *fiber.Ctx) services.CurrentFilter {
	return services.CurrentFilter{
		Category: models.Category(c.Query("category")),
		Severity: models.Severity(c.Query("severity")),
	}
}

func (h *AlertHandler) ListCurrent(c *fiber.Ctx) error {
	alerts, err := h.query.ListCurrent(c.UserContext(), currentFilter(c))
	if err != nil {
		return respondError(c, err, "List current alerts")
	}
	return c.JSON(fiber.Map{"alerts": alerts, "count": len(alerts)})
}

func (h *AlertHandler) CountCurrent(c *fiber.Ctx) error {
	n, err := h.query.CountCurrent(c.UserContext(), currentFilter(c))
	if err != nil {
		return respondError(c, err, "Count current alerts")
	}
	return c.JSON(fiber.Map{"count": n})
}

func (h *AlertHandler) ListCurrentByDevice(c *fiber.Ctx) error {
	deviceID, ok := paramInt64(c, "deviceId")
	if !ok {
		return fail(c, fiber.StatusBadRequest, "Invalid device ID")
	}
	alerts, err := h.query.ListCurrentByDevice(c.UserContext(), deviceID)
	if err != nil {
		return respondError(c, err, "List device alerts")
	}
	return c.JSON(fiber.Map{"deviceId": deviceID, "alerts": alerts, "count": len(alerts)})
}

func (h *AlertHandler) Summary(c *fiber.Ctx) error {
	sum, err := h.query.Summary(c.UserContext(), currentFilter(c))
	if err != nil {
		return respondError(c, err, "Summarize alerts")
	}
	return c.JSON(sum)
}

// ListHistory returns a page of history, newest first.
func (h *AlertHandler) ListHistory(c *fiber.Ctx) error {
	f := services.HistoryFilter{Category: models.Category(c.Query("category"))}

	if v := c.Query("deviceId"); v != "" {
		id, err := strconv.ParseInt(v, 10, 64)
		if err != nil || id <= 0 {
			return fail(c, fiber.StatusBadRequest, "Invalid deviceId")
		}
		f.DeviceID = &id
	}
	if v := c.Query("startDate"); v != "" {
		t, err := parseDate(v, false)
		if err != nil {
			return fail(c, fiber.StatusBadRequest, "Invalid startDate, use RFC3339 or YYYY-MM-DD")
		}
		f.StartDate = &t
	}
	if v := c.Query("endDate"); v != "" {
		t, err := parseDate(v, true)
		if err != nil {
			return fail(c, fiber.StatusBadRequest, "Invalid endDate, use RFC3339 or YYYY-MM-DD")
		}
		f.EndDate = &t
	}

	page, err := h.query.History(c.UserContext(), f, c.QueryInt("page", 1), c.QueryInt("size", 0))
	if err != nil {
		return respondError(c, err, "List alert history")
	}
	return c.JSON(page)
}

// AcknowledgeHistory attaches an operator note to a history entry.
func (h *AlertHandler) AcknowledgeHistory(c *fiber.Ctx) error {
	id, ok := paramUint(c, "id")
	if !ok {
		return fail(c, fiber.StatusBadRequest, "Invalid history ID")
	}
	var req struct {
		Note string `json:"note"`
	}
	if len(c.Body()) > 0 {
		if err := c.BodyParser(&req); err != nil {
			return fail(c, fiber.StatusBadRequest, "Invalid request body")
		}
	}

	row, err := h.query.Acknowledge(c.UserContext(), id, req.Note)
	if err != nil {
		return respondError(c, err, "Acknowledge alert")
	}
	return c.JSON(row)
}

// parseDate accepts RFC3339 or a bare date. A bare end date covers the
// whole day.
func parseDate(v string, endOfDay bool) (time.Time, error) {
	if t, err := time.Parse(time.RFC3339, v); err == nil {
		return t, nil
	}
	t, err := time.Parse(time.DateOnly, v)
	if err != nil {
		return time.Time{}, err
	}
	if endOfDay {
		t = t.Add(24*time.Hour - time.Nanosecond)
	}
	return t, nil
}
