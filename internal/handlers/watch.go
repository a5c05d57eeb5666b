package handlers

import (
	"context"
	"encoding/json"

	"github.com/ahmetk3436/netwatch/internal/collector"
	"github.com/ahmetk3436/netwatch/internal/models"
	"github.com/ahmetk3436/netwatch/internal/services"
	"github.com/gofiber/fiber/v2"
)

type GroupManager interface {
	ListGroups(ctx context.Context) ([]models.WatchGroup, error)
	GetGroupDetail(ctx context.Context, id uint) (*models.WatchGroupDetail, error)
	CreateGroup(ctx context.Context, req services.CreateGroupRequest) (*models.WatchGroup, error)
	UpdateGroup(ctx context.Context, id uint, req services.UpdateGroupRequest) (*models.WatchGroup, error)
	MoveGroup(ctx context.Context, id uint, newParentID *uint) (*models.WatchGroup, error)
	DeleteGroup(ctx context.Context, id uint) (*services.DeleteResult, error)
	SetIcon(ctx context.Context, id uint, icon string) (*models.WatchGroup, error)
	CountDescendants(ctx context.Context, id uint) (int, error)
	SetMembers(ctx context.Context, id uint, members []models.DeviceMembership) (*models.WatchGroupDetail, error)
}

type Orchestrator interface {
	StartWatch(ctx context.Context, groupID uint) (*collector.Response, error)
	StopWatch(ctx context.Context, groupID uint) (*collector.Response, error)
	SendHeartbeat(ctx context.Context, groupID uint) (*collector.Response, error)
}

type MetricsSource interface {
	Latest(ctx context.Context, groupID uint) (*models.MetricsSnapshot, error)
	History(ctx context.Context, groupID uint, deviceID int64) ([]models.MetricsHistoryEntry, error)
}

type WatchHandler struct {
	groups  GroupManager
	orch    Orchestrator
	metrics MetricsSource
}

func NewWatchHandler(groups GroupManager, orch Orchestrator, metrics MetricsSource) *WatchHandler {
	return &WatchHandler{groups: groups, orch: orch, metrics: metrics}
}

func (h *WatchHandler) ListGroups(c *fiber.Ctx) error {
	groups, err := h.groups.ListGroups(c.UserContext())
	if err != nil {
		return respondError(c, err, "List watch groups")
	}
	return c.JSON(fiber.Map{"groups": groups})
}

func (h *WatchHandler) GetGroup(c *fiber.Ctx) error {
	id, ok := paramUint(c, "id")
	if !ok {
		return fail(c, fiber.StatusBadRequest, "Invalid group ID")
	}
	detail, err := h.groups.GetGroupDetail(c.UserContext(), id)
	if err != nil {
		return respondError(c, err, "Load watch group")
	}
	return c.JSON(detail)
}

func (h *WatchHandler) CreateGroup(c *fiber.Ctx) error {
	var req services.CreateGroupRequest
	if err := c.BodyParser(&req); err != nil {
		return fail(c, fiber.StatusBadRequest, "Invalid request body")
	}
	g, err := h.groups.CreateGroup(c.UserContext(), req)
	if err != nil {
		return respondError(c, err, "Create watch group")
	}
	return c.Status(fiber.StatusCreated).JSON(g)
}

// UpdateGroup applies a partial update. An explicit "parentId": null moves the
// group to the root, while omitting the key leaves the parent alone.
func (h *WatchHandler) UpdateGroup(c *fiber.Ctx) error {
	id, ok := paramUint(c, "id")
	if !ok {
		return fail(c, fiber.StatusBadRequest, "Invalid group ID")
	}

	var req services.UpdateGroupRequest
	var fields map[string]json.RawMessage
	if err := c.BodyParser(&req); err != nil {
		return fail(c, fiber.StatusBadRequest, "Invalid request body")
	}
	if err := c.BodyParser(&fields); err != nil {
		return fail(c, fiber.StatusBadRequest, "Invalid request body")
	}
	if raw, present := fields["parentId"]; present {
		var parentID *uint
		if err := c.App().Config().JSONDecoder(raw, &parentID); err != nil {
			return fail(c, fiber.StatusBadRequest, "parentId must be a group ID or null")
		}
		req.Parent = &services.ParentChange{ParentID: parentID}
	}

	g, err := h.groups.UpdateGroup(c.UserContext(), id, req)
	if err != nil {
		return respondError(c, err, "Update watch group")
	}
	return c.JSON(g)
}

func (h *WatchHandler) MoveGroup(c *fiber.Ctx) error {
	id, ok := paramUint(c, "id")
	if !ok {
		return fail(c, fiber.StatusBadRequest, "Invalid group ID")
	}
	var req struct {
		ParentID *uint `json:"parentId"`
	}
	if len(c.Body()) > 0 {
		if err := c.BodyParser(&req); err != nil {
			return fail(c, fiber.StatusBadRequest, "Invalid request body")
		}
	}

	g, err := h.groups.MoveGroup(c.UserContext(), id, req.ParentID)
	if err != nil {
		return respondError(c, err, "Move watch group")
	}
	return c.JSON(g)
}

func (h *WatchHandler) SetIcon(c *fiber.Ctx) error {
	id, ok := paramUint(c, "id")
	if !ok {
		return fail(c, fiber.StatusBadRequest, "Invalid group ID")
	}
	var req struct {
		Icon string `json:"icon"`
	}
	if err := c.BodyParser(&req); err != nil {
		return fail(c, fiber.StatusBadRequest, "Invalid request body")
	}

	g, err := h.groups.SetIcon(c.UserContext(), id, req.Icon)
	if err != nil {
		return respondError(c, err, "Update group icon")
	}
	return c.JSON(g)
}

func (h *WatchHandler) CountDescendants(c *fiber.Ctx) error {
	id, ok := paramUint(c, "id")
	if !ok {
		return fail(c, fiber.StatusBadRequest, "Invalid group ID")
	}
	n, err := h.groups.CountDescendants(c.UserContext(), id)
	if err != nil {
		return respondError(c, err, "Count descendants")
	}
	return c.JSON(fiber.Map{"groupId": id, "count": n})
}

func (h *WatchHandler) SetDevices(c *fiber.Ctx) error {
	id, ok := paramUint(c, "id")
	if !ok {
		return fail(c, fiber.StatusBadRequest, "Invalid group ID")
	}
	var req struct {
		Devices []models.DeviceMembership `json:"devices"`
	}
	if err := c.BodyParser(&req); err != nil {
		return fail(c, fiber.StatusBadRequest, "Invalid request body")
	}

	detail, err := h.groups.SetMembers(c.UserContext(), id, req.Devices)
	if err != nil {
		return respondError(c, err, "Update group devices")
	}
	return c.JSON(detail)
}

// DeleteGroup reports a failed collector stop as a warning; the group is
// deleted regardless.
func (h *WatchHandler) DeleteGroup(c *fiber.Ctx) error {
	id, ok := paramUint(c, "id")
	if !ok {
		return fail(c, fiber.StatusBadRequest, "Invalid group ID")
	}
	res, err := h.groups.DeleteGroup(c.UserContext(), id)
	if err != nil {
		return respondError(c, err, "Delete watch group")
	}

	body := fiber.Map{"message": "Watch group deleted", "groupId": res.GroupID}
	if res.StopErr != nil {
		body["warning"] = "collector stop failed: " + collectorMessage(res.StopErr)
	}
	return c.JSON(body)
}

func (h *WatchHandler) StartWatch(c *fiber.Ctx) error {
	return h.command(c, "Start watch", h.orch.StartWatch)
}

func (h *WatchHandler) StopWatch(c *fiber.Ctx) error {
	return h.command(c, "Stop watch", h.orch.StopWatch)
}

func (h *WatchHandler) Heartbeat(c *fiber.Ctx) error {
	return h.command(c, "Heartbeat", h.orch.SendHeartbeat)
}

func (h *WatchHandler) command(c *fiber.Ctx, action string, call func(context.Context, uint) (*collector.Response, error)) error {
	id, ok := paramUint(c, "groupId")
	if !ok {
		return fail(c, fiber.StatusBadRequest, "Invalid group ID")
	}
	resp, err := call(c.UserContext(), id)
	if err != nil {
		return respondError(c, err, action)
	}
	return c.JSON(fiber.Map{"groupId": id, "success": resp.Success, "message": resp.Message})
}

// LatestMetrics returns the newest snapshot; "snapshot" is null until the
// collector has written one.
func (h *WatchHandler) LatestMetrics(c *fiber.Ctx) error {
	id, ok := paramUint(c, "groupId")
	if !ok {
		return fail(c, fiber.StatusBadRequest, "Invalid group ID")
	}
	snap, err := h.metrics.Latest(c.UserContext(), id)
	if err != nil {
		return respondError(c, err, "Read metrics")
	}
	return c.JSON(fiber.Map{"groupId": id, "snapshot": snap})
}

func (h *WatchHandler) MetricsHistory(c *fiber.Ctx) error {
	groupID, ok := paramUint(c, "groupId")
	if !ok {
		return fail(c, fiber.StatusBadRequest, "Invalid group ID")
	}
	deviceID, ok := paramInt64(c, "deviceId")
	if !ok {
		return fail(c, fiber.StatusBadRequest, "Invalid device ID")
	}
	entries, err := h.metrics.History(c.UserContext(), groupID, deviceID)
	if err != nil {
		return respondError(c, err, "Read metrics history")
	}
	return c.JSON(fiber.Map{"groupId": groupID, "deviceId": deviceID, "entries": entries})
}
