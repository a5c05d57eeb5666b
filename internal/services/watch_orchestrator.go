package services

import (
	"context"
	"log/slog"
	"slices"
	"sync"

	"github.com/ahmetk3436/netwatch/internal/collector"
	"github.com/ahmetk3436/netwatch/internal/models"
)

// CollectorClient is the subset of collector.Client the orchestrator uses.
type CollectorClient interface {
	Start(ctx context.Context, req collector.StartRequest) (*collector.Response, error)
	Stop(ctx context.Context, groupID uint) (*collector.Response, error)
	Heartbeat(ctx context.Context, groupID uint) (*collector.Response, error)
}

// WatchOrchestrator translates group commands into collector calls. It keeps
// a set of groups it has started so background heartbeats know what to ping.
type WatchOrchestrator struct {
	groups GroupStore
	client CollectorClient

	mu      sync.Mutex
	started map[uint]struct{}
}

func NewWatchOrchestrator(groups GroupStore, client CollectorClient) *WatchOrchestrator {
	return &WatchOrchestrator{
		groups:  groups,
		client:  client,
		started: make(map[uint]struct{}),
	}
}

// BuildStartRequest turns a group detail into the collector manifest. The
// same detail always yields the same request, so repeated starts are safe.
func BuildStartRequest(detail *models.WatchGroupDetail) collector.StartRequest {
	req := collector.StartRequest{
		GroupID:     detail.ID,
		IntervalSec: detail.IntervalSec,
		Devices:     make([]collector.DeviceTarget, 0, len(detail.Devices)),
	}
	for _, d := range detail.Devices {
		ifIndexes := slices.Clone(d.IfIndexes)
		if ifIndexes == nil {
			ifIndexes = []int{}
		}
		slices.Sort(ifIndexes)
		req.Devices = append(req.Devices, collector.DeviceTarget{DeviceID: d.DeviceID, IfIndexes: ifIndexes})
	}
	slices.SortFunc(req.Devices, func(a, b collector.DeviceTarget) int {
		switch {
		case a.DeviceID < b.DeviceID:
			return -1
		case a.DeviceID > b.DeviceID:
			return 1
		}
		return 0
	})
	return req
}

// StartWatch sends the group's manifest to the collector. Errors from the
// collector are returned unchanged.
func (o *WatchOrchestrator) StartWatch(ctx context.Context, groupID uint) (*collector.Response, error) {
	detail, err := loadGroupDetail(ctx, o.groups, groupID)
	if err != nil {
		return nil, err
	}
	if len(detail.Devices) == 0 {
		return nil, validationf("group %d has no devices to watch", groupID)
	}

	resp, err := o.client.Start(ctx, BuildStartRequest(detail))
	if err != nil {
		slog.Error("Failed to start collection", "group_id", groupID, "error", err)
		return nil, err
	}
	o.mu.Lock()
	o.started[groupID] = struct{}{}
	o.mu.Unlock()
	slog.Info("Collection started", "group_id", groupID, "devices", len(detail.Devices))
	return resp, nil
}

func (o *WatchOrchestrator) StopWatch(ctx context.Context, groupID uint) (*collector.Response, error) {
	resp, err := o.client.Stop(ctx, groupID)
	if err != nil {
		slog.Error("Failed to stop collection", "group_id", groupID, "error", err)
		return nil, err
	}
	o.forget(groupID)
	slog.Info("Collection stopped", "group_id", groupID)
	return resp, nil
}

func (o *WatchOrchestrator) SendHeartbeat(ctx context.Context, groupID uint) (*collector.Response, error) {
	resp, err := o.client.Heartbeat(ctx, groupID)
	if err != nil {
		slog.Warn("Heartbeat failed", "group_id", groupID, "error", err)
		return nil, err
	}
	return resp, nil
}

// StopCollection lets WatchGroupService stop a group before deleting it. The
// group is dropped from the started set even when the call fails, since the
// group is about to disappear.
func (o *WatchOrchestrator) StopCollection(ctx context.Context, groupID uint) error {
	defer o.forget(groupID)
	_, err := o.client.Stop(ctx, groupID)
	return err
}

// StartedGroups returns the ids started through this process, ascending.
func (o *WatchOrchestrator) StartedGroups() []uint {
	o.mu.Lock()
	defer o.mu.Unlock()
	ids := make([]uint, 0, len(o.started))
	for id := range o.started {
		ids = append(ids, id)
	}
	slices.Sort(ids)
	return ids
}

func (o *WatchOrchestrator) forget(groupID uint) {
	o.mu.Lock()
	delete(o.started, groupID)
	o.mu.Unlock()
}
