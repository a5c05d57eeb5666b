package services

import (
	"context"
	"fmt"
	"log/slog"
	"strings"

	"github.com/ahmetk3436/netwatch/internal/models"
)

// GroupStore persists the watch group tree and its device membership.
// Multi-row operations (ApplyMove, DeleteGroup, ReplaceMembers) are atomic.
type GroupStore interface {
	CreateGroup(ctx context.Context, g *models.WatchGroup) error
	GetGroup(ctx context.Context, id uint) (*models.WatchGroup, error)
	ListGroups(ctx context.Context) ([]models.WatchGroup, error)
	ChildGroups(ctx context.Context, parentID uint) ([]models.WatchGroup, error)
	UpdateGroup(ctx context.Context, g *models.WatchGroup) error
	// ApplyMove saves g and sets the depth of each listed descendant.
	ApplyMove(ctx context.Context, g *models.WatchGroup, depths map[uint]int) error
	// DeleteGroup removes interface rows, device rows and the group, in that order.
	DeleteGroup(ctx context.Context, id uint) error
	GroupMembers(ctx context.Context, id uint) ([]models.DeviceMembership, error)
	ReplaceMembers(ctx context.Context, id uint, members []models.DeviceMembership) error
}

// CollectionStopper asks the collector to stop polling a group.
type CollectionStopper interface {
	StopCollection(ctx context.Context, groupID uint) error
}

const (
	defaultIntervalSec = 60
	maxTreeDepth       = 64

	// upward walks stop here; anything longer is a parent cycle, not a
	// deep tree
	maxAncestorWalk = 4 * maxTreeDepth
)

type CreateGroupRequest struct {
	ParentID    *uint  `json:"parentId"`
	Name        string `json:"name" validate:"required,max=100"`
	IntervalSec int    `json:"intervalSec" validate:"gte=0,lte=86400"`
	Icon        string `json:"icon" validate:"max=64"`
}

type UpdateGroupRequest struct {
	Name        *string `json:"name" validate:"omitempty,min=1,max=100"`
	IntervalSec *int    `json:"intervalSec" validate:"omitempty,gte=1,lte=86400"`
	Icon        *string `json:"icon" validate:"omitempty,max=64"`
	// Parent is set only when the caller supplied parentId, possibly null.
	Parent *ParentChange `json:"-"`
}

type ParentChange struct {
	ParentID *uint
}

type DeleteResult struct {
	GroupID uint  `json:"groupId"`
	StopErr error `json:"-"`
}

// WatchGroupService owns the group tree: creation, partial updates, moves
// with depth cascade and deletion.
type WatchGroupService struct {
	store   GroupStore
	stopper CollectionStopper
	locks   *treeLocks
}

func NewWatchGroupService(store GroupStore, stopper CollectionStopper) *WatchGroupService {
	return &WatchGroupService{
		store:   store,
		stopper: stopper,
		locks:   newTreeLocks(),
	}
}

func (s *WatchGroupService) ListGroups(ctx context.Context) ([]models.WatchGroup, error) {
	groups, err := s.store.ListGroups(ctx)
	if err != nil {
		return nil, err
	}
	if groups == nil {
		groups = []models.WatchGroup{}
	}
	return groups, nil
}

func (s *WatchGroupService) GetGroup(ctx context.Context, id uint) (*models.WatchGroup, error) {
	g, err := s.store.GetGroup(ctx, id)
	if err != nil {
		if IsNotFound(err) {
			return nil, notFound("watch group", id)
		}
		return nil, err
	}
	return g, nil
}

func (s *WatchGroupService) GetGroupDetail(ctx context.Context, id uint) (*models.WatchGroupDetail, error) {
	return loadGroupDetail(ctx, s.store, id)
}

func loadGroupDetail(ctx context.Context, store GroupStore, id uint) (*models.WatchGroupDetail, error) {
	g, err := store.GetGroup(ctx, id)
	if err != nil {
		if IsNotFound(err) {
			return nil, notFound("watch group", id)
		}
		return nil, err
	}
	members, err := store.GroupMembers(ctx, id)
	if err != nil {
		return nil, fmt.Errorf("load members of group %d: %w", id, err)
	}
	if members == nil {
		members = []models.DeviceMembership{}
	}
	return &models.WatchGroupDetail{WatchGroup: *g, Devices: members}, nil
}

func (s *WatchGroupService) CreateGroup(ctx context.Context, req CreateGroupRequest) (*models.WatchGroup, error) {
	req.Name = strings.TrimSpace(req.Name)
	if err := validateStruct(&req); err != nil {
		return nil, err
	}
	if req.IntervalSec == 0 {
		req.IntervalSec = defaultIntervalSec
	}

	g := &models.WatchGroup{
		ParentID:    req.ParentID,
		Name:        req.Name,
		IntervalSec: req.IntervalSec,
		Icon:        req.Icon,
	}

	if req.ParentID != nil {
		unlock, err := s.locks.lock(ctx, s.rootOf, *req.ParentID)
		if err != nil {
			return nil, err
		}
		defer unlock()

		parent, err := s.parentGroup(ctx, *req.ParentID)
		if err != nil {
			return nil, err
		}
		if parent.Depth+1 > maxTreeDepth {
			return nil, validationf("group tree cannot be deeper than %d levels", maxTreeDepth)
		}
		g.Depth = parent.Depth + 1
	}

	if err := s.store.CreateGroup(ctx, g); err != nil {
		return nil, fmt.Errorf("create group: %w", err)
	}
	slog.Info("Watch group created", "group_id", g.ID, "parent_id", g.ParentID, "depth", g.Depth)
	return g, nil
}

// UpdateGroup applies a partial update. A parent change goes through the same
// validation and descendant cascade as MoveGroup.
func (s *WatchGroupService) UpdateGroup(ctx context.Context, id uint, req UpdateGroupRequest) (*models.WatchGroup, error) {
	if req.Name != nil {
		trimmed := strings.TrimSpace(*req.Name)
		req.Name = &trimmed
	}
	if err := validateStruct(&req); err != nil {
		return nil, err
	}

	ids := []uint{id}
	if req.Parent != nil && req.Parent.ParentID != nil {
		if *req.Parent.ParentID == id {
			return nil, validationf("a group cannot be its own parent")
		}
		ids = append(ids, *req.Parent.ParentID)
	}
	unlock, err := s.locks.lock(ctx, s.rootOf, ids...)
	if err != nil {
		return nil, err
	}
	defer unlock()

	g, err := s.GetGroup(ctx, id)
	if err != nil {
		return nil, err
	}
	if req.Name != nil {
		g.Name = *req.Name
	}
	if req.IntervalSec != nil {
		g.IntervalSec = *req.IntervalSec
	}
	if req.Icon != nil {
		g.Icon = *req.Icon
	}

	if req.Parent != nil && !sameParent(g.ParentID, req.Parent.ParentID) {
		if err := s.moveLocked(ctx, g, req.Parent.ParentID); err != nil {
			return nil, err
		}
		return g, nil
	}

	if err := s.store.UpdateGroup(ctx, g); err != nil {
		return nil, fmt.Errorf("update group %d: %w", id, err)
	}
	return g, nil
}

// MoveGroup reparents id under newParentID (nil makes it a root) and shifts
// the depth of every descendant by the same amount.
func (s *WatchGroupService) MoveGroup(ctx context.Context, id uint, newParentID *uint) (*models.WatchGroup, error) {
	ids := []uint{id}
	if newParentID != nil {
		if *newParentID == id {
			return nil, validationf("a group cannot be its own parent")
		}
		ids = append(ids, *newParentID)
	}

	unlock, err := s.locks.lock(ctx, s.rootOf, ids...)
	if err != nil {
		return nil, err
	}
	defer unlock()

	g, err := s.GetGroup(ctx, id)
	if err != nil {
		return nil, err
	}
	if err := s.moveLocked(ctx, g, newParentID); err != nil {
		return nil, err
	}
	slog.Info("Watch group moved", "group_id", g.ID, "parent_id", g.ParentID, "depth", g.Depth)
	return g, nil
}

// moveLocked validates the new parent, then cascades depths. The caller holds
// the tree locks of both the group and the new parent.
func (s *WatchGroupService) moveLocked(ctx context.Context, g *models.WatchGroup, newParentID *uint) error {
	newDepth := 0
	if newParentID != nil {
		parent, err := s.parentGroup(ctx, *newParentID)
		if err != nil {
			return err
		}
		isDescendant, err := s.hasAncestor(ctx, parent, g.ID)
		if err != nil {
			return err
		}
		if isDescendant {
			return validationf("cannot move group %d under its own descendant %d", g.ID, parent.ID)
		}
		newDepth = parent.Depth + 1
		if newDepth > maxTreeDepth {
			return validationf("group tree cannot be deeper than %d levels", maxTreeDepth)
		}
	}

	nodes, err := Subtree(ctx, g.ID, s.store.ChildGroups)
	if err != nil {
		return err
	}
	depths := CascadeDepths(newDepth, nodes)
	for _, d := range depths {
		if d > maxTreeDepth {
			return validationf("group tree cannot be deeper than %d levels", maxTreeDepth)
		}
	}

	g.ParentID = newParentID
	g.Depth = newDepth
	if err := s.store.ApplyMove(ctx, g, depths); err != nil {
		return fmt.Errorf("move group %d: %w", g.ID, err)
	}
	return nil
}

func (s *WatchGroupService) SetIcon(ctx context.Context, id uint, icon string) (*models.WatchGroup, error) {
	icon = strings.TrimSpace(icon)
	return s.UpdateGroup(ctx, id, UpdateGroupRequest{Icon: &icon})
}

func (s *WatchGroupService) CountDescendants(ctx context.Context, id uint) (int, error) {
	if _, err := s.GetGroup(ctx, id); err != nil {
		return 0, err
	}
	nodes, err := Subtree(ctx, id, s.store.ChildGroups)
	if err != nil {
		return 0, err
	}
	return len(nodes), nil
}

// SetMembers replaces the devices and interfaces watched by a group.
func (s *WatchGroupService) SetMembers(ctx context.Context, id uint, members []models.DeviceMembership) (*models.WatchGroupDetail, error) {
	seen := make(map[int64]bool, len(members))
	for i := range members {
		if err := validateStruct(&members[i]); err != nil {
			return nil, err
		}
		if seen[members[i].DeviceID] {
			return nil, validationf("device %d listed more than once", members[i].DeviceID)
		}
		seen[members[i].DeviceID] = true
	}
	if _, err := s.GetGroup(ctx, id); err != nil {
		return nil, err
	}
	if err := s.store.ReplaceMembers(ctx, id, members); err != nil {
		return nil, fmt.Errorf("replace members of group %d: %w", id, err)
	}
	return loadGroupDetail(ctx, s.store, id)
}

// DeleteGroup stops collection (best effort) and removes the group with its
// membership. Groups that still have child groups are rejected.
func (s *WatchGroupService) DeleteGroup(ctx context.Context, id uint) (*DeleteResult, error) {
	if _, err := s.GetGroup(ctx, id); err != nil {
		return nil, err
	}
	if err := s.ensureLeaf(ctx, id); err != nil {
		return nil, err
	}

	res := &DeleteResult{GroupID: id}
	if s.stopper != nil {
		if err := s.stopper.StopCollection(ctx, id); err != nil {
			res.StopErr = err
			slog.Warn("Failed to stop collection before delete, deleting anyway", "group_id", id, "error", err)
		}
	}

	unlock, err := s.locks.lock(ctx, s.rootOf, id)
	if err != nil {
		return nil, err
	}
	defer unlock()

	// a child may have been added while the stop call was in flight
	if err := s.ensureLeaf(ctx, id); err != nil {
		return nil, err
	}
	if err := s.store.DeleteGroup(ctx, id); err != nil {
		if IsNotFound(err) {
			return nil, notFound("watch group", id)
		}
		return nil, fmt.Errorf("delete group %d: %w", id, err)
	}
	slog.Info("Watch group deleted", "group_id", id)
	return res, nil
}

func (s *WatchGroupService) ensureLeaf(ctx context.Context, id uint) error {
	children, err := s.store.ChildGroups(ctx, id)
	if err != nil {
		return fmt.Errorf("load children of group %d: %w", id, err)
	}
	if len(children) > 0 {
		return validationf("group %d has %d child groups; move or delete them first", id, len(children))
	}
	return nil
}

func (s *WatchGroupService) parentGroup(ctx context.Context, id uint) (*models.WatchGroup, error) {
	parent, err := s.store.GetGroup(ctx, id)
	if err != nil {
		if IsNotFound(err) {
			return nil, validationf("parent group %d not found", id)
		}
		return nil, err
	}
	return parent, nil
}

// hasAncestor walks upward from start (inclusive) looking for target.
func (s *WatchGroupService) hasAncestor(ctx context.Context, start *models.WatchGroup, target uint) (bool, error) {
	cur := start
	for steps := 0; ; steps++ {
		if cur.ID == target {
			return true, nil
		}
		if cur.ParentID == nil {
			return false, nil
		}
		if steps > maxAncestorWalk {
			return false, fmt.Errorf("ancestor chain of group %d does not terminate", start.ID)
		}
		next, err := s.store.GetGroup(ctx, *cur.ParentID)
		if err != nil {
			return false, fmt.Errorf("load ancestor %d: %w", *cur.ParentID, err)
		}
		cur = next
	}
}

// rootOf resolves the tree root of id. Unknown groups resolve to themselves
// so callers report the missing group after locking.
func (s *WatchGroupService) rootOf(ctx context.Context, id uint) (uint, error) {
	cur := id
	for steps := 0; steps <= maxAncestorWalk; steps++ {
		g, err := s.store.GetGroup(ctx, cur)
		if err != nil {
			if IsNotFound(err) {
				return cur, nil
			}
			return 0, err
		}
		if g.ParentID == nil {
			return g.ID, nil
		}
		cur = *g.ParentID
	}
	return 0, fmt.Errorf("ancestor chain of group %d does not terminate", id)
}

func sameParent(a, b *uint) bool {
	if a == nil || b == nil {
		return a == nil && b == nil
	}
	return *a == *b
}
