package store

import (
	"context"
	"errors"
	"fmt"
	"slices"

	"github.com/ahmetk3436/netwatch/internal/models"
	"github.com/ahmetk3436/netwatch/internal/services"
	"gorm.io/gorm"
)

// GroupStore persists watch groups and their device/interface membership.
type GroupStore struct {
	db *gorm.DB
}

func NewGroupStore(db *gorm.DB) *GroupStore {
	return &GroupStore{db: db}
}

var _ services.GroupStore = (*GroupStore)(nil)

func (s *GroupStore) CreateGroup(ctx context.Context, g *models.WatchGroup) error {
	if err := s.db.WithContext(ctx).Create(g).Error; err != nil {
		return fmt.Errorf("create watch group: %w", err)
	}
	return nil
}

func (s *GroupStore) GetGroup(ctx context.Context, id uint) (*models.WatchGroup, error) {
	var g models.WatchGroup
	if err := s.db.WithContext(ctx).First(&g, id).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, services.ErrNotFound
		}
		return nil, fmt.Errorf("load watch group %d: %w", id, err)
	}
	return &g, nil
}

func (s *GroupStore) ListGroups(ctx context.Context) ([]models.WatchGroup, error) {
	groups := []models.WatchGroup{}
	if err := s.db.WithContext(ctx).Order("depth ASC, id ASC").Find(&groups).Error; err != nil {
		return nil, fmt.Errorf("list watch groups: %w", err)
	}
	return groups, nil
}

func (s *GroupStore) ChildGroups(ctx context.Context, parentID uint) ([]models.WatchGroup, error) {
	var groups []models.WatchGroup
	err := s.db.WithContext(ctx).
		Where("parent_id = ?", parentID).
		Order("id ASC").
		Find(&groups).Error
	if err != nil {
		return nil, fmt.Errorf("list children of watch group %d: %w", parentID, err)
	}
	return groups, nil
}

var groupColumns = []string{"parent_id", "name", "interval_sec", "depth", "icon", "updated_at"}

func (s *GroupStore) UpdateGroup(ctx context.Context, g *models.WatchGroup) error {
	return updateGroupRow(s.db.WithContext(ctx), g)
}

func updateGroupRow(db *gorm.DB, g *models.WatchGroup) error {
	// Select forces zero values (root parent, depth 0, empty icon) to be written
	res := db.Model(g).Select(groupColumns).Updates(g)
	if res.Error != nil {
		return fmt.Errorf("update watch group %d: %w", g.ID, res.Error)
	}
	if res.RowsAffected == 0 {
		return services.ErrNotFound
	}
	return nil
}

// ApplyMove writes the moved group and every shifted descendant depth in one
// transaction. Descendants sharing a depth are updated together.
func (s *GroupStore) ApplyMove(ctx context.Context, g *models.WatchGroup, depths map[uint]int) error {
	byDepth := make(map[int][]uint)
	for id, d := range depths {
		byDepth[d] = append(byDepth[d], id)
	}
	levels := make([]int, 0, len(byDepth))
	for d := range byDepth {
		levels = append(levels, d)
	}
	slices.Sort(levels)

	return s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := updateGroupRow(tx, g); err != nil {
			return err
		}
		for _, d := range levels {
			ids := byDepth[d]
			slices.Sort(ids)
			err := tx.Model(&models.WatchGroup{}).
				Where("id IN ?", ids).
				Update("depth", d).Error
			if err != nil {
				return fmt.Errorf("cascade depth %d: %w", d, err)
			}
		}
		return nil
	})
}

// DeleteGroup removes interface rows, then device rows, then the group.
func (s *GroupStore) DeleteGroup(ctx context.Context, id uint) error {
	return s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := tx.Where("group_id = ?", id).Delete(&models.WatchGroupInterface{}).Error; err != nil {
			return fmt.Errorf("delete group interfaces: %w", err)
		}
		if err := tx.Where("group_id = ?", id).Delete(&models.WatchGroupDevice{}).Error; err != nil {
			return fmt.Errorf("delete group devices: %w", err)
		}
		res := tx.Delete(&models.WatchGroup{}, id)
		if res.Error != nil {
			return fmt.Errorf("delete watch group %d: %w", id, res.Error)
		}
		if res.RowsAffected == 0 {
			return services.ErrNotFound
		}
		return nil
	})
}

// GroupMembers assembles devices with their interface indexes, ordered by
// device id and interface index.
func (s *GroupStore) GroupMembers(ctx context.Context, id uint) ([]models.DeviceMembership, error) {
	db := s.db.WithContext(ctx)

	var devices []models.WatchGroupDevice
	if err := db.Where("group_id = ?", id).Order("device_id ASC").Find(&devices).Error; err != nil {
		return nil, fmt.Errorf("load group devices: %w", err)
	}
	members := make([]models.DeviceMembership, 0, len(devices))
	if len(devices) == 0 {
		return members, nil
	}

	var ifaces []models.WatchGroupInterface
	if err := db.Where("group_id = ?", id).Order("device_id ASC, if_index ASC").Find(&ifaces).Error; err != nil {
		return nil, fmt.Errorf("load group interfaces: %w", err)
	}
	byDevice := make(map[int64][]int, len(devices))
	for _, in := range ifaces {
		byDevice[in.DeviceID] = append(byDevice[in.DeviceID], in.IfIndex)
	}

	for _, d := range devices {
		idx := byDevice[d.DeviceID]
		if idx == nil {
			idx = []int{}
		}
		members = append(members, models.DeviceMembership{DeviceID: d.DeviceID, IfIndexes: idx})
	}
	return members, nil
}

// ReplaceMembers swaps the whole membership of a group atomically.
func (s *GroupStore) ReplaceMembers(ctx context.Context, id uint, members []models.DeviceMembership) error {
	devices := make([]models.WatchGroupDevice, 0, len(members))
	var ifaces []models.WatchGroupInterface
	for _, m := range members {
		devices = append(devices, models.WatchGroupDevice{GroupID: id, DeviceID: m.DeviceID})
		for _, idx := range slices.Compact(slices.Sorted(slices.Values(m.IfIndexes))) {
			ifaces = append(ifaces, models.WatchGroupInterface{GroupID: id, DeviceID: m.DeviceID, IfIndex: idx})
		}
	}

	return s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := tx.Where("group_id = ?", id).Delete(&models.WatchGroupInterface{}).Error; err != nil {
			return fmt.Errorf("clear group interfaces: %w", err)
		}
		if err := tx.Where("group_id = ?", id).Delete(&models.WatchGroupDevice{}).Error; err != nil {
			return fmt.Errorf("clear group devices: %w", err)
		}
		if len(devices) > 0 {
			if err := tx.Create(&devices).Error; err != nil {
				return fmt.Errorf("insert group devices: %w", err)
			}
		}
		if len(ifaces) > 0 {
			if err := tx.Create(&ifaces).Error; err != nil {
				return fmt.Errorf("insert group interfaces: %w", err)
			}
		}
		return nil
	})
}
