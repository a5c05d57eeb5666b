// Package store implements the service persistence interfaces on gorm.
package store

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/ahmetk3436/netwatch/internal/models"
	"github.com/ahmetk3436/netwatch/internal/services"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

// AlertStore backs both the current-fault table and the alert history log.
type AlertStore struct {
	db *gorm.DB
}

func NewAlertStore(db *gorm.DB) *AlertStore {
	return &AlertStore{db: db}
}

var (
	_ services.FaultStore   = (*AlertStore)(nil)
	_ services.HistoryStore = (*AlertStore)(nil)
)

var faultKeyColumns = []clause.Column{{Name: "device_id"}, {Name: "fault_type"}, {Name: "if_index"}}

// columns refreshed when a raise hits an existing fault key
var upsertColumns = []string{
	"alert_id", "alert_type", "category", "severity",
	"device_name", "device_ip", "message",
	"metric_name", "current_value", "threshold", "unit", "duration_sec",
	"group_name", "vendor_name", "model_name", "extra",
	"occurred_at", "updated_at",
}

// UpsertCurrent inserts or refreshes the row for the fault key in a single
// INSERT ... ON CONFLICT statement.
func (s *AlertStore) UpsertCurrent(ctx context.Context, row *models.CurrentAlert) error {
	err := s.db.WithContext(ctx).Clauses(clause.OnConflict{
		Columns:   faultKeyColumns,
		DoUpdates: clause.AssignmentColumns(upsertColumns),
	}).Create(row).Error
	if err != nil {
		return fmt.Errorf("upsert current alert: %w", err)
	}
	return nil
}

func (s *AlertStore) DeleteCurrent(ctx context.Context, deviceID int64, faultType string, ifIndex int) (int64, error) {
	res := s.db.WithContext(ctx).
		Where("device_id = ? AND fault_type = ? AND if_index = ?", deviceID, faultType, ifIndex).
		Delete(&models.CurrentAlert{})
	if res.Error != nil {
		return 0, fmt.Errorf("delete current alert: %w", res.Error)
	}
	return res.RowsAffected, nil
}

// currentScope is the one predicate used by list, count and summary.
func currentScope(f services.CurrentFilter) func(*gorm.DB) *gorm.DB {
	return func(db *gorm.DB) *gorm.DB {
		if f.Category != "" {
			db = db.Where("category = ?", f.Category)
		}
		if f.Severity != "" {
			db = db.Where("severity = ?", f.Severity)
		}
		if f.DeviceID != nil {
			db = db.Where("device_id = ?", *f.DeviceID)
		}
		return db
	}
}

func (s *AlertStore) ListCurrent(ctx context.Context, f services.CurrentFilter) ([]models.CurrentAlert, error) {
	rows := []models.CurrentAlert{}
	err := s.db.WithContext(ctx).
		Scopes(currentScope(f)).
		Order("occurred_at DESC").
		Find(&rows).Error
	if err != nil {
		return nil, fmt.Errorf("list current alerts: %w", err)
	}
	return rows, nil
}

func (s *AlertStore) CountCurrentBySeverity(ctx context.Context, f services.CurrentFilter) (map[models.Severity]int64, error) {
	var rows []struct {
		Severity models.Severity
		Total    int64
	}
	err := s.db.WithContext(ctx).
		Model(&models.CurrentAlert{}).
		Scopes(currentScope(f)).
		Select("severity, COUNT(*) AS total").
		Group("severity").
		Scan(&rows).Error
	if err != nil {
		return nil, fmt.Errorf("count current alerts: %w", err)
	}

	counts := make(map[models.Severity]int64, len(rows))
	for _, r := range rows {
		counts[r.Severity] = r.Total
	}
	return counts, nil
}

func (s *AlertStore) AppendHistory(ctx context.Context, row *models.AlertHistory) error {
	if err := s.db.WithContext(ctx).Create(row).Error; err != nil {
		return fmt.Errorf("append alert history: %w", err)
	}
	return nil
}

func historyScope(f services.HistoryFilter) func(*gorm.DB) *gorm.DB {
	return func(db *gorm.DB) *gorm.DB {
		if f.Category != "" {
			db = db.Where("category = ?", f.Category)
		}
		if f.DeviceID != nil {
			db = db.Where("device_id = ?", *f.DeviceID)
		}
		if f.StartDate != nil {
			db = db.Where("occurred_at >= ?", *f.StartDate)
		}
		if f.EndDate != nil {
			db = db.Where("occurred_at <= ?", *f.EndDate)
		}
		return db
	}
}

// ListHistory returns one page, newest first, and the total for the filter.
func (s *AlertStore) ListHistory(ctx context.Context, f services.HistoryFilter, page, size int) ([]models.AlertHistory, int64, error) {
	var total int64
	if err := s.db.WithContext(ctx).Model(&models.AlertHistory{}).Scopes(historyScope(f)).Count(&total).Error; err != nil {
		return nil, 0, fmt.Errorf("count alert history: %w", err)
	}

	rows := []models.AlertHistory{}
	if total == 0 {
		return rows, 0, nil
	}
	err := s.db.WithContext(ctx).
		Scopes(historyScope(f)).
		Order("occurred_at DESC, id DESC").
		Offset((page - 1) * size).
		Limit(size).
		Find(&rows).Error
	if err != nil {
		return nil, 0, fmt.Errorf("list alert history: %w", err)
	}
	return rows, total, nil
}

func (s *AlertStore) AcknowledgeHistory(ctx context.Context, id uint, note string, at time.Time) (*models.AlertHistory, error) {
	var row models.AlertHistory
	if err := s.db.WithContext(ctx).First(&row, id).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, services.ErrNotFound
		}
		return nil, fmt.Errorf("load alert history %d: %w", id, err)
	}

	err := s.db.WithContext(ctx).Model(&row).Updates(map[string]any{
		"acknowledged": true,
		"ack_note":     note,
		"acked_at":     at,
	}).Error
	if err != nil {
		return nil, fmt.Errorf("acknowledge alert history %d: %w", id, err)
	}
	row.Acknowledged = true
	row.AckNote = note
	row.AckedAt = &at
	return &row, nil
}
