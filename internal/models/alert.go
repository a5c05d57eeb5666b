package models

import (
	"strings"
	"time"

	"gorm.io/datatypes"
)

type Category string

const (
	CategoryConnection  Category = "CONNECTION"
	CategoryPerformance Category = "PERFORMANCE"
	CategoryPort        Category = "PORT"
	CategorySystem      Category = "SYSTEM"
)

// Topic returns the lower-cased suffix used for per-category broadcast topics.
func (c Category) Topic() string {
	return strings.ToLower(string(c))
}

func (c Category) Valid() bool {
	switch c {
	case CategoryConnection, CategoryPerformance, CategoryPort, CategorySystem:
		return true
	}
	return false
}

type Severity string

const (
	SeverityCritical Severity = "CRITICAL"
	SeverityMajor    Severity = "MAJOR"
	SeverityMinor    Severity = "MINOR"
	SeverityWarning  Severity = "WARNING"
	SeverityInfo     Severity = "INFO"
)

// Rank orders severities; higher is more severe, 0 means unknown.
func (s Severity) Rank() int {
	switch s {
	case SeverityCritical:
		return 5
	case SeverityMajor:
		return 4
	case SeverityMinor:
		return 3
	case SeverityWarning:
		return 2
	case SeverityInfo:
		return 1
	}
	return 0
}

// DeviceLevelIfIndex marks a fault that is not bound to a sub-resource.
const DeviceLevelIfIndex = -1

// Alert is a single raise or clear event as received from a detector.
// It is never stored directly; see CurrentAlert and AlertHistory.
type Alert struct {
	AlertID      string         `json:"alertId"`
	Category     Category       `json:"category" validate:"omitempty,oneof=CONNECTION PERFORMANCE PORT SYSTEM"`
	AlertType    string         `json:"alertType" validate:"required,max=64"`
	Severity     Severity       `json:"severity" validate:"omitempty,oneof=CRITICAL MAJOR MINOR WARNING INFO"`
	DeviceID     int64          `json:"deviceId" validate:"gt=0"`
	DeviceName   string         `json:"deviceName,omitempty"`
	DeviceIP     string         `json:"deviceIp,omitempty"`
	Message      string         `json:"message,omitempty"`
	OccurredAt   time.Time      `json:"occurredAt"`
	IsCleared    bool           `json:"isCleared"`
	IfIndex      *int           `json:"ifIndex,omitempty" validate:"omitempty,gte=0"`
	MetricName   string         `json:"metricName,omitempty"`
	CurrentValue *float64       `json:"currentValue,omitempty"`
	Threshold    *float64       `json:"threshold,omitempty"`
	Unit         string         `json:"unit,omitempty"`
	DurationSec  *int           `json:"durationSec,omitempty"`
	GroupName    string         `json:"groupName,omitempty"`
	VendorName   string         `json:"vendorName,omitempty"`
	ModelName    string         `json:"modelName,omitempty"`
	Extra        map[string]any `json:"extra,omitempty"`
}

// SubResource returns the interface index or the device-level sentinel.
func (a *Alert) SubResource() int {
	if a.IfIndex == nil {
		return DeviceLevelIfIndex
	}
	return *a.IfIndex
}

// CurrentAlert is the single live row for an active fault, keyed by
// (device_id, fault_type, if_index).
type CurrentAlert struct {
	ID           uint              `gorm:"primaryKey" json:"id"`
	AlertID      string            `gorm:"not null" json:"alertId"`
	DeviceID     int64             `gorm:"not null;uniqueIndex:idx_current_fault_key,priority:1" json:"deviceId"`
	FaultType    string            `gorm:"not null;uniqueIndex:idx_current_fault_key,priority:2" json:"faultType"`
	IfIndex      int               `gorm:"not null;uniqueIndex:idx_current_fault_key,priority:3" json:"ifIndex"`
	AlertType    string            `gorm:"not null" json:"alertType"`
	Category     Category          `gorm:"index" json:"category"`
	Severity     Severity          `gorm:"index" json:"severity"`
	DeviceName   string            `json:"deviceName"`
	DeviceIP     string            `json:"deviceIp"`
	Message      string            `gorm:"type:text" json:"message"`
	MetricName   string            `json:"metricName,omitempty"`
	CurrentValue *float64          `json:"currentValue,omitempty"`
	Threshold    *float64          `json:"threshold,omitempty"`
	Unit         string            `json:"unit,omitempty"`
	DurationSec  *int              `json:"durationSec,omitempty"`
	GroupName    string            `json:"groupName,omitempty"`
	VendorName   string            `json:"vendorName,omitempty"`
	ModelName    string            `json:"modelName,omitempty"`
	Extra        datatypes.JSONMap `json:"extra,omitempty"`
	OccurredAt   time.Time         `gorm:"not null" json:"occurredAt"`
	CreatedAt    time.Time         `json:"createdAt"`
	UpdatedAt    time.Time         `json:"updatedAt"`
}

// AlertHistory is the append-only record of every processed raise and clear.
type AlertHistory struct {
	ID           uint              `gorm:"primaryKey" json:"id"`
	AlertID      string            `gorm:"not null;index" json:"alertId"`
	DeviceID     int64             `gorm:"not null;index" json:"deviceId"`
	AlertType    string            `gorm:"not null" json:"alertType"`
	FaultType    string            `json:"faultType"`
	IfIndex      int               `gorm:"not null" json:"ifIndex"`
	Category     Category          `gorm:"index" json:"category"`
	Severity     Severity          `json:"severity"`
	IsCleared    bool              `gorm:"default:false" json:"isCleared"`
	DeviceName   string            `json:"deviceName"`
	DeviceIP     string            `json:"deviceIp"`
	Message      string            `gorm:"type:text" json:"message"`
	MetricName   string            `json:"metricName,omitempty"`
	CurrentValue *float64          `json:"currentValue,omitempty"`
	Threshold    *float64          `json:"threshold,omitempty"`
	Unit         string            `json:"unit,omitempty"`
	GroupName    string            `json:"groupName,omitempty"`
	Extra        datatypes.JSONMap `json:"extra,omitempty"`
	OccurredAt   time.Time         `gorm:"not null;index" json:"occurredAt"`
	Acknowledged bool              `gorm:"default:false" json:"acknowledged"`
	AckNote      string            `gorm:"type:text" json:"ackNote,omitempty"`
	AckedAt      *time.Time        `json:"ackedAt,omitempty"`
	CreatedAt    time.Time         `json:"createdAt"`
}

// NewCurrentAlert builds the live row for a raise.
func NewCurrentAlert(a *Alert, faultType string) *CurrentAlert {
	return &CurrentAlert{
		AlertID:      a.AlertID,
		DeviceID:     a.DeviceID,
		FaultType:    faultType,
		IfIndex:      a.SubResource(),
		AlertType:    a.AlertType,
		Category:     a.Category,
		Severity:     a.Severity,
		DeviceName:   a.DeviceName,
		DeviceIP:     a.DeviceIP,
		Message:      a.Message,
		MetricName:   a.MetricName,
		CurrentValue: a.CurrentValue,
		Threshold:    a.Threshold,
		Unit:         a.Unit,
		DurationSec:  a.DurationSec,
		GroupName:    a.GroupName,
		VendorName:   a.VendorName,
		ModelName:    a.ModelName,
		Extra:        datatypes.JSONMap(a.Extra),
		OccurredAt:   a.OccurredAt,
	}
}

// NewAlertHistory builds the history row for any processed event.
func NewAlertHistory(a *Alert, faultType string) *AlertHistory {
	return &AlertHistory{
		AlertID:      a.AlertID,
		DeviceID:     a.DeviceID,
		AlertType:    a.AlertType,
		FaultType:    faultType,
		IfIndex:      a.SubResource(),
		Category:     a.Category,
		Severity:     a.Severity,
		IsCleared:    a.IsCleared,
		DeviceName:   a.DeviceName,
		DeviceIP:     a.DeviceIP,
		Message:      a.Message,
		MetricName:   a.MetricName,
		CurrentValue: a.CurrentValue,
		Threshold:    a.Threshold,
		Unit:         a.Unit,
		GroupName:    a.GroupName,
		Extra:        datatypes.JSONMap(a.Extra),
		OccurredAt:   a.OccurredAt,
	}
}
