package models

import "time"

type WatchGroup struct {
	ID          uint      `gorm:"primaryKey" json:"id"`
	ParentID    *uint     `gorm:"index" json:"parentId"`
	Name        string    `gorm:"not null" json:"name"`
	IntervalSec int       `gorm:"not null;default:60" json:"intervalSec"`
	Depth       int       `gorm:"not null;default:0" json:"depth"`
	Icon        string    `json:"icon"`
	CreatedAt   time.Time `json:"createdAt"`
	UpdatedAt   time.Time `json:"updatedAt"`
}

type WatchGroupDevice struct {
	GroupID   uint      `gorm:"primaryKey" json:"groupId"`
	DeviceID  int64     `gorm:"primaryKey" json:"deviceId"`
	CreatedAt time.Time `json:"createdAt"`
}

type WatchGroupInterface struct {
	GroupID  uint  `gorm:"primaryKey" json:"groupId"`
	DeviceID int64 `gorm:"primaryKey" json:"deviceId"`
	IfIndex  int   `gorm:"primaryKey" json:"ifIndex"`
}

// DeviceMembership is a device plus the interface indexes watched for it.
type DeviceMembership struct {
	DeviceID  int64 `json:"deviceId" validate:"gt=0"`
	IfIndexes []int `json:"ifIndexes" validate:"dive,gte=0"`
}

// WatchGroupDetail is a group with its devices and their interfaces resolved.
type WatchGroupDetail struct {
	WatchGroup
	Devices []DeviceMembership `json:"devices"`
}
