package models

import "time"

// MetricsSnapshot is the latest collector output for a watch group, stored
// by the collector under metrics:latest:{groupId}.
type MetricsSnapshot struct {
	GroupID   uint            `json:"groupId"`
	Timestamp time.Time       `json:"timestamp"`
	Devices   []DeviceMetrics `json:"devices"`
}

type DeviceMetrics struct {
	DeviceID    int64              `json:"deviceId"`
	DeviceName  string             `json:"deviceName,omitempty"`
	Reachable   bool               `json:"reachable"`
	LatencyMs   *float64           `json:"latencyMs,omitempty"`
	CPUUsage    *float64           `json:"cpuUsage,omitempty"`
	MemoryUsage *float64           `json:"memoryUsage,omitempty"`
	Interfaces  []InterfaceMetrics `json:"interfaces,omitempty"`
}

type InterfaceMetrics struct {
	IfIndex    int     `json:"ifIndex"`
	Name       string  `json:"name,omitempty"`
	InBps      float64 `json:"inBps"`
	OutBps     float64 `json:"outBps"`
	OperStatus string  `json:"operStatus,omitempty"`
}

// MetricsHistoryEntry is one element of metrics:history:{groupId}:{deviceId}.
type MetricsHistoryEntry struct {
	Timestamp time.Time `json:"timestamp"`
	DeviceMetrics
}
