package services

import (
	"strconv"
	"strings"

	"github.com/ahmetk3436/netwatch/internal/models"
)

const (
	thresholdRaiseType = "THRESHOLD_EXCEEDED"
	thresholdClearType = "THRESHOLD_CLEAR"
)

var clearToRaise = map[string]string{
	"PING_CLEAR": "PING_FAIL",
	"SNMP_CLEAR": "SNMP_FAIL",
	"PORT_UP":    "PORT_DOWN",
}

// FaultType is the type component of a fault key. Threshold raises are keyed
// per metric so that cpu and memory breaches on one device stay distinct.
func FaultType(a *models.Alert) string {
	if a.AlertType == thresholdRaiseType && a.MetricName != "" {
		return thresholdRaiseType + ":" + strings.ToUpper(a.MetricName)
	}
	return a.AlertType
}

// ResolveClearType maps a clear event to the fault type it resolves. The
// second result is false when the clear cannot be tied to a raise type.
func ResolveClearType(a *models.Alert) (string, bool) {
	if raise, ok := clearToRaise[a.AlertType]; ok {
		return raise, true
	}
	if a.AlertType == thresholdClearType {
		if a.MetricName == "" {
			return "", false
		}
		return thresholdRaiseType + ":" + strings.ToUpper(a.MetricName), true
	}
	if base, ok := strings.CutSuffix(a.AlertType, "_CLEAR"); ok && base != "" {
		return base + "_FAIL", true
	}
	return "", false
}

// DedupKey is deviceId:faultType:(ifIndex|device).
func DedupKey(deviceID int64, faultType string, ifIndex int) string {
	sub := "device"
	if ifIndex != models.DeviceLevelIfIndex {
		sub = strconv.Itoa(ifIndex)
	}
	return strconv.FormatInt(deviceID, 10) + ":" + faultType + ":" + sub
}

// InferCategory derives a category from well-known type prefixes.
func InferCategory(alertType string) models.Category {
	switch {
	case strings.HasPrefix(alertType, "PING_"), strings.HasPrefix(alertType, "SNMP_"):
		return models.CategoryConnection
	case strings.HasPrefix(alertType, "PORT_"):
		return models.CategoryPort
	case strings.HasPrefix(alertType, "THRESHOLD_"):
		return models.CategoryPerformance
	}
	return ""
}
