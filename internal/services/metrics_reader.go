package services

import (
	"context"
	"errors"
	"fmt"
	"log/slog"

	"github.com/ahmetk3436/netwatch/internal/models"
	"github.com/bytedance/sonic"
	"github.com/go-redis/redis/v8"
)

const defaultHistoryLimit = 60

func LatestKey(groupID uint) string {
	return fmt.Sprintf("metrics:latest:%d", groupID)
}

func HistoryKey(groupID uint, deviceID int64) string {
	return fmt.Sprintf("metrics:history:%d:%d", groupID, deviceID)
}

// MetricsReader reads the snapshots the external collector writes to redis.
// It never writes.
type MetricsReader struct {
	rdb   redis.UniversalClient
	limit int
}

func NewMetricsReader(rdb redis.UniversalClient, historyLimit int) *MetricsReader {
	if historyLimit <= 0 {
		historyLimit = defaultHistoryLimit
	}
	return &MetricsReader{rdb: rdb, limit: historyLimit}
}

// Latest returns the newest snapshot for a group, or nil when the collector
// has not written one yet.
func (r *MetricsReader) Latest(ctx context.Context, groupID uint) (*models.MetricsSnapshot, error) {
	raw, err := r.rdb.Get(ctx, LatestKey(groupID)).Bytes()
	if err != nil {
		if errors.Is(err, redis.Nil) {
			return nil, nil
		}
		return nil, fmt.Errorf("read latest metrics for group %d: %w", groupID, err)
	}

	var snap models.MetricsSnapshot
	if err := sonic.Unmarshal(raw, &snap); err != nil {
		return nil, fmt.Errorf("decode latest metrics for group %d: %w", groupID, err)
	}
	if snap.GroupID == 0 {
		snap.GroupID = groupID
	}
	if snap.Devices == nil {
		snap.Devices = []models.DeviceMetrics{}
	}
	return &snap, nil
}

// History returns up to limit entries for one device, newest first. A missing
// list yields an empty slice.
func (r *MetricsReader) History(ctx context.Context, groupID uint, deviceID int64) ([]models.MetricsHistoryEntry, error) {
	key := HistoryKey(groupID, deviceID)
	raws, err := r.rdb.LRange(ctx, key, 0, int64(r.limit-1)).Result()
	if err != nil && !errors.Is(err, redis.Nil) {
		return nil, fmt.Errorf("read metrics history %s: %w", key, err)
	}

	out := make([]models.MetricsHistoryEntry, 0, len(raws))
	for i, raw := range raws {
		var e models.MetricsHistoryEntry
		if err := sonic.Unmarshal([]byte(raw), &e); err != nil {
			slog.Warn("Skipping undecodable metrics history entry", "key", key, "index", i, "error", err)
			continue
		}
		out = append(out, e)
	}
	return out, nil
}
