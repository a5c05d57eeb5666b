package services

import (
	"context"
	"testing"

	"github.com/alicebob/miniredis/v2"
	"github.com/go-redis/redis/v8"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newMetricsReader(t *testing.T, limit int) (*MetricsReader, *miniredis.Miniredis) {
	t.Helper()
	mr := miniredis.RunT(t)
	rdb := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { _ = rdb.Close() })
	return NewMetricsReader(rdb, limit), mr
}

func TestMetricsReader_LatestMissingIsNotAnError(t *testing.T) {
	r, _ := newMetricsReader(t, 60)

	snap, err := r.Latest(context.Background(), 3)
	require.NoError(t, err)
	assert.Nil(t, snap)
}

func TestMetricsReader_Latest(t *testing.T) {
	r, mr := newMetricsReader(t, 60)
	require.NoError(t, mr.Set(LatestKey(3), `{
		"groupId": 3,
		"timestamp": "2026-05-01T10:00:00Z",
		"devices": [{
			"deviceId": 12, "reachable": true, "latencyMs": 1.5, "cpuUsage": 40,
			"interfaces": [{"ifIndex": 1, "name": "ge-0/0/1", "inBps": 1000, "outBps": 250, "operStatus": "up"}]
		}]
	}`))

	snap, err := r.Latest(context.Background(), 3)
	require.NoError(t, err)
	require.NotNil(t, snap)
	assert.Equal(t, uint(3), snap.GroupID)
	require.Len(t, snap.Devices, 1)
	dev := snap.Devices[0]
	assert.Equal(t, int64(12), dev.DeviceID)
	assert.True(t, dev.Reachable)
	require.NotNil(t, dev.CPUUsage)
	assert.InDelta(t, 40.0, *dev.CPUUsage, 0.001)
	assert.Nil(t, dev.MemoryUsage)
	require.Len(t, dev.Interfaces, 1)
	assert.Equal(t, "ge-0/0/1", dev.Interfaces[0].Name)
}

func TestMetricsReader_LatestCorruptValue(t *testing.T) {
	r, mr := newMetricsReader(t, 60)
	require.NoError(t, mr.Set(LatestKey(3), "not json"))

	_, err := r.Latest(context.Background(), 3)
	assert.Error(t, err)
}

func TestMetricsReader_HistoryEmpty(t *testing.T) {
	r, _ := newMetricsReader(t, 60)

	entries, err := r.History(context.Background(), 3, 12)
	require.NoError(t, err)
	assert.NotNil(t, entries)
	assert.Empty(t, entries)
}

func TestMetricsReader_HistoryBoundedAndSkipsBadEntries(t *testing.T) {
	r, mr := newMetricsReader(t, 3)
	key := HistoryKey(3, 12)
	// collector LPUSHes, so the head is the newest entry
	_, err := mr.Lpush(key, `{"timestamp":"2026-05-01T10:00:00Z","deviceId":12,"cpuUsage":10}`)
	require.NoError(t, err)
	_, err = mr.Lpush(key, `{"timestamp":"2026-05-01T10:01:00Z","deviceId":12,"cpuUsage":20}`)
	require.NoError(t, err)
	_, err = mr.Lpush(key, `garbage`)
	require.NoError(t, err)
	_, err = mr.Lpush(key, `{"timestamp":"2026-05-01T10:03:00Z","deviceId":12,"cpuUsage":40}`)
	require.NoError(t, err)

	entries, err := r.History(context.Background(), 3, 12)
	require.NoError(t, err)
	require.Len(t, entries, 2, "limit applies before decoding")
	assert.InDelta(t, 40.0, *entries[0].CPUUsage, 0.001)
	assert.InDelta(t, 20.0, *entries[1].CPUUsage, 0.001)
	assert.Equal(t, int64(12), entries[0].DeviceID)
}

func TestMetricsReader_StoreDown(t *testing.T) {
	r, mr := newMetricsReader(t, 60)
	mr.Close()

	_, err := r.Latest(context.Background(), 1)
	assert.Error(t, err)
	_, err = r.History(context.Background(), 1, 1)
	assert.Error(t, err)
}

func TestMetricsKeys(t *testing.T) {
	assert.Equal(t, "metrics:latest:7", LatestKey(7))
	assert.Equal(t, "metrics:history:7:42", HistoryKey(7, 42))
}
