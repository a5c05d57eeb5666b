package services

import (
	"context"
	"testing"
	"time"

	"github.com/ahmetk3436/netwatch/internal/models"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func seedFaults(t *testing.T, faults *fakeFaultStore) {
	t.Helper()
	rows := []models.CurrentAlert{
		{DeviceID: 1, FaultType: "PING_FAIL", IfIndex: -1, Category: models.CategoryConnection, Severity: models.SeverityCritical},
		{DeviceID: 1, FaultType: "PORT_DOWN", IfIndex: 2, Category: models.CategoryPort, Severity: models.SeverityMajor},
		{DeviceID: 2, FaultType: "PORT_DOWN", IfIndex: 7, Category: models.CategoryPort, Severity: models.SeverityMajor},
		{DeviceID: 3, FaultType: "THRESHOLD_EXCEEDED:CPU", IfIndex: -1, Category: models.CategoryPerformance, Severity: models.SeverityWarning},
	}
	for i := range rows {
		require.NoError(t, faults.UpsertCurrent(context.Background(), &rows[i]))
	}
}

func TestAlertQuery_SummaryMatchesList(t *testing.T) {
	faults := newFakeFaultStore()
	seedFaults(t, faults)
	q := NewAlertQuery(faults, &fakeHistoryStore{})
	ctx := context.Background()

	sum, err := q.Summary(ctx, CurrentFilter{})
	require.NoError(t, err)
	assert.Equal(t, &Summary{Critical: 1, Major: 2, Warning: 1, Total: 4}, sum)

	filtered, err := q.Summary(ctx, CurrentFilter{Category: "port"})
	require.NoError(t, err)
	list, err := q.ListCurrent(ctx, CurrentFilter{Category: "port"})
	require.NoError(t, err)
	assert.Equal(t, int64(len(list)), filtered.Total)
	assert.Equal(t, int64(2), filtered.Major)

	n, err := q.CountCurrent(ctx, CurrentFilter{Severity: models.SeverityMajor})
	require.NoError(t, err)
	assert.Equal(t, int64(2), n)
}

func TestAlertQuery_RejectsUnknownFilters(t *testing.T) {
	q := NewAlertQuery(newFakeFaultStore(), &fakeHistoryStore{})

	_, err := q.ListCurrent(context.Background(), CurrentFilter{Category: "WEATHER"})
	assert.True(t, IsValidation(err))

	_, err = q.Summary(context.Background(), CurrentFilter{Severity: "LOUD"})
	assert.True(t, IsValidation(err))

	_, err = q.ListCurrentByDevice(context.Background(), 0)
	assert.True(t, IsValidation(err))
}

func TestAlertQuery_ListCurrentByDevice(t *testing.T) {
	faults := newFakeFaultStore()
	seedFaults(t, faults)
	q := NewAlertQuery(faults, &fakeHistoryStore{})

	rows, err := q.ListCurrentByDevice(context.Background(), 1)
	require.NoError(t, err)
	assert.Len(t, rows, 2)
}

func TestAlertQuery_HistoryPaging(t *testing.T) {
	history := &fakeHistoryStore{}
	for i := range 25 {
		require.NoError(t, history.AppendHistory(context.Background(), &models.AlertHistory{
			DeviceID: int64(i%2 + 1),
			Category: models.CategoryConnection,
		}))
	}
	q := NewAlertQuery(newFakeFaultStore(), history)

	page, err := q.History(context.Background(), HistoryFilter{}, 0, 0)
	require.NoError(t, err)
	assert.Equal(t, 1, page.Page)
	assert.Equal(t, defaultPageSize, page.Size)
	assert.Len(t, page.Items, 20)
	assert.Equal(t, int64(25), page.Total)

	_, err = q.History(context.Background(), HistoryFilter{}, 1, 5000)
	require.NoError(t, err)
	assert.Equal(t, maxPageSize, history.lastQuery.size)

	dev := int64(2)
	page, err = q.History(context.Background(), HistoryFilter{DeviceID: &dev}, 2, 10)
	require.NoError(t, err)
	assert.Len(t, page.Items, 2)
	assert.Equal(t, int64(12), page.Total)

	page, err = q.History(context.Background(), HistoryFilter{Category: models.CategoryPort}, 1, 10)
	require.NoError(t, err)
	assert.NotNil(t, page.Items)
	assert.Empty(t, page.Items)
}

func TestAlertQuery_HistoryRejectsInvertedRange(t *testing.T) {
	q := NewAlertQuery(newFakeFaultStore(), &fakeHistoryStore{})
	start := time.Date(2026, 5, 2, 0, 0, 0, 0, time.UTC)
	end := start.Add(-time.Hour)

	_, err := q.History(context.Background(), HistoryFilter{StartDate: &start, EndDate: &end}, 1, 20)
	assert.True(t, IsValidation(err))
}

func TestAlertQuery_Acknowledge(t *testing.T) {
	history := &fakeHistoryStore{}
	require.NoError(t, history.AppendHistory(context.Background(), &models.AlertHistory{DeviceID: 1}))
	q := NewAlertQuery(newFakeFaultStore(), history)
	at := time.Date(2026, 5, 2, 10, 0, 0, 0, time.UTC)
	q.now = func() time.Time { return at }

	row, err := q.Acknowledge(context.Background(), 1, "  cable replaced ")
	require.NoError(t, err)
	assert.True(t, row.Acknowledged)
	assert.Equal(t, "cable replaced", row.AckNote)
	assert.Equal(t, at, *row.AckedAt)

	_, err = q.Acknowledge(context.Background(), 99, "")
	require.Error(t, err)
	assert.True(t, IsNotFound(err))
	assert.EqualError(t, err, "alert history 99 not found")
}
