package services

import (
	"context"
	"strings"
	"time"

	"github.com/ahmetk3436/netwatch/internal/models"
)

// CurrentFilter is shared by the current-fault list and count queries so both
// apply the same predicate.
type CurrentFilter struct {
	Category models.Category
	Severity models.Severity
	DeviceID *int64
}

type HistoryFilter struct {
	Category  models.Category
	DeviceID  *int64
	StartDate *time.Time
	EndDate   *time.Time
}

const (
	defaultPageSize = 20
	maxPageSize     = 200
)

type HistoryPage struct {
	Items []models.AlertHistory `json:"items"`
	Total int64                 `json:"total"`
	Page  int                   `json:"page"`
	Size  int                   `json:"size"`
}

// Summary counts current faults per severity.
type Summary struct {
	Critical int64 `json:"critical"`
	Major    int64 `json:"major"`
	Minor    int64 `json:"minor"`
	Warning  int64 `json:"warning"`
	Info     int64 `json:"info"`
	Total    int64 `json:"total"`
}

type AlertQuery struct {
	faults  FaultStore
	history HistoryStore
	now     func() time.Time
}

func NewAlertQuery(faults FaultStore, history HistoryStore) *AlertQuery {
	return &AlertQuery{faults: faults, history: history, now: time.Now}
}

func normalizeCurrentFilter(f CurrentFilter) (CurrentFilter, error) {
	f.Category = models.Category(strings.ToUpper(strings.TrimSpace(string(f.Category))))
	f.Severity = models.Severity(strings.ToUpper(strings.TrimSpace(string(f.Severity))))
	if f.Category != "" && !f.Category.Valid() {
		return f, validationf("unknown category %q", f.Category)
	}
	if f.Severity != "" && f.Severity.Rank() == 0 {
		return f, validationf("unknown severity %q", f.Severity)
	}
	return f, nil
}

func (q *AlertQuery) ListCurrent(ctx context.Context, f CurrentFilter) ([]models.CurrentAlert, error) {
	f, err := normalizeCurrentFilter(f)
	if err != nil {
		return nil, err
	}
	return q.faults.ListCurrent(ctx, f)
}

func (q *AlertQuery) CountCurrent(ctx context.Context, f CurrentFilter) (int64, error) {
	f, err := normalizeCurrentFilter(f)
	if err != nil {
		return 0, err
	}
	counts, err := q.faults.CountCurrentBySeverity(ctx, f)
	if err != nil {
		return 0, err
	}
	var total int64
	for _, n := range counts {
		total += n
	}
	return total, nil
}

func (q *AlertQuery) ListCurrentByDevice(ctx context.Context, deviceID int64) ([]models.CurrentAlert, error) {
	if deviceID <= 0 {
		return nil, validationf("invalid device id")
	}
	return q.faults.ListCurrent(ctx, CurrentFilter{DeviceID: &deviceID})
}

func (q *AlertQuery) Summary(ctx context.Context, f CurrentFilter) (*Summary, error) {
	f, err := normalizeCurrentFilter(f)
	if err != nil {
		return nil, err
	}
	counts, err := q.faults.CountCurrentBySeverity(ctx, f)
	if err != nil {
		return nil, err
	}
	s := &Summary{
		Critical: counts[models.SeverityCritical],
		Major:    counts[models.SeverityMajor],
		Minor:    counts[models.SeverityMinor],
		Warning:  counts[models.SeverityWarning],
		Info:     counts[models.SeverityInfo],
	}
	for _, n := range counts {
		s.Total += n
	}
	return s, nil
}

func (q *AlertQuery) History(ctx context.Context, f HistoryFilter, page, size int) (*HistoryPage, error) {
	f.Category = models.Category(strings.ToUpper(strings.TrimSpace(string(f.Category))))
	if f.Category != "" && !f.Category.Valid() {
		return nil, validationf("unknown category %q", f.Category)
	}
	if f.StartDate != nil && f.EndDate != nil && f.EndDate.Before(*f.StartDate) {
		return nil, validationf("endDate must not be before startDate")
	}
	if page < 1 {
		page = 1
	}
	if size < 1 {
		size = defaultPageSize
	}
	if size > maxPageSize {
		size = maxPageSize
	}

	items, total, err := q.history.ListHistory(ctx, f, page, size)
	if err != nil {
		return nil, err
	}
	if items == nil {
		items = []models.AlertHistory{}
	}
	return &HistoryPage{Items: items, Total: total, Page: page, Size: size}, nil
}

// Acknowledge attaches an operator note to a history entry.
func (q *AlertQuery) Acknowledge(ctx context.Context, id uint, note string) (*models.AlertHistory, error) {
	row, err := q.history.AcknowledgeHistory(ctx, id, strings.TrimSpace(note), q.now())
	if err != nil {
		if IsNotFound(err) {
			return nil, notFound("alert history", id)
		}
		return nil, err
	}
	return row, nil
}
