package services

import (
	"context"
	"log/slog"
	"strings"
	"time"

	"github.com/ahmetk3436/netwatch/internal/dedup"
	"github.com/ahmetk3436/netwatch/internal/models"
	"github.com/google/uuid"
)

// FaultStore holds one live row per active fault key.
type FaultStore interface {
	UpsertCurrent(ctx context.Context, row *models.CurrentAlert) error
	DeleteCurrent(ctx context.Context, deviceID int64, faultType string, ifIndex int) (int64, error)
	ListCurrent(ctx context.Context, f CurrentFilter) ([]models.CurrentAlert, error)
	CountCurrentBySeverity(ctx context.Context, f CurrentFilter) (map[models.Severity]int64, error)
}

// HistoryStore is the append-only event log.
type HistoryStore interface {
	AppendHistory(ctx context.Context, row *models.AlertHistory) error
	ListHistory(ctx context.Context, f HistoryFilter, page, size int) ([]models.AlertHistory, int64, error)
	AcknowledgeHistory(ctx context.Context, id uint, note string, at time.Time) (*models.AlertHistory, error)
}

// Publisher fans an alert out to subscribers without blocking.
type Publisher interface {
	Publish(a *models.Alert) bool
}

type ReconcileAction string

const (
	ReconcileNone       ReconcileAction = "none"
	ReconcileUpserted   ReconcileAction = "upserted"
	ReconcileCleared    ReconcileAction = "cleared"
	ReconcileUnresolved ReconcileAction = "unresolved"
)

// ProcessResult describes what happened to one alert. The *Err fields carry
// failures that were logged and tolerated; they never abort ingestion.
type ProcessResult struct {
	AlertID     string          `json:"alertId"`
	AlertType   string          `json:"alertType"`
	FaultType   string          `json:"faultType,omitempty"`
	DedupKey    string          `json:"dedupKey,omitempty"`
	Suppressed  bool            `json:"suppressed"`
	Reconcile   ReconcileAction `json:"reconcile"`
	ClearedRows int64           `json:"clearedRows"`
	Broadcast   bool            `json:"broadcast"`

	DedupErr     error `json:"-"`
	HistoryErr   error `json:"-"`
	ReconcileErr error `json:"-"`
}

// Degraded reports whether any best-effort step failed.
func (r *ProcessResult) Degraded() bool {
	return r.DedupErr != nil || r.HistoryErr != nil || r.ReconcileErr != nil
}

// Warnings lists the tolerated failures in a caller-safe form.
func (r *ProcessResult) Warnings() []string {
	var out []string
	if r.DedupErr != nil {
		out = append(out, "dedup check unavailable")
	}
	if r.HistoryErr != nil {
		out = append(out, "history write failed")
	}
	if r.ReconcileErr != nil {
		out = append(out, "current fault update failed")
	}
	if r.Reconcile == ReconcileUnresolved {
		out = append(out, "clear type could not be matched to a fault")
	}
	return out
}

// AlertEngine runs the raise/clear pipeline: dedup, history, current-fault
// reconciliation and broadcast.
type AlertEngine struct {
	dedup     dedup.Cache
	faults    FaultStore
	history   HistoryStore
	publisher Publisher
	now       func() time.Time
}

func NewAlertEngine(cache dedup.Cache, faults FaultStore, history HistoryStore, publisher Publisher) *AlertEngine {
	return &AlertEngine{
		dedup:     cache,
		faults:    faults,
		history:   history,
		publisher: publisher,
		now:       time.Now,
	}
}

// Process ingests one alert. Only validation failures are returned as errors.
// Once validated the pipeline runs to completion even if ctx is cancelled, so
// current-fault state is never left half reconciled.
func (e *AlertEngine) Process(ctx context.Context, in *models.Alert) (*ProcessResult, error) {
	if in == nil {
		return nil, validationf("alert body is required")
	}
	a := *in
	e.normalize(&a)
	if err := validateStruct(&a); err != nil {
		return nil, err
	}

	ctx = context.WithoutCancel(ctx)
	res := &ProcessResult{AlertID: a.AlertID, AlertType: a.AlertType, Reconcile: ReconcileNone}
	if a.IsCleared {
		e.processClear(ctx, &a, res)
	} else {
		e.processRaise(ctx, &a, res)
	}
	return res, nil
}

// BatchItem is the per-element outcome of ProcessBatch.
type BatchItem struct {
	Index  int            `json:"index"`
	Result *ProcessResult `json:"result,omitempty"`
	Error  string         `json:"error,omitempty"`
}

// ProcessBatch processes alerts sequentially; a rejected element does not
// stop the rest.
func (e *AlertEngine) ProcessBatch(ctx context.Context, alerts []models.Alert) []BatchItem {
	items := make([]BatchItem, 0, len(alerts))
	for i := range alerts {
		res, err := e.Process(ctx, &alerts[i])
		item := BatchItem{Index: i, Result: res}
		if err != nil {
			item.Error = err.Error()
		}
		items = append(items, item)
	}
	return items
}

func (e *AlertEngine) normalize(a *models.Alert) {
	a.AlertType = strings.ToUpper(strings.TrimSpace(a.AlertType))
	a.Category = models.Category(strings.ToUpper(strings.TrimSpace(string(a.Category))))
	a.Severity = models.Severity(strings.ToUpper(strings.TrimSpace(string(a.Severity))))
	a.MetricName = strings.TrimSpace(a.MetricName)

	if a.AlertID == "" {
		a.AlertID = uuid.NewString()
	}
	if a.OccurredAt.IsZero() {
		a.OccurredAt = e.now()
	}
	if a.Category == "" {
		a.Category = InferCategory(a.AlertType)
	}
	if a.Severity == "" && !a.IsCleared {
		a.Severity = models.SeverityInfo
	}
}

func (e *AlertEngine) processRaise(ctx context.Context, a *models.Alert, res *ProcessResult) {
	res.FaultType = FaultType(a)
	res.DedupKey = DedupKey(a.DeviceID, res.FaultType, a.SubResource())

	claimed, err := e.dedup.Claim(ctx, res.DedupKey)
	if err != nil {
		// fail open: a duplicate is better than a lost fault
		res.DedupErr = err
		claimed = true
		slog.Warn("Dedup check failed, processing alert", "dedup_key", res.DedupKey, "error", err)
	}
	if !claimed {
		res.Suppressed = true
		slog.Debug("Alert suppressed by dedup", "dedup_key", res.DedupKey, "alert_id", a.AlertID)
		return
	}

	e.appendHistory(ctx, a, res)

	if err := e.faults.UpsertCurrent(ctx, models.NewCurrentAlert(a, res.FaultType)); err != nil {
		res.ReconcileErr = err
		slog.Error("Failed to upsert current fault", "dedup_key", res.DedupKey, "error", err)
	} else {
		res.Reconcile = ReconcileUpserted
	}

	e.broadcast(a, res)
}

// processClear bypasses dedup so a clear always reaches the current-fault store.
func (e *AlertEngine) processClear(ctx context.Context, a *models.Alert, res *ProcessResult) {
	raiseType, ok := ResolveClearType(a)
	if ok {
		res.FaultType = raiseType
		res.DedupKey = DedupKey(a.DeviceID, raiseType, a.SubResource())
	}

	e.appendHistory(ctx, a, res)

	if !ok {
		res.Reconcile = ReconcileUnresolved
		slog.Warn("Clear alert has no matching raise type",
			"alert_type", a.AlertType,
			"device_id", a.DeviceID,
			"metric_name", a.MetricName,
		)
	} else {
		n, err := e.faults.DeleteCurrent(ctx, a.DeviceID, raiseType, a.SubResource())
		if err != nil {
			res.ReconcileErr = err
			slog.Error("Failed to delete current fault", "dedup_key", res.DedupKey, "error", err)
		} else {
			res.Reconcile = ReconcileCleared
			res.ClearedRows = n
		}
	}

	e.broadcast(a, res)
}

func (e *AlertEngine) appendHistory(ctx context.Context, a *models.Alert, res *ProcessResult) {
	if err := e.history.AppendHistory(ctx, models.NewAlertHistory(a, res.FaultType)); err != nil {
		res.HistoryErr = err
		slog.Error("Failed to append alert history", "alert_id", a.AlertID, "error", err)
	}
}

func (e *AlertEngine) broadcast(a *models.Alert, res *ProcessResult) {
	if e.publisher == nil {
		return
	}
	res.Broadcast = e.publisher.Publish(a)
}
