package services

import (
	"context"
	"errors"
	"slices"
	"sort"
	"sync"
	"time"

	"github.com/ahmetk3436/netwatch/internal/collector"
	"github.com/ahmetk3436/netwatch/internal/models"
)

var errStoreDown = errors.New("store unavailable")

type faultKey struct {
	deviceID  int64
	faultType string
	ifIndex   int
}

type fakeFaultStore struct {
	mu        sync.Mutex
	rows      map[faultKey]models.CurrentAlert
	upsertErr error
	deleteErr error
	upserts   int
}

func newFakeFaultStore() *fakeFaultStore {
	return &fakeFaultStore{rows: make(map[faultKey]models.CurrentAlert)}
}

func (f *fakeFaultStore) UpsertCurrent(_ context.Context, row *models.CurrentAlert) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.upsertErr != nil {
		return f.upsertErr
	}
	f.upserts++
	f.rows[faultKey{row.DeviceID, row.FaultType, row.IfIndex}] = *row
	return nil
}

func (f *fakeFaultStore) DeleteCurrent(_ context.Context, deviceID int64, faultType string, ifIndex int) (int64, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.deleteErr != nil {
		return 0, f.deleteErr
	}
	k := faultKey{deviceID, faultType, ifIndex}
	if _, ok := f.rows[k]; !ok {
		return 0, nil
	}
	delete(f.rows, k)
	return 1, nil
}

func (f *fakeFaultStore) matches(row models.CurrentAlert, flt CurrentFilter) bool {
	if flt.Category != "" && row.Category != flt.Category {
		return false
	}
	if flt.Severity != "" && row.Severity != flt.Severity {
		return false
	}
	if flt.DeviceID != nil && row.DeviceID != *flt.DeviceID {
		return false
	}
	return true
}

func (f *fakeFaultStore) ListCurrent(_ context.Context, flt CurrentFilter) ([]models.CurrentAlert, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	var out []models.CurrentAlert
	for _, row := range f.rows {
		if f.matches(row, flt) {
			out = append(out, row)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].OccurredAt.After(out[j].OccurredAt) })
	return out, nil
}

func (f *fakeFaultStore) CountCurrentBySeverity(_ context.Context, flt CurrentFilter) (map[models.Severity]int64, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	counts := make(map[models.Severity]int64)
	for _, row := range f.rows {
		if f.matches(row, flt) {
			counts[row.Severity]++
		}
	}
	return counts, nil
}

func (f *fakeFaultStore) len() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return len(f.rows)
}

type fakeHistoryStore struct {
	mu        sync.Mutex
	rows      []models.AlertHistory
	appendErr error
	lastQuery struct {
		filter     HistoryFilter
		page, size int
	}
}

func (h *fakeHistoryStore) AppendHistory(_ context.Context, row *models.AlertHistory) error {
	h.mu.Lock()
	defer h.mu.Unlock()
	if h.appendErr != nil {
		return h.appendErr
	}
	row.ID = uint(len(h.rows) + 1)
	h.rows = append(h.rows, *row)
	return nil
}

func (h *fakeHistoryStore) ListHistory(_ context.Context, f HistoryFilter, page, size int) ([]models.AlertHistory, int64, error) {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.lastQuery.filter, h.lastQuery.page, h.lastQuery.size = f, page, size
	var matched []models.AlertHistory
	for _, r := range h.rows {
		if f.Category != "" && r.Category != f.Category {
			continue
		}
		if f.DeviceID != nil && r.DeviceID != *f.DeviceID {
			continue
		}
		matched = append(matched, r)
	}
	start := min((page-1)*size, len(matched))
	end := min(start+size, len(matched))
	return matched[start:end], int64(len(matched)), nil
}

func (h *fakeHistoryStore) AcknowledgeHistory(_ context.Context, id uint, note string, at time.Time) (*models.AlertHistory, error) {
	h.mu.Lock()
	defer h.mu.Unlock()
	for i := range h.rows {
		if h.rows[i].ID == id {
			h.rows[i].Acknowledged = true
			h.rows[i].AckNote = note
			h.rows[i].AckedAt = &at
			row := h.rows[i]
			return &row, nil
		}
	}
	return nil, ErrNotFound
}

func (h *fakeHistoryStore) snapshot() []models.AlertHistory {
	h.mu.Lock()
	defer h.mu.Unlock()
	return slices.Clone(h.rows)
}

type fakePublisher struct {
	mu     sync.Mutex
	alerts []models.Alert
}

func (p *fakePublisher) Publish(a *models.Alert) bool {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.alerts = append(p.alerts, *a)
	return true
}

func (p *fakePublisher) published() []models.Alert {
	p.mu.Lock()
	defer p.mu.Unlock()
	return slices.Clone(p.alerts)
}

type failingCache struct{}

func (failingCache) Claim(context.Context, string) (bool, error) {
	return false, errors.New("redis: connection refused")
}

func (failingCache) Close() error { return nil }

// fakeGroupStore keeps the tree in memory and mirrors the transactional
// behaviour of the gorm store.
type fakeGroupStore struct {
	mu      sync.Mutex
	nextID  uint
	groups  map[uint]models.WatchGroup
	members map[uint][]models.DeviceMembership
	moveErr error
}

func newFakeGroupStore() *fakeGroupStore {
	return &fakeGroupStore{
		groups:  make(map[uint]models.WatchGroup),
		members: make(map[uint][]models.DeviceMembership),
	}
}

func (s *fakeGroupStore) CreateGroup(_ context.Context, g *models.WatchGroup) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.nextID++
	g.ID = s.nextID
	s.groups[g.ID] = *g
	return nil
}

func (s *fakeGroupStore) GetGroup(_ context.Context, id uint) (*models.WatchGroup, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	g, ok := s.groups[id]
	if !ok {
		return nil, ErrNotFound
	}
	return &g, nil
}

func (s *fakeGroupStore) ListGroups(context.Context) ([]models.WatchGroup, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([]models.WatchGroup, 0, len(s.groups))
	for _, g := range s.groups {
		out = append(out, g)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out, nil
}

func (s *fakeGroupStore) ChildGroups(_ context.Context, parentID uint) ([]models.WatchGroup, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	var out []models.WatchGroup
	for _, g := range s.groups {
		if g.ParentID != nil && *g.ParentID == parentID {
			out = append(out, g)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out, nil
}

func (s *fakeGroupStore) UpdateGroup(_ context.Context, g *models.WatchGroup) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.groups[g.ID]; !ok {
		return ErrNotFound
	}
	s.groups[g.ID] = *g
	return nil
}

func (s *fakeGroupStore) ApplyMove(_ context.Context, g *models.WatchGroup, depths map[uint]int) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.moveErr != nil {
		return s.moveErr
	}
	s.groups[g.ID] = *g
	for id, d := range depths {
		child := s.groups[id]
		child.Depth = d
		s.groups[id] = child
	}
	return nil
}

func (s *fakeGroupStore) DeleteGroup(_ context.Context, id uint) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.groups[id]; !ok {
		return ErrNotFound
	}
	delete(s.members, id)
	delete(s.groups, id)
	return nil
}

func (s *fakeGroupStore) GroupMembers(_ context.Context, id uint) ([]models.DeviceMembership, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return slices.Clone(s.members[id]), nil
}

func (s *fakeGroupStore) ReplaceMembers(_ context.Context, id uint, members []models.DeviceMembership) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.members[id] = slices.Clone(members)
	return nil
}

func (s *fakeGroupStore) depthOf(id uint) int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.groups[id].Depth
}

// checkDepths verifies depth == parent depth + 1 for every group.
func (s *fakeGroupStore) checkDepths() []uint {
	s.mu.Lock()
	defer s.mu.Unlock()
	var bad []uint
	for id, g := range s.groups {
		want := 0
		if g.ParentID != nil {
			want = s.groups[*g.ParentID].Depth + 1
		}
		if g.Depth != want {
			bad = append(bad, id)
		}
	}
	return bad
}

type fakeCollector struct {
	mu         sync.Mutex
	starts     []collector.StartRequest
	stops      []uint
	heartbeats []uint
	err        error
}

func (c *fakeCollector) Start(_ context.Context, req collector.StartRequest) (*collector.Response, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.starts = append(c.starts, req)
	if c.err != nil {
		return nil, c.err
	}
	return &collector.Response{Success: true, Message: "started"}, nil
}

func (c *fakeCollector) Stop(_ context.Context, groupID uint) (*collector.Response, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.stops = append(c.stops, groupID)
	if c.err != nil {
		return nil, c.err
	}
	return &collector.Response{Success: true}, nil
}

func (c *fakeCollector) Heartbeat(_ context.Context, groupID uint) (*collector.Response, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.heartbeats = append(c.heartbeats, groupID)
	if c.err != nil {
		return nil, c.err
	}
	return &collector.Response{Success: true}, nil
}

func (c *fakeCollector) heartbeatCount() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return len(c.heartbeats)
}

type fakeStopper struct {
	err   error
	calls []uint
}

func (s *fakeStopper) StopCollection(_ context.Context, groupID uint) error {
	s.calls = append(s.calls, groupID)
	return s.err
}
