package alerts

import (
	"context"
	"errors"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/linnemanlabs/go-core/log"
)

// mockStore implements Store and CustomerLookup for testing.
type mockStore struct {
	mu        sync.Mutex
	alerts    map[string]*Alert
	order     []string
	audit     []AuditEntry
	notes     []Note
	customers map[string]string
	auditSeq  int64

	getErr   error
	applyErr error

	// failApplyFor makes ApplyTransition fail for one alert id.
	failApplyFor string
}

func newMockStore() *mockStore {
	return &mockStore{
		alerts:    make(map[string]*Alert),
		customers: make(map[string]string),
	}
}

func (m *mockStore) put(a Alert) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if _, ok := m.alerts[a.ID]; !ok {
		m.order = append(m.order, a.ID)
	}
	cp := a
	m.alerts[a.ID] = &cp
}

func (m *mockStore) GetAlert(_ context.Context, id string) (*Alert, bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.getErr != nil {
		return nil, false, m.getErr
	}
	a, ok := m.alerts[id]
	if !ok {
		return nil, false, nil
	}
	cp := *a
	return &cp, true, nil
}

func (m *mockStore) GetAlertByCode(_ context.Context, code string) (*Alert, bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, a := range m.alerts {
		if a.Code == code {
			cp := *a
			return &cp, true, nil
		}
	}
	return nil, false, nil
}

func (m *mockStore) ListAlerts(_ context.Context, f Filter, s Sort, offset, limit int) ([]Alert, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	var out []Alert
	for _, id := range m.order {
		if f.Match(m.alerts[id]) {
			out = append(out, *m.alerts[id])
		}
	}
	SortAlerts(out, s)
	if offset >= len(out) {
		return []Alert{}, nil
	}
	out = out[offset:]
	if limit > 0 && len(out) > limit {
		out = out[:limit]
	}
	return out, nil
}

func (m *mockStore) CountAlerts(_ context.Context, f Filter) (int, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	n := 0
	for _, a := range m.alerts {
		if f.Match(a) {
			n++
		}
	}
	return n, nil
}

func (m *mockStore) PutAlert(_ context.Context, a *Alert) error {
	m.put(*a)
	return nil
}

func (m *mockStore) ApplyTransition(_ context.Context, a *Alert, e *AuditEntry) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.applyErr != nil {
		return m.applyErr
	}
	if m.failApplyFor != "" && a.ID == m.failApplyFor {
		return errors.New("apply failed")
	}
	cp := *a
	if _, ok := m.alerts[a.ID]; !ok {
		m.order = append(m.order, a.ID)
	}
	m.alerts[a.ID] = &cp
	m.auditSeq++
	e.ID = m.auditSeq
	m.audit = append(m.audit, *e)
	return nil
}

func (m *mockStore) AuditTrail(_ context.Context, alertID, action string) ([]AuditEntry, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	var out []AuditEntry
	for i := len(m.audit) - 1; i >= 0; i-- {
		e := m.audit[i]
		if e.AlertID != alertID {
			continue
		}
		if action != "" && e.Action != action {
			continue
		}
		out = append(out, e)
	}
	return out, nil
}

func (m *mockStore) AddNote(_ context.Context, n *Note) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.notes = append(m.notes, *n)
	return nil
}

func (m *mockStore) Notes(_ context.Context, alertID string) ([]Note, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	var out []Note
	for i := len(m.notes) - 1; i >= 0; i-- {
		if m.notes[i].AlertID == alertID {
			out = append(out, m.notes[i])
		}
	}
	return out, nil
}

func (m *mockStore) RiskCategory(_ context.Context, customerID string) (string, bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	cat, ok := m.customers[customerID]
	return cat, ok, nil
}

// mockNotifier records escalation notifications.
type mockNotifier struct {
	mu     sync.Mutex
	codes  []string
	retErr error
}

func (m *mockNotifier) Escalated(_ context.Context, a *Alert, _ string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.codes = append(m.codes, a.Code)
	return m.retErr
}

func newTestService(store *mockStore) *Service {
	return NewService(store, store, log.Nop(), nil, nil)
}

func TestList_TotalCountsBeforeWindow(t *testing.T) {
	t.Parallel()

	store := newMockStore()
	for i, id := range []string{"a", "b", "c", "d", "e"} {
		store.put(Alert{ID: id, Status: StatusNew, RiskScore: 10 * i, TriggeredAt: time.Now().Add(time.Duration(i) * time.Hour)})
	}
	svc := newTestService(store)

	page, err := svc.List(context.Background(), Query{Offset: 0, Limit: 2})
	if err != nil {
		t.Fatalf("List: %v", err)
	}
	if page.Total != 5 {
		t.Errorf("Total = %d, want 5", page.Total)
	}
	if len(page.Alerts) != 2 {
		t.Errorf("len(Alerts) = %d, want 2", len(page.Alerts))
	}
}

func TestList_EmptyQueueReturnsEmptySlice(t *testing.T) {
	t.Parallel()

	svc := newTestService(newMockStore())
	page, err := svc.List(context.Background(), Query{})
	if err != nil {
		t.Fatalf("List: %v", err)
	}
	if page.Alerts == nil {
		t.Error("Alerts = nil, want empty slice")
	}
	if page.Total != 0 {
		t.Errorf("Total = %d, want 0", page.Total)
	}
}

func TestGet_NotFound(t *testing.T) {
	t.Parallel()

	svc := newTestService(newMockStore())
	if _, err := svc.Get(context.Background(), "nope"); !errors.Is(err, ErrNotFound) {
		t.Errorf("Get error = %v, want ErrNotFound", err)
	}
	if _, err := svc.GetByCode(context.Background(), "Z9"); !errors.Is(err, ErrNotFound) {
		t.Errorf("GetByCode error = %v, want ErrNotFound", err)
	}
}

func TestGetByCode(t *testing.T) {
	t.Parallel()

	store := newMockStore()
	store.put(Alert{ID: "a-1", Code: "S1", Status: StatusNew})
	svc := newTestService(store)

	a, err := svc.GetByCode(context.Background(), "S1")
	if err != nil {
		t.Fatalf("GetByCode: %v", err)
	}
	if a.ID != "a-1" {
		t.Errorf("ID = %q, want a-1", a.ID)
	}
}

func TestStats(t *testing.T) {
	t.Parallel()

	store := newMockStore()
	jsmith := "jsmith"
	store.put(Alert{ID: "a1", Status: StatusNew, RiskScore: 80})
	store.put(Alert{ID: "a2", Status: StatusInProgress, RiskScore: 50, AssignedAnalyst: &jsmith})
	store.put(Alert{ID: "a3", Status: StatusReview, RiskScore: 72})
	store.put(Alert{ID: "a4", Status: StatusEscalated, RiskScore: 65, AssignedAnalyst: &jsmith})
	store.put(Alert{ID: "a5", Status: StatusClosed, RiskScore: 90, AssignedAnalyst: &jsmith})
	store.put(Alert{ID: "a6", Status: StatusClosed, RiskScore: 30}) // unassigned but closed

	svc := newTestService(store)
	st, err := svc.Stats(context.Background())
	if err != nil {
		t.Fatalf("Stats: %v", err)
	}

	want := Stats{TotalAlerts: 6, OpenAlerts: 4, HighRiskCount: 3, ClosedCount: 2, UnassignedCount: 2}
	if *st != want {
		t.Errorf("Stats = %+v, want %+v", *st, want)
	}
}

func TestStats_HighRiskThresholdInclusive(t *testing.T) {
	t.Parallel()

	store := newMockStore()
	store.put(Alert{ID: "at", Status: StatusNew, RiskScore: 70})
	store.put(Alert{ID: "below", Status: StatusNew, RiskScore: 69})

	svc := newTestService(store)
	st, err := svc.Stats(context.Background())
	if err != nil {
		t.Fatalf("Stats: %v", err)
	}
	if st.HighRiskCount != 1 {
		t.Errorf("HighRiskCount = %d, want 1 (score 70 counts, 69 does not)", st.HighRiskCount)
	}
}

func TestUpdateStatus_CloseSetsResolutionAndClosedAt(t *testing.T) {
	t.Parallel()

	store := newMockStore()
	store.put(Alert{ID: "a-1", Code: "S1", Status: StatusReview})
	svc := newTestService(store)
	fixed := time.Date(2025, 11, 10, 12, 0, 0, 0, time.UTC)
	svc.now = func() time.Time { return fixed }

	res := "false_positive"
	a, err := svc.UpdateStatus(context.Background(), "a-1", TransitionRequest{
		Status:     StatusClosed,
		Analyst:    "jsmith",
		Rationale:  "pattern matches payroll runs",
		Resolution: &res,
	})
	if err != nil {
		t.Fatalf("UpdateStatus: %v", err)
	}

	if a.Status != StatusClosed {
		t.Errorf("Status = %q, want Closed", a.Status)
	}
	if a.Resolution == nil || *a.Resolution != "false_positive" {
		t.Errorf("Resolution = %v, want false_positive", a.Resolution)
	}
	if a.ClosedAt == nil || !a.ClosedAt.Equal(fixed) {
		t.Errorf("ClosedAt = %v, want %v", a.ClosedAt, fixed)
	}
	if a.AssignedAnalyst == nil || *a.AssignedAnalyst != "jsmith" {
		t.Errorf("AssignedAnalyst = %v, want jsmith", a.AssignedAnalyst)
	}
}

func TestUpdateStatus_CloseWithoutResolutionLeavesFieldsUnset(t *testing.T) {
	t.Parallel()

	store := newMockStore()
	store.put(Alert{ID: "a-1", Status: StatusReview})
	svc := newTestService(store)

	a, err := svc.UpdateStatus(context.Background(), "a-1", TransitionRequest{
		Status:  StatusClosed,
		Analyst: "jsmith",
	})
	if err != nil {
		t.Fatalf("UpdateStatus: %v", err)
	}
	if a.Resolution != nil {
		t.Errorf("Resolution = %v, want nil", a.Resolution)
	}
	if a.ClosedAt != nil {
		t.Errorf("ClosedAt = %v, want nil", a.ClosedAt)
	}
}

func TestUpdateStatus_ReopenKeepsStaleResolution(t *testing.T) {
	t.Parallel()

	store := newMockStore()
	res := "confirmed_suspicious"
	closed := time.Date(2025, 11, 9, 8, 0, 0, 0, time.UTC)
	store.put(Alert{ID: "a-1", Status: StatusClosed, Resolution: &res, ClosedAt: &closed})
	svc := newTestService(store)

	a, err := svc.UpdateStatus(context.Background(), "a-1", TransitionRequest{
		Status:    StatusInProgress,
		Analyst:   "kdoe",
		Rationale: "new transactions surfaced",
	})
	if err != nil {
		t.Fatalf("UpdateStatus: %v", err)
	}
	if a.Status != StatusInProgress {
		t.Errorf("Status = %q, want In Progress", a.Status)
	}
	if a.Resolution == nil || *a.Resolution != "confirmed_suspicious" {
		t.Errorf("Resolution = %v, want stale confirmed_suspicious kept", a.Resolution)
	}
	if a.ClosedAt == nil || !a.ClosedAt.Equal(closed) {
		t.Errorf("ClosedAt = %v, want stale %v kept", a.ClosedAt, closed)
	}
}

func TestUpdateStatus_ReassignsAnalystUnconditionally(t *testing.T) {
	t.Parallel()

	store := newMockStore()
	prev := "jsmith"
	store.put(Alert{ID: "a-1", Status: StatusInProgress, AssignedAnalyst: &prev})
	svc := newTestService(store)

	a, err := svc.UpdateStatus(context.Background(), "a-1", TransitionRequest{
		Status:  StatusReview,
		Analyst: "kdoe",
	})
	if err != nil {
		t.Fatalf("UpdateStatus: %v", err)
	}
	if a.AssignedAnalyst == nil || *a.AssignedAnalyst != "kdoe" {
		t.Errorf("AssignedAnalyst = %v, want kdoe", a.AssignedAnalyst)
	}
}

func TestUpdateStatus_WritesAuditEntry(t *testing.T) {
	t.Parallel()

	store := newMockStore()
	store.put(Alert{ID: "a-1", Status: StatusNew})
	svc := newTestService(store)

	res := "false_positive"
	if _, err := svc.UpdateStatus(context.Background(), "a-1", TransitionRequest{
		Status:     StatusClosed,
		Analyst:    "jsmith",
		Rationale:  "duplicate of S2",
		Resolution: &res,
	}); err != nil {
		t.Fatalf("UpdateStatus: %v", err)
	}

	entries, err := svc.AuditTrail(context.Background(), "a-1", "")
	if err != nil {
		t.Fatalf("AuditTrail: %v", err)
	}
	if len(entries) != 1 {
		t.Fatalf("len(entries) = %d, want 1", len(entries))
	}
	e := entries[0]
	if e.Action != ActionStatusUpdate {
		t.Errorf("Action = %q, want %q", e.Action, ActionStatusUpdate)
	}
	if e.PerformedBy != "jsmith" {
		t.Errorf("PerformedBy = %q, want jsmith", e.PerformedBy)
	}
	want := "Status changed to 'Closed'. Rationale: duplicate of S2. Resolution: false_positive"
	if e.Details != want {
		t.Errorf("Details = %q, want %q", e.Details, want)
	}
}

func TestUpdateStatus_NotFound(t *testing.T) {
	t.Parallel()

	svc := newTestService(newMockStore())
	_, err := svc.UpdateStatus(context.Background(), "nope", TransitionRequest{
		Status:  StatusReview,
		Analyst: "jsmith",
	})
	if !errors.Is(err, ErrNotFound) {
		t.Errorf("error = %v, want ErrNotFound", err)
	}
}

func TestUpdateStatus_EscalationNotifies(t *testing.T) {
	t.Parallel()

	store := newMockStore()
	store.put(Alert{ID: "a-1", Code: "G1", Status: StatusInProgress})
	notifier := &mockNotifier{}
	svc := NewService(store, store, log.Nop(), nil, notifier)

	if _, err := svc.UpdateStatus(context.Background(), "a-1", TransitionRequest{
		Status:  StatusEscalated,
		Analyst: "jsmith",
	}); err != nil {
		t.Fatalf("UpdateStatus: %v", err)
	}

	notifier.mu.Lock()
	defer notifier.mu.Unlock()
	if len(notifier.codes) != 1 || notifier.codes[0] != "G1" {
		t.Errorf("notified codes = %v, want [G1]", notifier.codes)
	}
}

func TestUpdateStatus_NotifierFailureDoesNotFailTransition(t *testing.T) {
	t.Parallel()

	store := newMockStore()
	store.put(Alert{ID: "a-1", Status: StatusInProgress})
	notifier := &mockNotifier{retErr: errors.New("webhook down")}
	svc := NewService(store, store, log.Nop(), nil, notifier)

	a, err := svc.UpdateStatus(context.Background(), "a-1", TransitionRequest{
		Status:  StatusEscalated,
		Analyst: "jsmith",
	})
	if err != nil {
		t.Fatalf("UpdateStatus: %v", err)
	}
	if a.Status != StatusEscalated {
		t.Errorf("Status = %q, want Escalated", a.Status)
	}
}

func TestUpdateStatus_NonEscalationDoesNotNotify(t *testing.T) {
	t.Parallel()

	store := newMockStore()
	store.put(Alert{ID: "a-1", Status: StatusNew})
	notifier := &mockNotifier{}
	svc := NewService(store, store, log.Nop(), nil, notifier)

	if _, err := svc.UpdateStatus(context.Background(), "a-1", TransitionRequest{
		Status:  StatusInProgress,
		Analyst: "jsmith",
	}); err != nil {
		t.Fatalf("UpdateStatus: %v", err)
	}

	notifier.mu.Lock()
	defer notifier.mu.Unlock()
	if len(notifier.codes) != 0 {
		t.Errorf("notified codes = %v, want none", notifier.codes)
	}
}

func TestBulkUpdateStatus_PartialFailure(t *testing.T) {
	t.Parallel()

	store := newMockStore()
	store.put(Alert{ID: "valid-1", Status: StatusReview})
	store.put(Alert{ID: "valid-2", Status: StatusReview})
	svc := newTestService(store)

	res := "false_positive"
	got, err := svc.BulkUpdateStatus(context.Background(), []string{"valid-1", "bogus", "valid-2"}, TransitionRequest{
		Status:     StatusClosed,
		Analyst:    "jsmith",
		Rationale:  "quarterly cleanup",
		Resolution: &res,
	})
	if err != nil {
		t.Fatalf("BulkUpdateStatus: %v", err)
	}
	if got.Updated != 2 {
		t.Errorf("Updated = %d, want 2", got.Updated)
	}
	if len(got.FailedIDs) != 1 || got.FailedIDs[0] != "bogus" {
		t.Errorf("FailedIDs = %v, want [bogus]", got.FailedIDs)
	}

	// Ids processed before the failure stay committed.
	a, err := svc.Get(context.Background(), "valid-1")
	if err != nil {
		t.Fatalf("Get: %v", err)
	}
	if a.Status != StatusClosed {
		t.Errorf("valid-1 status = %q, want Closed", a.Status)
	}
}

func TestBulkUpdateStatus_AllMissing(t *testing.T) {
	t.Parallel()

	svc := newTestService(newMockStore())
	got, err := svc.BulkUpdateStatus(context.Background(), []string{"x", "y"}, TransitionRequest{
		Status:  StatusClosed,
		Analyst: "jsmith",
	})
	if err != nil {
		t.Fatalf("BulkUpdateStatus: %v", err)
	}
	if got.Updated != 0 {
		t.Errorf("Updated = %d, want 0", got.Updated)
	}
	if len(got.FailedIDs) != 2 {
		t.Errorf("FailedIDs = %v, want 2 entries", got.FailedIDs)
	}
}

func TestBulkUpdateStatus_AuditActionAndDetails(t *testing.T) {
	t.Parallel()

	store := newMockStore()
	store.put(Alert{ID: "a-1", Status: StatusReview})
	svc := newTestService(store)

	res := "confirmed_suspicious"
	if _, err := svc.BulkUpdateStatus(context.Background(), []string{"a-1"}, TransitionRequest{
		Status:     StatusClosed,
		Analyst:    "kdoe",
		Rationale:  "SAR filed",
		Resolution: &res,
	}); err != nil {
		t.Fatalf("BulkUpdateStatus: %v", err)
	}

	entries, err := svc.AuditTrail(context.Background(), "a-1", ActionBulkClose)
	if err != nil {
		t.Fatalf("AuditTrail: %v", err)
	}
	if len(entries) != 1 {
		t.Fatalf("len(entries) = %d, want 1", len(entries))
	}
	if !strings.Contains(entries[0].Details, "via bulk close") {
		t.Errorf("Details = %q, want bulk close marker", entries[0].Details)
	}
	if !strings.Contains(entries[0].Details, "Resolution: confirmed_suspicious") {
		t.Errorf("Details = %q, want resolution recorded", entries[0].Details)
	}
}

func TestBulkUpdateStatus_StoreErrorHalts(t *testing.T) {
	t.Parallel()

	store := newMockStore()
	store.put(Alert{ID: "a-1", Status: StatusReview})
	store.put(Alert{ID: "a-2", Status: StatusReview})
	store.failApplyFor = "a-2"
	svc := newTestService(store)

	_, err := svc.BulkUpdateStatus(context.Background(), []string{"a-1", "a-2"}, TransitionRequest{
		Status:  StatusClosed,
		Analyst: "jsmith",
	})
	if err == nil {
		t.Fatal("expected store error to propagate")
	}
}

func TestAuditTrail_UnknownAlert(t *testing.T) {
	t.Parallel()

	svc := newTestService(newMockStore())
	if _, err := svc.AuditTrail(context.Background(), "nope", ""); !errors.Is(err, ErrNotFound) {
		t.Errorf("error = %v, want ErrNotFound", err)
	}
}

func TestNotes_RoundTrip(t *testing.T) {
	t.Parallel()

	store := newMockStore()
	store.put(Alert{ID: "a-1", Status: StatusNew})
	svc := newTestService(store)

	n, err := svc.AddNote(context.Background(), "a-1", "jsmith", "customer called to explain deposits")
	if err != nil {
		t.Fatalf("AddNote: %v", err)
	}
	if n.ID == "" {
		t.Error("note ID is empty")
	}

	notes, err := svc.Notes(context.Background(), "a-1")
	if err != nil {
		t.Fatalf("Notes: %v", err)
	}
	if len(notes) != 1 || notes[0].Content != "customer called to explain deposits" {
		t.Errorf("notes = %+v", notes)
	}
}

func TestNotes_UnknownAlert(t *testing.T) {
	t.Parallel()

	svc := newTestService(newMockStore())
	if _, err := svc.AddNote(context.Background(), "nope", "jsmith", "x"); !errors.Is(err, ErrNotFound) {
		t.Errorf("AddNote error = %v, want ErrNotFound", err)
	}
	if _, err := svc.Notes(context.Background(), "nope"); !errors.Is(err, ErrNotFound) {
		t.Errorf("Notes error = %v, want ErrNotFound", err)
	}
}
