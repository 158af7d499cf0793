package alerts

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/linnemanlabs/go-core/log"
	"github.com/linnemanlabs/go-core/xerrors"
	"github.com/oklog/ulid/v2"
)

// ErrNotFound signals that the referenced alert does not exist. It is
// surfaced synchronously; there is nothing to retry.
var ErrNotFound = xerrors.New("alert not found")

// TransitionRequest describes one status transition: who performed it, why,
// and the closing outcome when the target status is Closed.
type TransitionRequest struct {
	Status     Status
	Analyst    string
	Rationale  string
	Resolution *string
}

// BulkResult reports per-item outcomes of a bulk transition. Partial success
// is the intended behavior: ids processed before a failure stay committed,
// and FailedIDs is the sole failure signal.
type BulkResult struct {
	Updated   int      `json:"updated"`
	FailedIDs []string `json:"failed_ids"`
}

// Notifier receives successful escalations. Implementations must be safe for
// concurrent use; failures are logged, never propagated.
type Notifier interface {
	Escalated(ctx context.Context, a *Alert, analyst string) error
}

// Service is the business boundary for the investigation queue: filtered
// listing, queue statistics, the status lifecycle with its audit trail,
// similarity ranking, and investigation notes.
type Service struct {
	store     Store
	customers CustomerLookup
	logger    log.Logger
	metrics   *Metrics
	notifier  Notifier
	now       func() time.Time
}

// NewService creates a new alert service. metrics and notifier may be nil.
func NewService(store Store, customers CustomerLookup, logger log.Logger, metrics *Metrics, notifier Notifier) *Service {
	if logger == nil {
		logger = log.Nop()
	}
	return &Service{
		store:     store,
		customers: customers,
		logger:    logger,
		metrics:   metrics,
		notifier:  notifier,
		now:       time.Now,
	}
}

// List returns the queue view for q: the windowed alerts plus the total size
// of the filtered set before the window.
func (s *Service) List(ctx context.Context, q Query) (*Page, error) {
	total, err := s.store.CountAlerts(ctx, q.Filter)
	if err != nil {
		return nil, fmt.Errorf("count alerts: %w", err)
	}

	items, err := s.store.ListAlerts(ctx, q.Filter, q.Sort, q.Offset, q.Limit)
	if err != nil {
		return nil, fmt.Errorf("list alerts: %w", err)
	}
	if items == nil {
		items = []Alert{}
	}

	return &Page{Alerts: items, Total: total}, nil
}

// Get retrieves an alert by its internal id.
func (s *Service) Get(ctx context.Context, id string) (*Alert, error) {
	a, ok, err := s.store.GetAlert(ctx, id)
	if err != nil {
		return nil, err
	}
	if !ok {
		return nil, ErrNotFound
	}
	return a, nil
}

// GetByCode retrieves an alert by its human-readable short code (e.g. "S1").
func (s *Service) GetByCode(ctx context.Context, code string) (*Alert, error) {
	a, ok, err := s.store.GetAlertByCode(ctx, code)
	if err != nil {
		return nil, err
	}
	if !ok {
		return nil, ErrNotFound
	}
	return a, nil
}

// Stats computes the queue-wide summary counters. Each counter is one count
// over the store with the corresponding filter.
func (s *Service) Stats(ctx context.Context) (*Stats, error) {
	highRisk := highRiskThreshold

	counts := []struct {
		dst *int
		f   Filter
	}{
		{f: Filter{}},
		{f: Filter{Statuses: OpenStatuses()}},
		{f: Filter{RiskMin: &highRisk}},
		{f: Filter{Statuses: []Status{StatusClosed}}},
		{f: Filter{AssignedAnalyst: AnalystUnassigned, Statuses: OpenStatuses()}},
	}

	var st Stats
	counts[0].dst = &st.TotalAlerts
	counts[1].dst = &st.OpenAlerts
	counts[2].dst = &st.HighRiskCount
	counts[3].dst = &st.ClosedCount
	counts[4].dst = &st.UnassignedCount

	for _, c := range counts {
		n, err := s.store.CountAlerts(ctx, c.f)
		if err != nil {
			return nil, fmt.Errorf("count alerts: %w", err)
		}
		*c.dst = n
	}
	return &st, nil
}

// UpdateStatus transitions one alert and records the audit entry in the same
// store operation. Every transition reassigns the analyst of record to
// whoever performed it; that is the contract, not a side effect. Resolution
// and closed_at are set only when the target status is Closed and a
// resolution was supplied. Reopening a closed alert deliberately leaves any
// prior resolution and closed_at in place.
func (s *Service) UpdateStatus(ctx context.Context, id string, req TransitionRequest) (*Alert, error) {
	return s.transition(ctx, id, req, ActionStatusUpdate, s.auditDetails(req, false))
}

// BulkUpdateStatus applies the same transition to each id in order. A
// missing id lands in FailedIDs and does not halt the rest; ids already
// processed stay committed. One bulk_close audit entry is written per
// successful id.
func (s *Service) BulkUpdateStatus(ctx context.Context, ids []string, req TransitionRequest) (*BulkResult, error) {
	res := &BulkResult{FailedIDs: []string{}}
	details := s.auditDetails(req, true)

	for _, id := range ids {
		_, err := s.transition(ctx, id, req, ActionBulkClose, details)
		switch {
		case err == nil:
			res.Updated++
			if s.metrics != nil {
				s.metrics.BulkItemsTotal.WithLabelValues("updated").Inc()
			}
		case errors.Is(err, ErrNotFound):
			res.FailedIDs = append(res.FailedIDs, id)
			if s.metrics != nil {
				s.metrics.BulkItemsTotal.WithLabelValues("missing").Inc()
			}
		default:
			return nil, err
		}
	}

	s.logger.Info(ctx, "bulk transition complete",
		"status", string(req.Status),
		"analyst", req.Analyst,
		"updated", res.Updated,
		"failed", len(res.FailedIDs),
	)
	return res, nil
}

func (s *Service) transition(ctx context.Context, id string, req TransitionRequest, action, details string) (*Alert, error) {
	a, ok, err := s.store.GetAlert(ctx, id)
	if err != nil {
		return nil, err
	}
	if !ok {
		return nil, ErrNotFound
	}

	a.Status = req.Status
	analyst := req.Analyst
	a.AssignedAnalyst = &analyst
	if req.Status == StatusClosed && req.Resolution != nil {
		res := *req.Resolution
		now := s.now().UTC()
		a.Resolution = &res
		a.ClosedAt = &now
	}
	a.UpdatedAt = s.now().UTC()

	entry := &AuditEntry{
		AlertID:     a.ID,
		Action:      action,
		PerformedBy: req.Analyst,
		Details:     details,
		CreatedAt:   s.now().UTC(),
	}

	if err := s.store.ApplyTransition(ctx, a, entry); err != nil {
		return nil, fmt.Errorf("apply transition: %w", err)
	}

	if s.metrics != nil {
		s.metrics.TransitionsTotal.WithLabelValues(string(req.Status)).Inc()
	}

	if req.Status == StatusEscalated && s.notifier != nil {
		if err := s.notifier.Escalated(ctx, a, req.Analyst); err != nil {
			s.logger.Error(ctx, err, "escalation notification failed", "alert", a.Code)
		}
	}

	return a, nil
}

// auditDetails builds the free-text audit record for a transition, in the
// same shape for single and bulk operations.
func (s *Service) auditDetails(req TransitionRequest, bulk bool) string {
	via := ""
	if bulk {
		via = " via bulk close"
	}
	details := fmt.Sprintf("Status changed to '%s'%s. Rationale: %s", req.Status, via, req.Rationale)
	if req.Resolution != nil {
		details += fmt.Sprintf(". Resolution: %s", *req.Resolution)
	}
	return details
}

// AuditTrail lists the audit entries for an alert, newest first, optionally
// filtered by action tag.
func (s *Service) AuditTrail(ctx context.Context, alertID, action string) ([]AuditEntry, error) {
	if _, err := s.Get(ctx, alertID); err != nil {
		return nil, err
	}
	entries, err := s.store.AuditTrail(ctx, alertID, action)
	if err != nil {
		return nil, err
	}
	if entries == nil {
		entries = []AuditEntry{}
	}
	return entries, nil
}

// AddNote attaches an investigation note to an alert.
func (s *Service) AddNote(ctx context.Context, alertID, analyst, content string) (*Note, error) {
	if _, err := s.Get(ctx, alertID); err != nil {
		return nil, err
	}
	n := &Note{
		ID:        ulid.Make().String(),
		AlertID:   alertID,
		Analyst:   analyst,
		Content:   content,
		CreatedAt: s.now().UTC(),
	}
	if err := s.store.AddNote(ctx, n); err != nil {
		return nil, fmt.Errorf("add note: %w", err)
	}
	return n, nil
}

// Notes lists the investigation notes for an alert, newest first.
func (s *Service) Notes(ctx context.Context, alertID string) ([]Note, error) {
	if _, err := s.Get(ctx, alertID); err != nil {
		return nil, err
	}
	notes, err := s.store.Notes(ctx, alertID)
	if err != nil {
		return nil, err
	}
	if notes == nil {
		notes = []Note{}
	}
	return notes, nil
}
