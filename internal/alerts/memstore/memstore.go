// Package memstore provides an in-memory implementation of alerts.Store and
// alerts.CustomerLookup.
package memstore

import (
	"context"
	"sync"

	"github.com/linnemanlabs/caseq/internal/alerts"
)

// Store holds alerts, audit entries, notes, and customers in memory.
// Suitable for dev/testing.
type Store struct {
	mu        sync.RWMutex
	byID      map[string]*alerts.Alert
	byCode    map[string]string // short code -> alert ID
	order     []string          // insertion order of alert IDs
	audit     map[string][]alerts.AuditEntry
	notes     map[string][]alerts.Note
	customers map[string]alerts.Customer
	auditSeq  int64
}

// New initializes a new in-memory Store.
func New() *Store {
	return &Store{
		byID:      make(map[string]*alerts.Alert),
		byCode:    make(map[string]string),
		audit:     make(map[string][]alerts.AuditEntry),
		notes:     make(map[string][]alerts.Note),
		customers: make(map[string]alerts.Customer),
	}
}

// GetAlert retrieves an alert by its internal id. Returns a copy.
func (s *Store) GetAlert(_ context.Context, id string) (*alerts.Alert, bool, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	a, ok := s.byID[id]
	if !ok {
		return nil, false, nil
	}
	cp := *a
	return &cp, true, nil
}

// GetAlertByCode retrieves an alert by its short code. Returns a copy.
func (s *Store) GetAlertByCode(_ context.Context, code string) (*alerts.Alert, bool, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	id, ok := s.byCode[code]
	if !ok {
		return nil, false, nil
	}
	cp := *s.byID[id]
	return &cp, true, nil
}

// ListAlerts returns the filtered, sorted window of alerts. A limit <= 0
// means no window.
func (s *Store) ListAlerts(_ context.Context, f alerts.Filter, sortBy alerts.Sort, offset, limit int) ([]alerts.Alert, error) {
	s.mu.RLock()
	matched := s.matchLocked(f)
	s.mu.RUnlock()

	alerts.SortAlerts(matched, sortBy)

	if offset >= len(matched) {
		return []alerts.Alert{}, nil
	}
	matched = matched[offset:]
	if limit > 0 && limit < len(matched) {
		matched = matched[:limit]
	}
	return matched, nil
}

// CountAlerts counts the filtered set, independent of any window.
func (s *Store) CountAlerts(_ context.Context, f alerts.Filter) (int, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	n := 0
	for _, id := range s.order {
		if f.Match(s.byID[id]) {
			n++
		}
	}
	return n, nil
}

// matchLocked copies every alert satisfying f, in insertion order.
func (s *Store) matchLocked(f alerts.Filter) []alerts.Alert {
	out := make([]alerts.Alert, 0, len(s.order))
	for _, id := range s.order {
		if a := s.byID[id]; f.Match(a) {
			out = append(out, *a)
		}
	}
	return out
}

// PutAlert stores a copy of the alert, inserting or replacing by id.
func (s *Store) PutAlert(_ context.Context, a *alerts.Alert) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.putAlertLocked(a)
	return nil
}

func (s *Store) putAlertLocked(a *alerts.Alert) {
	if _, ok := s.byID[a.ID]; !ok {
		s.order = append(s.order, a.ID)
	}
	cp := *a
	s.byID[a.ID] = &cp
	s.byCode[a.Code] = a.ID
}

// ApplyTransition stores the mutated alert and appends its audit entry under
// one critical section, so neither is ever visible without the other.
func (s *Store) ApplyTransition(_ context.Context, a *alerts.Alert, e *alerts.AuditEntry) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.putAlertLocked(a)
	s.auditSeq++
	cp := *e
	cp.ID = s.auditSeq
	e.ID = cp.ID
	s.audit[e.AlertID] = append(s.audit[e.AlertID], cp)
	return nil
}

// AuditTrail lists audit entries for an alert, newest first, optionally
// filtered by action.
func (s *Store) AuditTrail(_ context.Context, alertID, action string) ([]alerts.AuditEntry, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	entries := s.audit[alertID]
	out := make([]alerts.AuditEntry, 0, len(entries))
	for i := len(entries) - 1; i >= 0; i-- {
		if action != "" && entries[i].Action != action {
			continue
		}
		out = append(out, entries[i])
	}
	return out, nil
}

// AddNote appends a copy of the note.
func (s *Store) AddNote(_ context.Context, n *alerts.Note) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.notes[n.AlertID] = append(s.notes[n.AlertID], *n)
	return nil
}

// Notes lists notes for an alert, newest first.
func (s *Store) Notes(_ context.Context, alertID string) ([]alerts.Note, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	notes := s.notes[alertID]
	out := make([]alerts.Note, 0, len(notes))
	for i := len(notes) - 1; i >= 0; i-- {
		out = append(out, notes[i])
	}
	return out, nil
}

// PutCustomer stores a customer projection for risk-category lookups.
func (s *Store) PutCustomer(_ context.Context, c *alerts.Customer) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.customers[c.ID] = *c
	return nil
}

// RiskCategory implements alerts.CustomerLookup.
func (s *Store) RiskCategory(_ context.Context, customerID string) (string, bool, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	c, ok := s.customers[customerID]
	if !ok {
		return "", false, nil
	}
	return c.RiskCategory, true, nil
}
