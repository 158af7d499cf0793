package alerts

import "context"

// Store is the persistence interface for alerts, their audit trail, and
// investigation notes.
//
// ListAlerts applies the filter, sort, and window; a limit <= 0 means no
// window. CountAlerts counts the filtered set independent of any window.
// ApplyTransition persists an alert mutation together with its audit entry
// in a single transaction (or critical section), so a committed status
// change can never be missing its audit record.
type Store interface {
	GetAlert(ctx context.Context, id string) (*Alert, bool, error)
	GetAlertByCode(ctx context.Context, code string) (*Alert, bool, error)
	ListAlerts(ctx context.Context, f Filter, s Sort, offset, limit int) ([]Alert, error)
	CountAlerts(ctx context.Context, f Filter) (int, error)
	PutAlert(ctx context.Context, a *Alert) error
	ApplyTransition(ctx context.Context, a *Alert, e *AuditEntry) error
	AuditTrail(ctx context.Context, alertID, action string) ([]AuditEntry, error)
	AddNote(ctx context.Context, n *Note) error
	Notes(ctx context.Context, alertID string) ([]Note, error)
}

// CustomerLookup reads a customer's risk category. Customers are owned by an
// upstream system; there is no write path from this service.
type CustomerLookup interface {
	RiskCategory(ctx context.Context, customerID string) (string, bool, error)
}
