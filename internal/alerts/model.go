package alerts

import (
	"fmt"
	"time"

	"github.com/shopspring/decimal"
)

// Status tracks where an alert is in the investigation lifecycle.
type Status string

const (
	// StatusNew means flagged, not yet picked up by an analyst
	StatusNew Status = "New"

	// StatusInProgress means an analyst is actively investigating
	StatusInProgress Status = "In Progress"

	// StatusReview means investigation done, awaiting a second pair of eyes
	StatusReview Status = "Review"

	// StatusEscalated means handed to the compliance officer
	StatusEscalated Status = "Escalated"

	// StatusClosed means the case has an outcome recorded in Resolution
	StatusClosed Status = "Closed"
)

// statuses is the complete set of recognized labels.
var statuses = map[Status]bool{
	StatusNew:        true,
	StatusInProgress: true,
	StatusReview:     true,
	StatusEscalated:  true,
	StatusClosed:     true,
}

// ParseStatus validates a raw label against the recognized set. It is the
// single validation boundary: anything past it holds exactly one of the five
// states, so the core never has to handle an unknown label.
func ParseStatus(label string) (Status, error) {
	st := Status(label)
	if !statuses[st] {
		return "", fmt.Errorf("unknown status %q", label)
	}
	return st, nil
}

// OpenStatuses returns every non-Closed status, the set counted as "open"
// by queue statistics.
func OpenStatuses() []Status {
	return []Status{StatusNew, StatusInProgress, StatusReview, StatusEscalated}
}

// IsOpen reports whether s is any status other than Closed.
func (s Status) IsOpen() bool {
	return s != StatusClosed
}

// Alert is one flagged suspicious-activity case under investigation.
type Alert struct {
	ID              string           `json:"id"`
	Code            string           `json:"code"`
	CustomerID      string           `json:"customer_id"`
	Typology        string           `json:"typology"`
	RiskScore       int              `json:"risk_score"`
	Status          Status           `json:"status"`
	Title           string           `json:"title"`
	Description     string           `json:"description,omitempty"`
	TriggeredAt     time.Time        `json:"triggered_at"`
	AssignedAnalyst *string          `json:"assigned_analyst,omitempty"`
	Resolution      *string          `json:"resolution,omitempty"`
	ClosedAt        *time.Time       `json:"closed_at,omitempty"`
	FlaggedAmount   *decimal.Decimal `json:"total_flagged_amount,omitempty"`
	FlaggedTxCount  int              `json:"flagged_transaction_count"`
	CreatedAt       time.Time        `json:"created_at"`
	UpdatedAt       time.Time        `json:"updated_at"`
}

// Customer is the read projection of the customer a case is about. Customers
// are owned by an upstream system; the core only reads the risk category.
type Customer struct {
	ID           string `json:"id"`
	FullName     string `json:"full_name"`
	RiskCategory string `json:"risk_category"`
}

// AuditEntry is one append-only record of an action taken on an alert.
// Entries are never mutated or deleted.
type AuditEntry struct {
	ID          int64     `json:"id"`
	AlertID     string    `json:"alert_id"`
	Action      string    `json:"action"`
	PerformedBy string    `json:"performed_by"`
	Details     string    `json:"details"`
	CreatedAt   time.Time `json:"created_at"`
}

// Audit action tags.
const (
	ActionStatusUpdate = "status_update"
	ActionBulkClose    = "bulk_close"
)

// Note is a free-form investigation note an analyst attached to an alert.
type Note struct {
	ID        string    `json:"id"`
	AlertID   string    `json:"alert_id"`
	Analyst   string    `json:"analyst"`
	Content   string    `json:"content"`
	CreatedAt time.Time `json:"created_at"`
}

// Stats are the queue-wide summary counters for the dashboard.
type Stats struct {
	TotalAlerts     int `json:"total_alerts"`
	OpenAlerts      int `json:"open_alerts"`
	HighRiskCount   int `json:"high_risk_count"`
	ClosedCount     int `json:"closed_count"`
	UnassignedCount int `json:"unassigned_count"`
}

// highRiskThreshold is the risk score at or above which an alert counts as
// high risk, independent of status.
const highRiskThreshold = 70
