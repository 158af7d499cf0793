// Package seed provides a deterministic demo dataset for the investigation
// queue: a handful of customers and alerts covering every typology scenario.
package seed

import (
	"context"
	"fmt"
	"time"

	"github.com/shopspring/decimal"

	"github.com/linnemanlabs/caseq/internal/alerts"
)

// Typology labels used by the demo dataset.
const (
	TypologyStructuring    = "Structuring"
	TypologyGeographic     = "Unusual Geographic Activity"
	TypologyRoundTrip      = "Round-trip Transactions"
	TypologyLargeCash      = "Large Cash Transactions"
	TypologyRapidMovement  = "Rapid Fund Movement"
	TypologySuddenActivity = "Sudden Activity Change"
)

// Store is the write surface seeding needs.
type Store interface {
	PutAlert(ctx context.Context, a *alerts.Alert) error
	PutCustomer(ctx context.Context, c *alerts.Customer) error
}

// Customers returns the demo customer projections.
func Customers() []alerts.Customer {
	return []alerts.Customer{
		{ID: "cust-001", FullName: "Ramesh Gupta", RiskCategory: "High"},
		{ID: "cust-002", FullName: "Priya Mehta", RiskCategory: "High"},
		{ID: "cust-003", FullName: "Arjun Reddy", RiskCategory: "Medium"},
		{ID: "cust-004", FullName: "Kavita Nair", RiskCategory: "Medium"},
		{ID: "cust-005", FullName: "Sanjay Kapoor", RiskCategory: "Low"},
		{ID: "cust-006", FullName: "Meena Iyer", RiskCategory: "Low"},
	}
}

// Alerts returns the demo alert dataset. Codes, typologies, and scores are
// fixed so seeded environments are comparable.
func Alerts() []alerts.Alert {
	base := time.Date(2025, time.November, 3, 9, 0, 0, 0, time.UTC)
	day := 24 * time.Hour

	return []alerts.Alert{
		alert("S1", "cust-001", TypologyStructuring, 88,
			"Repeated sub-threshold cash deposits across branches",
			"Nine cash deposits of 45,000-49,500 over twelve days, each just under the reporting threshold.",
			base, 412000, 9),
		alert("S2", "cust-005", TypologyStructuring, 72,
			"Split deposits into three linked accounts",
			"Deposits split across three accounts held at the same branch, aggregating above the threshold daily.",
			base.Add(2*day), 305000, 12),
		alert("G1", "cust-002", TypologyGeographic, 91,
			"Unusual international wires to high-risk jurisdictions",
			"Six outbound wires to jurisdictions with no prior account history and no stated business purpose.",
			base.Add(3*day), 1250000, 6),
		alert("G2", "cust-003", TypologyGeographic, 68,
			"Offshore transfers inconsistent with customer profile",
			"Transfers to an offshore entity recently incorporated with nominee directors.",
			base.Add(5*day), 860000, 4),
		alert("RT1", "cust-003", TypologyRoundTrip, 79,
			"Funds returning to origin through intermediary accounts",
			"Outbound transfer routed through two intermediaries and returned within 48 hours, less fees.",
			base.Add(6*day), 540000, 8),
		alert("LC1", "cust-001", TypologyLargeCash, 92,
			"Single large cash deposit with extreme income mismatch",
			"One cash deposit of 1.5M against a declared annual income of 240,000.",
			base.Add(8*day), 1500000, 1),
		alert("R1", "cust-004", TypologyRapidMovement, 75,
			"Rapid pass-through fund movement",
			"Credits exiting the account within hours of arrival across fourteen transactions.",
			base.Add(9*day), 980000, 14),
		alert("R2", "cust-006", TypologyRapidMovement, 58,
			"Student account acting as pass-through",
			"Low-balance student account suddenly routing matched credits and debits daily.",
			base.Add(11*day), 230000, 19),
		alert("SA1", "cust-005", TypologySuddenActivity, 64,
			"Dormant account resumed with high-velocity activity",
			"Account dormant for 14 months now showing daily transfers near the account limit.",
			base.Add(12*day), 450000, 22),
		alert("SA2", "cust-006", TypologySuddenActivity, 41,
			"Gradual escalation in transfer volumes",
			"Monthly outbound volume tripled over one quarter without a profile update.",
			base.Add(14*day), 120000, 7),
	}
}

// Load writes the demo customers and alerts into the store. Existing rows
// with the same ids are overwritten, so loading is idempotent.
func Load(ctx context.Context, store Store) error {
	for _, c := range Customers() {
		if err := store.PutCustomer(ctx, &c); err != nil {
			return fmt.Errorf("seed customer %s: %w", c.ID, err)
		}
	}
	for _, a := range Alerts() {
		if err := store.PutAlert(ctx, &a); err != nil {
			return fmt.Errorf("seed alert %s: %w", a.Code, err)
		}
	}
	return nil
}

func alert(code, customerID, typology string, risk int, title, description string, triggered time.Time, amount int64, txCount int) alerts.Alert {
	amt := decimal.NewFromInt(amount)
	return alerts.Alert{
		ID:             "demo-" + code,
		Code:           code,
		CustomerID:     customerID,
		Typology:       typology,
		RiskScore:      risk,
		Status:         alerts.StatusNew,
		Title:          title,
		Description:    description,
		TriggeredAt:    triggered,
		FlaggedAmount:  &amt,
		FlaggedTxCount: txCount,
		CreatedAt:      triggered,
		UpdatedAt:      triggered,
	}
}
