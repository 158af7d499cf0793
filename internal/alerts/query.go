package alerts

import (
	"sort"
	"strings"
)

// AnalystUnassigned is the reserved assigned-analyst filter value meaning
// "no analyst assigned". It is distinct from any real analyst identifier.
const AnalystUnassigned = "__unassigned__"

// SortDefaultColumn is used when a sort column is not recognized. A bad
// column name is a documented fallback, not an error.
const SortDefaultColumn = "triggered_date"

// sortColumns are the column names accepted by Sort. Anything else falls
// back to SortDefaultColumn.
var sortColumns = map[string]bool{
	"triggered_date": true,
	"risk_score":     true,
	"status":         true,
	"typology":       true,
	"title":          true,
	"code":           true,
	"created_at":     true,
}

// Filter narrows the alert queue. Zero values mean "no constraint"; set
// fields are ANDed together.
type Filter struct {
	Typology        string
	Statuses        []Status
	RiskMin         *int
	RiskMax         *int
	Resolution      string
	AssignedAnalyst string // AnalystUnassigned selects alerts with no analyst
	Search          string
}

// ParseStatusList splits a comma-separated status expression (e.g.
// "New,In Progress") into validated statuses with OR semantics.
func ParseStatusList(expr string) ([]Status, error) {
	if expr == "" {
		return nil, nil
	}
	parts := strings.Split(expr, ",")
	out := make([]Status, 0, len(parts))
	for _, p := range parts {
		st, err := ParseStatus(strings.TrimSpace(p))
		if err != nil {
			return nil, err
		}
		out = append(out, st)
	}
	return out, nil
}

// Match reports whether a satisfies every set constraint. This is the
// in-memory predicate; pgstore expresses the same constraints in SQL.
func (f Filter) Match(a *Alert) bool {
	if f.Typology != "" && a.Typology != f.Typology {
		return false
	}
	if len(f.Statuses) > 0 && !containsStatus(f.Statuses, a.Status) {
		return false
	}
	if f.RiskMin != nil && a.RiskScore < *f.RiskMin {
		return false
	}
	if f.RiskMax != nil && a.RiskScore > *f.RiskMax {
		return false
	}
	if f.Resolution != "" && (a.Resolution == nil || *a.Resolution != f.Resolution) {
		return false
	}
	switch f.AssignedAnalyst {
	case "":
	case AnalystUnassigned:
		if a.AssignedAnalyst != nil {
			return false
		}
	default:
		if a.AssignedAnalyst == nil || *a.AssignedAnalyst != f.AssignedAnalyst {
			return false
		}
	}
	if f.Search != "" {
		needle := strings.ToLower(f.Search)
		if !strings.Contains(strings.ToLower(a.Title), needle) &&
			!strings.Contains(strings.ToLower(a.Code), needle) &&
			!strings.Contains(strings.ToLower(a.Description), needle) {
			return false
		}
	}
	return true
}

func containsStatus(set []Status, s Status) bool {
	for _, st := range set {
		if st == s {
			return true
		}
	}
	return false
}

// Sort names a column and a direction for the queue view.
type Sort struct {
	Column string
	Asc    bool
}

// NewSort normalizes a raw column/order pair: unrecognized columns fall back
// to triggered_date, and any order other than "asc" sorts descending.
func NewSort(column, order string) Sort {
	if !sortColumns[column] {
		column = SortDefaultColumn
	}
	return Sort{Column: column, Asc: order == "asc"}
}

// SortAlerts orders list in place according to s. The sort is stable so that
// ties keep their original scan order.
func SortAlerts(list []Alert, s Sort) {
	if !sortColumns[s.Column] {
		s.Column = SortDefaultColumn
	}
	less := func(a, b *Alert) bool {
		switch s.Column {
		case "risk_score":
			return a.RiskScore < b.RiskScore
		case "status":
			return a.Status < b.Status
		case "typology":
			return a.Typology < b.Typology
		case "title":
			return a.Title < b.Title
		case "code":
			return a.Code < b.Code
		case "created_at":
			return a.CreatedAt.Before(b.CreatedAt)
		default: // triggered_date
			return a.TriggeredAt.Before(b.TriggeredAt)
		}
	}
	sort.SliceStable(list, func(i, j int) bool {
		if s.Asc {
			return less(&list[i], &list[j])
		}
		return less(&list[j], &list[i])
	})
}

// Query is one queue-view request: filter, sort, and pagination window.
type Query struct {
	Filter Filter
	Sort   Sort
	Offset int
	Limit  int
}

// Page is the queue-view response. Total counts the filtered set before the
// offset/limit window is applied.
type Page struct {
	Alerts []Alert `json:"alerts"`
	Total  int     `json:"total"`
}
