// Package pgstore provides a PostgreSQL implementation of alerts.Store and
// alerts.CustomerLookup.
package pgstore

import (
	"context"
	_ "embed"
	"errors"
	"fmt"
	"strings"
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/shopspring/decimal"

	"github.com/linnemanlabs/caseq/internal/alerts"
)

var tracer = otel.Tracer("github.com/linnemanlabs/caseq/internal/alerts/pgstore")

//go:embed schema.sql
var schema string

// Store persists the alert queue in PostgreSQL.
type Store struct {
	pool *pgxpool.Pool
}

// New applies the schema on the given pool and returns a ready Store.
func New(ctx context.Context, pool *pgxpool.Pool) (*Store, error) {
	if err := pool.Ping(ctx); err != nil {
		return nil, fmt.Errorf("ping: %w", err)
	}
	if _, err := pool.Exec(ctx, schema); err != nil {
		return nil, fmt.Errorf("apply schema: %w", err)
	}
	return &Store{pool: pool}, nil
}

const alertColumns = `id, code, customer_id, typology, risk_score, status, title, description,
	triggered_at, assigned_analyst, resolution, closed_at, total_flagged_amount::text,
	flagged_tx_count, created_at, updated_at`

// sortColumns maps alerts.Sort column names onto real columns. Unknown names
// never reach SQL; alerts.NewSort already normalized them.
var sortColumns = map[string]string{
	"triggered_date": "triggered_at",
	"risk_score":     "risk_score",
	"status":         "status",
	"typology":       "typology",
	"title":          "title",
	"code":           "code",
	"created_at":     "created_at",
}

// GetAlert retrieves an alert by its internal id.
//
//nolint:dupl // similar structure to GetAlertByCode is intentional
func (s *Store) GetAlert(ctx context.Context, id string) (*alerts.Alert, bool, error) {
	ctx, span := tracer.Start(ctx, "pgstore.GetAlert", trace.WithAttributes(
		attribute.String("db.system", "postgresql"),
		attribute.String("db.operation.name", "SELECT"),
	))
	defer span.End()

	query := `SELECT ` + alertColumns + ` FROM alerts WHERE id = $1`
	a, err := scanAlertRow(s.pool.QueryRow(ctx, query, id))
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
		return nil, false, err
	}
	if a == nil {
		return nil, false, nil
	}
	return a, true, nil
}

// GetAlertByCode retrieves an alert by its short code (e.g. "S1").
//
//nolint:dupl // similar structure to GetAlert is intentional
func (s *Store) GetAlertByCode(ctx context.Context, code string) (*alerts.Alert, bool, error) {
	ctx, span := tracer.Start(ctx, "pgstore.GetAlertByCode", trace.WithAttributes(
		attribute.String("db.system", "postgresql"),
		attribute.String("db.operation.name", "SELECT"),
	))
	defer span.End()

	query := `SELECT ` + alertColumns + ` FROM alerts WHERE code = $1`
	a, err := scanAlertRow(s.pool.QueryRow(ctx, query, code))
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
		return nil, false, err
	}
	if a == nil {
		return nil, false, nil
	}
	return a, true, nil
}

// ListAlerts returns the filtered, sorted window of alerts. A limit <= 0
// means no window.
func (s *Store) ListAlerts(ctx context.Context, f alerts.Filter, sortBy alerts.Sort, offset, limit int) ([]alerts.Alert, error) {
	ctx, span := tracer.Start(ctx, "pgstore.ListAlerts", trace.WithAttributes(
		attribute.String("db.system", "postgresql"),
		attribute.String("db.operation.name", "SELECT"),
	))
	defer span.End()

	where, args := buildWhere(f)

	col, ok := sortColumns[sortBy.Column]
	if !ok {
		col = sortColumns[alerts.SortDefaultColumn]
	}
	dir := "DESC"
	if sortBy.Asc {
		dir = "ASC"
	}

	query := `SELECT ` + alertColumns + ` FROM alerts` + where +
		fmt.Sprintf(` ORDER BY %s %s, id %s`, col, dir, dir)
	if limit > 0 {
		args = append(args, limit)
		query += fmt.Sprintf(` LIMIT $%d`, len(args))
	}
	args = append(args, offset)
	query += fmt.Sprintf(` OFFSET $%d`, len(args))

	rows, err := s.pool.Query(ctx, query, args...)
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
		return nil, fmt.Errorf("query alerts: %w", err)
	}
	defer rows.Close()

	var out []alerts.Alert
	for rows.Next() {
		a, err := scanAlert(rows)
		if err != nil {
			span.RecordError(err)
			span.SetStatus(codes.Error, err.Error())
			return nil, err
		}
		out = append(out, *a)
	}
	if err := rows.Err(); err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
		return nil, fmt.Errorf("iterate alerts: %w", err)
	}
	return out, nil
}

// CountAlerts counts the filtered set, independent of any window.
func (s *Store) CountAlerts(ctx context.Context, f alerts.Filter) (int, error) {
	ctx, span := tracer.Start(ctx, "pgstore.CountAlerts", trace.WithAttributes(
		attribute.String("db.system", "postgresql"),
		attribute.String("db.operation.name", "SELECT"),
	))
	defer span.End()

	where, args := buildWhere(f)

	var n int
	if err := s.pool.QueryRow(ctx, `SELECT count(*) FROM alerts`+where, args...).Scan(&n); err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
		return 0, fmt.Errorf("count alerts: %w", err)
	}
	return n, nil
}

// PutAlert inserts or updates an alert (upsert on id).
func (s *Store) PutAlert(ctx context.Context, a *alerts.Alert) error {
	ctx, span := tracer.Start(ctx, "pgstore.PutAlert", trace.WithAttributes(
		attribute.String("db.system", "postgresql"),
		attribute.String("db.operation.name", "UPSERT"),
	))
	defer span.End()

	if err := upsertAlert(ctx, s.pool, a); err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
		return err
	}
	return nil
}

// ApplyTransition persists the mutated alert and its audit entry in one
// transaction. Either both commit or neither does.
func (s *Store) ApplyTransition(ctx context.Context, a *alerts.Alert, e *alerts.AuditEntry) error {
	ctx, span := tracer.Start(ctx, "pgstore.ApplyTransition", trace.WithAttributes(
		attribute.String("db.system", "postgresql"),
		attribute.String("db.operation.name", "UPDATE"),
	))
	defer span.End()

	tx, err := s.pool.Begin(ctx)
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
		return fmt.Errorf("begin tx: %w", err)
	}
	defer tx.Rollback(ctx) //nolint:errcheck // rollback after commit is harmless

	if err := upsertAlert(ctx, tx, a); err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
		return err
	}

	err = tx.QueryRow(ctx,
		`INSERT INTO audit_trail (alert_id, action, performed_by, details, created_at)
		 VALUES ($1, $2, $3, $4, $5)
		 RETURNING id`,
		e.AlertID, e.Action, e.PerformedBy, e.Details, e.CreatedAt,
	).Scan(&e.ID)
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
		return fmt.Errorf("insert audit entry: %w", err)
	}

	if err := tx.Commit(ctx); err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
		return fmt.Errorf("commit: %w", err)
	}
	return nil
}

// AuditTrail lists audit entries for an alert, newest first, optionally
// filtered by action tag.
func (s *Store) AuditTrail(ctx context.Context, alertID, action string) ([]alerts.AuditEntry, error) {
	ctx, span := tracer.Start(ctx, "pgstore.AuditTrail", trace.WithAttributes(
		attribute.String("db.system", "postgresql"),
		attribute.String("db.operation.name", "SELECT"),
	))
	defer span.End()

	query := `SELECT id, alert_id, action, performed_by, details, created_at
		FROM audit_trail WHERE alert_id = $1`
	args := []any{alertID}
	if action != "" {
		args = append(args, action)
		query += ` AND action = $2`
	}
	query += ` ORDER BY created_at DESC, id DESC`

	rows, err := s.pool.Query(ctx, query, args...)
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
		return nil, fmt.Errorf("query audit trail: %w", err)
	}
	defer rows.Close()

	var out []alerts.AuditEntry
	for rows.Next() {
		var e alerts.AuditEntry
		if err := rows.Scan(&e.ID, &e.AlertID, &e.Action, &e.PerformedBy, &e.Details, &e.CreatedAt); err != nil {
			span.RecordError(err)
			span.SetStatus(codes.Error, err.Error())
			return nil, fmt.Errorf("scan audit entry: %w", err)
		}
		out = append(out, e)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate audit trail: %w", err)
	}
	return out, nil
}

// AddNote appends an investigation note.
func (s *Store) AddNote(ctx context.Context, n *alerts.Note) error {
	ctx, span := tracer.Start(ctx, "pgstore.AddNote", trace.WithAttributes(
		attribute.String("db.system", "postgresql"),
		attribute.String("db.operation.name", "INSERT"),
	))
	defer span.End()

	_, err := s.pool.Exec(ctx,
		`INSERT INTO case_notes (id, alert_id, analyst, content, created_at)
		 VALUES ($1, $2, $3, $4, $5)`,
		n.ID, n.AlertID, n.Analyst, n.Content, n.CreatedAt,
	)
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
		return fmt.Errorf("insert note: %w", err)
	}
	return nil
}

// Notes lists investigation notes for an alert, newest first.
func (s *Store) Notes(ctx context.Context, alertID string) ([]alerts.Note, error) {
	ctx, span := tracer.Start(ctx, "pgstore.Notes", trace.WithAttributes(
		attribute.String("db.system", "postgresql"),
		attribute.String("db.operation.name", "SELECT"),
	))
	defer span.End()

	rows, err := s.pool.Query(ctx,
		`SELECT id, alert_id, analyst, content, created_at
		 FROM case_notes WHERE alert_id = $1 ORDER BY created_at DESC, id DESC`,
		alertID,
	)
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
		return nil, fmt.Errorf("query notes: %w", err)
	}
	defer rows.Close()

	var out []alerts.Note
	for rows.Next() {
		var n alerts.Note
		if err := rows.Scan(&n.ID, &n.AlertID, &n.Analyst, &n.Content, &n.CreatedAt); err != nil {
			return nil, fmt.Errorf("scan note: %w", err)
		}
		out = append(out, n)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate notes: %w", err)
	}
	return out, nil
}

// PutCustomer inserts or updates a customer projection.
func (s *Store) PutCustomer(ctx context.Context, c *alerts.Customer) error {
	ctx, span := tracer.Start(ctx, "pgstore.PutCustomer", trace.WithAttributes(
		attribute.String("db.system", "postgresql"),
		attribute.String("db.operation.name", "UPSERT"),
	))
	defer span.End()

	_, err := s.pool.Exec(ctx,
		`INSERT INTO customers (id, full_name, risk_category)
		 VALUES ($1, $2, $3)
		 ON CONFLICT (id) DO UPDATE SET
			full_name     = EXCLUDED.full_name,
			risk_category = EXCLUDED.risk_category`,
		c.ID, c.FullName, c.RiskCategory,
	)
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
		return fmt.Errorf("upsert customer: %w", err)
	}
	return nil
}

// RiskCategory implements alerts.CustomerLookup.
func (s *Store) RiskCategory(ctx context.Context, customerID string) (string, bool, error) {
	ctx, span := tracer.Start(ctx, "pgstore.RiskCategory", trace.WithAttributes(
		attribute.String("db.system", "postgresql"),
		attribute.String("db.operation.name", "SELECT"),
	))
	defer span.End()

	var cat string
	err := s.pool.QueryRow(ctx, `SELECT risk_category FROM customers WHERE id = $1`, customerID).Scan(&cat)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return "", false, nil
		}
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
		return "", false, fmt.Errorf("query risk category: %w", err)
	}
	return cat, true, nil
}

// execer covers both pgxpool.Pool and pgx.Tx.
type execer interface {
	Exec(ctx context.Context, sql string, args ...any) (pgconn.CommandTag, error)
}

func upsertAlert(ctx context.Context, db execer, a *alerts.Alert) error {
	var amount *string
	if a.FlaggedAmount != nil {
		s := a.FlaggedAmount.String()
		amount = &s
	}

	query := `INSERT INTO alerts (
		id, code, customer_id, typology, risk_score, status, title, description,
		triggered_at, assigned_analyst, resolution, closed_at, total_flagged_amount,
		flagged_tx_count, created_at, updated_at
	) VALUES ($1,$2,$3,$4,$5,$6,$7,$8,$9,$10,$11,$12,$13::numeric,$14,$15,$16)
	ON CONFLICT (id) DO UPDATE SET
		code                 = EXCLUDED.code,
		customer_id          = EXCLUDED.customer_id,
		typology             = EXCLUDED.typology,
		risk_score           = EXCLUDED.risk_score,
		status               = EXCLUDED.status,
		title                = EXCLUDED.title,
		description          = EXCLUDED.description,
		triggered_at         = EXCLUDED.triggered_at,
		assigned_analyst     = EXCLUDED.assigned_analyst,
		resolution           = EXCLUDED.resolution,
		closed_at            = EXCLUDED.closed_at,
		total_flagged_amount = EXCLUDED.total_flagged_amount,
		flagged_tx_count     = EXCLUDED.flagged_tx_count,
		updated_at           = EXCLUDED.updated_at`

	_, err := db.Exec(ctx, query,
		a.ID, a.Code, a.CustomerID, a.Typology, a.RiskScore, string(a.Status), a.Title, a.Description,
		a.TriggeredAt, a.AssignedAnalyst, a.Resolution, a.ClosedAt, amount,
		a.FlaggedTxCount, a.CreatedAt, a.UpdatedAt,
	)
	if err != nil {
		return fmt.Errorf("upsert alert: %w", err)
	}
	return nil
}

// buildWhere compiles a Filter into a WHERE clause and its arguments.
func buildWhere(f alerts.Filter) (string, []any) {
	var conds []string
	var args []any

	arg := func(v any) string {
		args = append(args, v)
		return fmt.Sprintf("$%d", len(args))
	}

	if f.Typology != "" {
		conds = append(conds, `typology = `+arg(f.Typology))
	}
	if len(f.Statuses) > 0 {
		labels := make([]string, len(f.Statuses))
		for i, st := range f.Statuses {
			labels[i] = string(st)
		}
		conds = append(conds, `status = ANY(`+arg(labels)+`)`)
	}
	if f.RiskMin != nil {
		conds = append(conds, `risk_score >= `+arg(*f.RiskMin))
	}
	if f.RiskMax != nil {
		conds = append(conds, `risk_score <= `+arg(*f.RiskMax))
	}
	if f.Resolution != "" {
		conds = append(conds, `resolution = `+arg(f.Resolution))
	}
	switch f.AssignedAnalyst {
	case "":
	case alerts.AnalystUnassigned:
		conds = append(conds, `assigned_analyst IS NULL`)
	default:
		conds = append(conds, `assigned_analyst = `+arg(f.AssignedAnalyst))
	}
	if f.Search != "" {
		p := arg("%" + f.Search + "%")
		conds = append(conds, fmt.Sprintf(`(title ILIKE %[1]s OR code ILIKE %[1]s OR description ILIKE %[1]s)`, p))
	}

	if len(conds) == 0 {
		return "", nil
	}
	return " WHERE " + strings.Join(conds, " AND "), args
}

// scanAlert reads one alert row from a pgx.Rows cursor.
func scanAlert(rows pgx.Rows) (*alerts.Alert, error) {
	return scanAlertFrom(rows.Scan)
}

// scanAlertRow reads one alert from a single-row query. Returns (nil, nil)
// when no row is found.
func scanAlertRow(row pgx.Row) (*alerts.Alert, error) {
	a, err := scanAlertFrom(row.Scan)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, nil
		}
		return nil, err
	}
	return a, nil
}

func scanAlertFrom(scan func(dest ...any) error) (*alerts.Alert, error) {
	var (
		a          alerts.Alert
		status     string
		amount     *string
		closedAt   *time.Time
		analyst    *string
		resolution *string
	)

	err := scan(
		&a.ID, &a.Code, &a.CustomerID, &a.Typology, &a.RiskScore, &status, &a.Title, &a.Description,
		&a.TriggeredAt, &analyst, &resolution, &closedAt, &amount,
		&a.FlaggedTxCount, &a.CreatedAt, &a.UpdatedAt,
	)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, pgx.ErrNoRows
		}
		return nil, fmt.Errorf("scan alert: %w", err)
	}

	a.Status = alerts.Status(status)
	a.AssignedAnalyst = analyst
	a.Resolution = resolution
	a.ClosedAt = closedAt

	if amount != nil {
		d, err := decimal.NewFromString(*amount)
		if err != nil {
			return nil, fmt.Errorf("parse flagged amount: %w", err)
		}
		a.FlaggedAmount = &d
	}
	return &a, nil
}
