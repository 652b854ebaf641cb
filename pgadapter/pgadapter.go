// Package pgadapter stores casbin rules in PostgreSQL.
//
// Rules live in a casbin_rule table (id, ptype, v0..v5); the adapter
// implements casbin's persist.Adapter, persist.BatchAdapter, and
// persist.FilteredAdapter over a pgx connection, pool, or transaction.
// Removal is plain DELETE and therefore idempotent: removing a rule that is
// already gone succeeds.
//
//	pool, err := pgxpool.New(ctx, dsn)
//	a := pgadapter.New(pool)
//	e, err := casbin.NewEnforcer("model.conf", a)
package pgadapter

import (
	"context"
	"fmt"
	"strings"

	"github.com/casbin/casbin/v2/model"
	"github.com/casbin/casbin/v2/persist"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
)

// DefaultTable is the rule table name used unless WithTable overrides it.
const DefaultTable = "casbin_rule"

// maxRuleFields is the v0..v5 column count of the rule table.
const maxRuleFields = 6

// DB executes statements against PostgreSQL. Implemented by *pgxpool.Pool,
// *pgx.Conn, and pgx.Tx, so rule writes can participate in an application
// transaction.
type DB interface {
	Exec(ctx context.Context, sql string, args ...any) (pgconn.CommandTag, error)
	Query(ctx context.Context, sql string, args ...any) (pgx.Rows, error)
	SendBatch(ctx context.Context, b *pgx.Batch) pgx.BatchResults
}

// Filter selects which rules LoadFilteredPolicy reads. A non-empty slice
// restricts the matching column to those values; empty slices match any.
type Filter struct {
	Ptype []string
	V0    []string
	V1    []string
	V2    []string
	V3    []string
	V4    []string
	V5    []string
}

// Adapter is a PostgreSQL-backed casbin storage adapter.
type Adapter struct {
	db       DB
	table    string
	filtered bool
}

// Option configures an Adapter.
type Option func(*Adapter)

// WithTable overrides the rule table name.
func WithTable(name string) Option {
	return func(a *Adapter) {
		a.table = name
	}
}

// New creates an adapter over db. The database is not touched until the
// enforcer loads policy; run Migrate first on a fresh database.
func New(db DB, opts ...Option) *Adapter {
	a := &Adapter{
		db:    db,
		table: DefaultTable,
	}
	for _, opt := range opts {
		opt(a)
	}
	return a
}

var (
	_ persist.Adapter         = (*Adapter)(nil)
	_ persist.BatchAdapter    = (*Adapter)(nil)
	_ persist.FilteredAdapter = (*Adapter)(nil)
)

// Migrate creates the rule table and its lookup index if they do not exist.
func (a *Adapter) Migrate(ctx context.Context) error {
	ddl := fmt.Sprintf(`
CREATE TABLE IF NOT EXISTS %[1]s (
	id    BIGSERIAL PRIMARY KEY,
	ptype TEXT NOT NULL,
	v0    TEXT NOT NULL DEFAULT '',
	v1    TEXT NOT NULL DEFAULT '',
	v2    TEXT NOT NULL DEFAULT '',
	v3    TEXT NOT NULL DEFAULT '',
	v4    TEXT NOT NULL DEFAULT '',
	v5    TEXT NOT NULL DEFAULT ''
);
CREATE INDEX IF NOT EXISTS %[1]s_ptype_v0_idx ON %[1]s (ptype, v0);`, a.table)
	if _, err := a.db.Exec(ctx, ddl); err != nil {
		return a.mapError("migrate", err)
	}
	return nil
}

// LoadPolicy loads every stored rule into the casbin model.
func (a *Adapter) LoadPolicy(m model.Model) error {
	return a.loadPolicy(m, "", nil)
}

// IsFiltered reports whether the last load was filtered.
func (a *Adapter) IsFiltered() bool {
	return a.filtered
}

// LoadFilteredPolicy loads only the rules matching filter, which must be a
// Filter or *Filter.
func (a *Adapter) LoadFilteredPolicy(m model.Model, filter interface{}) error {
	var f Filter
	switch v := filter.(type) {
	case Filter:
		f = v
	case *Filter:
		f = *v
	default:
		return fmt.Errorf("pgadapter: unsupported filter type %T", filter)
	}

	where, args := filterClause(f)
	if err := a.loadPolicy(m, where, args); err != nil {
		return err
	}
	a.filtered = true
	return nil
}

func (a *Adapter) loadPolicy(m model.Model, where string, args []any) error {
	query := fmt.Sprintf("SELECT ptype, v0, v1, v2, v3, v4, v5 FROM %s%s ORDER BY id", a.table, where)
	rows, err := a.db.Query(context.Background(), query, args...)
	if err != nil {
		return a.mapError("load policy", err)
	}
	defer rows.Close()

	for rows.Next() {
		var ptype string
		fields := make([]string, maxRuleFields)
		if err := rows.Scan(&ptype, &fields[0], &fields[1], &fields[2], &fields[3], &fields[4], &fields[5]); err != nil {
			return fmt.Errorf("pgadapter: load policy: %w", err)
		}
		line := ptype
		for _, f := range fields {
			if f == "" {
				break
			}
			line += ", " + f
		}
		if err := persist.LoadPolicyLine(line, m); err != nil {
			return fmt.Errorf("pgadapter: load policy: %w", err)
		}
	}
	if err := rows.Err(); err != nil {
		return fmt.Errorf("pgadapter: load policy: %w", err)
	}
	return nil
}

// filterClause builds the WHERE clause for a filtered load. Each non-empty
// filter slice becomes a column IN condition.
func filterClause(f Filter) (string, []any) {
	columns := []struct {
		name   string
		values []string
	}{
		{"ptype", f.Ptype},
		{"v0", f.V0},
		{"v1", f.V1},
		{"v2", f.V2},
		{"v3", f.V3},
		{"v4", f.V4},
		{"v5", f.V5},
	}

	var conds []string
	var args []any
	for _, col := range columns {
		if len(col.values) == 0 {
			continue
		}
		args = append(args, col.values)
		conds = append(conds, fmt.Sprintf("%s = ANY($%d)", col.name, len(args)))
	}
	if len(conds) == 0 {
		return "", nil
	}
	return " WHERE " + strings.Join(conds, " AND "), args
}

// SavePolicy replaces the stored rules with the model's current policy in
// one batch: delete everything, reinsert every p and g section rule.
func (a *Adapter) SavePolicy(m model.Model) error {
	b := &pgx.Batch{}
	b.Queue(fmt.Sprintf("DELETE FROM %s", a.table))
	for _, sec := range []string{"p", "g"} {
		for ptype, ast := range m[sec] {
			for _, rule := range ast.Policy {
				sql, args := a.insertStatement(ptype, rule)
				b.Queue(sql, args...)
			}
		}
	}
	return a.sendBatch("save policy", b)
}

// AddPolicy adds one rule.
func (a *Adapter) AddPolicy(sec string, ptype string, rule []string) error {
	sql, args := a.insertStatement(ptype, rule)
	if _, err := a.db.Exec(context.Background(), sql, args...); err != nil {
		return a.mapError("add policy", err)
	}
	return nil
}

// AddPolicies adds the rules in one batch.
func (a *Adapter) AddPolicies(sec string, ptype string, rules [][]string) error {
	if len(rules) == 0 {
		return nil
	}
	b := &pgx.Batch{}
	for _, rule := range rules {
		sql, args := a.insertStatement(ptype, rule)
		b.Queue(sql, args...)
	}
	return a.sendBatch("add policies", b)
}

// RemovePolicy removes one rule. Removing an absent rule is not an error.
func (a *Adapter) RemovePolicy(sec string, ptype string, rule []string) error {
	sql, args := a.deleteStatement(ptype, rule)
	if _, err := a.db.Exec(context.Background(), sql, args...); err != nil {
		return a.mapError("remove policy", err)
	}
	return nil
}

// RemovePolicies removes the rules in one batch. Rules already absent from
// the table delete zero rows and do not fail the batch.
func (a *Adapter) RemovePolicies(sec string, ptype string, rules [][]string) error {
	if len(rules) == 0 {
		return nil
	}
	b := &pgx.Batch{}
	for _, rule := range rules {
		sql, args := a.deleteStatement(ptype, rule)
		b.Queue(sql, args...)
	}
	return a.sendBatch("remove policies", b)
}

// RemoveFilteredPolicy removes rules whose columns match the non-empty
// field values starting at fieldIndex.
func (a *Adapter) RemoveFilteredPolicy(sec string, ptype string, fieldIndex int, fieldValues ...string) error {
	if fieldIndex < 0 || fieldIndex+len(fieldValues) > maxRuleFields {
		return fmt.Errorf("pgadapter: remove filtered policy: field range [%d, %d) out of bounds", fieldIndex, fieldIndex+len(fieldValues))
	}

	conds := []string{"ptype = $1"}
	args := []any{ptype}
	for i, v := range fieldValues {
		if v == "" {
			continue
		}
		args = append(args, v)
		conds = append(conds, fmt.Sprintf("v%d = $%d", fieldIndex+i, len(args)))
	}

	sql := fmt.Sprintf("DELETE FROM %s WHERE %s", a.table, strings.Join(conds, " AND "))
	if _, err := a.db.Exec(context.Background(), sql, args...); err != nil {
		return a.mapError("remove filtered policy", err)
	}
	return nil
}

// insertStatement builds the INSERT for one rule, padding missing v-fields
// with empty strings so rules of any arity share one statement shape.
func (a *Adapter) insertStatement(ptype string, rule []string) (string, []any) {
	args := make([]any, 0, maxRuleFields+1)
	args = append(args, ptype)
	for i := 0; i < maxRuleFields; i++ {
		if i < len(rule) {
			args = append(args, rule[i])
		} else {
			args = append(args, "")
		}
	}
	sql := fmt.Sprintf(
		"INSERT INTO %s (ptype, v0, v1, v2, v3, v4, v5) VALUES ($1, $2, $3, $4, $5, $6, $7)",
		a.table,
	)
	return sql, args
}

// deleteStatement builds the DELETE matching one exact rule.
func (a *Adapter) deleteStatement(ptype string, rule []string) (string, []any) {
	conds := []string{"ptype = $1"}
	args := []any{ptype}
	for i, v := range rule {
		args = append(args, v)
		conds = append(conds, fmt.Sprintf("v%d = $%d", i, len(args)))
	}
	return fmt.Sprintf("DELETE FROM %s WHERE %s", a.table, strings.Join(conds, " AND ")), args
}

// sendBatch runs a queued batch and surfaces the first statement error.
func (a *Adapter) sendBatch(op string, b *pgx.Batch) error {
	br := a.db.SendBatch(context.Background(), b)
	defer func() { _ = br.Close() }()
	for i := 0; i < b.Len(); i++ {
		if _, err := br.Exec(); err != nil {
			return a.mapError(op, err)
		}
	}
	return nil
}
