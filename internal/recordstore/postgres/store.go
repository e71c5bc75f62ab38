// Package postgres implements recordstore.Store directly against PostgreSQL
// through a pgx connection pool.
package postgres

import (
	"context"
	"errors"
	"fmt"
	"slices"
	"strconv"
	"strings"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgtype"
	"github.com/jackc/pgx/v5/pgxpool"

	"leadtrack/internal/recordstore"
	"leadtrack/pkg/platform/sentinel"
)

const (
	providerName        = "postgres"
	codeUniqueViolation = "23505"
)

// Store persists rows in PostgreSQL tables whose column names match the
// record keys.
type Store struct {
	pool *pgxpool.Pool
}

// New constructs a PostgreSQL-backed record store.
func New(pool *pgxpool.Pool) *Store {
	return &Store{pool: pool}
}

func (s *Store) Select(ctx context.Context, table string, q recordstore.Query) ([]recordstore.Row, error) {
	sql, args := buildSelect(table, q)
	return s.query(ctx, "select", sql, args...)
}

func (s *Store) SelectOne(ctx context.Context, table string, q recordstore.Query) (recordstore.Row, error) {
	q.Limit = 2
	rows, err := s.Select(ctx, table, q)
	if err != nil {
		return nil, err
	}
	switch len(rows) {
	case 0:
		return nil, sentinel.ErrNotFound
	case 1:
		return rows[0], nil
	default:
		return nil, &recordstore.Error{Provider: providerName, Code: "multiple_rows", Message: "more than one row matched"}
	}
}

func (s *Store) Insert(ctx context.Context, table string, row recordstore.Row) (recordstore.Row, error) {
	sql, args := buildInsert(table, row)
	rows, err := s.query(ctx, "insert", sql, args...)
	if err != nil {
		return nil, err
	}
	if len(rows) == 0 {
		return nil, &recordstore.Error{Provider: providerName, Message: "insert returned no row"}
	}
	return rows[0], nil
}

func (s *Store) Update(ctx context.Context, table string, q recordstore.Query, patch recordstore.Row) ([]recordstore.Row, error) {
	if len(patch) == 0 {
		return nil, &recordstore.Error{Provider: providerName, Code: "empty_patch", Message: "update without columns"}
	}
	sql, args := buildUpdate(table, q, patch)
	rows, err := s.query(ctx, "update", sql, args...)
	if err != nil {
		return nil, err
	}
	if len(rows) == 0 {
		return nil, sentinel.ErrNotFound
	}
	return rows, nil
}

func (s *Store) Delete(ctx context.Context, table string, q recordstore.Query) ([]recordstore.Row, error) {
	sql, args := buildDelete(table, q)
	rows, err := s.query(ctx, "delete", sql, args...)
	if err != nil {
		return nil, err
	}
	if len(rows) == 0 {
		return nil, sentinel.ErrNotFound
	}
	return rows, nil
}

func (s *Store) Ping(ctx context.Context, table string) error {
	_, err := s.Select(ctx, table, recordstore.Query{Limit: 1})
	return err
}

func (s *Store) query(ctx context.Context, op, sql string, args ...any) ([]recordstore.Row, error) {
	rows, err := s.pool.Query(ctx, sql, args...)
	if err != nil {
		return nil, wrapError(op, err)
	}
	maps, err := pgx.CollectRows(rows, pgx.RowToMap)
	if err != nil {
		return nil, wrapError(op, err)
	}
	out := make([]recordstore.Row, 0, len(maps))
	for _, m := range maps {
		row := make(recordstore.Row, len(m))
		for k, v := range m {
			row[k] = normalizeValue(v)
		}
		out = append(out, row)
	}
	return out, nil
}

func wrapError(op string, err error) error {
	se := &recordstore.Error{Provider: providerName, Message: op + " failed", Err: err}
	var pgErr *pgconn.PgError
	if errors.As(err, &pgErr) {
		se.Code = pgErr.Code
		se.Message = pgErr.Message
		se.Details = pgErr.Detail
		se.Hint = pgErr.Hint
		if pgErr.Code == codeUniqueViolation {
			se.Err = errors.Join(err, sentinel.ErrConflict)
		}
		return se
	}
	if errors.Is(err, pgx.ErrNoRows) {
		return sentinel.ErrNotFound
	}
	if pgconn.SafeToRetry(err) || pgconn.Timeout(err) {
		se.Code = "network"
		se.Err = errors.Join(err, sentinel.ErrUnavailable)
	}
	return se
}

// normalizeValue maps pgx scan types onto the recordstore value set.
func normalizeValue(v any) any {
	switch t := v.(type) {
	case int16:
		return int64(t)
	case int32:
		return int64(t)
	case float32:
		return float64(t)
	case [16]byte:
		return uuid.UUID(t).String()
	case pgtype.Numeric:
		f, err := t.Float64Value()
		if err != nil || !f.Valid {
			return nil
		}
		return f.Float64
	case []any:
		for i := range t {
			t[i] = normalizeValue(t[i])
		}
		return t
	default:
		return v
	}
}

type builder struct {
	args []any
}

func (b *builder) bind(v any) string {
	b.args = append(b.args, v)
	return "$" + strconv.Itoa(len(b.args))
}

func ident(name string) string {
	return pgx.Identifier{name}.Sanitize()
}

func (b *builder) predicate(f recordstore.Filter) string {
	col := ident(f.Column)
	switch f.Op {
	case recordstore.OpGte:
		return col + " >= " + b.bind(f.Value)
	case recordstore.OpLte:
		return col + " <= " + b.bind(f.Value)
	case recordstore.OpILike:
		return col + "::text ILIKE " + b.bind("%"+recordstore.EscapeLike(fmt.Sprint(f.Value))+"%") + ` ESCAPE '\'`
	default:
		if f.Value == nil {
			return col + " IS NULL"
		}
		return col + " = " + b.bind(f.Value)
	}
}

func (b *builder) where(q recordstore.Query) string {
	var clauses []string
	for _, f := range q.Filters {
		clauses = append(clauses, b.predicate(f))
	}
	if len(q.AnyOf) > 0 {
		ors := make([]string, 0, len(q.AnyOf))
		for _, f := range q.AnyOf {
			ors = append(ors, b.predicate(f))
		}
		clauses = append(clauses, "("+strings.Join(ors, " OR ")+")")
	}
	if len(clauses) == 0 {
		return ""
	}
	return " WHERE " + strings.Join(clauses, " AND ")
}

func buildSelect(table string, q recordstore.Query) (string, []any) {
	b := &builder{}
	sql := "SELECT * FROM " + ident(table) + b.where(q)
	if q.OrderBy != "" {
		sql += " ORDER BY " + ident(q.OrderBy)
		if q.Descending {
			sql += " DESC"
		} else {
			sql += " ASC"
		}
	}
	if q.Limit > 0 {
		sql += " LIMIT " + strconv.Itoa(q.Limit)
	}
	return sql, b.args
}

func buildInsert(table string, row recordstore.Row) (string, []any) {
	b := &builder{}
	cols := sortedKeys(row)
	names := make([]string, len(cols))
	params := make([]string, len(cols))
	for i, c := range cols {
		names[i] = ident(c)
		params[i] = b.bind(row[c])
	}
	sql := "INSERT INTO " + ident(table) + " (" + strings.Join(names, ", ") + ") VALUES (" + strings.Join(params, ", ") + ") RETURNING *"
	return sql, b.args
}

func buildUpdate(table string, q recordstore.Query, patch recordstore.Row) (string, []any) {
	b := &builder{}
	cols := sortedKeys(patch)
	sets := make([]string, len(cols))
	for i, c := range cols {
		sets[i] = ident(c) + " = " + b.bind(patch[c])
	}
	sql := "UPDATE " + ident(table) + " SET " + strings.Join(sets, ", ") + b.where(q) + " RETURNING *"
	return sql, b.args
}

func buildDelete(table string, q recordstore.Query) (string, []any) {
	b := &builder{}
	return "DELETE FROM " + ident(table) + b.where(q) + " RETURNING *", b.args
}

func sortedKeys(r recordstore.Row) []string {
	keys := make([]string, 0, len(r))
	for k := range r {
		keys = append(keys, k)
	}
	slices.Sort(keys)
	return keys
}
