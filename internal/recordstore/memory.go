package recordstore

import (
	"context"
	"fmt"
	"sort"
	"strings"
	"sync"
	"time"

	"leadtrack/pkg/platform/sentinel"
)

// InMemory is a process-local Store used for tests and local runs.
// Unique columns are declared per table with WithUnique.
type InMemory struct {
	mu     sync.RWMutex
	tables map[string][]Row
	unique map[string][]string
	fail   error
}

// MemoryOption configures an InMemory store.
type MemoryOption func(*InMemory)

// WithUnique declares a unique column on a table.
func WithUnique(table, column string) MemoryOption {
	return func(m *InMemory) {
		m.unique[table] = append(m.unique[table], column)
	}
}

// NewInMemory constructs an empty in-memory store.
func NewInMemory(opts ...MemoryOption) *InMemory {
	m := &InMemory{
		tables: make(map[string][]Row),
		unique: make(map[string][]string),
	}
	for _, opt := range opts {
		opt(m)
	}
	return m
}

// FailWith makes every subsequent call return err until cleared with nil.
func (m *InMemory) FailWith(err error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.fail = err
}

// Seed inserts rows without constraint checks.
func (m *InMemory) Seed(table string, rows ...Row) {
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, r := range rows {
		m.tables[table] = append(m.tables[table], copyRow(r))
	}
}

func (m *InMemory) Select(_ context.Context, table string, q Query) ([]Row, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	if m.fail != nil {
		return nil, m.fail
	}
	out := make([]Row, 0)
	for _, r := range m.tables[table] {
		if Matches(r, q) {
			out = append(out, copyRow(r))
		}
	}
	if q.OrderBy != "" {
		sort.SliceStable(out, func(i, j int) bool {
			c := compare(out[i][q.OrderBy], out[j][q.OrderBy])
			if q.Descending {
				return c > 0
			}
			return c < 0
		})
	}
	if q.Limit > 0 && len(out) > q.Limit {
		out = out[:q.Limit]
	}
	return out, nil
}

func (m *InMemory) SelectOne(ctx context.Context, table string, q Query) (Row, error) {
	rows, err := m.Select(ctx, table, q)
	if err != nil {
		return nil, err
	}
	switch len(rows) {
	case 0:
		return nil, sentinel.ErrNotFound
	case 1:
		return rows[0], nil
	default:
		return nil, &Error{Provider: "memory", Code: "multiple_rows", Message: fmt.Sprintf("%d rows matched", len(rows))}
	}
}

func (m *InMemory) Insert(_ context.Context, table string, row Row) (Row, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.fail != nil {
		return nil, m.fail
	}
	for _, col := range m.unique[table] {
		v, ok := row[col]
		if !ok || v == nil {
			continue
		}
		for _, existing := range m.tables[table] {
			if compare(existing[col], v) == 0 {
				return nil, fmt.Errorf("duplicate %s: %w", col, sentinel.ErrConflict)
			}
		}
	}
	stored := copyRow(row)
	m.tables[table] = append(m.tables[table], stored)
	return copyRow(stored), nil
}

func (m *InMemory) Update(_ context.Context, table string, q Query, patch Row) ([]Row, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.fail != nil {
		return nil, m.fail
	}
	var out []Row
	for _, r := range m.tables[table] {
		if !Matches(r, q) {
			continue
		}
		for k, v := range patch {
			r[k] = v
		}
		out = append(out, copyRow(r))
	}
	if len(out) == 0 {
		return nil, sentinel.ErrNotFound
	}
	return out, nil
}

func (m *InMemory) Delete(_ context.Context, table string, q Query) ([]Row, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.fail != nil {
		return nil, m.fail
	}
	var kept, removed []Row
	for _, r := range m.tables[table] {
		if Matches(r, q) {
			removed = append(removed, r)
			continue
		}
		kept = append(kept, r)
	}
	if len(removed) == 0 {
		return nil, sentinel.ErrNotFound
	}
	m.tables[table] = kept
	return removed, nil
}

func (m *InMemory) Ping(_ context.Context, _ string) error {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.fail
}

// Matches evaluates q's filters against a row.
func Matches(r Row, q Query) bool {
	for _, f := range q.Filters {
		if !matchFilter(r, f) {
			return false
		}
	}
	if len(q.AnyOf) == 0 {
		return true
	}
	for _, f := range q.AnyOf {
		if matchFilter(r, f) {
			return true
		}
	}
	return false
}

func matchFilter(r Row, f Filter) bool {
	v, ok := r[f.Column]
	if !ok || v == nil {
		return false
	}
	switch f.Op {
	case OpEq:
		return compare(v, f.Value) == 0
	case OpGte:
		return compare(v, f.Value) >= 0
	case OpLte:
		return compare(v, f.Value) <= 0
	case OpILike:
		return strings.Contains(strings.ToLower(fmt.Sprint(v)), strings.ToLower(fmt.Sprint(f.Value)))
	default:
		return false
	}
}

// compare orders numbers numerically, times chronologically and everything
// else by its string form.
func compare(a, b any) int {
	if fa, ok := toFloat(a); ok {
		if fb, ok := toFloat(b); ok {
			switch {
			case fa < fb:
				return -1
			case fa > fb:
				return 1
			default:
				return 0
			}
		}
	}
	if ta, ok := a.(time.Time); ok {
		if tb, ok := b.(time.Time); ok {
			return ta.Compare(tb)
		}
	}
	return strings.Compare(fmt.Sprint(a), fmt.Sprint(b))
}

func toFloat(v any) (float64, bool) {
	switch n := v.(type) {
	case int:
		return float64(n), true
	case int32:
		return float64(n), true
	case int64:
		return float64(n), true
	case float32:
		return float64(n), true
	case float64:
		return n, true
	default:
		return 0, false
	}
}

func copyRow(r Row) Row {
	out := make(Row, len(r))
	for k, v := range r {
		out[k] = v
	}
	return out
}
