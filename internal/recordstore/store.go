// Package recordstore is the generic table-store boundary the lead adapter
// talks to. Backends translate a Query into their native filter language and
// report the infrastructure facts in pkg/platform/sentinel.
package recordstore

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"leadtrack/pkg/platform/sentinel"
)

// Row is a single record keyed by column name. Values are JSON-compatible:
// string, float64, int64, bool, time.Time, []any, map[string]any or nil.
type Row map[string]any

// Operator is a comparison supported by every backend.
type Operator string

const (
	OpEq    Operator = "eq"
	OpGte   Operator = "gte"
	OpLte   Operator = "lte"
	OpILike Operator = "ilike" // case-insensitive substring match
)

var likeEscaper = strings.NewReplacer(`\`, `\\`, `%`, `\%`, `_`, `\_`)

// EscapeLike escapes the LIKE metacharacters in s so an OpILike value
// matches literally under the default backslash escape.
func EscapeLike(s string) string {
	return likeEscaper.Replace(s)
}

// Filter compares a column against a value.
type Filter struct {
	Column string
	Op     Operator
	Value  any
}

// Query selects rows. Filters are ANDed; AnyOf is an ORed group ANDed with
// the rest. An empty OrderBy leaves ordering to the backend.
type Query struct {
	Filters    []Filter
	AnyOf      []Filter
	OrderBy    string
	Descending bool
	Limit      int
}

// Where returns a query matching a single column equality.
func Where(column string, value any) Query {
	return Query{Filters: []Filter{{Column: column, Op: OpEq, Value: value}}}
}

// Store is the network-accessible record store.
//
// SelectOne, Update and Delete return sentinel.ErrNotFound when no row
// matches. Insert returns sentinel.ErrConflict on a unique violation. Other
// failures are *Error values.
type Store interface {
	Select(ctx context.Context, table string, q Query) ([]Row, error)
	SelectOne(ctx context.Context, table string, q Query) (Row, error)
	Insert(ctx context.Context, table string, row Row) (Row, error)
	Update(ctx context.Context, table string, q Query, patch Row) ([]Row, error)
	Delete(ctx context.Context, table string, q Query) ([]Row, error)
	Ping(ctx context.Context, table string) error
}

// Error is a provider failure with its diagnostic code and message.
type Error struct {
	Provider string
	Code     string
	Message  string
	Details  string
	Hint     string
	Status   int
	Err      error
}

func (e *Error) Error() string {
	msg := fmt.Sprintf("%s store error", e.Provider)
	if e.Code != "" {
		msg += " [" + e.Code + "]"
	}
	if e.Message != "" {
		msg += ": " + e.Message
	}
	if e.Err != nil {
		msg += ": " + e.Err.Error()
	}
	return msg
}

func (e *Error) Unwrap() error {
	return e.Err
}

// LogAttrs returns the diagnostic fields as slog key/value pairs.
func (e *Error) LogAttrs() []any {
	return []any{
		"provider", e.Provider,
		"code", e.Code,
		"message", e.Message,
		"details", e.Details,
		"hint", e.Hint,
		"status", e.Status,
	}
}

// AsError extracts a provider error from err's chain.
func AsError(err error) (*Error, bool) {
	var se *Error
	if errors.As(err, &se) {
		return se, true
	}
	return nil, false
}

// IsNotFound reports whether err means no row matched.
func IsNotFound(err error) bool {
	return errors.Is(err, sentinel.ErrNotFound)
}

// IsConflict reports whether err means a unique constraint rejected a write.
func IsConflict(err error) bool {
	return errors.Is(err, sentinel.ErrConflict)
}
