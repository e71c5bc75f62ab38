// Package postgrest implements recordstore.Store against a PostgREST endpoint,
// which is how the hosted database service exposes its tables.
package postgrest

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"

	"leadtrack/internal/recordstore"
	"leadtrack/pkg/platform/sentinel"
)

const (
	providerName = "postgrest"

	// codeNoRows is returned by PostgREST when a single-object request matches nothing.
	codeNoRows = "PGRST116"
	// codeUniqueViolation is the PostgreSQL SQLSTATE for unique_violation.
	codeUniqueViolation = "23505"

	mediaSingleObject = "application/vnd.pgrst.object+json"
)

// Client talks to <baseURL>/rest/v1. It holds no global state; construct one
// per backing project and inject it.
type Client struct {
	baseURL string
	apiKey  string
	schema  string
	http    *http.Client
	tracer  trace.Tracer
}

// Option configures a Client.
type Option func(*Client)

// WithHTTPClient replaces the default HTTP client.
func WithHTTPClient(hc *http.Client) Option {
	return func(c *Client) {
		if hc != nil {
			c.http = hc
		}
	}
}

// WithSchema selects a non-default PostgreSQL schema via Accept-Profile.
func WithSchema(schema string) Option {
	return func(c *Client) {
		c.schema = schema
	}
}

// New constructs a client. baseURL is the project URL without the /rest/v1 suffix.
func New(baseURL, apiKey string, timeout time.Duration, opts ...Option) *Client {
	c := &Client{
		baseURL: strings.TrimRight(baseURL, "/") + "/rest/v1",
		apiKey:  apiKey,
		http:    &http.Client{Timeout: timeout},
		tracer:  otel.Tracer("leadtrack/recordstore/postgrest"),
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

func (c *Client) Select(ctx context.Context, table string, q recordstore.Query) ([]recordstore.Row, error) {
	var rows []recordstore.Row
	err := c.do(ctx, http.MethodGet, table, encodeQuery(q, true), nil, nil, &rows)
	if err != nil {
		return nil, err
	}
	return rows, nil
}

func (c *Client) SelectOne(ctx context.Context, table string, q recordstore.Query) (recordstore.Row, error) {
	var row recordstore.Row
	headers := map[string]string{"Accept": mediaSingleObject}
	if err := c.do(ctx, http.MethodGet, table, encodeQuery(q, true), nil, headers, &row); err != nil {
		return nil, err
	}
	return row, nil
}

func (c *Client) Insert(ctx context.Context, table string, row recordstore.Row) (recordstore.Row, error) {
	var rows []recordstore.Row
	headers := map[string]string{"Prefer": "return=representation"}
	if err := c.do(ctx, http.MethodPost, table, url.Values{}, []recordstore.Row{row}, headers, &rows); err != nil {
		return nil, err
	}
	if len(rows) == 0 {
		return nil, &recordstore.Error{Provider: providerName, Message: "insert returned no representation"}
	}
	return rows[0], nil
}

func (c *Client) Update(ctx context.Context, table string, q recordstore.Query, patch recordstore.Row) ([]recordstore.Row, error) {
	var rows []recordstore.Row
	headers := map[string]string{"Prefer": "return=representation"}
	if err := c.do(ctx, http.MethodPatch, table, encodeQuery(q, false), patch, headers, &rows); err != nil {
		return nil, err
	}
	if len(rows) == 0 {
		return nil, sentinel.ErrNotFound
	}
	return rows, nil
}

func (c *Client) Delete(ctx context.Context, table string, q recordstore.Query) ([]recordstore.Row, error) {
	var rows []recordstore.Row
	headers := map[string]string{"Prefer": "return=representation"}
	if err := c.do(ctx, http.MethodDelete, table, encodeQuery(q, false), nil, headers, &rows); err != nil {
		return nil, err
	}
	if len(rows) == 0 {
		return nil, sentinel.ErrNotFound
	}
	return rows, nil
}

// Ping reads at most one row from table, the same probe the widget used to
// verify its connection.
func (c *Client) Ping(ctx context.Context, table string) error {
	_, err := c.Select(ctx, table, recordstore.Query{Limit: 1})
	return err
}

func (c *Client) do(ctx context.Context, method, table string, params url.Values, body any, headers map[string]string, out any) error {
	ctx, span := c.tracer.Start(ctx, "postgrest "+method+" "+table,
		trace.WithSpanKind(trace.SpanKindClient),
		trace.WithAttributes(
			attribute.String("db.system", "postgresql"),
			attribute.String("db.collection.name", table),
			attribute.String("http.request.method", method),
		))
	defer span.End()

	err := c.roundTrip(ctx, method, table, params, body, headers, out)
	if err != nil && !errors.Is(err, sentinel.ErrNotFound) {
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
	}
	return err
}

func (c *Client) roundTrip(ctx context.Context, method, table string, params url.Values, body any, headers map[string]string, out any) error {
	endpoint := c.baseURL + "/" + url.PathEscape(table)
	if len(params) > 0 {
		endpoint += "?" + params.Encode()
	}

	var reader io.Reader
	if body != nil {
		payload, err := json.Marshal(body)
		if err != nil {
			return fmt.Errorf("encode %s payload: %w", table, err)
		}
		reader = bytes.NewReader(payload)
	}

	req, err := http.NewRequestWithContext(ctx, method, endpoint, reader)
	if err != nil {
		return fmt.Errorf("build %s request: %w", table, err)
	}
	req.Header.Set("apikey", c.apiKey)
	req.Header.Set("Authorization", "Bearer "+c.apiKey)
	req.Header.Set("Accept", "application/json")
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	if c.schema != "" {
		req.Header.Set("Accept-Profile", c.schema)
		req.Header.Set("Content-Profile", c.schema)
	}
	for k, v := range headers {
		req.Header.Set(k, v)
	}

	resp, err := c.http.Do(req)
	if err != nil {
		return &recordstore.Error{
			Provider: providerName,
			Code:     "network",
			Message:  "request failed",
			Err:      errors.Join(err, sentinel.ErrUnavailable),
		}
	}
	defer resp.Body.Close()

	raw, err := io.ReadAll(resp.Body)
	if err != nil {
		return &recordstore.Error{Provider: providerName, Code: "network", Message: "read response", Status: resp.StatusCode, Err: err}
	}

	if resp.StatusCode >= http.StatusBadRequest {
		return parseError(resp.StatusCode, raw)
	}
	if out == nil || len(raw) == 0 {
		return nil
	}
	dec := json.NewDecoder(bytes.NewReader(raw))
	dec.UseNumber()
	if err := dec.Decode(out); err != nil {
		return &recordstore.Error{Provider: providerName, Code: "bad_response", Message: "decode response", Status: resp.StatusCode, Err: err}
	}
	normalizeNumbers(out)
	return nil
}

type errorBody struct {
	Code    string  `json:"code"`
	Message string  `json:"message"`
	Details *string `json:"details"`
	Hint    *string `json:"hint"`
}

// parseError maps a PostgREST error envelope onto the recordstore taxonomy.
func parseError(status int, raw []byte) error {
	var body errorBody
	if err := json.Unmarshal(raw, &body); err != nil {
		body.Message = strings.TrimSpace(string(raw))
	}
	se := &recordstore.Error{
		Provider: providerName,
		Code:     body.Code,
		Message:  body.Message,
		Status:   status,
	}
	if body.Details != nil {
		se.Details = *body.Details
	}
	if body.Hint != nil {
		se.Hint = *body.Hint
	}
	switch {
	case body.Code == codeNoRows && (se.Details == "" || strings.Contains(se.Details, "0 rows")):
		se.Err = sentinel.ErrNotFound
	case body.Code == codeUniqueViolation || status == http.StatusConflict:
		se.Err = sentinel.ErrConflict
	case status == http.StatusServiceUnavailable || status == http.StatusBadGateway || status == http.StatusGatewayTimeout:
		se.Err = sentinel.ErrUnavailable
	}
	return se
}

// encodeQuery renders q as PostgREST query parameters.
func encodeQuery(q recordstore.Query, read bool) url.Values {
	v := url.Values{}
	if read {
		v.Set("select", "*")
	}
	for _, f := range q.Filters {
		v.Add(f.Column, string(f.Op)+"."+formatValue(f.Op, f.Value, false))
	}
	if len(q.AnyOf) > 0 {
		parts := make([]string, 0, len(q.AnyOf))
		for _, f := range q.AnyOf {
			parts = append(parts, quoteIdent(f.Column)+"."+string(f.Op)+"."+formatValue(f.Op, f.Value, true))
		}
		v.Set("or", "("+strings.Join(parts, ",")+")")
	}
	if q.OrderBy != "" {
		dir := "asc"
		if q.Descending {
			dir = "desc"
		}
		v.Set("order", quoteIdent(q.OrderBy)+"."+dir)
	}
	if q.Limit > 0 {
		v.Set("limit", strconv.Itoa(q.Limit))
	}
	return v
}

func formatValue(op recordstore.Operator, value any, inList bool) string {
	var s string
	switch t := value.(type) {
	case time.Time:
		s = t.UTC().Format(time.RFC3339Nano)
	case nil:
		s = "null"
	default:
		s = fmt.Sprint(t)
	}
	if op == recordstore.OpILike {
		// PostgREST turns every * into %, so a literal * cannot be expressed.
		s = "*" + recordstore.EscapeLike(s) + "*"
	}
	if inList && strings.ContainsAny(s, ",.:()\" \\") {
		s = `"` + quotedEscaper.Replace(s) + `"`
	}
	return s
}

var quotedEscaper = strings.NewReplacer(`\`, `\\`, `"`, `\"`)

// quoteIdent wraps column names that are not plain identifiers, such as the
// legacy table's labeled columns.
func quoteIdent(col string) string {
	for _, r := range col {
		if !(r == '_' || (r >= 'a' && r <= 'z') || (r >= 'A' && r <= 'Z') || (r >= '0' && r <= '9')) {
			return `"` + col + `"`
		}
	}
	return col
}

// normalizeNumbers converts json.Number values to int64 or float64 in place.
func normalizeNumbers(out any) {
	switch v := out.(type) {
	case *recordstore.Row:
		normalizeRow(*v)
	case *[]recordstore.Row:
		for _, r := range *v {
			normalizeRow(r)
		}
	}
}

func normalizeRow(r recordstore.Row) {
	for k, val := range r {
		r[k] = normalizeValue(val)
	}
}

func normalizeValue(val any) any {
	switch n := val.(type) {
	case json.Number:
		if i, err := n.Int64(); err == nil {
			return i
		}
		if f, err := n.Float64(); err == nil {
			return f
		}
		return n.String()
	case []any:
		for i := range n {
			n[i] = normalizeValue(n[i])
		}
		return n
	case map[string]any:
		for k := range n {
			n[k] = normalizeValue(n[k])
		}
		return n
	default:
		return val
	}
}
