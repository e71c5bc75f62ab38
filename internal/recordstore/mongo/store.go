// Package mongo implements recordstore.Store over MongoDB collections, one
// collection per table.
package mongo

import (
	"context"
	"errors"
	"fmt"
	"regexp"
	"strconv"
	"time"

	"go.mongodb.org/mongo-driver/v2/bson"
	"go.mongodb.org/mongo-driver/v2/mongo"
	"go.mongodb.org/mongo-driver/v2/mongo/options"

	"leadtrack/internal/recordstore"
	"leadtrack/pkg/platform/sentinel"
)

const providerName = "mongo"

// Store reads and writes rows as MongoDB documents. The driver-assigned _id
// is never exposed as a column.
type Store struct {
	db *mongo.Database
}

// Connect opens a client for uri and pings the primary.
func Connect(ctx context.Context, uri string) (*mongo.Client, error) {
	client, err := mongo.Connect(options.Client().ApplyURI(uri))
	if err != nil {
		return nil, fmt.Errorf("connect mongo: %w", err)
	}
	if err := client.Ping(ctx, nil); err != nil {
		_ = client.Disconnect(context.Background())
		return nil, fmt.Errorf("ping mongo: %w", err)
	}
	return client, nil
}

// New constructs a store over db.
func New(db *mongo.Database) *Store {
	return &Store{db: db}
}

// EnsureUnique creates a unique index on column so Insert can report conflicts.
func (s *Store) EnsureUnique(ctx context.Context, table, column string) error {
	_, err := s.db.Collection(table).Indexes().CreateOne(ctx, mongo.IndexModel{
		Keys:    bson.D{{Key: column, Value: 1}},
		Options: options.Index().SetUnique(true),
	})
	if err != nil {
		return wrapError("create index", err)
	}
	return nil
}

func (s *Store) Select(ctx context.Context, table string, q recordstore.Query) ([]recordstore.Row, error) {
	return s.find(ctx, table, Translate(q), q)
}

func (s *Store) find(ctx context.Context, table string, filter bson.D, q recordstore.Query) ([]recordstore.Row, error) {
	opts := options.Find().SetProjection(bson.D{{Key: "_id", Value: 0}})
	if q.OrderBy != "" {
		dir := 1
		if q.Descending {
			dir = -1
		}
		opts.SetSort(bson.D{{Key: q.OrderBy, Value: dir}})
	}
	if q.Limit > 0 {
		opts.SetLimit(int64(q.Limit))
	}
	cur, err := s.db.Collection(table).Find(ctx, filter, opts)
	if err != nil {
		return nil, wrapError("find", err)
	}
	var docs []bson.M
	if err := cur.All(ctx, &docs); err != nil {
		return nil, wrapError("decode", err)
	}
	rows := make([]recordstore.Row, 0, len(docs))
	for _, d := range docs {
		rows = append(rows, toRow(d))
	}
	return rows, nil
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
		return nil, &recordstore.Error{Provider: providerName, Code: "multiple_rows", Message: "more than one document matched"}
	}
}

func (s *Store) Insert(ctx context.Context, table string, row recordstore.Row) (recordstore.Row, error) {
	doc := bson.M{}
	for k, v := range row {
		doc[k] = v
	}
	res, err := s.db.Collection(table).InsertOne(ctx, doc)
	if err != nil {
		return nil, wrapError("insert", err)
	}
	var out bson.M
	err = s.db.Collection(table).FindOne(ctx, bson.D{{Key: "_id", Value: res.InsertedID}},
		options.FindOne().SetProjection(bson.D{{Key: "_id", Value: 0}})).Decode(&out)
	if err != nil {
		return nil, wrapError("read back", err)
	}
	return toRow(out), nil
}

func (s *Store) Update(ctx context.Context, table string, q recordstore.Query, patch recordstore.Row) ([]recordstore.Row, error) {
	coll := s.db.Collection(table)
	ids, err := s.matchingIDs(ctx, coll, q)
	if err != nil {
		return nil, err
	}
	set := bson.M{}
	for k, v := range patch {
		set[k] = v
	}
	if _, err := coll.UpdateMany(ctx, byIDs(ids), bson.D{{Key: "$set", Value: set}}); err != nil {
		return nil, wrapError("update", err)
	}
	return s.findMatched(ctx, table, ids)
}

func (s *Store) Delete(ctx context.Context, table string, q recordstore.Query) ([]recordstore.Row, error) {
	coll := s.db.Collection(table)
	ids, err := s.matchingIDs(ctx, coll, q)
	if err != nil {
		return nil, err
	}
	rows, err := s.findMatched(ctx, table, ids)
	if err != nil {
		return nil, err
	}
	if _, err := coll.DeleteMany(ctx, byIDs(ids)); err != nil {
		return nil, wrapError("delete", err)
	}
	return rows, nil
}

// findMatched rereads documents by _id. Documents removed since they were
// matched are gone; none left is reported as not found.
func (s *Store) findMatched(ctx context.Context, table string, ids []any) ([]recordstore.Row, error) {
	rows, err := s.find(ctx, table, byIDs(ids), recordstore.Query{})
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

func (s *Store) matchingIDs(ctx context.Context, coll *mongo.Collection, q recordstore.Query) ([]any, error) {
	cur, err := coll.Find(ctx, Translate(q), options.Find().SetProjection(bson.D{{Key: "_id", Value: 1}}))
	if err != nil {
		return nil, wrapError("find", err)
	}
	var docs []bson.M
	if err := cur.All(ctx, &docs); err != nil {
		return nil, wrapError("decode", err)
	}
	if len(docs) == 0 {
		return nil, sentinel.ErrNotFound
	}
	ids := make([]any, len(docs))
	for i, d := range docs {
		ids[i] = d["_id"]
	}
	return ids, nil
}

// Translate renders q as a MongoDB filter document.
func Translate(q recordstore.Query) bson.D {
	filter := bson.D{}
	for _, f := range q.Filters {
		filter = append(filter, bson.E{Key: f.Column, Value: condition(f)})
	}
	if len(q.AnyOf) > 0 {
		ors := bson.A{}
		for _, f := range q.AnyOf {
			ors = append(ors, bson.D{{Key: f.Column, Value: condition(f)}})
		}
		filter = append(filter, bson.E{Key: "$or", Value: ors})
	}
	return filter
}

func byIDs(ids []any) bson.D {
	return bson.D{{Key: "_id", Value: bson.D{{Key: "$in", Value: ids}}}}
}

func condition(f recordstore.Filter) any {
	switch f.Op {
	case recordstore.OpGte:
		return bson.D{{Key: "$gte", Value: f.Value}}
	case recordstore.OpLte:
		return bson.D{{Key: "$lte", Value: f.Value}}
	case recordstore.OpILike:
		return bson.Regex{Pattern: regexp.QuoteMeta(fmt.Sprint(f.Value)), Options: "i"}
	default:
		return f.Value
	}
}

func wrapError(op string, err error) error {
	if errors.Is(err, mongo.ErrNoDocuments) {
		return sentinel.ErrNotFound
	}
	se := &recordstore.Error{Provider: providerName, Message: op + " failed", Err: err}
	var we mongo.WriteException
	if errors.As(err, &we) && len(we.WriteErrors) > 0 {
		se.Code = strconv.Itoa(we.WriteErrors[0].Code)
		se.Message = we.WriteErrors[0].Message
	}
	var ce mongo.CommandError
	if errors.As(err, &ce) {
		se.Code = ce.Name
		se.Message = ce.Message
	}
	switch {
	case mongo.IsDuplicateKeyError(err):
		se.Err = errors.Join(err, sentinel.ErrConflict)
	case mongo.IsNetworkError(err) || mongo.IsTimeout(err):
		se.Code = "network"
		se.Err = errors.Join(err, sentinel.ErrUnavailable)
	}
	return se
}

func toRow(doc bson.M) recordstore.Row {
	row := make(recordstore.Row, len(doc))
	for k, v := range doc {
		if k == "_id" {
			continue
		}
		row[k] = normalizeValue(v)
	}
	return row
}

// normalizeValue maps BSON decode types onto the recordstore value set.
func normalizeValue(v any) any {
	switch t := v.(type) {
	case int32:
		return int64(t)
	case bson.DateTime:
		return t.Time().UTC()
	case bson.Decimal128:
		f, err := strconv.ParseFloat(t.String(), 64)
		if err != nil {
			return t.String()
		}
		return f
	case bson.ObjectID:
		return t.Hex()
	case bson.A:
		out := make([]any, len(t))
		for i := range t {
			out[i] = normalizeValue(t[i])
		}
		return out
	case bson.D:
		out := make(map[string]any, len(t))
		for _, e := range t {
			out[e.Key] = normalizeValue(e.Value)
		}
		return out
	case bson.M:
		out := make(map[string]any, len(t))
		for k, e := range t {
			out[k] = normalizeValue(e)
		}
		return out
	case time.Time:
		return t.UTC()
	default:
		return v
	}
}
