package mongo

import (
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"go.mongodb.org/mongo-driver/v2/bson"
	"go.mongodb.org/mongo-driver/v2/mongo"

	"leadtrack/internal/recordstore"
	"leadtrack/pkg/platform/sentinel"
)

func TestTranslate(t *testing.T) {
	from := time.Date(2025, 1, 1, 0, 0, 0, 0, time.UTC)
	got := Translate(recordstore.Query{
		Filters: []recordstore.Filter{
			{Column: "etapa_atual", Op: recordstore.OpEq, Value: 5},
			{Column: "created_at", Op: recordstore.OpGte, Value: from},
		},
		AnyOf: []recordstore.Filter{
			{Column: "nome_completo", Op: recordstore.OpILike, Value: "a.b"},
		},
	})

	want := bson.D{
		{Key: "etapa_atual", Value: 5},
		{Key: "created_at", Value: bson.D{{Key: "$gte", Value: from}}},
		{Key: "$or", Value: bson.A{
			bson.D{{Key: "nome_completo", Value: bson.Regex{Pattern: `a\.b`, Options: "i"}}},
		}},
	}
	assert.Equal(t, want, got)
	assert.Empty(t, Translate(recordstore.Query{}))
}

func TestNormalizeValue(t *testing.T) {
	at := time.Date(2025, 5, 6, 7, 8, 9, 0, time.UTC)
	dec, err := bson.ParseDecimal128("67.90")
	assert.NoError(t, err)

	row := toRow(bson.M{
		"_id":         bson.NewObjectID(),
		"etapa_atual": int32(4),
		"created_at":  bson.NewDateTimeFromTime(at),
		"valor_total": dec,
		"produtos":    bson.A{"Kit", int32(2)},
		"meta":        bson.D{{Key: "k", Value: "v"}},
	})

	assert.NotContains(t, row, "_id")
	assert.Equal(t, int64(4), row["etapa_atual"])
	assert.Equal(t, at, row["created_at"])
	assert.InDelta(t, 67.9, row["valor_total"], 0.0001)
	assert.Equal(t, []any{"Kit", int64(2)}, row["produtos"])
	assert.Equal(t, map[string]any{"k": "v"}, row["meta"])
}

func TestWrapError(t *testing.T) {
	assert.ErrorIs(t, wrapError("find", mongo.ErrNoDocuments), sentinel.ErrNotFound)

	dup := mongo.WriteException{WriteErrors: []mongo.WriteError{{Code: 11000, Message: "E11000 duplicate key error"}}}
	err := wrapError("insert", dup)
	assert.True(t, recordstore.IsConflict(err))
	se, ok := recordstore.AsError(err)
	assert.True(t, ok)
	assert.Equal(t, "11000", se.Code)

	assert.False(t, recordstore.IsConflict(wrapError("insert", errors.New("boom"))))
}
