package postgrest

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"leadtrack/internal/recordstore"
	"leadtrack/pkg/platform/sentinel"
)

const testKey = "anon-key"

func newTestClient(t *testing.T, h http.HandlerFunc) *Client {
	t.Helper()
	srv := httptest.NewServer(h)
	t.Cleanup(srv.Close)
	return New(srv.URL, testKey, 2*time.Second)
}

func writeJSON(w http.ResponseWriter, status int, body string) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_, _ = io.WriteString(w, body)
}

func TestSelectOne(t *testing.T) {
	t.Run("sends credentials and decodes a single object", func(t *testing.T) {
		client := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
			assert.Equal(t, "/rest/v1/leads", r.URL.Path)
			assert.Equal(t, testKey, r.Header.Get("apikey"))
			assert.Equal(t, "Bearer "+testKey, r.Header.Get("Authorization"))
			assert.Equal(t, mediaSingleObject, r.Header.Get("Accept"))
			assert.Equal(t, "eq.12345678901", r.URL.Query().Get("cpf"))
			assert.Equal(t, "*", r.URL.Query().Get("select"))
			writeJSON(w, http.StatusOK, `{"cpf":"12345678901","etapa_atual":5,"valor_total":67.9,"produtos":["Kit"]}`)
		})

		row, err := client.SelectOne(context.Background(), "leads", recordstore.Where("cpf", "12345678901"))
		require.NoError(t, err)
		assert.Equal(t, int64(5), row["etapa_atual"])
		assert.Equal(t, 67.9, row["valor_total"])
		assert.Equal(t, []any{"Kit"}, row["produtos"])
	})

	t.Run("maps PGRST116 with zero rows to not found", func(t *testing.T) {
		client := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
			writeJSON(w, http.StatusNotAcceptable, `{"code":"PGRST116","details":"The result contains 0 rows","hint":null,"message":"JSON object requested, multiple (or no) rows returned"}`)
		})

		_, err := client.SelectOne(context.Background(), "leads", recordstore.Where("cpf", "1"))
		require.Error(t, err)
		assert.True(t, recordstore.IsNotFound(err))
		se, ok := recordstore.AsError(err)
		require.True(t, ok)
		assert.Equal(t, "PGRST116", se.Code)
		assert.Equal(t, http.StatusNotAcceptable, se.Status)
	})

	t.Run("multiple rows is a plain store error", func(t *testing.T) {
		client := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
			writeJSON(w, http.StatusNotAcceptable, `{"code":"PGRST116","details":"The result contains 2 rows","message":"JSON object requested, multiple (or no) rows returned"}`)
		})

		_, err := client.SelectOne(context.Background(), "leads", recordstore.Where("cpf", "1"))
		require.Error(t, err)
		assert.False(t, recordstore.IsNotFound(err))
	})
}

func TestInsert(t *testing.T) {
	t.Run("posts an array and returns the representation", func(t *testing.T) {
		client := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
			assert.Equal(t, http.MethodPost, r.Method)
			assert.Equal(t, "return=representation", r.Header.Get("Prefer"))
			var body []map[string]any
			require.NoError(t, json.NewDecoder(r.Body).Decode(&body))
			require.Len(t, body, 1)
			assert.Equal(t, "Maria", body[0]["nome_completo"])
			writeJSON(w, http.StatusCreated, `[{"id":"f9c3","nome_completo":"Maria"}]`)
		})

		row, err := client.Insert(context.Background(), "leads", recordstore.Row{"nome_completo": "Maria"})
		require.NoError(t, err)
		assert.Equal(t, "f9c3", row["id"])
	})

	t.Run("maps unique violations to conflict", func(t *testing.T) {
		client := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
			writeJSON(w, http.StatusConflict, `{"code":"23505","details":"Key (cpf)=(12345678901) already exists.","hint":null,"message":"duplicate key value violates unique constraint \"leads_cpf_key\""}`)
		})

		_, err := client.Insert(context.Background(), "leads", recordstore.Row{"cpf": "12345678901"})
		require.Error(t, err)
		assert.True(t, recordstore.IsConflict(err))
	})
}

func TestUpdateAndDelete(t *testing.T) {
	t.Run("empty representation means no row matched", func(t *testing.T) {
		client := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
			writeJSON(w, http.StatusOK, `[]`)
		})

		_, err := client.Update(context.Background(), "leads", recordstore.Where("cpf", "1"), recordstore.Row{"etapa_atual": 2})
		assert.ErrorIs(t, err, sentinel.ErrNotFound)
		_, err = client.Delete(context.Background(), "leads", recordstore.Where("cpf", "1"))
		assert.ErrorIs(t, err, sentinel.ErrNotFound)
	})

	t.Run("patch carries filters but no select", func(t *testing.T) {
		client := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
			assert.Equal(t, http.MethodPatch, r.Method)
			assert.Empty(t, r.URL.Query().Get("select"))
			assert.Equal(t, "eq.12345678901", r.URL.Query().Get("cpf"))
			writeJSON(w, http.StatusOK, `[{"cpf":"12345678901","etapa_atual":12}]`)
		})

		rows, err := client.Update(context.Background(), "leads", recordstore.Where("cpf", "12345678901"), recordstore.Row{"etapa_atual": 12})
		require.NoError(t, err)
		assert.Equal(t, int64(12), rows[0]["etapa_atual"])
	})
}

func TestNetworkFailure(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {}))
	url := srv.URL
	srv.Close()

	client := New(url, testKey, time.Second)
	err := client.Ping(context.Background(), "leads")
	require.Error(t, err)
	assert.True(t, errors.Is(err, sentinel.ErrUnavailable))
	_, ok := recordstore.AsError(err)
	assert.True(t, ok)
}

func TestEncodeQuery(t *testing.T) {
	from := time.Date(2025, 1, 2, 3, 4, 5, 0, time.UTC)
	v := encodeQuery(recordstore.Query{
		Filters: []recordstore.Filter{{Column: "created_at", Op: recordstore.OpGte, Value: from}},
		AnyOf: []recordstore.Filter{
			{Column: "Nome do Cliente", Op: recordstore.OpILike, Value: "ana paula"},
			{Column: "Documento", Op: recordstore.OpILike, Value: "123"},
		},
		OrderBy: "Nome do Cliente",
		Limit:   10,
	}, true)

	assert.Equal(t, "gte.2025-01-02T03:04:05Z", v.Get("created_at"))
	assert.Equal(t, `("Nome do Cliente".ilike."*ana paula*",Documento.ilike.*123*)`, v.Get("or"))
	assert.Equal(t, `"Nome do Cliente".asc`, v.Get("order"))
	assert.Equal(t, "10", v.Get("limit"))
}

func TestEncodeQueryEscapesLikePatterns(t *testing.T) {
	v := encodeQuery(recordstore.Query{
		Filters: []recordstore.Filter{{Column: "nome_completo", Op: recordstore.OpILike, Value: "a_b"}},
		AnyOf: []recordstore.Filter{
			{Column: "nome_completo", Op: recordstore.OpILike, Value: "a_b"},
			{Column: "cpf", Op: recordstore.OpILike, Value: "100%"},
		},
	}, true)

	assert.Equal(t, `ilike.*a\_b*`, v.Get("nome_completo"))
	assert.Equal(t, `(nome_completo.ilike."*a\\_b*",cpf.ilike."*100\\%*")`, v.Get("or"))
}
