// Package schema maps lead rows between the two table layouts the record
// store holds and the canonical models.Lead.
package schema

import (
	"time"

	"leadtrack/internal/leads/models"
	"leadtrack/internal/recordstore"
	id "leadtrack/pkg/domain"
	dErrors "leadtrack/pkg/domain-errors"
)

// Variant names a table layout.
type Variant string

const (
	// VariantLegacy is the flat table with Portuguese labeled columns. It has
	// no stage or payment status columns.
	VariantLegacy Variant = "legacy"
	// VariantNormalized is the snake_case table with full lead tracking.
	VariantNormalized Variant = "normalized"
)

func ParseVariant(raw string) (Variant, error) {
	switch v := Variant(raw); v {
	case VariantLegacy, VariantNormalized:
		return v, nil
	default:
		return "", dErrors.New(dErrors.CodeValidation, "schema variant must be legacy or normalized")
	}
}

func (v Variant) String() string {
	return string(v)
}

// Columns is the field-mapping table of one variant. An empty column means
// the variant does not store that field.
type Columns struct {
	Table         string
	ID            string
	FullName      string
	NationalID    string
	Email         string
	Phone         string
	Address       string
	TotalValue    string
	PaymentMethod string
	Origin        string
	Products      string
	OrderBumps    string
	Stage         string
	PaymentStatus string
	CreatedAt     string
	UpdatedAt     string
}

var legacyColumns = Columns{
	Table:         "logr",
	FullName:      "Nome do Cliente",
	NationalID:    "Documento",
	Email:         "Email",
	Phone:         "Telefone",
	Address:       "Endereço",
	TotalValue:    "Valor Total Venda",
	PaymentMethod: "Meio de Pagamento",
	Origin:        "Origem",
	Products:      "Produto",
	CreatedAt:     "created_at",
}

var normalizedColumns = Columns{
	Table:         "leads",
	ID:            "id",
	FullName:      "nome_completo",
	NationalID:    "cpf",
	Email:         "email",
	Phone:         "telefone",
	Address:       "endereco",
	TotalValue:    "valor_total",
	PaymentMethod: "meio_pagamento",
	Origin:        "origem",
	Products:      "produtos",
	OrderBumps:    "order_bumps",
	Stage:         "etapa_atual",
	PaymentStatus: "status_pagamento",
	CreatedAt:     "created_at",
	UpdatedAt:     "updated_at",
}

// Stored payment status values in the normalized table.
const (
	statusPending = "pendente"
	statusPaid    = "pago"
)

func (v Variant) Columns() Columns {
	if v == VariantLegacy {
		return legacyColumns
	}
	return normalizedColumns
}

func (v Variant) Table() string {
	return v.Columns().Table
}

// UniqueColumn is the column holding the identifier.
func (v Variant) UniqueColumn() string {
	return v.Columns().NationalID
}

// InitialStage is the stage a freshly created record reports.
func (v Variant) InitialStage() int {
	if v == VariantLegacy {
		return models.CustomsStage
	}
	return models.FirstStage
}

// PersistsProgress reports whether stage and payment status can be written.
func (v Variant) PersistsProgress() bool {
	return v.Columns().Stage != ""
}

// Unstorable lists the lead fields the layout cannot hold as given. The
// legacy table keeps products in one text column and has no order bumps.
func (v Variant) Unstorable(lead *models.Lead) []string {
	if v != VariantLegacy || lead == nil {
		return nil
	}
	var fields []string
	if len(lead.Products) > 1 {
		fields = append(fields, "products")
	}
	if len(lead.OrderBumps) > 0 {
		fields = append(fields, "order_bumps")
	}
	return fields
}

// KeyQuery selects the record stored under nid.
func (v Variant) KeyQuery(nid id.NationalID) recordstore.Query {
	return recordstore.Where(v.UniqueColumn(), v.keyValue(nid))
}

func (v Variant) keyValue(nid id.NationalID) any {
	if v == VariantLegacy {
		return documentNumber(nid)
	}
	return nid.String()
}

// StagePatch returns the columns to write for a stage change, or nil when
// the variant cannot persist it.
func (v Variant) StagePatch(stage int, now time.Time) recordstore.Row {
	if !v.PersistsProgress() {
		return nil
	}
	c := v.Columns()
	return recordstore.Row{c.Stage: stage, c.UpdatedAt: now}
}

// PaymentPatch returns the columns to write for a payment status change, or
// nil when the variant cannot persist it.
func (v Variant) PaymentPatch(status models.PaymentStatus, now time.Time) recordstore.Row {
	if !v.PersistsProgress() {
		return nil
	}
	c := v.Columns()
	return recordstore.Row{c.PaymentStatus: encodeStatus(status), c.UpdatedAt: now}
}

// PaidPatch marks the record paid and released in one write.
func (v Variant) PaidPatch(now time.Time) recordstore.Row {
	if !v.PersistsProgress() {
		return nil
	}
	c := v.Columns()
	return recordstore.Row{
		c.PaymentStatus: statusPaid,
		c.Stage:         models.ReleaseStage,
		c.UpdatedAt:     now,
	}
}

// ListQuery translates f into a store query. The legacy variant has no stage
// column, so f.Stage is left for the caller to apply.
func (v Variant) ListQuery(f models.ListFilter) recordstore.Query {
	c := v.Columns()
	q := recordstore.Query{OrderBy: c.CreatedAt, Descending: true}
	if v == VariantLegacy {
		q = recordstore.Query{OrderBy: c.FullName}
	}

	if f.Search != "" {
		q.AnyOf = append(q.AnyOf, recordstore.Filter{Column: c.FullName, Op: recordstore.OpILike, Value: f.Search})
		if digits := id.NormalizeNationalID(f.Search); digits != "" {
			if v == VariantLegacy {
				// Documento is numeric; only a full identifier can match.
				if id.IsValidNationalID(digits) {
					q.AnyOf = append(q.AnyOf, recordstore.Filter{Column: c.NationalID, Op: recordstore.OpEq, Value: documentNumber(id.NationalID(digits))})
				}
			} else {
				q.AnyOf = append(q.AnyOf, recordstore.Filter{Column: c.NationalID, Op: recordstore.OpILike, Value: digits})
			}
		}
	}
	if f.CreatedFrom != nil {
		q.Filters = append(q.Filters, recordstore.Filter{Column: c.CreatedAt, Op: recordstore.OpGte, Value: *f.CreatedFrom})
	}
	if f.CreatedTo != nil {
		q.Filters = append(q.Filters, recordstore.Filter{Column: c.CreatedAt, Op: recordstore.OpLte, Value: *f.CreatedTo})
	}
	if f.Stage != 0 && v.PersistsProgress() {
		q.Filters = append(q.Filters, recordstore.Filter{Column: c.Stage, Op: recordstore.OpEq, Value: f.Stage})
	}
	return q
}

func encodeStatus(s models.PaymentStatus) string {
	if s == models.PaymentPaid {
		return statusPaid
	}
	return statusPending
}

func decodeStatus(raw string) models.PaymentStatus {
	switch raw {
	case statusPaid, string(models.PaymentPaid):
		return models.PaymentPaid
	default:
		return models.PaymentPending
	}
}
