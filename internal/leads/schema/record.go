package schema

import (
	"fmt"
	"strconv"
	"strings"
	"time"

	"leadtrack/internal/leads/models"
	"leadtrack/internal/recordstore"
	id "leadtrack/pkg/domain"
	"leadtrack/pkg/platform/sentinel"
)

// Record is a row decoded into one of the variant layouts. The concrete
// types are LegacyRecord and NormalizedRecord.
type Record interface {
	Variant() Variant
	Lead() *models.Lead
	Row() recordstore.Row
	isRecord()
}

// LegacyRecord mirrors a row of the labeled table.
type LegacyRecord struct {
	Name          string
	Document      int64
	Email         string
	Phone         string
	Address       string
	TotalValue    float64
	PaymentMethod string
	Origin        string
	Product       string
	CreatedAt     time.Time
}

func (LegacyRecord) Variant() Variant { return VariantLegacy }
func (LegacyRecord) isRecord()        {}

// Lead maps the record to the canonical model. Stage and payment status are
// synthesized since the table stores neither.
func (r LegacyRecord) Lead() *models.Lead {
	var products []string
	if r.Product != "" {
		products = []string{r.Product}
	}
	return &models.Lead{
		FullName:      r.Name,
		NationalID:    documentID(r.Document),
		Email:         r.Email,
		Phone:         r.Phone,
		Address:       r.Address,
		TotalValue:    r.TotalValue,
		PaymentMethod: r.PaymentMethod,
		Origin:        r.Origin,
		Products:      nonNil(products),
		OrderBumps:    []string{},
		Stage:         models.CustomsStage,
		PaymentStatus: models.PaymentPending,
		CreatedAt:     r.CreatedAt,
		UpdatedAt:     r.CreatedAt,
	}
}

func (r LegacyRecord) Row() recordstore.Row {
	c := legacyColumns
	row := recordstore.Row{
		c.FullName:      r.Name,
		c.NationalID:    r.Document,
		c.Email:         r.Email,
		c.Phone:         r.Phone,
		c.Address:       r.Address,
		c.TotalValue:    r.TotalValue,
		c.PaymentMethod: r.PaymentMethod,
		c.Origin:        r.Origin,
		c.Products:      r.Product,
	}
	if !r.CreatedAt.IsZero() {
		row[c.CreatedAt] = r.CreatedAt
	}
	return row
}

// NormalizedRecord mirrors a row of the snake_case table.
type NormalizedRecord struct {
	ID            string
	FullName      string
	CPF           string
	Email         string
	Phone         string
	Address       string
	TotalValue    float64
	PaymentMethod string
	Origin        string
	Products      []string
	OrderBumps    []string
	Stage         int
	PaymentStatus string
	CreatedAt     time.Time
	UpdatedAt     time.Time
}

func (NormalizedRecord) Variant() Variant { return VariantNormalized }
func (NormalizedRecord) isRecord()        {}

func (r NormalizedRecord) Lead() *models.Lead {
	lead := &models.Lead{
		FullName:      r.FullName,
		NationalID:    id.NationalID(id.NormalizeNationalID(r.CPF)),
		Email:         r.Email,
		Phone:         r.Phone,
		Address:       r.Address,
		TotalValue:    r.TotalValue,
		PaymentMethod: r.PaymentMethod,
		Origin:        r.Origin,
		Products:      nonNil(r.Products),
		OrderBumps:    nonNil(r.OrderBumps),
		Stage:         r.Stage,
		PaymentStatus: decodeStatus(r.PaymentStatus),
		CreatedAt:     r.CreatedAt,
		UpdatedAt:     r.UpdatedAt,
	}
	if lid, err := id.ParseLeadID(r.ID); err == nil {
		lead.ID = lid
	}
	if lead.Stage == 0 {
		lead.Stage = models.FirstStage
	}
	return lead
}

func (r NormalizedRecord) Row() recordstore.Row {
	c := normalizedColumns
	row := recordstore.Row{
		c.FullName:      r.FullName,
		c.NationalID:    r.CPF,
		c.Email:         r.Email,
		c.Phone:         r.Phone,
		c.Address:       r.Address,
		c.TotalValue:    r.TotalValue,
		c.PaymentMethod: r.PaymentMethod,
		c.Origin:        r.Origin,
		c.Products:      nonNil(r.Products),
		c.OrderBumps:    nonNil(r.OrderBumps),
		c.Stage:         r.Stage,
		c.PaymentStatus: r.PaymentStatus,
	}
	if r.ID != "" {
		row[c.ID] = r.ID
	}
	if !r.CreatedAt.IsZero() {
		row[c.CreatedAt] = r.CreatedAt
	}
	if !r.UpdatedAt.IsZero() {
		row[c.UpdatedAt] = r.UpdatedAt
	}
	return row
}

// FromLead builds the record that stores lead under variant v.
func FromLead(v Variant, lead *models.Lead) Record {
	if v == VariantLegacy {
		return LegacyRecord{
			Name:          lead.FullName,
			Document:      documentNumber(lead.NationalID),
			Email:         lead.Email,
			Phone:         lead.Phone,
			Address:       lead.Address,
			TotalValue:    lead.TotalValue,
			PaymentMethod: lead.PaymentMethod,
			Origin:        lead.Origin,
			Product:       strings.Join(lead.Products, ", "),
			CreatedAt:     lead.CreatedAt,
		}
	}
	rec := NormalizedRecord{
		FullName:      lead.FullName,
		CPF:           lead.NationalID.String(),
		Email:         lead.Email,
		Phone:         lead.Phone,
		Address:       lead.Address,
		TotalValue:    lead.TotalValue,
		PaymentMethod: lead.PaymentMethod,
		Origin:        lead.Origin,
		Products:      lead.Products,
		OrderBumps:    lead.OrderBumps,
		Stage:         lead.Stage,
		PaymentStatus: encodeStatus(lead.PaymentStatus),
		CreatedAt:     lead.CreatedAt,
		UpdatedAt:     lead.UpdatedAt,
	}
	if !lead.ID.IsNil() {
		rec.ID = lead.ID.String()
	}
	return rec
}

// Classify reports which layout row belongs to. A row carrying key columns
// of both layouts, or of neither, wraps sentinel.ErrAmbiguous.
func Classify(row recordstore.Row) (Variant, error) {
	legacy := hasAny(row, legacyColumns.FullName, legacyColumns.NationalID)
	normalized := hasAny(row, normalizedColumns.FullName, normalizedColumns.NationalID)
	switch {
	case legacy && normalized:
		return "", fmt.Errorf("row has columns of both layouts: %w", sentinel.ErrAmbiguous)
	case legacy:
		return VariantLegacy, nil
	case normalized:
		return VariantNormalized, nil
	default:
		return "", fmt.Errorf("row matches no known layout: %w", sentinel.ErrAmbiguous)
	}
}

// Decode classifies row and reads it into its record type. Missing or
// mistyped fields decode to zero values.
func Decode(row recordstore.Row) (Record, error) {
	v, err := Classify(row)
	if err != nil {
		return nil, err
	}
	if v == VariantLegacy {
		c := legacyColumns
		return LegacyRecord{
			Name:          asString(row[c.FullName]),
			Document:      asDocument(row[c.NationalID]),
			Email:         asString(row[c.Email]),
			Phone:         asString(row[c.Phone]),
			Address:       asString(row[c.Address]),
			TotalValue:    asFloat(row[c.TotalValue]),
			PaymentMethod: asString(row[c.PaymentMethod]),
			Origin:        asString(row[c.Origin]),
			Product:       asString(row[c.Products]),
			CreatedAt:     asTime(row[c.CreatedAt]),
		}, nil
	}
	c := normalizedColumns
	return NormalizedRecord{
		ID:            asString(row[c.ID]),
		FullName:      asString(row[c.FullName]),
		CPF:           asString(row[c.NationalID]),
		Email:         asString(row[c.Email]),
		Phone:         asString(row[c.Phone]),
		Address:       asString(row[c.Address]),
		TotalValue:    asFloat(row[c.TotalValue]),
		PaymentMethod: asString(row[c.PaymentMethod]),
		Origin:        asString(row[c.Origin]),
		Products:      asStrings(row[c.Products]),
		OrderBumps:    asStrings(row[c.OrderBumps]),
		Stage:         asInt(row[c.Stage]),
		PaymentStatus: asString(row[c.PaymentStatus]),
		CreatedAt:     asTime(row[c.CreatedAt]),
		UpdatedAt:     asTime(row[c.UpdatedAt]),
	}, nil
}

// DecodeLead decodes row and checks it belongs to variant want.
func DecodeLead(want Variant, row recordstore.Row) (*models.Lead, error) {
	rec, err := Decode(row)
	if err != nil {
		return nil, err
	}
	if rec.Variant() != want {
		return nil, fmt.Errorf("row is %s, store is %s: %w", rec.Variant(), want, sentinel.ErrAmbiguous)
	}
	return rec.Lead(), nil
}

func hasAny(row recordstore.Row, cols ...string) bool {
	for _, c := range cols {
		if _, ok := row[c]; ok {
			return true
		}
	}
	return false
}

// documentNumber is the numeric form the legacy table stores.
func documentNumber(nid id.NationalID) int64 {
	n, err := strconv.ParseInt(nid.String(), 10, 64)
	if err != nil {
		return 0
	}
	return n
}

// documentID restores leading zeros dropped by the numeric column.
func documentID(n int64) id.NationalID {
	if n <= 0 {
		return ""
	}
	return id.NationalID(fmt.Sprintf("%0*d", id.NationalIDLength, n))
}

func nonNil(s []string) []string {
	if s == nil {
		return []string{}
	}
	return s
}
