package models

import (
	"strings"
	"time"

	id "leadtrack/pkg/domain"
	dErrors "leadtrack/pkg/domain-errors"
	platformstrings "leadtrack/pkg/platform/strings"
)

// CreateLeadRequest carries the caller-supplied fields of a new lead.
type CreateLeadRequest struct {
	FullName      string   `json:"full_name"`
	NationalID    string   `json:"cpf"`
	Email         string   `json:"email"`
	Phone         string   `json:"phone"`
	Address       string   `json:"address"`
	TotalValue    float64  `json:"total_value"`
	PaymentMethod string   `json:"payment_method"`
	Origin        string   `json:"origin"`
	Products      []string `json:"products"`
	OrderBumps    []string `json:"order_bumps"`
}

func (r *CreateLeadRequest) Normalize() {
	r.FullName = strings.TrimSpace(r.FullName)
	r.Email = strings.TrimSpace(r.Email)
	r.Phone = strings.TrimSpace(r.Phone)
	r.Address = strings.TrimSpace(r.Address)
	r.Products = platformstrings.DedupeAndTrim(r.Products)
	r.OrderBumps = platformstrings.DedupeAndTrim(r.OrderBumps)
}

// Validate checks required fields and returns the parsed identifier.
func (r *CreateLeadRequest) Validate() (id.NationalID, error) {
	if r.FullName == "" {
		return "", dErrors.New(dErrors.CodeValidation, "full name is required")
	}
	nid, err := id.ParseNationalID(r.NationalID)
	if err != nil {
		return "", err
	}
	if r.TotalValue < 0 {
		return "", dErrors.New(dErrors.CodeValidation, "total value cannot be negative")
	}
	return nid, nil
}

// ToLead builds the lead before defaults are applied.
func (r *CreateLeadRequest) ToLead(nid id.NationalID) *Lead {
	return &Lead{
		FullName:      r.FullName,
		NationalID:    nid,
		Email:         r.Email,
		Phone:         r.Phone,
		Address:       r.Address,
		TotalValue:    r.TotalValue,
		PaymentMethod: r.PaymentMethod,
		Origin:        r.Origin,
		Products:      r.Products,
		OrderBumps:    r.OrderBumps,
	}
}

// ListFilter narrows ListAll. Zero values disable a criterion.
type ListFilter struct {
	Search      string     `json:"search,omitempty"`
	CreatedFrom *time.Time `json:"created_from,omitempty"`
	CreatedTo   *time.Time `json:"created_to,omitempty"`
	Stage       int        `json:"stage,omitempty"`
}

func (f ListFilter) Validate() error {
	if f.Stage != 0 {
		if err := ValidateStage(f.Stage); err != nil {
			return err
		}
	}
	if f.CreatedFrom != nil && f.CreatedTo != nil && f.CreatedTo.Before(*f.CreatedFrom) {
		return dErrors.New(dErrors.CodeValidation, "created_to must not precede created_from")
	}
	return nil
}

// StageUpdate is one entry of a bulk stage change.
type StageUpdate struct {
	NationalID string `json:"cpf"`
	Stage      int    `json:"stage"`
}

// MutationResult reports the outcome of an update. Applied is false when the
// schema variant cannot persist the field; Warning then says why.
type MutationResult struct {
	Lead    *Lead  `json:"lead"`
	Applied bool   `json:"applied"`
	Warning string `json:"warning,omitempty"`
}

// BulkItemResult is the outcome of one bulk entry.
type BulkItemResult struct {
	NationalID string `json:"cpf"`
	Success    bool   `json:"success"`
	Applied    bool   `json:"applied"`
	Error      string `json:"error,omitempty"`
	Code       string `json:"code,omitempty"`
	Warning    string `json:"warning,omitempty"`
}

// BulkResult summarises a bulk stage change.
type BulkResult struct {
	Successes int              `json:"successes"`
	Failures  int              `json:"failures"`
	Results   []BulkItemResult `json:"results"`
}
