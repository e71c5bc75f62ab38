package models

import (
	"time"

	id "leadtrack/pkg/domain"
	dErrors "leadtrack/pkg/domain-errors"
)

// Stage bounds. Unpaid orders top out at the customs stage; payment releases
// the order to the final stage.
const (
	FirstStage   = 1
	CustomsStage = 11
	ReleaseStage = 12
)

// Record defaults applied on create.
const (
	DefaultPaymentMethod = "PIX"
	DefaultOrigin        = "painel_admin"
	DefaultTotalValue    = 67.90
)

// PaymentStatus is the canonical payment state of a lead.
type PaymentStatus string

const (
	PaymentPending PaymentStatus = "pending"
	PaymentPaid    PaymentStatus = "paid"
)

func (p PaymentStatus) IsValid() bool {
	return p == PaymentPending || p == PaymentPaid
}

// ParsePaymentStatus accepts the canonical value.
func ParsePaymentStatus(raw string) (PaymentStatus, error) {
	p := PaymentStatus(raw)
	if !p.IsValid() {
		return "", dErrors.New(dErrors.CodeValidation, "payment status must be pending or paid")
	}
	return p, nil
}

// ValidateStage checks that stage is a shipment stage.
func ValidateStage(stage int) error {
	if stage < FirstStage || stage > ReleaseStage {
		return dErrors.New(dErrors.CodeValidation, "stage must be between 1 and 12")
	}
	return nil
}

// Lead is the canonical customer order record, independent of the table
// layout it was read from.
type Lead struct {
	ID            id.LeadID     `json:"id"`
	FullName      string        `json:"full_name"`
	NationalID    id.NationalID `json:"cpf"`
	Email         string        `json:"email,omitempty"`
	Phone         string        `json:"phone,omitempty"`
	Address       string        `json:"address,omitempty"`
	TotalValue    float64       `json:"total_value"`
	PaymentMethod string        `json:"payment_method"`
	Origin        string        `json:"origin"`
	Products      []string      `json:"products"`
	OrderBumps    []string      `json:"order_bumps"`
	Stage         int           `json:"stage"`
	PaymentStatus PaymentStatus `json:"payment_status"`
	CreatedAt     time.Time     `json:"created_at"`
	UpdatedAt     time.Time     `json:"updated_at"`
}

func (l *Lead) IsPaid() bool {
	return l.PaymentStatus == PaymentPaid
}

// ApplyDefaults fills the fields a new record gets when the caller leaves
// them empty. stage is the variant's initial stage.
func (l *Lead) ApplyDefaults(stage int, now time.Time) {
	if l.PaymentMethod == "" {
		l.PaymentMethod = DefaultPaymentMethod
	}
	if l.Origin == "" {
		l.Origin = DefaultOrigin
	}
	if l.TotalValue == 0 {
		l.TotalValue = DefaultTotalValue
	}
	if l.Stage == 0 {
		l.Stage = stage
	}
	if l.PaymentStatus == "" {
		l.PaymentStatus = PaymentPending
	}
	if l.Products == nil {
		l.Products = []string{}
	}
	if l.OrderBumps == nil {
		l.OrderBumps = []string{}
	}
	if l.CreatedAt.IsZero() {
		l.CreatedAt = now
	}
	l.UpdatedAt = now
}
