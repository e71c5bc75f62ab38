package domain

import (
	"github.com/google/uuid"

	dErrors "leadtrack/pkg/domain-errors"
)

// LeadID identifies a row in the normalized lead table. Legacy rows have none.
type LeadID uuid.UUID

// NewLeadID returns a random lead ID.
func NewLeadID() LeadID {
	return LeadID(uuid.New())
}

// ParseLeadID validates a UUID string.
func ParseLeadID(s string) (LeadID, error) {
	if s == "" {
		return LeadID{}, dErrors.New(dErrors.CodeInvalidInput, "lead id is required")
	}
	u, err := uuid.Parse(s)
	if err != nil {
		return LeadID{}, dErrors.New(dErrors.CodeInvalidInput, "invalid lead id")
	}
	if u == uuid.Nil {
		return LeadID{}, dErrors.New(dErrors.CodeInvalidInput, "lead id cannot be nil")
	}
	return LeadID(u), nil
}

func (id LeadID) String() string {
	return uuid.UUID(id).String()
}

// IsNil returns true if the ID is the zero UUID.
func (id LeadID) IsNil() bool {
	return uuid.UUID(id) == uuid.Nil
}

// MarshalText lets LeadID serialize as a string in JSON.
func (id LeadID) MarshalText() ([]byte, error) {
	if id.IsNil() {
		return []byte{}, nil
	}
	return []byte(id.String()), nil
}

// UnmarshalText accepts empty input as the nil ID.
func (id *LeadID) UnmarshalText(b []byte) error {
	if len(b) == 0 {
		*id = LeadID{}
		return nil
	}
	parsed, err := ParseLeadID(string(b))
	if err != nil {
		return err
	}
	*id = parsed
	return nil
}
