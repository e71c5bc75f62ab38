package tracking

import (
	"fmt"
	"strconv"
	"time"

	"leadtrack/internal/leads/models"
	id "leadtrack/pkg/domain"
)

var mockNames = []string{
	"João Silva Santos",
	"Maria Oliveira Costa",
	"Pedro Souza Lima",
	"Ana Paula Ferreira",
	"Carlos Eduardo Alves",
	"Fernanda Santos Rocha",
}

const mockAddress = "Rua das Flores, 123 - Centro - São Paulo/SP"

// SynthesizeLead fabricates the lead shown for an identifier the store does
// not know. The details are derived from the identifier, so repeated lookups
// agree. The order sits at customs, unpaid.
func SynthesizeLead(nid id.NationalID, now time.Time) *models.Lead {
	digits := nid.String()
	lastTwo, _ := strconv.Atoi(digits[len(digits)-2:])
	n := lastTwo % len(mockNames)

	lead := &models.Lead{
		FullName:   mockNames[n],
		NationalID: nid,
		Email:      fmt.Sprintf("cliente%d@email.com", n),
		Phone:      "(11) 9" + digits[len(digits)-8:],
		Address:    mockAddress,
		Stage:      models.CustomsStage,
	}
	lead.ApplyDefaults(models.CustomsStage, now)
	return lead
}
