// Package tracking turns a lead's stage and payment state into the shipment
// timeline shown to the customer.
package tracking

import (
	"math/rand/v2"
	"time"

	"leadtrack/internal/leads/models"
)

// OriginChina tags the steps that happen before the parcel leaves the origin.
const OriginChina = "China"

// Order summary labels.
const (
	StatusReleased        = "Pedido liberado"
	StatusAwaitingRelease = "Aguardando liberação aduaneira"
)

// Step is one milestone of the shipment timeline.
type Step struct {
	ID              int       `json:"id"`
	Title           string    `json:"title"`
	Description     string    `json:"description"`
	Origin          string    `json:"origin,omitempty"`
	Completed       bool      `json:"completed"`
	NeedsLiberation bool      `json:"needs_liberation,omitempty"`
	Timestamp       time.Time `json:"timestamp"`
}

type milestone struct {
	title       string
	description string
	origin      string
}

// milestones holds steps 1 through 11. Step 12 is appended once paid.
var milestones = [models.CustomsStage]milestone{
	{title: "Pedido criado", description: "Seu pedido foi criado"},
	{title: "Preparando envio", description: "Preparando para envio"},
	{title: "Enviado da China", description: "Pedido enviado", origin: OriginChina},
	{title: "Centro de triagem", description: "Centro de triagem Shenzhen", origin: OriginChina},
	{title: "Centro logístico", description: "Saiu do centro logístico", origin: OriginChina},
	{title: "Trânsito internacional", description: "Em trânsito internacional", origin: OriginChina},
	{title: "Liberado exportação", description: "Liberado na alfândega de exportação", origin: OriginChina},
	{title: "Saiu da origem", description: "Pedido saiu da origem: Shenzhen"},
	{title: "Chegou no Brasil", description: "Pedido chegou no Brasil"},
	{title: "Centro distribuição", description: "Em trânsito para CURITIBA/PR"},
	{title: "Alfândega importação", description: "Chegou na alfândega: CURITIBA/PR"},
}

var released = milestone{title: "Pedido liberado", description: "Pedido liberado na alfândega"}

// Deriver builds timelines. Timestamps are cosmetic; the clock and minute
// source are injectable so tests get stable output.
type Deriver struct {
	now    func() time.Time
	minute func() int
}

type DeriverOption func(*Deriver)

func WithClock(now func() time.Time) DeriverOption {
	return func(d *Deriver) {
		d.now = now
	}
}

// WithRand draws step minutes from r.
func WithRand(r *rand.Rand) DeriverOption {
	return func(d *Deriver) {
		d.minute = func() int { return r.IntN(60) }
	}
}

func NewDeriver(opts ...DeriverOption) *Deriver {
	d := &Deriver{
		now:    time.Now,
		minute: func() int { return rand.IntN(60) },
	}
	for _, opt := range opts {
		opt(d)
	}
	return d
}

// Derive returns the 11 fixed steps, plus the release step when paid. A step
// is completed when stage has reached it.
func (d *Deriver) Derive(stage int, paid bool) []Step {
	today := d.now()
	steps := make([]Step, 0, models.ReleaseStage)
	for i, m := range milestones {
		stepID := i + 1
		step := Step{
			ID:          stepID,
			Title:       m.title,
			Description: m.description,
			Origin:      m.origin,
			Completed:   stage >= stepID,
			Timestamp:   d.stepTime(today, stepID),
		}
		if stepID == models.CustomsStage {
			step.NeedsLiberation = !paid
		}
		steps = append(steps, step)
	}
	if paid {
		steps = append(steps, Step{
			ID:          models.ReleaseStage,
			Title:       released.title,
			Description: released.description,
			Completed:   true,
			Timestamp:   d.stepTime(today, models.ReleaseStage),
		})
	}
	return steps
}

// stepTime places step id max(0, 12-id) days before today at hour 8+(id%12).
func (d *Deriver) stepTime(today time.Time, stepID int) time.Time {
	daysBack := max(0, models.ReleaseStage-stepID)
	day := today.AddDate(0, 0, -daysBack)
	return time.Date(day.Year(), day.Month(), day.Day(), 8+stepID%12, d.minute(), 0, 0, day.Location())
}

// StatusLabel is the order summary shown next to the timeline.
func StatusLabel(paid bool) string {
	if paid {
		return StatusReleased
	}
	return StatusAwaitingRelease
}
