package audit

import "time"

// Event is emitted from domain logic to capture key actions. Keep it
// transport-agnostic so sinks can fan out. Subject is the redacted
// identifier of the lead acted on.
type Event struct {
	Timestamp time.Time `json:"timestamp"`
	Action    string    `json:"action"`
	Subject   string    `json:"subject"`
	Variant   string    `json:"variant,omitempty"`
	ActorID   string    `json:"actor_id,omitempty"`
	RequestID string    `json:"request_id,omitempty"`
	Reason    string    `json:"reason,omitempty"`
}

type EventAction string

const (
	EventLeadCreated          EventAction = "lead_created"
	EventLeadDeleted          EventAction = "lead_deleted"
	EventStageUpdated         EventAction = "stage_updated"
	EventPaymentStatusUpdated EventAction = "payment_status_updated"
	EventLeadMarkedPaid       EventAction = "lead_marked_paid"
	EventTrackingFallback     EventAction = "tracking_fallback"

	// EventUpdateSkipped records a write the legacy layout cannot persist.
	EventUpdateSkipped EventAction = "update_skipped"
)
