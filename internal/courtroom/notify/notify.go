// Package notify publishes courtroom session events to participants'
// live connections. Delivery is fire-and-forget: a failed or missing
// subscriber never affects the mutation that produced the event.
package notify

import "context"

// EventType identifies one kind of session event.
type EventType string

const (
	// EventPhaseChanged announces a phase advancement.
	EventPhaseChanged EventType = "phase.changed"
	// EventSettlementRequested announces a new settlement proposal.
	EventSettlementRequested EventType = "settlement.requested"
	// EventSettlementAccepted announces an accepted proposal.
	EventSettlementAccepted EventType = "settlement.accepted"
	// EventSettlementDeclined announces a declined proposal.
	EventSettlementDeclined EventType = "settlement.declined"
	// EventSettlementExpired announces a proposal that timed out.
	EventSettlementExpired EventType = "settlement.expired"
	// EventSessionSettled announces a session closed by mutual settlement.
	EventSessionSettled EventType = "session.settled"
	// EventVerdictReady announces that the final ruling is available.
	EventVerdictReady EventType = "verdict.ready"
)

// Event is one session notification addressed to specific participants.
type Event struct {
	SessionID  string
	Type       EventType
	Recipients []string
	Payload    map[string]any
}

// Publisher pushes session events to participant connections.
type Publisher interface {
	Publish(ctx context.Context, event Event) error
}

// PublisherFunc adapts a function to the Publisher interface.
type PublisherFunc func(ctx context.Context, event Event) error

// Publish implements Publisher.
func (f PublisherFunc) Publish(ctx context.Context, event Event) error {
	return f(ctx, event)
}
