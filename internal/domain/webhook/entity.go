// internal/domain/webhook/entity.go
package webhook

import (
	"context"
	"time"
)

// Handled event types.
const (
	EventSubscriptionCreated     = "customer.subscription.created"
	EventSubscriptionUpdated     = "customer.subscription.updated"
	EventSubscriptionDeleted     = "customer.subscription.deleted"
	EventInvoicePaymentSucceeded = "invoice.payment_succeeded"
	EventInvoicePaymentFailed    = "invoice.payment_failed"
)

// Supported reports whether the dispatcher hands the event type to the reducer.
func Supported(eventType string) bool {
	switch eventType {
	case EventSubscriptionCreated, EventSubscriptionUpdated, EventSubscriptionDeleted,
		EventInvoicePaymentSucceeded, EventInvoicePaymentFailed:
		return true
	}
	return false
}

type Outcome string

const (
	OutcomeProcessing Outcome = "processing"
	OutcomeSuccess    Outcome = "success"
	OutcomeError      Outcome = "error"
)

// ClaimResult is the state of an event id when a delivery tries to claim it.
type ClaimResult string

const (
	// ClaimAcquired means the caller owns the event and must Record or Release it.
	ClaimAcquired ClaimResult = "acquired"
	// ClaimCompleted means a final outcome is already recorded.
	ClaimCompleted ClaimResult = "completed"
	// ClaimInProgress means another delivery holds an unexpired claim.
	ClaimInProgress ClaimResult = "in_progress"
)

// ProcessedEvent is one row of the append-only idempotency ledger.
type ProcessedEvent struct {
	EventID     string    `json:"event_id" db:"event_id"`
	EventType   string    `json:"event_type" db:"event_type"`
	Outcome     Outcome   `json:"outcome" db:"outcome"`
	Error       *string   `json:"error,omitempty" db:"error"`
	ProcessedAt time.Time `json:"processed_at" db:"processed_at"`
}

// Ledger records handled event ids.
// Claim is atomic per event id: at most one delivery holds a live claim, and
// a claim older than the lease may be taken over. Record finalizes a claim and
// never overwrites a final outcome. Release drops an unfinished claim.
type Ledger interface {
	Claim(ctx context.Context, eventID, eventType string, now time.Time, lease time.Duration) (ClaimResult, error)
	Record(ctx context.Context, e *ProcessedEvent) error
	Release(ctx context.Context, eventID string) error
}
