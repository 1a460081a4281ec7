// internal/domain/subscription/entity.go
package subscription

import (
	"time"
)

// Record is the local copy of one user's subscription state.
type Record struct {
	UserID            string        `json:"user_id" db:"user_id"`
	CustomerID        *string       `json:"customer_id,omitempty" db:"customer_id"`
	SubscriptionID    *string       `json:"subscription_id,omitempty" db:"subscription_id"`
	PlanSnapshot      *PlanSnapshot `json:"plan_snapshot,omitempty" db:"plan_snapshot"`
	IsActive          bool          `json:"is_active" db:"is_active"`
	CancelAtPeriodEnd bool          `json:"cancel_at_period_end" db:"cancel_at_period_end"`

	// Billing period
	StartDate       *time.Time `json:"start_date,omitempty" db:"start_date"`
	EndDate         *time.Time `json:"end_date,omitempty" db:"end_date"`
	NextPaymentDate *time.Time `json:"next_payment_date,omitempty" db:"next_payment_date"`

	// LastEventAt is the creation time of the newest processor event applied.
	LastEventAt *time.Time `json:"-" db:"last_event_at"`

	// Timestamps
	CreatedAt  time.Time `json:"created_at" db:"created_at"`
	ModifiedAt time.Time `json:"modified_at" db:"modified_at"`
}

// HasCustomer reports whether a billing customer was provisioned for the record.
func (r *Record) HasCustomer() bool {
	return r != nil && r.CustomerID != nil && *r.CustomerID != ""
}

// HasSubscription reports whether the processor assigned a subscription.
func (r *Record) HasSubscription() bool {
	return r != nil && r.SubscriptionID != nil && *r.SubscriptionID != ""
}

// PlanSnapshot is a denormalized copy of a price and its product at last sync.
// Amount is in the currency's minor unit.
type PlanSnapshot struct {
	PriceID       string `json:"price_id"`
	Amount        int64  `json:"amount"`
	Currency      string `json:"currency"`
	Interval      string `json:"interval,omitempty"`
	IntervalCount int64  `json:"interval_count,omitempty"`
	ProductID     string `json:"product_id,omitempty"`
	ProductName   string `json:"product_name,omitempty"`
}
