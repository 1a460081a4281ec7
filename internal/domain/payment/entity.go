// internal/domain/payment/entity.go
package payment

import (
	"encoding/json"
	"time"
)

// CustomerProfile is what the processor stores about a billing customer.
type CustomerProfile struct {
	UserID string
	Email  string
	Name   string
}

// SessionSpec describes a hosted checkout for one recurring price.
type SessionSpec struct {
	PriceID    string
	Quantity   int64
	SuccessURL string
	CancelURL  string
	Metadata   map[string]string
}

type CheckoutSession struct {
	ID            string            `json:"session_id"`
	URL           string            `json:"url,omitempty"`
	Status        string            `json:"status"`
	PaymentStatus string            `json:"payment_status,omitempty"`
	CustomerID    string            `json:"customer_id,omitempty"`
	PriceIDs      []string          `json:"price_ids,omitempty"`
	Metadata      map[string]string `json:"metadata,omitempty"`
	ExpiresAt     *time.Time        `json:"expires_at,omitempty"`
}

const SessionStatusOpen = "open"

// IsOpen reports whether the session can still be completed.
func (s *CheckoutSession) IsOpen() bool {
	return s.Status == SessionStatusOpen
}

// Event is a verified processor notification. Object holds data.object verbatim.
type Event struct {
	ID                 string
	Type               string
	Created            int64
	Object             json.RawMessage
	PreviousAttributes map[string]interface{}
}

type Cancellation struct {
	SubscriptionID    string
	CancelAtPeriodEnd bool
	CurrentPeriodEnd  *time.Time
}

type PaymentMethod struct {
	Type     string
	Brand    string
	Last4    string
	ExpMonth int64
	ExpYear  int64
}

// Invoice amounts are in the currency's minor unit.
type Invoice struct {
	ID          string
	Description string
	Total       int64
	Currency    string
	Status      string
	PeriodStart *time.Time
	PeriodEnd   *time.Time
	PaidAt      *time.Time
}

type Price struct {
	ID              string `json:"price_id"`
	Amount          int64  `json:"amount"`
	Currency        string `json:"currency"`
	Interval        string `json:"interval,omitempty"`
	IntervalCount   int64  `json:"interval_count,omitempty"`
	TrialPeriodDays int64  `json:"trial_period_days,omitempty"`
}

type Product struct {
	ID          string  `json:"product_id"`
	Name        string  `json:"name"`
	Description string  `json:"description,omitempty"`
	Prices      []Price `json:"prices"`
}
