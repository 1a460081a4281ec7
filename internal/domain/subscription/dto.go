// internal/domain/subscription/dto.go
package subscription

import (
	"time"

	"github.com/shopspring/decimal"
)

type PaymentMethodResponse struct {
	Type     string `json:"type"`
	Brand    string `json:"brand,omitempty"`
	Last4    string `json:"last4,omitempty"`
	ExpMonth int64  `json:"exp_month,omitempty"`
	ExpYear  int64  `json:"exp_year,omitempty"`
}

type SubscriptionResponse struct {
	UserID            string                 `json:"user_id"`
	CustomerID        *string                `json:"customer_id,omitempty"`
	SubscriptionID    *string                `json:"subscription_id,omitempty"`
	IsActive          bool                   `json:"is_active"`
	CancelAtPeriodEnd bool                   `json:"cancel_at_period_end"`
	Plan              *PlanSnapshot          `json:"plan,omitempty"`
	StartDate         *time.Time             `json:"start_date,omitempty"`
	EndDate           *time.Time             `json:"end_date,omitempty"`
	NextPaymentDate   *time.Time             `json:"next_payment_date,omitempty"`
	PaymentMethod     *PaymentMethodResponse `json:"payment_method,omitempty"`
	ModifiedAt        time.Time              `json:"modified_at"`
}

// NewSubscriptionResponse projects a record onto the public response shape.
func NewSubscriptionResponse(r *Record) *SubscriptionResponse {
	return &SubscriptionResponse{
		UserID:            r.UserID,
		CustomerID:        r.CustomerID,
		SubscriptionID:    r.SubscriptionID,
		IsActive:          r.IsActive,
		CancelAtPeriodEnd: r.CancelAtPeriodEnd,
		Plan:              r.PlanSnapshot,
		StartDate:         r.StartDate,
		EndDate:           r.EndDate,
		NextPaymentDate:   r.NextPaymentDate,
		ModifiedAt:        r.ModifiedAt,
	}
}

type CancelResponse struct {
	SubscriptionID    string     `json:"subscription_id"`
	CancelAtPeriodEnd bool       `json:"cancel_at_period_end"`
	CurrentPeriodEnd  *time.Time `json:"current_period_end,omitempty"`
}

type BillingHistoryItem struct {
	InvoiceID   string          `json:"invoice_id"`
	PlanName    string          `json:"plan_name"`
	AmountPaid  decimal.Decimal `json:"amount_paid"`
	Currency    string          `json:"currency"`
	PeriodStart *time.Time      `json:"period_start,omitempty"`
	PeriodEnd   *time.Time      `json:"period_end,omitempty"`
	Status      string          `json:"status"`
	PaidAt      *time.Time      `json:"paid_at,omitempty"`
}

type BillingHistoryResponse struct {
	Invoices []BillingHistoryItem `json:"invoices"`
	Total    int                  `json:"total"`
}
