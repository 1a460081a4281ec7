// internal/domain/payment/gateway.go
package payment

import (
	"context"

	"billing-service/internal/domain/subscription"
)

// Gateway is the payment processor capability the service consumes.
// Missing resources are reported as xerrors.ErrNotFound and outages as
// xerrors.ErrServiceUnavailable.
type Gateway interface {
	CreateCustomer(ctx context.Context, profile CustomerProfile) (string, error)
	DeleteCustomer(ctx context.Context, customerID string) error

	CreateCheckoutSession(ctx context.Context, spec SessionSpec, customerID string) (*CheckoutSession, error)
	RetrieveCheckoutSession(ctx context.Context, sessionID string) (*CheckoutSession, error)
	ListOpenCheckoutSessions(ctx context.Context, customerID string) ([]CheckoutSession, error)
	ExpireCheckoutSession(ctx context.Context, sessionID string) error

	RetrievePrice(ctx context.Context, priceID string) (*subscription.PlanSnapshot, error)
	ListActiveProducts(ctx context.Context) ([]Product, error)

	VerifyWebhookSignature(payload []byte, signature, secret string) (*Event, error)

	CancelSubscriptionAtPeriodEnd(ctx context.Context, subscriptionID string) (*Cancellation, error)
	RetrievePaymentMethod(ctx context.Context, subscriptionID, customerID string) (*PaymentMethod, error)
	ListPaidInvoices(ctx context.Context, customerID string, limit int64) ([]Invoice, error)
}
