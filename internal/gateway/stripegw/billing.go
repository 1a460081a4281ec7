// internal/gateway/stripegw/billing.go
package stripegw

import (
	"context"

	"github.com/stripe/stripe-go/v82"
	"go.uber.org/zap"

	"billing-service/internal/domain/payment"
)

func (g *Gateway) CancelSubscriptionAtPeriodEnd(ctx context.Context, subscriptionID string) (*payment.Cancellation, error) {
	params := &stripe.SubscriptionUpdateParams{
		CancelAtPeriodEnd: stripe.Bool(true),
	}

	sub, err := g.client.V1Subscriptions.Update(ctx, subscriptionID, params)
	if err != nil {
		return nil, mapError("cancel subscription", err)
	}

	out := &payment.Cancellation{
		SubscriptionID:    sub.ID,
		CancelAtPeriodEnd: sub.CancelAtPeriodEnd,
	}
	// Billing periods live on subscription items
	if sub.Items != nil && len(sub.Items.Data) > 0 && sub.Items.Data[0] != nil {
		out.CurrentPeriodEnd = unixTime(sub.Items.Data[0].CurrentPeriodEnd)
	}
	return out, nil
}

// RetrievePaymentMethod looks for the card on the subscription, then the
// customer's invoice default, then any card attached to the customer.
// It returns nil without error when none is found.
func (g *Gateway) RetrievePaymentMethod(ctx context.Context, subscriptionID, customerID string) (*payment.PaymentMethod, error) {
	if subscriptionID != "" {
		params := &stripe.SubscriptionRetrieveParams{}
		params.AddExpand("default_payment_method")

		sub, err := g.client.V1Subscriptions.Retrieve(ctx, subscriptionID, params)
		if err != nil {
			return nil, mapError("retrieve subscription", err)
		}
		if pm := toPaymentMethod(sub.DefaultPaymentMethod); pm != nil {
			return pm, nil
		}
	}

	if customerID == "" {
		return nil, nil
	}

	params := &stripe.CustomerRetrieveParams{}
	params.AddExpand("invoice_settings.default_payment_method")

	cust, err := g.client.V1Customers.Retrieve(ctx, customerID, params)
	if err != nil {
		return nil, mapError("retrieve customer", err)
	}
	if cust.InvoiceSettings != nil {
		if pm := toPaymentMethod(cust.InvoiceSettings.DefaultPaymentMethod); pm != nil {
			return pm, nil
		}
	}

	listParams := &stripe.PaymentMethodListParams{
		Customer: stripe.String(customerID),
		Type:     stripe.String(string(stripe.PaymentMethodTypeCard)),
	}
	listParams.Limit = stripe.Int64(1)
	for pm, err := range g.client.V1PaymentMethods.List(ctx, listParams) {
		if err != nil {
			return nil, mapError("list payment methods", err)
		}
		return toPaymentMethod(pm), nil
	}

	g.logger.Debug("no payment method on file", zap.String("customer_id", customerID))
	return nil, nil
}

func toPaymentMethod(pm *stripe.PaymentMethod) *payment.PaymentMethod {
	if pm == nil || pm.ID == "" {
		return nil
	}
	out := &payment.PaymentMethod{Type: string(pm.Type)}
	if pm.Card != nil {
		out.Brand = string(pm.Card.Brand)
		out.Last4 = pm.Card.Last4
		out.ExpMonth = pm.Card.ExpMonth
		out.ExpYear = pm.Card.ExpYear
	}
	return out
}

func (g *Gateway) ListPaidInvoices(ctx context.Context, customerID string, limit int64) ([]payment.Invoice, error) {
	params := &stripe.InvoiceListParams{
		Customer: stripe.String(customerID),
		Status:   stripe.String(string(stripe.InvoiceStatusPaid)),
	}
	params.Limit = stripe.Int64(limit)

	var invoices []payment.Invoice
	for inv, err := range g.client.V1Invoices.List(ctx, params) {
		if err != nil {
			return nil, mapError("list invoices", err)
		}
		invoices = append(invoices, toInvoice(inv))
		if int64(len(invoices)) >= limit {
			break
		}
	}
	return invoices, nil
}

func toInvoice(inv *stripe.Invoice) payment.Invoice {
	out := payment.Invoice{
		ID:          inv.ID,
		Description: inv.Description,
		Total:       inv.Total,
		Currency:    string(inv.Currency),
		Status:      string(inv.Status),
		PeriodStart: unixTime(inv.PeriodStart),
		PeriodEnd:   unixTime(inv.PeriodEnd),
	}
	if out.Description == "" && inv.Lines != nil && len(inv.Lines.Data) > 0 && inv.Lines.Data[0] != nil {
		out.Description = inv.Lines.Data[0].Description
	}
	if inv.StatusTransitions != nil {
		out.PaidAt = unixTime(inv.StatusTransitions.PaidAt)
	}
	return out
}
