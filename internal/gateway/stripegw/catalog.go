// internal/gateway/stripegw/catalog.go
package stripegw

import (
	"context"
	"errors"
	"fmt"

	"github.com/stripe/stripe-go/v82"

	"billing-service/internal/domain/payment"
	"billing-service/internal/domain/subscription"
	xerrors "billing-service/internal/pkg/errors"
)

// RetrievePrice resolves a price and its product into a plan snapshot.
// An unknown price is reported as xerrors.ErrPlanResolution.
func (g *Gateway) RetrievePrice(ctx context.Context, priceID string) (*subscription.PlanSnapshot, error) {
	params := &stripe.PriceRetrieveParams{}
	params.AddExpand("product")

	p, err := g.client.V1Prices.Retrieve(ctx, priceID, params)
	if err != nil {
		mapped := mapError("retrieve price", err)
		if errors.Is(mapped, xerrors.ErrNotFound) {
			return nil, fmt.Errorf("price %s: %w", priceID, xerrors.ErrPlanResolution)
		}
		return nil, mapped
	}

	return toPlanSnapshot(p), nil
}

func toPlanSnapshot(p *stripe.Price) *subscription.PlanSnapshot {
	s := &subscription.PlanSnapshot{
		PriceID:  p.ID,
		Amount:   p.UnitAmount,
		Currency: string(p.Currency),
	}
	if p.Recurring != nil {
		s.Interval = string(p.Recurring.Interval)
		s.IntervalCount = p.Recurring.IntervalCount
	}
	if p.Product != nil {
		s.ProductID = p.Product.ID
		s.ProductName = p.Product.Name
	}
	return s
}

// ListActiveProducts returns active products that have at least one active price.
func (g *Gateway) ListActiveProducts(ctx context.Context) ([]payment.Product, error) {
	var products []payment.Product

	for prod, err := range g.client.V1Products.List(ctx, &stripe.ProductListParams{Active: stripe.Bool(true)}) {
		if err != nil {
			return nil, mapError("list products", err)
		}

		prices, err := g.listActivePrices(ctx, prod.ID)
		if err != nil {
			return nil, err
		}
		if len(prices) == 0 {
			continue
		}

		products = append(products, payment.Product{
			ID:          prod.ID,
			Name:        prod.Name,
			Description: prod.Description,
			Prices:      prices,
		})
	}
	return products, nil
}

func (g *Gateway) listActivePrices(ctx context.Context, productID string) ([]payment.Price, error) {
	params := &stripe.PriceListParams{
		Product: stripe.String(productID),
		Active:  stripe.Bool(true),
	}

	var prices []payment.Price
	for p, err := range g.client.V1Prices.List(ctx, params) {
		if err != nil {
			return nil, mapError("list prices", err)
		}
		price := payment.Price{
			ID:       p.ID,
			Amount:   p.UnitAmount,
			Currency: string(p.Currency),
		}
		if p.Recurring != nil {
			price.Interval = string(p.Recurring.Interval)
			price.IntervalCount = p.Recurring.IntervalCount
			price.TrialPeriodDays = p.Recurring.TrialPeriodDays
		}
		prices = append(prices, price)
	}
	return prices, nil
}
