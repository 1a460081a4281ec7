// internal/testutil/gateway.go
package testutil

import (
	"context"
	"encoding/json"
	"fmt"
	"sync"

	"billing-service/internal/domain/payment"
	"billing-service/internal/domain/subscription"
	xerrors "billing-service/internal/pkg/errors"
)

// Signature is the header value FakeGateway accepts as valid.
const Signature = "t=1,v1=valid"

// FakeGateway is an in-memory payment.Gateway that records every side effect.
type FakeGateway struct {
	mu sync.Mutex

	Prices           map[string]*subscription.PlanSnapshot
	Customers        map[string]payment.CustomerProfile
	DeletedCustomers []string
	Sessions         map[string]*payment.CheckoutSession
	ExpiredSessions  []string
	Canceled         []string
	PaymentMethod    *payment.PaymentMethod
	Invoices         []payment.Invoice
	Products         []payment.Product
	Fail             map[string]error
	Calls            map[string]int
	// Log lists method names in call order.
	Log []string
	// OmitSessionURL makes CreateCheckoutSession return open sessions without a url.
	OmitSessionURL bool

	seq int
}

var _ payment.Gateway = (*FakeGateway)(nil)

func NewFakeGateway() *FakeGateway {
	return &FakeGateway{
		Prices: map[string]*subscription.PlanSnapshot{
			"price_123": {PriceID: "price_123", Amount: 999, Currency: "usd", Interval: "month", IntervalCount: 1, ProductID: "prod_1", ProductName: "Pro"},
			"price_456": {PriceID: "price_456", Amount: 9900, Currency: "usd", Interval: "year", IntervalCount: 1, ProductID: "prod_1", ProductName: "Pro"},
		},
		Customers: make(map[string]payment.CustomerProfile),
		Sessions:  make(map[string]*payment.CheckoutSession),
		Fail:      make(map[string]error),
		Calls:     make(map[string]int),
	}
}

// CallCount reports how often a method ran.
func (g *FakeGateway) CallCount(method string) int {
	g.mu.Lock()
	defer g.mu.Unlock()
	return g.Calls[method]
}

// CustomerCount reports live (not deleted) customers.
func (g *FakeGateway) CustomerCount() int {
	g.mu.Lock()
	defer g.mu.Unlock()
	return len(g.Customers)
}

// AddSession seeds a checkout session.
func (g *FakeGateway) AddSession(s *payment.CheckoutSession) {
	g.mu.Lock()
	defer g.mu.Unlock()
	g.Sessions[s.ID] = s
}

// CallLog returns the methods called so far, in order.
func (g *FakeGateway) CallLog() []string {
	g.mu.Lock()
	defer g.mu.Unlock()
	return append([]string(nil), g.Log...)
}

func (g *FakeGateway) enter(method string) error {
	g.Calls[method]++
	g.Log = append(g.Log, method)
	return g.Fail[method]
}

func (g *FakeGateway) next(prefix string) string {
	g.seq++
	return fmt.Sprintf("%s_%d", prefix, g.seq)
}

func (g *FakeGateway) CreateCustomer(_ context.Context, profile payment.CustomerProfile) (string, error) {
	g.mu.Lock()
	defer g.mu.Unlock()
	if err := g.enter("CreateCustomer"); err != nil {
		return "", err
	}
	id := g.next("cus")
	g.Customers[id] = profile
	return id, nil
}

func (g *FakeGateway) DeleteCustomer(_ context.Context, customerID string) error {
	g.mu.Lock()
	defer g.mu.Unlock()
	if err := g.enter("DeleteCustomer"); err != nil {
		return err
	}
	delete(g.Customers, customerID)
	g.DeletedCustomers = append(g.DeletedCustomers, customerID)
	return nil
}

func (g *FakeGateway) CreateCheckoutSession(_ context.Context, spec payment.SessionSpec, customerID string) (*payment.CheckoutSession, error) {
	g.mu.Lock()
	defer g.mu.Unlock()
	if err := g.enter("CreateCheckoutSession"); err != nil {
		return nil, err
	}
	id := g.next("cs_test")
	s := &payment.CheckoutSession{
		ID:         id,
		URL:        "https://checkout.stripe.com/c/pay/" + id,
		Status:     payment.SessionStatusOpen,
		CustomerID: customerID,
		PriceIDs:   []string{spec.PriceID},
		Metadata:   spec.Metadata,
	}
	if g.OmitSessionURL {
		s.URL = ""
	}
	g.Sessions[id] = s
	cp := *s
	return &cp, nil
}

func (g *FakeGateway) RetrieveCheckoutSession(_ context.Context, sessionID string) (*payment.CheckoutSession, error) {
	g.mu.Lock()
	defer g.mu.Unlock()
	if err := g.enter("RetrieveCheckoutSession"); err != nil {
		return nil, err
	}
	s, ok := g.Sessions[sessionID]
	if !ok {
		return nil, xerrors.ErrNotFound
	}
	cp := *s
	return &cp, nil
}

func (g *FakeGateway) ListOpenCheckoutSessions(_ context.Context, customerID string) ([]payment.CheckoutSession, error) {
	g.mu.Lock()
	defer g.mu.Unlock()
	if err := g.enter("ListOpenCheckoutSessions"); err != nil {
		return nil, err
	}
	var out []payment.CheckoutSession
	for _, s := range g.Sessions {
		if s.CustomerID == customerID && s.IsOpen() {
			out = append(out, *s)
		}
	}
	return out, nil
}

func (g *FakeGateway) ExpireCheckoutSession(_ context.Context, sessionID string) error {
	g.mu.Lock()
	defer g.mu.Unlock()
	if err := g.enter("ExpireCheckoutSession"); err != nil {
		return err
	}
	if s, ok := g.Sessions[sessionID]; ok {
		s.Status = "expired"
	}
	g.ExpiredSessions = append(g.ExpiredSessions, sessionID)
	return nil
}

func (g *FakeGateway) RetrievePrice(_ context.Context, priceID string) (*subscription.PlanSnapshot, error) {
	g.mu.Lock()
	defer g.mu.Unlock()
	if err := g.enter("RetrievePrice"); err != nil {
		return nil, err
	}
	p, ok := g.Prices[priceID]
	if !ok {
		return nil, fmt.Errorf("price %s: %w", priceID, xerrors.ErrPlanResolution)
	}
	cp := *p
	return &cp, nil
}

func (g *FakeGateway) ListActiveProducts(_ context.Context) ([]payment.Product, error) {
	g.mu.Lock()
	defer g.mu.Unlock()
	if err := g.enter("ListActiveProducts"); err != nil {
		return nil, err
	}
	return g.Products, nil
}

type fakeEvent struct {
	ID      string `json:"id"`
	Type    string `json:"type"`
	Created int64  `json:"created"`
	Data    *struct {
		Object             json.RawMessage        `json:"object"`
		PreviousAttributes map[string]interface{} `json:"previous_attributes"`
	} `json:"data"`
}

// VerifyWebhookSignature accepts only the Signature constant.
func (g *FakeGateway) VerifyWebhookSignature(payload []byte, signature, _ string) (*payment.Event, error) {
	g.mu.Lock()
	defer g.mu.Unlock()
	if err := g.enter("VerifyWebhookSignature"); err != nil {
		return nil, err
	}
	if signature != Signature {
		return nil, fmt.Errorf("%w: bad signature", xerrors.ErrSignature)
	}
	var e fakeEvent
	if err := json.Unmarshal(payload, &e); err != nil {
		return nil, fmt.Errorf("%w: %v", xerrors.ErrSignature, err)
	}
	out := &payment.Event{ID: e.ID, Type: e.Type, Created: e.Created}
	if e.Data != nil {
		out.Object = e.Data.Object
		out.PreviousAttributes = e.Data.PreviousAttributes
	}
	return out, nil
}

func (g *FakeGateway) CancelSubscriptionAtPeriodEnd(_ context.Context, subscriptionID string) (*payment.Cancellation, error) {
	g.mu.Lock()
	defer g.mu.Unlock()
	if err := g.enter("CancelSubscriptionAtPeriodEnd"); err != nil {
		return nil, err
	}
	g.Canceled = append(g.Canceled, subscriptionID)
	return &payment.Cancellation{SubscriptionID: subscriptionID, CancelAtPeriodEnd: true}, nil
}

func (g *FakeGateway) RetrievePaymentMethod(_ context.Context, _, _ string) (*payment.PaymentMethod, error) {
	g.mu.Lock()
	defer g.mu.Unlock()
	if err := g.enter("RetrievePaymentMethod"); err != nil {
		return nil, err
	}
	return g.PaymentMethod, nil
}

func (g *FakeGateway) ListPaidInvoices(_ context.Context, _ string, limit int64) ([]payment.Invoice, error) {
	g.mu.Lock()
	defer g.mu.Unlock()
	if err := g.enter("ListPaidInvoices"); err != nil {
		return nil, err
	}
	if int64(len(g.Invoices)) > limit {
		return g.Invoices[:limit], nil
	}
	return g.Invoices, nil
}
