package subscription

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap/zaptest"

	"billing-service/internal/domain/identity"
	"billing-service/internal/domain/payment"
	"billing-service/internal/domain/subscription"
	xerrors "billing-service/internal/pkg/errors"
	"billing-service/internal/testutil"
)

var caller = &identity.User{ID: "u1", Email: "ada@example.com"}

func strPtr(s string) *string { return &s }

func newService(t *testing.T) (*SubscriptionService, *testutil.MemoryStore, *testutil.FakeGateway) {
	t.Helper()
	store := testutil.NewMemoryStore()
	gw := testutil.NewFakeGateway()
	svc := NewSubscriptionService(store, gw, Config{DefaultPlanName: "Pro", HistoryLimit: 2}, zaptest.NewLogger(t))
	return svc, store, gw
}

func activeRecord() *subscription.Record {
	return &subscription.Record{
		UserID:         "u1",
		CustomerID:     strPtr("cus_1"),
		SubscriptionID: strPtr("sub_1"),
		IsActive:       true,
		PlanSnapshot:   &subscription.PlanSnapshot{PriceID: "price_123", Amount: 999, Currency: "usd"},
	}
}

func TestGetSubscription(t *testing.T) {
	svc, store, gw := newService(t)
	store.Put(activeRecord())
	gw.PaymentMethod = &payment.PaymentMethod{Type: "card", Brand: "visa", Last4: "4242", ExpMonth: 12, ExpYear: 2030}

	resp, err := svc.GetSubscription(context.Background(), caller, "u1")
	require.NoError(t, err)
	assert.True(t, resp.IsActive)
	assert.Equal(t, "price_123", resp.Plan.PriceID)
	require.NotNil(t, resp.PaymentMethod)
	assert.Equal(t, "4242", resp.PaymentMethod.Last4)
}

func TestGetSubscriptionOmitsPaymentMethodOnFailure(t *testing.T) {
	svc, store, gw := newService(t)
	store.Put(activeRecord())
	gw.Fail["RetrievePaymentMethod"] = xerrors.ErrServiceUnavailable

	resp, err := svc.GetSubscription(context.Background(), caller, "u1")
	require.NoError(t, err)
	assert.Nil(t, resp.PaymentMethod)
}

func TestGetSubscriptionWithoutCustomerSkipsProcessor(t *testing.T) {
	svc, store, gw := newService(t)
	store.Put(&subscription.Record{UserID: "u1"})

	resp, err := svc.GetSubscription(context.Background(), caller, "u1")
	require.NoError(t, err)
	assert.False(t, resp.IsActive)
	assert.Zero(t, gw.CallCount("RetrievePaymentMethod"))
}

func TestOwnership(t *testing.T) {
	svc, store, _ := newService(t)
	store.Put(activeRecord())

	_, err := svc.GetSubscription(context.Background(), &identity.User{ID: "u2"}, "u1")
	assert.ErrorIs(t, err, xerrors.ErrForbidden)

	_, err = svc.CancelSubscription(context.Background(), &identity.User{ID: "u2"}, "u1")
	assert.ErrorIs(t, err, xerrors.ErrForbidden)

	_, err = svc.GetBillingHistory(context.Background(), nil, "u1")
	assert.ErrorIs(t, err, xerrors.ErrUnauthorized)
}

func TestGetSubscriptionNotFound(t *testing.T) {
	svc, _, _ := newService(t)

	_, err := svc.GetSubscription(context.Background(), caller, "u1")
	assert.ErrorIs(t, err, xerrors.ErrNotFound)
}

func TestCancelSubscription(t *testing.T) {
	svc, store, gw := newService(t)
	store.Put(activeRecord())

	resp, err := svc.CancelSubscription(context.Background(), caller, "u1")
	require.NoError(t, err)
	assert.Equal(t, "sub_1", resp.SubscriptionID)
	assert.True(t, resp.CancelAtPeriodEnd)
	assert.Equal(t, []string{"sub_1"}, gw.Canceled)
	assert.True(t, store.Get("u1").CancelAtPeriodEnd)
}

func TestCancelSubscriptionLocalFailureIsTolerated(t *testing.T) {
	svc, store, _ := newService(t)
	store.Put(activeRecord())
	store.Fail["UpdateByUserID"] = errors.New("connection reset")

	resp, err := svc.CancelSubscription(context.Background(), caller, "u1")
	require.NoError(t, err)
	assert.True(t, resp.CancelAtPeriodEnd)
}

func TestCancelSubscriptionRequiresActive(t *testing.T) {
	svc, store, gw := newService(t)
	rec := activeRecord()
	rec.IsActive = false
	store.Put(rec)

	_, err := svc.CancelSubscription(context.Background(), caller, "u1")
	assert.ErrorIs(t, err, xerrors.ErrInvalidInput)
	assert.Empty(t, gw.Canceled)
}

func TestCancelSubscriptionProcessorFailure(t *testing.T) {
	svc, store, gw := newService(t)
	store.Put(activeRecord())
	gw.Fail["CancelSubscriptionAtPeriodEnd"] = xerrors.Wrap(xerrors.ErrServiceUnavailable, "cancel")

	_, err := svc.CancelSubscription(context.Background(), caller, "u1")
	assert.ErrorIs(t, err, xerrors.ErrServiceUnavailable)
	assert.False(t, store.Get("u1").CancelAtPeriodEnd)
}

func TestGetBillingHistory(t *testing.T) {
	svc, store, gw := newService(t)
	store.Put(activeRecord())
	paid := time.Date(2025, 6, 1, 0, 0, 0, 0, time.UTC)
	gw.Invoices = []payment.Invoice{
		{ID: "in_2", Description: "1 × Pro (at $9.99 / month)", Total: 999, Currency: "usd", Status: "paid", PaidAt: &paid},
		{ID: "in_1", Description: "", Total: 1050, Currency: "usd", Status: "paid"},
		{ID: "in_0", Description: "Team", Total: 100, Currency: "usd", Status: "paid"},
	}

	resp, err := svc.GetBillingHistory(context.Background(), caller, "u1")
	require.NoError(t, err)
	require.Equal(t, 2, resp.Total)

	first := resp.Invoices[0]
	assert.Equal(t, "Pro", first.PlanName)
	assert.Equal(t, "9.99", first.AmountPaid.StringFixed(2))
	assert.Equal(t, &paid, first.PaidAt)

	second := resp.Invoices[1]
	assert.Equal(t, "Pro", second.PlanName)
	assert.Equal(t, "10.50", second.AmountPaid.StringFixed(2))
}

func TestGetBillingHistoryWithoutCustomer(t *testing.T) {
	svc, store, _ := newService(t)
	store.Put(&subscription.Record{UserID: "u1"})

	_, err := svc.GetBillingHistory(context.Background(), caller, "u1")
	assert.ErrorIs(t, err, xerrors.ErrNotFound)
}

func TestPlanName(t *testing.T) {
	svc, _, _ := newService(t)

	assert.Equal(t, "Pro", svc.planName("1 × Pro (at $9.99 / month)"))
	assert.Equal(t, "Business Annual", svc.planName("3 × Business Annual (at $120.00 / year)"))
	assert.Equal(t, "Starter", svc.planName("Starter"))
	assert.Equal(t, "Pro", svc.planName("   "))
}
