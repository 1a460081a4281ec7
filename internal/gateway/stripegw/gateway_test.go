package stripegw

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stripe/stripe-go/v82"
	"github.com/stripe/stripe-go/v82/webhook"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"billing-service/internal/domain/payment"
	xerrors "billing-service/internal/pkg/errors"
)

func newTestGateway(t *testing.T, handler http.HandlerFunc) *Gateway {
	t.Helper()
	srv := httptest.NewServer(handler)
	t.Cleanup(srv.Close)
	return NewWithURL("sk_test_123", srv.URL, zap.NewNop())
}

func writeStripeError(w http.ResponseWriter, status int, typ, code, msg string) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(map[string]any{
		"error": map[string]any{"type": typ, "code": code, "message": msg},
	})
}

func TestRetrievePrice(t *testing.T) {
	g := newTestGateway(t, func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, http.MethodGet, r.Method)
		assert.Equal(t, "/v1/prices/price_123", r.URL.Path)
		assert.Equal(t, "product", r.URL.Query().Get("expand[0]"))

		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(`{
			"id": "price_123",
			"object": "price",
			"unit_amount": 999,
			"currency": "usd",
			"recurring": {"interval": "month", "interval_count": 1},
			"product": {"id": "prod_1", "object": "product", "name": "Pro"}
		}`))
	})

	snap, err := g.RetrievePrice(context.Background(), "price_123")
	require.NoError(t, err)

	assert.Equal(t, "price_123", snap.PriceID)
	assert.Equal(t, int64(999), snap.Amount)
	assert.Equal(t, "usd", snap.Currency)
	assert.Equal(t, "month", snap.Interval)
	assert.Equal(t, int64(1), snap.IntervalCount)
	assert.Equal(t, "prod_1", snap.ProductID)
	assert.Equal(t, "Pro", snap.ProductName)
}

func TestRetrievePriceMissing(t *testing.T) {
	g := newTestGateway(t, func(w http.ResponseWriter, r *http.Request) {
		writeStripeError(w, http.StatusNotFound, "invalid_request_error", "resource_missing", "No such price: 'price_gone'")
	})

	_, err := g.RetrievePrice(context.Background(), "price_gone")
	assert.ErrorIs(t, err, xerrors.ErrPlanResolution)
}

func TestCreateCustomer(t *testing.T) {
	g := newTestGateway(t, func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, http.MethodPost, r.Method)
		assert.Equal(t, "/v1/customers", r.URL.Path)
		require.NoError(t, r.ParseForm())
		assert.Equal(t, "ada@example.com", r.PostForm.Get("email"))
		assert.Equal(t, "Ada", r.PostForm.Get("name"))
		assert.Equal(t, "u1", r.PostForm.Get("metadata[user_id]"))

		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(`{"id": "cus_123", "object": "customer"}`))
	})

	id, err := g.CreateCustomer(context.Background(), payment.CustomerProfile{UserID: "u1", Email: "ada@example.com", Name: "Ada"})
	require.NoError(t, err)
	assert.Equal(t, "cus_123", id)
}

func TestDeleteCustomerAlreadyGone(t *testing.T) {
	g := newTestGateway(t, func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, http.MethodDelete, r.Method)
		writeStripeError(w, http.StatusNotFound, "invalid_request_error", "resource_missing", "No such customer")
	})

	assert.NoError(t, g.DeleteCustomer(context.Background(), "cus_gone"))
}

func TestServerErrorsAreRetryable(t *testing.T) {
	g := newTestGateway(t, func(w http.ResponseWriter, r *http.Request) {
		writeStripeError(w, http.StatusInternalServerError, "api_error", "", "something broke")
	})

	_, err := g.CreateCustomer(context.Background(), payment.CustomerProfile{UserID: "u1", Email: "a@example.com", Name: "a"})
	assert.ErrorIs(t, err, xerrors.ErrServiceUnavailable)
	assert.True(t, xerrors.Retryable(err))
}

func TestMapError(t *testing.T) {
	tests := []struct {
		name string
		err  error
		want error
	}{
		{"missing", &stripe.Error{HTTPStatusCode: 404, Code: stripe.ErrorCodeResourceMissing}, xerrors.ErrNotFound},
		{"rate limited", &stripe.Error{HTTPStatusCode: 429}, xerrors.ErrServiceUnavailable},
		{"server", &stripe.Error{HTTPStatusCode: 502, Type: stripe.ErrorTypeAPI}, xerrors.ErrServiceUnavailable},
		{"bad key", &stripe.Error{HTTPStatusCode: 401}, xerrors.ErrInternal},
		{"bad request", &stripe.Error{HTTPStatusCode: 400, Type: stripe.ErrorTypeInvalidRequest}, xerrors.ErrInvalidInput},
		{"transport", errors.New("dial tcp: connection refused"), xerrors.ErrServiceUnavailable},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.ErrorIs(t, mapError("op", tt.err), tt.want)
		})
	}
}

func TestVerifyWebhookSignature(t *testing.T) {
	g := New("sk_test_123", zap.NewNop())
	payload := []byte(`{
		"id": "evt_1",
		"object": "event",
		"type": "customer.subscription.deleted",
		"created": 1760000000,
		"api_version": "2020-08-27",
		"data": {
			"object": {"id": "sub_1", "object": "subscription", "customer": "cus_1"},
			"previous_attributes": {"status": "active"}
		}
	}`)

	signed := webhook.GenerateTestSignedPayload(&webhook.UnsignedPayload{
		Payload:   payload,
		Secret:    "whsec_test",
		Timestamp: time.Now(),
	})

	evt, err := g.VerifyWebhookSignature(payload, signed.Header, "whsec_test")
	require.NoError(t, err)
	assert.Equal(t, "evt_1", evt.ID)
	assert.Equal(t, "customer.subscription.deleted", evt.Type)
	assert.Equal(t, int64(1760000000), evt.Created)
	assert.JSONEq(t, `{"id": "sub_1", "object": "subscription", "customer": "cus_1"}`, string(evt.Object))
	assert.Equal(t, "active", evt.PreviousAttributes["status"])

	_, err = g.VerifyWebhookSignature(payload, signed.Header, "whsec_other")
	assert.ErrorIs(t, err, xerrors.ErrSignature)

	_, err = g.VerifyWebhookSignature(payload, "t=1,v1=deadbeef", "whsec_test")
	assert.ErrorIs(t, err, xerrors.ErrSignature)
}
