package webhook

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap/zaptest"

	"billing-service/internal/domain/payment"
	webhookdomain "billing-service/internal/domain/webhook"
	"billing-service/internal/pkg/dedupe"
	xerrors "billing-service/internal/pkg/errors"
	"billing-service/internal/testutil"
)

type mockReducer struct {
	mock.Mock
}

func (m *mockReducer) Apply(ctx context.Context, evt *payment.Event) (*Outcome, error) {
	args := m.Called(ctx, evt)
	if o := args.Get(0); o != nil {
		return o.(*Outcome), args.Error(1)
	}
	return nil, args.Error(1)
}

type dispatcherFixture struct {
	dispatcher *Dispatcher
	reducer    *mockReducer
	ledger     *testutil.MemoryLedger
	gateway    *testutil.FakeGateway
}

func newDispatcher(t *testing.T, cache dedupe.Cache) *dispatcherFixture {
	t.Helper()
	f := &dispatcherFixture{
		reducer: &mockReducer{},
		ledger:  testutil.NewMemoryLedger(),
		gateway: testutil.NewFakeGateway(),
	}
	f.dispatcher = NewDispatcher(f.gateway, f.reducer, f.ledger, cache,
		DispatcherConfig{Secret: "whsec_test", MaxAge: 24 * time.Hour}, zaptest.NewLogger(t))
	f.dispatcher.now = func() time.Time { return fixedNow }
	t.Cleanup(func() { f.reducer.AssertExpectations(t) })
	return f
}

func payload(t *testing.T, id, typ string, created time.Time) []byte {
	t.Helper()
	b, err := json.Marshal(map[string]any{
		"id":      id,
		"type":    typ,
		"created": created.Unix(),
		"data":    map[string]any{"object": map[string]any{"id": "sub_1", "customer": "cus_1"}},
	})
	require.NoError(t, err)
	return b
}

func TestHandleAppliesEventOnce(t *testing.T) {
	f := newDispatcher(t, nil)
	body := payload(t, "evt_1", webhookdomain.EventSubscriptionUpdated, fixedNow.Add(-time.Minute))
	f.reducer.On("Apply", mock.Anything, mock.MatchedBy(func(e *payment.Event) bool { return e.ID == "evt_1" })).
		Return(&Outcome{Status: StatusSuccess, Action: "subscription_updated"}, nil).Once()

	first := f.dispatcher.Handle(context.Background(), body, testutil.Signature)
	assert.Equal(t, http.StatusOK, first.StatusCode)
	assert.Equal(t, "event processed", first.Message)

	second := f.dispatcher.Handle(context.Background(), body, testutil.Signature)
	assert.Equal(t, http.StatusOK, second.StatusCode)
	assert.Equal(t, "event already processed", second.Message)

	rec, ok := f.ledger.Event("evt_1")
	require.True(t, ok)
	assert.Equal(t, webhookdomain.OutcomeSuccess, rec.Outcome)
	f.reducer.AssertNumberOfCalls(t, "Apply", 1)
}

func TestHandleUsesCacheBeforeLedger(t *testing.T) {
	cache := dedupe.NewMemory(time.Hour, 100)
	f := newDispatcher(t, cache)
	body := payload(t, "evt_1", webhookdomain.EventSubscriptionUpdated, fixedNow)
	f.reducer.On("Apply", mock.Anything, mock.Anything).Return(&Outcome{Status: StatusNoop}, nil).Once()

	f.dispatcher.Handle(context.Background(), body, testutil.Signature)

	// A broken ledger is not consulted once the cache knows the id
	f.ledger.Fail["Claim"] = errors.New("connection reset")
	res := f.dispatcher.Handle(context.Background(), body, testutil.Signature)
	assert.Equal(t, http.StatusOK, res.StatusCode)
	assert.Equal(t, "event already processed", res.Message)
}

func TestHandleRejectsMissingSignature(t *testing.T) {
	f := newDispatcher(t, nil)

	res := f.dispatcher.Handle(context.Background(), payload(t, "evt_1", webhookdomain.EventSubscriptionUpdated, fixedNow), "")
	assert.Equal(t, http.StatusBadRequest, res.StatusCode)
	assert.Zero(t, f.gateway.CallCount("VerifyWebhookSignature"))
}

func TestHandleRejectsBadSignature(t *testing.T) {
	f := newDispatcher(t, nil)

	res := f.dispatcher.Handle(context.Background(), payload(t, "evt_1", webhookdomain.EventSubscriptionUpdated, fixedNow), "t=1,v1=forged")
	assert.Equal(t, http.StatusBadRequest, res.StatusCode)
	assert.Equal(t, "invalid signature", res.Message)
	_, ok := f.ledger.Event("evt_1")
	assert.False(t, ok)
}

func TestHandleRejectsMalformedAndStaleEvents(t *testing.T) {
	tests := []struct {
		name string
		body func(t *testing.T) []byte
		want string
	}{
		{"stale", func(t *testing.T) []byte {
			return payload(t, "evt_1", webhookdomain.EventSubscriptionUpdated, fixedNow.Add(-25*time.Hour))
		}, "event is too old"},
		{"missing id", func(t *testing.T) []byte {
			return payload(t, "", webhookdomain.EventSubscriptionUpdated, fixedNow)
		}, "event id is required"},
		{"missing object", func(t *testing.T) []byte {
			return []byte(`{"id":"evt_1","type":"customer.subscription.updated","created":1748779200}`)
		}, "event data object is required"},
		{"missing created", func(t *testing.T) []byte {
			return []byte(`{"id":"evt_1","type":"customer.subscription.updated","data":{"object":{"id":"sub_1"}}}`)
		}, "event created timestamp is required"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			f := newDispatcher(t, nil)
			res := f.dispatcher.Handle(context.Background(), tt.body(t), testutil.Signature)
			assert.Equal(t, http.StatusBadRequest, res.StatusCode)
			assert.Equal(t, tt.want, res.Message)
		})
	}
}

func TestHandleIgnoresUnsupportedTypes(t *testing.T) {
	f := newDispatcher(t, nil)

	res := f.dispatcher.Handle(context.Background(), payload(t, "evt_1", "customer.created", fixedNow), testutil.Signature)
	assert.Equal(t, http.StatusOK, res.StatusCode)
	assert.Equal(t, "event ignored", res.Message)
	f.reducer.AssertNotCalled(t, "Apply", mock.Anything, mock.Anything)
}

func TestHandleRetryableFailureIsNotRecorded(t *testing.T) {
	f := newDispatcher(t, nil)
	body := payload(t, "evt_1", webhookdomain.EventSubscriptionDeleted, fixedNow)
	f.reducer.On("Apply", mock.Anything, mock.Anything).
		Return(nil, xerrors.Wrap(xerrors.ErrStorage, "update")).Once()
	f.reducer.On("Apply", mock.Anything, mock.Anything).
		Return(&Outcome{Status: StatusSuccess, Action: "subscription_canceled"}, nil).Once()

	res := f.dispatcher.Handle(context.Background(), body, testutil.Signature)
	assert.Equal(t, http.StatusInternalServerError, res.StatusCode)
	_, ok := f.ledger.Event("evt_1")
	assert.False(t, ok)

	res = f.dispatcher.Handle(context.Background(), body, testutil.Signature)
	assert.Equal(t, http.StatusOK, res.StatusCode)
	assert.Equal(t, "event processed", res.Message)
}

func TestHandlePermanentFailureIsAcknowledged(t *testing.T) {
	f := newDispatcher(t, nil)
	f.reducer.On("Apply", mock.Anything, mock.Anything).
		Return(nil, xerrors.Wrap(xerrors.ErrInvalidInput, "decode event object")).Once()

	res := f.dispatcher.Handle(context.Background(), payload(t, "evt_1", webhookdomain.EventInvoicePaymentFailed, fixedNow), testutil.Signature)
	assert.Equal(t, http.StatusOK, res.StatusCode)
	assert.Equal(t, "event handled with error", res.Message)

	rec, ok := f.ledger.Event("evt_1")
	require.True(t, ok)
	assert.Equal(t, webhookdomain.OutcomeError, rec.Outcome)
	require.NotNil(t, rec.Error)
	assert.Contains(t, *rec.Error, "decode event object")
}

func TestHandleLedgerFailures(t *testing.T) {
	t.Run("claim", func(t *testing.T) {
		f := newDispatcher(t, nil)
		f.ledger.Fail["Claim"] = errors.New("connection reset")

		res := f.dispatcher.Handle(context.Background(), payload(t, "evt_1", webhookdomain.EventSubscriptionUpdated, fixedNow), testutil.Signature)
		assert.Equal(t, http.StatusInternalServerError, res.StatusCode)
	})

	t.Run("append", func(t *testing.T) {
		f := newDispatcher(t, nil)
		f.ledger.Fail["Record"] = errors.New("connection reset")
		f.reducer.On("Apply", mock.Anything, mock.Anything).Return(&Outcome{Status: StatusSuccess}, nil).Once()

		res := f.dispatcher.Handle(context.Background(), payload(t, "evt_1", webhookdomain.EventSubscriptionUpdated, fixedNow), testutil.Signature)
		assert.Equal(t, http.StatusInternalServerError, res.StatusCode)
		_, ok := f.ledger.Event("evt_1")
		assert.False(t, ok, "claim released for the redelivery")
	})
}

func TestHandleWithRealReducerIsIdempotent(t *testing.T) {
	store := testutil.NewMemoryStore()
	seedRecord(store, true)
	gw := testutil.NewFakeGateway()
	ledger := testutil.NewMemoryLedger()
	reducer := NewReducer(store, gw, zaptest.NewLogger(t))
	d := NewDispatcher(gw, reducer, ledger, nil, DispatcherConfig{MaxAge: 24 * time.Hour}, zaptest.NewLogger(t))
	d.now = func() time.Time { return fixedNow }

	body, err := json.Marshal(map[string]any{
		"id":      "evt_9",
		"type":    webhookdomain.EventSubscriptionDeleted,
		"created": fixedNow.Unix(),
		"data":    map[string]any{"object": subscriptionObj("canceled", nil)},
	})
	require.NoError(t, err)

	res := d.Handle(context.Background(), body, testutil.Signature)
	require.Equal(t, http.StatusOK, res.StatusCode)
	assert.False(t, store.Get("u1").IsActive)

	store.Fail["UpdateByCustomerID"] = errors.New("must not be called")
	res = d.Handle(context.Background(), body, testutil.Signature)
	assert.Equal(t, http.StatusOK, res.StatusCode)
	assert.Equal(t, "event already processed", res.Message)
}

// blockingReducer parks inside Apply until released.
type blockingReducer struct {
	entered chan struct{}
	release chan struct{}
	calls   atomic.Int32
}

func (b *blockingReducer) Apply(_ context.Context, _ *payment.Event) (*Outcome, error) {
	b.calls.Add(1)
	b.entered <- struct{}{}
	<-b.release
	return &Outcome{Status: StatusSuccess, Action: "subscription_updated"}, nil
}

func TestHandleConcurrentDeliveriesApplyOnce(t *testing.T) {
	reducer := &blockingReducer{entered: make(chan struct{}, 1), release: make(chan struct{})}
	ledger := testutil.NewMemoryLedger()
	gw := testutil.NewFakeGateway()
	d := NewDispatcher(gw, reducer, ledger, dedupe.NewMemory(time.Hour, 100),
		DispatcherConfig{MaxAge: 24 * time.Hour}, zaptest.NewLogger(t))
	d.now = func() time.Time { return fixedNow }
	body := payload(t, "evt_dup", webhookdomain.EventSubscriptionUpdated, fixedNow)

	first := make(chan int, 1)
	go func() {
		first <- d.Handle(context.Background(), body, testutil.Signature).StatusCode
	}()
	<-reducer.entered

	second := d.Handle(context.Background(), body, testutil.Signature)
	assert.Equal(t, http.StatusServiceUnavailable, second.StatusCode)
	assert.Equal(t, "event is being processed, retry later", second.Message)

	close(reducer.release)
	assert.Equal(t, http.StatusOK, <-first)

	third := d.Handle(context.Background(), body, testutil.Signature)
	assert.Equal(t, "event already processed", third.Message)
	assert.Equal(t, int32(1), reducer.calls.Load())
}

func TestHandleTakesOverExpiredClaim(t *testing.T) {
	f := newDispatcher(t, nil)
	body := payload(t, "evt_1", webhookdomain.EventSubscriptionUpdated, fixedNow)

	// A delivery that crashed after claiming
	state, err := f.ledger.Claim(context.Background(), "evt_1", webhookdomain.EventSubscriptionUpdated, fixedNow.Add(-time.Hour), time.Minute)
	require.NoError(t, err)
	require.Equal(t, webhookdomain.ClaimAcquired, state)

	f.reducer.On("Apply", mock.Anything, mock.Anything).Return(&Outcome{Status: StatusSuccess}, nil).Once()
	res := f.dispatcher.Handle(context.Background(), body, testutil.Signature)
	assert.Equal(t, http.StatusOK, res.StatusCode)
	assert.Equal(t, "event processed", res.Message)

	rec, ok := f.ledger.Event("evt_1")
	require.True(t, ok)
	assert.Equal(t, webhookdomain.OutcomeSuccess, rec.Outcome)
}
