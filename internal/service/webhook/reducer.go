// internal/service/webhook/reducer.go
package webhook

import (
	"context"
	"fmt"
	"time"

	"go.uber.org/zap"

	"billing-service/internal/domain/payment"
	"billing-service/internal/domain/subscription"
	webhookdomain "billing-service/internal/domain/webhook"
	xerrors "billing-service/internal/pkg/errors"
)

type Status string

const (
	StatusSuccess      Status = "success"
	StatusNoop         Status = "noop"
	StatusManualReview Status = "manual_review"
	StatusIgnored      Status = "ignored"
)

// Outcome describes what applying an event did to the store.
type Outcome struct {
	Status Status         `json:"status"`
	Action string         `json:"action"`
	Data   map[string]any `json:"data,omitempty"`
}

func noop(action, customerID string) *Outcome {
	return &Outcome{Status: StatusNoop, Action: action, Data: map[string]any{"customer_id": customerID}}
}

// Reducer applies processor events to subscription records, keyed by customer.
type Reducer struct {
	store   subscription.Store
	gateway payment.Gateway
	logger  *zap.Logger
	now     func() time.Time
}

func NewReducer(store subscription.Store, gateway payment.Gateway, logger *zap.Logger) *Reducer {
	return &Reducer{
		store:   store,
		gateway: gateway,
		logger:  logger,
		now:     time.Now,
	}
}

// Apply dispatches on the event type. Missing records and lost update races
// are reported as noop outcomes, not errors.
func (r *Reducer) Apply(ctx context.Context, evt *payment.Event) (*Outcome, error) {
	switch evt.Type {
	case webhookdomain.EventSubscriptionCreated:
		return r.subscriptionCreated(ctx, evt)
	case webhookdomain.EventSubscriptionUpdated:
		return r.subscriptionUpdated(ctx, evt)
	case webhookdomain.EventSubscriptionDeleted:
		return r.subscriptionDeleted(ctx, evt)
	case webhookdomain.EventInvoicePaymentSucceeded:
		return r.invoicePaymentSucceeded(ctx, evt)
	case webhookdomain.EventInvoicePaymentFailed:
		return r.invoicePaymentFailed(ctx, evt)
	default:
		return &Outcome{Status: StatusIgnored, Action: "unsupported_event"}, nil
	}
}

func (r *Reducer) subscriptionCreated(ctx context.Context, evt *payment.Event) (*Outcome, error) {
	sub, err := decodeSubscription(evt)
	if err != nil {
		return nil, err
	}
	customerID := string(sub.Customer)

	plan, err := r.resolvePlan(ctx, sub)
	if err != nil {
		return nil, err
	}
	patch := createdPatch(sub, plan)
	patch.EventAt = eventTime(evt)

	existing, err := r.store.FindByCustomerID(ctx, customerID)
	switch {
	case err == nil:
		if patch.StaleFor(existing) {
			return r.stale(evt, customerID), nil
		}
		rec, err := r.store.UpdateByCustomerID(ctx, customerID, patch)
		return r.finishUpdate(rec, err, "subscription_activated", customerID)
	case !xerrors.Is(err, xerrors.ErrNotFound):
		return nil, storageError("find subscription by customer", err)
	}

	userID := sub.Metadata["user_id"]
	if userID == "" {
		r.logger.Warn("subscription for unknown customer has no user_id metadata, manual review required",
			zap.String("customer_id", customerID),
			zap.String("subscription_id", sub.ID))
		return &Outcome{
			Status: StatusManualReview,
			Action: "missing_user_id",
			Data:   map[string]any{"customer_id": customerID, "subscription_id": sub.ID},
		}, nil
	}

	patch.CustomerID = subscription.Set(&customerID)
	rec := &subscription.Record{UserID: userID}
	patch.Apply(rec, r.now())

	created, err := r.store.Create(ctx, rec)
	if err == nil {
		r.logger.Info("subscription record created from webhook",
			zap.String("user_id", userID),
			zap.String("customer_id", customerID),
			zap.Bool("is_active", created.IsActive))
		return &Outcome{
			Status: StatusSuccess,
			Action: "subscription_record_created",
			Data:   map[string]any{"user_id": userID, "customer_id": customerID, "is_active": created.IsActive},
		}, nil
	}
	if !xerrors.Is(err, xerrors.ErrConflict) {
		return nil, storageError("create subscription record", err)
	}

	// The user already has a record, typically one left without a customer
	updated, err := r.store.UpdateByUserID(ctx, userID, patch)
	return r.finishUpdate(updated, err, "subscription_record_linked", customerID)
}

func (r *Reducer) subscriptionUpdated(ctx context.Context, evt *payment.Event) (*Outcome, error) {
	sub, err := decodeSubscription(evt)
	if err != nil {
		return nil, err
	}
	customerID := string(sub.Customer)

	current, out, err := r.requireRecord(ctx, customerID)
	if out != nil || err != nil {
		return out, err
	}
	at := eventTime(evt)
	if (subscription.Patch{EventAt: at}).StaleFor(current) {
		return r.stale(evt, customerID), nil
	}

	var plan *subscription.PlanSnapshot
	if _, changed := evt.PreviousAttributes["items"]; changed {
		if plan, err = r.resolvePlan(ctx, sub); err != nil {
			return nil, err
		}
	}

	patch := updatedPatch(sub, evt.PreviousAttributes, plan)
	patch.EventAt = at

	rec, err := r.store.UpdateByCustomerID(ctx, customerID, patch)
	return r.finishUpdate(rec, err, "subscription_updated", customerID)
}

func (r *Reducer) subscriptionDeleted(ctx context.Context, evt *payment.Event) (*Outcome, error) {
	sub, err := decodeSubscription(evt)
	if err != nil {
		return nil, err
	}
	customerID := string(sub.Customer)

	current, out, err := r.requireRecord(ctx, customerID)
	if out != nil || err != nil {
		return out, err
	}
	patch := deletedPatch(sub, r.now())
	patch.EventAt = eventTime(evt)
	if patch.StaleFor(current) {
		return r.stale(evt, customerID), nil
	}

	rec, err := r.store.UpdateByCustomerID(ctx, customerID, patch)
	return r.finishUpdate(rec, err, "subscription_canceled", customerID)
}

func (r *Reducer) invoicePaymentSucceeded(ctx context.Context, evt *payment.Event) (*Outcome, error) {
	inv, err := decodeInvoice(evt)
	if err != nil {
		return nil, err
	}
	customerID := string(inv.Customer)

	if inv.subscriptionID() == "" {
		return &Outcome{Status: StatusIgnored, Action: "not_a_subscription_invoice"}, nil
	}
	current, out, err := r.requireRecord(ctx, customerID)
	if out != nil || err != nil {
		return out, err
	}

	// Only the subscription the record tracks may reactivate it
	if current.HasSubscription() && *current.SubscriptionID != inv.subscriptionID() {
		r.logger.Info("invoice is for another subscription, skipping",
			zap.String("customer_id", customerID),
			zap.String("invoice_subscription_id", inv.subscriptionID()),
			zap.String("record_subscription_id", *current.SubscriptionID))
		out := noop("subscription_mismatch", customerID)
		out.Data["subscription_id"] = inv.subscriptionID()
		return out, nil
	}

	patch := paidPatch(inv)
	patch.EventAt = eventTime(evt)
	if patch.StaleFor(current) {
		return r.stale(evt, customerID), nil
	}

	rec, err := r.store.UpdateByCustomerID(ctx, customerID, patch)
	return r.finishUpdate(rec, err, "payment_recorded", customerID)
}

// invoicePaymentFailed never deactivates; the processor retries on its own
// schedule and a final failure arrives as subscription deleted.
func (r *Reducer) invoicePaymentFailed(ctx context.Context, evt *payment.Event) (*Outcome, error) {
	inv, err := decodeInvoice(evt)
	if err != nil {
		return nil, err
	}
	customerID := string(inv.Customer)

	if _, out, err := r.requireRecord(ctx, customerID); out != nil || err != nil {
		return out, err
	}

	fields := []zap.Field{
		zap.String("customer_id", customerID),
		zap.String("invoice_id", inv.ID),
		zap.Int64("attempt_count", inv.AttemptCount),
		zap.Int64("amount_due", inv.AmountDue),
	}
	if next := epochToTime(inv.NextPaymentAttempt); next != nil {
		fields = append(fields, zap.Time("next_payment_attempt", *next))
	}
	r.logger.Warn("invoice payment failed", fields...)

	return &Outcome{
		Status: StatusSuccess,
		Action: "payment_failed_logged",
		Data: map[string]any{
			"customer_id":   customerID,
			"invoice_id":    inv.ID,
			"attempt_count": inv.AttemptCount,
		},
	}, nil
}

// requireRecord loads the customer's record, or returns a noop outcome when
// there is none.
func (r *Reducer) requireRecord(ctx context.Context, customerID string) (*subscription.Record, *Outcome, error) {
	rec, err := r.store.FindByCustomerID(ctx, customerID)
	switch {
	case err == nil:
		return rec, nil, nil
	case xerrors.Is(err, xerrors.ErrNotFound):
		r.logger.Info("no subscription record for customer, skipping", zap.String("customer_id", customerID))
		return nil, noop("record_not_found", customerID), nil
	default:
		return nil, nil, storageError("find subscription by customer", err)
	}
}

// stale reports an event older than the last one applied to the record.
func (r *Reducer) stale(evt *payment.Event, customerID string) *Outcome {
	r.logger.Info("newer event already applied, skipping",
		zap.String("event_id", evt.ID),
		zap.String("customer_id", customerID))
	return noop("stale_event", customerID)
}

// finishUpdate classifies the result of a conditional update.
func (r *Reducer) finishUpdate(rec *subscription.Record, err error, action, customerID string) (*Outcome, error) {
	switch {
	case err == nil:
		r.logger.Info("subscription record updated",
			zap.String("action", action),
			zap.String("customer_id", customerID),
			zap.Bool("is_active", rec.IsActive))
		return &Outcome{
			Status: StatusSuccess,
			Action: action,
			Data: map[string]any{
				"user_id":              rec.UserID,
				"customer_id":          customerID,
				"is_active":            rec.IsActive,
				"cancel_at_period_end": rec.CancelAtPeriodEnd,
			},
		}, nil
	case xerrors.Is(err, xerrors.ErrNotFound):
		r.logger.Info("subscription record vanished before update", zap.String("customer_id", customerID))
		return noop("record_not_found", customerID), nil
	case xerrors.Is(err, xerrors.ErrStaleEvent):
		r.logger.Info("newer event applied concurrently, skipping", zap.String("customer_id", customerID))
		return noop("stale_event", customerID), nil
	case xerrors.Is(err, xerrors.ErrConflict):
		r.logger.Info("concurrent update already applied", zap.String("customer_id", customerID))
		return noop("duplicate_update", customerID), nil
	default:
		return nil, storageError(action, err)
	}
}

// resolvePlan snapshots the first item's price. A price the processor no
// longer knows falls back to the copy embedded in the event.
func (r *Reducer) resolvePlan(ctx context.Context, sub *subscriptionObject) (*subscription.PlanSnapshot, error) {
	price, ok := sub.firstPrice()
	if !ok {
		return nil, nil
	}

	plan, err := r.gateway.RetrievePrice(ctx, price.ID)
	switch {
	case err == nil:
		return plan, nil
	case xerrors.Is(err, xerrors.ErrPlanResolution), xerrors.Is(err, xerrors.ErrNotFound):
		r.logger.Warn("price not found, using event copy", zap.String("price_id", price.ID))
		return price.snapshot(), nil
	default:
		return nil, fmt.Errorf("resolve plan: %w", err)
	}
}

// eventTime is the processor's creation time for the event, nil when unknown.
func eventTime(evt *payment.Event) *time.Time {
	return epochToTime(evt.Created)
}

func decodeSubscription(evt *payment.Event) (*subscriptionObject, error) {
	sub, err := decodeObject[subscriptionObject](evt.Object)
	if err != nil {
		return nil, err
	}
	if sub.Customer == "" {
		return nil, fmt.Errorf("subscription %s has no customer: %w", sub.ID, xerrors.ErrInvalidInput)
	}
	return sub, nil
}

func decodeInvoice(evt *payment.Event) (*invoiceObject, error) {
	inv, err := decodeObject[invoiceObject](evt.Object)
	if err != nil {
		return nil, err
	}
	if inv.Customer == "" {
		return nil, fmt.Errorf("invoice %s has no customer: %w", inv.ID, xerrors.ErrInvalidInput)
	}
	return inv, nil
}

func storageError(op string, err error) error {
	if xerrors.Retryable(err) {
		return fmt.Errorf("%s: %w", op, err)
	}
	return fmt.Errorf("%s: %w: %w", op, xerrors.ErrStorage, err)
}
