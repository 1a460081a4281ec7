// internal/service/webhook/dispatcher.go
package webhook

import (
	"context"
	"net/http"
	"time"

	"go.uber.org/zap"

	"billing-service/internal/domain/payment"
	webhookdomain "billing-service/internal/domain/webhook"
	"billing-service/internal/pkg/dedupe"
	xerrors "billing-service/internal/pkg/errors"
	"billing-service/internal/pkg/response"
)

// EventReducer applies one verified event to local state.
type EventReducer interface {
	Apply(ctx context.Context, evt *payment.Event) (*Outcome, error)
}

const defaultClaimLease = 2 * time.Minute

type DispatcherConfig struct {
	Secret string
	MaxAge time.Duration
	// ClaimLease bounds how long a crashed delivery blocks redeliveries.
	ClaimLease time.Duration
}

// Dispatcher verifies, filters and deduplicates processor notifications
// before handing them to the reducer.
type Dispatcher struct {
	gateway payment.Gateway
	reducer EventReducer
	ledger  webhookdomain.Ledger
	cache   dedupe.Cache
	secret  string
	maxAge  time.Duration
	lease   time.Duration
	logger  *zap.Logger
	now     func() time.Time
}

func NewDispatcher(
	gateway payment.Gateway,
	reducer EventReducer,
	ledger webhookdomain.Ledger,
	cache dedupe.Cache,
	cfg DispatcherConfig,
	logger *zap.Logger,
) *Dispatcher {
	lease := cfg.ClaimLease
	if lease <= 0 {
		lease = defaultClaimLease
	}
	return &Dispatcher{
		gateway: gateway,
		reducer: reducer,
		ledger:  ledger,
		cache:   cache,
		secret:  cfg.Secret,
		maxAge:  cfg.MaxAge,
		lease:   lease,
		logger:  logger,
		now:     time.Now,
	}
}

// Handle processes one delivery. A 5xx result asks the processor to redeliver;
// everything else is final.
func (d *Dispatcher) Handle(ctx context.Context, payload []byte, signature string) *response.Result {
	if signature == "" {
		return response.NewResult(http.StatusBadRequest, "missing signature header", nil)
	}

	evt, err := d.gateway.VerifyWebhookSignature(payload, signature, d.secret)
	if err != nil {
		d.logger.Warn("webhook signature verification failed", zap.Error(err))
		return response.NewResult(http.StatusBadRequest, "invalid signature", nil)
	}

	log := d.logger.With(zap.String("event_id", evt.ID), zap.String("event_type", evt.Type))

	if msg := d.validate(evt); msg != "" {
		log.Warn("webhook event rejected", zap.String("reason", msg))
		return response.NewResult(http.StatusBadRequest, msg, nil)
	}

	if !webhookdomain.Supported(evt.Type) {
		log.Debug("webhook event type ignored")
		return response.NewResult(http.StatusOK, "event ignored", map[string]any{"event_id": evt.ID, "status": StatusIgnored})
	}

	if d.cache != nil {
		seen, err := d.cache.Seen(ctx, evt.ID)
		if err != nil {
			log.Warn("dedupe cache lookup failed", zap.Error(err))
		} else if seen {
			return d.alreadyProcessed(evt)
		}
	}

	claim, err := d.ledger.Claim(ctx, evt.ID, evt.Type, d.now().UTC(), d.lease)
	if err != nil {
		log.Error("idempotency ledger claim failed", zap.Error(err))
		return response.NewResult(http.StatusInternalServerError, "event could not be processed, retry later", nil)
	}
	switch claim {
	case webhookdomain.ClaimCompleted:
		d.mark(ctx, log, evt.ID)
		return d.alreadyProcessed(evt)
	case webhookdomain.ClaimInProgress:
		log.Info("webhook event is being processed by another delivery")
		return response.NewResult(http.StatusServiceUnavailable, "event is being processed, retry later", nil)
	}

	outcome, err := d.reducer.Apply(ctx, evt)
	if err != nil {
		if xerrors.Retryable(err) {
			log.Error("webhook processing failed, requesting redelivery", zap.Error(err))
			d.release(ctx, log, evt.ID)
			return response.NewResult(http.StatusInternalServerError, "event could not be processed, retry later", nil)
		}

		log.Error("webhook processing failed permanently", zap.Error(err))
		msg := err.Error()
		if rerr := d.record(ctx, evt, webhookdomain.OutcomeError, &msg); rerr != nil {
			log.Error("failed to record webhook event", zap.Error(rerr))
			d.release(ctx, log, evt.ID)
			return response.NewResult(http.StatusInternalServerError, "event could not be recorded, retry later", nil)
		}
		d.mark(ctx, log, evt.ID)
		return response.NewResult(http.StatusOK, "event handled with error", map[string]any{"event_id": evt.ID, "status": webhookdomain.OutcomeError})
	}

	// Reducer effects are idempotent, so a failed append is safe to redeliver
	if err := d.record(ctx, evt, webhookdomain.OutcomeSuccess, nil); err != nil {
		log.Error("failed to record webhook event", zap.Error(err))
		d.release(ctx, log, evt.ID)
		return response.NewResult(http.StatusInternalServerError, "event could not be recorded, retry later", nil)
	}
	d.mark(ctx, log, evt.ID)

	log.Info("webhook event processed", zap.String("status", string(outcome.Status)), zap.String("action", outcome.Action))
	return response.NewResult(http.StatusOK, "event processed", outcome)
}

// validate returns a rejection reason, or "" for a well-formed fresh event.
func (d *Dispatcher) validate(evt *payment.Event) string {
	switch {
	case evt.ID == "":
		return "event id is required"
	case evt.Type == "":
		return "event type is required"
	case len(evt.Object) == 0 || string(evt.Object) == "null":
		return "event data object is required"
	case evt.Created <= 0:
		return "event created timestamp is required"
	}
	if age := d.now().Sub(time.Unix(evt.Created, 0)); age > d.maxAge {
		return "event is too old"
	}
	return ""
}

func (d *Dispatcher) record(ctx context.Context, evt *payment.Event, outcome webhookdomain.Outcome, msg *string) error {
	return d.ledger.Record(ctx, &webhookdomain.ProcessedEvent{
		EventID:     evt.ID,
		EventType:   evt.Type,
		Outcome:     outcome,
		Error:       msg,
		ProcessedAt: d.now().UTC(),
	})
}

// release drops the claim so a redelivery is processed. A failed release
// only delays that until the lease expires.
func (d *Dispatcher) release(ctx context.Context, log *zap.Logger, eventID string) {
	if err := d.ledger.Release(context.WithoutCancel(ctx), eventID); err != nil {
		log.Warn("failed to release webhook claim", zap.Error(err))
	}
}

func (d *Dispatcher) mark(ctx context.Context, log *zap.Logger, eventID string) {
	if d.cache == nil {
		return
	}
	if err := d.cache.Mark(ctx, eventID); err != nil {
		log.Warn("dedupe cache update failed", zap.Error(err))
	}
}

func (d *Dispatcher) alreadyProcessed(evt *payment.Event) *response.Result {
	return response.NewResult(http.StatusOK, "event already processed", map[string]any{"event_id": evt.ID, "status": "duplicate"})
}
