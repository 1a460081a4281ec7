// internal/gateway/stripegw/gateway.go
package stripegw

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"time"

	"github.com/stripe/stripe-go/v82"
	"go.uber.org/zap"

	"billing-service/internal/domain/payment"
	xerrors "billing-service/internal/pkg/errors"
)

const openSessionLimit = 10

// Gateway implements payment.Gateway on top of the Stripe API.
type Gateway struct {
	client *stripe.Client
	logger *zap.Logger
}

var _ payment.Gateway = (*Gateway)(nil)

func New(secretKey string, logger *zap.Logger) *Gateway {
	return &Gateway{
		client: stripe.NewClient(secretKey),
		logger: logger,
	}
}

// NewWithURL points the client at another API host, such as stripe-mock.
func NewWithURL(secretKey, url string, logger *zap.Logger) *Gateway {
	backend := stripe.GetBackendWithConfig(stripe.APIBackend, &stripe.BackendConfig{
		URL:               stripe.String(url),
		MaxNetworkRetries: stripe.Int64(0),
		LeveledLogger:     &stripe.LeveledLogger{Level: stripe.LevelNull},
	})
	return &Gateway{
		client: stripe.NewClient(secretKey, stripe.WithBackends(&stripe.Backends{
			API:     backend,
			Connect: backend,
			Uploads: backend,
		})),
		logger: logger,
	}
}

func (g *Gateway) CreateCustomer(ctx context.Context, profile payment.CustomerProfile) (string, error) {
	params := &stripe.CustomerCreateParams{
		Email:    stripe.String(profile.Email),
		Name:     stripe.String(profile.Name),
		Metadata: map[string]string{"user_id": profile.UserID},
	}

	c, err := g.client.V1Customers.Create(ctx, params)
	if err != nil {
		return "", mapError("create customer", err)
	}

	g.logger.Info("stripe customer created",
		zap.String("customer_id", c.ID),
		zap.String("user_id", profile.UserID))
	return c.ID, nil
}

// DeleteCustomer treats an already deleted customer as success.
func (g *Gateway) DeleteCustomer(ctx context.Context, customerID string) error {
	_, err := g.client.V1Customers.Delete(ctx, customerID, nil)
	if err != nil {
		mapped := mapError("delete customer", err)
		if errors.Is(mapped, xerrors.ErrNotFound) {
			return nil
		}
		return mapped
	}

	g.logger.Info("stripe customer deleted", zap.String("customer_id", customerID))
	return nil
}

func (g *Gateway) CreateCheckoutSession(ctx context.Context, spec payment.SessionSpec, customerID string) (*payment.CheckoutSession, error) {
	params := &stripe.CheckoutSessionCreateParams{
		Mode:               stripe.String(string(stripe.CheckoutSessionModeSubscription)),
		Customer:           stripe.String(customerID),
		PaymentMethodTypes: stripe.StringSlice([]string{"card"}),
		LineItems: []*stripe.CheckoutSessionCreateLineItemParams{{
			Price:    stripe.String(spec.PriceID),
			Quantity: stripe.Int64(spec.Quantity),
		}},
		SuccessURL: stripe.String(spec.SuccessURL),
		CancelURL:  stripe.String(spec.CancelURL),
		Metadata:   spec.Metadata,
		// Subscription events only carry the subscription's own metadata
		SubscriptionData: &stripe.CheckoutSessionCreateSubscriptionDataParams{
			Metadata: spec.Metadata,
		},
	}

	s, err := g.client.V1CheckoutSessions.Create(ctx, params)
	if err != nil {
		return nil, mapError("create checkout session", err)
	}

	session := toCheckoutSession(s)
	if len(session.PriceIDs) == 0 {
		session.PriceIDs = []string{spec.PriceID}
	}
	return session, nil
}

func (g *Gateway) RetrieveCheckoutSession(ctx context.Context, sessionID string) (*payment.CheckoutSession, error) {
	params := &stripe.CheckoutSessionRetrieveParams{}
	params.AddExpand("line_items")

	s, err := g.client.V1CheckoutSessions.Retrieve(ctx, sessionID, params)
	if err != nil {
		return nil, mapError("retrieve checkout session", err)
	}
	return toCheckoutSession(s), nil
}

func (g *Gateway) ListOpenCheckoutSessions(ctx context.Context, customerID string) ([]payment.CheckoutSession, error) {
	params := &stripe.CheckoutSessionListParams{
		Customer: stripe.String(customerID),
		Status:   stripe.String(string(stripe.CheckoutSessionStatusOpen)),
	}
	params.Limit = stripe.Int64(openSessionLimit)
	params.AddExpand("data.line_items")

	var sessions []payment.CheckoutSession
	for s, err := range g.client.V1CheckoutSessions.List(ctx, params) {
		if err != nil {
			return nil, mapError("list checkout sessions", err)
		}
		sessions = append(sessions, *toCheckoutSession(s))
		if len(sessions) >= openSessionLimit {
			break
		}
	}
	return sessions, nil
}

func (g *Gateway) ExpireCheckoutSession(ctx context.Context, sessionID string) error {
	if _, err := g.client.V1CheckoutSessions.Expire(ctx, sessionID, nil); err != nil {
		return mapError("expire checkout session", err)
	}
	g.logger.Info("stripe checkout session expired", zap.String("session_id", sessionID))
	return nil
}

func toCheckoutSession(s *stripe.CheckoutSession) *payment.CheckoutSession {
	out := &payment.CheckoutSession{
		ID:            s.ID,
		URL:           s.URL,
		Status:        string(s.Status),
		PaymentStatus: string(s.PaymentStatus),
		Metadata:      s.Metadata,
		ExpiresAt:     unixTime(s.ExpiresAt),
	}
	if s.Customer != nil {
		out.CustomerID = s.Customer.ID
	}
	if s.LineItems != nil {
		for _, item := range s.LineItems.Data {
			if item != nil && item.Price != nil {
				out.PriceIDs = append(out.PriceIDs, item.Price.ID)
			}
		}
	}
	return out
}

// unixTime converts epoch seconds, treating zero as unknown.
func unixTime(sec int64) *time.Time {
	if sec <= 0 {
		return nil
	}
	t := time.Unix(sec, 0).UTC()
	return &t
}

// mapError classifies Stripe failures into the application sentinels.
func mapError(op string, err error) error {
	var se *stripe.Error
	if !errors.As(err, &se) {
		return fmt.Errorf("%s: %w: %w", op, xerrors.ErrServiceUnavailable, err)
	}

	switch {
	case se.Code == stripe.ErrorCodeResourceMissing || se.HTTPStatusCode == http.StatusNotFound:
		return fmt.Errorf("%s: %w: %s", op, xerrors.ErrNotFound, se.Msg)
	case se.HTTPStatusCode == http.StatusTooManyRequests,
		se.HTTPStatusCode >= http.StatusInternalServerError,
		se.Type == stripe.ErrorTypeAPI:
		return fmt.Errorf("%s: %w: %s", op, xerrors.ErrServiceUnavailable, se.Msg)
	case se.HTTPStatusCode == http.StatusUnauthorized || se.HTTPStatusCode == http.StatusForbidden:
		return fmt.Errorf("%s: %w: stripe rejected credentials: %s", op, xerrors.ErrInternal, se.Msg)
	default:
		return fmt.Errorf("%s: %w: %s", op, xerrors.ErrInvalidInput, se.Msg)
	}
}
