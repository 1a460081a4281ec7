// internal/service/checkout/session.go
package checkout

import (
	"context"
	"fmt"

	"github.com/samber/lo"
	"go.uber.org/zap"

	"billing-service/internal/domain/payment"
)

// SessionResult is a checkout session plus the undo for creating it.
// Reused sessions carry no compensation.
type SessionResult struct {
	Session      *payment.CheckoutSession
	Reused       bool
	Compensation Compensation
}

// CreateCheckoutSession returns an open session for the customer and price.
// With checkExisting it first looks for an open session for the same price.
func (s *Service) CreateCheckoutSession(ctx context.Context, spec payment.SessionSpec, customerID string, checkExisting bool) (*SessionResult, error) {
	if checkExisting {
		if existing := s.findOpenSession(ctx, customerID, spec.PriceID); existing != nil {
			s.logger.Info("reusing open checkout session",
				zap.String("session_id", existing.ID),
				zap.String("customer_id", customerID))
			return &SessionResult{
				Session:      existing,
				Reused:       true,
				Compensation: noCompensation,
			}, nil
		}
	}

	session, err := s.gateway.CreateCheckoutSession(ctx, spec, customerID)
	if err != nil {
		return nil, fmt.Errorf("create checkout session: %w", err)
	}

	s.logger.Info("checkout session created",
		zap.String("session_id", session.ID),
		zap.String("customer_id", customerID),
		zap.String("price_id", spec.PriceID))

	return &SessionResult{
		Session: session,
		Compensation: func(ctx context.Context) error {
			if !session.IsOpen() {
				return nil
			}
			return s.gateway.ExpireCheckoutSession(ctx, session.ID)
		},
	}, nil
}

// findOpenSession matches on line item price or metadata. Listing failures
// fall through to creating a new session.
func (s *Service) findOpenSession(ctx context.Context, customerID, priceID string) *payment.CheckoutSession {
	sessions, err := s.gateway.ListOpenCheckoutSessions(ctx, customerID)
	if err != nil {
		s.logger.Warn("failed to list open checkout sessions",
			zap.String("customer_id", customerID),
			zap.Error(err))
		return nil
	}

	match, ok := lo.Find(sessions, func(cs payment.CheckoutSession) bool {
		return cs.IsOpen() && (lo.Contains(cs.PriceIDs, priceID) || cs.Metadata["price_id"] == priceID)
	})
	if !ok {
		return nil
	}
	return &match
}
