// internal/service/checkout/checkout_service.go
package checkout

import (
	"context"
	"fmt"
	"maps"
	"time"

	"go.uber.org/zap"

	"billing-service/internal/domain/checkout"
	"billing-service/internal/domain/identity"
	"billing-service/internal/domain/payment"
	"billing-service/internal/domain/subscription"
	xerrors "billing-service/internal/pkg/errors"
)

type Service struct {
	store               subscription.Store
	gateway             payment.Gateway
	directory           identity.Directory
	logger              *zap.Logger
	compensationTimeout time.Duration
}

func NewService(
	store subscription.Store,
	gateway payment.Gateway,
	directory identity.Directory,
	logger *zap.Logger,
	compensationTimeout time.Duration,
) *Service {
	return &Service{
		store:               store,
		gateway:             gateway,
		directory:           directory,
		logger:              logger,
		compensationTimeout: compensationTimeout,
	}
}

// Checkout authenticates the bearer token and runs the checkout flow.
func (s *Service) Checkout(ctx context.Context, req *checkout.CreateSessionRequest, token string) (*checkout.SessionResponse, error) {
	if token == "" {
		return nil, fmt.Errorf("missing bearer token: %w", xerrors.ErrUnauthorized)
	}

	user, err := s.directory.VerifyCredential(ctx, token)
	if err != nil {
		if xerrors.Is(err, xerrors.ErrUnauthorized) {
			return nil, err
		}
		return nil, fmt.Errorf("verify credential: %w: %v", xerrors.ErrUnauthorized, err)
	}

	return s.CheckoutForUser(ctx, user, req)
}

// CheckoutForUser provisions the customer and finds or creates a session.
// Failures after provisioning roll back the session, then the subscription.
func (s *Service) CheckoutForUser(ctx context.Context, user *identity.User, req *checkout.CreateSessionRequest) (*checkout.SessionResponse, error) {
	if err := req.Validate(); err != nil {
		return nil, fmt.Errorf("%w: %v", xerrors.ErrInvalidInput, err)
	}

	saga := NewSaga(s.logger, s.compensationTimeout)

	prov, err := s.Provision(ctx, user, req.PriceID)
	if err != nil {
		s.logger.Error("provisioning failed",
			zap.String("user_id", user.ID),
			zap.String("price_id", req.PriceID),
			zap.Error(err))
		return nil, err
	}
	saga.Add("subscription", prov.Compensation)

	spec := payment.SessionSpec{
		PriceID:    req.PriceID,
		Quantity:   req.Quantity,
		SuccessURL: req.SuccessURL,
		CancelURL:  req.CancelURL,
		Metadata:   sessionMetadata(req.Metadata, user.ID, req.PriceID),
	}

	// A customer created just now cannot have an open session yet
	res, err := s.CreateCheckoutSession(ctx, spec, prov.CustomerID, prov.Action == checkout.ActionExisting)
	if err != nil {
		s.logger.Error("checkout session failed, rolling back",
			zap.String("user_id", user.ID),
			zap.String("customer_id", prov.CustomerID),
			zap.String("action", string(prov.Action)),
			zap.Error(err))
		saga.Compensate(ctx)
		return nil, err
	}
	saga.Add("checkout_session", res.Compensation)

	if res.Session.URL == "" && res.Session.IsOpen() {
		err := fmt.Errorf("checkout session %s has no url: %w", res.Session.ID, xerrors.ErrServiceUnavailable)
		saga.Compensate(ctx)
		return nil, err
	}

	return &checkout.SessionResponse{
		SessionID:   res.Session.ID,
		CheckoutURL: res.Session.URL,
		Status:      res.Session.Status,
		CustomerID:  prov.CustomerID,
		Action:      prov.Action,
	}, nil
}

// GetCheckoutSession returns a session that belongs to the user.
func (s *Service) GetCheckoutSession(ctx context.Context, user *identity.User, sessionID string) (*payment.CheckoutSession, error) {
	session, err := s.gateway.RetrieveCheckoutSession(ctx, sessionID)
	if err != nil {
		return nil, fmt.Errorf("retrieve checkout session: %w", err)
	}
	if owner := session.Metadata["user_id"]; owner != "" {
		if owner != user.ID {
			return nil, fmt.Errorf("checkout session %s: %w", sessionID, xerrors.ErrNotFound)
		}
		return session, nil
	}

	// Sessions created outside this service carry no owner; match the customer
	rec, err := s.store.FindByUserID(ctx, user.ID)
	switch {
	case err == nil && rec.HasCustomer() && session.CustomerID != "" && *rec.CustomerID == session.CustomerID:
		return session, nil
	case err == nil, xerrors.Is(err, xerrors.ErrNotFound):
		return nil, fmt.Errorf("checkout session %s: %w", sessionID, xerrors.ErrNotFound)
	default:
		return nil, storageError("find subscription by user", err)
	}
}

// sessionMetadata merges caller metadata under the reserved keys.
func sessionMetadata(extra map[string]string, userID, priceID string) map[string]string {
	md := make(map[string]string, len(extra)+2)
	maps.Copy(md, extra)
	md["user_id"] = userID
	md["price_id"] = priceID
	return md
}
