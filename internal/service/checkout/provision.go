// internal/service/checkout/provision.go
package checkout

import (
	"context"
	"errors"
	"fmt"

	"go.uber.org/zap"

	"billing-service/internal/domain/checkout"
	"billing-service/internal/domain/identity"
	"billing-service/internal/domain/payment"
	"billing-service/internal/domain/subscription"
	xerrors "billing-service/internal/pkg/errors"
)

// ProvisionResult is the forward result of provisioning plus its undo.
type ProvisionResult struct {
	CustomerID   string
	Action       checkout.Action
	Compensation Compensation
}

// Provision makes sure the user has exactly one billing customer and a
// subscription record pointing at it.
func (s *Service) Provision(ctx context.Context, user *identity.User, priceID string) (*ProvisionResult, error) {
	rec, err := s.store.FindByUserID(ctx, user.ID)
	switch {
	case xerrors.Is(err, xerrors.ErrNotFound):
		rec = nil
	case err != nil:
		return nil, storageError("lookup subscription", err)
	}

	plan, err := s.gateway.RetrievePrice(ctx, priceID)
	if err != nil {
		if xerrors.Is(err, xerrors.ErrPlanResolution) || xerrors.Is(err, xerrors.ErrNotFound) {
			return nil, fmt.Errorf("price %s: %w", priceID, xerrors.ErrPlanResolution)
		}
		return nil, fmt.Errorf("resolve plan: %w", err)
	}

	if rec.HasCustomer() {
		s.logger.Info("reusing billing customer",
			zap.String("user_id", user.ID),
			zap.String("customer_id", *rec.CustomerID))
		return &ProvisionResult{
			CustomerID:   *rec.CustomerID,
			Action:       checkout.ActionExisting,
			Compensation: noCompensation,
		}, nil
	}

	customerID, err := s.gateway.CreateCustomer(ctx, payment.CustomerProfile{
		UserID: user.ID,
		Email:  user.Email,
		Name:   user.DisplayName(),
	})
	if err != nil {
		return nil, fmt.Errorf("create customer: %w", err)
	}

	if rec != nil {
		return s.attachCustomer(ctx, user.ID, customerID, plan)
	}
	return s.createRecord(ctx, user.ID, customerID, plan)
}

// attachCustomer fills in the customer on a record provisioned earlier without one.
func (s *Service) attachCustomer(ctx context.Context, userID, customerID string, plan *subscription.PlanSnapshot) (*ProvisionResult, error) {
	_, err := s.store.UpdateByUserID(ctx, userID, subscription.Patch{
		CustomerID:   subscription.Set(&customerID),
		PlanSnapshot: subscription.Set(plan),
	})
	if err != nil {
		s.discardCustomer(ctx, customerID)
		return nil, storageError("attach customer", err)
	}

	s.logger.Info("billing customer attached to subscription record",
		zap.String("user_id", userID),
		zap.String("customer_id", customerID))

	return &ProvisionResult{
		CustomerID: customerID,
		Action:     checkout.ActionUpdated,
		Compensation: func(ctx context.Context) error {
			delErr := s.gateway.DeleteCustomer(ctx, customerID)
			_, updErr := s.store.UpdateByUserID(ctx, userID, subscription.Patch{
				CustomerID:   subscription.Set[*string](nil),
				PlanSnapshot: subscription.Set[*subscription.PlanSnapshot](nil),
			})
			if xerrors.Is(updErr, xerrors.ErrNotFound) {
				updErr = nil
			}
			return errors.Join(delErr, updErr)
		},
	}, nil
}

// createRecord inserts the first inactive record for a new customer.
func (s *Service) createRecord(ctx context.Context, userID, customerID string, plan *subscription.PlanSnapshot) (*ProvisionResult, error) {
	_, err := s.store.Create(ctx, &subscription.Record{
		UserID:       userID,
		CustomerID:   &customerID,
		PlanSnapshot: plan,
		IsActive:     false,
	})
	if err != nil {
		s.discardCustomer(ctx, customerID)

		// A concurrent checkout for the same user won the insert
		if xerrors.Is(err, xerrors.ErrConflict) {
			if rec, findErr := s.store.FindByUserID(ctx, userID); findErr == nil && rec.HasCustomer() {
				s.logger.Info("subscription record created concurrently, reusing its customer",
					zap.String("user_id", userID),
					zap.String("customer_id", *rec.CustomerID))
				return &ProvisionResult{
					CustomerID:   *rec.CustomerID,
					Action:       checkout.ActionExisting,
					Compensation: noCompensation,
				}, nil
			}
			return nil, fmt.Errorf("create subscription record: %w", err)
		}
		return nil, storageError("create subscription record", err)
	}

	s.logger.Info("subscription record created",
		zap.String("user_id", userID),
		zap.String("customer_id", customerID))

	return &ProvisionResult{
		CustomerID: customerID,
		Action:     checkout.ActionCreated,
		Compensation: func(ctx context.Context) error {
			delErr := s.store.DeleteByUserID(ctx, userID)
			if xerrors.Is(delErr, xerrors.ErrNotFound) {
				delErr = nil
			}
			return errors.Join(delErr, s.gateway.DeleteCustomer(ctx, customerID))
		},
	}, nil
}

// discardCustomer removes a customer created by a step that then failed.
func (s *Service) discardCustomer(ctx context.Context, customerID string) {
	saga := NewSaga(s.logger, s.compensationTimeout)
	saga.Add("billing_customer", func(ctx context.Context) error {
		return s.gateway.DeleteCustomer(ctx, customerID)
	})
	saga.Compensate(ctx)
}

// storageError tags err as a storage failure unless it already carries a
// more specific classification.
func storageError(op string, err error) error {
	if xerrors.Is(err, xerrors.ErrStorage) ||
		xerrors.Is(err, xerrors.ErrNotFound) ||
		xerrors.Is(err, xerrors.ErrConflict) {
		return fmt.Errorf("%s: %w", op, err)
	}
	return fmt.Errorf("%s: %w: %w", op, xerrors.ErrStorage, err)
}
