// internal/service/subscription/subscription_service.go
package subscription

import (
	"context"
	"fmt"
	"regexp"
	"strings"

	"github.com/samber/lo"
	"github.com/shopspring/decimal"
	"go.uber.org/zap"

	"billing-service/internal/domain/identity"
	"billing-service/internal/domain/payment"
	"billing-service/internal/domain/subscription"
	xerrors "billing-service/internal/pkg/errors"
)

var (
	quantityPrefix = regexp.MustCompile(`^\d+\s*×\s*`)
	unitPriceTail  = regexp.MustCompile(`\s*\(at [^)]*\)\s*$`)
)

type Config struct {
	DefaultPlanName string
	HistoryLimit    int64
}

type SubscriptionService struct {
	store   subscription.Store
	gateway payment.Gateway
	cfg     Config
	logger  *zap.Logger
}

func NewSubscriptionService(
	store subscription.Store,
	gateway payment.Gateway,
	cfg Config,
	logger *zap.Logger,
) *SubscriptionService {
	if cfg.HistoryLimit <= 0 {
		cfg.HistoryLimit = 100
	}
	return &SubscriptionService{
		store:   store,
		gateway: gateway,
		cfg:     cfg,
		logger:  logger,
	}
}

// GetSubscription returns the caller's record with its current payment method.
func (s *SubscriptionService) GetSubscription(ctx context.Context, caller *identity.User, userID string) (*subscription.SubscriptionResponse, error) {
	rec, err := s.ownRecord(ctx, caller, userID)
	if err != nil {
		return nil, err
	}

	resp := subscription.NewSubscriptionResponse(rec)
	if rec.HasCustomer() {
		subID := ""
		if rec.HasSubscription() {
			subID = *rec.SubscriptionID
		}
		pm, err := s.gateway.RetrievePaymentMethod(ctx, subID, *rec.CustomerID)
		switch {
		case err != nil:
			s.logger.Warn("failed to resolve payment method",
				zap.String("user_id", userID),
				zap.Error(err))
		case pm != nil:
			resp.PaymentMethod = &subscription.PaymentMethodResponse{
				Type:     pm.Type,
				Brand:    pm.Brand,
				Last4:    pm.Last4,
				ExpMonth: pm.ExpMonth,
				ExpYear:  pm.ExpYear,
			}
		}
	}
	return resp, nil
}

// CancelSubscription schedules cancellation at the end of the current period.
// The processor is authoritative; the local flag is refreshed again by the
// resulting subscription.updated event.
func (s *SubscriptionService) CancelSubscription(ctx context.Context, caller *identity.User, userID string) (*subscription.CancelResponse, error) {
	rec, err := s.ownRecord(ctx, caller, userID)
	if err != nil {
		return nil, err
	}
	if !rec.IsActive || !rec.HasSubscription() {
		return nil, fmt.Errorf("no active subscription to cancel: %w", xerrors.ErrInvalidInput)
	}

	res, err := s.gateway.CancelSubscriptionAtPeriodEnd(ctx, *rec.SubscriptionID)
	if err != nil {
		s.logger.Error("failed to cancel subscription",
			zap.String("user_id", userID),
			zap.String("subscription_id", *rec.SubscriptionID),
			zap.Error(err))
		return nil, fmt.Errorf("cancel subscription: %w", err)
	}

	if _, err := s.store.UpdateByUserID(ctx, userID, subscription.Patch{
		CancelAtPeriodEnd: subscription.Set(true),
	}); err != nil {
		s.logger.Warn("subscription canceled remotely but local update failed",
			zap.String("user_id", userID),
			zap.Error(err))
	}

	s.logger.Info("subscription set to cancel at period end",
		zap.String("user_id", userID),
		zap.String("subscription_id", res.SubscriptionID))

	return &subscription.CancelResponse{
		SubscriptionID:    res.SubscriptionID,
		CancelAtPeriodEnd: res.CancelAtPeriodEnd,
		CurrentPeriodEnd:  res.CurrentPeriodEnd,
	}, nil
}

// GetBillingHistory lists the caller's paid invoices, newest first.
func (s *SubscriptionService) GetBillingHistory(ctx context.Context, caller *identity.User, userID string) (*subscription.BillingHistoryResponse, error) {
	rec, err := s.ownRecord(ctx, caller, userID)
	if err != nil {
		return nil, err
	}
	if !rec.HasCustomer() {
		return nil, fmt.Errorf("no billing customer for user: %w", xerrors.ErrNotFound)
	}

	invoices, err := s.gateway.ListPaidInvoices(ctx, *rec.CustomerID, s.cfg.HistoryLimit)
	if err != nil {
		return nil, fmt.Errorf("list invoices: %w", err)
	}

	items := lo.Map(invoices, func(inv payment.Invoice, _ int) subscription.BillingHistoryItem {
		return subscription.BillingHistoryItem{
			InvoiceID:   inv.ID,
			PlanName:    s.planName(inv.Description),
			AmountPaid:  decimal.New(inv.Total, -2),
			Currency:    inv.Currency,
			PeriodStart: inv.PeriodStart,
			PeriodEnd:   inv.PeriodEnd,
			Status:      inv.Status,
			PaidAt:      inv.PaidAt,
		}
	})

	return &subscription.BillingHistoryResponse{Invoices: items, Total: len(items)}, nil
}

// ownRecord loads the record after checking the caller may see it.
func (s *SubscriptionService) ownRecord(ctx context.Context, caller *identity.User, userID string) (*subscription.Record, error) {
	if caller == nil {
		return nil, xerrors.ErrUnauthorized
	}
	if caller.ID != userID {
		return nil, fmt.Errorf("user %s may not access %s: %w", caller.ID, userID, xerrors.ErrForbidden)
	}

	rec, err := s.store.FindByUserID(ctx, userID)
	if err != nil {
		if xerrors.Is(err, xerrors.ErrNotFound) {
			return nil, fmt.Errorf("subscription: %w", xerrors.ErrNotFound)
		}
		return nil, fmt.Errorf("find subscription: %w", err)
	}
	return rec, nil
}

// planName turns "1 × Pro (at $9.99 / month)" into "Pro".
func (s *SubscriptionService) planName(description string) string {
	name := quantityPrefix.ReplaceAllString(description, "")
	name = strings.TrimSpace(unitPriceTail.ReplaceAllString(name, ""))
	if name == "" {
		return s.cfg.DefaultPlanName
	}
	return name
}
