// internal/repository/postgres/subscription_repo.go
package postgres

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"

	"billing-service/internal/domain/subscription"
	xerrors "billing-service/internal/pkg/errors"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
)

const subscriptionColumns = `
	user_id, customer_id, subscription_id, plan_snapshot,
	is_active, cancel_at_period_end,
	start_date, end_date, next_payment_date,
	last_event_at, created_at, modified_at`

type SubscriptionRepository struct {
	db *pgxpool.Pool
}

func NewSubscriptionRepository(db *pgxpool.Pool) *SubscriptionRepository {
	return &SubscriptionRepository{db: db}
}

// FindByUserID retrieves the record owned by a user
func (r *SubscriptionRepository) FindByUserID(ctx context.Context, userID string) (*subscription.Record, error) {
	query := `SELECT ` + subscriptionColumns + ` FROM user_subscription WHERE user_id = $1`

	rec, err := scanRecord(r.db.QueryRow(ctx, query, userID))
	if err != nil {
		return nil, mapError("find subscription by user", err)
	}
	return rec, nil
}

// FindByCustomerID retrieves the record linked to a billing customer
func (r *SubscriptionRepository) FindByCustomerID(ctx context.Context, customerID string) (*subscription.Record, error) {
	query := `SELECT ` + subscriptionColumns + ` FROM user_subscription WHERE customer_id = $1`

	rec, err := scanRecord(r.db.QueryRow(ctx, query, customerID))
	if err != nil {
		return nil, mapError("find subscription by customer", err)
	}
	return rec, nil
}

// Create inserts a new record. A second record for the same user, or a
// reused customer id, fails with xerrors.ErrConflict.
func (r *SubscriptionRepository) Create(ctx context.Context, rec *subscription.Record) (*subscription.Record, error) {
	query := `
		INSERT INTO user_subscription (
			user_id, customer_id, subscription_id, plan_snapshot,
			is_active, cancel_at_period_end,
			start_date, end_date, next_payment_date, last_event_at
		) VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10)
		RETURNING ` + subscriptionColumns

	snapshot, err := marshalSnapshot(rec.PlanSnapshot)
	if err != nil {
		return nil, err
	}

	created, err := scanRecord(r.db.QueryRow(
		ctx, query,
		rec.UserID, rec.CustomerID, rec.SubscriptionID, snapshot,
		rec.IsActive, rec.CancelAtPeriodEnd,
		rec.StartDate, rec.EndDate, rec.NextPaymentDate, rec.LastEventAt,
	))
	if err != nil {
		return nil, mapError("create subscription", err)
	}
	return created, nil
}

// UpdateByUserID applies the patch to the user's record
func (r *SubscriptionRepository) UpdateByUserID(ctx context.Context, userID string, p subscription.Patch) (*subscription.Record, error) {
	return r.update(ctx, "user_id", userID, p)
}

// UpdateByCustomerID applies the patch to the customer's record
func (r *SubscriptionRepository) UpdateByCustomerID(ctx context.Context, customerID string, p subscription.Patch) (*subscription.Record, error) {
	return r.update(ctx, "customer_id", customerID, p)
}

// update runs a single conditional UPDATE. No matching row surfaces as
// pgx.ErrNoRows from RETURNING; with an EventAt guard a follow-up lookup
// tells a stale event apart from a missing record.
func (r *SubscriptionRepository) update(ctx context.Context, keyColumn, key string, p subscription.Patch) (*subscription.Record, error) {
	query, args, err := updateStatement(keyColumn, p)
	if err != nil {
		return nil, err
	}

	rec, err := scanRecord(r.db.QueryRow(ctx, query, append([]any{key}, args...)...))
	if err == nil {
		return rec, nil
	}
	if p.EventAt != nil && errors.Is(err, pgx.ErrNoRows) {
		exists, existsErr := r.exists(ctx, keyColumn, key)
		if existsErr != nil {
			return nil, existsErr
		}
		if exists {
			return nil, fmt.Errorf("update subscription by %s: %w", keyColumn, xerrors.ErrStaleEvent)
		}
	}
	return nil, mapError("update subscription by "+keyColumn, err)
}

// updateStatement renders the UPDATE for a patch keyed by $1.
func updateStatement(keyColumn string, p subscription.Patch) (string, []any, error) {
	sets, args, err := patchAssignments(p, 2)
	if err != nil {
		return "", nil, err
	}
	sets = append(sets, "modified_at = NOW()")

	where := keyColumn + " = $1"
	if p.EventAt != nil {
		args = append(args, *p.EventAt)
		n := len(args) + 1
		sets = append(sets, fmt.Sprintf("last_event_at = $%d", n))
		where += fmt.Sprintf(" AND (last_event_at IS NULL OR last_event_at <= $%d)", n)
	}

	query := fmt.Sprintf(
		`UPDATE user_subscription SET %s WHERE %s RETURNING %s`,
		strings.Join(sets, ", "), where, subscriptionColumns,
	)
	return query, args, nil
}

func (r *SubscriptionRepository) exists(ctx context.Context, keyColumn, key string) (bool, error) {
	var exists bool
	query := fmt.Sprintf(`SELECT EXISTS (SELECT 1 FROM user_subscription WHERE %s = $1)`, keyColumn)
	if err := r.db.QueryRow(ctx, query, key).Scan(&exists); err != nil {
		return false, mapError("check subscription by "+keyColumn, err)
	}
	return exists, nil
}

// DeleteByUserID removes the user's record
func (r *SubscriptionRepository) DeleteByUserID(ctx context.Context, userID string) error {
	result, err := r.db.Exec(ctx, `DELETE FROM user_subscription WHERE user_id = $1`, userID)
	if err != nil {
		return mapError("delete subscription", err)
	}
	if result.RowsAffected() == 0 {
		return mapError("delete subscription", pgx.ErrNoRows)
	}
	return nil
}

// patchAssignments renders the set fields as "col = $n" starting at index first.
func patchAssignments(p subscription.Patch, first int) ([]string, []any, error) {
	var (
		sets []string
		args []any
	)
	add := func(column string, value any) {
		args = append(args, value)
		sets = append(sets, fmt.Sprintf("%s = $%d", column, first+len(args)-1))
	}

	if p.CustomerID.Set {
		add("customer_id", p.CustomerID.Value)
	}
	if p.SubscriptionID.Set {
		add("subscription_id", p.SubscriptionID.Value)
	}
	if p.PlanSnapshot.Set {
		snapshot, err := marshalSnapshot(p.PlanSnapshot.Value)
		if err != nil {
			return nil, nil, err
		}
		add("plan_snapshot", snapshot)
	}
	if p.IsActive.Set {
		add("is_active", p.IsActive.Value)
	}
	if p.CancelAtPeriodEnd.Set {
		add("cancel_at_period_end", p.CancelAtPeriodEnd.Value)
	}
	if p.StartDate.Set {
		add("start_date", p.StartDate.Value)
	}
	if p.EndDate.Set {
		add("end_date", p.EndDate.Value)
	}
	if p.NextPaymentDate.Set {
		add("next_payment_date", p.NextPaymentDate.Value)
	}
	return sets, args, nil
}

func marshalSnapshot(s *subscription.PlanSnapshot) ([]byte, error) {
	if s == nil {
		return nil, nil
	}
	b, err := json.Marshal(s)
	if err != nil {
		return nil, fmt.Errorf("failed to marshal plan snapshot: %w", err)
	}
	return b, nil
}

func scanRecord(row pgx.Row) (*subscription.Record, error) {
	var (
		rec      subscription.Record
		snapshot []byte
	)

	err := row.Scan(
		&rec.UserID, &rec.CustomerID, &rec.SubscriptionID, &snapshot,
		&rec.IsActive, &rec.CancelAtPeriodEnd,
		&rec.StartDate, &rec.EndDate, &rec.NextPaymentDate,
		&rec.LastEventAt, &rec.CreatedAt, &rec.ModifiedAt,
	)
	if err != nil {
		return nil, err
	}

	if len(snapshot) > 0 {
		var s subscription.PlanSnapshot
		if err := json.Unmarshal(snapshot, &s); err != nil {
			return nil, fmt.Errorf("failed to unmarshal plan snapshot: %w", err)
		}
		rec.PlanSnapshot = &s
	}
	return &rec, nil
}
