// internal/domain/subscription/repository.go
package subscription

import (
	"context"
	"time"
)

// Store persists subscription records.
// Lookups return xerrors.ErrNotFound when no row matches. Updates are
// conditional: zero affected rows is reported as xerrors.ErrNotFound, a
// customer id collision as xerrors.ErrConflict and a patch whose EventAt is
// older than the record's LastEventAt as xerrors.ErrStaleEvent.
type Store interface {
	FindByUserID(ctx context.Context, userID string) (*Record, error)
	FindByCustomerID(ctx context.Context, customerID string) (*Record, error)
	Create(ctx context.Context, r *Record) (*Record, error)
	UpdateByUserID(ctx context.Context, userID string, p Patch) (*Record, error)
	UpdateByCustomerID(ctx context.Context, customerID string, p Patch) (*Record, error)
	DeleteByUserID(ctx context.Context, userID string) error
}

// Field is one optional column assignment in a Patch.
type Field[T any] struct {
	Value T
	Set   bool
}

// Set marks a value for assignment.
func Set[T any](v T) Field[T] {
	return Field[T]{Value: v, Set: true}
}

// Patch lists the columns an update assigns; unset fields are left untouched.
type Patch struct {
	CustomerID        Field[*string]
	SubscriptionID    Field[*string]
	PlanSnapshot      Field[*PlanSnapshot]
	IsActive          Field[bool]
	CancelAtPeriodEnd Field[bool]
	StartDate         Field[*time.Time]
	EndDate           Field[*time.Time]
	NextPaymentDate   Field[*time.Time]

	// EventAt orders processor events. When set, the patch applies only if
	// no newer event was applied and it becomes the record's LastEventAt.
	EventAt *time.Time
}

// IsEmpty reports whether the patch assigns nothing.
func (p Patch) IsEmpty() bool {
	return !p.CustomerID.Set && !p.SubscriptionID.Set && !p.PlanSnapshot.Set &&
		!p.IsActive.Set && !p.CancelAtPeriodEnd.Set &&
		!p.StartDate.Set && !p.EndDate.Set && !p.NextPaymentDate.Set
}

// StaleFor reports whether r already reflects an event newer than the patch.
func (p Patch) StaleFor(r *Record) bool {
	return p.EventAt != nil && r.LastEventAt != nil && r.LastEventAt.After(*p.EventAt)
}

// Apply writes the set fields onto r and stamps ModifiedAt.
func (p Patch) Apply(r *Record, now time.Time) {
	if p.CustomerID.Set {
		r.CustomerID = p.CustomerID.Value
	}
	if p.SubscriptionID.Set {
		r.SubscriptionID = p.SubscriptionID.Value
	}
	if p.PlanSnapshot.Set {
		r.PlanSnapshot = p.PlanSnapshot.Value
	}
	if p.IsActive.Set {
		r.IsActive = p.IsActive.Value
	}
	if p.CancelAtPeriodEnd.Set {
		r.CancelAtPeriodEnd = p.CancelAtPeriodEnd.Value
	}
	if p.StartDate.Set {
		r.StartDate = p.StartDate.Value
	}
	if p.EndDate.Set {
		r.EndDate = p.EndDate.Value
	}
	if p.NextPaymentDate.Set {
		r.NextPaymentDate = p.NextPaymentDate.Value
	}
	if p.EventAt != nil {
		at := *p.EventAt
		r.LastEventAt = &at
	}
	r.ModifiedAt = now
}
