// internal/service/webhook/patches.go
package webhook

import (
	"time"

	"billing-service/internal/domain/subscription"
)

// createdPatch syncs a record with a newly created subscription.
func createdPatch(sub *subscriptionObject, plan *subscription.PlanSnapshot) subscription.Patch {
	p := subscription.Patch{
		SubscriptionID:    subscription.Set(&sub.ID),
		IsActive:          subscription.Set(sub.active()),
		CancelAtPeriodEnd: subscription.Set(sub.CancelAtPeriodEnd),
	}
	if plan != nil {
		p.PlanSnapshot = subscription.Set(plan)
	}
	setPeriod(&p, sub)
	return p
}

// updatedPatch always refreshes status flags; the plan only when items changed
// and period dates only when they can have moved.
func updatedPatch(sub *subscriptionObject, previous map[string]any, plan *subscription.PlanSnapshot) subscription.Patch {
	p := subscription.Patch{
		SubscriptionID:    subscription.Set(&sub.ID),
		IsActive:          subscription.Set(sub.active()),
		CancelAtPeriodEnd: subscription.Set(sub.CancelAtPeriodEnd),
	}
	if plan != nil {
		p.PlanSnapshot = subscription.Set(plan)
	}
	if sub.active() || hasAny(previous, "current_period_start", "current_period_end", "status") {
		setPeriod(&p, sub)
	}
	return p
}

func deletedPatch(sub *subscriptionObject, now time.Time) subscription.Patch {
	end := epochToTime(sub.CanceledAt)
	if end == nil {
		t := now.UTC()
		end = &t
	}
	return subscription.Patch{
		IsActive:          subscription.Set(false),
		CancelAtPeriodEnd: subscription.Set(false),
		EndDate:           subscription.Set(end),
		NextPaymentDate:   subscription.Set[*time.Time](nil),
	}
}

// paidPatch keeps the next payment date when the invoice has no period.
func paidPatch(inv *invoiceObject) subscription.Patch {
	p := subscription.Patch{IsActive: subscription.Set(true)}
	if next := epochToTime(inv.servicePeriodEnd()); next != nil {
		p.NextPaymentDate = subscription.Set(next)
	}
	return p
}

// setPeriod copies period boundaries. The next payment is due at period end
// only while the subscription is active and not winding down.
func setPeriod(p *subscription.Patch, sub *subscriptionObject) {
	start, end := sub.period()
	startAt, endAt := epochToTime(start), epochToTime(end)

	p.StartDate = subscription.Set(startAt)
	p.EndDate = subscription.Set(endAt)
	if sub.active() && !sub.CancelAtPeriodEnd {
		p.NextPaymentDate = subscription.Set(endAt)
	} else {
		p.NextPaymentDate = subscription.Set[*time.Time](nil)
	}
}

func hasAny(m map[string]any, keys ...string) bool {
	for _, k := range keys {
		if _, ok := m[k]; ok {
			return true
		}
	}
	return false
}
