// internal/service/webhook/events.go
package webhook

import (
	"bytes"
	"encoding/json"
	"fmt"
	"time"

	"billing-service/internal/domain/subscription"
	xerrors "billing-service/internal/pkg/errors"
)

const statusActive = "active"

// expandableID decodes a reference that is either an id string or an
// expanded object carrying an id.
type expandableID string

func (e *expandableID) UnmarshalJSON(b []byte) error {
	if bytes.Equal(b, []byte("null")) {
		*e = ""
		return nil
	}
	if len(b) > 0 && b[0] == '"' {
		var s string
		if err := json.Unmarshal(b, &s); err != nil {
			return err
		}
		*e = expandableID(s)
		return nil
	}
	var obj struct {
		ID string `json:"id"`
	}
	if err := json.Unmarshal(b, &obj); err != nil {
		return err
	}
	*e = expandableID(obj.ID)
	return nil
}

type priceObject struct {
	ID         string       `json:"id"`
	UnitAmount int64        `json:"unit_amount"`
	Currency   string       `json:"currency"`
	Product    expandableID `json:"product"`
	Recurring  *struct {
		Interval      string `json:"interval"`
		IntervalCount int64  `json:"interval_count"`
	} `json:"recurring"`
}

// snapshot builds a plan snapshot from the price embedded in the event.
func (p priceObject) snapshot() *subscription.PlanSnapshot {
	s := &subscription.PlanSnapshot{
		PriceID:   p.ID,
		Amount:    p.UnitAmount,
		Currency:  p.Currency,
		ProductID: string(p.Product),
	}
	if p.Recurring != nil {
		s.Interval = p.Recurring.Interval
		s.IntervalCount = p.Recurring.IntervalCount
	}
	return s
}

type subscriptionItem struct {
	ID                 string      `json:"id"`
	Price              priceObject `json:"price"`
	CurrentPeriodStart int64       `json:"current_period_start"`
	CurrentPeriodEnd   int64       `json:"current_period_end"`
}

type subscriptionObject struct {
	ID                 string            `json:"id"`
	Customer           expandableID      `json:"customer"`
	Status             string            `json:"status"`
	CancelAtPeriodEnd  bool              `json:"cancel_at_period_end"`
	CurrentPeriodStart int64             `json:"current_period_start"`
	CurrentPeriodEnd   int64             `json:"current_period_end"`
	CanceledAt         int64             `json:"canceled_at"`
	Metadata           map[string]string `json:"metadata"`
	Items              struct {
		Data []subscriptionItem `json:"data"`
	} `json:"items"`
}

func (s *subscriptionObject) active() bool {
	return s.Status == statusActive
}

// period returns the billing period, falling back to the first item when the
// subscription itself carries none.
func (s *subscriptionObject) period() (start, end int64) {
	start, end = s.CurrentPeriodStart, s.CurrentPeriodEnd
	if len(s.Items.Data) > 0 {
		if start <= 0 {
			start = s.Items.Data[0].CurrentPeriodStart
		}
		if end <= 0 {
			end = s.Items.Data[0].CurrentPeriodEnd
		}
	}
	return start, end
}

func (s *subscriptionObject) firstPrice() (priceObject, bool) {
	if len(s.Items.Data) == 0 || s.Items.Data[0].Price.ID == "" {
		return priceObject{}, false
	}
	return s.Items.Data[0].Price, true
}

type invoiceLine struct {
	Period struct {
		Start int64 `json:"start"`
		End   int64 `json:"end"`
	} `json:"period"`
}

type invoiceObject struct {
	ID                 string       `json:"id"`
	Customer           expandableID `json:"customer"`
	Subscription       expandableID `json:"subscription"`
	AttemptCount       int64        `json:"attempt_count"`
	NextPaymentAttempt int64        `json:"next_payment_attempt"`
	AmountPaid         int64        `json:"amount_paid"`
	AmountDue          int64        `json:"amount_due"`
	Currency           string       `json:"currency"`
	PeriodEnd          int64        `json:"period_end"`
	Parent             *struct {
		SubscriptionDetails *struct {
			Subscription expandableID `json:"subscription"`
		} `json:"subscription_details"`
	} `json:"parent"`
	Lines struct {
		Data []invoiceLine `json:"data"`
	} `json:"lines"`
}

// subscriptionID reads the subscription from either invoice layout.
func (i *invoiceObject) subscriptionID() string {
	if i.Subscription != "" {
		return string(i.Subscription)
	}
	if i.Parent != nil && i.Parent.SubscriptionDetails != nil {
		return string(i.Parent.SubscriptionDetails.Subscription)
	}
	return ""
}

// servicePeriodEnd is the latest line period end, else the invoice period end.
func (i *invoiceObject) servicePeriodEnd() int64 {
	var end int64
	for _, l := range i.Lines.Data {
		end = max(end, l.Period.End)
	}
	if end > 0 {
		return end
	}
	return i.PeriodEnd
}

func decodeObject[T any](raw json.RawMessage) (*T, error) {
	var v T
	if err := json.Unmarshal(raw, &v); err != nil {
		return nil, fmt.Errorf("decode event object: %w: %v", xerrors.ErrInvalidInput, err)
	}
	return &v, nil
}

// epochToTime converts epoch seconds. Zero or negative means unknown.
func epochToTime(sec int64) *time.Time {
	if sec <= 0 {
		return nil
	}
	t := time.Unix(sec, 0).UTC()
	return &t
}
