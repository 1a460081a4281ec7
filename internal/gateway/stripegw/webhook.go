// internal/gateway/stripegw/webhook.go
package stripegw

import (
	"fmt"

	"github.com/stripe/stripe-go/v82/webhook"

	"billing-service/internal/domain/payment"
	xerrors "billing-service/internal/pkg/errors"
)

// VerifyWebhookSignature checks the Stripe-Signature header and decodes the event.
// Events signed for other API versions are accepted; the reducer decodes objects itself.
func (g *Gateway) VerifyWebhookSignature(payload []byte, signature, secret string) (*payment.Event, error) {
	evt, err := webhook.ConstructEventWithOptions(payload, signature, secret, webhook.ConstructEventOptions{
		IgnoreAPIVersionMismatch: true,
	})
	if err != nil {
		return nil, fmt.Errorf("%w: %v", xerrors.ErrSignature, err)
	}

	out := &payment.Event{
		ID:      evt.ID,
		Type:    string(evt.Type),
		Created: evt.Created,
	}
	if evt.Data != nil {
		out.Object = evt.Data.Raw
		out.PreviousAttributes = evt.Data.PreviousAttributes
	}
	return out, nil
}
