// internal/domain/checkout/dto.go
package checkout

import (
	"sync"

	"github.com/go-playground/validator/v10"
)

type CreateSessionRequest struct {
	PriceID    string            `json:"price_id" validate:"required,max=255"`
	SuccessURL string            `json:"success_url" validate:"required,url"`
	CancelURL  string            `json:"cancel_url" validate:"required,url"`
	Quantity   int64             `json:"quantity" validate:"gte=1,lte=100"`
	Metadata   map[string]string `json:"metadata" validate:"omitempty,max=20"`
}

var (
	validate     *validator.Validate
	validateOnce sync.Once
)

// Validate checks the request and defaults Quantity to 1.
func (r *CreateSessionRequest) Validate() error {
	validateOnce.Do(func() {
		validate = validator.New(validator.WithRequiredStructEnabled())
	})
	if r.Quantity == 0 {
		r.Quantity = 1
	}
	return validate.Struct(r)
}

type SessionResponse struct {
	SessionID   string `json:"session_id"`
	CheckoutURL string `json:"checkout_url"`
	Status      string `json:"status"`
	CustomerID  string `json:"customer_id"`
	Action      Action `json:"action"`
}
