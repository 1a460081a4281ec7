package checkout

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func validRequest() *CreateSessionRequest {
	return &CreateSessionRequest{
		PriceID:    "price_123",
		SuccessURL: "https://app.example.com/billing/success",
		CancelURL:  "https://app.example.com/billing/cancel",
	}
}

func TestValidateDefaultsQuantity(t *testing.T) {
	req := validRequest()
	require.NoError(t, req.Validate())
	assert.Equal(t, int64(1), req.Quantity)
}

func TestValidateRejects(t *testing.T) {
	tests := []struct {
		name   string
		mutate func(r *CreateSessionRequest)
	}{
		{"missing price", func(r *CreateSessionRequest) { r.PriceID = "" }},
		{"missing success url", func(r *CreateSessionRequest) { r.SuccessURL = "" }},
		{"bad cancel url", func(r *CreateSessionRequest) { r.CancelURL = "not a url" }},
		{"negative quantity", func(r *CreateSessionRequest) { r.Quantity = -2 }},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			req := validRequest()
			tt.mutate(req)
			assert.Error(t, req.Validate())
		})
	}
}
