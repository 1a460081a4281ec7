// internal/handlers/webhook/webhook_handler.go
package webhook

import (
	"io"
	"net/http"

	"github.com/gin-gonic/gin"

	"billing-service/internal/pkg/response"
	service "billing-service/internal/service/webhook"
)

const (
	signatureHeader = "Stripe-Signature"
	maxBodyBytes    = 65536
)

type WebhookHandler struct {
	dispatcher *service.Dispatcher
}

func NewWebhookHandler(dispatcher *service.Dispatcher) *WebhookHandler {
	return &WebhookHandler{
		dispatcher: dispatcher,
	}
}

// Receive hands the raw body to the dispatcher. The body must not be parsed
// before signature verification.
func (h *WebhookHandler) Receive(c *gin.Context) {
	if c.Request.Method != http.MethodPost {
		response.MethodNotAllowed(c)
		return
	}

	body, err := io.ReadAll(http.MaxBytesReader(c.Writer, c.Request.Body, maxBodyBytes))
	if err != nil {
		response.ValidationError(c, "could not read request body", err)
		return
	}

	result := h.dispatcher.Handle(c.Request.Context(), body, c.GetHeader(signatureHeader))
	response.Write(c, result)
}
