// internal/handlers/checkout/checkout_handler.go
package checkout

import (
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"

	"billing-service/internal/domain/checkout"
	"billing-service/internal/middleware"
	"billing-service/internal/pkg/response"
	service "billing-service/internal/service/checkout"
)

type CheckoutHandler struct {
	checkoutService *service.Service
}

func NewCheckoutHandler(checkoutService *service.Service) *CheckoutHandler {
	return &CheckoutHandler{
		checkoutService: checkoutService,
	}
}

// CreateSession runs the checkout flow for the bearer token's user.
func (h *CheckoutHandler) CreateSession(c *gin.Context) {
	token := middleware.ExtractBearerToken(c)
	if token == "" {
		response.Unauthorized(c, "missing authorization token")
		return
	}

	var req checkout.CreateSessionRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.ValidationError(c, "invalid request", err)
		return
	}

	result, err := h.checkoutService.Checkout(c.Request.Context(), &req, token)
	if err != nil {
		response.FromError(c, "failed to create checkout session", err)
		return
	}

	response.Success(c, http.StatusCreated, "Checkout session created successfully", result)
}

// GetSession returns one of the caller's checkout sessions.
func (h *CheckoutHandler) GetSession(c *gin.Context) {
	user := middleware.MustGetUser(c)

	sessionID := strings.TrimSpace(c.Param("session_id"))
	if sessionID == "" {
		response.ValidationError(c, "session id is required", nil)
		return
	}

	session, err := h.checkoutService.GetCheckoutSession(c.Request.Context(), user, sessionID)
	if err != nil {
		response.FromError(c, "checkout session not available", err)
		return
	}

	response.Success(c, http.StatusOK, "checkout session retrieved", session)
}
