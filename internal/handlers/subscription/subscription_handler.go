// internal/handlers/subscription/subscription_handler.go
package subscription

import (
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"

	"billing-service/internal/middleware"
	"billing-service/internal/pkg/response"
	service "billing-service/internal/service/subscription"
)

type SubscriptionHandler struct {
	subscriptionService *service.SubscriptionService
}

func NewSubscriptionHandler(subscriptionService *service.SubscriptionService) *SubscriptionHandler {
	return &SubscriptionHandler{
		subscriptionService: subscriptionService,
	}
}

// GetSubscription retrieves the caller's subscription
func (h *SubscriptionHandler) GetSubscription(c *gin.Context) {
	userID, ok := userIDParam(c)
	if !ok {
		return
	}

	result, err := h.subscriptionService.GetSubscription(c.Request.Context(), middleware.MustGetUser(c), userID)
	if err != nil {
		response.FromError(c, "subscription not available", err)
		return
	}

	response.Success(c, http.StatusOK, "subscription retrieved", result)
}

// CancelSubscription schedules cancellation at period end
func (h *SubscriptionHandler) CancelSubscription(c *gin.Context) {
	userID, ok := userIDParam(c)
	if !ok {
		return
	}

	result, err := h.subscriptionService.CancelSubscription(c.Request.Context(), middleware.MustGetUser(c), userID)
	if err != nil {
		response.FromError(c, "failed to cancel subscription", err)
		return
	}

	response.Success(c, http.StatusOK, "subscription will cancel at period end", result)
}

// GetBillingHistory lists paid invoices
func (h *SubscriptionHandler) GetBillingHistory(c *gin.Context) {
	userID, ok := userIDParam(c)
	if !ok {
		return
	}

	result, err := h.subscriptionService.GetBillingHistory(c.Request.Context(), middleware.MustGetUser(c), userID)
	if err != nil {
		response.FromError(c, "billing history not available", err)
		return
	}

	response.Success(c, http.StatusOK, "billing history retrieved", result)
}

func userIDParam(c *gin.Context) (string, bool) {
	id, err := uuid.Parse(c.Param("user_id"))
	if err != nil {
		response.ValidationError(c, "invalid user ID", err)
		return "", false
	}
	return id.String(), true
}
