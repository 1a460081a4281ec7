// internal/app/router.go
package app

import (
	"github.com/gin-gonic/gin"

	catalogHandler "billing-service/internal/handlers/catalog"
	checkoutHandler "billing-service/internal/handlers/checkout"
	healthHandler "billing-service/internal/handlers/health"
	subscriptionHandler "billing-service/internal/handlers/subscription"
	webhookHandler "billing-service/internal/handlers/webhook"
	"billing-service/internal/middleware"
)

type Handlers struct {
	HealthHandler       *healthHandler.HealthHandler
	CatalogHandler      *catalogHandler.CatalogHandler
	CheckoutHandler     *checkoutHandler.CheckoutHandler
	WebhookHandler      *webhookHandler.WebhookHandler
	SubscriptionHandler *subscriptionHandler.SubscriptionHandler
	AuthMiddleware      *middleware.AuthMiddleware
	CheckoutRateLimit   gin.HandlerFunc
}

func SetupRouter(r *gin.Engine, h *Handlers) {
	api := r.Group("/api/v1")

	// ==================== Health Check ====================
	api.GET("/health", h.HealthHandler.Check)

	// ==================== Catalog ====================
	api.GET("/products", h.CatalogHandler.ListProducts)

	// ==================== Checkout ====================
	// POST authenticates inside the checkout flow
	api.POST("/checkout", h.CheckoutRateLimit, h.CheckoutHandler.CreateSession)
	api.GET("/checkout/:session_id", h.AuthMiddleware.Auth(), h.CheckoutHandler.GetSession)

	// ==================== Webhooks ====================
	// Other methods reach the handler so it can answer 405
	api.Any("/webhooks/stripe", h.WebhookHandler.Receive)

	// ==================== Subscriptions ====================
	subscriptions := api.Group("/subscription/:user_id")
	subscriptions.Use(h.AuthMiddleware.Auth())
	{
		subscriptions.GET("", h.SubscriptionHandler.GetSubscription)
		subscriptions.DELETE("", h.SubscriptionHandler.CancelSubscription)
		subscriptions.GET("/billing-history", h.SubscriptionHandler.GetBillingHistory)
	}
}
