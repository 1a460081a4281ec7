package subscription

import (
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
	"go.uber.org/zap/zaptest"

	"billing-service/internal/domain/identity"
	"billing-service/internal/domain/subscription"
	service "billing-service/internal/service/subscription"
	"billing-service/internal/testutil"
)

const (
	ownID   = "7d9f4a2e-3c41-4b8e-9a6f-2f1e0c5d8b7a"
	otherID = "0b4e1f7c-9d2a-4c6b-8e3f-5a7d9c1b2e4f"
)

func strPtr(s string) *string { return &s }

func setup(t *testing.T) (*gin.Engine, *testutil.MemoryStore) {
	t.Helper()
	gin.SetMode(gin.TestMode)

	store := testutil.NewMemoryStore()
	svc := service.NewSubscriptionService(store, testutil.NewFakeGateway(),
		service.Config{DefaultPlanName: "Pro", HistoryLimit: 10}, zaptest.NewLogger(t))
	h := NewSubscriptionHandler(svc)

	r := gin.New()
	g := r.Group("/subscription/:user_id", func(c *gin.Context) {
		c.Set("user", &identity.User{ID: ownID})
	})
	g.GET("", h.GetSubscription)
	g.DELETE("", h.CancelSubscription)
	g.GET("/billing-history", h.GetBillingHistory)
	return r, store
}

func call(r *gin.Engine, method, path string) int {
	w := httptest.NewRecorder()
	r.ServeHTTP(w, httptest.NewRequest(method, path, nil))
	return w.Code
}

func TestSubscriptionRoutes(t *testing.T) {
	r, store := setup(t)

	assert.Equal(t, http.StatusBadRequest, call(r, http.MethodGet, "/subscription/not-a-uuid"))
	assert.Equal(t, http.StatusForbidden, call(r, http.MethodGet, "/subscription/"+otherID))
	assert.Equal(t, http.StatusNotFound, call(r, http.MethodGet, "/subscription/"+ownID))

	store.Put(&subscription.Record{UserID: ownID, CustomerID: strPtr("cus_1")})
	assert.Equal(t, http.StatusOK, call(r, http.MethodGet, "/subscription/"+ownID))
	assert.Equal(t, http.StatusBadRequest, call(r, http.MethodDelete, "/subscription/"+ownID))
	assert.Equal(t, http.StatusOK, call(r, http.MethodGet, "/subscription/"+ownID+"/billing-history"))

	store.Put(&subscription.Record{UserID: ownID, CustomerID: strPtr("cus_1"), SubscriptionID: strPtr("sub_1"), IsActive: true})
	assert.Equal(t, http.StatusOK, call(r, http.MethodDelete, "/subscription/"+ownID))
	assert.True(t, store.Get(ownID).CancelAtPeriodEnd)
}
