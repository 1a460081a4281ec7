// internal/handlers/catalog/catalog_handler.go
package catalog

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"billing-service/internal/pkg/response"
	service "billing-service/internal/service/catalog"
)

type CatalogHandler struct {
	catalogService *service.CatalogService
}

func NewCatalogHandler(catalogService *service.CatalogService) *CatalogHandler {
	return &CatalogHandler{catalogService: catalogService}
}

func (h *CatalogHandler) ListProducts(c *gin.Context) {
	products, err := h.catalogService.ListProducts(c.Request.Context())
	if err != nil {
		response.FromError(c, "failed to list products", err)
		return
	}

	response.Success(c, http.StatusOK, "products retrieved", products)
}
