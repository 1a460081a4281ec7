// internal/service/catalog/catalog.go
package catalog

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"

	"billing-service/internal/domain/payment"
)

const productsKey = "billing:catalog:products"

// CatalogService lists sellable products. Results are cached in Redis when a
// client is configured; cache errors fall through to the processor.
type CatalogService struct {
	gateway payment.Gateway
	cache   redis.UniversalClient
	ttl     time.Duration
	logger  *zap.Logger
}

func NewCatalogService(gateway payment.Gateway, cache redis.UniversalClient, ttl time.Duration, logger *zap.Logger) *CatalogService {
	return &CatalogService{
		gateway: gateway,
		cache:   cache,
		ttl:     ttl,
		logger:  logger,
	}
}

// ListProducts returns active products with their active recurring prices.
func (s *CatalogService) ListProducts(ctx context.Context) ([]payment.Product, error) {
	if products, ok := s.cached(ctx); ok {
		return products, nil
	}

	products, err := s.gateway.ListActiveProducts(ctx)
	if err != nil {
		return nil, fmt.Errorf("list products: %w", err)
	}
	if products == nil {
		products = []payment.Product{}
	}

	s.store(ctx, products)
	return products, nil
}

func (s *CatalogService) cached(ctx context.Context) ([]payment.Product, bool) {
	if s.cache == nil || s.ttl <= 0 {
		return nil, false
	}

	raw, err := s.cache.Get(ctx, productsKey).Bytes()
	if err != nil {
		if !errors.Is(err, redis.Nil) {
			s.logger.Warn("catalog cache read failed", zap.Error(err))
		}
		return nil, false
	}

	var products []payment.Product
	if err := json.Unmarshal(raw, &products); err != nil {
		s.logger.Warn("catalog cache entry is corrupt", zap.Error(err))
		return nil, false
	}
	return products, true
}

func (s *CatalogService) store(ctx context.Context, products []payment.Product) {
	if s.cache == nil || s.ttl <= 0 {
		return
	}

	raw, err := json.Marshal(products)
	if err != nil {
		return
	}
	if err := s.cache.Set(ctx, productsKey, raw, s.ttl).Err(); err != nil {
		s.logger.Warn("catalog cache write failed", zap.Error(err))
	}
}
