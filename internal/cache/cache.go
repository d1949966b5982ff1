package cache

import (
	"context"
	"time"

	"kopitiam/backend/internal/domain"
)

// SaleCache fronts the sale data source for read paths. Writers must
// invalidate the cached sale after every payment.
type SaleCache interface {
	Get(ctx context.Context, saleID string) (*domain.Sale, bool, error)
	Set(ctx context.Context, saleID string, sale *domain.Sale, ttl time.Duration) error
	Invalidate(ctx context.Context, saleID string) error
}

type NoopSaleCache struct{}

func (NoopSaleCache) Get(_ context.Context, _ string) (*domain.Sale, bool, error) {
	return nil, false, nil
}

func (NoopSaleCache) Set(_ context.Context, _ string, _ *domain.Sale, _ time.Duration) error {
	return nil
}

func (NoopSaleCache) Invalidate(_ context.Context, _ string) error {
	return nil
}
