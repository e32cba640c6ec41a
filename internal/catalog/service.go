package catalog

import (
	"context"

	"github.com/rs/zerolog"

	"github.com/noah-isme/backend-kasir/internal/gateway"
)

type productProvider interface {
	ListProducts(ctx context.Context, f gateway.ProductFilter) ([]gateway.Product, error)
	GetProduct(ctx context.Context, id string) (gateway.Product, error)
}

// Service orchestrates product lookups against the store gateway with a
// read-through Redis cache. Cache failures are logged and never surfaced; the
// store stays the source of truth.
type Service struct {
	store        productProvider
	cache        *Cache
	logger       zerolog.Logger
	defaultLimit int
	maxLimit     int
}

// ServiceConfig groups Service dependencies.
type ServiceConfig struct {
	Store        productProvider
	Cache        *Cache
	Logger       zerolog.Logger
	DefaultLimit int
	MaxLimit     int
}

// NewService constructs a Service.
func NewService(cfg ServiceConfig) *Service {
	if cfg.DefaultLimit <= 0 {
		cfg.DefaultLimit = 20
	}
	if cfg.MaxLimit <= 0 {
		cfg.MaxLimit = 100
	}
	return &Service{
		store:        cfg.Store,
		cache:        cfg.Cache,
		logger:       cfg.Logger,
		defaultLimit: cfg.DefaultLimit,
		maxLimit:     cfg.MaxLimit,
	}
}

// ListProducts runs a filtered product listing, serving from cache when a
// fresh entry exists.
func (s *Service) ListProducts(ctx context.Context, f gateway.ProductFilter) ([]gateway.Product, error) {
	if f.Limit <= 0 {
		f.Limit = s.defaultLimit
	}
	if f.Limit > s.maxLimit {
		f.Limit = s.maxLimit
	}

	key := listKey(f)
	var cached []gateway.Product
	hit, err := s.cache.GetJSON(ctx, key, &cached)
	if err != nil {
		s.logger.Warn().Err(err).Str("key", key).Msg("catalog cache read failed")
	}
	if hit {
		return cached, nil
	}

	products, err := s.store.ListProducts(ctx, f)
	if err != nil {
		return nil, err
	}
	if err := s.cache.SetJSON(ctx, key, products); err != nil {
		s.logger.Warn().Err(err).Str("key", key).Msg("catalog cache write failed")
	}
	return products, nil
}

// GetProduct fetches a single product by store identifier.
func (s *Service) GetProduct(ctx context.Context, id string) (gateway.Product, error) {
	key := productKey(id)
	var cached gateway.Product
	hit, err := s.cache.GetJSON(ctx, key, &cached)
	if err != nil {
		s.logger.Warn().Err(err).Str("key", key).Msg("catalog cache read failed")
	}
	if hit {
		return cached, nil
	}

	product, err := s.store.GetProduct(ctx, id)
	if err != nil {
		return gateway.Product{}, err
	}
	if err := s.cache.SetJSON(ctx, key, product); err != nil {
		s.logger.Warn().Err(err).Str("key", key).Msg("catalog cache write failed")
	}
	return product, nil
}
