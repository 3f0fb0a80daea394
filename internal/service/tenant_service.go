package service

import (
	"context"
	"errors"

	"github.com/kitchenunity/cabinet-bfa-go/internal/access"
	"github.com/kitchenunity/cabinet-bfa-go/internal/domain"
	"github.com/kitchenunity/cabinet-bfa-go/internal/infra/observability"
	"github.com/kitchenunity/cabinet-bfa-go/internal/port"
	"github.com/kitchenunity/cabinet-bfa-go/internal/tenant"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.uber.org/zap"
)

var tenantTracer = otel.Tracer("service/tenant")

const storesCacheKey = "stores"

// ContextRequest is what the transport knows about the actor.
type ContextRequest struct {
	Subject string
	Host    string
	// SessionStoreID is the tenant claim of the bearer token, if any.
	SessionStoreID string
	// SelectedStoreID is an admin's explicit store selection.
	SelectedStoreID string
}

// ActorContext is the resolved, effective context of one request.
type ActorContext struct {
	tenant.Resolution
	Subject string          `json:"subject"`
	Scope   domain.Scope    `json:"scope"`
	Modules []access.Module `json:"modules"`
	// Store is the effective store; nil in the global context.
	Store *domain.Store `json:"store,omitempty"`
}

// TenantService connects the pure resolver to profiles and the store
// directory.
type TenantService struct {
	resolver     *tenant.Resolver
	profiles     port.ProfileStore
	directory    port.StoreDirectory
	profileCache port.Cache[*domain.Profile]
	storeCache   port.Cache[[]domain.Store]
	metrics      *observability.Metrics
	logger       *zap.Logger
}

// NewTenantService creates a tenant service.
func NewTenantService(
	resolver *tenant.Resolver,
	profiles port.ProfileStore,
	directory port.StoreDirectory,
	profileCache port.Cache[*domain.Profile],
	storeCache port.Cache[[]domain.Store],
	metrics *observability.Metrics,
	logger *zap.Logger,
) *TenantService {
	return &TenantService{
		resolver:     resolver,
		profiles:     profiles,
		directory:    directory,
		profileCache: profileCache,
		storeCache:   storeCache,
		metrics:      metrics,
		logger:       logger,
	}
}

// ResolveContext returns the effective context for a request. It fails
// with ErrTenantViolation when no store can be determined.
func (s *TenantService) ResolveContext(ctx context.Context, req ContextRequest) (*ActorContext, error) {
	ctx, span := tenantTracer.Start(ctx, "TenantService.ResolveContext")
	defer span.End()
	span.SetAttributes(attribute.String("host", req.Host), attribute.String("subject", req.Subject))

	profile, err := s.profile(ctx, req.Subject)
	if err != nil {
		return nil, err
	}

	res := s.resolver.Resolve(req.Host, &tenant.Session{Subject: req.Subject, StoreID: req.SessionStoreID}, profile)
	if !res.OK() && s.resolver.Options().AllowFirstStoreFallback {
		stores, err := s.Stores(ctx)
		if err != nil {
			return nil, err
		}
		res = s.resolver.WithFallback(res, stores)
		if res.OK() {
			s.logger.Warn("first-store fallback applied",
				zap.String("host", req.Host),
				zap.String("store_id", res.StoreID),
			)
		}
	}

	effective, err := tenant.Effective(res, req.SelectedStoreID)
	if err != nil {
		var violation *domain.ErrTenantViolation
		if errors.As(err, &violation) {
			s.metrics.IncrTenantViolation("resolve")
			s.logger.Warn("tenant resolution failed closed",
				zap.String("host", req.Host),
				zap.String("subject", req.Subject),
			)
		}
		return nil, err
	}

	actx := &ActorContext{
		Resolution: res,
		Subject:    req.Subject,
		Scope:      domain.Scope{StoreID: effective, Role: res.Role},
		Modules:    access.ModulesFor(res.Role, effective),
	}
	if effective != domain.AllStores {
		store, err := s.Store(ctx, effective)
		if err != nil {
			return nil, err
		}
		actx.Store = store
	}
	return actx, nil
}

// Stores lists every store, cached.
func (s *TenantService) Stores(ctx context.Context) ([]domain.Store, error) {
	if stores, ok := s.storeCache.Get(storesCacheKey); ok {
		s.metrics.IncrCacheHit("store")
		return stores, nil
	}
	s.metrics.IncrCacheMiss("store")

	stores, err := s.directory.ListStores(ctx)
	if err != nil {
		return nil, err
	}
	s.storeCache.Set(storesCacheKey, stores)
	return stores, nil
}

// Store returns one store by id.
func (s *TenantService) Store(ctx context.Context, id string) (*domain.Store, error) {
	stores, err := s.Stores(ctx)
	if err != nil {
		return nil, err
	}
	for i := range stores {
		if stores[i].ID == id {
			st := stores[i]
			return &st, nil
		}
	}
	// The cache may predate the store; ask the directory before giving up.
	st, err := s.directory.GetStore(ctx, id)
	if err != nil {
		return nil, err
	}
	s.InvalidateStores()
	return st, nil
}

// StoreOfRecord reads a store from the directory, bypassing the cache.
// Cached copies never carry the webhook secret hash.
func (s *TenantService) StoreOfRecord(ctx context.Context, id string) (*domain.Store, error) {
	return s.directory.GetStore(ctx, id)
}

// TaxRates maps store id to its default tax rate.
func (s *TenantService) TaxRates(ctx context.Context) (map[string]float64, error) {
	stores, err := s.Stores(ctx)
	if err != nil {
		return nil, err
	}
	rates := make(map[string]float64, len(stores))
	for i := range stores {
		rates[stores[i].ID] = stores[i].TaxRate()
	}
	return rates, nil
}

// InvalidateStores drops the cached directory.
func (s *TenantService) InvalidateStores() {
	s.storeCache.Delete(storesCacheKey)
}

func (s *TenantService) profile(ctx context.Context, subject string) (*domain.Profile, error) {
	if subject == "" {
		return nil, &domain.ErrUnauthorized{Message: "missing subject"}
	}
	if p, ok := s.profileCache.Get(subject); ok {
		s.metrics.IncrCacheHit("profile")
		return p, nil
	}
	s.metrics.IncrCacheMiss("profile")

	p, err := s.profiles.GetProfile(ctx, subject)
	if err != nil {
		var nf *domain.ErrNotFound
		if errors.As(err, &nf) {
			return nil, &domain.ErrUnauthorized{Message: "no profile for subject"}
		}
		return nil, err
	}
	s.profileCache.Set(subject, p)
	return p, nil
}
