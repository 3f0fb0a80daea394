package service

import (
	"context"

	"github.com/kitchenunity/cabinet-bfa-go/internal/access"
	"github.com/kitchenunity/cabinet-bfa-go/internal/domain"
	"github.com/kitchenunity/cabinet-bfa-go/internal/port"

	"go.opentelemetry.io/otel/attribute"
	"go.uber.org/zap"
	"golang.org/x/crypto/bcrypt"
)

// StoreService manages tenants.
type StoreService struct {
	directory  port.StoreDirectory
	tenants    *TenantService
	defaultTax float64
	logger     *zap.Logger
}

// NewStoreService creates a store service.
func NewStoreService(directory port.StoreDirectory, tenants *TenantService, logger *zap.Logger) *StoreService {
	return &StoreService{directory: directory, tenants: tenants, logger: logger}
}

// WithDefaultTaxRate sets the rate new stores get when none is supplied.
func (s *StoreService) WithDefaultTaxRate(rate float64) *StoreService {
	s.defaultTax = rate
	return s
}

// List returns every store. Admin only.
func (s *StoreService) List(ctx context.Context, scope domain.Scope) ([]domain.Store, error) {
	ctx, span := tenantTracer.Start(ctx, "StoreService.List")
	defer span.End()

	if err := access.Require(scope.Role, access.ActionView, access.Scope{StoreID: scope.StoreID, Module: access.ModuleStores}); err != nil {
		return nil, err
	}
	return s.tenants.Stores(ctx)
}

// Create registers a new store. Admin only; the domain key must be unique.
func (s *StoreService) Create(ctx context.Context, scope domain.Scope, draft domain.StoreDraft) (*domain.Store, error) {
	ctx, span := tenantTracer.Start(ctx, "StoreService.Create")
	defer span.End()
	span.SetAttributes(attribute.String("store.domain", draft.Domain))

	if err := access.Require(scope.Role, access.ActionCreate, access.Scope{StoreID: scope.StoreID, Module: access.ModuleStores}); err != nil {
		return nil, err
	}
	if err := draft.Validate(); err != nil {
		return nil, err
	}

	if draft.SalesTax == 0 && s.defaultTax > 0 {
		draft.SalesTax = s.defaultTax
	}
	store := draft.Store()
	if draft.WebhookSecret != "" {
		hash, err := hashSecret(draft.WebhookSecret)
		if err != nil {
			return nil, err
		}
		store.WebhookSecretHash = hash
	}

	created, err := s.directory.CreateStore(ctx, store)
	if err != nil {
		return nil, err
	}
	s.tenants.InvalidateStores()

	s.logger.Info("store created", zap.String("store_id", created.ID), zap.String("name", created.Name))
	return created, nil
}

// UpdateSettings changes a store's own settings. Tenant roles may edit
// the store they are in, except its status; admins may edit any store.
func (s *StoreService) UpdateSettings(ctx context.Context, scope domain.Scope, id string, settings domain.StoreSettings) (*domain.Store, error) {
	ctx, span := tenantTracer.Start(ctx, "StoreService.UpdateSettings")
	defer span.End()
	span.SetAttributes(attribute.String("store.id", id))

	if scope.Role != domain.RoleAdmin {
		if scope.StoreID != id {
			return nil, &domain.ErrForbidden{Action: "edit another store"}
		}
		if settings.Status != nil {
			return nil, &domain.ErrForbidden{Action: "change store status"}
		}
	}
	if err := access.Require(scope.Role, access.ActionEdit, access.Scope{StoreID: id, Module: access.ModuleSettings}); err != nil {
		return nil, err
	}
	if err := settings.Validate(); err != nil {
		return nil, err
	}

	if settings.WebhookSecret != nil {
		hash := ""
		if *settings.WebhookSecret != "" {
			var err error
			if hash, err = hashSecret(*settings.WebhookSecret); err != nil {
				return nil, err
			}
		}
		settings = settings.WithSecretHash(hash)
	}

	updated, err := s.directory.UpdateStoreSettings(ctx, id, settings)
	if err != nil {
		return nil, err
	}
	s.tenants.InvalidateStores()

	s.logger.Info("store settings updated", zap.String("store_id", id))
	return updated, nil
}

func hashSecret(secret string) (string, error) {
	hash, err := bcrypt.GenerateFromPassword([]byte(secret), bcrypt.DefaultCost)
	if err != nil {
		return "", err
	}
	return string(hash), nil
}
