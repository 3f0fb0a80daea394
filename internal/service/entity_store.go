// Package service provides the business logic layer (use cases).
// EntityStore is the tenant-checked gateway to one entity kind; Session,
// Lifecycle and the other services are built on top of it.
package service

import (
	"context"
	"slices"
	"time"

	"github.com/google/uuid"
	"github.com/kitchenunity/cabinet-bfa-go/internal/access"
	"github.com/kitchenunity/cabinet-bfa-go/internal/domain"
	"github.com/kitchenunity/cabinet-bfa-go/internal/finance"
	"github.com/kitchenunity/cabinet-bfa-go/internal/infra/observability"
	"github.com/kitchenunity/cabinet-bfa-go/internal/port"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.uber.org/zap"
)

var storeTracer = otel.Tracer("service/entitystore")

// Hooks customise the writes of one kind. Both are optional.
type Hooks[T domain.Entity] struct {
	// BeforeCreate stamps derived fields on a freshly built entity.
	BeforeCreate func(e T) T
	// BeforeUpdate may reject the patch or add derived fields to it.
	BeforeUpdate func(current T, patch domain.Patch) error
}

// EntityStore guards one repository with tenant checks and the access
// policy. No call reaches the repository without a concrete store id.
type EntityStore[T domain.Entity] struct {
	kind    domain.Kind
	repo    port.Repository[T]
	hooks   Hooks[T]
	metrics *observability.Metrics
	logger  *zap.Logger
}

// NewEntityStore creates the store for T.
func NewEntityStore[T domain.Entity](repo port.Repository[T], hooks Hooks[T], metrics *observability.Metrics, logger *zap.Logger) *EntityStore[T] {
	var zero T
	return &EntityStore[T]{
		kind:    zero.Kind(),
		repo:    repo,
		hooks:   hooks,
		metrics: metrics,
		logger:  logger.With(zap.String("kind", string(zero.Kind()))),
	}
}

// Kind returns the entity kind served.
func (s *EntityStore[T]) Kind() domain.Kind { return s.kind }

// List returns the rows of scope.StoreID, or of every tenant for "all".
// Rows are filtered again after the repository call and sorted for display.
func (s *EntityStore[T]) List(ctx context.Context, scope domain.Scope) ([]T, error) {
	ctx, span := storeTracer.Start(ctx, "EntityStore.List")
	defer span.End()
	span.SetAttributes(attribute.String("kind", string(s.kind)), attribute.String("store.id", scope.StoreID))

	if scope.StoreID == "" {
		return nil, s.violation("list", scope.StoreID)
	}
	if err := access.Require(scope.Role, access.ActionView, s.accessScope(scope)); err != nil {
		return nil, err
	}

	start := time.Now()
	rows, err := s.repo.List(ctx, scope.StoreID)
	s.metrics.RecordRequestDuration("list_"+string(s.kind), time.Since(start))
	if err != nil {
		s.logger.Error("list failed", zap.String("store_id", scope.StoreID), zap.Error(err))
		return nil, err
	}

	rows = s.ownedBy(rows, scope.StoreID)
	sortForDisplay(rows, s.kind.Ascending())
	return rows, nil
}

// Create validates draft, builds it for scope.StoreID and persists it.
// The canonical row returned by the repository is returned.
func (s *EntityStore[T]) Create(ctx context.Context, scope domain.Scope, draft domain.Draft[T]) (T, error) {
	ctx, span := storeTracer.Start(ctx, "EntityStore.Create")
	defer span.End()
	span.SetAttributes(attribute.String("kind", string(s.kind)), attribute.String("store.id", scope.StoreID))

	var zero T
	if err := s.writable("create", scope); err != nil {
		return zero, err
	}
	if err := access.Require(scope.Role, access.ActionCreate, s.accessScope(scope)); err != nil {
		return zero, err
	}
	if err := draft.Validate(); err != nil {
		return zero, err
	}

	entity := draft.Build(scope.StoreID)
	if s.hooks.BeforeCreate != nil {
		entity = s.hooks.BeforeCreate(entity)
	}

	start := time.Now()
	created, err := s.repo.Create(ctx, entity)
	s.metrics.RecordRequestDuration("create_"+string(s.kind), time.Since(start))
	if err != nil {
		s.logger.Error("create failed", zap.String("store_id", scope.StoreID), zap.Error(err))
		return zero, err
	}
	if created.Tenant() != scope.StoreID {
		return zero, s.violation("create", created.Tenant())
	}

	s.metrics.IncrEntityWrite(s.kind, "create")
	s.logger.Info("entity created",
		zap.String("store_id", scope.StoreID),
		zap.String("id", created.EntityID()),
	)
	return created, nil
}

// Update applies patch to current with a compare-and-swap on version and
// returns the patch as persisted, derived fields included.
func (s *EntityStore[T]) Update(ctx context.Context, scope domain.Scope, current T, version int, patch domain.Patch) (domain.Patch, error) {
	ctx, span := storeTracer.Start(ctx, "EntityStore.Update")
	defer span.End()
	span.SetAttributes(
		attribute.String("kind", string(s.kind)),
		attribute.String("store.id", scope.StoreID),
		attribute.String("entity.id", current.EntityID()),
		attribute.Int("entity.version", version),
	)

	if err := s.writable("update", scope); err != nil {
		return nil, err
	}
	if current.Tenant() != scope.StoreID {
		return nil, s.violation("update", current.Tenant())
	}
	if err := access.Require(scope.Role, access.ActionEdit, s.accessScope(scope)); err != nil {
		return nil, err
	}
	if err := patch.Validate(s.kind); err != nil {
		return nil, err
	}

	applied := patch.Clone()
	if s.hooks.BeforeUpdate != nil {
		if err := s.hooks.BeforeUpdate(current, applied); err != nil {
			return nil, err
		}
	}

	start := time.Now()
	err := s.repo.Update(ctx, scope.StoreID, current.EntityID(), version, applied)
	s.metrics.RecordRequestDuration("update_"+string(s.kind), time.Since(start))
	if err != nil {
		s.logger.Warn("update failed",
			zap.String("store_id", scope.StoreID),
			zap.String("id", current.EntityID()),
			zap.Int("version", version),
			zap.Error(err),
		)
		return nil, err
	}

	s.metrics.IncrEntityWrite(s.kind, "update")
	return applied, nil
}

// Delete removes a row. Only admins with a concrete store selected may delete.
func (s *EntityStore[T]) Delete(ctx context.Context, scope domain.Scope, id string) error {
	ctx, span := storeTracer.Start(ctx, "EntityStore.Delete")
	defer span.End()
	span.SetAttributes(attribute.String("kind", string(s.kind)), attribute.String("entity.id", id))

	if err := s.writable("delete", scope); err != nil {
		return err
	}
	if err := access.Require(scope.Role, access.ActionDelete, s.accessScope(scope)); err != nil {
		return err
	}
	return s.remove(ctx, scope.StoreID, id)
}

// compensate undoes a create that a later step of the same transition could
// not follow up on. It runs with system rights: the actor created the row.
func (s *EntityStore[T]) compensate(ctx context.Context, storeID, id string) error {
	ctx, span := storeTracer.Start(ctx, "EntityStore.compensate")
	defer span.End()

	if err := s.remove(ctx, storeID, id); err != nil {
		s.logger.Error("compensating delete failed; row left behind",
			zap.String("store_id", storeID),
			zap.String("id", id),
			zap.Error(err),
		)
		return err
	}
	s.logger.Warn("compensating delete applied", zap.String("store_id", storeID), zap.String("id", id))
	return nil
}

func (s *EntityStore[T]) remove(ctx context.Context, storeID, id string) error {
	start := time.Now()
	err := s.repo.Delete(ctx, storeID, id)
	s.metrics.RecordRequestDuration("delete_"+string(s.kind), time.Since(start))
	if err != nil {
		s.logger.Error("delete failed", zap.String("store_id", storeID), zap.String("id", id), zap.Error(err))
		return err
	}
	s.metrics.IncrEntityWrite(s.kind, "delete")
	return nil
}

func (s *EntityStore[T]) accessScope(scope domain.Scope) access.Scope {
	return access.Scope{StoreID: scope.StoreID, Module: access.ModuleFor(s.kind)}
}

// writable rejects a missing store and the aggregate context.
func (s *EntityStore[T]) writable(op string, scope domain.Scope) error {
	if scope.StoreID == "" || scope.IsAggregate() {
		return s.violation(op, scope.StoreID)
	}
	return nil
}

func (s *EntityStore[T]) violation(op, storeID string) error {
	operation := op + " " + string(s.kind)
	s.metrics.IncrTenantViolation(operation)
	s.logger.Warn("tenant violation", zap.String("operation", operation), zap.String("store_id", storeID))
	return &domain.ErrTenantViolation{Operation: operation, StoreID: storeID}
}

// ownedBy drops rows of other tenants. For "all" every row is kept.
func (s *EntityStore[T]) ownedBy(rows []T, storeID string) []T {
	if storeID == domain.AllStores {
		return rows
	}
	out := rows[:0:0]
	for _, r := range rows {
		if r.Tenant() != storeID {
			s.metrics.IncrTenantViolation("list " + string(s.kind))
			s.logger.Warn("foreign row dropped from listing",
				zap.String("store_id", storeID),
				zap.String("row_store_id", r.Tenant()),
				zap.String("id", r.EntityID()),
			)
			continue
		}
		out = append(out, r)
	}
	return out
}

func sortForDisplay[T domain.Entity](rows []T, ascending bool) {
	slices.SortStableFunc(rows, func(a, b T) int {
		if ascending {
			return a.SortTime().Compare(b.SortTime())
		}
		return b.SortTime().Compare(a.SortTime())
	})
}

// ============================================================
// Per-kind hooks
// ============================================================

// LeadHooks keeps updatedAt current.
func LeadHooks(now port.Clock) Hooks[domain.Lead] {
	return Hooks[domain.Lead]{
		BeforeCreate: func(l domain.Lead) domain.Lead {
			l.UpdatedAt = now().UTC()
			return l
		},
		BeforeUpdate: func(_ domain.Lead, patch domain.Patch) error {
			patch["updatedAt"] = now().UTC()
			return nil
		},
	}
}

// OrderHooks derives amount from line items, gives new line items and
// expenses an id, and enforces the status transition table.
func OrderHooks() Hooks[domain.Order] {
	return Hooks[domain.Order]{
		BeforeCreate: func(o domain.Order) domain.Order {
			assignLineItemIDs(o.LineItems)
			assignExpenseIDs(o.Expenses)
			return finance.Recalculate(o)
		},
		BeforeUpdate: func(current domain.Order, patch domain.Patch) error {
			if patch.Has("status") {
				var to domain.OrderStatus
				if err := patch.Decode("status", &to); err != nil {
					return err
				}
				if err := domain.CheckOrderTransition(current.Status, to); err != nil {
					return err
				}
			}
			if patch.Has("lineItems") {
				var items []domain.LineItem
				if err := patch.Decode("lineItems", &items); err != nil {
					return err
				}
				if items == nil {
					items = []domain.LineItem{}
				}
				assignLineItemIDs(items)
				patch["lineItems"] = items
				patch["amount"] = finance.Subtotal(items)
			}
			if patch.Has("expenses") {
				var expenses []domain.Expense
				if err := patch.Decode("expenses", &expenses); err != nil {
					return err
				}
				if expenses == nil {
					expenses = []domain.Expense{}
				}
				assignExpenseIDs(expenses)
				patch["expenses"] = expenses
			}
			return nil
		},
	}
}

func assignLineItemIDs(items []domain.LineItem) {
	for i := range items {
		if items[i].ID == "" {
			items[i].ID = uuid.NewString()
		}
	}
}

func assignExpenseIDs(expenses []domain.Expense) {
	for i := range expenses {
		if expenses[i].ID == "" {
			expenses[i].ID = uuid.NewString()
		}
	}
}
