package service

import (
	"context"
	"errors"
	"fmt"
	"sync"

	"github.com/kitchenunity/cabinet-bfa-go/internal/domain"
	"github.com/kitchenunity/cabinet-bfa-go/internal/infra/observability"
	"github.com/kitchenunity/cabinet-bfa-go/internal/port"
	"github.com/kitchenunity/cabinet-bfa-go/internal/workspace"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"
)

var sessionTracer = otel.Tracer("service/session")

// Stores bundles one EntityStore per kind.
type Stores struct {
	Leads     *EntityStore[domain.Lead]
	Customers *EntityStore[domain.Customer]
	Claims    *EntityStore[domain.Claim]
	Orders    *EntityStore[domain.Order]
	Inventory *EntityStore[domain.InventoryItem]
	Planner   *EntityStore[domain.PlannerEvent]
}

// NewStores wires every repository to its EntityStore and hooks.
func NewStores(repos port.Repositories, now port.Clock, metrics *observability.Metrics, logger *zap.Logger) *Stores {
	return &Stores{
		Leads:     NewEntityStore(repos.Leads, LeadHooks(now), metrics, logger),
		Customers: NewEntityStore(repos.Customers, Hooks[domain.Customer]{}, metrics, logger),
		Claims:    NewEntityStore(repos.Claims, Hooks[domain.Claim]{}, metrics, logger),
		Orders:    NewEntityStore(repos.Orders, OrderHooks(), metrics, logger),
		Inventory: NewEntityStore(repos.Inventory, Hooks[domain.InventoryItem]{}, metrics, logger),
		Planner:   NewEntityStore(repos.Planner, Hooks[domain.PlannerEvent]{}, metrics, logger),
	}
}

// Session is one actor's loaded view of a tenant. Writes go to the store
// of record first and are merged into the view only after they succeed.
type Session struct {
	mu      sync.Mutex
	stores  *Stores
	scope   domain.Scope
	state   workspace.State
	metrics *observability.Metrics
	logger  *zap.Logger
}

// NewSession creates an empty session for scope. Call Load before reading.
func NewSession(stores *Stores, scope domain.Scope, metrics *observability.Metrics, logger *zap.Logger) *Session {
	return &Session{
		stores:  stores,
		scope:   scope,
		state:   workspace.Begin(workspace.State{}, scope.StoreID),
		metrics: metrics,
		logger:  logger,
	}
}

// Scope returns the effective scope.
func (s *Session) Scope() domain.Scope {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.scope
}

// Epoch returns the current tenant-context epoch.
func (s *Session) Epoch() uint64 {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.state.Epoch
}

// Snapshot returns the current state. Collections are never mutated in
// place, so the snapshot stays valid after later writes.
func (s *Session) Snapshot() workspace.State {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.state
}

// Switch moves the session to another tenant context and loads it.
// Loads still in flight for the previous context are discarded.
func (s *Session) Switch(ctx context.Context, scope domain.Scope) error {
	s.mu.Lock()
	s.scope = scope
	s.state = workspace.Begin(s.state, scope.StoreID)
	s.mu.Unlock()

	s.logger.Info("tenant context switched",
		zap.String("store_id", scope.StoreID),
		zap.String("role", string(scope.Role)),
	)
	return s.Load(ctx)
}

// Load lists every kind concurrently and replaces the collections. If any
// list fails the whole load fails and the state is unchanged.
func (s *Session) Load(ctx context.Context) error {
	ctx, span := sessionTracer.Start(ctx, "Session.Load")
	defer span.End()

	s.mu.Lock()
	scope, epoch := s.scope, s.state.Epoch
	s.mu.Unlock()
	span.SetAttributes(attribute.String("store.id", scope.StoreID))

	loaded := workspace.Loaded{Epoch: epoch}
	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() (err error) { loaded.Leads, err = s.stores.Leads.List(gctx, scope); return })
	g.Go(func() (err error) { loaded.Customers, err = s.stores.Customers.List(gctx, scope); return })
	g.Go(func() (err error) { loaded.Claims, err = s.stores.Claims.List(gctx, scope); return })
	g.Go(func() (err error) { loaded.Orders, err = s.stores.Orders.List(gctx, scope); return })
	g.Go(func() (err error) { loaded.Inventory, err = s.stores.Inventory.List(gctx, scope); return })
	g.Go(func() (err error) { loaded.Planner, err = s.stores.Planner.List(gctx, scope); return })
	if err := g.Wait(); err != nil {
		return err
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	next, _, err := workspace.Reduce(s.state, loaded)
	if errors.Is(err, workspace.ErrStaleEpoch) {
		s.metrics.IncrStaleLoad()
		s.logger.Info("discarded load for superseded tenant context",
			zap.String("loaded_store_id", scope.StoreID),
			zap.String("current_store_id", s.state.StoreID),
		)
		return nil
	}
	if err != nil {
		return err
	}
	s.state = next
	return nil
}

// EnsureLoaded loads the session once.
func (s *Session) EnsureLoaded(ctx context.Context) error {
	s.mu.Lock()
	loaded := s.state.Loaded
	s.mu.Unlock()
	if loaded {
		return nil
	}
	return s.Load(ctx)
}

// ============================================================
// Write-then-merge operations
// ============================================================

// Create persists draft and prepends the canonical row.
func Create[T domain.Entity](ctx context.Context, s *Session, store *EntityStore[T], draft domain.Draft[T]) (T, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return createLocked(ctx, s, store, draft)
}

// Update persists patch with a compare-and-swap on version and merges it
// into the cached row. A version of 0 means "the version I last loaded".
func Update[T domain.Entity](ctx context.Context, s *Session, store *EntityStore[T], id string, version int, patch domain.Patch) (T, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return updateLocked(ctx, s, store, id, version, patch)
}

// Delete removes the row remotely, then locally.
func Delete[T domain.Entity](ctx context.Context, s *Session, store *EntityStore[T], id string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	return deleteLocked(ctx, s, store, id)
}

// Get returns one cached row.
func Get[T domain.Entity](s *Session, id string) (T, error) {
	e, ok := workspace.Find[T](s.Snapshot(), id)
	if !ok {
		return e, &domain.ErrNotFound{Resource: string(e.Kind()), ID: id}
	}
	return e, nil
}

// List returns the cached collection for T.
func List[T domain.Entity](s *Session) []T {
	items := workspace.Items[T](s.Snapshot())
	if items == nil {
		return []T{}
	}
	return items
}

func createLocked[T domain.Entity](ctx context.Context, s *Session, store *EntityStore[T], draft domain.Draft[T]) (T, error) {
	created, err := store.Create(ctx, s.scope, draft)
	if err != nil {
		return created, err
	}
	next, _, err := workspace.Reduce(s.state, workspace.Created[T]{Epoch: s.state.Epoch, Entity: created})
	if err != nil {
		return created, err
	}
	s.state = next
	return created, nil
}

func updateLocked[T domain.Entity](ctx context.Context, s *Session, store *EntityStore[T], id string, version int, patch domain.Patch) (T, error) {
	current, ok := workspace.Find[T](s.state, id)
	if !ok {
		return current, &domain.ErrNotFound{Resource: string(store.Kind()), ID: id}
	}
	if version <= 0 {
		version = current.EntityVersion()
	}

	applied, err := store.Update(ctx, s.scope, current, version, patch)
	if err != nil {
		return current, err
	}
	next, _, err := workspace.Reduce(s.state, workspace.Updated[T]{
		Epoch: s.state.Epoch, ID: id, Version: version + 1, Patch: applied,
	})
	if err != nil {
		return current, err
	}
	s.state = next
	updated, _ := workspace.Find[T](s.state, id)
	return updated, nil
}

func deleteLocked[T domain.Entity](ctx context.Context, s *Session, store *EntityStore[T], id string) error {
	if err := store.Delete(ctx, s.scope, id); err != nil {
		return err
	}
	next, _, err := workspace.Reduce(s.state, workspace.Deleted[T]{Epoch: s.state.Epoch, ID: id})
	if err != nil {
		return err
	}
	s.state = next
	return nil
}

// ============================================================
// Effects
// ============================================================

// Run reduces an intent and executes its effects in order. If an effect
// fails, rows created by earlier effects of the same intent are deleted
// again and the original error is returned.
func (s *Session) Run(ctx context.Context, action workspace.Action) ([]domain.Entity, error) {
	ctx, span := sessionTracer.Start(ctx, "Session.Run")
	defer span.End()

	s.mu.Lock()
	defer s.mu.Unlock()

	next, effects, err := workspace.Reduce(s.state, action)
	if err != nil {
		if errors.Is(err, workspace.ErrStaleEpoch) {
			s.metrics.IncrStaleLoad()
		}
		return nil, err
	}
	s.state = next

	results := make([]domain.Entity, 0, len(effects))
	for i, eff := range effects {
		res, err := s.execute(ctx, eff)
		if err != nil {
			s.logger.Warn("transition step failed",
				zap.Int("step", i),
				zap.String("op", string(eff.Op)),
				zap.String("kind", string(eff.Kind)),
				zap.Error(err),
			)
			s.rollback(ctx, effects[:i], results)
			return nil, err
		}
		results = append(results, res)
	}
	return results, nil
}

func (s *Session) execute(ctx context.Context, eff workspace.Effect) (domain.Entity, error) {
	switch eff.Kind {
	case domain.KindLead:
		return executeOn(ctx, s, s.stores.Leads, eff)
	case domain.KindCustomer:
		return executeOn(ctx, s, s.stores.Customers, eff)
	case domain.KindClaim:
		return executeOn(ctx, s, s.stores.Claims, eff)
	case domain.KindOrder:
		return executeOn(ctx, s, s.stores.Orders, eff)
	case domain.KindInventory:
		return executeOn(ctx, s, s.stores.Inventory, eff)
	case domain.KindPlanner:
		return executeOn(ctx, s, s.stores.Planner, eff)
	}
	return nil, fmt.Errorf("no store for kind %q", eff.Kind)
}

func executeOn[T domain.Entity](ctx context.Context, s *Session, store *EntityStore[T], eff workspace.Effect) (domain.Entity, error) {
	switch eff.Op {
	case workspace.OpCreate:
		draft, ok := eff.Draft.(domain.Draft[T])
		if !ok {
			return nil, fmt.Errorf("create %s: unexpected draft %T", eff.Kind, eff.Draft)
		}
		return createLocked(ctx, s, store, draft)
	case workspace.OpUpdate:
		return updateLocked(ctx, s, store, eff.ID, eff.Version, eff.Patch)
	case workspace.OpDelete:
		return nil, deleteLocked(ctx, s, store, eff.ID)
	}
	return nil, fmt.Errorf("unknown effect op %q", eff.Op)
}

// rollback deletes rows created by completed effects, newest first.
// Failures are logged; the caller reports the original error.
func (s *Session) rollback(ctx context.Context, done []workspace.Effect, results []domain.Entity) {
	for i := len(done) - 1; i >= 0; i-- {
		if done[i].Op != workspace.OpCreate || results[i] == nil {
			continue
		}
		created := results[i]
		switch created.Kind() {
		case domain.KindLead:
			compensateOn(ctx, s, s.stores.Leads, created)
		case domain.KindCustomer:
			compensateOn(ctx, s, s.stores.Customers, created)
		case domain.KindClaim:
			compensateOn(ctx, s, s.stores.Claims, created)
		case domain.KindOrder:
			compensateOn(ctx, s, s.stores.Orders, created)
		case domain.KindInventory:
			compensateOn(ctx, s, s.stores.Inventory, created)
		case domain.KindPlanner:
			compensateOn(ctx, s, s.stores.Planner, created)
		}
	}
}

func compensateOn[T domain.Entity](ctx context.Context, s *Session, store *EntityStore[T], created domain.Entity) {
	if err := store.compensate(ctx, created.Tenant(), created.EntityID()); err != nil {
		return
	}
	if next, _, err := workspace.Reduce(s.state, workspace.Deleted[T]{Epoch: s.state.Epoch, ID: created.EntityID()}); err == nil {
		s.state = next
	}
}
