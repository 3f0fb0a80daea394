package service

import (
	"context"
	"sync"

	"github.com/kitchenunity/cabinet-bfa-go/internal/domain"
	"github.com/kitchenunity/cabinet-bfa-go/internal/infra/observability"
	"github.com/kitchenunity/cabinet-bfa-go/internal/port"

	"go.uber.org/zap"
)

// Sessions hands out one Session per actor, host and effective scope,
// cached with a TTL.
type Sessions struct {
	mu      sync.Mutex
	cache   port.Cache[*Session]
	stores  *Stores
	tenants *TenantService
	metrics *observability.Metrics
	logger  *zap.Logger
}

// NewSessions creates the session registry.
func NewSessions(cache port.Cache[*Session], stores *Stores, tenants *TenantService, metrics *observability.Metrics, logger *zap.Logger) *Sessions {
	return &Sessions{cache: cache, stores: stores, tenants: tenants, metrics: metrics, logger: logger}
}

// Stores returns the entity stores sessions write through.
func (m *Sessions) Stores() *Stores { return m.stores }

// Open resolves the actor's context and returns a loaded session for it.
// Sessions are keyed by the resolved scope as well as subject and host, so
// a request never shares a session with one resolved to another store; an
// admin selecting a different store gets a separate view.
func (m *Sessions) Open(ctx context.Context, req ContextRequest) (*Session, *ActorContext, error) {
	actx, err := m.tenants.ResolveContext(ctx, req)
	if err != nil {
		return nil, nil, err
	}

	key := sessionKey(req.Subject, req.Host, actx.Scope)
	m.mu.Lock()
	sess, ok := m.cache.Get(key)
	if !ok {
		sess = NewSession(m.stores, actx.Scope, m.metrics, m.logger.With(
			zap.String("subject", req.Subject),
			zap.String("store_id", actx.Scope.StoreID),
		))
		m.cache.Set(key, sess)
	}
	m.mu.Unlock()

	if err := sess.EnsureLoaded(ctx); err != nil {
		return nil, nil, err
	}
	return sess, actx, nil
}

func sessionKey(subject, host string, scope domain.Scope) string {
	return subject + "|" + host + "|" + scope.StoreID + "|" + string(scope.Role)
}
