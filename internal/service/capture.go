package service

import (
	"context"

	"github.com/kitchenunity/cabinet-bfa-go/internal/domain"

	"go.opentelemetry.io/otel/attribute"
	"go.uber.org/zap"
	"golang.org/x/crypto/bcrypt"
)

// LeadCapture turns inbound form-plugin submissions into leads.
type LeadCapture struct {
	leads   *EntityStore[domain.Lead]
	tenants *TenantService
	logger  *zap.Logger
}

// NewLeadCapture creates the lead-capture service.
func NewLeadCapture(leads *EntityStore[domain.Lead], tenants *TenantService, logger *zap.Logger) *LeadCapture {
	return &LeadCapture{leads: leads, tenants: tenants, logger: logger}
}

// Capture creates a New lead in storeID from the submission. When the
// store has a webhook secret, token must match it.
func (c *LeadCapture) Capture(ctx context.Context, storeID, token, source string, sub domain.FormSubmission) (domain.Lead, error) {
	ctx, span := storeTracer.Start(ctx, "LeadCapture.Capture")
	defer span.End()
	span.SetAttributes(attribute.String("store.id", storeID), attribute.String("source", source))

	var zero domain.Lead
	if storeID == "" || storeID == domain.AllStores {
		return zero, &domain.ErrTenantViolation{Operation: "capture lead", StoreID: storeID}
	}

	store, err := c.tenants.StoreOfRecord(ctx, storeID)
	if err != nil {
		return zero, err
	}
	if store.WebhookSecretHash != "" {
		if bcrypt.CompareHashAndPassword([]byte(store.WebhookSecretHash), []byte(token)) != nil {
			c.logger.Warn("webhook token rejected", zap.String("store_id", storeID))
			return zero, &domain.ErrUnauthorized{Message: "invalid webhook token"}
		}
	}

	// Inbound webhooks act with staff capabilities in the URL's store.
	scope := domain.Scope{StoreID: storeID, Role: domain.RoleEmployee}
	lead, err := c.leads.Create(ctx, scope, sub.Draft(source))
	if err != nil {
		return zero, err
	}

	c.logger.Info("lead captured",
		zap.String("store_id", storeID),
		zap.String("lead_id", lead.ID),
		zap.String("source", source),
	)
	return lead, nil
}
