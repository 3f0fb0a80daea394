package service

import (
	"context"
	"fmt"

	"github.com/kitchenunity/cabinet-bfa-go/internal/domain"
	"github.com/kitchenunity/cabinet-bfa-go/internal/workspace"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.uber.org/zap"
)

var lifecycleTracer = otel.Tracer("service/lifecycle")

// Lifecycle runs the transitions that span more than a field update.
type Lifecycle struct {
	logger *zap.Logger
}

// NewLifecycle creates the lifecycle service.
func NewLifecycle(logger *zap.Logger) *Lifecycle {
	return &Lifecycle{logger: logger}
}

// LeadConversion is the outcome of ConvertLead.
type LeadConversion struct {
	Customer domain.Customer `json:"customer"`
	Lead     domain.Lead     `json:"lead"`
}

// ConvertLead creates a customer from the lead and marks the lead
// Qualified. If the lead cannot be updated the new customer is deleted
// again and the update error is returned.
func (l *Lifecycle) ConvertLead(ctx context.Context, sess *Session, leadID string) (*LeadConversion, error) {
	ctx, span := lifecycleTracer.Start(ctx, "Lifecycle.ConvertLead")
	defer span.End()
	span.SetAttributes(attribute.String("lead.id", leadID))

	results, err := sess.Run(ctx, workspace.ConvertLeadRequested{Epoch: sess.Epoch(), LeadID: leadID})
	if err != nil {
		return nil, err
	}
	if len(results) != 2 {
		return nil, fmt.Errorf("convert lead: expected 2 results, got %d", len(results))
	}
	customer, ok := results[0].(domain.Customer)
	if !ok {
		return nil, fmt.Errorf("convert lead: unexpected result %T", results[0])
	}
	lead, ok := results[1].(domain.Lead)
	if !ok {
		return nil, fmt.Errorf("convert lead: unexpected result %T", results[1])
	}

	l.logger.Info("lead converted",
		zap.String("store_id", lead.StoreID),
		zap.String("lead_id", lead.ID),
		zap.String("customer_id", customer.ID),
	)
	return &LeadConversion{Customer: customer, Lead: lead}, nil
}

// ConvertQuote moves a quote to Processing in place.
func (l *Lifecycle) ConvertQuote(ctx context.Context, sess *Session, orderID string) (*domain.Order, error) {
	ctx, span := lifecycleTracer.Start(ctx, "Lifecycle.ConvertQuote")
	defer span.End()
	span.SetAttributes(attribute.String("order.id", orderID))

	results, err := sess.Run(ctx, workspace.ConvertQuoteRequested{Epoch: sess.Epoch(), OrderID: orderID})
	if err != nil {
		return nil, err
	}
	order, err := singleOrder(results, orderID, sess)
	if err != nil {
		return nil, err
	}

	l.logger.Info("quote converted", zap.String("store_id", order.StoreID), zap.String("order_id", order.ID))
	return order, nil
}

// AdvanceOrder moves an order to the next status of the table, recording
// a tracking number when given. Re-asserting the current status without a
// new tracking number changes nothing.
func (l *Lifecycle) AdvanceOrder(ctx context.Context, sess *Session, orderID string, to domain.OrderStatus, trackingNumber string) (*domain.Order, error) {
	ctx, span := lifecycleTracer.Start(ctx, "Lifecycle.AdvanceOrder")
	defer span.End()
	span.SetAttributes(attribute.String("order.id", orderID), attribute.String("order.status", string(to)))

	results, err := sess.Run(ctx, workspace.AdvanceOrderRequested{
		Epoch: sess.Epoch(), OrderID: orderID, To: to, TrackingNumber: trackingNumber,
	})
	if err != nil {
		return nil, err
	}
	order, err := singleOrder(results, orderID, sess)
	if err != nil {
		return nil, err
	}

	l.logger.Info("order status changed",
		zap.String("store_id", order.StoreID),
		zap.String("order_id", order.ID),
		zap.String("status", string(order.Status)),
	)
	return order, nil
}

func singleOrder(results []domain.Entity, orderID string, sess *Session) (*domain.Order, error) {
	if len(results) == 0 {
		o, err := Get[domain.Order](sess, orderID)
		if err != nil {
			return nil, err
		}
		return &o, nil
	}
	o, ok := results[0].(domain.Order)
	if !ok {
		return nil, fmt.Errorf("order transition: unexpected result %T", results[0])
	}
	return &o, nil
}
