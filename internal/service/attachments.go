package service

import (
	"context"
	"fmt"
	"strings"

	"github.com/google/uuid"
	"github.com/kitchenunity/cabinet-bfa-go/internal/access"
	"github.com/kitchenunity/cabinet-bfa-go/internal/domain"
	"github.com/kitchenunity/cabinet-bfa-go/internal/port"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.uber.org/zap"
)

var attachmentTracer = otel.Tracer("service/attachments")

// MaxAttachmentSize bounds a single uploaded payload.
const MaxAttachmentSize = 10 << 20

// Attachments stores order documents. Payloads are opaque: they go to the
// blob store and the order keeps a reference.
type Attachments struct {
	blobs  port.BlobStore
	now    port.Clock
	logger *zap.Logger
}

// NewAttachments creates the attachment service.
func NewAttachments(blobs port.BlobStore, now port.Clock, logger *zap.Logger) *Attachments {
	return &Attachments{blobs: blobs, now: now, logger: logger}
}

// Upload stores body and appends a reference to the order. If the order
// update fails the payload is deleted again.
func (a *Attachments) Upload(ctx context.Context, sess *Session, orderID string, version int, name, mimeType string, body []byte) (*domain.Order, *domain.Attachment, error) {
	ctx, span := attachmentTracer.Start(ctx, "Attachments.Upload")
	defer span.End()
	span.SetAttributes(attribute.String("order.id", orderID), attribute.Int("attachment.size", len(body)))

	if err := canEditOrders(sess); err != nil {
		return nil, nil, err
	}
	name = strings.TrimSpace(name)
	if name == "" {
		return nil, nil, &domain.ErrValidation{Field: "name", Message: "file name is required"}
	}
	if len(body) == 0 {
		return nil, nil, &domain.ErrValidation{Field: "file", Message: "empty payload"}
	}
	if len(body) > MaxAttachmentSize {
		return nil, nil, &domain.ErrValidation{Field: "file", Message: fmt.Sprintf("exceeds %d bytes", MaxAttachmentSize)}
	}

	order, err := Get[domain.Order](sess, orderID)
	if err != nil {
		return nil, nil, err
	}

	att := domain.Attachment{
		ID:        uuid.NewString(),
		Name:      name,
		MimeType:  mimeType,
		Size:      int64(len(body)),
		CreatedAt: a.now().UTC(),
	}
	att.BlobKey = fmt.Sprintf("%s/orders/%s/%s", order.StoreID, order.ID, att.ID)

	if err := a.blobs.Put(ctx, att.BlobKey, mimeType, body); err != nil {
		return nil, nil, &domain.ErrPersistence{Operation: "put attachment", Err: err}
	}

	list := append(append([]domain.Attachment{}, order.Attachments...), att)
	updated, err := Update(ctx, sess, sess.stores.Orders, orderID, version, domain.Patch{"attachments": list})
	if err != nil {
		if derr := a.blobs.Delete(ctx, att.BlobKey); derr != nil {
			a.logger.Error("orphaned attachment payload", zap.String("key", att.BlobKey), zap.Error(derr))
		}
		return nil, nil, err
	}

	a.logger.Info("attachment uploaded",
		zap.String("order_id", orderID),
		zap.String("attachment_id", att.ID),
		zap.Int64("size", att.Size),
	)
	return &updated, &att, nil
}

// Remove drops the reference from the order, then deletes the payload.
func (a *Attachments) Remove(ctx context.Context, sess *Session, orderID, attachmentID string, version int) (*domain.Order, error) {
	ctx, span := attachmentTracer.Start(ctx, "Attachments.Remove")
	defer span.End()
	span.SetAttributes(attribute.String("order.id", orderID), attribute.String("attachment.id", attachmentID))

	order, err := Get[domain.Order](sess, orderID)
	if err != nil {
		return nil, err
	}
	att, ok := findAttachment(order, attachmentID)
	if !ok {
		return nil, &domain.ErrNotFound{Resource: "attachment", ID: attachmentID}
	}

	list := make([]domain.Attachment, 0, len(order.Attachments))
	for _, x := range order.Attachments {
		if x.ID != attachmentID {
			list = append(list, x)
		}
	}
	updated, err := Update(ctx, sess, sess.stores.Orders, orderID, version, domain.Patch{"attachments": list})
	if err != nil {
		return nil, err
	}

	if err := a.blobs.Delete(ctx, att.BlobKey); err != nil {
		a.logger.Error("failed to delete attachment payload", zap.String("key", att.BlobKey), zap.Error(err))
	}
	return &updated, nil
}

// Download returns the attachment and its payload.
func (a *Attachments) Download(ctx context.Context, sess *Session, orderID, attachmentID string) (*domain.Attachment, []byte, error) {
	ctx, span := attachmentTracer.Start(ctx, "Attachments.Download")
	defer span.End()

	order, err := Get[domain.Order](sess, orderID)
	if err != nil {
		return nil, nil, err
	}
	att, ok := findAttachment(order, attachmentID)
	if !ok {
		return nil, nil, &domain.ErrNotFound{Resource: "attachment", ID: attachmentID}
	}
	body, _, err := a.blobs.Get(ctx, att.BlobKey)
	if err != nil {
		return nil, nil, err
	}
	return &att, body, nil
}

func canEditOrders(sess *Session) error {
	scope := sess.Scope()
	if scope.StoreID == "" || scope.IsAggregate() {
		return &domain.ErrTenantViolation{Operation: "attach to order", StoreID: scope.StoreID}
	}
	return access.Require(scope.Role, access.ActionEdit, access.Scope{StoreID: scope.StoreID, Module: access.ModuleSales})
}

func findAttachment(o domain.Order, id string) (domain.Attachment, bool) {
	for _, x := range o.Attachments {
		if x.ID == id {
			return x, true
		}
	}
	return domain.Attachment{}, false
}
