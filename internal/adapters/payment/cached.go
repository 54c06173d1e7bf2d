package payment

import (
	"context"
	"time"

	"github.com/Badsnus/mediashare-bot/internal/domain/entity"
)

const terminalStatusTTL = 24 * time.Hour

type statusGateway interface {
	CreateCustomer(ctx context.Context, email string) (string, error)
	CreateInvoiceItem(ctx context.Context, customerID, priceRef string) error
	FinalizeInvoice(ctx context.Context, customerID string) (entity.Invoice, error)
	InvoiceStatus(ctx context.Context, invoiceID string) (entity.InvoiceStatus, error)
	VoidInvoice(ctx context.Context, invoiceID string) error
}

type statusCache interface {
	Get(ctx context.Context, invoiceID string) (string, bool, error)
	Set(ctx context.Context, invoiceID string, status string, expiration time.Duration) error
	Delete(ctx context.Context, invoiceID string)
}

// CachedGateway serves invoice statuses from the cache when possible.
// Only terminal statuses are cached; draft and open invoices are always asked for again.
type CachedGateway struct {
	statusGateway
	cache statusCache
}

func NewCachedGateway(gateway statusGateway, cache statusCache) *CachedGateway {
	return &CachedGateway{
		statusGateway: gateway,
		cache:         cache,
	}
}

func (g *CachedGateway) InvoiceStatus(ctx context.Context, invoiceID string) (entity.InvoiceStatus, error) {
	if status, ok, err := g.cache.Get(ctx, invoiceID); err == nil && ok {
		return entity.InvoiceStatus(status), nil
	}

	status, err := g.statusGateway.InvoiceStatus(ctx, invoiceID)
	if err != nil {
		return "", err
	}

	switch status {
	case entity.InvoicePaid, entity.InvoiceVoid, entity.InvoiceUncollectible:
		_ = g.cache.Set(ctx, invoiceID, string(status), terminalStatusTTL)
	}

	return status, nil
}

func (g *CachedGateway) VoidInvoice(ctx context.Context, invoiceID string) error {
	if err := g.statusGateway.VoidInvoice(ctx, invoiceID); err != nil {
		return err
	}
	g.cache.Delete(ctx, invoiceID)
	return nil
}
