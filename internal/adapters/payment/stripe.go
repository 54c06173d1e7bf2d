package payment

import (
	"context"
	"fmt"

	"github.com/Badsnus/mediashare-bot/internal/domain/entity"
	"github.com/Badsnus/mediashare-bot/pkg/logger/types"
	"github.com/stripe/stripe-go/v76"
	"github.com/stripe/stripe-go/v76/client"
)

// Gateway wraps the Stripe invoice API
type Gateway struct {
	api    *client.API
	logger *types.Logger
}

func NewGateway(apiKey string, logger *types.Logger) *Gateway {
	api := &client.API{}
	api.Init(apiKey, nil)

	return &Gateway{
		api:    api,
		logger: logger,
	}
}

func (g *Gateway) CreateCustomer(ctx context.Context, email string) (string, error) {
	params := &stripe.CustomerParams{
		Email: stripe.String(email),
	}
	params.Context = ctx

	customer, err := g.api.Customers.New(params)
	if err != nil {
		return "", fmt.Errorf("create customer: %w", err)
	}
	g.logger.Debugf("stripe customer created (customer_id=%s)", customer.ID)
	return customer.ID, nil
}

func (g *Gateway) CreateInvoiceItem(ctx context.Context, customerID, priceRef string) error {
	params := &stripe.InvoiceItemParams{
		Customer: stripe.String(customerID),
		Price:    stripe.String(priceRef),
	}
	params.Context = ctx

	if _, err := g.api.InvoiceItems.New(params); err != nil {
		return fmt.Errorf("create invoice item: %w", err)
	}
	return nil
}

// FinalizeInvoice creates an invoice from the pending items of the customer and finalizes it.
func (g *Gateway) FinalizeInvoice(ctx context.Context, customerID string) (entity.Invoice, error) {
	params := &stripe.InvoiceParams{
		Customer:                    stripe.String(customerID),
		AutoAdvance:                 stripe.Bool(true),
		PendingInvoiceItemsBehavior: stripe.String("include"),
	}
	params.Context = ctx

	draft, err := g.api.Invoices.New(params)
	if err != nil {
		return entity.Invoice{}, fmt.Errorf("create invoice: %w", err)
	}

	finalizeParams := &stripe.InvoiceFinalizeInvoiceParams{}
	finalizeParams.Context = ctx
	invoice, err := g.api.Invoices.FinalizeInvoice(draft.ID, finalizeParams)
	if err != nil {
		return entity.Invoice{}, fmt.Errorf("finalize invoice %s: %w", draft.ID, err)
	}

	g.logger.Infof("stripe invoice finalized (invoice_id=%s, customer_id=%s)", invoice.ID, customerID)
	return entity.Invoice{
		ID:        invoice.ID,
		HostedURL: invoice.HostedInvoiceURL,
	}, nil
}

func (g *Gateway) InvoiceStatus(ctx context.Context, invoiceID string) (entity.InvoiceStatus, error) {
	params := &stripe.InvoiceParams{}
	params.Context = ctx

	invoice, err := g.api.Invoices.Get(invoiceID, params)
	if err != nil {
		return "", fmt.Errorf("get invoice %s: %w", invoiceID, err)
	}
	return entity.InvoiceStatus(invoice.Status), nil
}

func (g *Gateway) VoidInvoice(ctx context.Context, invoiceID string) error {
	params := &stripe.InvoiceVoidInvoiceParams{}
	params.Context = ctx

	if _, err := g.api.Invoices.VoidInvoice(invoiceID, params); err != nil {
		return fmt.Errorf("void invoice %s: %w", invoiceID, err)
	}
	g.logger.Infof("stripe invoice voided (invoice_id=%s)", invoiceID)
	return nil
}
