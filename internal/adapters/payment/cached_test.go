package payment

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/Badsnus/mediashare-bot/internal/domain/entity"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
)

type gatewayMock struct {
	mock.Mock
}

func (m *gatewayMock) CreateCustomer(ctx context.Context, email string) (string, error) {
	args := m.Called(ctx, email)
	return args.String(0), args.Error(1)
}

func (m *gatewayMock) CreateInvoiceItem(ctx context.Context, customerID, priceRef string) error {
	return m.Called(ctx, customerID, priceRef).Error(0)
}

func (m *gatewayMock) FinalizeInvoice(ctx context.Context, customerID string) (entity.Invoice, error) {
	args := m.Called(ctx, customerID)
	return args.Get(0).(entity.Invoice), args.Error(1)
}

func (m *gatewayMock) InvoiceStatus(ctx context.Context, invoiceID string) (entity.InvoiceStatus, error) {
	args := m.Called(ctx, invoiceID)
	return args.Get(0).(entity.InvoiceStatus), args.Error(1)
}

func (m *gatewayMock) VoidInvoice(ctx context.Context, invoiceID string) error {
	return m.Called(ctx, invoiceID).Error(0)
}

type memoryCache struct {
	values map[string]string
	ttls   map[string]time.Duration
}

func newMemoryCache() *memoryCache {
	return &memoryCache{values: map[string]string{}, ttls: map[string]time.Duration{}}
}

func (c *memoryCache) Get(_ context.Context, id string) (string, bool, error) {
	v, ok := c.values[id]
	return v, ok, nil
}

func (c *memoryCache) Set(_ context.Context, id string, status string, ttl time.Duration) error {
	c.values[id] = status
	c.ttls[id] = ttl
	return nil
}

func (c *memoryCache) Delete(_ context.Context, id string) {
	delete(c.values, id)
}

func TestCachedGateway_InvoiceStatus(t *testing.T) {
	ctx := context.Background()
	gw := &gatewayMock{}
	cache := newMemoryCache()
	cached := NewCachedGateway(gw, cache)

	gw.On("InvoiceStatus", ctx, "in_1").Return(entity.InvoicePaid, nil).Once()

	status, err := cached.InvoiceStatus(ctx, "in_1")
	require.NoError(t, err)
	assert.Equal(t, entity.InvoicePaid, status)
	assert.Equal(t, terminalStatusTTL, cache.ttls["in_1"])

	// served from cache, the mock would fail on a second call
	status, err = cached.InvoiceStatus(ctx, "in_1")
	require.NoError(t, err)
	assert.Equal(t, entity.InvoicePaid, status)

	gw.AssertExpectations(t)
}

func TestCachedGateway_OpenStatusNotCached(t *testing.T) {
	ctx := context.Background()
	gw := &gatewayMock{}
	cache := newMemoryCache()
	cached := NewCachedGateway(gw, cache)

	gw.On("InvoiceStatus", ctx, "in_2").Return(entity.InvoiceOpen, nil).Once()
	gw.On("InvoiceStatus", ctx, "in_2").Return(entity.InvoicePaid, nil).Once()

	status, err := cached.InvoiceStatus(ctx, "in_2")
	require.NoError(t, err)
	assert.Equal(t, entity.InvoiceOpen, status)
	assert.NotContains(t, cache.values, "in_2")

	// paid right after the first check
	status, err = cached.InvoiceStatus(ctx, "in_2")
	require.NoError(t, err)
	assert.Equal(t, entity.InvoicePaid, status)
	assert.Equal(t, terminalStatusTTL, cache.ttls["in_2"])

	gw.AssertExpectations(t)
}

func TestCachedGateway_ErrorNotCached(t *testing.T) {
	ctx := context.Background()
	gw := &gatewayMock{}
	cache := newMemoryCache()
	cached := NewCachedGateway(gw, cache)

	gw.On("InvoiceStatus", ctx, "in_3").Return(entity.InvoiceStatus(""), errors.New("stripe down"))

	_, err := cached.InvoiceStatus(ctx, "in_3")
	require.Error(t, err)
	assert.Empty(t, cache.values)
}

func TestCachedGateway_VoidClearsCache(t *testing.T) {
	ctx := context.Background()
	gw := &gatewayMock{}
	cache := newMemoryCache()
	cache.values["in_4"] = string(entity.InvoiceOpen)
	cached := NewCachedGateway(gw, cache)

	gw.On("VoidInvoice", ctx, "in_4").Return(nil)

	require.NoError(t, cached.VoidInvoice(ctx, "in_4"))
	assert.NotContains(t, cache.values, "in_4")
}
