package application

import (
	"context"
	"testing"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/wyfcoding/goerp/internal/events"
	"github.com/wyfcoding/goerp/internal/sales/domain"
)

type stagedEvent struct {
	exchange string
	event    events.DomainEvent
}

type memoryStore struct {
	orders []*domain.Order
	staged []stagedEvent
}

func (s *memoryStore) CreateOrder(_ context.Context, o *domain.Order) error {
	o.ID = len(s.orders) + 1
	s.orders = append(s.orders, o)
	return nil
}

func (s *memoryStore) StageEvent(_ context.Context, exchange string, event events.DomainEvent) error {
	s.staged = append(s.staged, stagedEvent{exchange: exchange, event: event})
	return nil
}

type memoryTxRunner struct {
	store *memoryStore
}

func (r *memoryTxRunner) InTx(ctx context.Context, fn func(store domain.Store) error) error {
	return fn(r.store)
}

func newServiceWithStore() (*SalesService, *memoryStore) {
	store := &memoryStore{}
	return NewSalesService(&memoryTxRunner{store: store}, nil), store
}

func TestCreateOrder(t *testing.T) {
	ctx := context.Background()

	t.Run("totals lines and stages order event in the same tx", func(t *testing.T) {
		service, store := newServiceWithStore()

		order, err := service.CreateOrder(ctx, CreateOrderCommand{
			CustomerID: 3,
			Items: []CreateOrderItem{
				{ProductSKU: "WIDGET-1", Quantity: 2, UnitPrice: decimal.NewFromInt(10)},
				{ProductSKU: "WIDGET-2", Quantity: 1, UnitPrice: decimal.RequireFromString("4.50")},
			},
		})
		require.NoError(t, err)
		assert.True(t, order.TotalAmount.Equal(decimal.RequireFromString("24.50")))
		assert.Equal(t, domain.OrderStatusCreated, order.Status)
		assert.NotEmpty(t, order.OrderNumber)

		require.Len(t, store.staged, 1)
		assert.Equal(t, events.SalesExchange, store.staged[0].exchange)
		created, ok := store.staged[0].event.(events.SalesOrderCreated)
		require.True(t, ok)
		assert.Equal(t, order.ID, created.OrderID)
		require.Len(t, created.Items, 2)
		assert.Equal(t, "WIDGET-1", created.Items[0].ProductSKU)
		assert.True(t, created.TotalAmount.Equal(order.TotalAmount))
	})

	t.Run("empty order is rejected", func(t *testing.T) {
		service, store := newServiceWithStore()

		_, err := service.CreateOrder(ctx, CreateOrderCommand{CustomerID: 3})
		assert.ErrorIs(t, err, domain.ErrEmptyOrder)
		assert.Empty(t, store.orders)
	})

	t.Run("non-positive quantity is rejected", func(t *testing.T) {
		service, _ := newServiceWithStore()

		_, err := service.CreateOrder(ctx, CreateOrderCommand{
			CustomerID: 3,
			Items:      []CreateOrderItem{{ProductSKU: "WIDGET-1", Quantity: 0, UnitPrice: decimal.NewFromInt(10)}},
		})
		assert.Error(t, err)
	})
}
