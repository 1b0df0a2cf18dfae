package application

import (
	"context"
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/wyfcoding/goerp/internal/events"
	"github.com/wyfcoding/goerp/internal/procurement/domain"
)

type stagedEvent struct {
	exchange string
	event    events.DomainEvent
}

type memoryStore struct {
	orders map[int]*domain.PurchaseOrder
	staged []stagedEvent
}

func newMemoryStore() *memoryStore {
	return &memoryStore{orders: make(map[int]*domain.PurchaseOrder)}
}

func (s *memoryStore) CreatePurchaseOrder(_ context.Context, po *domain.PurchaseOrder) error {
	po.ID = len(s.orders) + 1
	s.orders[po.ID] = po
	return nil
}

func (s *memoryStore) PurchaseOrderByID(_ context.Context, id int, _ bool) (*domain.PurchaseOrder, error) {
	po, ok := s.orders[id]
	if !ok {
		return nil, nil
	}
	copied := *po
	return &copied, nil
}

func (s *memoryStore) MarkReceived(_ context.Context, id int, receivedAt time.Time) error {
	po := s.orders[id]
	po.Status = domain.POStatusReceived
	po.ReceivedAt = &receivedAt
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

func newServiceWithStore() (*ProcurementService, *memoryStore) {
	store := newMemoryStore()
	return NewProcurementService(&memoryTxRunner{store: store}, nil), store
}

func TestCreatePurchaseOrder(t *testing.T) {
	ctx := context.Background()

	t.Run("creates pending order without events", func(t *testing.T) {
		service, store := newServiceWithStore()

		po, err := service.CreatePurchaseOrder(ctx, CreatePurchaseOrderCommand{
			Supplier: "Acme",
			Lines: []CreatePurchaseOrderLine{
				{ProductSKU: "WIDGET-1", Quantity: 10, UnitPrice: decimal.NewFromInt(5)},
			},
		})
		require.NoError(t, err)
		assert.Equal(t, domain.POStatusPending, po.Status)
		assert.True(t, po.TotalAmount().Equal(decimal.NewFromInt(50)))
		assert.Empty(t, store.staged, "creation emits nothing, receipt does")
	})

	t.Run("empty order is rejected", func(t *testing.T) {
		service, _ := newServiceWithStore()

		_, err := service.CreatePurchaseOrder(ctx, CreatePurchaseOrderCommand{Supplier: "Acme"})
		assert.ErrorIs(t, err, domain.ErrPOEmptyLines)
	})
}

func TestReceivePurchaseOrder(t *testing.T) {
	ctx := context.Background()

	seed := func(service *ProcurementService) *domain.PurchaseOrder {
		po, err := service.CreatePurchaseOrder(ctx, CreatePurchaseOrderCommand{
			Supplier: "Acme",
			Lines: []CreatePurchaseOrderLine{
				{ProductSKU: "WIDGET-1", Quantity: 10, UnitPrice: decimal.NewFromInt(5)},
				{ProductSKU: "WIDGET-2", Quantity: 4, UnitPrice: decimal.NewFromInt(3)},
			},
		})
		if err != nil {
			t.Fatalf("seed purchase order: %v", err)
		}
		return po
	}

	t.Run("stages one goods received fact per line", func(t *testing.T) {
		service, store := newServiceWithStore()
		po := seed(service)

		received, err := service.ReceivePurchaseOrder(ctx, po.ID)
		require.NoError(t, err)
		assert.Equal(t, domain.POStatusReceived, received.Status)
		require.NotNil(t, received.ReceivedAt)

		require.Len(t, store.staged, 2)
		for i, line := range po.Lines {
			assert.Equal(t, events.ProcurementExchange, store.staged[i].exchange)
			fact, ok := store.staged[i].event.(events.GoodsReceived)
			require.True(t, ok)
			assert.Equal(t, po.ID, fact.PurchaseOrderID)
			assert.Equal(t, line.ProductSKU, fact.ProductSKU)
			assert.Equal(t, line.Quantity, fact.QuantityReceived)
		}
	})

	t.Run("second receipt is rejected and emits nothing", func(t *testing.T) {
		service, store := newServiceWithStore()
		po := seed(service)

		_, err := service.ReceivePurchaseOrder(ctx, po.ID)
		require.NoError(t, err)
		_, err = service.ReceivePurchaseOrder(ctx, po.ID)

		assert.ErrorIs(t, err, domain.ErrAlreadyReceived)
		assert.Len(t, store.staged, 2)
	})

	t.Run("unknown order", func(t *testing.T) {
		service, _ := newServiceWithStore()

		_, err := service.ReceivePurchaseOrder(ctx, 999)
		assert.ErrorIs(t, err, domain.ErrPONotFound)
	})
}
