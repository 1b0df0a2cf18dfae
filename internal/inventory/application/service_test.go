package application

import (
	"context"
	"testing"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/wyfcoding/goerp/internal/events"
	"github.com/wyfcoding/goerp/internal/inventory/domain"
	"github.com/wyfcoding/goerp/pkg/mq"
)

// stagedEvent 被暂存到 outbox 的事件
type stagedEvent struct {
	exchange string
	event    events.DomainEvent
}

// memoryStore 内存版 Store，模拟自然键唯一约束
type memoryStore struct {
	products  map[string]*domain.Product
	receipts  map[string]bool
	movements map[string]bool
	shortfall []*domain.Shortfall
	staged    []stagedEvent
}

func newMemoryStore() *memoryStore {
	return &memoryStore{
		products:  make(map[string]*domain.Product),
		receipts:  make(map[string]bool),
		movements: make(map[string]bool),
	}
}

func (s *memoryStore) ProductBySKU(_ context.Context, sku string) (*domain.Product, error) {
	p, ok := s.products[sku]
	if !ok {
		return nil, nil
	}
	copied := *p
	return &copied, nil
}

func (s *memoryStore) CreateProduct(_ context.Context, p *domain.Product) error {
	p.ID = len(s.products) + 1
	s.products[p.SKU] = p
	return nil
}

func (s *memoryStore) AdjustStock(_ context.Context, productID int, delta int) error {
	for _, p := range s.products {
		if p.ID == productID {
			p.Quantity += delta
			return nil
		}
	}
	return domain.ErrProductNotFound
}

func (s *memoryStore) InsertGoodsReceipt(_ context.Context, r *domain.GoodsReceipt) (bool, error) {
	key := events.GoodsReceived{PurchaseOrderID: r.PurchaseOrderID, ProductSKU: r.SKU}.NaturalKey()
	if s.receipts[key] {
		return false, nil
	}
	s.receipts[key] = true
	return true, nil
}

func (s *memoryStore) InsertStockMovement(_ context.Context, m *domain.StockMovement) (bool, error) {
	key := events.StockDeducted{OrderID: m.OrderID, ProductSKU: m.SKU}.NaturalKey()
	if s.movements[key] {
		return false, nil
	}
	s.movements[key] = true
	return true, nil
}

func (s *memoryStore) InsertShortfall(_ context.Context, sf *domain.Shortfall) error {
	s.shortfall = append(s.shortfall, sf)
	return nil
}

func (s *memoryStore) StageEvent(_ context.Context, exchange string, event events.DomainEvent) error {
	s.staged = append(s.staged, stagedEvent{exchange: exchange, event: event})
	return nil
}

// memoryTxRunner 直接以同一个 store 执行，不做真正的事务
type memoryTxRunner struct {
	store *memoryStore
}

func (r *memoryTxRunner) InTx(ctx context.Context, fn func(store domain.Store) error) error {
	return fn(r.store)
}

func newServiceWithStore() (*InventoryService, *memoryStore) {
	store := newMemoryStore()
	return NewInventoryService(&memoryTxRunner{store: store}, nil), store
}

func seedProduct(store *memoryStore, sku string, qty int, costBasis decimal.Decimal) {
	_ = store.CreateProduct(context.Background(), &domain.Product{
		SKU:       sku,
		Name:      "product " + sku,
		Quantity:  qty,
		CostBasis: costBasis,
	})
}

func TestApplyGoodsReceived(t *testing.T) {
	ctx := context.Background()

	t.Run("raises stock and broadcasts update", func(t *testing.T) {
		service, store := newServiceWithStore()
		seedProduct(store, "WIDGET-1", 10, decimal.NewFromInt(5))

		outcome, err := service.ApplyGoodsReceived(ctx, &events.GoodsReceived{
			PurchaseOrderID: 42, ProductSKU: "WIDGET-1", QuantityReceived: 25,
		})
		require.NoError(t, err)
		assert.Equal(t, events.OutcomeApplied, outcome)
		assert.Equal(t, 35, store.products["WIDGET-1"].Quantity)

		require.Len(t, store.staged, 1)
		assert.Equal(t, events.InventoryExchange, store.staged[0].exchange)
		updated, ok := store.staged[0].event.(events.StockUpdated)
		require.True(t, ok)
		assert.Equal(t, 10, updated.OldQuantity)
		assert.Equal(t, 35, updated.NewQuantity)
		assert.Equal(t, "goods_received", updated.Reason)
	})

	t.Run("redelivery does not raise stock twice", func(t *testing.T) {
		service, store := newServiceWithStore()
		seedProduct(store, "WIDGET-1", 10, decimal.NewFromInt(5))
		event := &events.GoodsReceived{PurchaseOrderID: 42, ProductSKU: "WIDGET-1", QuantityReceived: 25}

		_, err := service.ApplyGoodsReceived(ctx, event)
		require.NoError(t, err)
		outcome, err := service.ApplyGoodsReceived(ctx, event)
		require.NoError(t, err)

		assert.Equal(t, events.OutcomeAlreadyApplied, outcome)
		assert.Equal(t, 35, store.products["WIDGET-1"].Quantity)
		assert.Len(t, store.staged, 1)
	})

	t.Run("unknown sku is a permanent failure", func(t *testing.T) {
		service, _ := newServiceWithStore()

		_, err := service.ApplyGoodsReceived(ctx, &events.GoodsReceived{
			PurchaseOrderID: 42, ProductSKU: "NO-SUCH-SKU", QuantityReceived: 1,
		})
		require.Error(t, err)
		assert.True(t, mq.IsPermanent(err))
	})
}

func TestApplySalesOrderCreated(t *testing.T) {
	ctx := context.Background()

	order := func(items ...events.SalesOrderItem) *events.SalesOrderCreated {
		return &events.SalesOrderCreated{
			OrderID: 7, OrderNumber: "SO-test", CustomerID: 1, Items: items,
		}
	}

	t.Run("deducts stock and emits cost from cost basis", func(t *testing.T) {
		service, store := newServiceWithStore()
		seedProduct(store, "WIDGET-1", 100, decimal.NewFromInt(4))

		outcome, err := service.ApplySalesOrderCreated(ctx, order(events.SalesOrderItem{
			ProductSKU: "WIDGET-1", Quantity: 3, UnitPrice: decimal.NewFromInt(10),
		}))
		require.NoError(t, err)
		assert.Equal(t, events.OutcomeApplied, outcome)
		assert.Equal(t, 97, store.products["WIDGET-1"].Quantity)

		require.Len(t, store.staged, 2)
		deducted, ok := store.staged[0].event.(events.StockDeducted)
		require.True(t, ok)
		assert.Equal(t, events.InventoryCOGSExchange, store.staged[0].exchange)
		assert.True(t, deducted.UnitCost.Equal(decimal.NewFromInt(4)))
		assert.True(t, deducted.TotalCost.Equal(decimal.NewFromInt(12)))

		updated, ok := store.staged[1].event.(events.StockUpdated)
		require.True(t, ok)
		assert.Equal(t, "sales_order", updated.Reason)
		assert.Equal(t, 97, updated.NewQuantity)
	})

	t.Run("falls back to margin assumption without cost basis", func(t *testing.T) {
		service, store := newServiceWithStore()
		seedProduct(store, "WIDGET-2", 100, decimal.Zero)

		_, err := service.ApplySalesOrderCreated(ctx, order(events.SalesOrderItem{
			ProductSKU: "WIDGET-2", Quantity: 2, UnitPrice: decimal.NewFromInt(10),
		}))
		require.NoError(t, err)

		deducted := store.staged[0].event.(events.StockDeducted)
		assert.True(t, deducted.UnitCost.Equal(decimal.NewFromInt(6)), "60%% of sale price")
		assert.True(t, deducted.TotalCost.Equal(decimal.NewFromInt(12)))
	})

	t.Run("insufficient stock flags shortfall instead of going negative", func(t *testing.T) {
		service, store := newServiceWithStore()
		seedProduct(store, "WIDGET-1", 2, decimal.NewFromInt(4))

		outcome, err := service.ApplySalesOrderCreated(ctx, order(events.SalesOrderItem{
			ProductSKU: "WIDGET-1", Quantity: 5, UnitPrice: decimal.NewFromInt(10),
		}))
		require.NoError(t, err)
		assert.Equal(t, events.OutcomeFlagged, outcome)
		assert.Equal(t, 2, store.products["WIDGET-1"].Quantity, "stock untouched")
		assert.Empty(t, store.staged, "no cost event for unfulfilled line")

		require.Len(t, store.shortfall, 1)
		assert.Equal(t, 5, store.shortfall[0].Requested)
		assert.Equal(t, 2, store.shortfall[0].Available)
	})

	t.Run("redelivery deducts nothing", func(t *testing.T) {
		service, store := newServiceWithStore()
		seedProduct(store, "WIDGET-1", 100, decimal.NewFromInt(4))
		event := order(events.SalesOrderItem{
			ProductSKU: "WIDGET-1", Quantity: 3, UnitPrice: decimal.NewFromInt(10),
		})

		_, err := service.ApplySalesOrderCreated(ctx, event)
		require.NoError(t, err)
		outcome, err := service.ApplySalesOrderCreated(ctx, event)
		require.NoError(t, err)

		assert.Equal(t, events.OutcomeAlreadyApplied, outcome)
		assert.Equal(t, 97, store.products["WIDGET-1"].Quantity)
		assert.Len(t, store.staged, 2)
	})

	t.Run("mixed lines deduct the fulfillable ones", func(t *testing.T) {
		service, store := newServiceWithStore()
		seedProduct(store, "WIDGET-1", 100, decimal.NewFromInt(4))
		seedProduct(store, "WIDGET-2", 1, decimal.NewFromInt(4))

		outcome, err := service.ApplySalesOrderCreated(ctx, order(
			events.SalesOrderItem{ProductSKU: "WIDGET-1", Quantity: 3, UnitPrice: decimal.NewFromInt(10)},
			events.SalesOrderItem{ProductSKU: "WIDGET-2", Quantity: 5, UnitPrice: decimal.NewFromInt(10)},
		))
		require.NoError(t, err)
		assert.Equal(t, events.OutcomeFlagged, outcome)
		assert.Equal(t, 97, store.products["WIDGET-1"].Quantity)
		assert.Equal(t, 1, store.products["WIDGET-2"].Quantity)
		assert.Len(t, store.shortfall, 1)
	})
}
