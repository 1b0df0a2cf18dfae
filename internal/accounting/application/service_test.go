package application

import (
	"context"
	"testing"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/wyfcoding/goerp/internal/accounting/domain"
	"github.com/wyfcoding/goerp/internal/events"
)

// memoryStore 内存版 Store，模拟 (source_type, source_ref) 唯一约束
type memoryStore struct {
	entries []*domain.JournalEntry
	posted  map[string]bool
	costs   map[string]decimal.Decimal
}

func newMemoryStore() *memoryStore {
	return &memoryStore{
		posted: make(map[string]bool),
		costs:  make(map[string]decimal.Decimal),
	}
}

func (s *memoryStore) InsertJournalEntry(_ context.Context, e *domain.JournalEntry) (bool, error) {
	key := e.SourceType + "|" + e.SourceRef
	if s.posted[key] {
		return false, nil
	}
	s.posted[key] = true
	e.ID = len(s.entries) + 1
	s.entries = append(s.entries, e)
	return true, nil
}

func (s *memoryStore) ItemCostBySKU(_ context.Context, sku string) (*domain.ItemCost, error) {
	cost, ok := s.costs[sku]
	if !ok {
		return nil, nil
	}
	return &domain.ItemCost{SKU: sku, UnitCost: cost}, nil
}

func (s *memoryStore) UpsertItemCost(_ context.Context, c *domain.ItemCost) error {
	s.costs[c.SKU] = c.UnitCost
	return nil
}

type memoryTxRunner struct {
	store *memoryStore
}

func (r *memoryTxRunner) InTx(ctx context.Context, fn func(store domain.Store) error) error {
	return fn(r.store)
}

func newServiceWithStore() (*AccountingService, *memoryStore) {
	store := newMemoryStore()
	return NewAccountingService(&memoryTxRunner{store: store}, nil), store
}

func TestApplyStockDeducted(t *testing.T) {
	ctx := context.Background()
	event := &events.StockDeducted{
		OrderID:          7,
		OrderNumber:      "SO-test",
		ProductSKU:       "WIDGET-1",
		QuantityDeducted: 3,
		UnitCost:         decimal.NewFromInt(4),
		TotalCost:        decimal.NewFromInt(12),
	}

	t.Run("posts debit COGS credit inventory", func(t *testing.T) {
		service, store := newServiceWithStore()

		outcome, err := service.ApplyStockDeducted(ctx, event)
		require.NoError(t, err)
		assert.Equal(t, events.OutcomeApplied, outcome)

		require.Len(t, store.entries, 1)
		entry := store.entries[0]
		assert.Equal(t, domain.AccountCOGS, entry.DebitAccount)
		assert.Equal(t, domain.AccountInventoryAsset, entry.CreditAccount)
		assert.True(t, entry.Amount.Equal(decimal.NewFromInt(12)))
		assert.Equal(t, domain.SourceCOGS, entry.SourceType)
		assert.Equal(t, "SO-test/WIDGET-1", entry.SourceRef)
	})

	t.Run("redelivery posts nothing", func(t *testing.T) {
		service, store := newServiceWithStore()

		_, err := service.ApplyStockDeducted(ctx, event)
		require.NoError(t, err)
		outcome, err := service.ApplyStockDeducted(ctx, event)
		require.NoError(t, err)

		assert.Equal(t, events.OutcomeAlreadyApplied, outcome)
		assert.Len(t, store.entries, 1)
	})
}

func TestApplyGoodsReceived(t *testing.T) {
	ctx := context.Background()
	event := &events.GoodsReceived{
		PurchaseOrderID:  42,
		ProductSKU:       "WIDGET-1",
		QuantityReceived: 10,
	}

	t.Run("values entry from recorded item cost", func(t *testing.T) {
		service, store := newServiceWithStore()
		require.NoError(t, service.SetItemCost(ctx, "WIDGET-1", decimal.NewFromInt(5)))

		outcome, err := service.ApplyGoodsReceived(ctx, event)
		require.NoError(t, err)
		assert.Equal(t, events.OutcomeApplied, outcome)

		require.Len(t, store.entries, 1)
		entry := store.entries[0]
		assert.Equal(t, domain.AccountInventoryAsset, entry.DebitAccount)
		assert.Equal(t, domain.AccountPayable, entry.CreditAccount)
		assert.True(t, entry.Amount.Equal(decimal.NewFromInt(50)))
		assert.Empty(t, entry.Flag)
	})

	t.Run("missing cost posts zero amount with valuation flag", func(t *testing.T) {
		service, store := newServiceWithStore()

		outcome, err := service.ApplyGoodsReceived(ctx, event)
		require.NoError(t, err)
		assert.Equal(t, events.OutcomeFlagged, outcome)

		require.Len(t, store.entries, 1)
		entry := store.entries[0]
		assert.True(t, entry.Amount.IsZero())
		assert.Equal(t, domain.FlagNeedsValuation, entry.Flag)
	})

	t.Run("redelivery posts nothing", func(t *testing.T) {
		service, store := newServiceWithStore()
		require.NoError(t, service.SetItemCost(ctx, "WIDGET-1", decimal.NewFromInt(5)))

		_, err := service.ApplyGoodsReceived(ctx, event)
		require.NoError(t, err)
		outcome, err := service.ApplyGoodsReceived(ctx, event)
		require.NoError(t, err)

		assert.Equal(t, events.OutcomeAlreadyApplied, outcome)
		assert.Len(t, store.entries, 1)
	})
}

func TestSetItemCost(t *testing.T) {
	service, _ := newServiceWithStore()

	err := service.SetItemCost(context.Background(), "WIDGET-1", decimal.Zero)
	assert.Error(t, err, "non-positive cost rejected")
}
