// Package application 实现会计服务的事件效果应用与查询。
package application

import (
	"context"
	"fmt"
	"time"

	"github.com/shopspring/decimal"

	"github.com/wyfcoding/goerp/internal/accounting/domain"
	"github.com/wyfcoding/goerp/internal/events"
	"github.com/wyfcoding/goerp/pkg/logger"
)

// AccountingService 会计应用服务
type AccountingService struct {
	tx     domain.TxRunner
	reader domain.Reader
}

// NewAccountingService 创建会计应用服务
func NewAccountingService(tx domain.TxRunner, reader domain.Reader) *AccountingService {
	return &AccountingService{tx: tx, reader: reader}
}

// ApplyStockDeducted 为销售扣减入销货成本分录：借 COGS，贷存货资产，
// 金额取事件所带总成本。重复投递时分录已存在，不会二次入账。
func (s *AccountingService) ApplyStockDeducted(ctx context.Context, e *events.StockDeducted) (events.Outcome, error) {
	// 成本一致性仅校验不修正，事件是唯一事实来源
	expected := e.UnitCost.Mul(decimal.NewFromInt(int64(e.QuantityDeducted)))
	if !expected.Equal(e.TotalCost) {
		logger.Warn(ctx, "stock deducted cost mismatch",
			"order_number", e.OrderNumber, "sku", e.ProductSKU,
			"unit_cost", e.UnitCost.String(), "quantity", e.QuantityDeducted,
			"total_cost", e.TotalCost.String())
	}

	entry := &domain.JournalEntry{
		SourceType:    domain.SourceCOGS,
		SourceRef:     fmt.Sprintf("%s/%s", e.OrderNumber, e.ProductSKU),
		DebitAccount:  domain.AccountCOGS,
		CreditAccount: domain.AccountInventoryAsset,
		Amount:        e.TotalCost,
		Memo:          fmt.Sprintf("COGS for %d x %s (order %s)", e.QuantityDeducted, e.ProductSKU, e.OrderNumber),
		CreatedAt:     time.Now(),
	}

	return s.post(ctx, entry)
}

// ApplyGoodsReceived 为采购入库入应付分录：借存货资产，贷应付账款。
// 事件不携带价格，金额按本服务记录的标准成本计价；缺少成本记录时以
// 零金额入账并打 needs_valuation 标记，留给人工补齐而不是静默丢弃。
func (s *AccountingService) ApplyGoodsReceived(ctx context.Context, e *events.GoodsReceived) (events.Outcome, error) {
	var entry *domain.JournalEntry
	flagged := false

	err := s.tx.InTx(ctx, func(store domain.Store) error {
		cost, err := store.ItemCostBySKU(ctx, e.ProductSKU)
		if err != nil {
			return err
		}

		amount := decimal.Zero
		flag := ""
		if cost != nil {
			amount = cost.UnitCost.Mul(decimal.NewFromInt(int64(e.QuantityReceived)))
		} else {
			flag = domain.FlagNeedsValuation
			flagged = true
		}

		entry = &domain.JournalEntry{
			SourceType:    domain.SourceGoodsReceived,
			SourceRef:     fmt.Sprintf("%d/%s", e.PurchaseOrderID, e.ProductSKU),
			DebitAccount:  domain.AccountInventoryAsset,
			CreditAccount: domain.AccountPayable,
			Amount:        amount,
			Memo:          fmt.Sprintf("AP for %d x %s (PO %d)", e.QuantityReceived, e.ProductSKU, e.PurchaseOrderID),
			Flag:          flag,
			CreatedAt:     time.Now(),
		}

		inserted, err := store.InsertJournalEntry(ctx, entry)
		if err != nil {
			return err
		}
		if !inserted {
			flagged = false
			entry = nil
		}
		return nil
	})
	if err != nil {
		return 0, err
	}

	switch {
	case entry == nil:
		logger.Info(ctx, "goods received already posted",
			"purchase_order_id", e.PurchaseOrderID, "sku", e.ProductSKU)
		return events.OutcomeAlreadyApplied, nil
	case flagged:
		logger.Warn(ctx, "journal entry posted without valuation",
			"purchase_order_id", e.PurchaseOrderID, "sku", e.ProductSKU)
		return events.OutcomeFlagged, nil
	default:
		return events.OutcomeApplied, nil
	}
}

// post 幂等入账单条分录
func (s *AccountingService) post(ctx context.Context, entry *domain.JournalEntry) (events.Outcome, error) {
	inserted := false
	err := s.tx.InTx(ctx, func(store domain.Store) error {
		var err error
		inserted, err = store.InsertJournalEntry(ctx, entry)
		return err
	})
	if err != nil {
		return 0, err
	}
	if !inserted {
		logger.Info(ctx, "journal entry already posted",
			"source_type", entry.SourceType, "source_ref", entry.SourceRef)
		return events.OutcomeAlreadyApplied, nil
	}
	return events.OutcomeApplied, nil
}

// SetItemCost 记录或更新物料标准成本
func (s *AccountingService) SetItemCost(ctx context.Context, sku string, unitCost decimal.Decimal) error {
	if !unitCost.IsPositive() {
		return fmt.Errorf("accounting: unit cost must be positive, got %s", unitCost)
	}
	return s.tx.InTx(ctx, func(store domain.Store) error {
		return store.UpsertItemCost(ctx, &domain.ItemCost{SKU: sku, UnitCost: unitCost})
	})
}

// ListJournalEntries 列出分录
func (s *AccountingService) ListJournalEntries(ctx context.Context, limit int) ([]*domain.JournalEntry, error) {
	if limit <= 0 || limit > 500 {
		limit = 100
	}
	return s.reader.ListJournalEntries(ctx, limit)
}
