// Package application 实现库存服务的命令与事件效果应用。
package application

import (
	"context"
	"fmt"
	"time"

	"github.com/shopspring/decimal"

	"github.com/wyfcoding/goerp/internal/events"
	"github.com/wyfcoding/goerp/internal/inventory/domain"
	"github.com/wyfcoding/goerp/pkg/logger"
	"github.com/wyfcoding/goerp/pkg/mq"
)

// InventoryService 库存应用服务
type InventoryService struct {
	tx     domain.TxRunner
	reader domain.Reader
}

// NewInventoryService 创建库存应用服务
func NewInventoryService(tx domain.TxRunner, reader domain.Reader) *InventoryService {
	return &InventoryService{tx: tx, reader: reader}
}

// ApplyGoodsReceived 应用采购入库：插入入库记录（幂等标记）并按增量
// 抬高库存，再广播 StockUpdated。重复投递时入库记录已存在，库存不会
// 被二次抬高。
func (s *InventoryService) ApplyGoodsReceived(ctx context.Context, e *events.GoodsReceived) (events.Outcome, error) {
	outcome := events.OutcomeApplied

	err := s.tx.InTx(ctx, func(store domain.Store) error {
		product, err := store.ProductBySKU(ctx, e.ProductSKU)
		if err != nil {
			return err
		}
		if product == nil {
			return mq.Permanent(fmt.Errorf("%w: sku %q", domain.ErrProductNotFound, e.ProductSKU))
		}

		inserted, err := store.InsertGoodsReceipt(ctx, &domain.GoodsReceipt{
			PurchaseOrderID: e.PurchaseOrderID,
			SKU:             e.ProductSKU,
			Quantity:        e.QuantityReceived,
			ReceivedAt:      time.Now(),
		})
		if err != nil {
			return err
		}
		if !inserted {
			outcome = events.OutcomeAlreadyApplied
			return nil
		}

		if err := store.AdjustStock(ctx, product.ID, e.QuantityReceived); err != nil {
			return err
		}

		return store.StageEvent(ctx, events.InventoryExchange, events.StockUpdated{
			ProductID:   product.ID,
			SKU:         product.SKU,
			OldQuantity: product.Quantity,
			NewQuantity: product.Quantity + e.QuantityReceived,
			Reason:      "goods_received",
		})
	})
	if err != nil {
		return 0, err
	}

	if outcome == events.OutcomeAlreadyApplied {
		logger.Info(ctx, "goods receipt already applied",
			"purchase_order_id", e.PurchaseOrderID, "sku", e.ProductSKU)
	}
	return outcome, nil
}

// ApplySalesOrderCreated 应用销售订单：逐行校验库存、按增量扣减、
// 计算成本并发出 StockDeducted 供会计入账。每一行以 (order_id, sku)
// 为幂等锚，重复投递不会二次扣减。库存不足的行记录缺货而不是把库存
// 扣成负数。
func (s *InventoryService) ApplySalesOrderCreated(ctx context.Context, e *events.SalesOrderCreated) (events.Outcome, error) {
	applied := false
	flagged := false

	err := s.tx.InTx(ctx, func(store domain.Store) error {
		for _, item := range e.Items {
			product, err := store.ProductBySKU(ctx, item.ProductSKU)
			if err != nil {
				return err
			}
			if product == nil {
				return mq.Permanent(fmt.Errorf("%w: sku %q", domain.ErrProductNotFound, item.ProductSKU))
			}

			if product.Quantity < item.Quantity {
				handled, err := s.recordShortfall(ctx, store, e, item, product)
				if err != nil {
					return err
				}
				if handled {
					flagged = true
				}
				continue
			}

			unitCost := product.UnitCostOr(item.UnitPrice)
			totalCost := unitCost.Mul(decimal.NewFromInt(int64(item.Quantity)))

			inserted, err := store.InsertStockMovement(ctx, &domain.StockMovement{
				OrderID:     e.OrderID,
				OrderNumber: e.OrderNumber,
				SKU:         item.ProductSKU,
				Quantity:    item.Quantity,
				UnitCost:    unitCost,
				TotalCost:   totalCost,
				Status:      domain.MovementApplied,
				CreatedAt:   time.Now(),
			})
			if err != nil {
				return err
			}
			if !inserted {
				continue
			}
			applied = true

			if err := store.AdjustStock(ctx, product.ID, -item.Quantity); err != nil {
				return err
			}

			if err := store.StageEvent(ctx, events.InventoryCOGSExchange, events.StockDeducted{
				OrderID:          e.OrderID,
				OrderNumber:      e.OrderNumber,
				ProductSKU:       product.SKU,
				ProductName:      product.Name,
				QuantityDeducted: item.Quantity,
				UnitCost:         unitCost,
				TotalCost:        totalCost,
			}); err != nil {
				return err
			}

			if err := store.StageEvent(ctx, events.InventoryExchange, events.StockUpdated{
				ProductID:   product.ID,
				SKU:         product.SKU,
				OldQuantity: product.Quantity,
				NewQuantity: product.Quantity - item.Quantity,
				Reason:      "sales_order",
			}); err != nil {
				return err
			}
		}
		return nil
	})
	if err != nil {
		return 0, err
	}

	switch {
	case flagged:
		return events.OutcomeFlagged, nil
	case applied:
		return events.OutcomeApplied, nil
	default:
		logger.Info(ctx, "sales order deduction already applied",
			"order_id", e.OrderID, "order_number", e.OrderNumber)
		return events.OutcomeAlreadyApplied, nil
	}
}

// recordShortfall 把缺货行落为 shortfall 状态的流水与缺货记录。
// 返回 false 表示该行此前已处理过（重复投递）。
func (s *InventoryService) recordShortfall(ctx context.Context, store domain.Store, e *events.SalesOrderCreated, item events.SalesOrderItem, product *domain.Product) (bool, error) {
	inserted, err := store.InsertStockMovement(ctx, &domain.StockMovement{
		OrderID:     e.OrderID,
		OrderNumber: e.OrderNumber,
		SKU:         item.ProductSKU,
		Quantity:    item.Quantity,
		UnitCost:    decimal.Zero,
		TotalCost:   decimal.Zero,
		Status:      domain.MovementShortfall,
		CreatedAt:   time.Now(),
	})
	if err != nil {
		return false, err
	}
	if !inserted {
		return false, nil
	}

	if err := store.InsertShortfall(ctx, &domain.Shortfall{
		OrderID:   e.OrderID,
		SKU:       item.ProductSKU,
		Requested: item.Quantity,
		Available: product.Quantity,
		CreatedAt: time.Now(),
	}); err != nil {
		return false, err
	}

	logger.Warn(ctx, "insufficient stock for order line",
		"order_id", e.OrderID, "order_number", e.OrderNumber,
		"sku", item.ProductSKU, "requested", item.Quantity, "available", product.Quantity)
	return true, nil
}
