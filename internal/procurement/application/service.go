// Package application 实现采购服务的命令与查询。
package application

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"github.com/wyfcoding/goerp/internal/events"
	"github.com/wyfcoding/goerp/internal/procurement/domain"
	"github.com/wyfcoding/goerp/pkg/logger"
)

// ProcurementService 采购应用服务
type ProcurementService struct {
	tx     domain.TxRunner
	reader domain.Reader
}

// NewProcurementService 创建采购应用服务
func NewProcurementService(tx domain.TxRunner, reader domain.Reader) *ProcurementService {
	return &ProcurementService{tx: tx, reader: reader}
}

// CreatePurchaseOrderCommand 新建采购单命令
type CreatePurchaseOrderCommand struct {
	Supplier string
	Lines    []CreatePurchaseOrderLine
}

// CreatePurchaseOrderLine 新建采购单行
type CreatePurchaseOrderLine struct {
	ProductSKU string
	Quantity   int
	UnitPrice  decimal.Decimal
}

// CreatePurchaseOrder 创建采购单，初始状态 pending。
// 创建本身不产生事件，事件在收货时产出。
func (s *ProcurementService) CreatePurchaseOrder(ctx context.Context, cmd CreatePurchaseOrderCommand) (*domain.PurchaseOrder, error) {
	if len(cmd.Lines) == 0 {
		return nil, domain.ErrPOEmptyLines
	}
	for _, line := range cmd.Lines {
		if line.Quantity <= 0 {
			return nil, fmt.Errorf("procurement: invalid quantity %d for sku %q", line.Quantity, line.ProductSKU)
		}
		if line.UnitPrice.IsNegative() {
			return nil, fmt.Errorf("procurement: negative unit price for sku %q", line.ProductSKU)
		}
	}

	po := &domain.PurchaseOrder{
		Supplier:    cmd.Supplier,
		OrderNumber: "PO-" + uuid.NewString()[:8],
		Status:      domain.POStatusPending,
		OrderDate:   time.Now(),
	}
	for _, line := range cmd.Lines {
		po.Lines = append(po.Lines, domain.PurchaseOrderLine{
			ProductSKU: line.ProductSKU,
			Quantity:   line.Quantity,
			UnitPrice:  line.UnitPrice,
		})
	}

	err := s.tx.InTx(ctx, func(store domain.Store) error {
		return store.CreatePurchaseOrder(ctx, po)
	})
	if err != nil {
		return nil, err
	}
	return po, nil
}

// ReceivePurchaseOrder 整单收货：置为 received，并在同一事务中为每一行
// 暂存一条 GoodsReceived。重复收货返回 ErrAlreadyReceived，不再次产出事件。
func (s *ProcurementService) ReceivePurchaseOrder(ctx context.Context, id int) (*domain.PurchaseOrder, error) {
	var received *domain.PurchaseOrder
	err := s.tx.InTx(ctx, func(store domain.Store) error {
		po, err := store.PurchaseOrderByID(ctx, id, true)
		if err != nil {
			return err
		}
		if po == nil {
			return domain.ErrPONotFound
		}
		if po.Status == domain.POStatusReceived {
			return domain.ErrAlreadyReceived
		}

		now := time.Now()
		if err := store.MarkReceived(ctx, po.ID, now); err != nil {
			return err
		}

		for _, line := range po.Lines {
			event := events.GoodsReceived{
				PurchaseOrderID:  po.ID,
				ProductSKU:       line.ProductSKU,
				QuantityReceived: line.Quantity,
			}
			if err := store.StageEvent(ctx, events.ProcurementExchange, event); err != nil {
				return err
			}
		}

		po.Status = domain.POStatusReceived
		po.ReceivedAt = &now
		received = po
		return nil
	})
	if err != nil {
		return nil, err
	}

	logger.Info(ctx, "purchase order received",
		"purchase_order_id", received.ID,
		"order_number", received.OrderNumber,
		"lines", len(received.Lines))
	return received, nil
}

// GetPurchaseOrder 按 ID 查询采购单
func (s *ProcurementService) GetPurchaseOrder(ctx context.Context, id int) (*domain.PurchaseOrder, error) {
	return s.reader.FindPurchaseOrder(ctx, id)
}
