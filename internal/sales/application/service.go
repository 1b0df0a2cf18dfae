// Package application 实现销售服务的命令与查询。
package application

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"github.com/wyfcoding/goerp/internal/events"
	"github.com/wyfcoding/goerp/internal/sales/domain"
)

// SalesService 销售应用服务
type SalesService struct {
	tx     domain.TxRunner
	reader domain.Reader
}

// NewSalesService 创建销售应用服务
func NewSalesService(tx domain.TxRunner, reader domain.Reader) *SalesService {
	return &SalesService{tx: tx, reader: reader}
}

// CreateOrderCommand 新建订单命令
type CreateOrderCommand struct {
	CustomerID int
	Items      []CreateOrderItem
}

// CreateOrderItem 新建订单行
type CreateOrderItem struct {
	ProductSKU string
	Quantity   int
	UnitPrice  decimal.Decimal
}

// CreateOrder 创建销售订单，并在同一事务中暂存 SalesOrderCreated。
// 事务提交后订单与事件同时存在，中继随后把事件送上总线。
func (s *SalesService) CreateOrder(ctx context.Context, cmd CreateOrderCommand) (*domain.Order, error) {
	if len(cmd.Items) == 0 {
		return nil, domain.ErrEmptyOrder
	}
	for _, item := range cmd.Items {
		if item.Quantity <= 0 {
			return nil, fmt.Errorf("sales: invalid quantity %d for sku %q", item.Quantity, item.ProductSKU)
		}
		if item.UnitPrice.IsNegative() {
			return nil, fmt.Errorf("sales: negative unit price for sku %q", item.ProductSKU)
		}
	}

	order := &domain.Order{
		CustomerID:  cmd.CustomerID,
		OrderNumber: newOrderNumber(),
		Status:      domain.OrderStatusCreated,
		OrderDate:   time.Now(),
	}
	for _, item := range cmd.Items {
		order.Items = append(order.Items, domain.OrderItem{
			ProductSKU: item.ProductSKU,
			Quantity:   item.Quantity,
			UnitPrice:  item.UnitPrice,
		})
	}
	order.TotalAmount = order.Total()

	err := s.tx.InTx(ctx, func(store domain.Store) error {
		if err := store.CreateOrder(ctx, order); err != nil {
			return err
		}

		items := make([]events.SalesOrderItem, 0, len(order.Items))
		for _, item := range order.Items {
			items = append(items, events.SalesOrderItem{
				ProductSKU: item.ProductSKU,
				Quantity:   item.Quantity,
				UnitPrice:  item.UnitPrice,
			})
		}

		return store.StageEvent(ctx, events.SalesExchange, events.SalesOrderCreated{
			OrderID:     order.ID,
			CustomerID:  order.CustomerID,
			OrderNumber: order.OrderNumber,
			TotalAmount: order.TotalAmount,
			OrderDate:   order.OrderDate,
			Items:       items,
		})
	})
	if err != nil {
		return nil, err
	}
	return order, nil
}

// GetOrder 按 ID 查询订单
func (s *SalesService) GetOrder(ctx context.Context, id int) (*domain.Order, error) {
	return s.reader.FindOrder(ctx, id)
}

// newOrderNumber 生成订单号
func newOrderNumber() string {
	return "SO-" + uuid.NewString()[:8]
}
