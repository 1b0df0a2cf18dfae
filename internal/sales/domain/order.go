// Package domain 定义销售服务的实体与存取端口。
package domain

import (
	"context"
	"errors"
	"time"

	"github.com/shopspring/decimal"

	"github.com/wyfcoding/goerp/internal/events"
)

// ErrEmptyOrder 订单没有任何行
var ErrEmptyOrder = errors.New("sales: order has no items")

// 订单状态
const (
	OrderStatusCreated = "created"
)

// OrderItem 订单行
type OrderItem struct {
	ID         int
	ProductSKU string
	Quantity   int
	UnitPrice  decimal.Decimal
}

// Subtotal 行小计
func (i *OrderItem) Subtotal() decimal.Decimal {
	return i.UnitPrice.Mul(decimal.NewFromInt(int64(i.Quantity)))
}

// Order 销售订单。创建即本地提交；库存扣减与成本入账经事件异步完成。
type Order struct {
	ID          int
	CustomerID  int
	OrderNumber string
	TotalAmount decimal.Decimal
	Status      string
	OrderDate   time.Time
	Items       []OrderItem
}

// Total 汇总各行小计
func (o *Order) Total() decimal.Decimal {
	total := decimal.Zero
	for i := range o.Items {
		total = total.Add(o.Items[i].Subtotal())
	}
	return total
}

// Store 单个事务范围内的销售存取端口
type Store interface {
	// CreateOrder 落库订单及其行
	CreateOrder(ctx context.Context, o *Order) error
	// StageEvent 在当前事务中把事件暂存到 outbox
	StageEvent(ctx context.Context, exchange string, event events.DomainEvent) error
}

// TxRunner 在一个本地事务中执行函数
type TxRunner interface {
	InTx(ctx context.Context, fn func(store Store) error) error
}

// Reader 只读查询端口
type Reader interface {
	// FindOrder 按 ID 查询订单；不存在时返回 (nil, nil)
	FindOrder(ctx context.Context, id int) (*Order, error)
}
