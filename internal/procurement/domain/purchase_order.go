// Package domain 定义采购服务的实体与存取端口。
package domain

import (
	"context"
	"errors"
	"time"

	"github.com/shopspring/decimal"

	"github.com/wyfcoding/goerp/internal/events"
)

// 采购侧错误
var (
	ErrPONotFound      = errors.New("procurement: purchase order not found")
	ErrPOEmptyLines    = errors.New("procurement: purchase order has no lines")
	ErrAlreadyReceived = errors.New("procurement: purchase order already received")
)

// 采购单状态
const (
	POStatusPending  = "pending"
	POStatusReceived = "received"
)

// PurchaseOrderLine 采购单行
type PurchaseOrderLine struct {
	ID         int
	ProductSKU string
	Quantity   int
	UnitPrice  decimal.Decimal
}

// PurchaseOrder 采购单。收货是整单动作：置为 received 并为每一行
// 产出一条 GoodsReceived 事实。
type PurchaseOrder struct {
	ID          int
	Supplier    string
	OrderNumber string
	Status      string
	OrderDate   time.Time
	ReceivedAt  *time.Time
	Lines       []PurchaseOrderLine
}

// TotalAmount 汇总各行金额
func (po *PurchaseOrder) TotalAmount() decimal.Decimal {
	total := decimal.Zero
	for i := range po.Lines {
		line := &po.Lines[i]
		total = total.Add(line.UnitPrice.Mul(decimal.NewFromInt(int64(line.Quantity))))
	}
	return total
}

// Store 单个事务范围内的采购存取端口
type Store interface {
	// CreatePurchaseOrder 落库采购单及其行
	CreatePurchaseOrder(ctx context.Context, po *PurchaseOrder) error
	// PurchaseOrderByID 查询采购单，locking 为真时加行锁；不存在时返回 (nil, nil)
	PurchaseOrderByID(ctx context.Context, id int, locking bool) (*PurchaseOrder, error)
	// MarkReceived 把采购单置为 received 并记录收货时间
	MarkReceived(ctx context.Context, id int, receivedAt time.Time) error
	// StageEvent 在当前事务中把事件暂存到 outbox
	StageEvent(ctx context.Context, exchange string, event events.DomainEvent) error
}

// TxRunner 在一个本地事务中执行函数
type TxRunner interface {
	InTx(ctx context.Context, fn func(store Store) error) error
}

// Reader 只读查询端口
type Reader interface {
	// FindPurchaseOrder 按 ID 查询采购单；不存在时返回 (nil, nil)
	FindPurchaseOrder(ctx context.Context, id int) (*PurchaseOrder, error)
}
