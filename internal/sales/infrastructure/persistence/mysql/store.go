// Package mysql 提供销售存取端口的 MySQL GORM 实现。
package mysql

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/shopspring/decimal"
	"gorm.io/gorm"

	"github.com/wyfcoding/goerp/internal/events"
	"github.com/wyfcoding/goerp/internal/outbox"
	"github.com/wyfcoding/goerp/internal/sales/domain"
)

// OrderModel 订单表模型
type OrderModel struct {
	ID          int    `gorm:"primaryKey;autoIncrement"`
	CustomerID  int    `gorm:"column:customer_id;index;not null"`
	OrderNumber string `gorm:"column:order_number;type:varchar(64);uniqueIndex;not null"`
	TotalAmount string `gorm:"column:total_amount;type:decimal(18,4);not null"`
	Status      string `gorm:"type:varchar(20);not null"`
	OrderDate   time.Time
	CreatedAt   time.Time
}

// TableName 指定表名
func (OrderModel) TableName() string { return "sales_orders" }

// OrderItemModel 订单行表模型
type OrderItemModel struct {
	ID         int    `gorm:"primaryKey;autoIncrement"`
	OrderID    int    `gorm:"column:order_id;index;not null"`
	ProductSKU string `gorm:"column:product_sku;type:varchar(64);not null"`
	Quantity   int    `gorm:"not null"`
	UnitPrice  string `gorm:"column:unit_price;type:decimal(18,4);not null"`
}

// TableName 指定表名
func (OrderItemModel) TableName() string { return "sales_order_items" }

// TxRunner domain.TxRunner 的 GORM 实现
type TxRunner struct {
	db     *gorm.DB
	outbox *outbox.Manager
}

// NewTxRunner 创建事务执行器
func NewTxRunner(db *gorm.DB, outboxMgr *outbox.Manager) *TxRunner {
	return &TxRunner{db: db, outbox: outboxMgr}
}

// InTx 实现 domain.TxRunner.InTx
func (r *TxRunner) InTx(ctx context.Context, fn func(store domain.Store) error) error {
	return r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		return fn(&txStore{tx: tx, outbox: r.outbox})
	})
}

// txStore 绑定到单个事务的 domain.Store 实现
type txStore struct {
	tx     *gorm.DB
	outbox *outbox.Manager
}

// CreateOrder 实现 domain.Store.CreateOrder
func (s *txStore) CreateOrder(ctx context.Context, o *domain.Order) error {
	model := OrderModel{
		CustomerID:  o.CustomerID,
		OrderNumber: o.OrderNumber,
		TotalAmount: o.TotalAmount.String(),
		Status:      o.Status,
		OrderDate:   o.OrderDate,
	}
	if err := s.tx.WithContext(ctx).Create(&model).Error; err != nil {
		return fmt.Errorf("create order %q: %w", o.OrderNumber, err)
	}
	o.ID = model.ID

	items := make([]OrderItemModel, 0, len(o.Items))
	for _, item := range o.Items {
		items = append(items, OrderItemModel{
			OrderID:    o.ID,
			ProductSKU: item.ProductSKU,
			Quantity:   item.Quantity,
			UnitPrice:  item.UnitPrice.String(),
		})
	}
	if err := s.tx.WithContext(ctx).Create(&items).Error; err != nil {
		return fmt.Errorf("create order items for %q: %w", o.OrderNumber, err)
	}
	return nil
}

// StageEvent 实现 domain.Store.StageEvent
func (s *txStore) StageEvent(ctx context.Context, exchange string, event events.DomainEvent) error {
	return s.outbox.PublishInTx(ctx, s.tx, exchange, event)
}

// Reader domain.Reader 的 GORM 实现
type Reader struct {
	db *gorm.DB
}

// NewReader 创建只读查询器
func NewReader(db *gorm.DB) *Reader {
	return &Reader{db: db}
}

// FindOrder 实现 domain.Reader.FindOrder
func (r *Reader) FindOrder(ctx context.Context, id int) (*domain.Order, error) {
	var model OrderModel
	err := r.db.WithContext(ctx).Where("id = ?", id).First(&model).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, nil
		}
		return nil, fmt.Errorf("query order %d: %w", id, err)
	}

	var itemModels []OrderItemModel
	if err := r.db.WithContext(ctx).Where("order_id = ?", id).Find(&itemModels).Error; err != nil {
		return nil, fmt.Errorf("query order items %d: %w", id, err)
	}

	total, err := decimal.NewFromString(model.TotalAmount)
	if err != nil {
		return nil, fmt.Errorf("parse order total %d: %w", id, err)
	}

	order := &domain.Order{
		ID:          model.ID,
		CustomerID:  model.CustomerID,
		OrderNumber: model.OrderNumber,
		TotalAmount: total,
		Status:      model.Status,
		OrderDate:   model.OrderDate,
	}
	for i := range itemModels {
		m := &itemModels[i]
		price, err := decimal.NewFromString(m.UnitPrice)
		if err != nil {
			return nil, fmt.Errorf("parse unit price for order item %d: %w", m.ID, err)
		}
		order.Items = append(order.Items, domain.OrderItem{
			ID:         m.ID,
			ProductSKU: m.ProductSKU,
			Quantity:   m.Quantity,
			UnitPrice:  price,
		})
	}
	return order, nil
}
