// Package mysql 提供采购存取端口的 MySQL GORM 实现。
package mysql

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/shopspring/decimal"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	"github.com/wyfcoding/goerp/internal/events"
	"github.com/wyfcoding/goerp/internal/outbox"
	"github.com/wyfcoding/goerp/internal/procurement/domain"
)

// PurchaseOrderModel 采购单表模型
type PurchaseOrderModel struct {
	ID          int    `gorm:"primaryKey;autoIncrement"`
	Supplier    string `gorm:"type:varchar(128);not null"`
	OrderNumber string `gorm:"column:order_number;type:varchar(64);uniqueIndex;not null"`
	Status      string `gorm:"type:varchar(20);not null"`
	OrderDate   time.Time
	ReceivedAt  *time.Time
	CreatedAt   time.Time
}

// TableName 指定表名
func (PurchaseOrderModel) TableName() string { return "purchase_orders" }

// PurchaseOrderLineModel 采购单行表模型
type PurchaseOrderLineModel struct {
	ID              int    `gorm:"primaryKey;autoIncrement"`
	PurchaseOrderID int    `gorm:"column:purchase_order_id;index;not null"`
	ProductSKU      string `gorm:"column:product_sku;type:varchar(64);not null"`
	Quantity        int    `gorm:"not null"`
	UnitPrice       string `gorm:"column:unit_price;type:decimal(18,4);not null"`
}

// TableName 指定表名
func (PurchaseOrderLineModel) TableName() string { return "purchase_order_lines" }

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

// CreatePurchaseOrder 实现 domain.Store.CreatePurchaseOrder
func (s *txStore) CreatePurchaseOrder(ctx context.Context, po *domain.PurchaseOrder) error {
	model := PurchaseOrderModel{
		Supplier:    po.Supplier,
		OrderNumber: po.OrderNumber,
		Status:      po.Status,
		OrderDate:   po.OrderDate,
	}
	if err := s.tx.WithContext(ctx).Create(&model).Error; err != nil {
		return fmt.Errorf("create purchase order %q: %w", po.OrderNumber, err)
	}
	po.ID = model.ID

	lines := make([]PurchaseOrderLineModel, 0, len(po.Lines))
	for _, line := range po.Lines {
		lines = append(lines, PurchaseOrderLineModel{
			PurchaseOrderID: po.ID,
			ProductSKU:      line.ProductSKU,
			Quantity:        line.Quantity,
			UnitPrice:       line.UnitPrice.String(),
		})
	}
	if err := s.tx.WithContext(ctx).Create(&lines).Error; err != nil {
		return fmt.Errorf("create purchase order lines for %q: %w", po.OrderNumber, err)
	}
	return nil
}

// PurchaseOrderByID 实现 domain.Store.PurchaseOrderByID
func (s *txStore) PurchaseOrderByID(ctx context.Context, id int, locking bool) (*domain.PurchaseOrder, error) {
	query := s.tx.WithContext(ctx)
	if locking {
		query = query.Clauses(clause.Locking{Strength: "UPDATE"})
	}

	var model PurchaseOrderModel
	err := query.Where("id = ?", id).First(&model).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, nil
		}
		return nil, fmt.Errorf("query purchase order %d: %w", id, err)
	}

	var lineModels []PurchaseOrderLineModel
	if err := s.tx.WithContext(ctx).Where("purchase_order_id = ?", id).Find(&lineModels).Error; err != nil {
		return nil, fmt.Errorf("query purchase order lines %d: %w", id, err)
	}
	return toPurchaseOrder(&model, lineModels)
}

// MarkReceived 实现 domain.Store.MarkReceived
func (s *txStore) MarkReceived(ctx context.Context, id int, receivedAt time.Time) error {
	err := s.tx.WithContext(ctx).Model(&PurchaseOrderModel{}).
		Where("id = ?", id).
		Updates(map[string]any{
			"status":      domain.POStatusReceived,
			"received_at": receivedAt,
		}).Error
	if err != nil {
		return fmt.Errorf("mark purchase order %d received: %w", id, err)
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

// FindPurchaseOrder 实现 domain.Reader.FindPurchaseOrder
func (r *Reader) FindPurchaseOrder(ctx context.Context, id int) (*domain.PurchaseOrder, error) {
	var model PurchaseOrderModel
	err := r.db.WithContext(ctx).Where("id = ?", id).First(&model).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, nil
		}
		return nil, fmt.Errorf("query purchase order %d: %w", id, err)
	}

	var lineModels []PurchaseOrderLineModel
	if err := r.db.WithContext(ctx).Where("purchase_order_id = ?", id).Find(&lineModels).Error; err != nil {
		return nil, fmt.Errorf("query purchase order lines %d: %w", id, err)
	}
	return toPurchaseOrder(&model, lineModels)
}

// toPurchaseOrder 表模型转领域对象
func toPurchaseOrder(model *PurchaseOrderModel, lineModels []PurchaseOrderLineModel) (*domain.PurchaseOrder, error) {
	po := &domain.PurchaseOrder{
		ID:          model.ID,
		Supplier:    model.Supplier,
		OrderNumber: model.OrderNumber,
		Status:      model.Status,
		OrderDate:   model.OrderDate,
		ReceivedAt:  model.ReceivedAt,
	}
	for i := range lineModels {
		m := &lineModels[i]
		price, err := decimal.NewFromString(m.UnitPrice)
		if err != nil {
			return nil, fmt.Errorf("parse unit price for purchase order line %d: %w", m.ID, err)
		}
		po.Lines = append(po.Lines, domain.PurchaseOrderLine{
			ID:         m.ID,
			ProductSKU: m.ProductSKU,
			Quantity:   m.Quantity,
			UnitPrice:  price,
		})
	}
	return po, nil
}
