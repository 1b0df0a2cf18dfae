// Package mysql 提供库存存取端口的 MySQL GORM 实现。
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
	"github.com/wyfcoding/goerp/internal/inventory/domain"
	"github.com/wyfcoding/goerp/internal/outbox"
)

// ProductModel 商品表模型
type ProductModel struct {
	ID        int    `gorm:"primaryKey;autoIncrement"`
	SKU       string `gorm:"column:sku;type:varchar(64);uniqueIndex;not null"`
	Name      string `gorm:"type:varchar(200);not null"`
	Quantity  int    `gorm:"not null;default:0"`
	CostBasis string `gorm:"column:cost_basis;type:decimal(18,4);not null;default:0"`
	CreatedAt time.Time
	UpdatedAt time.Time
}

// TableName 指定表名
func (ProductModel) TableName() string { return "products" }

// GoodsReceiptModel 入库记录表模型。(purchase_order_id, sku) 唯一约束
// 是幂等层的根基：并发重复投递由约束裁决，而不是先查后插。
type GoodsReceiptModel struct {
	ID              int    `gorm:"primaryKey;autoIncrement"`
	PurchaseOrderID int    `gorm:"column:purchase_order_id;uniqueIndex:uk_receipt_po_sku;not null"`
	SKU             string `gorm:"column:sku;type:varchar(64);uniqueIndex:uk_receipt_po_sku;not null"`
	Quantity        int    `gorm:"not null"`
	ReceivedAt      time.Time
}

// TableName 指定表名
func (GoodsReceiptModel) TableName() string { return "goods_receipts" }

// StockMovementModel 销售扣减流水表模型，(order_id, sku) 唯一
type StockMovementModel struct {
	ID          int    `gorm:"primaryKey;autoIncrement"`
	OrderID     int    `gorm:"column:order_id;uniqueIndex:uk_movement_order_sku;not null"`
	SKU         string `gorm:"column:sku;type:varchar(64);uniqueIndex:uk_movement_order_sku;not null"`
	OrderNumber string `gorm:"column:order_number;type:varchar(64);index;not null"`
	Quantity    int    `gorm:"not null"`
	UnitCost    string `gorm:"column:unit_cost;type:decimal(18,4);not null"`
	TotalCost   string `gorm:"column:total_cost;type:decimal(18,4);not null"`
	Status      string `gorm:"type:varchar(20);not null"`
	CreatedAt   time.Time
}

// TableName 指定表名
func (StockMovementModel) TableName() string { return "stock_movements" }

// ShortfallModel 缺货记录表模型
type ShortfallModel struct {
	ID        int    `gorm:"primaryKey;autoIncrement"`
	OrderID   int    `gorm:"column:order_id;uniqueIndex:uk_shortfall_order_sku;not null"`
	SKU       string `gorm:"column:sku;type:varchar(64);uniqueIndex:uk_shortfall_order_sku;not null"`
	Requested int    `gorm:"not null"`
	Available int    `gorm:"not null"`
	CreatedAt time.Time
}

// TableName 指定表名
func (ShortfallModel) TableName() string { return "stock_shortfalls" }

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

// ProductBySKU 实现 domain.Store.ProductBySKU，行锁持有到事务结束
func (s *txStore) ProductBySKU(ctx context.Context, sku string) (*domain.Product, error) {
	var model ProductModel
	err := s.tx.WithContext(ctx).
		Clauses(clause.Locking{Strength: "UPDATE"}).
		Where("sku = ?", sku).
		First(&model).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, nil
		}
		return nil, fmt.Errorf("query product %q: %w", sku, err)
	}
	return toProduct(&model)
}

// CreateProduct 实现 domain.Store.CreateProduct
func (s *txStore) CreateProduct(ctx context.Context, p *domain.Product) error {
	model := ProductModel{
		SKU:       p.SKU,
		Name:      p.Name,
		Quantity:  p.Quantity,
		CostBasis: p.CostBasis.String(),
		CreatedAt: p.CreatedAt,
	}
	if err := s.tx.WithContext(ctx).Create(&model).Error; err != nil {
		return fmt.Errorf("create product %q: %w", p.SKU, err)
	}
	p.ID = model.ID
	return nil
}

// AdjustStock 实现 domain.Store.AdjustStock，增量更新避免覆盖写
func (s *txStore) AdjustStock(ctx context.Context, productID int, delta int) error {
	err := s.tx.WithContext(ctx).
		Model(&ProductModel{}).
		Where("id = ?", productID).
		UpdateColumn("quantity", gorm.Expr("quantity + ?", delta)).Error
	if err != nil {
		return fmt.Errorf("adjust stock for product %d: %w", productID, err)
	}
	return nil
}

// InsertGoodsReceipt 实现 domain.Store.InsertGoodsReceipt
func (s *txStore) InsertGoodsReceipt(ctx context.Context, r *domain.GoodsReceipt) (bool, error) {
	model := GoodsReceiptModel{
		PurchaseOrderID: r.PurchaseOrderID,
		SKU:             r.SKU,
		Quantity:        r.Quantity,
		ReceivedAt:      r.ReceivedAt,
	}
	result := s.tx.WithContext(ctx).
		Clauses(clause.OnConflict{DoNothing: true}).
		Create(&model)
	if result.Error != nil {
		return false, fmt.Errorf("insert goods receipt po=%d sku=%q: %w", r.PurchaseOrderID, r.SKU, result.Error)
	}
	return result.RowsAffected > 0, nil
}

// InsertStockMovement 实现 domain.Store.InsertStockMovement
func (s *txStore) InsertStockMovement(ctx context.Context, m *domain.StockMovement) (bool, error) {
	model := StockMovementModel{
		OrderID:     m.OrderID,
		SKU:         m.SKU,
		OrderNumber: m.OrderNumber,
		Quantity:    m.Quantity,
		UnitCost:    m.UnitCost.String(),
		TotalCost:   m.TotalCost.String(),
		Status:      m.Status,
		CreatedAt:   m.CreatedAt,
	}
	result := s.tx.WithContext(ctx).
		Clauses(clause.OnConflict{DoNothing: true}).
		Create(&model)
	if result.Error != nil {
		return false, fmt.Errorf("insert stock movement order=%d sku=%q: %w", m.OrderID, m.SKU, result.Error)
	}
	return result.RowsAffected > 0, nil
}

// InsertShortfall 实现 domain.Store.InsertShortfall
func (s *txStore) InsertShortfall(ctx context.Context, sf *domain.Shortfall) error {
	model := ShortfallModel{
		OrderID:   sf.OrderID,
		SKU:       sf.SKU,
		Requested: sf.Requested,
		Available: sf.Available,
		CreatedAt: sf.CreatedAt,
	}
	err := s.tx.WithContext(ctx).
		Clauses(clause.OnConflict{DoNothing: true}).
		Create(&model).Error
	if err != nil {
		return fmt.Errorf("insert shortfall order=%d sku=%q: %w", sf.OrderID, sf.SKU, err)
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

// FindProductBySKU 实现 domain.Reader.FindProductBySKU
func (r *Reader) FindProductBySKU(ctx context.Context, sku string) (*domain.Product, error) {
	var model ProductModel
	err := r.db.WithContext(ctx).Where("sku = ?", sku).First(&model).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, nil
		}
		return nil, fmt.Errorf("query product %q: %w", sku, err)
	}
	return toProduct(&model)
}

// ListShortfalls 实现 domain.Reader.ListShortfalls
func (r *Reader) ListShortfalls(ctx context.Context, limit int) ([]*domain.Shortfall, error) {
	var models []ShortfallModel
	err := r.db.WithContext(ctx).Order("id DESC").Limit(limit).Find(&models).Error
	if err != nil {
		return nil, fmt.Errorf("list shortfalls: %w", err)
	}
	out := make([]*domain.Shortfall, 0, len(models))
	for i := range models {
		m := &models[i]
		out = append(out, &domain.Shortfall{
			ID:        m.ID,
			OrderID:   m.OrderID,
			SKU:       m.SKU,
			Requested: m.Requested,
			Available: m.Available,
			CreatedAt: m.CreatedAt,
		})
	}
	return out, nil
}

// toProduct 把表模型转换为领域实体
func toProduct(m *ProductModel) (*domain.Product, error) {
	cost, err := decimal.NewFromString(m.CostBasis)
	if err != nil {
		return nil, fmt.Errorf("parse cost basis for product %q: %w", m.SKU, err)
	}
	return &domain.Product{
		ID:        m.ID,
		SKU:       m.SKU,
		Name:      m.Name,
		Quantity:  m.Quantity,
		CostBasis: cost,
		CreatedAt: m.CreatedAt,
		UpdatedAt: m.UpdatedAt,
	}, nil
}
