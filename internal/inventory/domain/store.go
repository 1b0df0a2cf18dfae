package domain

import (
	"context"

	"github.com/wyfcoding/goerp/internal/events"
)

// Store 单个事务范围内的库存存取端口。
// 所有方法都运行在同一个本地事务里：效果应用、幂等标记与
// 下游事件暂存要么一起提交，要么一起回滚。
type Store interface {
	// ProductBySKU 按 SKU 读取商品并锁定该行直到事务结束；
	// 不存在时返回 (nil, nil)
	ProductBySKU(ctx context.Context, sku string) (*Product, error)

	// CreateProduct 新建商品，SKU 唯一
	CreateProduct(ctx context.Context, p *Product) error

	// AdjustStock 以增量方式调整库存，delta 可为负
	AdjustStock(ctx context.Context, productID int, delta int) error

	// InsertGoodsReceipt 插入入库记录；自然键冲突时返回 (false, nil)，
	// 表示该入库此前已应用
	InsertGoodsReceipt(ctx context.Context, r *GoodsReceipt) (bool, error)

	// InsertStockMovement 插入扣减流水；自然键冲突时返回 (false, nil)
	InsertStockMovement(ctx context.Context, m *StockMovement) (bool, error)

	// InsertShortfall 记录缺货行
	InsertShortfall(ctx context.Context, s *Shortfall) error

	// StageEvent 在当前事务中把下游事件暂存到 outbox
	StageEvent(ctx context.Context, exchange string, event events.DomainEvent) error
}

// TxRunner 在一个本地事务中执行函数，并向其提供事务范围的 Store
type TxRunner interface {
	InTx(ctx context.Context, fn func(store Store) error) error
}

// Reader 只读查询端口，供 HTTP 层使用，不参与事务
type Reader interface {
	// FindProductBySKU 不加锁读取商品；不存在时返回 (nil, nil)
	FindProductBySKU(ctx context.Context, sku string) (*Product, error)
	// ListShortfalls 列出缺货记录
	ListShortfalls(ctx context.Context, limit int) ([]*Shortfall, error)
}
