// Package domain 定义库存服务的实体与仓储端口。
package domain

import (
	"errors"
	"time"

	"github.com/shopspring/decimal"
)

// ErrProductNotFound 事件引用的 SKU 在本地不存在。
// 产品不会凭空出现，这是永久性失败而非瞬时失败。
var ErrProductNotFound = errors.New("inventory: product not found")

// Product 库存商品
type Product struct {
	ID       int
	SKU      string
	Name     string
	Quantity int
	// CostBasis 入账成本，零值表示尚未记录成本
	CostBasis decimal.Decimal
	CreatedAt time.Time
	UpdatedAt time.Time
}

// HasCostBasis 是否已有成本记录
func (p *Product) HasCostBasis() bool {
	return p.CostBasis.IsPositive()
}

// UnitCostOr 返回成本基准；缺失时按给定售价的毛利假设折算。
// 折算出的成本会随事件带给下游，会计不再重新推导。
func (p *Product) UnitCostOr(salePrice decimal.Decimal) decimal.Decimal {
	if p.HasCostBasis() {
		return p.CostBasis
	}
	// 缺省假设 40% 毛利率
	return salePrice.Mul(decimal.NewFromFloat(0.6))
}

// GoodsReceipt 采购入库记录。(purchase_order_id, sku) 唯一，
// 该行的存在即“此次入库已应用”的幂等标记。
type GoodsReceipt struct {
	ID              int
	PurchaseOrderID int
	SKU             string
	Quantity        int
	ReceivedAt      time.Time
}

// 库存流水状态
const (
	MovementApplied   = "applied"
	MovementShortfall = "shortfall"
)

// StockMovement 销售扣减流水。(order_id, sku) 唯一，
// 该行的存在即“此订单行的扣减已处理”的幂等标记。
type StockMovement struct {
	ID          int
	OrderID     int
	OrderNumber string
	SKU         string
	Quantity    int
	UnitCost    decimal.Decimal
	TotalCost   decimal.Decimal
	Status      string
	CreatedAt   time.Time
}

// Shortfall 缺货记录，供运营对账：请求量超过可用量的订单行
type Shortfall struct {
	ID        int
	OrderID   int
	SKU       string
	Requested int
	Available int
	CreatedAt time.Time
}
