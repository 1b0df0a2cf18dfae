// Package events 定义跨服务事件契约：六种业务事实的载荷、
// 各自的 fanout exchange，以及统一的消息信封与解码注册表。
// 各服务只通过这些契约交换数据，不跨服务访问对方的库表。
package events

import (
	"time"

	"github.com/shopspring/decimal"
)

// 业务事实对应的 fanout exchange，发布者与所有消费者必须一致
const (
	ProcurementExchange   = "procurement.events"
	SalesExchange         = "sales.events"
	InventoryCOGSExchange = "inventory.cogs.events"
	InventoryExchange     = "inventory.events"
	EmployeeExchange      = "employee.events"
	UserExchange          = "user_events"
)

// 事件类型判别值，写入信封的 event_type 字段
const (
	GoodsReceivedEventType     = "GoodsReceived"
	SalesOrderCreatedEventType = "SalesOrderCreated"
	StockDeductedEventType     = "StockDeducted"
	StockUpdatedEventType      = "StockUpdated"
	EmployeeCreatedEventType   = "EmployeeCreated"
	UserCreatedEventType       = "UserCreated"
)

// DomainEvent 所有事件载荷实现的接口
type DomainEvent interface {
	// EventType 返回事件类型判别值
	EventType() string
	// NaturalKey 返回本事件逻辑发生的自然键，消费侧幂等层以它为锚
	NaturalKey() string
}

// GoodsReceived 采购入库：某采购单的一行货物已收到
type GoodsReceived struct {
	PurchaseOrderID  int    `json:"purchase_order_id"`
	ProductSKU       string `json:"product_sku"`
	QuantityReceived int    `json:"quantity_received"`
}

func (GoodsReceived) EventType() string { return GoodsReceivedEventType }

func (e GoodsReceived) NaturalKey() string {
	return keyf("po:%d/sku:%s", e.PurchaseOrderID, e.ProductSKU)
}

// SalesOrderItem 销售订单行
type SalesOrderItem struct {
	ProductSKU string          `json:"product_sku"`
	Quantity   int             `json:"quantity"`
	UnitPrice  decimal.Decimal `json:"unit_price"`
}

// SalesOrderCreated 销售订单已创建
type SalesOrderCreated struct {
	OrderID     int              `json:"order_id"`
	CustomerID  int              `json:"customer_id"`
	OrderNumber string           `json:"order_number"`
	TotalAmount decimal.Decimal  `json:"total_amount"`
	OrderDate   time.Time        `json:"order_date"`
	Items       []SalesOrderItem `json:"items"`
}

func (SalesOrderCreated) EventType() string { return SalesOrderCreatedEventType }

func (e SalesOrderCreated) NaturalKey() string {
	return keyf("order:%d", e.OrderID)
}

// StockDeducted 库存已按销售订单行扣减，携带成本供会计入账
type StockDeducted struct {
	OrderID          int             `json:"order_id"`
	OrderNumber      string          `json:"order_number"`
	ProductSKU       string          `json:"product_sku"`
	ProductName      string          `json:"product_name"`
	QuantityDeducted int             `json:"quantity_deducted"`
	UnitCost         decimal.Decimal `json:"unit_cost"`
	TotalCost        decimal.Decimal `json:"total_cost"`
}

func (StockDeducted) EventType() string { return StockDeductedEventType }

func (e StockDeducted) NaturalKey() string {
	return keyf("order:%d/sku:%s", e.OrderID, e.ProductSKU)
}

// StockUpdated 库存水平变动广播
type StockUpdated struct {
	ProductID   int    `json:"product_id"`
	SKU         string `json:"sku"`
	OldQuantity int    `json:"old_quantity"`
	NewQuantity int    `json:"new_quantity"`
	Reason      string `json:"reason"`
}

func (StockUpdated) EventType() string { return StockUpdatedEventType }

func (e StockUpdated) NaturalKey() string {
	return keyf("product:%d/%d->%d", e.ProductID, e.OldQuantity, e.NewQuantity)
}

// EmployeeCreated 新员工已入职
type EmployeeCreated struct {
	EmployeeID  int       `json:"employee_id"`
	Email       string    `json:"email"`
	FirstName   string    `json:"first_name"`
	LastName    string    `json:"last_name"`
	Department  string    `json:"department"`
	JoiningDate time.Time `json:"joining_date"`
}

func (EmployeeCreated) EventType() string { return EmployeeCreatedEventType }

func (e EmployeeCreated) NaturalKey() string {
	return keyf("employee:%d", e.EmployeeID)
}

// UserCreated 新用户账号已创建
type UserCreated struct {
	UserID   int    `json:"user_id"`
	Username string `json:"username"`
	Email    string `json:"email"`
	Role     string `json:"role"`
}

func (UserCreated) EventType() string { return UserCreatedEventType }

func (e UserCreated) NaturalKey() string {
	return keyf("user:%d", e.UserID)
}
