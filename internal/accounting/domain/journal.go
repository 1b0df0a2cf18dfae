// Package domain 定义会计服务的实体与存取端口。
package domain

import (
	"context"
	"time"

	"github.com/shopspring/decimal"
)

// 记账科目
const (
	AccountCOGS           = "COGS"
	AccountInventoryAsset = "Inventory Asset"
	AccountPayable        = "Accounts Payable"
)

// 分录来源类型，与来源引用共同构成幂等自然键
const (
	SourceCOGS          = "cogs"
	SourceGoodsReceived = "goods_received"
)

// FlagNeedsValuation 分录因缺少成本记录而以零金额入账，需人工补齐
const FlagNeedsValuation = "needs_valuation"

// JournalEntry 复式分录。借贷双方金额恒等，由单一 Amount 字段保证。
// (source_type, source_ref) 唯一，行的存在即该业务事实已入账的标记。
type JournalEntry struct {
	ID            int
	SourceType    string
	SourceRef     string
	DebitAccount  string
	CreditAccount string
	Amount        decimal.Decimal
	Memo          string
	Flag          string
	CreatedAt     time.Time
}

// ItemCost 物料标准成本，为不携带价格的入库事件计价
type ItemCost struct {
	SKU      string
	UnitCost decimal.Decimal
}

// Store 单个事务范围内的会计存取端口
type Store interface {
	// InsertJournalEntry 插入分录；(source_type, source_ref) 冲突时
	// 返回 (false, nil)，表示该事实已入账
	InsertJournalEntry(ctx context.Context, e *JournalEntry) (bool, error)

	// ItemCostBySKU 读取标准成本；未记录时返回 (nil, nil)
	ItemCostBySKU(ctx context.Context, sku string) (*ItemCost, error)

	// UpsertItemCost 写入或更新标准成本
	UpsertItemCost(ctx context.Context, c *ItemCost) error
}

// TxRunner 在一个本地事务中执行函数
type TxRunner interface {
	InTx(ctx context.Context, fn func(store Store) error) error
}

// Reader 只读查询端口
type Reader interface {
	// ListJournalEntries 按时间倒序列出分录
	ListJournalEntries(ctx context.Context, limit int) ([]*JournalEntry, error)
	// FindJournalEntry 按来源查找分录；不存在时返回 (nil, nil)
	FindJournalEntry(ctx context.Context, sourceType, sourceRef string) (*JournalEntry, error)
}
