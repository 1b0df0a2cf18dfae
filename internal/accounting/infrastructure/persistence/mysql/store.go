// Package mysql 提供会计存取端口的 MySQL GORM 实现。
package mysql

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/shopspring/decimal"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	"github.com/wyfcoding/goerp/internal/accounting/domain"
)

// JournalEntryModel 分录表模型，(source_type, source_ref) 唯一
type JournalEntryModel struct {
	ID            int    `gorm:"primaryKey;autoIncrement"`
	SourceType    string `gorm:"column:source_type;type:varchar(32);uniqueIndex:uk_journal_source;not null"`
	SourceRef     string `gorm:"column:source_ref;type:varchar(128);uniqueIndex:uk_journal_source;not null"`
	DebitAccount  string `gorm:"column:debit_account;type:varchar(64);not null"`
	CreditAccount string `gorm:"column:credit_account;type:varchar(64);not null"`
	Amount        string `gorm:"type:decimal(18,4);not null"`
	Memo          string `gorm:"type:varchar(255)"`
	Flag          string `gorm:"type:varchar(32);index"`
	CreatedAt     time.Time
}

// TableName 指定表名
func (JournalEntryModel) TableName() string { return "journal_entries" }

// ItemCostModel 标准成本表模型
type ItemCostModel struct {
	SKU       string `gorm:"column:sku;type:varchar(64);primaryKey"`
	UnitCost  string `gorm:"column:unit_cost;type:decimal(18,4);not null"`
	UpdatedAt time.Time
}

// TableName 指定表名
func (ItemCostModel) TableName() string { return "item_costs" }

// TxRunner domain.TxRunner 的 GORM 实现
type TxRunner struct {
	db *gorm.DB
}

// NewTxRunner 创建事务执行器
func NewTxRunner(db *gorm.DB) *TxRunner {
	return &TxRunner{db: db}
}

// InTx 实现 domain.TxRunner.InTx
func (r *TxRunner) InTx(ctx context.Context, fn func(store domain.Store) error) error {
	return r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		return fn(&txStore{tx: tx})
	})
}

// txStore 绑定到单个事务的 domain.Store 实现
type txStore struct {
	tx *gorm.DB
}

// InsertJournalEntry 实现 domain.Store.InsertJournalEntry
func (s *txStore) InsertJournalEntry(ctx context.Context, e *domain.JournalEntry) (bool, error) {
	model := JournalEntryModel{
		SourceType:    e.SourceType,
		SourceRef:     e.SourceRef,
		DebitAccount:  e.DebitAccount,
		CreditAccount: e.CreditAccount,
		Amount:        e.Amount.String(),
		Memo:          e.Memo,
		Flag:          e.Flag,
		CreatedAt:     e.CreatedAt,
	}
	result := s.tx.WithContext(ctx).
		Clauses(clause.OnConflict{DoNothing: true}).
		Create(&model)
	if result.Error != nil {
		return false, fmt.Errorf("insert journal entry %s/%s: %w", e.SourceType, e.SourceRef, result.Error)
	}
	e.ID = model.ID
	return result.RowsAffected > 0, nil
}

// ItemCostBySKU 实现 domain.Store.ItemCostBySKU
func (s *txStore) ItemCostBySKU(ctx context.Context, sku string) (*domain.ItemCost, error) {
	var model ItemCostModel
	err := s.tx.WithContext(ctx).Where("sku = ?", sku).First(&model).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, nil
		}
		return nil, fmt.Errorf("query item cost %q: %w", sku, err)
	}
	cost, err := decimal.NewFromString(model.UnitCost)
	if err != nil {
		return nil, fmt.Errorf("parse item cost %q: %w", sku, err)
	}
	return &domain.ItemCost{SKU: model.SKU, UnitCost: cost}, nil
}

// UpsertItemCost 实现 domain.Store.UpsertItemCost
func (s *txStore) UpsertItemCost(ctx context.Context, c *domain.ItemCost) error {
	model := ItemCostModel{
		SKU:      c.SKU,
		UnitCost: c.UnitCost.String(),
	}
	err := s.tx.WithContext(ctx).
		Clauses(clause.OnConflict{
			Columns:   []clause.Column{{Name: "sku"}},
			DoUpdates: clause.AssignmentColumns([]string{"unit_cost", "updated_at"}),
		}).
		Create(&model).Error
	if err != nil {
		return fmt.Errorf("upsert item cost %q: %w", c.SKU, err)
	}
	return nil
}

// Reader domain.Reader 的 GORM 实现
type Reader struct {
	db *gorm.DB
}

// NewReader 创建只读查询器
func NewReader(db *gorm.DB) *Reader {
	return &Reader{db: db}
}

// ListJournalEntries 实现 domain.Reader.ListJournalEntries
func (r *Reader) ListJournalEntries(ctx context.Context, limit int) ([]*domain.JournalEntry, error) {
	var models []JournalEntryModel
	err := r.db.WithContext(ctx).Order("id DESC").Limit(limit).Find(&models).Error
	if err != nil {
		return nil, fmt.Errorf("list journal entries: %w", err)
	}
	out := make([]*domain.JournalEntry, 0, len(models))
	for i := range models {
		entry, err := toJournalEntry(&models[i])
		if err != nil {
			return nil, err
		}
		out = append(out, entry)
	}
	return out, nil
}

// FindJournalEntry 实现 domain.Reader.FindJournalEntry
func (r *Reader) FindJournalEntry(ctx context.Context, sourceType, sourceRef string) (*domain.JournalEntry, error) {
	var model JournalEntryModel
	err := r.db.WithContext(ctx).
		Where("source_type = ? AND source_ref = ?", sourceType, sourceRef).
		First(&model).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, nil
		}
		return nil, fmt.Errorf("query journal entry %s/%s: %w", sourceType, sourceRef, err)
	}
	return toJournalEntry(&model)
}

// toJournalEntry 把表模型转换为领域实体
func toJournalEntry(m *JournalEntryModel) (*domain.JournalEntry, error) {
	amount, err := decimal.NewFromString(m.Amount)
	if err != nil {
		return nil, fmt.Errorf("parse journal amount for entry %d: %w", m.ID, err)
	}
	return &domain.JournalEntry{
		ID:            m.ID,
		SourceType:    m.SourceType,
		SourceRef:     m.SourceRef,
		DebitAccount:  m.DebitAccount,
		CreditAccount: m.CreditAccount,
		Amount:        amount,
		Memo:          m.Memo,
		Flag:          m.Flag,
		CreatedAt:     m.CreatedAt,
	}, nil
}
