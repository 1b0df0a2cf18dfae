// Package mysql 提供身份存取端口的 MySQL GORM 实现。
package mysql

import (
	"context"
	"errors"
	"fmt"
	"time"

	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	"github.com/wyfcoding/goerp/internal/events"
	"github.com/wyfcoding/goerp/internal/identity/domain"
	"github.com/wyfcoding/goerp/internal/outbox"
)

// UserModel 账号表模型
type UserModel struct {
	ID           int    `gorm:"primaryKey;autoIncrement"`
	Username     string `gorm:"type:varchar(64);uniqueIndex;not null"`
	Email        string `gorm:"type:varchar(128);uniqueIndex;not null"`
	PasswordHash string `gorm:"column:password_hash;type:varchar(128);not null"`
	Role         string `gorm:"type:varchar(20);not null"`
	CreatedAt    time.Time
}

// TableName 指定表名
func (UserModel) TableName() string { return "users" }

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

// CreateUser 实现 domain.Store.CreateUser。唯一索引吃掉冲突，
// 以 RowsAffected 判定是否真插入。
func (s *txStore) CreateUser(ctx context.Context, u *domain.User) (bool, error) {
	model := UserModel{
		Username:     u.Username,
		Email:        u.Email,
		PasswordHash: u.PasswordHash,
		Role:         u.Role,
		CreatedAt:    u.CreatedAt,
	}
	result := s.tx.WithContext(ctx).
		Clauses(clause.OnConflict{DoNothing: true}).
		Create(&model)
	if result.Error != nil {
		return false, fmt.Errorf("create user %q: %w", u.Username, result.Error)
	}
	if result.RowsAffected == 0 {
		return false, nil
	}
	u.ID = model.ID
	return true, nil
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

// FindUserByUsername 实现 domain.Reader.FindUserByUsername
func (r *Reader) FindUserByUsername(ctx context.Context, username string) (*domain.User, error) {
	var model UserModel
	err := r.db.WithContext(ctx).Where("username = ?", username).First(&model).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, nil
		}
		return nil, fmt.Errorf("query user %q: %w", username, err)
	}
	return &domain.User{
		ID:           model.ID,
		Username:     model.Username,
		Email:        model.Email,
		PasswordHash: model.PasswordHash,
		Role:         model.Role,
		CreatedAt:    model.CreatedAt,
	}, nil
}
