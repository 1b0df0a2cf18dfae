// Package mysql 提供人力存取端口的 MySQL GORM 实现。
package mysql

import (
	"context"
	"errors"
	"fmt"
	"time"

	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	"github.com/wyfcoding/goerp/internal/events"
	"github.com/wyfcoding/goerp/internal/hr/domain"
	"github.com/wyfcoding/goerp/internal/outbox"
)

// EmployeeModel 员工档案表模型。user_id 唯一索引保证
// 一个账号至多生成一条档案。
type EmployeeModel struct {
	ID          int    `gorm:"primaryKey;autoIncrement"`
	UserID      *int   `gorm:"column:user_id;uniqueIndex:uk_employee_user"`
	Email       string `gorm:"type:varchar(128);uniqueIndex;not null"`
	FirstName   string `gorm:"column:first_name;type:varchar(64);not null"`
	LastName    string `gorm:"column:last_name;type:varchar(64)"`
	Department  string `gorm:"type:varchar(64);not null"`
	Status      string `gorm:"type:varchar(20);not null"`
	JoiningDate time.Time
	CreatedAt   time.Time
}

// TableName 指定表名
func (EmployeeModel) TableName() string { return "employees" }

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

// CreateEmployee 实现 domain.Store.CreateEmployee
func (s *txStore) CreateEmployee(ctx context.Context, e *domain.Employee) (bool, error) {
	return s.insert(ctx, e)
}

// InsertEmployeeForUser 实现 domain.Store.InsertEmployeeForUser
func (s *txStore) InsertEmployeeForUser(ctx context.Context, e *domain.Employee) (bool, error) {
	return s.insert(ctx, e)
}

// insert 唯一索引吃掉冲突，以 RowsAffected 判定是否真插入
func (s *txStore) insert(ctx context.Context, e *domain.Employee) (bool, error) {
	model := EmployeeModel{
		UserID:      e.UserID,
		Email:       e.Email,
		FirstName:   e.FirstName,
		LastName:    e.LastName,
		Department:  e.Department,
		Status:      e.Status,
		JoiningDate: e.JoiningDate,
	}
	result := s.tx.WithContext(ctx).
		Clauses(clause.OnConflict{DoNothing: true}).
		Create(&model)
	if result.Error != nil {
		return false, fmt.Errorf("create employee %q: %w", e.Email, result.Error)
	}
	if result.RowsAffected == 0 {
		return false, nil
	}
	e.ID = model.ID
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

// FindEmployee 实现 domain.Reader.FindEmployee
func (r *Reader) FindEmployee(ctx context.Context, id int) (*domain.Employee, error) {
	var model EmployeeModel
	err := r.db.WithContext(ctx).Where("id = ?", id).First(&model).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, nil
		}
		return nil, fmt.Errorf("query employee %d: %w", id, err)
	}
	e := toEmployee(&model)
	return &e, nil
}

// ListEmployees 实现 domain.Reader.ListEmployees
func (r *Reader) ListEmployees(ctx context.Context, limit int) ([]domain.Employee, error) {
	var models []EmployeeModel
	err := r.db.WithContext(ctx).
		Order("joining_date DESC").
		Limit(limit).
		Find(&models).Error
	if err != nil {
		return nil, fmt.Errorf("list employees: %w", err)
	}

	employees := make([]domain.Employee, 0, len(models))
	for i := range models {
		employees = append(employees, toEmployee(&models[i]))
	}
	return employees, nil
}

// toEmployee 表模型转领域对象
func toEmployee(model *EmployeeModel) domain.Employee {
	return domain.Employee{
		ID:          model.ID,
		UserID:      model.UserID,
		Email:       model.Email,
		FirstName:   model.FirstName,
		LastName:    model.LastName,
		Department:  model.Department,
		Status:      model.Status,
		JoiningDate: model.JoiningDate,
	}
}
