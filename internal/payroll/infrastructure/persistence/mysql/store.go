// Package mysql 提供薪酬存取端口的 MySQL GORM 实现。
package mysql

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/shopspring/decimal"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	"github.com/wyfcoding/goerp/internal/payroll/domain"
)

// SalaryRecordModel 工资记录表模型。employee_id 唯一索引保证
// 每位员工至多一条记录。
type SalaryRecordModel struct {
	ID            int    `gorm:"primaryKey;autoIncrement"`
	EmployeeID    int    `gorm:"column:employee_id;uniqueIndex:uk_salary_employee;not null"`
	Email         string `gorm:"type:varchar(128);not null"`
	Department    string `gorm:"type:varchar(64);not null"`
	BaseSalary    string `gorm:"column:base_salary;type:decimal(18,4);not null"`
	Currency      string `gorm:"type:varchar(8);not null"`
	EffectiveFrom time.Time
	CreatedAt     time.Time
}

// TableName 指定表名
func (SalaryRecordModel) TableName() string { return "salary_records" }

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

// InsertSalaryRecord 实现 domain.Store.InsertSalaryRecord。
// 唯一索引吃掉冲突，以 RowsAffected 判定是否真插入。
func (s *txStore) InsertSalaryRecord(ctx context.Context, r *domain.SalaryRecord) (bool, error) {
	model := SalaryRecordModel{
		EmployeeID:    r.EmployeeID,
		Email:         r.Email,
		Department:    r.Department,
		BaseSalary:    r.BaseSalary.String(),
		Currency:      r.Currency,
		EffectiveFrom: r.EffectiveFrom,
	}
	result := s.tx.WithContext(ctx).
		Clauses(clause.OnConflict{DoNothing: true}).
		Create(&model)
	if result.Error != nil {
		return false, fmt.Errorf("create salary record for employee %d: %w", r.EmployeeID, result.Error)
	}
	if result.RowsAffected == 0 {
		return false, nil
	}
	r.ID = model.ID
	return true, nil
}

// Reader domain.Reader 的 GORM 实现
type Reader struct {
	db *gorm.DB
}

// NewReader 创建只读查询器
func NewReader(db *gorm.DB) *Reader {
	return &Reader{db: db}
}

// FindSalaryByEmployee 实现 domain.Reader.FindSalaryByEmployee
func (r *Reader) FindSalaryByEmployee(ctx context.Context, employeeID int) (*domain.SalaryRecord, error) {
	var model SalaryRecordModel
	err := r.db.WithContext(ctx).Where("employee_id = ?", employeeID).First(&model).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, nil
		}
		return nil, fmt.Errorf("query salary record for employee %d: %w", employeeID, err)
	}
	return toSalaryRecord(&model)
}

// ListSalaryRecords 实现 domain.Reader.ListSalaryRecords
func (r *Reader) ListSalaryRecords(ctx context.Context, limit int) ([]domain.SalaryRecord, error) {
	var models []SalaryRecordModel
	err := r.db.WithContext(ctx).
		Order("id DESC").
		Limit(limit).
		Find(&models).Error
	if err != nil {
		return nil, fmt.Errorf("list salary records: %w", err)
	}

	records := make([]domain.SalaryRecord, 0, len(models))
	for i := range models {
		record, err := toSalaryRecord(&models[i])
		if err != nil {
			return nil, err
		}
		records = append(records, *record)
	}
	return records, nil
}

// toSalaryRecord 表模型转领域对象
func toSalaryRecord(model *SalaryRecordModel) (*domain.SalaryRecord, error) {
	salary, err := decimal.NewFromString(model.BaseSalary)
	if err != nil {
		return nil, fmt.Errorf("parse base salary for record %d: %w", model.ID, err)
	}
	return &domain.SalaryRecord{
		ID:            model.ID,
		EmployeeID:    model.EmployeeID,
		Email:         model.Email,
		Department:    model.Department,
		BaseSalary:    salary,
		Currency:      model.Currency,
		EffectiveFrom: model.EffectiveFrom,
	}, nil
}
