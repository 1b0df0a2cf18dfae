// Package domain 定义薪酬服务的实体与存取端口。
package domain

import (
	"context"
	"time"

	"github.com/shopspring/decimal"
)

// PayGrade 默认薪级。新员工按部门套一档基本工资，人工随后调整。
type PayGrade struct {
	Department string
	BaseSalary decimal.Decimal
}

// defaultPayGrades 部门到默认基本工资的映射
var defaultPayGrades = map[string]decimal.Decimal{
	"engineering": decimal.NewFromInt(9000),
	"finance":     decimal.NewFromInt(7500),
	"sales":       decimal.NewFromInt(6000),
	"hr":          decimal.NewFromInt(6500),
	"operations":  decimal.NewFromInt(5500),
}

// fallbackBaseSalary 未知部门的兜底薪级
var fallbackBaseSalary = decimal.NewFromInt(5000)

// DefaultBaseSalary 返回某部门的默认基本工资
func DefaultBaseSalary(department string) decimal.Decimal {
	if salary, ok := defaultPayGrades[department]; ok {
		return salary
	}
	return fallbackBaseSalary
}

// SalaryRecord 工资记录。每位员工一条，employee_id 唯一。
type SalaryRecord struct {
	ID            int
	EmployeeID    int
	Email         string
	Department    string
	BaseSalary    decimal.Decimal
	Currency      string
	EffectiveFrom time.Time
}

// Store 单个事务范围内的薪酬存取端口
type Store interface {
	// InsertSalaryRecord 落库工资记录；该员工已有记录时返回 (false, nil)
	InsertSalaryRecord(ctx context.Context, r *SalaryRecord) (bool, error)
}

// TxRunner 在一个本地事务中执行函数
type TxRunner interface {
	InTx(ctx context.Context, fn func(store Store) error) error
}

// Reader 只读查询端口
type Reader interface {
	// FindSalaryByEmployee 按员工 ID 查询；不存在时返回 (nil, nil)
	FindSalaryByEmployee(ctx context.Context, employeeID int) (*SalaryRecord, error)
	// ListSalaryRecords 列出工资记录
	ListSalaryRecords(ctx context.Context, limit int) ([]SalaryRecord, error)
}
