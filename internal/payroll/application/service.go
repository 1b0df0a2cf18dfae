// Package application 实现薪酬服务的事件处理与查询。
package application

import (
	"context"

	"github.com/wyfcoding/goerp/internal/events"
	"github.com/wyfcoding/goerp/internal/payroll/domain"
	"github.com/wyfcoding/goerp/pkg/logger"
)

// PayrollService 薪酬应用服务
type PayrollService struct {
	tx     domain.TxRunner
	reader domain.Reader
}

// NewPayrollService 创建薪酬应用服务
func NewPayrollService(tx domain.TxRunner, reader domain.Reader) *PayrollService {
	return &PayrollService{tx: tx, reader: reader}
}

// ApplyEmployeeCreated 消费 EmployeeCreated：按部门默认薪级初始化
// 工资记录。employee_id 唯一约束兜底，重复投递不会生成第二条。
func (s *PayrollService) ApplyEmployeeCreated(ctx context.Context, event *events.EmployeeCreated) (events.Outcome, error) {
	record := &domain.SalaryRecord{
		EmployeeID:    event.EmployeeID,
		Email:         event.Email,
		Department:    event.Department,
		BaseSalary:    domain.DefaultBaseSalary(event.Department),
		Currency:      "CNY",
		EffectiveFrom: event.JoiningDate,
	}

	var outcome events.Outcome
	err := s.tx.InTx(ctx, func(store domain.Store) error {
		inserted, err := store.InsertSalaryRecord(ctx, record)
		if err != nil {
			return err
		}
		if !inserted {
			outcome = events.OutcomeAlreadyApplied
			return nil
		}
		outcome = events.OutcomeApplied
		return nil
	})
	if err != nil {
		return 0, err
	}

	if outcome == events.OutcomeApplied {
		logger.Info(ctx, "salary record initialized",
			"employee_id", event.EmployeeID,
			"department", event.Department,
			"base_salary", record.BaseSalary.String())
	}
	return outcome, nil
}

// GetSalary 按员工 ID 查询工资记录
func (s *PayrollService) GetSalary(ctx context.Context, employeeID int) (*domain.SalaryRecord, error) {
	return s.reader.FindSalaryByEmployee(ctx, employeeID)
}

// ListSalaries 列出工资记录
func (s *PayrollService) ListSalaries(ctx context.Context, limit int) ([]domain.SalaryRecord, error) {
	if limit <= 0 || limit > 200 {
		limit = 50
	}
	return s.reader.ListSalaryRecords(ctx, limit)
}
