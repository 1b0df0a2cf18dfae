// Package application 实现人力服务的命令、查询与事件处理。
package application

import (
	"context"
	"time"

	"github.com/wyfcoding/goerp/internal/events"
	"github.com/wyfcoding/goerp/internal/hr/domain"
	"github.com/wyfcoding/goerp/pkg/logger"
)

// HRService 人力应用服务
type HRService struct {
	tx     domain.TxRunner
	reader domain.Reader
}

// NewHRService 创建人力应用服务
func NewHRService(tx domain.TxRunner, reader domain.Reader) *HRService {
	return &HRService{tx: tx, reader: reader}
}

// CreateEmployeeCommand 录入员工命令
type CreateEmployeeCommand struct {
	Email       string
	FirstName   string
	LastName    string
	Department  string
	JoiningDate time.Time
}

// CreateEmployee 录入员工档案，并在同一事务中暂存 EmployeeCreated。
// 薪酬侧据此初始化工资记录。
func (s *HRService) CreateEmployee(ctx context.Context, cmd CreateEmployeeCommand) (*domain.Employee, error) {
	joining := cmd.JoiningDate
	if joining.IsZero() {
		joining = time.Now()
	}

	employee := &domain.Employee{
		Email:       cmd.Email,
		FirstName:   cmd.FirstName,
		LastName:    cmd.LastName,
		Department:  cmd.Department,
		Status:      domain.EmployeeStatusActive,
		JoiningDate: joining,
	}

	err := s.tx.InTx(ctx, func(store domain.Store) error {
		inserted, err := store.CreateEmployee(ctx, employee)
		if err != nil {
			return err
		}
		if !inserted {
			return domain.ErrEmployeeExists
		}

		return store.StageEvent(ctx, events.EmployeeExchange, events.EmployeeCreated{
			EmployeeID:  employee.ID,
			Email:       employee.Email,
			FirstName:   employee.FirstName,
			LastName:    employee.LastName,
			Department:  employee.Department,
			JoiningDate: employee.JoiningDate,
		})
	})
	if err != nil {
		return nil, err
	}

	logger.Info(ctx, "employee created", "employee_id", employee.ID, "email", employee.Email)
	return employee, nil
}

// ApplyUserCreated 消费 UserCreated：为 employee 角色的账号生成一条
// 待完善档案。以 user_id 唯一约束兜底，重复投递不会生成第二条。
// 待完善档案不产出 EmployeeCreated，薪酬初始化等人工补全后再触发。
func (s *HRService) ApplyUserCreated(ctx context.Context, event *events.UserCreated) (events.Outcome, error) {
	if event.Role != "employee" {
		logger.Debug(ctx, "user role needs no employee record", "user_id", event.UserID, "role", event.Role)
		return events.OutcomeApplied, nil
	}

	userID := event.UserID
	employee := &domain.Employee{
		UserID:      &userID,
		Email:       event.Email,
		FirstName:   event.Username,
		LastName:    "",
		Department:  "unassigned",
		Status:      domain.EmployeeStatusPending,
		JoiningDate: time.Now(),
	}

	var outcome events.Outcome
	err := s.tx.InTx(ctx, func(store domain.Store) error {
		inserted, err := store.InsertEmployeeForUser(ctx, employee)
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
		logger.Info(ctx, "pending employee record created for user",
			"user_id", event.UserID, "employee_id", employee.ID)
	}
	return outcome, nil
}

// GetEmployee 按 ID 查询档案
func (s *HRService) GetEmployee(ctx context.Context, id int) (*domain.Employee, error) {
	return s.reader.FindEmployee(ctx, id)
}

// ListEmployees 列出档案
func (s *HRService) ListEmployees(ctx context.Context, limit int) ([]domain.Employee, error) {
	if limit <= 0 || limit > 200 {
		limit = 50
	}
	return s.reader.ListEmployees(ctx, limit)
}
