// Package domain 定义人力服务的实体与存取端口。
package domain

import (
	"context"
	"errors"
	"time"

	"github.com/wyfcoding/goerp/internal/events"
)

// 人力侧错误
var (
	ErrEmployeeExists = errors.New("hr: employee email already exists")
)

// 档案状态。事件生成的待完善档案为 pending，人工录入的为 active。
const (
	EmployeeStatusActive  = "active"
	EmployeeStatusPending = "pending"
)

// Employee 员工档案。UserID 关联身份侧账号，可为空（未开账号的员工）。
type Employee struct {
	ID          int
	UserID      *int
	Email       string
	FirstName   string
	LastName    string
	Department  string
	Status      string
	JoiningDate time.Time
}

// Store 单个事务范围内的人力存取端口
type Store interface {
	// CreateEmployee 落库档案；邮箱冲突时返回 (false, nil)
	CreateEmployee(ctx context.Context, e *Employee) (bool, error)
	// InsertEmployeeForUser 为账号生成待完善档案；该账号已有档案时返回 (false, nil)
	InsertEmployeeForUser(ctx context.Context, e *Employee) (bool, error)
	// StageEvent 在当前事务中把事件暂存到 outbox
	StageEvent(ctx context.Context, exchange string, event events.DomainEvent) error
}

// TxRunner 在一个本地事务中执行函数
type TxRunner interface {
	InTx(ctx context.Context, fn func(store Store) error) error
}

// Reader 只读查询端口
type Reader interface {
	// FindEmployee 按 ID 查询档案；不存在时返回 (nil, nil)
	FindEmployee(ctx context.Context, id int) (*Employee, error)
	// ListEmployees 按入职时间倒序列出档案
	ListEmployees(ctx context.Context, limit int) ([]Employee, error)
}
