// Package domain 定义身份服务的实体与存取端口。
package domain

import (
	"context"
	"errors"
	"time"

	"github.com/wyfcoding/goerp/internal/events"
)

// 身份侧错误
var (
	ErrUserExists = errors.New("identity: username or email already taken")
)

// 账号角色
const (
	RoleAdmin    = "admin"
	RoleEmployee = "employee"
)

// User 系统账号。角色为 employee 的账号会经事件在人力侧
// 生成一条待完善的员工档案。
type User struct {
	ID           int
	Username     string
	Email        string
	PasswordHash string
	Role         string
	CreatedAt    time.Time
}

// Store 单个事务范围内的身份存取端口
type Store interface {
	// CreateUser 落库账号；用户名或邮箱冲突时返回 (false, nil)
	CreateUser(ctx context.Context, u *User) (bool, error)
	// StageEvent 在当前事务中把事件暂存到 outbox
	StageEvent(ctx context.Context, exchange string, event events.DomainEvent) error
}

// TxRunner 在一个本地事务中执行函数
type TxRunner interface {
	InTx(ctx context.Context, fn func(store Store) error) error
}

// Reader 只读查询端口
type Reader interface {
	// FindUserByUsername 按用户名查询；不存在时返回 (nil, nil)
	FindUserByUsername(ctx context.Context, username string) (*User, error)
}
