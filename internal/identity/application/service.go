// Package application 实现身份服务的命令与查询。
package application

import (
	"context"
	"fmt"
	"time"

	"golang.org/x/crypto/bcrypt"

	"github.com/wyfcoding/goerp/internal/events"
	"github.com/wyfcoding/goerp/internal/identity/domain"
	"github.com/wyfcoding/goerp/pkg/logger"
)

// IdentityService 身份应用服务
type IdentityService struct {
	tx     domain.TxRunner
	reader domain.Reader
}

// NewIdentityService 创建身份应用服务
func NewIdentityService(tx domain.TxRunner, reader domain.Reader) *IdentityService {
	return &IdentityService{tx: tx, reader: reader}
}

// RegisterUserCommand 注册账号命令
type RegisterUserCommand struct {
	Username string
	Email    string
	Password string
	Role     string
}

// RegisterUser 注册账号，并在同一事务中暂存 UserCreated。
// 人力侧据此为 employee 角色的账号生成待完善档案。
func (s *IdentityService) RegisterUser(ctx context.Context, cmd RegisterUserCommand) (*domain.User, error) {
	if cmd.Role != domain.RoleAdmin && cmd.Role != domain.RoleEmployee {
		return nil, fmt.Errorf("identity: unknown role %q", cmd.Role)
	}

	hash, err := bcrypt.GenerateFromPassword([]byte(cmd.Password), bcrypt.DefaultCost)
	if err != nil {
		return nil, fmt.Errorf("hash password: %w", err)
	}

	user := &domain.User{
		Username:     cmd.Username,
		Email:        cmd.Email,
		PasswordHash: string(hash),
		Role:         cmd.Role,
		CreatedAt:    time.Now(),
	}

	err = s.tx.InTx(ctx, func(store domain.Store) error {
		inserted, err := store.CreateUser(ctx, user)
		if err != nil {
			return err
		}
		if !inserted {
			return domain.ErrUserExists
		}

		return store.StageEvent(ctx, events.UserExchange, events.UserCreated{
			UserID:   user.ID,
			Username: user.Username,
			Email:    user.Email,
			Role:     user.Role,
		})
	})
	if err != nil {
		return nil, err
	}

	logger.Info(ctx, "user registered", "user_id", user.ID, "username", user.Username, "role", user.Role)
	return user, nil
}

// GetUser 按用户名查询账号
func (s *IdentityService) GetUser(ctx context.Context, username string) (*domain.User, error) {
	return s.reader.FindUserByUsername(ctx, username)
}
