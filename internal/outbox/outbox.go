// Package outbox 实现事务性 outbox：事件与业务状态变更在同一本地事务中
// 落库，后台中继把待发布行投递到 broker，收到确认后才标记已发送。
// 本地提交成功而事件丢失、或事件发出而本地回滚的分叉由此被排除。
package outbox

import (
	"context"
	"fmt"
	"time"

	"gorm.io/gorm"

	"github.com/wyfcoding/goerp/internal/events"
)

// 消息状态
const (
	StatusPending = "pending"
	StatusSent    = "sent"
	StatusFailed  = "failed"
)

// Message outbox 表模型。按服务各自建表，事件与业务行同库同事务。
type Message struct {
	ID            uint64    `gorm:"primaryKey;autoIncrement"`
	EventID       string    `gorm:"type:varchar(36);uniqueIndex"`
	EventType     string    `gorm:"type:varchar(100);index"`
	Exchange      string    `gorm:"type:varchar(100)"`
	Body          []byte    `gorm:"type:mediumblob"`
	Status        string    `gorm:"type:varchar(20);index:idx_outbox_claim;default:'pending'"`
	Attempts      int       `gorm:"default:0"`
	NextAttemptAt time.Time `gorm:"index:idx_outbox_claim"`
	LastError     string    `gorm:"type:varchar(500)"`
	CreatedAt     time.Time
	SentAt        *time.Time
}

// TableName 指定表名
func (Message) TableName() string {
	return "outbox_messages"
}

// Manager 把事件写入 outbox 表。必须在业务事务内调用。
type Manager struct {
	producer string
}

// NewManager 创建 outbox 管理器，producer 为本服务名，写入信封
func NewManager(producer string) *Manager {
	return &Manager{producer: producer}
}

// PublishInTx 在给定事务中暂存一条事件。事务提交即事件存在，
// 事务回滚即事件不存在，两者不可能分叉。
func (m *Manager) PublishInTx(ctx context.Context, tx *gorm.DB, exchange string, event events.DomainEvent) error {
	env, body, err := events.Wrap(m.producer, event, time.Now())
	if err != nil {
		return err
	}

	msg := Message{
		EventID:       env.EventID,
		EventType:     env.EventType,
		Exchange:      exchange,
		Body:          body,
		Status:        StatusPending,
		NextAttemptAt: time.Now(),
	}

	if err := tx.WithContext(ctx).Create(&msg).Error; err != nil {
		return fmt.Errorf("stage %s event on outbox: %w", env.EventType, err)
	}
	return nil
}
