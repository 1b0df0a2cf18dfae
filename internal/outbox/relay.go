package outbox

import (
	"context"
	"sync"
	"time"

	amqp "github.com/rabbitmq/amqp091-go"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	"github.com/wyfcoding/goerp/pkg/logger"
	"github.com/wyfcoding/goerp/pkg/metrics"
)

// BusPublisher 中继依赖的发布端，Publish 返回 nil 即表示 broker 已确认
type BusPublisher interface {
	Publish(ctx context.Context, exchange string, messageID string, body []byte, headers amqp.Table) error
}

// RelayConfig 中继配置
type RelayConfig struct {
	// PollInterval 轮询间隔
	PollInterval time.Duration
	// BatchSize 每批领取条数
	BatchSize int
	// MaxAttempts 单条消息最大发布尝试次数，超限标记 failed 并告警
	MaxAttempts int
}

// Relay 后台中继，轮询 outbox 表并把待发布行投递到 broker。
// 多实例安全：行以 SKIP LOCKED 方式领取。
type Relay struct {
	db      *gorm.DB
	pub     BusPublisher
	cfg     RelayConfig
	metrics *metrics.Metrics

	// countPending 默认指向 PendingCount，测试可替换
	countPending func(ctx context.Context) (int64, error)

	wg   sync.WaitGroup
	quit chan struct{}
	once sync.Once
}

// NewRelay 创建中继
func NewRelay(db *gorm.DB, pub BusPublisher, cfg RelayConfig, m *metrics.Metrics) *Relay {
	if cfg.PollInterval <= 0 {
		cfg.PollInterval = 500 * time.Millisecond
	}
	if cfg.BatchSize <= 0 {
		cfg.BatchSize = 100
	}
	if cfg.MaxAttempts <= 0 {
		cfg.MaxAttempts = 10
	}
	r := &Relay{
		db:      db,
		pub:     pub,
		cfg:     cfg,
		metrics: m,
		quit:    make(chan struct{}),
	}
	r.countPending = r.PendingCount
	return r
}

// Start 启动轮询循环
func (r *Relay) Start(ctx context.Context) {
	r.wg.Add(1)
	go func() {
		defer r.wg.Done()
		logger.Info(ctx, "outbox relay started",
			"interval", r.cfg.PollInterval, "batch_size", r.cfg.BatchSize)

		ticker := time.NewTicker(r.cfg.PollInterval)
		defer ticker.Stop()

		for {
			select {
			case <-ticker.C:
				if err := r.processBatch(ctx); err != nil {
					logger.Error(ctx, "outbox batch failed", "error", err)
				}
				r.samplePending(ctx)
			case <-r.quit:
				logger.Info(ctx, "outbox relay shutting down")
				return
			case <-ctx.Done():
				return
			}
		}
	}()
}

// Stop 停止中继并等待当前批次完成
func (r *Relay) Stop() {
	r.once.Do(func() { close(r.quit) })
	r.wg.Wait()
}

// processBatch 领取一批待发布消息并逐条发布。
// 发布与状态更新在同一事务中：行被 SKIP LOCKED 锁住，其他中继实例不会重复领取。
func (r *Relay) processBatch(ctx context.Context) error {
	return r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		var batch []Message
		err := tx.
			Clauses(clause.Locking{Strength: "UPDATE", Options: "SKIP LOCKED"}).
			Where("status = ? AND next_attempt_at <= ?", StatusPending, time.Now()).
			Order("id").
			Limit(r.cfg.BatchSize).
			Find(&batch).Error
		if err != nil {
			return err
		}
		if len(batch) == 0 {
			return nil
		}

		for i := range batch {
			r.publishOne(ctx, tx, &batch[i])
		}
		return nil
	})
}

// publishOne 发布单条消息并落盘其结果状态
func (r *Relay) publishOne(ctx context.Context, tx *gorm.DB, msg *Message) {
	err := r.pub.Publish(ctx, msg.Exchange, msg.EventID, msg.Body, nil)
	if err == nil {
		now := time.Now()
		if dbErr := tx.Model(msg).Updates(map[string]any{
			"status":  StatusSent,
			"sent_at": &now,
		}).Error; dbErr != nil {
			logger.Error(ctx, "failed to mark outbox message sent",
				"event_id", msg.EventID, "error", dbErr)
		}
		if r.metrics != nil {
			r.metrics.OutboxPublishedTotal.WithLabelValues(msg.Exchange).Inc()
		}
		logger.Debug(ctx, "event published",
			"event_id", msg.EventID, "event_type", msg.EventType, "exchange", msg.Exchange)
		return
	}

	if r.metrics != nil {
		r.metrics.OutboxPublishFailures.Inc()
	}

	attempts := msg.Attempts + 1
	updates := map[string]any{
		"attempts":        attempts,
		"last_error":      truncate(err.Error(), 500),
		"next_attempt_at": time.Now().Add(backoff(attempts)),
	}

	if attempts >= r.cfg.MaxAttempts {
		// 超限后不再自动重试，留给运维人工处置；丢消息必须是看得见的
		updates["status"] = StatusFailed
		logger.Error(ctx, "outbox message exhausted publish attempts",
			"event_id", msg.EventID, "event_type", msg.EventType,
			"exchange", msg.Exchange, "attempts", attempts, "error", err)
	} else {
		logger.Warn(ctx, "outbox publish failed, will retry",
			"event_id", msg.EventID, "exchange", msg.Exchange,
			"attempt", attempts, "error", err)
	}

	if dbErr := tx.Model(msg).Updates(updates).Error; dbErr != nil {
		logger.Error(ctx, "failed to record outbox publish failure",
			"event_id", msg.EventID, "error", dbErr)
	}
}

// samplePending 在每个轮询周期把待发布积压写入指标。
// 查询失败时保留上一次的值，积压水位宁可过期也不归零。
func (r *Relay) samplePending(ctx context.Context) {
	if r.metrics == nil {
		return
	}
	count, err := r.countPending(ctx)
	if err != nil {
		logger.Warn(ctx, "failed to sample outbox backlog", "error", err)
		return
	}
	r.metrics.OutboxPendingGauge.Set(float64(count))
}

// PendingCount 返回待发布条数，供指标采集
func (r *Relay) PendingCount(ctx context.Context) (int64, error) {
	var count int64
	err := r.db.WithContext(ctx).Model(&Message{}).
		Where("status = ?", StatusPending).
		Count(&count).Error
	return count, err
}

// backoff 发布失败的退避间隔，指数增长封顶一分钟
func backoff(attempts int) time.Duration {
	d := time.Second << min(attempts, 6)
	if d > time.Minute {
		d = time.Minute
	}
	return d
}

func truncate(s string, n int) string {
	if len(s) <= n {
		return s
	}
	return s[:n]
}
