// Package consumer 把总线投递分发到人力效果应用层。
package consumer

import (
	"context"

	"github.com/wyfcoding/goerp/internal/events"
	"github.com/wyfcoding/goerp/internal/hr/application"
	"github.com/wyfcoding/goerp/pkg/logger"
	"github.com/wyfcoding/goerp/pkg/metrics"
	"github.com/wyfcoding/goerp/pkg/mq"
)

// EventHandler 人力服务的消息处理器，消费身份侧的账号事件。
type EventHandler struct {
	service *application.HRService
	metrics *metrics.Metrics
}

// NewEventHandler 创建处理器
func NewEventHandler(service *application.HRService, m *metrics.Metrics) *EventHandler {
	return &EventHandler{service: service, metrics: m}
}

// Handle 实现 mq.Handler。解码失败是永久错误。
func (h *EventHandler) Handle(ctx context.Context, d mq.Delivery) error {
	env, event, err := events.Decode(d.Body)
	if err != nil {
		return mq.Permanent(err)
	}

	var outcome events.Outcome
	switch e := event.(type) {
	case *events.UserCreated:
		outcome, err = h.service.ApplyUserCreated(ctx, e)
	default:
		logger.Warn(ctx, "no hr handler for event type",
			"event_type", env.EventType, "queue", d.Queue)
		return nil
	}
	if err != nil {
		return err
	}

	if outcome == events.OutcomeAlreadyApplied && h.metrics != nil {
		h.metrics.DuplicateDeliveriesTotal.WithLabelValues(d.Queue).Inc()
	}

	logger.Debug(ctx, "hr event processed",
		"event_id", env.EventID, "event_type", env.EventType,
		"outcome", outcome.String(), "attempt", d.Attempts)
	return nil
}
