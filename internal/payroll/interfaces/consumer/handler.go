// Package consumer 把总线投递分发到薪酬效果应用层。
package consumer

import (
	"context"

	"github.com/wyfcoding/goerp/internal/events"
	"github.com/wyfcoding/goerp/internal/payroll/application"
	"github.com/wyfcoding/goerp/pkg/logger"
	"github.com/wyfcoding/goerp/pkg/metrics"
	"github.com/wyfcoding/goerp/pkg/mq"
)

// EventHandler 薪酬服务的消息处理器，消费人力侧的员工事件。
type EventHandler struct {
	service *application.PayrollService
	metrics *metrics.Metrics
}

// NewEventHandler 创建处理器
func NewEventHandler(service *application.PayrollService, m *metrics.Metrics) *EventHandler {
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
	case *events.EmployeeCreated:
		outcome, err = h.service.ApplyEmployeeCreated(ctx, e)
	default:
		logger.Warn(ctx, "no payroll handler for event type",
			"event_type", env.EventType, "queue", d.Queue)
		return nil
	}
	if err != nil {
		return err
	}

	if outcome == events.OutcomeAlreadyApplied && h.metrics != nil {
		h.metrics.DuplicateDeliveriesTotal.WithLabelValues(d.Queue).Inc()
	}

	logger.Debug(ctx, "payroll event processed",
		"event_id", env.EventID, "event_type", env.EventType,
		"outcome", outcome.String(), "attempt", d.Attempts)
	return nil
}
