// Package consumer 把总线投递分发到库存效果应用层。
package consumer

import (
	"context"

	"github.com/wyfcoding/goerp/internal/events"
	"github.com/wyfcoding/goerp/internal/inventory/application"
	"github.com/wyfcoding/goerp/pkg/logger"
	"github.com/wyfcoding/goerp/pkg/metrics"
	"github.com/wyfcoding/goerp/pkg/mq"
)

// EventHandler 库存服务的消息处理器。采购与销售两个队列共用一个实例。
type EventHandler struct {
	service *application.InventoryService
	metrics *metrics.Metrics
}

// NewEventHandler 创建处理器
func NewEventHandler(service *application.InventoryService, m *metrics.Metrics) *EventHandler {
	return &EventHandler{service: service, metrics: m}
}

// Handle 实现 mq.Handler。解码失败是永久错误；
// fanout 会把 exchange 上的所有事件都送进来，未注册的类型直接确认。
func (h *EventHandler) Handle(ctx context.Context, d mq.Delivery) error {
	env, event, err := events.Decode(d.Body)
	if err != nil {
		return mq.Permanent(err)
	}

	var outcome events.Outcome
	switch e := event.(type) {
	case *events.GoodsReceived:
		outcome, err = h.service.ApplyGoodsReceived(ctx, e)
	case *events.SalesOrderCreated:
		outcome, err = h.service.ApplySalesOrderCreated(ctx, e)
	default:
		logger.Warn(ctx, "no inventory handler for event type",
			"event_type", env.EventType, "queue", d.Queue)
		return nil
	}
	if err != nil {
		return err
	}

	if outcome == events.OutcomeAlreadyApplied && h.metrics != nil {
		h.metrics.DuplicateDeliveriesTotal.WithLabelValues(d.Queue).Inc()
	}

	logger.Debug(ctx, "inventory event processed",
		"event_id", env.EventID, "event_type", env.EventType,
		"outcome", outcome.String(), "attempt", d.Attempts)
	return nil
}
