// Package consumer 把总线投递分发到会计效果应用层。
package consumer

import (
	"context"

	"github.com/wyfcoding/goerp/internal/accounting/application"
	"github.com/wyfcoding/goerp/internal/events"
	"github.com/wyfcoding/goerp/pkg/logger"
	"github.com/wyfcoding/goerp/pkg/metrics"
	"github.com/wyfcoding/goerp/pkg/mq"
)

// EventHandler 会计服务的消息处理器。COGS 与采购两个队列共用一个实例。
type EventHandler struct {
	service *application.AccountingService
	metrics *metrics.Metrics
}

// NewEventHandler 创建处理器
func NewEventHandler(service *application.AccountingService, m *metrics.Metrics) *EventHandler {
	return &EventHandler{service: service, metrics: m}
}

// Handle 实现 mq.Handler
func (h *EventHandler) Handle(ctx context.Context, d mq.Delivery) error {
	env, event, err := events.Decode(d.Body)
	if err != nil {
		return mq.Permanent(err)
	}

	var outcome events.Outcome
	switch e := event.(type) {
	case *events.StockDeducted:
		outcome, err = h.service.ApplyStockDeducted(ctx, e)
	case *events.GoodsReceived:
		outcome, err = h.service.ApplyGoodsReceived(ctx, e)
	default:
		logger.Warn(ctx, "no accounting handler for event type",
			"event_type", env.EventType, "queue", d.Queue)
		return nil
	}
	if err != nil {
		return err
	}

	if outcome == events.OutcomeAlreadyApplied && h.metrics != nil {
		h.metrics.DuplicateDeliveriesTotal.WithLabelValues(d.Queue).Inc()
	}

	logger.Debug(ctx, "accounting event processed",
		"event_id", env.EventID, "event_type", env.EventType,
		"outcome", outcome.String(), "attempt", d.Attempts)
	return nil
}
