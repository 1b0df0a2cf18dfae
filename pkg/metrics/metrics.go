// Package metrics 提供 Prometheus 指标与 HTTP 暴露
package metrics

import (
	"context"
	"fmt"
	"net/http"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/wyfcoding/goerp/pkg/logger"
)

// Metrics 指标集合
type Metrics struct {
	// Outbox 已发布消息数，按 exchange 维度
	OutboxPublishedTotal *prometheus.CounterVec
	// Outbox 发布失败次数
	OutboxPublishFailures prometheus.Counter
	// Outbox 待发布积压条数
	OutboxPendingGauge prometheus.Gauge

	// 消费消息数，按 queue/outcome（ack, requeue, dead_letter）维度
	MessagesConsumedTotal *prometheus.CounterVec
	// 单条消息处理耗时
	MessageHandleDuration *prometheus.HistogramVec
	// 重复投递被幂等层吸收的次数
	DuplicateDeliveriesTotal *prometheus.CounterVec

	// HTTP 请求计数
	HTTPRequestsTotal prometheus.Counter
	// HTTP 请求耗时
	HTTPRequestDuration prometheus.Histogram

	registry *prometheus.Registry
}

// New 创建指标实例
func New(serviceName string) *Metrics {
	m := &Metrics{
		OutboxPublishedTotal: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "erp",
			Subsystem: serviceName,
			Name:      "outbox_published_total",
			Help:      "Total events published from the outbox",
		}, []string{"exchange"}),
		OutboxPublishFailures: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: "erp",
			Subsystem: serviceName,
			Name:      "outbox_publish_failures_total",
			Help:      "Total outbox publish attempts that failed",
		}),
		OutboxPendingGauge: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: "erp",
			Subsystem: serviceName,
			Name:      "outbox_pending",
			Help:      "Outbox rows waiting to be published",
		}),
		MessagesConsumedTotal: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "erp",
			Subsystem: serviceName,
			Name:      "messages_consumed_total",
			Help:      "Total messages consumed, by queue and outcome",
		}, []string{"queue", "outcome"}),
		MessageHandleDuration: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: "erp",
			Subsystem: serviceName,
			Name:      "message_handle_duration_seconds",
			Help:      "Message handler duration in seconds",
			Buckets:   prometheus.DefBuckets,
		}, []string{"queue"}),
		DuplicateDeliveriesTotal: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "erp",
			Subsystem: serviceName,
			Name:      "duplicate_deliveries_total",
			Help:      "Redeliveries absorbed by the idempotency layer",
		}, []string{"queue"}),
		HTTPRequestsTotal: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: "erp",
			Subsystem: serviceName,
			Name:      "http_requests_total",
			Help:      "Total HTTP requests",
		}),
		HTTPRequestDuration: prometheus.NewHistogram(prometheus.HistogramOpts{
			Namespace: "erp",
			Subsystem: serviceName,
			Name:      "http_request_duration_seconds",
			Help:      "HTTP request duration in seconds",
			Buckets:   prometheus.DefBuckets,
		}),
		registry: prometheus.NewRegistry(),
	}

	m.registry.MustRegister(
		m.OutboxPublishedTotal,
		m.OutboxPublishFailures,
		m.OutboxPendingGauge,
		m.MessagesConsumedTotal,
		m.MessageHandleDuration,
		m.DuplicateDeliveriesTotal,
		m.HTTPRequestsTotal,
		m.HTTPRequestDuration,
	)

	return m
}

// ExposeHTTP 在独立端口的后台 goroutine 中暴露 /metrics，立即返回，
// 不阻塞调用方后续的启动步骤
func (m *Metrics) ExposeHTTP(port int) {
	mux := http.NewServeMux()
	mux.Handle("/metrics", promhttp.HandlerFor(m.registry, promhttp.HandlerOpts{}))

	addr := fmt.Sprintf(":%d", port)
	logger.Info(context.Background(), "metrics endpoint starting", "addr", addr)

	go func() {
		if err := http.ListenAndServe(addr, mux); err != nil {
			logger.Error(context.Background(), "metrics endpoint exited", "error", err)
		}
	}()
}
