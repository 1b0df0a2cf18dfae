// InventoryService 主程序
// 功能：维护产品与库存水平，消费采购入库与销售订单事实，
// 广播库存变动与销售成本
package main

import (
	"context"
	"flag"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/gin-gonic/gin"
	"golang.org/x/sync/errgroup"

	"github.com/wyfcoding/goerp/internal/events"
	"github.com/wyfcoding/goerp/internal/inventory/application"
	invmysql "github.com/wyfcoding/goerp/internal/inventory/infrastructure/persistence/mysql"
	consumerhandler "github.com/wyfcoding/goerp/internal/inventory/interfaces/consumer"
	httphandler "github.com/wyfcoding/goerp/internal/inventory/interfaces/http"
	"github.com/wyfcoding/goerp/internal/outbox"
	"github.com/wyfcoding/goerp/pkg/config"
	"github.com/wyfcoding/goerp/pkg/db"
	"github.com/wyfcoding/goerp/pkg/logger"
	"github.com/wyfcoding/goerp/pkg/metrics"
	"github.com/wyfcoding/goerp/pkg/middleware"
	"github.com/wyfcoding/goerp/pkg/mq"
)

func main() {
	// 1. 加载配置
	configPath := flag.String("config", "configs/inventory/config.toml", "配置文件路径")
	flag.Parse()

	cfg, err := config.Load(*configPath)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Failed to load config: %v\n", err)
		os.Exit(1)
	}

	// 2. 初始化日志
	if err := logger.Init(cfg.Logger); err != nil {
		fmt.Fprintf(os.Stderr, "Failed to initialize logger: %v\n", err)
		os.Exit(1)
	}

	ctx := context.Background()
	logger.Info(ctx, "Starting InventoryService",
		"service", cfg.ServiceName,
		"version", cfg.Version,
		"environment", cfg.Environment,
	)

	// 3. 初始化数据库
	database, err := db.Init(db.Config{
		Driver:             cfg.Database.Driver,
		DSN:                cfg.Database.DSN,
		MaxOpenConns:       cfg.Database.MaxOpenConns,
		MaxIdleConns:       cfg.Database.MaxIdleConns,
		ConnMaxLifetime:    cfg.Database.ConnMaxLifetime,
		LogEnabled:         cfg.Database.LogEnabled,
		SlowQueryThreshold: cfg.Database.SlowQueryThreshold,
	})
	if err != nil {
		logger.Fatal(ctx, "Failed to initialize database", "error", err)
	}
	defer database.Close()

	// 开发环境自动建表，生产环境走迁移脚本
	if cfg.Environment == "dev" {
		if err := database.AutoMigrate(
			&invmysql.ProductModel{},
			&invmysql.GoodsReceiptModel{},
			&invmysql.StockMovementModel{},
			&invmysql.ShortfallModel{},
			&outbox.Message{},
		); err != nil {
			logger.Fatal(ctx, "Failed to auto migrate", "error", err)
		}
	}

	// 4. 初始化指标
	metricsInstance := metrics.New("inventory")
	if cfg.Metrics.Enabled {
		metricsInstance.ExposeHTTP(cfg.Metrics.Port)
	}

	// 5. 连接消息代理
	broker := mq.NewConnection(mq.ConnectionConfig{
		URL:            cfg.RabbitMQ.URL,
		ReconnectDelay: time.Duration(cfg.RabbitMQ.ReconnectDelay) * time.Second,
		MaxReconnects:  cfg.RabbitMQ.MaxReconnects,
	})
	if err := broker.Connect(); err != nil {
		logger.Fatal(ctx, "Failed to connect to broker", "error", err)
	}
	defer broker.Close()

	publisher := mq.NewPublisher(broker)
	defer publisher.Close()

	// 6. 启动 outbox 中继
	outboxMgr := outbox.NewManager(cfg.ServiceName)
	relay := outbox.NewRelay(database.DB, publisher, outbox.RelayConfig{
		PollInterval: time.Duration(cfg.Outbox.PollInterval) * time.Millisecond,
		BatchSize:    cfg.Outbox.BatchSize,
		MaxAttempts:  cfg.Outbox.MaxAttempts,
	}, metricsInstance)
	relay.Start(ctx)
	defer relay.Stop()

	// 7. 初始化应用服务
	txRunner := invmysql.NewTxRunner(database.DB, outboxMgr)
	reader := invmysql.NewReader(database.DB)
	inventoryService := application.NewInventoryService(txRunner, reader)

	// 8. 启动消费者：采购入库与销售订单两个队列
	eventHandler := consumerhandler.NewEventHandler(inventoryService, metricsInstance)

	procurementConsumer := mq.NewConsumer(broker, publisher, mq.ConsumerConfig{
		Queue:         "inventory.procurement",
		Exchange:      events.ProcurementExchange,
		MaxAttempts:   cfg.Consumer.MaxAttempts,
		HandleTimeout: time.Duration(cfg.Consumer.HandleTimeout) * time.Second,
	}, eventHandler.Handle, metricsInstance)

	salesConsumer := mq.NewConsumer(broker, publisher, mq.ConsumerConfig{
		Queue:         "inventory.sales",
		Exchange:      events.SalesExchange,
		MaxAttempts:   cfg.Consumer.MaxAttempts,
		HandleTimeout: time.Duration(cfg.Consumer.HandleTimeout) * time.Second,
	}, eventHandler.Handle, metricsInstance)

	consumerCtx, stopConsumers := context.WithCancel(ctx)
	var g errgroup.Group
	g.Go(func() error { return procurementConsumer.Start(consumerCtx) })
	g.Go(func() error { return salesConsumer.Start(consumerCtx) })

	// 9. 启动 HTTP 服务器
	httpServer := createHTTPServer(cfg, inventoryService, metricsInstance)
	go func() {
		logger.Info(ctx, "Starting HTTP server", "addr", httpServer.Addr)
		if err := httpServer.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			logger.Fatal(ctx, "HTTP server error", "error", err)
		}
	}()

	// 10. 优雅关停
	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, syscall.SIGINT, syscall.SIGTERM)
	<-sigChan

	logger.Info(ctx, "Shutting down InventoryService")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := httpServer.Shutdown(shutdownCtx); err != nil {
		logger.Error(ctx, "HTTP server shutdown error", "error", err)
	}

	// 先停消费者（等在途消息处理完），再停中继
	stopConsumers()
	procurementConsumer.Stop()
	salesConsumer.Stop()
	_ = g.Wait()
	relay.Stop()

	logger.Info(ctx, "InventoryService stopped")
}

// createHTTPServer 创建 HTTP 服务器
func createHTTPServer(cfg *config.Config, service *application.InventoryService, m *metrics.Metrics) *http.Server {
	if cfg.Environment == "prod" {
		gin.SetMode(gin.ReleaseMode)
	}
	router := gin.New()
	router.Use(middleware.GinLoggingMiddleware())
	router.Use(middleware.GinRecoveryMiddleware())
	router.Use(middleware.GinCORSMiddleware())
	router.Use(middleware.GinMetricsMiddleware(m))

	handler := httphandler.NewInventoryHandler(service)
	handler.RegisterRoutes(router.Group("/api/v1"))

	router.GET("/health", func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{
			"status":    "healthy",
			"service":   cfg.ServiceName,
			"timestamp": time.Now().Unix(),
		})
	})

	return &http.Server{
		Addr:         fmt.Sprintf("%s:%d", cfg.HTTP.Host, cfg.HTTP.Port),
		Handler:      router,
		ReadTimeout:  time.Duration(cfg.HTTP.ReadTimeout) * time.Second,
		WriteTimeout: time.Duration(cfg.HTTP.WriteTimeout) * time.Second,
	}
}
