// MarketDataService 主程序
// 功能：聚合台股、美股、台指期货三类行情，提供快照查询、批量查询、历史、交易日历与汇率接口
// 架构：基于 DDD + 单飞刷新 + Kafka 推送
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

	"github.com/fynnwu/marketdata/internal/marketdata/application"
	"github.com/fynnwu/marketdata/internal/marketdata/domain"
	"github.com/fynnwu/marketdata/internal/marketdata/infrastructure/memcache"
	"github.com/fynnwu/marketdata/internal/marketdata/infrastructure/messaging"
	"github.com/fynnwu/marketdata/internal/marketdata/infrastructure/persistence/mysql"
	persistenceredis "github.com/fynnwu/marketdata/internal/marketdata/infrastructure/persistence/redis"
	upstream "github.com/fynnwu/marketdata/internal/marketdata/infrastructure/providers"
	"github.com/fynnwu/marketdata/internal/marketdata/interfaces/events"
	httphandler "github.com/fynnwu/marketdata/internal/marketdata/interfaces/http"
	"github.com/fynnwu/marketdata/pkg/cache"
	"github.com/fynnwu/marketdata/pkg/config"
	"github.com/fynnwu/marketdata/pkg/db"
	"github.com/fynnwu/marketdata/pkg/logger"
	"github.com/fynnwu/marketdata/pkg/metrics"
	"github.com/fynnwu/marketdata/pkg/middleware"
	"github.com/fynnwu/marketdata/pkg/mq"
	"github.com/fynnwu/marketdata/pkg/ratelimit"
)

var configPath = flag.String("config", "configs/marketdata/config.toml", "config file path")

func main() {
	flag.Parse()

	// 1. 加载配置
	cfg, err := config.Load(*configPath)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Failed to load config: %v\n", err)
		os.Exit(1)
	}

	// 2. 初始化日志
	loggerCfg := logger.Config{
		Level:      cfg.Logger.Level,
		Format:     cfg.Logger.Format,
		Output:     cfg.Logger.Output,
		FilePath:   cfg.Logger.FilePath,
		MaxSize:    cfg.Logger.MaxSize,
		MaxBackups: cfg.Logger.MaxBackups,
		MaxAge:     cfg.Logger.MaxAge,
		Compress:   cfg.Logger.Compress,
	}
	if err := logger.Init(loggerCfg); err != nil {
		fmt.Fprintf(os.Stderr, "Failed to initialize logger: %v\n", err)
		os.Exit(1)
	}

	ctx := context.Background()
	logger.Info(ctx, "Starting MarketDataService",
		"service", cfg.ServiceName,
		"version", cfg.Version,
		"environment", cfg.Environment,
	)

	// 3. 初始化指标
	metricsInstance := metrics.New(cfg.ServiceName)
	if err := metricsInstance.Register(); err != nil {
		logger.Fatal(ctx, "Failed to register metrics", "error", err)
	}
	if cfg.Metrics.Enabled {
		if err := metrics.StartHTTPServer(cfg.Metrics.Port, cfg.Metrics.Path); err != nil {
			logger.Fatal(ctx, "Failed to start metrics HTTP server", "error", err)
		}
	}

	// 4. 初始化数据库
	dbCfg := db.Config{
		Driver:             cfg.Database.Driver,
		DSN:                cfg.Database.DSN,
		MaxOpenConns:       cfg.Database.MaxOpenConns,
		MaxIdleConns:       cfg.Database.MaxIdleConns,
		ConnMaxLifetime:    cfg.Database.ConnMaxLifetime,
		LogEnabled:         cfg.Database.LogEnabled,
		SlowQueryThreshold: cfg.Database.SlowQueryThreshold,
	}
	database, err := db.Init(dbCfg)
	if err != nil {
		logger.Fatal(ctx, "Failed to initialize database", "error", err)
	}
	defer database.Close()

	if cfg.Environment == "dev" {
		if err := database.AutoMigrate(&domain.SnapshotRecord{}, &domain.Instrument{}); err != nil {
			logger.Error(ctx, "Failed to migrate database", "error", err)
		}
	}

	// 5. 初始化 Redis
	redisCfg := cache.Config{
		Host:         cfg.Redis.Host,
		Port:         cfg.Redis.Port,
		Password:     cfg.Redis.Password,
		DB:           cfg.Redis.DB,
		MaxPoolSize:  cfg.Redis.MaxPoolSize,
		ConnTimeout:  cfg.Redis.ConnTimeout,
		ReadTimeout:  cfg.Redis.ReadTimeout,
		WriteTimeout: cfg.Redis.WriteTimeout,
	}
	redisCache, err := cache.New(redisCfg)
	if err != nil {
		logger.Fatal(ctx, "Failed to initialize Redis", "error", err)
	}
	defer redisCache.Close()

	// 6. 初始化限流器
	rateLimiter := ratelimit.NewRedisRateLimiter(redisCache.GetClient())

	// 7. 初始化 Kafka
	kafkaCfg := mq.KafkaConfig{
		Brokers:        cfg.Kafka.Brokers,
		GroupID:        cfg.Kafka.GroupID,
		SessionTimeout: 30,
		MaxRetries:     3,
		RetryBackoff:   100,
	}
	producer, err := mq.NewProducer(kafkaCfg)
	if err != nil {
		logger.Fatal(ctx, "Failed to create Kafka producer", "error", err)
	}
	defer producer.Close()

	consumer, err := mq.NewConsumer(kafkaCfg, cfg.Kafka.QuoteTopic)
	if err != nil {
		logger.Fatal(ctx, "Failed to create Kafka consumer", "error", err)
	}
	defer consumer.Close()

	// 8. 绑定刷新策略与交易日历
	scheduler := domain.NewScheduler()
	watchlists := make(map[domain.AssetClass][]string)
	for class, clsCfg := range map[domain.AssetClass]config.AssetClassConfig{
		domain.AssetClassTwEquity: cfg.Market.TwEquity,
		domain.AssetClassUsEquity: cfg.Market.UsEquity,
		domain.AssetClassFuture:   cfg.Market.Future,
	} {
		calendar, err := domain.BuiltinCalendar(clsCfg.Calendar)
		if err != nil {
			logger.Fatal(ctx, "Failed to load trading calendar", "class", class, "error", err)
		}
		scheduler.Bind(class, domain.RefreshPolicy{
			FreshnessWindow: clsCfg.FreshnessWindowDuration(),
			FetchTimeout:    clsCfg.FetchTimeoutDuration(),
		}, calendar)
		watchlists[class] = clsCfg.Watchlist
	}

	// 9. 组装上游适配器，内层限速、外层熔断
	providers := []domain.Provider{
		decorateProvider(
			upstream.NewTWSEProvider(cfg.Market.TwEquity.Endpoint, cfg.Market.TwEquity.FetchTimeoutDuration()),
			cfg.Market.TwEquity, metricsInstance),
		decorateProvider(
			upstream.NewYahooProvider(),
			cfg.Market.UsEquity, metricsInstance),
		decorateProvider(
			upstream.NewTAIFEXProvider(cfg.Market.Future.Endpoint, cfg.Market.Future.FetchTimeoutDuration()),
			cfg.Market.Future, metricsInstance),
	}

	// 10. 初始化仓储与事件发布者
	historyRepo := mysql.NewSnapshotHistoryRepository(database)
	instrumentRepo := mysql.NewInstrumentRepository(database)
	mirror := persistenceredis.NewSnapshotMirror(redisCache.GetClient(),
		time.Duration(cfg.Redis.SnapshotTTL)*time.Second)
	publisher := messaging.NewKafkaPricePublisher(producer, cfg.Kafka.PriceUpdatedTopic)

	// 11. 初始化汇率服务与应用服务
	fxService := application.NewFXService(
		upstream.NewERAPIRateSource(cfg.FX.Endpoint, 10*time.Second),
		time.Duration(cfg.FX.CacheTTL)*time.Second,
	)
	svc := application.NewMarketDataService(application.Dependencies{
		Cache:       memcache.New(),
		Scheduler:   scheduler,
		Providers:   providers,
		History:     historyRepo,
		Instruments: instrumentRepo,
		Mirror:      mirror,
		Publisher:   publisher,
		FX:          fxService,
		Metrics:     metricsInstance,
		Watchlists:  watchlists,
		ListLimit:   cfg.Market.ListConcurrency,
	})

	// 12. 启动报价推送消费者
	consumerCtx, stopConsumer := context.WithCancel(ctx)
	defer stopConsumer()
	dlq := mq.NewDeadLetterQueue(producer, cfg.Kafka.QuoteTopic+".dlq")
	pushHandler := events.NewQuotePushHandler(svc, dlq, metricsInstance)
	consumerDone := make(chan struct{})
	go func() {
		defer close(consumerDone)
		pushHandler.Subscribe(consumerCtx, consumer)
	}()

	// 13. 启动 HTTP 服务器
	httpServer := createHTTPServer(cfg, svc, fxService, rateLimiter)
	go func() {
		logger.Info(ctx, "Starting HTTP server", "addr", httpServer.Addr)
		if err := httpServer.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			logger.Fatal(ctx, "HTTP server error", "error", err)
		}
	}()

	// 14. 优雅关停
	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, syscall.SIGINT, syscall.SIGTERM)
	<-sigChan

	logger.Info(ctx, "Shutting down MarketDataService")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := httpServer.Shutdown(shutdownCtx); err != nil {
		logger.Error(ctx, "HTTP server shutdown error", "error", err)
	}

	stopConsumer()
	if err := consumer.Close(); err != nil {
		logger.Error(ctx, "Kafka consumer close error", "error", err)
	}
	<-consumerDone

	logger.Info(ctx, "MarketDataService stopped")
}

// decorateProvider 给裸适配器套上限速与熔断
func decorateProvider(p domain.Provider, clsCfg config.AssetClassConfig, m *metrics.Metrics) domain.Provider {
	paced := upstream.NewPacedProvider(p, clsCfg.UpstreamQPS, int(clsCfg.UpstreamQPS))
	return upstream.NewBreakerProvider(paced, m)
}

// createHTTPServer 创建 HTTP 服务器
func createHTTPServer(cfg *config.Config, svc *application.MarketDataService, fx *application.FXService, rateLimiter ratelimit.RateLimiter) *http.Server {
	gin.SetMode(gin.ReleaseMode)
	if cfg.Environment == "dev" {
		gin.SetMode(gin.DebugMode)
	}

	router := gin.New()
	router.Use(middleware.GinLoggingMiddleware())
	router.Use(middleware.GinRecoveryMiddleware())
	router.Use(middleware.GinCORSMiddleware())
	router.Use(middleware.RateLimitMiddleware(rateLimiter, cfg.RateLimit))

	// 健康检查不做鉴权
	router.GET("/health", func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{
			"status":    "healthy",
			"service":   cfg.ServiceName,
			"timestamp": time.Now().Unix(),
		})
	})

	api := router.Group("")
	if cfg.Auth.APIKey != "" {
		api.Use(middleware.APIKeyMiddleware(cfg.Auth.APIKey))
	}
	handler := httphandler.NewMarketDataHandler(svc, fx)
	handler.RegisterRoutes(api)

	return &http.Server{
		Addr:         fmt.Sprintf("%s:%d", cfg.HTTP.Host, cfg.HTTP.Port),
		Handler:      router,
		ReadTimeout:  time.Duration(cfg.HTTP.ReadTimeout) * time.Second,
		WriteTimeout: time.Duration(cfg.HTTP.WriteTimeout) * time.Second,
	}
}
