// Package metrics 提供 Prometheus helper，包含常用 counter/gauge/histogram 模板
package metrics

import (
	"context"
	"fmt"
	"net/http"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/fynnwu/marketdata/pkg/logger"
)

// Metrics 指标集合
type Metrics struct {
	// HTTP 请求计数
	HTTPRequestsTotal prometheus.Counter
	// HTTP 请求耗时
	HTTPRequestDuration prometheus.Histogram

	// 快照缓存命中计数（按资产类别）
	CacheHitsTotal *prometheus.CounterVec
	// 快照缓存未命中计数（按资产类别）
	CacheMissesTotal *prometheus.CounterVec
	// 降级返回过期快照计数（按资产类别）
	StaleServedTotal *prometheus.CounterVec
	// 缓存中的快照数量
	SnapshotsCached prometheus.Gauge

	// 刷新结果计数（按资产类别与结果）
	RefreshTotal *prometheus.CounterVec
	// 刷新耗时（按资产类别）
	RefreshDuration *prometheus.HistogramVec
	// 等待他人刷新的耗时
	RefreshWaitDuration prometheus.Histogram

	// 上游请求计数（按 provider 与结果）
	UpstreamRequestsTotal *prometheus.CounterVec
	// 上游请求耗时（按 provider）
	UpstreamRequestDuration *prometheus.HistogramVec
	// 熔断器状态（按 provider：0 closed，1 half-open，2 open）
	BreakerState *prometheus.GaugeVec

	// 价格事件发布计数
	EventsPublishedTotal prometheus.Counter
	// 价格事件消费计数
	EventsConsumedTotal prometheus.Counter
}

// New 创建指标实例
func New(serviceName string) *Metrics {
	return &Metrics{
		// HTTP 指标
		HTTPRequestsTotal: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: "trading",
			Subsystem: serviceName,
			Name:      "http_requests_total",
			Help:      "Total HTTP requests",
		}),
		HTTPRequestDuration: prometheus.NewHistogram(prometheus.HistogramOpts{
			Namespace: "trading",
			Subsystem: serviceName,
			Name:      "http_request_duration_seconds",
			Help:      "HTTP request duration in seconds",
			Buckets:   prometheus.DefBuckets,
		}),

		// 缓存指标
		CacheHitsTotal: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "trading",
			Subsystem: serviceName,
			Name:      "cache_hits_total",
			Help:      "Snapshot cache hits",
		}, []string{"asset_class"}),
		CacheMissesTotal: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "trading",
			Subsystem: serviceName,
			Name:      "cache_misses_total",
			Help:      "Snapshot cache misses",
		}, []string{"asset_class"}),
		StaleServedTotal: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "trading",
			Subsystem: serviceName,
			Name:      "stale_served_total",
			Help:      "Snapshots served stale after refresh failure or contention",
		}, []string{"asset_class"}),
		SnapshotsCached: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: "trading",
			Subsystem: serviceName,
			Name:      "snapshots_cached",
			Help:      "Number of snapshots currently cached",
		}),

		// 刷新指标
		RefreshTotal: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "trading",
			Subsystem: serviceName,
			Name:      "refresh_total",
			Help:      "Snapshot refresh attempts by outcome",
		}, []string{"asset_class", "outcome"}),
		RefreshDuration: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: "trading",
			Subsystem: serviceName,
			Name:      "refresh_duration_seconds",
			Help:      "Snapshot refresh duration in seconds",
			Buckets:   prometheus.DefBuckets,
		}, []string{"asset_class"}),
		RefreshWaitDuration: prometheus.NewHistogram(prometheus.HistogramOpts{
			Namespace: "trading",
			Subsystem: serviceName,
			Name:      "refresh_wait_duration_seconds",
			Help:      "Time spent waiting for an in-flight refresh",
			Buckets:   prometheus.DefBuckets,
		}),

		// 上游指标
		UpstreamRequestsTotal: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "trading",
			Subsystem: serviceName,
			Name:      "upstream_requests_total",
			Help:      "Upstream fetches by provider and outcome",
		}, []string{"provider", "outcome"}),
		UpstreamRequestDuration: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: "trading",
			Subsystem: serviceName,
			Name:      "upstream_request_duration_seconds",
			Help:      "Upstream fetch duration in seconds",
			Buckets:   prometheus.DefBuckets,
		}, []string{"provider"}),
		BreakerState: prometheus.NewGaugeVec(prometheus.GaugeOpts{
			Namespace: "trading",
			Subsystem: serviceName,
			Name:      "breaker_state",
			Help:      "Circuit breaker state per provider (0 closed, 1 half-open, 2 open)",
		}, []string{"provider"}),

		// 事件指标
		EventsPublishedTotal: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: "trading",
			Subsystem: serviceName,
			Name:      "events_published_total",
			Help:      "Price update events published",
		}),
		EventsConsumedTotal: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: "trading",
			Subsystem: serviceName,
			Name:      "events_consumed_total",
			Help:      "Pushed quote events consumed",
		}),
	}
}

// Register 注册所有指标
func (m *Metrics) Register() error {
	metrics := []prometheus.Collector{
		m.HTTPRequestsTotal,
		m.HTTPRequestDuration,
		m.CacheHitsTotal,
		m.CacheMissesTotal,
		m.StaleServedTotal,
		m.SnapshotsCached,
		m.RefreshTotal,
		m.RefreshDuration,
		m.RefreshWaitDuration,
		m.UpstreamRequestsTotal,
		m.UpstreamRequestDuration,
		m.BreakerState,
		m.EventsPublishedTotal,
		m.EventsConsumedTotal,
	}

	for _, metric := range metrics {
		if err := prometheus.DefaultRegisterer.Register(metric); err != nil {
			logger.Error(context.Background(), "Failed to register metric", "error", err)
			return err
		}
	}

	logger.Info(context.Background(), "Metrics registered successfully")
	return nil
}

// StartHTTPServer 启动 Prometheus HTTP 服务器
func StartHTTPServer(port int, path string) error {
	if path == "" {
		path = "/metrics"
	}

	http.Handle(path, promhttp.Handler())

	addr := fmt.Sprintf(":%d", port)
	logger.Info(context.Background(), "Starting Prometheus HTTP server", "addr", addr, "path", path)

	go func() {
		if err := http.ListenAndServe(addr, nil); err != nil {
			logger.Error(context.Background(), "Failed to start Prometheus HTTP server", "error", err)
		}
	}()

	return nil
}
