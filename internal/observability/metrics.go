package observability

import (
	"context"
	"net/http"
	"strconv"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/redis/go-redis/v9"
	"gorm.io/gorm"

	"github.com/yungbote/artforge-backend/internal/platform/logger"
)

const namespace = "artforge"

// Metrics owns a private registry. A nil *Metrics is valid and records nothing.
type Metrics struct {
	registry *prometheus.Registry

	apiRequests *prometheus.CounterVec
	apiLatency  *prometheus.HistogramVec
	apiInflight prometheus.Gauge

	tasks         *prometheus.CounterVec
	stageLatency  *prometheus.HistogramVec
	activeTask    prometheus.Gauge
	providerCalls *prometheus.CounterVec
	providerTime  *prometheus.HistogramVec
	uploads       *prometheus.CounterVec
	uploadBytes   *prometheus.CounterVec
	outcomes      *prometheus.CounterVec
	collection    *prometheus.GaugeVec

	dbStats   *prometheus.GaugeVec
	redisUp   prometheus.Gauge
	redisPing prometheus.Gauge
}

func New() *Metrics {
	reg := prometheus.NewRegistry()
	reg.MustRegister(collectors.NewGoCollector(), collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}))
	f := promauto.With(reg)

	return &Metrics{
		registry: reg,
		apiRequests: f.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace, Subsystem: "api", Name: "requests_total",
			Help: "Total API requests by method/route/status.",
		}, []string{"method", "route", "status"}),
		apiLatency: f.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: namespace, Subsystem: "api", Name: "request_duration_seconds",
			Help:    "API request latency in seconds.",
			Buckets: []float64{0.005, 0.01, 0.025, 0.05, 0.1, 0.25, 0.5, 1, 2, 5},
		}, []string{"method", "route", "status"}),
		apiInflight: f.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace, Subsystem: "api", Name: "inflight_requests",
			Help: "In-flight API requests.",
		}),
		tasks: f.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace, Subsystem: "generation", Name: "tasks_total",
			Help: "Generation tasks by terminal status.",
		}, []string{"status"}),
		stageLatency: f.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: namespace, Subsystem: "generation", Name: "stage_duration_seconds",
			Help:    "Duration of each orchestration stage.",
			Buckets: []float64{0.1, 0.5, 1, 2, 5, 10, 30, 60, 120, 300},
		}, []string{"stage", "status"}),
		activeTask: f.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace, Subsystem: "generation", Name: "active_task",
			Help: "1 while a generation task is in flight.",
		}),
		providerCalls: f.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace, Subsystem: "provider", Name: "requests_total",
			Help: "Outbound provider calls by provider/operation/status.",
		}, []string{"provider", "operation", "status"}),
		providerTime: f.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: namespace, Subsystem: "provider", Name: "request_duration_seconds",
			Help:    "Outbound provider call latency.",
			Buckets: []float64{0.05, 0.1, 0.5, 1, 2, 5, 10, 30, 60, 180},
		}, []string{"provider", "operation"}),
		uploads: f.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace, Subsystem: "storage", Name: "uploads_total",
			Help: "Object uploads by backend/object/status.",
		}, []string{"backend", "object", "status"}),
		uploadBytes: f.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace, Subsystem: "storage", Name: "upload_bytes_total",
			Help: "Bytes uploaded by backend.",
		}, []string{"backend"}),
		outcomes: f.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace, Subsystem: "preference", Name: "outcomes_total",
			Help: "Preference feedback applied by category/key/result.",
		}, []string{"category", "key", "result"}),
		collection: f.NewGaugeVec(prometheus.GaugeOpts{
			Namespace: namespace, Subsystem: "collection", Name: "items",
			Help: "Collection progress (target, generated, remaining).",
		}, []string{"kind"}),
		dbStats: f.NewGaugeVec(prometheus.GaugeOpts{
			Namespace: namespace, Subsystem: "db", Name: "pool",
			Help: "database/sql pool statistics.",
		}, []string{"stat"}),
		redisUp: f.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace, Subsystem: "redis", Name: "up",
			Help: "1 when the last redis ping succeeded.",
		}),
		redisPing: f.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace, Subsystem: "redis", Name: "ping_seconds",
			Help: "Latency of the last redis ping.",
		}),
	}
}

func (m *Metrics) Registry() *prometheus.Registry {
	if m == nil {
		return nil
	}
	return m.registry
}

// Handler serves the registry in the Prometheus exposition format.
func (m *Metrics) Handler() http.Handler {
	if m == nil {
		return http.NotFoundHandler()
	}
	return promhttp.HandlerFor(m.registry, promhttp.HandlerOpts{Registry: m.registry})
}

func (m *Metrics) ObserveAPI(method, route, status string, dur time.Duration) {
	if m == nil {
		return
	}
	if method == "" {
		method = "UNKNOWN"
	}
	if route == "" {
		route = "unknown"
	}
	if status == "" {
		status = "0"
	}
	m.apiRequests.WithLabelValues(method, route, status).Inc()
	m.apiLatency.WithLabelValues(method, route, status).Observe(dur.Seconds())
}

func (m *Metrics) ApiInflightInc() {
	if m == nil {
		return
	}
	m.apiInflight.Inc()
}

func (m *Metrics) ApiInflightDec() {
	if m == nil {
		return
	}
	m.apiInflight.Dec()
}

func (m *Metrics) ObserveStage(stage, status string, dur time.Duration) {
	if m == nil {
		return
	}
	m.stageLatency.WithLabelValues(stage, status).Observe(dur.Seconds())
}

func (m *Metrics) IncTask(status string) {
	if m == nil {
		return
	}
	m.tasks.WithLabelValues(status).Inc()
}

func (m *Metrics) SetActiveTask(active bool) {
	if m == nil {
		return
	}
	if active {
		m.activeTask.Set(1)
		return
	}
	m.activeTask.Set(0)
}

func (m *Metrics) ObserveProviderRequest(provider, operation, status string, dur time.Duration) {
	if m == nil {
		return
	}
	if status == "" {
		status = "error"
	}
	m.providerCalls.WithLabelValues(provider, operation, status).Inc()
	m.providerTime.WithLabelValues(provider, operation).Observe(dur.Seconds())
}

func (m *Metrics) ObserveUpload(backend, object string, size int, err error) {
	if m == nil {
		return
	}
	status := "success"
	if err != nil {
		status = "error"
	}
	m.uploads.WithLabelValues(backend, object, status).Inc()
	if err == nil {
		m.uploadBytes.WithLabelValues(backend).Add(float64(size))
	}
}

func (m *Metrics) IncPreferenceOutcome(category, key string, success bool) {
	if m == nil {
		return
	}
	m.outcomes.WithLabelValues(category, key, strconv.FormatBool(success)).Inc()
}

func (m *Metrics) SetCollection(target, generated, remaining int) {
	if m == nil {
		return
	}
	m.collection.WithLabelValues("target").Set(float64(target))
	m.collection.WithLabelValues("generated").Set(float64(generated))
	m.collection.WithLabelValues("remaining").Set(float64(remaining))
}

func (m *Metrics) StartDBCollector(ctx context.Context, log *logger.Logger, db *gorm.DB, interval time.Duration) {
	if m == nil || db == nil {
		return
	}
	if interval <= 0 {
		interval = 15 * time.Second
	}
	go func() {
		ticker := time.NewTicker(interval)
		defer ticker.Stop()
		for {
			select {
			case <-ctx.Done():
				return
			case <-ticker.C:
				sqlDB, err := db.DB()
				if err != nil {
					if log != nil {
						log.Warn("metrics: db stats unavailable", "error", err)
					}
					continue
				}
				stats := sqlDB.Stats()
				m.dbStats.WithLabelValues("open_connections").Set(float64(stats.OpenConnections))
				m.dbStats.WithLabelValues("in_use").Set(float64(stats.InUse))
				m.dbStats.WithLabelValues("idle").Set(float64(stats.Idle))
				m.dbStats.WithLabelValues("wait_count").Set(float64(stats.WaitCount))
				m.dbStats.WithLabelValues("wait_duration_seconds").Set(stats.WaitDuration.Seconds())
			}
		}
	}()
}

// StartRedisCollector pings rdb on an interval. The caller owns rdb.
func (m *Metrics) StartRedisCollector(ctx context.Context, log *logger.Logger, rdb redis.UniversalClient, interval time.Duration) {
	if m == nil || rdb == nil {
		return
	}
	if interval <= 0 {
		interval = 15 * time.Second
	}
	go func() {
		ticker := time.NewTicker(interval)
		defer ticker.Stop()
		for {
			select {
			case <-ctx.Done():
				return
			case <-ticker.C:
				start := time.Now()
				if err := rdb.Ping(ctx).Err(); err != nil {
					m.redisUp.Set(0)
					if log != nil {
						log.Warn("metrics: redis ping failed", "error", err)
					}
					continue
				}
				m.redisUp.Set(1)
				m.redisPing.Set(time.Since(start).Seconds())
			}
		}
	}()
}
