package stats

import (
	"net/http"
	"sync"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

const namespace = "heirvault"

// Stats API 调用与金库事件统计
// 内存计数供 /status 展示，同时导出为 Prometheus 指标
type Stats struct {
	statsLock      sync.RWMutex
	apiCallCounts  map[string]uint64
	apiErrorCounts map[string]uint64
	eventCounts    map[string]uint64

	registry    *prometheus.Registry
	apiCalls    *prometheus.CounterVec
	apiLatency  *prometheus.HistogramVec
	vaultEvents *prometheus.CounterVec
}

func NewStats() *Stats {
	s := &Stats{
		apiCallCounts:  make(map[string]uint64),
		apiErrorCounts: make(map[string]uint64),
		eventCounts:    make(map[string]uint64),
		registry:       prometheus.NewRegistry(),
		apiCalls: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "api_requests_total",
				Help:      "API requests by endpoint and result code.",
			},
			[]string{"api", "code"},
		),
		apiLatency: prometheus.NewHistogramVec(
			prometheus.HistogramOpts{
				Namespace: namespace,
				Name:      "api_request_duration_seconds",
				Help:      "API request latency.",
				Buckets:   prometheus.DefBuckets,
			},
			[]string{"api"},
		),
		vaultEvents: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "vault_events_total",
				Help:      "Persisted vault events by kind.",
			},
			[]string{"kind"},
		),
	}
	s.registry.MustRegister(
		s.apiCalls,
		s.apiLatency,
		s.vaultEvents,
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
	)
	return s
}

// 记录API调用
func (h *Stats) RecordAPICall(apiName string) {
	h.statsLock.Lock()
	defer h.statsLock.Unlock()
	h.apiCallCounts[apiName]++
}

// RecordAPIResult 请求结束时记录结果码与耗时，code 为空表示成功
func (h *Stats) RecordAPIResult(apiName, code string, d time.Duration) {
	if code == "" {
		code = "ok"
	} else {
		h.statsLock.Lock()
		h.apiErrorCounts[apiName]++
		h.statsLock.Unlock()
	}
	h.apiCalls.WithLabelValues(apiName, code).Inc()
	h.apiLatency.WithLabelValues(apiName).Observe(d.Seconds())
}

// RecordEvent 记录一个已持久化的金库事件
func (h *Stats) RecordEvent(kind string) {
	h.statsLock.Lock()
	h.eventCounts[kind]++
	h.statsLock.Unlock()
	h.vaultEvents.WithLabelValues(kind).Inc()
}

// 获取API调用统计
func (h *Stats) GetAPICallStats() map[string]uint64 {
	return h.copyOf(h.apiCallCounts)
}

func (h *Stats) GetAPIErrorStats() map[string]uint64 {
	return h.copyOf(h.apiErrorCounts)
}

func (h *Stats) GetEventStats() map[string]uint64 {
	return h.copyOf(h.eventCounts)
}

func (h *Stats) copyOf(src map[string]uint64) map[string]uint64 {
	h.statsLock.RLock()
	defer h.statsLock.RUnlock()
	out := make(map[string]uint64, len(src))
	for k, v := range src {
		out[k] = v
	}
	return out
}

// Registry 供测试直接读取指标
func (h *Stats) Registry() *prometheus.Registry {
	return h.registry
}

// Handler /metrics
func (h *Stats) Handler() http.Handler {
	return promhttp.HandlerFor(h.registry, promhttp.HandlerOpts{})
}
