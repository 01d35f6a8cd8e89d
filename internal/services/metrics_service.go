package services

import (
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// MetricsService 检索引擎的Prometheus指标
type MetricsService struct {
	ingestCounter  *prometheus.CounterVec
	chunksCounter  prometheus.Counter
	ingestDuration prometheus.Histogram
	searchCounter  *prometheus.CounterVec
	searchDuration *prometheus.HistogramVec
}

// NewMetricsService 创建并注册指标
func NewMetricsService() *MetricsService {
	return &MetricsService{
		ingestCounter: promauto.NewCounterVec(
			prometheus.CounterOpts{
				Name: "knowledge_documents_ingested_total",
				Help: "Total number of document ingestions by terminal status",
			},
			[]string{"status"},
		),
		chunksCounter: promauto.NewCounter(
			prometheus.CounterOpts{
				Name: "knowledge_chunks_indexed_total",
				Help: "Total number of chunks written to the indexes",
			},
		),
		ingestDuration: promauto.NewHistogram(
			prometheus.HistogramOpts{
				Name:    "knowledge_ingest_duration_seconds",
				Help:    "Duration of document ingestion pipeline runs",
				Buckets: prometheus.ExponentialBuckets(0.05, 2, 12),
			},
		),
		searchCounter: promauto.NewCounterVec(
			prometheus.CounterOpts{
				Name: "knowledge_searches_total",
				Help: "Total number of search requests by mode and status",
			},
			[]string{"mode", "status"},
		),
		searchDuration: promauto.NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    "knowledge_search_duration_seconds",
				Help:    "Duration of search requests",
				Buckets: prometheus.ExponentialBuckets(0.005, 2, 12),
			},
			[]string{"mode"},
		),
	}
}

// ObserveIngest 记录一次入库结果
func (ms *MetricsService) ObserveIngest(status string, chunks int, duration time.Duration) {
	ms.ingestCounter.WithLabelValues(status).Inc()
	if chunks > 0 {
		ms.chunksCounter.Add(float64(chunks))
	}
	ms.ingestDuration.Observe(duration.Seconds())
}

// ObserveSearch 记录一次检索
func (ms *MetricsService) ObserveSearch(mode, status string, duration time.Duration) {
	ms.searchCounter.WithLabelValues(mode, status).Inc()
	ms.searchDuration.WithLabelValues(mode).Observe(duration.Seconds())
}

// Handler 返回Prometheus指标的HTTP处理器
func (ms *MetricsService) Handler() http.Handler {
	return promhttp.Handler()
}
