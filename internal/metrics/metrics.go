// Package metrics はPrometheusメトリクスの収集と公開を提供する。
package metrics

import (
	"net/http"
	"strconv"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// MetricsCollector はメトリクス収集のインターフェース。
// 同期ワーカーやサービス層から利用する。
type MetricsCollector interface {
	RecordSyncSuccess(providerName string)
	RecordSyncFailure(providerName string, reason string)
	RecordSyncLatency(providerName string, duration time.Duration)
	RecordEventsFetched(count int)
	RecordMirrorFailure(providerName string)
	RecordHTTPStatus(statusCode int)
}

// Collector はPrometheusメトリクスを収集する実装。
type Collector struct {
	syncSuccess   *prometheus.CounterVec
	syncFail      *prometheus.CounterVec
	syncLatency   *prometheus.HistogramVec
	eventsFetched prometheus.Counter
	mirrorFail    *prometheus.CounterVec
	httpStatus    *prometheus.CounterVec
}

// NewCollector は新しいCollectorを生成し、指定されたレジストリにメトリクスを登録する。
func NewCollector(reg prometheus.Registerer) *Collector {
	c := &Collector{
		syncSuccess: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "calsync_sync_success_total",
			Help: "カレンダー同期成功の合計数",
		}, []string{"provider"}),
		syncFail: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "calsync_sync_fail_total",
			Help: "カレンダー同期失敗の合計数",
		}, []string{"provider", "reason"}),
		syncLatency: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Name:    "calsync_sync_latency_seconds",
			Help:    "カレンダー同期のレイテンシ（秒）",
			Buckets: prometheus.DefBuckets,
		}, []string{"provider"}),
		eventsFetched: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "calsync_events_fetched_total",
			Help: "同期で取得した予定の合計数",
		}),
		mirrorFail: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "calsync_mirror_fail_total",
			Help: "会議のミラー書き込み失敗の合計数",
		}, []string{"provider"}),
		httpStatus: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "calsync_http_status_total",
			Help: "HTTPステータスコード別のレスポンス数",
		}, []string{"status_code"}),
	}

	reg.MustRegister(
		c.syncSuccess,
		c.syncFail,
		c.syncLatency,
		c.eventsFetched,
		c.mirrorFail,
		c.httpStatus,
	)

	return c
}

// RecordSyncSuccess は同期成功を記録する。
func (c *Collector) RecordSyncSuccess(providerName string) {
	c.syncSuccess.WithLabelValues(providerName).Inc()
}

// RecordSyncFailure は同期失敗を記録する。
func (c *Collector) RecordSyncFailure(providerName string, reason string) {
	c.syncFail.WithLabelValues(providerName, reason).Inc()
}

// RecordSyncLatency は同期のレイテンシを記録する。
func (c *Collector) RecordSyncLatency(providerName string, duration time.Duration) {
	c.syncLatency.WithLabelValues(providerName).Observe(duration.Seconds())
}

// RecordEventsFetched は取得した予定数を記録する。
func (c *Collector) RecordEventsFetched(count int) {
	c.eventsFetched.Add(float64(count))
}

// RecordMirrorFailure はミラー書き込み失敗を記録する。
func (c *Collector) RecordMirrorFailure(providerName string) {
	c.mirrorFail.WithLabelValues(providerName).Inc()
}

// RecordHTTPStatus はHTTPステータスコードを記録する。
func (c *Collector) RecordHTTPStatus(statusCode int) {
	c.httpStatus.WithLabelValues(strconv.Itoa(statusCode)).Inc()
}

// Handler はPrometheusスクレイプ用のHTTPハンドラーを返す。
func Handler(gatherer prometheus.Gatherer) http.Handler {
	return promhttp.HandlerFor(gatherer, promhttp.HandlerOpts{})
}

// SetupMetricsRoute は/metricsエンドポイントを提供するHTTPハンドラーを返す。
// Prometheusスクレイプに対応する。
func SetupMetricsRoute(gatherer prometheus.Gatherer) http.Handler {
	mux := http.NewServeMux()
	mux.Handle("/metrics", Handler(gatherer))
	return mux
}
