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
// 申込サービスやミドルウェアから利用する。
type MetricsCollector interface {
	RecordRegistration(grade string)
	RecordMirrorSuccess()
	RecordMirrorFailure(reason string)
	RecordMirrorLatency(duration time.Duration)
	RecordHTTPStatus(statusCode int)
}

// Collector はPrometheusメトリクスを収集する実装。
type Collector struct {
	registrations *prometheus.CounterVec
	mirrorSuccess prometheus.Counter
	mirrorFail    *prometheus.CounterVec
	mirrorLatency prometheus.Histogram
	httpStatus    *prometheus.CounterVec
}

// NewCollector は新しいCollectorを生成し、指定されたレジストリにメトリクスを登録する。
func NewCollector(reg prometheus.Registerer) *Collector {
	c := &Collector{
		registrations: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "enrollman_registrations_total",
			Help: "学年別の申込受理の合計数",
		}, []string{"grade"}),
		mirrorSuccess: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "enrollman_mirror_success_total",
			Help: "スプレッドシートミラー成功の合計数",
		}),
		mirrorFail: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "enrollman_mirror_fail_total",
			Help: "スプレッドシートミラー失敗の理由別合計数",
		}, []string{"reason"}),
		mirrorLatency: prometheus.NewHistogram(prometheus.HistogramOpts{
			Name:    "enrollman_mirror_latency_seconds",
			Help:    "スプレッドシートミラーのレイテンシ（秒）",
			Buckets: prometheus.DefBuckets,
		}),
		httpStatus: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "enrollman_http_status_total",
			Help: "HTTPステータスコード別のレスポンス数",
		}, []string{"status_code"}),
	}

	reg.MustRegister(
		c.registrations,
		c.mirrorSuccess,
		c.mirrorFail,
		c.mirrorLatency,
		c.httpStatus,
	)

	return c
}

// RecordRegistration は申込受理を学年別に記録する。
func (c *Collector) RecordRegistration(grade string) {
	c.registrations.WithLabelValues(grade).Inc()
}

// RecordMirrorSuccess はミラー成功を記録する。
func (c *Collector) RecordMirrorSuccess() {
	c.mirrorSuccess.Inc()
}

// RecordMirrorFailure はミラー失敗を理由別に記録する。
func (c *Collector) RecordMirrorFailure(reason string) {
	c.mirrorFail.WithLabelValues(reason).Inc()
}

// RecordMirrorLatency はミラー処理のレイテンシを記録する。
func (c *Collector) RecordMirrorLatency(duration time.Duration) {
	c.mirrorLatency.Observe(duration.Seconds())
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
