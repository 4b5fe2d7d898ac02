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
// ハンドラーやサービス層から利用する。
type MetricsCollector interface {
	RecordLoginInitiated()
	RecordCallbackResult(result string)
	RecordRegistration(kind string, result string)
	RecordPromptGeneration(result string)
	RecordHTTPStatus(statusCode int)
	RecordUpstreamLatency(target string, duration time.Duration)
}

// Collector はPrometheusメトリクスを収集する実装。
type Collector struct {
	loginInitiated   prometheus.Counter
	callbackResults  *prometheus.CounterVec
	registrations    *prometheus.CounterVec
	promptGeneration *prometheus.CounterVec
	httpStatus       *prometheus.CounterVec
	upstreamLatency  *prometheus.HistogramVec
}

// NewCollector は新しいCollectorを生成し、指定されたレジストリにメトリクスを登録する。
func NewCollector(reg prometheus.Registerer) *Collector {
	c := &Collector{
		loginInitiated: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "vidnote_login_initiated_total",
			Help: "OAuthログイン開始の合計数",
		}),
		callbackResults: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "vidnote_callback_total",
			Help: "OAuthコールバック処理の結果別合計数",
		}, []string{"result"}),
		registrations: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "vidnote_registration_total",
			Help: "データベース登録の種別・結果別合計数",
		}, []string{"kind", "result"}),
		promptGeneration: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "vidnote_prompt_generation_total",
			Help: "プロンプト生成の結果別合計数",
		}, []string{"result"}),
		httpStatus: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "vidnote_http_status_total",
			Help: "HTTPステータスコード別のレスポンス数",
		}, []string{"status_code"}),
		upstreamLatency: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Name:    "vidnote_upstream_latency_seconds",
			Help:    "外部API呼び出しのレイテンシ（秒）",
			Buckets: prometheus.DefBuckets,
		}, []string{"target"}),
	}

	reg.MustRegister(
		c.loginInitiated,
		c.callbackResults,
		c.registrations,
		c.promptGeneration,
		c.httpStatus,
		c.upstreamLatency,
	)

	return c
}

// RecordLoginInitiated はログイン開始を記録する。
func (c *Collector) RecordLoginInitiated() {
	c.loginInitiated.Inc()
}

// RecordCallbackResult はコールバック処理の結果を記録する。
// resultは "success"、"invalid_state"、"exchange_failed" 等。
func (c *Collector) RecordCallbackResult(result string) {
	c.callbackResults.WithLabelValues(result).Inc()
}

// RecordRegistration はデータベース登録の結果を記録する。
// kindは "content" または "link"。
func (c *Collector) RecordRegistration(kind string, result string) {
	c.registrations.WithLabelValues(kind, result).Inc()
}

// RecordPromptGeneration はプロンプト生成の結果を記録する。
func (c *Collector) RecordPromptGeneration(result string) {
	c.promptGeneration.WithLabelValues(result).Inc()
}

// RecordHTTPStatus はHTTPステータスコードを記録する。
func (c *Collector) RecordHTTPStatus(statusCode int) {
	c.httpStatus.WithLabelValues(strconv.Itoa(statusCode)).Inc()
}

// RecordUpstreamLatency は外部API呼び出しのレイテンシを記録する。
// targetは "notion"、"oauth"、"openai" 等。
func (c *Collector) RecordUpstreamLatency(target string, duration time.Duration) {
	c.upstreamLatency.WithLabelValues(target).Observe(duration.Seconds())
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
