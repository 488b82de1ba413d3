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
	RecordHTTPStatus(statusCode int)
	RecordRequestLatency(duration time.Duration)
	RecordCheckoutSession()
	RecordWebhookEvent(eventType string, outcome string)
	RecordTransfer(amount int64)
	RecordTransferSkipped()
	SetWebsocketConnections(count int)
}

// Collector はPrometheusメトリクスを収集する実装。
type Collector struct {
	httpStatus       *prometheus.CounterVec
	requestLatency   prometheus.Histogram
	checkoutSessions prometheus.Counter
	webhookEvents    *prometheus.CounterVec
	transfers        prometheus.Counter
	transferAmount   prometheus.Counter
	transferSkipped  prometheus.Counter
	wsConnections    prometheus.Gauge
}

// NewCollector は新しいCollectorを生成し、指定されたレジストリにメトリクスを登録する。
func NewCollector(reg prometheus.Registerer) *Collector {
	c := &Collector{
		httpStatus: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "marketman_http_status_total",
			Help: "HTTPステータスコード別のレスポンス数",
		}, []string{"status_code"}),
		requestLatency: prometheus.NewHistogram(prometheus.HistogramOpts{
			Name:    "marketman_request_latency_seconds",
			Help:    "HTTPリクエストのレイテンシ（秒）",
			Buckets: prometheus.DefBuckets,
		}),
		checkoutSessions: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "marketman_checkout_sessions_total",
			Help: "作成されたチェックアウトセッションの合計数",
		}),
		webhookEvents: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "marketman_webhook_events_total",
			Help: "種別・結果別のwebhookイベント処理数",
		}, []string{"type", "outcome"}),
		transfers: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "marketman_transfers_total",
			Help: "出品者への送金の合計件数",
		}),
		transferAmount: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "marketman_transfer_amount_total",
			Help: "出品者への送金額の合計（最小通貨単位）",
		}),
		transferSkipped: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "marketman_transfers_skipped_total",
			Help: "連結アカウント未設定でスキップされた送金の合計件数",
		}),
		wsConnections: prometheus.NewGauge(prometheus.GaugeOpts{
			Name: "marketman_websocket_connections",
			Help: "現在のWebSocket接続数",
		}),
	}

	reg.MustRegister(
		c.httpStatus,
		c.requestLatency,
		c.checkoutSessions,
		c.webhookEvents,
		c.transfers,
		c.transferAmount,
		c.transferSkipped,
		c.wsConnections,
	)

	return c
}

// RecordHTTPStatus はHTTPステータスコードを記録する。
func (c *Collector) RecordHTTPStatus(statusCode int) {
	c.httpStatus.WithLabelValues(strconv.Itoa(statusCode)).Inc()
}

// RecordRequestLatency はリクエストのレイテンシを記録する。
func (c *Collector) RecordRequestLatency(duration time.Duration) {
	c.requestLatency.Observe(duration.Seconds())
}

// RecordCheckoutSession はチェックアウトセッション作成を記録する。
func (c *Collector) RecordCheckoutSession() {
	c.checkoutSessions.Inc()
}

// RecordWebhookEvent はwebhookイベントの処理結果を記録する。
// outcome: "processed", "duplicate", "invalid_signature", "error"
func (c *Collector) RecordWebhookEvent(eventType string, outcome string) {
	c.webhookEvents.WithLabelValues(eventType, outcome).Inc()
}

// RecordTransfer は出品者への送金を記録する。
func (c *Collector) RecordTransfer(amount int64) {
	c.transfers.Inc()
	c.transferAmount.Add(float64(amount))
}

// RecordTransferSkipped はスキップされた送金を記録する。
func (c *Collector) RecordTransferSkipped() {
	c.transferSkipped.Inc()
}

// SetWebsocketConnections は現在のWebSocket接続数を設定する。
func (c *Collector) SetWebsocketConnections(count int) {
	c.wsConnections.Set(float64(count))
}

// Handler はPrometheusスクレイプ用のHTTPハンドラーを返す。
func Handler(gatherer prometheus.Gatherer) http.Handler {
	return promhttp.HandlerFor(gatherer, promhttp.HandlerOpts{})
}
