// Package metrics はPrometheusメトリクスの収集と公開を提供する。
package metrics

import (
	"net/http"
	"strconv"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// MetricsCollector はメトリクス収集のインターフェース。
// サービス層とリコンサイルバッチから利用する。
type MetricsCollector interface {
	RecordClaimCreated()
	RecordCollection(impactPoints float64)
	RecordItemsMaterialized(count int)
	RecordReconcileListing(outcome string)
	RecordHTTPStatus(statusCode int)
}

// Collector はPrometheusメトリクスを収集する実装。
type Collector struct {
	claimsCreated     prometheus.Counter
	collections       prometheus.Counter
	impactPoints      prometheus.Counter
	itemsMaterialized prometheus.Counter
	reconcileListings *prometheus.CounterVec
	httpStatus        *prometheus.CounterVec
}

// NewCollector は新しいCollectorを生成し、指定されたレジストリにメトリクスを登録する。
func NewCollector(reg prometheus.Registerer) *Collector {
	c := &Collector{
		claimsCreated: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "umeats_claims_created_total",
			Help: "作成されたクレームの合計数",
		}),
		collections: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "umeats_collections_total",
			Help: "受け渡し完了の合計数",
		}),
		impactPoints: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "umeats_impact_points_total",
			Help: "確定した実績インパクトポイントの合計",
		}),
		itemsMaterialized: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "umeats_items_materialized_total",
			Help: "実体化されたアイテムの合計数",
		}),
		reconcileListings: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "umeats_reconcile_listings_total",
			Help: "リコンサイル処理したリスティング数（結果別）",
		}, []string{"outcome"}),
		httpStatus: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "umeats_http_status_total",
			Help: "HTTPステータスコード別のレスポンス数",
		}, []string{"status_code"}),
	}

	reg.MustRegister(
		c.claimsCreated,
		c.collections,
		c.impactPoints,
		c.itemsMaterialized,
		c.reconcileListings,
		c.httpStatus,
	)

	return c
}

// RecordClaimCreated はクレーム作成を記録する。
func (c *Collector) RecordClaimCreated() {
	c.claimsCreated.Inc()
}

// RecordCollection は受け渡し完了と確定したインパクトポイントを記録する。
func (c *Collector) RecordCollection(impactPoints float64) {
	c.collections.Inc()
	c.impactPoints.Add(impactPoints)
}

// RecordItemsMaterialized は実体化されたアイテム数を記録する。
func (c *Collector) RecordItemsMaterialized(count int) {
	c.itemsMaterialized.Add(float64(count))
}

// RecordReconcileListing はリコンサイル結果（processed/skipped）を記録する。
func (c *Collector) RecordReconcileListing(outcome string) {
	c.reconcileListings.WithLabelValues(outcome).Inc()
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
