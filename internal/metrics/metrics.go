// Package metrics はPrometheusメトリクスの収集と公開を提供する。
package metrics

import (
	"net/http"
	"strconv"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/hitoshi/springboard/internal/authz"
)

// MetricsCollector はメトリクス収集のインターフェース。
// ハンドラー、セッション管理、ワーカーから利用する。
type MetricsCollector interface {
	ObserveSignIn(status authz.Status)
	RecordSnippetSaved()
	RecordSnippetDeleted()
	RecordHTTPStatus(statusCode int)
	RecordRequestLatency(duration time.Duration)
	ObserveAvatarFetch(result string)
}

// Collector はPrometheusメトリクスを収集する実装。
type Collector struct {
	signIn         *prometheus.CounterVec
	snippetSaved   prometheus.Counter
	snippetDeleted prometheus.Counter
	httpStatus     *prometheus.CounterVec
	requestLatency prometheus.Histogram
	avatarFetch    *prometheus.CounterVec
	sessionsPurged prometheus.Counter
}

// NewCollector は新しいCollectorを生成し、指定されたレジストリにメトリクスを登録する。
func NewCollector(reg prometheus.Registerer) *Collector {
	c := &Collector{
		signIn: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "springboard_sign_in_total",
			Help: "権限確認結果別のサインイン数",
		}, []string{"status"}),
		snippetSaved: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "springboard_snippet_saved_total",
			Help: "保存されたスニペットの合計数",
		}),
		snippetDeleted: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "springboard_snippet_deleted_total",
			Help: "削除されたスニペットの合計数",
		}),
		httpStatus: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "springboard_http_status_total",
			Help: "HTTPステータスコード別のレスポンス数",
		}, []string{"status_code"}),
		requestLatency: prometheus.NewHistogram(prometheus.HistogramOpts{
			Name:    "springboard_request_latency_seconds",
			Help:    "HTTPリクエストのレイテンシ（秒）",
			Buckets: prometheus.DefBuckets,
		}),
		avatarFetch: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "springboard_avatar_fetch_total",
			Help: "結果別のプロフィール画像取得数",
		}, []string{"result"}),
		sessionsPurged: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "springboard_sessions_purged_total",
			Help: "クリーンアップジョブが削除した期限切れセッション数",
		}),
	}

	reg.MustRegister(
		c.signIn,
		c.snippetSaved,
		c.snippetDeleted,
		c.httpStatus,
		c.requestLatency,
		c.avatarFetch,
		c.sessionsPurged,
	)

	return c
}

// ObserveSignIn はサインイン時の権限確認結果を記録する。
func (c *Collector) ObserveSignIn(status authz.Status) {
	c.signIn.WithLabelValues(string(status)).Inc()
}

// RecordSnippetSaved はスニペットの保存を記録する。
func (c *Collector) RecordSnippetSaved() {
	c.snippetSaved.Inc()
}

// RecordSnippetDeleted はスニペットの削除を記録する。
func (c *Collector) RecordSnippetDeleted() {
	c.snippetDeleted.Inc()
}

// RecordHTTPStatus はHTTPステータスコードを記録する。
func (c *Collector) RecordHTTPStatus(statusCode int) {
	c.httpStatus.WithLabelValues(strconv.Itoa(statusCode)).Inc()
}

// RecordRequestLatency はリクエストのレイテンシを記録する。
func (c *Collector) RecordRequestLatency(duration time.Duration) {
	c.requestLatency.Observe(duration.Seconds())
}

// ObserveAvatarFetch はプロフィール画像の取得結果を記録する。
// resultは "updated", "empty", "error" のいずれか。
func (c *Collector) ObserveAvatarFetch(result string) {
	c.avatarFetch.WithLabelValues(result).Inc()
}

// RecordSessionsPurged は削除した期限切れセッション数を加算する。
func (c *Collector) RecordSessionsPurged(n int64) {
	c.sessionsPurged.Add(float64(n))
}

// Middleware はレスポンスのステータスコードとレイテンシを記録するミドルウェアを返す。
func (c *Collector) Middleware() func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			start := time.Now()
			sw := &statusWriter{ResponseWriter: w, status: http.StatusOK}
			next.ServeHTTP(sw, r)
			c.RecordHTTPStatus(sw.status)
			c.RecordRequestLatency(time.Since(start))
		})
	}
}

type statusWriter struct {
	http.ResponseWriter
	status int
}

func (w *statusWriter) WriteHeader(code int) {
	w.status = code
	w.ResponseWriter.WriteHeader(code)
}

// Handler はPrometheusスクレイプ用のHTTPハンドラーを返す。
func Handler(gatherer prometheus.Gatherer) http.Handler {
	return promhttp.HandlerFor(gatherer, promhttp.HandlerOpts{})
}

// SetupMetricsRoute は/metricsエンドポイントを登録したServeMuxを返す。
// ワーカーのように画面やAPIを持たないプロセスで使う。
func SetupMetricsRoute(gatherer prometheus.Gatherer) *http.ServeMux {
	mux := http.NewServeMux()
	mux.Handle("/metrics", Handler(gatherer))
	return mux
}
