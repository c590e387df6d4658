// Package metrics はPrometheusメトリクスを提供する。
package metrics

import (
	"net/http"
	"strconv"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

var (
	// HTTP
	httpRequestsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "http_requests_total",
			Help: "Total number of HTTP requests",
		},
		[]string{"method", "route", "status"},
	)

	httpRequestDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "http_request_duration_seconds",
			Help:    "HTTP request duration in seconds",
			Buckets: []float64{.001, .005, .01, .025, .05, .1, .25, .5, 1, 2.5, 5, 10},
		},
		[]string{"method", "route"},
	)

	httpRequestsInFlight = promauto.NewGauge(
		prometheus.GaugeOpts{
			Name: "http_requests_in_flight",
			Help: "Number of HTTP requests currently being processed",
		},
	)

	// 業務メトリクス
	referenceNumbersAllocated = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "reference_numbers_allocated_total",
			Help: "Total number of reference numbers allocated",
		},
		[]string{"document_type"},
	)

	signaturesTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "signatures_total",
			Help: "Total number of signature attempts by outcome",
		},
		[]string{"role", "result"},
	)

	documentsCompleted = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "documents_completed_total",
			Help: "Total number of documents whose signing session completed",
		},
		[]string{"document_type"},
	)

	verificationsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "verifications_total",
			Help: "Total number of public verifications by verdict",
		},
		[]string{"verdict"},
	)

	signerDuration = promauto.NewHistogram(
		prometheus.HistogramOpts{
			Name:    "signer_duration_seconds",
			Help:    "Signature authority call duration in seconds",
			Buckets: []float64{.001, .005, .01, .025, .05, .1, .25, .5, 1, 2.5},
		},
	)
)

// Handler はメトリクス公開用のHTTPハンドラを返す。
func Handler() http.Handler {
	return promhttp.Handler()
}

// Middleware はHTTPメトリクスを記録するミドルウェア。
// ラベルにはchiのルートパターンを使い、パスパラメータによるカーディナリティ増加を防ぐ。
func Middleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		httpRequestsInFlight.Inc()
		defer httpRequestsInFlight.Dec()

		wrapped := &responseWriter{ResponseWriter: w, statusCode: http.StatusOK}
		next.ServeHTTP(wrapped, r)

		route := "unmatched"
		if rctx := chi.RouteContext(r.Context()); rctx != nil {
			if p := rctx.RoutePattern(); p != "" {
				route = p
			}
		}

		httpRequestsTotal.WithLabelValues(r.Method, route, strconv.Itoa(wrapped.statusCode)).Inc()
		httpRequestDuration.WithLabelValues(r.Method, route).Observe(time.Since(start).Seconds())
	})
}

type responseWriter struct {
	http.ResponseWriter
	statusCode int
}

func (rw *responseWriter) WriteHeader(code int) {
	rw.statusCode = code
	rw.ResponseWriter.WriteHeader(code)
}

// RecordReferenceNumberAllocated は参照番号の払い出しを記録する。
func RecordReferenceNumberAllocated(documentType string) {
	referenceNumbersAllocated.WithLabelValues(documentType).Inc()
}

// RecordSignature は署名試行の結果を記録する。
func RecordSignature(role, result string) {
	signaturesTotal.WithLabelValues(role, result).Inc()
}

// RecordDocumentCompleted は署名セッションの完了を記録する。
func RecordDocumentCompleted(documentType string) {
	documentsCompleted.WithLabelValues(documentType).Inc()
}

// RecordVerification は公開検証の判定を記録する。
func RecordVerification(verdict string) {
	verificationsTotal.WithLabelValues(verdict).Inc()
}

// ObserveSignerDuration は署名機関の呼び出し時間を記録する。
func ObserveSignerDuration(d time.Duration) {
	signerDuration.Observe(d.Seconds())
}
