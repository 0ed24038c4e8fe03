package prometheus

import (
	"net/http"
	"strconv"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Counter metrics
var (
	// Login counters
	LoginCounter = prometheus.NewCounter(
		prometheus.CounterOpts{
			Name: "storefront_login_total",
			Help: "Total number of successful logins",
		},
	)

	// Registration counters
	RegisterCounter = prometheus.NewCounter(
		prometheus.CounterOpts{
			Name: "storefront_register_total",
			Help: "Total number of customer registrations",
		},
	)

	// HTTP request counter by endpoint and status
	HTTPRequestCounter = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "storefront_http_requests_total",
			Help: "Total number of HTTP requests by endpoint and status",
		},
		[]string{"endpoint", "method", "status"},
	)

	// Responses by status class, e.g. "2xx", "4xx", "5xx"
	HTTPStatusCategoryCounter = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "storefront_http_status_category_total",
			Help: "Total number of responses by status category",
		},
		[]string{"category", "method", "endpoint"},
	)

	// Error counters
	AuthErrorCounter = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "storefront_auth_errors_total",
			Help: "Total number of authentication errors",
		},
		[]string{"type"}, // "login_failure", "invalid_token", "forbidden", "db_error"
	)

	OrdersCreatedCounter = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "storefront_orders_created_total",
			Help: "Total number of orders placed",
		},
		[]string{"payment_method"},
	)

	CheckoutFailureCounter = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "storefront_checkout_failures_total",
			Help: "Total number of failed checkouts by reason",
		},
		[]string{"reason"}, // "validation", "stock", "payment", "persistence"
	)

	OrderTransitionCounter = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "storefront_order_transitions_total",
			Help: "Total number of order status changes",
		},
		[]string{"from", "to"},
	)

	SEOGenerationCounter = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "storefront_seo_generations_total",
			Help: "Total number of SEO generations by source",
		},
		[]string{"source"}, // "ai", "template"
	)
)

// Histogram metrics
var (
	// Request duration
	RequestDuration = prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "storefront_request_duration_seconds",
			Help:    "Duration of HTTP requests in seconds",
			Buckets: prometheus.DefBuckets,
		},
		[]string{"endpoint", "method", "status"},
	)

	// Database operation duration
	DBOperationDuration = prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "storefront_db_operation_duration_seconds",
			Help:    "Duration of database operations in seconds",
			Buckets: prometheus.DefBuckets,
		},
		[]string{"operation"},
	)
)

// Gauge metrics
var (
	// Units in stock across the catalog, refreshed by analytics and seeding
	InventoryUnitsGauge = prometheus.NewGauge(
		prometheus.GaugeOpts{
			Name: "storefront_inventory_units",
			Help: "Number of product units currently in stock",
		},
	)

	// System info
	InfoGauge = prometheus.NewGaugeVec(
		prometheus.GaugeOpts{
			Name: "storefront_info",
			Help: "Information about the storefront service",
		},
		[]string{"version", "store"},
	)
)

func init() {
	// Register counters
	prometheus.MustRegister(LoginCounter)
	prometheus.MustRegister(RegisterCounter)
	prometheus.MustRegister(HTTPRequestCounter)
	prometheus.MustRegister(HTTPStatusCategoryCounter)
	prometheus.MustRegister(AuthErrorCounter)
	prometheus.MustRegister(OrdersCreatedCounter)
	prometheus.MustRegister(CheckoutFailureCounter)
	prometheus.MustRegister(OrderTransitionCounter)
	prometheus.MustRegister(SEOGenerationCounter)

	// Register histograms
	prometheus.MustRegister(RequestDuration)
	prometheus.MustRegister(DBOperationDuration)

	// Register gauges
	prometheus.MustRegister(InventoryUnitsGauge)
	prometheus.MustRegister(InfoGauge)
}

// GetPrometheusHandler returns an HTTP handler for the Prometheus metrics
func GetPrometheusHandler() http.Handler {
	return promhttp.Handler()
}

// SetInfo publishes the running version and the active store backend
func SetInfo(version, store string) {
	InfoGauge.With(prometheus.Labels{"version": version, "store": store}).Set(1)
}

// TrackDBOperation measures database operation durations
func TrackDBOperation(operation string) func(time.Time) {
	startTime := time.Now()
	return func(endTime time.Time) {
		duration := endTime.Sub(startTime).Seconds()
		DBOperationDuration.With(prometheus.Labels{
			"operation": operation,
		}).Observe(duration)
	}
}

// StatusCategory buckets an HTTP status as "2xx", "3xx", "4xx" or "5xx".
// Anything else returns "".
func StatusCategory(status int) string {
	if status < 200 || status >= 600 {
		return ""
	}
	return strconv.Itoa(status/100) + "xx"
}

// RecordAuthError records an authentication error by type
func RecordAuthError(errorType string) {
	AuthErrorCounter.With(prometheus.Labels{"type": errorType}).Inc()
}

// RecordOrderCreated counts a placed order
func RecordOrderCreated(paymentMethod string) {
	OrdersCreatedCounter.With(prometheus.Labels{"payment_method": paymentMethod}).Inc()
}

// RecordCheckoutFailure counts a failed checkout
func RecordCheckoutFailure(reason string) {
	CheckoutFailureCounter.With(prometheus.Labels{"reason": reason}).Inc()
}

// RecordOrderTransition counts an order status change
func RecordOrderTransition(from, to string) {
	OrderTransitionCounter.With(prometheus.Labels{"from": from, "to": to}).Inc()
}

// RecordSEOGeneration counts an SEO generation by where the text came from
func RecordSEOGeneration(source string) {
	SEOGenerationCounter.With(prometheus.Labels{"source": source}).Inc()
}

// UpdateInventoryUnits sets the in-stock units gauge
func UpdateInventoryUnits(units int) {
	InventoryUnitsGauge.Set(float64(units))
}
