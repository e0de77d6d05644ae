package metrics

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
)

// Причины неудачного оформления заказа (значения label reason).
const (
	ReasonNotFound          = "not_found"
	ReasonValidation        = "validation"
	ReasonInsufficientStock = "insufficient_stock"
	ReasonConflict          = "conflict"
	ReasonInternal          = "internal"
)

// OrderMetrics содержит метрики оформления заказов.
type OrderMetrics struct {
	ordersCreated  prometheus.Counter
	ordersFailed   *prometheus.CounterVec
	createDuration prometheus.Histogram
	txRetries      prometheus.Counter
	unitsSold      prometheus.Counter
	inFlight       prometheus.Gauge
}

// NewOrderMetrics регистрирует метрики в prometheus.DefaultRegisterer.
func NewOrderMetrics() *OrderMetrics {
	return NewOrderMetricsWithRegisterer(prometheus.DefaultRegisterer)
}

// NewOrderMetricsWithRegisterer регистрирует метрики в указанном registerer.
func NewOrderMetricsWithRegisterer(registerer prometheus.Registerer) *OrderMetrics {
	registerer = registererOrDefault(registerer)

	return &OrderMetrics{
		ordersCreated: registerCounter(registerer, prometheus.CounterOpts{
			Name: "storefront_orders_created_total",
			Help: "Total number of orders created successfully",
		}),
		ordersFailed: registerCounterVec(registerer, prometheus.CounterOpts{
			Name: "storefront_orders_failed_total",
			Help: "Total number of rejected order creations grouped by reason",
		}, []string{"reason"}),
		createDuration: registerHistogram(registerer, prometheus.HistogramOpts{
			Name:    "storefront_order_create_duration_seconds",
			Help:    "Duration of CreateOrder calls in seconds",
			Buckets: []float64{0.001, 0.005, 0.01, 0.025, 0.05, 0.1, 0.25, 0.5, 1.0, 2.5, 5.0},
		}),
		txRetries: registerCounter(registerer, prometheus.CounterOpts{
			Name: "storefront_order_tx_retries_total",
			Help: "Total number of order transactions retried after a concurrent update",
		}),
		unitsSold: registerCounter(registerer, prometheus.CounterOpts{
			Name: "storefront_units_sold_total",
			Help: "Total number of product units sold",
		}),
		inFlight: registerGauge(registerer, prometheus.GaugeOpts{
			Name: "storefront_orders_in_flight",
			Help: "Number of CreateOrder calls currently in progress",
		}),
	}
}

// RecordOrderCreated учитывает успешный заказ и количество проданных единиц.
func (m *OrderMetrics) RecordOrderCreated(units int64) {
	m.ordersCreated.Inc()
	if units > 0 {
		m.unitsSold.Add(float64(units))
	}
}

// RecordOrderFailed увеличивает счётчик отказов по причине reason.
func (m *OrderMetrics) RecordOrderFailed(reason string) {
	m.ordersFailed.WithLabelValues(reason).Inc()
}

// RecordCreateDuration записывает длительность CreateOrder.
func (m *OrderMetrics) RecordCreateDuration(duration time.Duration) {
	m.createDuration.Observe(duration.Seconds())
}

// RecordTxRetry учитывает повтор транзакции.
func (m *OrderMetrics) RecordTxRetry() {
	m.txRetries.Inc()
}

// InFlightStarted увеличивает число выполняющихся CreateOrder.
func (m *OrderMetrics) InFlightStarted() {
	m.inFlight.Inc()
}

// InFlightFinished уменьшает число выполняющихся CreateOrder.
func (m *OrderMetrics) InFlightFinished() {
	m.inFlight.Dec()
}
