package metrics

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
)

// CheckoutMetrics records outcomes and latency for checkout attempts.
type CheckoutMetrics struct {
	duration *prometheus.HistogramVec
	attempts *prometheus.CounterVec
}

// NewCheckoutMetrics registers the checkout metrics on the provided registerer.
func NewCheckoutMetrics(reg prometheus.Registerer) *CheckoutMetrics {
	if reg == nil {
		return &CheckoutMetrics{}
	}
	duration := prometheus.NewHistogramVec(prometheus.HistogramOpts{
		Name:    "checkout_duration_seconds",
		Help:    "Duration of checkout executions in seconds.",
		Buckets: prometheus.DefBuckets,
	}, []string{"payment_method"})
	attempts := prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "checkouts_total",
		Help: "Checkout attempts partitioned by terminal status.",
	}, []string{"status", "payment_method"})
	reg.MustRegister(duration, attempts)
	return &CheckoutMetrics{
		duration: duration,
		attempts: attempts,
	}
}

// ObserveDuration records how long a checkout took for the payment method.
func (c *CheckoutMetrics) ObserveDuration(paymentMethod string, duration time.Duration) {
	if c == nil || c.duration == nil {
		return
	}
	c.duration.WithLabelValues(normalizeLabel(paymentMethod)).Observe(duration.Seconds())
}

// IncCompleted increments the counter for a checkout that produced an order.
func (c *CheckoutMetrics) IncCompleted(paymentMethod string) {
	c.inc("completed", paymentMethod)
}

// IncRejected increments the counter for a checkout blocked by validation.
func (c *CheckoutMetrics) IncRejected(paymentMethod string) {
	c.inc("rejected", paymentMethod)
}

// IncFailed increments the counter for a checkout that hit an internal failure.
func (c *CheckoutMetrics) IncFailed(paymentMethod string) {
	c.inc("failed", paymentMethod)
}

func (c *CheckoutMetrics) inc(status, paymentMethod string) {
	if c == nil || c.attempts == nil {
		return
	}
	c.attempts.WithLabelValues(status, normalizeLabel(paymentMethod)).Inc()
}

func normalizeLabel(value string) string {
	if value == "" {
		return "unknown"
	}
	return value
}
