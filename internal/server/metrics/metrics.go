// Package metrics defines the Prometheus collectors exported by the server.
// All recording methods are safe on a nil *Metrics.
package metrics

import (
	"net/http"
	"strconv"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

const namespace = "smartwaste"

type Metrics struct {
	httpRequests *prometheus.CounterVec
	httpDuration *prometheus.HistogramVec
	logins       *prometheus.CounterVec
	otpIssued    *prometheus.CounterVec
	otpVerified  *prometheus.CounterVec
	uploads      *prometheus.CounterVec
	rewardPoints prometheus.Counter
	throttled    *prometheus.CounterVec
	gatherer     prometheus.Gatherer
}

// New registers the collectors on reg. Pass prometheus.NewRegistry() in
// tests to avoid clashing with the default registry.
func New(reg *prometheus.Registry) *Metrics {
	f := promauto.With(reg)
	return &Metrics{
		httpRequests: f.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "http_requests_total",
			Help:      "Total number of HTTP requests",
		}, []string{"method", "route", "status"}),
		httpDuration: f.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "http_request_duration_seconds",
			Help:      "HTTP request duration in seconds",
			Buckets:   prometheus.DefBuckets,
		}, []string{"method", "route"}),
		logins: f.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "login_attempts_total",
			Help:      "Login attempts by outcome",
		}, []string{"result"}),
		otpIssued: f.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "otp_issued_total",
			Help:      "One-time codes issued by delivery channel",
		}, []string{"channel"}),
		otpVerified: f.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "otp_verifications_total",
			Help:      "One-time code verifications by outcome",
		}, []string{"result"}),
		uploads: f.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "waste_uploads_total",
			Help:      "Waste uploads by source and outcome",
		}, []string{"source", "result"}),
		rewardPoints: f.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "reward_points_total",
			Help:      "Reward points credited to accounts",
		}),
		throttled: f.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "throttled_requests_total",
			Help:      "Requests rejected by the rate limiter",
		}, []string{"scope"}),
		gatherer: reg,
	}
}

// Handler serves the registry in the Prometheus text format.
func (m *Metrics) Handler() http.Handler {
	if m == nil {
		return http.NotFoundHandler()
	}
	return promhttp.HandlerFor(m.gatherer, promhttp.HandlerOpts{})
}

func (m *Metrics) ObserveHTTP(method, route string, status int, seconds float64) {
	if m == nil {
		return
	}
	m.httpRequests.WithLabelValues(method, route, strconv.Itoa(status)).Inc()
	m.httpDuration.WithLabelValues(method, route).Observe(seconds)
}

func (m *Metrics) Login(result string) {
	if m == nil {
		return
	}
	m.logins.WithLabelValues(result).Inc()
}

func (m *Metrics) OTPIssued(channel string) {
	if m == nil {
		return
	}
	m.otpIssued.WithLabelValues(channel).Inc()
}

func (m *Metrics) OTPVerified(result string) {
	if m == nil {
		return
	}
	m.otpVerified.WithLabelValues(result).Inc()
}

// Upload records one upload attempt; points is only added on acceptance.
func (m *Metrics) Upload(source, result string, points int64) {
	if m == nil {
		return
	}
	m.uploads.WithLabelValues(source, result).Inc()
	if points > 0 {
		m.rewardPoints.Add(float64(points))
	}
}

func (m *Metrics) Throttled(scope string) {
	if m == nil {
		return
	}
	m.throttled.WithLabelValues(scope).Inc()
}
