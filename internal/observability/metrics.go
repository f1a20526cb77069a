package observability

import (
	"net/http"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

var (
	registry *prometheus.Registry

	// HTTP request rate on the headless screen. Watch for: refresh storms from a polling client.
	HTTPRequestsTotal *prometheus.CounterVec

	// HTTP request latency per request. Refresh/retry include a full upstream cycle.
	HTTPRequestDuration *prometheus.HistogramVec

	// Concurrent requests in flight.
	HTTPRequestsInFlight prometheus.Gauge

	// OpenWeatherMap API call rate. Watch for: error vs success ratio.
	WeatherAPICallsTotal *prometheus.CounterVec

	// External API latency per request. Watch for: p95 > 2s (upstream degradation).
	WeatherAPIDuration *prometheus.HistogramVec

	// Position lookups per source and result (granted/denied/success/unavailable/invalid).
	LocationLookupsTotal *prometheus.CounterVec

	// Completed screen cycles by trigger (mount/refresh/retry) and outcome.
	ScreenCyclesTotal *prometheus.CounterVec

	// Calls that joined a cycle already in flight instead of starting a new one.
	ScreenCycleJoinsTotal prometheus.Counter

	// Displayed state: 0 loading, 1 error, 2 ready.
	ScreenState prometheus.Gauge

	// 1 while a refresh is revalidating the displayed state.
	ScreenRefreshing prometheus.Gauge

	// Circuit breaker transitions for the weather API.
	CircuitBreakerTransitionsTotal *prometheus.CounterVec

	// Rate limit denials on /screen actions.
	RateLimitDeniedTotal prometheus.Counter
)

func init() {
	registry = prometheus.NewRegistry()

	registry.MustRegister(
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
		collectors.NewGoCollector(),
	)

	HTTPRequestsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "httpRequestsTotal",
			Help: "Total number of HTTP requests",
		},
		[]string{"method", "route", "statusCode"},
	)
	HTTPRequestDuration = prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "httpRequestDurationSeconds",
			Help:    "HTTP request latency in seconds (per request)",
			Buckets: prometheus.DefBuckets,
		},
		[]string{"method", "route"},
	)
	HTTPRequestsInFlight = prometheus.NewGauge(
		prometheus.GaugeOpts{
			Name: "httpRequestsInFlight",
			Help: "Number of HTTP requests currently being served",
		},
	)
	WeatherAPICallsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "weatherApiCallsTotal",
			Help: "Total number of OpenWeatherMap API calls",
		},
		[]string{"status"},
	)
	WeatherAPIDuration = prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "weatherApiDurationSeconds",
			Help:    "OpenWeatherMap API latency in seconds (per request)",
			Buckets: []float64{.1, .25, .5, 1, 2.5, 5, 10},
		},
		[]string{"status"},
	)
	LocationLookupsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "locationLookupsTotal",
			Help: "Authorization requests and position fixes by source and result",
		},
		[]string{"source", "result"},
	)
	ScreenCyclesTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "screenCyclesTotal",
			Help: "Completed authorize/locate/fetch cycles by trigger and outcome",
		},
		[]string{"trigger", "outcome"},
	)
	ScreenCycleJoinsTotal = prometheus.NewCounter(
		prometheus.CounterOpts{
			Name: "screenCycleJoinsTotal",
			Help: "Screen actions that joined an in-flight cycle",
		},
	)
	ScreenState = prometheus.NewGauge(
		prometheus.GaugeOpts{
			Name: "screenState",
			Help: "Displayed screen state (0 loading, 1 error, 2 ready)",
		},
	)
	ScreenRefreshing = prometheus.NewGauge(
		prometheus.GaugeOpts{
			Name: "screenRefreshing",
			Help: "1 while the displayed state is being revalidated",
		},
	)
	CircuitBreakerTransitionsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "circuitBreakerTransitionsTotal",
			Help: "Circuit breaker state transitions",
		},
		[]string{"component", "from", "to"},
	)
	RateLimitDeniedTotal = prometheus.NewCounter(
		prometheus.CounterOpts{
			Name: "rateLimitDeniedTotal",
			Help: "Total number of requests denied by rate limiter (429)",
		},
	)

	registry.MustRegister(
		HTTPRequestsTotal, HTTPRequestDuration, HTTPRequestsInFlight,
		WeatherAPICallsTotal, WeatherAPIDuration,
		LocationLookupsTotal,
		ScreenCyclesTotal, ScreenCycleJoinsTotal, ScreenState, ScreenRefreshing,
		CircuitBreakerTransitionsTotal,
		RateLimitDeniedTotal,
	)
}

// RecordCircuitBreakerTransition counts a breaker state change.
func RecordCircuitBreakerTransition(component, from, to string) {
	CircuitBreakerTransitionsTotal.WithLabelValues(component, from, to).Inc()
}

// SetScreenState publishes the displayed state and the refreshing overlay.
func SetScreenState(phase int, refreshing bool) {
	ScreenState.Set(float64(phase))
	if refreshing {
		ScreenRefreshing.Set(1)
	} else {
		ScreenRefreshing.Set(0)
	}
}

// MetricsHandler returns an http.Handler that serves application and runtime metrics.
func MetricsHandler() http.Handler {
	return promhttp.HandlerFor(registry, promhttp.HandlerOpts{})
}
