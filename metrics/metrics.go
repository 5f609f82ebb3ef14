package metrics

import (
	"net/http"
	"strconv"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

const namespace = "expenses"

// Own registry so tests and repeated server construction never collide with
// the global default.
var registry = prometheus.NewRegistry()

var (
	expensesCreated = prometheus.NewCounter(prometheus.CounterOpts{
		Namespace: namespace,
		Name:      "created_total",
		Help:      "Expenses persisted and announced",
	})
	expensesRejected = prometheus.NewCounterVec(prometheus.CounterOpts{
		Namespace: namespace,
		Name:      "rejected_total",
		Help:      "Create requests rejected by validation",
	}, []string{"reason"})
	eventsPublished = prometheus.NewCounterVec(prometheus.CounterOpts{
		Namespace: namespace,
		Name:      "events_published_total",
		Help:      "Domain events handed to the transport",
	}, []string{"transport", "status"})
	httpDuration = prometheus.NewHistogramVec(prometheus.HistogramOpts{
		Namespace: namespace,
		Name:      "http_request_duration_seconds",
		Help:      "API request latency",
		Buckets:   prometheus.DefBuckets,
	}, []string{"route", "status"})
)

var handler = promhttp.HandlerFor(registry, promhttp.HandlerOpts{})

func init() {
	registry.MustRegister(expensesCreated, expensesRejected, eventsPublished, httpDuration)
}

func IncExpenseCreated()               { expensesCreated.Inc() }
func IncExpenseRejected(reason string) { expensesRejected.WithLabelValues(reason).Inc() }

func IncEventPublished(transport string, err error) {
	status := "ok"
	if err != nil {
		status = "error"
	}
	eventsPublished.WithLabelValues(transport, status).Inc()
}

func ObserveRequest(route string, status int, since time.Time) {
	httpDuration.WithLabelValues(route, strconv.Itoa(status)).Observe(time.Since(since).Seconds())
}

// Handler exposes metrics in the Prometheus exposition format.
func Handler(w http.ResponseWriter, r *http.Request) {
	handler.ServeHTTP(w, r)
}
