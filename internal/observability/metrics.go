package observability

import (
	"strconv"
	"sync"
	"time"

	"github.com/prometheus/client_golang/prometheus"
)

var (
	registerOnce           sync.Once
	httpDurationHistogram  *prometheus.HistogramVec
	outboxBacklogGauge     prometheus.Gauge
	outboxDispatchCounter  *prometheus.CounterVec
	settlementCounter      *prometheus.CounterVec
	interestAppliedCounter *prometheus.CounterVec
	idempotencyCounter     *prometheus.CounterVec
	workerRunCounter       *prometheus.CounterVec
)

// Init registers all Prometheus collectors.
func Init() {
	registerOnce.Do(func() {
		httpDurationHistogram = prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Name:    "http_request_duration_seconds",
			Help:    "HTTP request latency",
			Buckets: prometheus.DefBuckets,
		}, []string{"method", "path", "status"})

		outboxBacklogGauge = prometheus.NewGauge(prometheus.GaugeOpts{
			Name: "outbox_pending_events",
			Help: "Current number of undispatched outbox events",
		})

		outboxDispatchCounter = prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "outbox_dispatched_total",
			Help: "Outbox dispatch outcomes",
		}, []string{"result"})

		settlementCounter = prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "transfer_settlements_total",
			Help: "Transfer settlement outcomes",
		}, []string{"result"})

		interestAppliedCounter = prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "interest_applications_total",
			Help: "Monthly interest applications by currency",
		}, []string{"currency"})

		idempotencyCounter = prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "idempotency_events_total",
			Help: "Idempotency middleware outcomes",
		}, []string{"outcome"})

		workerRunCounter = prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "worker_runs_total",
			Help: "Background worker run outcomes",
		}, []string{"worker", "result"})

		prometheus.MustRegister(
			httpDurationHistogram,
			outboxBacklogGauge,
			outboxDispatchCounter,
			settlementCounter,
			interestAppliedCounter,
			idempotencyCounter,
			workerRunCounter,
		)
	})
}

func ObserveHTTP(method, path string, status int, duration time.Duration) {
	if httpDurationHistogram == nil {
		return
	}
	httpDurationHistogram.WithLabelValues(method, path, strconv.Itoa(status)).Observe(duration.Seconds())
}

func SetOutboxBacklog(size int64) {
	if outboxBacklogGauge == nil {
		return
	}
	outboxBacklogGauge.Set(float64(size))
}

func IncrementOutboxDispatch(result string) {
	if outboxDispatchCounter == nil {
		return
	}
	outboxDispatchCounter.WithLabelValues(result).Inc()
}

func IncrementSettlement(result string) {
	if settlementCounter == nil {
		return
	}
	settlementCounter.WithLabelValues(result).Inc()
}

func IncrementInterestApplied(currency string) {
	if interestAppliedCounter == nil {
		return
	}
	interestAppliedCounter.WithLabelValues(currency).Inc()
}

func IncrementIdempotencyEvent(outcome string) {
	if idempotencyCounter == nil {
		return
	}
	idempotencyCounter.WithLabelValues(outcome).Inc()
}

func IncrementWorkerRun(worker, result string) {
	if workerRunCounter == nil {
		return
	}
	workerRunCounter.WithLabelValues(worker, result).Inc()
}
