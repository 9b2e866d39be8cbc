package metrics

import (
	"strconv"
	"strings"
	"sync"

	"github.com/prometheus/client_golang/prometheus"
)

var (
	once sync.Once

	jobsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "recipe_jobs_total",
			Help: "Recipe jobs by terminal status.",
		},
		[]string{"status"},
	)

	admissionRejects = prometheus.NewCounter(
		prometheus.CounterOpts{
			Name: "recipe_jobs_admission_rejected_total",
			Help: "Job submissions rejected for insufficient points.",
		},
	)

	providerLatencyMs = prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "provider_call_latency_ms",
			Help:    "Recognition provider latency in milliseconds.",
			Buckets: []float64{100, 250, 500, 1000, 2500, 5000, 10000, 20000, 40000, 60000},
		},
		[]string{"provider", "success"},
	)

	ledgerOps = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "points_ledger_ops_total",
			Help: "Points ledger operations by op and result.",
		},
		[]string{"op", "result"},
	)

	pointsCharged = prometheus.NewCounter(
		prometheus.CounterOpts{
			Name: "points_charged_total",
			Help: "Points debited for completed jobs.",
		},
	)

	cacheRequests = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "job_cache_requests_total",
			Help: "Job cache lookups by result (hit/miss/error).",
		},
		[]string{"result"},
	)
)

// MustRegister registers collectors with the default registry (idempotent).
func MustRegister() {
	once.Do(func() {
		prometheus.MustRegister(
			jobsTotal, admissionRejects, providerLatencyMs,
			ledgerOps, pointsCharged, cacheRequests,
		)
	})
}

func norm(s string) string { return strings.ToLower(strings.TrimSpace(s)) }

func IncJob(status string) {
	jobsTotal.WithLabelValues(norm(status)).Inc()
}

func AdmissionRejected() {
	admissionRejects.Inc()
}

func ObserveProvider(provider string, latencyMs int64, success bool) {
	providerLatencyMs.WithLabelValues(norm(provider), strconv.FormatBool(success)).
		Observe(float64(latencyMs))
}

func IncLedger(op, result string) {
	ledgerOps.WithLabelValues(norm(op), norm(result)).Inc()
}

func AddCharged(points int64) {
	pointsCharged.Add(float64(points))
}

func IncCache(result string) {
	cacheRequests.WithLabelValues(norm(result)).Inc()
}
