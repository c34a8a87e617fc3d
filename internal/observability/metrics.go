package observability

import (
	"sync"

	"github.com/prometheus/client_golang/prometheus"
)

var (
	registerOnce            sync.Once
	requestsTotal           *prometheus.CounterVec
	latencySeconds          *prometheus.HistogramVec
	errorsTotal             *prometheus.CounterVec
	attemptsStartedTotal    *prometheus.CounterVec
	submissionsTotal        *prometheus.CounterVec
	attemptsExpiredTotal    *prometheus.CounterVec
	gradesConfirmedTotal    *prometheus.CounterVec
	gradebooksComputedTotal prometheus.Counter
)

// RegisterMetrics initialises the Prometheus collectors for the learning
// session core.
func RegisterMetrics() {
	registerOnce.Do(func() {
		requestsTotal = prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "learning_requests_total",
			Help: "Total number of learning API requests served.",
		}, []string{"method", "route", "status"})

		latencySeconds = prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Name:    "learning_latency_seconds",
			Help:    "Latency distribution for learning API requests.",
			Buckets: []float64{0.01, 0.025, 0.05, 0.1, 0.25, 0.5, 1.0, 2.0},
		}, []string{"method", "route"})

		errorsTotal = prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "learning_errors_total",
			Help: "Total number of error responses returned by learning endpoints.",
		}, []string{"method", "route", "status"})

		attemptsStartedTotal = prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "learning_attempts_started_total",
			Help: "Attempts started, labelled by item kind.",
		}, []string{"kind"})

		submissionsTotal = prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "learning_submissions_total",
			Help: "Submissions recorded, labelled by item kind.",
		}, []string{"kind"})

		attemptsExpiredTotal = prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "learning_attempts_expired_total",
			Help: "Submissions rejected past the attempt deadline.",
		}, []string{"kind"})

		gradesConfirmedTotal = prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "learning_grades_confirmed_total",
			Help: "Grades confirmed by graders.",
		}, []string{"kind"})

		gradebooksComputedTotal = prometheus.NewCounter(prometheus.CounterOpts{
			Name: "learning_gradebooks_computed_total",
			Help: "Course gradebook computations performed.",
		})

		prometheus.MustRegister(
			requestsTotal,
			latencySeconds,
			errorsTotal,
			attemptsStartedTotal,
			submissionsTotal,
			attemptsExpiredTotal,
			gradesConfirmedTotal,
			gradebooksComputedTotal,
		)
	})
}

// Requests exposes the counter for served requests.
func Requests() *prometheus.CounterVec {
	RegisterMetrics()
	return requestsTotal
}

// Latency exposes the request latency histogram.
func Latency() *prometheus.HistogramVec {
	RegisterMetrics()
	return latencySeconds
}

// Errors exposes the counter for error responses.
func Errors() *prometheus.CounterVec {
	RegisterMetrics()
	return errorsTotal
}

// AttemptsStarted exposes the started-attempt counter.
func AttemptsStarted() *prometheus.CounterVec {
	RegisterMetrics()
	return attemptsStartedTotal
}

// Submissions exposes the recorded-submission counter.
func Submissions() *prometheus.CounterVec {
	RegisterMetrics()
	return submissionsTotal
}

// AttemptsExpired exposes the expired-attempt counter.
func AttemptsExpired() *prometheus.CounterVec {
	RegisterMetrics()
	return attemptsExpiredTotal
}

// GradesConfirmed exposes the confirmed-grade counter.
func GradesConfirmed() *prometheus.CounterVec {
	RegisterMetrics()
	return gradesConfirmedTotal
}

// GradebooksComputed exposes the gradebook computation counter.
func GradebooksComputed() prometheus.Counter {
	RegisterMetrics()
	return gradebooksComputedTotal
}
