package metrics

import (
	"net/http"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

var (
	BroadcastAttempts = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "akash_deployer_broadcast_attempts_total",
			Help: "Per endpoint transaction broadcast attempts by outcome.",
		},
		[]string{"endpoint", "outcome"},
	)

	BroadcastDuration = prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "akash_deployer_broadcast_duration_seconds",
			Help:    "Time from signing a transaction until the first endpoint reported inclusion.",
			Buckets: prometheus.ExponentialBuckets(0.5, 2, 8),
		},
		[]string{"memo"},
	)

	BidsReceived = prometheus.NewHistogram(
		prometheus.HistogramOpts{
			Name:    "akash_deployer_bids_received",
			Help:    "Number of usable bids seen when a deployment's bid window closed.",
			Buckets: []float64{0, 1, 2, 4, 8, 16, 32},
		},
	)

	WorkflowTransitions = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "akash_deployer_workflow_transitions_total",
			Help: "Deployment and teardown workflow state transitions.",
		},
		[]string{"workflow", "state"},
	)

	WorkflowFailures = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "akash_deployer_workflow_failures_total",
			Help: "Workflows that stopped with an error, labelled by the state they failed in.",
		},
		[]string{"workflow", "state"},
	)

	EndpointFailures = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "akash_deployer_endpoint_failures_total",
			Help: "Ledger endpoints marked failed.",
		},
		[]string{"endpoint"},
	)

	HTTPRequests = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "akash_deployer_http_requests_total",
			Help: "Total number of HTTP API requests.",
		},
		[]string{"method", "path", "status"},
	)
)

func init() {
	prometheus.MustRegister(BroadcastAttempts)
	prometheus.MustRegister(BroadcastDuration)
	prometheus.MustRegister(BidsReceived)
	prometheus.MustRegister(WorkflowTransitions)
	prometheus.MustRegister(WorkflowFailures)
	prometheus.MustRegister(EndpointFailures)
	prometheus.MustRegister(HTTPRequests)
}

// Handler returns the Prometheus metrics handler.
func Handler() http.Handler {
	return promhttp.Handler()
}
