package metrics

import (
	"net/http"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

const namespace = "roster"

// Default holds every collector the roster binaries expose.
var Default = prometheus.NewRegistry()

var factory = promauto.With(Default)

func init() {
	Default.MustRegister(
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
	)
}

func DefaultHandler() http.Handler {
	return promhttp.HandlerFor(Default, promhttp.HandlerOpts{})
}

var (
	RemoteRequests = factory.NewCounterVec(prometheus.CounterOpts{
		Namespace: namespace,
		Name:      "remote_requests_total",
		Help:      "Requests sent to the roster authority.",
	}, []string{"op", "outcome"})

	RemoteDuration = factory.NewHistogramVec(prometheus.HistogramOpts{
		Namespace: namespace,
		Name:      "remote_request_duration_seconds",
		Help:      "Latency of requests sent to the roster authority.",
		Buckets:   prometheus.DefBuckets,
	}, []string{"op"})

	TasksInFlight = factory.NewGaugeVec(prometheus.GaugeOpts{
		Namespace: namespace,
		Name:      "tasks_in_flight",
		Help:      "Entities with an operation currently in flight.",
	}, []string{"tracker"})

	RosterParticipants = factory.NewGaugeVec(prometheus.GaugeOpts{
		Namespace: namespace,
		Name:      "console_participants",
		Help:      "Participants in the console's roster snapshot.",
	}, []string{"state"})

	StoreMutations = factory.NewCounterVec(prometheus.CounterOpts{
		Namespace: namespace,
		Name:      "console_mutations_total",
		Help:      "Roster mutations attempted from the console.",
	}, []string{"op", "outcome"})

	AuthorityEvents = factory.NewCounterVec(prometheus.CounterOpts{
		Namespace: namespace,
		Name:      "authority_events_total",
		Help:      "Participant events published by the authority.",
	}, []string{"event_type", "outcome"})

	AuditEvents = factory.NewCounterVec(prometheus.CounterOpts{
		Namespace: namespace,
		Name:      "audit_events_total",
		Help:      "Participant events handled by the audit consumer.",
	}, []string{"event_type", "outcome"})
)
