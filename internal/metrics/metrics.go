// Package metrics exposes Prometheus counters for ledger and workflow
// activity.
package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
)

// Metrics holds the collectors recorded by the facade.
type Metrics struct {
	EventsPosted       *prometheus.CounterVec
	EventsReversed     *prometheus.CounterVec
	ExecutionsStarted  *prometheus.CounterVec
	ExecutionsFinished *prometheus.CounterVec
	TasksCompleted     *prometheus.CounterVec
	TaskFailures       *prometheus.CounterVec
	DuplicateRequests  prometheus.Counter
	FIFOShortfalls     prometheus.Counter
}

// New creates the collectors and registers them with reg. A nil reg
// leaves them unregistered, which is what tests use.
func New(reg prometheus.Registerer) *Metrics {
	m := &Metrics{
		EventsPosted: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "karma_inventory_events_posted_total",
				Help: "Inventory events posted, by event type",
			},
			[]string{"event_type"},
		),
		EventsReversed: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "karma_inventory_events_reversed_total",
				Help: "Inventory events reversed by deletion, by event type",
			},
			[]string{"event_type"},
		),
		ExecutionsStarted: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "karma_workflow_executions_started_total",
				Help: "Workflow executions started, by workflow name",
			},
			[]string{"workflow"},
		),
		ExecutionsFinished: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "karma_workflow_executions_finished_total",
				Help: "Workflow executions reaching a terminal status",
			},
			[]string{"status"},
		),
		TasksCompleted: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "karma_task_executions_completed_total",
				Help: "Task executions completed, by operator",
			},
			[]string{"operator"},
		),
		TaskFailures: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "karma_task_completion_failures_total",
				Help: "Rejected task completions, by error kind",
			},
			[]string{"kind"},
		),
		DuplicateRequests: prometheus.NewCounter(
			prometheus.CounterOpts{
				Name: "karma_duplicate_requests_total",
				Help: "Task completions skipped because their request id was already used",
			},
		),
		FIFOShortfalls: prometheus.NewCounter(
			prometheus.CounterOpts{
				Name: "karma_fifo_shortfalls_total",
				Help: "FIFO selections that could not cover the required quantity",
			},
		),
	}
	if reg != nil {
		reg.MustRegister(
			m.EventsPosted,
			m.EventsReversed,
			m.ExecutionsStarted,
			m.ExecutionsFinished,
			m.TasksCompleted,
			m.TaskFailures,
			m.DuplicateRequests,
			m.FIFOShortfalls,
		)
	}
	return m
}
