// Package metrics exposes Prometheus counters for inbound email routing.
package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	// InboundEmails counts webhook deliveries by routing outcome:
	// created, appended, rejected, dropped, empty, invalid.
	InboundEmails = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: "helpdesk",
		Subsystem: "inbound",
		Name:      "emails_total",
		Help:      "Inbound emails by routing outcome.",
	}, []string{"outcome"})

	// Rejections counts rejection responses by reason.
	Rejections = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: "helpdesk",
		Subsystem: "inbound",
		Name:      "rejections_total",
		Help:      "Rejection responses by reason.",
	}, []string{"reason"})

	// TicketsReopened counts closed tickets reopened by a parent reply.
	TicketsReopened = promauto.NewCounter(prometheus.CounterOpts{
		Namespace: "helpdesk",
		Subsystem: "tickets",
		Name:      "reopened_total",
		Help:      "Closed tickets reopened by a parent reply.",
	})

	// QueueDeliveries counts mail queue delivery attempts by result.
	QueueDeliveries = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: "helpdesk",
		Subsystem: "mailqueue",
		Name:      "deliveries_total",
		Help:      "Mail queue delivery attempts by result.",
	}, []string{"result"})
)
