// Package metrics holds the Prometheus collectors for the OSPF engine.
package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

const namespace = "miniospf"

var (
	PacketsReceived = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: namespace,
		Name:      "packets_received_total",
		Help:      "OSPF packets accepted, by type.",
	}, []string{"type"})

	PacketsSent = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: namespace,
		Name:      "packets_sent_total",
		Help:      "OSPF packets sent, by type.",
	}, []string{"type"})

	PacketsDropped = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: namespace,
		Name:      "packets_dropped_total",
		Help:      "OSPF packets discarded, by reason.",
	}, []string{"reason"})

	NeighborTransitions = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: namespace,
		Name:      "neighbor_transitions_total",
		Help:      "Neighbor state changes, by new state.",
	}, []string{"state"})

	Neighbors = promauto.NewGaugeVec(prometheus.GaugeOpts{
		Namespace: namespace,
		Name:      "neighbors",
		Help:      "Current neighbors, by state.",
	}, []string{"state"})

	Elections = promauto.NewCounter(prometheus.CounterOpts{
		Namespace: namespace,
		Name:      "elections_total",
		Help:      "DR/BDR elections run.",
	})

	LSAOriginations = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: namespace,
		Name:      "lsa_originations_total",
		Help:      "LSAs originated or reoriginated, by LS type.",
	}, []string{"type"})
)
