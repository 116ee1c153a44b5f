package ack

import "github.com/prometheus/client_golang/prometheus"

// metrics are the aggregate ACK counters (spec §4.K): total/success/failed,
// labeled by ack type so persistence, delivery, client and read ACKs are
// distinguishable on a dashboard.
type metrics struct {
	total  *prometheus.CounterVec
	failed *prometheus.CounterVec
}

func newMetrics(reg prometheus.Registerer) *metrics {
	m := &metrics{
		total: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "flare_im",
			Subsystem: "ack",
			Name:      "events_total",
			Help:      "Total ACK events processed, by type and outcome.",
		}, []string{"type", "outcome"}),
		failed: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "flare_im",
			Subsystem: "ack",
			Name:      "failures_total",
			Help:      "ACK events whose underlying operation reported failure, by type.",
		}, []string{"type"}),
	}
	if reg != nil {
		reg.MustRegister(m.total, m.failed)
	}
	return m
}

func (m *metrics) record(ackType, outcome string) {
	m.total.WithLabelValues(ackType, outcome).Inc()
	if outcome == "failed" {
		m.failed.WithLabelValues(ackType).Inc()
	}
}
