package acs

import "github.com/prometheus/client_golang/prometheus"

// Metrics holds the small set of counters and gauges this core exposes.
// Each Session owns its own registry rather than registering onto the
// global default, so callers embedding multiple panel sessions in one
// process (or running sessions in tests) never collide on metric names.
type Metrics struct {
	Registry *prometheus.Registry

	FramesSent     *prometheus.CounterVec
	FramesReceived *prometheus.CounterVec
	AcksSent       prometheus.Counter
	PanelErrors    *prometheus.CounterVec
	Reconnects     prometheus.Counter
	State          *prometheus.GaugeVec
}

func newMetrics() *Metrics {
	reg := prometheus.NewRegistry()
	m := &Metrics{
		Registry: reg,
		FramesSent: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "acs",
			Name:      "frames_sent_total",
			Help:      "Frames written to the panel socket, by packet type.",
		}, []string{"packet_type"}),
		FramesReceived: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "acs",
			Name:      "frames_received_total",
			Help:      "Frames decoded off the panel socket, by packet type.",
		}, []string{"packet_type"}),
		AcksSent: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: "acs",
			Name:      "acks_sent_total",
			Help:      "ACK frames transmitted in response to DATA pushes.",
		}),
		PanelErrors: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "acs",
			Name:      "panel_errors_total",
			Help:      "NACK responses to entity status requests, by error code. Index-not-valid NACKs and NACKs to other commands are not counted.",
		}, []string{"code"}),
		Reconnects: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: "acs",
			Name:      "reconnects_total",
			Help:      "Number of successful connect-and-login cycles run by the session manager, the first one included.",
		}),
		State: prometheus.NewGaugeVec(prometheus.GaugeOpts{
			Namespace: "acs",
			Name:      "session_state",
			Help:      "1 for the session's current state, 0 otherwise.",
		}, []string{"state"}),
	}
	reg.MustRegister(m.FramesSent, m.FramesReceived, m.AcksSent, m.PanelErrors, m.Reconnects, m.State)
	return m
}

func (m *Metrics) setState(s State) {
	for _, name := range stateNames {
		v := 0.0
		if name == s.String() {
			v = 1
		}
		m.State.WithLabelValues(name).Set(v)
	}
}

var stateNames = []string{
	Disconnected.String(), Connecting.String(), Connected.String(),
	LoggingIn.String(), Authenticated.String(), Disconnecting.String(), Lost.String(),
}
