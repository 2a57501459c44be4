package observe

import (
	"github.com/prometheus/client_golang/prometheus"
)

var (
	handshakesTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "socketio_client_handshakes_total",
			Help: "Handshake attempts by result",
		},
		[]string{"result"}, // success|error|timeout|cancelled
	)

	reconnectAttemptsTotal = prometheus.NewCounter(prometheus.CounterOpts{
		Name: "socketio_client_reconnect_attempts_total",
		Help: "Reconnect requests queued after a failure",
	})

	framesTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "socketio_client_frames_total",
			Help: "Frames moved over the transport by direction",
		},
		[]string{"direction"}, // in|out
	)

	pendingAcks = prometheus.NewGauge(prometheus.GaugeOpts{
		Name: "socketio_client_pending_acks",
		Help: "Acknowledgment callbacks waiting for a reply",
	})

	protocolViolationsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "socketio_client_protocol_violations_total",
			Help: "Inbound packets dropped by reason",
		},
		[]string{"kind"},
	)

	activeSessions = prometheus.NewGauge(prometheus.GaugeOpts{
		Name: "socketio_client_active_sessions",
		Help: "Upgraded transport sessions currently open",
	})
)

func init() {
	prometheus.MustRegister(
		handshakesTotal,
		reconnectAttemptsTotal,
		framesTotal,
		pendingAcks,
		protocolViolationsTotal,
		activeSessions,
	)
}

func IncHandshake(result string)       { handshakesTotal.WithLabelValues(result).Inc() }
func IncReconnectAttempt()             { reconnectAttemptsTotal.Inc() }
func IncFrameIn()                      { framesTotal.WithLabelValues("in").Inc() }
func IncFrameOut()                     { framesTotal.WithLabelValues("out").Inc() }
func AddPendingAcks(delta float64)     { pendingAcks.Add(delta) }
func IncProtocolViolation(kind string) { protocolViolationsTotal.WithLabelValues(kind).Inc() }
func AddActiveSessions(delta float64)  { activeSessions.Add(delta) }
