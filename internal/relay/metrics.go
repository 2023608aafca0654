package relay

import "github.com/prometheus/client_golang/prometheus"

var (
	activeStreams = prometheus.NewGaugeVec(
		prometheus.GaugeOpts{
			Namespace: "modelhub",
			Subsystem: "relay",
			Name:      "active_streams",
			Help:      "Streaming operations currently being relayed",
		},
		[]string{"kind"},
	)

	relayedBytes = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "modelhub",
			Subsystem: "relay",
			Name:      "relayed_bytes_total",
			Help:      "Bytes forwarded from upstream to downstream",
		},
		[]string{"kind"},
	)

	streamsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "modelhub",
			Subsystem: "relay",
			Name:      "streams_total",
			Help:      "Completed streaming operations by result",
		},
		[]string{"kind", "result"},
	)
)

func init() {
	prometheus.MustRegister(activeStreams, relayedBytes, streamsTotal)
}
