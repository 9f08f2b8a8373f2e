package monitoring

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"

	"robofabric/internal/core/domain"
)

// PrometheusCollector implements the metrics recorder port on top of
// promauto-registered collectors.
type PrometheusCollector struct {
	roomsActive           *prometheus.GaugeVec
	participantsConnected *prometheus.GaugeVec
	messagesRouted        *prometheus.CounterVec
	fanoutSize            prometheus.Histogram
	backpressureDrops     *prometheus.CounterVec
	signalingRelays       *prometheus.CounterVec
}

func NewPrometheusCollector() *PrometheusCollector {
	return &PrometheusCollector{
		roomsActive: promauto.NewGaugeVec(prometheus.GaugeOpts{
			Name: "robofabric_rooms_active",
			Help: "Number of live rooms",
		}, []string{"protocol"}),

		participantsConnected: promauto.NewGaugeVec(prometheus.GaugeOpts{
			Name: "robofabric_participants_connected",
			Help: "Number of connected participants",
		}, []string{"protocol", "role"}),

		messagesRouted: promauto.NewCounterVec(prometheus.CounterOpts{
			Name: "robofabric_messages_routed_total",
			Help: "Messages dispatched by the room router",
		}, []string{"protocol", "type"}),

		fanoutSize: promauto.NewHistogram(prometheus.HistogramOpts{
			Name:    "robofabric_fanout_size",
			Help:    "Number of receivers per routed message",
			Buckets: []float64{0, 1, 2, 4, 8, 16, 32, 64, 128},
		}),

		backpressureDrops: promauto.NewCounterVec(prometheus.CounterOpts{
			Name: "robofabric_backpressure_drops_total",
			Help: "Outbound frames dropped on slow consumers",
		}, []string{"protocol"}),

		signalingRelays: promauto.NewCounterVec(prometheus.CounterOpts{
			Name: "robofabric_signaling_relays_total",
			Help: "WebRTC signaling messages relayed between peers",
		}, []string{"kind"}),
	}
}

func (p *PrometheusCollector) RoomCreated(protocol domain.Protocol) {
	p.roomsActive.WithLabelValues(string(protocol)).Inc()
}

func (p *PrometheusCollector) RoomDeleted(protocol domain.Protocol) {
	p.roomsActive.WithLabelValues(string(protocol)).Dec()
}

func (p *PrometheusCollector) ParticipantJoined(protocol domain.Protocol, role domain.ParticipantRole) {
	p.participantsConnected.WithLabelValues(string(protocol), string(role)).Inc()
}

func (p *PrometheusCollector) ParticipantLeft(protocol domain.Protocol, role domain.ParticipantRole) {
	p.participantsConnected.WithLabelValues(string(protocol), string(role)).Dec()
}

func (p *PrometheusCollector) MessageRouted(protocol domain.Protocol, msgType domain.MessageType, fanout int) {
	p.messagesRouted.WithLabelValues(string(protocol), string(msgType)).Inc()
	p.fanoutSize.Observe(float64(fanout))
}

func (p *PrometheusCollector) BackpressureDrop(protocol domain.Protocol) {
	p.backpressureDrops.WithLabelValues(string(protocol)).Inc()
}

func (p *PrometheusCollector) SignalRelayed(kind domain.SignalKind) {
	p.signalingRelays.WithLabelValues(string(kind)).Inc()
}
