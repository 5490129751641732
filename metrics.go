package genet

import "github.com/prometheus/client_golang/prometheus"

// Collector exposes live Host/Peer state as Prometheus metrics without
// the engine itself taking a dependency on a registry — the caller
// registers it where convenient (spec §6.x supplemented feature: ENet
// has no metrics surface, but every Go service in the retrieval pack
// that exposes operational state does so via client_golang, so the host
// gets one seam for it).
type Collector struct {
	host *Host

	connectedPeers *prometheus.Desc
	packetLoss     *prometheus.Desc
	roundTripTime  *prometheus.Desc
	outgoingQueue  *prometheus.Desc
}

// NewCollector builds a Collector over h. Register it with a
// prometheus.Registerer; genet never registers it implicitly.
func NewCollector(h *Host) *Collector {
	return &Collector{
		host: h,
		connectedPeers: prometheus.NewDesc(
			"genet_connected_peers", "Number of peers currently connected.", nil, nil),
		packetLoss: prometheus.NewDesc(
			"genet_peer_packet_loss_ratio", "Peer packet loss ratio over the last closed epoch.",
			[]string{"peer"}, nil),
		roundTripTime: prometheus.NewDesc(
			"genet_peer_round_trip_time_seconds", "Peer smoothed round-trip time.",
			[]string{"peer"}, nil),
		outgoingQueue: prometheus.NewDesc(
			"genet_peer_outgoing_queue_length", "Pending outgoing commands per peer.",
			[]string{"peer", "reliability"}, nil),
	}
}

func (c *Collector) Describe(ch chan<- *prometheus.Desc) {
	ch <- c.connectedPeers
	ch <- c.packetLoss
	ch <- c.roundTripTime
	ch <- c.outgoingQueue
}

func (c *Collector) Collect(ch chan<- prometheus.Metric) {
	connected := 0
	for _, p := range c.host.peers {
		if p.state != StateConnected {
			continue
		}
		connected++
		addr := p.address.String()
		ch <- prometheus.MustNewConstMetric(c.packetLoss, prometheus.GaugeValue, p.PacketLoss(), addr)
		ch <- prometheus.MustNewConstMetric(c.roundTripTime, prometheus.GaugeValue, p.RTT().Seconds(), addr)
		ch <- prometheus.MustNewConstMetric(c.outgoingQueue, prometheus.GaugeValue, float64(len(p.outgoingReliable)), addr, "reliable")
		ch <- prometheus.MustNewConstMetric(c.outgoingQueue, prometheus.GaugeValue, float64(len(p.outgoingUnreliable)), addr, "unreliable")
	}
	ch <- prometheus.MustNewConstMetric(c.connectedPeers, prometheus.GaugeValue, float64(connected))
}
