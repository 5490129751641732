package genet

// bandwidthThrottle recomputes each connected peer's outgoing bandwidth
// allowance once per bandwidthThrottleInterval, fairly splitting the
// host's configured outgoingBandwidth among peers that are not
// individually bandwidth-limited, and respecting peers that are (spec
// §4.7). This mirrors the classic water-filling allocation: peers
// capped below the per-peer fair share free up their unused share for
// everyone else, iterated until no peer is newly capped.
func (h *Host) bandwidthThrottle(now uint32) {
	if timeDiff32(now, h.bandwidthThrottleEpoch) < uint32(bandwidthThrottleInterval/1e6) {
		return
	}
	h.bandwidthThrottleEpoch = now

	peers := h.connectedPeers()
	if len(peers) == 0 {
		return
	}

	if h.outgoingBandwidth == 0 {
		for _, p := range peers {
			p.packetThrottleLimit = packetThrottleScale
			if p.packetThrottle > p.packetThrottleLimit {
				p.packetThrottle = p.packetThrottleLimit
			}
			p.outgoingBandwidthThrottleEpoch = now
		}
		h.broadcastBandwidthLimit()
		return
	}

	dataTotal := uint32(0)
	for _, p := range peers {
		dataTotal += p.outgoingDataTotal
	}

	unlimited := append([]*Peer(nil), peers...)
	remaining := h.outgoingBandwidth
	peersRemaining := uint32(len(peers))

	for len(unlimited) > 0 {
		var throttle uint32
		if dataTotal <= remaining {
			throttle = packetThrottleScale
		} else {
			throttle = remaining * packetThrottleScale / dataTotal
		}

		progressed := false
		next := unlimited[:0]
		for _, p := range unlimited {
			if p.incomingBandwidth == 0 || p.outgoingDataTotal == 0 {
				next = append(next, p)
				continue
			}
			if throttle*p.outgoingDataTotal/packetThrottleScale <= p.incomingBandwidth {
				next = append(next, p)
				continue
			}

			limit := p.incomingBandwidth * packetThrottleScale / p.outgoingDataTotal
			if limit == 0 {
				limit = 1
			}
			p.packetThrottleLimit = limit
			if p.packetThrottle > p.packetThrottleLimit {
				p.packetThrottle = p.packetThrottleLimit
			}
			p.outgoingBandwidthThrottleEpoch = now

			peersRemaining--
			if p.incomingBandwidth < remaining {
				remaining -= p.incomingBandwidth
			} else {
				remaining = 0
			}
			if p.outgoingDataTotal < dataTotal {
				dataTotal -= p.outgoingDataTotal
			} else {
				dataTotal = 0
			}
			progressed = true
		}
		unlimited = next
		if !progressed {
			break
		}
	}

	if peersRemaining > 0 {
		var throttle uint32
		if dataTotal <= remaining {
			throttle = packetThrottleScale
		} else {
			throttle = remaining * packetThrottleScale / dataTotal
		}
		for _, p := range unlimited {
			if p.outgoingBandwidthThrottleEpoch == now {
				continue
			}
			p.packetThrottleLimit = throttle
			if p.packetThrottle > p.packetThrottleLimit {
				p.packetThrottle = p.packetThrottleLimit
			}
		}
	}
	h.broadcastBandwidthLimit()
}

// connectedPeers returns every peer currently in StateConnected,
// skipping free/zombie slots.
func (h *Host) connectedPeers() []*Peer {
	out := make([]*Peer, 0, len(h.peers))
	for _, p := range h.peers {
		if p.state == StateConnected {
			out = append(out, p)
		}
	}
	return out
}

// broadcastBandwidthLimit queues a BANDWIDTH_LIMIT control command to
// every connected peer informing it of the host's current bandwidth
// configuration, so the remote side's own throttle math uses fresh
// numbers (spec §4.7).
func (h *Host) broadcastBandwidthLimit() {
	for _, p := range h.connectedPeers() {
		c := &command{}
		c.header.flags = cmdBandwidthLimit | cmdFlagAcknowledge
		c.header.channelID = controlChannelID
		c.header.reliableSeq = p.nextReliableSeq(controlChannelID)
		c.bwIncoming = h.incomingBandwidth
		c.bwOutgoing = h.outgoingBandwidth
		p.outgoingReliable = append(p.outgoingReliable, &outgoingCommand{command: *c, reliable: true})
	}
}
