package genet

import (
	"encoding/binary"
	"time"
)

// checksumSize is the width of the inline datagram checksum field that
// immediately follows the fixed header (spec §4.1/§6.1): the host
// computes it over the whole datagram with this field zeroed, then
// patches it in before sending.
const checksumSize = 4

// flushPeer frames and sends at most one datagram to p, carrying
// pending acknowledgements, due retransmissions, and as much freshly
// queued outgoing traffic as fits p.mtu (spec §4.3/§4.8).
func (h *Host) flushPeer(p *Peer, now uint32) error {
	if p.state == StateDisconnectLater && len(p.outgoingReliable) == 0 && len(p.sentReliable) == 0 {
		p.sendDisconnect(p.eventData)
		p.state = StateDisconnecting
	}

	budget := int(p.mtu) - 2 - checksumSize
	var payload []byte

	for _, ack := range p.acknowledgements {
		c := &command{header: commandHeader{flags: cmdAcknowledge, channelID: ack.channelID}}
		c.receivedReliableSeq = ack.reliableSeq
		c.receivedSentTime = ack.sentTime
		enc := encodeCommand(c)
		if len(enc) > budget {
			break
		}
		payload = append(payload, enc...)
		budget -= len(enc)
	}
	p.acknowledgements = nil

	// Retransmission scan: a command that has sat unacknowledged past its
	// RTO is moved back to the head of outgoingReliable rather than
	// re-sent in place, so it re-validates against the channel's window
	// state like any other pending send. Its RTO is recomputed from the
	// current smoothed RTT and variance rather than doubled, per spec
	// §4.3/§9 (linear backoff, not exponential).
	var stillSent []*outgoingCommand
	var retransmit []*outgoingCommand
	for _, oc := range p.sentReliable {
		if timeDiff32(now, oc.sentTime) < uint32(oc.roundTripTimeout/time.Millisecond) {
			stillSent = append(stillSent, oc)
			continue
		}
		oc.sendAttempts++
		oc.roundTripTimeout = p.initialRTO()
		if p.reliableDataInTransit >= uint32(len(oc.command.data)) {
			p.reliableDataInTransit -= uint32(len(oc.command.data))
		} else {
			p.reliableDataInTransit = 0
		}
		p.recordLost(now)
		retransmit = append(retransmit, oc)
	}
	p.sentReliable = stillSent
	if len(retransmit) > 0 {
		p.outgoingReliable = append(retransmit, p.outgoingReliable...)
	}

	// Reliable send budget: spec §4.3 caps the bytes in flight at
	// min(windowSize * packetThrottle / SCALE, MTU); exceeding it defers
	// the remaining reliable commands to a later tick.
	dataBudget := p.windowSize * p.packetThrottle / packetThrottleScale
	if dataBudget > p.mtu {
		dataBudget = p.mtu
	}

	var remainingReliable []*outgoingCommand
	for i, oc := range p.outgoingReliable {
		window := oc.command.header.reliableSeq.window()
		ch := channelFor(p, oc.command.header.channelID)
		if ch != nil && ch.windowFull(window) {
			remainingReliable = append(remainingReliable, p.outgoingReliable[i:]...)
			break
		}
		fragLen := uint32(len(oc.command.data))
		if p.reliableDataInTransit+fragLen > dataBudget {
			remainingReliable = append(remainingReliable, p.outgoingReliable[i:]...)
			break
		}
		enc := encodeCommand(&oc.command)
		if len(enc) > budget {
			remainingReliable = append(remainingReliable, p.outgoingReliable[i:]...)
			break
		}
		payload = append(payload, enc...)
		budget -= len(enc)
		if oc.packet != nil {
			oc.packet.markSent()
		}

		if ch != nil {
			ch.markWindowUsed(window)
		}
		oc.sentTime = now
		oc.roundTripTimeout = p.initialRTO()
		oc.roundTripTimeoutLimit = p.timeoutMaximum
		p.recordSent()
		p.reliableDataInTransit += fragLen
		p.sentReliable = append(p.sentReliable, oc)
		p.totalWaitingData -= len(oc.command.data)
	}
	p.outgoingReliable = remainingReliable

	// Each queued unreliable command runs the packet-throttle counter
	// gate before being framed: the counter advances by
	// packetThrottleCounter (mod SCALE) per command, and a command is
	// dropped outright once the counter exceeds packetThrottle (spec
	// §4.6).
	var remainingUnreliable []*outgoingCommand
	for i, oc := range p.outgoingUnreliable {
		p.packetThrottleCounter = (p.packetThrottleCounter + packetThrottleCounter) % packetThrottleScale
		if p.packetThrottleCounter > p.packetThrottle {
			p.totalWaitingData -= len(oc.command.data)
			oc.releasePacket()
			continue
		}
		enc := encodeCommand(&oc.command)
		if len(enc) > budget {
			remainingUnreliable = append(remainingUnreliable, p.outgoingUnreliable[i:]...)
			break
		}
		payload = append(payload, enc...)
		budget -= len(enc)
		p.totalWaitingData -= len(oc.command.data)
		if oc.packet != nil {
			oc.packet.markSent()
		}
		oc.releasePacket()
	}
	p.outgoingUnreliable = remainingUnreliable

	if len(payload) == 0 {
		if p.state == StateAcknowledgingDisconnect {
			p.state = StateZombie
			h.resetPeer(p)
		}
		return nil
	}

	compressed := false
	if h.compressor != nil {
		if c, err := h.compressor.Compress(payload); err == nil && len(c) < len(payload) {
			payload = c
			compressed = true
		}
	}

	out := encodeDatagramHeader(datagramHeader{peerID: p.outgoingPeerID, sessionID: p.outgoingSessionID, compressed: compressed})
	out = append(out, make([]byte, checksumSize)...)
	out = append(out, payload...)
	sum := h.checksum([][]byte{out})
	binary.BigEndian.PutUint32(out[len(out)-len(payload)-checksumSize:], sum)

	p.lastSendTime = now
	_, err := h.socket.SendTo(p.address, out)

	if p.state == StateAcknowledgingDisconnect {
		p.state = StateZombie
		h.resetPeer(p)
	}
	return err
}

// initialRTO derives the first retransmission timeout for a newly-sent
// reliable command from the peer's smoothed RTT and variance, clamped
// to the configured timeout bounds (spec §4.6/§4.3).
func (p *Peer) initialRTO() time.Duration {
	rto := p.roundTripTime + 4*p.roundTripTimeVariance
	if rto < p.timeoutMinimum {
		rto = p.timeoutMinimum
	}
	if rto > p.timeoutMaximum {
		rto = p.timeoutMaximum
	}
	return rto
}

func channelFor(p *Peer, channelID byte) *channel {
	if channelID == controlChannelID || int(channelID) >= len(p.channels) {
		return nil
	}
	return &p.channels[channelID]
}

// checkTimeouts disconnects any peer whose oldest unacknowledged
// reliable command has sat for longer than its timeout bounds allow,
// surfacing an EventDisconnectTimeout (spec §4.2/§9).
func (h *Host) checkTimeouts(now uint32) {
	for _, p := range h.peers {
		if p.state != StateConnected && p.state != StateDisconnecting && p.state != StateDisconnectLater {
			continue
		}
		if len(p.sentReliable) == 0 {
			continue
		}
		oldest := p.sentReliable[0]
		elapsed := timeDiff32(now, oldest.sentTime)
		if elapsed < uint32(p.timeoutMinimum/time.Millisecond) {
			continue
		}
		if oldest.sendAttempts >= int(p.timeoutLimit) || elapsed >= uint32(p.timeoutMaximum/time.Millisecond) {
			h.queueEvent(Event{Type: EventDisconnectTimeout, Peer: p, Data: p.eventData})
			h.resetPeer(p)
		}
	}
}
