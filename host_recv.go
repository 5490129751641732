package genet

import (
	"encoding/binary"

	"go.uber.org/zap"
)

// receiveIncoming drains up to maxReceivesPerService datagrams currently
// pending on the socket, verifying and parsing each before routing its
// commands to the owning peer (spec §4.1/§4.8). It never blocks; callers
// pair it with Socket.Wait.
func (h *Host) receiveIncoming() error {
	for i := 0; i < maxReceivesPerService; i++ {
		n, from, err := h.socket.RecvFrom(h.recvBuf)
		if err != nil {
			return err
		}
		if n == 0 {
			return nil
		}
		buf := append([]byte(nil), h.recvBuf[:n]...)

		if h.intercept != nil && h.intercept(buf, from) {
			continue
		}
		h.handleDatagram(buf, from)
	}
	return nil
}

func (h *Host) handleDatagram(buf []byte, from Address) {
	hdr, n, ok := decodeDatagramHeader(buf)
	if !ok {
		return
	}
	rest := buf[n:]
	if len(rest) < checksumSize {
		return
	}
	gotSum := binary.BigEndian.Uint32(rest[:checksumSize])
	checked := append([]byte(nil), buf...)
	binary.BigEndian.PutUint32(checked[n:n+checksumSize], 0)
	if h.checksum(([][]byte{checked})) != gotSum {
		return
	}
	body := rest[checksumSize:]

	if hdr.compressed {
		if h.compressor == nil {
			return
		}
		decompressed, err := h.compressor.Decompress(body, int(h.mtu)*2)
		if err != nil {
			return
		}
		body = decompressed
	}

	anonymous := hdr.peerID == anonymousPID
	cmds, ok := decodeCommands(body, anonymous)
	if len(cmds) == 0 || (anonymous && !ok) {
		return
	}

	var p *Peer
	if !anonymous {
		if int(hdr.peerID) >= len(h.peers) {
			return
		}
		p = h.peers[hdr.peerID]
		if p.state == StateDisconnected || !p.address.Equal(from) {
			return
		}
		p.lastReceiveTime = h.now()
	}

	for _, c := range cmds {
		if anonymous {
			if c.header.tag() != cmdConnect {
				return
			}
			h.handleConnect(c, from)
			continue
		}
		h.handleCommand(p, c)
	}
}

func (h *Host) handleCommand(p *Peer, c *command) {
	if isAcknowledgeable(c.header.tag()) {
		p.acknowledgements = append(p.acknowledgements, acknowledgement{
			channelID:   c.header.channelID,
			reliableSeq: c.header.reliableSeq,
			sentTime:    uint16(h.now()),
		})
	}

	switch c.header.tag() {
	case cmdAcknowledge:
		h.handleAcknowledge(p, c)
	case cmdVerifyConnect:
		h.handleVerifyConnect(p, c)
	case cmdDisconnect:
		h.handleDisconnect(p, c)
	case cmdPing:
		// acknowledgement queued above is enough to keep the peer alive.
	case cmdSendReliable:
		h.handleSendReliable(p, c)
	case cmdSendFragment:
		h.handleSendFragment(p, c)
	case cmdSendUnreliable:
		h.handleSendUnreliable(p, c)
	case cmdSendUnreliableFragment:
		h.handleSendUnreliableFragment(p, c)
	case cmdSendUnsequenced:
		h.handleSendUnsequenced(p, c)
	case cmdBandwidthLimit:
		p.incomingBandwidth = c.bwIncoming
		p.outgoingBandwidth = c.bwOutgoing
	case cmdThrottleConfigure:
		p.packetThrottleInterval = msDuration(c.throttleInterval)
		p.packetThrottleAcceleration = c.throttleAcceleration
		p.packetThrottleDeceleration = c.throttleDeceleration
	}
}

func (h *Host) handleAcknowledge(p *Peer, c *command) {
	for i, oc := range p.sentReliable {
		if oc.command.header.channelID == c.header.channelID && oc.command.header.reliableSeq == c.receivedReliableSeq {
			rtt := msDuration(timeDiff32(h.now(), oc.sentTime))
			p.sampleRTT(rtt)
			if ch := channelFor(p, oc.command.header.channelID); ch != nil {
				ch.releaseWindow(oc.command.header.reliableSeq.window())
			}
			if p.reliableDataInTransit >= uint32(len(oc.command.data)) {
				p.reliableDataInTransit -= uint32(len(oc.command.data))
			} else {
				p.reliableDataInTransit = 0
			}
			oc.releasePacket()
			p.sentReliable = append(p.sentReliable[:i], p.sentReliable[i+1:]...)
			return
		}
	}
}

// handleDisconnect reports the disconnect to the application, then lets
// the ACKNOWLEDGE already queued for this command (see handleCommand)
// drain on the next flush before the peer slot is actually recycled
// (spec §4.2's ACKNOWLEDGING_DISCONNECT state). A peer that had not
// finished connecting has no flush worth waiting for.
func (h *Host) handleDisconnect(p *Peer, c *command) {
	h.queueEvent(Event{Type: EventDisconnect, Peer: p, Data: c.disconnectData})
	if p.state == StateConnecting || p.state == StateAcknowledgingConnect {
		h.resetPeer(p)
		return
	}
	p.state = StateAcknowledgingDisconnect
}

// handleConnect services a CONNECT from an address with no existing
// peer slot: it allocates one, negotiates the lower of the two sides'
// parameters, and replies with VERIFY_CONNECT (spec §4.2).
func (h *Host) handleConnect(c *command, from Address) {
	for _, existing := range h.peers {
		if existing.state != StateDisconnected && existing.address.Equal(from) {
			h.logger.Debug("duplicate connect rejected", zap.String("addr", from.String()))
			return
		}
	}

	p := h.allocPeer()
	if p == nil {
		return
	}
	channelCount := int(c.channelCount)
	if channelCount <= 0 || channelCount > h.channelLimit {
		channelCount = h.channelLimit
	}
	p.address = from
	p.setChannelCount(channelCount)
	p.incomingPeerID = uint16(p.index)
	p.outgoingPeerID = c.outgoingPeerID
	p.outgoingSessionID = c.incomingSessionID
	p.incomingSessionID = c.outgoingSessionID
	p.connectID = c.connectID
	p.connectData = c.connectData
	p.lastReceiveTime = h.now()

	if c.mtu < p.mtu {
		p.mtu = c.mtu
	}
	if p.mtu < minMTU {
		p.mtu = minMTU
	}
	if p.mtu > maxMTU {
		p.mtu = maxMTU
	}
	p.windowSize = windowSizeScale
	if c.windowSize < p.windowSize {
		p.windowSize = c.windowSize
	}
	p.incomingBandwidth = c.incomingBandwidth
	p.outgoingBandwidth = c.outgoingBandwidth
	p.packetThrottleInterval = msDuration(c.packetThrottleInterval)
	p.packetThrottleAcceleration = c.packetThrottleAcceleration
	p.packetThrottleDeceleration = c.packetThrottleDeceleration

	reply := &command{}
	reply.header.flags = cmdVerifyConnect | cmdFlagAcknowledge
	reply.header.channelID = controlChannelID
	reply.header.reliableSeq = p.nextReliableSeq(controlChannelID)
	reply.outgoingPeerID = p.incomingPeerID
	reply.incomingSessionID = p.incomingSessionID
	reply.outgoingSessionID = p.outgoingSessionID
	reply.mtu = p.mtu
	reply.windowSize = p.windowSize
	reply.channelCount = uint32(channelCount)
	reply.incomingBandwidth = h.incomingBandwidth
	reply.outgoingBandwidth = h.outgoingBandwidth
	reply.packetThrottleInterval = uint32(p.packetThrottleInterval.Milliseconds())
	reply.packetThrottleAcceleration = p.packetThrottleAcceleration
	reply.packetThrottleDeceleration = p.packetThrottleDeceleration
	reply.connectID = p.connectID

	p.outgoingReliable = append(p.outgoingReliable, &outgoingCommand{command: *reply, reliable: true})
	p.state = StateConnected
	h.queueEvent(Event{Type: EventConnect, Peer: p, Data: p.connectData})
}

func (h *Host) handleVerifyConnect(p *Peer, c *command) {
	if p.state != StateConnecting || c.connectID != p.connectID {
		return
	}
	p.outgoingPeerID = c.outgoingPeerID
	p.incomingSessionID = c.incomingSessionID
	p.outgoingSessionID = c.outgoingSessionID
	if c.mtu < p.mtu {
		p.mtu = c.mtu
	}
	if c.windowSize < p.windowSize {
		p.windowSize = c.windowSize
	}
	p.incomingBandwidth = c.incomingBandwidth
	p.outgoingBandwidth = c.outgoingBandwidth
	p.state = StateConnected
	h.queueEvent(Event{Type: EventConnect, Peer: p, Data: p.connectData})
}

func (h *Host) handleSendReliable(p *Peer, c *command) {
	ch := channelFor(p, c.header.channelID)
	if ch == nil {
		return
	}
	if !ch.incomingReliableSeq.less(c.header.reliableSeq) {
		return // already delivered, duplicate retransmission
	}
	ic := &incomingCommand{command: *c, packet: NewPacket(c.data, PacketNoAllocate)}
	ch.insertIncomingReliable(ic)
	h.popReadyReliable(p, ch)
	h.queueDispatch(p)
}

func (h *Host) handleSendFragment(p *Peer, c *command) {
	ch := channelFor(p, c.header.channelID)
	if ch == nil {
		return
	}
	ic, exists := ch.reassembling[c.startSeq]
	if !exists {
		ic = newFragmentAssembly(c, c.totalLength, c.fragmentCount)
		ic.command.header.reliableSeq = seq16(c.startSeq)
		ch.reassembling[c.startSeq] = ic
	}
	complete, ok := ic.addFragment(c.fragmentNumber, c.fragmentOffset, c.data)
	if !ok {
		return
	}
	if complete {
		delete(ch.reassembling, c.startSeq)
		ch.insertIncomingReliable(ic)
		h.popReadyReliable(p, ch)
		h.queueDispatch(p)
	}
}

// popReadyReliable releases every contiguous, fully-assembled reliable
// command at the front of ch's incoming queue to the peer's dispatch
// list, preserving delivery order (spec §4.3).
func (h *Host) popReadyReliable(p *Peer, ch *channel) {
	for len(ch.incomingReliable) > 0 {
		ic := ch.incomingReliable[0]
		if !ch.incomingReliableSeq.less(ic.command.header.reliableSeq) {
			// already delivered: a duplicate that was queued before its
			// first copy was popped.
			ch.incomingReliable = ch.incomingReliable[1:]
			continue
		}
		want := ch.incomingReliableSeq + 1
		if ic.command.header.reliableSeq != want {
			break
		}
		ch.incomingReliableSeq = want
		if ic.fragmentCount > 1 {
			// a fragmented packet used one reliable sequence number per
			// fragment, starting at its startSeq.
			ch.incomingReliableSeq += seq16(ic.fragmentCount - 1)
		}
		ch.incomingReliable = ch.incomingReliable[1:]
		p.dispatched = append(p.dispatched, dispatchedPacket{channelID: ic.command.header.channelID, packet: ic.packet})
	}
}

func (h *Host) handleSendUnreliable(p *Peer, c *command) {
	ch := channelFor(p, c.header.channelID)
	if ch == nil {
		return
	}
	if c.unreliableSeq <= uint16(ch.incomingUnreliableSeq) && ch.incomingUnreliableSeq != 0 {
		return
	}
	ch.incomingUnreliableSeq = seq16(c.unreliableSeq)
	p.dispatched = append(p.dispatched, dispatchedPacket{channelID: c.header.channelID, packet: NewPacket(c.data, PacketNoAllocate)})
	h.queueDispatch(p)
}

func (h *Host) handleSendUnreliableFragment(p *Peer, c *command) {
	ch := channelFor(p, c.header.channelID)
	if ch == nil {
		return
	}
	ic, exists := ch.reassembling[c.startSeq|0x8000]
	if !exists {
		ic = newFragmentAssembly(c, c.totalLength, c.fragmentCount)
		ch.reassembling[c.startSeq|0x8000] = ic
	}
	complete, ok := ic.addFragment(c.fragmentNumber, c.fragmentOffset, c.data)
	if !ok {
		return
	}
	if complete {
		delete(ch.reassembling, c.startSeq|0x8000)
		p.dispatched = append(p.dispatched, dispatchedPacket{channelID: c.header.channelID, packet: ic.packet})
		h.queueDispatch(p)
	}
}

func (h *Host) handleSendUnsequenced(p *Peer, c *command) {
	rel := c.unsequencedGroup - p.unsequencedBase
	if rel >= unsequencedWindowSize {
		if c.unsequencedGroup < p.unsequencedBase {
			return
		}
		shift := rel - unsequencedWindowSize + 1
		shiftWords := shift / 32
		if shiftWords >= unsequencedWindowWords {
			for i := range p.unsequencedWindow {
				p.unsequencedWindow[i] = 0
			}
		} else if shiftWords > 0 {
			copy(p.unsequencedWindow[:], p.unsequencedWindow[shiftWords:])
			for i := unsequencedWindowWords - shiftWords; i < unsequencedWindowWords; i++ {
				p.unsequencedWindow[i] = 0
			}
		}
		p.unsequencedBase += shift
		rel = c.unsequencedGroup - p.unsequencedBase
	}
	word, bit := rel/32, rel%32
	if p.unsequencedWindow[word]&(1<<bit) != 0 {
		return
	}
	p.unsequencedWindow[word] |= 1 << bit
	p.dispatched = append(p.dispatched, dispatchedPacket{channelID: c.header.channelID, packet: NewPacket(c.data, PacketNoAllocate)})
	h.queueDispatch(p)
}
