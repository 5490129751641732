package genet

import "github.com/pkg/errors"

// Send queues pkt for delivery on the given channel according to its
// flags (spec §4.1 "send" operation). The packet is acquired for the
// duration of transmission; the caller may release its own reference
// immediately after Send returns.
func (p *Peer) Send(channelID byte, pkt *Packet) error {
	if p.state != StateConnected && p.state != StateDisconnectLater {
		return errors.WithStack(ErrPeerNotConnected)
	}
	if int(channelID) >= len(p.channels) {
		return errors.WithStack(ErrChannelCount)
	}
	if pkt.Len() > maxMTU*maxFragmentCount {
		return errors.WithStack(ErrPacketTooLarge)
	}

	fragmentSize := int(p.mtu) - datagramOverhead - commandHeaderAndFragmentOverhead
	wholeSize := fragmentSize
	if pkt.Flags()&PacketReliable == 0 {
		wholeSize = int(p.mtu) - datagramOverhead - commandHeaderAndSendOverhead
	}

	if pkt.Len() <= wholeSize {
		return p.sendWhole(channelID, pkt)
	}
	if pkt.Flags()&(PacketReliable|PacketUnreliableFragment) == 0 {
		return errors.WithStack(ErrPacketTooLarge)
	}
	return p.sendFragmented(channelID, pkt, fragmentSize)
}

const (
	commandHeaderAndSendOverhead     = 4 + 4 // header + dataLength/seq fields worst case
	commandHeaderAndFragmentOverhead = 4 + 20
	// datagramOverhead is the 2-byte datagram header plus the checksum
	// field, both reserved by flushPeer out of every datagram.
	datagramOverhead = 2 + checksumSize
)

func (p *Peer) sendWhole(channelID byte, pkt *Packet) error {
	if p.totalWaitingData+pkt.Len() > p.maximumWaitingData {
		return errors.WithStack(ErrWaitingDataExceeded)
	}

	reliable := pkt.Flags()&PacketReliable != 0
	unsequenced := pkt.Flags()&PacketUnsequenced != 0

	oc := &outgoingCommand{packet: pkt, reliable: reliable}
	oc.command.header.channelID = channelID
	pkt.acquire()

	switch {
	case unsequenced:
		oc.command.header.flags = cmdSendUnsequenced | cmdFlagUnsequenced
		p.outgoingUnsequencedGroup++
		oc.command.unsequencedGroup = p.outgoingUnsequencedGroup
	case reliable:
		oc.command.header.flags = cmdSendReliable | cmdFlagAcknowledge
		oc.command.header.reliableSeq = p.nextReliableSeq(channelID)
	default:
		oc.command.header.flags = cmdSendUnreliable
		ch := &p.channels[channelID]
		ch.outgoingUnreliableSeq++
		oc.command.unreliableSeq = uint16(ch.outgoingUnreliableSeq)
	}
	oc.command.data = pkt.Data()

	p.totalWaitingData += pkt.Len()
	if reliable {
		p.outgoingReliable = append(p.outgoingReliable, oc)
	} else {
		p.outgoingUnreliable = append(p.outgoingUnreliable, oc)
	}
	return nil
}

// sendFragmented splits pkt into <= maxFragmentCount fragments per spec
// §4.1's oversized-packet handling, each carried by its own SEND_FRAGMENT
// (or SEND_UNRELIABLE_FRAGMENT) command sharing one startSeq so the
// receiver can reassemble them (spec §4.3).
func (p *Peer) sendFragmented(channelID byte, pkt *Packet, fragmentSize int) error {
	reliable := pkt.Flags()&PacketReliable != 0
	total := pkt.Len()
	fragmentCount := uint32((total + fragmentSize - 1) / fragmentSize)
	if fragmentCount > maxFragmentCount {
		return errors.WithStack(ErrTooManyFragments)
	}
	if p.totalWaitingData+total > p.maximumWaitingData {
		return errors.WithStack(ErrWaitingDataExceeded)
	}

	var startSeq uint16
	if reliable {
		startSeq = uint16(p.peekNextReliableSeq(channelID))
	} else {
		ch := &p.channels[channelID]
		startSeq = uint16(ch.outgoingUnreliableSeq) + 1
	}

	p.totalWaitingData += total
	for i := uint32(0); i < fragmentCount; i++ {
		pkt.acquire()
		off := int(i) * fragmentSize
		end := off + fragmentSize
		if end > total {
			end = total
		}
		oc := &outgoingCommand{packet: pkt, reliable: reliable, fragmentOffset: off, fragmentLength: end - off}
		oc.command.header.channelID = channelID
		oc.command.data = pkt.Data()[off:end]
		oc.command.startSeq = startSeq
		oc.command.fragmentCount = fragmentCount
		oc.command.fragmentNumber = i
		oc.command.totalLength = uint32(total)
		oc.command.fragmentOffset = uint32(off)
		if reliable {
			oc.command.header.flags = cmdSendFragment | cmdFlagAcknowledge
			oc.command.header.reliableSeq = p.nextReliableSeq(channelID)
			p.outgoingReliable = append(p.outgoingReliable, oc)
		} else {
			oc.command.header.flags = cmdSendUnreliableFragment
			ch := &p.channels[channelID]
			ch.outgoingUnreliableSeq++
			oc.command.unreliableSeq = uint16(ch.outgoingUnreliableSeq)
			p.outgoingUnreliable = append(p.outgoingUnreliable, oc)
		}
	}
	return nil
}

// Receive pops the oldest application-ready packet received on any
// channel, in the order Channel dispatch released it (spec §4.9). It
// returns ok=false when nothing is pending.
func (p *Peer) Receive() (channelID byte, pkt *Packet, ok bool) {
	if len(p.dispatched) == 0 {
		return 0, nil, false
	}
	d := p.dispatched[0]
	p.dispatched = p.dispatched[1:]
	return d.channelID, d.packet, true
}

// Ping queues a reliable PING on the control channel, framed on the next
// flush (spec §4.8). It does nothing unless the peer is connected.
func (p *Peer) Ping() {
	if p.state != StateConnected {
		return
	}
	p.queueControl(cmdPing|cmdFlagAcknowledge, controlChannelID)
}

// Disconnect requests a graceful close: pending reliable sends are
// allowed to drain, then DISCONNECT is sent (spec §4.2). If nothing is
// outstanding, DISCONNECT is queued at once and the peer enters
// StateDisconnecting.
func (p *Peer) Disconnect(data uint32) {
	switch p.state {
	case StateDisconnecting, StateDisconnectLater, StateZombie:
		return
	case StateConnectionPending, StateConnectionSucceeded:
		p.DisconnectNow(data)
		return
	}
	if len(p.outgoingReliable) == 0 && len(p.sentReliable) == 0 {
		p.sendDisconnect(data)
		p.state = StateDisconnecting
		return
	}
	p.eventData = data
	p.state = StateDisconnectLater
}

// DisconnectNow tears the peer down immediately without waiting for
// queued reliable data to drain.
func (p *Peer) DisconnectNow(data uint32) {
	if p.state == StateDisconnected {
		return
	}
	if p.state != StateZombie && p.state != StateConnecting {
		p.sendDisconnect(data)
	}
	p.host.resetPeer(p)
}

func (p *Peer) sendDisconnect(data uint32) {
	c := &command{}
	c.header.flags = cmdDisconnect | cmdFlagAcknowledge
	c.header.channelID = controlChannelID
	c.header.reliableSeq = p.nextReliableSeq(controlChannelID)
	c.disconnectData = data
	p.outgoingReliable = append(p.outgoingReliable, &outgoingCommand{command: *c, reliable: true})
}

func (p *Peer) queueControl(flags byte, channelID byte) {
	c := &command{}
	c.header.flags = flags
	c.header.channelID = channelID
	if flags&cmdFlagAcknowledge != 0 {
		c.header.reliableSeq = p.nextReliableSeq(channelID)
		p.outgoingReliable = append(p.outgoingReliable, &outgoingCommand{command: *c, reliable: true})
	} else {
		p.outgoingUnreliable = append(p.outgoingUnreliable, &outgoingCommand{command: *c})
	}
}
