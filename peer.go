package genet

import (
	"time"
)

// PeerState is the peer's position in the connection lifecycle (spec
// §4.2).
type PeerState int

const (
	StateDisconnected PeerState = iota
	StateConnecting
	StateAcknowledgingConnect
	StateConnectionPending
	StateConnectionSucceeded
	StateConnected
	StateDisconnectLater
	StateDisconnecting
	StateAcknowledgingDisconnect
	StateZombie
)

func (s PeerState) String() string {
	switch s {
	case StateDisconnected:
		return "disconnected"
	case StateConnecting:
		return "connecting"
	case StateAcknowledgingConnect:
		return "acknowledging_connect"
	case StateConnectionPending:
		return "connection_pending"
	case StateConnectionSucceeded:
		return "connection_succeeded"
	case StateConnected:
		return "connected"
	case StateDisconnectLater:
		return "disconnect_later"
	case StateDisconnecting:
		return "disconnecting"
	case StateAcknowledgingDisconnect:
		return "acknowledging_disconnect"
	case StateZombie:
		return "zombie"
	}
	return "unknown"
}

// acknowledgement is a queued ACKNOWLEDGE to be framed on the next tick,
// recording which command it acknowledges. sentTime holds the low 16 bits
// of the local clock when the command was received; the far end samples
// RTT from its own record of when it sent the command and does not read
// this field.
type acknowledgement struct {
	channelID   byte
	reliableSeq seq16
	sentTime    uint16
}

// Peer is one connection slot on a Host. The zero value is not usable;
// peers are created by newPeer and recycled by reset. A peer
// holds a back-reference to its owning Host (Go's GC collects the
// resulting cycle without help, unlike the teacher's reference-counted
// C ancestor) so that application-facing methods such as Send and
// Disconnect need no extra argument from the caller.
type Peer struct {
	host *Host

	index int // slot index into Host.peers

	address     Address
	state       PeerState
	incomingPeerID uint16
	outgoingPeerID uint16
	incomingSessionID byte
	outgoingSessionID byte
	connectID   uint32
	connectData uint32 // app-supplied data from the initiating CONNECT

	channels []channel

	// Outgoing queues (spec §3).
	acknowledgements   []acknowledgement
	sentReliable       []*outgoingCommand
	sentUnreliable     []*outgoingCommand
	outgoingReliable   []*outgoingCommand
	outgoingUnreliable []*outgoingCommand

	dispatched []dispatchedPacket
	needsDispatch bool

	unsequencedWindow [unsequencedWindowWords]uint32
	unsequencedBase   uint16
	outgoingUnsequencedGroup uint16

	outgoingReliableSeqCtl seq16 // control-channel (0xFF) reliable seq counter

	mtu         uint32
	windowSize  uint32
	incomingBandwidth uint32
	outgoingBandwidth uint32

	incomingBandwidthThrottleEpoch uint32
	outgoingBandwidthThrottleEpoch uint32
	outgoingDataTotal              uint32
	incomingDataTotal              uint32

	packetThrottle            uint32
	packetThrottleLimit       uint32
	packetThrottleCounter     uint32
	packetThrottleEpoch       uint32
	packetThrottleAcceleration uint32
	packetThrottleDeceleration uint32
	packetThrottleInterval     time.Duration

	lastRTT         time.Duration
	lowestRTT       time.Duration
	lastRTTVariance time.Duration
	highestRTTVariance time.Duration
	roundTripTime      time.Duration
	roundTripTimeVariance time.Duration

	packetsSent      uint64
	packetsLost      uint64
	totalPacketsSent uint64
	totalPacketsLost uint64
	packetLossEpoch  uint32
	packetLoss       uint32 // fixed point, / packetLossScale

	pingInterval     time.Duration
	timeoutLimit     uint32
	timeoutMinimum   time.Duration
	timeoutMaximum   time.Duration

	lastSendTime    uint32
	lastReceiveTime uint32
	nextTimeout     uint32
	earliestTimeout uint32

	totalWaitingData int
	maximumWaitingData int

	reliableDataInTransit uint32

	eventData uint32 // disconnect payload to surface
}

// dispatchedPacket is an application-ready received packet paired with
// the channel it arrived on, queued by the receive handlers in
// host_recv.go and consumed by Host.drainDispatch or Peer.Receive.
type dispatchedPacket struct {
	channelID byte
	packet    *Packet
}

func newPeer(host *Host, index int) *Peer {
	p := &Peer{host: host, index: index}
	p.reset()
	return p
}

// reset returns the peer to StateDisconnected, frees its channels and
// queues, and zeroes connection parameters, preserving connectID so the
// application can correlate a later DISCONNECT(_TIMEOUT) event with the
// connect attempt that produced it (spec §4.2).
func (p *Peer) reset() {
	keepConnectID := p.connectID
	*p = Peer{
		host:               p.host,
		index:              p.index,
		connectID:          keepConnectID,
		pingInterval:       defaultPingInterval,
		timeoutLimit:       defaultTimeoutLimit,
		timeoutMinimum:     defaultTimeoutMinimum,
		timeoutMaximum:     defaultTimeoutMaximum,
		packetThrottle:     packetThrottleScale,
		packetThrottleLimit: packetThrottleScale,
		packetThrottleAcceleration: defaultPacketThrottleAccel,
		packetThrottleDeceleration: defaultPacketThrottleDecel,
		packetThrottleInterval:     defaultThrottleInterval,
		roundTripTime:              defaultRoundTripTime,
		maximumWaitingData:         defaultMaximumWaitingData,
		mtu:                        defaultMTU,
	}
	p.state = StateDisconnected
}

func (p *Peer) setChannelCount(n int) {
	p.channels = make([]channel, n)
	for i := range p.channels {
		p.channels[i] = *newChannel()
	}
}

// State returns the peer's current lifecycle state.
func (p *Peer) State() PeerState { return p.state }

// RemoteAddress returns the peer's remote address.
func (p *Peer) RemoteAddress() Address { return p.address }

// RTT returns the current smoothed round-trip time estimate.
func (p *Peer) RTT() time.Duration { return p.roundTripTime }

// PacketLoss returns the peer's packet loss ratio over the last closed
// epoch, in [0, 1]. Supplements the "packet-loss statistics" field named
// in spec §3 (see SPEC_FULL §6.x).
func (p *Peer) PacketLoss() float64 {
	return float64(p.packetLoss) / float64(packetLossScale)
}

// peekNextReliableSeq returns the sequence number the next call to
// nextReliableSeq on this channel will produce, without consuming it —
// used to compute a fragmented send's shared startSeq before any of its
// fragments have been assigned their own sequence numbers.
func (p *Peer) peekNextReliableSeq(channelID byte) seq16 {
	if channelID == controlChannelID {
		return p.outgoingReliableSeqCtl + 1
	}
	return p.channels[channelID].outgoingReliableSeq + 1
}

func (p *Peer) nextReliableSeq(channelID byte) seq16 {
	if channelID == controlChannelID {
		p.outgoingReliableSeqCtl++
		return p.outgoingReliableSeqCtl
	}
	ch := &p.channels[channelID]
	ch.outgoingReliableSeq++
	return ch.outgoingReliableSeq
}
