package genet

import (
	"math/rand"
	"time"

	"github.com/google/uuid"
	"github.com/hashicorp/go-multierror"
	"github.com/pkg/errors"
	"go.uber.org/zap"
)

// Config configures a Host at construction (spec §4.8/§6.2, "Host-level
// configuration operations").
type Config struct {
	// Address is the local address to bind. A zero Host field binds an
	// ephemeral outbound-only port (client role).
	Address Address

	PeerLimit    int
	ChannelLimit int

	IncomingBandwidth uint32
	OutgoingBandwidth uint32

	MTU uint32

	Checksum   Checksum
	Compressor Compressor
	TimeSource TimeSource
	Socket     Socket

	EventSink EventSink
	Logger    *zap.Logger
}

// Host is one endpoint of the transport: it owns a socket, a fixed pool
// of Peer slots, and the single-threaded service loop that drives both
// (spec §4.8).
type Host struct {
	socket     Socket
	address    Address
	instanceID uuid.UUID

	peers        []*Peer
	channelLimit int

	incomingBandwidth uint32
	outgoingBandwidth uint32
	mtu               uint32

	checksum   Checksum
	compressor Compressor
	timeSource TimeSource
	intercept  func(buf []byte, from Address) bool

	events        []Event
	eventSink     EventSink
	dispatchQueue []*Peer

	bandwidthThrottleEpoch uint32

	rng *rand.Rand

	logger  *zap.Logger
	closed  bool
	recvBuf []byte
}

// NewHost constructs a Host bound per cfg. Pass a zero Config for an
// outbound-only client with ENet's historical defaults.
func NewHost(cfg Config) (*Host, error) {
	peerLimit := cfg.PeerLimit
	if peerLimit <= 0 {
		peerLimit = 32
	}
	channelLimit := cfg.ChannelLimit
	if channelLimit <= 0 {
		channelLimit = defaultChannelCount
	}
	if channelLimit > maxChannelCount {
		return nil, errors.WithStack(ErrChannelCount)
	}
	mtu := cfg.MTU
	if mtu == 0 {
		mtu = defaultMTU
	}
	if mtu < minMTU {
		mtu = minMTU
	}
	if mtu > maxMTU {
		mtu = maxMTU
	}

	sock := cfg.Socket
	if sock == nil {
		s, err := listenUDP(cfg.Address)
		if err != nil {
			return nil, errors.Wrap(err, "bind socket")
		}
		sock = s
	}

	logger := cfg.Logger
	if logger == nil {
		logger = zap.NewNop()
	}

	checksum := cfg.Checksum
	if checksum == nil {
		checksum = defaultChecksum
	}

	h := &Host{
		socket:            sock,
		address:           sock.LocalAddr(),
		instanceID:        uuid.New(),
		channelLimit:      channelLimit,
		incomingBandwidth: cfg.IncomingBandwidth,
		outgoingBandwidth: cfg.OutgoingBandwidth,
		mtu:               mtu,
		checksum:          checksum,
		compressor:        cfg.Compressor,
		timeSource:        cfg.TimeSource,
		eventSink:         cfg.EventSink,
		rng:               rand.New(rand.NewSource(int64(uuid.New().ID()))),
		logger:            logger,
		recvBuf:           make([]byte, maxMTU*2),
	}
	if h.timeSource == nil {
		h.timeSource = newMonotonicClock()
	}

	h.peers = make([]*Peer, peerLimit)
	for i := range h.peers {
		h.peers[i] = newPeer(h, i)
	}

	h.logger.Info("host started",
		zap.String("instance", h.instanceID.String()),
		zap.String("address", h.address.String()),
		zap.Int("peer_limit", peerLimit),
	)
	return h, nil
}

func (h *Host) now() uint32 { return h.timeSource.Now() }

// LocalAddress returns the address the host's socket is bound to.
func (h *Host) LocalAddress() Address { return h.address }

// SetIntercept installs a callback invoked with every raw datagram
// before protocol parsing; returning true consumes the datagram and
// suppresses normal processing (spec §4.8 "interception hook").
func (h *Host) SetIntercept(fn func(buf []byte, from Address) bool) { h.intercept = fn }

// SetBandwidthLimit reconfigures the host's aggregate bandwidth caps,
// taking effect on the next throttle epoch (spec §4.7).
func (h *Host) SetBandwidthLimit(incoming, outgoing uint32) {
	h.incomingBandwidth = incoming
	h.outgoingBandwidth = outgoing
	h.bandwidthThrottleEpoch = 0
}

// SetChannelLimit bounds the channel count new peers may request; it
// does not affect already-connected peers.
func (h *Host) SetChannelLimit(n int) {
	if n <= 0 || n > maxChannelCount {
		n = maxChannelCount
	}
	h.channelLimit = n
}

// Connect begins a new outbound connection attempt, returning the Peer
// slot immediately in StateConnecting; completion is reported later as
// an EventConnect from Service (spec §4.2).
func (h *Host) Connect(addr Address, channelCount int, data uint32) (*Peer, error) {
	if channelCount <= 0 || channelCount > h.channelLimit {
		channelCount = h.channelLimit
	}
	p := h.allocPeer()
	if p == nil {
		return nil, errors.WithStack(ErrHostFull)
	}
	p.address = addr
	p.setChannelCount(channelCount)
	p.incomingPeerID = uint16(p.index)
	p.outgoingPeerID = anonymousPID // until VERIFY_CONNECT assigns one
	p.connectID = h.rng.Uint32()
	p.connectData = data
	p.windowSize = windowSizeScale
	p.state = StateConnecting
	p.lastReceiveTime = h.now()

	c := &command{}
	c.header.flags = cmdConnect | cmdFlagAcknowledge
	c.header.channelID = controlChannelID
	c.header.reliableSeq = p.nextReliableSeq(controlChannelID)
	c.outgoingPeerID = p.incomingPeerID
	c.incomingSessionID = 0
	c.outgoingSessionID = 0
	c.mtu = h.mtu
	c.windowSize = windowSizeScale
	c.channelCount = uint32(channelCount)
	c.incomingBandwidth = h.incomingBandwidth
	c.outgoingBandwidth = h.outgoingBandwidth
	c.packetThrottleInterval = uint32(defaultThrottleInterval / time.Millisecond)
	c.packetThrottleAcceleration = defaultPacketThrottleAccel
	c.packetThrottleDeceleration = defaultPacketThrottleDecel
	c.connectID = p.connectID
	c.connectData = data

	p.outgoingReliable = append(p.outgoingReliable, &outgoingCommand{command: *c, reliable: true})
	h.logger.Debug("connect requested", zap.String("addr", addr.String()))
	return p, nil
}

func (h *Host) allocPeer() *Peer {
	for _, p := range h.peers {
		if p.state == StateDisconnected {
			return p
		}
	}
	return nil
}

// resetPeer recycles p back to the free pool, releasing any packets it
// still held a reference to.
func (h *Host) resetPeer(p *Peer) {
	for _, oc := range p.sentReliable {
		oc.releasePacket()
	}
	for _, oc := range p.sentUnreliable {
		oc.releasePacket()
	}
	for _, oc := range p.outgoingReliable {
		oc.releasePacket()
	}
	for _, oc := range p.outgoingUnreliable {
		oc.releasePacket()
	}
	p.reset()
}

// Broadcast queues pkt for delivery to every connected peer except skip
// (spec §4.9 "broadcast" operation). Per spec §11, a peer in
// StateDisconnectLater is excluded, since it is already draining toward
// disconnection and should not be handed new application data.
func (h *Host) Broadcast(channelID byte, pkt *Packet, skip *Peer) {
	for _, p := range h.peers {
		if p == skip || p.state != StateConnected {
			continue
		}
		_ = p.Send(channelID, pkt)
	}
}

// Flush immediately frames and sends every peer's queued outgoing
// commands without waiting for incoming datagrams or blocking on the
// socket (spec §4.8).
func (h *Host) Flush() error {
	now := h.now()
	h.bandwidthThrottle(now)
	var errs *multierror.Error
	for _, p := range h.peers {
		if p.state == StateDisconnected || p.state == StateZombie {
			continue
		}
		if err := h.flushPeer(p, now); err != nil {
			errs = multierror.Append(errs, err)
		}
	}
	return errs.ErrorOrNil()
}

// Service advances the host by at most timeout: it flushes outgoing
// traffic, waits for and processes incoming datagrams, checks peer
// timeouts, and returns the next queued Event. The returned Event's Type
// is EventNone if nothing happened before timeout elapsed (spec
// §4.8/§4.9).
func (h *Host) Service(timeout time.Duration) (Event, error) {
	if h.closed {
		return Event{}, errors.WithStack(ErrHostClosed)
	}
	if len(h.events) > 0 {
		ev := h.events[0]
		h.events = h.events[1:]
		return ev, nil
	}

	now := h.now()
	h.bandwidthThrottle(now)
	for _, p := range h.peers {
		if p.state == StateDisconnected || p.state == StateZombie {
			continue
		}
		if err := h.flushPeer(p, now); err != nil {
			h.logger.Warn("flush peer failed", zap.Error(err))
		}
	}
	h.checkTimeouts(now)

	if err := h.socket.Wait(timeout); err != nil {
		return Event{}, errors.Wrap(err, "socket wait")
	}
	if err := h.receiveIncoming(); err != nil {
		return Event{}, errors.Wrap(err, "receive incoming")
	}
	h.drainDispatch()

	if len(h.events) > 0 {
		ev := h.events[0]
		h.events = h.events[1:]
		return ev, nil
	}
	return Event{Type: EventNone}, nil
}

// Destroy tears down every peer with an immediate disconnect, destroys
// the compressor if one is set, and closes the underlying socket,
// aggregating any errors encountered (spec §4.8).
func (h *Host) Destroy() error {
	if h.closed {
		return nil
	}
	h.closed = true
	var errs *multierror.Error
	for _, p := range h.peers {
		if p.state != StateDisconnected {
			p.DisconnectNow(0)
		}
	}
	if h.compressor != nil {
		h.compressor.Destroy()
	}
	if err := h.socket.Close(); err != nil {
		errs = multierror.Append(errs, errors.Wrap(err, "close socket"))
	}
	h.logger.Info("host stopped", zap.String("instance", h.instanceID.String()))
	return errs.ErrorOrNil()
}
