package genet

import "github.com/pkg/errors"

// Sentinel errors surfaced across the public API. Transient per-datagram
// and per-command faults (spec §7) never allocate one of these — the
// datagram/command is dropped in place without logging.
var (
	// ErrPacketTooLarge is returned by Peer.Send when a packet exceeds
	// maxMTU × maxFragmentCount bytes, or when a packet with neither
	// PacketReliable nor PacketUnreliableFragment does not fit one
	// command.
	ErrPacketTooLarge = errors.New("genet: packet exceeds maximum packet size")

	// ErrWaitingDataExceeded is returned by Peer.Send when accepting the
	// packet would push the peer's outgoing backlog past
	// maximumWaitingData.
	ErrWaitingDataExceeded = errors.New("genet: peer waiting data limit exceeded")

	// ErrTooManyFragments is returned when a packet would require more
	// fragments than ENET_PROTOCOL_MAXIMUM_FRAGMENT_COUNT.
	ErrTooManyFragments = errors.New("genet: packet requires too many fragments")

	// ErrPeerNotConnected is returned by Peer.Send when the peer is not
	// in a state that can carry application traffic.
	ErrPeerNotConnected = errors.New("genet: peer is not connected")

	// ErrHostFull is returned by Host.Connect when every peer slot is
	// occupied.
	ErrHostFull = errors.New("genet: no free peer slots")

	// ErrChannelCount is returned by NewHost when Config.ChannelLimit
	// exceeds 255, and by Peer.Send when the channel id is not below the
	// peer's channel count.
	ErrChannelCount = errors.New("genet: channel count out of range")

	// ErrDuplicatePeer names the rejection of a CONNECT from an address
	// that already has a live peer. handleConnect drops such a CONNECT
	// silently, so no call in the package returns this error.
	ErrDuplicatePeer = errors.New("genet: duplicate peer rejected")

	// ErrHostClosed is returned once Host.Destroy has run.
	ErrHostClosed = errors.New("genet: host is destroyed")
)
