package genet

// Command tags (low 4 bits of the command header byte). High bits carry
// ACKNOWLEDGE and UNSEQUENCED flags, per spec §4.1/§6.1.
const (
	cmdNone = iota
	cmdAcknowledge
	cmdConnect
	cmdVerifyConnect
	cmdDisconnect
	cmdPing
	cmdSendReliable
	cmdSendUnreliable
	cmdSendFragment
	cmdSendUnsequenced
	cmdBandwidthLimit
	cmdThrottleConfigure
	cmdSendUnreliableFragment
	cmdCount
)

const (
	cmdFlagAcknowledge = 0x80
	cmdFlagUnsequenced = 0x40
	cmdMask            = 0x0F
)

// fixedCommandSize is the size in bytes of each command's fixed-length
// payload beyond the 4-byte common header, per spec §6.1. Zero for PING,
// which has no fixed payload; for the five "send" commands it covers
// their fixed fields only, and the dataLength payload bytes that follow
// are read separately.
var fixedCommandSize = [cmdCount]int{
	cmdNone:                   -1, // invalid, parser rejects
	cmdAcknowledge:            4,
	cmdConnect:                44,
	cmdVerifyConnect:          40,
	cmdDisconnect:             4,
	cmdPing:                   0,
	cmdSendReliable:           2,
	cmdSendUnreliable:         4,
	cmdSendFragment:           20,
	cmdSendUnsequenced:        4,
	cmdBandwidthLimit:         8,
	cmdThrottleConfigure:      12,
	cmdSendUnreliableFragment: 20,
}

// hasPayload reports whether a command tag is followed by a dataLength
// field and opaque bytes (spec §4.1).
func hasPayload(tag byte) bool {
	switch tag {
	case cmdSendReliable, cmdSendUnreliable, cmdSendFragment,
		cmdSendUnsequenced, cmdSendUnreliableFragment:
		return true
	}
	return false
}

// isAcknowledgeable reports whether a received command of this tag
// should have an ACKNOWLEDGE queued for it.
func isAcknowledgeable(tag byte) bool {
	switch tag {
	case cmdConnect, cmdVerifyConnect, cmdDisconnect, cmdPing,
		cmdSendReliable, cmdSendFragment,
		cmdBandwidthLimit, cmdThrottleConfigure:
		return true
	}
	return false
}

// commandHeader is the 4-byte header common to every command.
type commandHeader struct {
	flags         byte // tag | ACKNOWLEDGE | UNSEQUENCED
	channelID     byte
	reliableSeq   seq16
}

func (h commandHeader) tag() byte { return h.flags & cmdMask }

// command is the decoded, in-memory form of a protocol command, with an
// optional opaque payload for the "send" family.
type command struct {
	header commandHeader
	data   []byte // opaque payload for send* commands

	// ACKNOWLEDGE
	receivedReliableSeq seq16
	receivedSentTime    uint16

	// CONNECT / VERIFY_CONNECT
	outgoingPeerID             uint16
	incomingSessionID          byte
	outgoingSessionID          byte
	mtu                        uint32
	windowSize                 uint32
	channelCount               uint32
	incomingBandwidth          uint32
	outgoingBandwidth          uint32
	packetThrottleInterval     uint32
	packetThrottleAcceleration uint32
	packetThrottleDeceleration uint32
	connectID                  uint32
	connectData                uint32 // CONNECT only

	// DISCONNECT
	disconnectData uint32

	// SEND_UNRELIABLE / SEND_UNSEQUENCED
	unreliableSeq    uint16
	unsequencedGroup uint16

	// SEND_FRAGMENT / SEND_UNRELIABLE_FRAGMENT
	startSeq        uint16
	fragmentCount   uint32
	fragmentNumber  uint32
	totalLength     uint32
	fragmentOffset  uint32

	// BANDWIDTH_LIMIT
	bwIncoming uint32
	bwOutgoing uint32

	// THROTTLE_CONFIGURE
	throttleInterval     uint32
	throttleAcceleration uint32
	throttleDeceleration uint32
}
