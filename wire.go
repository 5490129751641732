package genet

import "encoding/binary"

// Datagram header bit layout (spec §4.1/§6.1), big-endian u16:
//   bits 0..11  peer id
//   bits 12..13 session id
//   bit 14      compressed
//   bit 15      sent-time present
const (
	peerIDMask        = 0x0FFF
	sessionIDShift    = 12
	sessionIDMask     = 0x3
	flagCompressed    = 1 << 14
	flagHasSentTime   = 1 << 15
)

type datagramHeader struct {
	peerID      uint16
	sessionID   byte
	compressed  bool
	hasSentTime bool
	sentTime    uint16
}

func encodeDatagramHeader(h datagramHeader) []byte {
	v := h.peerID & peerIDMask
	v |= uint16(h.sessionID&sessionIDMask) << sessionIDShift
	if h.compressed {
		v |= flagCompressed
	}
	if h.hasSentTime {
		v |= flagHasSentTime
	}
	out := make([]byte, 2, 4)
	binary.BigEndian.PutUint16(out, v)
	if h.hasSentTime {
		st := make([]byte, 2)
		binary.BigEndian.PutUint16(st, h.sentTime)
		out = append(out, st...)
	}
	return out
}

// decodeDatagramHeader parses the fixed header. ok is false if the
// buffer is too short to hold even the 16-bit flags word — the
// datagram must be dropped per spec §4.1.
func decodeDatagramHeader(buf []byte) (h datagramHeader, n int, ok bool) {
	if len(buf) < 2 {
		return h, 0, false
	}
	v := binary.BigEndian.Uint16(buf)
	h.peerID = v & peerIDMask
	h.sessionID = byte((v >> sessionIDShift) & sessionIDMask)
	h.compressed = v&flagCompressed != 0
	h.hasSentTime = v&flagHasSentTime != 0
	n = 2
	if h.hasSentTime {
		if len(buf) < 4 {
			return h, 0, false
		}
		h.sentTime = binary.BigEndian.Uint16(buf[2:4])
		n = 4
	}
	return h, n, true
}

// encodeCommand serializes one command (header + fixed fields +
// optional payload) in wire order.
func encodeCommand(c *command) []byte {
	tag := c.header.tag()
	out := make([]byte, 4, 4+fixedSizeOrZero(tag)+len(c.data)+2)
	out[0] = c.header.flags
	out[1] = c.header.channelID
	binary.BigEndian.PutUint16(out[2:4], uint16(c.header.reliableSeq))

	putU16 := func(v uint16) { out = appendU16(out, v) }
	putU32 := func(v uint32) { out = appendU32(out, v) }

	switch tag {
	case cmdAcknowledge:
		putU16(uint16(c.receivedReliableSeq))
		putU16(c.receivedSentTime)
	case cmdConnect:
		putU16(c.outgoingPeerID)
		out = append(out, c.incomingSessionID, c.outgoingSessionID)
		putU32(c.mtu)
		putU32(c.windowSize)
		putU32(c.channelCount)
		putU32(c.incomingBandwidth)
		putU32(c.outgoingBandwidth)
		putU32(c.packetThrottleInterval)
		putU32(c.packetThrottleAcceleration)
		putU32(c.packetThrottleDeceleration)
		putU32(c.connectID)
		putU32(c.connectData)
	case cmdVerifyConnect:
		putU16(c.outgoingPeerID)
		out = append(out, c.incomingSessionID, c.outgoingSessionID)
		putU32(c.mtu)
		putU32(c.windowSize)
		putU32(c.channelCount)
		putU32(c.incomingBandwidth)
		putU32(c.outgoingBandwidth)
		putU32(c.packetThrottleInterval)
		putU32(c.packetThrottleAcceleration)
		putU32(c.packetThrottleDeceleration)
		putU32(c.connectID)
	case cmdDisconnect:
		putU32(c.disconnectData)
	case cmdPing:
		// no fixed payload
	case cmdSendReliable:
		putU16(uint16(len(c.data)))
		out = append(out, c.data...)
	case cmdSendUnreliable:
		putU16(c.unreliableSeq)
		putU16(uint16(len(c.data)))
		out = append(out, c.data...)
	case cmdSendUnsequenced:
		putU16(c.unsequencedGroup)
		putU16(uint16(len(c.data)))
		out = append(out, c.data...)
	case cmdSendFragment, cmdSendUnreliableFragment:
		putU16(c.startSeq)
		putU16(uint16(len(c.data)))
		putU32(c.fragmentCount)
		putU32(c.fragmentNumber)
		putU32(c.totalLength)
		putU32(c.fragmentOffset)
		out = append(out, c.data...)
	case cmdBandwidthLimit:
		putU32(c.bwIncoming)
		putU32(c.bwOutgoing)
	case cmdThrottleConfigure:
		putU32(c.throttleInterval)
		putU32(c.throttleAcceleration)
		putU32(c.throttleDeceleration)
	}
	return out
}

func fixedSizeOrZero(tag byte) int {
	if int(tag) < len(fixedCommandSize) {
		if s := fixedCommandSize[tag]; s > 0 {
			return s
		}
	}
	return 0
}

func appendU16(b []byte, v uint16) []byte {
	var t [2]byte
	binary.BigEndian.PutUint16(t[:], v)
	return append(b, t[:]...)
}

func appendU32(b []byte, v uint32) []byte {
	var t [4]byte
	binary.BigEndian.PutUint32(t[:], v)
	return append(b, t[:]...)
}

// decodeCommands parses a packed command stream, stopping on the first
// malformed command and returning the commands before it with ok false
// (spec §4.1/§7: "abort
// parsing of the current datagram, keep peer state"). anonymousFirst
// requires the very first command to be exactly one CONNECT with
// nothing else, per spec §4.1.
func decodeCommands(buf []byte, anonymousFirst bool) (cmds []*command, ok bool) {
	pos := 0
	first := true
	for pos < len(buf) {
		if pos+4 > len(buf) {
			return cmds, false
		}
		tag := buf[pos] & cmdMask
		if tag == cmdNone || tag >= cmdCount {
			return cmds, false
		}
		if anonymousFirst && first && tag != cmdConnect {
			return nil, false
		}
		c := &command{}
		c.header.flags = buf[pos]
		c.header.channelID = buf[pos+1]
		c.header.reliableSeq = seq16(binary.BigEndian.Uint16(buf[pos+2 : pos+4]))
		cur := pos + 4

		fixed := fixedSizeOrZero(tag)
		if tag == cmdPing {
			fixed = 0
		} else if fixed == 0 && fixedCommandSize[tag] < 0 {
			break
		}
		if cur+fixed > len(buf) {
			return cmds, false
		}

		dataLen := 0
		fixedEnd := cur + fixed
		switch tag {
		case cmdAcknowledge:
			c.receivedReliableSeq = seq16(binary.BigEndian.Uint16(buf[cur : cur+2]))
			c.receivedSentTime = binary.BigEndian.Uint16(buf[cur+2 : cur+4])
		case cmdConnect, cmdVerifyConnect:
			f := buf[cur:fixedEnd]
			c.outgoingPeerID = binary.BigEndian.Uint16(f[0:2])
			c.incomingSessionID = f[2]
			c.outgoingSessionID = f[3]
			c.mtu = binary.BigEndian.Uint32(f[4:8])
			c.windowSize = binary.BigEndian.Uint32(f[8:12])
			c.channelCount = binary.BigEndian.Uint32(f[12:16])
			c.incomingBandwidth = binary.BigEndian.Uint32(f[16:20])
			c.outgoingBandwidth = binary.BigEndian.Uint32(f[20:24])
			c.packetThrottleInterval = binary.BigEndian.Uint32(f[24:28])
			c.packetThrottleAcceleration = binary.BigEndian.Uint32(f[28:32])
			c.packetThrottleDeceleration = binary.BigEndian.Uint32(f[32:36])
			c.connectID = binary.BigEndian.Uint32(f[36:40])
			if tag == cmdConnect {
				c.connectData = binary.BigEndian.Uint32(f[40:44])
			}
		case cmdDisconnect:
			c.disconnectData = binary.BigEndian.Uint32(buf[cur : cur+4])
		case cmdPing:
			// nothing
		case cmdSendReliable:
			dataLen = int(binary.BigEndian.Uint16(buf[cur : cur+2]))
		case cmdSendUnreliable:
			c.unreliableSeq = binary.BigEndian.Uint16(buf[cur : cur+2])
			dataLen = int(binary.BigEndian.Uint16(buf[cur+2 : cur+4]))
		case cmdSendUnsequenced:
			c.unsequencedGroup = binary.BigEndian.Uint16(buf[cur : cur+2])
			dataLen = int(binary.BigEndian.Uint16(buf[cur+2 : cur+4]))
		case cmdSendFragment, cmdSendUnreliableFragment:
			f := buf[cur:fixedEnd]
			c.startSeq = binary.BigEndian.Uint16(f[0:2])
			dataLen = int(binary.BigEndian.Uint16(f[2:4]))
			c.fragmentCount = binary.BigEndian.Uint32(f[4:8])
			c.fragmentNumber = binary.BigEndian.Uint32(f[8:12])
			c.totalLength = binary.BigEndian.Uint32(f[12:16])
			c.fragmentOffset = binary.BigEndian.Uint32(f[16:20])
		case cmdBandwidthLimit:
			f := buf[cur:fixedEnd]
			c.bwIncoming = binary.BigEndian.Uint32(f[0:4])
			c.bwOutgoing = binary.BigEndian.Uint32(f[4:8])
		case cmdThrottleConfigure:
			f := buf[cur:fixedEnd]
			c.throttleInterval = binary.BigEndian.Uint32(f[0:4])
			c.throttleAcceleration = binary.BigEndian.Uint32(f[4:8])
			c.throttleDeceleration = binary.BigEndian.Uint32(f[8:12])
		}

		end := fixedEnd
		if hasPayload(tag) {
			if end+dataLen > len(buf) {
				return cmds, false
			}
			c.data = append([]byte(nil), buf[end:end+dataLen]...)
			end += dataLen
		}

		cmds = append(cmds, c)
		pos = end
		first = false

		if anonymousFirst {
			// spec: the first command from an anonymous peer must be
			// exactly one CONNECT and nothing else.
			return cmds, pos == len(buf)
		}
	}
	return cmds, true
}
