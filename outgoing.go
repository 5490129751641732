package genet

import "time"

// outgoingCommand is a queued or in-flight command owned by a peer. It
// pairs a wire command with an optional packet reference (for send*
// commands) and, once transmitted, its retransmission bookkeeping (spec
// §3).
type outgoingCommand struct {
	command command
	packet  *Packet // nil for control commands (ACK, PING, ...)

	fragmentOffset int
	fragmentLength int

	sendAttempts          int
	sentTime              uint32
	roundTripTimeout      time.Duration
	roundTripTimeoutLimit time.Duration

	reliable bool
}

func (oc *outgoingCommand) releasePacket() {
	if oc.packet != nil {
		oc.packet.release()
		oc.packet = nil
	}
}
