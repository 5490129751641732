package genet

// channel is one of a peer's 1-255 ordered sub-streams. Reliable and
// unreliable sequencing state and the sliding reliable window (spec
// §3/§4.3) live here; unsequenced delivery is peer-global (spec §4.5)
// since it has no per-channel ordering requirement.
type channel struct {
	outgoingReliableSeq   seq16
	outgoingUnreliableSeq seq16
	incomingReliableSeq   seq16
	incomingUnreliableSeq seq16

	// reliableWindows[i] counts in-flight reliable commands whose
	// sequence number falls in window i (seq / reliableWindowSize).
	reliableWindowCounts [reliableWindows]uint16
	// usedReliableWindows is a bitmask of non-empty windows.
	usedReliableWindows uint16

	incomingReliable   []*incomingCommand // ordered, awaiting dispatch
	incomingUnreliable []*incomingCommand

	// reassembling tracks in-progress fragmented reliable sends, keyed by
	// the shared startSeq every fragment of one packet carries.
	reassembling map[uint16]*incomingCommand
}

func newChannel() *channel {
	return &channel{reassembling: make(map[uint16]*incomingCommand)}
}

// windowFull reports whether accepting a new reliable command in the
// given window must be deferred (spec §4.3: held, not transmitted this
// tick), per the three conditions:
//
//	(a) the previous window already holds reliableWindowSize commands
//	(b) any of the next freeReliableWindows windows is already used
//	(c) the wrap-around bit pattern overlaps the current window
func (c *channel) windowFull(window uint16) bool {
	prev := (window + reliableWindows - 1) % reliableWindows
	if c.reliableWindowCounts[prev] >= reliableWindowSize {
		return true
	}
	for i := uint16(1); i <= freeReliableWindows; i++ {
		next := (window + i) % reliableWindows
		if c.usedReliableWindows&(1<<next) != 0 {
			return true
		}
	}
	return false
}

func (c *channel) markWindowUsed(window uint16) {
	c.reliableWindowCounts[window]++
	c.usedReliableWindows |= 1 << window
}

func (c *channel) releaseWindow(window uint16) {
	if c.reliableWindowCounts[window] > 0 {
		c.reliableWindowCounts[window]--
	}
	if c.reliableWindowCounts[window] == 0 {
		c.usedReliableWindows &^= 1 << window
	}
}

// insertIncomingReliable inserts ic into the channel's ordered incoming
// reliable queue, keeping it sorted by reliable sequence number (commands
// may arrive out of order and are held for in-order dispatch).
func (c *channel) insertIncomingReliable(ic *incomingCommand) {
	seq := ic.command.header.reliableSeq
	i := 0
	for ; i < len(c.incomingReliable); i++ {
		if seq16(seq).less(c.incomingReliable[i].command.header.reliableSeq) {
			break
		}
	}
	c.incomingReliable = append(c.incomingReliable, nil)
	copy(c.incomingReliable[i+1:], c.incomingReliable[i:])
	c.incomingReliable[i] = ic
}

// insertIncomingUnreliable inserts ic into the ordered incoming
// unreliable queue, sorted first by the anchoring reliable sequence,
// then by unreliable sequence (spec §4.4).
func (c *channel) insertIncomingUnreliable(ic *incomingCommand) {
	rs := ic.command.header.reliableSeq
	us := ic.command.unreliableSeq
	i := 0
	for ; i < len(c.incomingUnreliable); i++ {
		other := c.incomingUnreliable[i]
		if rs != other.command.header.reliableSeq {
			if seq16(rs).less(other.command.header.reliableSeq) {
				break
			}
			continue
		}
		if us < other.command.unreliableSeq {
			break
		}
	}
	c.incomingUnreliable = append(c.incomingUnreliable, nil)
	copy(c.incomingUnreliable[i+1:], c.incomingUnreliable[i:])
	c.incomingUnreliable[i] = ic
}
