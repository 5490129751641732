package genet

// incomingCommand tracks a received command awaiting in-order dispatch,
// and — for fragmented sends — the reassembly state of the packet it
// will eventually deliver (spec §3/§4.3).
type incomingCommand struct {
	command command

	packet *Packet // nil until the first fragment allocates it

	fragments          []uint32 // bitmap, ceil(fragmentCount/32) words
	fragmentCount      uint32
	fragmentsRemaining uint32
	totalLength        uint32
}

func newFragmentAssembly(c *command, totalLength, fragmentCount uint32) *incomingCommand {
	ic := &incomingCommand{
		command:            *c,
		fragments:          make([]uint32, (fragmentCount+31)/32),
		fragmentCount:      fragmentCount,
		fragmentsRemaining: fragmentCount,
		totalLength:        totalLength,
	}
	ic.packet = NewPacket(make([]byte, totalLength), 0)
	return ic
}

// addFragment copies one fragment's payload into the reassembly buffer
// and reports whether the fragment set is now complete. Matching
// fragment indices are idempotent: a duplicate retransmitted fragment
// does not double-count fragmentsRemaining.
//
// Per spec §9 "observed oddities", an overlong fragment (offset+length
// beyond the declared total) is silently clamped into the packet rather
// than rejected.
func (ic *incomingCommand) addFragment(fragmentNumber uint32, offset uint32, data []byte) (complete bool, ok bool) {
	if fragmentNumber >= ic.fragmentCount {
		return false, false
	}
	word, bit := fragmentNumber/32, fragmentNumber%32
	if ic.fragments[word]&(1<<bit) != 0 {
		return ic.fragmentsRemaining == 0, true // duplicate, already counted
	}
	ic.fragments[word] |= 1 << bit

	dst := ic.packet.data
	if int(offset) < len(dst) {
		end := int(offset) + len(data)
		if end > len(dst) {
			end = len(dst)
		}
		copy(dst[offset:end], data[:end-int(offset)])
	}

	if ic.fragmentsRemaining > 0 {
		ic.fragmentsRemaining--
	}
	return ic.fragmentsRemaining == 0, true
}
