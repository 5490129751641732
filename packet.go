package genet

import "sync"

// PacketFlags control delivery semantics and lifetime of a Packet.
type PacketFlags uint32

const (
	// PacketReliable delivers the packet exactly once, in order,
	// relative to other reliable packets on the same channel.
	PacketReliable PacketFlags = 1 << iota
	// PacketUnsequenced delivers the packet at most once, with no
	// ordering guarantee relative to anything else.
	PacketUnsequenced
	// PacketNoAllocate marks Data as caller-owned: genet never copies
	// or frees it.
	PacketNoAllocate
	// PacketUnreliableFragment allows an oversized packet without
	// PacketReliable to be split into unreliable fragments instead of
	// being rejected outright.
	PacketUnreliableFragment
	// packetSent is an internal bookkeeping flag, set once the packet
	// has been handed to the socket at least once.
	packetSent
)

// FreeCallback is invoked exactly once, when a Packet's reference count
// reaches zero, unless PacketNoAllocate was set (in which case the
// payload is caller-owned and never freed here).
type FreeCallback func(data []byte)

// Packet is an immutable, reference-counted payload buffer. A single
// Packet may be referenced by many outgoing fragments and by one
// incoming reassembly slot simultaneously; it is destroyed exactly when
// the last reference is released.
type Packet struct {
	mu       sync.Mutex
	data     []byte
	flags    PacketFlags
	refCount int
	free     FreeCallback
}

// NewPacket creates a packet that copies data unless PacketNoAllocate is
// set, in which case data is used directly and never freed by genet.
func NewPacket(data []byte, flags PacketFlags) *Packet {
	p := &Packet{flags: flags, refCount: 1}
	if flags&PacketNoAllocate != 0 {
		p.data = data
	} else {
		p.data = append([]byte(nil), data...)
	}
	return p
}

// SetFreeCallback installs a callback invoked when the packet is
// destroyed. Has no effect on PacketNoAllocate packets, whose memory
// genet never owns.
func (p *Packet) SetFreeCallback(f FreeCallback) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.free = f
}

// Data returns the packet payload. The slice must not be mutated.
func (p *Packet) Data() []byte { return p.data }

// Len returns the payload length.
func (p *Packet) Len() int { return len(p.data) }

// Flags returns the packet's flags, including the internal "sent" bit
// once the packet has been placed on the wire at least once.
func (p *Packet) Flags() PacketFlags {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.flags
}

func (p *Packet) markSent() {
	p.mu.Lock()
	p.flags |= packetSent
	p.mu.Unlock()
}

// acquire increments the reference count. Called once per outgoing
// command (whole packet or fragment) created from this packet.
func (p *Packet) acquire() {
	p.mu.Lock()
	p.refCount++
	p.mu.Unlock()
}

// release decrements the reference count, invoking the free callback
// and clearing the payload once it reaches zero. Safe to call more
// times than acquire was called beyond the initial implicit reference
// only if the caller already holds a reference (i.e. never below zero
// in practice since every release is paired with an acquire or the
// initial NewPacket reference).
func (p *Packet) release() {
	p.mu.Lock()
	p.refCount--
	destroy := p.refCount <= 0
	var cb FreeCallback
	var data []byte
	if destroy {
		cb = p.free
		data = p.data
		p.data = nil
	}
	p.mu.Unlock()
	if destroy && cb != nil && p.flags&PacketNoAllocate == 0 {
		cb(data)
	}
}

// Destroy drops the application's own reference to the packet. Use when
// a packet was created but never handed to Peer.Send (or after the
// application is done with a received packet, if it wants to release
// memory early instead of waiting on GC).
func (p *Packet) Destroy() { p.release() }
