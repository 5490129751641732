package genet

// EventType classifies what a serviced Event represents (spec §4.9).
type EventType int

const (
	EventNone EventType = iota
	EventConnect
	EventDisconnect
	EventReceive
	EventDisconnectTimeout
)

// Event is a single host-level notification produced by Host.Service or
// drained via a registered event sink (spec §4.9/§6.2). For
// EventReceive, Packet and ChannelID are populated; for EventConnect and
// EventDisconnect(Timeout), Data carries the peer-supplied connect or
// disconnect payload.
type Event struct {
	Type      EventType
	Peer      *Peer
	ChannelID byte
	Packet    *Packet
	Data      uint32
}

// EventSink receives each Event as it is queued. The Event also stays
// queued and is still returned by Host.Service, so a sink observes
// events alongside the Service poll (spec §6.x supplemented feature:
// ENet's single-consumer enet_host_service poll loop generalizes well
// to a push sink for long-running Go services).
type EventSink func(Event)

func (h *Host) queueEvent(ev Event) {
	h.events = append(h.events, ev)
	if h.eventSink != nil {
		h.eventSink(ev)
	}
}

// queueDispatch marks p as having at least one fully-reassembled packet
// ready for in-order release to the application, avoiding a full scan of
// every peer's channels on each Service call (spec §4.3's "packets are
// queued for dispatch once in order").
func (h *Host) queueDispatch(p *Peer) {
	if p.needsDispatch {
		return
	}
	p.needsDispatch = true
	h.dispatchQueue = append(h.dispatchQueue, p)
}

// drainDispatch pops newly-ordered packets off each dispatch-pending
// peer's channels and turns them into EventReceive events.
func (h *Host) drainDispatch() {
	for _, p := range h.dispatchQueue {
		p.needsDispatch = false
		for _, d := range p.dispatched {
			h.queueEvent(Event{Type: EventReceive, Peer: p, ChannelID: d.channelID, Packet: d.packet})
		}
		p.dispatched = nil
	}
	h.dispatchQueue = h.dispatchQueue[:0]
}
