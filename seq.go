package genet

// seq16 is a 16-bit sequence number that must only ever be compared
// modularly. Plain < or > on a uint16 would break the instant a
// sequence wraps around 0xFFFF, which happens constantly on a
// long-lived reliable channel; wrapping it in a named type keeps an
// accidental `a < b` from compiling against raw counters elsewhere in
// the package.
type seq16 uint16

// reliableWindowSpan is RELIABLE_WINDOWS * RELIABLE_WINDOW_SIZE (65536),
// the whole 16-bit sequence space covered by the reliable windows. less
// splits that space in half at 0x8000 and does not use this constant.
const reliableWindowSpan = reliableWindows * reliableWindowSize

// less reports whether a comes strictly before b in modular sequence
// order, treating the 16-bit space as split into two halves centered on
// a.
func (a seq16) less(b seq16) bool {
	return seq16(b-a) > 0 && seq16(b-a) <= 0x8000
}

// precedesOrEqual reports whether a <= b modularly.
func (a seq16) precedesOrEqual(b seq16) bool {
	return a == b || a.less(b)
}

// distance returns b - a modulo 2^16, the forward distance from a to b.
func (a seq16) distance(b seq16) uint16 {
	return uint16(b - a)
}

func (a seq16) add(n uint16) seq16 { return a + seq16(n) }

// window returns which of the reliableWindows ring slots a sequence
// number belongs to.
func (a seq16) window() uint16 {
	return uint16(a) / reliableWindowSize
}
