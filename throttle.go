package genet

import "time"

// sampleRTT folds one acknowledgement's measured round-trip time into
// the peer's smoothed RTT and RTT-variance estimators, after first
// adjusting packetThrottle by comparing the sample with the previous
// sample and its deviation (spec §4.6).
//
// Per spec §9's observed quirk, the variance term is the deviation of
// the sample from the *already-updated* roundTripTime rather than from
// the value before this sample. This is preserved rather than "fixed",
// matching the reference behavior the rest of the throttle math was
// tuned against.
func (p *Peer) sampleRTT(rtt time.Duration) {
	if p.lowestRTT == 0 || rtt < p.lowestRTT {
		p.lowestRTT = rtt
	}
	if rtt > p.highestRTTVariance {
		p.highestRTTVariance = rtt
	}

	switch {
	case p.lastRTT == 0:
		p.packetThrottle = p.packetThrottleLimit
	case rtt < p.lastRTT:
		p.packetThrottle += p.packetThrottleAcceleration
		if p.packetThrottle > p.packetThrottleLimit {
			p.packetThrottle = p.packetThrottleLimit
		}
	case rtt > p.lastRTT+2*p.lastRTTVariance:
		if p.packetThrottle > p.packetThrottleDeceleration {
			p.packetThrottle -= p.packetThrottleDeceleration
		} else {
			p.packetThrottle = 0
		}
	}

	p.lastRTT = rtt
	p.roundTripTime = (p.roundTripTime*7 + rtt) / 8

	var variance time.Duration
	if rtt > p.roundTripTime {
		variance = rtt - p.roundTripTime
	} else {
		variance = p.roundTripTime - rtt
	}
	p.lastRTTVariance = variance
	p.roundTripTimeVariance = (p.roundTripTimeVariance*3 + variance) / 4

	p.packetThrottleEpoch = p.host.now()
}

// adjustThrottle acts at most once per packetThrottleInterval (it returns
// early until the interval has passed since packetThrottleEpoch),
// accelerating packetThrottle toward packetThrottleScale when the
// interval's packetsLost is at or below packetsSent × packetThrottleLimit
// / packetThrottleScale, and decelerating it otherwise (spec §4.6).
// Host.Service and Host.Flush do not call it.
func (p *Peer) adjustThrottle(now uint32) {
	if timeDiff32(now, p.packetThrottleEpoch) < uint32(p.packetThrottleInterval/time.Millisecond) {
		return
	}
	epochSent := p.packetsSent
	epochLost := p.packetsLost

	p.packetThrottleEpoch = now
	p.packetsSent = 0
	p.packetsLost = 0

	if epochSent == 0 {
		return
	}

	threshold := epochSent * uint64(p.packetThrottleLimit) / packetThrottleScale
	if epochLost <= threshold {
		p.packetThrottle += p.packetThrottleAcceleration
	} else if p.packetThrottle > p.packetThrottleDeceleration {
		p.packetThrottle -= p.packetThrottleDeceleration
	} else {
		p.packetThrottle = 0
	}
	if p.packetThrottle > packetThrottleScale {
		p.packetThrottle = packetThrottleScale
	}
}

// recordSent tallies one transmitted reliable command toward the
// current throttle epoch's loss-ratio denominator and toward the
// packet-loss statistic's.
func (p *Peer) recordSent() {
	p.packetsSent++
	p.totalPacketsSent++
}

// recordLost tallies one retransmitted (= presumed lost) reliable
// command toward the current throttle epoch's loss-ratio numerator, and
// updates the long-running packet-loss statistic exposed via PacketLoss
// (spec §9 supplemented feature).
func (p *Peer) recordLost(now uint32) {
	p.packetsLost++
	p.totalPacketsLost++

	if timeDiff32(now, p.packetLossEpoch) >= uint32(packetLossInterval/time.Millisecond) {
		total := p.totalPacketsSent
		if total == 0 {
			total = 1
		}
		p.packetLoss = uint32(p.totalPacketsLost * packetLossScale / total)
		p.packetLossEpoch = now
		p.totalPacketsSent = 0
		p.totalPacketsLost = 0
	}
}

// timeDiff32 returns now-then accounting for uint32 millisecond-clock
// wraparound (spec §7's host clock is a free-running uint32).
func timeDiff32(now, then uint32) uint32 {
	return now - then
}
