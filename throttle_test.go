package genet

import "testing"

func TestPacketThrottleStaysWithinBounds(t *testing.T) {
	p := newPeer(nil, 0)
	p.host = &Host{timeSource: newMonotonicClock()}

	// Drive many lossy epochs: throttle must never go negative or above
	// packetThrottleScale (spec §8 property).
	now := uint32(1)
	for i := 0; i < 50; i++ {
		p.packetsSent = 10
		p.packetsLost = 10 // 100% loss every epoch
		p.packetThrottleEpoch = 0
		now += uint32(p.packetThrottleInterval.Milliseconds()) + 1
		p.adjustThrottle(now)
		if p.packetThrottle > packetThrottleScale {
			t.Fatalf("packetThrottle = %d exceeds scale %d", p.packetThrottle, packetThrottleScale)
		}
	}

	for i := 0; i < 50; i++ {
		p.packetsSent = 10
		p.packetsLost = 0
		p.packetThrottleEpoch = 0
		now += uint32(p.packetThrottleInterval.Milliseconds()) + 1
		p.adjustThrottle(now)
		if p.packetThrottle > packetThrottleScale {
			t.Fatalf("packetThrottle = %d exceeds scale %d", p.packetThrottle, packetThrottleScale)
		}
	}
}

func TestSampleRTTUpdatesSmoothedEstimate(t *testing.T) {
	p := newPeer(nil, 0)
	p.host = &Host{timeSource: newMonotonicClock()}
	initial := p.roundTripTime

	p.sampleRTT(initial * 2)
	if p.roundTripTime == initial {
		t.Error("roundTripTime should move after a sample")
	}
	if p.lastRTT != initial*2 {
		t.Errorf("lastRTT = %v, want %v", p.lastRTT, initial*2)
	}
}
