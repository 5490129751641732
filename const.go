package genet

import "time"

// Wire and protocol limits (spec §2/§3/§4/§6).
const (
	minMTU = 576
	maxMTU = 4096
	// defaultMTU matches the historical ENet default of 1400 bytes,
	// comfortably under the common internet path MTU of 1500 minus
	// IP/UDP overhead.
	defaultMTU = 1400

	maxChannelCount     = 255
	controlChannelID    = 0xFF // reserved, used for peer-global reliable commands
	defaultChannelCount = 1

	maxPeerID    = 0xFFF // 4095, also the anonymous-sender sentinel
	anonymousPID = 0xFFF

	windowSizeScale     = 64 * 1024
	reliableWindows     = 16
	reliableWindowSize  = 4096
	freeReliableWindows = 8

	packetThrottleScale        = 32
	packetThrottleCounter      = 7
	defaultPacketThrottleAccel = 2
	defaultPacketThrottleDecel = 2
	defaultThrottleInterval    = 5 * time.Second

	bandwidthThrottleInterval = 1000 * time.Millisecond

	unsequencedWindowSize  = 1024
	freeUnsequencedWindows = 32
	// unsequencedWindowWords is the peer's unsequenced-window bitmap
	// size: 64 uint32 words (2048 bits), per spec §3's data model.
	unsequencedWindowWords = 64

	maxFragmentCount = 1 * 1024 * 1024

	defaultMaximumWaitingData = 32 * 1024 * 1024

	defaultTimeoutLimit   = 32
	defaultTimeoutMinimum = 5000 * time.Millisecond
	defaultTimeoutMaximum = 30000 * time.Millisecond

	defaultPingInterval = 500 * time.Millisecond

	defaultRoundTripTime = 500 * time.Millisecond

	packetLossScale    = 1 << 16
	packetLossInterval = 10000 * time.Millisecond

	maxReceivesPerService = 256
)
