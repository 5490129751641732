package genet

import (
	"bytes"
	"hash/crc32"
	"testing"
)

func TestChecksumKnownVector(t *testing.T) {
	// "123456789" has the well-known CRC-32 (IEEE) checksum 0xCBF43926.
	got := defaultChecksum([][]byte{[]byte("123456789")})
	want := uint32(0xCBF43926)
	if got != want {
		t.Errorf("defaultChecksum = %#x, want %#x", got, want)
	}
	if got != crc32.ChecksumIEEE([]byte("123456789")) {
		t.Error("defaultChecksum disagrees with stdlib crc32.ChecksumIEEE")
	}
}

func TestEncodeDecodeCommandSendReliable(t *testing.T) {
	c := &command{}
	c.header.flags = cmdSendReliable | cmdFlagAcknowledge
	c.header.channelID = 3
	c.header.reliableSeq = 42
	c.data = []byte("hello world")

	enc := encodeCommand(c)
	cmds, ok := decodeCommands(enc, false)
	if !ok || len(cmds) != 1 {
		t.Fatalf("decode failed: ok=%v len=%d", ok, len(cmds))
	}
	got := cmds[0]
	if got.header.channelID != 3 || got.header.reliableSeq != 42 {
		t.Errorf("header mismatch: %+v", got.header)
	}
	if !bytes.Equal(got.data, c.data) {
		t.Errorf("data mismatch: got %q want %q", got.data, c.data)
	}
}

func TestEncodeDecodeConnect(t *testing.T) {
	c := &command{}
	c.header.flags = cmdConnect | cmdFlagAcknowledge
	c.header.channelID = controlChannelID
	c.outgoingPeerID = 7
	c.mtu = 1400
	c.windowSize = windowSizeScale
	c.channelCount = 4
	c.connectID = 0xDEADBEEF
	c.connectData = 0x1234

	enc := encodeCommand(c)
	if len(enc) != 4+fixedCommandSize[cmdConnect] {
		t.Fatalf("encoded CONNECT length = %d, want %d", len(enc), 4+fixedCommandSize[cmdConnect])
	}
	cmds, ok := decodeCommands(enc, true)
	if !ok || len(cmds) != 1 {
		t.Fatalf("decode failed: ok=%v len=%d", ok, len(cmds))
	}
	got := cmds[0]
	if got.outgoingPeerID != 7 || got.mtu != 1400 || got.connectID != 0xDEADBEEF || got.connectData != 0x1234 {
		t.Errorf("round trip mismatch: %+v", got)
	}
}

func TestEncodeDecodeVerifyConnectSize(t *testing.T) {
	c := &command{}
	c.header.flags = cmdVerifyConnect | cmdFlagAcknowledge
	c.header.channelID = controlChannelID
	c.connectID = 99
	enc := encodeCommand(c)
	if len(enc) != 4+fixedCommandSize[cmdVerifyConnect] {
		t.Fatalf("encoded VERIFY_CONNECT length = %d, want %d", len(enc), 4+fixedCommandSize[cmdVerifyConnect])
	}
}

func TestDatagramHeaderRoundTrip(t *testing.T) {
	h := datagramHeader{peerID: 123, sessionID: 2, hasSentTime: true, sentTime: 5000}
	enc := encodeDatagramHeader(h)
	got, n, ok := decodeDatagramHeader(enc)
	if !ok {
		t.Fatal("decode failed")
	}
	if n != len(enc) {
		t.Errorf("consumed %d bytes, want %d", n, len(enc))
	}
	if got.peerID != h.peerID || got.sessionID != h.sessionID || got.sentTime != h.sentTime {
		t.Errorf("round trip mismatch: %+v", got)
	}
}

func TestDecodeCommandsStopsOnTruncatedPayload(t *testing.T) {
	c := &command{}
	c.header.flags = cmdSendReliable
	c.data = []byte("truncated me")
	enc := encodeCommand(c)
	truncated := enc[:len(enc)-3]

	cmds, ok := decodeCommands(truncated, false)
	if ok {
		t.Error("expected ok=false for truncated payload")
	}
	if len(cmds) != 0 {
		t.Errorf("expected no parsed commands, got %d", len(cmds))
	}
}

func TestDecodeCommandsAnonymousFirstRejectsNonConnect(t *testing.T) {
	c := &command{}
	c.header.flags = cmdPing
	enc := encodeCommand(c)
	_, ok := decodeCommands(enc, true)
	if ok {
		t.Error("expected rejection of non-CONNECT as anonymous first command")
	}
}

func TestMTUClampEncodesWithinBudget(t *testing.T) {
	pkt := NewPacket(bytes.Repeat([]byte{0xAB}, minMTU), PacketReliable)
	defer pkt.Destroy()
	if pkt.Len() != minMTU {
		t.Fatalf("packet length = %d, want %d", pkt.Len(), minMTU)
	}

	// A peer at the minimum MTU splits the packet into fragments that each
	// fit one datagram together with the header and checksum.
	p := newPeer(nil, 0)
	p.state = StateConnected
	p.setChannelCount(1)
	p.mtu = minMTU
	if err := p.Send(0, pkt); err != nil {
		t.Fatalf("Send: %v", err)
	}
	if len(p.outgoingReliable) < 2 {
		t.Fatalf("queued %d commands, want the packet split into fragments", len(p.outgoingReliable))
	}
	for i, oc := range p.outgoingReliable {
		if n := datagramOverhead + len(encodeCommand(&oc.command)); n > minMTU {
			t.Errorf("fragment %d needs %d bytes, exceeds mtu %d", i, n, minMTU)
		}
	}
}
