package genet

import "testing"

func TestChannelWindowFullPreviousWindowSaturated(t *testing.T) {
	ch := newChannel()
	ch.reliableWindowCounts[0] = reliableWindowSize
	if !ch.windowFull(1) {
		t.Error("window 1 should be held while window 0 (previous) is saturated")
	}
}

func TestChannelWindowFullFreeWindowsAhead(t *testing.T) {
	ch := newChannel()
	ch.markWindowUsed(3)
	if !ch.windowFull(0) {
		t.Error("window 0 should be held: window 3 within freeReliableWindows ahead is in use")
	}
}

func TestChannelWindowWrapsAround(t *testing.T) {
	ch := newChannel()
	// Mark window 0 used; the last window must see it as "ahead" via wrap.
	ch.markWindowUsed(0)
	if !ch.windowFull(reliableWindows - 1) {
		t.Error("window (reliableWindows-1) should see window 0 as within 1 step via wraparound")
	}
}

func TestChannelMarkAndReleaseWindow(t *testing.T) {
	ch := newChannel()
	ch.markWindowUsed(5)
	ch.markWindowUsed(5)
	if ch.reliableWindowCounts[5] != 2 {
		t.Fatalf("count = %d, want 2", ch.reliableWindowCounts[5])
	}
	ch.releaseWindow(5)
	if ch.usedReliableWindows&(1<<5) == 0 {
		t.Error("window should still be marked used after one release of two")
	}
	ch.releaseWindow(5)
	if ch.usedReliableWindows&(1<<5) != 0 {
		t.Error("window should be cleared after releasing all marks")
	}
}

func TestChannelInsertIncomingReliableOrdersBySequence(t *testing.T) {
	ch := newChannel()
	mk := func(seq seq16) *incomingCommand {
		c := command{}
		c.header.reliableSeq = seq
		return &incomingCommand{command: c}
	}
	ch.insertIncomingReliable(mk(5))
	ch.insertIncomingReliable(mk(2))
	ch.insertIncomingReliable(mk(8))
	ch.insertIncomingReliable(mk(3))

	var got []seq16
	for _, ic := range ch.incomingReliable {
		got = append(got, ic.command.header.reliableSeq)
	}
	want := []seq16{2, 3, 5, 8}
	if len(got) != len(want) {
		t.Fatalf("got %v, want %v", got, want)
	}
	for i := range want {
		if got[i] != want[i] {
			t.Fatalf("got %v, want %v", got, want)
		}
	}
}

func TestFragmentReassemblyCompletesAndClampsOverlong(t *testing.T) {
	c := &command{fragmentCount: 2, totalLength: 10}
	ic := newFragmentAssembly(c, 10, 2)

	complete, ok := ic.addFragment(0, 0, []byte{1, 2, 3, 4, 5})
	if !ok || complete {
		t.Fatalf("first fragment: ok=%v complete=%v", ok, complete)
	}
	// Overlong: offset 5, data longer than remaining space (10-5=5 expected, give 7).
	complete, ok = ic.addFragment(1, 5, []byte{6, 7, 8, 9, 10, 11, 12})
	if !ok || !complete {
		t.Fatalf("second fragment: ok=%v complete=%v", ok, complete)
	}
	if len(ic.packet.Data()) != 10 {
		t.Fatalf("reassembled length = %d, want 10 (overlong clamp)", len(ic.packet.Data()))
	}
	for i, want := range []byte{1, 2, 3, 4, 5, 6, 7, 8, 9, 10} {
		if ic.packet.Data()[i] != want {
			t.Errorf("byte %d = %d, want %d", i, ic.packet.Data()[i], want)
		}
	}
}

func TestFragmentReassemblyDuplicateIdempotent(t *testing.T) {
	c := &command{fragmentCount: 2, totalLength: 4}
	ic := newFragmentAssembly(c, 4, 2)
	ic.addFragment(0, 0, []byte{1, 2})
	complete, ok := ic.addFragment(0, 0, []byte{1, 2})
	if !ok {
		t.Fatal("duplicate fragment should be accepted, not rejected")
	}
	if complete {
		t.Fatal("duplicate of fragment 0 should not complete a 2-fragment set")
	}
}
