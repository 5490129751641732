package genet

import "testing"

func TestPacketRefCountingFreesOnce(t *testing.T) {
	freed := 0
	var freedData []byte
	p := NewPacket([]byte("payload"), 0)
	p.SetFreeCallback(func(data []byte) {
		freed++
		freedData = data
	})

	p.acquire()
	p.release()
	if freed != 0 {
		t.Fatalf("freed after one of two releases, want still held")
	}
	p.release()
	if freed != 1 {
		t.Fatalf("free callback called %d times, want 1", freed)
	}
	if string(freedData) != "payload" {
		t.Fatalf("freed data = %q, want %q", freedData, "payload")
	}
}

func TestPacketNoAllocateSkipsFreeCallback(t *testing.T) {
	called := false
	data := []byte("owned")
	p := NewPacket(data, PacketNoAllocate)
	p.SetFreeCallback(func([]byte) { called = true })
	p.release()
	if called {
		t.Error("free callback must not run for PacketNoAllocate packets")
	}
	if &p.Data()[0] != &data[0] {
		t.Error("PacketNoAllocate must not copy the backing array")
	}
}

func TestPacketCopiesByDefault(t *testing.T) {
	data := []byte("copy me")
	p := NewPacket(data, 0)
	data[0] = 'X'
	if p.Data()[0] == 'X' {
		t.Error("NewPacket without PacketNoAllocate must copy the input")
	}
}
