package genet

import (
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
)

// memSocket is an in-memory Socket used to wire two Hosts together
// deterministically in tests, without touching a real network stack.
type memSocket struct {
	mu      sync.Mutex
	local   Address
	inbox   chan memDatagram
	network *memNetwork
}

type memDatagram struct {
	from Address
	data []byte
}

type memNetwork struct {
	mu      sync.Mutex
	sockets map[Address]*memSocket
}

func newMemNetwork() *memNetwork {
	return &memNetwork{sockets: make(map[Address]*memSocket)}
}

func (n *memNetwork) newSocket(port uint16) *memSocket {
	addr := Address{Port: port}
	addr.Host[15] = 1 // 127.0.0.1-equivalent loopback marker in the 16-byte host field
	s := &memSocket{local: addr, inbox: make(chan memDatagram, 256), network: n}
	n.mu.Lock()
	n.sockets[addr] = s
	n.mu.Unlock()
	return s
}

func (s *memSocket) LocalAddr() Address { return s.local }

func (s *memSocket) SendTo(addr Address, buffers ...[]byte) (int, error) {
	total := 0
	for _, b := range buffers {
		total += len(b)
	}
	out := make([]byte, 0, total)
	for _, b := range buffers {
		out = append(out, b...)
	}
	s.network.mu.Lock()
	dst, ok := s.network.sockets[addr]
	s.network.mu.Unlock()
	if !ok {
		return len(out), nil // simulate silent drop to an unknown address
	}
	select {
	case dst.inbox <- memDatagram{from: s.local, data: out}:
	default:
	}
	return len(out), nil
}

func (s *memSocket) RecvFrom(buf []byte) (int, Address, error) {
	select {
	case d := <-s.inbox:
		n := copy(buf, d.data)
		return n, d.from, nil
	default:
		return 0, Address{}, nil
	}
}

func (s *memSocket) Wait(timeout time.Duration) error {
	select {
	case d := <-s.inbox:
		s.mu.Lock()
		select {
		case s.inbox <- d:
		default:
		}
		s.mu.Unlock()
		return nil
	case <-time.After(timeout):
		return nil
	}
}

func (s *memSocket) Close() error { return nil }

func newTestHostPair(t *testing.T) (*Host, *Host) {
	t.Helper()
	net := newMemNetwork()
	clientSock := net.newSocket(1)
	serverSock := net.newSocket(2)

	server, err := NewHost(Config{Socket: serverSock, PeerLimit: 8, ChannelLimit: 2})
	require.NoError(t, err)
	client, err := NewHost(Config{Socket: clientSock, PeerLimit: 8, ChannelLimit: 2})
	require.NoError(t, err)
	return client, server
}

func pumpUntil(t *testing.T, hosts []*Host, want func([]Event) bool, timeout time.Duration) []Event {
	t.Helper()
	deadline := time.Now().Add(timeout)
	var collected []Event
	for time.Now().Before(deadline) {
		for _, h := range hosts {
			ev, err := h.Service(10 * time.Millisecond)
			require.NoError(t, err)
			if ev.Type != EventNone {
				collected = append(collected, ev)
			}
		}
		if want(collected) {
			return collected
		}
	}
	return collected
}

func TestHostConnectHandshake(t *testing.T) {
	client, server := newTestHostPair(t)
	defer client.Destroy()
	defer server.Destroy()

	peer, err := client.Connect(server.LocalAddress(), 2, 0xCAFE)
	require.NoError(t, err)
	require.Equal(t, StateConnecting, peer.State())

	events := pumpUntil(t, []*Host{client, server}, func(evs []Event) bool {
		connects := 0
		for _, e := range evs {
			if e.Type == EventConnect {
				connects++
			}
		}
		return connects >= 2
	}, 2*time.Second)

	connects := 0
	for _, e := range events {
		if e.Type == EventConnect {
			connects++
		}
	}
	require.GreaterOrEqual(t, connects, 2, "both sides should observe EventConnect")
	require.Equal(t, StateConnected, peer.State())
}

func TestHostReliableSendDelivers(t *testing.T) {
	client, server := newTestHostPair(t)
	defer client.Destroy()
	defer server.Destroy()

	_, err := client.Connect(server.LocalAddress(), 1, 0)
	require.NoError(t, err)

	// The client connects only once VERIFY_CONNECT arrives, after the
	// server has already reported its own EventConnect.
	pumpUntil(t, []*Host{client, server}, func(evs []Event) bool {
		for _, e := range evs {
			if e.Type == EventConnect && e.Peer.host == client {
				return true
			}
		}
		return false
	}, 2*time.Second)

	var serverPeer *Peer
	for _, p := range server.peers {
		if p.state == StateConnected {
			serverPeer = p
		}
	}
	require.NotNil(t, serverPeer)

	var clientPeer *Peer
	for _, p := range client.peers {
		if p.state == StateConnected {
			clientPeer = p
		}
	}
	require.NotNil(t, clientPeer)

	pkt := NewPacket([]byte("hello genet"), PacketReliable)
	require.NoError(t, clientPeer.Send(0, pkt))
	pkt.Destroy()

	events := pumpUntil(t, []*Host{client, server}, func(evs []Event) bool {
		for _, e := range evs {
			if e.Type == EventReceive {
				return true
			}
		}
		return false
	}, 2*time.Second)

	found := false
	for _, e := range events {
		if e.Type == EventReceive {
			require.Equal(t, "hello genet", string(e.Packet.Data()))
			found = true
		}
	}
	require.True(t, found, "server should have received the reliable packet")
}
