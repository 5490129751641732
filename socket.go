package genet

import (
	"net"
	"syscall"
	"time"

	"github.com/pkg/errors"
	"golang.org/x/net/ipv6"
	"golang.org/x/sys/unix"
)

// Socket is the non-blocking datagram transport the Host drives. It is
// the out-of-scope-but-specified collaborator from spec §1/§6.1:
// bind/send/recv/wait over IPv6 (IPv4-mapped) addresses, scatter-gather
// friendly. A Host never blocks outside of Wait.
type Socket interface {
	// LocalAddr returns the address the socket is bound to.
	LocalAddr() Address
	// SendTo writes buffers as a single datagram to addr. Mirrors
	// sendmsg over scatter-gather buffers.
	SendTo(addr Address, buffers ...[]byte) (int, error)
	// RecvFrom reads one datagram into buf, non-blocking: returns
	// (0, Address{}, nil) if nothing is pending.
	RecvFrom(buf []byte) (int, Address, error)
	// Wait blocks until the socket is readable or timeout elapses.
	Wait(timeout time.Duration) error
	Close() error
}

// udpSocket is the default Socket, an IPv6 UDP listener (IPv4-mapped
// dual stack) wrapped in an ipv6.PacketConn the way xtaci/kcp-go's
// session layer wraps its net.PacketConn (ipv6.NewPacketConn /
// SetTrafficClass) to reach IPv6-level controls net.UDPConn doesn't
// expose, plus raw SO_RCVBUF/SO_SNDBUF tuning via golang.org/x/sys/unix
// since net.UDPConn.SetReadBuffer silently clamps to the OS default.
type udpSocket struct {
	conn    *net.UDPConn
	pconn   *ipv6.PacketConn
	local   Address
}

const socketBufferBytes = 1 << 20 // 1 MiB, "large RCVBUF/SNDBUF" per spec §3

func listenUDP(addr Address) (*udpSocket, error) {
	udpAddr := addr.UDPAddr()
	conn, err := net.ListenUDP("udp", udpAddr)
	if err != nil {
		return nil, errors.Wrap(err, "genet: bind socket")
	}
	s := &udpSocket{
		conn:  conn,
		pconn: ipv6.NewPacketConn(conn),
	}
	s.local = AddressFromUDP(conn.LocalAddr().(*net.UDPAddr))
	s.tuneBuffers()
	return s, nil
}

// tuneBuffers sets socket buffers directly through the file descriptor.
// Best-effort: a platform that rejects the setsockopt call just keeps
// Go's smaller default, which is survivable (more GC pressure from
// smaller recv batches, not a correctness issue).
func (s *udpSocket) tuneBuffers() {
	raw, err := s.conn.SyscallConn()
	if err != nil {
		return
	}
	_ = raw.Control(func(fd uintptr) {
		_ = unix.SetsockoptInt(int(fd), unix.SOL_SOCKET, unix.SO_RCVBUF, socketBufferBytes)
		_ = unix.SetsockoptInt(int(fd), unix.SOL_SOCKET, unix.SO_SNDBUF, socketBufferBytes)
	})
}

func (s *udpSocket) LocalAddr() Address { return s.local }

func (s *udpSocket) SendTo(addr Address, buffers ...[]byte) (int, error) {
	total := 0
	for _, b := range buffers {
		total += len(b)
	}
	out := make([]byte, 0, total)
	for _, b := range buffers {
		out = append(out, b...)
	}
	n, err := s.conn.WriteToUDP(out, addr.UDPAddr())
	if err != nil {
		if errors.Is(err, syscall.EWOULDBLOCK) {
			return 0, nil
		}
		return 0, err
	}
	return n, nil
}

func (s *udpSocket) RecvFrom(buf []byte) (int, Address, error) {
	_ = s.conn.SetReadDeadline(time.Now())
	n, from, err := s.conn.ReadFromUDP(buf)
	if err != nil {
		if ne, ok := err.(net.Error); ok && ne.Timeout() {
			return 0, Address{}, nil
		}
		return 0, Address{}, err
	}
	return n, AddressFromUDP(from), nil
}

// Wait blocks on the socket's raw file descriptor with unix.Poll rather
// than issuing a throwaway read with a deadline: a UDP read of any size
// consumes the whole pending datagram, so peeking for readability must
// not touch the socket buffer at all.
func (s *udpSocket) Wait(timeout time.Duration) error {
	raw, err := s.conn.SyscallConn()
	if err != nil {
		return err
	}
	ms := int(timeout / time.Millisecond)
	if timeout > 0 && ms == 0 {
		ms = 1
	}
	var pollErr error
	ctrlErr := raw.Control(func(fd uintptr) {
		fds := []unix.PollFd{{Fd: int32(fd), Events: unix.POLLIN}}
		for {
			_, pollErr = unix.Poll(fds, ms)
			if pollErr != unix.EINTR {
				break
			}
		}
	})
	if ctrlErr != nil {
		return ctrlErr
	}
	if pollErr != nil {
		return pollErr
	}
	return nil
}

func (s *udpSocket) Close() error {
	return s.conn.Close()
}

// SetTrafficClass configures the IPv6 traffic class (DSCP/ECN) field
// used on outgoing datagrams, following the same ipv6.NewConn(nc).
// SetTrafficClass pattern xtaci/kcp-go applies to its UDP session.
func (s *udpSocket) SetTrafficClass(class int) error {
	return s.pconn.SetTrafficClass(class)
}
