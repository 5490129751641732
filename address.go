package genet

import (
	"fmt"
	"net"
)

// Address is a 128-bit IPv6 host plus port and scope id, network order
// for the host bytes. IPv4 peers are represented as IPv4-mapped IPv6
// addresses (::ffff:a.b.c.d) so the rest of the engine never special
// cases address families.
type Address struct {
	Host    [16]byte
	Port    uint16
	ScopeID uint32
}

var v4InV6Prefix = [12]byte{0, 0, 0, 0, 0, 0, 0, 0, 0, 0, 0xff, 0xff}

// AddressFromUDP converts a net.UDPAddr, mapping IPv4 addresses into the
// ::ffff:a.b.c.d range.
func AddressFromUDP(u *net.UDPAddr) Address {
	var a Address
	if ip4 := u.IP.To4(); ip4 != nil {
		copy(a.Host[:12], v4InV6Prefix[:])
		copy(a.Host[12:], ip4)
	} else if ip16 := u.IP.To16(); ip16 != nil {
		copy(a.Host[:], ip16)
	}
	a.Port = uint16(u.Port)
	if u.Zone != "" {
		if iface, err := net.InterfaceByName(u.Zone); err == nil {
			a.ScopeID = uint32(iface.Index)
		}
	}
	return a
}

// IsIPv4Mapped reports whether the address is an IPv4-mapped IPv6
// address (::ffff:a.b.c.d).
func (a Address) IsIPv4Mapped() bool {
	return net.IP(a.Host[:]).To4() != nil
}

// UDPAddr converts the address back to a net.UDPAddr for use with the
// socket layer.
func (a Address) UDPAddr() *net.UDPAddr {
	ip := make(net.IP, 16)
	copy(ip, a.Host[:])
	zone := ""
	if a.ScopeID != 0 {
		if iface, err := net.InterfaceByIndex(int(a.ScopeID)); err == nil {
			zone = iface.Name
		}
	}
	return &net.UDPAddr{IP: ip, Port: int(a.Port), Zone: zone}
}

// Equal reports whether two addresses refer to the same host, port and
// scope. Used on every datagram to reject spoofed traffic for a peer
// slot (spec: "remote address mismatch ... drop silently").
func (a Address) Equal(b Address) bool {
	return a.Host == b.Host && a.Port == b.Port && a.ScopeID == b.ScopeID
}

func (a Address) String() string {
	ip := net.IP(a.Host[:])
	if a.ScopeID != 0 {
		return fmt.Sprintf("[%s%%%d]:%d", ip.String(), a.ScopeID, a.Port)
	}
	return fmt.Sprintf("[%s]:%d", ip.String(), a.Port)
}
