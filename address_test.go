package genet

import (
	"net"
	"testing"
)

func TestAddressFromUDPMapsIPv4(t *testing.T) {
	a := AddressFromUDP(&net.UDPAddr{IP: net.ParseIP("192.0.2.1"), Port: 1234})
	if !a.IsIPv4Mapped() {
		t.Error("expected IPv4-mapped address")
	}
	if a.Port != 1234 {
		t.Errorf("port = %d, want 1234", a.Port)
	}
	back := a.UDPAddr()
	if back.IP.String() != "192.0.2.1" {
		t.Errorf("round trip IP = %s, want 192.0.2.1", back.IP.String())
	}
}

func TestAddressFromUDPIPv6(t *testing.T) {
	a := AddressFromUDP(&net.UDPAddr{IP: net.ParseIP("2001:db8::1"), Port: 80})
	if a.IsIPv4Mapped() {
		t.Error("expected non-mapped IPv6 address")
	}
}

func TestAddressEqual(t *testing.T) {
	a := AddressFromUDP(&net.UDPAddr{IP: net.ParseIP("10.0.0.1"), Port: 1})
	b := AddressFromUDP(&net.UDPAddr{IP: net.ParseIP("10.0.0.1"), Port: 1})
	c := AddressFromUDP(&net.UDPAddr{IP: net.ParseIP("10.0.0.2"), Port: 1})
	if !a.Equal(b) {
		t.Error("identical addresses should be equal")
	}
	if a.Equal(c) {
		t.Error("different hosts should not be equal")
	}
}
