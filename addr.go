package rinoo

import (
	"net"

	"golang.org/x/sys/unix"
)

// Addr covers both IPv4 and IPv6 endpoints, mirroring the original C
// rn_addr_t union's "one type, tagged by family" shape rather than Go's
// usual net.Addr interface split — the socket package needs a single
// concrete value it can pass to bind/connect/accept uniformly.
type Addr struct {
	family int
	ipv4   unix.SockaddrInet4
	ipv6   unix.SockaddrInet6
}

// Addr4 builds an IPv4 endpoint from a dotted-quad string (or empty for
// INADDR_ANY) and port.
func Addr4(ip string, port int) (Addr, error) {
	var a Addr
	a.family = unix.AF_INET
	a.ipv4.Port = port
	if ip != "" {
		parsed := net.ParseIP(ip)
		if parsed == nil {
			return Addr{}, wrapf(ErrInvalidArgument, "addr: invalid IPv4 address %q", ip)
		}
		v4 := parsed.To4()
		if v4 == nil {
			return Addr{}, wrapf(ErrInvalidArgument, "addr: %q is not IPv4", ip)
		}
		copy(a.ipv4.Addr[:], v4)
	}
	return a, nil
}

// Addr6 builds an IPv6 endpoint from a string (or empty for in6addr_any)
// and port.
func Addr6(ip string, port int) (Addr, error) {
	var a Addr
	a.family = unix.AF_INET6
	a.ipv6.Port = port
	if ip != "" {
		parsed := net.ParseIP(ip)
		if parsed == nil {
			return Addr{}, wrapf(ErrInvalidArgument, "addr: invalid IPv6 address %q", ip)
		}
		v6 := parsed.To16()
		if v6 == nil {
			return Addr{}, wrapf(ErrInvalidArgument, "addr: %q is not IPv6", ip)
		}
		copy(a.ipv6.Addr[:], v6)
	}
	return a, nil
}

// IsIPv4 reports whether the address is in the IPv4 family.
func (a Addr) IsIPv4() bool { return a.family == unix.AF_INET }

// IsIPv6 reports whether the address is in the IPv6 family.
func (a Addr) IsIPv6() bool { return a.family == unix.AF_INET6 }

// IP returns the address's IP component.
func (a Addr) IP() net.IP {
	if a.IsIPv6() {
		return net.IP(a.ipv6.Addr[:])
	}
	return net.IPv4(a.ipv4.Addr[0], a.ipv4.Addr[1], a.ipv4.Addr[2], a.ipv4.Addr[3])
}

// Port returns the address's port component.
func (a Addr) Port() int {
	if a.IsIPv6() {
		return a.ipv6.Port
	}
	return a.ipv4.Port
}

// sockaddr returns the unix.Sockaddr form needed by connect/bind/accept.
func (a Addr) sockaddr() unix.Sockaddr {
	if a.IsIPv6() {
		v := a.ipv6
		return &v
	}
	v := a.ipv4
	return &v
}
