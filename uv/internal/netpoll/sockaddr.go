//go:build linux || darwin || freebsd

package netpoll

import (
	"net"
	"strconv"

	"golang.org/x/sys/unix"
)

// SockaddrToTCPAddr converts a unix.Sockaddr to a *net.TCPAddr.
// nil is returned for non-inet socket addresses.
func SockaddrToTCPAddr(sa unix.Sockaddr) *net.TCPAddr {
	switch sa := sa.(type) {
	case *unix.SockaddrInet4:
		ip := make(net.IP, net.IPv4len)
		copy(ip, sa.Addr[:])
		return &net.TCPAddr{IP: ip, Port: sa.Port}
	case *unix.SockaddrInet6:
		ip := make(net.IP, net.IPv6len)
		copy(ip, sa.Addr[:])
		return &net.TCPAddr{IP: ip, Port: sa.Port, Zone: zoneName(sa.ZoneId)}
	}
	return nil
}

// TCPAddrToSockaddr converts addr to a unix.Sockaddr and reports the address
// family that socket(2) must be called with. A nil addr or an unspecified IP
// binds to the IPv4 wildcard.
func TCPAddrToSockaddr(addr *net.TCPAddr) (unix.Sockaddr, int, error) {
	if addr == nil {
		return &unix.SockaddrInet4{}, unix.AF_INET, nil
	}
	if addr.Port < 0 || addr.Port > 0xffff {
		return nil, 0, unix.EINVAL
	}
	if len(addr.IP) == 0 {
		return &unix.SockaddrInet4{Port: addr.Port}, unix.AF_INET, nil
	}
	if ip4 := addr.IP.To4(); ip4 != nil && addr.Zone == "" {
		sa := &unix.SockaddrInet4{Port: addr.Port}
		copy(sa.Addr[:], ip4)
		return sa, unix.AF_INET, nil
	}
	ip6 := addr.IP.To16()
	if ip6 == nil {
		return nil, 0, unix.EAFNOSUPPORT
	}
	sa := &unix.SockaddrInet6{Port: addr.Port}
	copy(sa.Addr[:], ip6)
	if addr.Zone != "" {
		zone, err := zoneIndex(addr.Zone)
		if err != nil {
			return nil, 0, err
		}
		sa.ZoneId = zone
	}
	return sa, unix.AF_INET6, nil
}

func zoneName(id uint32) string {
	if id == 0 {
		return ""
	}
	if ifi, err := net.InterfaceByIndex(int(id)); err == nil {
		return ifi.Name
	}
	return strconv.FormatUint(uint64(id), 10)
}

func zoneIndex(zone string) (uint32, error) {
	if ifi, err := net.InterfaceByName(zone); err == nil {
		return uint32(ifi.Index), nil
	}
	n, err := strconv.ParseUint(zone, 10, 32)
	if err != nil {
		return 0, unix.EINVAL
	}
	return uint32(n), nil
}
