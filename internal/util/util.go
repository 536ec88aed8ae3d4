package util

import (
	"net"
	"strings"
)

// GetRemoteIPv4Address extracts the IP of a host:port string. IPv4-mapped
// IPv6 addresses are returned in dotted form and the IPv6 loopback as
// 127.0.0.1.
func GetRemoteIPv4Address(url string) string {
	host, _, err := net.SplitHostPort(url)
	if err != nil {
		host = strings.Trim(url, "[]")
	}

	return NormalizeIP(net.ParseIP(host))
}

// NormalizeIP formats ip the way relay destinations are stored.
func NormalizeIP(ip net.IP) string {
	if ip == nil {
		return ""
	}
	if ip.IsLoopback() && ip.To4() == nil {
		return "127.0.0.1"
	}
	if v4 := ip.To4(); v4 != nil {
		return v4.String()
	}
	return ip.String()
}

// AddrIP returns the normalized IP of a connection address.
func AddrIP(addr net.Addr) string {
	if addr == nil {
		return ""
	}
	switch a := addr.(type) {
	case *net.TCPAddr:
		return NormalizeIP(a.IP)
	case *net.UDPAddr:
		return NormalizeIP(a.IP)
	}
	return GetRemoteIPv4Address(addr.String())
}

// GetHostIPv4Address returns the first non-loopback IPv4 address of the
// host, or 127.0.0.1.
func GetHostIPv4Address() string {
	addrs, err := net.InterfaceAddrs()
	if err != nil {
		return "127.0.0.1"
	}
	for _, addr := range addrs {
		ipNet, ok := addr.(*net.IPNet)
		if !ok || ipNet.IP.IsLoopback() {
			continue
		}
		if v4 := ipNet.IP.To4(); v4 != nil {
			return v4.String()
		}
	}
	return "127.0.0.1"
}
