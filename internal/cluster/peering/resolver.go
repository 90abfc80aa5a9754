// Package peering provides node-to-node transport for DocMesh.
package peering

import (
	"encoding/binary"
	"errors"
	"fmt"
	"log/slog"
	"net"
	"strconv"
	"strings"
)

// ErrAddressParse is returned when an explicitly configured peering
// address cannot be parsed.
var ErrAddressParse = errors.New("peering: unparseable address")

// Resolve computes this node's peering endpoint.
//
// If explicitAddr is set it must parse as an IPv4 address. Otherwise
// local IPv4 interface addresses are enumerated: the first address in
// a private range that also matches the optional subnet constraint
// wins. When nothing matches, loopback is used with a warning; the
// fallback path never fails.
func Resolve(explicitAddr, subnetCIDR string, port uint16, logger *slog.Logger) (Endpoint, error) {
	if logger == nil {
		logger = slog.Default()
	}

	if explicitAddr != "" {
		ip := net.ParseIP(explicitAddr)
		if ip == nil || ip.To4() == nil {
			return Endpoint{}, fmt.Errorf("%w: %q", ErrAddressParse, explicitAddr)
		}
		return Endpoint{IP: ip.To4(), Port: port}, nil
	}

	ip := internalIP(subnetCIDR, logger)
	return Endpoint{IP: ip, Port: port}, nil
}

// subnetFilter is an optional constraint on candidate addresses.
type subnetFilter struct {
	active bool
	ip     uint32
	mask   uint32
}

// match reports whether the candidate is inside the subnet.
func (f subnetFilter) match(candidate uint32) bool {
	if !f.active {
		return true
	}
	return (f.ip & f.mask) == (candidate & f.mask)
}

// parseSubnet parses "A.B.C.D/N" into a filter. Any malformed input
// (wrong part count, unparseable address, non-numeric or out-of-range
// prefix) yields an inactive filter, not an error.
func parseSubnet(cidr string) subnetFilter {
	if cidr == "" {
		return subnetFilter{}
	}

	parts := strings.Split(cidr, "/")
	if len(parts) != 2 {
		return subnetFilter{}
	}

	ip := net.ParseIP(parts[0])
	if ip == nil || ip.To4() == nil {
		return subnetFilter{}
	}

	bits, err := strconv.ParseUint(parts[1], 10, 32)
	if err != nil || bits == 0 || bits > 32 {
		return subnetFilter{}
	}

	return subnetFilter{
		active: true,
		ip:     ip4ToUint32(ip),
		mask:   0xFFFFFFFF << (32 - uint32(bits)),
	}
}

// internalIP picks this node's internal IPv4 address: the first
// private-range interface address matching the subnet constraint, in
// interface enumeration order.
func internalIP(subnetCIDR string, logger *slog.Logger) net.IP {
	filter := parseSubnet(subnetCIDR)
	if filter.active {
		logger.Info("using peering subnet constraint", "subnet", subnetCIDR)
	}

	addrs, err := net.InterfaceAddrs()
	if err != nil {
		logger.Warn("interface enumeration failed, using loopback address as internal IP",
			"error", err)
		return net.IPv4(127, 0, 0, 1).To4()
	}

	for _, addr := range addrs {
		ipNet, ok := addr.(*net.IPNet)
		if !ok {
			continue
		}
		ip4 := ipNet.IP.To4()
		if ip4 == nil {
			continue
		}

		v := ip4ToUint32(ip4)
		if !isPrivateIP(v) {
			continue
		}
		if !filter.match(v) {
			logger.Info("skipping interface address, does not match peering subnet",
				"addr", ip4.String())
			continue
		}

		return ip4
	}

	logger.Warn("found no matching interfaces, using loopback address as internal IP")
	return net.IPv4(127, 0, 0, 1).To4()
}

// isPrivateIP reports whether the address is in 10.0.0.0/8,
// 172.16.0.0/12 or 192.168.0.0/16.
func isPrivateIP(ip uint32) bool {
	b1 := uint8(ip >> 24)
	b2 := uint8(ip >> 16)

	if b1 == 10 {
		return true
	}
	if b1 == 172 && b2 >= 16 && b2 <= 31 {
		return true
	}
	if b1 == 192 && b2 == 168 {
		return true
	}
	return false
}

func ip4ToUint32(ip net.IP) uint32 {
	return binary.BigEndian.Uint32(ip.To4())
}
