// Copyright 2024-2026 George (earentir) Pantazis (https://earentir.dev)
// SPDX-License-Identifier: GPL-2.0-only
package ipvalidator

import (
	"net"
	"net/netip"
	"strings"
)

// IPType represents the family of a resolver address.
type IPType int

const (
	Invalid IPType = iota
	IPv4
	IPv6
)

func (t IPType) String() string {
	switch t {
	case IPv4:
		return "IPv4"
	case IPv6:
		return "IPv6"
	default:
		return "Invalid"
	}
}

// IsValidIP returns true if the string is a usable resolver address (IPv4 or IPv6, no zone).
func IsValidIP(ip string) bool {
	return ValidateIP(ip) != Invalid
}

// GetIPVersion returns 4 for IPv4, 6 for IPv6, or 0 for invalid addresses.
func GetIPVersion(ip string) int {
	switch ValidateIP(ip) {
	case IPv4:
		return 4
	case IPv6:
		return 6
	default:
		return 0
	}
}

// ValidateIP classifies ip. Octets with leading zeros and scoped (zoned)
// IPv6 addresses are rejected. IPv4-mapped IPv6 addresses count as IPv6,
// matching how resolver directories publish them.
func ValidateIP(ip string) IPType {
	ip = strings.TrimSpace(ip)
	if ip == "" {
		return Invalid
	}
	addr, err := netip.ParseAddr(ip)
	if err != nil || addr.Zone() != "" {
		return Invalid
	}
	if addr.Is4() {
		return IPv4
	}
	return IPv6
}

// HostPort joins a resolver address with a port, bracketing IPv6 literals.
func HostPort(ip, port string) string {
	return net.JoinHostPort(strings.TrimSpace(ip), port)
}
