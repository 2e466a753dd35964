// Package ipblock decides whether a literal IP address falls inside a
// reserved, private, or cloud-metadata range that outbound fetches must
// never reach.
package ipblock

import (
	"net"
	"sort"
)

// cidrEntry is one reserved range, pre-parsed so membership tests never
// re-parse a CIDR string.
type cidrEntry struct {
	network *net.IPNet
	// base is the big-endian network address, used as the sort/search
	// key: inRanges binary-searches on it, then scans the ranges that
	// sort below the address.
	base []byte
}

var (
	v4Ranges []cidrEntry
	v6Ranges []cidrEntry
)

// v4CIDRs are the IPv4 reserved ranges from the specification: loopback,
// unspecified, private, link-local, shared CGN, multicast, reserved.
var v4CIDRs = []string{
	"127.0.0.0/8",    // loopback
	"0.0.0.0/8",      // unspecified / "this network"
	"10.0.0.0/8",     // private
	"172.16.0.0/12",  // private
	"192.168.0.0/16", // private
	"169.254.0.0/16", // link-local
	"100.64.0.0/10",  // shared CGN
	"224.0.0.0/4",    // multicast
	"240.0.0.0/4",    // reserved
}

// v6CIDRs are the IPv6 reserved and transition ranges from the
// specification.
var v6CIDRs = []string{
	"::1/128",        // loopback
	"::/128",         // unspecified
	"fc00::/7",       // unique local (private)
	"fd00::/8",       // unique local (private), subset of fc00::/7
	"fe80::/10",      // link-local
	"ff00::/8",       // multicast
	"64:ff9b::/96",   // NAT64 well-known prefix
	"64:ff9b:1::/48", // NAT64 local-use prefix
	"2001::/32",      // Teredo tunneling
	"2002::/16",      // 6to4
}

// metadataIPs are literal addresses that cloud providers use to serve
// instance metadata, blocked regardless of which CIDR range they fall
// in (169.254.169.254 is already covered by the IPv4 link-local range,
// but is listed for clarity and to document intent).
var metadataIPs = []string{
	"169.254.169.254", // AWS/GCP/Azure/DigitalOcean instance metadata
	"100.100.100.200", // Alibaba Cloud instance metadata
}

// MetadataHostnames are hostnames that resolve to cloud metadata
// services and must be rejected by the Fetcher before DNS resolution,
// independent of whatever IP they currently resolve to.
var MetadataHostnames = map[string]bool{
	"metadata.google.internal": true,
	"metadata.azure.com":       true,
	"instance-data":            true,
}

func init() {
	v4Ranges = buildRanges(v4CIDRs)
	v6Ranges = buildRanges(v6CIDRs)
}

func buildRanges(cidrs []string) []cidrEntry {
	entries := make([]cidrEntry, 0, len(cidrs))
	for _, c := range cidrs {
		_, network, err := net.ParseCIDR(c)
		if err != nil {
			// Programmer error: a literal CIDR constant failed to parse.
			panic("ipblock: invalid CIDR constant " + c)
		}
		entries = append(entries, cidrEntry{network: network, base: network.IP})
	}
	sort.Slice(entries, func(i, j int) bool {
		return compareBytes(entries[i].base, entries[j].base) < 0
	})
	return entries
}

func compareBytes(a, b []byte) int {
	for i := 0; i < len(a) && i < len(b); i++ {
		if a[i] != b[i] {
			if a[i] < b[i] {
				return -1
			}
			return 1
		}
	}
	return len(a) - len(b)
}

// IsBlocked reports whether ip falls inside any reserved, private, or
// cloud-metadata range.
func IsBlocked(ip net.IP) bool {
	if ip == nil {
		return true
	}

	if v4 := ip.To4(); v4 != nil {
		for _, m := range metadataIPs {
			if v4.Equal(net.ParseIP(m).To4()) {
				return true
			}
		}
		return inRanges(v4, v4Ranges)
	}

	v6 := ip.To16()
	return inRanges(v6, v6Ranges)
}

// inRanges performs a binary search over ranges sorted by network base
// address, then confirms containment via net.IPNet.Contains. The search
// finds in O(log N) the first range whose base is above ip; because
// CIDR prefixes can nest (fd00::/8 inside fc00::/7), every range below
// that point is then checked, not only the nearest one.
func inRanges(ip net.IP, ranges []cidrEntry) bool {
	idx := sort.Search(len(ranges), func(i int) bool {
		return compareBytes(ranges[i].base, ip) > 0
	})

	// idx is the first range whose base address is greater than ip;
	// every candidate that could contain ip has a base <= ip, i.e. is
	// at index < idx. Scan backward from idx-1.
	for i := idx - 1; i >= 0; i-- {
		if ranges[i].network.Contains(ip) {
			return true
		}
		// The scan has no early exit: an address in no range visits
		// every range whose base is <= ip. The tables are fixed at a
		// handful of entries per family.
	}
	return false
}

// IsBlockedHostname reports whether host is one of the fixed
// cloud-metadata hostnames the Fetcher must refuse before DNS
// resolution even occurs.
func IsBlockedHostname(host string) bool {
	return MetadataHostnames[host]
}
