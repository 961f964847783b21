// Package netx holds small address-family vocabulary shared by the cache,
// worker, and query packages, so none of them has to redeclare it.
package netx

// Family is an mDNS address family. It is deliberately narrower than
// net's own address family constants: mDNS only ever runs over IPv4 or
// IPv6, plus the query-time "either" filter value.
type Family uint8

const (
	// FamilyAny matches both FamilyIPv4 and FamilyIPv6; it is only valid
	// as a query-time filter, never as a cache key or worker binding.
	FamilyAny Family = iota
	FamilyIPv4
	FamilyIPv6
)

func (f Family) String() string {
	switch f {
	case FamilyIPv4:
		return "ip4"
	case FamilyIPv6:
		return "ip6"
	case FamilyAny:
		return "any"
	default:
		return "unknown"
	}
}

// Matches reports whether a worker bound to family f should be started for
// filter. FamilyAny as a filter matches everything; FamilyAny as f never
// occurs for a bound worker.
func (f Family) Matches(filter Family) bool {
	return filter == FamilyAny || filter == f
}

const (
	// MulticastGroupIPv4 is the mDNS IPv4 multicast group.
	MulticastGroupIPv4 = "224.0.0.251"
	// MulticastGroupIPv6 is the mDNS IPv6 multicast group.
	MulticastGroupIPv6 = "ff02::fb"
	// Port is the mDNS UDP port, shared by both families.
	Port = 5353
)
